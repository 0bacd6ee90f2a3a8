package errors

import (
	"context"
	stderrors "errors"
	"fmt"
	"testing"
)

func TestErrorClassString(t *testing.T) {
	tests := []struct {
		class    ErrorClass
		expected string
	}{
		{ErrorTransient, "transient"},
		{ErrorInvalid, "invalid"},
		{ErrorFatal, "fatal"},
		{ErrorClass(99), "unknown"},
	}

	for _, tt := range tests {
		if got := tt.class.String(); got != tt.expected {
			t.Errorf("ErrorClass(%d).String() = %q, want %q", tt.class, got, tt.expected)
		}
	}
}

func TestWrapFormat(t *testing.T) {
	base := stderrors.New("boom")
	err := Wrap(base, "cache", "Set", "eviction")

	expected := "cache.Set: eviction failed: boom"
	if err.Error() != expected {
		t.Errorf("Wrap() = %q, want %q", err.Error(), expected)
	}

	if !stderrors.Is(err, base) {
		t.Error("wrapped error should unwrap to the base error")
	}

	if Wrap(nil, "cache", "Set", "eviction") != nil {
		t.Error("Wrap(nil) should return nil")
	}
}

func TestClassifiedWrappers(t *testing.T) {
	base := stderrors.New("boom")

	tests := []struct {
		name  string
		wrap  func(error, string, string, string) error
		class ErrorClass
	}{
		{"transient", WrapTransient, ErrorTransient},
		{"invalid", WrapInvalid, ErrorInvalid},
		{"fatal", WrapFatal, ErrorFatal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.wrap(base, "comp", "Method", "action")

			var ce *ClassifiedError
			if !stderrors.As(err, &ce) {
				t.Fatal("expected a ClassifiedError")
			}
			if ce.Class != tt.class {
				t.Errorf("Class = %v, want %v", ce.Class, tt.class)
			}
			if ce.Component != "comp" || ce.Operation != "Method" {
				t.Errorf("unexpected component/operation: %s/%s", ce.Component, ce.Operation)
			}
			if !stderrors.Is(err, base) {
				t.Error("classified error should unwrap to the base error")
			}

			if tt.wrap(nil, "comp", "Method", "action") != nil {
				t.Error("wrapping nil should return nil")
			}
		})
	}
}

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{"nil", nil, false},
		{"sentinel timeout", ErrConnectionTimeout, true},
		{"sentinel backend", ErrBackendUnavailable, true},
		{"context deadline", context.DeadlineExceeded, true},
		{"wrapped transient", WrapTransient(stderrors.New("x"), "c", "m", "a"), true},
		{"wrapped invalid", WrapInvalid(stderrors.New("x"), "c", "m", "a"), false},
		{"message pattern", stderrors.New("dial tcp: i/o timeout"), true},
		{"plain error", stderrors.New("something else"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsTransient(tt.err); got != tt.expected {
				t.Errorf("IsTransient(%v) = %v, want %v", tt.err, got, tt.expected)
			}
		})
	}
}

func TestIsInvalid(t *testing.T) {
	if !IsInvalid(ErrBadPattern) {
		t.Error("ErrBadPattern should be invalid")
	}
	if !IsInvalid(fmt.Errorf("wrapped: %w", ErrInvalidKey)) {
		t.Error("wrapped ErrInvalidKey should be invalid")
	}
	if IsInvalid(ErrConnectionLost) {
		t.Error("ErrConnectionLost should not be invalid")
	}
}

func TestIsFatal(t *testing.T) {
	if !IsFatal(ErrInvalidConfig) {
		t.Error("ErrInvalidConfig should be fatal")
	}
	if !IsFatal(WrapFatal(stderrors.New("x"), "c", "m", "a")) {
		t.Error("WrapFatal errors should be fatal")
	}
	if IsFatal(ErrKeyNotFound) {
		t.Error("ErrKeyNotFound should not be fatal")
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected ErrorClass
	}{
		{"nil defaults transient", nil, ErrorTransient},
		{"fatal", ErrMissingConfig, ErrorFatal},
		{"invalid", ErrEncodingFailed, ErrorInvalid},
		{"unknown defaults transient", stderrors.New("mystery"), ErrorTransient},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.err); got != tt.expected {
				t.Errorf("Classify(%v) = %v, want %v", tt.err, got, tt.expected)
			}
		})
	}
}
