package cache

import (
	"context"
	"encoding/json"
	goerrors "errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/merxcommerce/merx/errors"
)

// natsEnvelope wraps a cached value with its expiry, since JetStream KV
// only supports a per-bucket TTL. Expired envelopes are reclaimed lazily on
// read and by DeletePattern/Keys scans.
type natsEnvelope struct {
	Value     json.RawMessage `json:"v"`
	ExpiresAt int64           `json:"exp"`
}

func (e natsEnvelope) expired(now time.Time) bool {
	return !now.Before(time.Unix(0, e.ExpiresAt))
}

// natsStore implements RemoteStore on a JetStream key-value bucket.
//
// Connectivity is lazy: construction never dials the server, and the KV
// bucket is created on first use. Until the server is reachable every
// operation returns a transient error, which the adapter above absorbs into
// fallback mode.
type natsStore struct {
	conn       *nats.Conn
	js         jetstream.JetStream
	bucketName string
	logger     *slog.Logger

	mu sync.Mutex
	kv jetstream.KeyValue
}

func newNATSStore(url, bucket string, logger *slog.Logger) (*natsStore, error) {
	// RetryOnFailedConnect defers the initial dial, so an unreachable
	// server surfaces on the first operation rather than here.
	conn, err := nats.Connect(url,
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, errors.WrapInvalid(err, "cache", "newNATSStore", "nats connect")
	}

	js, err := jetstream.New(conn)
	if err != nil {
		conn.Close()
		return nil, errors.WrapInvalid(err, "cache", "newNATSStore", "jetstream init")
	}

	return &natsStore{conn: conn, js: js, bucketName: bucket, logger: logger}, nil
}

func (s *natsStore) Name() string {
	return BackendNATS
}

// bucket returns the KV bucket, creating it on first use.
func (s *natsStore) bucket(ctx context.Context) (jetstream.KeyValue, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.kv != nil {
		return s.kv, nil
	}

	kv, err := s.js.CreateOrUpdateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket:      s.bucketName,
		Description: "merx cache entries",
		Storage:     jetstream.MemoryStorage,
	})
	if err != nil {
		return nil, errors.WrapTransient(err, "cache", "bucket", "create kv bucket")
	}
	s.kv = kv
	return kv, nil
}

// Ping verifies both server connectivity and bucket availability, so a
// successful probe proves the store is fully usable.
func (s *natsStore) Ping(ctx context.Context) error {
	if err := s.conn.FlushWithContext(ctx); err != nil {
		return errors.WrapTransient(err, "cache", "Ping", "nats flush")
	}
	if _, err := s.bucket(ctx); err != nil {
		return err
	}
	return nil
}

// encodeKey maps cache keys onto the KV key alphabet: ':' is not a valid KV
// key character, '.' is. Cache key segments never contain '.', so the
// mapping is reversible.
func encodeKey(key string) string {
	return strings.ReplaceAll(key, ":", ".")
}

func decodeKey(kvKey string) string {
	return strings.ReplaceAll(kvKey, ".", ":")
}

func (s *natsStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	kv, err := s.bucket(ctx)
	if err != nil {
		return nil, false, err
	}

	entry, err := kv.Get(ctx, encodeKey(key))
	if err != nil {
		if isKVNotFound(err) {
			return nil, false, nil
		}
		return nil, false, errors.WrapTransient(err, "cache", "Get", "kv get")
	}

	var env natsEnvelope
	if err := json.Unmarshal(entry.Value(), &env); err != nil {
		return nil, false, errors.Wrap(err, "cache", "Get", "decode kv envelope")
	}
	if env.expired(time.Now()) {
		if err := kv.Delete(ctx, encodeKey(key)); err != nil && !isKVNotFound(err) {
			s.logger.Debug("Failed to reclaim expired cache entry", "key", key, "error", err)
		}
		return nil, false, nil
	}
	return env.Value, true, nil
}

func (s *natsStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	kv, err := s.bucket(ctx)
	if err != nil {
		return err
	}

	data, err := json.Marshal(natsEnvelope{
		Value:     value,
		ExpiresAt: time.Now().Add(ttl).UnixNano(),
	})
	if err != nil {
		return errors.Wrap(err, "cache", "Set", "encode kv envelope")
	}
	if _, err := kv.Put(ctx, encodeKey(key), data); err != nil {
		return errors.WrapTransient(err, "cache", "Set", "kv put")
	}
	return nil
}

func (s *natsStore) Delete(ctx context.Context, key string) (bool, error) {
	kv, err := s.bucket(ctx)
	if err != nil {
		return false, err
	}

	// Get-then-delete so the caller learns whether the key existed. KV
	// Delete alone reports success for absent keys.
	_, err = kv.Get(ctx, encodeKey(key))
	if err != nil {
		if isKVNotFound(err) {
			return false, nil
		}
		return false, errors.WrapTransient(err, "cache", "Delete", "kv get")
	}
	if err := kv.Purge(ctx, encodeKey(key)); err != nil {
		return false, errors.WrapTransient(err, "cache", "Delete", "kv purge")
	}
	return true, nil
}

func (s *natsStore) DeletePattern(ctx context.Context, pattern string) (int, error) {
	kv, err := s.bucket(ctx)
	if err != nil {
		return 0, err
	}

	keys, err := s.listKeys(ctx)
	if err != nil {
		return 0, err
	}

	deleted := 0
	for _, kvKey := range keys {
		if !matchKey(pattern, decodeKey(kvKey)) {
			continue
		}
		if err := kv.Purge(ctx, kvKey); err != nil {
			if isKVNotFound(err) {
				continue
			}
			return deleted, errors.WrapTransient(err, "cache", "DeletePattern", "kv purge")
		}
		deleted++
	}
	return deleted, nil
}

func (s *natsStore) Clear(ctx context.Context) error {
	kv, err := s.bucket(ctx)
	if err != nil {
		return err
	}

	keys, err := s.listKeys(ctx)
	if err != nil {
		return err
	}
	for _, kvKey := range keys {
		if err := kv.Purge(ctx, kvKey); err != nil && !isKVNotFound(err) {
			return errors.WrapTransient(err, "cache", "Clear", "kv purge")
		}
	}
	return nil
}

func (s *natsStore) Keys(ctx context.Context) ([]string, error) {
	kvKeys, err := s.listKeys(ctx)
	if err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(kvKeys))
	for _, kvKey := range kvKeys {
		keys = append(keys, decodeKey(kvKey))
	}
	return keys, nil
}

func (s *natsStore) Size(ctx context.Context) (int, error) {
	keys, err := s.listKeys(ctx)
	if err != nil {
		return 0, err
	}
	return len(keys), nil
}

func (s *natsStore) Close() error {
	s.conn.Close()
	return nil
}

func (s *natsStore) listKeys(ctx context.Context) ([]string, error) {
	kv, err := s.bucket(ctx)
	if err != nil {
		return nil, err
	}

	lister, err := kv.ListKeys(ctx)
	if err != nil {
		if isKVNotFound(err) {
			return nil, nil
		}
		return nil, errors.WrapTransient(err, "cache", "listKeys", "kv list")
	}
	defer lister.Stop()

	var keys []string
	for key := range lister.Keys() {
		keys = append(keys, key)
	}
	return keys, nil
}

// isKVNotFound matches both the typed sentinel and the raw server error
// observed from older NATS releases.
func isKVNotFound(err error) bool {
	if err == nil {
		return false
	}
	if goerrors.Is(err, jetstream.ErrKeyNotFound) || goerrors.Is(err, jetstream.ErrNoKeysFound) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "key not found") || strings.Contains(msg, "10037")
}
