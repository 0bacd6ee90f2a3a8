package cache

import (
	"sync"
	"sync/atomic"
	"time"
)

// defaultLatencyWindow is the number of recent operation durations retained
// for the average-latency calculation.
const defaultLatencyWindow = 1024

// Recorder tracks cache performance counters and a bounded rolling sample of
// operation latencies. Counters are monotonic for the process lifetime and
// are not reset by Clear.
type Recorder struct {
	// Atomic counters for thread-safe updates
	hits      int64
	misses    int64
	sets      int64
	deletes   int64
	evictions int64

	// Latency ring buffer, protected by its own mutex so recording a
	// sample never contends with the store lock.
	mu      sync.Mutex
	samples []time.Duration
	next    int
	count   int
}

// NewRecorder creates a recorder retaining up to window latency samples.
// A window <= 0 uses the default.
func NewRecorder(window int) *Recorder {
	if window <= 0 {
		window = defaultLatencyWindow
	}
	return &Recorder{
		samples: make([]time.Duration, window),
	}
}

// Hit records a cache hit.
func (r *Recorder) Hit() {
	atomic.AddInt64(&r.hits, 1)
}

// Miss records a cache miss.
func (r *Recorder) Miss() {
	atomic.AddInt64(&r.misses, 1)
}

// Set records a set operation.
func (r *Recorder) Set() {
	atomic.AddInt64(&r.sets, 1)
}

// Delete records a delete operation.
func (r *Recorder) Delete() {
	atomic.AddInt64(&r.deletes, 1)
}

// Eviction records an eviction (LRU overflow or expiry removal).
func (r *Recorder) Eviction() {
	atomic.AddInt64(&r.evictions, 1)
}

// Observe records an operation duration. The oldest sample is dropped once
// the window is full.
func (r *Recorder) Observe(d time.Duration) {
	r.mu.Lock()
	r.samples[r.next] = d
	r.next = (r.next + 1) % len(r.samples)
	if r.count < len(r.samples) {
		r.count++
	}
	r.mu.Unlock()
}

// Hits returns the total number of cache hits.
func (r *Recorder) Hits() int64 {
	return atomic.LoadInt64(&r.hits)
}

// Misses returns the total number of cache misses.
func (r *Recorder) Misses() int64 {
	return atomic.LoadInt64(&r.misses)
}

// Sets returns the total number of set operations.
func (r *Recorder) Sets() int64 {
	return atomic.LoadInt64(&r.sets)
}

// Deletes returns the total number of delete operations.
func (r *Recorder) Deletes() int64 {
	return atomic.LoadInt64(&r.deletes)
}

// Evictions returns the total number of evictions.
func (r *Recorder) Evictions() int64 {
	return atomic.LoadInt64(&r.evictions)
}

// TotalRequests returns hits + misses.
func (r *Recorder) TotalRequests() int64 {
	return r.Hits() + r.Misses()
}

// HitRate returns the hit ratio in [0.0, 1.0], 0 when no requests yet.
func (r *Recorder) HitRate() float64 {
	hits := r.Hits()
	total := hits + r.Misses()
	if total == 0 {
		return 0.0
	}
	return float64(hits) / float64(total)
}

// MissRate returns 1 - HitRate, 0 when no requests yet.
func (r *Recorder) MissRate() float64 {
	if r.TotalRequests() == 0 {
		return 0.0
	}
	return 1.0 - r.HitRate()
}

// AverageLatency returns the mean duration over the retained sample window,
// 0 when no samples have been observed.
func (r *Recorder) AverageLatency() time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.count == 0 {
		return 0
	}
	var total time.Duration
	for i := 0; i < r.count; i++ {
		total += r.samples[i]
	}
	return total / time.Duration(r.count)
}

// snapshot fills the counter-derived fields of a Snapshot. Size and backend
// identity are owned by the store.
func (r *Recorder) snapshot() Snapshot {
	return Snapshot{
		Hits:           r.Hits(),
		Misses:         r.Misses(),
		Sets:           r.Sets(),
		Deletes:        r.Deletes(),
		Evictions:      r.Evictions(),
		HitRate:        r.HitRate(),
		MissRate:       r.MissRate(),
		TotalRequests:  r.TotalRequests(),
		AverageLatency: r.AverageLatency(),
	}
}
