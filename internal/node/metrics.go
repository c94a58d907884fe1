package node

import (
	"sync"
	"time"

	"github.com/daig/daig-node/internal/store"
)

// Recorder accumulates per-node performance counters. Each node owns
// exactly one recorder; nothing else mutates its metrics. Uptime is
// always derived from the creation timestamp so it cannot drift.
type Recorder struct {
	mu        sync.Mutex
	createdAt time.Time

	successes          uint64
	errorCount         uint64
	learningIterations uint64
	adaptationCount    uint64

	avgResponseMs   float64
	responseSamples uint64
	memoryMB        float64
}

// NewRecorder creates a zeroed recorder anchored at the node's creation time
func NewRecorder(createdAt time.Time) *Recorder {
	return &Recorder{createdAt: createdAt}
}

// RecordSuccess counts one successful processing operation
func (r *Recorder) RecordSuccess() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.successes++
}

// RecordError counts one failed operation, pulling the success rate down
func (r *Recorder) RecordError() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errorCount++
}

// RecordLearningIteration counts one completed learning iteration
func (r *Recorder) RecordLearningIteration() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.learningIterations++
}

// RecordAdaptation counts one completed adaptation
func (r *Recorder) RecordAdaptation() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.adaptationCount++
}

// ObserveResponseTime folds one response latency into the rolling average
func (r *Recorder) ObserveResponseTime(d time.Duration) {
	if d < 0 {
		d = 0
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.responseSamples++
	ms := float64(d) / float64(time.Millisecond)
	r.avgResponseMs += (ms - r.avgResponseMs) / float64(r.responseSamples)
}

// SetMemoryUsage records the node's current memory footprint in MB
func (r *Recorder) SetMemoryUsage(mb float64) {
	if mb < 0 {
		mb = 0
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.memoryMB = mb
}

// SuccessRate returns successes/(successes+errors), 1.0 before any sample
func (r *Recorder) SuccessRate() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.successRateLocked()
}

func (r *Recorder) successRateLocked() float64 {
	total := r.successes + r.errorCount
	if total == 0 {
		return 1.0
	}
	return float64(r.successes) / float64(total)
}

// ErrorCount returns the accumulated error counter
func (r *Recorder) ErrorCount() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.errorCount
}

// Uptime returns the time elapsed since the node was created
func (r *Recorder) Uptime() time.Duration {
	return time.Since(r.createdAt)
}

// Snapshot serializes the metrics as a flat mapping with stable field
// names, suitable for direct persistence and partial merges.
func (r *Recorder) Snapshot() store.Document {
	r.mu.Lock()
	defer r.mu.Unlock()

	return store.Document{
		"uptime_seconds":          time.Since(r.createdAt).Seconds(),
		"processing_success_rate": r.successRateLocked(),
		"learning_iterations":     r.learningIterations,
		"adaptation_count":        r.adaptationCount,
		"error_count":             r.errorCount,
		"avg_response_time_ms":    r.avgResponseMs,
		"memory_usage_mb":         r.memoryMB,
	}
}
