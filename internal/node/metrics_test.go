package node

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorder_SuccessRate(t *testing.T) {
	r := NewRecorder(time.Now())

	// No samples yet: a fresh node has not failed anything
	assert.Equal(t, 1.0, r.SuccessRate())

	r.RecordSuccess()
	r.RecordSuccess()
	r.RecordSuccess()
	r.RecordError()

	assert.InDelta(t, 0.75, r.SuccessRate(), 1e-9)
	assert.Equal(t, uint64(1), r.ErrorCount())
}

func TestRecorder_RollingResponseAverage(t *testing.T) {
	r := NewRecorder(time.Now())

	r.ObserveResponseTime(10 * time.Millisecond)
	r.ObserveResponseTime(30 * time.Millisecond)

	snap := r.Snapshot()
	assert.InDelta(t, 20.0, snap["avg_response_time_ms"].(float64), 1e-9)
}

func TestRecorder_NegativeInputsClamped(t *testing.T) {
	r := NewRecorder(time.Now())

	r.ObserveResponseTime(-5 * time.Millisecond)
	r.SetMemoryUsage(-1)

	snap := r.Snapshot()
	assert.Equal(t, 0.0, snap["avg_response_time_ms"])
	assert.Equal(t, 0.0, snap["memory_usage_mb"])
}

func TestRecorder_UptimeDerivedFromCreation(t *testing.T) {
	r := NewRecorder(time.Now().Add(-2 * time.Second))

	assert.GreaterOrEqual(t, r.Uptime(), 2*time.Second)

	snap := r.Snapshot()
	assert.GreaterOrEqual(t, snap["uptime_seconds"].(float64), 2.0)
}

func TestRecorder_SnapshotFieldNames(t *testing.T) {
	r := NewRecorder(time.Now())
	r.RecordLearningIteration()
	r.RecordAdaptation()
	r.RecordAdaptation()
	r.SetMemoryUsage(128.5)

	snap := r.Snapshot()

	require.Contains(t, snap, "uptime_seconds")
	require.Contains(t, snap, "processing_success_rate")
	require.Contains(t, snap, "learning_iterations")
	require.Contains(t, snap, "adaptation_count")
	require.Contains(t, snap, "error_count")
	require.Contains(t, snap, "avg_response_time_ms")
	require.Contains(t, snap, "memory_usage_mb")

	assert.Equal(t, uint64(1), snap["learning_iterations"])
	assert.Equal(t, uint64(2), snap["adaptation_count"])
	assert.Equal(t, 128.5, snap["memory_usage_mb"])

	// Flat mapping only: no nested structures survive serialization
	for field, value := range snap {
		switch value.(type) {
		case float64, uint64, string, int64:
		default:
			t.Errorf("field %s has non-scalar type %T", field, value)
		}
	}
}
