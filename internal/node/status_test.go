package node

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from    Status
		to      Status
		allowed bool
	}{
		{StatusBootstrapping, StatusActive, true},
		{StatusBootstrapping, StatusLearning, false},
		{StatusBootstrapping, StatusDegraded, false},
		{StatusBootstrapping, StatusOffline, true},

		{StatusActive, StatusLearning, true},
		{StatusActive, StatusAdapting, true},
		{StatusActive, StatusDegraded, true},
		{StatusActive, StatusOffline, true},
		{StatusActive, StatusBootstrapping, false},

		{StatusLearning, StatusActive, true},
		{StatusLearning, StatusAdapting, true},
		{StatusLearning, StatusDegraded, true},
		{StatusAdapting, StatusLearning, true},
		{StatusAdapting, StatusActive, true},

		{StatusDegraded, StatusActive, true},
		{StatusDegraded, StatusLearning, false},
		{StatusDegraded, StatusAdapting, false},
		{StatusDegraded, StatusOffline, true},

		{StatusOffline, StatusActive, false},
		{StatusOffline, StatusBootstrapping, false},
		{StatusOffline, StatusDegraded, false},
		{StatusOffline, StatusOffline, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"_to_"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.allowed, canTransition(tt.from, tt.to))
		})
	}
}

func TestParseCapability(t *testing.T) {
	cap, err := ParseCapability("data_processing")
	assert.NoError(t, err)
	assert.Equal(t, CapabilityDataProcessing, cap)

	_, err = ParseCapability("time_travel")
	assert.Error(t, err)
}

func TestOperational(t *testing.T) {
	assert.True(t, StatusActive.operational())
	assert.True(t, StatusLearning.operational())
	assert.True(t, StatusAdapting.operational())
	assert.False(t, StatusBootstrapping.operational())
	assert.False(t, StatusDegraded.operational())
	assert.False(t, StatusOffline.operational())
}
