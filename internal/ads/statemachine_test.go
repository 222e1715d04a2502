package ads

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"adxchange/internal/types"
)

func TestIsValidTransition_HappyPath(t *testing.T) {
	steps := []struct{ from, to types.AdStatus }{
		{types.AdStatusDraft, types.AdStatusSubmitted},
		{types.AdStatusSubmitted, types.AdStatusPending},
		{types.AdStatusPending, types.AdStatusApproved},
		{types.AdStatusApproved, types.AdStatusRunning},
		{types.AdStatusRunning, types.AdStatusPaused},
		{types.AdStatusPaused, types.AdStatusRunning},
		{types.AdStatusRunning, types.AdStatusCompleted},
	}
	for _, step := range steps {
		assert.True(t, isValidTransition(step.from, step.to), "%s -> %s", step.from, step.to)
	}
}

func TestIsValidTransition_RejectsTerminalReentry(t *testing.T) {
	terminal := []types.AdStatus{types.AdStatusCompleted, types.AdStatusRejected, types.AdStatusCancelled}
	for _, status := range terminal {
		assert.False(t, isValidTransition(status, types.AdStatusRunning))
	}
}

func TestIsValidTransition_RejectsSkippingModeration(t *testing.T) {
	assert.False(t, isValidTransition(types.AdStatusDraft, types.AdStatusRunning))
	assert.False(t, isValidTransition(types.AdStatusDraft, types.AdStatusApproved))
}
