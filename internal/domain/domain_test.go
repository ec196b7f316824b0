package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRunStatusTerminal(t *testing.T) {
	assert.False(t, RunIdle.Terminal())
	assert.False(t, RunRunning.Terminal())
	assert.True(t, RunDone.Terminal())
	assert.True(t, RunError.Terminal())
	assert.True(t, RunCancelled.Terminal())
}
