package supervisor

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStopBusTriggerRunsSubscribers(t *testing.T) {
	bus := NewStopBus()

	fired := 0
	bus.Subscribe(func() { fired++ })

	bus.Trigger()
	assert.Equal(t, 1, fired)

	// Second trigger is a no-op
	bus.Trigger()
	assert.Equal(t, 1, fired)
}

func TestStopBusCancelPreventsCallback(t *testing.T) {
	bus := NewStopBus()

	fired := false
	cancel := bus.Subscribe(func() { fired = true })
	cancel()
	cancel() // idempotent

	bus.Trigger()
	assert.False(t, fired)
}

func TestStopBusSubscribeAfterTriggerFiresImmediately(t *testing.T) {
	bus := NewStopBus()
	bus.Trigger()

	fired := false
	bus.Subscribe(func() { fired = true })
	assert.True(t, fired)
}
