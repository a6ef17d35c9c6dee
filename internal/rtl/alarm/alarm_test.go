package alarm

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func newMonitor() *Monitor {
	return &Monitor{Threshold: 150, Debounce: 3}
}

// observe pushes an event through a tick boundary so pulses retire the
// way they do in the running core.
func observe(m *Monitor, classID, conf uint8) bool {
	m.Step()
	m.Observe(classID, conf)
	return m.Pulse()
}

func TestAlarmActivatesAfterDebounceCount(t *testing.T) {
	t.Parallel()

	m := newMonitor()

	assert.False(t, observe(m, 1, 200))
	assert.False(t, m.Active())
	assert.False(t, observe(m, 1, 200))
	assert.False(t, m.Active())

	// third consecutive confident fault crosses the debounce count
	assert.True(t, observe(m, 1, 200))
	assert.True(t, m.Active())
	assert.Equal(t, uint8(1), m.LastFault())
}

func TestPulseFiresExactlyOnceOnTransition(t *testing.T) {
	t.Parallel()

	m := newMonitor()
	pulses := 0
	for i := 0; i < 10; i++ {
		if observe(m, 2, 255) {
			pulses++
		}
	}
	assert.Equal(t, 1, pulses)
	assert.True(t, m.Active())

	// pulse is single-tick: gone after the next step
	m.Step()
	assert.False(t, m.Pulse())
}

func TestConfidentHealthyResetsAndDeactivates(t *testing.T) {
	t.Parallel()

	m := newMonitor()
	for i := 0; i < 3; i++ {
		observe(m, 3, 200)
	}
	assert.True(t, m.Active())

	assert.False(t, observe(m, HealthyClass, 200))
	assert.False(t, m.Active())
	assert.Zero(t, m.Counter())

	// a fresh streak is required before the alarm can latch again
	observe(m, 3, 200)
	observe(m, 3, 200)
	assert.False(t, m.Active())
	assert.True(t, observe(m, 3, 200))
	assert.True(t, m.Active())
}

func TestLowConfidenceFaultResetsCounterButKeepsAlarm(t *testing.T) {
	t.Parallel()

	m := newMonitor()

	// a low-confidence fault breaks a developing streak
	observe(m, 1, 200)
	observe(m, 1, 200)
	observe(m, 1, 10)
	assert.Zero(t, m.Counter())
	assert.False(t, m.Active())

	// but once the alarm is latched, a low-confidence fault does not
	// release it; only a confident healthy event does
	for i := 0; i < 3; i++ {
		observe(m, 1, 200)
	}
	assert.True(t, m.Active())
	observe(m, 1, 10)
	assert.True(t, m.Active())
	assert.Zero(t, m.Counter())
}

func TestLowConfidenceHealthyResetsWithoutDeactivating(t *testing.T) {
	t.Parallel()

	m := newMonitor()
	for i := 0; i < 3; i++ {
		observe(m, 2, 200)
	}
	assert.True(t, m.Active())

	observe(m, HealthyClass, 10)
	assert.True(t, m.Active(), "below-threshold healthy event must not release the alarm")
}

func TestCounterSaturatesAtFourBits(t *testing.T) {
	t.Parallel()

	m := &Monitor{Threshold: 100, Debounce: 15}
	for i := 0; i < 40; i++ {
		observe(m, 1, 255)
	}
	assert.Equal(t, uint8(15), m.Counter())
	assert.True(t, m.Active())
}

func TestConfidenceExactlyAtThresholdQualifies(t *testing.T) {
	t.Parallel()

	m := &Monitor{Threshold: 150, Debounce: 1}
	assert.True(t, observe(m, 1, 150))
	assert.True(t, m.Active())
}

func TestZeroDebounceActivatesOnFirstFault(t *testing.T) {
	t.Parallel()

	m := &Monitor{Threshold: 100, Debounce: 0}
	assert.True(t, observe(m, 3, 120))
	assert.True(t, m.Active())
}
