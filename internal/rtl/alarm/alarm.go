// Package alarm models the fault debounce logic: a saturating
// consecutive-fault counter that latches a persistent alarm flag once a
// configured streak of confident fault classifications accumulates.
package alarm

import "github.com/banshee-data/senseedge/internal/rtl/fixed"

// HealthyClass is the class id that clears a fault streak.
const HealthyClass = 0

const counterBits = 4

// Monitor holds the debounce state. Threshold and Debounce mirror the
// ALARM_CFG register fields and may change between events.
type Monitor struct {
	Threshold uint8
	Debounce  uint8

	counter   uint8
	active    bool
	lastFault uint8

	pulse bool
}

// Active reports the persistent alarm flag.
func (m *Monitor) Active() bool { return m.active }

// Pulse reports the single-tick interrupt pulse raised on the
// inactive-to-active transition.
func (m *Monitor) Pulse() bool { return m.pulse }

// Counter returns the current consecutive-fault count.
func (m *Monitor) Counter() uint8 { return m.counter }

// LastFault returns the most recent fault class that qualified.
func (m *Monitor) LastFault() uint8 { return m.lastFault }

// Step advances one clock tick, retiring any pending pulse.
func (m *Monitor) Step() { m.pulse = false }

// Observe feeds one classification event into the debounce logic.
//
// A confident fault (non-healthy class at or above the threshold)
// extends the streak; reaching the debounce count while inactive
// latches the alarm and fires the pulse, exactly once per transition.
// Every other event resets the streak, but only a confident healthy
// event additionally releases an active alarm: a low-confidence fault
// clears the counter without touching the latch. That asymmetry is
// intentional and must be preserved.
func (m *Monitor) Observe(classID, confidence uint8) {
	if classID != HealthyClass && confidence >= m.Threshold {
		m.counter = fixed.SatCount(m.counter, counterBits)
		m.lastFault = classID
		if !m.active && m.counter >= m.Debounce {
			m.active = true
			m.pulse = true
		}
		return
	}

	m.counter = 0
	if classID == HealthyClass && confidence >= m.Threshold && m.active {
		m.active = false
	}
}
