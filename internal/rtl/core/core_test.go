package core

import (
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/senseedge/internal/rtl/nn"
	"github.com/banshee-data/senseedge/internal/rtl/regfile"
)

// toneStream generates a pure sinusoid landing on one transform bin.
type toneStream struct {
	n   int
	bin int
	amp float64
}

func (s *toneStream) Next() int16 {
	v := s.amp * math.Sin(2*math.Pi*float64(s.bin)*float64(s.n)/64)
	s.n++
	return int16(v)
}

// biasOnlyParams builds a parameter image with all weights zero and the
// given output biases, so every inference yields argmax(biases)
// regardless of the input signal.
func biasOnlyParams(biases [4]int8) [nn.ParamCount]int8 {
	var flat [nn.ParamCount]int8
	for n, b := range biases {
		flat[208+n] = b
	}
	return flat
}

// boot drives the same bring-up sequence the controller firmware uses:
// weight load, clock divider, alarm config, interrupt clear, enable.
func boot(t *testing.T, c *Core, flat [nn.ParamCount]int8, threshold, debounce uint8) {
	t.Helper()
	require.NoError(t, c.LoadParams(flat))
	require.NoError(t, c.BusWrite(regfile.RegClkDiv, 1))
	require.NoError(t, c.BusWrite(regfile.RegAlarmCfg, uint32(threshold)|uint32(debounce)<<8))
	require.NoError(t, c.BusWrite(regfile.RegIRQFlags, regfile.IRQClassDone|regfile.IRQAlarm))
	require.NoError(t, c.BusWrite(regfile.RegCtrl, 1|regfile.IRQClassDone<<8|regfile.IRQAlarm<<8))
}

func stepN(c *Core, n int) {
	for i := 0; i < n; i++ {
		c.Step()
	}
}

func TestPipelineProducesClassification(t *testing.T) {
	t.Parallel()

	c := New(&toneStream{bin: 6, amp: 1500})
	boot(t, c, biasOnlyParams([4]int8{5, 0, 100, 0}), 50, 2)

	stepN(c, 2000)
	events := c.DrainEvents()
	require.NotEmpty(t, events, "enabled core must classify within the window")

	for _, ev := range events {
		assert.Equal(t, uint8(2), ev.ClassID)
		assert.Equal(t, uint8(100), ev.Confidence)
	}

	// the latched result register agrees with the event stream
	got, err := c.BusRead(regfile.RegClassResult)
	require.NoError(t, err)
	assert.Equal(t, uint32(2|100<<2), got)
}

func TestAlarmLatchesAfterDebouncedFaultStreak(t *testing.T) {
	t.Parallel()

	c := New(&toneStream{bin: 6, amp: 1500})
	boot(t, c, biasOnlyParams([4]int8{0, 90, 0, 0}), 50, 2)

	stepN(c, 6000)
	events := c.DrainEvents()
	require.GreaterOrEqual(t, len(events), 3)

	raised := 0
	for i, ev := range events {
		if ev.AlarmRaised {
			raised++
			assert.Equal(t, 1, i, "second confident fault crosses a debounce count of 2")
		}
		assert.Equal(t, i >= 1, ev.AlarmActive)
	}
	assert.Equal(t, 1, raised, "transition pulse fires exactly once")

	status, err := c.BusRead(regfile.RegStatus)
	require.NoError(t, err)
	assert.NotZero(t, status&regfile.StatusAlarm)

	flags, err := c.BusRead(regfile.RegIRQFlags)
	require.NoError(t, err)
	assert.Equal(t, uint32(regfile.IRQClassDone|regfile.IRQAlarm), flags)
	assert.True(t, c.Regs.IRQLine())
}

func TestIRQFlagsClearOverTheBus(t *testing.T) {
	t.Parallel()

	c := New(&toneStream{bin: 4, amp: 1200})
	boot(t, c, biasOnlyParams([4]int8{0, 0, 0, 60}), 40, 0)

	stepN(c, 2000)
	require.NotEmpty(t, c.DrainEvents())

	// quiesce before clearing so a late completion cannot re-raise
	require.NoError(t, c.BusWrite(regfile.RegCtrl, 0))
	stepN(c, 2000)
	c.DrainEvents()

	require.NoError(t, c.BusWrite(regfile.RegIRQFlags, regfile.IRQClassDone|regfile.IRQAlarm))
	flags, err := c.BusRead(regfile.RegIRQFlags)
	require.NoError(t, err)
	assert.Zero(t, flags)
	assert.False(t, c.Regs.IRQLine())
}

func TestDisabledCoreProducesNothing(t *testing.T) {
	t.Parallel()

	c := New(&toneStream{bin: 6, amp: 1500})
	require.NoError(t, c.LoadParams(biasOnlyParams([4]int8{0, 0, 100, 0})))

	stepN(c, 2000)
	assert.Empty(t, c.DrainEvents())
	assert.Zero(t, c.Batches())
}

func TestBusyPipelineDropsBatches(t *testing.T) {
	t.Parallel()

	// divider 1 delivers a batch every 64 ticks; a full pipeline pass
	// takes far longer, so most batches must be dropped, not queued
	c := New(&toneStream{bin: 6, amp: 1500})
	boot(t, c, biasOnlyParams([4]int8{0, 100, 0, 0}), 50, 2)

	stepN(c, 6000)
	assert.Greater(t, c.DroppedBatches(), uint64(0))
	assert.Greater(t, c.Batches(), c.DroppedBatches())
}

func TestRunIsDeterministic(t *testing.T) {
	t.Parallel()

	run := func() ([]Classification, Snapshot) {
		c := New(&toneStream{bin: 9, amp: 1400})
		boot(t, c, biasOnlyParams([4]int8{10, 80, 0, -5}), 60, 1)
		stepN(c, 5000)
		return c.DrainEvents(), c.Snapshot()
	}

	eventsA, snapA := run()
	eventsB, snapB := run()
	if diff := cmp.Diff(eventsA, eventsB); diff != "" {
		t.Fatalf("event streams diverge (-a +b):\n%s", diff)
	}
	if diff := cmp.Diff(snapA, snapB); diff != "" {
		t.Fatalf("snapshots diverge (-a +b):\n%s", diff)
	}
}

func TestParameterReloadChangesClassification(t *testing.T) {
	t.Parallel()

	c := New(&toneStream{bin: 6, amp: 1500})
	boot(t, c, biasOnlyParams([4]int8{0, 0, 100, 0}), 50, 2)

	stepN(c, 2000)
	for _, ev := range c.DrainEvents() {
		assert.Equal(t, uint8(2), ev.ClassID)
	}

	// live reload while the pipeline keeps running; inference starts are
	// held back around each in-flight parameter write
	require.NoError(t, c.LoadParams(biasOnlyParams([4]int8{120, 0, 0, 0})))
	c.DrainEvents()

	stepN(c, 2000)
	events := c.DrainEvents()
	require.NotEmpty(t, events)
	last := events[len(events)-1]
	assert.Equal(t, uint8(0), last.ClassID)
	assert.Equal(t, uint8(120), last.Confidence)
}

func TestSnapshotReflectsSpectrumAndResult(t *testing.T) {
	t.Parallel()

	c := New(&toneStream{bin: 6, amp: 1500})
	boot(t, c, biasOnlyParams([4]int8{0, 0, 0, 70}), 50, 2)

	stepN(c, 2000)
	require.NotEmpty(t, c.DrainEvents())

	s := c.Snapshot()
	assert.True(t, s.Enabled)
	assert.Equal(t, uint8(3), s.ClassID)
	assert.Equal(t, uint8(70), s.Confidence)

	// the tone shows up as the dominant magnitude bin
	peak := 0
	for i, m := range s.Bins {
		if m > s.Bins[peak] {
			peak = i
		}
	}
	assert.Equal(t, 6, peak)
	assert.NotZero(t, s.Features[4], "peak-bin feature tracks the tone")
}

func TestSpectrumReadbackThroughCursor(t *testing.T) {
	t.Parallel()

	c := New(&toneStream{bin: 6, amp: 1500})
	boot(t, c, biasOnlyParams([4]int8{0, 100, 0, 0}), 50, 2)

	stepN(c, 2000)
	require.NotEmpty(t, c.DrainEvents())

	// stop acquisition so the spectrum holds still during readback
	require.NoError(t, c.BusWrite(regfile.RegCtrl, 0))
	stepN(c, 2000)
	snap := c.Snapshot()

	require.NoError(t, c.BusWrite(regfile.RegBinData, 0))
	for i := 0; i < 32; i++ {
		got, err := c.BusRead(regfile.RegBinData)
		require.NoError(t, err)
		assert.Equal(t, uint32(snap.Bins[i]), got, "bin %d", i)
	}
}
