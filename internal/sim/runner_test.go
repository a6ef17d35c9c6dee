package sim

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/senseedge/internal/config"
	"github.com/banshee-data/senseedge/internal/params"
	"github.com/banshee-data/senseedge/internal/rtl/core"
	"github.com/banshee-data/senseedge/internal/rtl/nn"
	"github.com/banshee-data/senseedge/internal/rtl/regfile"
	"github.com/banshee-data/senseedge/internal/scenario"
)

func testScenario() *scenario.Scenario {
	return &scenario.Scenario{
		Name: "steady tone",
		Segments: []scenario.Segment{{
			Label:   "steady",
			Batches: 1,
			Tones:   []scenario.Tone{{Bin: 6, Amplitude: 1500}},
		}},
	}
}

// classTwoAlways returns a parameter image whose output biases make
// class 2 win every inference regardless of input.
func classTwoAlways() [nn.ParamCount]int8 {
	var s params.Set
	s.L2Biases[2] = 100
	return s.Flatten()
}

func TestBootAppliesRegisterConfig(t *testing.T) {
	t.Parallel()

	r := New(testScenario().Stream())
	cfg := &config.TuningConfig{}
	require.NoError(t, r.Boot(cfg, classTwoAlways()))

	clkDiv, err := r.ReadRegister(regfile.RegClkDiv)
	require.NoError(t, err)
	assert.Equal(t, uint32(1), clkDiv)

	alarmCfg, err := r.ReadRegister(regfile.RegAlarmCfg)
	require.NoError(t, err)
	assert.Equal(t, uint32(180|3<<8), alarmCfg)

	ctrl, err := r.ReadRegister(regfile.RegCtrl)
	require.NoError(t, err)
	assert.Equal(t, uint32(0x301), ctrl)
	assert.True(t, r.Snapshot().Enabled)
}

func TestStepTicksDrainsEvents(t *testing.T) {
	t.Parallel()

	r := New(testScenario().Stream())
	require.NoError(t, r.Boot(&config.TuningConfig{}, classTwoAlways()))

	events := r.StepTicks(2000)
	require.NotEmpty(t, events)
	for _, ev := range events {
		assert.Equal(t, uint8(2), ev.ClassID)
		assert.Equal(t, uint8(100), ev.Confidence)
	}

	// drained: an immediate zero-tick step returns nothing
	assert.Empty(t, r.StepTicks(0))
}

func TestRunDeliversEventsUntilCancelled(t *testing.T) {
	t.Parallel()

	r := New(testScenario().Stream())
	require.NoError(t, r.Boot(&config.TuningConfig{}, classTwoAlways()))

	ctx, cancel := context.WithCancel(context.Background())

	var mu sync.Mutex
	var got []core.Classification
	done := make(chan error, 1)
	go func() {
		done <- r.Run(ctx, 500, time.Millisecond, func(events []core.Classification) {
			mu.Lock()
			got = append(got, events...)
			mu.Unlock()
		})
	}()

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) > 0
	}, 5*time.Second, 5*time.Millisecond)

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}

func TestSnapshotIsSafeDuringRun(t *testing.T) {
	t.Parallel()

	r := New(testScenario().Stream())
	require.NoError(t, r.Boot(&config.TuningConfig{}, classTwoAlways()))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- r.Run(ctx, 500, time.Millisecond, nil)
	}()

	deadline := time.Now().Add(200 * time.Millisecond)
	var last uint64
	for time.Now().Before(deadline) {
		snap := r.Snapshot()
		require.GreaterOrEqual(t, snap.Tick, last)
		last = snap.Tick
	}
	assert.NotZero(t, last)

	cancel()
	<-done
}

func TestReloadParamsChangesResults(t *testing.T) {
	t.Parallel()

	r := New(testScenario().Stream())
	require.NoError(t, r.Boot(&config.TuningConfig{}, classTwoAlways()))
	r.StepTicks(2000)

	var s params.Set
	s.L2Biases[1] = 90
	require.NoError(t, r.ReloadParams(s.Flatten()))
	r.StepTicks(1000)

	events := r.StepTicks(2000)
	require.NotEmpty(t, events)
	last := events[len(events)-1]
	assert.Equal(t, uint8(1), last.ClassID)
	assert.Equal(t, uint8(90), last.Confidence)
}
