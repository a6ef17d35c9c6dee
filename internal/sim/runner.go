// Package sim drives the device model from the concurrent host world:
// a Runner owns the core, serializes all access behind a mutex, and
// advances the clock in timed slices so the HTTP and recording layers
// can observe a consistently paced device.
package sim

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/banshee-data/senseedge/internal/config"
	"github.com/banshee-data/senseedge/internal/monitoring"
	"github.com/banshee-data/senseedge/internal/rtl/adc"
	"github.com/banshee-data/senseedge/internal/rtl/core"
	"github.com/banshee-data/senseedge/internal/rtl/nn"
	"github.com/banshee-data/senseedge/internal/rtl/regfile"
)

var logf = monitoring.Prefixed("[sim] ")

// Runner serializes access to a device core. All methods are safe for
// concurrent use.
type Runner struct {
	mu   sync.Mutex
	core *core.Core
}

// New builds a runner around a fresh core fed by stream.
func New(stream adc.SampleStream) *Runner {
	return &Runner{core: core.New(stream)}
}

// Boot performs the controller bring-up sequence: parameter load,
// clock divider, alarm configuration, interrupt clear, then enable.
func (r *Runner) Boot(cfg *config.TuningConfig, flat [nn.ParamCount]int8) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.core.LoadParams(flat); err != nil {
		return fmt.Errorf("parameter load: %w", err)
	}
	if err := r.core.BusWrite(regfile.RegClkDiv, uint32(cfg.GetClkDiv())); err != nil {
		return fmt.Errorf("clock divider: %w", err)
	}
	alarmCfg := uint32(cfg.GetAlarmThreshold()) | uint32(cfg.GetDebounceCount())<<8
	if err := r.core.BusWrite(regfile.RegAlarmCfg, alarmCfg); err != nil {
		return fmt.Errorf("alarm config: %w", err)
	}
	if err := r.core.BusWrite(regfile.RegIRQFlags, regfile.IRQClassDone|regfile.IRQAlarm); err != nil {
		return fmt.Errorf("interrupt clear: %w", err)
	}

	ctrl := uint32(1)
	if cfg.GetIRQClassDone() {
		ctrl |= regfile.IRQClassDone << 8
	}
	if cfg.GetIRQAlarm() {
		ctrl |= regfile.IRQAlarm << 8
	}
	if err := r.core.BusWrite(regfile.RegCtrl, ctrl); err != nil {
		return fmt.Errorf("enable: %w", err)
	}

	logf("boot complete: clk_div=%d threshold=%d debounce=%d",
		cfg.GetClkDiv(), cfg.GetAlarmThreshold(), cfg.GetDebounceCount())
	return nil
}

// StepTicks advances the device n clock ticks and returns the
// classifications completed during them.
func (r *Runner) StepTicks(n int) []core.Classification {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := 0; i < n; i++ {
		r.core.Step()
	}
	return r.core.DrainEvents()
}

// Run advances the device in timed slices until the context is
// cancelled, passing each batch of completed classifications to
// handler. Handler runs on the run loop; keep it short.
func (r *Runner) Run(ctx context.Context, ticksPerSlice int, interval time.Duration, handler func([]core.Classification)) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			events := r.StepTicks(ticksPerSlice)
			if len(events) > 0 && handler != nil {
				handler(events)
			}
		}
	}
}

// Snapshot captures current device state.
func (r *Runner) Snapshot() core.Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.core.Snapshot()
}

// ReloadParams streams a new parameter image through the bus while the
// device keeps running.
func (r *Runner) ReloadParams(flat [nn.ParamCount]int8) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.core.LoadParams(flat)
}

// WriteRegister performs a bus write from the host side.
func (r *Runner) WriteRegister(addr, data uint32) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.core.BusWrite(addr, data)
}

// ReadRegister performs a bus read from the host side.
func (r *Runner) ReadRegister(addr uint32) (uint32, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.core.BusRead(addr)
}
