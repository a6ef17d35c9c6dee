// Package core is the composition root for the SenseEdge pipeline
// model: it owns the acquisition sequencer, the three compute engines,
// the alarm monitor and the register file, and advances them all on a
// single logical clock.
//
// Cross-engine signalling follows the RTL: completion pulses observed
// on one tick trigger the downstream start on that same tick, and the
// pipeline is strictly single-flight. A batch-ready pulse arriving
// while any stage is busy is dropped.
package core

import (
	"fmt"

	"github.com/banshee-data/senseedge/internal/rtl/adc"
	"github.com/banshee-data/senseedge/internal/rtl/alarm"
	"github.com/banshee-data/senseedge/internal/rtl/feature"
	"github.com/banshee-data/senseedge/internal/rtl/fft"
	"github.com/banshee-data/senseedge/internal/rtl/nn"
	"github.com/banshee-data/senseedge/internal/rtl/regfile"
)

// Classification is one completed inference, as observed at the result
// latch.
type Classification struct {
	Tick        uint64
	ClassID     uint8
	Confidence  uint8
	AlarmActive bool
	AlarmRaised bool
}

// Core is the full device model.
type Core struct {
	ADC    *adc.Sequencer
	FFT    *fft.Engine
	FE     *feature.Engine
	NN     *nn.Engine
	Alarm  *alarm.Monitor
	Params *nn.ParamMem
	Regs   *regfile.File

	tick uint64

	// inference start held back while a parameter write is in flight
	nnStartPending bool

	batches uint64
	dropped uint64

	events []Classification
}

// New builds a core acquiring samples from stream.
func New(stream adc.SampleStream) *Core {
	c := &Core{}
	c.ADC = adc.NewSequencer(stream)
	c.FFT = fft.NewEngine(c.ADC)
	c.FE = feature.NewEngine(c.FFT)
	c.Params = new(nn.ParamMem)
	c.NN = nn.NewEngine(c.FE, c.Params)
	c.Alarm = &alarm.Monitor{}
	c.Regs = regfile.New(c.FFT, c.FE, c.Params, c.status)
	c.Regs.SetConsumers(c.FE, c.NN)
	return c
}

// Tick returns the number of clock ticks stepped so far.
func (c *Core) Tick() uint64 { return c.tick }

// Batches returns how many acquisition batches completed.
func (c *Core) Batches() uint64 { return c.batches }

// DroppedBatches returns how many batch-ready pulses arrived while the
// pipeline was busy and were ignored.
func (c *Core) DroppedBatches() uint64 { return c.dropped }

func (c *Core) status() uint32 {
	var s uint32
	if c.Regs.Enabled() {
		s |= regfile.StatusEnable
	}
	if c.FFT.Busy() {
		s |= regfile.StatusFFTBusy
	}
	if c.NN.Busy() {
		s |= regfile.StatusNNBusy
	}
	if c.FE.Busy() {
		s |= regfile.StatusFEBusy
	}
	if c.Alarm.Active() {
		s |= regfile.StatusAlarm
	}
	return s
}

func (c *Core) pipelineIdle() bool {
	return !c.FFT.Busy() && !c.FE.Busy() && !c.NN.Busy() && !c.nnStartPending
}

// Step advances the whole model one clock tick.
func (c *Core) Step() {
	c.tick++

	// bus first: a pending parameter write lands before any engine
	// observes the weight memory this tick
	c.Regs.Step()
	c.Alarm.Step()

	c.ADC.SetEnabled(c.Regs.Enabled())
	c.ADC.SetDivider(c.Regs.ClkDiv())
	c.ADC.Step()

	c.FFT.Step()
	c.FE.Step()
	c.NN.Step()

	if c.NN.Done() {
		classID, conf := c.NN.Result()
		c.Regs.SetClassResult(classID, conf)
		c.Regs.RaiseIRQ(regfile.IRQClassDone)

		c.Alarm.Threshold = c.Regs.AlarmThreshold()
		c.Alarm.Debounce = c.Regs.DebounceCount()
		c.Alarm.Observe(classID, conf)
		raised := c.Alarm.Pulse()
		if raised {
			c.Regs.RaiseIRQ(regfile.IRQAlarm)
			diagf("alarm latched: class=%d conf=%d streak=%d", classID, conf, c.Alarm.Counter())
		}

		tracef("classification: class=%d conf=%d alarm=%v", classID, conf, c.Alarm.Active())
		c.events = append(c.events, Classification{
			Tick:        c.tick,
			ClassID:     classID,
			Confidence:  conf,
			AlarmActive: c.Alarm.Active(),
			AlarmRaised: raised,
		})
	}

	if c.FE.Done() {
		c.nnStartPending = true
	}
	if c.nnStartPending && !c.NN.Busy() && !c.Regs.ParamWritePending() {
		c.nnStartPending = false
		c.NN.Start()
	}

	if c.FFT.Done() {
		c.FE.Start()
	}

	if c.ADC.BatchReady() {
		c.batches++
		if c.pipelineIdle() {
			tracef("batch %d: transform start", c.batches)
			c.FFT.Start()
		} else {
			c.dropped++
			opsf("batch %d dropped: pipeline busy", c.batches)
		}
	}
}

// DrainEvents returns the classifications completed since the last
// drain, oldest first.
func (c *Core) DrainEvents() []Classification {
	ev := c.events
	c.events = nil
	return ev
}

// busTimeout bounds how many ticks a helper transaction may wait for
// its acknowledge. The slave acks one tick after accept, so anything
// beyond a handful of ticks is a wiring bug.
const busTimeout = 16

// BusWrite performs a full-word register write through the bus model,
// stepping the core until the acknowledge arrives.
func (c *Core) BusWrite(addr, data uint32) error {
	return c.busOp(regfile.Transaction{Addr: addr, Data: data, ByteMask: 0xF, Write: true})
}

// BusRead performs a register read through the bus model.
func (c *Core) BusRead(addr uint32) (uint32, error) {
	if err := c.busOp(regfile.Transaction{Addr: addr, Read: true}); err != nil {
		return 0, err
	}
	return c.Regs.Data(), nil
}

func (c *Core) busOp(tx regfile.Transaction) error {
	for i := 0; i < busTimeout; i++ {
		if c.Regs.Submit(tx) {
			break
		}
		c.Step()
	}
	for i := 0; i < busTimeout; i++ {
		c.Step()
		if c.Regs.Ack() {
			return nil
		}
	}
	return fmt.Errorf("bus transaction at 0x%02x: no acknowledge", tx.Addr)
}

// LoadParams writes a flat 212-entry parameter image through the bus
// weight-load port, the way the boot firmware does.
func (c *Core) LoadParams(flat [nn.ParamCount]int8) error {
	for addr, v := range flat {
		word := uint32(addr)<<8 | uint32(uint8(v))
		if err := c.BusWrite(regfile.RegParamBase, word); err != nil {
			return fmt.Errorf("parameter %d: %w", addr, err)
		}
	}
	return nil
}

// Snapshot is a host-side view of live device state, read behind the
// bus (not through it); cursor semantics do not apply.
type Snapshot struct {
	Tick       uint64
	Enabled    bool
	FFTBusy    bool
	FEBusy     bool
	NNBusy     bool
	Alarm      bool
	ClassID    uint8
	Confidence uint8
	Bins       [fft.Bins]uint16
	Features   [feature.Count]uint8
	Batches    uint64
	Dropped    uint64
}

// Snapshot captures the current device state for monitoring surfaces.
func (c *Core) Snapshot() Snapshot {
	s := Snapshot{
		Tick:    c.tick,
		Enabled: c.Regs.Enabled(),
		FFTBusy: c.FFT.Busy(),
		FEBusy:  c.FE.Busy(),
		NNBusy:  c.NN.Busy(),
		Alarm:   c.Alarm.Active(),
		Batches: c.batches,
		Dropped: c.dropped,
	}
	s.ClassID, s.Confidence = c.Regs.ClassResult()
	for i := 0; i < fft.Bins; i++ {
		s.Bins[i] = c.FFT.Bin(i)
	}
	for i := 0; i < feature.Count; i++ {
		s.Features[i] = c.FE.Feature(i)
	}
	return s
}
