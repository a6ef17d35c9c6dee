// Package nn models the fixed-point inference engine: a two-layer
// fully-connected network (8 → 16 → 4) with INT8 weights and
// activations, computed by a single multiply-accumulate unit that both
// layers share, one MAC per clock tick.
package nn

import "github.com/banshee-data/senseedge/internal/rtl/fixed"

// FeatureReader is the read port into the feature vector memory. Reads
// have a one-cycle latency: the value captured on a tick corresponds to
// the address presented on the previous tick.
type FeatureReader interface {
	Feature(i int) uint8
}

type state int

const (
	stateIdle state = iota
	stateLoadInputs
	stateLayer1
	stateRectify
	stateLayer2
	stateArgmax
	stateDone
)

// Engine is the inference engine state machine.
type Engine struct {
	src    FeatureReader
	params *ParamMem

	st state

	addr      int
	addrValid bool
	loaded    int

	inputs [Inputs]uint8

	neuron int
	term   int
	acc    int32

	hidden  [Hidden]int32
	outputs [Outputs]int32

	scanIdx int
	bestIdx int
	bestVal int32
	classID uint8
	confid  uint8

	lastGranted uint8

	done bool
}

// NewEngine returns an idle inference engine reading features from src
// and parameters from params.
func NewEngine(src FeatureReader, params *ParamMem) *Engine {
	return &Engine{src: src, params: params}
}

// Busy reports whether an inference is in flight.
func (e *Engine) Busy() bool { return e.st != stateIdle }

// Done reports the single-tick completion pulse.
func (e *Engine) Done() bool { return e.done }

// Result returns the latched class id and confidence from the most
// recent completed inference.
func (e *Engine) Result() (classID, confidence uint8) {
	return e.classID, e.confid
}

// LastGranted returns the most recent value pulled through the shared
// feature read port, for arbitration losers in the register layer.
func (e *Engine) LastGranted() uint8 { return e.lastGranted }

// Start begins an inference. Ignored while busy. The caller must not
// start an inference while a parameter write is pending; the register
// layer enforces that gate.
func (e *Engine) Start() {
	if e.st != stateIdle {
		return
	}
	e.st = stateLoadInputs
	e.addr = 0
	e.addrValid = false
	e.loaded = 0
	e.neuron = 0
	e.term = 0
	e.acc = int32(e.params.l1Bias(0))
	e.scanIdx = 0
}

// Step advances the engine by one clock tick.
func (e *Engine) Step() {
	e.done = false

	switch e.st {
	case stateIdle:

	case stateLoadInputs:
		// Same one-step address/data pipeline offset as the transform
		// load: the value captured now belongs to last tick's address.
		if e.addrValid {
			v := e.src.Feature(e.addr)
			e.lastGranted = v
			e.inputs[e.addr] = v
			e.loaded++
			if e.loaded == Inputs {
				e.st = stateLayer1
				e.neuron = 0
				e.term = 0
				e.acc = int32(e.params.l1Bias(0))
				return
			}
			e.addr++
		}
		e.addrValid = true

	case stateLayer1:
		e.acc += int32(e.params.l1Weight(e.neuron, e.term)) * int32(e.inputs[e.term])
		e.term++
		if e.term == Inputs {
			// hidden value lives in a 16-bit signed register
			e.hidden[e.neuron] = int32(fixed.WrapS16(e.acc))
			e.neuron++
			e.term = 0
			if e.neuron == Hidden {
				e.st = stateRectify
			} else {
				e.acc = int32(e.params.l1Bias(e.neuron))
			}
		}

	case stateRectify:
		// single batch clamp of all 16 hidden values
		for i := range e.hidden {
			if e.hidden[i] < 0 {
				e.hidden[i] = 0
			}
		}
		e.st = stateLayer2
		e.neuron = 0
		e.term = 0
		e.acc = int32(e.params.l2Bias(0))

	case stateLayer2:
		e.acc += int32(e.params.l2Weight(e.neuron, e.term)) * e.hidden[e.term]
		e.term++
		if e.term == Hidden {
			// output accumulator is a 24-bit signed register
			e.outputs[e.neuron] = fixed.WrapS24(e.acc)
			e.neuron++
			e.term = 0
			if e.neuron == Outputs {
				e.st = stateArgmax
				e.scanIdx = 0
			} else {
				e.acc = int32(e.params.l2Bias(e.neuron))
			}
		}

	case stateArgmax:
		// strict greater-than: the first-seen maximum wins ties
		if e.scanIdx == 0 || e.outputs[e.scanIdx] > e.bestVal {
			e.bestVal = e.outputs[e.scanIdx]
			e.bestIdx = e.scanIdx
		}
		e.scanIdx++
		if e.scanIdx == Outputs {
			e.st = stateDone
		}

	case stateDone:
		e.classID = uint8(e.bestIdx)
		e.confid = fixed.SatU8(e.bestVal)
		e.st = stateIdle
		e.done = true
	}
}
