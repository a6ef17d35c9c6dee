// Package fft models the 64-point spectral transform engine: a radix-2
// decimation-in-time transform computed by a single arithmetic unit
// time-multiplexed across six stages, one butterfly per clock tick.
//
// The engine loads samples in bit-reversed order, runs 6 stages of 32
// butterflies each against a 32-entry Q15 rotation table, then derives
// a magnitude per bin with the max + min/2 approximation. Only bins
// 0..31 are exposed; the upper half of the spectrum mirrors the lower
// for real input.
package fft

import (
	"math"

	"github.com/banshee-data/senseedge/internal/rtl/fixed"
)

const (
	// Points is the transform size.
	Points = 64
	// Bins is the number of exposed magnitude bins (DC..Nyquist-1).
	Bins = 32

	stages          = 6
	pairsPerStage   = 32
	twiddleFraction = 15 // Q1.15 rotation factors
)

// SampleReader is the read port into the acquisition batch buffer.
// Reads have a one-cycle latency: the value returned corresponds to the
// address presented on the previous tick.
type SampleReader interface {
	Sample(addr int) int16
}

// twiddleCos/twiddleSin hold the Q15 rotation table for e^{-j*2*pi*k/64},
// k in 0..31: w[k] = cos - j*sin.
var (
	twiddleCos [pairsPerStage]int32
	twiddleSin [pairsPerStage]int32
)

func init() {
	for k := 0; k < pairsPerStage; k++ {
		angle := 2 * math.Pi * float64(k) / float64(Points)
		twiddleCos[k] = int32(math.Round(32767 * math.Cos(angle)))
		twiddleSin[k] = int32(math.Round(32767 * math.Sin(angle)))
	}
}

// bitReverse6 reverses the low 6 bits of v.
func bitReverse6(v int) int {
	r := 0
	for b := 0; b < 6; b++ {
		r = (r << 1) | (v & 1)
		v >>= 1
	}
	return r
}

type state int

const (
	stateIdle state = iota
	stateLoad
	stateCompute
	stateMagnitude
)

// Engine is the transform engine state, advanced one tick per Step.
type Engine struct {
	src SampleReader

	st state

	// bit-reversed load bookkeeping. addr is the address presented on
	// the previous tick; its data is captured on the current tick.
	addr      int
	addrValid bool
	loaded    int

	// working storage: extended-precision complex values so six stages
	// of growth cannot overflow a 16-bit field.
	re [Points]int32
	im [Points]int32

	stage int
	pair  int

	magIdx int
	mag    [Bins]uint16

	done bool
}

// NewEngine returns an idle transform engine reading samples from src.
func NewEngine(src SampleReader) *Engine {
	return &Engine{src: src}
}

// Busy reports whether a transform is in flight.
func (e *Engine) Busy() bool { return e.st != stateIdle }

// Done reports the single-tick completion pulse.
func (e *Engine) Done() bool { return e.done }

// Bin returns the magnitude at bin i (0..31). Out-of-range reads are
// zero. Values are only meaningful while the engine is idle.
func (e *Engine) Bin(i int) uint16 {
	if i < 0 || i >= Bins {
		return 0
	}
	return e.mag[i]
}

// Start begins a transform. A start pulse while busy is ignored.
func (e *Engine) Start() {
	if e.st != stateIdle {
		return
	}
	e.st = stateLoad
	e.addr = 0
	e.addrValid = false
	e.loaded = 0
	e.stage = 0
	e.pair = 0
	e.magIdx = 0
}

// Step advances the engine by one clock tick.
func (e *Engine) Step() {
	e.done = false

	switch e.st {
	case stateIdle:

	case stateLoad:
		// One-cycle read latency: capture the word for the address set
		// last tick, then present the next address.
		if e.addrValid {
			v := int32(e.src.Sample(e.addr))
			e.re[bitReverse6(e.addr)] = v
			e.im[bitReverse6(e.addr)] = 0
			e.loaded++
			if e.loaded == Points {
				e.st = stateCompute
				return
			}
			e.addr++
		}
		e.addrValid = true

	case stateCompute:
		e.butterfly(e.stage, e.pair)
		e.pair++
		if e.pair == pairsPerStage {
			e.pair = 0
			e.stage++
			if e.stage == stages {
				e.st = stateMagnitude
			}
		}

	case stateMagnitude:
		e.mag[e.magIdx] = approxMagnitude(e.re[e.magIdx], e.im[e.magIdx])
		e.magIdx++
		if e.magIdx == Bins {
			e.st = stateIdle
			e.done = true
		}
	}
}

// butterfly performs one paired combine for the given stage and pair
// index. Stage s groups values into 2^(s+1)-wide blocks; the rotation
// index advances by the per-stage stride 2^(5-s).
func (e *Engine) butterfly(s, p int) {
	half := 1 << s
	block := half << 1
	blockIdx := p / half
	k := p % half

	i := blockIdx*block + k
	j := i + half
	tw := k << (5 - s)

	c := twiddleCos[tw]
	sn := twiddleSin[tw]

	// (br + j*bi) * (c - j*sn), Q15 product shifted back down
	tr := (e.re[j]*c + e.im[j]*sn) >> twiddleFraction
	ti := (e.im[j]*c - e.re[j]*sn) >> twiddleFraction

	ar := e.re[i]
	ai := e.im[i]
	e.re[i] = ar + tr
	e.im[i] = ai + ti
	e.re[j] = ar - tr
	e.im[j] = ai - ti
}

// approxMagnitude computes max(|re|,|im|) + min(|re|,|im|)/2, saturated
// to the 16-bit unsigned range. The approximation avoids a square root;
// worst-case error against the true magnitude is about 12%.
func approxMagnitude(re, im int32) uint16 {
	ar := re
	if ar < 0 {
		ar = -ar
	}
	ai := im
	if ai < 0 {
		ai = -ai
	}
	if ar < ai {
		ar, ai = ai, ar
	}
	return fixed.SatU16(ar + ai>>1)
}
