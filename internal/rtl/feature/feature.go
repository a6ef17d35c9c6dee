// Package feature models the feature reduction engine: a sequential
// pass over the 32 magnitude bins that folds them into the 8-byte
// feature vector consumed by the inference engine.
//
// Slot layout (fixed):
//
//	0..3  band energy sums over bins [1,4], [5,10], [11,20], [21,31]
//	4     peak bin index << 3
//	5     peak magnitude, top byte
//	6     spectral centroid approximation (frequency-weighted sum, top byte)
//	7     total energy across bins 0..31
package feature

import "github.com/banshee-data/senseedge/internal/rtl/fixed"

// Count is the number of feature slots.
const Count = 8

const bins = 32

// BinReader is the read port into the transform engine's magnitude
// memory. Reads have a one-cycle latency.
type BinReader interface {
	Bin(i int) uint16
}

// bandIndex maps a bin to its band accumulator, or -1 for the DC term
// which is excluded from all band sums.
func bandIndex(bin int) int {
	switch {
	case bin == 0:
		return -1
	case bin <= 4:
		return 0
	case bin <= 10:
		return 1
	case bin <= 20:
		return 2
	default:
		return 3
	}
}

type state int

const (
	stateIdle state = iota
	stateRead
	stateNormalize
)

// Engine is the feature reduction state machine.
type Engine struct {
	src BinReader

	st state

	addr      int
	addrValid bool
	consumed  int

	bandAcc  [4]uint32
	peak     uint16
	peakBin  int
	weighted uint32 // 24-bit frequency-weighted accumulator
	total    uint32 // 24-bit total-energy accumulator

	lastGranted uint16

	features [Count]uint8
	done     bool
}

// NewEngine returns an idle feature engine reading bins from src.
func NewEngine(src BinReader) *Engine {
	return &Engine{src: src}
}

// Busy reports whether a reduction pass is in flight.
func (e *Engine) Busy() bool { return e.st != stateIdle }

// Done reports the single-tick completion pulse.
func (e *Engine) Done() bool { return e.done }

// Feature returns the value in slot i. Out-of-range reads are zero.
func (e *Engine) Feature(i int) uint8 {
	if i < 0 || i >= Count {
		return 0
	}
	return e.features[i]
}

// LastGranted returns the most recent value the engine pulled through
// the shared bin read port. The register layer returns this to an
// external reader that loses arbitration while the engine is busy.
func (e *Engine) LastGranted() uint16 { return e.lastGranted }

// Start begins a reduction pass. A start pulse while busy is ignored.
func (e *Engine) Start() {
	if e.st != stateIdle {
		return
	}
	e.st = stateRead
	e.addr = 0
	e.addrValid = false
	e.consumed = 0
	e.bandAcc = [4]uint32{}
	e.peak = 0
	e.peakBin = 0
	e.weighted = 0
	e.total = 0
}

// Step advances the engine by one clock tick.
func (e *Engine) Step() {
	e.done = false

	switch e.st {
	case stateIdle:

	case stateRead:
		if e.addrValid {
			mag := e.src.Bin(e.addr)
			e.lastGranted = mag
			e.accumulate(e.addr, mag)
			e.consumed++
			if e.consumed == bins {
				e.st = stateNormalize
				return
			}
			e.addr++
		}
		e.addrValid = true

	case stateNormalize:
		e.normalize()
		e.st = stateIdle
		e.done = true
	}
}

func (e *Engine) accumulate(bin int, mag uint16) {
	if b := bandIndex(bin); b >= 0 {
		e.bandAcc[b] += uint32(mag)
	}
	// strict greater-than keeps the lowest bin on ties
	if mag > e.peak {
		e.peak = mag
		e.peakBin = bin
	}
	e.weighted = (e.weighted + uint32(bin)*uint32(mag)) & 0xFFFFFF
	e.total = (e.total + uint32(mag)) & 0xFFFFFF
}

// normalize folds the accumulators into byte-range features. Band and
// total sums shift down with saturation; the peak and centroid bytes
// truncate. An all-zero spectrum yields an all-zero vector (the
// centroid has no division to blow up on).
func (e *Engine) normalize() {
	for i := 0; i < 4; i++ {
		e.features[i] = fixed.ShiftSatU8(e.bandAcc[i])
	}
	e.features[4] = uint8(e.peakBin << 3)
	e.features[5] = uint8(e.peak >> 8)
	e.features[6] = uint8(e.weighted >> 16)
	e.features[7] = fixed.ShiftSatU8(e.total)
}
