// Package adc models the acquisition front end: a clock-divided sampler
// that fills a 64-entry batch buffer from an external sample stream and
// raises a single-tick ready pulse when the buffer is full.
//
// The analog side (SPI protocol, bit timing) is outside the model; the
// stream abstraction stands in for the converter output word.
package adc

// BatchSize is the number of samples per acquisition window.
const BatchSize = 64

// SampleStream supplies signed 16-bit samples in time order. Next is
// called once per divided sample period.
type SampleStream interface {
	Next() int16
}

// Sequencer paces sample acquisition with a 16-bit clock divider and
// exposes the completed batch through an addressed read port.
type Sequencer struct {
	stream SampleStream

	enabled  bool
	divider  uint16
	divCount uint16

	buf   [BatchSize]int16
	wrIdx int

	ready       bool
	loadPending bool
}

// NewSequencer returns a sequencer reading from the given stream.
func NewSequencer(stream SampleStream) *Sequencer {
	return &Sequencer{stream: stream, divider: 1}
}

// SetEnabled gates acquisition. Disabling mid-batch freezes the write
// index; the partial batch resumes when re-enabled.
func (s *Sequencer) SetEnabled(enabled bool) { s.enabled = enabled }

// SetDivider sets the acquisition clock divider. A divider of zero is
// treated as one (sample every tick).
func (s *Sequencer) SetDivider(div uint16) { s.divider = div }

// BatchReady reports the single-tick pulse raised when the 64th sample
// of a batch lands.
func (s *Sequencer) BatchReady() bool { return s.ready }

// Sample returns the batch entry at addr. Addresses outside 0..63 read
// as zero, matching the undriven-port behaviour of the RTL.
func (s *Sequencer) Sample(addr int) int16 {
	if addr < 0 || addr >= BatchSize {
		return 0
	}
	return s.buf[addr]
}

// LoadBatch overwrites the whole buffer at once. The ready pulse is
// raised by the following Step and lasts exactly one tick, so a
// consumer that checks BatchReady after stepping sees the injected
// batch the same way it sees a streamed one.
func (s *Sequencer) LoadBatch(batch [BatchSize]int16) {
	s.buf = batch
	s.wrIdx = 0
	s.loadPending = true
}

// Step advances the sequencer by one clock tick.
func (s *Sequencer) Step() {
	s.ready = false
	if s.loadPending {
		s.loadPending = false
		s.ready = true
		return
	}
	if !s.enabled || s.stream == nil {
		return
	}

	div := s.divider
	if div == 0 {
		div = 1
	}
	s.divCount++
	if s.divCount < div {
		return
	}
	s.divCount = 0

	// New batches overwrite the previous one in place.
	s.buf[s.wrIdx] = s.stream.Next()
	s.wrIdx++
	if s.wrIdx == BatchSize {
		s.wrIdx = 0
		s.ready = true
	}
}
