// Package scenario loads vibration playback scripts: a sequence of
// signal segments (tone mixes plus noise) that the simulator feeds to
// the acquisition front end in place of a real accelerometer.
package scenario

import (
	"fmt"
	"math"
	"math/rand"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/banshee-data/senseedge/internal/rtl/adc"
)

// Tone is one sinusoidal component, expressed directly in transform
// bins so scripts line up with the spectrum the device computes.
type Tone struct {
	Bin       int     `yaml:"bin"`
	Amplitude float64 `yaml:"amplitude"`
}

// Segment is a stretch of signal with a fixed tone mix. Batches counts
// 64-sample acquisition windows.
type Segment struct {
	Label   string  `yaml:"label"`
	Batches int     `yaml:"batches"`
	Tones   []Tone  `yaml:"tones"`
	Noise   float64 `yaml:"noise"`
}

// Scenario is a complete playback script. When Loop is set the script
// repeats from the first segment; otherwise the last segment holds
// forever.
type Scenario struct {
	Name     string    `yaml:"name"`
	Seed     int64     `yaml:"seed"`
	Loop     bool      `yaml:"loop"`
	Segments []Segment `yaml:"segments"`
}

// Load reads and validates a scenario from a YAML file.
func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	var sc Scenario
	if err := yaml.Unmarshal(data, &sc); err != nil {
		return nil, fmt.Errorf("failed to parse scenario YAML: %w", err)
	}
	if err := sc.Validate(); err != nil {
		return nil, fmt.Errorf("invalid scenario %q: %w", sc.Name, err)
	}
	return &sc, nil
}

// Validate checks segment durations and tone placement.
func (sc *Scenario) Validate() error {
	if len(sc.Segments) == 0 {
		return fmt.Errorf("scenario has no segments")
	}
	for i, seg := range sc.Segments {
		if seg.Batches <= 0 {
			return fmt.Errorf("segment %d (%q): batches must be positive, got %d", i, seg.Label, seg.Batches)
		}
		for _, tone := range seg.Tones {
			if tone.Bin < 0 || tone.Bin >= 32 {
				return fmt.Errorf("segment %d (%q): tone bin %d out of range 0..31", i, seg.Label, tone.Bin)
			}
			if tone.Amplitude < 0 {
				return fmt.Errorf("segment %d (%q): negative tone amplitude", i, seg.Label)
			}
		}
	}
	return nil
}

// TotalBatches returns the scripted length in acquisition batches.
func (sc *Scenario) TotalBatches() int {
	total := 0
	for _, seg := range sc.Segments {
		total += seg.Batches
	}
	return total
}

// Stream plays a scenario as a deterministic sample stream. The same
// scenario and seed always produce the same samples.
type Stream struct {
	sc  *Scenario
	rng *rand.Rand

	segIdx int
	n      int // sample index within the current segment
}

// Stream returns a fresh playback stream over the scenario.
func (sc *Scenario) Stream() *Stream {
	return &Stream{sc: sc, rng: rand.New(rand.NewSource(sc.Seed))}
}

// Segment returns the segment currently playing.
func (s *Stream) Segment() *Segment {
	return &s.sc.Segments[s.segIdx]
}

// Next synthesizes the next sample, advancing segments as their batch
// budgets run out.
func (s *Stream) Next() int16 {
	seg := &s.sc.Segments[s.segIdx]

	v := 0.0
	for _, tone := range seg.Tones {
		v += tone.Amplitude * math.Sin(2*math.Pi*float64(tone.Bin)*float64(s.n)/adc.BatchSize)
	}
	if seg.Noise > 0 {
		v += seg.Noise * (2*s.rng.Float64() - 1)
	}

	s.n++
	if s.n >= seg.Batches*adc.BatchSize {
		s.advance()
	}

	if v > math.MaxInt16 {
		v = math.MaxInt16
	} else if v < math.MinInt16 {
		v = math.MinInt16
	}
	return int16(v)
}

func (s *Stream) advance() {
	s.n = 0
	if s.segIdx+1 < len(s.sc.Segments) {
		s.segIdx++
		return
	}
	if s.sc.Loop {
		s.segIdx = 0
		return
	}
	// hold the final segment, restarting its sample counter so tone
	// phase stays batch-aligned
}
