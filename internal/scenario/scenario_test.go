package scenario

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleScript = `
name: bearing wear onset
seed: 42
segments:
  - label: healthy baseline
    batches: 2
    tones:
      - bin: 3
        amplitude: 1200
    noise: 50
  - label: developing wear
    batches: 3
    tones:
      - bin: 3
        amplitude: 1200
      - bin: 14
        amplitude: 900
`

func writeScript(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "scenario.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func TestLoad(t *testing.T) {
	t.Parallel()

	sc, err := Load(writeScript(t, sampleScript))
	require.NoError(t, err)

	assert.Equal(t, "bearing wear onset", sc.Name)
	assert.Equal(t, int64(42), sc.Seed)
	require.Len(t, sc.Segments, 2)
	assert.Equal(t, "healthy baseline", sc.Segments[0].Label)
	assert.Equal(t, 50.0, sc.Segments[0].Noise)
	assert.Equal(t, 14, sc.Segments[1].Tones[1].Bin)
	assert.Equal(t, 5, sc.TotalBatches())
}

func TestValidateRejectsBadScripts(t *testing.T) {
	t.Parallel()

	for name, body := range map[string]string{
		"no segments": `name: empty`,
		"zero batches": `
segments:
  - label: x
    batches: 0
`,
		"bin out of range": `
segments:
  - label: x
    batches: 1
    tones:
      - bin: 32
        amplitude: 100
`,
		"negative amplitude": `
segments:
  - label: x
    batches: 1
    tones:
      - bin: 4
        amplitude: -5
`,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeScript(t, body))
			assert.Error(t, err)
		})
	}
}

func TestStreamIsDeterministic(t *testing.T) {
	t.Parallel()

	sc, err := Load(writeScript(t, sampleScript))
	require.NoError(t, err)

	a := sc.Stream()
	b := sc.Stream()
	for i := 0; i < 5*64; i++ {
		assert.Equal(t, a.Next(), b.Next(), "sample %d", i)
	}
}

func TestStreamAdvancesSegments(t *testing.T) {
	t.Parallel()

	sc, err := Load(writeScript(t, sampleScript))
	require.NoError(t, err)

	s := sc.Stream()
	assert.Equal(t, "healthy baseline", s.Segment().Label)
	for i := 0; i < 2*64; i++ {
		s.Next()
	}
	assert.Equal(t, "developing wear", s.Segment().Label)

	// past the end, the final segment holds
	for i := 0; i < 10*64; i++ {
		s.Next()
	}
	assert.Equal(t, "developing wear", s.Segment().Label)
}

func TestStreamLoops(t *testing.T) {
	t.Parallel()

	sc, err := Load(writeScript(t, sampleScript+"loop: true\n"))
	require.NoError(t, err)

	s := sc.Stream()
	for i := 0; i < 5*64; i++ {
		s.Next()
	}
	assert.Equal(t, "healthy baseline", s.Segment().Label)
}

func TestPureToneStaysInRange(t *testing.T) {
	t.Parallel()

	sc := &Scenario{Segments: []Segment{{
		Label:   "loud",
		Batches: 1,
		Tones:   []Tone{{Bin: 1, Amplitude: 40000}, {Bin: 2, Amplitude: 40000}},
	}}}
	require.NoError(t, sc.Validate())

	s := sc.Stream()
	for i := 0; i < 64; i++ {
		v := s.Next()
		assert.GreaterOrEqual(t, int(v), -32768)
		assert.LessOrEqual(t, int(v), 32767)
	}
}
