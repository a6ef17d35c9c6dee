package params

import (
	"encoding/json"
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/senseedge/internal/rtl/nn"
)

func TestFlattenLayout(t *testing.T) {
	t.Parallel()

	var s Set
	s.L1Weights[5][7] = 42
	s.L1Biases[3] = -9
	s.L2Weights[2][10] = 17
	s.L2Biases[1] = 100

	flat := s.Flatten()
	assert.Equal(t, int8(42), flat[5*8+7])
	assert.Equal(t, int8(-9), flat[128+3])
	assert.Equal(t, int8(17), flat[144+2*16+10])
	assert.Equal(t, int8(100), flat[208+1])
}

func TestFlattenRoundTrip(t *testing.T) {
	t.Parallel()

	var s Set
	v := int8(-100)
	for n := range s.L1Weights {
		for i := range s.L1Weights[n] {
			s.L1Weights[n][i] = v
			v++
		}
		s.L1Biases[n] = v
		v++
	}
	for n := range s.L2Weights {
		for i := range s.L2Weights[n] {
			s.L2Weights[n][i] = v
			v++
		}
		s.L2Biases[n] = v
		v++
	}

	assert.Equal(t, &s, FromFlat(s.Flatten()))
}

func TestSaveAndLoad(t *testing.T) {
	t.Parallel()

	s := Passthrough()
	s.L2Biases[0] = -3

	path := filepath.Join(t.TempDir(), "params.json")
	require.NoError(t, s.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, s, loaded)
}

func TestLoadFlatArray(t *testing.T) {
	t.Parallel()

	var s Set
	s.L1Weights[2][3] = 7
	s.L2Biases[1] = -50
	flat := s.Flatten()

	data, err := json.Marshal(flat[:])
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "flat.json")
	require.NoError(t, os.WriteFile(path, data, 0644))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, &s, loaded)
}

func TestLoadFlatArrayRejectsWrongLength(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "short.json")
	require.NoError(t, os.WriteFile(path, []byte("[1, 2, 3]"), 0644))

	_, err := Load(path)
	assert.ErrorContains(t, err, "212")
}

func TestLoadRejectsNonJSON(t *testing.T) {
	t.Parallel()

	_, err := Load("/some/path/params.yaml")
	assert.Error(t, err)
}

func TestLoadMissingFileMatchesErrNotExist(t *testing.T) {
	t.Parallel()

	// callers fall back to Passthrough on a missing file; the wrapped
	// error must still match fs.ErrNotExist through errors.Is
	_, err := Load(filepath.Join(t.TempDir(), "absent.json"))
	require.Error(t, err)
	assert.ErrorIs(t, err, fs.ErrNotExist)
}

func TestLoadRejectsBadJSON(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "broken.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestPassthroughWiring(t *testing.T) {
	t.Parallel()

	flat := Passthrough().Flatten()
	// hidden neuron k reads input k, output k reads hidden k
	for k := 0; k < nn.Outputs; k++ {
		assert.Equal(t, int8(1), flat[k*nn.Inputs+k])
		assert.Equal(t, int8(1), flat[144+k*nn.Hidden+k])
	}
}
