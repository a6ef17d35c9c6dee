// Package params handles host-side parameter images for the inference
// engine: JSON load/save of the quantized weights and biases, and the
// flattening into the packed byte layout the device's weight-load port
// expects.
package params

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/banshee-data/senseedge/internal/rtl/nn"
)

// Set is a complete parameter image in structured form. Dimensions are
// fixed by the engine: 8 inputs, 16 hidden neurons, 4 output classes.
type Set struct {
	L1Weights [nn.Hidden][nn.Inputs]int8  `json:"l1_weights"`
	L1Biases  [nn.Hidden]int8             `json:"l1_biases"`
	L2Weights [nn.Outputs][nn.Hidden]int8 `json:"l2_weights"`
	L2Biases  [nn.Outputs]int8            `json:"l2_biases"`
}

// Flatten packs the set into the device's flat address layout:
// layer-1 weights, layer-1 biases, layer-2 weights, layer-2 biases.
func (s *Set) Flatten() [nn.ParamCount]int8 {
	var flat [nn.ParamCount]int8
	for n := 0; n < nn.Hidden; n++ {
		for i := 0; i < nn.Inputs; i++ {
			flat[n*nn.Inputs+i] = s.L1Weights[n][i]
		}
		flat[nn.Hidden*nn.Inputs+n] = s.L1Biases[n]
	}
	l2Base := nn.Hidden*nn.Inputs + nn.Hidden
	for n := 0; n < nn.Outputs; n++ {
		for i := 0; i < nn.Hidden; i++ {
			flat[l2Base+n*nn.Hidden+i] = s.L2Weights[n][i]
		}
		flat[l2Base+nn.Outputs*nn.Hidden+n] = s.L2Biases[n]
	}
	return flat
}

// FromFlat rebuilds a structured set from a flat parameter image.
func FromFlat(flat [nn.ParamCount]int8) *Set {
	var s Set
	for n := 0; n < nn.Hidden; n++ {
		for i := 0; i < nn.Inputs; i++ {
			s.L1Weights[n][i] = flat[n*nn.Inputs+i]
		}
		s.L1Biases[n] = flat[nn.Hidden*nn.Inputs+n]
	}
	l2Base := nn.Hidden*nn.Inputs + nn.Hidden
	for n := 0; n < nn.Outputs; n++ {
		for i := 0; i < nn.Hidden; i++ {
			s.L2Weights[n][i] = flat[l2Base+n*nn.Hidden+i]
		}
		s.L2Biases[n] = flat[l2Base+nn.Outputs*nn.Hidden+n]
	}
	return &s
}

// Load reads a parameter set from a JSON file. Both forms are
// accepted: the structured per-layer object, and the flat 212-entry
// array the training pipeline exports.
func Load(path string) (*Set, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("params file must have .json extension, got %q", ext)
	}
	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read params file: %w", err)
	}

	if trimmed := bytes.TrimSpace(data); len(trimmed) > 0 && trimmed[0] == '[' {
		var vals []int8
		if err := json.Unmarshal(trimmed, &vals); err != nil {
			return nil, fmt.Errorf("failed to parse flat params JSON: %w", err)
		}
		if len(vals) != nn.ParamCount {
			return nil, fmt.Errorf("flat params file has %d entries, want %d", len(vals), nn.ParamCount)
		}
		var flat [nn.ParamCount]int8
		copy(flat[:], vals)
		return FromFlat(flat), nil
	}

	var s Set
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to parse params JSON: %w", err)
	}
	return &s, nil
}

// Save writes a parameter set to a JSON file.
func (s *Set) Save(path string) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal params: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0644); err != nil {
		return fmt.Errorf("failed to write params file: %w", err)
	}
	return nil
}

// Passthrough returns a diagnostic set whose class k output tracks
// input feature k directly: hidden neuron k copies input k and output
// k copies hidden k. Useful for exercising the pipeline without a
// trained model.
func Passthrough() *Set {
	var s Set
	for k := 0; k < nn.Outputs; k++ {
		s.L1Weights[k][k] = 1
		s.L2Weights[k][k] = 1
	}
	return &s
}
