package nn

// Parameter memory layout, matching the weight-load register contract.
const (
	Inputs  = 8
	Hidden  = 16
	Outputs = 4

	l1WeightBase = 0
	l1BiasBase   = 128
	l2WeightBase = 144
	l2BiasBase   = 208

	// ParamCount is the total number of weight and bias bytes.
	ParamCount = 212
)

// ParamMem is the 212-entry INT8 parameter memory shared between the
// external write port and the inference engine's read port. There is no
// internal mutual exclusion; callers must gate writes against the
// engine busy flag.
type ParamMem [ParamCount]int8

// Write stores one parameter byte. Addresses outside 0..211 are
// ignored; the write reports whether it landed.
func (m *ParamMem) Write(addr int, v int8) bool {
	if addr < 0 || addr >= ParamCount {
		return false
	}
	m[addr] = v
	return true
}

// Load replaces the whole memory from a flat 212-entry image.
func (m *ParamMem) Load(flat [ParamCount]int8) { *m = flat }

func (m *ParamMem) l1Weight(neuron, input int) int8 {
	return m[l1WeightBase+neuron*Inputs+input]
}

func (m *ParamMem) l1Bias(neuron int) int8 {
	return m[l1BiasBase+neuron]
}

func (m *ParamMem) l2Weight(neuron, input int) int8 {
	return m[l2WeightBase+neuron*Hidden+input]
}

func (m *ParamMem) l2Bias(neuron int) int8 {
	return m[l2BiasBase+neuron]
}
