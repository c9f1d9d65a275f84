package regmach

// CompiledFunction is the translator's output for a single Wasm function:
// a flat instruction sequence plus the register/constant metadata the
// executor needs to set up a call frame.
type CompiledFunction struct {
	// NumParams and NumResults describe the function's Wasm signature, in
	// register terms: both are register counts, not byte sizes.
	NumParams  int
	NumResults int
	// NumLocals is NumParams plus the count of declared local variables;
	// locals occupy registers [0, NumLocals).
	NumLocals int
	// HighWater is one past the largest register (local or dynamic) the
	// function ever uses; the executor sizes a frame's register window to it.
	HighWater Register
	// MaxStackHeight is the deepest the abstract value stack reached
	// during translation, purely diagnostic; nothing in the package reads it.
	MaxStackHeight int

	Instrs []Instr
	Consts []uint64
}

// NumRegisters returns how many register slots a call frame for this
// function needs.
func (f *CompiledFunction) NumRegisters() int { return int(f.HighWater) }

// CodeMap holds every function's compiled code for a module, indexed by
// Wasm function index (imports excluded — only functions with bodies are
// compiled).
type CodeMap struct {
	Funcs []*CompiledFunction
}

// NewCodeMap creates an empty CodeMap with capacity for n functions.
func NewCodeMap(n int) *CodeMap {
	return &CodeMap{Funcs: make([]*CompiledFunction, 0, n)}
}

// Add appends a compiled function, returning its index within the map.
func (m *CodeMap) Add(f *CompiledFunction) int {
	m.Funcs = append(m.Funcs, f)
	return len(m.Funcs) - 1
}

// Get returns the compiled function at idx, or nil if out of range.
func (m *CodeMap) Get(idx int) *CompiledFunction {
	if idx < 0 || idx >= len(m.Funcs) {
		return nil
	}
	return m.Funcs[idx]
}
