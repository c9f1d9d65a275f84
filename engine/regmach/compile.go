package regmach

import (
	"github.com/wippyai/wasm-runtime/errors"
	"github.com/wippyai/wasm-runtime/wasm"
)

// Compile translates every module-defined function body in m into a
// CodeMap, one CompiledFunction per entry in m.Code (in declaration
// order, matching m.Funcs' type-index parallel slice - the same order
// Instantiate assigns function indices in, after the imported functions).
func Compile(m *wasm.Module, limits Limits) (*CodeMap, error) {
	if len(m.Funcs) != len(m.Code) {
		return nil, errors.New(errors.PhaseCompile, errors.KindInvalidData).
			Detail("module declares %d functions but %d bodies", len(m.Funcs), len(m.Code)).Build()
	}

	code := NewCodeMap(len(m.Code))
	for i, typeIdx := range m.Funcs {
		body := m.Code[i]
		sig := &m.Types[typeIdx]

		instrs, err := wasm.DecodeInstructions(body.Code)
		if err != nil {
			return nil, errors.New(errors.PhaseCompile, errors.KindInvalidData).
				Detail("function %d: malformed body: %v", i, err).Build()
		}

		funcIdx := uint32(m.NumImportedFuncs() + i)
		tr := NewTranslator(m, funcIdx, sig, body.Locals, limits)
		fn, err := tr.Translate(instrs)
		if err != nil {
			return nil, err
		}
		code.Add(fn)
	}
	return code, nil
}
