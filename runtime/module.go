package runtime

import (
	"context"

	"github.com/wippyai/wasm-runtime/engine/regmach"
	"github.com/wippyai/wasm-runtime/wasm"
)

// Module is a translated core module, ready to be instantiated
// (possibly many times) against the register-machine executor.
type Module struct {
	runtime *Runtime
	mod     *wasm.Module
	code    *regmach.CodeMap
	limits  regmach.Limits
}

// Compile is a no-op: LoadWASM already translates at load time, so
// this exists only for call-site parity with embedders that expect a
// separate compile step before Instantiate.
func (m *Module) Compile(ctx context.Context) error {
	return nil
}

// Instantiate resolves the module's imports against the runtime's host
// registry and builds a fresh regmach instance and executor (register
// arena and frame stack) against the module's translated code.
func (m *Module) Instantiate(ctx context.Context) (*Instance, error) {
	return m.instantiateRegmach(ctx)
}

// Export names an exported entity (only function exports are callable
// through Instance.Call; the regmach core resolves memory/table/global
// exports directly from regmach.Instance when needed).
type Export struct {
	Name string
}

func (m *Module) Exports() []Export {
	exports := make([]Export, len(m.mod.Exports))
	for i, exp := range m.mod.Exports {
		exports[i] = Export{Name: exp.Name}
	}
	return exports
}
