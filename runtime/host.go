package runtime

import (
	"sync"

	"github.com/wippyai/wasm-runtime/errors"
)

// HostRegistry holds Go functions registered as host imports, keyed by
// the (module, name) pair a core module declares on its import section
// (e.g. "env", "double").
type HostRegistry struct {
	funcs map[string]map[string]*HostFunc
	mu    sync.RWMutex
}

// HostFunc is a registered host import. Handler is either the raw
// func([]uint64) ([]uint64, error) shape the executor calls directly,
// or an arbitrary Go function that regmachResolver.ResolveFunc adapts
// by reflection (see adaptHostFunc in backend.go).
type HostFunc struct {
	Handler any
}

func NewHostRegistry() *HostRegistry {
	return &HostRegistry{
		funcs: make(map[string]map[string]*HostFunc),
	}
}

// RegisterFunc registers fn under namespace/name. Must be called
// before Runtime.LoadWASM translates a module that imports it -
// imports are resolved at instantiation time, not load time, but
// keeping registration ahead of load avoids a race against concurrent
// instantiations sharing this registry.
func (r *HostRegistry) RegisterFunc(namespace, name string, fn any) error {
	if namespace == "" {
		return errors.InvalidInput(errors.PhaseHost, "namespace cannot be empty")
	}
	if name == "" {
		return errors.InvalidInput(errors.PhaseHost, "function name cannot be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.funcs[namespace] == nil {
		r.funcs[namespace] = make(map[string]*HostFunc)
	}

	r.funcs[namespace][name] = &HostFunc{Handler: fn}

	return nil
}
