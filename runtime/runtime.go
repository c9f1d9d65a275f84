package runtime

import (
	"context"

	"github.com/wippyai/wasm-runtime/engine/regmach"
)

// Runtime loads and instantiates core WebAssembly modules through the
// register-machine engine (engine/regmach).
type Runtime struct {
	hosts  *HostRegistry
	limits regmach.Limits
}

// Config configures Runtime construction.
type Config struct {
	// Limits bounds the regmach translator/executor. The zero value is
	// replaced by regmach.DefaultLimits().
	Limits regmach.Limits
}

// New constructs a Runtime with regmach.DefaultLimits().
func New(ctx context.Context) (*Runtime, error) {
	return NewWithConfig(ctx, Config{})
}

// NewWithConfig is New with explicit translator/executor limits.
func NewWithConfig(ctx context.Context, cfg Config) (*Runtime, error) {
	if cfg.Limits == (regmach.Limits{}) {
		cfg.Limits = regmach.DefaultLimits()
	}
	return &Runtime{
		hosts:  NewHostRegistry(),
		limits: cfg.Limits,
	}, nil
}

// Close releases runtime resources. regmach holds nothing beyond the
// per-instance register arena, so this is a no-op; it exists so
// embedders don't need to special-case teardown.
func (r *Runtime) Close(ctx context.Context) error {
	return nil
}

// RegisterFunc registers fn as a host import under namespace/name,
// matching the (module, name) pair a core module declares on its
// import section.
func (r *Runtime) RegisterFunc(namespace, name string, fn any) error {
	return r.hosts.RegisterFunc(namespace, name, fn)
}

func (r *Runtime) Hosts() *HostRegistry {
	return r.hosts
}

// LoadWASM parses, validates, and translates a core WebAssembly module
// to register-machine bytecode.
func (r *Runtime) LoadWASM(ctx context.Context, wasmBytes []byte) (*Module, error) {
	return r.loadWASMRegmach(wasmBytes)
}
