package runtime

import (
	"context"

	"github.com/wippyai/wasm-runtime/engine/regmach"
	"github.com/wippyai/wasm-runtime/errors"
)

// Instance is a running regmach execution: a register arena plus a
// frame stack, scoped to a single Module translation.
type Instance struct {
	module *Module

	regmachInst *regmach.Instance
	regmachExec *regmach.Executor
}

// Call invokes an exported function by name. args/results are the
// function's raw param/result values, positionally coerced to/from the
// callee's declared i32/i64/f32/f64 types (see anyToWord/wordToAny in
// backend.go) - there is no WIT signature to infer richer types from.
func (i *Instance) Call(ctx context.Context, name string, args ...any) (any, error) {
	if i.module == nil {
		return nil, errors.NotInitialized(errors.PhaseRuntime, "module")
	}
	return i.callRegmach(name, args...)
}

// Close is a no-op: the register arena is ordinary Go memory, released
// with the instance, and regmach owns no other resources, so this always
// succeeds.
func (i *Instance) Close(ctx context.Context) error {
	return nil
}
