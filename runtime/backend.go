package runtime

import (
	"context"
	"math"
	"reflect"

	"github.com/wippyai/wasm-runtime/engine/regmach"
	"github.com/wippyai/wasm-runtime/errors"
	"github.com/wippyai/wasm-runtime/wasm"
)

// loadWASMRegmach parses, validates, and translates a core module;
// r.hosts supplies host imports, bridged through regmachResolver below.
func (r *Runtime) loadWASMRegmach(wasmBytes []byte) (*Module, error) {
	m, err := wasm.ParseModuleValidate(wasmBytes)
	if err != nil {
		return nil, errors.Load("parse module", err)
	}

	code, err := regmach.Compile(m, r.limits)
	if err != nil {
		return nil, err
	}

	return &Module{
		runtime: r,
		mod:     m,
		code:    code,
		limits:  r.limits,
	}, nil
}

// instantiateRegmach never blocks; ctx is accepted only to keep this
// call-site-compatible with embedders that expect Instantiate to take
// one.
func (m *Module) instantiateRegmach(_ context.Context) (*Instance, error) {
	inst, err := regmach.Instantiate(m.mod, m.code, &regmachResolver{hosts: m.runtime.hosts})
	if err != nil {
		return nil, errors.Instantiation(err)
	}

	return &Instance{
		module:      m,
		regmachInst: inst,
		regmachExec: regmach.NewExecutor(inst, m.limits),
	}, nil
}

// callRegmach resolves name to a function export, coerces args to words,
// invokes it, and coerces the raw result words back to Go values using
// the callee's own signature (so an int32 result stays an int32, etc.).
func (i *Instance) callRegmach(name string, args ...any) (any, error) {
	funcIdx, ok := i.findRegmachExportFunc(name)
	if !ok {
		return nil, errors.NotFound(errors.PhaseRuntime, "function", name)
	}

	sig := i.regmachInst.Funcs[funcIdx].Sig
	if len(args) != len(sig.Params) {
		return nil, errors.New(errors.PhaseRuntime, errors.KindTypeMismatch).
			Detail("call %s: expects %d arguments, got %d", name, len(sig.Params), len(args)).Build()
	}

	words := make([]uint64, len(args))
	for idx, a := range args {
		w, err := anyToWord(a, sig.Params[idx])
		if err != nil {
			return nil, err
		}
		words[idx] = w
	}

	results, err := i.regmachExec.Call(funcIdx, words)
	if err != nil {
		return nil, err
	}

	switch len(sig.Results) {
	case 0:
		return nil, nil
	case 1:
		return wordToAny(results[0], sig.Results[0]), nil
	default:
		out := make([]any, len(sig.Results))
		for idx, rt := range sig.Results {
			out[idx] = wordToAny(results[idx], rt)
		}
		return out, nil
	}
}

func (i *Instance) findRegmachExportFunc(name string) (uint32, bool) {
	for _, exp := range i.module.mod.Exports {
		if exp.Kind == wasm.KindFunc && exp.Name == name {
			return exp.Idx, true
		}
	}
	return 0, false
}

// anyToWord coerces a Go value into the raw 64-bit word the executor's
// register file stores it as, per t's value type. Floats are bit-cast,
// not rounded, matching how the translator itself treats f32/f64
// registers as opaque bit patterns.
func anyToWord(v any, t wasm.ValType) (uint64, error) {
	rv := reflect.ValueOf(v)
	switch t {
	case wasm.ValI32:
		return uint64(uint32(reflectToInt64(rv))), nil
	case wasm.ValI64:
		return uint64(reflectToInt64(rv)), nil
	case wasm.ValF32:
		f, ok := v.(float32)
		if !ok {
			return 0, errors.TypeMismatch(errors.PhaseRuntime, nil, rv.Type().String(), "f32")
		}
		return uint64(math.Float32bits(f)), nil
	case wasm.ValF64:
		f, ok := v.(float64)
		if !ok {
			return 0, errors.TypeMismatch(errors.PhaseRuntime, nil, rv.Type().String(), "f64")
		}
		return math.Float64bits(f), nil
	default:
		return 0, errors.Unsupported(errors.PhaseRuntime, "regmach call argument value type")
	}
}

func wordToAny(w uint64, t wasm.ValType) any {
	switch t {
	case wasm.ValI32:
		return int32(uint32(w))
	case wasm.ValI64:
		return int64(w)
	case wasm.ValF32:
		return math.Float32frombits(uint32(w))
	case wasm.ValF64:
		return math.Float64frombits(w)
	default:
		return w
	}
}

func reflectToInt64(rv reflect.Value) int64 {
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int()
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return int64(rv.Uint())
	default:
		return 0
	}
}

// regmachResolver bridges the runtime's reflection-based HostRegistry to
// regmach.Resolver. Only function imports are supported: a bare core
// module's host-provided memories/tables/globals have no established
// convention in this codebase, so those three Resolve methods
// are stubs that report the import as unsatisfiable rather than guess at
// one.
type regmachResolver struct {
	hosts *HostRegistry
}

func (r *regmachResolver) ResolveFunc(module, name string, sig *wasm.FuncType) (regmach.HostFunc, error) {
	r.hosts.mu.RLock()
	hf, ok := r.hosts.funcs[module][name]
	r.hosts.mu.RUnlock()
	if !ok {
		return nil, errors.NotFound(errors.PhaseHost, "host function", module+"."+name)
	}

	if fn, ok := hf.Handler.(func([]uint64) ([]uint64, error)); ok {
		return fn, nil
	}
	return adaptHostFunc(module, name, hf.Handler, sig)
}

func (r *regmachResolver) ResolveMemory(module, name string, typ wasm.MemoryType) (*regmach.MemoryInstance, error) {
	return nil, errors.NotFound(errors.PhaseHost, "host memory import", module+"."+name)
}

func (r *regmachResolver) ResolveTable(module, name string, typ wasm.TableType) (*regmach.TableInstance, error) {
	return nil, errors.NotFound(errors.PhaseHost, "host table import", module+"."+name)
}

func (r *regmachResolver) ResolveGlobal(module, name string, typ wasm.GlobalType) (*regmach.GlobalInstance, error) {
	return nil, errors.NotFound(errors.PhaseHost, "host global import", module+"."+name)
}

// adaptHostFunc wraps an arbitrary Go function registered through
// RegisterFunc as a regmach.HostFunc, converting each word positionally
// per sig's param types and the handler's own declared parameter
// types. A core function signature is restricted to scalar
// i32/i64/f32/f64, so this is a plain positional reflect.Call - no
// canon-lower/lift step is involved.
func adaptHostFunc(module, name string, handler any, sig *wasm.FuncType) (regmach.HostFunc, error) {
	rv := reflect.ValueOf(handler)
	if rv.Kind() != reflect.Func {
		return nil, errors.New(errors.PhaseHost, errors.KindTypeMismatch).
			GoType(rv.Type().String()).
			Detail("host function %s.%s: handler is not a function", module, name).Build()
	}
	rt := rv.Type()
	if rt.NumIn() != len(sig.Params) {
		return nil, errors.New(errors.PhaseHost, errors.KindTypeMismatch).
			Detail("host function %s.%s: expects %d parameters, module declares %d", module, name, rt.NumIn(), len(sig.Params)).Build()
	}

	return func(args []uint64) ([]uint64, error) {
		in := make([]reflect.Value, len(args))
		for idx, w := range args {
			in[idx] = reflect.ValueOf(wordToAny(w, sig.Params[idx])).Convert(rt.In(idx))
		}
		out := rv.Call(in)
		results := make([]uint64, 0, len(out))
		for idx, o := range out {
			if idx == len(out)-1 && rt.Out(idx).Implements(errType) {
				if !o.IsNil() {
					return nil, o.Interface().(error)
				}
				continue
			}
			word, err := anyToWord(o.Interface(), sig.Results[idx])
			if err != nil {
				return nil, err
			}
			results = append(results, word)
		}
		return results, nil
	}, nil
}

var errType = reflect.TypeOf((*error)(nil)).Elem()
