package runtime

import (
	"context"
	"testing"

	"github.com/wippyai/wasm-runtime/engine/regmach"
	"github.com/wippyai/wasm-runtime/wasm"
)

// buildRegmachModule constructs a Module the way loadWASMRegmach does,
// skipping the binary-parse step since the fixture is built directly as
// a wasm.Module rather than encoded bytes.
func buildRegmachModule(t *testing.T, r *Runtime, m *wasm.Module) *Module {
	t.Helper()
	code, err := regmach.Compile(m, r.limits)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	return &Module{
		runtime: r,
		mod:     m,
		code:    code,
		limits:  r.limits,
	}
}

func newRegmachRuntime(t *testing.T) *Runtime {
	t.Helper()
	r, err := NewWithConfig(context.Background(), Config{})
	if err != nil {
		t.Fatalf("new runtime: %v", err)
	}
	return r
}

func TestBackendRegmachCallRoundTrip(t *testing.T) {
	r := newRegmachRuntime(t)

	sig := wasm.FuncType{
		Params:  []wasm.ValType{wasm.ValI32, wasm.ValI32},
		Results: []wasm.ValType{wasm.ValI32},
	}
	m := &wasm.Module{
		Types: []wasm.FuncType{sig},
		Funcs: []uint32{0},
		Exports: []wasm.Export{
			{Name: "add", Kind: wasm.KindFunc, Idx: 0},
		},
	}
	tr := regmach.NewTranslator(m, 0, &sig, nil, regmach.DefaultLimits())
	fn, err := tr.Translate([]wasm.Instruction{
		{Opcode: wasm.OpLocalGet, Imm: wasm.LocalImm{LocalIdx: 0}},
		{Opcode: wasm.OpLocalGet, Imm: wasm.LocalImm{LocalIdx: 1}},
		{Opcode: wasm.OpI32Add},
		{Opcode: wasm.OpEnd},
	})
	if err != nil {
		t.Fatalf("translate: %v", err)
	}
	code := regmach.NewCodeMap(1)
	code.Add(fn)

	module := &Module{
		runtime: r,
		mod:     m,
		code:    code,
		limits:  r.limits,
	}

	inst, err := module.Instantiate(context.Background())
	if err != nil {
		t.Fatalf("instantiate: %v", err)
	}

	result, err := inst.Call(context.Background(), "add", int32(19), int32(23))
	if err != nil {
		t.Fatalf("call: %v", err)
	}
	if result != int32(42) {
		t.Fatalf("got %v, want int32(42)", result)
	}
}

func TestBackendRegmachCallMissingExportErrors(t *testing.T) {
	r := newRegmachRuntime(t)
	m := &wasm.Module{}
	module := buildRegmachModule(t, r, m)

	inst, err := module.Instantiate(context.Background())
	if err != nil {
		t.Fatalf("instantiate: %v", err)
	}
	if _, err := inst.Call(context.Background(), "missing"); err == nil {
		t.Fatal("expected an error calling a nonexistent export")
	}
}

func TestBackendRegmachCallArgCountMismatchErrors(t *testing.T) {
	r := newRegmachRuntime(t)
	sig := wasm.FuncType{
		Params:  []wasm.ValType{wasm.ValI32},
		Results: []wasm.ValType{wasm.ValI32},
	}
	m := &wasm.Module{
		Types:   []wasm.FuncType{sig},
		Funcs:   []uint32{0},
		Exports: []wasm.Export{{Name: "id", Kind: wasm.KindFunc, Idx: 0}},
	}
	tr := regmach.NewTranslator(m, 0, &sig, nil, regmach.DefaultLimits())
	fn, err := tr.Translate([]wasm.Instruction{
		{Opcode: wasm.OpLocalGet, Imm: wasm.LocalImm{LocalIdx: 0}},
		{Opcode: wasm.OpEnd},
	})
	if err != nil {
		t.Fatalf("translate: %v", err)
	}
	code := regmach.NewCodeMap(1)
	code.Add(fn)

	module := &Module{runtime: r, mod: m, code: code, limits: r.limits}
	inst, err := module.Instantiate(context.Background())
	if err != nil {
		t.Fatalf("instantiate: %v", err)
	}
	if _, err := inst.Call(context.Background(), "id"); err == nil {
		t.Fatal("expected an arg-count mismatch error")
	}
}

// TestBackendRegmachHostImport confirms RegisterFunc-registered host
// functions reach a regmach module through regmachResolver.ResolveFunc,
// coercing words via wordToAny/anyToWord on both sides of the call.
func TestBackendRegmachHostImport(t *testing.T) {
	r := newRegmachRuntime(t)

	if err := r.RegisterFunc("env", "double", func(n int32) int32 { return n * 2 }); err != nil {
		t.Fatalf("register func: %v", err)
	}

	sig := wasm.FuncType{
		Params:  []wasm.ValType{wasm.ValI32},
		Results: []wasm.ValType{wasm.ValI32},
	}
	m := &wasm.Module{
		Types: []wasm.FuncType{sig},
		Imports: []wasm.Import{
			{Module: "env", Name: "double", Desc: wasm.ImportDesc{Kind: wasm.KindFunc, TypeIdx: 0}},
		},
		Funcs:   []uint32{0},
		Exports: []wasm.Export{{Name: "run", Kind: wasm.KindFunc, Idx: 1}},
	}
	tr := regmach.NewTranslator(m, 1, &sig, nil, regmach.DefaultLimits())
	fn, err := tr.Translate([]wasm.Instruction{
		{Opcode: wasm.OpLocalGet, Imm: wasm.LocalImm{LocalIdx: 0}},
		{Opcode: wasm.OpCall, Imm: wasm.CallImm{FuncIdx: 0}},
		{Opcode: wasm.OpEnd},
	})
	if err != nil {
		t.Fatalf("translate: %v", err)
	}
	code := regmach.NewCodeMap(1)
	code.Add(fn)

	module := buildRegmachModuleFromCompiled(r, m, code)
	inst, err := module.Instantiate(context.Background())
	if err != nil {
		t.Fatalf("instantiate: %v", err)
	}

	result, err := inst.Call(context.Background(), "run", int32(21))
	if err != nil {
		t.Fatalf("call: %v", err)
	}
	if result != int32(42) {
		t.Fatalf("got %v, want int32(42)", result)
	}
}

func buildRegmachModuleFromCompiled(r *Runtime, m *wasm.Module, code *regmach.CodeMap) *Module {
	return &Module{runtime: r, mod: m, code: code, limits: r.limits}
}

func TestAnyToWordAndWordToAnyRoundTrip(t *testing.T) {
	cases := []struct {
		name string
		v    any
		t    wasm.ValType
	}{
		{"i32", int32(-7), wasm.ValI32},
		{"i64", int64(-7), wasm.ValI64},
		{"f32", float32(1.5), wasm.ValF32},
		{"f64", float64(2.25), wasm.ValF64},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			w, err := anyToWord(c.v, c.t)
			if err != nil {
				t.Fatalf("anyToWord: %v", err)
			}
			got := wordToAny(w, c.t)
			if got != c.v {
				t.Fatalf("round trip: got %v, want %v", got, c.v)
			}
		})
	}
}
