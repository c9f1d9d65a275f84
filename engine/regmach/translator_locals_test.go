package regmach

import (
	"testing"

	"github.com/wippyai/wasm-runtime/wasm"
)

func TestTranslatorLocalTeeLeavesValueOnStack(t *testing.T) {
	sig := wasm.FuncType{
		Params:  []wasm.ValType{wasm.ValI32},
		Results: []wasm.ValType{wasm.ValI32},
	}
	// local.tee writes the constant 9 into param 0 and leaves the value
	// on the stack for the function's result.
	instrs := []wasm.Instruction{
		{Opcode: wasm.OpI32Const, Imm: wasm.I32Imm{Value: 9}},
		{Opcode: wasm.OpLocalTee, Imm: wasm.LocalImm{LocalIdx: 0}},
		{Opcode: wasm.OpEnd},
	}
	m, code := buildModule(t, sig, instrs)
	inst := instantiate(t, m, code)
	exec := NewExecutor(inst, DefaultLimits())

	results, err := exec.Call(0, []uint64{0})
	if err != nil {
		t.Fatalf("call: %v", err)
	}
	if len(results) != 1 || int32(uint32(results[0])) != 9 {
		t.Fatalf("got %v, want [9]", results)
	}
}

func TestTranslatorGlobalGetSetRoundTrip(t *testing.T) {
	sig := wasm.FuncType{
		Params:  []wasm.ValType{wasm.ValI32},
		Results: []wasm.ValType{wasm.ValI32},
	}
	// write param 0 into the mutable global, then read it back.
	instrs := []wasm.Instruction{
		{Opcode: wasm.OpLocalGet, Imm: wasm.LocalImm{LocalIdx: 0}},
		{Opcode: wasm.OpGlobalSet, Imm: wasm.GlobalImm{GlobalIdx: 0}},
		{Opcode: wasm.OpGlobalGet, Imm: wasm.GlobalImm{GlobalIdx: 0}},
		{Opcode: wasm.OpEnd},
	}

	m := &wasm.Module{
		Types: []wasm.FuncType{sig},
		Funcs: []uint32{0},
		Globals: []wasm.Global{
			{Type: wasm.GlobalType{ValType: wasm.ValI32, Mutable: true}, Init: i32ConstExpr(0)},
		},
		Exports: []wasm.Export{{Name: "main", Kind: wasm.KindFunc, Idx: 0}},
	}
	tr := NewTranslator(m, 0, &sig, nil, DefaultLimits())
	fn, err := tr.Translate(instrs)
	if err != nil {
		t.Fatalf("translate: %v", err)
	}
	code := NewCodeMap(1)
	code.Add(fn)

	inst := instantiate(t, m, code)
	exec := NewExecutor(inst, DefaultLimits())

	results, err := exec.Call(0, []uint64{77})
	if err != nil {
		t.Fatalf("call: %v", err)
	}
	if len(results) != 1 || int32(uint32(results[0])) != 77 {
		t.Fatalf("got %v, want [77]", results)
	}
}
