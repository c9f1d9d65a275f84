package regmach

import (
	"errors"
	"testing"

	"github.com/wippyai/wasm-runtime/wasm"
)

func TestTranslatorCallIndirectDispatchesThroughTable(t *testing.T) {
	addSig := wasm.FuncType{
		Params:  []wasm.ValType{wasm.ValI32, wasm.ValI32},
		Results: []wasm.ValType{wasm.ValI32},
	}
	mainSig := wasm.FuncType{
		Params:  []wasm.ValType{wasm.ValI32, wasm.ValI32, wasm.ValI32},
		Results: []wasm.ValType{wasm.ValI32},
	}

	// main(a, b, tableIdx) = table[tableIdx](a, b)
	mainInstrs := []wasm.Instruction{
		{Opcode: wasm.OpLocalGet, Imm: wasm.LocalImm{LocalIdx: 0}},
		{Opcode: wasm.OpLocalGet, Imm: wasm.LocalImm{LocalIdx: 1}},
		{Opcode: wasm.OpLocalGet, Imm: wasm.LocalImm{LocalIdx: 2}},
		{Opcode: wasm.OpCallIndirect, Imm: wasm.CallIndirectImm{TypeIdx: 0, TableIdx: 0}},
		{Opcode: wasm.OpEnd},
	}
	addInstrs := []wasm.Instruction{
		{Opcode: wasm.OpLocalGet, Imm: wasm.LocalImm{LocalIdx: 0}},
		{Opcode: wasm.OpLocalGet, Imm: wasm.LocalImm{LocalIdx: 1}},
		{Opcode: wasm.OpI32Add},
		{Opcode: wasm.OpEnd},
	}

	m := &wasm.Module{
		Types: []wasm.FuncType{addSig, mainSig},
		Funcs: []uint32{1, 0}, // func 0 = main (type 1), func 1 = add (type 0)
		Tables: []wasm.TableType{
			{Limits: wasm.Limits{Min: 2}},
		},
		Elements: []wasm.Element{
			{Offset: i32ConstExpr(0), FuncIdxs: []uint32{1}, Flags: 0},
		},
		Exports: []wasm.Export{{Name: "main", Kind: wasm.KindFunc, Idx: 0}},
	}

	code := NewCodeMap(2)
	for i, entry := range []struct {
		sig    *wasm.FuncType
		instrs []wasm.Instruction
	}{
		{&mainSig, mainInstrs},
		{&addSig, addInstrs},
	} {
		tr := NewTranslator(m, uint32(i), entry.sig, nil, DefaultLimits())
		fn, err := tr.Translate(entry.instrs)
		if err != nil {
			t.Fatalf("translate func %d: %v", i, err)
		}
		code.Add(fn)
	}

	inst := instantiate(t, m, code)
	exec := NewExecutor(inst, DefaultLimits())

	results, err := exec.Call(0, []uint64{19, 23, 0})
	if err != nil {
		t.Fatalf("call: %v", err)
	}
	if len(results) != 1 || uint32(results[0]) != 42 {
		t.Fatalf("got %v, want [42]", results)
	}
}

func TestTranslatorCallIndirectNullTraps(t *testing.T) {
	addSig := wasm.FuncType{
		Params:  []wasm.ValType{wasm.ValI32, wasm.ValI32},
		Results: []wasm.ValType{wasm.ValI32},
	}
	mainSig := wasm.FuncType{
		Params:  []wasm.ValType{wasm.ValI32},
		Results: []wasm.ValType{wasm.ValI32},
	}
	mainInstrs := []wasm.Instruction{
		{Opcode: wasm.OpI32Const, Imm: wasm.I32Imm{Value: 0}},
		{Opcode: wasm.OpI32Const, Imm: wasm.I32Imm{Value: 0}},
		{Opcode: wasm.OpLocalGet, Imm: wasm.LocalImm{LocalIdx: 0}},
		{Opcode: wasm.OpCallIndirect, Imm: wasm.CallIndirectImm{TypeIdx: 0, TableIdx: 0}},
		{Opcode: wasm.OpEnd},
	}

	m := &wasm.Module{
		Types:   []wasm.FuncType{addSig, mainSig},
		Funcs:   []uint32{1},
		Tables:  []wasm.TableType{{Limits: wasm.Limits{Min: 2}}}, // left entirely null
		Exports: []wasm.Export{{Name: "main", Kind: wasm.KindFunc, Idx: 0}},
	}

	tr := NewTranslator(m, 0, &mainSig, nil, DefaultLimits())
	fn, err := tr.Translate(mainInstrs)
	if err != nil {
		t.Fatalf("translate: %v", err)
	}
	code := NewCodeMap(1)
	code.Add(fn)

	inst := instantiate(t, m, code)
	exec := NewExecutor(inst, DefaultLimits())

	_, err = exec.Call(0, []uint64{0})
	if err == nil {
		t.Fatal("expected a trap calling a null table entry")
	}
	var trap *Trap
	if !errors.As(err, &trap) || trap.Code != TrapIndirectCallNull {
		t.Fatalf("got %v, want TrapIndirectCallNull", err)
	}
}
