package regmach

import (
	"testing"

	"github.com/wippyai/wasm-runtime/wasm"
)

func TestTranslatorI64ExtendI32SSignExtends(t *testing.T) {
	sig := wasm.FuncType{
		Params:  []wasm.ValType{wasm.ValI32},
		Results: []wasm.ValType{wasm.ValI64},
	}
	instrs := []wasm.Instruction{
		{Opcode: wasm.OpLocalGet, Imm: wasm.LocalImm{LocalIdx: 0}},
		{Opcode: wasm.OpI64ExtendI32S},
		{Opcode: wasm.OpEnd},
	}
	m, code := buildModule(t, sig, instrs)
	inst := instantiate(t, m, code)
	exec := NewExecutor(inst, DefaultLimits())

	results, err := exec.Call(0, []uint64{uint64(uint32(int32(-1)))})
	if err != nil {
		t.Fatalf("call: %v", err)
	}
	if len(results) != 1 || int64(results[0]) != -1 {
		t.Fatalf("got %v, want [-1] (sign-extended)", results)
	}
}

// TestTranslatorBinaryOpEncodesImm16WhenConstOnRight confirms a binary op
// whose right operand is already a small constant is emitted using the
// opImmFlag encoding (instr.go) rather than routing the constant through
// the constant pool as a register operand.
func TestTranslatorBinaryOpEncodesImm16WhenConstOnRight(t *testing.T) {
	sig := wasm.FuncType{
		Params:  []wasm.ValType{wasm.ValI32},
		Results: []wasm.ValType{wasm.ValI32},
	}
	instrs := []wasm.Instruction{
		{Opcode: wasm.OpLocalGet, Imm: wasm.LocalImm{LocalIdx: 0}},
		{Opcode: wasm.OpI32Const, Imm: wasm.I32Imm{Value: 100}},
		{Opcode: wasm.OpI32Add},
		{Opcode: wasm.OpEnd},
	}
	m, code := buildModule(t, sig, instrs)

	found := false
	for _, in := range code.Get(0).Instrs {
		if in.Op.BaseOp() == OpI32Add {
			if !in.Op.IsImm() {
				t.Fatalf("i32.add with a constant right operand should use the imm16 encoding, got %v", in.Op)
			}
			if in.C != 100 {
				t.Fatalf("imm16 operand = %d, want 100", in.C)
			}
			found = true
		}
	}
	if !found {
		t.Fatal("expected an i32.add instruction in the compiled output")
	}

	inst := instantiate(t, m, code)
	results, err := NewExecutor(inst, DefaultLimits()).Call(0, []uint64{7})
	if err != nil {
		t.Fatalf("call: %v", err)
	}
	if len(results) != 1 || int32(results[0]) != 107 {
		t.Fatalf("got %v, want [107]", results)
	}
}

// TestTranslatorBinaryOpSwapsConstToRightForImm16 confirms a commutative
// op with its constant operand pushed first (left of the register operand
// on the Wasm stack) is still emitted with the imm16 encoding, per
// spec.md 4.5's "commutative operators swap operands so a constant is
// always on the right" rule.
func TestTranslatorBinaryOpSwapsConstToRightForImm16(t *testing.T) {
	sig := wasm.FuncType{
		Params:  []wasm.ValType{wasm.ValI32},
		Results: []wasm.ValType{wasm.ValI32},
	}
	instrs := []wasm.Instruction{
		{Opcode: wasm.OpI32Const, Imm: wasm.I32Imm{Value: 100}},
		{Opcode: wasm.OpLocalGet, Imm: wasm.LocalImm{LocalIdx: 0}},
		{Opcode: wasm.OpI32Add},
		{Opcode: wasm.OpEnd},
	}
	m, code := buildModule(t, sig, instrs)

	found := false
	for _, in := range code.Get(0).Instrs {
		if in.Op.BaseOp() == OpI32Add {
			if !in.Op.IsImm() {
				t.Fatalf("i32.add with a swapped constant operand should use the imm16 encoding, got %v", in.Op)
			}
			if in.C != 100 {
				t.Fatalf("imm16 operand = %d, want 100", in.C)
			}
			found = true
		}
	}
	if !found {
		t.Fatal("expected an i32.add instruction in the compiled output")
	}

	inst := instantiate(t, m, code)
	results, err := NewExecutor(inst, DefaultLimits()).Call(0, []uint64{7})
	if err != nil {
		t.Fatalf("call: %v", err)
	}
	if len(results) != 1 || int32(results[0]) != 107 {
		t.Fatalf("got %v, want [107]", results)
	}
}

// TestTranslatorBinaryOpNoImm16WhenConstTooLarge confirms a constant that
// doesn't fit a 16-bit immediate still goes through the general
// register-or-const encoding rather than the imm16 one.
func TestTranslatorBinaryOpNoImm16WhenConstTooLarge(t *testing.T) {
	sig := wasm.FuncType{
		Params:  []wasm.ValType{wasm.ValI32},
		Results: []wasm.ValType{wasm.ValI32},
	}
	instrs := []wasm.Instruction{
		{Opcode: wasm.OpLocalGet, Imm: wasm.LocalImm{LocalIdx: 0}},
		{Opcode: wasm.OpI32Const, Imm: wasm.I32Imm{Value: 1_000_000}},
		{Opcode: wasm.OpI32Add},
		{Opcode: wasm.OpEnd},
	}
	_, code := buildModule(t, sig, instrs)

	for _, in := range code.Get(0).Instrs {
		if in.Op.BaseOp() == OpI32Add && in.Op.IsImm() {
			t.Fatalf("a constant outside int16 range must not use the imm16 encoding, got %v", in)
		}
	}
}

func TestTranslatorI32WrapI64Truncates(t *testing.T) {
	sig := wasm.FuncType{
		Params:  []wasm.ValType{wasm.ValI64},
		Results: []wasm.ValType{wasm.ValI32},
	}
	instrs := []wasm.Instruction{
		{Opcode: wasm.OpLocalGet, Imm: wasm.LocalImm{LocalIdx: 0}},
		{Opcode: wasm.OpI32WrapI64},
		{Opcode: wasm.OpEnd},
	}
	m, code := buildModule(t, sig, instrs)
	inst := instantiate(t, m, code)
	exec := NewExecutor(inst, DefaultLimits())

	results, err := exec.Call(0, []uint64{0x1_0000_0002})
	if err != nil {
		t.Fatalf("call: %v", err)
	}
	if len(results) != 1 || uint32(results[0]) != 2 {
		t.Fatalf("got %v, want [2] (low 32 bits only)", results)
	}
}
