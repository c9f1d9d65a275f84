package regmach

import (
	"testing"
	"unsafe"
)

func TestInstrSize(t *testing.T) {
	if got := unsafe.Sizeof(Instr{}); got != instrSize {
		t.Fatalf("Instr size = %d, want %d", got, instrSize)
	}
}

func TestRegisterSize(t *testing.T) {
	if got := unsafe.Sizeof(Register(0)); got != 2 {
		t.Fatalf("Register size = %d, want 2", got)
	}
}

func TestOpImmFlag(t *testing.T) {
	op := OpI32Add | opImmFlag
	if !op.IsImm() {
		t.Fatal("expected IsImm")
	}
	if op.BaseOp() != OpI32Add {
		t.Fatalf("BaseOp = %v, want OpI32Add", op.BaseOp())
	}
	if OpI32Add.IsImm() {
		t.Fatal("plain op should not report IsImm")
	}
}

func TestRegisterConstEncoding(t *testing.T) {
	pool := NewConstPool()
	ref := pool.InternI32(42)
	r := constReg(ref)
	if !r.IsConst() {
		t.Fatal("expected constant register")
	}
	if r.ConstHandle() != ref {
		t.Fatalf("ConstHandle = %v, want %v", r.ConstHandle(), ref)
	}
	if Register(0).IsConst() {
		t.Fatal("register 0 must be a valid local, not a constant")
	}
}
