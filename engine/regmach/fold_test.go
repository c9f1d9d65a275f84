package regmach

import (
	"math"
	"testing"

	"github.com/wippyai/wasm-runtime/wasm"
)

func TestFoldBinaryI32Add(t *testing.T) {
	result, ok := FoldBinary(OpI32Add, wasm.ValI32, uint64(uint32(19)), uint64(uint32(23)))
	if !ok {
		t.Fatal("expected i32.add of two constants to fold")
	}
	if int32(uint32(result)) != 42 {
		t.Fatalf("got %d, want 42", int32(uint32(result)))
	}
}

func TestFoldBinaryI32DivByZeroDoesNotFold(t *testing.T) {
	// a constant i32.div_s by zero still traps at runtime: scenario 5
	// (spec.md 8) requires the instruction to be emitted, not folded away.
	_, ok := FoldBinary(OpI32DivS, wasm.ValI32, uint64(uint32(1)), uint64(uint32(0)))
	if ok {
		t.Fatal("i32.div_s by a constant zero must not fold")
	}
}

func TestFoldBinaryI32DivOverflowDoesNotFold(t *testing.T) {
	_, ok := FoldBinary(OpI32DivS, wasm.ValI32, uint64(uint32(math.MinInt32)), uint64(uint32(-1)))
	if ok {
		t.Fatal("MinInt32 / -1 must not fold (it would trap with TrapIntegerOverflow)")
	}
}

func TestFoldBinaryCompareProducesBoolWord(t *testing.T) {
	result, ok := FoldBinary(OpI32Eq, wasm.ValI32, uint64(uint32(5)), uint64(uint32(5)))
	if !ok || result != 1 {
		t.Fatalf("got result=%d ok=%v, want 1/true", result, ok)
	}
	result, ok = FoldBinary(OpI32Eq, wasm.ValI32, uint64(uint32(5)), uint64(uint32(6)))
	if !ok || result != 0 {
		t.Fatalf("got result=%d ok=%v, want 0/true", result, ok)
	}
}

func TestFoldUnaryI32Eqz(t *testing.T) {
	result, ok := FoldUnary(OpI32Eqz, wasm.ValI32, 0)
	if !ok || result != 1 {
		t.Fatalf("eqz(0) = %d/%v, want 1/true", result, ok)
	}
	result, ok = FoldUnary(OpI32Eqz, wasm.ValI32, 1)
	if !ok || result != 0 {
		t.Fatalf("eqz(1) = %d/%v, want 0/true", result, ok)
	}
}

func TestFoldBinaryI64Add(t *testing.T) {
	result, ok := FoldBinary(OpI64Add, wasm.ValI64, uint64(20), uint64(22))
	if !ok || result != 42 {
		t.Fatalf("got result=%d ok=%v, want 42/true", result, ok)
	}
}

func TestFoldBinaryF64Add(t *testing.T) {
	a := math.Float64bits(1.5)
	b := math.Float64bits(2.25)
	result, ok := FoldBinary(OpF64Add, wasm.ValF64, a, b)
	if !ok {
		t.Fatal("expected f64.add of two constants to fold")
	}
	if got := math.Float64frombits(result); got != 3.75 {
		t.Fatalf("got %v, want 3.75", got)
	}
}
