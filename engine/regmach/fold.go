package regmach

import (
	"math"

	"github.com/wippyai/wasm-runtime/wasm"
)

// fold.go implements the translator's constant-folding and
// algebraic-identity passes (spec.md 4.5's "reference semantic function"
// and "custom optimizer hooks"). Folding never applies to an operation
// that would trap: spec.md scenario 5 requires a constant i32.div_s by
// zero to still emit a trapping instruction rather than be folded away.

// FoldBinary evaluates op(a, b) for value type vt when both operands are
// constants. ok is false when the op isn't foldable here (it would trap),
// in which case the translator must emit the instruction normally.
func FoldBinary(op Op, vt wasm.ValType, a, b uint64) (result uint64, ok bool) {
	switch vt {
	case wasm.ValI32:
		if isCompareOp(op) {
			return boolWord(evalI32Compare(op, int32(a), int32(b))), true
		}
		r, _, binOk := evalI32Binary(op, int32(a), int32(b))
		if !binOk {
			return 0, false
		}
		return uint64(uint32(r)), true
	case wasm.ValI64:
		if isCompareOp(op) {
			return boolWord(evalI64Compare(op, int64(a), int64(b))), true
		}
		r, _, binOk := evalI64Binary(op, int64(a), int64(b))
		if !binOk {
			return 0, false
		}
		return uint64(r), true
	case wasm.ValF32:
		af, bf := wordToF32(a), wordToF32(b)
		if isCompareOp(op) {
			return boolWord(evalF32Compare(op, af, bf)), true
		}
		return f32ToWord(evalF32Binary(op, af, bf)), true
	case wasm.ValF64:
		ad, bd := wordToF64(a), wordToF64(b)
		if isCompareOp(op) {
			return boolWord(evalF64Compare(op, ad, bd)), true
		}
		return f64ToWord(evalF64Binary(op, ad, bd)), true
	}
	return 0, false
}

// FoldUnary evaluates op(a) for value type vt when the operand is constant.
func FoldUnary(op Op, vt wasm.ValType, a uint64) (result uint64, ok bool) {
	switch vt {
	case wasm.ValI32:
		if op == OpI32Eqz {
			return boolWord(int32(a) == 0), true
		}
		return uint64(uint32(evalI32Unary(op, int32(a)))), true
	case wasm.ValI64:
		if op == OpI64Eqz {
			return boolWord(int64(a) == 0), true
		}
		return uint64(evalI64Unary(op, int64(a))), true
	case wasm.ValF32:
		return f32ToWord(evalF32Unary(op, wordToF32(a))), true
	case wasm.ValF64:
		return f64ToWord(evalF64Unary(op, wordToF64(a))), true
	}
	return 0, false
}

func isCompareOp(op Op) bool { return op >= OpI32Eqz && op <= OpF64Ge }

func boolWord(b bool) uint64 {
	if b {
		return 1
	}
	return 0
}

// IdentityResult is what an algebraic-identity rewrite decided to replace
// an operation with: either a fresh constant or one of the original
// operands (as a Provider, so the translator need not re-push anything).
type IdentityResult struct {
	Provider Provider
	Applies  bool
}

// TryIdentity implements spec.md 4.5's selected algebraic identities. It
// plays the role of both "custom optimizer" hooks (reg,reg and reg,const)
// unified into one pass, since Go doesn't need the closure-based dispatch
// the original uses to share code across operator families. lhs/rhs are
// the abstract-stack providers about to be combined; pool both resolves
// constant operands for inspection and interns any replacement constant
// an identity produces.
func TryIdentity(op Op, vt wasm.ValType, lhs, rhs Provider, pool *ConstPool) IdentityResult {
	if !lhs.IsConst() && !rhs.IsConst() && lhs.Register() == rhs.Register() {
		if r, ok := identitySameOperand(op, vt, lhs, pool); ok {
			return IdentityResult{Provider: r, Applies: true}
		}
	}
	if rhs.IsConst() {
		if r, ok := identityRHSConst(op, vt, lhs, pool.Value(rhs.ConstRef()), pool); ok {
			return IdentityResult{Provider: r, Applies: true}
		}
	}
	if lhs.IsConst() {
		if r, ok := identityLHSConst(op, vt, pool.Value(lhs.ConstRef()), rhs, pool); ok {
			return IdentityResult{Provider: r, Applies: true}
		}
	}
	return IdentityResult{}
}

func constI32(pool *ConstPool, v int32) Provider { return ConstProvider(pool.InternI32(v)) }
func constI64(pool *ConstPool, v int64) Provider  { return ConstProvider(pool.InternI64(v)) }

// identitySameOperand handles `x op x` for x naming the same register:
// subtraction and xor always fold to zero regardless of x's runtime
// value, comparisons fold to their reflexive result, and integer
// bitwise-and/or of a value with itself is just that value.
func identitySameOperand(op Op, vt wasm.ValType, x Provider, pool *ConstPool) (Provider, bool) {
	switch vt {
	case wasm.ValI32:
		switch op {
		case OpI32Sub, OpI32Xor:
			return constI32(pool, 0), true
		case OpI32And, OpI32Or:
			return x, true
		case OpI32Eq, OpI32LeS, OpI32LeU, OpI32GeS, OpI32GeU:
			return constI32(pool, 1), true
		case OpI32Ne, OpI32LtS, OpI32LtU, OpI32GtS, OpI32GtU:
			return constI32(pool, 0), true
		}
	case wasm.ValI64:
		switch op {
		case OpI64Sub, OpI64Xor:
			return constI64(pool, 0), true
		case OpI64And, OpI64Or:
			return x, true
		case OpI64Eq, OpI64LeS, OpI64LeU, OpI64GeS, OpI64GeU:
			return constI32(pool, 1), true
		case OpI64Ne, OpI64LtS, OpI64LtU, OpI64GtS, OpI64GtU:
			return constI32(pool, 0), true
		}
	}
	return Provider{}, false
}

// identityRHSConst handles `lhs op const` where const is known at
// compile time. Only the side-effect-free, value-independent identities
// from spec.md 4.5 are applied; float x*0, x-0 and sign-of-zero cases are
// deliberately excluded since Wasm's signed-zero/NaN rules depend on the
// runtime value of the non-constant operand.
func identityRHSConst(op Op, vt wasm.ValType, lhs Provider, c uint64, pool *ConstPool) (Provider, bool) {
	switch vt {
	case wasm.ValI32:
		cv := int32(c)
		switch op {
		case OpI32Add, OpI32Or, OpI32Xor, OpI32Sub:
			if cv == 0 {
				return lhs, true
			}
		case OpI32Mul:
			if cv == 0 {
				return constI32(pool, 0), true
			}
			if cv == 1 {
				return lhs, true
			}
		case OpI32DivS, OpI32DivU:
			if cv == 1 {
				return lhs, true
			}
		case OpI32RemS, OpI32RemU:
			if cv == 1 {
				return constI32(pool, 0), true
			}
		case OpI32And:
			if cv == -1 {
				return lhs, true
			}
			if cv == 0 {
				return constI32(pool, 0), true
			}
		}
	case wasm.ValI64:
		cv := int64(c)
		switch op {
		case OpI64Add, OpI64Or, OpI64Xor, OpI64Sub:
			if cv == 0 {
				return lhs, true
			}
		case OpI64Mul:
			if cv == 0 {
				return constI64(pool, 0), true
			}
			if cv == 1 {
				return lhs, true
			}
		case OpI64DivS, OpI64DivU:
			if cv == 1 {
				return lhs, true
			}
		case OpI64RemS, OpI64RemU:
			if cv == 1 {
				return constI64(pool, 0), true
			}
		case OpI64And:
			if cv == -1 {
				return lhs, true
			}
			if cv == 0 {
				return constI64(pool, 0), true
			}
		}
	case wasm.ValF32:
		f := wordToF32(c)
		switch op {
		case OpF32Min:
			if f == float32(math.Inf(1)) {
				return lhs, true
			}
		case OpF32Max:
			if f == float32(math.Inf(-1)) {
				return lhs, true
			}
		}
	case wasm.ValF64:
		f := wordToF64(c)
		switch op {
		case OpF64Min:
			if f == math.Inf(1) {
				return lhs, true
			}
		case OpF64Max:
			if f == math.Inf(-1) {
				return lhs, true
			}
		}
	}
	return Provider{}, false
}

// identityLHSConst handles `const op rhs`: shift/rotate/or of an
// all-ones value folds to -1 regardless of the shift amount or the other
// operand, and `0 & rhs` folds to 0.
func identityLHSConst(op Op, vt wasm.ValType, c uint64, rhs Provider, pool *ConstPool) (Provider, bool) {
	switch vt {
	case wasm.ValI32:
		cv := int32(c)
		if cv == -1 {
			switch op {
			case OpI32ShrS, OpI32Rotl, OpI32Rotr, OpI32Or:
				return constI32(pool, -1), true
			}
		}
		if cv == 0 && op == OpI32And {
			return constI32(pool, 0), true
		}
	case wasm.ValI64:
		cv := int64(c)
		if cv == -1 {
			switch op {
			case OpI64ShrS, OpI64Rotl, OpI64Rotr, OpI64Or:
				return constI64(pool, -1), true
			}
		}
		if cv == 0 && op == OpI64And {
			return constI64(pool, 0), true
		}
	}
	return Provider{}, false
}
