package regmach

import "github.com/wippyai/wasm-runtime/wasm"

// translator_numeric.go lowers Wasm's comparison/arithmetic/conversion
// operators. Internal Op constants share their names with wasm/constants.go
// 1:1 for this family (instr.go's comment notes they're declared in the
// same order), so dispatch is a mechanical byte-to-Op translation rather
// than a hand-maintained table — grounded on spec.md 4.5's description of
// a single generic binary/unary-op translator helper parameterized by
// the reference semantic function.

// isNumericOpcode reports whether op is one of the comparison, unary or
// binary arithmetic/conversion instructions handled by visitNumeric.
func isNumericOpcode(op byte) bool {
	switch {
	case op >= wasm.OpI32Eqz && op <= wasm.OpI64Extend32S:
		return true
	}
	return false
}

// numericKind classifies how many abstract-stack operands an opcode
// consumes and what value type the binary/compare ops operate over.
type numericKind struct {
	op      Op
	vt      wasm.ValType
	arity   int // 1 = unary (incl. Eqz/conversions), 2 = binary/compare
	compare bool
}

func numericInfo(wop byte) numericKind {
	switch {
	case wop == wasm.OpI32Eqz:
		return numericKind{OpI32Eqz, wasm.ValI32, 1, true}
	case wop >= wasm.OpI32Eq && wop <= wasm.OpI32GeU:
		return numericKind{Op(OpI32Eq + Op(wop-wasm.OpI32Eq)), wasm.ValI32, 2, true}
	case wop == wasm.OpI64Eqz:
		return numericKind{OpI64Eqz, wasm.ValI64, 1, true}
	case wop >= wasm.OpI64Eq && wop <= wasm.OpI64GeU:
		return numericKind{Op(OpI64Eq + Op(wop-wasm.OpI64Eq)), wasm.ValI64, 2, true}
	case wop >= wasm.OpF32Eq && wop <= wasm.OpF32Ge:
		return numericKind{Op(OpF32Eq + Op(wop-wasm.OpF32Eq)), wasm.ValF32, 2, true}
	case wop >= wasm.OpF64Eq && wop <= wasm.OpF64Ge:
		return numericKind{Op(OpF64Eq + Op(wop-wasm.OpF64Eq)), wasm.ValF64, 2, true}

	case wop >= wasm.OpI32Clz && wop <= wasm.OpI32Popcnt:
		return numericKind{Op(OpI32Clz + Op(wop-wasm.OpI32Clz)), wasm.ValI32, 1, false}
	case wop >= wasm.OpI32Add && wop <= wasm.OpI32Rotr:
		return numericKind{Op(OpI32Add + Op(wop-wasm.OpI32Add)), wasm.ValI32, 2, false}
	case wop >= wasm.OpI64Clz && wop <= wasm.OpI64Popcnt:
		return numericKind{Op(OpI64Clz + Op(wop-wasm.OpI64Clz)), wasm.ValI64, 1, false}
	case wop >= wasm.OpI64Add && wop <= wasm.OpI64Rotr:
		return numericKind{Op(OpI64Add + Op(wop-wasm.OpI64Add)), wasm.ValI64, 2, false}

	case wop >= wasm.OpF32Abs && wop <= wasm.OpF32Sqrt:
		return numericKind{Op(OpF32Abs + Op(wop-wasm.OpF32Abs)), wasm.ValF32, 1, false}
	case wop >= wasm.OpF32Add && wop <= wasm.OpF32Copysign:
		return numericKind{Op(OpF32Add + Op(wop-wasm.OpF32Add)), wasm.ValF32, 2, false}
	case wop >= wasm.OpF64Abs && wop <= wasm.OpF64Sqrt:
		return numericKind{Op(OpF64Abs + Op(wop-wasm.OpF64Abs)), wasm.ValF64, 1, false}
	case wop >= wasm.OpF64Add && wop <= wasm.OpF64Copysign:
		return numericKind{Op(OpF64Add + Op(wop-wasm.OpF64Add)), wasm.ValF64, 2, false}

	case wop >= wasm.OpI32WrapI64 && wop <= wasm.OpF64ReinterpretI64:
		return numericKind{Op(OpI32WrapI64 + Op(wop-wasm.OpI32WrapI64)), 0, 1, false}
	case wop >= wasm.OpI32Extend8S && wop <= wasm.OpI64Extend32S:
		return numericKind{Op(OpI32Extend8S + Op(wop-wasm.OpI32Extend8S)), 0, 1, false}
	}
	panic("regmach: numericInfo: opcode not in numeric range")
}

// visitNumeric lowers a comparison/arithmetic/conversion instruction:
// constant-folds when every operand is constant and the op wouldn't trap,
// else tries an algebraic identity, else emits the instruction (choosing
// the imm16 encoding when the right operand is a small compile-time
// constant).
func (t *Translator) visitNumeric(instr wasm.Instruction) error {
	info := numericInfo(instr.Opcode)
	if info.arity == 1 {
		return t.visitUnaryOp(info.op, info.vt)
	}
	return t.visitBinaryOp(info.op, info.vt)
}

func (t *Translator) visitUnaryOp(op Op, vt wasm.ValType) error {
	a := t.vs.Pop()
	if a.IsConst() {
		v, ok := FoldUnary(op, vt, t.pool.Value(a.ConstRef()))
		if ok {
			t.vs.PushConst(t.pool.Intern(v))
			return nil
		}
	}
	dst := t.vs.PushDynamic()
	t.enc.PushInstr(Instr{Op: op, A: dst, B: a.AsRegister()})
	return nil
}

// isCommutativeOp reports whether op's two operands can be freely swapped.
// Limited to the integer ops that also have an imm16 variant (instr.go's
// opImmFlag): comparisons other than eq/ne would need a dedicated
// operand-swapped instruction variant to preserve their sense (e.g.
// swapping i32.lt_s's operands requires emitting i32.gt_s instead), which
// this engine's opcode set doesn't carry, so they're left encoded exactly
// as popped per spec.md 4.5's generic-translator-helper model.
func isCommutativeOp(op Op) bool {
	switch op {
	case OpI32Add, OpI32Mul, OpI32And, OpI32Or, OpI32Xor, OpI32Eq, OpI32Ne,
		OpI64Add, OpI64Mul, OpI64And, OpI64Or, OpI64Xor, OpI64Eq, OpI64Ne:
		return true
	}
	return false
}

// imm16 reports whether constant word (interpreted per vt) fits a 16-bit
// signed immediate, built on register.go's own Const16 witness rather than
// a second ad hoc range check. Only i32/i64 operands get an imm16 variant;
// original_source's visit.rs never defines one for f32/f64 binary ops
// either (floats have no *_imm16 instruction constructors there), so
// float operands always fall through to the general register-or-const
// encoding.
func imm16(vt wasm.ValType, word uint64) (Register, bool) {
	switch vt {
	case wasm.ValI32:
		c := NewConst16Signed(int32(uint32(word)))
		return Register(c.Value), c.Ok
	case wasm.ValI64:
		c := NewConst16Signed(int64(word))
		return Register(c.Value), c.Ok
	default:
		return 0, false
	}
}

func (t *Translator) visitBinaryOp(op Op, vt wasm.ValType) error {
	lhs, rhs, lhsLocal, rhsLocal, lhsIdx, rhsIdx := t.vs.PopPair()

	if lhs.IsConst() && rhs.IsConst() {
		if v, ok := FoldBinary(op, vt, t.pool.Value(lhs.ConstRef()), t.pool.Value(rhs.ConstRef())); ok {
			t.vs.PushConst(t.pool.Intern(v))
			return nil
		}
		// Would trap (e.g. constant division by zero): fall through and
		// emit the instruction so the trap still fires at run time.
	}

	if ident := TryIdentity(op, vt, lhs, rhs, t.pool); ident.Applies {
		switch {
		case !ident.Provider.IsConst() && !lhs.IsConst() && ident.Provider.Register() == lhs.Register():
			t.vs.pushLocalOrProvider(ident.Provider, lhsLocal, lhsIdx)
		case !ident.Provider.IsConst() && !rhs.IsConst() && ident.Provider.Register() == rhs.Register():
			t.vs.pushLocalOrProvider(ident.Provider, rhsLocal, rhsIdx)
		default:
			t.vs.pushProvider(ident.Provider)
		}
		return nil
	}

	// Put a constant operand on the right, where the imm16 encoding below
	// can use it.
	if isCommutativeOp(op) && lhs.IsConst() && !rhs.IsConst() {
		lhs, rhs = rhs, lhs
	}

	dst := t.vs.PushDynamic()
	if !lhs.IsConst() && rhs.IsConst() {
		if imm, ok := imm16(vt, t.pool.Value(rhs.ConstRef())); ok {
			t.enc.PushInstr(Instr{Op: op | opImmFlag, A: dst, B: lhs.AsRegister(), C: imm})
			return nil
		}
	}
	t.enc.PushInstr(Instr{Op: op, A: dst, B: lhs.AsRegister(), C: rhs.AsRegister()})
	return nil
}

// visitBinary is the shared entry point ref.eq uses (a plain equality,
// not part of the i32/i64/f32/f64 numericInfo table since ref.eq's
// operand type isn't one of those four).
func (t *Translator) visitBinary(wasmOp byte, vt wasm.ValType) error {
	return t.visitBinaryOp(OpI32Eq, vt)
}
