package regmach

import "github.com/wippyai/wasm-runtime/wasm"

// translator_locals.go lowers local.{get,set,tee}, global.{get,set},
// select and ref.is_null. Grounded on spec.md 4.5's Local/global
// subsection: local.get is free (just a Provider on the abstract stack);
// local.set/tee must preserve any pending alias of the written local
// before the write lands, per valuestack.go's PreserveLocals contract.

func (t *Translator) visitLocalGet(idx uint32) error {
	t.vs.PushLocal(int32(idx))
	return nil
}

func (t *Translator) visitLocalSet(idx uint32) error {
	v := t.vs.Pop()
	t.vs.PreserveLocals(int32(idx))
	t.enc.PushInstr(Instr{Op: OpCopy, A: Register(idx), B: v.AsRegister()})
	return nil
}

func (t *Translator) visitLocalTee(idx uint32) error {
	v := t.vs.Peek()
	t.vs.PreserveLocals(int32(idx))
	t.enc.PushInstr(Instr{Op: OpCopy, A: Register(idx), B: v.AsRegister()})
	return nil
}

// globalType resolves global index idx (imported globals numbered first,
// then module-defined ones) to its declared type.
func (t *Translator) globalType(idx uint32) wasm.GlobalType {
	nImported := uint32(t.module.NumImportedGlobals())
	if idx < nImported {
		var seen uint32
		for _, imp := range t.module.Imports {
			if imp.Desc.Kind != wasm.KindGlobal {
				continue
			}
			if seen == idx {
				return *imp.Desc.Global
			}
			seen++
		}
		panic("regmach: imported global index out of range")
	}
	return t.module.Globals[idx-nImported].Type
}

func (t *Translator) visitGlobalGet(idx uint32) error {
	dst := t.vs.PushDynamic()
	t.enc.PushInstr(Instr{Op: OpGlobalGet, A: dst, C: Register(idx)})
	return nil
}

func (t *Translator) visitGlobalSet(idx uint32) error {
	v := t.vs.Pop()
	if v.IsConst() {
		if imm := NewConst16Signed(int64(t.pool.Value(v.ConstRef()))); imm.Ok {
			t.enc.PushInstr(Instr{Op: OpGlobalSetImm16, B: Register(imm.Value), C: Register(idx)})
			return nil
		}
	}
	t.enc.PushInstr(Instr{Op: OpGlobalSet, B: v.AsRegister(), C: Register(idx)})
	return nil
}

// visitSelect lowers select/select_t: cond and trueVal/falseVal are
// resolved at translate time when cond is constant (the dead operand is
// simply discarded from the abstract stack, never emitted); otherwise an
// OpSelect plus one continuation slot carrying falseVal is emitted. types
// is nil for the untyped select opcode (single numeric/ref operand type
// inferred by the validator upstream, irrelevant to lowering).
func (t *Translator) visitSelect(types []wasm.ValType) error {
	cond := t.vs.Pop()
	falseVal := t.vs.Pop()
	trueVal := t.vs.Pop()

	if cond.IsConst() {
		if isNonZeroI32(t.pool.Value(cond.ConstRef())) {
			t.vs.pushProvider(trueVal)
		} else {
			t.vs.pushProvider(falseVal)
		}
		return nil
	}

	dst := t.vs.PushDynamic()
	t.enc.PushInstr(Instr{Op: OpSelect, A: dst, B: cond.AsRegister(), C: trueVal.AsRegister()})
	t.enc.AppendInstr(Instr{Op: OpRegList, A: falseVal.AsRegister(), B: RegUnused, C: RegUnused})
	return nil
}

func (t *Translator) visitRefIsNull() error {
	v := t.vs.Pop()
	if v.IsConst() {
		isNull := t.pool.Value(v.ConstRef()) == uint64(int64(-1))
		var result uint64
		if isNull {
			result = 1
		}
		t.vs.PushConst(t.pool.InternI32(int32(result)))
		return nil
	}
	dst := t.vs.PushDynamic()
	t.enc.PushInstr(Instr{Op: OpRefIsNull, A: dst, B: v.AsRegister()})
	return nil
}
