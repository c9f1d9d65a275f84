package regmach

import "github.com/wippyai/wasm-runtime/wasm"

// translator_memory.go lowers typed loads/stores, memory.size/grow,
// table.get/set, and the 0xFC-prefixed bulk memory/table and saturating
// truncation operators. Grounded on spec.md 4.5's Loads/stores and
// Table/memory bulk ops subsections. Non-goal: multi-memory (spec.md §5),
// so every memarg's MemIdx is assumed 0 and never encoded.

// loadOpVariants returns the general/offset16/at opcode triple for one of
// the four full-width loads; narrower loads (Load8S, Load16U, ...) only
// have a general encoding in instr.go, so ok is false for them.
func loadOpVariants(wop byte) (general, offset16, at Op, ok bool) {
	switch wop {
	case wasm.OpI32Load:
		return OpI32Load, OpI32LoadOffset16, OpI32LoadAt, true
	case wasm.OpI64Load:
		return OpI64Load, OpI64LoadOffset16, OpI64LoadAt, true
	case wasm.OpF32Load:
		return OpF32Load, OpF32LoadOffset16, OpF32LoadAt, true
	case wasm.OpF64Load:
		return OpF64Load, OpF64LoadOffset16, OpF64LoadAt, true
	default:
		return narrowLoadOp(wop), 0, 0, false
	}
}

func narrowLoadOp(wop byte) Op {
	return Op(OpI32Load8S + Op(wop-wasm.OpI32Load8S))
}

// storeOpVariants returns this store's general and (if any) offset16
// opcodes. The four full-width stores additionally have an "at" variant
// (base folded into an absolute constant); the narrow stores (Store8,
// Store16, Store32) only have general/offset16 per instr.go.
func storeOpVariants(wop byte) (general, offset16, at Op, hasAt bool) {
	switch wop {
	case wasm.OpI32Store:
		return OpI32Store, OpI32StoreOffset16, OpI32StoreAt, true
	case wasm.OpI64Store:
		return OpI64Store, OpI64StoreOffset16, OpI64StoreAt, true
	case wasm.OpF32Store:
		return OpF32Store, OpF32StoreOffset16, OpF32StoreAt, true
	case wasm.OpF64Store:
		return OpF64Store, OpF64StoreOffset16, OpF64StoreAt, true
	case wasm.OpI32Store8:
		return OpI32Store8, OpI32Store8Offset16, 0, false
	case wasm.OpI32Store16:
		return OpI32Store16, OpI32Store16Offset16, 0, false
	case wasm.OpI64Store8:
		return OpI64Store8, OpI64Store8Offset16, 0, false
	case wasm.OpI64Store16:
		return OpI64Store16, OpI64Store16Offset16, 0, false
	case wasm.OpI64Store32:
		return OpI64Store32, OpI64Store32Offset16, 0, false
	default:
		panic("regmach: storeOpVariants: opcode not a store")
	}
}

// storeImmOp returns the small-constant-value variant for i32.store and
// i64.store; float and narrower stores have no imm variant in instr.go.
func storeImmOp(general Op) (Op, bool) {
	switch general {
	case OpI32Store:
		return OpI32StoreImm16, true
	case OpI64Store:
		return OpI64StoreImm16, true
	default:
		return 0, false
	}
}

func (t *Translator) visitLoad(instr wasm.Instruction) error {
	imm := instr.Imm.(wasm.MemoryImm)
	base := t.vs.Pop()
	general, offset16, at, hasVariants := loadOpVariants(instr.Opcode)
	dst := t.vs.PushDynamic()

	if base.IsConst() {
		addr := t.pool.Value(base.ConstRef()) + imm.Offset
		ref := t.pool.InternI64(int64(addr))
		if hasVariants {
			t.enc.PushInstr(Instr{Op: at, A: dst, C: constReg(ref)})
			return nil
		}
		// Narrow loads have no folded "at" form: express the already
		// precomputed absolute address as a constant base with a zero
		// offset, reusing the general (base + offset) encoding so the
		// executor never has to guess whether B names a real base
		// register or a folded-away placeholder.
		zeroOff := t.pool.InternI64(0)
		t.enc.PushInstr(Instr{Op: general, A: dst, B: constReg(ref), C: constReg(zeroOff)})
		return nil
	}

	if hasVariants {
		if imm16 := NewConst16Unsigned[uint64](imm.Offset); imm16.Ok {
			t.enc.PushInstr(Instr{Op: offset16, A: dst, B: base.AsRegister(), C: Register(imm16.Value)})
			return nil
		}
	}

	offRef := t.pool.InternI64(int64(imm.Offset))
	t.enc.PushInstr(Instr{Op: general, A: dst, B: base.AsRegister(), C: constReg(offRef)})
	return nil
}

func (t *Translator) visitStore(instr wasm.Instruction) error {
	imm := instr.Imm.(wasm.MemoryImm)
	value := t.vs.Pop()
	base := t.vs.Pop()
	general, offset16, at, hasAt := storeOpVariants(instr.Opcode)

	if base.IsConst() {
		addr := t.pool.Value(base.ConstRef()) + imm.Offset
		ref := t.pool.InternI64(int64(addr))
		if hasAt {
			t.enc.PushInstr(Instr{Op: at, A: value.AsRegister(), C: constReg(ref)})
			return nil
		}
		zeroOff := t.pool.InternI64(0)
		t.enc.PushInstr(Instr{Op: general, A: value.AsRegister(), B: constReg(ref), C: constReg(zeroOff)})
		return nil
	}

	if value.IsConst() {
		if immOp, ok := storeImmOp(general); ok {
			if imm16 := NewConst16Signed(int64(t.pool.Value(value.ConstRef()))); imm16.Ok {
				if baseImm16 := NewConst16Unsigned[uint64](imm.Offset); baseImm16.Ok {
					t.enc.PushInstr(Instr{Op: immOp, A: base.AsRegister(), B: Register(baseImm16.Value), C: Register(imm16.Value)})
					return nil
				}
			}
		}
	}

	if imm16 := NewConst16Unsigned[uint64](imm.Offset); imm16.Ok {
		t.enc.PushInstr(Instr{Op: offset16, A: value.AsRegister(), B: base.AsRegister(), C: Register(imm16.Value)})
		return nil
	}

	offRef := t.pool.InternI64(int64(imm.Offset))
	t.enc.PushInstr(Instr{Op: general, A: value.AsRegister(), B: base.AsRegister(), C: constReg(offRef)})
	return nil
}

func (t *Translator) visitMemorySize() error {
	dst := t.vs.PushDynamic()
	t.enc.PushInstr(Instr{Op: OpMemorySize, A: dst})
	return nil
}

func (t *Translator) visitMemoryGrow() error {
	delta := t.vs.Pop()
	// memory.grow 0 folds to memory.size (the delta is a constant zero):
	// growing by nothing always succeeds and returns the current size.
	if delta.IsConst() && t.pool.Value(delta.ConstRef()) == 0 {
		return t.visitMemorySize()
	}
	dst := t.vs.PushDynamic()
	t.enc.PushInstr(Instr{Op: OpMemoryGrow, A: dst, B: delta.AsRegister()})
	return nil
}

func (t *Translator) visitTableGet(idx uint32) error {
	index := t.vs.Pop()
	dst := t.vs.PushDynamic()
	t.enc.PushInstr(Instr{Op: OpTableGet, A: dst, B: index.AsRegister(), C: Register(idx)})
	return nil
}

func (t *Translator) visitTableSet(idx uint32) error {
	value := t.vs.Pop()
	index := t.vs.Pop()
	t.enc.PushInstr(Instr{Op: OpTableSet, A: index.AsRegister(), B: value.AsRegister(), C: Register(idx)})
	return nil
}

// visitMisc lowers the 0xFC-prefixed opcode space: saturating truncation
// (a unary numeric op, routed back through visitUnaryOp) and the bulk
// memory/table operators, each emitted with its dst/src/len-first operand
// layout plus a continuation slot for the operands instr.go documents
// don't fit in three register slots.
func (t *Translator) visitMisc(imm wasm.MiscImm) error {
	switch imm.SubOpcode {
	case wasm.MiscI32TruncSatF32S, wasm.MiscI32TruncSatF32U, wasm.MiscI32TruncSatF64S, wasm.MiscI32TruncSatF64U,
		wasm.MiscI64TruncSatF32S, wasm.MiscI64TruncSatF32U, wasm.MiscI64TruncSatF64S, wasm.MiscI64TruncSatF64U:
		op := Op(OpI32TruncSatF32S + Op(imm.SubOpcode-wasm.MiscI32TruncSatF32S))
		return t.visitUnaryOp(op, 0)

	case wasm.MiscMemoryInit:
		dataIdx := imm.Operands[0]
		n := t.vs.Pop()
		src := t.vs.Pop()
		dst := t.vs.Pop()
		t.enc.PushInstr(Instr{Op: OpMemoryInit, A: dst.AsRegister(), B: src.AsRegister(), C: n.AsRegister()})
		t.enc.AppendInstr(Instr{Op: OpRegList, A: Register(dataIdx), B: RegUnused, C: RegUnused})
		return nil

	case wasm.MiscDataDrop:
		t.enc.PushInstr(Instr{Op: OpDataDrop, A: Register(imm.Operands[0])})
		return nil

	case wasm.MiscMemoryCopy:
		n := t.vs.Pop()
		src := t.vs.Pop()
		dst := t.vs.Pop()
		t.enc.PushInstr(Instr{Op: OpMemoryCopy, A: dst.AsRegister(), B: src.AsRegister(), C: n.AsRegister()})
		return nil

	case wasm.MiscMemoryFill:
		n := t.vs.Pop()
		val := t.vs.Pop()
		dst := t.vs.Pop()
		t.enc.PushInstr(Instr{Op: OpMemoryFill, A: dst.AsRegister(), B: val.AsRegister(), C: n.AsRegister()})
		return nil

	case wasm.MiscTableInit:
		elemIdx, tableIdx := imm.Operands[0], imm.Operands[1]
		n := t.vs.Pop()
		src := t.vs.Pop()
		dst := t.vs.Pop()
		t.enc.PushInstr(Instr{Op: OpTableInit, A: dst.AsRegister(), B: src.AsRegister(), C: n.AsRegister()})
		t.enc.AppendInstr(Instr{Op: OpRegList, A: Register(elemIdx), B: Register(tableIdx), C: RegUnused})
		return nil

	case wasm.MiscElemDrop:
		t.enc.PushInstr(Instr{Op: OpElemDrop, A: Register(imm.Operands[0])})
		return nil

	case wasm.MiscTableCopy:
		dstTableIdx, srcTableIdx := imm.Operands[0], imm.Operands[1]
		n := t.vs.Pop()
		src := t.vs.Pop()
		dst := t.vs.Pop()
		t.enc.PushInstr(Instr{Op: OpTableCopy, A: dst.AsRegister(), B: src.AsRegister(), C: n.AsRegister()})
		t.enc.AppendInstr(Instr{Op: OpRegList, A: Register(dstTableIdx), B: Register(srcTableIdx), C: RegUnused})
		return nil

	case wasm.MiscTableGrow:
		tableIdx := imm.Operands[0]
		n := t.vs.Pop()
		fill := t.vs.Pop()
		dst := t.vs.PushDynamic()
		t.enc.PushInstr(Instr{Op: OpTableGrow, A: dst, B: n.AsRegister(), C: Register(tableIdx)})
		t.enc.AppendInstr(Instr{Op: OpRegList, A: fill.AsRegister(), B: RegUnused, C: RegUnused})
		return nil

	case wasm.MiscTableSize:
		tableIdx := imm.Operands[0]
		dst := t.vs.PushDynamic()
		t.enc.PushInstr(Instr{Op: OpTableSize, A: dst, C: Register(tableIdx)})
		return nil

	case wasm.MiscTableFill:
		tableIdx := imm.Operands[0]
		n := t.vs.Pop()
		val := t.vs.Pop()
		dst := t.vs.Pop()
		t.enc.PushInstr(Instr{Op: OpTableFill, A: dst.AsRegister(), B: val.AsRegister(), C: n.AsRegister()})
		t.enc.AppendInstr(Instr{Op: OpRegList, A: Register(tableIdx), B: RegUnused, C: RegUnused})
		return nil

	default:
		panic("regmach: unsupported misc sub-opcode")
	}
}
