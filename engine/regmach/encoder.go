package regmach

// Encoder is an append-only buffer of Instr plus a side table of labels.
// It performs peephole fusion of adjacent instructions (e.g. a comparison
// immediately followed by a conditional branch) when PushInstr is used;
// AppendInstr bypasses fusion for multi-slot continuation words.
type Encoder struct {
	instrs []Instr
	labels LabelTable
	pool   *ConstPool

	// lastPushPos, when >= 0, is the position of the instruction most
	// recently appended via PushInstr — the fusion window. Any
	// basic-block boundary (`end`, a pinned label, AppendInstr) must call
	// ResetLastInstr so a later PushInstr can't fuse across it.
	lastPushPos InstrPos
}

const noLastInstr InstrPos = -1

// NewEncoder creates an encoder writing constants into pool.
func NewEncoder(pool *ConstPool) *Encoder {
	return &Encoder{pool: pool, lastPushPos: noLastInstr}
}

// Len returns the number of Instr slots written so far.
func (e *Encoder) Len() int { return len(e.instrs) }

// Instrs returns the encoder's buffer. Valid only after Finalize.
func (e *Encoder) Instrs() []Instr { return e.instrs }

// PushInstr appends instr, returning its position. It first attempts
// peephole fusion against the instruction at lastPushPos.
func (e *Encoder) PushInstr(instr Instr) InstrPos {
	if e.lastPushPos != noLastInstr {
		if fused, ok := e.tryFuse(e.instrs[e.lastPushPos], instr); ok {
			e.instrs[e.lastPushPos] = fused
			// The fused instruction now stands in for both; keep the
			// fusion window open at the same position so a third
			// instruction could in principle fuse again (not currently
			// exercised, but harmless).
			return e.lastPushPos
		}
	}
	pos := InstrPos(len(e.instrs))
	e.instrs = append(e.instrs, instr)
	e.lastPushPos = pos
	return pos
}

// AppendInstr unconditionally appends a trailing continuation slot and
// never participates in fusion. Used for call argument lists, branch
// table arms, and any other multi-slot encoding.
func (e *Encoder) AppendInstr(instr Instr) InstrPos {
	pos := InstrPos(len(e.instrs))
	e.instrs = append(e.instrs, instr)
	e.ResetLastInstr()
	return pos
}

// ResetLastInstr invalidates the fusion window. Called at basic-block
// boundaries (control-flow `end`, a pinned label).
func (e *Encoder) ResetLastInstr() {
	e.lastPushPos = noLastInstr
}

// tryFuse attempts to combine prev (already emitted, at lastPushPos) with
// next into a single instruction. Only a comparison immediately followed
// by its own conditional branch fuses; everything else returns ok=false.
func (e *Encoder) tryFuse(prev, next Instr) (Instr, bool) {
	if !isComparisonOp(prev.Op) {
		return Instr{}, false
	}
	switch next.Op {
	case OpBranchEqz:
		if next.A == prev.A {
			return Instr{Op: prev.Op | opFusedBranchFlag, A: prev.B, B: next.B, C: prev.C}, true
		}
	case OpBranchNez:
		if next.A == prev.A {
			return Instr{Op: prev.Op | opFusedBranchFlag | opFusedSenseNez, A: prev.B, B: next.B, C: prev.C}, true
		}
	}
	return Instr{}, false
}

// isComparisonOp reports whether op (unfused, non-imm) is one of the
// bool-producing comparisons eligible for branch fusion.
func isComparisonOp(op Op) bool {
	return op >= OpI32Eqz && op <= OpF64Ge
}

// NewLabel allocates a fresh unresolved label.
func (e *Encoder) NewLabel() Label { return e.labels.NewLabel() }

// PinLabel resolves l to the current position, rewriting any pending
// fixups, and closes the fusion window (a pinned label is a basic-block
// boundary: a later branch that targets this point must not be fused
// with whatever code precedes it here).
func (e *Encoder) PinLabel(l Label) {
	pos := InstrPos(len(e.instrs))
	entry := &e.labels.entries[l]
	if entry.resolved {
		panic("regmach: label pinned twice")
	}
	entry.resolved = true
	entry.pos = pos
	for _, ref := range entry.pending {
		e.pool.SetValue(ref, uint64(pos))
	}
	entry.pending = nil
	e.ResetLastInstr()
}

// TryResolveLabel returns a constant register usable as a branch
// instruction's destination operand. If l is already resolved, the
// constant directly holds its absolute position; otherwise a mutable
// slot is reserved and a fixup is registered so PinLabel finishes the job
// later.
func (e *Encoder) TryResolveLabel(l Label) Register {
	if e.labels.IsResolved(l) {
		ref := e.pool.ReserveMutable()
		e.pool.SetValue(ref, uint64(e.labels.Position(l)))
		return constReg(ref)
	}
	ref := e.pool.ReserveMutable()
	e.labels.addFixup(l, ref)
	return constReg(ref)
}

// destPos decodes a branch instruction's destination back into an
// absolute InstrPos.
func destPos(pool *ConstPool, instr Instr) InstrPos {
	return InstrPos(pool.Value(instr.B.ConstHandle()))
}

// EncodeBranchEqz emits "if cond == 0, branch to l", constant-folding a
// constant condition into an unconditional branch or a no-op, and fusing
// with a trailing comparison already in the fusion window.
func (e *Encoder) EncodeBranchEqz(cond Provider, l Label, pool *ConstPool, asBool func(uint64) bool) InstrPos {
	if cond.IsConst() {
		if !asBool(pool.Value(cond.ConstRef())) {
			return e.EncodeBranch(l)
		}
		return noLastInstr // condition is true: eqz never taken, nothing emitted
	}
	dest := e.TryResolveLabel(l)
	return e.PushInstr(Instr{Op: OpBranchEqz, A: cond.Register(), B: dest})
}

// EncodeBranchNez emits "if cond != 0, branch to l", with the same
// constant-folding behavior as EncodeBranchEqz (inverted).
func (e *Encoder) EncodeBranchNez(cond Provider, l Label, pool *ConstPool, asBool func(uint64) bool) InstrPos {
	if cond.IsConst() {
		if asBool(pool.Value(cond.ConstRef())) {
			return e.EncodeBranch(l)
		}
		return noLastInstr
	}
	dest := e.TryResolveLabel(l)
	return e.PushInstr(Instr{Op: OpBranchNez, A: cond.Register(), B: dest})
}

// EncodeBranch emits an unconditional branch to l.
func (e *Encoder) EncodeBranch(l Label) InstrPos {
	dest := e.TryResolveLabel(l)
	return e.PushInstr(Instr{Op: OpBranch, B: dest})
}

// EncodeRegisterList emits the tail continuation slots carrying a
// variadic register list (call arguments, branch-table arm destinations),
// packing up to three registers per slot.
func (e *Encoder) EncodeRegisterList(regs []Register) {
	for i := 0; i < len(regs); i += 3 {
		var slot Instr
		slot.Op = OpRegList
		slot.A = regs[i]
		if i+1 < len(regs) {
			slot.B = regs[i+1]
		} else {
			slot.B = RegUnused
		}
		if i+2 < len(regs) {
			slot.C = regs[i+2]
		} else {
			slot.C = RegUnused
		}
		e.AppendInstr(slot)
	}
}

// RegListSlots returns how many continuation slots EncodeRegisterList
// would use for n registers.
func RegListSlots(n int) int { return (n + 2) / 3 }

// EncodeCopySpan copies the contiguous span [src.Head, src.Head+n) to
// [dst.Head, dst.Head+n), choosing a forward or reverse iteration order
// so an overlapping destination never reads an already-overwritten
// source register. Per spec.md 4.3: a forward loop is unsafe iff
// src.Head < dst.Head < src.Head+n; len 0 or 1, and src==dst, are always
// safe (the last is a no-op and emits nothing).
func (e *Encoder) EncodeCopySpan(dst, src RegSpan) {
	n := int(src.Len)
	if n == 0 || dst.Head == src.Head {
		return
	}
	if n == 1 {
		e.PushInstr(Instr{Op: OpCopy, A: dst.Head, B: src.Head})
		return
	}
	unsafeForward := src.Head < dst.Head && dst.Head < src.Head+Register(n)
	op := OpCopySpan
	if unsafeForward {
		op = OpCopySpanRev
	}
	e.PushInstr(Instr{Op: op, A: dst.Head, B: src.Head, C: Register(n)})
}

// isContiguousAscending reports whether providers p form a run of plain
// (non-constant) registers p[i] = base+i, the shape EncodeCopySpan wants.
func isContiguousAscending(p []Provider) (base Register, ok bool) {
	if len(p) == 0 {
		return 0, false
	}
	if p[0].IsConst() {
		return 0, false
	}
	base = p[0].Register()
	for i, pr := range p {
		if pr.IsConst() || pr.Register() != base+Register(i) {
			return 0, false
		}
	}
	return base, true
}

// EncodeCopies emits the minimum number of instructions realizing
// dst[i] = src[i] for all i. When src happens to already be a contiguous
// ascending register run, it delegates to the overlap-safe span copy;
// otherwise it sequences per-element copies, using scratch (a callback
// allocating a fresh dynamic register) to break cycles created by
// registers that are simultaneously a destination and a still-pending
// source.
func (e *Encoder) EncodeCopies(dst RegSpan, src []Provider, scratch func() Register) {
	n := len(src)
	if n == 0 {
		return
	}
	if base, ok := isContiguousAscending(src); ok {
		e.EncodeCopySpan(dst, RegSpan{Head: base, Len: uint16(n)})
		return
	}

	done := make([]bool, n)
	dstReg := func(i int) Register { return dst.Get(i) }
	remaining := n
	for remaining > 0 {
		progress := false
		for i := 0; i < n; i++ {
			if done[i] || dstReg(i) == src[i].AsRegister() {
				if !done[i] && dstReg(i) == src[i].AsRegister() {
					done[i] = true
					remaining--
					progress = true
				}
				continue
			}
			hazard := false
			for j := 0; j < n; j++ {
				if j == i || done[j] {
					continue
				}
				if !src[j].IsConst() && src[j].Register() == dstReg(i) {
					hazard = true
					break
				}
			}
			if !hazard {
				e.emitOneCopy(dstReg(i), src[i])
				done[i] = true
				remaining--
				progress = true
			}
		}
		if !progress {
			// A pure cycle remains: every pending move's destination is
			// some other pending move's source. Break it by saving one
			// destination's current value to a scratch register and
			// redirecting whoever needed it as a source.
			for i := 0; i < n; i++ {
				if done[i] {
					continue
				}
				tmp := scratch()
				e.PushInstr(Instr{Op: OpCopy, A: tmp, B: dstReg(i)})
				for j := 0; j < n; j++ {
					if !done[j] && !src[j].IsConst() && src[j].Register() == dstReg(i) {
						src[j] = RegProvider(tmp)
					}
				}
				break
			}
		}
	}
}

func (e *Encoder) emitOneCopy(dst Register, p Provider) {
	e.PushInstr(Instr{Op: OpCopy, A: dst, B: p.AsRegister()})
}

// Finalize asserts every referenced label was resolved and returns the
// finished instruction buffer. An unresolved label here is a translator
// bug: it means some emitted branch never got its fixup applied.
func (e *Encoder) Finalize() []Instr {
	if !e.labels.allResolved() {
		panic("regmach: unresolved label at function finalize")
	}
	return e.instrs
}
