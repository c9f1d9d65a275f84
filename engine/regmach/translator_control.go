package regmach

import "github.com/wippyai/wasm-runtime/wasm"

// translator_control.go lowers block/loop/if/else/end, the branch family,
// and return. Every branch target's BranchParams span (reserved at the
// frame's entry, written just before any branch or exit) is what unifies
// the different ways a value can reach a structured control boundary —
// straight-line fallthrough, an explicit br, or a constant-folded br_if —
// into one copy-then-jump shape, grounded on spec.md 4.3's control-frame
// state machine and 4.6's label/branch-parameter design.

func isNonZeroI32(w uint64) bool { return uint32(w) != 0 }

// blockTypeSig resolves a BlockImm's type into its params/results, reading
// the module's type section for a multi-value signature.
func (t *Translator) blockTypeSig(bt int32) (params, results []wasm.ValType) {
	switch bt {
	case wasm.BlockTypeVoid:
		return nil, nil
	case -1:
		return nil, []wasm.ValType{wasm.ValI32}
	case -2:
		return nil, []wasm.ValType{wasm.ValI64}
	case -3:
		return nil, []wasm.ValType{wasm.ValF32}
	case -4:
		return nil, []wasm.ValType{wasm.ValF64}
	default:
		ft := t.module.Types[bt]
		return ft.Params, ft.Results
	}
}

// reserveSpan allocates n fresh registers for a control frame's
// BranchParams without disturbing the abstract stack.
func (t *Translator) reserveSpan(n int) RegSpan { return t.vs.ReserveSpan(n) }

// materializeTop pops the top n stack entries and re-pushes them backed by
// a freshly allocated contiguous span, returning that span. Used at a
// loop's entry: the loop's params must live in one stable location so a
// back-edge `br` can deposit the next iteration's values there.
func (t *Translator) materializeTop(n int) RegSpan {
	if n == 0 {
		return RegSpan{}
	}
	providers := make([]Provider, n)
	t.vs.PopN(n, providers)
	span := t.vs.PushDynamicN(n)
	t.enc.EncodeCopies(span, providers, t.vs.AllocScratch)
	return span
}

func (t *Translator) visitUnreachable() error {
	t.enc.PushInstr(Instr{Op: OpTrap, A: Register(TrapUnreachableCodeReached)})
	t.cs.Last().Dead = true
	return nil
}

func (t *Translator) visitBlockLike(instr wasm.Instruction) error {
	bt := instr.Imm.(wasm.BlockImm).Type
	params, results := t.blockTypeSig(bt)
	dead := t.cs.Last().Dead

	switch instr.Opcode {
	case wasm.OpLoop:
		return t.enterBlockOrLoop(FrameLoop, params, results, dead)
	case wasm.OpIf:
		return t.enterIf(params, results, dead)
	default: // wasm.OpBlock
		return t.enterBlockOrLoop(FrameBlock, params, results, dead)
	}
}

func (t *Translator) enterBlockOrLoop(kind FrameKind, params, results []wasm.ValType, dead bool) error {
	n := len(params)
	entryHeight := t.vs.Height() - n
	dynBase := t.vs.NextDynamic()

	var branchParams RegSpan
	var headerLabel Label
	fuelInstr := t.cs.Last().FuelInstr
	hasFuel := t.cs.Last().HasFuel

	if kind == FrameLoop {
		branchParams = t.materializeTop(n)
		headerLabel = t.enc.NewLabel()
		t.enc.PinLabel(headerLabel)
		// A loop header is a basic-block entry reachable repeatedly by its
		// own back-edge, so (unlike a plain block) it gets its own
		// ConsumeFuel rather than sharing the enclosing one.
		fuelInstr = t.enc.PushInstr(Instr{Op: OpConsumeFuel, A: 0})
		hasFuel = true
	} else {
		branchParams = t.reserveSpan(len(results))
	}

	endLabel := t.enc.NewLabel()
	t.cs.PushFrame(ControlFrame{
		Kind:          kind,
		Params:        params,
		Results:       results,
		StackHeight:   entryHeight,
		DynamicBase:   dynBase,
		FuelInstr:     fuelInstr,
		HasFuel:       hasFuel,
		BranchParams:  branchParams,
		EndLabel:      endLabel,
		HeaderLabel:   headerLabel,
		Dead:          dead,
		InheritedDead: dead,
	})
	return nil
}

func (t *Translator) enterIf(params, results []wasm.ValType, dead bool) error {
	cond := t.vs.Pop()

	// The saved entry params are read again later, at `else`, after the
	// then-arm has run and possibly written to a local one of them
	// aliases: freeze their current values now so the else-arm sees the
	// if's actual entry state rather than whatever the then-arm left
	// behind.
	t.vs.PreserveAllLocals()

	n := len(params)
	entryHeight := t.vs.Height() - n
	dynBase := t.vs.NextDynamic()

	saved := make([]Provider, n)
	t.vs.PeekN(n, saved)
	t.cs.PushElseProviders(saved)

	branchParams := t.reserveSpan(len(results))
	elseLabel := t.enc.NewLabel()
	endLabel := t.enc.NewLabel()

	// A constant condition still walks both arms (so `else` is matched and
	// any locals it touches are tracked), but one of them is known never
	// to run: EncodeBranchEqz already elides the conditional branch itself
	// in that case (an unconditional branch or nothing at all), and the
	// statically-dead arm's own Dead flag records that its emitted code,
	// while harmless to encode, can never execute.
	t.enc.EncodeBranchEqz(cond, elseLabel, t.pool, isNonZeroI32)

	thenDead, elseForcedDead := dead, false
	if cond.IsConst() {
		if isNonZeroI32(t.pool.Value(cond.ConstRef())) {
			elseForcedDead = true
		} else {
			thenDead = true
		}
	}

	t.cs.PushFrame(ControlFrame{
		Kind:           FrameIf,
		Params:         params,
		Results:        results,
		StackHeight:    entryHeight,
		DynamicBase:    dynBase,
		FuelInstr:      t.cs.Last().FuelInstr,
		HasFuel:        t.cs.Last().HasFuel,
		BranchParams:   branchParams,
		EndLabel:       endLabel,
		ElseLabel:      elseLabel,
		IfReach:        IfOnlyThen,
		Dead:           thenDead,
		InheritedDead:  dead,
		ElseForcedDead: elseForcedDead,
	})
	return nil
}

// closeIfArm finishes the then-arm (or, from visitEnd on an if with no
// explicit else, its implicit empty else-arm's mirror step): it copies
// the arm's results into frame.BranchParams, jumps past the else-arm,
// pins the conditional branch's false target, and restores the saved
// entry params as the else-arm's starting stack.
func (t *Translator) closeIfArm(frame *ControlFrame) {
	n := len(frame.Results)
	vals := make([]Provider, n)
	t.vs.PopN(n, vals)
	t.enc.EncodeCopies(frame.BranchParams, vals, t.vs.AllocScratch)
	t.enc.EncodeBranch(frame.EndLabel)
	t.enc.PinLabel(frame.ElseLabel)
	t.vs.Trunc(frame.StackHeight)
	t.vs.ResetDynamicTo(frame.DynamicBase)
	for _, p := range t.cs.PopElseProviders() {
		t.vs.pushProvider(p)
	}
}

func (t *Translator) visitElse() error {
	frame := t.cs.Last()
	if frame.Kind != FrameIf {
		panic("regmach: else without a matching if")
	}
	t.closeIfArm(frame)
	frame.ElseVisited = true
	frame.IfReach = IfBoth
	frame.Dead = frame.InheritedDead || frame.ElseForcedDead
	return nil
}

func (t *Translator) visitEnd() error {
	frame := *t.cs.Last()

	if frame.Kind == FrameIf && !frame.ElseVisited {
		t.closeIfArm(&frame)
	}

	n := len(frame.Results)
	vals := make([]Provider, n)
	t.vs.PopN(n, vals)

	if frame.Kind != FrameLoop {
		t.enc.EncodeCopies(frame.BranchParams, vals, t.vs.AllocScratch)
	}
	t.enc.PinLabel(frame.EndLabel)

	t.vs.Trunc(frame.StackHeight)
	t.vs.ResetDynamicTo(frame.DynamicBase)

	if frame.Kind == FrameLoop {
		for _, v := range vals {
			t.vs.pushProvider(v)
		}
	} else {
		for i := 0; i < n; i++ {
			t.vs.pushProvider(RegProvider(frame.BranchParams.Get(i)))
		}
	}

	t.cs.PopFrame()
	return nil
}

// targetArity returns the number of values a branch to target must carry:
// a loop's Params (a back-edge feeds the next iteration's inputs) or a
// block/if/function's Results.
func (t *Translator) targetArity(target AcquiredTarget) int {
	if target.IsReturn {
		return len(t.sig.Results)
	}
	if target.Frame.Kind == FrameLoop {
		return len(target.Frame.Params)
	}
	return len(target.Frame.Results)
}

func (t *Translator) emitReturnSequenceFrom(vals []Provider) error {
	switch len(vals) {
	case 0:
		t.enc.PushInstr(Instr{Op: OpReturn})
	case 1:
		t.enc.PushInstr(Instr{Op: OpReturnReg, A: vals[0].AsRegister()})
	default:
		span := t.reserveSpan(len(vals))
		t.enc.EncodeCopies(span, vals, t.vs.AllocScratch)
		t.enc.PushInstr(Instr{Op: OpReturnSpan, A: span.Head, C: Register(len(vals))})
	}
	return nil
}

func (t *Translator) emitReturnSequence() error {
	n := len(t.sig.Results)
	vals := make([]Provider, n)
	t.vs.PeekN(n, vals)
	return t.emitReturnSequenceFrom(vals)
}

func (t *Translator) visitReturn() error {
	if err := t.emitReturnSequence(); err != nil {
		return err
	}
	t.cs.Last().Dead = true
	return nil
}

// emitBranch lowers an unconditional branch depth levels out: copy the
// target's arity into its BranchParams span (or stage a return), then
// jump. Wasm operands are conceptually consumed by the branch, but since
// nothing after an unconditional branch is reachable until the next
// structural boundary, leaving them on the abstract stack (Peek, not Pop)
// is simplest and harmless.
func (t *Translator) emitBranch(depth int) error {
	target := t.cs.AcquireTarget(depth)
	n := t.targetArity(target)
	vals := make([]Provider, n)
	t.vs.PeekN(n, vals)

	if target.IsReturn {
		if err := t.emitReturnSequenceFrom(vals); err != nil {
			return err
		}
	} else {
		frame := target.Frame
		t.enc.EncodeCopies(frame.BranchParams, vals, t.vs.AllocScratch)
		t.enc.EncodeBranch(frame.BranchDestination())
	}
	t.cs.Last().Dead = true
	return nil
}

func (t *Translator) visitBr(instr wasm.Instruction) error {
	return t.emitBranch(int(instr.Imm.(wasm.BranchImm).LabelIdx))
}

// visitBrIf conditionally branches depth levels out. The target's arity is
// copied into its BranchParams span unconditionally (cheaper than guarding
// the copy itself, and harmless: if the branch isn't taken the copy is
// simply never read), then a conditional branch on cond decides whether
// control actually jumps.
func (t *Translator) visitBrIf(instr wasm.Instruction) error {
	depth := int(instr.Imm.(wasm.BranchImm).LabelIdx)
	cond := t.vs.Pop()
	target := t.cs.AcquireTarget(depth)
	n := t.targetArity(target)
	vals := make([]Provider, n)
	t.vs.PeekN(n, vals)

	if target.IsReturn {
		skip := t.enc.NewLabel()
		t.enc.EncodeBranchEqz(cond, skip, t.pool, isNonZeroI32)
		if err := t.emitReturnSequenceFrom(vals); err != nil {
			return err
		}
		t.enc.PinLabel(skip)
		return nil
	}

	frame := target.Frame
	t.enc.EncodeCopies(frame.BranchParams, vals, t.vs.AllocScratch)
	t.enc.EncodeBranchNez(cond, frame.BranchDestination(), t.pool, isNonZeroI32)
	return nil
}

// visitBrTable lowers br_table as a dispatch instruction over per-arm
// trampolines: the index selects a constant-pool slot holding the absolute
// position of that arm's own copy-then-branch sequence, resolved per
// original_source's translate_br_table (each arm's destination is the
// position of its own trampoline, not a shared one) since arms may target
// frames with different BranchParams spans.
func (t *Translator) visitBrTable(instr wasm.Instruction) error {
	imm := instr.Imm.(wasm.BrTableImm)
	idx := t.vs.Pop()

	depths := make([]uint32, 0, len(imm.Labels)+1)
	depths = append(depths, imm.Labels...)
	depths = append(depths, imm.Default)

	targets := make([]AcquiredTarget, len(depths))
	maxN := 0
	for i, d := range depths {
		targets[i] = t.cs.AcquireTarget(int(d))
		if n := t.targetArity(targets[i]); n > maxN {
			maxN = n
		}
	}
	vals := make([]Provider, maxN)
	t.vs.PeekN(maxN, vals)

	refs := make([]ConstRef, len(targets))
	for i := range refs {
		refs[i] = t.pool.ReserveMutable()
	}
	regs := make([]Register, len(refs))
	for i, r := range refs {
		regs[i] = constReg(r)
	}
	defaultDest := regs[len(regs)-1]
	armDests := regs[:len(regs)-1]

	t.enc.PushInstr(Instr{Op: OpBranchTable, A: idx.AsRegister(), B: defaultDest, C: Register(len(armDests))})
	t.enc.EncodeRegisterList(armDests)

	for i, target := range targets {
		t.pool.SetValue(refs[i], uint64(t.enc.Len()))
		n := t.targetArity(target)
		// vals holds the top maxN stack entries, deepest first; an arm
		// needing only n <= maxN of them wants the shallowest n, i.e. the
		// tail of the slice.
		armVals := vals[maxN-n:]
		if target.IsReturn {
			if err := t.emitReturnSequenceFrom(armVals); err != nil {
				return err
			}
		} else {
			t.enc.EncodeCopies(target.Frame.BranchParams, armVals, t.vs.AllocScratch)
			t.enc.EncodeBranch(target.Frame.BranchDestination())
		}
		t.enc.ResetLastInstr()
	}

	t.cs.Last().Dead = true
	return nil
}
