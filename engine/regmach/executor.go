package regmach

import (
	"github.com/wippyai/wasm-runtime/errors"
	"github.com/wippyai/wasm-runtime/wasm"
)

// executor.go is the register-machine dispatch loop: it walks a compiled
// function's Instr stream, maintaining one contiguous register arena
// across the active call stack (frame.go). Grounded on spec.md 4.6's
// Executor subsection and original_source's wasmi engine/executor, which
// drives the same switch-per-opcode loop over a flat value stack; here
// the flat store is a register file rather than a stack, so the switch
// reads/writes named operand registers instead of popping/pushing.

// maxCallDepth bounds the executor's frame stack; exceeding it raises
// TrapStackOverflow rather than growing the Go call stack unboundedly
// (the dispatch loop itself never recurses, but an unbounded register
// arena would still exhaust memory on runaway recursion).
const maxCallDepth = 8192

// Executor runs compiled functions against one Instance.
type Executor struct {
	inst   *Instance
	frames *frameStack
	limits Limits

	fuelEnabled bool
	fuel        uint64
}

// NewExecutor creates an executor bound to inst, ready to run any of its
// module-defined functions. limits.InitialFuel seeds each top-level Call;
// InitialFuel == 0 disables fuel metering entirely.
func NewExecutor(inst *Instance, limits Limits) *Executor {
	return &Executor{
		inst:   inst,
		frames: newFrameStack(newRegisterArena(256)),
		limits: limits,
	}
}

// Call invokes funcIdx with args (already-decoded parameter words) and
// returns its result words. Trap is returned as *Trap; any other error is
// an *errors.Error (a malformed call, or a host function's own error
// lifted at the boundary per spec.md 4.7 — there's no dedicated trap
// code for a host failure, so it surfaces as a plain error rather than an
// invented trap).
func (e *Executor) Call(funcIdx uint32, args []uint64) ([]uint64, error) {
	if int(funcIdx) >= len(e.inst.Funcs) {
		return nil, errors.New(errors.PhaseRuntime, errors.KindOutOfBounds).
			Detail("call: function index %d out of range (%d functions)", funcIdx, len(e.inst.Funcs)).Build()
	}
	callee := e.inst.Funcs[funcIdx]
	if len(args) != len(callee.Sig.Params) {
		return nil, errors.New(errors.PhaseRuntime, errors.KindTypeMismatch).
			Detail("call: function %d expects %d arguments, got %d", funcIdx, len(callee.Sig.Params), len(args)).Build()
	}

	if callee.Host != nil {
		results, err := callee.Host(args)
		if err != nil {
			return nil, hostCallError(funcIdx, err)
		}
		return results, nil
	}

	e.fuelEnabled = e.limits.InitialFuel != 0
	e.fuel = e.limits.InitialFuel

	e.frames.push(callee.Code, funcIdx, 0, len(callee.Sig.Results))
	f := e.frames.topFrame()
	for i, v := range args {
		e.frames.arena.set(f.base+i, v)
	}

	return e.run()
}

func hostCallError(funcIdx uint32, cause error) error {
	return errors.New(errors.PhaseHost, errors.KindInvalidInput).
		Detail("host function %d returned an error", funcIdx).Cause(cause).Build()
}

// reg reads operand r (register or constant) against frame f.
func (e *Executor) reg(f *callFrame, r Register) uint64 {
	if r.IsConst() {
		return f.fn.Consts[r.ConstHandle()]
	}
	return e.frames.arena.get(f.base + int(r))
}

func (e *Executor) setReg(f *callFrame, r Register, v uint64) {
	e.frames.arena.set(f.base+int(r), v)
}

// destPos decodes a branch-family instruction's dest operand (held in B)
// into an absolute instruction position.
func (e *Executor) destPos(f *callFrame, instr Instr) InstrPos {
	return InstrPos(int32(f.fn.Consts[instr.B.ConstHandle()]))
}

func (e *Executor) trap(f *callFrame, code TrapCode) ([]uint64, error) {
	return nil, &Trap{Code: code, FuncIndex: f.funcIdx, Offset: int(f.ip)}
}

// readRegList decodes the n plain registers packed into the OpRegList
// continuation slots starting at pos, returning them plus the position
// just past the slots they occupy.
func readRegList(instrs []Instr, pos InstrPos, n int) ([]Register, InstrPos) {
	regs := make([]Register, n)
	slots := RegListSlots(n)
	k := 0
	for s := 0; s < slots; s++ {
		slot := instrs[int(pos)+s]
		for _, v := range [3]Register{slot.A, slot.B, slot.C} {
			if k >= n {
				break
			}
			regs[k] = v
			k++
		}
	}
	return regs, pos + InstrPos(slots)
}

// arithArity reports how many register operands a base (unflagged,
// unfused) arithmetic/comparison op reads: 1 for the unary forms
// (Eqz/Clz/Ctz/Popcnt/float unary), 2 for everything else in the range.
func arithArity(op Op) int {
	switch {
	case op == OpI32Eqz || op == OpI64Eqz:
		return 1
	case op >= OpI32Clz && op <= OpI32Popcnt:
		return 1
	case op >= OpI64Clz && op <= OpI64Popcnt:
		return 1
	case op >= OpF32Abs && op <= OpF32Sqrt:
		return 1
	case op >= OpF64Abs && op <= OpF64Sqrt:
		return 1
	default:
		return 2
	}
}

// evalNumeric evaluates a base (unflagged) comparison/arithmetic op over
// already-resolved operand words, sharing semantics with fold.go via the
// same eval* helpers so compile-time folding and run-time execution can
// never disagree.
func evalNumeric(op Op, a, b uint64) (result uint64, trap TrapCode, ok bool) {
	switch {
	case op == OpI32Eqz:
		return boolWord(evalI32Compare(op, int32(a), 0)), 0, true
	case op >= OpI32Eq && op <= OpI32GeU:
		return boolWord(evalI32Compare(op, int32(a), int32(b))), 0, true
	case op == OpI64Eqz:
		return boolWord(evalI64Compare(op, int64(a), 0)), 0, true
	case op >= OpI64Eq && op <= OpI64GeU:
		return boolWord(evalI64Compare(op, int64(a), int64(b))), 0, true
	case op >= OpF32Eq && op <= OpF32Ge:
		return boolWord(evalF32Compare(op, wordToF32(a), wordToF32(b))), 0, true
	case op >= OpF64Eq && op <= OpF64Ge:
		return boolWord(evalF64Compare(op, wordToF64(a), wordToF64(b))), 0, true
	case op >= OpI32Clz && op <= OpI32Popcnt:
		return uint64(uint32(evalI32Unary(op, int32(a)))), 0, true
	case op >= OpI32Add && op <= OpI32Rotr:
		r, trap, ok := evalI32Binary(op, int32(a), int32(b))
		return uint64(uint32(r)), trap, ok
	case op >= OpI64Clz && op <= OpI64Popcnt:
		return uint64(evalI64Unary(op, int64(a))), 0, true
	case op >= OpI64Add && op <= OpI64Rotr:
		r, trap, ok := evalI64Binary(op, int64(a), int64(b))
		return uint64(r), trap, ok
	case op >= OpF32Abs && op <= OpF32Sqrt:
		return f32ToWord(evalF32Unary(op, wordToF32(a))), 0, true
	case op >= OpF32Add && op <= OpF32Copysign:
		return f32ToWord(evalF32Binary(op, wordToF32(a), wordToF32(b))), 0, true
	case op >= OpF64Abs && op <= OpF64Sqrt:
		return f64ToWord(evalF64Unary(op, wordToF64(a))), 0, true
	case op >= OpF64Add && op <= OpF64Copysign:
		return f64ToWord(evalF64Binary(op, wordToF64(a), wordToF64(b))), 0, true
	}
	panic("regmach: evalNumeric: unhandled op")
}

// evalConversion evaluates a unary conversion/extend/saturating-trunc op.
// Unlike the arithmetic ops, none of these are shared with fold.go: the
// translator never constant-folds a conversion (see DESIGN.md), so this
// logic exists only here.
func evalConversion(op Op, a uint64) (result uint64, trap TrapCode, ok bool) {
	switch op {
	case OpI32WrapI64:
		return uint64(uint32(evalI32WrapI64(int64(a)))), 0, true
	case OpI32TruncF32S:
		r, tc, k := evalI32TruncF32(wordToF32(a), true)
		return uint64(uint32(r)), tc, k
	case OpI32TruncF32U:
		r, tc, k := evalI32TruncF32(wordToF32(a), false)
		return uint64(uint32(r)), tc, k
	case OpI32TruncF64S:
		r, tc, k := evalI32TruncF64(wordToF64(a), true)
		return uint64(uint32(r)), tc, k
	case OpI32TruncF64U:
		r, tc, k := evalI32TruncF64(wordToF64(a), false)
		return uint64(uint32(r)), tc, k
	case OpI64ExtendI32S:
		return uint64(int64(int32(a))), 0, true
	case OpI64ExtendI32U:
		return uint64(uint32(a)), 0, true
	case OpI64TruncF32S:
		r, tc, k := evalI64TruncF32(wordToF32(a), true)
		return uint64(r), tc, k
	case OpI64TruncF32U:
		r, tc, k := evalI64TruncF32(wordToF32(a), false)
		return uint64(r), tc, k
	case OpI64TruncF64S:
		r, tc, k := evalI64TruncF64(wordToF64(a), true)
		return uint64(r), tc, k
	case OpI64TruncF64U:
		r, tc, k := evalI64TruncF64(wordToF64(a), false)
		return uint64(r), tc, k
	case OpF32ConvertI32S:
		return f32ToWord(float32(int32(a))), 0, true
	case OpF32ConvertI32U:
		return f32ToWord(float32(uint32(a))), 0, true
	case OpF32ConvertI64S:
		return f32ToWord(float32(int64(a))), 0, true
	case OpF32ConvertI64U:
		return f32ToWord(float32(a)), 0, true
	case OpF32DemoteF64:
		return f32ToWord(float32(wordToF64(a))), 0, true
	case OpF64ConvertI32S:
		return f64ToWord(float64(int32(a))), 0, true
	case OpF64ConvertI32U:
		return f64ToWord(float64(uint32(a))), 0, true
	case OpF64ConvertI64S:
		return f64ToWord(float64(int64(a))), 0, true
	case OpF64ConvertI64U:
		return f64ToWord(float64(a)), 0, true
	case OpF64PromoteF32:
		return f64ToWord(float64(wordToF32(a))), 0, true
	case OpI32ReinterpretF32:
		return uint64(uint32(a)), 0, true
	case OpI64ReinterpretF64:
		return a, 0, true
	case OpF32ReinterpretI32:
		return uint64(uint32(a)), 0, true
	case OpF64ReinterpretI64:
		return a, 0, true
	case OpI32Extend8S:
		return uint64(uint32(int32(int8(int32(a))))), 0, true
	case OpI32Extend16S:
		return uint64(uint32(int32(int16(int32(a))))), 0, true
	case OpI64Extend8S:
		return uint64(int64(int8(int64(a)))), 0, true
	case OpI64Extend16S:
		return uint64(int64(int16(int64(a)))), 0, true
	case OpI64Extend32S:
		return uint64(int64(int32(a))), 0, true
	case OpI32TruncSatF32S:
		return uint64(uint32(evalI32TruncSatF32(wordToF32(a), true))), 0, true
	case OpI32TruncSatF32U:
		return uint64(uint32(evalI32TruncSatF32(wordToF32(a), false))), 0, true
	case OpI32TruncSatF64S:
		return uint64(uint32(evalI32TruncSatF64(wordToF64(a), true))), 0, true
	case OpI32TruncSatF64U:
		return uint64(uint32(evalI32TruncSatF64(wordToF64(a), false))), 0, true
	case OpI64TruncSatF32S:
		return uint64(evalI64TruncSatF32(wordToF32(a), true)), 0, true
	case OpI64TruncSatF32U:
		return uint64(evalI64TruncSatF32(wordToF32(a), false)), 0, true
	case OpI64TruncSatF64S:
		return uint64(evalI64TruncSatF64(wordToF64(a), true)), 0, true
	case OpI64TruncSatF64U:
		return uint64(evalI64TruncSatF64(wordToF64(a), false)), 0, true
	}
	panic("regmach: evalConversion: unhandled op")
}

// sigsEqual reports whether two signatures match exactly, the check
// call_indirect uses to raise TrapIndirectCallBadSignature.
func sigsEqual(a, b *wasm.FuncType) bool {
	if len(a.Params) != len(b.Params) || len(a.Results) != len(b.Results) {
		return false
	}
	for i := range a.Params {
		if a.Params[i] != b.Params[i] {
			return false
		}
	}
	for i := range a.Results {
		if a.Results[i] != b.Results[i] {
			return false
		}
	}
	return true
}

// padResults copies results into a fresh n-word slice, zero-filling any
// words a host function left unset (numResults comes from the callee's
// declared signature, not from however many words a HostFunc returned).
func padResults(results []uint64, n int) []uint64 {
	out := make([]uint64, n)
	copy(out, results)
	return out
}

// doCall executes OpCall/OpCallIndirect's common second half once the
// callee, its argument registers and its result destination are known:
// a host call runs to completion inline, a module call pushes a new
// frame and leaves it for the next loop iteration to drive.
func (e *Executor) doCall(f *callFrame, callee *FuncInstance, funcIdx uint32, argRegs []Register, nextIP InstrPos, resultBase int, numResults int) error {
	if callee.Host != nil {
		args := make([]uint64, len(argRegs))
		for i, r := range argRegs {
			args[i] = e.reg(f, r)
		}
		results, herr := callee.Host(args)
		if herr != nil {
			return hostCallError(funcIdx, herr)
		}
		for i := 0; i < numResults; i++ {
			var v uint64
			if i < len(results) {
				v = results[i]
			}
			e.frames.arena.set(resultBase+i, v)
		}
		f.ip = nextIP
		return nil
	}

	if e.frames.depth() >= maxCallDepth {
		return &Trap{Code: TrapStackOverflow, FuncIndex: f.funcIdx, Offset: int(f.ip)}
	}

	args := make([]uint64, len(argRegs))
	for i, r := range argRegs {
		args[i] = e.reg(f, r)
	}
	// f.ip must be saved before push: push may grow the frame slice and
	// reallocate its backing array, invalidating f.
	f.ip = nextIP
	e.frames.push(callee.Code, funcIdx, resultBase, numResults)
	nf := e.frames.topFrame()
	for i, v := range args {
		e.frames.arena.set(nf.base+i, v)
	}
	return nil
}

func (e *Executor) execCall(f *callFrame, instr Instr) error {
	funcIdx := uint32(f.fn.Consts[instr.B.ConstHandle()])
	if int(funcIdx) >= len(e.inst.Funcs) {
		return errors.New(errors.PhaseRuntime, errors.KindOutOfBounds).
			Detail("call: function index %d out of range", funcIdx).Build()
	}
	callee := e.inst.Funcs[funcIdx]
	nArgs := len(callee.Sig.Params)
	argRegs, next := readRegList(f.fn.Instrs, f.ip+1, nArgs)
	resultBase := f.base + int(instr.A)
	return e.doCall(f, callee, funcIdx, argRegs, next, resultBase, int(instr.C))
}

func (e *Executor) execCallIndirect(f *callFrame, instr Instr) error {
	descriptor := f.fn.Consts[instr.B.ConstHandle()]
	typeIdx := uint32(descriptor >> 32)
	tableIdx := uint32(descriptor)

	elemRegs, afterElem := readRegList(f.fn.Instrs, f.ip+1, 1)
	idx := uint32(e.reg(f, elemRegs[0]))
	tbl := e.inst.Tables[tableIdx]
	if idx >= uint32(len(tbl.Elems)) {
		return &Trap{Code: TrapTableOutOfBounds, FuncIndex: f.funcIdx, Offset: int(f.ip)}
	}
	fe := tbl.Elems[idx]
	if fe < 0 {
		return &Trap{Code: TrapIndirectCallNull, FuncIndex: f.funcIdx, Offset: int(f.ip)}
	}
	funcIdx := uint32(fe)
	if int(funcIdx) >= len(e.inst.Funcs) {
		return &Trap{Code: TrapIndirectCallBadSignature, FuncIndex: f.funcIdx, Offset: int(f.ip)}
	}
	callee := e.inst.Funcs[funcIdx]
	want := &e.inst.Module.Types[typeIdx]
	if !sigsEqual(callee.Sig, want) {
		return &Trap{Code: TrapIndirectCallBadSignature, FuncIndex: f.funcIdx, Offset: int(f.ip)}
	}

	nArgs := len(callee.Sig.Params)
	argRegs, next := readRegList(f.fn.Instrs, afterElem, nArgs)
	resultBase := f.base + int(instr.A)
	return e.doCall(f, callee, funcIdx, argRegs, next, resultBase, int(instr.C))
}

// tailInvoke runs the callee side of a return_call[_indirect]: the current
// frame is discarded first (it contributes nothing further), so its
// resultBase/numResults - the slot its own caller is waiting on - become
// the callee's destination, exactly as if the callee had been invoked by
// the exposed caller directly.
func (e *Executor) tailInvoke(funcIdx uint32, args []uint64) (done bool, results []uint64, err error) {
	if int(funcIdx) >= len(e.inst.Funcs) {
		return true, nil, errors.New(errors.PhaseRuntime, errors.KindOutOfBounds).
			Detail("tail call: function index %d out of range", funcIdx).Build()
	}
	callee := e.inst.Funcs[funcIdx]
	popped := e.frames.pop()

	if callee.Host != nil {
		hresults, herr := callee.Host(args)
		if herr != nil {
			return true, nil, hostCallError(funcIdx, herr)
		}
		if e.frames.depth() == 0 {
			return true, padResults(hresults, popped.numResults), nil
		}
		for i := 0; i < popped.numResults; i++ {
			var v uint64
			if i < len(hresults) {
				v = hresults[i]
			}
			e.frames.arena.set(popped.resultBase+i, v)
		}
		return false, nil, nil
	}

	if e.frames.depth() >= maxCallDepth {
		return true, nil, &Trap{Code: TrapStackOverflow, FuncIndex: funcIdx, Offset: 0}
	}

	e.frames.push(callee.Code, funcIdx, popped.resultBase, popped.numResults)
	nf := e.frames.topFrame()
	for i, v := range args {
		e.frames.arena.set(nf.base+i, v)
	}
	return false, nil, nil
}

func (e *Executor) execReturnCall(f *callFrame, instr Instr) (done bool, results []uint64, err error) {
	funcIdx := uint32(f.fn.Consts[instr.B.ConstHandle()])
	nArgs := int(instr.C)
	argRegs, _ := readRegList(f.fn.Instrs, f.ip+1, nArgs)
	args := make([]uint64, nArgs)
	for i, r := range argRegs {
		args[i] = e.reg(f, r)
	}
	return e.tailInvoke(funcIdx, args)
}

func (e *Executor) execReturnCallIndirect(f *callFrame, instr Instr) (done bool, results []uint64, err error) {
	descriptor := f.fn.Consts[instr.B.ConstHandle()]
	typeIdx := uint32(descriptor >> 32)
	tableIdx := uint32(descriptor)

	elemRegs, afterElem := readRegList(f.fn.Instrs, f.ip+1, 1)
	idx := uint32(e.reg(f, elemRegs[0]))
	tbl := e.inst.Tables[tableIdx]
	if idx >= uint32(len(tbl.Elems)) {
		return true, nil, &Trap{Code: TrapTableOutOfBounds, FuncIndex: f.funcIdx, Offset: int(f.ip)}
	}
	fe := tbl.Elems[idx]
	if fe < 0 {
		return true, nil, &Trap{Code: TrapIndirectCallNull, FuncIndex: f.funcIdx, Offset: int(f.ip)}
	}
	funcIdx := uint32(fe)
	if int(funcIdx) >= len(e.inst.Funcs) {
		return true, nil, &Trap{Code: TrapIndirectCallBadSignature, FuncIndex: f.funcIdx, Offset: int(f.ip)}
	}
	callee := e.inst.Funcs[funcIdx]
	want := &e.inst.Module.Types[typeIdx]
	if !sigsEqual(callee.Sig, want) {
		return true, nil, &Trap{Code: TrapIndirectCallBadSignature, FuncIndex: f.funcIdx, Offset: int(f.ip)}
	}

	nArgs := int(instr.C)
	argRegs, _ := readRegList(f.fn.Instrs, afterElem, nArgs)
	args := make([]uint64, nArgs)
	for i, r := range argRegs {
		args[i] = e.reg(f, r)
	}
	return e.tailInvoke(funcIdx, args)
}

// doReturn pops f (the frame a return instruction just ran in) and either
// hands vals back as Call's final output (the whole stack unwound) or
// copies them into the now-exposed caller's expected result span.
func (e *Executor) doReturn(f *callFrame, vals []uint64) (done bool, results []uint64, err error) {
	popped := e.frames.pop()
	if e.frames.depth() == 0 {
		return true, padResults(vals, popped.numResults), nil
	}
	for i := 0; i < popped.numResults; i++ {
		var v uint64
		if i < len(vals) {
			v = vals[i]
		}
		e.frames.arena.set(popped.resultBase+i, v)
	}
	return false, nil, nil
}

// run drives the dispatch loop starting from the executor's current top
// frame until the call that pushed it (and everything it in turn called)
// fully returns, yielding that call's result words.
func (e *Executor) run() ([]uint64, error) {
	for {
		f := e.frames.topFrame()
		instr := f.fn.Instrs[f.ip]
		op := instr.Op
		base := op.BaseOp()

		if op.IsFusedBranch() {
			a := e.reg(f, instr.A)
			var b uint64
			if arithArity(base) == 2 {
				b = e.reg(f, instr.C)
			}
			word, _, _ := evalNumeric(base, a, b)
			taken := (word != 0) == op.FusedSenseNez()
			if taken {
				f.ip = e.destPos(f, instr)
			} else {
				f.ip++
			}
			continue
		}

		if base >= OpI32Eqz && base <= OpF64Copysign {
			a := e.reg(f, instr.B)
			var b uint64
			if arithArity(base) == 2 {
				if op.IsImm() {
					b = uint64(int64(instr.C))
				} else {
					b = e.reg(f, instr.C)
				}
			}
			word, tc, ok := evalNumeric(base, a, b)
			if !ok {
				return e.trap(f, tc)
			}
			e.setReg(f, instr.A, word)
			f.ip++
			continue
		}

		if base >= OpI32WrapI64 && base <= OpI64TruncSatF64U {
			a := e.reg(f, instr.B)
			word, tc, ok := evalConversion(base, a)
			if !ok {
				return e.trap(f, tc)
			}
			e.setReg(f, instr.A, word)
			f.ip++
			continue
		}

		if base >= OpI32Load && base <= OpI64Load32U {
			if err := e.execLoad(f, instr, base); err != nil {
				return nil, err
			}
			f.ip++
			continue
		}

		if base >= OpI32Store && base <= OpI64Store32Offset16 {
			if err := e.execStore(f, instr, base); err != nil {
				return nil, err
			}
			f.ip++
			continue
		}

		switch base {
		case OpNop:
			f.ip++

		case OpTrap:
			return e.trap(f, TrapCode(instr.A))

		case OpConsumeFuel:
			if e.fuelEnabled {
				n := uint64(instr.A)
				if e.fuel < n {
					return e.trap(f, TrapOutOfFuel)
				}
				e.fuel -= n
			}
			f.ip++

		case OpCopy:
			e.setReg(f, instr.A, e.reg(f, instr.B))
			f.ip++

		case OpCopyImm16:
			e.setReg(f, instr.A, uint64(int64(instr.B)))
			f.ip++

		case OpCopySpan:
			n := int(instr.C)
			for i := 0; i < n; i++ {
				e.setReg(f, instr.A+Register(i), e.reg(f, instr.B+Register(i)))
			}
			f.ip++

		case OpCopySpanRev:
			n := int(instr.C)
			for i := n - 1; i >= 0; i-- {
				e.setReg(f, instr.A+Register(i), e.reg(f, instr.B+Register(i)))
			}
			f.ip++

		case OpBranch:
			f.ip = e.destPos(f, instr)

		case OpBranchEqz:
			if e.reg(f, instr.A) == 0 {
				f.ip = e.destPos(f, instr)
			} else {
				f.ip++
			}

		case OpBranchNez:
			if e.reg(f, instr.A) != 0 {
				f.ip = e.destPos(f, instr)
			} else {
				f.ip++
			}

		case OpBranchTable:
			idx := e.reg(f, instr.A)
			n := int(instr.C)
			if idx < uint64(n) {
				arms, _ := readRegList(f.fn.Instrs, f.ip+1, n)
				dest := arms[idx]
				f.ip = InstrPos(int32(f.fn.Consts[dest.ConstHandle()]))
			} else {
				f.ip = e.destPos(f, instr)
			}

		case OpReturn:
			if done, results, err := e.doReturn(f, nil); done {
				return results, err
			}

		case OpReturnReg:
			v := e.reg(f, instr.A)
			if done, results, err := e.doReturn(f, []uint64{v}); done {
				return results, err
			}

		case OpReturnSpan:
			n := int(instr.C)
			vals := make([]uint64, n)
			for i := 0; i < n; i++ {
				vals[i] = e.reg(f, instr.A+Register(i))
			}
			if done, results, err := e.doReturn(f, vals); done {
				return results, err
			}

		case OpCall:
			if err := e.execCall(f, instr); err != nil {
				return nil, err
			}

		case OpCallIndirect:
			if err := e.execCallIndirect(f, instr); err != nil {
				return nil, err
			}

		case OpReturnCall:
			if done, results, err := e.execReturnCall(f, instr); done {
				return results, err
			}

		case OpReturnCallIndirect:
			if done, results, err := e.execReturnCallIndirect(f, instr); done {
				return results, err
			}

		case OpGlobalGet:
			e.setReg(f, instr.A, e.inst.Globals[instr.C].Value)
			f.ip++

		case OpGlobalSet:
			e.inst.Globals[instr.C].Value = e.reg(f, instr.B)
			f.ip++

		case OpGlobalSetImm16:
			e.inst.Globals[instr.C].Value = uint64(int64(instr.B))
			f.ip++

		case OpTableGet:
			tbl := e.inst.Tables[instr.C]
			idx := uint32(e.reg(f, instr.B))
			if idx >= uint32(len(tbl.Elems)) {
				return e.trap(f, TrapTableOutOfBounds)
			}
			e.setReg(f, instr.A, uint64(tbl.Elems[idx]))
			f.ip++

		case OpTableSet:
			tbl := e.inst.Tables[instr.C]
			idx := uint32(e.reg(f, instr.A))
			if idx >= uint32(len(tbl.Elems)) {
				return e.trap(f, TrapTableOutOfBounds)
			}
			tbl.Elems[idx] = int64(e.reg(f, instr.B))
			f.ip++

		case OpTableSize:
			e.setReg(f, instr.A, uint64(len(e.inst.Tables[instr.C].Elems)))
			f.ip++

		case OpTableGrow:
			tbl := e.inst.Tables[instr.C]
			delta := uint32(e.reg(f, instr.B))
			fillRegs, next := readRegList(f.fn.Instrs, f.ip+1, 1)
			fill := int64(e.reg(f, fillRegs[0]))
			old, ok := tbl.Grow(uint64(delta), fill)
			if !ok {
				e.setReg(f, instr.A, ^uint64(0))
			} else {
				e.setReg(f, instr.A, old)
			}
			f.ip = next

		case OpTableFill:
			idx := uint32(e.reg(f, instr.A))
			val := int64(e.reg(f, instr.B))
			n := uint32(e.reg(f, instr.C))
			tableIdxRegs, next := readRegList(f.fn.Instrs, f.ip+1, 1)
			tbl := e.inst.Tables[uint32(tableIdxRegs[0])]
			if uint64(idx)+uint64(n) > uint64(len(tbl.Elems)) {
				return e.trap(f, TrapTableOutOfBounds)
			}
			for i := uint32(0); i < n; i++ {
				tbl.Elems[idx+i] = val
			}
			f.ip = next

		case OpTableInit:
			dst := uint32(e.reg(f, instr.A))
			src := uint32(e.reg(f, instr.B))
			n := uint32(e.reg(f, instr.C))
			regs, next := readRegList(f.fn.Instrs, f.ip+1, 2)
			elemIdx, tableIdx := uint32(regs[0]), uint32(regs[1])
			seg := e.inst.elemSegments[elemIdx]
			tbl := e.inst.Tables[tableIdx]
			if seg.dropped && n > 0 {
				return e.trap(f, TrapTableOutOfBounds)
			}
			if uint64(src)+uint64(n) > uint64(len(seg.funcs)) || uint64(dst)+uint64(n) > uint64(len(tbl.Elems)) {
				return e.trap(f, TrapTableOutOfBounds)
			}
			copy(tbl.Elems[dst:dst+n], seg.funcs[src:src+n])
			f.ip = next

		case OpTableCopy:
			dst := uint32(e.reg(f, instr.A))
			src := uint32(e.reg(f, instr.B))
			n := uint32(e.reg(f, instr.C))
			regs, next := readRegList(f.fn.Instrs, f.ip+1, 2)
			dstTbl := e.inst.Tables[uint32(regs[0])]
			srcTbl := e.inst.Tables[uint32(regs[1])]
			if uint64(dst)+uint64(n) > uint64(len(dstTbl.Elems)) || uint64(src)+uint64(n) > uint64(len(srcTbl.Elems)) {
				return e.trap(f, TrapTableOutOfBounds)
			}
			// copy() handles overlap correctly even when dstTbl==srcTbl.
			copy(dstTbl.Elems[dst:dst+n], srcTbl.Elems[src:src+n])
			f.ip = next

		case OpElemDrop:
			e.inst.elemSegments[instr.A].dropped = true
			f.ip++

		case OpMemorySize:
			e.setReg(f, instr.A, e.inst.Memories[0].Pages())
			f.ip++

		case OpMemoryGrow:
			mem := e.inst.Memories[0]
			delta := uint32(e.reg(f, instr.B))
			old, ok := mem.Grow(uint64(delta))
			if !ok {
				e.setReg(f, instr.A, ^uint64(0))
			} else {
				e.setReg(f, instr.A, old)
			}
			f.ip++

		case OpMemoryInit:
			dst := uint32(e.reg(f, instr.A))
			src := uint32(e.reg(f, instr.B))
			n := uint32(e.reg(f, instr.C))
			regs, next := readRegList(f.fn.Instrs, f.ip+1, 1)
			seg := e.inst.data[regs[0]]
			mem := e.inst.Memories[0]
			if seg.dropped && n > 0 {
				return e.trap(f, TrapMemoryOutOfBounds)
			}
			if uint64(src)+uint64(n) > uint64(len(seg.bytes)) || uint64(dst)+uint64(n) > uint64(len(mem.Data)) {
				return e.trap(f, TrapMemoryOutOfBounds)
			}
			copy(mem.Data[dst:dst+n], seg.bytes[src:src+n])
			f.ip = next

		case OpMemoryCopy:
			dst := uint32(e.reg(f, instr.A))
			src := uint32(e.reg(f, instr.B))
			n := uint32(e.reg(f, instr.C))
			mem := e.inst.Memories[0]
			if uint64(dst)+uint64(n) > uint64(len(mem.Data)) || uint64(src)+uint64(n) > uint64(len(mem.Data)) {
				return e.trap(f, TrapMemoryOutOfBounds)
			}
			copy(mem.Data[dst:dst+n], mem.Data[src:src+n]) // copy handles overlap correctly regardless of direction
			f.ip++

		case OpMemoryFill:
			dst := uint32(e.reg(f, instr.A))
			val := byte(e.reg(f, instr.B))
			n := uint32(e.reg(f, instr.C))
			mem := e.inst.Memories[0]
			if uint64(dst)+uint64(n) > uint64(len(mem.Data)) {
				return e.trap(f, TrapMemoryOutOfBounds)
			}
			region := mem.Data[dst : dst+n]
			for i := range region {
				region[i] = val
			}
			f.ip++

		case OpDataDrop:
			e.inst.data[instr.A].dropped = true
			f.ip++

		case OpRefIsNull:
			v := int64(e.reg(f, instr.B))
			e.setReg(f, instr.A, boolWord(v == -1))
			f.ip++

		case OpSelect:
			cond := e.reg(f, instr.B)
			trueVal := e.reg(f, instr.C)
			falseRegs, next := readRegList(f.fn.Instrs, f.ip+1, 1)
			if cond != 0 {
				e.setReg(f, instr.A, trueVal)
			} else {
				e.setReg(f, instr.A, e.reg(f, falseRegs[0]))
			}
			f.ip = next

		case OpRefNull, OpRefFunc, OpRefEq:
			// The translator always constant-folds these (translator.go's
			// ref.null/ref.func cases, translator_locals.go's ref.eq
			// routing through OpI32Eq) - never reachable here.
			panic("regmach: unreachable ref op in executor")

		default:
			panic("regmach: executor: unhandled op")
		}
	}
}

// loadWidth describes one load/store op's memory access shape: how many
// bytes it touches, whether a narrow load sign-extends, and whether the
// value is a full 64-bit (i64/f64) or 32-bit (i32/f32) quantity.
type loadWidth struct {
	bytes   int
	signed  bool
	is64    bool
	isFloat bool
}

func loadShape(op Op) loadWidth {
	switch op {
	case OpI32Load, OpI32LoadOffset16, OpI32LoadAt:
		return loadWidth{bytes: 4}
	case OpI64Load, OpI64LoadOffset16, OpI64LoadAt:
		return loadWidth{bytes: 8, is64: true}
	case OpF32Load, OpF32LoadOffset16, OpF32LoadAt:
		return loadWidth{bytes: 4, isFloat: true}
	case OpF64Load, OpF64LoadOffset16, OpF64LoadAt:
		return loadWidth{bytes: 8, is64: true, isFloat: true}
	case OpI32Load8S:
		return loadWidth{bytes: 1, signed: true}
	case OpI32Load8U:
		return loadWidth{bytes: 1}
	case OpI32Load16S:
		return loadWidth{bytes: 2, signed: true}
	case OpI32Load16U:
		return loadWidth{bytes: 2}
	case OpI64Load8S:
		return loadWidth{bytes: 1, signed: true, is64: true}
	case OpI64Load8U:
		return loadWidth{bytes: 1, is64: true}
	case OpI64Load16S:
		return loadWidth{bytes: 2, signed: true, is64: true}
	case OpI64Load16U:
		return loadWidth{bytes: 2, is64: true}
	case OpI64Load32S:
		return loadWidth{bytes: 4, signed: true, is64: true}
	case OpI64Load32U:
		return loadWidth{bytes: 4, is64: true}
	}
	panic("regmach: loadShape: not a load op")
}

func storeWidth(op Op) int {
	switch op {
	case OpI32Store, OpI32StoreOffset16, OpI32StoreAt, OpI32StoreImm16, OpF32Store, OpF32StoreOffset16, OpF32StoreAt:
		return 4
	case OpI64Store, OpI64StoreOffset16, OpI64StoreAt, OpI64StoreImm16, OpF64Store, OpF64StoreOffset16, OpF64StoreAt:
		return 8
	case OpI32Store8, OpI32Store8Offset16, OpI64Store8, OpI64Store8Offset16:
		return 1
	case OpI32Store16, OpI32Store16Offset16, OpI64Store16, OpI64Store16Offset16:
		return 2
	case OpI64Store32, OpI64Store32Offset16:
		return 4
	}
	panic("regmach: storeWidth: not a store op")
}

// isOffset16 / isAt classify a load/store op's addressing encoding so the
// dispatch loop can compute the effective address uniformly:
//   - general:  addr = resolve(B) + resolve(C)
//   - offset16: addr = resolve(B) + uint16(C)   (C is a raw immediate)
//   - at:       addr = resolve(C)               (B unused)
func isOffset16(op Op) bool {
	switch op {
	case OpI32LoadOffset16, OpI64LoadOffset16, OpF32LoadOffset16, OpF64LoadOffset16,
		OpI32StoreOffset16, OpI64StoreOffset16, OpF32StoreOffset16, OpF64StoreOffset16,
		OpI32Store8Offset16, OpI32Store16Offset16, OpI64Store8Offset16, OpI64Store16Offset16, OpI64Store32Offset16:
		return true
	}
	return false
}

func isAt(op Op) bool {
	switch op {
	case OpI32LoadAt, OpI64LoadAt, OpF32LoadAt, OpF64LoadAt,
		OpI32StoreAt, OpI64StoreAt, OpF32StoreAt, OpF64StoreAt:
		return true
	}
	return false
}

// loadStoreAddr computes a load/store instruction's effective address from
// its B/C operands per the three addressing encodings above. Callers pass
// the dst/value operand (A) separately since its meaning differs between
// loads and stores.
func (e *Executor) loadStoreAddr(f *callFrame, instr Instr, base Op) uint64 {
	if isAt(base) {
		return e.reg(f, instr.C)
	}
	if isOffset16(base) {
		return e.reg(f, instr.B) + uint64(uint16(instr.C))
	}
	return e.reg(f, instr.B) + e.reg(f, instr.C)
}

// execLoad reads shape.bytes bytes at the computed address, sign/zero
// extends per shape, and writes the decoded word into instr.A.
func (e *Executor) execLoad(f *callFrame, instr Instr, base Op) error {
	shape := loadShape(base)
	addr := e.loadStoreAddr(f, instr, base)
	mem := e.inst.Memories[0]
	word, err := e.readMem(f, mem, addr, shape.bytes)
	if err != nil {
		return err
	}
	if shape.signed {
		switch shape.bytes {
		case 1:
			word = uint64(int64(int8(word)))
		case 2:
			word = uint64(int64(int16(word)))
		case 4:
			word = uint64(int64(int32(word)))
		}
	}
	e.setReg(f, instr.A, word)
	return nil
}

// execStore writes instr.A's value (or, for the *Imm16 forms, a raw
// immediate) at the computed address.
func (e *Executor) execStore(f *callFrame, instr Instr, base Op) error {
	if base == OpI32StoreImm16 || base == OpI64StoreImm16 {
		addr := e.reg(f, instr.A) + uint64(uint16(instr.B))
		val := uint64(int64(instr.C))
		width := 4
		if base == OpI64StoreImm16 {
			width = 8
		}
		return e.writeMem(f, addr, val, width)
	}
	width := storeWidth(base)
	addr := e.loadStoreAddr(f, instr, base)
	val := e.reg(f, instr.A)
	return e.writeMem(f, addr, val, width)
}

func (e *Executor) readMem(f *callFrame, mem *MemoryInstance, addr uint64, width int) (uint64, error) {
	end := addr + uint64(width)
	if end > uint64(len(mem.Data)) || end < addr {
		return 0, &Trap{Code: TrapMemoryOutOfBounds, FuncIndex: f.funcIdx, Offset: int(f.ip)}
	}
	raw := mem.Data[addr:end]
	var word uint64
	for i := 0; i < width; i++ {
		word |= uint64(raw[i]) << (8 * i)
	}
	return word, nil
}

func (e *Executor) writeMem(f *callFrame, addr, val uint64, width int) error {
	mem := e.inst.Memories[0]
	end := addr + uint64(width)
	if end > uint64(len(mem.Data)) || end < addr {
		return &Trap{Code: TrapMemoryOutOfBounds, FuncIndex: f.funcIdx, Offset: int(f.ip)}
	}
	raw := mem.Data[addr:end]
	for i := 0; i < width; i++ {
		raw[i] = byte(val >> (8 * i))
	}
	return nil
}
