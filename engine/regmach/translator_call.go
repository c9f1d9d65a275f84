package regmach

import "github.com/wippyai/wasm-runtime/wasm"

// translator_call.go lowers call, call_indirect, and the tail-call
// variants return_call/return_call_indirect. Grounded on spec.md 4.5's
// Calls subsection and 4.6's frame-layout invariant that a call's result
// span sits where the caller wants results written, so ResultSpan is
// always reserved (and pushed onto the abstract stack as the call's
// result Providers) before the argument list is encoded.

// funcType resolves funcIdx (imported functions numbered first, then
// module-declared ones) to its signature.
func (t *Translator) funcType(funcIdx uint32) *wasm.FuncType {
	nImported := uint32(t.module.NumImportedFuncs())
	if funcIdx < nImported {
		var seen uint32
		for _, imp := range t.module.Imports {
			if imp.Desc.Kind != wasm.KindFunc {
				continue
			}
			if seen == funcIdx {
				return &t.module.Types[imp.Desc.TypeIdx]
			}
			seen++
		}
		panic("regmach: imported func index out of range")
	}
	typeIdx := t.module.Funcs[funcIdx-nImported]
	return &t.module.Types[typeIdx]
}

// popArgs pops len(sig.Params) providers off the abstract stack, deepest
// first, for an upcoming call's argument list.
func (t *Translator) popArgs(sig *wasm.FuncType) []Provider {
	n := len(sig.Params)
	args := make([]Provider, n)
	t.vs.PopN(n, args)
	return args
}

// pushCallResults allocates a fresh span for a call's results and pushes
// each as a dynamic Provider on the abstract stack, returning the span
// for the call instruction's ResultSpan operand.
func (t *Translator) pushCallResults(sig *wasm.FuncType) RegSpan {
	return t.vs.PushDynamicN(len(sig.Results))
}

func (t *Translator) emitArgList(args []Provider) {
	regs := make([]Register, len(args))
	for i, p := range args {
		regs[i] = p.AsRegister()
	}
	t.enc.EncodeRegisterList(regs)
}

func (t *Translator) visitCall(instr wasm.Instruction) error {
	imm := instr.Imm.(wasm.CallImm)
	sig := t.funcType(imm.FuncIdx)
	args := t.popArgs(sig)
	results := t.pushCallResults(sig)

	callee := t.pool.InternI64(int64(imm.FuncIdx))
	t.enc.PushInstr(Instr{Op: OpCall, A: results.Head, B: constReg(callee), C: Register(len(sig.Results))})
	t.emitArgList(args)
	return nil
}

// indirectDescriptor interns a single constant packing a call_indirect's
// static type and table index together, the "type/table descriptor
// constant" instr.go's OpCallIndirect comment names as its callee
// operand: the executor checks the callee's actual signature against
// TypeIdx and traps IndirectCallBadSignature on mismatch.
func (t *Translator) indirectDescriptor(typeIdx, tableIdx uint32) ConstRef {
	return t.pool.InternI64(int64(uint64(typeIdx)<<32 | uint64(tableIdx)))
}

func (t *Translator) visitCallIndirect(instr wasm.Instruction) error {
	imm := instr.Imm.(wasm.CallIndirectImm)
	sig := &t.module.Types[imm.TypeIdx]
	elemIdx := t.vs.Pop()
	args := t.popArgs(sig)
	results := t.pushCallResults(sig)

	descriptor := t.indirectDescriptor(imm.TypeIdx, imm.TableIdx)
	t.enc.PushInstr(Instr{Op: OpCallIndirect, A: results.Head, B: constReg(descriptor), C: Register(len(sig.Results))})
	// Table-params continuation slot: the element index to look up,
	// ahead of the argument list proper.
	t.enc.AppendInstr(Instr{Op: OpRegList, A: elemIdx.AsRegister(), B: RegUnused, C: RegUnused})
	t.emitArgList(args)
	return nil
}

func (t *Translator) visitReturnCall(instr wasm.Instruction) error {
	imm := instr.Imm.(wasm.CallImm)
	sig := t.funcType(imm.FuncIdx)
	args := t.popArgs(sig)

	callee := t.pool.InternI64(int64(imm.FuncIdx))
	t.enc.PushInstr(Instr{Op: OpReturnCall, B: constReg(callee), C: Register(len(args))})
	t.emitArgList(args)
	t.cs.Last().Dead = true
	return nil
}

func (t *Translator) visitReturnCallIndirect(instr wasm.Instruction) error {
	imm := instr.Imm.(wasm.CallIndirectImm)
	sig := &t.module.Types[imm.TypeIdx]
	elemIdx := t.vs.Pop()
	args := t.popArgs(sig)

	descriptor := t.indirectDescriptor(imm.TypeIdx, imm.TableIdx)
	t.enc.PushInstr(Instr{Op: OpReturnCallIndirect, B: constReg(descriptor), C: Register(len(args))})
	t.enc.AppendInstr(Instr{Op: OpRegList, A: elemIdx.AsRegister(), B: RegUnused, C: RegUnused})
	t.emitArgList(args)
	t.cs.Last().Dead = true
	return nil
}
