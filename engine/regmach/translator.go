package regmach

import (
	"fmt"

	"github.com/wippyai/wasm-runtime/errors"
	"github.com/wippyai/wasm-runtime/wasm"
)

// translator.go holds the per-function translator's shared state and the
// opcode dispatch loop; translator_control.go, translator_numeric.go,
// translator_memory.go and translator_call.go add the per-category visit
// methods this file dispatches to. The style is grounded on
// asyncify/internal/handler/registry.go's opcode-indexed Handler
// dispatch, adapted from a registry-of-closures to a plain switch since
// the operand shapes here vary too much between categories to share one
// handler signature.
type Translator struct {
	module  *wasm.Module
	funcIdx uint32
	sig     *wasm.FuncType

	locals    []wasm.ValType // types of params + declared locals, index-addressable
	numLocals int

	pool *ConstPool
	enc  *Encoder
	vs   *ValueStack
	cs   ControlStack

	limits Limits
}

// NewTranslator prepares a translator for function funcIdx of module m,
// whose signature is sig and whose declared locals are decls (in
// addition to sig.Params, which occupy the first len(sig.Params) local
// slots).
func NewTranslator(m *wasm.Module, funcIdx uint32, sig *wasm.FuncType, decls []wasm.LocalEntry, limits Limits) *Translator {
	locals := make([]wasm.ValType, 0, len(sig.Params))
	locals = append(locals, sig.Params...)
	for _, d := range decls {
		for i := uint32(0); i < d.Count; i++ {
			locals = append(locals, d.ValType)
		}
	}
	pool := NewConstPool()
	enc := NewEncoder(pool)
	return &Translator{
		module:    m,
		funcIdx:   funcIdx,
		sig:       sig,
		locals:    locals,
		numLocals: len(locals),
		pool:      pool,
		enc:       enc,
		vs:        NewValueStack(len(locals), enc),
		limits:    limits,
	}
}

// Translate lowers code (a decoded Wasm operator stream, the function
// body's `end` included) into a CompiledFunction.
func (t *Translator) Translate(code []wasm.Instruction) (*CompiledFunction, error) {
	fuelInstr := t.enc.PushInstr(Instr{Op: OpConsumeFuel, A: 0})
	endLabel := t.enc.NewLabel()
	t.cs.PushFrame(ControlFrame{
		Kind:        FrameBlock,
		Results:     t.sig.Results,
		StackHeight: t.vs.Height(),
		DynamicBase: t.vs.NextDynamic(),
		FuelInstr:   fuelInstr,
		HasFuel:     true,
		EndLabel:    endLabel,
	})

	for _, instr := range code {
		t.vs.polymorphicPad = t.cs.Last().Dead
		if err := t.visit(instr); err != nil {
			return nil, err
		}
		if t.enc.Len() > t.limits.MaxInstructions {
			return nil, errors.New(errors.PhaseCompile, errors.KindEncoding).
				Detail("function %d exceeds instruction limit %d", t.funcIdx, t.limits.MaxInstructions).Build()
		}
	}

	if t.cs.Len() != 0 {
		panic("regmach: function body did not close all control frames")
	}

	if int(t.vs.highWaterRegister()) > t.limits.MaxRegisters {
		return nil, errors.New(errors.PhaseCompile, errors.KindEncoding).
			Detail("function %d exceeds register limit %d", t.funcIdx, t.limits.MaxRegisters).Build()
	}

	instrs := t.enc.Finalize()
	return &CompiledFunction{
		NumParams:      len(t.sig.Params),
		NumResults:     len(t.sig.Results),
		NumLocals:      t.numLocals,
		HighWater:      t.vs.highWaterRegister(),
		MaxStackHeight: t.vs.maxHeight,
		Instrs:         instrs,
		Consts:         t.pool.Freeze(),
	}, nil
}

// visit dispatches a single decoded Wasm instruction to the appropriate
// category handler. Opcodes outside spec.md 6's supported-proposal list
// (SIMD, threads/atomics, GC, exception handling) reach the default case,
// which panics rather than silently mistranslating them.
func (t *Translator) visit(instr wasm.Instruction) error {
	switch instr.Opcode {
	case wasm.OpUnreachable:
		return t.visitUnreachable()
	case wasm.OpNop:
		return nil
	case wasm.OpBlock, wasm.OpLoop, wasm.OpIf:
		return t.visitBlockLike(instr)
	case wasm.OpElse:
		return t.visitElse()
	case wasm.OpEnd:
		return t.visitEnd()
	case wasm.OpBr:
		return t.visitBr(instr)
	case wasm.OpBrIf:
		return t.visitBrIf(instr)
	case wasm.OpBrTable:
		return t.visitBrTable(instr)
	case wasm.OpReturn:
		return t.visitReturn()
	case wasm.OpCall:
		return t.visitCall(instr)
	case wasm.OpCallIndirect:
		return t.visitCallIndirect(instr)
	case wasm.OpReturnCall:
		return t.visitReturnCall(instr)
	case wasm.OpReturnCallIndirect:
		return t.visitReturnCallIndirect(instr)
	case wasm.OpDrop:
		t.vs.Pop()
		return nil
	case wasm.OpSelect:
		return t.visitSelect(nil)
	case wasm.OpSelectType:
		imm := instr.Imm.(wasm.SelectTypeImm)
		return t.visitSelect(imm.Types)
	case wasm.OpLocalGet:
		return t.visitLocalGet(instr.Imm.(wasm.LocalImm).LocalIdx)
	case wasm.OpLocalSet:
		return t.visitLocalSet(instr.Imm.(wasm.LocalImm).LocalIdx)
	case wasm.OpLocalTee:
		return t.visitLocalTee(instr.Imm.(wasm.LocalImm).LocalIdx)
	case wasm.OpGlobalGet:
		return t.visitGlobalGet(instr.Imm.(wasm.GlobalImm).GlobalIdx)
	case wasm.OpGlobalSet:
		return t.visitGlobalSet(instr.Imm.(wasm.GlobalImm).GlobalIdx)
	case wasm.OpI32Const:
		t.vs.PushConst(t.pool.InternI32(instr.Imm.(wasm.I32Imm).Value))
		return nil
	case wasm.OpI64Const:
		t.vs.PushConst(t.pool.InternI64(instr.Imm.(wasm.I64Imm).Value))
		return nil
	case wasm.OpF32Const:
		t.vs.PushConst(t.pool.InternF32(instr.Imm.(wasm.F32Imm).Value))
		return nil
	case wasm.OpF64Const:
		t.vs.PushConst(t.pool.InternF64(instr.Imm.(wasm.F64Imm).Value))
		return nil
	case wasm.OpRefNull:
		t.vs.PushConst(t.pool.InternI64(-1)) // null reference encoded as all-ones
		return nil
	case wasm.OpRefIsNull:
		return t.visitRefIsNull()
	case wasm.OpRefFunc:
		t.vs.PushConst(t.pool.InternI64(int64(instr.Imm.(wasm.RefFuncImm).FuncIdx)))
		return nil
	case wasm.OpRefEq:
		return t.visitBinary(instr.Opcode, wasm.ValI32)

	case wasm.OpI32Load, wasm.OpI64Load, wasm.OpF32Load, wasm.OpF64Load,
		wasm.OpI32Load8S, wasm.OpI32Load8U, wasm.OpI32Load16S, wasm.OpI32Load16U,
		wasm.OpI64Load8S, wasm.OpI64Load8U, wasm.OpI64Load16S, wasm.OpI64Load16U,
		wasm.OpI64Load32S, wasm.OpI64Load32U:
		return t.visitLoad(instr)
	case wasm.OpI32Store, wasm.OpI64Store, wasm.OpF32Store, wasm.OpF64Store,
		wasm.OpI32Store8, wasm.OpI32Store16, wasm.OpI64Store8, wasm.OpI64Store16, wasm.OpI64Store32:
		return t.visitStore(instr)
	case wasm.OpMemorySize:
		return t.visitMemorySize()
	case wasm.OpMemoryGrow:
		return t.visitMemoryGrow()

	case wasm.OpTableGet:
		return t.visitTableGet(instr.Imm.(wasm.TableImm).TableIdx)
	case wasm.OpTableSet:
		return t.visitTableSet(instr.Imm.(wasm.TableImm).TableIdx)

	case wasm.OpPrefixMisc:
		return t.visitMisc(instr.Imm.(wasm.MiscImm))

	default:
		if isNumericOpcode(instr.Opcode) {
			return t.visitNumeric(instr)
		}
		panic(fmt.Sprintf("regmach: unsupported opcode 0x%02x in function %d (validation is assumed upstream)", instr.Opcode, t.funcIdx))
	}
}
