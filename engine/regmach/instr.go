package regmach

// Op identifies a register-machine instruction's operation. Operand
// registers are always register-or-constant (negative Register values
// address the constant pool); some ops reinterpret the raw bit pattern of
// an operand slot as a 16-bit signed immediate instead of a register —
// that's documented per-op below.
type Op uint16

// Instr is the engine's fixed-size instruction word: one opcode plus up
// to three 16-bit operand slots. An instruction that needs more operands
// than fit (call argument lists, branch-table arms) spans multiple
// consecutive Instr slots; OpRegList tail slots carry the overflow and
// are never valid as a standalone instruction.
type Instr struct {
	Op      Op
	A, B, C Register
}

// instrSize documents the size invariant asserted by instr_test.go:
// len(Instr fields) packs into exactly 8 bytes (Op uint16 + 3*Register,
// Register itself int16), matching spec's "fixed 64-bit tagged union".
const instrSize = 8

const (
	OpNop Op = iota

	// OpTrap unconditionally raises the trap coded in A (a TrapCode cast
	// to Register). Emitted for unreachable and for folded traps.
	OpTrap

	// OpConsumeFuel decrements the executor's fuel counter by A
	// (interpreted as a plain non-negative int16, not register-or-const)
	// and traps with TrapOutOfFuel on underflow. Inserted at basic block
	// entries.
	OpConsumeFuel

	// OpCopy copies register-or-constant B into local/temporary A.
	OpCopy
	// OpCopyImm16 copies the raw 16-bit immediate held in B (sign
	// interpretation depends on the value's intended type) into A.
	OpCopyImm16
	// OpCopySpan copies the N-register span starting at B into the span
	// starting at A; N is carried in C as a plain count. Emitted instead
	// of N individual OpCopy for branch-parameter / call-result moves;
	// the encoder has already chosen forward or reverse iteration order
	// so the executor just walks low-to-high.
	OpCopySpan
	// OpCopySpanRev is OpCopySpan but executed high-to-low (used when
	// destination overlaps the tail of the source span).
	OpCopySpanRev

	// Control transfer. All branch offsets, once finalized, are absolute
	// InstrPos values stored as two's-complement... in practice offsets
	// fit int16 only for tiny functions, so branch instructions store
	// their destination as a constant-pool reference (the offset is
	// interned as an int64 constant) in B, keeping Instr fixed-size
	// regardless of function size.
	OpBranch      // unconditional: IP = dest(B)
	OpBranchEqz   // if A == 0: IP = dest(B)
	OpBranchNez   // if A != 0: IP = dest(B)
	OpBranchTable // index A selects arm; C = arm count; dest table follows as OpRegList (one dest constant ref per arm, packed 3/slot); last arm implicit is the default, carried in B

	OpReturn     // return zero values
	OpReturnReg  // return the single value in A (register-or-const)
	OpReturnSpan // return the span [A, A+C)

	// Calls. B holds the callee reference: for OpCall/OpReturnCall a
	// function index constant (imported and module-defined functions
	// alike), for OpCallIndirect/OpReturnCallIndirect a type/table
	// descriptor constant. The indirect forms are followed by one
	// OpRegList slot whose A is the table element index. Argument
	// registers follow as OpRegList tail slots. OpCall/OpCallIndirect
	// place their C results in [A, A+C), and their arg count is implied
	// by the callee's signature; the return-call forms leave A unused and
	// carry the arg count in C.
	OpCall
	OpCallIndirect
	OpReturnCall
	OpReturnCallIndirect

	// OpRegList is a continuation slot: up to three plain registers
	// packed into A, B, C (unused trailing entries hold RegUnused).
	OpRegList

	opLoadStoreBase // sentinel; load/store ops start here
)

// RegUnused fills unused Register slots in continuation words.
const RegUnused Register = 0

// Load/store ops. Each has three encodings, chosen by the translator
// based on what's known at compile time:
//   - general:   A=dst/value B=base-register C=offset-as-const-ref
//   - offset16:  A=dst/value B=base-register C=raw uint16 offset immediate
//   - at:        A=dst/value B=unused         C=absolute-address-const-ref
//     (base itself was a compile-time constant; translator folded
//     base+offset into one constant)
//
// Stores additionally have an "imm" flavor where the stored value itself
// is a small constant embedded directly rather than routed through the
// constant pool; see the *Imm variants.
const (
	OpI32Load Op = iota + opLoadStoreBase
	OpI32LoadOffset16
	OpI32LoadAt
	OpI64Load
	OpI64LoadOffset16
	OpI64LoadAt
	OpF32Load
	OpF32LoadOffset16
	OpF32LoadAt
	OpF64Load
	OpF64LoadOffset16
	OpF64LoadAt
	OpI32Load8S
	OpI32Load8U
	OpI32Load16S
	OpI32Load16U
	OpI64Load8S
	OpI64Load8U
	OpI64Load16S
	OpI64Load16U
	OpI64Load32S
	OpI64Load32U

	OpI32Store
	OpI32StoreOffset16
	OpI32StoreAt
	OpI32StoreImm16 // C = raw i16 value, no const-pool lookup
	OpI64Store
	OpI64StoreOffset16
	OpI64StoreAt
	OpI64StoreImm16
	OpF32Store
	OpF32StoreOffset16
	OpF32StoreAt
	OpF64Store
	OpF64StoreOffset16
	OpF64StoreAt
	OpI32Store8
	OpI32Store8Offset16
	OpI32Store16
	OpI32Store16Offset16
	OpI64Store8
	OpI64Store8Offset16
	OpI64Store16
	OpI64Store16Offset16
	OpI64Store32
	OpI64Store32Offset16

	OpMemorySize
	OpMemoryGrow

	// Bulk memory/table ops. Each has 8 const/non-const combinations per
	// spec.md 4.5; regmach collapses those into one Op per operation with
	// operands that may individually be const registers (negative) or
	// dynamic ones, since the executor already resolves either uniformly
	// via Executor.reg. The constant-vs-dynamic distinction only matters for
	// the *translator's* peephole choices (e.g. an all-constant
	// memory.fill can sometimes be proven in-bounds early); the dispatch
	// loop itself doesn't need eight variants.
	// OpMemoryInit: A=dst B=src C=len, followed by one OpRegList
	// continuation slot whose A field is the data-segment-index operand.
	OpMemoryInit
	OpMemoryCopy // A=dst B=src C=len
	OpMemoryFill // A=dst B=value C=len
	OpDataDrop   // A=data segment index operand

	OpGlobalGet     // A=dst, C=global index (plain uint16, not reg-or-const)
	OpGlobalSet     // B=value (reg-or-const), C=global index
	OpGlobalSetImm16 // B=raw i16 immediate value, C=global index, no const-pool lookup

	OpTableGet  // A=dst B=index, C=table index (plain uint16, not reg-or-const)
	OpTableSet  // A=index B=value, C=table index
	OpTableSize // A=dst, C=table index
	OpTableGrow // A=dst B=delta C=table index, followed by one continuation slot whose A is the fill-value operand
	OpTableFill // A=dst B=value C=len, followed by one continuation slot whose A is the table index operand (plain)
	// OpTableInit: A=dst B=src C=len, followed by one continuation slot
	// whose A=elem segment index operand, B=table index (plain).
	OpTableInit
	OpTableCopy // A=dst B=src C=len, followed by one continuation slot with A=dst table idx, B=src table idx (both plain)
	OpElemDrop  // A=elem segment index operand

	opArithBase // sentinel; arithmetic/comparison/conversion ops start here
)

// opImmFlag marks a binary arithmetic/comparison op whose C operand is a
// raw 16-bit signed immediate (per spec.md's Const16<T>) rather than a
// register-or-constant. Executors mask it off before switching on the
// base opcode; translators set it only when the right operand proved to
// fit in 16 bits (translator_numeric.go).
const opImmFlag Op = 0x4000

// opFusedBranchFlag marks a comparison op that's been fused with its
// consuming conditional branch (encoder.go's peephole pass): the operand
// layout switches from "compare lhs,rhs -> bool dst" to "compare
// lhs,rhs, branch to dest if the result matches opFusedSenseNez's sense".
// opFusedSenseNez distinguishes branch-if-true (fused with BranchNez)
// from branch-if-false (fused with BranchEqz).
const (
	opFusedBranchFlag Op = 0x8000
	opFusedSenseNez   Op = 0x2000
)

// BaseOp strips opImmFlag/fused-branch flags, yielding the operation
// identity regardless of encoding variant.
func (o Op) BaseOp() Op { return o &^ (opImmFlag | opFusedBranchFlag | opFusedSenseNez) }

// IsImm reports whether o is the immediate-encoded form of a binary op.
func (o Op) IsImm() bool { return o&opImmFlag != 0 }

// IsFusedBranch reports whether o is a comparison fused with a
// conditional branch.
func (o Op) IsFusedBranch() bool { return o&opFusedBranchFlag != 0 }

// FusedSenseNez reports, for a fused-branch op, whether the branch is
// taken when the comparison is true (fused from BranchNez) as opposed to
// when it's false (fused from BranchEqz).
func (o Op) FusedSenseNez() bool { return o&opFusedSenseNez != 0 }

// Binary/unary arithmetic, comparison and conversion ops. Grouped per
// Wasm value type in the same order as wasm/constants.go so the mapping
// from wasm.Instruction.Opcode is a straightforward table lookup
// (translator_numeric.go).
const (
	OpI32Eqz Op = iota + opArithBase
	OpI32Eq
	OpI32Ne
	OpI32LtS
	OpI32LtU
	OpI32GtS
	OpI32GtU
	OpI32LeS
	OpI32LeU
	OpI32GeS
	OpI32GeU

	OpI64Eqz
	OpI64Eq
	OpI64Ne
	OpI64LtS
	OpI64LtU
	OpI64GtS
	OpI64GtU
	OpI64LeS
	OpI64LeU
	OpI64GeS
	OpI64GeU

	OpF32Eq
	OpF32Ne
	OpF32Lt
	OpF32Gt
	OpF32Le
	OpF32Ge

	OpF64Eq
	OpF64Ne
	OpF64Lt
	OpF64Gt
	OpF64Le
	OpF64Ge

	OpI32Clz
	OpI32Ctz
	OpI32Popcnt
	OpI32Add
	OpI32Sub
	OpI32Mul
	OpI32DivS
	OpI32DivU
	OpI32RemS
	OpI32RemU
	OpI32And
	OpI32Or
	OpI32Xor
	OpI32Shl
	OpI32ShrS
	OpI32ShrU
	OpI32Rotl
	OpI32Rotr

	OpI64Clz
	OpI64Ctz
	OpI64Popcnt
	OpI64Add
	OpI64Sub
	OpI64Mul
	OpI64DivS
	OpI64DivU
	OpI64RemS
	OpI64RemU
	OpI64And
	OpI64Or
	OpI64Xor
	OpI64Shl
	OpI64ShrS
	OpI64ShrU
	OpI64Rotl
	OpI64Rotr

	OpF32Abs
	OpF32Neg
	OpF32Ceil
	OpF32Floor
	OpF32Trunc
	OpF32Nearest
	OpF32Sqrt
	OpF32Add
	OpF32Sub
	OpF32Mul
	OpF32Div
	OpF32Min
	OpF32Max
	OpF32Copysign

	OpF64Abs
	OpF64Neg
	OpF64Ceil
	OpF64Floor
	OpF64Trunc
	OpF64Nearest
	OpF64Sqrt
	OpF64Add
	OpF64Sub
	OpF64Mul
	OpF64Div
	OpF64Min
	OpF64Max
	OpF64Copysign

	OpI32WrapI64
	OpI32TruncF32S
	OpI32TruncF32U
	OpI32TruncF64S
	OpI32TruncF64U
	OpI64ExtendI32S
	OpI64ExtendI32U
	OpI64TruncF32S
	OpI64TruncF32U
	OpI64TruncF64S
	OpI64TruncF64U
	OpF32ConvertI32S
	OpF32ConvertI32U
	OpF32ConvertI64S
	OpF32ConvertI64U
	OpF32DemoteF64
	OpF64ConvertI32S
	OpF64ConvertI32U
	OpF64ConvertI64S
	OpF64ConvertI64U
	OpF64PromoteF32
	OpI32ReinterpretF32
	OpI64ReinterpretF64
	OpF32ReinterpretI32
	OpF64ReinterpretI64

	OpI32Extend8S
	OpI32Extend16S
	OpI64Extend8S
	OpI64Extend16S
	OpI64Extend32S

	OpI32TruncSatF32S
	OpI32TruncSatF32U
	OpI32TruncSatF64S
	OpI32TruncSatF64U
	OpI64TruncSatF32S
	OpI64TruncSatF32U
	OpI64TruncSatF64S
	OpI64TruncSatF64U

	OpRefNull
	OpRefIsNull
	OpRefFunc
	OpRefEq

	// OpSelect: A=dst B=cond C=trueVal, followed by one OpRegList
	// continuation slot whose A=falseVal.
	OpSelect
)
