package regmach

import (
	"fmt"
	"io"
)

// disasm.go is a textual bytecode printer, supplementing spec.md's
// translator/executor split with a debugging aid grounded on wasmi's
// regmach bytecode printer (original_source's
// wasmi_v1/src/engine/inner/printer/bytecode.rs prints one compiled
// instruction per line with resolved operand roles).

var opNames = map[Op]string{
	OpNop:          "nop",
	OpTrap:         "trap",
	OpConsumeFuel:  "consume_fuel",
	OpCopy:         "copy",
	OpCopyImm16:    "copy_imm16",
	OpCopySpan:     "copy_span",
	OpCopySpanRev:  "copy_span_rev",
	OpBranch:       "br",
	OpBranchEqz:    "br_eqz",
	OpBranchNez:    "br_nez",
	OpBranchTable:  "br_table",
	OpReturn:       "return",
	OpReturnReg:    "return.reg",
	OpReturnSpan:   "return.span",
	OpCall:         "call",
	OpCallIndirect: "call_indirect",
	OpReturnCall:   "return_call",
	OpReturnCallIndirect: "return_call_indirect",
	OpRegList:      "reglist",

	OpI32Load: "i32.load", OpI32LoadOffset16: "i32.load.o16", OpI32LoadAt: "i32.load.at",
	OpI64Load: "i64.load", OpI64LoadOffset16: "i64.load.o16", OpI64LoadAt: "i64.load.at",
	OpF32Load: "f32.load", OpF32LoadOffset16: "f32.load.o16", OpF32LoadAt: "f32.load.at",
	OpF64Load: "f64.load", OpF64LoadOffset16: "f64.load.o16", OpF64LoadAt: "f64.load.at",
	OpI32Load8S: "i32.load8_s", OpI32Load8U: "i32.load8_u",
	OpI32Load16S: "i32.load16_s", OpI32Load16U: "i32.load16_u",
	OpI64Load8S: "i64.load8_s", OpI64Load8U: "i64.load8_u",
	OpI64Load16S: "i64.load16_s", OpI64Load16U: "i64.load16_u",
	OpI64Load32S: "i64.load32_s", OpI64Load32U: "i64.load32_u",

	OpI32Store: "i32.store", OpI32StoreOffset16: "i32.store.o16", OpI32StoreAt: "i32.store.at", OpI32StoreImm16: "i32.store.imm16",
	OpI64Store: "i64.store", OpI64StoreOffset16: "i64.store.o16", OpI64StoreAt: "i64.store.at", OpI64StoreImm16: "i64.store.imm16",
	OpF32Store: "f32.store", OpF32StoreOffset16: "f32.store.o16", OpF32StoreAt: "f32.store.at",
	OpF64Store: "f64.store", OpF64StoreOffset16: "f64.store.o16", OpF64StoreAt: "f64.store.at",
	OpI32Store8: "i32.store8", OpI32Store8Offset16: "i32.store8.o16",
	OpI32Store16: "i32.store16", OpI32Store16Offset16: "i32.store16.o16",
	OpI64Store8: "i64.store8", OpI64Store8Offset16: "i64.store8.o16",
	OpI64Store16: "i64.store16", OpI64Store16Offset16: "i64.store16.o16",
	OpI64Store32: "i64.store32", OpI64Store32Offset16: "i64.store32.o16",

	OpMemorySize: "memory.size", OpMemoryGrow: "memory.grow",
	OpMemoryInit: "memory.init", OpMemoryCopy: "memory.copy", OpMemoryFill: "memory.fill", OpDataDrop: "data.drop",
	OpTableGet: "table.get", OpTableSet: "table.set", OpTableSize: "table.size", OpTableGrow: "table.grow",
	OpTableFill: "table.fill", OpTableInit: "table.init", OpTableCopy: "table.copy", OpElemDrop: "elem.drop",

	OpI32Eqz: "i32.eqz", OpI32Eq: "i32.eq", OpI32Ne: "i32.ne",
	OpI32LtS: "i32.lt_s", OpI32LtU: "i32.lt_u", OpI32GtS: "i32.gt_s", OpI32GtU: "i32.gt_u",
	OpI32LeS: "i32.le_s", OpI32LeU: "i32.le_u", OpI32GeS: "i32.ge_s", OpI32GeU: "i32.ge_u",

	OpI64Eqz: "i64.eqz", OpI64Eq: "i64.eq", OpI64Ne: "i64.ne",
	OpI64LtS: "i64.lt_s", OpI64LtU: "i64.lt_u", OpI64GtS: "i64.gt_s", OpI64GtU: "i64.gt_u",
	OpI64LeS: "i64.le_s", OpI64LeU: "i64.le_u", OpI64GeS: "i64.ge_s", OpI64GeU: "i64.ge_u",

	OpF32Eq: "f32.eq", OpF32Ne: "f32.ne", OpF32Lt: "f32.lt", OpF32Gt: "f32.gt", OpF32Le: "f32.le", OpF32Ge: "f32.ge",
	OpF64Eq: "f64.eq", OpF64Ne: "f64.ne", OpF64Lt: "f64.lt", OpF64Gt: "f64.gt", OpF64Le: "f64.le", OpF64Ge: "f64.ge",

	OpI32Clz: "i32.clz", OpI32Ctz: "i32.ctz", OpI32Popcnt: "i32.popcnt",
	OpI32Add: "i32.add", OpI32Sub: "i32.sub", OpI32Mul: "i32.mul",
	OpI32DivS: "i32.div_s", OpI32DivU: "i32.div_u", OpI32RemS: "i32.rem_s", OpI32RemU: "i32.rem_u",
	OpI32And: "i32.and", OpI32Or: "i32.or", OpI32Xor: "i32.xor",
	OpI32Shl: "i32.shl", OpI32ShrS: "i32.shr_s", OpI32ShrU: "i32.shr_u", OpI32Rotl: "i32.rotl", OpI32Rotr: "i32.rotr",

	OpI64Clz: "i64.clz", OpI64Ctz: "i64.ctz", OpI64Popcnt: "i64.popcnt",
	OpI64Add: "i64.add", OpI64Sub: "i64.sub", OpI64Mul: "i64.mul",
	OpI64DivS: "i64.div_s", OpI64DivU: "i64.div_u", OpI64RemS: "i64.rem_s", OpI64RemU: "i64.rem_u",
	OpI64And: "i64.and", OpI64Or: "i64.or", OpI64Xor: "i64.xor",
	OpI64Shl: "i64.shl", OpI64ShrS: "i64.shr_s", OpI64ShrU: "i64.shr_u", OpI64Rotl: "i64.rotl", OpI64Rotr: "i64.rotr",

	OpF32Abs: "f32.abs", OpF32Neg: "f32.neg", OpF32Ceil: "f32.ceil", OpF32Floor: "f32.floor",
	OpF32Trunc: "f32.trunc", OpF32Nearest: "f32.nearest", OpF32Sqrt: "f32.sqrt",
	OpF32Add: "f32.add", OpF32Sub: "f32.sub", OpF32Mul: "f32.mul", OpF32Div: "f32.div",
	OpF32Min: "f32.min", OpF32Max: "f32.max", OpF32Copysign: "f32.copysign",

	OpF64Abs: "f64.abs", OpF64Neg: "f64.neg", OpF64Ceil: "f64.ceil", OpF64Floor: "f64.floor",
	OpF64Trunc: "f64.trunc", OpF64Nearest: "f64.nearest", OpF64Sqrt: "f64.sqrt",
	OpF64Add: "f64.add", OpF64Sub: "f64.sub", OpF64Mul: "f64.mul", OpF64Div: "f64.div",
	OpF64Min: "f64.min", OpF64Max: "f64.max", OpF64Copysign: "f64.copysign",

	OpI32WrapI64: "i32.wrap_i64",
	OpI32TruncF32S: "i32.trunc_f32_s", OpI32TruncF32U: "i32.trunc_f32_u",
	OpI32TruncF64S: "i32.trunc_f64_s", OpI32TruncF64U: "i32.trunc_f64_u",
	OpI64ExtendI32S: "i64.extend_i32_s", OpI64ExtendI32U: "i64.extend_i32_u",
	OpI64TruncF32S: "i64.trunc_f32_s", OpI64TruncF32U: "i64.trunc_f32_u",
	OpI64TruncF64S: "i64.trunc_f64_s", OpI64TruncF64U: "i64.trunc_f64_u",
	OpF32ConvertI32S: "f32.convert_i32_s", OpF32ConvertI32U: "f32.convert_i32_u",
	OpF32ConvertI64S: "f32.convert_i64_s", OpF32ConvertI64U: "f32.convert_i64_u",
	OpF32DemoteF64: "f32.demote_f64",
	OpF64ConvertI32S: "f64.convert_i32_s", OpF64ConvertI32U: "f64.convert_i32_u",
	OpF64ConvertI64S: "f64.convert_i64_s", OpF64ConvertI64U: "f64.convert_i64_u",
	OpF64PromoteF32: "f64.promote_f32",
	OpI32ReinterpretF32: "i32.reinterpret_f32", OpI64ReinterpretF64: "i64.reinterpret_f64",
	OpF32ReinterpretI32: "f32.reinterpret_i32", OpF64ReinterpretI64: "f64.reinterpret_i64",

	OpI32Extend8S: "i32.extend8_s", OpI32Extend16S: "i32.extend16_s",
	OpI64Extend8S: "i64.extend8_s", OpI64Extend16S: "i64.extend16_s", OpI64Extend32S: "i64.extend32_s",

	OpI32TruncSatF32S: "i32.trunc_sat_f32_s", OpI32TruncSatF32U: "i32.trunc_sat_f32_u",
	OpI32TruncSatF64S: "i32.trunc_sat_f64_s", OpI32TruncSatF64U: "i32.trunc_sat_f64_u",
	OpI64TruncSatF32S: "i64.trunc_sat_f32_s", OpI64TruncSatF32U: "i64.trunc_sat_f32_u",
	OpI64TruncSatF64S: "i64.trunc_sat_f64_s", OpI64TruncSatF64U: "i64.trunc_sat_f64_u",

	OpRefNull: "ref.null", OpRefIsNull: "ref.is_null", OpRefFunc: "ref.func", OpRefEq: "ref.eq",
	OpSelect: "select",
}

// mnemonic names op, decorating it with the imm16/fused-branch encoding
// flags when present.
func mnemonic(op Op) string {
	name, ok := opNames[op.BaseOp()]
	if !ok {
		name = fmt.Sprintf("op(%d)", uint16(op.BaseOp()))
	}
	if op.IsImm() {
		name += ".imm"
	}
	if op.IsFusedBranch() {
		if op.FusedSenseNez() {
			name += ".fused_nez"
		} else {
			name += ".fused_eqz"
		}
	}
	return name
}

// Disassemble writes one line per instruction in f to w, in the style of
// `pos: mnemonic a, b, c`. Registers print as r<n> (local/dynamic) or
// c<n> (constant pool handle); OpRegList continuation slots and the
// raw-immediate fields of other ops print the same way, whatever their
// operation-specific meaning.
func (f *CompiledFunction) Disassemble(w io.Writer) error {
	for pos, instr := range f.Instrs {
		_, err := fmt.Fprintf(w, "%4d: %-20s %v, %v, %v\n", pos, mnemonic(instr.Op), instr.A, instr.B, instr.C)
		if err != nil {
			return err
		}
	}
	return nil
}
