package regmach

import (
	"math"

	"github.com/wippyai/wasm-runtime/errors"
	"github.com/wippyai/wasm-runtime/wasm"
)

// resolver.go builds an Instance (a minimal Store stand-in: one module's
// resolved functions, memories, tables and globals) from a compiled
// CodeMap plus a Resolver supplying whatever the module imports. Grounded
// on spec.md 4.6's frame-layout description and 4.7's external-interface
// section ("module metadata: function signatures, global types and
// initializers, table element types, memory limits, data/element segments
// (counted only; contents resolved at runtime)"), with the runtime side of
// resolving those contents added here since spec.md leaves it to "an
// implementation".

const wasmPageSize = 65536

// HostFunc is a host-implemented function: it receives already-decoded
// parameter words (same untyped-word convention as the register file) and
// returns result words, or an error that aborts instantiation/execution.
// A host function cannot itself raise a Wasm trap; it returns a Go error.
type HostFunc func(args []uint64) ([]uint64, error)

// FuncInstance is a resolved callable, addressed by the same function
// index space the translator used: imported functions first, then
// module-defined ones. Exactly one of Host/Code is set.
type FuncInstance struct {
	Sig  *wasm.FuncType
	Host HostFunc
	Code *CompiledFunction
}

// MemoryInstance is one linear memory's live bytes plus its declared
// growth ceiling.
type MemoryInstance struct {
	Data   []byte
	MaxPages uint64
}

// Pages returns the memory's current size in 64KiB pages.
func (m *MemoryInstance) Pages() uint64 { return uint64(len(m.Data)) / wasmPageSize }

// Grow attempts to grow the memory by delta pages, returning the size
// before growth (per Wasm's memory.grow result) or ok=false if delta would
// exceed MaxPages.
func (m *MemoryInstance) Grow(delta uint64) (oldPages uint64, ok bool) {
	old := m.Pages()
	if delta == 0 {
		return old, true
	}
	next := old + delta
	if next > m.MaxPages {
		return 0, false
	}
	grown := make([]byte, next*wasmPageSize)
	copy(grown, m.Data)
	m.Data = grown
	return old, true
}

// TableInstance is one table's live elements, each a function index or -1
// for a null reference (matching the translator's ref.null encoding).
type TableInstance struct {
	Elems  []int64
	MaxLen uint64
}

func (t *TableInstance) Grow(delta uint64, fill int64) (oldLen uint64, ok bool) {
	old := uint64(len(t.Elems))
	if delta == 0 {
		return old, true
	}
	next := old + delta
	if next > t.MaxLen {
		return 0, false
	}
	grown := make([]int64, next)
	copy(grown, t.Elems)
	for i := old; i < next; i++ {
		grown[i] = fill
	}
	t.Elems = grown
	return old, true
}

// GlobalInstance is one global variable's live value.
type GlobalInstance struct {
	Value   uint64
	Mutable bool
	ValType wasm.ValType
}

// Resolver supplies a module's imports at instantiation time, keyed by
// the (module, name) pair the import section names. Implementations
// typically back this with a linker's export table; a minimal embedder can
// implement it directly against a handful of host functions.
type Resolver interface {
	ResolveFunc(module, name string, sig *wasm.FuncType) (HostFunc, error)
	ResolveMemory(module, name string, typ wasm.MemoryType) (*MemoryInstance, error)
	ResolveTable(module, name string, typ wasm.TableType) (*TableInstance, error)
	ResolveGlobal(module, name string, typ wasm.GlobalType) (*GlobalInstance, error)
}

// elemSegment and dataSegment track a bulk-op-eligible passive/active
// segment's live (not yet dropped) contents, addressed by segment index in
// declaration order, for table.init/memory.init/data.drop/elem.drop.
type elemSegment struct {
	funcs   []int64
	dropped bool
}

type dataSegment struct {
	bytes   []byte
	dropped bool
}

// Instance is one instantiated module: resolved functions, memories,
// tables and globals plus the segments bulk ops may still draw from,
// addressed by the same index spaces Translator used.
type Instance struct {
	Module *wasm.Module
	Code   *CodeMap

	Funcs    []*FuncInstance
	Memories []*MemoryInstance
	Tables   []*TableInstance
	Globals  []*GlobalInstance

	elems [][]elemSegment // unused; elemSegments below is the real store
	data  []dataSegment

	elemSegments []elemSegment
}

// Instantiate resolves m's imports via resolver, allocates its
// module-defined memories/tables/globals, evaluates global initializers
// and active element/data segments, and wires module-defined functions to
// their compiled code in code.
func Instantiate(m *wasm.Module, code *CodeMap, resolver Resolver) (*Instance, error) {
	inst := &Instance{Module: m, Code: code}

	for _, imp := range m.Imports {
		switch imp.Desc.Kind {
		case wasm.KindFunc:
			sig := &m.Types[imp.Desc.TypeIdx]
			host, err := resolver.ResolveFunc(imp.Module, imp.Name, sig)
			if err != nil {
				return nil, importError(imp, err)
			}
			inst.Funcs = append(inst.Funcs, &FuncInstance{Sig: sig, Host: host})
		case wasm.KindMemory:
			mem, err := resolver.ResolveMemory(imp.Module, imp.Name, *imp.Desc.Memory)
			if err != nil {
				return nil, importError(imp, err)
			}
			inst.Memories = append(inst.Memories, mem)
		case wasm.KindTable:
			tbl, err := resolver.ResolveTable(imp.Module, imp.Name, *imp.Desc.Table)
			if err != nil {
				return nil, importError(imp, err)
			}
			inst.Tables = append(inst.Tables, tbl)
		case wasm.KindGlobal:
			g, err := resolver.ResolveGlobal(imp.Module, imp.Name, *imp.Desc.Global)
			if err != nil {
				return nil, importError(imp, err)
			}
			inst.Globals = append(inst.Globals, g)
		}
	}

	for _, mt := range m.Memories {
		maxPages := mt.Limits.Max
		var max uint64 = wasm.MemoryMaxPages32
		if maxPages != nil {
			max = *maxPages
		}
		inst.Memories = append(inst.Memories, &MemoryInstance{
			Data:     make([]byte, mt.Limits.Min*wasmPageSize),
			MaxPages: max,
		})
	}

	for _, tt := range m.Tables {
		max := tt.Limits.Min
		if tt.Limits.Max != nil {
			max = *tt.Limits.Max
		}
		elems := make([]int64, tt.Limits.Min)
		for i := range elems {
			elems[i] = -1
		}
		inst.Tables = append(inst.Tables, &TableInstance{Elems: elems, MaxLen: max})
	}

	for _, g := range m.Globals {
		v, err := evalConstExpr(g.Init, inst.Globals)
		if err != nil {
			return nil, err
		}
		inst.Globals = append(inst.Globals, &GlobalInstance{
			Value:   v,
			Mutable: g.Type.Mutable,
			ValType: g.Type.ValType,
		})
	}

	nImportedFuncs := len(inst.Funcs)
	for i, typeIdx := range m.Funcs {
		inst.Funcs = append(inst.Funcs, &FuncInstance{
			Sig:  &m.Types[typeIdx],
			Code: code.Get(i),
		})
	}
	_ = nImportedFuncs

	inst.elemSegments = make([]elemSegment, len(m.Elements))
	for i, el := range m.Elements {
		funcs := elementFuncs(el)
		inst.elemSegments[i] = elemSegment{funcs: funcs}

		active := el.Flags == 0 || el.Flags == 2 || el.Flags == 4 || el.Flags == 6
		if !active {
			continue
		}
		off, err := evalConstExpr(el.Offset, inst.Globals)
		if err != nil {
			return nil, err
		}
		tbl := inst.Tables[el.TableIdx]
		if int(off)+len(funcs) > len(tbl.Elems) {
			return nil, errors.New(errors.PhaseLoad, errors.KindOutOfBounds).
				Detail("element segment %d: offset %d+%d exceeds table %d length %d", i, off, len(funcs), el.TableIdx, len(tbl.Elems)).Build()
		}
		copy(tbl.Elems[off:], funcs)
		inst.elemSegments[i].dropped = true // active segments are "dropped" immediately: table.init can't target them
	}

	dataSegs := make([]dataSegment, len(m.Data))
	for i, d := range m.Data {
		dataSegs[i] = dataSegment{bytes: d.Init}
		if d.Flags != 0 && d.Flags != 2 {
			continue // passive: stays available for memory.init
		}
		off, err := evalConstExpr(d.Offset, inst.Globals)
		if err != nil {
			return nil, err
		}
		mem := inst.Memories[d.MemIdx]
		if int(off)+len(d.Init) > len(mem.Data) {
			return nil, errors.New(errors.PhaseLoad, errors.KindOutOfBounds).
				Detail("data segment %d: offset %d+%d exceeds memory %d length %d", i, off, len(d.Init), d.MemIdx, len(mem.Data)).Build()
		}
		copy(mem.Data[off:], d.Init)
		dataSegs[i].dropped = true
	}
	inst.data = dataSegs

	return inst, nil
}

func importError(imp wasm.Import, cause error) error {
	return errors.New(errors.PhaseLinking, errors.KindMissingImport).
		Detail("import %s.%s: %v", imp.Module, imp.Name, cause).Build()
}

// elementFuncs extracts an element segment's function-index list; the
// expr-form (Flags 4/5/6/7) carries single-instruction ref.func/ref.null
// exprs instead of raw indices, which are decoded into the same -1-for-null
// convention table.Elems uses.
func elementFuncs(el wasm.Element) []int64 {
	if len(el.Exprs) > 0 {
		out := make([]int64, len(el.Exprs))
		for i, expr := range el.Exprs {
			v, err := evalConstExpr(expr, nil)
			if err != nil {
				out[i] = -1
				continue
			}
			out[i] = int64(v)
		}
		return out
	}
	out := make([]int64, len(el.FuncIdxs))
	for i, idx := range el.FuncIdxs {
		out[i] = int64(idx)
	}
	return out
}

// evalConstExpr evaluates a constant expression (a global initializer or a
// segment's offset expr): one constant, global.get of an already-resolved
// (necessarily imported) global, ref.null, or ref.func, per Wasm's
// restriction that const exprs may only reference state available before
// the module's own globals finish initializing.
func evalConstExpr(raw []byte, globals []*GlobalInstance) (uint64, error) {
	instrs, err := wasm.DecodeInstructions(raw)
	if err != nil {
		return 0, errors.New(errors.PhaseLoad, errors.KindInvalidData).
			Detail("malformed constant expression: %v", err).Build()
	}
	for _, ins := range instrs {
		switch ins.Opcode {
		case wasm.OpI32Const:
			return uint64(uint32(ins.Imm.(wasm.I32Imm).Value)), nil
		case wasm.OpI64Const:
			return uint64(ins.Imm.(wasm.I64Imm).Value), nil
		case wasm.OpF32Const:
			return uint64(math.Float32bits(ins.Imm.(wasm.F32Imm).Value)), nil
		case wasm.OpF64Const:
			return math.Float64bits(ins.Imm.(wasm.F64Imm).Value), nil
		case wasm.OpGlobalGet:
			idx := ins.Imm.(wasm.GlobalImm).GlobalIdx
			if int(idx) >= len(globals) {
				return 0, errors.New(errors.PhaseLoad, errors.KindOutOfBounds).
					Detail("constant expression references global %d, only %d resolved so far", idx, len(globals)).Build()
			}
			return globals[idx].Value, nil
		case wasm.OpRefNull:
			return math.MaxUint64, nil
		case wasm.OpRefFunc:
			return uint64(ins.Imm.(wasm.RefFuncImm).FuncIdx), nil
		case wasm.OpEnd:
			continue
		default:
			return 0, errors.New(errors.PhaseLoad, errors.KindUnsupported).
				Detail("unsupported constant expression opcode 0x%02x", ins.Opcode).Build()
		}
	}
	return 0, errors.New(errors.PhaseLoad, errors.KindInvalidData).
		Detail("constant expression produced no value").Build()
}
