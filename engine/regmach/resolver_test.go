package regmach

import (
	"testing"

	"github.com/wippyai/wasm-runtime/wasm"
)

func i32ConstExpr(v int32) []byte {
	return append(i32Const(v), wasm.OpEnd)
}

func TestInstantiateAllocatesModuleMemoryAndGlobals(t *testing.T) {
	m := &wasm.Module{
		Memories: []wasm.MemoryType{{Limits: wasm.Limits{Min: 2}}},
		Globals: []wasm.Global{
			{Type: wasm.GlobalType{ValType: wasm.ValI32, Mutable: true}, Init: i32ConstExpr(7)},
		},
	}

	inst, err := Instantiate(m, NewCodeMap(0), noImportsResolver{})
	if err != nil {
		t.Fatalf("instantiate: %v", err)
	}

	if len(inst.Memories) != 1 {
		t.Fatalf("got %d memories, want 1", len(inst.Memories))
	}
	if got := len(inst.Memories[0].Data); got != 2*wasmPageSize {
		t.Fatalf("memory size = %d bytes, want %d (2 pages)", got, 2*wasmPageSize)
	}

	if len(inst.Globals) != 1 {
		t.Fatalf("got %d globals, want 1", len(inst.Globals))
	}
	if inst.Globals[0].Value != 7 {
		t.Fatalf("global value = %d, want 7", inst.Globals[0].Value)
	}
}

func TestInstantiateResolvesFunctionImportsBeforeModuleFuncs(t *testing.T) {
	sig := wasm.FuncType{Params: []wasm.ValType{wasm.ValI32}, Results: []wasm.ValType{wasm.ValI32}}
	m := &wasm.Module{
		Types: []wasm.FuncType{sig},
		Imports: []wasm.Import{
			{Module: "env", Name: "double", Desc: wasm.ImportDesc{Kind: wasm.KindFunc, TypeIdx: 0}},
		},
		Funcs: []uint32{0},
		Code:  []wasm.FuncBody{{Code: []byte{wasm.OpLocalGet, 0, wasm.OpEnd}}},
	}

	called := false
	resolver := stubResolver{
		funcs: map[string]HostFunc{
			"env.double": func(args []uint64) ([]uint64, error) {
				called = true
				return []uint64{args[0] * 2}, nil
			},
		},
	}

	code, err := Compile(m, DefaultLimits())
	if err != nil {
		t.Fatalf("compile: %v", err)
	}

	inst, err := Instantiate(m, code, resolver)
	if err != nil {
		t.Fatalf("instantiate: %v", err)
	}

	if len(inst.Funcs) != 2 {
		t.Fatalf("got %d functions, want 2 (1 import + 1 module-defined)", len(inst.Funcs))
	}
	if inst.Funcs[0].Host == nil {
		t.Fatal("imported function slot has no Host implementation")
	}
	if inst.Funcs[1].Code == nil {
		t.Fatal("module-defined function slot has no compiled code")
	}

	exec := NewExecutor(inst, DefaultLimits())
	results, err := exec.Call(0, []uint64{21})
	if err != nil {
		t.Fatalf("call imported function: %v", err)
	}
	if !called || results[0] != 42 {
		t.Fatalf("got called=%v results=%v, want called=true results=[42]", called, results)
	}
}

func TestInstantiateMissingImportErrors(t *testing.T) {
	sig := wasm.FuncType{}
	m := &wasm.Module{
		Types: []wasm.FuncType{sig},
		Imports: []wasm.Import{
			{Module: "env", Name: "missing", Desc: wasm.ImportDesc{Kind: wasm.KindFunc, TypeIdx: 0}},
		},
	}

	if _, err := Instantiate(m, NewCodeMap(0), noImportsResolver{}); err == nil {
		t.Fatal("expected an error for an unresolved import")
	}
}

func TestInstantiateActiveElementSegmentFillsTable(t *testing.T) {
	m := &wasm.Module{
		Types: []wasm.FuncType{{}},
		Funcs: []uint32{0, 0},
		Code: []wasm.FuncBody{
			{Code: []byte{wasm.OpEnd}},
			{Code: []byte{wasm.OpEnd}},
		},
		Tables: []wasm.TableType{{Limits: wasm.Limits{Min: 4}}},
		Elements: []wasm.Element{
			{
				Offset:   i32ConstExpr(1),
				FuncIdxs: []uint32{0, 1},
				Flags:    0,
			},
		},
	}

	code, err := Compile(m, DefaultLimits())
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	inst, err := Instantiate(m, code, noImportsResolver{})
	if err != nil {
		t.Fatalf("instantiate: %v", err)
	}

	tbl := inst.Tables[0]
	if tbl.Elems[0] != -1 || tbl.Elems[1] != 0 || tbl.Elems[2] != 1 || tbl.Elems[3] != -1 {
		t.Fatalf("table elems = %v, want [-1 0 1 -1]", tbl.Elems)
	}
}

func TestInstantiateActiveElementOutOfBoundsErrors(t *testing.T) {
	m := &wasm.Module{
		Types: []wasm.FuncType{{}},
		Funcs: []uint32{0},
		Code:  []wasm.FuncBody{{Code: []byte{wasm.OpEnd}}},
		Tables: []wasm.TableType{{Limits: wasm.Limits{Min: 1}}},
		Elements: []wasm.Element{
			{Offset: i32ConstExpr(0), FuncIdxs: []uint32{0, 0}, Flags: 0},
		},
	}

	code, err := Compile(m, DefaultLimits())
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	if _, err := Instantiate(m, code, noImportsResolver{}); err == nil {
		t.Fatal("expected an out-of-bounds error for an oversized active element segment")
	}
}

func TestInstantiateActiveDataSegmentFillsMemory(t *testing.T) {
	m := &wasm.Module{
		Memories: []wasm.MemoryType{{Limits: wasm.Limits{Min: 1}}},
		Data: []wasm.DataSegment{
			{Offset: i32ConstExpr(10), Init: []byte{1, 2, 3}, Flags: 0},
		},
	}

	inst, err := Instantiate(m, NewCodeMap(0), noImportsResolver{})
	if err != nil {
		t.Fatalf("instantiate: %v", err)
	}

	mem := inst.Memories[0]
	if mem.Data[10] != 1 || mem.Data[11] != 2 || mem.Data[12] != 3 {
		t.Fatalf("memory[10:13] = %v, want [1 2 3]", mem.Data[10:13])
	}
}

// stubResolver resolves function imports from a name-keyed table and
// rejects every memory/table/global import; the tests above only exercise
// function imports.
type stubResolver struct {
	funcs map[string]HostFunc
}

func (r stubResolver) ResolveFunc(module, name string, sig *wasm.FuncType) (HostFunc, error) {
	if fn, ok := r.funcs[module+"."+name]; ok {
		return fn, nil
	}
	return nil, errorsNotFound(module, name)
}

func (r stubResolver) ResolveMemory(module, name string, typ wasm.MemoryType) (*MemoryInstance, error) {
	return nil, errorsNotFound(module, name)
}

func (r stubResolver) ResolveTable(module, name string, typ wasm.TableType) (*TableInstance, error) {
	return nil, errorsNotFound(module, name)
}

func (r stubResolver) ResolveGlobal(module, name string, typ wasm.GlobalType) (*GlobalInstance, error) {
	return nil, errorsNotFound(module, name)
}
