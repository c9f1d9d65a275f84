// Package wasmruntime provides a Go implementation of a register-machine
// WebAssembly execution engine: a single-pass translator that lowers a
// validated core module's stack-machine operators into a custom
// register-based bytecode, plus the dispatch loop that executes it.
//
// # Architecture Overview
//
// The library is organized into a few packages with distinct
// responsibilities:
//
//	wasmruntime/         Root package with core Memory and Allocator interfaces
//	├── runtime/         High-level API for loading and running core modules
//	├── engine/          Register-machine core (engine/regmach) and its ambient logger
//	├── wasm/            Core WASM binary decode/validate/encode primitives
//	└── errors/          Structured error types for debugging
//
// # Quick Start
//
// Load and run a core module:
//
//	ctx := context.Background()
//	rt, err := runtime.New(ctx)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	mod, err := rt.LoadWASM(ctx, wasmBytes)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	inst, err := mod.Instantiate(ctx)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	result, err := inst.Call(ctx, "add", int32(19), int32(23))
//
// # Register Machine
//
// engine/regmach implements the translator (one handler per Wasm
// operator, emitting fixed-size instructions with on-the-fly constant
// folding, algebraic-identity rewrites, and peephole fusion) and the
// executor (a native call stack of frames, each a contiguous register
// window carved from a shared arena, with fuel metering and trap
// propagation). See engine/regmach's own doc comment for the full
// translator/executor split.
//
// # Host Functions
//
// Register Go functions as host imports under the (module, name) pair
// a core module declares on its import section:
//
//	rt.RegisterFunc("env", "double", func(n int32) int32 { return n * 2 })
//
// # Thread Safety
//
// Runtime and Module are safe for concurrent use. Instance is NOT
// thread-safe and should be used by a single goroutine, or access must
// be synchronized.
//
// # Memory Model
//
// WASM linear memory can only grow, never shrink. This is a WebAssembly
// specification limitation, not an engine one.
package wasmruntime
