// Package runtime provides the high-level API for running core
// WebAssembly modules through the register-machine engine
// (engine/regmach).
//
// # Quick Start
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
// LoadWASM parses, validates, and translates the module eagerly, so
// Instantiate never re-parses: it resolves imports and builds a fresh
// regmach.Instance (engine/regmach.Instantiate) plus an executor with its
// own register arena and frame stack.
//
// # Host Functions
//
// Register a Go function under a module/name pair matching the core
// module's own import declaration:
//
//	rt.RegisterFunc("env", "double", func(n int32) int32 { return n * 2 })
//
// Handlers are positional: each Go parameter/result maps to the
// callee's declared i32/i64/f32/f64 value type, coerced through
// anyToWord/wordToAny in backend.go. A handler may also be written
// directly against the low-level shape, func([]uint64) ([]uint64, error),
// to skip the reflection step.
//
// # Limits
//
// Config.Limits bounds the translator and executor (register count,
// instruction buffer size, fuel). The zero value is replaced by
// regmach.DefaultLimits().
//
// # Thread Safety
//
// Runtime and Module are safe for concurrent use; Module.Instantiate
// may be called from multiple goroutines. Instance is NOT thread-safe -
// each goroutine needs its own Instance.
package runtime
