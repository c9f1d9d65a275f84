// Package engine holds the register-machine WebAssembly core in
// engine/regmach, plus the ambient logging helper shared by it and the
// runtime package.
//
// # Register machine
//
// engine/regmach translates a validated core module (wasm.Module) into
// a register-based bytecode and runs it with its own dispatch loop,
// instead of the stack-machine interpretation a generic Wasm VM would
// do. See engine/regmach's own doc comment for the translator/executor
// split.
//
// # Thread Safety
//
// A compiled regmach.CodeMap is immutable after Compile and safe for
// concurrent instantiation. A regmach.Instance/Executor pair is NOT
// thread-safe and must be used by a single goroutine at a time.
package engine
