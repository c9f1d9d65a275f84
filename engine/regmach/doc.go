// Package regmach implements a register-based Wasm execution core: a
// single-pass translator that lowers validated Wasm operators (as decoded
// by package wasm) into a compact register-machine bytecode, and a
// dispatch loop that executes that bytecode against a native call stack
// of frames with per-frame register windows.
//
// # Architecture
//
// Two phases, leaf to root:
//
//	Translator   - consumes []wasm.Instruction for one function, emits
//	               Instr via an Encoder, tracking abstract stack state
//	               (ValueStack) and control flow (ControlStack).
//	Executor     - runs a CodeMap of CompiledFunction against a register
//	               arena shared across frames (frameStack).
//
// Instantiate (resolver.go) builds a minimal Instance for a compiled
// module, resolving its imports through a Resolver; there is no separate
// Store.
//
// # Relationship to the rest of the module
//
// regmach is the only execution engine: runtime.Runtime compiles and
// instantiates every core module through it, and cmd/regmach-run drives
// it directly.
package regmach
