package regmach

import "fmt"

// TrapCode enumerates the externally observable Wasm-defined runtime
// errors a running function may raise. A trap aborts the whole execution
// stack and surfaces to the embedder — there is no catch mechanism inside
// Wasm in the supported surface (spec.md 4.6/7).
type TrapCode uint8

const (
	_ TrapCode = iota
	TrapUnreachableCodeReached
	TrapMemoryOutOfBounds
	TrapTableOutOfBounds
	TrapIndirectCallBadSignature
	TrapIndirectCallNull
	TrapIntegerDivideByZero
	TrapIntegerOverflow
	TrapInvalidConversionToInteger
	TrapStackOverflow
	TrapOutOfFuel
)

var trapNames = map[TrapCode]string{
	TrapUnreachableCodeReached:     "unreachable",
	TrapMemoryOutOfBounds:          "memory out of bounds",
	TrapTableOutOfBounds:           "table out of bounds",
	TrapIndirectCallBadSignature:   "indirect call: bad signature",
	TrapIndirectCallNull:           "indirect call: null reference",
	TrapIntegerDivideByZero:        "integer divide by zero",
	TrapIntegerOverflow:            "integer overflow",
	TrapInvalidConversionToInteger: "invalid conversion to integer",
	TrapStackOverflow:              "call stack exhausted",
	TrapOutOfFuel:                  "out of fuel",
}

func (c TrapCode) String() string {
	if s, ok := trapNames[c]; ok {
		return s
	}
	return fmt.Sprintf("trap(%d)", uint8(c))
}

// Trap is returned from Executor.Call when execution raises a Wasm trap.
// It's deliberately not an *errors.Error: a trap is a defined Wasm
// control outcome, not an SDK-internal failure (spec.md 4.7).
type Trap struct {
	Code TrapCode
	// FuncIndex and Offset locate where the trap fired, for diagnostics.
	FuncIndex uint32
	Offset    int
}

func (t *Trap) Error() string {
	return fmt.Sprintf("trap: %s (func %d, offset %d)", t.Code, t.FuncIndex, t.Offset)
}
