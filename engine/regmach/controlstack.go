package regmach

import "github.com/wippyai/wasm-runtime/wasm"

// FrameKind discriminates the tagged variants of ControlFrame.
type FrameKind uint8

const (
	FrameBlock FrameKind = iota
	FrameLoop
	FrameIf
)

// IfReachability tracks which arms of an `if` have been visited and are
// (or were) reachable, per spec.md 4.5's `end` reconciliation rules.
type IfReachability uint8

const (
	IfOnlyThen IfReachability = iota // no `else` seen yet; only `then` exists
	IfOnlyElse                       // `else` seen, `then` never reachable at its end
	IfBoth                           // both arms reachable at some point
)

// ControlFrame is one entry of the ControlStack: a tagged union over
// Block/Loop/If with the fields each needs; unreachable code is marked
// by the Dead flag rather than a separate kind.
type ControlFrame struct {
	Kind FrameKind

	// Common to Block/Loop/If.
	Params  []wasm.ValType
	Results []wasm.ValType

	// StackHeight is the abstract ValueStack height at frame entry (after
	// popping Params off the enclosing frame, before the body runs).
	StackHeight int
	// DynamicBase is the ValueStack allocator position at frame entry,
	// restored on an unreachable/unwind path.
	DynamicBase Register

	// FuelInstr is the position of the nearest enclosing ConsumeFuel
	// instruction, inherited by fall-through branches into this frame.
	FuelInstr InstrPos
	HasFuel   bool

	// BranchParams is the register span operands must be copied into
	// before a branch targets this frame (its Loop header or its end).
	BranchParams RegSpan

	// EndLabel is resolved at `end`. Loop additionally pins HeaderLabel
	// immediately, at frame entry.
	EndLabel    Label
	HeaderLabel Label // Loop only

	// If-only state.
	IfReach       IfReachability
	ElseLabel     Label
	ElseVisited   bool
	ThenReachable bool // whether control fell through to the end of `then`
	// ElseForcedDead is true when the if's condition folded to a nonzero
	// constant: the then-arm runs unconditionally, so the else-arm (if
	// any) can never execute regardless of what's reachable around the
	// if itself.
	ElseForcedDead bool

	// Dead is true once translation has passed a point in this frame's
	// straight-line body that can never execute (past an unreachable, an
	// unconditional br/br_table, or a return). InheritedDead freezes
	// whether the frame was itself entered from already-dead code; `else`
	// resets Dead to InheritedDead; whatever is dead for the then-arm
	// doesn't carry over to the else-arm unless the if itself was dead.
	// While Dead, the ValueStack tolerates popping past its real height
	// (spec.md's validated input allows arbitrary stack-polymorphic code
	// after a point of no return; the translator still walks and encodes
	// it, it just never runs).
	Dead          bool
	InheritedDead bool

	// BranchCount counts outgoing branches observed that target this
	// frame; a zero count at `end` means the frame's body never branched
	// out, enabling straight-line-code optimizations.
	BranchCount int
}

// BranchDestination returns the label a branch to this frame resolves
// to: the loop header for Loop, the end label otherwise.
func (f *ControlFrame) BranchDestination() Label {
	if f.Kind == FrameLoop {
		return f.HeaderLabel
	}
	return f.EndLabel
}

// ControlStack is the LIFO stack of control frames maintained during
// translation of one function body.
type ControlStack struct {
	frames []ControlFrame
	// elseProviders is a side stack preserving the provider sequence
	// present at `if` entry, so `else` can restore the same parameter
	// set its sibling `then` branch saw.
	elseProviders [][]Provider
}

// Len returns the number of open frames (the function itself is depth
// equal to Len(), per AcquireTarget's Return case).
func (c *ControlStack) Len() int { return len(c.frames) }

// PushFrame pushes f onto the stack.
func (c *ControlStack) PushFrame(f ControlFrame) {
	c.frames = append(c.frames, f)
}

// PopFrame pops and returns the top frame. Panics on an empty stack: a
// mismatched end() is a translator bug, not a recoverable error.
func (c *ControlStack) PopFrame() ControlFrame {
	n := len(c.frames) - 1
	f := c.frames[n]
	c.frames = c.frames[:n]
	return f
}

// Last returns a pointer to the top frame.
func (c *ControlStack) Last() *ControlFrame {
	return &c.frames[len(c.frames)-1]
}

// At returns a pointer to the frame depth levels from the top (0 = Last()).
func (c *ControlStack) At(depth int) *ControlFrame {
	return &c.frames[len(c.frames)-1-depth]
}

// AcquiredTarget is the result of resolving a branch depth: either the
// function itself (Return) or a frame to branch into.
type AcquiredTarget struct {
	IsReturn bool
	Frame    *ControlFrame
}

// AcquireTarget resolves branch depth into either Return (depth equals
// the control-stack length, i.e. the function itself) or a frame,
// counting the branch against that frame.
func (c *ControlStack) AcquireTarget(depth int) AcquiredTarget {
	if depth == len(c.frames) {
		return AcquiredTarget{IsReturn: true}
	}
	f := c.At(depth)
	f.BranchCount++
	return AcquiredTarget{Frame: f}
}

// PushElseProviders saves providers for a later PopElseProviders at the
// matching `else`.
func (c *ControlStack) PushElseProviders(providers []Provider) {
	saved := make([]Provider, len(providers))
	copy(saved, providers)
	c.elseProviders = append(c.elseProviders, saved)
}

// PopElseProviders restores the provider sequence saved by the matching
// `if`'s PushElseProviders.
func (c *ControlStack) PopElseProviders() []Provider {
	n := len(c.elseProviders) - 1
	p := c.elseProviders[n]
	c.elseProviders = c.elseProviders[:n]
	return p
}
