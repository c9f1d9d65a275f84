package regmach

// Label is a handle into a function builder's label table. Each entry is
// either unresolved (with pending fixup sites) or resolved (pinned to a
// position in the instruction buffer).
type Label int32

// InstrPos is a position in an Encoder's instruction buffer.
type InstrPos int32

type labelEntry struct {
	resolved bool
	pos      InstrPos
	// pending holds the constant-pool handles reserved by branches that
	// targeted this label before it was pinned; PinLabel overwrites each
	// with the now-known absolute position.
	pending []ConstRef
}

// LabelTable allocates and resolves labels for one function's encoder.
// Branch destinations are stored as absolute instruction positions in the
// function's constant pool (spec.md 4.6: "all labels have been lowered to
// absolute offsets"), so Instr itself never needs to carry anything wider
// than a register-sized handle regardless of function size.
type LabelTable struct {
	entries []labelEntry
}

// NewLabel allocates a fresh, unresolved label.
func (t *LabelTable) NewLabel() Label {
	t.entries = append(t.entries, labelEntry{})
	return Label(len(t.entries) - 1)
}

// IsResolved reports whether l has been pinned.
func (t *LabelTable) IsResolved(l Label) bool {
	return t.entries[l].resolved
}

// Position returns l's pinned position. Panics if l is unresolved.
func (t *LabelTable) Position(l Label) InstrPos {
	e := t.entries[l]
	if !e.resolved {
		panic("regmach: label referenced before it was pinned")
	}
	return e.pos
}

// addFixup registers that ref must be overwritten with l's absolute
// position once l is pinned.
func (t *LabelTable) addFixup(l Label, ref ConstRef) {
	e := &t.entries[l]
	if e.resolved {
		panic("regmach: addFixup called on an already-resolved label")
	}
	e.pending = append(e.pending, ref)
}

// allResolved is a finalize-time assertion: every label referenced by an
// emitted branch must be resolved before code is frozen.
func (t *LabelTable) allResolved() bool {
	for _, e := range t.entries {
		if !e.resolved {
			return false
		}
	}
	return true
}
