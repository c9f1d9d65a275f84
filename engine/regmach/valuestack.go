package regmach

// stackEntry is one abstract-stack slot. isLocal (with localIdx)
// distinguishes a provider that names a *local* slot (and so must be preserved across
// writes to that local) from one that names a dynamic temporary (which
// never needs preservation, since nothing but the stack itself names it).
type stackEntry struct {
	provider Provider
	isLocal  bool
	localIdx int32
}

// ValueStack is the translator's compile-time abstract stack of
// providers (register-or-constant). It tracks which dynamic registers are
// live so the executor can size each function's register window, and
// which pending entries alias a local so writes to that local can
// preserve them first.
type ValueStack struct {
	entries []stackEntry

	numLocals int
	nextDyn   Register // next register to allocate, LIFO above numLocals
	highWater Register // max dynamic register count ever reached
	maxHeight int       // max abstract stack depth ever reached, diagnostic only

	// polymorphicPad, set by the translator whenever the current control
	// frame is dead (unreachable), makes Pop/PopN/PeekN/Trunc tolerate
	// requests past the real stack height by padding with fresh dynamic
	// registers instead of panicking. Per the Wasm spec, code following a
	// point of no return has a "polymorphic" stack type — any operand
	// count and type is valid there, so the translator must still be able
	// to walk and encode it even though nothing was really pushed.
	polymorphicPad bool

	encoder *Encoder
}

// NewValueStack creates a stack for a function with numLocals local slots
// (parameters + declared locals). Dynamic registers are numbered above them.
func NewValueStack(numLocals int, enc *Encoder) *ValueStack {
	return &ValueStack{
		numLocals: numLocals,
		nextDyn:   Register(numLocals),
		highWater: Register(numLocals),
		encoder:   enc,
	}
}

// Height returns the current abstract stack depth.
func (s *ValueStack) Height() int { return len(s.entries) }

// HighWater returns the maximum number of live dynamic temporaries seen,
// used to size the function's register window.
func (s *ValueStack) HighWater() int { return int(s.highWater) - s.numLocals }

// highWaterRegister returns the highest register index (local or
// dynamic) the function ever addresses, one past the last valid index —
// the size a call frame's register window must have.
func (s *ValueStack) highWaterRegister() Register { return s.highWater }

// PushLocal pushes Provider::Local(i) without allocating a register or
// emitting any instruction.
func (s *ValueStack) PushLocal(i int32) {
	s.entries = append(s.entries, stackEntry{
		provider: RegProvider(Register(i)),
		isLocal:  true,
		localIdx: i,
	})
	s.trackHeight()
}

// pushProvider pushes an already-built Provider (constant or register)
// verbatim, without allocating — used when an algebraic identity decides
// a binary op's result is simply one of its operands.
func (s *ValueStack) pushProvider(p Provider) {
	if p.IsConst() {
		s.PushConst(p.ConstRef())
		return
	}
	s.entries = append(s.entries, stackEntry{provider: p})
	s.trackHeight()
}

// PushConst pushes an already-interned constant.
func (s *ValueStack) PushConst(ref ConstRef) {
	s.entries = append(s.entries, stackEntry{provider: ConstProvider(ref)})
	s.trackHeight()
}

// PushDynamic allocates a fresh temporary register and pushes it.
func (s *ValueStack) PushDynamic() Register {
	r := s.allocDyn()
	s.entries = append(s.entries, stackEntry{provider: RegProvider(r)})
	s.trackHeight()
	return r
}

func (s *ValueStack) trackHeight() {
	if len(s.entries) > s.maxHeight {
		s.maxHeight = len(s.entries)
	}
}

// PushDynamicN allocates an ascending span of n fresh temporaries and
// pushes them in order (span.Head has the lowest index).
func (s *ValueStack) PushDynamicN(n int) RegSpan {
	if n == 0 {
		return RegSpan{}
	}
	head := s.nextDyn
	for i := 0; i < n; i++ {
		s.allocDyn()
	}
	span := RegSpan{Head: head, Len: uint16(n)}
	for i := 0; i < n; i++ {
		s.entries = append(s.entries, stackEntry{provider: RegProvider(span.Get(i))})
	}
	s.trackHeight()
	return span
}

func (s *ValueStack) allocDyn() Register {
	r := s.nextDyn
	s.nextDyn++
	if s.nextDyn > s.highWater {
		s.highWater = s.nextDyn
	}
	return r
}

// AllocScratch allocates a fresh dynamic register without pushing a stack
// entry for it, for EncodeCopies' cycle-breaking scratch callback.
func (s *ValueStack) AllocScratch() Register { return s.allocDyn() }

// ReserveSpan allocates an ascending span of n fresh dynamic registers
// without pushing stack entries, for a control frame's BranchParams or a
// multi-value return's staging span (the registers are written by an
// explicit EncodeCopies, not by pushing).
func (s *ValueStack) ReserveSpan(n int) RegSpan {
	if n == 0 {
		return RegSpan{}
	}
	head := s.nextDyn
	for i := 0; i < n; i++ {
		s.allocDyn()
	}
	return RegSpan{Head: head, Len: uint16(n)}
}

// padTo grows the abstract stack with synthetic dynamic entries, bottom
// first, until it has at least n entries — only while polymorphicPad is
// set, i.e. only in dead code where an arbitrary-looking pop is valid.
func (s *ValueStack) padTo(n int) {
	if !s.polymorphicPad {
		return
	}
	deficit := n - len(s.entries)
	if deficit <= 0 {
		return
	}
	pad := make([]stackEntry, deficit)
	for i := range pad {
		pad[i] = stackEntry{provider: RegProvider(s.allocDyn())}
	}
	s.entries = append(pad, s.entries...)
}

// Pop removes and returns the top provider.
func (s *ValueStack) Pop() Provider {
	s.padTo(1)
	n := len(s.entries) - 1
	e := s.entries[n]
	s.entries = s.entries[:n]
	s.popFreeDyn(e)
	return e.provider
}

// PopPair pops the top two providers (out[0] deeper, out[1] shallower)
// along with whether each aliases a local, for callers that need to
// re-push an operand verbatim via pushLocalOrProvider without losing its
// preserve-on-write marking (e.g. an algebraic identity that resolves to
// one of its own operands).
func (s *ValueStack) PopPair() (a, b Provider, aLocal, bLocal bool, aIdx, bIdx int32) {
	s.padTo(2)
	n := len(s.entries)
	be, ae := s.entries[n-1], s.entries[n-2]
	s.entries = s.entries[:n-2]
	s.popFreeDyn(be)
	s.popFreeDyn(ae)
	return ae.provider, be.provider, ae.isLocal, be.isLocal, ae.localIdx, be.localIdx
}

// pushLocalOrProvider re-pushes a value that was just popped: if isLocal,
// it's pushed back as an aliased local (PushLocal), preserving future
// write-preservation semantics; otherwise it's pushed verbatim.
func (s *ValueStack) pushLocalOrProvider(p Provider, isLocal bool, localIdx int32) {
	if isLocal {
		s.PushLocal(localIdx)
		return
	}
	s.pushProvider(p)
}

// popFreeDyn reclaims a dynamic register's slot in the LIFO allocator
// when the popped entry was the most-recently allocated temporary.
func (s *ValueStack) popFreeDyn(e stackEntry) {
	if e.isLocal || e.provider.IsConst() {
		return
	}
	r := e.provider.Register()
	if r >= Register(s.numLocals) && r == s.nextDyn-1 {
		s.nextDyn--
	}
}

// PopN pops n providers into out (out[0] is the deepest of the n).
func (s *ValueStack) PopN(n int, out []Provider) {
	s.padTo(n)
	for i := n - 1; i >= 0; i-- {
		out[i] = s.Pop()
	}
}

// PeekN fills out with the top n providers without popping (out[0] is the
// deepest of the n).
func (s *ValueStack) PeekN(n int, out []Provider) {
	s.padTo(n)
	base := len(s.entries) - n
	for i := 0; i < n; i++ {
		out[i] = s.entries[base+i].provider
	}
}

// Peek returns the top provider without popping.
func (s *ValueStack) Peek() Provider {
	s.padTo(1)
	return s.entries[len(s.entries)-1].provider
}

// Trunc unwinds the stack to height h, as at a control-frame boundary.
// It does not re-run allocator bookkeeping per entry (control frames only
// truncate at frame exit, where the dynamic allocator is reset wholesale
// by the caller via ResetDynamicTo).
func (s *ValueStack) Trunc(h int) {
	s.padTo(h)
	s.entries = s.entries[:h]
}

// ResetDynamicTo resets the LIFO dynamic-register allocator to r. Used
// together with Trunc when unwinding past a control frame boundary: the
// frame recorded the allocator position at entry, and everything
// allocated since belongs to the frame body being discarded.
func (s *ValueStack) ResetDynamicTo(r Register) {
	s.nextDyn = r
}

// NextDynamic returns the allocator's current position, to be saved by a
// control frame on entry and restored via ResetDynamicTo on an
// unreachable/unwind path.
func (s *ValueStack) NextDynamic() Register { return s.nextDyn }

// PreserveAllLocals materializes every pending local alias currently on
// the stack into a fresh dynamic register. Called on entry to an `if`
// (translator_control.go): once control can jump elsewhere, a stack entry that merely
// names "local i" must not be left dangling across the jump, since the
// branch target's own code may subsequently write to local i.
func (s *ValueStack) PreserveAllLocals() {
	for idx := range s.entries {
		e := &s.entries[idx]
		if !e.isLocal {
			continue
		}
		fresh := s.allocDyn()
		s.encoder.PushInstr(Instr{Op: OpCopy, A: fresh, B: Register(e.localIdx)})
		e.provider = RegProvider(fresh)
		e.isLocal = false
	}
}

// PreserveLocals walks the abstract stack and materializes every pending
// Provider::Local(i) into a fresh dynamic register, emitting a copy
// before the caller's upcoming write to local i. Returns the positions
// that were rewritten so callers may coalesce copies (e.g. a single
// OpCopySpan when consecutive positions preserved the same local).
func (s *ValueStack) PreserveLocals(i int32) []int {
	var touched []int
	for idx := range s.entries {
		e := &s.entries[idx]
		if !e.isLocal || e.localIdx != i {
			continue
		}
		fresh := s.allocDyn()
		s.encoder.PushInstr(Instr{Op: OpCopy, A: fresh, B: Register(i)})
		e.provider = RegProvider(fresh)
		e.isLocal = false
		touched = append(touched, idx)
	}
	return touched
}
