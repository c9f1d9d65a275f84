package regmach

import "fmt"

// Register is a 16-bit signed index into a function's register file.
// Non-negative values address local slots and dynamic temporaries.
// Negative values address the per-function constant pool: register r
// with r < 0 denotes constant-pool handle ^r (bitwise complement), so
// that register 0 stays a valid local and every negative value maps to
// a distinct non-negative handle.
type Register int16

// IsConst reports whether r addresses the constant pool rather than a
// local/temporary slot.
func (r Register) IsConst() bool { return r < 0 }

// ConstHandle returns the constant-pool handle r addresses. Panics if r
// is not a constant register.
func (r Register) ConstHandle() ConstRef {
	if !r.IsConst() {
		panic(fmt.Sprintf("regmach: %v is not a constant register", r))
	}
	return ConstRef(^r)
}

// constReg builds the register that addresses constant-pool handle h.
func constReg(h ConstRef) Register {
	return ^Register(h)
}

func (r Register) String() string {
	if r.IsConst() {
		return fmt.Sprintf("c%d", r.ConstHandle())
	}
	return fmt.Sprintf("r%d", int16(r))
}

// RegSpan is a contiguous, ascending run of registers, identified by its
// head register plus a length. Used for branch parameters, call argument
// lists, and return value spans.
type RegSpan struct {
	Head Register
	Len  uint16
}

// Get returns the i-th register in the span.
func (s RegSpan) Get(i int) Register {
	if i < 0 || i >= int(s.Len) {
		panic("regmach: RegSpan index out of range")
	}
	return s.Head + Register(i)
}

// Empty reports whether the span has zero length.
func (s RegSpan) Empty() bool { return s.Len == 0 }

func (s RegSpan) String() string {
	if s.Len == 0 {
		return "[]"
	}
	return fmt.Sprintf("[%v..%v)", s.Head, s.Head+Register(s.Len))
}

// Provider is a register or an interned constant, as it appears on the
// translator's abstract value stack. The zero value is not meaningful;
// use RegProvider/ConstProvider.
type Provider struct {
	reg      Register
	isConst  bool
	constRef ConstRef
}

// RegProvider wraps a register (local or dynamic) as a Provider.
func RegProvider(r Register) Provider {
	return Provider{reg: r}
}

// ConstProvider wraps an already-interned constant handle as a Provider.
func ConstProvider(ref ConstRef) Provider {
	return Provider{isConst: true, constRef: ref}
}

// IsConst reports whether the provider is a constant rather than a register.
func (p Provider) IsConst() bool { return p.isConst }

// Register returns the underlying register. Panics if the provider is a
// constant; callers must check IsConst or use AsRegister via the value
// stack, which allocates a register for constants on demand.
func (p Provider) Register() Register {
	if p.isConst {
		panic("regmach: Provider is a constant, not a register")
	}
	return p.reg
}

// ConstRef returns the underlying constant handle. Panics if the provider
// is a register.
func (p Provider) ConstRef() ConstRef {
	if !p.isConst {
		panic("regmach: Provider is a register, not a constant")
	}
	return p.constRef
}

// AsRegister lowers the provider to the single-slot register-or-constant
// encoding used by emitted instructions: a constant provider becomes a
// negative register addressing its constant-pool handle.
func (p Provider) AsRegister() Register {
	if p.isConst {
		return constReg(p.constRef)
	}
	return p.reg
}

func (p Provider) String() string {
	if p.isConst {
		return fmt.Sprintf("c%d", p.constRef)
	}
	return p.reg.String()
}

// Const16 is a compile-time witness that value v of underlying width W
// fits in a 16-bit immediate, enabling an instruction's imm16 variant.
// Ok is false when v does not fit; Value is only meaningful when Ok is true.
type Const16[T int32 | int64 | uint32 | uint64] struct {
	Value int16
	Ok    bool
}

// NewConst16Signed builds a Const16 for a signed value, treating it as
// fitting when it's in [-32768, 32767].
func NewConst16Signed[T int32 | int64](v T) Const16[T] {
	if v < -32768 || v > 32767 {
		return Const16[T]{}
	}
	return Const16[T]{Value: int16(v), Ok: true}
}

// NewConst16Unsigned builds a Const16 for an unsigned value, treating it
// as fitting when it's <= 65535 (stored as the bit pattern of an int16).
func NewConst16Unsigned[T uint32 | uint64](v T) Const16[T] {
	if v > 65535 {
		return Const16[T]{}
	}
	return Const16[T]{Value: int16(uint16(v)), Ok: true}
}
