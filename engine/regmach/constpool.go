package regmach

import "math"

// ConstRef is a handle into a function's constant pool, returned by
// ConstPool.Intern and resolved back to a value by ConstPool.Value.
type ConstRef int16

// ConstPool is a deduplicating store of function-local constants,
// addressable by a small handle. Values are untyped 64-bit words; the
// translator interprets them per the Wasm value type that produced them
// (bit patterns of i32/f32 are zero-extended, f64/i64 stored as-is).
//
// Deduplication is mandatory: interning the same 64-bit pattern twice
// yields the same handle.
type ConstPool struct {
	values []uint64
	lookup map[uint64]ConstRef
}

// NewConstPool creates an empty constant pool.
func NewConstPool() *ConstPool {
	return &ConstPool{lookup: make(map[uint64]ConstRef)}
}

// Intern deduplicates v into the pool and returns its handle.
func (p *ConstPool) Intern(v uint64) ConstRef {
	if ref, ok := p.lookup[v]; ok {
		return ref
	}
	ref := ConstRef(len(p.values))
	p.values = append(p.values, v)
	p.lookup[v] = ref
	return ref
}

// InternI32 interns the bit pattern of a signed 32-bit constant.
func (p *ConstPool) InternI32(v int32) ConstRef { return p.Intern(uint64(uint32(v))) }

// InternI64 interns a signed 64-bit constant.
func (p *ConstPool) InternI64(v int64) ConstRef { return p.Intern(uint64(v)) }

// InternF32 interns the bit pattern of a 32-bit float constant.
func (p *ConstPool) InternF32(v float32) ConstRef { return p.Intern(uint64(math.Float32bits(v))) }

// InternF64 interns the bit pattern of a 64-bit float constant.
func (p *ConstPool) InternF64(v float64) ConstRef { return p.Intern(math.Float64bits(v)) }

// Value returns the raw 64-bit word for ref. Looking up a handle that was
// never interned is a translator bug, not a runtime error.
func (p *ConstPool) Value(ref ConstRef) uint64 {
	if int(ref) < 0 || int(ref) >= len(p.values) {
		panic("regmach: constant pool handle out of range")
	}
	return p.values[ref]
}

// Len returns the number of distinct constants interned so far.
func (p *ConstPool) Len() int { return len(p.values) }

// ReserveMutable allocates a constant-pool slot that is never subject to
// dedup: used for branch destinations, whose value (an absolute
// instruction position) isn't known until the target label is pinned.
// Two reserved slots are never merged even if later given equal values.
func (p *ConstPool) ReserveMutable() ConstRef {
	ref := ConstRef(len(p.values))
	p.values = append(p.values, 0)
	return ref
}

// SetValue overwrites a previously reserved slot. Only valid for handles
// returned by ReserveMutable; mutating an interned, deduplicated constant
// would silently corrupt every other provider sharing that handle.
func (p *ConstPool) SetValue(ref ConstRef, v uint64) {
	p.values[ref] = v
}

// Freeze returns a copy of the pool's values, sized to len. Compiled
// functions hold this copy, so later changes to the pool do not reach it.
func (p *ConstPool) Freeze() []uint64 {
	out := make([]uint64, len(p.values))
	copy(out, p.values)
	return out
}
