package regmach

import "testing"

// TestEncodeCopySpanOverlapTable exercises spec.md 8's required
// (dst, src, len) cases for EncodeCopySpan: whenever a forward copy would
// read an already-overwritten source register, it must emit OpCopySpanRev
// instead of OpCopySpan.
func TestEncodeCopySpanOverlapTable(t *testing.T) {
	cases := []struct {
		dst, src, length int
		overlaps         bool
	}{
		{0, 0, 0, false},
		{0, 0, 8, false},
		{0, 1, 8, false},
		{1, 0, 1, false},
		{1, 0, 2, true},
		{1, 0, 3, true},
		{2, 0, 3, true},
		{3, 0, 3, false},
		{4, 0, 4, false},
		{4, 1, 4, true},
		{4, 0, 5, true},
	}

	for _, c := range cases {
		enc := NewEncoder(NewConstPool())
		dst := RegSpan{Head: Register(c.dst), Len: uint16(c.length)}
		src := RegSpan{Head: Register(c.src), Len: uint16(c.length)}
		enc.EncodeCopySpan(dst, src)

		instrs := enc.Instrs()
		switch {
		case c.length == 0:
			if len(instrs) != 0 {
				t.Errorf("dst=%d src=%d len=%d: expected no instructions, got %v", c.dst, c.src, c.length, instrs)
			}
		case c.dst == c.src:
			if len(instrs) != 0 {
				t.Errorf("dst=%d src=%d len=%d: dst==src must emit nothing, got %v", c.dst, c.src, c.length, instrs)
			}
		case c.length == 1:
			if len(instrs) != 1 || instrs[0].Op != OpCopy {
				t.Errorf("dst=%d src=%d len=1: expected a single OpCopy, got %v", c.dst, c.src, instrs)
			}
		default:
			if len(instrs) != 1 {
				t.Fatalf("dst=%d src=%d len=%d: expected exactly one span instruction, got %v", c.dst, c.src, c.length, instrs)
			}
			wantOp := OpCopySpan
			if c.overlaps {
				wantOp = OpCopySpanRev
			}
			if instrs[0].Op != wantOp {
				t.Errorf("dst=%d src=%d len=%d: op = %v, want %v (overlaps=%v)", c.dst, c.src, c.length, instrs[0].Op, wantOp, c.overlaps)
			}
		}
	}
}
