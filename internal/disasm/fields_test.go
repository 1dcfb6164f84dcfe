package disasm

import "testing"

func TestField(t *testing.T) {
	// add x0, x1, #1, lsl #12
	raw := uint32(0x91400420)
	if got := Field(raw, 24, 5); got != 0b10001 {
		t.Errorf("class = %#b, want 0b10001", got)
	}
	if got := Field(raw, 10, 12); got != 1 {
		t.Errorf("imm12 = %d, want 1", got)
	}
	if got := Field(raw, 22, 2); got != 1 {
		t.Errorf("sh = %d, want 1", got)
	}
	if got := Field(raw, 0, 5); got != 0 {
		t.Errorf("rd = %d, want 0", got)
	}
	if got := Field(0xffffffff, 31, 1); got != 1 {
		t.Errorf("top bit = %d, want 1", got)
	}
}
