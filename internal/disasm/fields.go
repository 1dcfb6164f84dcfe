package disasm

// Field extracts n bits of raw starting at bit lo.
func Field(raw uint32, lo, n uint) uint32 {
	return (raw >> lo) & (1<<n - 1)
}
