// Package elfx loads code bytes from ARM and AArch64 ELF images.
package elfx

import (
	"debug/elf"
	"errors"
	"fmt"
	"io"
	"os"
)

var (
	ErrNotELF       = errors.New("elfx: not an ELF file")
	ErrNotARM       = errors.New("elfx: not ARM (EM_ARM or EM_AARCH64)")
	ErrClass        = errors.New("elfx: ELF class does not match machine")
	ErrNoSymbol     = errors.New("elfx: symbol not found")
	ErrNoSegment    = errors.New("elfx: no PT_LOAD segment covers address")
	ErrSymbolNoSize = errors.New("elfx: symbol has zero size")
	ErrThumb        = errors.New("elfx: symbol is Thumb code")
)

// File wraps a debug/elf.File with the lookups the lifter needs.
type File struct {
	ELF  *elf.File
	raw  io.ReaderAt
	size int64
}

// Symbol is a function symbol. Thumb is set for EM_ARM symbols whose value
// has bit 0 set; Addr has that bit cleared.
type Symbol struct {
	Name  string
	Addr  uint64
	Size  uint64
	Thumb bool
}

// Open opens an ELF file and validates it is 32-bit ARM or 64-bit AArch64.
func Open(path string) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("elfx: open: %w", err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("elfx: stat: %w", err)
	}

	ef, err := elf.NewFile(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("%w: %v", ErrNotELF, err)
	}

	switch {
	case ef.Machine == elf.EM_AARCH64 && ef.Class == elf.ELFCLASS64:
	case ef.Machine == elf.EM_ARM && ef.Class == elf.ELFCLASS32:
	case ef.Machine == elf.EM_AARCH64 || ef.Machine == elf.EM_ARM:
		ef.Close()
		return nil, fmt.Errorf("%w: %v %v", ErrClass, ef.Machine, ef.Class)
	default:
		ef.Close()
		return nil, fmt.Errorf("%w: %v", ErrNotARM, ef.Machine)
	}

	return &File{ELF: ef, raw: f, size: info.Size()}, nil
}

// Close releases resources.
func (f *File) Close() error {
	return f.ELF.Close()
}

// FileSize returns the size of the underlying file.
func (f *File) FileSize() int64 { return f.size }

// Arch returns the architecture name for the image: "a64" or "a32".
func (f *File) Arch() string {
	if f.ELF.Machine == elf.EM_AARCH64 {
		return "a64"
	}
	return "a32"
}

// Symbol looks up a symbol by exact name, first in .symtab, then in the
// dynamic symbol table.
func (f *File) Symbol(name string) (Symbol, error) {
	for _, load := range []func() ([]elf.Symbol, error){f.ELF.Symbols, f.ELF.DynamicSymbols} {
		syms, err := load()
		if err != nil {
			if errors.Is(err, elf.ErrNoSymbols) {
				continue
			}
			return Symbol{}, fmt.Errorf("elfx: symbols: %w", err)
		}
		for _, s := range syms {
			if s.Name != name || s.Section == elf.SHN_UNDEF {
				continue
			}
			sym := Symbol{Name: s.Name, Addr: s.Value, Size: s.Size}
			if f.ELF.Machine == elf.EM_ARM && elf.ST_TYPE(s.Info) == elf.STT_FUNC && s.Value&1 != 0 {
				sym.Addr &^= 1
				sym.Thumb = true
			}
			return sym, nil
		}
	}
	return Symbol{}, fmt.Errorf("%w: %s", ErrNoSymbol, name)
}

// Code returns the bytes of a function symbol.
func (f *File) Code(sym Symbol) ([]byte, error) {
	if sym.Thumb {
		return nil, fmt.Errorf("%w: %s", ErrThumb, sym.Name)
	}
	if sym.Size == 0 {
		return nil, fmt.Errorf("%w: %s", ErrSymbolNoSize, sym.Name)
	}
	return f.ReadBytesAtVA(sym.Addr, int(sym.Size))
}

// VAToFileOffset converts a virtual address to a file offset using PT_LOAD segments.
func (f *File) VAToFileOffset(va uint64) (uint64, error) {
	p := f.segment(va)
	if p == nil {
		return 0, fmt.Errorf("%w: VA 0x%x", ErrNoSegment, va)
	}
	offset := va - p.Vaddr + p.Off
	if offset >= uint64(f.size) {
		return 0, fmt.Errorf("elfx: VA 0x%x maps to offset 0x%x beyond file size 0x%x", va, offset, f.size)
	}
	return offset, nil
}

// ReadBytesAtVA reads n bytes starting at the given virtual address.
func (f *File) ReadBytesAtVA(va uint64, n int) ([]byte, error) {
	off, err := f.VAToFileOffset(va)
	if err != nil {
		return nil, err
	}
	// Clamp to file size.
	avail := f.size - int64(off)
	if int64(n) > avail {
		n = int(avail)
	}
	buf := make([]byte, n)
	_, err = f.raw.ReadAt(buf, int64(off))
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("elfx: read at 0x%x: %w", off, err)
	}
	return buf, nil
}

// Region returns the file-backed bytes of the PT_LOAD segment covering va,
// with the segment's base address.
func (f *File) Region(va uint64) (base uint64, data []byte, err error) {
	p := f.segment(va)
	if p == nil {
		return 0, nil, fmt.Errorf("%w: VA 0x%x", ErrNoSegment, va)
	}
	data = make([]byte, p.Filesz)
	if _, err := p.ReadAt(data, 0); err != nil && !errors.Is(err, io.EOF) {
		return 0, nil, fmt.Errorf("elfx: read segment at 0x%x: %w", p.Vaddr, err)
	}
	return p.Vaddr, data, nil
}

func (f *File) segment(va uint64) *elf.Prog {
	for _, p := range f.ELF.Progs {
		if p.Type != elf.PT_LOAD {
			continue
		}
		if va >= p.Vaddr && va < p.Vaddr+p.Memsz {
			return p
		}
	}
	return nil
}

// SegmentInfo describes a PT_LOAD segment.
type SegmentInfo struct {
	Vaddr  uint64
	Memsz  uint64
	Filesz uint64
	Offset uint64
	Flags  elf.ProgFlag
}

// LoadSegments returns all PT_LOAD segments.
func (f *File) LoadSegments() []SegmentInfo {
	var segs []SegmentInfo
	for _, p := range f.ELF.Progs {
		if p.Type != elf.PT_LOAD {
			continue
		}
		segs = append(segs, SegmentInfo{
			Vaddr:  p.Vaddr,
			Memsz:  p.Memsz,
			Filesz: p.Filesz,
			Offset: p.Off,
			Flags:  p.Flags,
		})
	}
	return segs
}
