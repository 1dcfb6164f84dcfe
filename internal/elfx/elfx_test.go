package elfx

import (
	"bytes"
	"debug/elf"
	"encoding/binary"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

type testSym struct {
	name  string
	value uint64
	size  uint64
}

const (
	testBase    = 0x400000
	testCodeOff = 0x100
)

// buildELF writes a minimal executable: one PT_LOAD segment mapping the
// whole file at testBase, code at testCodeOff, and a .symtab.
func buildELF(t *testing.T, machine elf.Machine, class elf.Class, code []byte, syms []testSym) string {
	t.Helper()
	is64 := class == elf.ELFCLASS64

	strtab := []byte{0}
	nameOff := make([]uint32, len(syms))
	for i, s := range syms {
		nameOff[i] = uint32(len(strtab))
		strtab = append(append(strtab, s.name...), 0)
	}
	shstrtab := []byte("\x00.text\x00.symtab\x00.strtab\x00.shstrtab\x00")

	var symtab bytes.Buffer
	le := binary.LittleEndian
	info := elf.ST_INFO(elf.STB_GLOBAL, elf.STT_FUNC)
	if is64 {
		binary.Write(&symtab, le, elf.Sym64{})
		for i, s := range syms {
			binary.Write(&symtab, le, elf.Sym64{Name: nameOff[i], Info: info, Shndx: 1, Value: s.value, Size: s.size})
		}
	} else {
		binary.Write(&symtab, le, elf.Sym32{})
		for i, s := range syms {
			binary.Write(&symtab, le, elf.Sym32{Name: nameOff[i], Info: info, Shndx: 1, Value: uint32(s.value), Size: uint32(s.size)})
		}
	}

	// File layout: header, program header, padding, code, symtab, strtab,
	// shstrtab, section headers.
	body := make([]byte, testCodeOff)
	body = append(body, code...)
	symOff := len(body)
	body = append(body, symtab.Bytes()...)
	strOff := len(body)
	body = append(body, strtab...)
	shstrOff := len(body)
	body = append(body, shstrtab...)
	for len(body)%8 != 0 {
		body = append(body, 0)
	}
	shOff := len(body)

	type section struct {
		name, typ       uint32
		flags           uint64
		addr, off, size uint64
		link, info      uint32
		align, entsize  uint64
	}
	symEnt := uint64(16)
	if is64 {
		symEnt = 24
	}
	sections := []section{
		{},
		{name: 1, typ: uint32(elf.SHT_PROGBITS), flags: uint64(elf.SHF_ALLOC | elf.SHF_EXECINSTR),
			addr: testBase + testCodeOff, off: testCodeOff, size: uint64(len(code)), align: 4},
		{name: 7, typ: uint32(elf.SHT_SYMTAB), off: uint64(symOff), size: uint64(symtab.Len()),
			link: 3, info: 1, align: 8, entsize: symEnt},
		{name: 15, typ: uint32(elf.SHT_STRTAB), off: uint64(strOff), size: uint64(len(strtab)), align: 1},
		{name: 23, typ: uint32(elf.SHT_STRTAB), off: uint64(shstrOff), size: uint64(len(shstrtab)), align: 1},
	}

	var out bytes.Buffer
	ident := [elf.EI_NIDENT]byte{0x7f, 'E', 'L', 'F', byte(class), byte(elf.ELFDATA2LSB), byte(elf.EV_CURRENT)}
	var shSize int
	if is64 {
		shSize = 64 * len(sections)
		total := uint64(shOff + shSize)
		binary.Write(&out, le, elf.Header64{
			Ident: ident, Type: uint16(elf.ET_EXEC), Machine: uint16(machine), Version: uint32(elf.EV_CURRENT),
			Entry: testBase + testCodeOff, Phoff: 64, Shoff: uint64(shOff),
			Ehsize: 64, Phentsize: 56, Phnum: 1, Shentsize: 64, Shnum: uint16(len(sections)), Shstrndx: 4,
		})
		binary.Write(&out, le, elf.Prog64{
			Type: uint32(elf.PT_LOAD), Flags: uint32(elf.PF_R | elf.PF_X),
			Vaddr: testBase, Paddr: testBase, Filesz: total, Memsz: total, Align: 0x1000,
		})
	} else {
		shSize = 40 * len(sections)
		total := uint32(shOff + shSize)
		binary.Write(&out, le, elf.Header32{
			Ident: ident, Type: uint16(elf.ET_EXEC), Machine: uint16(machine), Version: uint32(elf.EV_CURRENT),
			Entry: testBase + testCodeOff, Phoff: 52, Shoff: uint32(shOff),
			Ehsize: 52, Phentsize: 32, Phnum: 1, Shentsize: 40, Shnum: uint16(len(sections)), Shstrndx: 4,
		})
		binary.Write(&out, le, elf.Prog32{
			Type: uint32(elf.PT_LOAD), Flags: uint32(elf.PF_R | elf.PF_X),
			Vaddr: testBase, Paddr: testBase, Filesz: total, Memsz: total, Align: 0x1000,
		})
	}
	data := append(out.Bytes(), body[out.Len():]...)

	var sh bytes.Buffer
	for _, s := range sections {
		if is64 {
			binary.Write(&sh, le, elf.Section64{Name: s.name, Type: s.typ, Flags: s.flags, Addr: s.addr,
				Off: s.off, Size: s.size, Link: s.link, Info: s.info, Addralign: s.align, Entsize: s.entsize})
		} else {
			binary.Write(&sh, le, elf.Section32{Name: s.name, Type: s.typ, Flags: uint32(s.flags), Addr: uint32(s.addr),
				Off: uint32(s.off), Size: uint32(s.size), Link: s.link, Info: s.info, Addralign: uint32(s.align), Entsize: uint32(s.entsize)})
		}
	}
	data = append(data, sh.Bytes()...)

	path := filepath.Join(t.TempDir(), "image.elf")
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

// nop; ret
var a64Code = []byte{0x1f, 0x20, 0x03, 0xd5, 0xc0, 0x03, 0x5f, 0xd6}

func openA64(t *testing.T) *File {
	t.Helper()
	path := buildELF(t, elf.EM_AARCH64, elf.ELFCLASS64, a64Code,
		[]testSym{{"main", testBase + testCodeOff, uint64(len(a64Code))}, {"empty", testBase + testCodeOff, 0}})
	ef, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { ef.Close() })
	return ef
}

func TestOpenValid(t *testing.T) {
	ef := openA64(t)
	if ef.FileSize() == 0 {
		t.Error("file size is 0")
	}
	if ef.Arch() != "a64" {
		t.Errorf("arch = %q, want a64", ef.Arch())
	}
}

func TestOpenRejectsNonELF(t *testing.T) {
	tmp := filepath.Join(t.TempDir(), "notelf")
	if err := os.WriteFile(tmp, []byte("not an ELF file at all"), 0644); err != nil {
		t.Fatal(err)
	}
	_, err := Open(tmp)
	if !errors.Is(err, ErrNotELF) {
		t.Fatalf("err = %v, want ErrNotELF", err)
	}
}

func TestOpenRejectsMachine(t *testing.T) {
	path := buildELF(t, elf.EM_X86_64, elf.ELFCLASS64, a64Code, nil)
	if _, err := Open(path); !errors.Is(err, ErrNotARM) {
		t.Fatalf("err = %v, want ErrNotARM", err)
	}
	path = buildELF(t, elf.EM_ARM, elf.ELFCLASS64, a64Code, nil)
	if _, err := Open(path); !errors.Is(err, ErrClass) {
		t.Fatalf("err = %v, want ErrClass", err)
	}
}

func TestSymbolCode(t *testing.T) {
	ef := openA64(t)

	sym, err := ef.Symbol("main")
	if err != nil {
		t.Fatal(err)
	}
	if sym.Addr != testBase+testCodeOff || sym.Size != 8 || sym.Thumb {
		t.Fatalf("sym = %+v", sym)
	}
	code, err := ef.Code(sym)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(code, a64Code) {
		t.Fatalf("code = % x", code)
	}
}

func TestSymbolNotFound(t *testing.T) {
	ef := openA64(t)
	if _, err := ef.Symbol("missing"); !errors.Is(err, ErrNoSymbol) {
		t.Fatalf("err = %v, want ErrNoSymbol", err)
	}
}

func TestSymbolNoSize(t *testing.T) {
	ef := openA64(t)
	sym, err := ef.Symbol("empty")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := ef.Code(sym); !errors.Is(err, ErrSymbolNoSize) {
		t.Fatalf("err = %v, want ErrSymbolNoSize", err)
	}
}

func TestA32Thumb(t *testing.T) {
	// bx lr
	code := []byte{0x1e, 0xff, 0x2f, 0xe1}
	path := buildELF(t, elf.EM_ARM, elf.ELFCLASS32, code, []testSym{
		{"arm_fn", testBase + testCodeOff, 4},
		{"thumb_fn", testBase + testCodeOff + 1, 4},
	})
	ef, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer ef.Close()
	if ef.Arch() != "a32" {
		t.Errorf("arch = %q, want a32", ef.Arch())
	}

	sym, err := ef.Symbol("arm_fn")
	if err != nil {
		t.Fatal(err)
	}
	if got, err := ef.Code(sym); err != nil || !bytes.Equal(got, code) {
		t.Fatalf("code = % x, %v", got, err)
	}

	sym, err = ef.Symbol("thumb_fn")
	if err != nil {
		t.Fatal(err)
	}
	if !sym.Thumb || sym.Addr != testBase+testCodeOff {
		t.Fatalf("sym = %+v", sym)
	}
	if _, err := ef.Code(sym); !errors.Is(err, ErrThumb) {
		t.Fatalf("err = %v, want ErrThumb", err)
	}
}

func TestVAToFileOffset(t *testing.T) {
	ef := openA64(t)
	off, err := ef.VAToFileOffset(testBase + testCodeOff)
	if err != nil {
		t.Fatal(err)
	}
	if off != testCodeOff {
		t.Fatalf("offset = 0x%x, want 0x%x", off, testCodeOff)
	}
	if _, err := ef.VAToFileOffset(0xDEADBEEFDEADBEEF); !errors.Is(err, ErrNoSegment) {
		t.Fatalf("err = %v, want ErrNoSegment", err)
	}
}

func TestRegion(t *testing.T) {
	ef := openA64(t)
	base, data, err := ef.Region(testBase + testCodeOff)
	if err != nil {
		t.Fatal(err)
	}
	if base != testBase {
		t.Fatalf("base = 0x%x", base)
	}
	if int64(len(data)) != ef.FileSize() {
		t.Fatalf("len = %d, want %d", len(data), ef.FileSize())
	}
	if !bytes.Equal(data[testCodeOff:testCodeOff+8], a64Code) {
		t.Fatalf("code = % x", data[testCodeOff:testCodeOff+8])
	}
}

func TestLoadSegments(t *testing.T) {
	segs := openA64(t).LoadSegments()
	if len(segs) != 1 {
		t.Fatalf("got %d PT_LOAD segments", len(segs))
	}
	if segs[0].Vaddr != testBase || segs[0].Flags&elf.PF_X == 0 {
		t.Errorf("segment = %+v", segs[0])
	}
}

func FuzzELFOpen(f *testing.F) {
	// Seed with a valid ELF header prefix and garbage.
	f.Add([]byte("\x7fELF\x02\x01\x01\x00\x00\x00\x00\x00\x00\x00\x00\x00"))
	f.Add([]byte("not an elf at all"))
	f.Add([]byte{})

	f.Fuzz(func(t *testing.T, data []byte) {
		tmp := filepath.Join(t.TempDir(), "fuzz.elf")
		if err := os.WriteFile(tmp, data, 0644); err != nil {
			t.Fatal(err)
		}
		ef, err := Open(tmp)
		if err != nil {
			return // expected
		}
		// If it opens, exercise the API.
		ef.FileSize()
		ef.LoadSegments()
		ef.Symbol("main")
		ef.VAToFileOffset(0)
		ef.Region(0)
		ef.Close()
	})
}
