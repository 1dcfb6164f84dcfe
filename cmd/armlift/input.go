package main

import (
	"encoding/hex"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"armlift/internal/arch"
	"armlift/internal/elfx"
)

// source selects where code bytes come from: --hex, --file or --elf with --sym.
type source struct {
	hex  string
	file string
	elf  string
	sym  string
	addr string
}

func (s *source) register(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringVar(&s.hex, "hex", "", "code bytes as hex, in memory order")
	f.StringVar(&s.file, "file", "", "raw code file")
	f.StringVar(&s.elf, "elf", "", "ARM or AArch64 ELF image")
	f.StringVar(&s.sym, "sym", "", "function symbol in the --elf image")
	f.StringVar(&s.addr, "addr", "0", "address of the first byte (--hex, --file)")
	cmd.MarkFlagsMutuallyExclusive("hex", "file", "elf")
	cmd.MarkFlagsOneRequired("hex", "file", "elf")
	cmd.MarkFlagsRequiredTogether("elf", "sym")
}

// input is loaded code. Region is the whole segment around the code for ELF
// images, and the code itself otherwise.
type input struct {
	arch       arch.Arch
	name       string
	addr       uint64
	code       []byte
	regionBase uint64
	region     []byte
}

func (a *app) load(s *source) (*input, error) {
	if s.elf != "" {
		return a.loadELF(s)
	}

	addr, err := parseAddr(s.addr)
	if err != nil {
		return nil, err
	}
	var code []byte
	switch {
	case s.hex != "":
		code, err = hex.DecodeString(strings.Join(strings.Fields(s.hex), ""))
		if err != nil {
			return nil, errors.Wrap(err, "decode --hex")
		}
	default:
		code, err = os.ReadFile(s.file)
		if err != nil {
			return nil, errors.Wrap(err, "read --file")
		}
	}

	ar, err := arch.Lookup(a.cfg.Arch)
	if err != nil {
		return nil, err
	}
	return &input{
		arch:       ar,
		name:       fmt.Sprintf("sub_%x", addr),
		addr:       addr,
		code:       code,
		regionBase: addr,
		region:     code,
	}, nil
}

func (a *app) loadELF(s *source) (*input, error) {
	ef, err := elfx.Open(s.elf)
	if err != nil {
		return nil, err
	}
	defer ef.Close()

	name := a.cfg.Arch
	if !a.archSet {
		name = ef.Arch()
	}
	ar, err := arch.Lookup(name)
	if err != nil {
		return nil, err
	}

	sym, err := ef.Symbol(s.sym)
	if err != nil {
		return nil, err
	}
	code, err := ef.Code(sym)
	if err != nil {
		return nil, err
	}
	base, region, err := ef.Region(sym.Addr)
	if err != nil {
		return nil, err
	}
	a.log.Debug("loaded symbol", "name", sym.Name, "addr", fmt.Sprintf("%#x", sym.Addr), "size", sym.Size, "arch", ar.Name)
	return &input{
		arch:       ar,
		name:       sym.Name,
		addr:       sym.Addr,
		code:       code,
		regionBase: base,
		region:     region,
	}, nil
}

func parseAddr(s string) (uint64, error) {
	v, err := strconv.ParseUint(s, 0, 64)
	if err != nil {
		return 0, errors.Wrapf(err, "parse address %q", s)
	}
	return v, nil
}
