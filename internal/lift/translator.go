// Package lift translates a byte range of one architecture into IL, one
// basic block at a time.
package lift

import (
	"errors"
	"fmt"
	"io"

	"github.com/charmbracelet/log"

	"armlift/internal/disasm"
)

// ResolveFunc classifies the control transfer of a lifted instruction. An
// empty Successors means the block continues after inst.
type ResolveFunc func(inst disasm.Inst) (Successors, error)

// Options configures a Translator.
type Options struct {
	// MaxBytes ends a block with a fallthrough once this many bytes have been
	// lifted. 0 means unlimited.
	MaxBytes int
	// Logger receives debug traces. nil discards.
	Logger *log.Logger
}

// Translator lifts basic blocks for one architecture. It holds no per-block
// state and is safe for concurrent use when its decoder is.
type Translator struct {
	dec      disasm.Decoder
	lib      *Library
	resolve  ResolveFunc
	maxBytes int
	log      *log.Logger
}

// New returns a translator over the given decoder, semantics and resolver.
func New(dec disasm.Decoder, lib *Library, resolve ResolveFunc, opts Options) *Translator {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Translator{
		dec:      dec,
		lib:      lib,
		resolve:  resolve,
		maxBytes: opts.MaxBytes,
		log:      logger,
	}
}

// Library returns the translator's semantics library.
func (t *Translator) Library() *Library { return t.lib }

// TranslateBlock lifts instructions from data, which starts at addr, until
// one terminates the block or data runs out. Running out of data ends the
// block with a fallthrough at the next unread address. Decode, semantics and
// resolution failures abort without a partial result.
func (t *Translator) TranslateBlock(data []byte, addr uint64) (*Result, error) {
	res := &Result{start: addr}
	offset := 0
	for {
		cur := addr + uint64(offset)
		if t.maxBytes > 0 && offset >= t.maxBytes {
			t.log.Debug("byte budget reached", "addr", fmt.Sprintf("%#x", cur), "max", t.maxBytes)
			res.succs = Fallthrough(cur)
			return res, nil
		}

		inst, err := t.dec.Decode(data[offset:], cur)
		if errors.Is(err, io.EOF) {
			t.log.Debug("end of data", "addr", fmt.Sprintf("%#x", cur))
			res.succs = Fallthrough(cur)
			return res, nil
		}
		if err != nil {
			return nil, &DecodeError{Addr: cur, Err: err}
		}
		if inst.Size < 1 {
			return nil, &DecodeError{Addr: cur, Err: fmt.Errorf("instruction size %d", inst.Size)}
		}

		g, err := t.lib.Lift(inst)
		if err != nil {
			return nil, err
		}
		res.entries = append(res.entries, Entry{Address: cur, Inst: inst, Graph: g})
		res.length += uint64(inst.Size)
		t.log.Debug("lifted", "addr", fmt.Sprintf("%#x", cur), "inst", inst.Text, "ops", g.Operations())

		succs, err := t.resolve(inst)
		if err != nil {
			return nil, err
		}
		if succs.Terminates() {
			t.log.Debug("block end", "addr", fmt.Sprintf("%#x", cur), "transfer", succs.Kind(), "succs", succs.Len())
			res.succs = succs
			return res, nil
		}
		offset += inst.Size
	}
}
