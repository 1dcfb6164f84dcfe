// Package explore discovers the basic blocks reachable from an entry point by
// following static successors, translating each block once.
package explore

import (
	"context"
	"fmt"
	"io"
	"sort"

	"github.com/charmbracelet/log"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"armlift/internal/lift"
)

// Memory is a contiguous code region.
type Memory struct {
	Base uint64
	Data []byte
}

// Contains reports whether addr lies inside the region.
func (m Memory) Contains(addr uint64) bool {
	return addr >= m.Base && addr-m.Base < uint64(len(m.Data))
}

// From returns the bytes from addr to the end of the region.
func (m Memory) From(addr uint64) []byte {
	if !m.Contains(addr) {
		return nil
	}
	return m.Data[addr-m.Base:]
}

// Options bounds an exploration.
type Options struct {
	// MaxBlocks stops discovery after this many blocks. 0 means 4096.
	MaxBlocks int
	// Workers is the number of blocks translated concurrently. 0 means 4.
	Workers int
	Logger  *log.Logger
}

const (
	defaultMaxBlocks = 4096
	defaultWorkers   = 4
)

func (o Options) maxBlocks() int {
	if o.MaxBlocks > 0 {
		return o.MaxBlocks
	}
	return defaultMaxBlocks
}

func (o Options) workers() int {
	if o.Workers > 0 {
		return o.Workers
	}
	return defaultWorkers
}

// Block is one translated block.
type Block struct {
	Start  uint64
	Result *lift.Result
}

// Exit is a successor the explorer did not follow, or one whose block
// failed to translate. Err is set only for the latter.
type Exit struct {
	From   uint64 // start of the block it leaves
	Succ   lift.Successor
	Reason string
	Err    error
}

// Graph is the outcome of an exploration.
type Graph struct {
	Entry     uint64
	Blocks    []*Block // ascending by Start
	Exits     []Exit
	Truncated bool // MaxBlocks was reached
}

// Block returns the block starting at addr.
func (g *Graph) Block(addr uint64) (*Block, bool) {
	i := sort.Search(len(g.Blocks), func(i int) bool { return g.Blocks[i].Start >= addr })
	if i < len(g.Blocks) && g.Blocks[i].Start == addr {
		return g.Blocks[i], true
	}
	return nil, false
}

// Explore translates blocks breadth-first from entry. Each level of the
// frontier is translated in parallel; discovery order does not affect the
// result. Successors outside mem, dynamic targets and instruction-set
// switches are recorded as exits, as are blocks that fail to translate,
// with reason "error". Only a failure of the entry block or a cancelled
// context fails the exploration.
func Explore(ctx context.Context, tr *lift.Translator, mem Memory, entry uint64, opts Options) (*Graph, error) {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}
	if !mem.Contains(entry) {
		return nil, errors.Errorf("entry %#x outside memory [%#x, %#x)", entry, mem.Base, mem.Base+uint64(len(mem.Data)))
	}

	g := &Graph{Entry: entry}
	seen := map[uint64]bool{entry: true}
	via := map[uint64]Exit{} // first edge that reached each block
	frontier := []uint64{entry}
	limit := opts.maxBlocks()

	for len(frontier) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, errors.WithStack(err)
		}
		if room := limit - len(g.Blocks); len(frontier) > room {
			frontier = frontier[:room]
			g.Truncated = true
		}

		results := make([]*lift.Result, len(frontier))
		failures := make([]error, len(frontier))
		eg, gctx := errgroup.WithContext(ctx)
		eg.SetLimit(opts.workers())
		for i, addr := range frontier {
			eg.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				res, err := tr.TranslateBlock(mem.From(addr), addr)
				if err != nil {
					failures[i] = errors.Wrapf(err, "block %#x", addr)
					return nil
				}
				results[i] = res
				return nil
			})
		}
		if err := eg.Wait(); err != nil {
			return nil, err
		}

		var next []uint64
		for i, addr := range frontier {
			if err := failures[i]; err != nil {
				x, ok := via[addr]
				if !ok {
					return nil, err
				}
				logger.Warn("block failed", "addr", fmt.Sprintf("%#x", addr), "from", fmt.Sprintf("%#x", x.From), "err", err)
				x.Reason, x.Err = "error", err
				g.Exits = append(g.Exits, x)
				continue
			}
			res := results[i]
			g.Blocks = append(g.Blocks, &Block{Start: addr, Result: res})
			logger.Debug("block", "addr", fmt.Sprintf("%#x", addr), "insts", len(res.Entries()), "transfer", res.Successors().Kind())
			for _, s := range res.Successors().All() {
				if reason := unfollowable(mem, s); reason != "" {
					g.Exits = append(g.Exits, Exit{From: addr, Succ: s, Reason: reason})
					continue
				}
				if !seen[s.Address] {
					seen[s.Address] = true
					via[s.Address] = Exit{From: addr, Succ: s}
					next = append(next, s.Address)
				}
			}
		}
		sort.Slice(next, func(i, j int) bool { return next[i] < next[j] })
		frontier = next
		if g.Truncated {
			break
		}
	}

	sort.Slice(g.Blocks, func(i, j int) bool { return g.Blocks[i].Start < g.Blocks[j].Start })
	logger.Info("explored", "entry", fmt.Sprintf("%#x", entry), "blocks", len(g.Blocks), "exits", len(g.Exits), "truncated", g.Truncated)
	return g, nil
}

func unfollowable(mem Memory, s lift.Successor) string {
	switch {
	case !s.Static():
		return "dynamic"
	case s.Mode != lift.ModeSame:
		return "mode " + s.Mode.String()
	case !mem.Contains(s.Address):
		return "outside"
	}
	return ""
}
