package lift_test

import (
	"encoding/binary"
	"errors"
	"fmt"
	"testing"

	"github.com/kr/pretty"
	"github.com/stretchr/testify/require"

	"armlift/internal/arch"
	"armlift/internal/il"
	"armlift/internal/lift"
)

func words(ws ...uint32) []byte {
	b := make([]byte, 4*len(ws))
	for i, w := range ws {
		binary.LittleEndian.PutUint32(b[4*i:], w)
	}
	return b
}

func a64(t *testing.T, opts lift.Options) *lift.Translator {
	t.Helper()
	a, err := arch.Lookup("a64")
	require.NoError(t, err)
	return a.Translator(opts)
}

// checkInvariants asserts the ordering and length properties every result
// must satisfy.
func checkInvariants(t *testing.T, res *lift.Result) {
	t.Helper()
	entries := res.Entries()
	if len(entries) == 0 {
		require.Zero(t, res.Length())
		return
	}
	require.Equal(t, res.Start(), entries[0].Address)
	for i := 1; i < len(entries); i++ {
		require.Greater(t, entries[i].Address, entries[i-1].Address)
	}
	last := entries[len(entries)-1]
	require.Equal(t, last.Address+uint64(last.Inst.Size)-res.Start(), res.Length())
	for _, e := range entries {
		addr, ok := e.Graph.Address()
		require.True(t, ok)
		require.Equal(t, e.Address, addr)
	}
}

func TestFallthroughAfterNOP(t *testing.T) {
	// nop
	res, err := a64(t, lift.Options{}).TranslateBlock(words(0xd503201f), 0x1000)
	require.NoError(t, err)
	checkInvariants(t, res)
	require.Len(t, res.Entries(), 1)
	require.Equal(t, uint64(0x1000), res.Entries()[0].Address)
	require.Equal(t, uint64(4), res.Length())

	succs := res.Successors()
	require.Equal(t, 1, succs.Len())
	s, _ := succs.Taken()
	require.Equal(t, uint64(0x1004), s.Address)
	require.Nil(t, s.Guard)
}

func TestDirectBranchEndsBlock(t *testing.T) {
	// b 0x2000
	res, err := a64(t, lift.Options{}).TranslateBlock(words(0x17fffc00), 0x3000)
	require.NoError(t, err)
	checkInvariants(t, res)
	require.Equal(t, uint64(4), res.Length())
	require.Equal(t, lift.TransferDirect, res.Successors().Kind())
	s, _ := res.Successors().Taken()
	require.Equal(t, uint64(0x2000), s.Address)
	require.Nil(t, s.Guard)
}

func TestCBZGuards(t *testing.T) {
	// cbz x0, 0x4000
	res, err := a64(t, lift.Options{}).TranslateBlock(words(0xb4008000), 0x3000)
	require.NoError(t, err)
	checkInvariants(t, res)

	succs := res.Successors()
	require.Equal(t, 2, succs.Len())
	require.True(t, succs.Conditional())
	taken, _ := succs.Taken()
	next, _ := succs.NotTaken()
	require.Equal(t, uint64(0x4000), taken.Address)
	require.Equal(t, uint64(0x3004), next.Address)

	for _, x0 := range []uint64{0, 1, 0xffffffffffffffff} {
		s := il.State{"x0": x0}
		g1, err := il.Eval(taken.Guard, s)
		require.NoError(t, err)
		g2, err := il.Eval(next.Guard, s)
		require.NoError(t, err)
		require.Equal(t, uint64(1), g1+g2, "x0=%#x", x0)
		if x0 == 0 {
			require.Equal(t, uint64(1), g1)
		}
	}
}

func TestUnsupportedOpcode(t *testing.T) {
	// nop; svc #0
	res, err := a64(t, lift.Options{}).TranslateBlock(words(0xd503201f, 0xd4000001), 0x6000)
	require.Nil(t, res)
	require.True(t, errors.Is(err, lift.ErrUnsupported))
	var ue *lift.UnsupportedError
	require.True(t, errors.As(err, &ue))
	require.Equal(t, uint64(0x6004), ue.Addr)
	require.Equal(t, "svc", ue.Mnemonic)
}

func TestEmptyBuffer(t *testing.T) {
	res, err := a64(t, lift.Options{}).TranslateBlock(nil, 0x5000)
	require.NoError(t, err)
	require.True(t, res.Empty())
	require.Zero(t, res.Length())
	s, ok := res.Successors().Taken()
	require.True(t, ok)
	require.Equal(t, uint64(0x5000), s.Address)
	require.Nil(t, s.Guard)
}

func TestTrailingBytesAreBoundary(t *testing.T) {
	data := append(words(0xd503201f), 0x00, 0x01)
	res, err := a64(t, lift.Options{}).TranslateBlock(data, 0x1000)
	require.NoError(t, err)
	require.Len(t, res.Entries(), 1)
	s, _ := res.Successors().Taken()
	require.Equal(t, uint64(0x1004), s.Address)
}

func TestBlockStopsAtTerminator(t *testing.T) {
	// nop; bl .+8; ret; nop
	data := words(0xd503201f, 0x94000002, 0xd65f03c0, 0xd503201f)
	res, err := a64(t, lift.Options{}).TranslateBlock(data, 0x1000)
	require.NoError(t, err)
	checkInvariants(t, res)
	require.Len(t, res.Entries(), 3, "bl does not end the block")
	require.Equal(t, uint64(12), res.Length())
	require.Equal(t, lift.TransferIndirect, res.Successors().Kind())
	s, _ := res.Successors().Taken()
	v, err := il.Eval(s.Target, il.State{"x30": 0x1008})
	require.NoError(t, err)
	require.Equal(t, uint64(0x1008), v)
}

func TestMaxBytes(t *testing.T) {
	data := words(0xd503201f, 0xd503201f, 0xd503201f, 0xd503201f)
	res, err := a64(t, lift.Options{MaxBytes: 8}).TranslateBlock(data, 0x1000)
	require.NoError(t, err)
	require.Len(t, res.Entries(), 2)
	s, _ := res.Successors().Taken()
	require.Equal(t, lift.TransferFallthrough, res.Successors().Kind())
	require.Equal(t, uint64(0x1008), s.Address)
}

func TestDecodeFault(t *testing.T) {
	res, err := a64(t, lift.Options{}).TranslateBlock(words(0xd503201f, 0x00000000), 0x1000)
	require.Nil(t, res)
	require.True(t, errors.Is(err, lift.ErrDecode))
	var de *lift.DecodeError
	require.True(t, errors.As(err, &de))
	require.Equal(t, uint64(0x1004), de.Addr)
}

type blockSummary struct {
	Addrs  []uint64
	Graphs []string
	Succs  []string
}

func summarize(res *lift.Result) blockSummary {
	var s blockSummary
	for _, e := range res.Entries() {
		s.Addrs = append(s.Addrs, e.Address)
		s.Graphs = append(s.Graphs, e.Graph.String())
	}
	for _, succ := range res.Successors().All() {
		s.Succs = append(s.Succs, succ.String())
	}
	return s
}

func TestDeterministic(t *testing.T) {
	// add x0, x1, #0x10; cmp x0, #1; b.eq .+8
	data := words(0x91004020, 0xf100041f, 0x54000040)
	tr := a64(t, lift.Options{})
	first, err := tr.TranslateBlock(data, 0x7000)
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		again, err := tr.TranslateBlock(data, 0x7000)
		require.NoError(t, err)
		if diff := pretty.Diff(summarize(first), summarize(again)); len(diff) > 0 {
			t.Fatalf("run %d differs:\n%s", i, fmt.Sprint(diff))
		}
	}
	require.Len(t, first.Successors().All(), 2)
}

func TestA32Interwork(t *testing.T) {
	a, err := arch.Lookup("arm")
	require.NoError(t, err)
	// mov r0, #1; bx lr
	res, err := a.Translator(lift.Options{}).TranslateBlock(words(0xe3a00001, 0xe12fff1e), 0x8000)
	require.NoError(t, err)
	checkInvariants(t, res)
	s, _ := res.Successors().Taken()
	require.Equal(t, lift.ModeInterwork, s.Mode)
	require.False(t, s.Static())
}
