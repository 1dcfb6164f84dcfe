package nzcv

import (
	"testing"

	"armlift/internal/il"
)

func eval(t *testing.T, e il.Expr, s il.State) uint64 {
	t.Helper()
	v, err := il.Eval(e, s)
	if err != nil {
		t.Fatalf("eval %s: %v", e, err)
	}
	return v
}

// allFlags enumerates every NZCV combination.
func allFlags() []il.State {
	var out []il.State
	for i := 0; i < 16; i++ {
		out = append(out, il.State{
			"n": uint64(i>>3) & 1,
			"z": uint64(i>>2) & 1,
			"c": uint64(i>>1) & 1,
			"v": uint64(i) & 1,
		})
	}
	return out
}

func TestCondPairsPartition(t *testing.T) {
	for cond := EQ; cond < AL; cond += 2 {
		b := il.NewBuilder()
		pos := Cond(b, cond)
		neg := Cond(b, cond+1)
		if b.Err() != nil {
			t.Fatal(b.Err())
		}
		for _, s := range allFlags() {
			p := eval(t, pos, s)
			q := eval(t, neg, s)
			if p+q != 1 {
				t.Fatalf("%s/%s at %v: %d + %d", Name(cond), Name(cond+1), s, p, q)
			}
		}
	}
}

func TestCondSemantics(t *testing.T) {
	tests := []struct {
		cond uint8
		s    il.State
		want uint64
	}{
		{EQ, il.State{"n": 0, "z": 1, "c": 0, "v": 0}, 1},
		{HI, il.State{"n": 0, "z": 0, "c": 1, "v": 0}, 1},
		{HI, il.State{"n": 0, "z": 1, "c": 1, "v": 0}, 0},
		{GE, il.State{"n": 1, "z": 0, "c": 0, "v": 1}, 1},
		{LT, il.State{"n": 1, "z": 0, "c": 0, "v": 0}, 1},
		{GT, il.State{"n": 0, "z": 1, "c": 0, "v": 0}, 0},
		{LE, il.State{"n": 0, "z": 1, "c": 0, "v": 0}, 1},
		{AL, il.State{}, 1},
	}
	for _, tc := range tests {
		b := il.NewBuilder()
		e := Cond(b, tc.cond)
		if got := eval(t, e, tc.s); got != tc.want {
			t.Errorf("%s at %v = %d, want %d", Name(tc.cond), tc.s, got, tc.want)
		}
	}
}

func TestSubFlags(t *testing.T) {
	// 1 - 2 in 32 bits: negative, borrow (C clear), no overflow
	b := il.NewBuilder()
	x := il.NewScalar("x", 32)
	y := il.NewScalar("y", 32)
	r := il.NewScalar("r", 32)
	SetSub(b, x, y, r)
	g, err := b.Graph()
	if err != nil {
		t.Fatal(err)
	}
	out, _, err := il.Run(g, il.State{"x": 1, "y": 2, "r": 0xffffffff}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if out["n"] != 1 || out["z"] != 0 || out["c"] != 0 || out["v"] != 0 {
		t.Fatalf("flags = n%d z%d c%d v%d, want n1 z0 c0 v0", out["n"], out["z"], out["c"], out["v"])
	}
}

func TestAddOverflow(t *testing.T) {
	// 0x7fffffff + 1 overflows signed, no carry
	b := il.NewBuilder()
	x := il.NewScalar("x", 32)
	y := il.NewScalar("y", 32)
	r := il.NewScalar("r", 32)
	SetAdd(b, x, y, r)
	g, _ := b.Graph()
	out, _, err := il.Run(g, il.State{"x": 0x7fffffff, "y": 1, "r": 0x80000000}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if out["v"] != 1 || out["c"] != 0 || out["n"] != 1 {
		t.Fatalf("flags = n%d c%d v%d, want n1 c0 v1", out["n"], out["c"], out["v"])
	}
}
