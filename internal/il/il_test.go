package il

import (
	"errors"
	"testing"
)

func TestConstMasked(t *testing.T) {
	c := NewConst(0x1ff, 8)
	if c.Value != 0xff {
		t.Fatalf("value = %#x, want 0xff", c.Value)
	}
	if c.String() != "0xff:8" {
		t.Fatalf("string = %q", c.String())
	}
}

func TestBinaryWidthMismatch(t *testing.T) {
	_, err := Add(NewScalar("x0", 64), NewConst(1, 32))
	if !errors.Is(err, ErrWidth) {
		t.Fatalf("err = %v, want ErrWidth", err)
	}
}

func TestCompareIsOneBit(t *testing.T) {
	e, err := Cmpeq(NewScalar("x0", 64), NewConst(0, 64))
	if err != nil {
		t.Fatal(err)
	}
	if e.Bits() != 1 {
		t.Fatalf("bits = %d, want 1", e.Bits())
	}
}

func TestCasts(t *testing.T) {
	x := NewScalar("x0", 64)
	w, err := Trun(32, x)
	if err != nil {
		t.Fatal(err)
	}
	if w.Bits() != 32 {
		t.Fatalf("trun bits = %d, want 32", w.Bits())
	}
	if _, err := Trun(128, x); !errors.Is(err, ErrWidth) {
		t.Fatalf("trun widen: err = %v, want ErrWidth", err)
	}
	same, err := Zext(64, x)
	if err != nil {
		t.Fatal(err)
	}
	if same != Expr(x) {
		t.Fatalf("zext to same width should return operand, got %s", same)
	}
	s, _ := Sext(64, NewConst(0x80, 8))
	v, err := Eval(s, nil)
	if err != nil {
		t.Fatal(err)
	}
	if v != 0xffffffffffffff80 {
		t.Fatalf("sext = %#x, want 0xffffffffffffff80", v)
	}
}

func TestNotPartitions(t *testing.T) {
	cond, _ := Cmpeq(NewScalar("x0", 64), NewConst(0, 64))
	neg, err := Not(cond)
	if err != nil {
		t.Fatal(err)
	}
	for _, x0 := range []uint64{0, 1, 0xffffffffffffffff} {
		s := State{"x0": x0}
		a, _ := Eval(cond, s)
		b, _ := Eval(neg, s)
		if a+b != 1 {
			t.Fatalf("x0=%#x: cond=%d not=%d", x0, a, b)
		}
	}
	if _, err := Not(NewScalar("x0", 64)); !errors.Is(err, ErrWidth) {
		t.Fatalf("not on 64-bit: err = %v, want ErrWidth", err)
	}
}

func TestEvalSignedCompare(t *testing.T) {
	// -1 <s 1 in 32 bits
	e, _ := Cmplts(NewConst(0xffffffff, 32), NewConst(1, 32))
	v, err := Eval(e, nil)
	if err != nil {
		t.Fatal(err)
	}
	if v != 1 {
		t.Fatalf("cmplts = %d, want 1", v)
	}
	u, _ := Cmpltu(NewConst(0xffffffff, 32), NewConst(1, 32))
	if v, _ := Eval(u, nil); v != 0 {
		t.Fatalf("cmpltu = %d, want 0", v)
	}
}

func TestEvalWraps(t *testing.T) {
	e, _ := Add(NewConst(0xffffffff, 32), NewConst(2, 32))
	v, _ := Eval(e, nil)
	if v != 1 {
		t.Fatalf("add = %#x, want 1", v)
	}
	sh, _ := Shl(NewConst(1, 32), NewConst(40, 32))
	if v, _ := Eval(sh, nil); v != 0 {
		t.Fatalf("oversized shift = %#x, want 0", v)
	}
}

func TestEvalUnknownScalar(t *testing.T) {
	if _, err := Eval(NewScalar("r0", 32), State{}); err == nil {
		t.Fatal("expected error for unbound scalar")
	}
}

func TestGraphValidate(t *testing.T) {
	g := NewGraph()
	head := g.NewBlock()
	body := g.NewBlock()
	tail := g.NewBlock()
	cond, _ := Cmpeq(NewScalar("z", 1), NewConst(1, 1))
	neg, _ := Not(cond)
	if err := g.AddEdge(head.Index(), body.Index(), cond); err != nil {
		t.Fatal(err)
	}
	if err := g.AddEdge(head.Index(), tail.Index(), neg); err != nil {
		t.Fatal(err)
	}
	if err := g.AddEdge(body.Index(), tail.Index(), nil); err != nil {
		t.Fatal(err)
	}
	if err := g.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
	exits := g.Exits()
	if len(exits) != 1 || exits[0] != tail.Index() {
		t.Fatalf("exits = %v, want [%d]", exits, tail.Index())
	}

	g.NewBlock() // orphan
	if err := g.Validate(); err == nil {
		t.Fatal("expected unreachable block error")
	}
}

func TestGraphRejectsWideCondition(t *testing.T) {
	g := NewGraph()
	g.NewBlock()
	g.NewBlock()
	if err := g.AddEdge(0, 1, NewScalar("x0", 64)); !errors.Is(err, ErrWidth) {
		t.Fatalf("err = %v, want ErrWidth", err)
	}
	if err := g.AddEdge(0, 5, nil); err == nil {
		t.Fatal("expected out of range error")
	}
}

func TestBlockAssignWidth(t *testing.T) {
	g := NewGraph()
	b := g.NewBlock()
	if err := b.Assign(NewScalar("x0", 64), NewConst(1, 32)); !errors.Is(err, ErrWidth) {
		t.Fatalf("err = %v, want ErrWidth", err)
	}
	if err := b.Assign(NewScalar("x0", 64), NewConst(1, 64)); err != nil {
		t.Fatal(err)
	}
	if g.Operations() != 1 {
		t.Fatalf("ops = %d, want 1", g.Operations())
	}
}

func TestRunDiamond(t *testing.T) {
	// if z then r0 = 1 else skip
	g := NewGraph()
	head := g.NewBlock()
	body := g.NewBlock()
	tail := g.NewBlock()
	z := NewScalar("z", 1)
	cond, _ := Cmpeq(z, NewConst(1, 1))
	neg, _ := Not(cond)
	_ = g.AddEdge(head.Index(), body.Index(), cond)
	_ = g.AddEdge(head.Index(), tail.Index(), neg)
	_ = g.AddEdge(body.Index(), tail.Index(), nil)
	_ = body.Assign(NewScalar("r0", 32), NewConst(1, 32))

	out, _, err := Run(g, State{"z": 1, "r0": 7}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if out["r0"] != 1 {
		t.Fatalf("taken: r0 = %d, want 1", out["r0"])
	}
	out, _, err = Run(g, State{"z": 0, "r0": 7}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if out["r0"] != 7 {
		t.Fatalf("skipped: r0 = %d, want 7", out["r0"])
	}
}

func TestRunMemoryAndBranch(t *testing.T) {
	g := NewGraph()
	b := g.NewBlock()
	sp := NewScalar("sp", 64)
	_ = b.Store(sp, NewConst(0xdead, 64))
	_ = b.Load(NewScalar("x1", 64), sp)
	_ = b.Branch(NewScalar("x1", 64))
	mem := map[uint64]uint64{}
	out, target, err := Run(g, State{"sp": 0x100}, mem)
	if err != nil {
		t.Fatal(err)
	}
	if out["x1"] != 0xdead {
		t.Fatalf("x1 = %#x, want 0xdead", out["x1"])
	}
	if target == nil || *target != 0xdead {
		t.Fatalf("target = %v, want 0xdead", target)
	}
}

func TestGraphAddress(t *testing.T) {
	g := NewGraph()
	if _, ok := g.Address(); ok {
		t.Fatal("fresh graph should have no address")
	}
	g.SetAddress(0x1000)
	if a, ok := g.Address(); !ok || a != 0x1000 {
		t.Fatalf("address = %#x, %v", a, ok)
	}
}

func TestBuilderSarFullWidth(t *testing.T) {
	b := NewBuilder()
	x := NewScalar("r1", 32)
	for _, tc := range []struct {
		x, n, want uint64
	}{
		{0x80000000, 0, 0x80000000},
		{0x80000000, 4, 0xf8000000},
		{0x80000000, 32, 0xffffffff},
		{0x40000000, 32, 0},
		{0x40000000, 30, 1},
	} {
		e := b.Sar(x, NewConst(tc.n, 32))
		v, err := Eval(e, State{"r1": tc.x})
		if err != nil {
			t.Fatal(err)
		}
		if v != tc.want {
			t.Fatalf("sar(%#x, %d) = %#x, want %#x", tc.x, tc.n, v, tc.want)
		}
	}
}

func TestBuilderSelect(t *testing.T) {
	b := NewBuilder()
	c := NewScalar("c", 1)
	e := b.Select(c, NewScalar("x", 32), NewScalar("y", 32))
	if err := b.Err(); err != nil {
		t.Fatal(err)
	}
	for _, tc := range []struct{ c, want uint64 }{{1, 0x1234}, {0, 0xabcd}} {
		v, err := Eval(e, State{"c": tc.c, "x": 0x1234, "y": 0xabcd})
		if err != nil {
			t.Fatal(err)
		}
		if v != tc.want {
			t.Fatalf("c=%d: select = %#x, want %#x", tc.c, v, tc.want)
		}
	}

	bit := b.Select(c, NewConst(0, 1), NewConst(1, 1))
	v, _ := Eval(bit, State{"c": 1})
	if v != 0 {
		t.Fatalf("1-bit select = %d, want 0", v)
	}
}
