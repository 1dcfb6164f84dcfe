package il

// Builder constructs a Graph with a sticky error: after the first failure
// every call is a no-op and Graph reports that failure. Expression helpers
// return nil once an error is recorded.
type Builder struct {
	g   *Graph
	cur *Block
	err error
}

// NewBuilder returns a builder positioned at the entry block of a new graph.
func NewBuilder() *Builder {
	g := NewGraph()
	return &Builder{g: g, cur: g.NewBlock()}
}

// Err returns the first recorded error.
func (b *Builder) Err() error { return b.err }

// Fail records err unless an earlier error exists.
func (b *Builder) Fail(err error) {
	if b.err == nil && err != nil {
		b.err = err
	}
}

// Graph returns the built graph, or the first recorded error.
func (b *Builder) Graph() (*Graph, error) {
	if b.err != nil {
		return nil, b.err
	}
	return b.g, nil
}

// Block returns the block operations are appended to.
func (b *Builder) Block() *Block { return b.cur }

// SetBlock redirects subsequent operations to blk.
func (b *Builder) SetBlock(blk *Block) { b.cur = blk }

// NewBlock appends a block without switching to it.
func (b *Builder) NewBlock() *Block { return b.g.NewBlock() }

// Edge connects head to tail under cond (nil for unconditional).
func (b *Builder) Edge(head, tail *Block, cond Expr) {
	if b.err != nil {
		return
	}
	b.Fail(b.g.AddEdge(head.Index(), tail.Index(), cond))
}

func (b *Builder) expr(e Expr, err error) Expr {
	if b.err != nil {
		return nil
	}
	if err != nil {
		b.Fail(err)
		return nil
	}
	return e
}

// Const returns v as a constant of the given width.
func (b *Builder) Const(v uint64, bits int) Expr { return NewConst(v, bits) }

func (b *Builder) Add(l, r Expr) Expr    { return b.expr(Add(l, r)) }
func (b *Builder) Sub(l, r Expr) Expr    { return b.expr(Sub(l, r)) }
func (b *Builder) Mul(l, r Expr) Expr    { return b.expr(Mul(l, r)) }
func (b *Builder) Divu(l, r Expr) Expr   { return b.expr(Divu(l, r)) }
func (b *Builder) And(l, r Expr) Expr    { return b.expr(And(l, r)) }
func (b *Builder) Or(l, r Expr) Expr     { return b.expr(Or(l, r)) }
func (b *Builder) Xor(l, r Expr) Expr    { return b.expr(Xor(l, r)) }
func (b *Builder) Shl(l, r Expr) Expr    { return b.expr(Shl(l, r)) }
func (b *Builder) Shr(l, r Expr) Expr    { return b.expr(Shr(l, r)) }
func (b *Builder) Cmpeq(l, r Expr) Expr  { return b.expr(Cmpeq(l, r)) }
func (b *Builder) Cmpneq(l, r Expr) Expr { return b.expr(Cmpneq(l, r)) }
func (b *Builder) Cmpltu(l, r Expr) Expr { return b.expr(Cmpltu(l, r)) }
func (b *Builder) Cmplts(l, r Expr) Expr { return b.expr(Cmplts(l, r)) }
func (b *Builder) Not(c Expr) Expr       { return b.expr(Not(c)) }

func (b *Builder) Zext(bits int, x Expr) Expr { return b.expr(Zext(bits, x)) }
func (b *Builder) Sext(bits int, x Expr) Expr { return b.expr(Sext(bits, x)) }
func (b *Builder) Trun(bits int, x Expr) Expr { return b.expr(Trun(bits, x)) }

// Neg returns 0 - x.
func (b *Builder) Neg(x Expr) Expr {
	if x == nil {
		return b.expr(nil, errNil("neg"))
	}
	return b.Sub(NewConst(0, x.Bits()), x)
}

// Inv returns the bitwise complement of x.
func (b *Builder) Inv(x Expr) Expr {
	if x == nil {
		return b.expr(nil, errNil("inv"))
	}
	return b.Xor(x, NewConst(mask(x.Bits()), x.Bits()))
}

// Sar is an arithmetic right shift by n, for 0 <= n <= width.
func (b *Builder) Sar(x, n Expr) Expr {
	if x == nil || n == nil {
		return b.expr(nil, errNil("sar"))
	}
	w := x.Bits()
	sign := b.Neg(b.Shr(x, NewConst(uint64(w-1), w)))
	fill := b.Shl(sign, b.Sub(NewConst(uint64(w), w), n))
	return b.Or(b.Shr(x, n), fill)
}

// Ror rotates x right by n, for 0 <= n < width.
func (b *Builder) Ror(x, n Expr) Expr {
	if x == nil || n == nil {
		return b.expr(nil, errNil("ror"))
	}
	w := x.Bits()
	return b.Or(b.Shr(x, n), b.Shl(x, b.Sub(NewConst(uint64(w), w), n)))
}

// Select returns x when the 1-bit c holds and y otherwise.
func (b *Builder) Select(c, x, y Expr) Expr {
	if c == nil || x == nil {
		return b.expr(nil, errNil("select"))
	}
	m := b.Neg(b.Zext(x.Bits(), c))
	return b.Or(b.And(x, m), b.And(y, b.Inv(m)))
}

// Bit extracts bit i of x as a 1-bit value.
func (b *Builder) Bit(x Expr, i int) Expr {
	if x == nil {
		return b.expr(nil, errNil("bit"))
	}
	return b.Trun(1, b.Shr(x, NewConst(uint64(i), x.Bits())))
}

// Bool widens a 1-bit value to bits.
func (b *Builder) Bool(c Expr, bits int) Expr { return b.Zext(bits, c) }

// Assign appends dst = src.
func (b *Builder) Assign(dst Scalar, src Expr) {
	if b.err != nil {
		return
	}
	b.Fail(b.cur.Assign(dst, src))
}

// Load appends dst = [addr].
func (b *Builder) Load(dst Scalar, addr Expr) {
	if b.err != nil {
		return
	}
	b.Fail(b.cur.Load(dst, addr))
}

// Store appends [addr] = src.
func (b *Builder) Store(addr, src Expr) {
	if b.err != nil {
		return
	}
	b.Fail(b.cur.Store(addr, src))
}

// Branch appends a control transfer to target.
func (b *Builder) Branch(target Expr) {
	if b.err != nil {
		return
	}
	b.Fail(b.cur.Branch(target))
}

// Intrinsic appends an unmodelled effect.
func (b *Builder) Intrinsic(mnemonic string, args ...Expr) {
	if b.err != nil {
		return
	}
	b.cur.Intrinsic(mnemonic, args...)
}

// Diamond runs body in a block entered only when cond holds:
// current →[cond] body → join, current →[not cond] join. Building continues
// in join.
func (b *Builder) Diamond(cond Expr, body func()) {
	if b.err != nil {
		return
	}
	not := b.Not(cond)
	head := b.cur
	then := b.NewBlock()
	join := b.NewBlock()
	b.Edge(head, then, cond)
	b.Edge(head, join, not)
	b.cur = then
	body()
	b.Edge(b.cur, join, nil)
	b.cur = join
}
