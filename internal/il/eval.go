package il

import "fmt"

// State maps scalar names to concrete values.
type State map[string]uint64

// Eval computes e under s. Unknown scalars are an error. Division by zero
// yields zero, matching AArch64 UDIV.
func Eval(e Expr, s State) (uint64, error) {
	switch x := e.(type) {
	case Const:
		return x.Value & mask(x.Width), nil
	case Scalar:
		v, ok := s[x.Name]
		if !ok {
			return 0, fmt.Errorf("il: scalar %s has no value", x.Name)
		}
		return v & mask(x.Width), nil
	case Binary:
		l, err := Eval(x.L, s)
		if err != nil {
			return 0, err
		}
		r, err := Eval(x.R, s)
		if err != nil {
			return 0, err
		}
		return evalBinary(x.Op, l, r, x.L.Bits()), nil
	case Cast:
		v, err := Eval(x.X, s)
		if err != nil {
			return 0, err
		}
		switch x.Op {
		case OpZext:
			return v, nil
		case OpSext:
			return signExtend(v, x.X.Bits()) & mask(x.Width), nil
		case OpTrun:
			return v & mask(x.Width), nil
		}
	}
	return 0, fmt.Errorf("il: cannot evaluate %v", e)
}

func evalBinary(op BinOp, l, r uint64, bits int) uint64 {
	m := mask(bits)
	b2u := func(b bool) uint64 {
		if b {
			return 1
		}
		return 0
	}
	switch op {
	case OpAdd:
		return (l + r) & m
	case OpSub:
		return (l - r) & m
	case OpMul:
		return (l * r) & m
	case OpDivu:
		if r == 0 {
			return 0
		}
		return l / r
	case OpModu:
		if r == 0 {
			return 0
		}
		return l % r
	case OpAnd:
		return l & r
	case OpOr:
		return l | r
	case OpXor:
		return l ^ r
	case OpShl:
		if r >= uint64(bits) {
			return 0
		}
		return (l << r) & m
	case OpShr:
		if r >= uint64(bits) {
			return 0
		}
		return l >> r
	case OpCmpeq:
		return b2u(l == r)
	case OpCmpneq:
		return b2u(l != r)
	case OpCmpltu:
		return b2u(l < r)
	case OpCmplts:
		return b2u(int64(signExtend(l, bits)) < int64(signExtend(r, bits)))
	}
	return 0
}

func signExtend(v uint64, bits int) uint64 {
	if bits >= 64 {
		return v
	}
	sign := uint64(1) << uint(bits-1)
	v &= mask(bits)
	if v&sign != 0 {
		return v | ^mask(bits)
	}
	return v
}

// Run executes a graph on a copy of s, following the first edge whose
// condition holds. Loads read from mem; stores write to it. The returned
// state holds the scalars after the exit block. Branch operations are
// recorded in the returned target, if any.
func Run(g *Graph, s State, mem map[uint64]uint64) (State, *uint64, error) {
	out := make(State, len(s))
	for k, v := range s {
		out[k] = v
	}
	var target *uint64
	cur := g.Entry()
	for steps := 0; steps <= len(g.blocks); steps++ {
		for _, op := range g.blocks[cur].ops {
			switch o := op.(type) {
			case Assign:
				v, err := Eval(o.Src, out)
				if err != nil {
					return nil, nil, err
				}
				out[o.Dst.Name] = v
			case Load:
				a, err := Eval(o.Addr, out)
				if err != nil {
					return nil, nil, err
				}
				out[o.Dst.Name] = mem[a] & mask(o.Dst.Width)
			case Store:
				a, err := Eval(o.Addr, out)
				if err != nil {
					return nil, nil, err
				}
				v, err := Eval(o.Src, out)
				if err != nil {
					return nil, nil, err
				}
				if mem != nil {
					mem[a] = v
				}
			case Branch:
				v, err := Eval(o.Target, out)
				if err != nil {
					return nil, nil, err
				}
				target = &v
			}
		}
		next := -1
		for _, e := range g.Successors(cur) {
			if e.Cond == nil {
				next = e.Tail
				break
			}
			v, err := Eval(e.Cond, out)
			if err != nil {
				return nil, nil, err
			}
			if v == 1 {
				next = e.Tail
				break
			}
		}
		if next < 0 {
			return out, target, nil
		}
		cur = next
	}
	return nil, nil, fmt.Errorf("il: graph did not terminate")
}
