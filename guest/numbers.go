package guest

import (
	"math"
	"math/big"
)

// BinaryOp selects an arithmetic or bitwise operator.
type BinaryOp int

const (
	OpAdd BinaryOp = iota
	OpSub
	OpMul
	OpDiv
	OpMod
	OpPow
	OpAnd
	OpOr
	OpXor
	OpLShift
	OpRShift
)

var binarySpecials = [...]string{
	"__add__", "__sub__", "__mul__", "__div__", "__mod__", "__pow__",
	"__and__", "__or__", "__xor__", "__lshift__", "__rshift__",
}

var binarySymbols = [...]string{"+", "-", "*", "/", "%", "** or pow()", "&", "|", "^", "<<", ">>"}

// Special returns the special method name for op, e.g. "__add__".
func (op BinaryOp) Special() string { return binarySpecials[op] }

func (op BinaryOp) String() string { return binarySymbols[op] }

// UnaryOp selects a unary operator.
type UnaryOp int

const (
	OpNeg UnaryOp = iota
	OpPos
	OpInvert
	OpAbs
)

var unarySpecials = [...]string{"__neg__", "__pos__", "__invert__", "__abs__"}
var unarySymbols = [...]string{"unary -", "unary +", "unary ~", "abs()"}

// Special returns the special method name for op, e.g. "__neg__".
func (op UnaryOp) Special() string { return unarySpecials[op] }

func (op UnaryOp) String() string { return unarySymbols[op] }

// Binary evaluates a op b by calling a's special method for op.
func (rt *Runtime) Binary(a, b Token, op BinaryOp) Token {
	if r, ok := rt.callSpecial(a, binarySpecials[op], b); ok {
		return r
	}
	return rt.unsupported(op, a, b)
}

// Unary evaluates op applied to a.
func (rt *Runtime) Unary(a Token, op UnaryOp) Token {
	if r, ok := rt.callSpecial(a, unarySpecials[op]); ok {
		return r
	}
	rt.ErrFormat(rt.Exc.TypeError, "bad operand type for %s: '%s'", op, rt.TypeName(a))
	return Null
}

func (rt *Runtime) unsupported(op BinaryOp, a, b Token) Token {
	rt.ErrFormat(rt.Exc.TypeError, "unsupported operand type(s) for %s: '%s' and '%s'", op, rt.TypeName(a), rt.TypeName(b))
	return Null
}

type number struct {
	kind Kind // KindInt, KindLong or KindFloat
	i    int64
	b    *big.Int
	f    float64
}

func (rt *Runtime) asNumber(t Token) (number, bool) {
	switch v := rt.get(t, "number").payload.(type) {
	case int64:
		return number{kind: KindInt, i: v}, true
	case bool:
		if v {
			return number{kind: KindInt, i: 1}, true
		}
		return number{kind: KindInt}, true
	case *big.Int:
		return number{kind: KindLong, b: v}, true
	case float64:
		return number{kind: KindFloat, f: v}, true
	}
	return number{}, false
}

func (n number) big() *big.Int {
	if n.kind == KindLong {
		return n.b
	}
	return big.NewInt(n.i)
}

func (n number) float() float64 {
	switch n.kind {
	case KindFloat:
		return n.f
	case KindLong:
		f, _ := new(big.Float).SetInt(n.b).Float64()
		return f
	}
	return float64(n.i)
}

func compareNumbers(x, y number) int {
	if x.kind == KindFloat || y.kind == KindFloat {
		a, b := x.float(), y.float()
		switch {
		case a < b:
			return -1
		case a > b:
			return 1
		}
		return 0
	}
	return x.big().Cmp(y.big())
}

// numberOp implements the arithmetic of int, long, bool and float.
func (rt *Runtime) numberOp(op BinaryOp, a, b Token) Token {
	x, ok1 := rt.asNumber(a)
	y, ok2 := rt.asNumber(b)
	if !ok1 || !ok2 {
		return rt.unsupported(op, a, b)
	}
	if x.kind == KindFloat || y.kind == KindFloat {
		if op >= OpAnd {
			return rt.unsupported(op, a, b)
		}
		return rt.floatOp(op, x.float(), y.float())
	}
	long := x.kind == KindLong || y.kind == KindLong
	return rt.intOp(op, x.big(), y.big(), long)
}

const maxShift = 1 << 16

func (rt *Runtime) intOp(op BinaryOp, a, b *big.Int, long bool) Token {
	z := new(big.Int)
	switch op {
	case OpAdd:
		z.Add(a, b)
	case OpSub:
		z.Sub(a, b)
	case OpMul:
		z.Mul(a, b)
	case OpDiv, OpMod:
		if b.Sign() == 0 {
			rt.ErrSetString(rt.Exc.ZeroDivisionError, "integer division or modulo by zero")
			return Null
		}
		q, m := floorDivMod(a, b)
		if op == OpDiv {
			z = q
		} else {
			z = m
		}
	case OpPow:
		if b.Sign() < 0 {
			fa, _ := new(big.Float).SetInt(a).Float64()
			fb, _ := new(big.Float).SetInt(b).Float64()
			return rt.floatOp(OpPow, fa, fb)
		}
		if !b.IsInt64() || (b.Int64() > maxShift && a.CmpAbs(big.NewInt(1)) > 0) {
			rt.ErrSetString(rt.Exc.OverflowError, "exponent too large")
			return Null
		}
		z.Exp(a, b, nil)
	case OpAnd:
		z.And(a, b)
	case OpOr:
		z.Or(a, b)
	case OpXor:
		z.Xor(a, b)
	case OpLShift, OpRShift:
		if b.Sign() < 0 {
			rt.ErrSetString(rt.Exc.ValueError, "negative shift count")
			return Null
		}
		if op == OpLShift {
			if !b.IsInt64() || b.Int64() > maxShift {
				rt.ErrSetString(rt.Exc.OverflowError, "shift count too large")
				return Null
			}
			z.Lsh(a, uint(b.Int64()))
		} else {
			n := uint(a.BitLen() + 1)
			if b.IsInt64() && uint64(b.Int64()) < uint64(n) {
				n = uint(b.Int64())
			}
			z.Rsh(a, n)
		}
	}
	if !long && z.IsInt64() {
		return rt.NewInt(z.Int64())
	}
	return rt.NewLong(z)
}

// floorDivMod rounds the quotient toward negative infinity, so the
// remainder takes the sign of the divisor.
func floorDivMod(a, b *big.Int) (*big.Int, *big.Int) {
	q, m := new(big.Int).QuoRem(a, b, new(big.Int))
	if m.Sign() != 0 && (m.Sign() < 0) != (b.Sign() < 0) {
		q.Sub(q, big.NewInt(1))
		m.Add(m, b)
	}
	return q, m
}

func (rt *Runtime) floatOp(op BinaryOp, a, b float64) Token {
	var r float64
	switch op {
	case OpAdd:
		r = a + b
	case OpSub:
		r = a - b
	case OpMul:
		r = a * b
	case OpDiv:
		if b == 0 {
			rt.ErrSetString(rt.Exc.ZeroDivisionError, "float division by zero")
			return Null
		}
		r = a / b
	case OpMod:
		if b == 0 {
			rt.ErrSetString(rt.Exc.ZeroDivisionError, "float modulo")
			return Null
		}
		r = math.Mod(a, b)
		if r != 0 && (r < 0) != (b < 0) {
			r += b
		}
	case OpPow:
		if a == 0 && b < 0 {
			rt.ErrSetString(rt.Exc.ZeroDivisionError, "0.0 cannot be raised to a negative power")
			return Null
		}
		if a < 0 && b != math.Trunc(b) {
			rt.ErrSetString(rt.Exc.ValueError, "negative number cannot be raised to a fractional power")
			return Null
		}
		r = math.Pow(a, b)
	}
	return rt.NewFloat(r)
}

func (rt *Runtime) numberUnary(op UnaryOp, a Token) Token {
	x, ok := rt.asNumber(a)
	if !ok {
		rt.ErrFormat(rt.Exc.TypeError, "bad operand type for %s: '%s'", op, rt.TypeName(a))
		return Null
	}
	if x.kind == KindFloat {
		switch op {
		case OpNeg:
			return rt.NewFloat(-x.f)
		case OpPos:
			return rt.NewFloat(x.f)
		case OpAbs:
			return rt.NewFloat(math.Abs(x.f))
		}
		rt.ErrFormat(rt.Exc.TypeError, "bad operand type for %s: 'float'", op)
		return Null
	}
	z := new(big.Int)
	switch op {
	case OpNeg:
		z.Neg(x.big())
	case OpPos:
		z.Set(x.big())
	case OpInvert:
		z.Not(x.big())
	case OpAbs:
		z.Abs(x.big())
	}
	if x.kind != KindLong && z.IsInt64() {
		return rt.NewInt(z.Int64())
	}
	return rt.NewLong(z)
}
