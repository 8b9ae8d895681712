package guest_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feather-lang/rupy/guest"
)

func reprOf(t *testing.T, rt *guest.Runtime, o guest.Token) string {
	t.Helper()
	r := rt.Repr(o)
	require.NotEqual(t, guest.Null, r, "repr failed")
	return rt.StrValue(r)
}

func TestRepr(t *testing.T) {
	rt := newRuntime(t)

	l := rt.NewList(0)
	rt.ListAppend(l, rt.NewInt(1))
	rt.ListAppend(l, rt.NewStr("a"))
	rt.ListAppend(l, rt.None())
	rt.ListAppend(l, rt.NewFloat(1.5))
	rt.ListAppend(l, rt.NewFloat(2))
	assert.Equal(t, "[1, 'a', None, 1.5, 2.0]", reprOf(t, rt, l))

	assert.Equal(t, "(1,)", reprOf(t, rt, rt.TuplePack(rt.NewInt(1))))
	assert.Equal(t, "()", reprOf(t, rt, rt.TuplePack()))

	d := rt.NewDict()
	rt.DictSetItem(d, rt.NewStr("a"), rt.True())
	assert.Equal(t, "{'a': True}", reprOf(t, rt, d))

	assert.Equal(t, `"it's"`, reprOf(t, rt, rt.NewStr("it's")))
	assert.Equal(t, "<module 'math' (built-in)>", reprOf(t, rt, rt.Import("math")))

	s, ok := rt.StrString(rt.NewStr("plain"))
	require.True(t, ok)
	assert.Equal(t, "plain", s)
}

func TestOperatorModule(t *testing.T) {
	rt := newRuntime(t)
	op := rt.Import("operator")
	require.NotEqual(t, guest.Null, op)

	call := func(name string, args ...guest.Token) guest.Token {
		t.Helper()
		r := rt.CallMethod(op, name, args...)
		require.NotEqual(t, guest.Null, r, "operator.%s failed", name)
		return r
	}

	assert.Equal(t, int64(5), rt.IntValue(call("add", rt.NewInt(2), rt.NewInt(3))))
	assert.Equal(t, int64(-4), rt.IntValue(call("div", rt.NewInt(-7), rt.NewInt(2))))
	assert.Equal(t, int64(1), rt.IntValue(call("mod", rt.NewInt(-7), rt.NewInt(2))))
	assert.Equal(t, int64(1024), rt.IntValue(call("pow", rt.NewInt(2), rt.NewInt(10))))
	assert.Equal(t, 0.25, rt.FloatValue(call("pow", rt.NewInt(2), rt.NewInt(-2))))
	assert.Equal(t, int64(6), rt.IntValue(call("and_", rt.NewInt(14), rt.NewInt(7))))
	assert.Equal(t, int64(8), rt.IntValue(call("lshift", rt.NewInt(1), rt.NewInt(3))))
	assert.Equal(t, int64(-5), rt.IntValue(call("neg", rt.NewInt(5))))
	assert.Equal(t, int64(-6), rt.IntValue(call("invert", rt.NewInt(5))))
	assert.Equal(t, "abcd", rt.StrValue(call("add", rt.NewStr("ab"), rt.NewStr("cd"))))
	assert.Equal(t, "ababab", rt.StrValue(call("mul", rt.NewStr("ab"), rt.NewInt(3))))

	assert.Equal(t, rt.True(), call("lt", rt.NewInt(1), rt.NewFloat(1.5)))
	assert.Equal(t, rt.True(), call("eq", rt.NewInt(1), rt.NewFloat(1.0)))
	assert.Equal(t, rt.False(), call("gt", rt.NewStr("a"), rt.NewStr("b")))
	assert.Equal(t, rt.True(), call("contains", rt.NewStr("hello"), rt.NewStr("ell")))

	assert.Equal(t, guest.Null, rt.CallMethod(op, "div", rt.NewInt(1), rt.NewInt(0)))
	assert.Equal(t, "ZeroDivisionError: integer division or modulo by zero", fetchMessage(t, rt))

	assert.Equal(t, guest.Null, rt.CallMethod(op, "add", rt.NewInt(1), rt.NewStr("x")))
	assert.Equal(t, "TypeError: unsupported operand type(s) for +: 'int' and 'str'", fetchMessage(t, rt))

	assert.Equal(t, guest.Null, rt.CallMethod(op, "lt", rt.NewInt(1), rt.NewStr("x")))
	assert.True(t, rt.ErrMatches(rt.Exc.TypeError))
	rt.ErrClear()

	assert.Equal(t, guest.Null, rt.CallMethod(op, "invert", rt.NewFloat(1)))
	assert.Equal(t, "TypeError: bad operand type for unary ~: 'float'", fetchMessage(t, rt))
}

func TestSequenceProtocol(t *testing.T) {
	rt := newRuntime(t)

	l := rt.NewList(0)
	rt.ListAppend(l, rt.NewInt(10))
	rt.ListAppend(l, rt.NewInt(20))

	v := rt.GetItem(l, rt.NewInt(-1))
	assert.Equal(t, int64(20), rt.IntValue(v))
	require.Equal(t, 0, rt.SetItem(l, rt.NewInt(0), rt.NewStr("x")))
	assert.Equal(t, "['x', 20]", reprOf(t, rt, l))

	assert.Equal(t, guest.Null, rt.GetItem(l, rt.NewInt(5)))
	assert.Equal(t, "IndexError: list index out of range", fetchMessage(t, rt))

	d := rt.NewDict()
	assert.Equal(t, guest.Null, rt.GetItem(d, rt.NewStr("k")))
	assert.Equal(t, "KeyError: 'k'", fetchMessage(t, rt))

	assert.Equal(t, 1, rt.Contains(l, rt.NewInt(20)))
	assert.Equal(t, 0, rt.Contains(l, rt.NewInt(30)))
	assert.Equal(t, 2, rt.Len(l))

	parts := rt.CallMethod(rt.NewStr(" a b  c "), "split")
	require.NotEqual(t, guest.Null, parts)
	assert.Equal(t, "['a', 'b', 'c']", reprOf(t, rt, parts))

	joined := rt.CallMethod(rt.NewStr("-"), "join", parts)
	assert.Equal(t, "a-b-c", rt.StrValue(joined))
}

func TestCompareSequences(t *testing.T) {
	rt := newRuntime(t)
	a := rt.TuplePack(rt.NewInt(1), rt.NewInt(2))
	b := rt.TuplePack(rt.NewInt(1), rt.NewInt(3))
	assert.Equal(t, 1, rt.RichCompareBool(a, b, guest.OpLt))
	assert.Equal(t, 0, rt.RichCompareBool(a, b, guest.OpEq))
	assert.Equal(t, -1, rt.Compare(a, b))
	assert.Equal(t, 0, rt.Compare(a, rt.TuplePack(rt.NewInt(1), rt.NewInt(2))))
	assert.Equal(t, 1, rt.Compare(rt.NewStr("b"), rt.NewStr("a")))
}

func TestFractions(t *testing.T) {
	rt := newRuntime(t)
	mod := rt.Import("fractions")
	require.NotEqual(t, guest.Null, mod)
	cls := rt.GetAttr(mod, "Fraction")
	require.NotEqual(t, guest.Null, cls)

	half := rt.CallObject(cls, rt.NewInt(1), rt.NewInt(2))
	third := rt.CallObject(cls, rt.NewInt(2), rt.NewInt(6))
	require.NotEqual(t, guest.Null, half)
	require.NotEqual(t, guest.Null, third)

	s, _ := rt.StrString(third)
	assert.Equal(t, "1/3", s)

	sum := rt.Binary(half, third, guest.OpAdd)
	require.NotEqual(t, guest.Null, sum)
	s, _ = rt.StrString(sum)
	assert.Equal(t, "5/6", s)
	assert.Equal(t, "Fraction(5, 6)", reprOf(t, rt, sum))

	whole := rt.Binary(half, rt.NewInt(1), guest.OpAdd)
	s, _ = rt.StrString(whole)
	assert.Equal(t, "3/2", s)

	assert.Equal(t, 1, rt.RichCompareBool(half, third, guest.OpGt))
	assert.Equal(t, 1, rt.RichCompareBool(third, half, guest.OpLt))
	assert.Equal(t, 0, rt.RichCompareBool(half, rt.NewStr("x"), guest.OpEq))

	neg := rt.Unary(half, guest.OpNeg)
	s, _ = rt.StrString(neg)
	assert.Equal(t, "-1/2", s)

	assert.Equal(t, guest.Null, rt.CallObject(cls, rt.NewInt(1), rt.NewInt(0)))
	assert.Equal(t, "ZeroDivisionError: Fraction(1, 0)", fetchMessage(t, rt))
}

func TestURLLib2Request(t *testing.T) {
	rt := newRuntime(t)
	mod := rt.Import("urllib2")
	cls := rt.GetAttr(mod, "Request")
	require.NotEqual(t, guest.Null, cls)

	req := rt.CallObject(cls, rt.NewStr("http://example.com/path?q=1"))
	require.NotEqual(t, guest.Null, req)
	assert.Equal(t, "Request", rt.TypeName(req))

	str := func(name string) string {
		r := rt.CallMethod(req, name)
		require.NotEqual(t, guest.Null, r, name)
		return rt.StrValue(r)
	}
	assert.Equal(t, "example.com", str("get_host"))
	assert.Equal(t, "http", str("get_type"))
	assert.Equal(t, "GET", str("get_method"))
	assert.Equal(t, "/path?q=1", str("get_selector"))
	assert.Equal(t, "http://example.com/path?q=1", str("get_full_url"))

	post := rt.CallObject(cls, rt.NewStr("http://example.com/"), rt.NewStr("body"))
	assert.Equal(t, "POST", rt.StrValue(rt.CallMethod(post, "get_method")))

	bad := rt.CallObject(cls, rt.NewStr("nowhere"))
	require.NotEqual(t, guest.Null, bad)
	assert.Equal(t, guest.Null, rt.CallMethod(bad, "get_type"))
	assert.Equal(t, "ValueError: unknown url type: nowhere", fetchMessage(t, rt))
}

func TestMathModule(t *testing.T) {
	rt := newRuntime(t)
	m := rt.Import("math")
	r := rt.CallMethod(m, "sqrt", rt.NewInt(16))
	assert.Equal(t, 4.0, rt.FloatValue(r))

	assert.Equal(t, guest.Null, rt.CallMethod(m, "sqrt", rt.NewInt(-1)))
	assert.Equal(t, "ValueError: math domain error", fetchMessage(t, rt))
}

func TestBuiltins(t *testing.T) {
	rt := newRuntime(t)
	b := rt.Builtins()

	r := rt.CallMethod(b, "range", rt.NewInt(1), rt.NewInt(7), rt.NewInt(2))
	assert.Equal(t, "[1, 3, 5]", reprOf(t, rt, r))

	total := rt.CallMethod(b, "sum", r)
	assert.Equal(t, int64(9), rt.IntValue(total))

	n := rt.CallMethod(b, "len", rt.NewStr("four"))
	assert.Equal(t, int64(4), rt.IntValue(n))

	typ := rt.GetAttr(b, "int")
	conv := rt.CallObject(typ, rt.NewStr("12"))
	require.NotEqual(t, guest.Null, conv)
	assert.Equal(t, int64(12), rt.IntValue(conv))

	assert.Equal(t, guest.Null, rt.CallObject(typ, rt.NewStr("x")))
	assert.Equal(t, "ValueError: invalid literal for int() with base 10: 'x'", fetchMessage(t, rt))

	exc := rt.GetAttr(b, "ValueError")
	inst := rt.CallObject(exc, rt.NewStr("boom"))
	require.NotEqual(t, guest.Null, inst)
	s, _ := rt.StrString(inst)
	assert.Equal(t, "boom", s)
	assert.Equal(t, "ValueError('boom',)", reprOf(t, rt, inst))
}
