package rupy_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feather-lang/rupy"
)

// guestValue builds a guest object from a native value by calling the
// named builtin type on it, e.g. guestValue(t, b, "int", 7).
func guestValue(t *testing.T, b *rupy.Bridge, typ string, v any) *rupy.Proxy {
	t.Helper()
	main, err := b.Main()
	require.NoError(t, err)
	r, err := main.Send(typ, v)
	require.NoError(t, err)
	p := r.(*rupy.Proxy)
	t.Cleanup(p.Release)
	return p
}

func TestArithmeticOperators(t *testing.T) {
	b := newBridge(t)
	seven := guestValue(t, b, "int", 7)

	tests := []struct {
		name string
		op   func(any) (*rupy.Proxy, error)
		arg  any
		want any
	}{
		{"add", seven.Add, 3, int64(10)},
		{"sub", seven.Sub, 10, int64(-3)},
		{"mul", seven.Mul, 2.5, 17.5},
		{"div", seven.Div, 2, int64(3)},
		{"mod", seven.Mod, -3, int64(-2)},
		{"pow", seven.Pow, 2, int64(49)},
		{"and", seven.And, 3, int64(3)},
		{"or", seven.Or, 8, int64(15)},
		{"xor", seven.Xor, 1, int64(6)},
		{"lshift", seven.LShift, 2, int64(28)},
		{"rshift", seven.RShift, 1, int64(3)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := tt.op(tt.arg)
			require.NoError(t, err)
			defer r.Release()
			assert.Equal(t, tt.want, native(t, r))
		})
	}

	_, err := seven.Div(0)
	requireGuestError(t, err, "ZeroDivisionError", "integer division or modulo by zero")
	_, err = seven.Add("a")
	requireGuestError(t, err, "TypeError", "unsupported operand type(s) for +: 'int' and 'str'")
}

func TestUnaryOperators(t *testing.T) {
	b := newBridge(t)
	seven := guestValue(t, b, "int", 7)

	for name, tc := range map[string]struct {
		op   func() (*rupy.Proxy, error)
		want int64
	}{
		"neg":    {seven.Neg, -7},
		"pos":    {seven.Pos, 7},
		"invert": {seven.Invert, -8},
	} {
		r, err := tc.op()
		require.NoError(t, err, name)
		assert.Equal(t, tc.want, native(t, r), name)
		r.Release()
	}

	f := guestValue(t, b, "float", 1.5)
	_, err := f.Invert()
	requireGuestError(t, err, "TypeError", "bad operand type for unary ~: 'float'")
}

func TestRelationalOperators(t *testing.T) {
	b := newBridge(t)
	newFraction, err := b.Type("fractions.Fraction")
	require.NoError(t, err)
	half, err := newFraction(1, 2)
	require.NoError(t, err)
	defer half.Release()
	third, err := newFraction(1, 3)
	require.NoError(t, err)
	defer third.Release()

	check := func(got bool, err error) bool {
		t.Helper()
		require.NoError(t, err)
		return got
	}
	assert.True(t, check(half.Gt(third)))
	assert.True(t, check(half.Ge(half)))
	assert.False(t, check(half.Lt(third)))
	assert.True(t, check(third.Le(half)))
	assert.False(t, check(half.Eq(third)))
	assert.True(t, check(half.Ne(third)))
	assert.True(t, check(half.Eq(half)))
	assert.True(t, check(half.Lt(1)), "fractions compare with ints")

	sum, err := third.Add(third)
	require.NoError(t, err)
	defer sum.Release()
	assert.Equal(t, "2/3", sum.String())

	m, err := b.Import("string")
	require.NoError(t, err)
	defer m.Release()
	_, err = m.Lt(1)
	requireGuestError(t, err, "TypeError", "unorderable types: module() < int()")
}

func TestContainerOperators(t *testing.T) {
	b := newBridge(t)
	l := guestValue(t, b, "list", []any{1, 2, 3})

	first, err := l.Index(0)
	require.NoError(t, err)
	defer first.Release()
	assert.Equal(t, int64(1), native(t, first))

	require.NoError(t, l.SetIndex(0, "x"))
	ok, err := l.Contains("x")
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = l.Contains(1)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, []any{"x", int64(2), int64(3)}, native(t, l))

	_, err = l.Index(10)
	requireGuestError(t, err, "IndexError", "list index out of range")
	err = l.SetIndex(10, 1)
	requireGuestError(t, err, "IndexError", "")

	d := guestValue(t, b, "dict", map[string]int{"a": 1})
	err = d.SetIndex([]any{1, 2}, "v")
	requireGuestError(t, err, "TypeError", "unhashable type: 'list'")

	key, err := b.ToForeign([]any{1, 2}, true)
	require.NoError(t, err)
	defer key.Release()
	require.NoError(t, d.SetIndex(key, "tuple key"))
	v, err := d.Index(key)
	require.NoError(t, err)
	defer v.Release()
	assert.Equal(t, "tuple key", native(t, v))
	assert.Equal(t, map[any]any{"a": int64(1), [2]any{int64(1), int64(2)}: "tuple key"}, native(t, d))
}

func TestCmp(t *testing.T) {
	b := newBridge(t)
	five := guestValue(t, b, "int", 5)

	tests := []struct {
		arg  any
		want int
	}{
		{9, -1},
		{5, 0},
		{1, 1},
		{5.0, 0},
	}
	for _, tt := range tests {
		c, err := five.Cmp(tt.arg)
		require.NoError(t, err)
		assert.Equal(t, tt.want, c, "cmp(5, %v)", tt.arg)
	}
}
