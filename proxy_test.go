package rupy_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feather-lang/rupy"
	"github.com/feather-lang/rupy/guest"
)

// counterModule defines a host module with a small mutable class.
func counterModule(rt *guest.Runtime, m *guest.Module) error {
	_, err := m.Class(guest.ClassDef{
		Name: "Counter",
		Methods: map[string]guest.NativeFunc{
			"__init__": func(rt *guest.Runtime, self, args guest.Token) guest.Token {
				start := rt.NewInt(0)
				if items := rt.Args(args); len(items) > 0 {
					rt.DecRef(start)
					start = items[0]
					rt.IncRef(start)
				}
				r := rt.SetAttr(self, "count", start)
				rt.DecRef(start)
				if r < 0 {
					return guest.Null
				}
				return rt.ReturnNone()
			},
			"bump": func(rt *guest.Runtime, self, _ guest.Token) guest.Token {
				c := rt.GetAttr(self, "count")
				if c == guest.Null {
					return guest.Null
				}
				n, _ := rt.AsInt64(c)
				rt.DecRef(c)
				next := rt.NewInt(n + 1)
				rt.SetAttr(self, "count", next)
				return next
			},
		},
	})
	return err
}

func TestRoles(t *testing.T) {
	b := newBridge(t, rupy.WithModule("counter", counterModule))

	m, err := b.Import("counter")
	require.NoError(t, err)
	defer m.Release()
	assert.Equal(t, rupy.RoleModule, m.Role())

	cls, err := m.GetAttr("Counter")
	require.NoError(t, err)
	defer cls.Release()
	assert.Equal(t, rupy.RoleClass, cls.Role())
	assert.Equal(t, "class", cls.Role().String())

	c, err := cls.Call()
	require.NoError(t, err)
	defer c.Release()
	assert.Equal(t, rupy.RoleInstance, c.Role(), "calling a class yields an instance")

	bump, err := c.GetAttr("bump")
	require.NoError(t, err)
	defer bump.Release()
	assert.Equal(t, rupy.RoleGeneric, bump.Role())
	assert.True(t, bump.IsCallable())
	assert.True(t, bump.IsFunctionOrMethod())
	assert.True(t, cls.IsCallable())
	assert.False(t, cls.IsFunctionOrMethod(), "a class is callable but not a function")
	assert.False(t, c.IsCallable())
}

func TestAttributes(t *testing.T) {
	b := newBridge(t, rupy.WithModule("counter", counterModule))
	newCounter, err := b.Type("counter.Counter")
	require.NoError(t, err)

	c, err := newCounter(5)
	require.NoError(t, err)
	defer c.Release()

	assert.True(t, c.HasAttr("count"))
	assert.False(t, c.HasAttr("nope"))
	assert.False(t, b.HasPending(), "HasAttr does not leave an exception behind")

	r, err := c.Send("bump")
	require.NoError(t, err)
	r.(*rupy.Proxy).Release()

	count, err := c.GetAttr("count")
	require.NoError(t, err)
	defer count.Release()
	assert.Equal(t, int64(6), native(t, count))

	ok, err := c.SetAttr("label", []any{"a", 1})
	require.NoError(t, err)
	assert.True(t, ok)
	label, err := c.GetAttr("label")
	require.NoError(t, err)
	defer label.Release()
	assert.Equal(t, []any{"a", int64(1)}, native(t, label))

	names, err := c.Dir()
	require.NoError(t, err)
	assert.Contains(t, names, "bump")
	assert.Contains(t, names, "count")
	assert.Contains(t, names, "label")

	main, err := b.Main()
	require.NoError(t, err)
	str, err := main.GetAttr("str")
	require.NoError(t, err)
	defer str.Release()
	_, err = str.SetAttr("x", 1)
	requireGuestError(t, err, "TypeError", "")
}

func TestDir(t *testing.T) {
	b := newBridge(t)
	m, err := b.Import("string")
	require.NoError(t, err)
	defer m.Release()

	names, err := m.Dir()
	require.NoError(t, err)
	assert.Contains(t, names, "ascii_letters")
	assert.Contains(t, names, "capwords")
	assert.IsIncreasing(t, names)
}

func TestCompare(t *testing.T) {
	b := newBridge(t)
	newFraction, err := b.Type("fractions.Fraction")
	require.NoError(t, err)

	half, err := newFraction(1, 2)
	require.NoError(t, err)
	defer half.Release()
	third, err := newFraction(1, 3)
	require.NoError(t, err)
	defer third.Release()

	c, err := half.Compare(third)
	require.NoError(t, err)
	assert.Equal(t, 1, c)
	c, err = third.Compare(half)
	require.NoError(t, err)
	assert.Equal(t, -1, c)
	c, err = half.Compare(half)
	require.NoError(t, err)
	assert.Equal(t, 0, c)

	m, err := b.Import("string")
	require.NoError(t, err)
	defer m.Release()
	_, err = m.Compare(1)
	requireGuestError(t, err, "TypeError", "")
}

func TestSendAndCall(t *testing.T) {
	b := newBridge(t)
	m, err := b.Import("string")
	require.NoError(t, err)
	defer m.Release()

	r, err := m.Send("capwords", "hello go world")
	require.NoError(t, err)
	p, ok := r.(*rupy.Proxy)
	require.True(t, ok, "without legacy mode Send returns a proxy")
	defer p.Release()
	assert.Equal(t, "Hello Go World", native(t, p))

	join, err := m.GetAttr("join")
	require.NoError(t, err)
	defer join.Release()
	j, err := join.Call([]string{"a", "b"}, "-")
	require.NoError(t, err)
	defer j.Release()
	assert.Equal(t, "a-b", j.String())

	repr, err := j.Repr()
	require.NoError(t, err)
	assert.Equal(t, "'a-b'", repr)

	_, err = m.Send("missing")
	requireGuestError(t, err, "AttributeError", "'module' object has no attribute 'missing'")

	_, err = join.Call(make(chan int))
	assert.ErrorContains(t, err, "argument 1")
}

func TestEach(t *testing.T) {
	b := newBridge(t)
	main, err := b.Main()
	require.NoError(t, err)

	r, err := main.Send("range", 4)
	require.NoError(t, err)
	rng := r.(*rupy.Proxy)
	defer rng.Release()

	var got []any
	base := b.LiveHandles()
	require.NoError(t, rng.Each(func(item *rupy.Proxy) error {
		got = append(got, native(t, item))
		return nil
	}))
	assert.Equal(t, []any{int64(0), int64(1), int64(2), int64(3)}, got)
	assert.Equal(t, base, b.LiveHandles())

	n, err := main.GetAttr("len")
	require.NoError(t, err)
	defer n.Release()
	err = n.Each(func(*rupy.Proxy) error { return nil })
	requireGuestError(t, err, "TypeError", "'builtin_function_or_method' object is not iterable")
}

func TestCloneOutlivesOriginal(t *testing.T) {
	b := newBridge(t)
	m, err := b.Import("string")
	require.NoError(t, err)

	c, err := m.Clone()
	require.NoError(t, err)
	m.Release()

	_, err = m.GetAttr("digits")
	assert.ErrorIs(t, err, rupy.ErrReleased)

	digits, err := c.GetAttr("digits")
	require.NoError(t, err)
	defer digits.Release()
	assert.Equal(t, "0123456789", digits.String())
	c.Release()
}
