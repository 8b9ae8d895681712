package guest_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feather-lang/rupy/guest"
)

func newRuntime(t *testing.T) *guest.Runtime {
	t.Helper()
	rt := guest.New()
	require.NoError(t, rt.Initialize())
	t.Cleanup(func() { rt.Finalize() })
	return rt
}

// fetchMessage takes the pending exception and renders it as "Type: message".
func fetchMessage(t *testing.T, rt *guest.Runtime) string {
	t.Helper()
	typ, val, trace := rt.ErrFetch()
	require.NotEqual(t, guest.Null, typ, "expected a pending exception")
	defer rt.DecRef(typ)
	defer rt.DecRef(val)
	defer rt.DecRef(trace)
	msg, ok := rt.StrString(val)
	require.True(t, ok)
	return rt.ClassName(typ) + ": " + msg
}

func TestInitializeFinalize(t *testing.T) {
	rt := guest.New()
	assert.False(t, rt.IsInitialized())
	require.NoError(t, rt.Initialize())
	assert.True(t, rt.IsInitialized())
	require.NoError(t, rt.Initialize(), "initialize twice is a no-op")

	other := guest.New()
	assert.ErrorIs(t, other.Initialize(), guest.ErrAlreadyInitialized)

	s := rt.NewStr("x")
	assert.True(t, rt.Finalize())
	assert.False(t, rt.Valid(s))
	assert.False(t, rt.Finalize())

	require.NoError(t, other.Initialize(), "a new runtime may start after finalize")
	other.Finalize()
}

func TestRefCounting(t *testing.T) {
	rt := newRuntime(t)
	base := rt.Live()

	s := rt.NewStr("hello")
	assert.Equal(t, 1, rt.RefCount(s))
	rt.IncRef(s)
	assert.Equal(t, 2, rt.RefCount(s))

	l := rt.NewList(0)
	require.Equal(t, 0, rt.ListAppend(l, s))
	assert.Equal(t, 3, rt.RefCount(s))

	rt.DecRef(s)
	rt.DecRef(s)
	assert.True(t, rt.Valid(s), "list still holds the string")

	rt.DecRef(l)
	assert.False(t, rt.Valid(s))
	assert.False(t, rt.Valid(l))
	assert.Equal(t, base, rt.Live())
}

func TestStaleTokenFaults(t *testing.T) {
	rt := newRuntime(t)
	s := rt.NewStr("gone")
	rt.DecRef(s)
	assert.Panics(t, func() { rt.DecRef(s) })
	assert.Panics(t, func() { rt.IncRef(s) })
	rt.DecRef(guest.Null)
	rt.IncRef(guest.Null)
}

func TestSingletonsAreImmortal(t *testing.T) {
	rt := newRuntime(t)
	none := rt.None()
	n := rt.RefCount(none)
	for i := 0; i < n+3; i++ {
		rt.DecRef(none)
	}
	assert.True(t, rt.Valid(none))
	assert.Equal(t, guest.KindNone, rt.KindOf(none))
	assert.Equal(t, guest.KindBool, rt.KindOf(rt.True()))
}

func TestScalars(t *testing.T) {
	rt := newRuntime(t)

	i := rt.NewInt(42)
	assert.Equal(t, guest.KindInt, rt.KindOf(i))
	assert.Equal(t, int64(42), rt.IntValue(i))

	f := rt.NewFloat(1.5)
	assert.Equal(t, guest.KindFloat, rt.KindOf(f))
	assert.Equal(t, 1.5, rt.FloatValue(f))

	s := rt.NewStr("abc")
	v, ok := rt.AsString(s)
	assert.True(t, ok)
	assert.Equal(t, "abc", v)
	_, ok = rt.AsString(i)
	assert.False(t, ok)

	assert.Equal(t, "int", rt.TypeName(i))
	assert.Equal(t, "bool", rt.TypeName(rt.True()))
}

func TestIntOverflowPromotesToLong(t *testing.T) {
	rt := newRuntime(t)
	a := rt.NewInt(math.MaxInt64)
	b := rt.NewInt(1)
	sum := rt.Binary(a, b, guest.OpAdd)
	require.NotEqual(t, guest.Null, sum)
	assert.Equal(t, guest.KindLong, rt.KindOf(sum))
	assert.Equal(t, "9223372036854775808", rt.LongValue(sum).String())
}

func TestDictKeys(t *testing.T) {
	rt := newRuntime(t)
	d := rt.NewDict()

	k1 := rt.TuplePack(rt.NewInt(1), rt.NewStr("2"))
	k2 := rt.TuplePack(rt.NewInt(1), rt.NewStr("2"))
	v := rt.NewInt(4)
	require.Equal(t, 0, rt.DictSetItem(d, k1, v))

	got := rt.DictGetItem(d, k2)
	require.NotEqual(t, guest.Null, got, "equal tuples address the same entry")
	assert.Equal(t, int64(4), rt.IntValue(got))

	require.Equal(t, 0, rt.DictSetItem(d, rt.NewInt(1), rt.NewStr("int")))
	got = rt.DictGetItem(d, rt.NewFloat(1.0))
	require.NotEqual(t, guest.Null, got, "1.0 hashes like 1")
	assert.Equal(t, "int", rt.StrValue(got))
	assert.Equal(t, 2, rt.DictSize(d))

	var keys []guest.Token
	pos := 0
	for {
		k, _, ok := rt.DictNext(d, &pos)
		if !ok {
			break
		}
		keys = append(keys, k)
	}
	assert.Len(t, keys, 2)
	assert.Equal(t, guest.KindTuple, rt.KindOf(keys[0]))
}

func TestUnhashableKey(t *testing.T) {
	rt := newRuntime(t)
	d := rt.NewDict()
	assert.Equal(t, -1, rt.DictSetItem(d, rt.NewList(0), rt.None()))
	assert.Equal(t, "TypeError: unhashable type: 'list'", fetchMessage(t, rt))
}

func TestImportErrors(t *testing.T) {
	rt := newRuntime(t)
	assert.Equal(t, guest.Null, rt.Import("nosuchmodule"))
	assert.True(t, rt.ErrMatches(rt.Exc.ImportError))
	assert.True(t, rt.ErrMatches(rt.Exc.StandardError))
	assert.Equal(t, "ImportError: No module named nosuchmodule", fetchMessage(t, rt))
	assert.Equal(t, guest.Null, rt.ErrOccurred())
}

func TestImportCachesModules(t *testing.T) {
	rt := newRuntime(t)
	a := rt.Import("string")
	b := rt.Import("string")
	require.NotEqual(t, guest.Null, a)
	assert.Equal(t, a, b)
	assert.Equal(t, "string", rt.ModuleName(a))

	letters := rt.GetAttr(a, "ascii_letters")
	require.NotEqual(t, guest.Null, letters)
	assert.Equal(t, "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ", rt.StrValue(letters))

	assert.Equal(t, rt.Import("__builtin__"), rt.Import("builtins"))
}

func TestDefineModule(t *testing.T) {
	rt := guest.New()
	rt.DefineModule("greet", func(rt *guest.Runtime, m *guest.Module) error {
		m.Set("greeting", rt.NewStr("hi"))
		m.Func("shout", func(rt *guest.Runtime, _, args guest.Token) guest.Token {
			s, _ := rt.StrString(rt.Args(args)[0])
			return rt.NewStr(s + "!")
		})
		return nil
	})
	require.NoError(t, rt.Initialize())
	defer rt.Finalize()

	assert.Contains(t, rt.Modules(), "greet")
	m := rt.Import("greet")
	require.NotEqual(t, guest.Null, m)
	r := rt.CallMethod(m, "shout", rt.NewStr("hey"))
	require.NotEqual(t, guest.Null, r)
	assert.Equal(t, "hey!", rt.StrValue(r))
}

func TestAttributeErrors(t *testing.T) {
	rt := newRuntime(t)
	m := rt.Import("string")
	assert.Equal(t, guest.Null, rt.GetAttr(m, "nope"))
	assert.Equal(t, "AttributeError: 'module' object has no attribute 'nope'", fetchMessage(t, rt))

	assert.Equal(t, guest.Null, rt.GetAttr(rt.NewInt(1), "nope"))
	assert.Equal(t, "AttributeError: 'int' object has no attribute 'nope'", fetchMessage(t, rt))

	assert.False(t, rt.HasAttr(m, "nope"))
	assert.Equal(t, guest.Null, rt.ErrOccurred())
	assert.True(t, rt.HasAttr(m, "digits"))
}

func TestCallErrors(t *testing.T) {
	rt := newRuntime(t)
	assert.Equal(t, guest.Null, rt.Call(rt.NewInt(3), guest.Null))
	assert.Equal(t, "TypeError: 'int' object is not callable", fetchMessage(t, rt))
	assert.False(t, rt.CallableCheck(rt.NewInt(3)))
}

func TestNativeFuncContract(t *testing.T) {
	rt := newRuntime(t)
	bad := rt.NewCFunction("bad", func(rt *guest.Runtime, _, _ guest.Token) guest.Token {
		return guest.Null
	})
	assert.Equal(t, guest.Null, rt.Call(bad, guest.Null))
	assert.True(t, rt.ErrMatches(rt.Exc.SystemError))
	rt.ErrClear()
}

func TestClassesAndBoundMethods(t *testing.T) {
	rt := newRuntime(t)
	cls := rt.NewClass(guest.ClassDef{
		Name:   "Counter",
		Module: "test",
		Methods: map[string]guest.NativeFunc{
			"__init__": func(rt *guest.Runtime, self, args guest.Token) guest.Token {
				rt.SetAttr(self, "n", rt.NewInt(0))
				return rt.ReturnNone()
			},
			"bump": func(rt *guest.Runtime, self, args guest.Token) guest.Token {
				n := rt.GetAttr(self, "n")
				next := rt.NewInt(rt.IntValue(n) + 1)
				rt.DecRef(n)
				rt.SetAttr(self, "n", next)
				return next
			},
		},
	})
	require.NotEqual(t, guest.Null, cls)
	assert.True(t, rt.IsType(cls))

	inst := rt.Call(cls, guest.Null)
	require.NotEqual(t, guest.Null, inst)
	assert.Equal(t, guest.KindInstance, rt.KindOf(inst))
	assert.True(t, rt.IsInstance(inst, cls))

	rt.CallMethod(inst, "bump")
	r := rt.CallMethod(inst, "bump")
	assert.Equal(t, int64(2), rt.IntValue(r))

	repr, ok := rt.StrString(inst)
	require.True(t, ok)
	assert.Contains(t, repr, "<test.Counter object at 0x")

	names := rt.Dir(inst)
	found := map[string]bool{}
	for i := 0; i < rt.ListSize(names); i++ {
		found[rt.StrValue(rt.ListGetItem(names, i))] = true
	}
	assert.True(t, found["bump"])
	assert.True(t, found["n"])
	assert.True(t, found["__class__"])
}

func TestCallIter(t *testing.T) {
	rt := newRuntime(t)
	calls := 0
	fn := rt.NewCFunction("step", func(rt *guest.Runtime, _, _ guest.Token) guest.Token {
		calls++
		if calls > 2 {
			rt.ErrSetNone(rt.Exc.StopIteration)
			return guest.Null
		}
		return rt.NewInt(int64(calls))
	})
	it := rt.CallIter(fn, guest.Null)

	v := rt.IterNext(it)
	assert.Equal(t, int64(1), rt.IntValue(v))
	v = rt.IterNext(it)
	assert.Equal(t, int64(2), rt.IntValue(v))
	assert.Equal(t, guest.Null, rt.IterNext(it))
	assert.Equal(t, guest.Null, rt.ErrOccurred())
	assert.Equal(t, guest.Null, rt.IterNext(it))
	assert.Equal(t, 3, calls, "an exhausted iterator does not call again")

	r := rt.CallMethod(it, "next")
	assert.Equal(t, guest.Null, r)
	assert.True(t, rt.ErrMatches(rt.Exc.StopIteration))
	rt.ErrClear()
}
