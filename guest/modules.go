package guest

import (
	"errors"
	"math"
	"sort"
	"strings"
)

// ModuleFunc populates a module the first time it is imported. Returning
// an error aborts the import; if no exception is pending, ImportError is
// raised with the error's text.
type ModuleFunc func(rt *Runtime, m *Module) error

// Module is the builder handed to a ModuleFunc.
type Module struct {
	rt  *Runtime
	tok Token
}

// Token returns the module object (borrowed).
func (m *Module) Token() Token { return m.tok }

// Name returns the module's import name.
func (m *Module) Name() string { return m.rt.ModuleName(m.tok) }

// Set binds name to v, stealing the reference to v.
func (m *Module) Set(name string, v Token) {
	attrs := m.rt.get(m.tok, "module").payload.(*moduleData).attrs
	old := attrs[name]
	attrs[name] = v
	m.rt.DecRef(old)
}

// Func binds name to a builtin function.
func (m *Module) Func(name string, fn NativeFunc) {
	m.Set(name, m.rt.NewCFunction(name, fn))
}

// Class creates a class in this module and binds it. The returned token is
// borrowed from the module.
func (m *Module) Class(def ClassDef) (Token, error) {
	if def.Module == "" {
		def.Module = m.Name()
	}
	cls := m.rt.NewClass(def)
	if cls == Null {
		return Null, errors.New(m.rt.pendingMessage())
	}
	m.Set(def.Name, cls)
	return cls, nil
}

// DefineModule registers a module builder under name, replacing any
// previous builder. Already imported modules are not rebuilt.
func (rt *Runtime) DefineModule(name string, fn ModuleFunc) {
	if _, ok := rt.builders[name]; !ok {
		rt.order = append(rt.order, name)
	}
	rt.builders[name] = fn
}

// Modules returns the names of all importable modules, sorted.
func (rt *Runtime) Modules() []string {
	names := append([]string(nil), rt.order...)
	sort.Strings(names)
	return names
}

// Import returns the named module, building it on first use. Returns Null
// with ImportError set if no such module exists.
func (rt *Runtime) Import(name string) Token {
	if name == "builtins" {
		name = "__builtin__"
	}
	if t, ok := rt.modules[name]; ok {
		rt.IncRef(t)
		return t
	}
	build, ok := rt.builders[name]
	if !ok {
		rt.ErrFormat(rt.Exc.ImportError, "No module named %s", name)
		return Null
	}
	tok := rt.alloc(rt.types.module, &moduleData{name: name, attrs: map[string]Token{}})
	if err := build(rt, &Module{rt: rt, tok: tok}); err != nil {
		rt.DecRef(tok)
		if rt.ErrOccurred() == Null {
			rt.ErrFormat(rt.Exc.ImportError, "%s: %v", name, err)
		}
		return Null
	}
	rt.modules[name] = tok
	rt.IncRef(tok)
	return tok
}

// Builtins returns the builtins module (borrowed).
func (rt *Runtime) Builtins() Token { return rt.builtins }

func registerStdlib(rt *Runtime) {
	rt.DefineModule("__builtin__", buildBuiltins)
	rt.DefineModule("operator", buildOperator)
	rt.DefineModule("string", buildString)
	rt.DefineModule("math", buildMath)
	rt.DefineModule("fractions", buildFractions)
	rt.DefineModule("urllib2", buildURLLib2)
}

func buildBuiltins(rt *Runtime, m *Module) error {
	t := &rt.types
	for name, typ := range map[string]Token{
		"type": t.typ, "object": t.object, "str": t.str, "int": t.int_,
		"long": t.long, "float": t.float, "bool": t.bool_, "list": t.list,
		"tuple": t.tuple, "dict": t.dict,
	} {
		rt.IncRef(typ)
		m.Set(name, typ)
	}
	for _, e := range rt.Exc.all() {
		rt.IncRef(e.tok)
		m.Set(e.name, e.tok)
	}
	m.Set("None", rt.ReturnNone())
	m.Set("True", rt.ReturnBool(true))
	m.Set("False", rt.ReturnBool(false))
	rt.IncRef(rt.notImpl)
	m.Set("NotImplemented", rt.notImpl)

	m.Func("len", fn1("len", func(rt *Runtime, o Token) Token {
		n := rt.Len(o)
		if n < 0 {
			return Null
		}
		return rt.NewInt(int64(n))
	}))
	m.Func("repr", fn1("repr", (*Runtime).Repr))
	m.Func("abs", fn1("abs", func(rt *Runtime, o Token) Token { return rt.Unary(o, OpAbs) }))
	m.Func("cmp", fn2("cmp", func(rt *Runtime, a, b Token) Token {
		c := rt.Compare(a, b)
		if rt.ErrOccurred() != Null {
			return Null
		}
		return rt.NewInt(int64(c))
	}))
	m.Func("callable", fn1("callable", func(rt *Runtime, o Token) Token {
		return rt.ReturnBool(rt.CallableCheck(o))
	}))
	m.Func("dir", fn1("dir", (*Runtime).Dir))
	m.Func("iter", builtinIter)
	m.Func("next", builtinNext)
	m.Func("getattr", builtinGetattr)
	m.Func("hasattr", fn2("hasattr", func(rt *Runtime, o, name Token) Token {
		s, ok := strArg(rt, "hasattr", name)
		if !ok {
			return Null
		}
		return rt.ReturnBool(rt.HasAttr(o, s))
	}))
	m.Func("setattr", func(rt *Runtime, _, args Token) Token {
		items := rt.Args(args)
		if !rt.arity("setattr", items, 3, 3) {
			return Null
		}
		s, ok := strArg(rt, "setattr", items[1])
		if !ok || rt.SetAttr(items[0], s, items[2]) < 0 {
			return Null
		}
		return rt.ReturnNone()
	})
	m.Func("isinstance", fn2("isinstance", builtinIsinstance))
	m.Func("apply", builtinApply)
	m.Func("map", fn2("map", builtinMap))
	m.Func("range", builtinRange)
	m.Func("sum", builtinSum)
	return nil
}

func fn1(name string, f func(rt *Runtime, a Token) Token) NativeFunc {
	return func(rt *Runtime, _, args Token) Token {
		items := rt.Args(args)
		if !rt.arity(name, items, 1, 1) {
			return Null
		}
		return f(rt, items[0])
	}
}

func fn2(name string, f func(rt *Runtime, a, b Token) Token) NativeFunc {
	return func(rt *Runtime, _, args Token) Token {
		items := rt.Args(args)
		if !rt.arity(name, items, 2, 2) {
			return Null
		}
		return f(rt, items[0], items[1])
	}
}

func builtinIter(rt *Runtime, _, args Token) Token {
	items := rt.Args(args)
	if !rt.arity("iter", items, 1, 2) {
		return Null
	}
	if len(items) == 1 {
		return rt.Iter(items[0])
	}
	if !rt.CallableCheck(items[0]) {
		rt.ErrSetString(rt.Exc.TypeError, "iter(v, w): v must be callable")
		return Null
	}
	return rt.CallIter(items[0], items[1])
}

func builtinNext(rt *Runtime, _, args Token) Token {
	items := rt.Args(args)
	if !rt.arity("next", items, 1, 2) {
		return Null
	}
	k := rt.KindOf(items[0])
	if k != KindIterator && k != KindInstance {
		rt.ErrFormat(rt.Exc.TypeError, "%s object is not an iterator", rt.TypeName(items[0]))
		return Null
	}
	r := rt.IterNext(items[0])
	if r != Null || rt.ErrOccurred() != Null {
		return r
	}
	if len(items) == 2 {
		rt.IncRef(items[1])
		return items[1]
	}
	rt.ErrSetNone(rt.Exc.StopIteration)
	return Null
}

func builtinGetattr(rt *Runtime, _, args Token) Token {
	items := rt.Args(args)
	if !rt.arity("getattr", items, 2, 3) {
		return Null
	}
	name, ok := strArg(rt, "getattr", items[1])
	if !ok {
		return Null
	}
	r := rt.GetAttr(items[0], name)
	if r == Null && len(items) == 3 && rt.ErrMatches(rt.Exc.AttributeError) {
		rt.ErrClear()
		rt.IncRef(items[2])
		return items[2]
	}
	return r
}

func builtinIsinstance(rt *Runtime, o, cls Token) Token {
	if rt.KindOf(cls) == KindTuple {
		for _, c := range rt.tuple(cls).items {
			if rt.IsType(c) && rt.IsInstance(o, c) {
				return rt.ReturnBool(true)
			}
		}
		return rt.ReturnBool(false)
	}
	if !rt.IsType(cls) {
		rt.ErrSetString(rt.Exc.TypeError, "isinstance() arg 2 must be a class, type, or tuple of classes and types")
		return Null
	}
	return rt.ReturnBool(rt.IsInstance(o, cls))
}

func builtinApply(rt *Runtime, _, args Token) Token {
	items := rt.Args(args)
	if !rt.arity("apply", items, 1, 2) {
		return Null
	}
	if len(items) == 1 {
		return rt.Call(items[0], Null)
	}
	tup := rt.SequenceTuple(items[1])
	if tup == Null {
		return Null
	}
	defer rt.DecRef(tup)
	return rt.Call(items[0], tup)
}

func builtinMap(rt *Runtime, fn, seq Token) Token {
	items, ok := rt.collect(seq)
	if !ok {
		return Null
	}
	defer rt.decAll(items)
	out := rt.NewList(len(items))
	for i, it := range items {
		var r Token
		if fn == rt.none {
			rt.IncRef(it)
			r = it
		} else if r = rt.CallObject(fn, it); r == Null {
			rt.DecRef(out)
			return Null
		}
		rt.ListSetItem(out, i, r)
	}
	return out
}

func builtinRange(rt *Runtime, _, args Token) Token {
	items := rt.Args(args)
	if !rt.arity("range", items, 1, 3) {
		return Null
	}
	vals := make([]int64, len(items))
	for i, it := range items {
		v, ok := rt.AsInt64(it)
		if !ok {
			rt.ErrFormat(rt.Exc.TypeError, "range() integer argument expected, got %s.", rt.TypeName(it))
			return Null
		}
		vals[i] = v
	}
	start, stop, step := int64(0), vals[0], int64(1)
	if len(vals) > 1 {
		start, stop = vals[0], vals[1]
	}
	if len(vals) == 3 {
		step = vals[2]
	}
	if step == 0 {
		rt.ErrSetString(rt.Exc.ValueError, "range() step argument must not be zero")
		return Null
	}
	l := rt.NewList(0)
	for i := start; (step > 0 && i < stop) || (step < 0 && i > stop); i += step {
		v := rt.NewInt(i)
		rt.ListAppend(l, v)
		rt.DecRef(v)
	}
	return l
}

func builtinSum(rt *Runtime, _, args Token) Token {
	items := rt.Args(args)
	if !rt.arity("sum", items, 1, 2) {
		return Null
	}
	var acc Token
	if len(items) == 2 {
		acc = items[1]
		rt.IncRef(acc)
	} else {
		acc = rt.NewInt(0)
	}
	vals, ok := rt.collect(items[0])
	if !ok {
		rt.DecRef(acc)
		return Null
	}
	defer rt.decAll(vals)
	for _, v := range vals {
		next := rt.Binary(acc, v, OpAdd)
		rt.DecRef(acc)
		if next == Null {
			return Null
		}
		acc = next
	}
	return acc
}

func buildOperator(rt *Runtime, m *Module) error {
	binary := map[string]BinaryOp{
		"add": OpAdd, "sub": OpSub, "mul": OpMul, "div": OpDiv, "mod": OpMod,
		"pow": OpPow, "and_": OpAnd, "or_": OpOr, "xor": OpXor,
		"lshift": OpLShift, "rshift": OpRShift,
	}
	for name, op := range binary {
		op := op
		m.Func(name, fn2(name, func(rt *Runtime, a, b Token) Token { return rt.Binary(a, b, op) }))
	}
	unary := map[string]UnaryOp{"neg": OpNeg, "pos": OpPos, "invert": OpInvert, "inv": OpInvert, "abs": OpAbs}
	for name, op := range unary {
		op := op
		m.Func(name, fn1(name, func(rt *Runtime, a Token) Token { return rt.Unary(a, op) }))
	}
	compare := map[string]CompareOp{"lt": OpLt, "le": OpLe, "eq": OpEq, "ne": OpNe, "gt": OpGt, "ge": OpGe}
	for name, op := range compare {
		op := op
		m.Func(name, fn2(name, func(rt *Runtime, a, b Token) Token { return rt.RichCompare(a, b, op) }))
	}
	m.Func("contains", fn2("contains", func(rt *Runtime, a, b Token) Token {
		r := rt.Contains(a, b)
		if r < 0 {
			return Null
		}
		return rt.ReturnBool(r == 1)
	}))
	m.Func("getitem", fn2("getitem", (*Runtime).GetItem))
	m.Func("setitem", func(rt *Runtime, _, args Token) Token {
		items := rt.Args(args)
		if !rt.arity("setitem", items, 3, 3) || rt.SetItem(items[0], items[1], items[2]) < 0 {
			return Null
		}
		return rt.ReturnNone()
	})
	m.Func("delitem", fn2("delitem", func(rt *Runtime, a, b Token) Token {
		if rt.DelItem(a, b) < 0 {
			return Null
		}
		return rt.ReturnNone()
	}))
	m.Func("truth", fn1("truth", func(rt *Runtime, a Token) Token {
		r := rt.IsTrue(a)
		if r < 0 {
			return Null
		}
		return rt.ReturnBool(r == 1)
	}))
	m.Func("not_", fn1("not_", func(rt *Runtime, a Token) Token {
		r := rt.IsTrue(a)
		if r < 0 {
			return Null
		}
		return rt.ReturnBool(r == 0)
	}))
	return nil
}

const (
	asciiLower = "abcdefghijklmnopqrstuvwxyz"
	asciiUpper = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
)

func buildString(rt *Runtime, m *Module) error {
	m.Set("ascii_lowercase", rt.NewStr(asciiLower))
	m.Set("ascii_uppercase", rt.NewStr(asciiUpper))
	m.Set("ascii_letters", rt.NewStr(asciiLower+asciiUpper))
	m.Set("letters", rt.NewStr(asciiLower+asciiUpper))
	m.Set("digits", rt.NewStr("0123456789"))
	m.Set("hexdigits", rt.NewStr("0123456789abcdefABCDEF"))
	m.Set("whitespace", rt.NewStr(whitespace))

	strFunc := func(name string, f func(string) string) {
		m.Func(name, fn1(name, func(rt *Runtime, a Token) Token {
			s, ok := strArg(rt, name, a)
			if !ok {
				return Null
			}
			return rt.NewStr(f(s))
		}))
	}
	strFunc("upper", strings.ToUpper)
	strFunc("lower", strings.ToLower)
	strFunc("strip", strings.TrimSpace)
	strFunc("capwords", func(s string) string {
		words := splitFields(s, -1)
		for i, w := range words {
			words[i] = strings.ToUpper(w[:1]) + strings.ToLower(w[1:])
		}
		return strings.Join(words, " ")
	})
	m.Func("join", func(rt *Runtime, _, args Token) Token {
		items := rt.Args(args)
		if !rt.arity("join", items, 1, 2) {
			return Null
		}
		var sep Token
		if len(items) == 2 {
			sep = items[1]
			rt.IncRef(sep)
		} else {
			sep = rt.NewStr(" ")
		}
		defer rt.DecRef(sep)
		return rt.CallMethod(sep, "join", items[0])
	})
	return nil
}

func buildMath(rt *Runtime, m *Module) error {
	m.Set("pi", rt.NewFloat(math.Pi))
	m.Set("e", rt.NewFloat(math.E))

	floatFunc := func(name string, f func(float64) (float64, bool)) {
		m.Func(name, fn1(name, func(rt *Runtime, a Token) Token {
			x, ok := rt.AsFloat(a)
			if !ok {
				rt.ErrSetString(rt.Exc.TypeError, "a float is required")
				return Null
			}
			r, ok := f(x)
			if !ok {
				rt.ErrSetString(rt.Exc.ValueError, "math domain error")
				return Null
			}
			return rt.NewFloat(r)
		}))
	}
	floatFunc("sqrt", func(x float64) (float64, bool) { return math.Sqrt(x), x >= 0 })
	floatFunc("floor", func(x float64) (float64, bool) { return math.Floor(x), true })
	floatFunc("ceil", func(x float64) (float64, bool) { return math.Ceil(x), true })
	floatFunc("fabs", func(x float64) (float64, bool) { return math.Abs(x), true })
	floatFunc("exp", func(x float64) (float64, bool) { return math.Exp(x), true })
	floatFunc("log", func(x float64) (float64, bool) { return math.Log(x), x > 0 })
	m.Func("pow", fn2("pow", func(rt *Runtime, a, b Token) Token {
		x, ok1 := rt.AsFloat(a)
		y, ok2 := rt.AsFloat(b)
		if !ok1 || !ok2 {
			rt.ErrSetString(rt.Exc.TypeError, "a float is required")
			return Null
		}
		r := math.Pow(x, y)
		if math.IsNaN(r) {
			rt.ErrSetString(rt.Exc.ValueError, "math domain error")
			return Null
		}
		return rt.NewFloat(r)
	}))
	return nil
}
