package guest

import (
	"fmt"
	"sort"
	"strings"
)

func method0(name string, f func(rt *Runtime, self Token) Token) NativeFunc {
	return func(rt *Runtime, self, args Token) Token {
		if !rt.arity(name, rt.Args(args), 0, 0) {
			return Null
		}
		return f(rt, self)
	}
}

func method1(name string, f func(rt *Runtime, self, arg Token) Token) NativeFunc {
	return func(rt *Runtime, self, args Token) Token {
		items := rt.Args(args)
		if !rt.arity(name, items, 1, 1) {
			return Null
		}
		return f(rt, self, items[0])
	}
}

func method2(name string, f func(rt *Runtime, self, a, b Token) Token) NativeFunc {
	return func(rt *Runtime, self, args Token) Token {
		items := rt.Args(args)
		if !rt.arity(name, items, 2, 2) {
			return Null
		}
		return f(rt, self, items[0], items[1])
	}
}

func (rt *Runtime) define(typ Token, methods map[string]NativeFunc) {
	td := rt.typeData(typ)
	for name, fn := range methods {
		old := td.attrs[name]
		td.attrs[name] = rt.newMethod(name, fn)
		rt.DecRef(old)
	}
}

func (rt *Runtime) installMethods() {
	t := &rt.types
	rt.define(t.object, objectMethods)
	rt.define(t.int_, numberMethods())
	rt.define(t.long, numberMethods())
	rt.define(t.float, numberMethods())
	rt.define(t.str, strMethods)
	rt.define(t.list, listMethods)
	rt.define(t.tuple, tupleMethods)
	rt.define(t.dict, dictMethods)
	rt.define(t.iterator, iteratorMethods)
	rt.define(rt.Exc.BaseException, exceptionMethods)
}

// protocol methods shared by the builtin containers
var (
	lenMethod = method0("__len__", func(rt *Runtime, self Token) Token {
		n := rt.Len(self)
		if n < 0 {
			return Null
		}
		return rt.NewInt(int64(n))
	})
	getItemMethod = method1("__getitem__", func(rt *Runtime, self, key Token) Token {
		return rt.GetItem(self, key)
	})
	setItemMethod = method2("__setitem__", func(rt *Runtime, self, key, v Token) Token {
		if rt.SetItem(self, key, v) < 0 {
			return Null
		}
		return rt.ReturnNone()
	})
	delItemMethod = method1("__delitem__", func(rt *Runtime, self, key Token) Token {
		if rt.DelItem(self, key) < 0 {
			return Null
		}
		return rt.ReturnNone()
	})
	containsMethod = method1("__contains__", func(rt *Runtime, self, item Token) Token {
		r := rt.Contains(self, item)
		if r < 0 {
			return Null
		}
		return rt.ReturnBool(r == 1)
	})
	iterMethod = method0("__iter__", func(rt *Runtime, self Token) Token {
		return rt.Iter(self)
	})
)

var objectMethods = map[string]NativeFunc{
	"__init__": func(rt *Runtime, _, _ Token) Token { return rt.ReturnNone() },
	"__str__":  method0("__str__", objectRepr),
	"__repr__": method0("__repr__", objectRepr),
}

func objectRepr(rt *Runtime, self Token) Token {
	if rt.KindOf(self) == KindInstance {
		td := rt.typeData(rt.TypeOf(self))
		name := td.name
		if td.module != "" {
			name = td.module + "." + name
		}
		return rt.NewStr(fmt.Sprintf("<%s object at %#x>", name, uintptr(self)))
	}
	s, ok := rt.format(self, true)
	if !ok {
		return Null
	}
	return rt.NewStr(s)
}

func numberMethods() map[string]NativeFunc {
	m := map[string]NativeFunc{}
	for op := OpAdd; op <= OpRShift; op++ {
		op := op
		m[op.Special()] = method1(op.Special(), func(rt *Runtime, self, other Token) Token {
			return rt.numberOp(op, self, other)
		})
	}
	for op := OpNeg; op <= OpAbs; op++ {
		op := op
		m[op.Special()] = method0(op.Special(), func(rt *Runtime, self Token) Token {
			return rt.numberUnary(op, self)
		})
	}
	return m
}

func strArg(rt *Runtime, fname string, t Token) (string, bool) {
	s, ok := rt.AsString(t)
	if !ok {
		rt.ErrFormat(rt.Exc.TypeError, "%s() argument must be str, not %s", fname, rt.TypeName(t))
	}
	return s, ok
}

func strUnary(name string, f func(string) string) NativeFunc {
	return method0(name, func(rt *Runtime, self Token) Token {
		return rt.NewStr(f(rt.StrValue(self)))
	})
}

func strPredicate(name string, f func(s, arg string) bool) NativeFunc {
	return method1(name, func(rt *Runtime, self, arg Token) Token {
		a, ok := strArg(rt, name, arg)
		if !ok {
			return Null
		}
		return rt.ReturnBool(f(rt.StrValue(self), a))
	})
}

func strStrip(name string, trim func(s, cutset string) string, space func(string) string) NativeFunc {
	return func(rt *Runtime, self, args Token) Token {
		items := rt.Args(args)
		if !rt.arity(name, items, 0, 1) {
			return Null
		}
		s := rt.StrValue(self)
		if len(items) == 0 || items[0] == rt.none {
			return rt.NewStr(space(s))
		}
		cut, ok := strArg(rt, name, items[0])
		if !ok {
			return Null
		}
		return rt.NewStr(trim(s, cut))
	}
}

const whitespace = " \t\n\r\v\f"

// splitFields splits on runs of whitespace into at most limit fields; the
// last field keeps the unsplit remainder. limit < 0 means no limit.
func splitFields(s string, limit int) []string {
	var out []string
	s = strings.TrimLeft(s, whitespace)
	for s != "" {
		if limit > 0 && len(out) == limit-1 {
			out = append(out, strings.TrimRight(s, whitespace))
			break
		}
		end := strings.IndexAny(s, whitespace)
		if end < 0 {
			out = append(out, s)
			break
		}
		out = append(out, s[:end])
		s = strings.TrimLeft(s[end:], whitespace)
	}
	return out
}

func (rt *Runtime) stringList(parts []string) Token {
	l := rt.NewList(len(parts))
	for i, p := range parts {
		rt.ListSetItem(l, i, rt.NewStr(p))
	}
	return l
}

var strMethods = map[string]NativeFunc{
	"upper": strUnary("upper", strings.ToUpper),
	"lower": strUnary("lower", strings.ToLower),
	"strip": strStrip("strip", strings.Trim, strings.TrimSpace),
	"lstrip": strStrip("lstrip", strings.TrimLeft, func(s string) string {
		return strings.TrimLeft(s, whitespace)
	}),
	"rstrip": strStrip("rstrip", strings.TrimRight, func(s string) string {
		return strings.TrimRight(s, whitespace)
	}),
	"startswith": strPredicate("startswith", strings.HasPrefix),
	"endswith":   strPredicate("endswith", strings.HasSuffix),
	"split": func(rt *Runtime, self, args Token) Token {
		items := rt.Args(args)
		if !rt.arity("split", items, 0, 2) {
			return Null
		}
		s := rt.StrValue(self)
		limit := -1
		if len(items) == 2 {
			n, ok := rt.AsInt64(items[1])
			if !ok {
				rt.ErrSetString(rt.Exc.TypeError, "split() maxsplit must be an integer")
				return Null
			}
			if n >= 0 {
				limit = int(n) + 1
			}
		}
		if len(items) == 0 || items[0] == rt.none {
			return rt.stringList(splitFields(s, limit))
		}
		sep, ok := strArg(rt, "split", items[0])
		if !ok {
			return Null
		}
		if sep == "" {
			rt.ErrSetString(rt.Exc.ValueError, "empty separator")
			return Null
		}
		return rt.stringList(strings.SplitN(s, sep, limit))
	},
	"join": method1("join", func(rt *Runtime, self, seq Token) Token {
		items, ok := rt.collect(seq)
		if !ok {
			return Null
		}
		defer rt.decAll(items)
		parts := make([]string, len(items))
		for i, it := range items {
			s, ok := rt.AsString(it)
			if !ok {
				rt.ErrFormat(rt.Exc.TypeError, "sequence item %d: expected string, %s found", i, rt.TypeName(it))
				return Null
			}
			parts[i] = s
		}
		return rt.NewStr(strings.Join(parts, rt.StrValue(self)))
	}),
	"replace": method2("replace", func(rt *Runtime, self, old, repl Token) Token {
		o, ok := strArg(rt, "replace", old)
		if !ok {
			return Null
		}
		r, ok := strArg(rt, "replace", repl)
		if !ok {
			return Null
		}
		return rt.NewStr(strings.ReplaceAll(rt.StrValue(self), o, r))
	}),
	"find": method1("find", func(rt *Runtime, self, sub Token) Token {
		s, ok := strArg(rt, "find", sub)
		if !ok {
			return Null
		}
		return rt.NewInt(int64(strings.Index(rt.StrValue(self), s)))
	}),
	"count": method1("count", func(rt *Runtime, self, sub Token) Token {
		s, ok := strArg(rt, "count", sub)
		if !ok {
			return Null
		}
		return rt.NewInt(int64(strings.Count(rt.StrValue(self), s)))
	}),
	"__add__": method1("__add__", func(rt *Runtime, self, other Token) Token {
		s, ok := rt.AsString(other)
		if !ok {
			rt.ErrFormat(rt.Exc.TypeError, "cannot concatenate 'str' and '%s' objects", rt.TypeName(other))
			return Null
		}
		return rt.NewStr(rt.StrValue(self) + s)
	}),
	"__mul__": method1("__mul__", func(rt *Runtime, self, n Token) Token {
		count, ok := rt.AsInt64(n)
		if !ok {
			rt.ErrFormat(rt.Exc.TypeError, "can't multiply sequence by non-int of type '%s'", rt.TypeName(n))
			return Null
		}
		if count < 0 {
			count = 0
		}
		return rt.NewStr(strings.Repeat(rt.StrValue(self), int(count)))
	}),
	"__len__":      lenMethod,
	"__getitem__":  getItemMethod,
	"__contains__": containsMethod,
	"__iter__":     iterMethod,
}

func (rt *Runtime) indexOf(items []Token, x Token, what string) Token {
	for i, it := range items {
		switch rt.RichCompareBool(it, x, OpEq) {
		case 1:
			return rt.NewInt(int64(i))
		case -1:
			return Null
		}
	}
	rt.ErrFormat(rt.Exc.ValueError, "%s.index(x): x not in %s", what, what)
	return Null
}

func (rt *Runtime) countOf(items []Token, x Token) Token {
	n := 0
	for _, it := range items {
		switch rt.RichCompareBool(it, x, OpEq) {
		case 1:
			n++
		case -1:
			return Null
		}
	}
	return rt.NewInt(int64(n))
}

func concatItems(rt *Runtime, a, b []Token) []Token {
	out := make([]Token, 0, len(a)+len(b))
	for _, t := range a {
		rt.IncRef(t)
		out = append(out, t)
	}
	for _, t := range b {
		rt.IncRef(t)
		out = append(out, t)
	}
	return out
}

var listMethods = map[string]NativeFunc{
	"append": method1("append", func(rt *Runtime, self, v Token) Token {
		rt.ListAppend(self, v)
		return rt.ReturnNone()
	}),
	"extend": method1("extend", func(rt *Runtime, self, seq Token) Token {
		items, ok := rt.collect(seq)
		if !ok {
			return Null
		}
		ld := rt.list(self)
		ld.items = append(ld.items, items...)
		return rt.ReturnNone()
	}),
	"pop": func(rt *Runtime, self, args Token) Token {
		items := rt.Args(args)
		if !rt.arity("pop", items, 0, 1) {
			return Null
		}
		ld := rt.list(self)
		if len(ld.items) == 0 {
			rt.ErrSetString(rt.Exc.IndexError, "pop from empty list")
			return Null
		}
		i := len(ld.items) - 1
		if len(items) == 1 {
			idx, ok := rt.seqIndex(self, items[0], len(ld.items), "pop")
			if !ok {
				return Null
			}
			i = idx
		}
		v := ld.items[i]
		ld.items = append(ld.items[:i], ld.items[i+1:]...)
		return v
	},
	"insert": method2("insert", func(rt *Runtime, self, at, v Token) Token {
		i, ok := rt.AsInt64(at)
		if !ok {
			rt.ErrSetString(rt.Exc.TypeError, "an integer is required")
			return Null
		}
		ld := rt.list(self)
		n := int64(len(ld.items))
		if i < 0 {
			i = max(i+n, 0)
		}
		i = min(i, n)
		rt.IncRef(v)
		ld.items = append(ld.items, Null)
		copy(ld.items[i+1:], ld.items[i:])
		ld.items[i] = v
		return rt.ReturnNone()
	}),
	"index": method1("index", func(rt *Runtime, self, x Token) Token {
		return rt.indexOf(rt.list(self).items, x, "list")
	}),
	"count": method1("count", func(rt *Runtime, self, x Token) Token {
		return rt.countOf(rt.list(self).items, x)
	}),
	"reverse": method0("reverse", func(rt *Runtime, self Token) Token {
		items := rt.list(self).items
		for i, j := 0, len(items)-1; i < j; i, j = i+1, j-1 {
			items[i], items[j] = items[j], items[i]
		}
		return rt.ReturnNone()
	}),
	"sort": method0("sort", func(rt *Runtime, self Token) Token {
		items := rt.list(self).items
		failed := false
		sort.SliceStable(items, func(i, j int) bool {
			if failed {
				return false
			}
			r := rt.RichCompareBool(items[i], items[j], OpLt)
			if r < 0 {
				failed = true
			}
			return r == 1
		})
		if failed {
			return Null
		}
		return rt.ReturnNone()
	}),
	"__add__": method1("__add__", func(rt *Runtime, self, other Token) Token {
		if rt.KindOf(other) != KindList {
			rt.ErrFormat(rt.Exc.TypeError, "can only concatenate list (not \"%s\") to list", rt.TypeName(other))
			return Null
		}
		items := concatItems(rt, rt.list(self).items, rt.list(other).items)
		return rt.alloc(rt.types.list, &listData{items: items})
	}),
	"__len__":      lenMethod,
	"__getitem__":  getItemMethod,
	"__setitem__":  setItemMethod,
	"__delitem__":  delItemMethod,
	"__contains__": containsMethod,
	"__iter__":     iterMethod,
}

var tupleMethods = map[string]NativeFunc{
	"index": method1("index", func(rt *Runtime, self, x Token) Token {
		return rt.indexOf(rt.tuple(self).items, x, "tuple")
	}),
	"count": method1("count", func(rt *Runtime, self, x Token) Token {
		return rt.countOf(rt.tuple(self).items, x)
	}),
	"__add__": method1("__add__", func(rt *Runtime, self, other Token) Token {
		if rt.KindOf(other) != KindTuple {
			rt.ErrFormat(rt.Exc.TypeError, "can only concatenate tuple (not \"%s\") to tuple", rt.TypeName(other))
			return Null
		}
		return rt.newTuple(concatItems(rt, rt.tuple(self).items, rt.tuple(other).items))
	}),
	"__len__":      lenMethod,
	"__getitem__":  getItemMethod,
	"__contains__": containsMethod,
	"__iter__":     iterMethod,
}

func (rt *Runtime) dictView(self Token, pick func(k, v Token) Token) Token {
	dd := rt.dict(self)
	l := rt.NewList(len(dd.keys))
	for i := range dd.keys {
		rt.ListSetItem(l, i, pick(dd.keys[i], dd.vals[i]))
	}
	return l
}

var dictMethods = map[string]NativeFunc{
	"keys": method0("keys", func(rt *Runtime, self Token) Token {
		return rt.dictView(self, func(k, _ Token) Token { rt.IncRef(k); return k })
	}),
	"values": method0("values", func(rt *Runtime, self Token) Token {
		return rt.dictView(self, func(_, v Token) Token { rt.IncRef(v); return v })
	}),
	"items": method0("items", func(rt *Runtime, self Token) Token {
		return rt.dictView(self, func(k, v Token) Token { return rt.TuplePack(k, v) })
	}),
	"get": func(rt *Runtime, self, args Token) Token {
		items := rt.Args(args)
		if !rt.arity("get", items, 1, 2) {
			return Null
		}
		if _, ok := rt.hashKey(items[0]); !ok {
			return Null
		}
		if v := rt.DictGetItem(self, items[0]); v != Null {
			rt.IncRef(v)
			return v
		}
		if len(items) == 2 {
			rt.IncRef(items[1])
			return items[1]
		}
		return rt.ReturnNone()
	},
	"has_key": method1("has_key", func(rt *Runtime, self, k Token) Token {
		r := rt.DictContains(self, k)
		if r < 0 {
			return Null
		}
		return rt.ReturnBool(r == 1)
	}),
	"pop": func(rt *Runtime, self, args Token) Token {
		items := rt.Args(args)
		if !rt.arity("pop", items, 1, 2) {
			return Null
		}
		v := rt.DictGetItem(self, items[0])
		if v == Null {
			if rt.ErrOccurred() != Null {
				return Null
			}
			if len(items) == 2 {
				rt.IncRef(items[1])
				return items[1]
			}
			if _, ok := rt.hashKey(items[0]); ok {
				rt.setKeyError(items[0])
			}
			return Null
		}
		rt.IncRef(v)
		if rt.DictDelItem(self, items[0]) < 0 {
			rt.DecRef(v)
			return Null
		}
		return v
	},
	"update": method1("update", func(rt *Runtime, self, other Token) Token {
		if rt.updateDict(self, other) < 0 {
			return Null
		}
		return rt.ReturnNone()
	}),
	"clear": method0("clear", func(rt *Runtime, self Token) Token {
		dd := rt.dict(self)
		keys, vals := dd.keys, dd.vals
		dd.keys, dd.vals, dd.index = nil, nil, map[string]int{}
		rt.decAll(keys)
		rt.decAll(vals)
		return rt.ReturnNone()
	}),
	"__len__":      lenMethod,
	"__getitem__":  getItemMethod,
	"__setitem__":  setItemMethod,
	"__delitem__":  delItemMethod,
	"__contains__": containsMethod,
	"__iter__":     iterMethod,
}

// updateDict merges a dict or an iterable of pairs into d.
func (rt *Runtime) updateDict(d, other Token) int {
	if rt.KindOf(other) == KindDict {
		pos := 0
		for {
			k, v, ok := rt.DictNext(other, &pos)
			if !ok {
				return 0
			}
			if rt.DictSetItem(d, k, v) < 0 {
				return -1
			}
		}
	}
	pairs, ok := rt.collect(other)
	if !ok {
		return -1
	}
	defer rt.decAll(pairs)
	for i, p := range pairs {
		kv, ok := rt.collect(p)
		if !ok || len(kv) != 2 {
			rt.decAll(kv)
			rt.ErrFormat(rt.Exc.ValueError, "dictionary update sequence element #%d has wrong length", i)
			return -1
		}
		r := rt.DictSetItem(d, kv[0], kv[1])
		rt.decAll(kv)
		if r < 0 {
			return -1
		}
	}
	return 0
}

func iteratorNext(rt *Runtime, self Token) Token {
	r := rt.IterNext(self)
	if r == Null && rt.ErrOccurred() == Null {
		rt.ErrSetNone(rt.Exc.StopIteration)
	}
	return r
}

var iteratorMethods = map[string]NativeFunc{
	"next":     method0("next", iteratorNext),
	"__next__": method0("__next__", iteratorNext),
	"__iter__": method0("__iter__", func(rt *Runtime, self Token) Token {
		rt.IncRef(self)
		return self
	}),
}

func (rt *Runtime) exceptionArgs(self Token) Token {
	if id, ok := rt.get(self, "exception").payload.(*instanceData); ok {
		if a, ok := id.attrs["args"]; ok && rt.KindOf(a) == KindTuple {
			return a
		}
	}
	return Null
}

var exceptionMethods = map[string]NativeFunc{
	"__init__": func(rt *Runtime, self, args Token) Token {
		if rt.SetAttr(self, "args", args) < 0 {
			return Null
		}
		msg := rt.NewStr("")
		if items := rt.Args(args); len(items) == 1 {
			rt.DecRef(msg)
			msg = items[0]
			rt.IncRef(msg)
		}
		r := rt.SetAttr(self, "message", msg)
		rt.DecRef(msg)
		if r < 0 {
			return Null
		}
		return rt.ReturnNone()
	},
	"__str__": method0("__str__", func(rt *Runtime, self Token) Token {
		args := rt.exceptionArgs(self)
		if args == Null {
			return rt.NewStr("")
		}
		switch items := rt.tuple(args).items; len(items) {
		case 0:
			return rt.NewStr("")
		case 1:
			return rt.Str(items[0])
		}
		return rt.Str(args)
	}),
	"__repr__": method0("__repr__", func(rt *Runtime, self Token) Token {
		args := rt.exceptionArgs(self)
		s := "()"
		if args != Null {
			var ok bool
			if s, ok = rt.reprString(args); !ok {
				return Null
			}
		}
		return rt.NewStr(rt.TypeName(self) + s)
	}),
}
