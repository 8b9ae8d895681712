package guest

import (
	"sort"
)

// NativeFunc implements a builtin function or method. self is the bound
// receiver (Null for plain functions) and args is a tuple (borrowed).
// It returns a new reference, or Null with an exception set.
type NativeFunc func(rt *Runtime, self, args Token) Token

type funcData struct {
	name   string
	fn     NativeFunc
	method bool  // binds to the instance on attribute access
	self   Token // bound receiver (owned), Null when unbound
}

type moduleData struct {
	name  string
	attrs map[string]Token
}

// NewCFunction wraps fn as a callable guest function object.
func (rt *Runtime) NewCFunction(name string, fn NativeFunc) Token {
	return rt.alloc(rt.types.function, &funcData{name: name, fn: fn})
}

func (rt *Runtime) newMethod(name string, fn NativeFunc) Token {
	return rt.alloc(rt.types.function, &funcData{name: name, fn: fn, method: true})
}

func (rt *Runtime) bind(fn, self Token) Token {
	fd := rt.get(fn, "bind").payload.(*funcData)
	rt.IncRef(self)
	return rt.alloc(rt.types.function, &funcData{name: fd.name, fn: fd.fn, method: true, self: self})
}

// FuncName returns the name of a builtin function object, or "".
func (rt *Runtime) FuncName(t Token) string {
	if fd, ok := rt.get(t, "func").payload.(*funcData); ok {
		return fd.name
	}
	return ""
}

// ModuleName returns the name of a module object, or "".
func (rt *Runtime) ModuleName(t Token) string {
	if md, ok := rt.get(t, "module").payload.(*moduleData); ok {
		return md.name
	}
	return ""
}

// GetAttr returns o.name as a new reference, or Null with AttributeError.
func (rt *Runtime) GetAttr(o Token, name string) Token {
	obj := rt.get(o, "getattr")
	switch p := obj.payload.(type) {
	case *moduleData:
		if v, ok := p.attrs[name]; ok {
			rt.IncRef(v)
			return v
		}
		if name == "__name__" {
			return rt.NewStr(p.name)
		}
		if name == "__class__" {
			rt.IncRef(obj.typ)
			return obj.typ
		}
		rt.ErrFormat(rt.Exc.AttributeError, "'module' object has no attribute '%s'", name)
		return Null
	case *typeData:
		if v, ok := rt.lookupType(o, name); ok {
			rt.IncRef(v)
			return v
		}
		switch name {
		case "__name__":
			return rt.NewStr(p.name)
		case "__module__":
			if p.module != "" {
				return rt.NewStr(p.module)
			}
		case "__class__":
			rt.IncRef(obj.typ)
			return obj.typ
		}
		rt.ErrFormat(rt.Exc.AttributeError, "type object '%s' has no attribute '%s'", p.name, name)
		return Null
	case *instanceData:
		if v, ok := p.attrs[name]; ok {
			rt.IncRef(v)
			return v
		}
	case *funcData:
		if name == "__name__" {
			return rt.NewStr(p.name)
		}
		if name == "__self__" && p.self != Null {
			rt.IncRef(p.self)
			return p.self
		}
	}

	if v, ok := rt.lookupType(obj.typ, name); ok {
		if fd, ok := rt.get(v, "getattr").payload.(*funcData); ok && fd.method && fd.self == Null {
			return rt.bind(v, o)
		}
		rt.IncRef(v)
		return v
	}
	if name == "__class__" {
		rt.IncRef(obj.typ)
		return obj.typ
	}
	rt.ErrFormat(rt.Exc.AttributeError, "'%s' object has no attribute '%s'", rt.TypeName(o), name)
	return Null
}

// SetAttr sets o.name = v. Returns 0, or -1 with an exception set.
func (rt *Runtime) SetAttr(o Token, name string, v Token) int {
	obj := rt.get(o, "setattr")
	var attrs map[string]Token
	switch p := obj.payload.(type) {
	case *moduleData:
		attrs = p.attrs
	case *instanceData:
		attrs = p.attrs
	case *typeData:
		if p.builtin {
			rt.ErrFormat(rt.Exc.TypeError, "can't set attributes of built-in/extension type '%s'", p.name)
			return -1
		}
		attrs = p.attrs
	default:
		if _, ok := rt.lookupType(obj.typ, name); ok {
			rt.ErrFormat(rt.Exc.AttributeError, "'%s' object attribute '%s' is read-only", rt.TypeName(o), name)
		} else {
			rt.ErrFormat(rt.Exc.AttributeError, "'%s' object has no attribute '%s'", rt.TypeName(o), name)
		}
		return -1
	}
	rt.IncRef(v)
	old := attrs[name]
	attrs[name] = v
	rt.DecRef(old)
	return 0
}

// HasAttr reports whether o.name resolves. Lookup errors are swallowed.
func (rt *Runtime) HasAttr(o Token, name string) bool {
	v := rt.GetAttr(o, name)
	if v == Null {
		rt.ErrClear()
		return false
	}
	rt.DecRef(v)
	return true
}

// Dir returns a sorted list of the attribute names visible on o.
func (rt *Runtime) Dir(o Token) Token {
	obj := rt.get(o, "dir")
	names := map[string]struct{}{}
	addType := func(typ Token) {
		for typ != Null {
			td := rt.typeData(typ)
			if td == nil {
				break
			}
			for k := range td.attrs {
				names[k] = struct{}{}
			}
			typ = td.base
		}
	}
	switch p := obj.payload.(type) {
	case *moduleData:
		for k := range p.attrs {
			names[k] = struct{}{}
		}
		names["__name__"] = struct{}{}
	case *typeData:
		addType(o)
		names["__name__"] = struct{}{}
	case *instanceData:
		for k := range p.attrs {
			names[k] = struct{}{}
		}
		addType(obj.typ)
		names["__class__"] = struct{}{}
	default:
		addType(obj.typ)
		names["__class__"] = struct{}{}
	}
	sorted := make([]string, 0, len(names))
	for k := range names {
		sorted = append(sorted, k)
	}
	sort.Strings(sorted)
	l := rt.NewList(len(sorted))
	for i, k := range sorted {
		rt.ListSetItem(l, i, rt.NewStr(k))
	}
	return l
}

// CallableCheck reports whether o can be called.
func (rt *Runtime) CallableCheck(o Token) bool {
	obj := rt.get(o, "callable")
	switch obj.payload.(type) {
	case *funcData, *typeData:
		return true
	case *instanceData:
		_, ok := rt.lookupType(obj.typ, "__call__")
		return ok
	}
	return false
}

// Call invokes fn with a tuple of arguments. args may be Null for no
// arguments. Returns a new reference, or Null with an exception set.
func (rt *Runtime) Call(fn, args Token) Token {
	if args == Null {
		args = rt.newTuple(nil)
		defer rt.DecRef(args)
	}
	obj := rt.get(fn, "call")
	switch p := obj.payload.(type) {
	case *funcData:
		self := p.self
		callArgs := args
		if p.method && self == Null {
			// unbound method: the receiver is the first argument
			items := rt.Args(args)
			if len(items) == 0 {
				rt.ErrFormat(rt.Exc.TypeError, "unbound method %s() must be called with an instance as first argument", p.name)
				return Null
			}
			self = items[0]
			callArgs = rt.TuplePack(items[1:]...)
			defer rt.DecRef(callArgs)
		}
		return rt.checkResult(p.name, p.fn(rt, self, callArgs))
	case *typeData:
		if p.construct != nil {
			return rt.checkResult(p.name, p.construct(rt, fn, args))
		}
		if p.kind != KindInstance {
			rt.ErrFormat(rt.Exc.TypeError, "cannot create '%s' instances", p.name)
			return Null
		}
		inst := rt.newInstance(fn)
		if init, ok := rt.lookupType(fn, "__init__"); ok {
			r := rt.callWithSelf(init, inst, args)
			if r == Null {
				rt.DecRef(inst)
				return Null
			}
			rt.DecRef(r)
		} else if n := len(rt.Args(args)); n > 0 && !rt.IsSubtype(fn, rt.Exc.BaseException) {
			rt.DecRef(inst)
			rt.ErrFormat(rt.Exc.TypeError, "%s() takes no arguments (%d given)", p.name, n)
			return Null
		}
		return inst
	case *instanceData:
		if call, ok := rt.lookupType(obj.typ, "__call__"); ok {
			return rt.callWithSelf(call, fn, args)
		}
	}
	rt.ErrFormat(rt.Exc.TypeError, "'%s' object is not callable", rt.TypeName(fn))
	return Null
}

// callWithSelf runs a method found on a type against an explicit receiver.
func (rt *Runtime) callWithSelf(fn, self, args Token) Token {
	if fd, ok := rt.get(fn, "call").payload.(*funcData); ok && fd.method && fd.self == Null {
		return rt.checkResult(fd.name, fd.fn(rt, self, args))
	}
	return rt.Call(fn, args)
}

// CallObject calls fn with the given positional arguments.
func (rt *Runtime) CallObject(fn Token, args ...Token) Token {
	tup := rt.TuplePack(args...)
	defer rt.DecRef(tup)
	return rt.Call(fn, tup)
}

// CallMethod looks up o.name and calls it with the given arguments.
func (rt *Runtime) CallMethod(o Token, name string, args ...Token) Token {
	fn := rt.GetAttr(o, name)
	if fn == Null {
		return Null
	}
	defer rt.DecRef(fn)
	return rt.CallObject(fn, args...)
}

// special looks up a special method on o's type (borrowed).
func (rt *Runtime) special(o Token, name string) (Token, bool) {
	return rt.lookupType(rt.TypeOf(o), name)
}

// callSpecial calls a special method on o's type with o as the receiver.
// ok is false if the type does not define it.
func (rt *Runtime) callSpecial(o Token, name string, args ...Token) (Token, bool) {
	fn, ok := rt.special(o, name)
	if !ok {
		return Null, false
	}
	tup := rt.TuplePack(args...)
	defer rt.DecRef(tup)
	return rt.callWithSelf(fn, o, tup), true
}

// Args returns the borrowed items of an argument tuple.
func (rt *Runtime) Args(args Token) []Token {
	if args == Null {
		return nil
	}
	if td, ok := rt.get(args, "args").payload.(*tupleData); ok {
		return td.items
	}
	return nil
}

func (rt *Runtime) arity(name string, items []Token, min, max int) bool {
	n := len(items)
	if n >= min && (max < 0 || n <= max) {
		return true
	}
	switch {
	case min == max:
		rt.ErrFormat(rt.Exc.TypeError, "%s() takes exactly %d argument%s (%d given)", name, min, plural(min), n)
	case n < min:
		rt.ErrFormat(rt.Exc.TypeError, "%s() takes at least %d argument%s (%d given)", name, min, plural(min), n)
	default:
		rt.ErrFormat(rt.Exc.TypeError, "%s() takes at most %d argument%s (%d given)", name, max, plural(max), n)
	}
	return false
}

func plural(n int) string {
	if n == 1 {
		return ""
	}
	return "s"
}
