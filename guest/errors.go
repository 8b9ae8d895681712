package guest

import "fmt"

// Exceptions holds the builtin exception classes.
type Exceptions struct {
	BaseException       Token
	Exception           Token
	StandardError       Token
	StopIteration       Token
	ArithmeticError     Token
	ZeroDivisionError   Token
	OverflowError       Token
	LookupError         Token
	IndexError          Token
	KeyError            Token
	AttributeError      Token
	TypeError           Token
	ValueError          Token
	NameError           Token
	ImportError         Token
	RuntimeError        Token
	NotImplementedError Token
	SystemError         Token
}

// all lists the classes with their names, for installing into builtins.
func (e *Exceptions) all() []struct {
	name string
	tok  Token
} {
	return []struct {
		name string
		tok  Token
	}{
		{"BaseException", e.BaseException},
		{"Exception", e.Exception},
		{"StandardError", e.StandardError},
		{"StopIteration", e.StopIteration},
		{"ArithmeticError", e.ArithmeticError},
		{"ZeroDivisionError", e.ZeroDivisionError},
		{"OverflowError", e.OverflowError},
		{"LookupError", e.LookupError},
		{"IndexError", e.IndexError},
		{"KeyError", e.KeyError},
		{"AttributeError", e.AttributeError},
		{"TypeError", e.TypeError},
		{"ValueError", e.ValueError},
		{"NameError", e.NameError},
		{"ImportError", e.ImportError},
		{"RuntimeError", e.RuntimeError},
		{"NotImplementedError", e.NotImplementedError},
		{"SystemError", e.SystemError},
	}
}

func (rt *Runtime) bootstrapExceptions() {
	class := func(name string, base Token) Token {
		if base == Null {
			base = rt.types.object
		}
		rt.IncRef(base)
		t := rt.alloc(rt.types.typ, &typeData{
			name:    name,
			module:  "exceptions",
			base:    base,
			attrs:   map[string]Token{},
			kind:    KindInstance,
			builtin: true,
		})
		rt.objects[t].immortal = true
		return t
	}

	e := &rt.Exc
	e.BaseException = class("BaseException", Null)
	e.Exception = class("Exception", e.BaseException)
	e.StopIteration = class("StopIteration", e.Exception)
	e.StandardError = class("StandardError", e.Exception)
	e.ArithmeticError = class("ArithmeticError", e.StandardError)
	e.ZeroDivisionError = class("ZeroDivisionError", e.ArithmeticError)
	e.OverflowError = class("OverflowError", e.ArithmeticError)
	e.LookupError = class("LookupError", e.StandardError)
	e.IndexError = class("IndexError", e.LookupError)
	e.KeyError = class("KeyError", e.LookupError)
	e.AttributeError = class("AttributeError", e.StandardError)
	e.TypeError = class("TypeError", e.StandardError)
	e.ValueError = class("ValueError", e.StandardError)
	e.NameError = class("NameError", e.StandardError)
	e.ImportError = class("ImportError", e.StandardError)
	e.RuntimeError = class("RuntimeError", e.StandardError)
	e.NotImplementedError = class("NotImplementedError", e.RuntimeError)
	e.SystemError = class("SystemError", e.StandardError)
}

// newException builds an instance of an exception class carrying msg.
func (rt *Runtime) newException(typ Token, msg string) Token {
	inst := rt.newInstance(typ)
	attrs := rt.get(inst, "exception").payload.(*instanceData).attrs
	s := rt.NewStr(msg)
	attrs["args"] = rt.TuplePack(s)
	attrs["message"] = s
	return inst
}

// ErrSetString sets the pending exception to an instance of typ with msg.
// Any exception already pending is discarded.
func (rt *Runtime) ErrSetString(typ Token, msg string) {
	rt.ErrClear()
	rt.IncRef(typ)
	rt.errType = typ
	rt.errValue = rt.newException(typ, msg)
}

// ErrFormat is ErrSetString with a format string.
func (rt *Runtime) ErrFormat(typ Token, format string, args ...any) {
	rt.ErrSetString(typ, fmt.Sprintf(format, args...))
}

// ErrSetNone sets the pending exception type with no value.
func (rt *Runtime) ErrSetNone(typ Token) {
	rt.ErrClear()
	rt.IncRef(typ)
	rt.errType = typ
}

// ErrSetObject sets the pending exception to (typ, value), taking new
// references to both.
func (rt *Runtime) ErrSetObject(typ, value Token) {
	rt.ErrClear()
	rt.IncRef(typ)
	rt.IncRef(value)
	rt.errType = typ
	rt.errValue = value
}

// ErrOccurred returns the pending exception type (borrowed), or Null.
func (rt *Runtime) ErrOccurred() Token {
	return rt.errType
}

// ErrFetch takes the pending exception out of the slot. Ownership of the
// three references passes to the caller, and the slot is left clear.
func (rt *Runtime) ErrFetch() (typ, value, trace Token) {
	typ, value, trace = rt.errType, rt.errValue, rt.errTrace
	rt.errType, rt.errValue, rt.errTrace = Null, Null, Null
	return typ, value, trace
}

// ErrClear discards the pending exception, if any.
func (rt *Runtime) ErrClear() {
	typ, value, trace := rt.ErrFetch()
	if rt.objects == nil {
		return
	}
	rt.DecRef(typ)
	rt.DecRef(value)
	rt.DecRef(trace)
}

// ErrMatches reports whether the pending exception is exc or a subclass.
func (rt *Runtime) ErrMatches(exc Token) bool {
	return rt.errType != Null && rt.IsSubtype(rt.errType, exc)
}

// pendingMessage describes the pending exception without clearing it.
func (rt *Runtime) pendingMessage() string {
	if rt.errType == Null {
		return "no exception set"
	}
	name := rt.ClassName(rt.errType)
	if rt.errValue == Null {
		return name
	}
	if id, ok := rt.get(rt.errValue, "exception").payload.(*instanceData); ok {
		if m, ok := id.attrs["message"]; ok {
			if s, ok := rt.AsString(m); ok {
				return name + ": " + s
			}
		}
	}
	return name
}

// checkResult enforces the native-function contract: Null iff an
// exception is pending.
func (rt *Runtime) checkResult(name string, r Token) Token {
	if r == Null && rt.errType == Null {
		rt.ErrFormat(rt.Exc.SystemError, "error return without exception set in %s", name)
	}
	if r != Null && rt.errType != Null {
		rt.DecRef(r)
		return Null
	}
	return r
}
