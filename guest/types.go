package guest

// Kind classifies an object by the builtin type family of its type.
type Kind int

const (
	KindOther Kind = iota
	KindStr
	KindInt
	KindLong
	KindFloat
	KindBool
	KindNone
	KindList
	KindTuple
	KindDict
	KindType
	KindModule
	KindFunction
	KindIterator
	KindInstance
)

var kindNames = [...]string{
	KindOther:    "other",
	KindStr:      "str",
	KindInt:      "int",
	KindLong:     "long",
	KindFloat:    "float",
	KindBool:     "bool",
	KindNone:     "none",
	KindList:     "list",
	KindTuple:    "tuple",
	KindDict:     "dict",
	KindType:     "type",
	KindModule:   "module",
	KindFunction: "function",
	KindIterator: "iterator",
	KindInstance: "instance",
}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return "unknown"
	}
	return kindNames[k]
}

// typeData is the payload of a type object.
type typeData struct {
	name      string
	module    string
	base      Token // owned, Null only for object
	attrs     map[string]Token
	kind      Kind // kind of this type's instances
	builtin   bool
	construct NativeFunc // builtin constructor; nil for classes
}

type builtinTypes struct {
	typ, object, str, int_, long, float, bool_, none, notImpl Token
	list, tuple, dict, module, function, iterator            Token
}

func (rt *Runtime) bootstrapTypes() {
	// type is its own type, so it is created by hand.
	typeTok := rt.nextID
	rt.nextID++
	rt.objects[typeTok] = &Object{
		refcnt:   1,
		typ:      typeTok,
		immortal: true,
		payload:  &typeData{name: "type", kind: KindType, builtin: true, attrs: map[string]Token{}},
	}
	rt.types.typ = typeTok

	t := &rt.types
	t.object = rt.newBuiltinType("object", Null, KindInstance)
	rt.typeData(typeTok).base = t.object
	rt.IncRef(t.object)

	t.str = rt.newBuiltinType("str", t.object, KindStr)
	t.int_ = rt.newBuiltinType("int", t.object, KindInt)
	t.long = rt.newBuiltinType("long", t.object, KindLong)
	t.float = rt.newBuiltinType("float", t.object, KindFloat)
	t.bool_ = rt.newBuiltinType("bool", t.int_, KindBool)
	t.none = rt.newBuiltinType("NoneType", t.object, KindNone)
	t.notImpl = rt.newBuiltinType("NotImplementedType", t.object, KindOther)
	t.list = rt.newBuiltinType("list", t.object, KindList)
	t.tuple = rt.newBuiltinType("tuple", t.object, KindTuple)
	t.dict = rt.newBuiltinType("dict", t.object, KindDict)
	t.module = rt.newBuiltinType("module", t.object, KindModule)
	t.function = rt.newBuiltinType("builtin_function_or_method", t.object, KindFunction)
	t.iterator = rt.newBuiltinType("iterator", t.object, KindIterator)

	rt.none = rt.newImmortal(t.none, nil)
	rt.true_ = rt.newImmortal(t.bool_, true)
	rt.false_ = rt.newImmortal(t.bool_, false)
	rt.notImpl = rt.newImmortal(t.notImpl, nil)

	rt.typeData(typeTok).construct = constructType
	rt.typeData(t.object).construct = constructObject
	rt.typeData(t.str).construct = constructStr
	rt.typeData(t.int_).construct = constructInt
	rt.typeData(t.long).construct = constructLong
	rt.typeData(t.float).construct = constructFloat
	rt.typeData(t.bool_).construct = constructBool
	rt.typeData(t.list).construct = constructList
	rt.typeData(t.tuple).construct = constructTuple
	rt.typeData(t.dict).construct = constructDict
}

func (rt *Runtime) newBuiltinType(name string, base Token, kind Kind) Token {
	rt.IncRef(base)
	t := rt.alloc(rt.types.typ, &typeData{
		name:    name,
		base:    base,
		attrs:   map[string]Token{},
		kind:    kind,
		builtin: true,
	})
	rt.objects[t].immortal = true
	return t
}

func (rt *Runtime) newImmortal(typ Token, payload any) Token {
	t := rt.alloc(typ, payload)
	rt.objects[t].immortal = true
	return t
}

func (rt *Runtime) typeData(t Token) *typeData {
	td, _ := rt.get(t, "type").payload.(*typeData)
	return td
}

// TypeOf returns the type object of t (borrowed).
func (rt *Runtime) TypeOf(t Token) Token {
	return rt.get(t, "type").typ
}

// KindOf classifies t by the builtin family of its type.
func (rt *Runtime) KindOf(t Token) Kind {
	td := rt.typeData(rt.TypeOf(t))
	if td == nil {
		return KindOther
	}
	return td.kind
}

// TypeName returns the name of t's type, e.g. "int" or "Fraction".
func (rt *Runtime) TypeName(t Token) string {
	td := rt.typeData(rt.TypeOf(t))
	if td == nil {
		return "?"
	}
	return td.name
}

// ClassName returns the name of a type object. Returns "" if cls is not a type.
func (rt *Runtime) ClassName(cls Token) string {
	if td := rt.typeData(cls); td != nil {
		return td.name
	}
	return ""
}

// IsType reports whether t is a type object (builtin type or class).
func (rt *Runtime) IsType(t Token) bool {
	return rt.KindOf(t) == KindType
}

// IsSubtype reports whether type a is b or derives from it.
func (rt *Runtime) IsSubtype(a, b Token) bool {
	for a != Null {
		if a == b {
			return true
		}
		td := rt.typeData(a)
		if td == nil {
			return false
		}
		a = td.base
	}
	return false
}

// IsInstance reports whether t's type is cls or derives from it.
func (rt *Runtime) IsInstance(t, cls Token) bool {
	return rt.IsSubtype(rt.TypeOf(t), cls)
}

// lookupType searches a type and its bases for an attribute (borrowed).
func (rt *Runtime) lookupType(typ Token, name string) (Token, bool) {
	for typ != Null {
		td := rt.typeData(typ)
		if td == nil {
			return Null, false
		}
		if v, ok := td.attrs[name]; ok {
			return v, true
		}
		typ = td.base
	}
	return Null, false
}

// ClassDef describes a class created with [Runtime.NewClass].
type ClassDef struct {
	Name   string
	Module string
	// Base defaults to object.
	Base    Token
	Methods map[string]NativeFunc
}

// NewClass creates a class object. Calling the class creates an instance
// and runs its __init__ method, if any. Returns a new reference.
func (rt *Runtime) NewClass(def ClassDef) Token {
	base := def.Base
	if base == Null {
		base = rt.types.object
	}
	if td := rt.typeData(base); td == nil || td.kind != KindInstance {
		rt.ErrFormat(rt.Exc.TypeError, "cannot derive class '%s' from '%s'", def.Name, rt.ClassName(base))
		return Null
	}
	rt.IncRef(base)
	cls := rt.alloc(rt.types.typ, &typeData{
		name:   def.Name,
		module: def.Module,
		base:   base,
		attrs:  map[string]Token{},
		kind:   KindInstance,
	})
	td := rt.typeData(cls)
	for name, fn := range def.Methods {
		td.attrs[name] = rt.newMethod(name, fn)
	}
	return cls
}

type instanceData struct {
	attrs map[string]Token
}

func (rt *Runtime) newInstance(cls Token) Token {
	return rt.alloc(cls, &instanceData{attrs: map[string]Token{}})
}

func constructType(rt *Runtime, _, args Token) Token {
	items := rt.Args(args)
	if !rt.arity("type", items, 1, 1) {
		return Null
	}
	t := rt.TypeOf(items[0])
	rt.IncRef(t)
	return t
}

func constructObject(rt *Runtime, cls, _ Token) Token {
	return rt.newInstance(cls)
}
