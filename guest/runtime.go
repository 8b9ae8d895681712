package guest

import (
	"errors"
	"fmt"
	"sync"
)

// Token identifies one object in a guest runtime.
// Tokens are never reused within a Runtime, so a stale token is detected
// instead of silently aliasing a newer object.
type Token uintptr

// Null is the absent-object marker returned by failing operations.
const Null Token = 0

// Object is the runtime's record for one live guest object.
type Object struct {
	refcnt   int
	typ      Token // type object
	immortal bool  // singletons and builtin types are never deallocated
	payload  any
}

// Fault is the panic value raised when a token that does not name a live
// object is dereferenced. It corresponds to touching freed memory.
type Fault struct {
	Token Token
	Op    string
}

func (f *Fault) Error() string {
	return fmt.Sprintf("guest: %s on invalid object %#x", f.Op, uintptr(f.Token))
}

// ErrAlreadyInitialized is returned by Initialize when another Runtime is
// already alive in this process.
var ErrAlreadyInitialized = errors.New("guest: a runtime is already initialized in this process")

var (
	processMu      sync.Mutex
	processRuntime *Runtime
)

// Runtime is one guest object runtime.
//
// Create a runtime with [New], then call [Runtime.Initialize] before any other
// method. [Runtime.Finalize] releases every object at once; tokens obtained
// before Finalize must not be used afterwards.
type Runtime struct {
	objects     map[Token]*Object
	nextID      Token
	initialized bool

	// pending exception: owned references, Null when clear
	errType, errValue, errTrace Token

	modules  map[string]Token // imported modules (owned)
	builders map[string]ModuleFunc
	order    []string // builder registration order, for Modules()

	none, true_, false_, notImpl Token

	types    builtinTypes
	Exc      Exceptions
	builtins Token
}

// New creates an uninitialized runtime with the standard modules registered.
func New() *Runtime {
	rt := &Runtime{
		builders: make(map[string]ModuleFunc),
		nextID:   1,
	}
	registerStdlib(rt)
	return rt
}

// Initialize brings the runtime up: builtin types, singletons, exception
// classes and the builtins module. Calling Initialize on a running runtime
// is a no-op.
func (rt *Runtime) Initialize() error {
	processMu.Lock()
	defer processMu.Unlock()

	if rt.initialized {
		return nil
	}
	if processRuntime != nil && processRuntime != rt {
		return ErrAlreadyInitialized
	}

	rt.objects = make(map[Token]*Object)
	rt.modules = make(map[string]Token)
	rt.initialized = true
	processRuntime = rt

	rt.bootstrapTypes()
	rt.bootstrapExceptions()
	rt.installMethods()

	rt.builtins = rt.Import("__builtin__")
	if rt.builtins == Null {
		msg := rt.pendingMessage()
		rt.teardown()
		return fmt.Errorf("guest: builtins failed to load: %s", msg)
	}
	return nil
}

// Finalize tears the runtime down. Every object is released wholesale without
// running per-object deallocation; outstanding tokens become invalid.
// Returns false if the runtime was not running.
func (rt *Runtime) Finalize() bool {
	processMu.Lock()
	defer processMu.Unlock()

	if !rt.initialized {
		return false
	}
	rt.teardown()
	return true
}

func (rt *Runtime) teardown() {
	rt.objects = nil
	rt.modules = nil
	rt.errType, rt.errValue, rt.errTrace = Null, Null, Null
	rt.builtins = Null
	rt.types = builtinTypes{}
	rt.Exc = Exceptions{}
	rt.initialized = false
	if processRuntime == rt {
		processRuntime = nil
	}
}

// IsInitialized reports whether the runtime is alive.
func (rt *Runtime) IsInitialized() bool {
	return rt.initialized
}

// alloc creates a new object with refcount 1 and returns its token.
// The type object gains a reference held by the new instance.
func (rt *Runtime) alloc(typ Token, payload any) Token {
	if !rt.initialized {
		panic(&Fault{Op: "alloc"})
	}
	id := rt.nextID
	rt.nextID++
	rt.objects[id] = &Object{refcnt: 1, typ: typ, payload: payload}
	if typ != Null {
		rt.IncRef(typ)
	}
	return id
}

// get dereferences a token, panicking with a Fault if it is not live.
func (rt *Runtime) get(t Token, op string) *Object {
	if rt.objects == nil {
		panic(&Fault{Token: t, Op: op})
	}
	o, ok := rt.objects[t]
	if !ok {
		panic(&Fault{Token: t, Op: op})
	}
	return o
}

// Valid reports whether t names a live object.
func (rt *Runtime) Valid(t Token) bool {
	if t == Null || rt.objects == nil {
		return false
	}
	_, ok := rt.objects[t]
	return ok
}

// IncRef adds a reference to t. Null is ignored.
func (rt *Runtime) IncRef(t Token) {
	if t == Null {
		return
	}
	rt.get(t, "incref").refcnt++
}

// DecRef drops a reference to t, deallocating it when the count reaches
// zero. Null is ignored.
func (rt *Runtime) DecRef(t Token) {
	if t == Null {
		return
	}
	o := rt.get(t, "decref")
	o.refcnt--
	if o.refcnt > 0 || o.immortal {
		return
	}
	rt.dealloc(t, o)
}

// RefCount returns the current reference count of t.
func (rt *Runtime) RefCount(t Token) int {
	return rt.get(t, "refcount").refcnt
}

// Live returns the number of live mortal objects.
func (rt *Runtime) Live() int {
	n := 0
	for _, o := range rt.objects {
		if !o.immortal {
			n++
		}
	}
	return n
}

func (rt *Runtime) dealloc(t Token, o *Object) {
	delete(rt.objects, t)
	switch p := o.payload.(type) {
	case *listData:
		rt.decAll(p.items)
	case *tupleData:
		rt.decAll(p.items)
	case *dictData:
		rt.decAll(p.keys)
		rt.decAll(p.vals)
	case *typeData:
		rt.decMap(p.attrs)
		rt.DecRef(p.base)
	case *instanceData:
		rt.decMap(p.attrs)
	case *moduleData:
		rt.decMap(p.attrs)
	case *funcData:
		rt.DecRef(p.self)
	case *seqIterData:
		rt.DecRef(p.seq)
	case *callIterData:
		rt.DecRef(p.fn)
		rt.DecRef(p.sentinel)
	}
	rt.DecRef(o.typ)
}

func (rt *Runtime) decAll(ts []Token) {
	for _, t := range ts {
		rt.DecRef(t)
	}
}

func (rt *Runtime) decMap(m map[string]Token) {
	for _, t := range m {
		rt.DecRef(t)
	}
}
