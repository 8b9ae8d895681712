package rupy

import "fmt"

// Arithmetic and bitwise operators call the receiver's special method with
// one argument, so they follow whatever the guest class defines.

func (p *Proxy) binary(special string, other any) (*Proxy, error) {
	fn, err := p.GetAttr(special)
	if err != nil {
		return nil, err
	}
	defer fn.Release()
	return fn.Call(other)
}

func (p *Proxy) Add(other any) (*Proxy, error)    { return p.binary("__add__", other) }
func (p *Proxy) Sub(other any) (*Proxy, error)    { return p.binary("__sub__", other) }
func (p *Proxy) Mul(other any) (*Proxy, error)    { return p.binary("__mul__", other) }
func (p *Proxy) Div(other any) (*Proxy, error)    { return p.binary("__div__", other) }
func (p *Proxy) Mod(other any) (*Proxy, error)    { return p.binary("__mod__", other) }
func (p *Proxy) Pow(other any) (*Proxy, error)    { return p.binary("__pow__", other) }
func (p *Proxy) And(other any) (*Proxy, error)    { return p.binary("__and__", other) }
func (p *Proxy) Or(other any) (*Proxy, error)     { return p.binary("__or__", other) }
func (p *Proxy) Xor(other any) (*Proxy, error)    { return p.binary("__xor__", other) }
func (p *Proxy) LShift(other any) (*Proxy, error) { return p.binary("__lshift__", other) }
func (p *Proxy) RShift(other any) (*Proxy, error) { return p.binary("__rshift__", other) }

// operator calls a function from the guest operator module with the
// receiver as first argument.
func (p *Proxy) operator(name string, args ...any) (*Proxy, error) {
	if err := p.check(); err != nil {
		return nil, err
	}
	mod, err := p.h.b.operatorModule()
	if err != nil {
		return nil, err
	}
	fn, err := mod.GetAttr(name)
	if err != nil {
		return nil, err
	}
	defer fn.Release()
	return fn.Call(append([]any{p}, args...)...)
}

func (p *Proxy) Neg() (*Proxy, error)    { return p.operator("neg") }
func (p *Proxy) Pos() (*Proxy, error)    { return p.operator("pos") }
func (p *Proxy) Invert() (*Proxy, error) { return p.operator("invert") }

// relational runs a comparison from the operator module and reduces the
// result to a Go bool.
func (p *Proxy) relational(name string, other any) (bool, error) {
	r, err := p.operator(name, other)
	if err != nil {
		return false, err
	}
	defer r.Release()
	return r.truth()
}

func (p *Proxy) truth() (bool, error) {
	b := p.h.b
	switch b.rt.IsTrue(p.h.token) {
	case 1:
		return true, nil
	case 0:
		return false, nil
	}
	return false, b.HandlePending()
}

func (p *Proxy) Eq(other any) (bool, error) { return p.relational("eq", other) }
func (p *Proxy) Ne(other any) (bool, error) { return p.relational("ne", other) }
func (p *Proxy) Lt(other any) (bool, error) { return p.relational("lt", other) }
func (p *Proxy) Le(other any) (bool, error) { return p.relational("le", other) }
func (p *Proxy) Gt(other any) (bool, error) { return p.relational("gt", other) }
func (p *Proxy) Ge(other any) (bool, error) { return p.relational("ge", other) }

// Index returns p[key].
func (p *Proxy) Index(key any) (*Proxy, error) { return p.binary("__getitem__", key) }

// SetIndex sets p[key] = v.
func (p *Proxy) SetIndex(key, v any) error {
	fn, err := p.GetAttr("__setitem__")
	if err != nil {
		return err
	}
	defer fn.Release()
	r, err := fn.Call(key, v)
	if err != nil {
		return err
	}
	r.Release()
	return nil
}

// Contains reports whether item is in the object.
func (p *Proxy) Contains(item any) (bool, error) {
	r, err := p.binary("__contains__", item)
	if err != nil {
		return false, err
	}
	defer r.Release()
	return r.truth()
}

// Cmp is the guest's three-way cmp().
func (p *Proxy) Cmp(other any) (int, error) {
	if err := p.check(); err != nil {
		return 0, err
	}
	main, err := p.h.b.Main()
	if err != nil {
		return 0, err
	}
	fn, err := main.GetAttr("cmp")
	if err != nil {
		return 0, err
	}
	defer fn.Release()
	r, err := fn.Call(p, other)
	if err != nil {
		return 0, err
	}
	defer r.Release()
	v, err := r.Native()
	if err != nil {
		return 0, err
	}
	n, ok := v.(int64)
	if !ok {
		return 0, fmt.Errorf("rupy: cmp returned %T", v)
	}
	return int(n), nil
}
