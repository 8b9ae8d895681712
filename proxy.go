package rupy

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/feather-lang/rupy/guest"
)

// Role says what kind of guest object a proxy stands for.
type Role int

const (
	RoleGeneric Role = iota
	RoleModule
	RoleClass
	RoleInstance
)

func (r Role) String() string {
	switch r {
	case RoleModule:
		return "module"
	case RoleClass:
		return "class"
	case RoleInstance:
		return "instance"
	}
	return "generic"
}

// Proxy forwards attribute access, calls and operators to a guest object.
// It owns exactly one handle; call Release when done with it.
//
// Every operation that reaches the guest checks for a pending exception
// afterwards and returns it as an *InterpreterError.
type Proxy struct {
	h    *Handle
	role Role
}

func (b *Bridge) newProxy(h *Handle) *Proxy {
	p := &Proxy{h: h}
	if !h.IsNull() {
		switch b.rt.KindOf(h.token) {
		case guest.KindModule:
			p.role = RoleModule
		case guest.KindType:
			p.role = RoleClass
		case guest.KindInstance:
			p.role = RoleInstance
		}
	}
	return p
}

// borrow returns a new proxy with its own reference to h's object.
func (b *Bridge) borrow(h *Handle) *Proxy {
	return b.newProxy(b.wrap(h.token, Borrowed))
}

// result wraps a new reference returned by the guest, or converts the
// pending exception if the call failed.
func (b *Bridge) result(tok guest.Token) (*Proxy, error) {
	if b.HasPending() {
		b.rt.DecRef(tok)
		return nil, b.HandlePending()
	}
	if tok == guest.Null {
		panic(&ContractViolation{Op: "result", Reason: "guest returned null without an exception"})
	}
	return b.newProxy(b.wrap(tok, Owned)), nil
}

// failed reports the pending exception, if any.
func (b *Bridge) failed() error {
	if b.HasPending() {
		return b.HandlePending()
	}
	return nil
}

func (p *Proxy) check() error {
	if !p.h.b.Alive() {
		return ErrNotRunning
	}
	if p.h.IsNull() || p.h.Released() {
		return ErrReleased
	}
	return nil
}

// Role returns the proxy's role.
func (p *Proxy) Role() Role { return p.role }

// Handle returns the handle the proxy owns.
func (p *Proxy) Handle() *Handle { return p.h }

// Bridge returns the bridge the proxy belongs to.
func (p *Proxy) Bridge() *Bridge { return p.h.b }

// Release drops the proxy's guest reference. It is idempotent.
func (p *Proxy) Release() { p.h.Release() }

// Clone returns a second proxy for the same object.
func (p *Proxy) Clone() (*Proxy, error) {
	if err := p.check(); err != nil {
		return nil, err
	}
	return p.h.b.borrow(p.h), nil
}

// GetAttr returns the named attribute.
func (p *Proxy) GetAttr(name string) (*Proxy, error) {
	if err := p.check(); err != nil {
		return nil, err
	}
	b := p.h.b
	return b.result(b.rt.GetAttr(p.h.token, name))
}

// SetAttr sets the named attribute to v, converted with ToForeign.
func (p *Proxy) SetAttr(name string, v any) (bool, error) {
	if err := p.check(); err != nil {
		return false, err
	}
	b := p.h.b
	vh, err := b.toForeign(v, false)
	if err != nil {
		return false, err
	}
	defer vh.Release()
	if b.rt.SetAttr(p.h.token, name, vh.token) < 0 {
		return false, b.HandlePending()
	}
	return true, nil
}

// HasAttr reports whether the object has the named attribute.
func (p *Proxy) HasAttr(name string) bool {
	if p.check() != nil {
		return false
	}
	return p.h.b.rt.HasAttr(p.h.token, name)
}

// IsCallable reports whether the object can be called.
func (p *Proxy) IsCallable() bool {
	if p.check() != nil {
		return false
	}
	return p.h.b.rt.CallableCheck(p.h.token)
}

// IsFunctionOrMethod reports whether the object is a function or a bound
// method, as opposed to a class or callable instance.
func (p *Proxy) IsFunctionOrMethod() bool {
	if p.check() != nil {
		return false
	}
	return p.h.b.rt.KindOf(p.h.token) == guest.KindFunction
}

// packArgs converts args into one guest argument tuple.
func (b *Bridge) packArgs(args []any) (*Handle, error) {
	items := make([]*Handle, 0, len(args))
	defer func() {
		for _, h := range items {
			h.Release()
		}
	}()
	toks := make([]guest.Token, len(args))
	for i, a := range args {
		h, err := b.toForeign(a, false)
		if err != nil {
			return nil, fmt.Errorf("argument %d: %w", i+1, err)
		}
		items = append(items, h)
		toks[i] = h.token
	}
	return b.wrap(b.rt.TuplePack(toks...), Owned), nil
}

// Call calls the object with args. Calling a class returns an instance.
func (p *Proxy) Call(args ...any) (*Proxy, error) {
	if err := p.check(); err != nil {
		return nil, err
	}
	b := p.h.b
	tup, err := b.packArgs(args)
	if err != nil {
		return nil, err
	}
	defer tup.Release()
	return b.result(b.rt.Call(p.h.token, tup.token))
}

// Send calls the named method with args. In legacy mode a result with a
// native form is returned converted and the proxy is released; otherwise
// the result is a *Proxy.
func (p *Proxy) Send(name string, args ...any) (any, error) {
	fn, err := p.GetAttr(name)
	if err != nil {
		return nil, err
	}
	defer fn.Release()
	r, err := fn.Call(args...)
	if err != nil {
		return nil, err
	}
	if !p.h.b.legacy {
		return r, nil
	}
	v, err := r.Native()
	if err != nil {
		p.h.b.log.Debug("legacy result kept as proxy", zap.String("method", name), zap.Error(err))
		return r, nil
	}
	if np, ok := v.(*Proxy); ok {
		np.Release()
		return r, nil
	}
	r.Release()
	return v, nil
}

// Native converts the object with ToNative. Objects with no native form
// come back as a new *Proxy the caller must release.
func (p *Proxy) Native() (any, error) {
	if err := p.check(); err != nil {
		return nil, err
	}
	b := p.h.b
	v, err := b.ToNative(p.h)
	if err != nil {
		return nil, err
	}
	if h, ok := v.(*Handle); ok {
		return b.newProxy(h), nil
	}
	return v, nil
}

// Dir lists the attribute names visible on the object.
func (p *Proxy) Dir() ([]string, error) {
	if err := p.check(); err != nil {
		return nil, err
	}
	b := p.h.b
	l, err := b.result(b.rt.Dir(p.h.token))
	if err != nil {
		return nil, err
	}
	defer l.Release()
	n := b.rt.ListSize(l.h.token)
	names := make([]string, 0, n)
	for i := 0; i < n; i++ {
		names = append(names, b.rt.StrValue(b.rt.ListGetItem(l.h.token, i)))
	}
	return names, nil
}

// Compare does a three-way comparison with other: -1, 0 or 1.
func (p *Proxy) Compare(other any) (int, error) {
	if err := p.check(); err != nil {
		return 0, err
	}
	b := p.h.b
	oh, err := b.toForeign(other, false)
	if err != nil {
		return 0, err
	}
	defer oh.Release()
	c := b.rt.Compare(p.h.token, oh.token)
	if err := b.failed(); err != nil {
		return 0, err
	}
	return c, nil
}

// Repr returns the guest repr() of the object.
func (p *Proxy) Repr() (string, error) {
	if err := p.check(); err != nil {
		return "", err
	}
	b := p.h.b
	r, err := b.result(b.rt.Repr(p.h.token))
	if err != nil {
		return "", err
	}
	defer r.Release()
	return b.rt.StrValue(r.h.token), nil
}

// Each iterates over the object, calling fn with each item. The item proxy
// is released when fn returns.
func (p *Proxy) Each(fn func(item *Proxy) error) error {
	if err := p.check(); err != nil {
		return err
	}
	b := p.h.b
	it, err := b.result(b.rt.Iter(p.h.token))
	if err != nil {
		return err
	}
	defer it.Release()
	for {
		tok := b.rt.IterNext(it.h.token)
		if tok == guest.Null {
			return b.failed()
		}
		item := b.newProxy(b.wrap(tok, Owned))
		err := fn(item)
		item.Release()
		if err != nil {
			return err
		}
	}
}

// String returns the guest str() of the object.
func (p *Proxy) String() string {
	if p.check() != nil {
		return "<released>"
	}
	b := p.h.b
	s, ok := b.rt.StrString(p.h.token)
	if !ok {
		err := b.HandlePending()
		return fmt.Sprintf("<%s object: %v>", b.rt.TypeName(p.h.token), err)
	}
	return s
}

// String returns the guest str() of the object, like Proxy.String.
func (h *Handle) String() string {
	return (&Proxy{h: h}).String()
}
