package rupy

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/feather-lang/rupy/guest"
)

// ErrNotRunning is returned by operations attempted while the guest runtime
// is stopped.
var ErrNotRunning = errors.New("rupy: guest runtime is not running")

// ErrReleased is returned when a released handle or proxy is used.
var ErrReleased = errors.New("rupy: handle already released")

// InterpreterError is a guest exception surfaced to the host.
// Kind is the guest exception class name, e.g. "ImportError".
type InterpreterError struct {
	Kind    string
	Message string
}

func (e *InterpreterError) Error() string {
	if e.Message == "" {
		return e.Kind
	}
	return e.Kind + ": " + e.Message
}

// Direction of a conversion.
type Direction string

const (
	ToForeignDirection Direction = "to_foreign"
	ToNativeDirection  Direction = "to_native"
)

// ConversionError reports a value that cannot cross the bridge.
type ConversionError struct {
	Direction Direction
	Type      string
	Reason    string
}

func (e *ConversionError) Error() string {
	return fmt.Sprintf("rupy: cannot convert %s %s: %s", e.Type, e.Direction, e.Reason)
}

// ContractViolation is the panic value for misuse of the bridge, such as
// wrapping a token while the runtime is stopped.
type ContractViolation struct {
	Op     string
	Reason string
}

func (e *ContractViolation) Error() string {
	return fmt.Sprintf("rupy: contract violation in %s: %s", e.Op, e.Reason)
}

// HasPending reports whether the guest has an exception pending.
func (b *Bridge) HasPending() bool {
	return b.Alive() && b.rt.ErrOccurred() != guest.Null
}

// HandlePending converts the pending guest exception into an
// InterpreterError and clears it. It panics if nothing is pending.
func (b *Bridge) HandlePending() *InterpreterError {
	if !b.HasPending() {
		panic(&ContractViolation{Op: "HandlePending", Reason: "no guest exception pending"})
	}
	typ, value, trace := b.rt.ErrFetch()
	th := b.wrap(typ, Owned)
	vh := b.wrap(value, Owned)
	tbh := b.wrap(trace, Owned)
	defer th.Release()
	defer vh.Release()
	defer tbh.Release()

	ie := &InterpreterError{Kind: "Exception"}
	if !th.IsNull() {
		if kind, err := b.attrString(th, "__name__"); err == nil {
			ie.Kind = kind
		}
	}
	if !vh.IsNull() {
		msg, err := b.callString(vh, "__str__")
		if err != nil {
			b.log.Debug("guest exception message unavailable", zap.String("kind", ie.Kind), zap.Error(err))
		} else {
			ie.Message = msg
		}
	}
	b.rt.ErrClear()

	b.metrics.guestErrors.WithLabelValues(ie.Kind).Inc()
	b.log.Debug("guest exception", zap.String("kind", ie.Kind), zap.String("message", ie.Message))
	return ie
}

// attrString reads a string attribute through the proxy layer.
func (b *Bridge) attrString(h *Handle, name string) (string, error) {
	p := b.borrow(h)
	defer p.Release()
	attr, err := p.GetAttr(name)
	if err != nil {
		return "", err
	}
	defer attr.Release()
	v, err := attr.Native()
	if err != nil {
		return "", err
	}
	s, ok := v.(string)
	if !ok {
		return "", &ConversionError{Direction: ToNativeDirection, Type: fmt.Sprintf("%T", v), Reason: "expected a string"}
	}
	return s, nil
}

// callString calls a zero-argument method that returns a string.
func (b *Bridge) callString(h *Handle, name string) (string, error) {
	p := b.borrow(h)
	defer p.Release()
	fn, err := p.GetAttr(name)
	if err != nil {
		return "", err
	}
	defer fn.Release()
	r, err := fn.Call()
	if err != nil {
		return "", err
	}
	defer r.Release()
	v, err := r.Native()
	if err != nil {
		return "", err
	}
	s, ok := v.(string)
	if !ok {
		return "", &ConversionError{Direction: ToNativeDirection, Type: fmt.Sprintf("%T", v), Reason: "expected a string"}
	}
	return s, nil
}

// raise turns a host error into a pending guest exception. An
// InterpreterError whose Kind names a builtin exception class keeps its
// class; anything else becomes RuntimeError.
func (b *Bridge) raise(err error) {
	rt := b.rt
	cls := rt.Exc.RuntimeError
	msg := err.Error()
	var ie *InterpreterError
	if errors.As(err, &ie) {
		msg = ie.Message
		if t := rt.GetAttr(rt.Builtins(), ie.Kind); t != guest.Null {
			if rt.IsType(t) && rt.IsSubtype(t, rt.Exc.BaseException) {
				cls = t
			} else {
				msg = err.Error()
			}
			rt.DecRef(t)
		} else {
			rt.ErrClear()
			msg = err.Error()
		}
	}
	var ce *ConversionError
	if errors.As(err, &ce) {
		cls = rt.Exc.TypeError
	}
	rt.ErrSetString(cls, msg)
}
