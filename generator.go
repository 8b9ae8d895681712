package rupy

import (
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/feather-lang/rupy/guest"
)

// GeneratorState is the state of a bridged producer.
type GeneratorState int

const (
	GeneratorReady GeneratorState = iota
	GeneratorSuspended
	GeneratorExhausted
)

func (s GeneratorState) String() string {
	switch s {
	case GeneratorReady:
		return "ready"
	case GeneratorSuspended:
		return "suspended"
	}
	return "exhausted"
}

// Producer yields values one at a time. Step returns ok=false once there
// are no more values.
type Producer interface {
	Step() (value any, ok bool, err error)
}

// ProducerFunc adapts a function to Producer.
type ProducerFunc func() (any, bool, error)

func (f ProducerFunc) Step() (any, bool, error) { return f() }

// Values returns a producer that yields vs in order.
func Values(vs ...any) Producer {
	i := 0
	return ProducerFunc(func() (any, bool, error) {
		if i >= len(vs) {
			return nil, false, nil
		}
		i++
		return vs[i-1], true, nil
	})
}

type generator struct {
	p     Producer
	state GeneratorState
}

// step resumes the producer once. An exhausted or failed generator never
// resumes it again.
func (g *generator) step() (any, bool, error) {
	if g.state == GeneratorExhausted {
		return nil, false, nil
	}
	v, ok, err := g.p.Step()
	if err != nil || !ok {
		g.state = GeneratorExhausted
		return nil, false, err
	}
	g.state = GeneratorSuspended
	return v, true, nil
}

// Generator exposes p to the guest as an iterator. Each guest next()
// resumes p once and converts the value it yields; when p is done the
// iterator raises StopIteration. A producer error becomes a RuntimeError.
func (b *Bridge) Generator(p Producer) (*Proxy, error) {
	if !b.Alive() {
		return nil, ErrNotRunning
	}
	if b.legacy {
		return nil, &ConversionError{Direction: ToForeignDirection, Type: "rupy.Producer", Reason: "generators are not supported in legacy mode"}
	}
	g := &generator{p: p}
	name := "rupy.generator." + uuid.NewString()
	fn := b.wrap(b.rt.NewCFunction(name, func(rt *guest.Runtime, _, _ guest.Token) guest.Token {
		v, ok, err := g.step()
		if err != nil {
			b.log.Debug("producer failed", zap.String("generator", name), zap.Error(err))
			b.raise(err)
			return guest.Null
		}
		if !ok {
			rt.ErrSetNone(rt.Exc.StopIteration)
			return guest.Null
		}
		h, err := b.toForeign(v, false)
		if err != nil {
			b.raise(err)
			return guest.Null
		}
		rt.IncRef(h.token)
		h.Release()
		return h.token
	}), Owned)
	defer fn.Release()

	// No sentinel: only the producer finishing ends the iteration.
	return b.result(b.rt.CallIter(fn.token, guest.Null))
}
