package rupy

import (
	"fmt"
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/feather-lang/rupy/guest"
)

// Bridge connects host code to one guest runtime.
//
// Create a bridge with [New], then [Bridge.Start] it before use and
// [Bridge.Stop] it when done, or run a block with [Bridge.Session].
// A bridge is not safe for concurrent use from multiple goroutines.
//
//	b := rupy.New()
//	err := b.Session(func(b *rupy.Bridge) error {
//	    m, err := b.Import("string")
//	    if err != nil {
//	        return err
//	    }
//	    defer m.Release()
//	    letters, err := m.GetAttr("ascii_letters")
//	    ...
//	})
type Bridge struct {
	rt      *guest.Runtime
	log     *zap.Logger
	metrics *metrics
	legacy  bool

	mu      sync.Mutex
	handles map[uint64]*Handle
	nextID  uint64
	scopes  []*Scope

	observers []func()
	main      *Proxy // builtins module, created on first use
	operator  *Proxy // operator module, created on first use
}

type options struct {
	logger    *zap.Logger
	reg       prometheus.Registerer
	namespace string
	legacy    bool
	modules   map[string]guest.ModuleFunc
}

// Option configures a Bridge.
type Option func(*options)

// WithLogger sets the bridge logger. The default discards everything.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithRegisterer registers the bridge metrics with reg.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(o *options) { o.reg = reg }
}

// WithNamespace sets the metrics namespace. The default is "rupy".
func WithNamespace(ns string) Option {
	return func(o *options) { o.namespace = ns }
}

// WithLegacyMode enables legacy mode: Send results are converted to native
// values where possible, and host callables cannot be passed to the guest.
func WithLegacyMode(on bool) Option {
	return func(o *options) { o.legacy = on }
}

// WithModule makes a host-defined guest module importable.
func WithModule(name string, fn guest.ModuleFunc) Option {
	return func(o *options) {
		if o.modules == nil {
			o.modules = make(map[string]guest.ModuleFunc)
		}
		o.modules[name] = fn
	}
}

// New creates a stopped bridge.
func New(opts ...Option) *Bridge {
	o := options{namespace: "rupy"}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = zap.NewNop()
	}
	rt := guest.New()
	for name, fn := range o.modules {
		rt.DefineModule(name, fn)
	}
	return &Bridge{
		rt:      rt,
		log:     o.logger,
		metrics: newMetrics(o.reg, o.namespace),
		legacy:  o.legacy,
		handles: make(map[uint64]*Handle),
	}
}

// Runtime returns the underlying guest runtime.
func (b *Bridge) Runtime() *guest.Runtime { return b.rt }

// LegacyMode reports whether the bridge runs in legacy mode.
func (b *Bridge) LegacyMode() bool { return b.legacy }

// Alive reports whether the guest runtime is running.
func (b *Bridge) Alive() bool { return b.rt.IsInitialized() }

// Start brings the guest runtime up. Starting a running bridge is a no-op.
func (b *Bridge) Start() error {
	if b.Alive() {
		return nil
	}
	if err := b.rt.Initialize(); err != nil {
		return fmt.Errorf("start guest runtime: %w", err)
	}
	b.log.Info("guest runtime started", zap.Bool("legacy_mode", b.legacy))
	return nil
}

// Stop shuts the guest runtime down. Outstanding handles are forgotten, not
// released; using them afterwards is safe but does nothing. Stop observers
// run before the runtime is finalized.
func (b *Bridge) Stop() error {
	if !b.Alive() {
		return ErrNotRunning
	}
	for _, fn := range b.observers {
		fn()
	}
	b.clearHandles()
	if b.rt.ErrOccurred() != guest.Null {
		b.log.Debug("discarding pending guest exception on stop")
		b.rt.ErrClear()
	}
	b.main, b.operator = nil, nil
	b.rt.Finalize()
	b.log.Info("guest runtime stopped")
	return nil
}

// OnStop registers fn to run each time the bridge stops.
func (b *Bridge) OnStop(fn func()) {
	b.observers = append(b.observers, fn)
}

// Session starts the runtime, runs fn and stops the runtime again, even if
// fn fails or panics.
func (b *Bridge) Session(fn func(b *Bridge) error) (err error) {
	if err := b.Start(); err != nil {
		return err
	}
	defer func() {
		if stopErr := b.Stop(); stopErr != nil && err == nil {
			err = stopErr
		}
	}()
	return fn(b)
}

// Import imports a guest module.
func (b *Bridge) Import(name string) (*Proxy, error) {
	if !b.Alive() {
		return nil, ErrNotRunning
	}
	tok := b.rt.Import(name)
	p, err := b.result(tok)
	if err != nil {
		return nil, fmt.Errorf("import %s: %w", name, err)
	}
	b.log.Debug("imported guest module", zap.String("module", name))
	return p, nil
}

// Main returns a proxy for the builtins module. The proxy is owned by the
// bridge; do not release it. If it is released anyway, the next call
// returns a fresh one.
func (b *Bridge) Main() (*Proxy, error) {
	if !b.Alive() {
		return nil, ErrNotRunning
	}
	if b.main == nil || b.main.h.Released() {
		b.main = b.newProxy(b.wrapPinned(b.rt.Builtins(), Borrowed))
	}
	return b.main, nil
}

func (b *Bridge) operatorModule() (*Proxy, error) {
	if b.operator == nil || b.operator.h.Released() {
		tok := b.rt.Import("operator")
		if tok == guest.Null {
			return nil, b.HandlePending()
		}
		b.operator = b.newProxy(b.wrapPinned(tok, Owned))
	}
	return b.operator, nil
}

// Constructor creates instances of a guest class.
type Constructor func(args ...any) (*Proxy, error)

// Type resolves a qualified class name such as "fractions.Fraction" and
// returns a constructor for it.
func (b *Bridge) Type(qualified string) (Constructor, error) {
	i := strings.LastIndexByte(qualified, '.')
	if i <= 0 || i == len(qualified)-1 {
		return nil, fmt.Errorf("rupy: type name %q must be module.Class", qualified)
	}
	mod, err := b.Import(qualified[:i])
	if err != nil {
		return nil, err
	}
	defer mod.Release()
	cls, err := mod.GetAttr(qualified[i+1:])
	if err != nil {
		return nil, fmt.Errorf("type %s: %w", qualified, err)
	}
	if cls.Role() != RoleClass {
		cls.Release()
		return nil, fmt.Errorf("rupy: %s is not a class", qualified)
	}
	return func(args ...any) (*Proxy, error) {
		if cls.Handle().Released() {
			return nil, fmt.Errorf("type %s: %w", qualified, ErrReleased)
		}
		return cls.Call(args...)
	}, nil
}
