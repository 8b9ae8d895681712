package rupy

import (
	"go.uber.org/zap"

	"github.com/feather-lang/rupy/guest"
	"github.com/feather-lang/rupy/internal/logging"
)

// Ownership says whether a token handed to the bridge already carries a
// reference for it.
type Ownership int

const (
	// Owned tokens are new references; the handle adopts them as is.
	Owned Ownership = iota
	// Borrowed tokens are owned elsewhere; the handle takes its own reference.
	Borrowed
)

// Handle owns a guest reference on behalf of host code.
//
// A live handle is registered with its bridge. Releasing it removes it from
// the registry and, if the runtime is still running, drops its guest
// references. When the runtime stops, the registry is cleared without
// touching the guest, so releasing a handle afterwards is a no-op.
type Handle struct {
	b     *Bridge
	id    uint64
	token guest.Token
	refs  int // guest references held; 0 once released
}

// wrap creates a handle for tok. Borrowed tokens are IncRef'd.
// It panics with a ContractViolation if the runtime is not alive.
func (b *Bridge) wrap(tok guest.Token, own Ownership) *Handle {
	h := b.newHandle(tok, own)
	if h.token != guest.Null {
		b.track(h)
	}
	return h
}

// wrapPinned is wrap without scope tracking, for handles the bridge caches.
func (b *Bridge) wrapPinned(tok guest.Token, own Ownership) *Handle {
	return b.newHandle(tok, own)
}

func (b *Bridge) newHandle(tok guest.Token, own Ownership) *Handle {
	if !b.Alive() {
		panic(&ContractViolation{Op: "wrap", Reason: "guest runtime is not running"})
	}
	h := &Handle{b: b, token: tok}
	if tok == guest.Null {
		return h
	}
	if own == Borrowed {
		b.rt.IncRef(tok)
		b.metrics.increfs.Inc()
	}
	h.refs = 1

	b.mu.Lock()
	b.nextID++
	h.id = b.nextID
	b.handles[h.id] = h
	n := len(b.handles)
	b.mu.Unlock()

	b.metrics.live.Set(float64(n))
	return h
}

// Token returns the guest token, or guest.Null if the handle is null.
func (h *Handle) Token() guest.Token { return h.token }

// Bridge returns the bridge the handle belongs to.
func (h *Handle) Bridge() *Bridge { return h.b }

// IsNull reports whether the handle wraps no object.
func (h *Handle) IsNull() bool { return h.token == guest.Null }

// Released reports whether the handle no longer holds a reference.
func (h *Handle) Released() bool {
	h.b.mu.Lock()
	defer h.b.mu.Unlock()
	_, ok := h.b.handles[h.id]
	return !ok
}

// IncRef takes one more guest reference, held by this handle.
func (h *Handle) IncRef() {
	b := h.b
	b.mu.Lock()
	_, ok := b.handles[h.id]
	if ok {
		h.refs++
	}
	refs := h.refs
	b.mu.Unlock()
	if !ok || !b.Alive() {
		return
	}
	b.rt.IncRef(h.token)
	b.metrics.increfs.Inc()
	h.trace("handle incref", zap.Int("refs", refs))
}

// DecRef drops one guest reference. When the last one goes, the handle is
// deregistered first, then the guest DecRef is issued if the runtime is
// still alive. DecRef on a deregistered handle is a no-op.
func (h *Handle) DecRef() {
	b := h.b
	b.mu.Lock()
	if _, ok := b.handles[h.id]; !ok {
		b.mu.Unlock()
		if h.token != guest.Null && !b.Alive() {
			b.log.Debug("decref after runtime stop ignored", zap.Uint64("handle", h.id))
		}
		return
	}
	h.refs--
	last := h.refs == 0
	if last {
		delete(b.handles, h.id)
	}
	n := len(b.handles)
	b.mu.Unlock()

	b.metrics.live.Set(float64(n))
	if b.Alive() {
		b.rt.DecRef(h.token)
		b.metrics.decrefs.Inc()
		h.trace("handle decref", zap.Bool("last", last))
	}
}

// Release drops every reference the handle holds. It is idempotent.
func (h *Handle) Release() {
	b := h.b
	b.mu.Lock()
	_, ok := b.handles[h.id]
	refs := h.refs
	if ok {
		delete(b.handles, h.id)
		h.refs = 0
	}
	n := len(b.handles)
	b.mu.Unlock()

	if !ok {
		return
	}
	b.metrics.live.Set(float64(n))
	if !b.Alive() {
		return
	}
	for i := 0; i < refs; i++ {
		b.rt.DecRef(h.token)
		b.metrics.decrefs.Inc()
	}
	h.trace("handle released", zap.Int("refs", refs))
}

// trace logs refcount traffic at logging.TraceLevel.
func (h *Handle) trace(msg string, fields ...zap.Field) {
	if ce := h.b.log.Check(logging.TraceLevel, msg); ce != nil {
		ce.Write(append(fields, zap.Uint64("handle", h.id), zap.Uintptr("token", uintptr(h.token)))...)
	}
}

// steal deregisters the handle and hands its reference to the caller,
// for guest APIs that take ownership of an argument.
func (h *Handle) steal() guest.Token {
	b := h.b
	b.mu.Lock()
	_, ok := b.handles[h.id]
	if ok {
		delete(b.handles, h.id)
		h.refs--
	}
	extra := h.refs
	h.refs = 0
	n := len(b.handles)
	b.mu.Unlock()

	b.metrics.live.Set(float64(n))
	for i := 0; i < extra; i++ {
		b.rt.DecRef(h.token)
		b.metrics.decrefs.Inc()
	}
	return h.token
}

// LiveHandles returns the number of registered handles.
func (b *Bridge) LiveHandles() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.handles)
}

// clearHandles empties the registry without touching the guest.
func (b *Bridge) clearHandles() {
	b.mu.Lock()
	n := len(b.handles)
	for _, h := range b.handles {
		h.refs = 0
	}
	b.handles = make(map[uint64]*Handle)
	b.mu.Unlock()

	b.metrics.live.Set(0)
	if n > 0 {
		b.log.Debug("handle registry cleared on stop", zap.Int("handles", n))
	}
}
