package rupy

import (
	"fmt"

	"go.uber.org/zap"
)

// Scope collects the handles created while it is open.
type Scope struct {
	b       *Bridge
	handles []*Handle
	kept    map[*Handle]bool
}

// Scope runs fn with a new handle scope. Every handle created inside fn is
// released when fn returns, except those retained with Keep; kept handles
// move to the enclosing scope, if there is one.
func (b *Bridge) Scope(fn func(s *Scope) error) error {
	if !b.Alive() {
		return ErrNotRunning
	}
	s := &Scope{b: b}
	b.scopes = append(b.scopes, s)
	defer b.closeScope(s)
	return fn(s)
}

// Keep retains a *Proxy or *Handle past the end of the scope.
func (s *Scope) Keep(v any) error {
	var h *Handle
	switch val := v.(type) {
	case *Proxy:
		h = val.h
	case *Handle:
		h = val
	default:
		return fmt.Errorf("rupy: cannot keep %T", v)
	}
	if h.b != s.b {
		return fmt.Errorf("rupy: handle belongs to another bridge")
	}
	if s.kept == nil {
		s.kept = make(map[*Handle]bool)
	}
	s.kept[h] = true
	return nil
}

// Len returns the number of handles the scope has collected.
func (s *Scope) Len() int { return len(s.handles) }

func (b *Bridge) track(h *Handle) {
	if n := len(b.scopes); n > 0 {
		s := b.scopes[n-1]
		s.handles = append(s.handles, h)
	}
}

func (b *Bridge) closeScope(s *Scope) {
	n := len(b.scopes)
	if n == 0 || b.scopes[n-1] != s {
		panic(&ContractViolation{Op: "Scope", Reason: "scopes closed out of order"})
	}
	b.scopes = b.scopes[:n-1]

	var parent *Scope
	if n > 1 {
		parent = b.scopes[n-2]
	}
	released := 0
	for _, h := range s.handles {
		if s.kept[h] {
			if parent != nil {
				parent.handles = append(parent.handles, h)
			}
			continue
		}
		if !h.Released() {
			released++
		}
		h.Release()
	}
	if released > 0 {
		b.log.Debug("scope released handles", zap.Int("handles", released), zap.Int("kept", len(s.kept)))
	}
}
