package rupy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feather-lang/rupy/guest"
)

func TestWrapWhileStoppedPanics(t *testing.T) {
	b := New()
	defer func() {
		r := recover()
		cv, ok := r.(*ContractViolation)
		require.True(t, ok, "expected a ContractViolation, got %v", r)
		assert.Equal(t, "wrap", cv.Op)
	}()
	b.wrap(guest.Token(1), Owned)
}

func TestWrapNull(t *testing.T) {
	b := New()
	require.NoError(t, b.Start())
	defer b.Stop()

	h := b.wrap(guest.Null, Owned)
	assert.True(t, h.IsNull())
	assert.Equal(t, 0, b.LiveHandles(), "null handles are not registered")
	h.Release()
	h.DecRef()
}

func TestStealTransfersOwnership(t *testing.T) {
	b := New()
	require.NoError(t, b.Start())
	defer b.Stop()
	rt := b.rt

	l := rt.NewList(1)
	defer rt.DecRef(l)

	h := b.wrap(rt.NewStr("x"), Owned)
	h.IncRef()
	tok := h.steal()
	assert.True(t, h.Released())
	assert.Equal(t, 1, rt.RefCount(tok), "steal leaves exactly the stolen reference")
	require.Equal(t, 0, rt.ListSetItem(l, 0, tok))
	assert.Equal(t, 0, b.LiveHandles())
}

func TestGeneratorStateMachine(t *testing.T) {
	calls := 0
	g := &generator{p: ProducerFunc(func() (any, bool, error) {
		calls++
		if calls > 2 {
			return nil, false, nil
		}
		return calls, true, nil
	})}
	assert.Equal(t, GeneratorReady, g.state)

	v, ok, err := g.step()
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 1, v)
	assert.Equal(t, GeneratorSuspended, g.state)

	_, ok, _ = g.step()
	assert.True(t, ok)
	_, ok, _ = g.step()
	assert.False(t, ok)
	assert.Equal(t, GeneratorExhausted, g.state)

	_, ok, _ = g.step()
	assert.False(t, ok)
	assert.Equal(t, 3, calls, "an exhausted generator never resumes its producer")
	assert.Equal(t, "exhausted", g.state.String())
}
