package composite

import (
	"bytes"
	"log/slog"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/lockdown/internal/host"
	"github.com/roach88/lockdown/internal/types"
)

func collected(reg *Registry, done func() bool) func() bool {
	return func() bool {
		runtime.GC()
		reg.Collect()
		return done()
	}
}

func TestRegistry_DoesNotKeepValuesAlive(t *testing.T) {
	reg := newTestRegistry(host.Default())
	func() {
		for range 10 {
			reg.ManagerFor(NewObject().Put("x", 1))
		}
	}()

	require.Eventually(t, collected(reg, func() bool { return reg.Len() == 0 }),
		5*time.Second, 10*time.Millisecond)
}

func TestRegistry_LookupWhileAlive(t *testing.T) {
	reg := newTestRegistry(host.Default())
	obj := NewObject()
	m := reg.ManagerFor(obj)

	got, ok := reg.Lookup(m.Handle())
	require.True(t, ok)
	assert.Same(t, obj, got)
	assert.Same(t, m, reg.ManagerFor(obj))

	_, ok = reg.Lookup(m.Handle() + 1000)
	assert.False(t, ok)
	runtime.KeepAlive(obj)
}

func TestRegistry_CollectKeepsLiveValues(t *testing.T) {
	reg := newTestRegistry(host.Default())
	pt := point()
	child := NewObject().Put("x", 1)
	parent := NewObject().Put("at", child)
	holder := types.ObjectType(map[string]types.Type{"at": pt})
	pm := reg.ManagerFor(parent)
	require.NoError(t, pm.AddCompositeType(holder, false))

	func() {
		for range 10 {
			reg.ManagerFor(NewObject().Put("x", 1))
		}
	}()
	require.Eventually(t, collected(reg, func() bool { return reg.Len() == 2 }),
		5*time.Second, 10*time.Millisecond)

	got, ok := reg.Lookup(pm.Handle())
	require.True(t, ok)
	assert.Same(t, parent, got)
	assert.Same(t, pm, reg.ManagerFor(parent))
	assert.Equal(t, 1, pm.AttachedCount(holder))
	assert.Equal(t, 1, reg.ManagerFor(child).AttachedCount(pt))
	assert.Equal(t, 1, pm.bound.len())
	runtime.KeepAlive(parent)
	runtime.KeepAlive(child)
}

func TestRegistry_DeadParentReleasesChild(t *testing.T) {
	var logs bytes.Buffer
	reg := NewRegistry(host.Default(), WithLogger(slog.New(
		slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug}),
	)))
	pt := point()
	child := NewObject().Put("x", 1)
	holder := types.ObjectType(map[string]types.Type{"at": pt})

	func() {
		parent := NewObject().Put("at", child)
		require.NoError(t, reg.ManagerFor(parent).AddCompositeType(holder, false))
	}()
	require.Equal(t, 1, reg.ManagerFor(child).AttachedCount(pt))

	require.Eventually(t, collected(reg, func() bool {
		return reg.ManagerFor(child).AttachedCount(pt) == 0
	}), 5*time.Second, 10*time.Millisecond)
	assert.Contains(t, logs.String(), "manager reclaimed")
	assert.Contains(t, logs.String(), "type detached")
}

func TestRegistry_ForeignValuePanics(t *testing.T) {
	a := newTestRegistry(host.Default())
	b := newTestRegistry(host.Default())
	obj := NewObject()
	a.ManagerFor(obj)

	assert.Panics(t, func() { b.ManagerFor(obj) })
}
