package ecs

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEntityIDsAreNeverZeroOrReused(t *testing.T) {
	p := NewEntityPool()
	a := p.Create()
	require.False(t, a.IsZero())

	require.True(t, p.Destroy(a))
	b := p.Create()
	assert.Equal(t, a.Index(), b.Index(), "index is recycled")
	assert.NotEqual(t, a, b, "generation differs")
	assert.False(t, p.Alive(a))
	assert.True(t, p.Alive(b))
	assert.False(t, p.Destroy(a), "stale id")
	assert.Equal(t, 1, p.Len())
}

func TestWorldFlushRemovesComponents(t *testing.T) {
	type tag struct{ name string }

	w := NewWorld()
	store := NewStore[tag]()
	w.Register(store)

	var destroyed []EntityID
	w.OnDestroy(func(id EntityID) { destroyed = append(destroyed, id) })

	id := w.CreateEntity()
	store.Set(id, &tag{name: "node"})
	w.MarkForDestruction(id)
	w.MarkForDestruction(id)

	assert.True(t, store.Has(id), "destruction is deferred")
	assert.Equal(t, 1, w.FlushDestroyQueue())
	assert.False(t, store.Has(id))
	assert.False(t, w.Alive(id))
	assert.Equal(t, []EntityID{id}, destroyed)
	assert.Zero(t, w.Queued())
}

func TestEach2(t *testing.T) {
	a := NewStore[int]()
	b := NewStore[string]()
	one, two := NewEntityID(1, 1), NewEntityID(2, 1)
	x, y := 1, 2
	s := "only-one"
	a.Set(one, &x)
	a.Set(two, &y)
	b.Set(one, &s)

	var seen []EntityID
	Each2(a, b, func(id EntityID, _ *int, _ *string) { seen = append(seen, id) })
	assert.Equal(t, []EntityID{one}, seen)
}
