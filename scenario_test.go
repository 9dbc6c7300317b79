package ecs

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPositionVelocityIntegration(t *testing.T) {
	w := Factory.NewWorld()
	pos := mustRegister(t, w, ComponentDesc{Name: "Position"})
	vel := mustRegister(t, w, ComponentDesc{Name: "Velocity"})

	e1 := mustNew(t, w)
	e2 := mustNew(t, w)
	require.NoError(t, w.Set(e1, pos, &Position{X: 0, Y: 0}))
	require.NoError(t, w.Set(e1, vel, &Velocity{X: 2, Y: 1}))
	require.NoError(t, w.Set(e2, pos, &Position{X: 5, Y: 3}))
	require.NoError(t, w.Set(e2, vel, &Velocity{X: -1, Y: 0.5}))
	require.NoError(t, w.Sync())

	q := w.CreateQuery([]ID{pos, vel}, nil)
	defer q.Dispose()

	for step := 0; step < 2; step++ {
		require.NoError(t, q.Iterate([]ID{pos, vel}, func(_ ID, vals []any) bool {
			p := vals[0].(*Position)
			v := vals[1].(*Velocity)
			p.X += v.X
			p.Y += v.Y
			return true
		}))
	}

	p1, err := w.Get(e1, pos)
	require.NoError(t, err)
	assert.Equal(t, &Position{X: 4, Y: 2}, p1)
	p2, err := w.Get(e2, pos)
	require.NoError(t, err)
	assert.Equal(t, &Position{X: 3, Y: 4}, p2)
}

func TestExclusiveRelationReplacement(t *testing.T) {
	w := Factory.NewWorld()
	childOf := mustRegister(t, w, ComponentDesc{Name: "ChildOf", Exclusive: true})
	p1 := mustNew(t, w)
	p2 := mustNew(t, w)
	c := mustNew(t, w)

	require.NoError(t, w.Set(c, mustRelation(t, childOf, p1), nil))
	require.NoError(t, w.Sync())
	require.NoError(t, w.Set(c, mustRelation(t, childOf, p2), nil))
	require.NoError(t, w.Sync())

	has, err := w.Has(c, mustRelation(t, childOf, p1))
	require.NoError(t, err)
	assert.False(t, has)
	has, err = w.Has(c, mustRelation(t, childOf, p2))
	require.NoError(t, err)
	assert.True(t, has)
}

func TestWildcardListenerSeesReplacement(t *testing.T) {
	w := Factory.NewWorld()
	childOf := mustRegister(t, w, ComponentDesc{Name: "ChildOf", Exclusive: true})
	p1 := mustNew(t, w)
	p2 := mustNew(t, w)
	c := mustNew(t, w)

	type event struct {
		op        string
		entity    ID
		component ID
	}
	var events []event
	w.Hook(mustRelation(t, childOf, Wildcard),
		func(_ *World, e ID, comp ID, _ any) {
			events = append(events, event{"added", e, comp})
		},
		func(_ *World, e ID, comp ID, _ any) {
			events = append(events, event{"removed", e, comp})
		},
	)

	require.NoError(t, w.Set(c, mustRelation(t, childOf, p1), nil))
	require.NoError(t, w.Sync())
	events = nil

	require.NoError(t, w.Set(c, mustRelation(t, childOf, p2), nil))
	require.NoError(t, w.Sync())

	require.Len(t, events, 2)
	assert.Equal(t, event{"removed", c, mustRelation(t, childOf, p1)}, events[0])
	assert.Equal(t, event{"added", c, mustRelation(t, childOf, p2)}, events[1])
}

func TestCascadeDestroyHierarchy(t *testing.T) {
	w := Factory.NewWorld()
	childOf := mustRegister(t, w, ComponentDesc{Name: "ChildOf", Exclusive: true, CascadeDelete: true})

	p := mustNew(t, w)
	c := mustNew(t, w)
	g := mustNew(t, w)
	require.NoError(t, w.Set(c, mustRelation(t, childOf, p), nil))
	require.NoError(t, w.Set(g, mustRelation(t, childOf, c), nil))
	require.NoError(t, w.Sync())

	require.NoError(t, w.Destroy(p))
	require.NoError(t, w.Sync())

	assert.False(t, w.Exists(p))
	assert.False(t, w.Exists(c))
	assert.False(t, w.Exists(g))
}

func TestDestroyTargetWithoutCascade(t *testing.T) {
	w := Factory.NewWorld()
	likes := mustRegister(t, w, ComponentDesc{Name: "Likes"})

	target := mustNew(t, w)
	source := mustNew(t, w)
	require.NoError(t, w.Set(source, mustRelation(t, likes, target), nil))
	require.NoError(t, w.Sync())

	require.NoError(t, w.Destroy(target))
	require.NoError(t, w.Sync())

	// The relation is gone but the source survives.
	assert.False(t, w.Exists(target))
	assert.True(t, w.Exists(source))
	has, err := w.Has(source, mustRelation(t, likes, target))
	require.NoError(t, err)
	assert.False(t, has)
}

func TestSnapshotRoundTrip(t *testing.T) {
	w := Factory.NewWorld()
	pos := mustRegister(t, w, ComponentDesc{Name: "Position"})
	vel := mustRegister(t, w, ComponentDesc{Name: "Velocity"})
	childOf := mustRegister(t, w, ComponentDesc{Name: "ChildOf", Exclusive: true})

	e1 := mustNew(t, w)
	e2 := mustNew(t, w)
	require.NoError(t, w.Set(e1, pos, Position{X: 0, Y: 0}))
	require.NoError(t, w.Set(e1, vel, Velocity{X: 2, Y: 1}))
	require.NoError(t, w.Set(e2, pos, Position{X: 5, Y: 3}))
	require.NoError(t, w.Set(e2, vel, Velocity{X: -1, Y: 0.5}))

	p1 := mustNew(t, w)
	p2 := mustNew(t, w)
	c := mustNew(t, w)
	require.NoError(t, w.Set(c, mustRelation(t, childOf, p1), nil))
	require.NoError(t, w.Sync())
	require.NoError(t, w.Set(c, mustRelation(t, childOf, p2), nil))
	require.NoError(t, w.Sync())

	// Leave a hole in the id space so the free-list round-trips too.
	gone := mustNew(t, w)
	require.NoError(t, w.Destroy(gone))
	require.NoError(t, w.Sync())

	restored, err := Factory.NewWorldFromSnapshot(w.Serialize())
	require.NoError(t, err)

	for _, e := range []ID{e1, e2, p1, p2, c} {
		require.True(t, restored.Exists(e))
	}
	require.False(t, restored.Exists(gone))

	v, err := restored.Get(e2, vel)
	require.NoError(t, err)
	assert.Equal(t, Velocity{X: -1, Y: 0.5}, v)

	has, err := restored.Has(c, mustRelation(t, childOf, p2))
	require.NoError(t, err)
	assert.True(t, has)
	has, err = restored.Has(c, mustRelation(t, childOf, p1))
	require.NoError(t, err)
	assert.False(t, has)

	// Serializing the restored world reproduces the snapshot.
	assert.Equal(t, w.Serialize(), restored.Serialize())

	// The restored allocator reuses the hole, then continues past the
	// previous maximum.
	reusedHole := mustNew(t, restored)
	assert.Equal(t, gone, reusedHole)
	fresh := mustNew(t, restored)
	assert.Greater(t, fresh, c)
}
