package ecs

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func queryCount(t *testing.T, q *Query) int {
	t.Helper()
	n, err := q.Count()
	require.NoError(t, err)
	return n
}

func TestQueryTracksArchetypeBirthAndDeath(t *testing.T) {
	w := Factory.NewWorld()
	pos := mustRegister(t, w, ComponentDesc{Name: "Position"})
	hp := mustRegister(t, w, ComponentDesc{Name: "Health"})

	q := w.CreateQuery([]ID{hp}, nil)
	defer q.Dispose()

	e := mustNew(t, w)
	require.NoError(t, w.Set(e, pos, nil))
	require.NoError(t, w.Sync())
	assert.Equal(t, 0, queryCount(t, q))

	require.NoError(t, w.Set(e, hp, 100))
	require.NoError(t, w.Sync())
	assert.Equal(t, 1, queryCount(t, q))

	require.NoError(t, w.Delete(e, hp))
	require.NoError(t, w.Sync())
	assert.Equal(t, 0, queryCount(t, q))

	// The [pos, hp] archetype emptied out and was collected.
	for _, a := range w.index.archetypes() {
		assert.NotZero(t, a.len())
	}
}

func TestQueryWithoutFilter(t *testing.T) {
	w := Factory.NewWorld()
	pos := mustRegister(t, w, ComponentDesc{Name: "Position"})
	frozen := mustRegister(t, w, ComponentDesc{Name: "Frozen"})

	moving := mustNew(t, w)
	stuck := mustNew(t, w)
	require.NoError(t, w.Set(moving, pos, nil))
	require.NoError(t, w.Set(stuck, pos, nil))
	require.NoError(t, w.Set(stuck, frozen, nil))
	require.NoError(t, w.Sync())

	q := w.CreateQuery([]ID{pos}, []ID{frozen})
	defer q.Dispose()

	var got []ID
	for e := range q.Entities() {
		got = append(got, e)
	}
	assert.Equal(t, []ID{moving}, got)

	// Structural change flips membership without recreating the query.
	require.NoError(t, w.Delete(stuck, frozen))
	require.NoError(t, w.Sync())
	assert.Equal(t, 2, queryCount(t, q))
}

func TestQuerySharedInstanceAndDispose(t *testing.T) {
	w := Factory.NewWorld()
	pos := mustRegister(t, w, ComponentDesc{Name: "Position"})
	vel := mustRegister(t, w, ComponentDesc{Name: "Velocity"})

	q1 := w.CreateQuery([]ID{pos, vel}, nil)
	// Duplicates and ordering are canonicalized away.
	q2 := w.CreateQuery([]ID{vel, pos, vel}, nil)
	require.Same(t, q1.core, q2.core)
	require.Equal(t, 2, q1.core.refcount)

	require.NoError(t, q1.Dispose())
	assert.ErrorContains(t, q1.Dispose(), "is disposed")
	_, err := q1.Count()
	assert.ErrorContains(t, err, "is disposed")

	// The shared cache stays live for the remaining handle.
	e := mustNew(t, w)
	require.NoError(t, w.Set(e, pos, nil))
	require.NoError(t, w.Set(e, vel, nil))
	require.NoError(t, w.Sync())
	assert.Equal(t, 1, queryCount(t, q2))

	require.NoError(t, q2.Dispose())
	assert.Empty(t, w.queries.byKey)
	assert.Empty(t, w.index.observers)
}

func TestQueryWildcardRelation(t *testing.T) {
	w := Factory.NewWorld()
	childOf := mustRegister(t, w, ComponentDesc{Name: "ChildOf"})
	pos := mustRegister(t, w, ComponentDesc{Name: "Position"})
	p1 := mustNew(t, w)
	p2 := mustNew(t, w)

	c1 := mustNew(t, w)
	c2 := mustNew(t, w)
	orphan := mustNew(t, w)
	require.NoError(t, w.Set(c1, mustRelation(t, childOf, p1), nil))
	require.NoError(t, w.Set(c2, mustRelation(t, childOf, p2), nil))
	require.NoError(t, w.Set(orphan, pos, nil))
	require.NoError(t, w.Sync())

	// A wildcard requirement matches any target of the base.
	q := w.CreateQuery([]ID{mustRelation(t, childOf, Wildcard)}, nil)
	defer q.Dispose()
	assert.Equal(t, 2, queryCount(t, q))

	seen := map[ID]bool{}
	for e := range q.Entities() {
		seen[e] = true
	}
	assert.Equal(t, map[ID]bool{c1: true, c2: true}, seen)

	// And as a negative filter it excludes every target of the base.
	none := w.CreateQuery([]ID{pos}, []ID{mustRelation(t, childOf, Wildcard)})
	defer none.Dispose()
	assert.Equal(t, 1, queryCount(t, none))
}

func TestQueryWildcardOverDontFragment(t *testing.T) {
	w := Factory.NewWorld()
	likes := mustRegister(t, w, ComponentDesc{Name: "Likes", DontFragment: true})
	a := mustNew(t, w)
	e1 := mustNew(t, w)
	e2 := mustNew(t, w)
	require.NoError(t, w.Set(e1, mustRelation(t, likes, a), nil))
	require.NoError(t, w.Set(e2, mustRelation(t, likes, a), nil))
	require.NoError(t, w.Sync())

	q := w.CreateQuery([]ID{mustRelation(t, likes, Wildcard)}, nil)
	defer q.Dispose()
	assert.Equal(t, 2, queryCount(t, q))

	require.NoError(t, w.Delete(e2, mustRelation(t, likes, a)))
	require.NoError(t, w.Sync())
	assert.Equal(t, 1, queryCount(t, q))
}

func TestQueryConcreteDontFragmentRelation(t *testing.T) {
	w := Factory.NewWorld()
	likes := mustRegister(t, w, ComponentDesc{Name: "Likes", DontFragment: true})
	pos := mustRegister(t, w, ComponentDesc{Name: "Position"})
	a := mustNew(t, w)
	b := mustNew(t, w)

	e1 := mustNew(t, w)
	e2 := mustNew(t, w)
	e3 := mustNew(t, w)
	require.NoError(t, w.Set(e1, pos, nil))
	require.NoError(t, w.Set(e1, mustRelation(t, likes, a), nil))
	require.NoError(t, w.Set(e2, pos, nil))
	require.NoError(t, w.Set(e2, mustRelation(t, likes, b), nil))
	require.NoError(t, w.Set(e3, pos, nil))
	require.NoError(t, w.Sync())

	// e1 and e2 share one archetype; a concrete relation requirement must
	// still tell their rows apart.
	require.Same(t, locationOf(t, w, e1), locationOf(t, w, e2))

	likesA := w.CreateQuery([]ID{mustRelation(t, likes, a)}, nil)
	defer likesA.Dispose()
	got := map[ID]bool{}
	for e := range likesA.Entities() {
		got[e] = true
	}
	assert.Equal(t, map[ID]bool{e1: true}, got)
	assert.Equal(t, 1, queryCount(t, likesA))

	// The same concrete id works as a negative filter.
	notLikesA := w.CreateQuery([]ID{pos}, []ID{mustRelation(t, likes, a)})
	defer notLikesA.Dispose()
	got = map[ID]bool{}
	for e := range notLikesA.Entities() {
		got[e] = true
	}
	assert.Equal(t, map[ID]bool{e2: true, e3: true}, got)
	assert.Equal(t, 2, queryCount(t, notLikesA))

	// Membership follows row mutation.
	require.NoError(t, w.Set(e2, mustRelation(t, likes, a), nil))
	require.NoError(t, w.Delete(e1, mustRelation(t, likes, a)))
	require.NoError(t, w.Sync())
	got = map[ID]bool{}
	for e := range likesA.Entities() {
		got[e] = true
	}
	assert.Equal(t, map[ID]bool{e2: true}, got)
}

func TestQueryIterateZipsColumns(t *testing.T) {
	w := Factory.NewWorld()
	pos := mustRegister(t, w, ComponentDesc{Name: "Position"})
	vel := mustRegister(t, w, ComponentDesc{Name: "Velocity"})

	e := mustNew(t, w)
	require.NoError(t, w.Set(e, pos, &Position{X: 1, Y: 2}))
	require.NoError(t, w.Set(e, vel, &Velocity{X: 10, Y: 20}))
	require.NoError(t, w.Sync())

	q := w.CreateQuery([]ID{pos, vel}, nil)
	defer q.Dispose()

	visits := 0
	require.NoError(t, q.Iterate([]ID{pos, vel}, func(got ID, vals []any) bool {
		visits++
		assert.Equal(t, e, got)
		assert.Equal(t, &Position{X: 1, Y: 2}, vals[0])
		assert.Equal(t, &Velocity{X: 10, Y: 20}, vals[1])
		return true
	}))
	assert.Equal(t, 1, visits)
}

func TestQueryCorrectnessPastRowSaturation(t *testing.T) {
	w := Factory.NewWorld()
	likes := mustRegister(t, w, ComponentDesc{Name: "Likes"})

	// Far more distinct signature members than the row bitset has bits:
	// late ids get no row and must be matched by the exact loops alone.
	comps := make([]ID, 2*maskBits)
	for i := range comps {
		comps[i] = mustRegister(t, w, ComponentDesc{})
	}

	es := make([]ID, len(comps))
	for i, c := range comps {
		es[i] = mustNew(t, w)
		require.NoError(t, w.Set(es[i], c, i))
		if i%2 == 0 {
			require.NoError(t, w.Set(es[i], comps[0], i))
		}
	}
	target := es[0]
	holder := mustNew(t, w)
	require.NoError(t, w.Set(holder, mustRelation(t, likes, target), nil))
	require.NoError(t, w.Sync())

	require.Equal(t, uint32(maskBits), w.index.rs.next, "the row schema saturated")

	early := comps[0]
	late := comps[len(comps)-1]

	checkQueryAgainstBruteForce(t, w, []ID{early}, nil)
	checkQueryAgainstBruteForce(t, w, []ID{late}, nil)
	checkQueryAgainstBruteForce(t, w, []ID{early}, []ID{late})
	checkQueryAgainstBruteForce(t, w, []ID{mustRelation(t, likes, target)}, nil)
	checkQueryAgainstBruteForce(t, w, []ID{mustRelation(t, likes, Wildcard)}, nil)

	// An unrowed requirement still rejects non-holders: exactly the one
	// entity carrying the last-registered component matches.
	q := w.CreateQuery([]ID{late}, nil)
	defer q.Dispose()
	var got []ID
	for e := range q.Entities() {
		got = append(got, e)
	}
	assert.Equal(t, []ID{es[len(es)-1]}, got)
}

func TestSyncInsideIterationRejected(t *testing.T) {
	w := Factory.NewWorld()
	pos := mustRegister(t, w, ComponentDesc{Name: "Position"})
	e := mustNew(t, w)
	require.NoError(t, w.Set(e, pos, nil))
	require.NoError(t, w.Sync())

	q := w.CreateQuery([]ID{pos}, nil)
	defer q.Dispose()

	require.NoError(t, q.ForEach(func(ID) bool {
		assert.ErrorContains(t, w.Sync(), "re-entrantly")
		return true
	}))

	// Enqueuing during iteration is fine; it lands on the next Sync.
	require.NoError(t, q.ForEach(func(it ID) bool {
		require.NoError(t, w.Delete(it, pos))
		return true
	}))
	require.NoError(t, w.Sync())
	assert.Equal(t, 0, queryCount(t, q))
}
