package ecs

import (
	"iter"
	"strconv"
	"strings"

	"github.com/TheBitDrifter/bark"
	"github.com/TheBitDrifter/mask"
)

// queryKeyFor builds the canonical string key two (with, without) shapes
// share if and only if they name the same components.
func queryKeyFor(with, without []ID) string {
	w := canonicalSignature(with)
	wo := canonicalSignature(without)
	var b strings.Builder
	for i, id := range w {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.FormatInt(int64(id), 10))
	}
	b.WriteByte('|')
	for i, id := range wo {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.FormatInt(int64(id), 10))
	}
	return b.String()
}

// dfRelation is a concrete relation of a dontFragment base, resolved for
// matching: the shared wildcard column id plus the required target.
type dfRelation struct {
	wc     ID
	target ID
}

// queryCore is the shared, live cache behind every Query handle with the
// same (with, without) shape: the set of currently matching archetypes,
// kept current via archetypeObserver notifications instead of rescanning
// the whole index on every read.
type queryCore struct {
	world *World
	key   string

	// Concrete required ids are pre-filtered through the signature bitset
	// and then checked exactly; concrete forbidden ids are checked exactly
	// only. Wildcard ids need the archetype's wildcard-target view, and
	// concrete relations of a dontFragment base live inside the wildcard
	// column's per-row map, so both are matched separately.
	withConcrete    []ID
	withWildcard    []ID
	withoutConcrete []ID
	withoutWildcard []ID

	withDontFragment    []dfRelation
	withoutDontFragment []dfRelation

	withMask mask.Mask

	archetypes []*archetype
	refcount   int
}

// dontFragmentRelation resolves id to its wildcard column and target when
// it is a concrete relation of a dontFragment base.
func dontFragmentRelation(w *World, id ID) (dfRelation, bool) {
	cmax := w.cfg.CMax
	kind := Classify(id, cmax)
	if kind != KindComponentRelation && kind != KindEntityRelation {
		return dfRelation{}, false
	}
	base, target, _, err := DecodeRelation(id, cmax)
	if err != nil || !w.descriptors[base].DontFragment {
		return dfRelation{}, false
	}
	wc, err := Relation(base, Wildcard, cmax)
	if err != nil {
		return dfRelation{}, false
	}
	return dfRelation{wc: wc, target: target}, true
}

func newQueryCore(w *World, key string, with, without []ID) *queryCore {
	c := &queryCore{world: w, key: key}
	cmax := w.cfg.CMax
	for _, id := range canonicalSignature(with) {
		if Classify(id, cmax) == KindWildcardRelation {
			c.withWildcard = append(c.withWildcard, id)
		} else if df, ok := dontFragmentRelation(w, id); ok {
			c.withDontFragment = append(c.withDontFragment, df)
		} else {
			c.withConcrete = append(c.withConcrete, id)
		}
	}
	for _, id := range canonicalSignature(without) {
		if Classify(id, cmax) == KindWildcardRelation {
			c.withoutWildcard = append(c.withoutWildcard, id)
		} else if df, ok := dontFragmentRelation(w, id); ok {
			c.withoutDontFragment = append(c.withoutDontFragment, df)
		} else {
			c.withoutConcrete = append(c.withoutConcrete, id)
		}
	}
	c.withMask = w.index.rs.maskFor(c.withConcrete)
	return c
}

// matches requires every required id present in the signature (wildcards
// matching any relation of their base) and no forbidden id present. The
// mask is a fast reject; the exact loops are the authority.
func (c *queryCore) matches(a *archetype) bool {
	if !a.sigMask.ContainsAll(c.withMask) {
		return false
	}
	cmax := c.world.cfg.CMax
	for _, id := range c.withConcrete {
		if _, ok := a.columns[id]; !ok {
			return false
		}
	}
	for _, id := range c.withWildcard {
		if !a.contains(id, cmax) {
			return false
		}
	}
	for _, df := range c.withDontFragment {
		// The archetype must carry the base's wildcard column; whether a
		// given row holds the target is decided per entity.
		if _, ok := a.columns[df.wc]; !ok {
			return false
		}
	}
	for _, id := range c.withoutConcrete {
		if _, ok := a.columns[id]; ok {
			return false
		}
	}
	for _, id := range c.withoutWildcard {
		if a.contains(id, cmax) {
			return false
		}
	}
	// withoutDontFragment never rejects at archetype level: rows of the
	// same column may or may not hold the target.
	return true
}

func (c *queryCore) checkNewArchetype(a *archetype) {
	if !c.matches(a) {
		return
	}
	for _, cached := range c.archetypes {
		if cached == a {
			return
		}
	}
	c.archetypes = append(c.archetypes, a)
}

func (c *queryCore) removeArchetype(a *archetype) {
	for i, cand := range c.archetypes {
		if cand == a {
			c.archetypes = append(c.archetypes[:i], c.archetypes[i+1:]...)
			return
		}
	}
}

// needsEntityFilter reports whether membership can vary per row within a
// matching archetype, which happens only for dontFragment columns.
func (c *queryCore) needsEntityFilter() bool {
	return len(c.withWildcard) > 0 || len(c.withDontFragment) > 0 || len(c.withoutDontFragment) > 0
}

// entityMatches applies the per-entity filter. Fragmented relation
// members are guaranteed per-entity by archetype membership; only a
// dontFragment wildcard column can vary per row.
func (c *queryCore) entityMatches(a *archetype, e ID) bool {
	if !c.needsEntityFilter() {
		return true
	}
	pos, ok := a.position.Get(int64(e))
	if !ok {
		return false
	}
	for _, id := range c.withWildcard {
		col, hasColumn := a.columns[id]
		if !hasColumn {
			continue
		}
		row, _ := col[pos].(map[ID]any)
		if len(row) == 0 {
			return false
		}
	}
	for _, df := range c.withDontFragment {
		col, hasColumn := a.columns[df.wc]
		if !hasColumn {
			return false
		}
		row, _ := col[pos].(map[ID]any)
		if _, present := row[df.target]; !present {
			return false
		}
	}
	for _, df := range c.withoutDontFragment {
		col, hasColumn := a.columns[df.wc]
		if !hasColumn {
			continue
		}
		row, _ := col[pos].(map[ID]any)
		if _, present := row[df.target]; present {
			return false
		}
	}
	return true
}

// Query is a live, cached view over every archetype whose signature
// contains every "with" component and none of the "without" components.
// Multiple Query handles created with the same shape share one underlying
// cache; each handle must be Dispose'd independently.
type Query struct {
	world    *World
	core     *queryCore
	disposed bool
}

func (q *Query) checkDisposed() error {
	if q.disposed {
		return bark.AddTrace(QueryDisposedError{Key: q.core.key})
	}
	return nil
}

// Count returns the number of entities currently matching.
func (q *Query) Count() (int, error) {
	if err := q.checkDisposed(); err != nil {
		return 0, err
	}
	n := 0
	if !q.core.needsEntityFilter() {
		for _, a := range q.core.archetypes {
			n += a.len()
		}
		return n, nil
	}
	for _, a := range q.core.archetypes {
		for _, e := range a.entitiesSlice() {
			if q.core.entityMatches(a, e) {
				n++
			}
		}
	}
	return n, nil
}

// Entities iterates every matching entity id as a Go 1.23 iter.Seq.
func (q *Query) Entities() iter.Seq[ID] {
	return func(yield func(ID) bool) {
		if q.disposed {
			return
		}
		q.world.iterating++
		defer func() { q.world.iterating-- }()
		for _, a := range q.core.archetypes {
			for _, e := range a.entitiesSlice() {
				if !q.core.entityMatches(a, e) {
					continue
				}
				if !yield(e) {
					return
				}
			}
		}
	}
}

// ForEach is the non-iterator convenience form of Entities, for callers on
// pre-1.23-iterator codepaths such as this package's own tests.
func (q *Query) ForEach(fn func(e ID) bool) error {
	if err := q.checkDisposed(); err != nil {
		return err
	}
	q.world.iterating++
	defer func() { q.world.iterating-- }()
	for _, a := range q.core.archetypes {
		for _, e := range a.entitiesSlice() {
			if !q.core.entityMatches(a, e) {
				continue
			}
			if !fn(e) {
				return nil
			}
		}
	}
	return nil
}

// Iterate zips the requested component columns across every matching
// archetype, handing each entity's values to fn. The vals slice is reused
// across calls; callers must not retain it.
func (q *Query) Iterate(components []ID, fn func(e ID, vals []any) bool) error {
	if err := q.checkDisposed(); err != nil {
		return err
	}
	q.world.iterating++
	defer func() { q.world.iterating-- }()
	for _, a := range q.core.archetypes {
		stop := false
		a.forEachWithColumns(components, func(e ID, vals []any) bool {
			if !q.core.entityMatches(a, e) {
				return true
			}
			if !fn(e, vals) {
				stop = true
				return false
			}
			return true
		})
		if stop {
			break
		}
	}
	return nil
}

// Dispose releases this handle's reference to the shared cache. Further
// calls to Count, ForEach, Iterate or Dispose on q return
// QueryDisposedError; Entities on a disposed q yields no ids.
func (q *Query) Dispose() error {
	if err := q.checkDisposed(); err != nil {
		return err
	}
	q.disposed = true
	q.world.queries.release(q.core)
	return nil
}
