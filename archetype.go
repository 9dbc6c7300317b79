package ecs

import (
	"sort"

	"github.com/TheBitDrifter/bark"
	"github.com/TheBitDrifter/mask"
	"github.com/kamstrup/intmap"
)

// archetypeID is an internal monotonic handle, kept only for debugging and
// equality checks; the signature itself is the archetype's real identity.
type archetypeID uint32

// archetype stores every entity whose component signature matches exactly,
// one dense column per signature member. Columns are keyed by runtime id
// rather than Go type, so two relations sharing a value type remain
// distinct signature members.
type archetype struct {
	id        archetypeID
	signature []ID
	sigMask   mask.Mask

	entities []ID
	position *intmap.Map[int64, int]

	// columns holds one dense slice per concrete signature member, parallel
	// to entities. For a dontFragment wildcard column (signature member
	// classifies KindWildcardRelation), the column instead holds one
	// map[ID]any per row (target -> value).
	columns map[ID][]any

	// wildcardTargets lists, for each base component with at least one
	// concrete relation member in this signature, the sorted set of
	// targets present (fragmented mode only).
	wildcardTargets map[ID][]ID
}

// canonicalSignature sorts and dedupes a component id list.
func canonicalSignature(ids []ID) []ID {
	out := append([]ID(nil), ids...)
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	deduped := out[:0]
	var last ID
	haveLast := false
	for _, id := range out {
		if haveLast && id == last {
			continue
		}
		deduped = append(deduped, id)
		last = id
		haveLast = true
	}
	return deduped
}

func newArchetype(id archetypeID, signature []ID, rs *rowSchema, cmax ID) *archetype {
	a := &archetype{
		id:              id,
		signature:       signature,
		sigMask:         rs.maskFor(signature),
		position:        intmap.New[int64, int](16),
		columns:         make(map[ID][]any, len(signature)),
		wildcardTargets: make(map[ID][]ID),
	}
	for _, c := range signature {
		a.columns[c] = nil
		if Classify(c, cmax) == KindWildcardRelation {
			continue
		}
		if kind := Classify(c, cmax); kind == KindEntityRelation || kind == KindComponentRelation {
			base, target, _, err := DecodeRelation(c, cmax)
			if err == nil {
				a.wildcardTargets[base] = insertSorted(a.wildcardTargets[base], target)
			}
		}
	}
	return a
}

func insertSorted(targets []ID, t ID) []ID {
	i := sort.Search(len(targets), func(i int) bool { return targets[i] >= t })
	if i < len(targets) && targets[i] == t {
		return targets
	}
	out := append(targets, 0)
	copy(out[i+1:], out[i:])
	out[i] = t
	return out
}

func (a *archetype) len() int { return len(a.entities) }

// addEntity appends e with the given component values. Precondition:
// keys(values) == signature, enforced by the mutation engine.
func (a *archetype) addEntity(e ID, values map[ID]any) {
	pos := len(a.entities)
	a.entities = append(a.entities, e)
	a.position.Put(int64(e), pos)
	for _, c := range a.signature {
		a.columns[c] = append(a.columns[c], values[c])
	}
}

// removeEntity swap-removes e, keeping columns dense. Callers must not
// cache positions across mutation.
func (a *archetype) removeEntity(e ID) {
	pos, ok := a.position.Get(int64(e))
	if !ok {
		return
	}
	last := len(a.entities) - 1
	if pos != last {
		movedEntity := a.entities[last]
		a.entities[pos] = movedEntity
		a.position.Put(int64(movedEntity), pos)
		for _, c := range a.signature {
			a.columns[c][pos] = a.columns[c][last]
		}
	}
	a.entities = a.entities[:last]
	for _, c := range a.signature {
		a.columns[c] = a.columns[c][:last]
	}
	a.position.Del(int64(e))
}

// set overwrites an existing column value for e.
func (a *archetype) set(e ID, c ID, value any) error {
	pos, ok := a.position.Get(int64(e))
	if !ok {
		return bark.AddTrace(EntityNotFoundError{Entity: e})
	}
	col, ok := a.columns[c]
	if !ok {
		return bark.AddTrace(InvalidComponentTypeError{ID: c, Reason: "component not in this archetype's signature"})
	}
	col[pos] = value
	return nil
}

// TargetValue is one element of a materialized wildcard read.
type TargetValue struct {
	Target ID
	Value  any
}

// get reads a component value for e. If c is a wildcard relation (or a
// dontFragment base consulted via its wildcard column), it returns
// []TargetValue instead of a single value.
func (a *archetype) get(e ID, c ID, cmax ID) (any, error) {
	pos, ok := a.position.Get(int64(e))
	if !ok {
		return nil, bark.AddTrace(EntityNotFoundError{Entity: e})
	}

	kind := Classify(c, cmax)
	if kind == KindWildcardRelation {
		base, _, _, _ := DecodeRelation(c, cmax)
		if col, ok := a.columns[c]; ok {
			// dontFragment mode: column holds one map[ID]any per row.
			row, _ := col[pos].(map[ID]any)
			out := make([]TargetValue, 0, len(row))
			for t, v := range row {
				out = append(out, TargetValue{Target: t, Value: v})
			}
			sort.Slice(out, func(i, j int) bool { return out[i].Target < out[j].Target })
			return out, nil
		}
		targets := a.wildcardTargets[base]
		if len(targets) == 0 {
			return nil, bark.AddTrace(MissingComponentError{Entity: e, Component: c})
		}
		out := make([]TargetValue, 0, len(targets))
		for _, t := range targets {
			concrete, err := Relation(base, t, cmax)
			if err != nil {
				continue
			}
			if col, ok := a.columns[concrete]; ok {
				out = append(out, TargetValue{Target: t, Value: col[pos]})
			}
		}
		return out, nil
	}

	if col, ok := a.columns[c]; ok {
		return col[pos], nil
	}
	return nil, bark.AddTrace(MissingComponentError{Entity: e, Component: c})
}

// contains reports whether c is present in the signature, with wildcard
// semantics: a wildcard (b, *) is "contained" if any concrete (b, t) member
// exists, or if the dontFragment column for b is present (possibly empty).
func (a *archetype) contains(c ID, cmax ID) bool {
	if _, ok := a.columns[c]; ok {
		return true
	}
	if Classify(c, cmax) == KindWildcardRelation {
		base, _, _, _ := DecodeRelation(c, cmax)
		return len(a.wildcardTargets[base]) > 0
	}
	return false
}

func (a *archetype) entitiesSlice() []ID { return a.entities }

func (a *archetype) columnOf(c ID) ([]any, bool) {
	col, ok := a.columns[c]
	return col, ok
}

// forEachWithColumns zips the requested columns and invokes fn(entity,
// vals) per entity. fn returning false stops iteration early. The
// argument vector is reused across calls; callers must not retain it.
func (a *archetype) forEachWithColumns(cs []ID, fn func(e ID, vals []any) bool) {
	cols := make([][]any, len(cs))
	for i, c := range cs {
		cols[i] = a.columns[c]
	}
	vals := make([]any, len(cs))
	for i, e := range a.entities {
		for j, col := range cols {
			if col != nil {
				vals[j] = col[i]
			}
		}
		if !fn(e, vals) {
			return
		}
	}
}
