package ecs

import "github.com/kamstrup/intmap"

// reverseRef is one recorded "source holds a relation whose target is
// this entity" (or "source uses this entity as a component type") fact.
type reverseRef struct {
	source ID
	// component is the concrete relation id on source; for a dontFragment
	// base it is the base's wildcard column id, and for an entity used as a
	// component type it is that entity id.
	component ID
}

// reverseIndex maps a target entity to every relation that points at it,
// so destroying the target can clean up (and possibly cascade to) every
// source.
type reverseIndex struct {
	byTarget *intmap.Map[int64, []reverseRef]
}

func newReverseIndex() *reverseIndex {
	return &reverseIndex{byTarget: intmap.New[int64, []reverseRef](64)}
}

func (r *reverseIndex) add(target, source, component ID) {
	key := int64(target)
	refs, _ := r.byTarget.Get(key)
	r.byTarget.Put(key, append(refs, reverseRef{source: source, component: component}))
}

func (r *reverseIndex) remove(target, source, component ID) {
	key := int64(target)
	refs, ok := r.byTarget.Get(key)
	if !ok {
		return
	}
	out := refs[:0]
	for _, ref := range refs {
		if ref.source != source || ref.component != component {
			out = append(out, ref)
		}
	}
	if len(out) == 0 {
		r.byTarget.Del(key)
	} else {
		r.byTarget.Put(key, out)
	}
}

// referencesOf returns every recorded reference to target. Callers must
// not retain the returned slice past further index mutation.
func (r *reverseIndex) referencesOf(target ID) []reverseRef {
	refs, _ := r.byTarget.Get(int64(target))
	return refs
}
