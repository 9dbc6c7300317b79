package ecs

// HookFunc is invoked when a component is added to or removed from an
// entity. value is the component's value at the moment of the event (the
// new value for onAdded, the value just before removal for onRemoved).
type HookFunc func(w *World, e ID, component ID, value any)

// HookHandle identifies a registered hook pair for Unhook.
type HookHandle uint64

type hookEntry struct {
	handle    HookHandle
	onAdded   HookFunc
	onRemoved HookFunc
}

// hookRegistry holds ordered hook registrations per concrete
// component/relation id, plus a separate slot per wildcard base that
// fires in addition to (after) the concrete-id hooks for every concrete
// relation of that base.
type hookRegistry struct {
	byID map[ID][]hookEntry
	next HookHandle
}

func newHookRegistry() *hookRegistry {
	return &hookRegistry{byID: make(map[ID][]hookEntry)}
}

func (r *hookRegistry) register(id ID, onAdded, onRemoved HookFunc) HookHandle {
	r.next++
	h := r.next
	r.byID[id] = append(r.byID[id], hookEntry{handle: h, onAdded: onAdded, onRemoved: onRemoved})
	return h
}

func (r *hookRegistry) unregister(id ID, h HookHandle) bool {
	entries, ok := r.byID[id]
	if !ok {
		return false
	}
	for i, e := range entries {
		if e.handle == h {
			r.byID[id] = append(entries[:i], entries[i+1:]...)
			if len(r.byID[id]) == 0 {
				delete(r.byID, id)
			}
			return true
		}
	}
	return false
}

// dispatchAdded fires, in registration order, every hook registered
// directly against component and then, if component is a concrete
// relation, every hook registered against that relation's wildcard base.
func (r *hookRegistry) dispatchAdded(w *World, e ID, component ID, value any, cmax ID) {
	for _, entry := range r.byID[component] {
		if entry.onAdded != nil {
			entry.onAdded(w, e, component, value)
		}
	}
	r.dispatchWildcard(w, e, component, value, cmax, true)
}

func (r *hookRegistry) dispatchRemoved(w *World, e ID, component ID, value any, cmax ID) {
	for _, entry := range r.byID[component] {
		if entry.onRemoved != nil {
			entry.onRemoved(w, e, component, value)
		}
	}
	r.dispatchWildcard(w, e, component, value, cmax, false)
}

func (r *hookRegistry) dispatchWildcard(w *World, e ID, component ID, value any, cmax ID, added bool) {
	kind := Classify(component, cmax)
	if kind != KindComponentRelation && kind != KindEntityRelation {
		return
	}
	base, _, _, err := DecodeRelation(component, cmax)
	if err != nil {
		return
	}
	wc, err := Relation(base, Wildcard, cmax)
	if err != nil {
		return
	}
	for _, entry := range r.byID[wc] {
		if added && entry.onAdded != nil {
			entry.onAdded(w, e, component, value)
		} else if !added && entry.onRemoved != nil {
			entry.onRemoved(w, e, component, value)
		}
	}
}
