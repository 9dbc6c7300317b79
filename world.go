package ecs

import (
	"github.com/TheBitDrifter/bark"
	"github.com/kamstrup/intmap"
)

// World owns every entity, archetype, component descriptor, and query in
// one ECS instance. Construct one with Factory.NewWorld().
type World struct {
	cfg config

	components  *componentAllocator
	entities    *entityAllocator
	descriptors map[ID]ComponentDesc

	index    *archetypeIndex
	location *intmap.Map[int64, *archetype]

	hooks   *hookRegistry
	reverse *reverseIndex
	cb      *commandBuffer
	queries *queryRegistry

	syncing   bool
	iterating int
}

func newWorld() *World {
	cfg := Config
	w := &World{
		cfg:         cfg,
		components:  newComponentAllocator(cfg.CMax),
		entities:    newEntityAllocator(cfg.CMax),
		descriptors: make(map[ID]ComponentDesc),
		index:       newArchetypeIndex(cfg.CMax),
		location:    intmap.New[int64, *archetype](64),
		hooks:       newHookRegistry(),
		reverse:     newReverseIndex(),
		cb:          newCommandBuffer(),
		queries:     newQueryRegistry(),
	}
	return w
}

// RegisterComponent allocates a new plain component id and records its
// descriptor. Exclusivity, cascade, and fragmentation are all properties
// of the base component, fixed at registration.
func (w *World) RegisterComponent(desc ComponentDesc) (ID, error) {
	id, err := w.components.allocate()
	if err != nil {
		return Invalid, err
	}
	w.descriptors[id] = desc
	return id, nil
}

// Describe returns the descriptor a component or relation's base was
// registered with.
func (w *World) Describe(component ID) (ComponentDesc, bool) {
	base := component
	if component < 0 {
		b, _, _, err := DecodeRelation(component, w.cfg.CMax)
		if err != nil {
			return ComponentDesc{}, false
		}
		base = b
	}
	desc, ok := w.descriptors[base]
	return desc, ok
}

// New allocates a fresh entity id with an empty component signature.
func (w *World) New() (ID, error) {
	e := w.entities.allocate()
	empty := w.index.getOrCreate(nil)
	empty.addEntity(e, nil)
	w.location.Put(int64(e), empty)
	return e, nil
}

// Exists reports whether e currently identifies a live entity.
func (w *World) Exists(e ID) bool {
	_, ok := w.location.Get(int64(e))
	return ok
}

func (w *World) requireEntity(e ID) error {
	if !w.Exists(e) {
		return bark.AddTrace(EntityNotFoundError{Entity: e})
	}
	return nil
}

// Set enqueues setting component's value on e, to take effect on the next
// Sync. Setting a relation id (from Relation) attaches that relation;
// setting the same base's wildcard id is invalid for Set (use Delete with
// a wildcard id to remove every relation of a base).
func (w *World) Set(e ID, component ID, value any) error {
	if err := w.requireEntity(e); err != nil {
		return err
	}
	switch Classify(component, w.cfg.CMax) {
	case KindInvalid:
		return bark.AddTrace(InvalidComponentTypeError{ID: component, Reason: "id classifies as invalid"})
	case KindWildcardRelation:
		return bark.AddTrace(InvalidComponentTypeError{ID: component, Reason: "cannot Set a wildcard relation id, only a concrete target"})
	}
	w.cb.set(e, component, value)
	return nil
}

// Delete enqueues removing component from e. component may be a wildcard
// relation id, removing every relation of that base.
func (w *World) Delete(e ID, component ID) error {
	if err := w.requireEntity(e); err != nil {
		return err
	}
	if Classify(component, w.cfg.CMax) == KindInvalid {
		return bark.AddTrace(InvalidComponentTypeError{ID: component, Reason: "id classifies as invalid"})
	}
	w.cb.delete(e, component)
	return nil
}

// Destroy enqueues destroying e outright: every component is removed,
// every reference to e is cleaned up, and cascadeDelete relations destroy
// their source entities in turn, all on the next Sync.
func (w *World) Destroy(e ID) error {
	if err := w.requireEntity(e); err != nil {
		return err
	}
	w.cb.destroy(e)
	return nil
}

// dontFragmentRow returns the wildcard-column row for e when component is
// a concrete relation whose base is stored in dontFragment mode. The
// second result is false when component is not such a relation.
func (w *World) dontFragmentRow(arch *archetype, e ID, component ID) (row map[ID]any, target ID, isDontFragment bool) {
	cmax := w.cfg.CMax
	kind := Classify(component, cmax)
	if kind != KindComponentRelation && kind != KindEntityRelation {
		return nil, Invalid, false
	}
	base, target, _, err := DecodeRelation(component, cmax)
	if err != nil || !w.descriptors[base].DontFragment {
		return nil, Invalid, false
	}
	wc, err := Relation(base, Wildcard, cmax)
	if err != nil {
		return nil, Invalid, false
	}
	col, ok := arch.columnOf(wc)
	if !ok {
		return nil, target, true
	}
	pos, _ := arch.position.Get(int64(e))
	row, _ = col[pos].(map[ID]any)
	return row, target, true
}

// Has reports whether e currently carries component (read directly,
// reflecting only already-synced state).
func (w *World) Has(e ID, component ID) (bool, error) {
	arch, ok := w.location.Get(int64(e))
	if !ok {
		return false, bark.AddTrace(EntityNotFoundError{Entity: e})
	}
	if row, target, isDF := w.dontFragmentRow(arch, e, component); isDF {
		_, present := row[target]
		return present, nil
	}
	return arch.contains(component, w.cfg.CMax), nil
}

// Get reads component's current value for e. For a wildcard relation id
// this returns []TargetValue instead of a single value.
func (w *World) Get(e ID, component ID) (any, error) {
	arch, ok := w.location.Get(int64(e))
	if !ok {
		return nil, bark.AddTrace(EntityNotFoundError{Entity: e})
	}
	if row, target, isDF := w.dontFragmentRow(arch, e, component); isDF {
		v, present := row[target]
		if !present {
			return nil, bark.AddTrace(MissingComponentError{Entity: e, Component: component})
		}
		return v, nil
	}
	return arch.get(e, component, w.cfg.CMax)
}

// GetOptional is Get without the error for "component absent".
func (w *World) GetOptional(e ID, component ID) (any, bool) {
	v, err := w.Get(e, component)
	if err != nil {
		return nil, false
	}
	return v, true
}

// Hook registers onAdded/onRemoved against component (a plain component
// id, a concrete relation id, or a wildcard relation id naming a base to
// watch every relation of). Either callback may be nil.
func (w *World) Hook(component ID, onAdded, onRemoved HookFunc) HookHandle {
	return w.hooks.register(component, onAdded, onRemoved)
}

// Unhook removes a previously registered hook pair.
func (w *World) Unhook(component ID, h HookHandle) bool {
	return w.hooks.unregister(component, h)
}

// SetExclusive marks component (a plain component id, or a relation id
// whose base will be used) as exclusive: at most one relation of that base
// may exist per entity, later targets replacing earlier ones on Sync.
func (w *World) SetExclusive(component ID) error {
	base := component
	if component < 0 {
		b, _, _, err := DecodeRelation(component, w.cfg.CMax)
		if err != nil {
			return err
		}
		base = b
	}
	desc, ok := w.descriptors[base]
	if !ok {
		return bark.AddTrace(InvalidComponentTypeError{ID: component, Reason: "component not registered"})
	}
	desc.Exclusive = true
	w.descriptors[base] = desc
	return nil
}

// Relation encodes (base, target) against this world's component ceiling,
// saving callers the Config.CMax argument of the package-level Relation.
func (w *World) Relation(base, target ID) (ID, error) {
	return Relation(base, target, w.cfg.CMax)
}

// CreateQuery returns a live, cached Query over every archetype containing
// all of with and none of without. Calls with an equal shape share one
// underlying cache; each returned handle must be Dispose'd independently.
func (w *World) CreateQuery(with, without []ID) *Query {
	return w.queries.acquire(w, with, without)
}

// Sync drains every queued command, applying structural mutations and
// firing hooks, until no entity has pending commands left. Calling Sync
// from inside a hook is a no-op: the outer drain observes whatever the
// hook enqueued. Calling Sync from inside a query iteration callback
// returns ReentrantSyncError.
func (w *World) Sync() error {
	if w.iterating > 0 {
		return bark.AddTrace(ReentrantSyncError{})
	}
	if w.syncing {
		return nil
	}
	w.syncing = true
	defer func() { w.syncing = false }()
	return w.cb.drain(w.cfg.DrainIterationCeiling, w.applyCommands)
}

// Update runs each fn in order, then Syncs once. It is a thin
// convenience, not a system scheduler.
func (w *World) Update(fns ...func(*World) error) error {
	for _, fn := range fns {
		if err := fn(w); err != nil {
			return err
		}
	}
	return w.Sync()
}
