package ecs

// queryRegistry is a refcounted registry of queryCore by canonical query
// key: queries with the same (with, without) shape share one live cache,
// torn down when the last handle disposes.
type queryRegistry struct {
	byKey map[string]*queryCore
}

func newQueryRegistry() *queryRegistry {
	return &queryRegistry{byKey: make(map[string]*queryCore)}
}

// acquire returns a new Query handle over the shared queryCore for
// (with, without), creating and seeding it from every existing archetype
// on first use.
func (r *queryRegistry) acquire(w *World, with, without []ID) *Query {
	key := queryKeyFor(with, without)
	core, ok := r.byKey[key]
	if !ok {
		core = newQueryCore(w, key, with, without)
		r.byKey[key] = core
		w.index.addObserver(core)
		for _, a := range w.index.getMatching(core.withConcrete) {
			core.checkNewArchetype(a)
		}
	}
	core.refcount++
	return &Query{world: w, core: core}
}

// release drops one reference to core, tearing it down and unregistering
// it from archetype-birth notifications once the last handle disposes.
func (r *queryRegistry) release(core *queryCore) {
	core.refcount--
	if core.refcount <= 0 {
		delete(r.byKey, core.key)
		core.world.index.removeObserver(core)
	}
}
