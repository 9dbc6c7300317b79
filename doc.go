/*
Package ecs provides an in-process Entity Component System built around an
archetype column store.

It manages a population of entities, each tagged with a typed bag of
components, and supports efficient bulk iteration over entities matching
structural predicates. A single signed integer namespace distinguishes
entities, plain components, and typed relations (component pairs with a
target), so archetype signatures are ordinary sorted integer slices and
archetype lookup is a hash on that slice.

Core Concepts:

  - Entity: an opaque int64 identity, member of exactly one archetype.
  - Component: a plain id, or a relation id encoding (base, target).
  - Archetype: the set of entities sharing an identical component signature.
  - Query: a cached, live-updating set of archetypes matching a signature
    plus an optional negative filter.

Basic Usage:

	w := ecs.Factory.NewWorld()

	position, _ := w.RegisterComponent(ecs.ComponentDesc{Name: "Position"})
	velocity, _ := w.RegisterComponent(ecs.ComponentDesc{Name: "Velocity"})

	e, _ := w.New()
	w.Set(e, position, &Position{X: 0, Y: 0})
	w.Set(e, velocity, &Velocity{X: 1, Y: 2})
	w.Sync()

	q := w.CreateQuery([]ecs.ID{position, velocity}, nil)
	defer q.Dispose()
	q.Iterate([]ecs.ID{position, velocity}, func(ent ecs.ID, vals []any) bool {
		pos := vals[0].(*Position)
		vel := vals[1].(*Velocity)
		pos.X += vel.X
		pos.Y += vel.Y
		return true
	})

Mutation through Set/Delete/Destroy is always deferred: it takes effect on
the next call to Sync. Queries observe the post-Sync world only.

The surrounding convenience builders, system-ordering/pipeline layer,
serialization codec, test fixtures, and developer CLI are thin glue around
this core; only cmd/ecsprofile, a benchmarking entry point, ships here.
*/
package ecs
