package ecs

// ComponentDesc describes a plain component at registration time. Name is
// diagnostic-only; the three booleans drive the mutation engine and
// archetype table.
type ComponentDesc struct {
	// Name is used only for diagnostics/serialization; never consulted for
	// matching or identity.
	Name string

	// Exclusive means at most one relation with this base component may
	// exist on a given entity at a time.
	Exclusive bool

	// CascadeDelete means destroying the target of a relation with this
	// base component destroys every source entity holding that relation.
	CascadeDelete bool

	// DontFragment switches wildcard-relation storage for this base
	// component from per-target archetype fragmentation to a single
	// per-row map column.
	DontFragment bool
}

// TypedComponent is a thin ergonomic wrapper pairing a registered
// component ID with its Go value type. The underlying storage is a
// dynamic column (see archetype.go), so Get/GetOptional type-assert on
// read.
type TypedComponent[T any] struct {
	ID ID
}

// NewTypedComponent wraps an already-registered id for typed access.
func NewTypedComponent[T any](id ID) TypedComponent[T] {
	return TypedComponent[T]{ID: id}
}

// Get retrieves and type-asserts the component value for e, failing
// MissingComponentError if absent and panicking (a programmer error, not a
// recoverable condition) if present with the wrong underlying type.
func (c TypedComponent[T]) Get(w *World, e ID) (*T, error) {
	v, err := w.Get(e, c.ID)
	if err != nil {
		return nil, err
	}
	ptr, ok := v.(*T)
	if !ok {
		panic("ecs: component stored under wrong type for id")
	}
	return ptr, nil
}

// GetOptional distinguishes "absent" from "present with a zero value".
func (c TypedComponent[T]) GetOptional(w *World, e ID) (*T, bool) {
	v, ok := w.GetOptional(e, c.ID)
	if !ok {
		return nil, false
	}
	ptr, okType := v.(*T)
	if !okType {
		panic("ecs: component stored under wrong type for id")
	}
	return ptr, true
}
