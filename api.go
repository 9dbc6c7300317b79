package ecs

// This file collects the package's small top-level conveniences. The
// substantial types live alongside their implementation: World in
// world.go, Query in query.go, ComponentDesc/TypedComponent in
// component.go, ID/Relation in identity.go.

// Relations builds every concrete relation id for base against the given
// targets in one call, a small convenience over repeated Relation calls
// when attaching the same base to several targets.
func Relations(base ID, targets []ID, cmax ID) ([]ID, error) {
	out := make([]ID, 0, len(targets))
	for _, t := range targets {
		id, err := Relation(base, t, cmax)
		if err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, nil
}

// WildcardOf returns the wildcard relation id for base, the id used with
// Delete to remove every relation of that base from an entity, or with
// Get/GetOptional to read every (target, value) pair at once.
func WildcardOf(base ID, cmax ID) (ID, error) {
	return Relation(base, Wildcard, cmax)
}
