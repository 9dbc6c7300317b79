package ecs

import (
	"sort"

	"github.com/TheBitDrifter/bark"
)

// SnapshotVersion is the format version Serialize emits and
// NewWorldFromSnapshot accepts.
const SnapshotVersion = 1

// Snapshot is the in-memory serialized form of a World. It is plain data:
// whether it survives an encoding codec depends only on whether every
// component value does.
type Snapshot struct {
	Version              int
	EntityManager        SnapshotEntityManager
	ComponentDescriptors []SnapshotComponentDescriptor
	ExclusiveComponents  []ID
	Entities             []SnapshotEntity
}

// SnapshotEntityManager captures the entity allocator: the monotonic bump
// counter and the free-list, so id allocation resumes exactly where the
// serialized world left off.
type SnapshotEntityManager struct {
	NextID   ID
	FreeList []ID
}

// SnapshotComponentDescriptor is one registered component and its flags.
type SnapshotComponentDescriptor struct {
	ID            ID
	Name          string
	Exclusive     bool
	CascadeDelete bool
	DontFragment  bool
}

// SnapshotEntity is one live entity and its full component map. Relations
// stored in a dontFragment wildcard column are expanded back to concrete
// (base, target) entries, so the snapshot shape is uniform across both
// storage modes.
type SnapshotEntity struct {
	ID         ID
	Components []SnapshotComponent
}

// SnapshotComponent is one (component id, value) pair on an entity.
type SnapshotComponent struct {
	Type  ID
	Value any
}

// Serialize captures the world's current synced state. Commands still
// queued in the buffer are not part of the snapshot; Sync first if they
// should be.
func (w *World) Serialize() *Snapshot {
	cmax := w.cfg.CMax
	s := &Snapshot{
		Version: SnapshotVersion,
		EntityManager: SnapshotEntityManager{
			NextID:   w.entities.nextBump,
			FreeList: append([]ID(nil), w.entities.freeList...),
		},
	}

	descIDs := make([]ID, 0, len(w.descriptors))
	for id := range w.descriptors {
		descIDs = append(descIDs, id)
	}
	sort.Slice(descIDs, func(i, j int) bool { return descIDs[i] < descIDs[j] })
	for _, id := range descIDs {
		d := w.descriptors[id]
		s.ComponentDescriptors = append(s.ComponentDescriptors, SnapshotComponentDescriptor{
			ID:            id,
			Name:          d.Name,
			Exclusive:     d.Exclusive,
			CascadeDelete: d.CascadeDelete,
			DontFragment:  d.DontFragment,
		})
		if d.Exclusive {
			s.ExclusiveComponents = append(s.ExclusiveComponents, id)
		}
	}

	for _, a := range w.index.archetypes() {
		for pos, e := range a.entities {
			se := SnapshotEntity{ID: e}
			for _, c := range a.signature {
				if Classify(c, cmax) == KindWildcardRelation {
					base, _, _, _ := DecodeRelation(c, cmax)
					row, _ := a.columns[c][pos].(map[ID]any)
					targets := make([]ID, 0, len(row))
					for t := range row {
						targets = append(targets, t)
					}
					sort.Slice(targets, func(i, j int) bool { return targets[i] < targets[j] })
					for _, t := range targets {
						concrete, err := Relation(base, t, cmax)
						if err != nil {
							continue
						}
						se.Components = append(se.Components, SnapshotComponent{Type: concrete, Value: row[t]})
					}
					continue
				}
				se.Components = append(se.Components, SnapshotComponent{Type: c, Value: a.columns[c][pos]})
			}
			s.Entities = append(s.Entities, se)
		}
	}
	sort.Slice(s.Entities, func(i, j int) bool { return s.Entities[i].ID < s.Entities[j].ID })
	return s
}

// NewWorldFromSnapshot reconstructs a World from a snapshot: same entity
// ids, same per-entity component maps, same exclusive set, and an id
// allocator that never re-hands-out an id the snapshot already uses.
func (f factory) NewWorldFromSnapshot(s *Snapshot) (*World, error) {
	if s == nil {
		return nil, bark.AddTrace(SnapshotFormatError{Reason: "nil snapshot"})
	}
	if s.Version != SnapshotVersion {
		return nil, bark.AddTrace(SnapshotFormatError{Reason: "unsupported version"})
	}
	w := newWorld()
	cmax := w.cfg.CMax

	var maxComponent ID
	for _, d := range s.ComponentDescriptors {
		if d.ID <= 0 || d.ID > cmax {
			return nil, bark.AddTrace(SnapshotFormatError{Reason: "component id out of range"})
		}
		w.descriptors[d.ID] = ComponentDesc{
			Name:          d.Name,
			Exclusive:     d.Exclusive,
			CascadeDelete: d.CascadeDelete,
			DontFragment:  d.DontFragment,
		}
		if d.ID > maxComponent {
			maxComponent = d.ID
		}
	}
	w.components.next = maxComponent + 1
	for _, c := range s.ExclusiveComponents {
		desc, ok := w.descriptors[c]
		if !ok {
			return nil, bark.AddTrace(SnapshotFormatError{Reason: "exclusive id not among descriptors"})
		}
		desc.Exclusive = true
		w.descriptors[c] = desc
	}

	// Adopt every entity id first, so relations between snapshot entities
	// resolve no matter the order they appear in.
	maxEntity := cmax
	empty := w.index.getOrCreate(nil)
	for _, se := range s.Entities {
		if se.ID <= cmax {
			return nil, bark.AddTrace(SnapshotFormatError{Reason: "entity id inside component range"})
		}
		if _, dup := w.location.Get(int64(se.ID)); dup {
			return nil, bark.AddTrace(SnapshotFormatError{Reason: "duplicate entity id"})
		}
		empty.addEntity(se.ID, nil)
		w.location.Put(int64(se.ID), empty)
		if se.ID > maxEntity {
			maxEntity = se.ID
		}
	}

	for _, se := range s.Entities {
		for _, sc := range se.Components {
			if err := w.Set(se.ID, sc.Type, sc.Value); err != nil {
				return nil, err
			}
		}
	}
	if err := w.Sync(); err != nil {
		return nil, err
	}

	w.entities.freeList = append([]ID(nil), s.EntityManager.FreeList...)
	w.entities.nextBump = s.EntityManager.NextID
	if w.entities.nextBump <= maxEntity {
		w.entities.nextBump = maxEntity + 1
	}
	return w, nil
}
