package ecs

import (
	"github.com/TheBitDrifter/bark"
)

// ID is a single signed integer namespace: zero is reserved invalid,
// positive values up to Config.CMax are plain component ids, larger
// positive values are entity ids, and negative values encode relations.
type ID int64

// Invalid is the reserved zero id.
const Invalid ID = 0

// Wildcard is the sentinel passed as a relation's target to mean "any
// target of this base component". It appears as an argument to Relation
// or a result field from DecodeRelation. Its value, -1, is the same
// integer as the wildcard relation id of component 1, so Classify reports
// it as KindWildcardRelation.
const Wildcard ID = -1

// Kind classifies an ID.
type Kind int

const (
	KindInvalid Kind = iota
	KindComponent
	KindEntity
	KindEntityRelation
	KindComponentRelation
	KindWildcardRelation
)

func (k Kind) String() string {
	switch k {
	case KindComponent:
		return "component"
	case KindEntity:
		return "entity"
	case KindEntityRelation:
		return "entity-relation"
	case KindComponentRelation:
		return "component-relation"
	case KindWildcardRelation:
		return "wildcard-relation"
	default:
		return "invalid"
	}
}

// componentBits is the width of the field the relation codec reserves for
// the base component id. 10 bits covers DefaultCMax (1023) exactly.
const componentBits = 10
const componentMask = int64(1)<<componentBits - 1

// Classify returns the classification of id given the current component
// ceiling cmax.
func Classify(id ID, cmax ID) Kind {
	switch {
	case id == Invalid:
		return KindInvalid
	case id > 0 && id <= cmax:
		return KindComponent
	case id > cmax:
		return KindEntity
	default: // id < 0: a relation
		_, target := decodeRelationRaw(id)
		switch {
		case target == 0:
			return KindWildcardRelation
		case target <= int64(cmax):
			return KindComponentRelation
		default:
			return KindEntityRelation
		}
	}
}

// Relation encodes a (component, target) pair into a negative relation id.
// target is either a component id, an entity id, or Wildcard. Relation is
// total and injective: decode(encode(c, t)) == (c, t) for every valid pair,
// and distinct pairs always produce distinct ids.
func Relation(component ID, target ID, cmax ID) (ID, error) {
	if component <= 0 || component > cmax {
		return Invalid, bark.AddTrace(InvalidComponentTypeError{
			ID: component, Reason: "relation base must be a plain component id",
		})
	}
	var t int64
	if target == Wildcard {
		t = 0
	} else {
		if target <= 0 {
			return Invalid, bark.AddTrace(InvalidComponentTypeError{
				ID: target, Reason: "relation target must be a component id, entity id, or Wildcard",
			})
		}
		t = int64(target)
	}
	magnitude := (t << componentBits) | int64(component)
	return ID(-magnitude), nil
}

// DecodeRelation recovers (componentId, targetId, kind) from a relation id.
func DecodeRelation(id ID, cmax ID) (component ID, target ID, kind Kind, err error) {
	if id >= 0 {
		return Invalid, Invalid, KindInvalid, bark.AddTrace(InvalidComponentTypeError{
			ID: id, Reason: "not a relation id",
		})
	}
	c, t := decodeRelationRaw(id)
	component = ID(c)
	switch {
	case t == 0:
		return component, Wildcard, KindWildcardRelation, nil
	case t <= int64(cmax):
		return component, ID(t), KindComponentRelation, nil
	default:
		return component, ID(t), KindEntityRelation, nil
	}
}

func decodeRelationRaw(id ID) (component int64, target int64) {
	magnitude := -int64(id)
	component = magnitude & componentMask
	target = magnitude >> componentBits
	return component, target
}

// componentAllocator hands out plain component ids from a monotonic
// counter.
type componentAllocator struct {
	next ID
	cmax ID
}

func newComponentAllocator(cmax ID) *componentAllocator {
	return &componentAllocator{next: 1, cmax: cmax}
}

func (a *componentAllocator) allocate() (ID, error) {
	if a.next > a.cmax {
		return Invalid, bark.AddTrace(IDSpaceExhaustedError{CMax: a.cmax})
	}
	id := a.next
	a.next++
	return id, nil
}

// entityAllocator hands out entity ids above cmax, reusing freed ids via a
// free-list before bumping the counter. A freed id carries no generation
// stamp: once reused, it is indistinguishable from never-freed.
type entityAllocator struct {
	cmax     ID
	nextBump ID
	freeList []ID
}

func newEntityAllocator(cmax ID) *entityAllocator {
	return &entityAllocator{cmax: cmax, nextBump: cmax + 1}
}

func (a *entityAllocator) allocate() ID {
	if n := len(a.freeList); n > 0 {
		id := a.freeList[n-1]
		a.freeList = a.freeList[:n-1]
		return id
	}
	id := a.nextBump
	a.nextBump++
	return id
}

func (a *entityAllocator) free(id ID) {
	a.freeList = append(a.freeList, id)
}
