package ecs

import (
	"github.com/TheBitDrifter/mask"
	"github.com/kamstrup/intmap"
)

// maskBits is the number of row bits mask.Mask can hold. The id space the
// schema tracks (components, relations, entities used as types) is far
// larger, so assignment saturates: ids first seen after every bit is taken
// get no row at all.
const maskBits = 64

// rowSchema assigns IDs that appear in archetype signatures dense row bits
// (plain components and relations alike), so archetype and query matching
// can compare mask.Mask bitsets instead of walking sorted ID slices.
type rowSchema struct {
	rowOf *intmap.Map[int64, uint32]
	next  uint32
}

func newRowSchema() *rowSchema {
	return &rowSchema{rowOf: intmap.New[int64, uint32](64)}
}

// rowFor returns the row bit for id, assigning a new one on first sight.
// Once all maskBits rows are taken, unseen ids report no row; because
// assignment is first-seen and never revoked, an id answers the same way
// at archetype-creation and query-creation time.
func (s *rowSchema) rowFor(id ID) (uint32, bool) {
	if row, ok := s.rowOf.Get(int64(id)); ok {
		return row, true
	}
	if s.next >= maskBits {
		return 0, false
	}
	row := s.next
	s.next++
	s.rowOf.Put(int64(id), row)
	return row, true
}

// maskFor builds the bitset for a signature, registering unseen ids while
// rows remain and skipping ids the saturated schema could not seat. The
// bitset is a fast pre-filter only: a signature that contains every rowed
// query id still yields a containing mask, so skipping can never reject an
// archetype the exact membership checks (the authority, see
// queryCore.matches) would accept.
func (s *rowSchema) maskFor(signature []ID) mask.Mask {
	var m mask.Mask
	for _, id := range signature {
		if row, ok := s.rowFor(id); ok {
			m.Mark(row)
		}
	}
	return m
}
