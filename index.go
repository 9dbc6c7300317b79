package ecs

import (
	"hash/fnv"

	"github.com/kamstrup/intmap"
)

// archetypeObserver is notified when the archetype index gains or loses an
// archetype. queryCore implements this; the index holds observers by
// interface so it never imports query.go's concrete type.
type archetypeObserver interface {
	checkNewArchetype(a *archetype)
	removeArchetype(a *archetype)
}

// archetypeIndex maps canonical signatures to archetypes and keeps the
// per-component reverse listing current as archetypes come and go.
type archetypeIndex struct {
	rs     *rowSchema
	cmax   ID
	nextID archetypeID

	// buckets maps a signature hash to the (usually single) candidate
	// archetypes sharing that hash, disambiguated by exact signature
	// equality.
	buckets *intmap.Map[int64, []*archetype]

	// componentIndex is the per-component reverse listing: every id that
	// appears in some archetype's signature maps to every archetype
	// carrying it.
	componentIndex *intmap.Map[int64, []*archetype]

	all       []*archetype
	observers []archetypeObserver
}

func newArchetypeIndex(cmax ID) *archetypeIndex {
	return &archetypeIndex{
		rs:             newRowSchema(),
		cmax:           cmax,
		buckets:        intmap.New[int64, []*archetype](64),
		componentIndex: intmap.New[int64, []*archetype](64),
	}
}

func signatureHash(signature []ID) int64 {
	h := fnv.New64a()
	var buf [8]byte
	for _, id := range signature {
		v := uint64(id)
		for i := 0; i < 8; i++ {
			buf[i] = byte(v >> (8 * i))
		}
		h.Write(buf[:])
	}
	return int64(h.Sum64())
}

func signaturesEqual(a, b []ID) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// getExact looks up an archetype with exactly this (already canonical)
// signature, without creating one.
func (ix *archetypeIndex) getExact(signature []ID) (*archetype, bool) {
	h := signatureHash(signature)
	candidates, ok := ix.buckets.Get(h)
	if !ok {
		return nil, false
	}
	for _, a := range candidates {
		if signaturesEqual(a.signature, signature) {
			return a, true
		}
	}
	return nil, false
}

// getOrCreate returns the archetype for signature, creating and
// registering it (and notifying every observer) on miss.
func (ix *archetypeIndex) getOrCreate(signature []ID) *archetype {
	if a, ok := ix.getExact(signature); ok {
		return a
	}
	ix.nextID++
	a := newArchetype(ix.nextID, signature, ix.rs, ix.cmax)

	h := signatureHash(signature)
	bucket, _ := ix.buckets.Get(h)
	ix.buckets.Put(h, append(bucket, a))

	for _, c := range signature {
		key := int64(c)
		lst, _ := ix.componentIndex.Get(key)
		ix.componentIndex.Put(key, append(lst, a))
	}

	ix.all = append(ix.all, a)

	for _, obs := range ix.observers {
		obs.checkNewArchetype(a)
	}
	return a
}

// removeEmpty drops an archetype once its entity set becomes empty,
// invoked by the mutation engine immediately after removeEntity leaves it
// at zero length. Collection is eager, with no hysteresis.
func (ix *archetypeIndex) removeEmpty(a *archetype) {
	if a.len() != 0 {
		return
	}
	h := signatureHash(a.signature)
	if bucket, ok := ix.buckets.Get(h); ok {
		out := bucket[:0]
		for _, cand := range bucket {
			if cand != a {
				out = append(out, cand)
			}
		}
		if len(out) == 0 {
			ix.buckets.Del(h)
		} else {
			ix.buckets.Put(h, out)
		}
	}
	for _, c := range a.signature {
		key := int64(c)
		if lst, ok := ix.componentIndex.Get(key); ok {
			out := lst[:0]
			for _, cand := range lst {
				if cand != a {
					out = append(out, cand)
				}
			}
			if len(out) == 0 {
				ix.componentIndex.Del(key)
			} else {
				ix.componentIndex.Put(key, out)
			}
		}
	}
	for i, cand := range ix.all {
		if cand == a {
			ix.all = append(ix.all[:i], ix.all[i+1:]...)
			break
		}
	}
	for _, obs := range ix.observers {
		obs.removeArchetype(a)
	}
}

func (ix *archetypeIndex) addObserver(obs archetypeObserver) {
	ix.observers = append(ix.observers, obs)
}

func (ix *archetypeIndex) removeObserver(obs archetypeObserver) {
	for i, o := range ix.observers {
		if o == obs {
			ix.observers = append(ix.observers[:i], ix.observers[i+1:]...)
			return
		}
	}
}

// getMatching returns every archetype whose signature contains all of the
// given concrete component ids, ignoring query filters. Pure: no archetype
// is created. The smallest per-component listing bounds the scan.
func (ix *archetypeIndex) getMatching(signature []ID) []*archetype {
	sig := canonicalSignature(signature)
	if len(sig) == 0 {
		return append([]*archetype(nil), ix.all...)
	}
	var smallest []*archetype
	for i, c := range sig {
		lst, ok := ix.componentIndex.Get(int64(c))
		if !ok {
			return nil
		}
		if i == 0 || len(lst) < len(smallest) {
			smallest = lst
		}
	}
	var out []*archetype
	for _, a := range smallest {
		match := true
		for _, c := range sig {
			if _, ok := a.columns[c]; !ok {
				match = false
				break
			}
		}
		if match {
			out = append(out, a)
		}
	}
	return out
}

// archetypes returns every currently registered archetype.
func (ix *archetypeIndex) archetypes() []*archetype { return ix.all }
