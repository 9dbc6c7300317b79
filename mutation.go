package ecs

import "github.com/TheBitDrifter/bark"

// changeset is the folded result of one entity's queued commands: a set of
// components to add (with their new values) and a set to remove, plus
// whether the entity should be destroyed outright. Built by foldCommands,
// consumed by applyChangeset.
type changeset struct {
	adds      map[ID]any
	removes   map[ID]bool
	destroyed bool
}

func (w *World) foldCommands(cmds []command) changeset {
	cmax := w.cfg.CMax
	cs := changeset{adds: make(map[ID]any), removes: make(map[ID]bool)}
	for _, c := range cmds {
		switch c.kind {
		case cmdSet:
			// A later set of an exclusive base supersedes any relation of
			// that base queued earlier in the same batch; relations already
			// on the entity are resolved at apply time.
			kind := Classify(c.component, cmax)
			if kind == KindComponentRelation || kind == KindEntityRelation {
				if base, _, _, err := DecodeRelation(c.component, cmax); err == nil && w.descriptors[base].Exclusive {
					for queued := range cs.adds {
						if queued == c.component || queued >= 0 {
							continue
						}
						if qb, _, _, err := DecodeRelation(queued, cmax); err == nil && qb == base {
							delete(cs.adds, queued)
						}
					}
				}
			}
			cs.adds[c.component] = c.value
			delete(cs.removes, c.component)
		case cmdDelete:
			cs.removes[c.component] = true
			delete(cs.adds, c.component)
		case cmdDestroy:
			cs.destroyed = true
			return cs
		}
	}
	return cs
}

// applyCommands is the entry point commandBuffer.drain invokes per entity:
// it folds the batch into a changeset and applies it.
func (w *World) applyCommands(e ID, cmds []command) error {
	if len(cmds) == 0 {
		return nil
	}
	if _, ok := w.location.Get(int64(e)); !ok {
		// The entity was destroyed earlier in this same drain (a cascade,
		// or a hook-enqueued destroy); its remaining commands are moot.
		return nil
	}
	cs := w.foldCommands(cmds)
	if cs.destroyed {
		return w.destroyEntity(e)
	}
	return w.applyChangeset(e, cs)
}

// applyChangeset resolves exclusivity, computes the destination signature,
// moves (or mutates in place) the entity, updates the reverse reference
// index, and fires hooks, removals before additions.
func (w *World) applyChangeset(e ID, cs changeset) error {
	cmax := w.cfg.CMax
	arch, ok := w.location.Get(int64(e))
	if !ok {
		return bark.AddTrace(EntityNotFoundError{Entity: e})
	}

	// rows accumulates, per destination signature member, the value to
	// store. Seeded from the current archetype's row so untouched
	// components survive the move.
	rows := make(map[ID]any)
	for _, c := range arch.signature {
		if Classify(c, cmax) == KindWildcardRelation {
			if col, ok := arch.columnOf(c); ok {
				if pos, ok := arch.position.Get(int64(e)); ok {
					if row, ok := col[pos].(map[ID]any); ok {
						cp := make(map[ID]any, len(row))
						for k, v := range row {
							cp[k] = v
						}
						rows[c] = cp
						continue
					}
				}
			}
			rows[c] = make(map[ID]any)
			continue
		}
		v, _ := arch.get(e, c, cmax)
		rows[c] = v
	}

	removedValues := make(map[ID]any)
	removeMember := func(c ID) {
		if v, ok := rows[c]; ok {
			removedValues[c] = v
			delete(rows, c)
		}
	}

	// Resolve deletes first, including wildcard-target deletes against
	// fragmented and dontFragment relations alike.
	for c := range cs.removes {
		kind := Classify(c, cmax)
		if kind == KindWildcardRelation {
			base, _, _, _ := DecodeRelation(c, cmax)
			if wc, err := Relation(base, Wildcard, cmax); err == nil {
				if row, ok := rows[wc].(map[ID]any); ok {
					for t, v := range row {
						w.reverse.remove(t, e, wc)
						if concrete, err := Relation(base, t, cmax); err == nil {
							removedValues[concrete] = v
						}
					}
					delete(rows, wc)
				}
			}
			for _, target := range append([]ID(nil), arch.wildcardTargets[base]...) {
				concrete, err := Relation(base, target, cmax)
				if err != nil {
					continue
				}
				w.reverse.remove(target, e, concrete)
				removeMember(concrete)
			}
			continue
		}
		if kind == KindEntity {
			// Entity id used directly as a component type; the reverse
			// index tracks it so destroying the entity cleans it up.
			w.reverse.remove(c, e, c)
			removeMember(c)
			continue
		}
		if kind == KindComponentRelation || kind == KindEntityRelation {
			base, target, _, err := DecodeRelation(c, cmax)
			if err == nil && w.descriptors[base].DontFragment {
				wc, _ := Relation(base, Wildcard, cmax)
				if row, ok := rows[wc].(map[ID]any); ok {
					if oldV, present := row[target]; present {
						delete(row, target)
						w.reverse.remove(target, e, wc)
						removedValues[c] = oldV
						if len(row) == 0 {
							delete(rows, wc)
						} else {
							rows[wc] = row
						}
					}
				}
				continue
			}
			w.reverse.remove(target, e, c)
		}
		removeMember(c)
	}

	// Resolve adds, including exclusive-relation replacement and
	// dontFragment row merging.
	for c, value := range cs.adds {
		kind := Classify(c, cmax)
		if kind == KindEntity {
			if _, present := rows[c]; !present {
				w.reverse.add(c, e, c)
			}
			rows[c] = value
			continue
		}
		if kind != KindComponentRelation && kind != KindEntityRelation {
			rows[c] = value
			continue
		}
		base, target, _, err := DecodeRelation(c, cmax)
		if err != nil {
			return bark.AddTrace(err)
		}
		desc := w.descriptors[base]

		if desc.DontFragment {
			wc, _ := Relation(base, Wildcard, cmax)
			row, _ := rows[wc].(map[ID]any)
			if row == nil {
				row = make(map[ID]any)
			}
			_, hadTarget := row[target]
			if desc.Exclusive {
				for oldTarget, oldV := range row {
					if oldTarget != target {
						w.reverse.remove(oldTarget, e, wc)
						if oldConcrete, err := Relation(base, oldTarget, cmax); err == nil {
							removedValues[oldConcrete] = oldV
						}
						delete(row, oldTarget)
					}
				}
			}
			row[target] = value
			rows[wc] = row
			if !hadTarget {
				w.reverse.add(target, e, wc)
			}
			continue
		}

		if desc.Exclusive {
			for _, oldTarget := range append([]ID(nil), arch.wildcardTargets[base]...) {
				if oldTarget == target {
					continue
				}
				if oldConcrete, err := Relation(base, oldTarget, cmax); err == nil {
					if _, present := rows[oldConcrete]; present {
						w.reverse.remove(oldTarget, e, oldConcrete)
						removeMember(oldConcrete)
					}
				}
			}
		}
		if _, present := rows[c]; !present {
			w.reverse.add(target, e, c)
		}
		rows[c] = value
	}

	destSignature := canonicalSignature(keysOf(rows))
	dest := w.index.getOrCreate(destSignature)

	if dest != arch {
		arch.removeEntity(e)
		dest.addEntity(e, rows)
		w.location.Put(int64(e), dest)
		w.index.removeEmpty(arch)
	} else {
		for c, v := range rows {
			_ = arch.set(e, c, v)
		}
	}

	// Fire onRemoved for everything dropped, after the move has committed
	// and before any onAdded.
	for c, v := range removedValues {
		w.hooks.dispatchRemoved(w, e, c, v, cmax)
	}

	// Fire onAdded for everything set this batch. Changeset keys are
	// always concrete, so a relation add reaches both its own hooks and
	// its base's wildcard hooks through the dispatcher.
	for c, v := range cs.adds {
		w.hooks.dispatchAdded(w, e, c, v, cmax)
	}
	return nil
}

func keysOf(m map[ID]any) []ID {
	out := make([]ID, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}

// destroyEntity removes e entirely: fires onRemoved for every component it
// carried, cleans up the reverse index (both as target and as source),
// cascades destruction to any source whose relation to e is
// cascadeDelete, and frees e's id.
func (w *World) destroyEntity(e ID) error {
	cmax := w.cfg.CMax
	arch, ok := w.location.Get(int64(e))
	if !ok {
		return bark.AddTrace(EntityNotFoundError{Entity: e})
	}

	refs := append([]reverseRef(nil), w.reverse.referencesOf(e)...)

	for _, c := range arch.signature {
		v, _ := arch.get(e, c, cmax)
		kind := Classify(c, cmax)
		if kind == KindWildcardRelation {
			// A dontFragment column: unlink and announce each target as
			// its concrete relation, not as the column id.
			base, _, _, _ := DecodeRelation(c, cmax)
			if row, ok := v.([]TargetValue); ok {
				for _, tv := range row {
					w.reverse.remove(tv.Target, e, c)
					if concrete, err := Relation(base, tv.Target, cmax); err == nil {
						w.hooks.dispatchRemoved(w, e, concrete, tv.Value, cmax)
					}
				}
			}
			continue
		}
		if kind == KindComponentRelation || kind == KindEntityRelation {
			_, target, _, _ := DecodeRelation(c, cmax)
			w.reverse.remove(target, e, c)
		} else if kind == KindEntity {
			w.reverse.remove(c, e, c)
		}
		w.hooks.dispatchRemoved(w, e, c, v, cmax)
	}

	arch.removeEntity(e)
	w.index.removeEmpty(arch)
	w.location.Del(int64(e))
	w.entities.free(e)

	for _, ref := range refs {
		subject := ref.component
		base, _, _, decodeErr := DecodeRelation(ref.component, cmax)
		if decodeErr == nil && Classify(ref.component, cmax) == KindWildcardRelation {
			// dontFragment relations record the wildcard column id; the
			// synthesized delete must target only the destroyed entity,
			// not every target of the base.
			if concrete, err := Relation(base, e, cmax); err == nil {
				subject = concrete
			}
		}
		w.cb.delete(ref.source, subject)
		if decodeErr == nil && w.descriptors[base].CascadeDelete {
			w.cb.destroy(ref.source)
		}
	}
	return nil
}
