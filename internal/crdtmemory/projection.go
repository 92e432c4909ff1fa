package crdtmemory

import "sort"

// entry is the mutable, merge-resolved state for one memory id, built by
// replaying the change log. It is never serialized directly; Export
// serializes the change log instead, so two replicas with the same log
// (in any order) always rebuild the same entry.
type entry struct {
	id              string
	content         string
	memType         MemoryType
	createdAt       change
	project         string
	tags            map[string]struct{}
	importance      float32
	importanceClock clock
	deleted         bool
}

func (e *entry) toMemory() Memory {
	tags := make([]string, 0, len(e.tags))
	for t := range e.tags {
		tags = append(tags, t)
	}
	sort.Strings(tags)
	return Memory{
		ID:         e.id,
		Content:    e.content,
		Type:       e.memType,
		CreatedAt:  e.createdAt.CreatedAt,
		Project:    e.project,
		Tags:       tags,
		Importance: e.importance,
	}
}

// rebuildProjection replays an ordered change log into a map of live (not
// strictly deleted-only) entries. Changes are applied in log order, but
// every rule below is also commutative across reordering: add is
// idempotent per id, importance is resolved by Lamport clock regardless of
// application order, tags are a grow-only set, and delete is a monotonic
// tombstone.
func rebuildProjection(changes []change) map[string]*entry {
	entries := make(map[string]*entry)

	for _, c := range changes {
		switch c.Kind {
		case changeAdd:
			if _, exists := entries[c.MemoryID]; exists {
				continue
			}
			entries[c.MemoryID] = &entry{
				id:         c.MemoryID,
				content:    c.Content,
				memType:    c.Type,
				createdAt:  c,
				project:    c.Project,
				tags:       make(map[string]struct{}),
				importance: 0.5,
			}

		case changeImportance:
			e, ok := entries[c.MemoryID]
			if !ok {
				continue
			}
			if c.Clock.after(e.importanceClock) {
				e.importance = c.Importance
				e.importanceClock = c.Clock
			}

		case changeTag:
			e, ok := entries[c.MemoryID]
			if !ok {
				continue
			}
			e.tags[c.Tag] = struct{}{}

		case changeDelete:
			e, ok := entries[c.MemoryID]
			if !ok {
				continue
			}
			e.deleted = true
		}
	}

	return entries
}
