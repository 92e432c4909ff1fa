package crdtmemory

import (
	"fmt"
	"path/filepath"
	"sort"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"
)

// Store is a CRDT memory document: one replica's view of a log of changes
// that can be exported, merged with another replica's log, and projected
// into a consistent set of Memory entries regardless of merge order.
//
// Persisted as memories.automerge in dataDir — the filename is kept from
// the system this was ported from even though the on-disk encoding here is
// a JSON envelope of the change log, not literal Automerge bytes.
type Store struct {
	path string
	lock *flock.Flock

	replicaID string
	ownSeq    uint64 // next sequence number this replica will stamp
	clock     uint64 // Lamport counter, bumped past every clock seen

	changes []change
	seen    map[[2]any]struct{} // (replica_id, seq) dedup set
}

// New opens or creates the CRDT memory document in dataDir.
func New(dataDir string) (*Store, error) {
	path := filepath.Join(dataDir, "memories.automerge")
	s := &Store{
		path: path,
		lock: flock.New(path + ".lock"),
		seen: make(map[[2]any]struct{}),
	}

	env, err := loadEnvelope(path)
	if err != nil {
		return nil, fmt.Errorf("load crdt memory document: %w", err)
	}
	if env == nil {
		s.replicaID = uuid.NewString()
		return s, nil
	}

	s.replicaID = env.ReplicaID
	s.applyForeign(env.Changes)
	return s, nil
}

// ReplicaID identifies this store's own replica for the Lamport tie-break.
func (s *Store) ReplicaID() string { return s.replicaID }

func (s *Store) nextChange(kind changeKind, memoryID string) change {
	s.clock++
	c := change{
		ReplicaID: s.replicaID,
		Seq:       s.ownSeq,
		Kind:      kind,
		MemoryID:  memoryID,
		Clock:     clock{Counter: s.clock, ReplicaID: s.replicaID},
	}
	s.ownSeq++
	return c
}

// appendLocal stamps, records, and persists a locally originated change.
func (s *Store) appendLocal(c change) error {
	s.changes = append(s.changes, c)
	s.seen[changeKey(c)] = struct{}{}
	return s.save()
}

// Add creates a new memory entry with the given content and type,
// importance defaulting to 0.5, and returns its id.
func (s *Store) Add(content string, memType MemoryType) (string, error) {
	return s.AddWithProject(content, memType, "")
}

// AddWithProject is Add with an associated project tag.
func (s *Store) AddWithProject(content string, memType MemoryType, project string) (string, error) {
	id := uuid.NewString()
	c := s.nextChange(changeAdd, id)
	c.Content = content
	c.Type = memType
	c.CreatedAt = time.Now().UTC()
	c.Project = project

	if err := s.appendLocal(c); err != nil {
		return "", err
	}
	return id, nil
}

// UpdateImportance sets a memory's importance, resolved against concurrent
// writes from other replicas by Lamport clock.
func (s *Store) UpdateImportance(id string, importance float32) error {
	if _, ok := s.entryByID(id); !ok {
		return fmt.Errorf("memory not found: %s", id)
	}
	c := s.nextChange(changeImportance, id)
	c.Importance = clampImportance(importance)
	return s.appendLocal(c)
}

// AddTag adds a tag to a memory. Idempotent: adding the same tag twice from
// any replica leaves the tag set unchanged after merge.
func (s *Store) AddTag(id string, tag string) error {
	if _, ok := s.entryByID(id); !ok {
		return fmt.Errorf("memory not found: %s", id)
	}
	c := s.nextChange(changeTag, id)
	c.Tag = tag
	return s.appendLocal(c)
}

// Delete tombstones a memory. Deletes are monotonic: once any replica
// records a delete for an id, merge can never resurrect it.
func (s *Store) Delete(id string) error {
	if _, ok := s.entryByID(id); !ok {
		return fmt.Errorf("memory not found: %s", id)
	}
	c := s.nextChange(changeDelete, id)
	return s.appendLocal(c)
}

func (s *Store) entryByID(id string) (*entry, bool) {
	e, ok := rebuildProjection(s.changes)[id]
	if !ok || e.deleted {
		return nil, false
	}
	return e, true
}

// GetAll returns every live (non-deleted) memory, unordered.
func (s *Store) GetAll() []Memory {
	projection := rebuildProjection(s.changes)
	out := make([]Memory, 0, len(projection))
	for _, e := range projection {
		if e.deleted {
			continue
		}
		out = append(out, e.toMemory())
	}
	return out
}

// GetRecent returns up to limit memories, most recently created first.
func (s *Store) GetRecent(limit int) []Memory {
	all := s.GetAll()
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })
	if limit >= 0 && len(all) > limit {
		all = all[:limit]
	}
	return all
}

// GetByType returns up to limit memories of the given type.
func (s *Store) GetByType(memType MemoryType, limit int) []Memory {
	var out []Memory
	for _, m := range s.GetAll() {
		if m.Type != memType {
			continue
		}
		out = append(out, m)
		if limit >= 0 && len(out) >= limit {
			break
		}
	}
	return out
}

// GetByProject returns up to limit memories tagged with the given project.
func (s *Store) GetByProject(project string, limit int) []Memory {
	var out []Memory
	for _, m := range s.GetAll() {
		if m.Project != project {
			continue
		}
		out = append(out, m)
		if limit >= 0 && len(out) >= limit {
			break
		}
	}
	return out
}

// Count returns the number of live (non-deleted) memories. Deletion here is
// a tombstone flag rather than removal from a list, so — unlike the
// list-length count this was ported from — a deleted entry is excluded.
func (s *Store) Count() int {
	return len(s.GetAll())
}

func clampImportance(v float32) float32 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
