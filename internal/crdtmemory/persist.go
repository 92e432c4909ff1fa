package crdtmemory

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// envelope is the on-disk shape of memories.automerge: one replica's own
// identity plus every change it has ever seen, local or merged-in.
type envelope struct {
	ReplicaID string   `json:"replica_id"`
	Changes   []change `json:"changes"`
}

func loadEnvelope(path string) (*envelope, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return &env, nil
}

// save writes the document with a write-temp/fsync/rename sequence, guarded
// by an advisory file lock so a concurrent P2P sync reader never observes a
// partially written file.
func (s *Store) save() error {
	if err := s.lock.Lock(); err != nil {
		return fmt.Errorf("lock %s: %w", s.path, err)
	}
	defer s.lock.Unlock()

	env := envelope{ReplicaID: s.replicaID, Changes: s.changes}
	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("encode crdt memory document: %w", err)
	}

	dir := filepath.Dir(s.path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}

	tmp, err := os.CreateTemp(dir, ".memories.automerge.*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("fsync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close temp file: %w", err)
	}

	if err := os.Rename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename temp file into place: %w", err)
	}
	return nil
}
