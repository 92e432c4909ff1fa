package crdtmemory

import (
	"encoding/json"
	"fmt"
)

// Heads is a per-replica version vector: for each replica this document
// knows about, one more than the highest sequence number it has observed
// from that replica (the count of its changes seen). It stands in for
// Automerge's change-hash heads, serving the same purpose — letting a peer
// ask "what have you seen from me" without sending the full log.
type Heads map[string]uint64

// Heads reports this document's current version vector.
func (s *Store) Heads() Heads {
	h := make(Heads)
	for _, c := range s.changes {
		if c.Seq+1 > h[c.ReplicaID] {
			h[c.ReplicaID] = c.Seq + 1
		}
	}
	return h
}

// Export serializes the full document for a from-scratch sync.
func (s *Store) Export() ([]byte, error) {
	return json.Marshal(envelope{ReplicaID: s.replicaID, Changes: s.changes})
}

// Merge incorporates another replica's full exported document. Merge is
// commutative, associative, and idempotent: applying the same bytes twice,
// or merging two replicas' exports in either order, converges to the same
// projection.
func (s *Store) Merge(otherBytes []byte) error {
	var env envelope
	if err := json.Unmarshal(otherBytes, &env); err != nil {
		return fmt.Errorf("decode merge payload: %w", err)
	}
	s.applyForeign(env.Changes)
	return s.save()
}

// GenerateSyncMessage returns the changes this document has that theirHeads
// does not, or nil if there is nothing new to send.
func (s *Store) GenerateSyncMessage(theirHeads Heads) []byte {
	var missing []change
	for _, c := range s.changes {
		if c.Seq >= theirHeads[c.ReplicaID] {
			missing = append(missing, c)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	data, err := json.Marshal(missing)
	if err != nil {
		return nil
	}
	return data
}

// ApplySyncChanges incorporates an incremental batch of changes produced by
// another replica's GenerateSyncMessage.
func (s *Store) ApplySyncChanges(data []byte) error {
	var incoming []change
	if err := json.Unmarshal(data, &incoming); err != nil {
		return fmt.Errorf("decode sync changes: %w", err)
	}
	s.applyForeign(incoming)
	return s.save()
}

// applyForeign merges a batch of changes (local or remote) into the log,
// deduplicating on (replica_id, seq) and bumping the Lamport clock past
// every clock value observed so future local changes sort after them.
func (s *Store) applyForeign(incoming []change) {
	if s.seen == nil {
		s.seen = make(map[[2]any]struct{}, len(s.changes))
		for _, c := range s.changes {
			s.seen[changeKey(c)] = struct{}{}
		}
	}

	for _, c := range incoming {
		key := changeKey(c)
		if _, dup := s.seen[key]; dup {
			continue
		}
		s.seen[key] = struct{}{}
		s.changes = append(s.changes, c)

		if c.Clock.Counter > s.clock {
			s.clock = c.Clock.Counter
		}
		if c.ReplicaID == s.replicaID && c.Seq >= s.ownSeq {
			s.ownSeq = c.Seq + 1
		}
	}
}
