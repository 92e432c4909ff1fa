package crdtmemory

import "time"

// changeKind names the four mutating operations the document supports.
// content is write-once (set only by changeAdd), so only importance and
// tags ever need conflict resolution after creation.
type changeKind string

const (
	changeAdd        changeKind = "add"
	changeImportance changeKind = "update_importance"
	changeTag        changeKind = "add_tag"
	changeDelete     changeKind = "delete"
)

// change is a single operation in the document's append-only log. Every
// mutating call on Store produces exactly one change, tagged with the
// originating replica's Lamport clock so it can be merged deterministically
// with the same change arriving from a remote replica.
//
// (ReplicaID, Seq) uniquely identifies a change; the log is deduplicated on
// that pair during merge, making merge idempotent.
type change struct {
	ReplicaID string     `json:"replica_id"`
	Seq       uint64     `json:"seq"`
	Kind      changeKind `json:"kind"`
	MemoryID  string     `json:"memory_id"`
	Clock     clock      `json:"clock"`

	// populated only for Kind == changeAdd
	Content   string     `json:"content,omitempty"`
	Type      MemoryType `json:"type,omitempty"`
	CreatedAt time.Time  `json:"created_at,omitempty"`
	Project   string     `json:"project,omitempty"`

	// populated only for Kind == changeImportance
	Importance float32 `json:"importance,omitempty"`

	// populated only for Kind == changeTag
	Tag string `json:"tag,omitempty"`
}

func changeKey(c change) [2]any {
	return [2]any{c.ReplicaID, c.Seq}
}
