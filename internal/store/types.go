// Package store provides the embedded persistence layer: a SQLite-backed
// files/embeddings table with a mirrored bleve full-text index, and an
// in-memory HNSW vector index built on demand from stored embeddings.
package store

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// File is a single indexed source file (C2's Indexed File entity).
//
// Invariant: Hash always equals SHA-256(Content); re-indexing an unchanged
// path with the same hash is a no-op and must not rewrite Content.
type File struct {
	Path      string    // absolute path, primary key
	RelPath   string    // path relative to the indexed root
	Language  string    // detected language, or "" if unrecognized
	Size      int64     // content length in bytes
	Hash      string    // hex-encoded SHA-256 of Content
	Content   string    // full file content
	Summary   string    // optional, empty unless set by a caller
	Symbols   []string  // ordered "kind:name" pairs
	IndexedAt time.Time // last time this row was written
}

// Embedding is a dense vector associated with a file path, stored
// separately from File so presence can be checked without loading content.
type Embedding struct {
	Path   string
	Vector []float32
}

// Stats summarizes the current index state, as returned by `/stats`.
type Stats struct {
	TotalFiles  int
	TotalLines  int
	Languages   []LanguageCount
	LastIndexed *time.Time
}

// LanguageCount is a (language, file count) pair sorted by count descending.
type LanguageCount struct {
	Language string
	Count    int
}

// CountLines returns the line count of content, counted the way every
// other line-oriented view of a file (keyword search's chunk bounds,
// /summarize) counts lines: the number of newlines, plus one when the
// content does not end in a newline, so a file with no trailing newline
// still reports its last line and a trailing newline adds no empty line.
// Empty content has zero lines.
func CountLines(content string) int {
	if content == "" {
		return 0
	}
	n := strings.Count(content, "\n")
	if !strings.HasSuffix(content, "\n") {
		n++
	}
	return n
}

// SearchHit is a single full-text or symbol search result.
type SearchHit struct {
	Path  string
	Score float64
}

// Store is the persistence contract for the codebase index (C1/C2).
// A single Store instance owns both codebase.db (files + embeddings) and
// its mirrored bleve full-text index; callers never touch either directly.
type Store interface {
	// UpsertFile writes or updates a file row and mirrors it into the
	// full-text index. Returns true if the row was newly written or its
	// hash changed; false if the call was a no-op (unchanged hash).
	UpsertFile(ctx context.Context, f *File) (changed bool, err error)

	GetFile(ctx context.Context, path string) (*File, error)
	GetFileContent(ctx context.Context, path string) (string, error)
	ListFiles(ctx context.Context, language string, limit int) ([]*File, error)
	DeleteFile(ctx context.Context, path string) error

	// Search performs a ranked full-text match over content and symbols.
	// Falls back to a substring scan when the full-text engine errors.
	Search(ctx context.Context, query string, limit int) ([]SearchHit, error)

	// SearchBySymbol performs a substring match against encoded symbols.
	SearchBySymbol(ctx context.Context, symbol string, limit int) ([]SearchHit, error)

	StoreEmbedding(ctx context.Context, path string, vector []float32) error
	GetAllEmbeddings(ctx context.Context) ([]Embedding, error)
	HasEmbedding(ctx context.Context, path string) (bool, error)

	Stats(ctx context.Context) (*Stats, error)

	Close() error
}

// ErrDimensionMismatch indicates a vector was added or searched with a
// dimension different from the index's configured dimension.
type ErrDimensionMismatch struct {
	Expected int
	Got      int
}

func (e ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("dimension mismatch: expected %d, got %d", e.Expected, e.Got)
}

// VectorResult is a single nearest-neighbor hit from a VectorIndex.
type VectorResult struct {
	Path     string
	Distance float32
	Score    float32 // 1 - Distance/2, from the graph's cosine distance; not the cosine similarity itself
}

// VectorIndexConfig configures the in-memory HNSW vector index.
type VectorIndexConfig struct {
	Dimensions int
	M          int // max connections per layer
	EfSearch   int // query-time search width
}

// DefaultVectorIndexConfig returns sensible defaults for a vector index of
// the given dimensionality.
func DefaultVectorIndexConfig(dimensions int) VectorIndexConfig {
	return VectorIndexConfig{
		Dimensions: dimensions,
		M:          16,
		EfSearch:   20,
	}
}
