package store

import (
	"context"
	"fmt"
	"math"
	"sync"

	"github.com/coder/hnsw"
)

// VectorIndex is an in-memory approximate nearest-neighbor index over file
// embeddings, backed by coder/hnsw. It is rebuilt from Store.GetAllEmbeddings
// on each retrieval engine construction or reindex rather than persisted,
// since the exact cosine scores (not the graph's approximate distances) are
// what callers rely on for ranking.
type VectorIndex struct {
	mu     sync.RWMutex
	graph  *hnsw.Graph[uint64]
	config VectorIndexConfig

	idMap   map[string]uint64
	keyMap  map[uint64]string
	nextKey uint64
}

// NewVectorIndex creates an empty vector index ready for Add calls.
func NewVectorIndex(cfg VectorIndexConfig) *VectorIndex {
	if cfg.M == 0 {
		cfg.M = 16
	}
	if cfg.EfSearch == 0 {
		cfg.EfSearch = 20
	}

	graph := hnsw.NewGraph[uint64]()
	graph.Distance = hnsw.CosineDistance
	graph.M = cfg.M
	graph.EfSearch = cfg.EfSearch
	graph.Ml = 0.25

	return &VectorIndex{
		graph:  graph,
		config: cfg,
		idMap:  make(map[string]uint64),
		keyMap: make(map[uint64]string),
	}
}

// BuildVectorIndex constructs a VectorIndex from a full embedding snapshot,
// the way the retrieval engine refreshes its candidate generator on reindex.
func BuildVectorIndex(cfg VectorIndexConfig, embeddings []Embedding) (*VectorIndex, error) {
	idx := NewVectorIndex(cfg)
	ids := make([]string, len(embeddings))
	vectors := make([][]float32, len(embeddings))
	for i, e := range embeddings {
		ids[i] = e.Path
		vectors[i] = e.Vector
	}
	if err := idx.Add(context.Background(), ids, vectors); err != nil {
		return nil, err
	}
	return idx, nil
}

// Add inserts vectors keyed by path. An existing path is replaced.
func (s *VectorIndex) Add(ctx context.Context, paths []string, vectors [][]float32) error {
	if len(paths) == 0 {
		return nil
	}
	if len(paths) != len(vectors) {
		return fmt.Errorf("paths and vectors length mismatch: %d vs %d", len(paths), len(vectors))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, v := range vectors {
		if s.config.Dimensions != 0 && len(v) != s.config.Dimensions {
			return ErrDimensionMismatch{Expected: s.config.Dimensions, Got: len(v)}
		}
	}

	for i, path := range paths {
		if existingKey, exists := s.idMap[path]; exists {
			delete(s.keyMap, existingKey)
			delete(s.idMap, path)
		}

		key := s.nextKey
		s.nextKey++

		vec := make([]float32, len(vectors[i]))
		copy(vec, vectors[i])
		normalizeVectorInPlace(vec)

		s.graph.Add(hnsw.MakeNode(key, vec))
		s.idMap[path] = key
		s.keyMap[key] = path
	}

	return nil
}

// Search returns up to k nearest neighbors to query, ranked by the graph's
// approximate cosine distance. Callers that need exact cosine scores (per
// spec's cosine-correctness invariant) should recompute similarity from the
// raw stored vectors rather than trust VectorResult.Score for final ranking.
func (s *VectorIndex) Search(ctx context.Context, query []float32, k int) ([]VectorResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.config.Dimensions != 0 && len(query) != s.config.Dimensions {
		return nil, ErrDimensionMismatch{Expected: s.config.Dimensions, Got: len(query)}
	}

	if s.graph.Len() == 0 {
		return nil, nil
	}

	normalizedQuery := make([]float32, len(query))
	copy(normalizedQuery, query)
	normalizeVectorInPlace(normalizedQuery)

	nodes := s.graph.Search(normalizedQuery, k)

	results := make([]VectorResult, 0, len(nodes))
	for _, node := range nodes {
		path, exists := s.keyMap[node.Key]
		if !exists {
			continue
		}
		distance := s.graph.Distance(normalizedQuery, node.Value)
		results = append(results, VectorResult{
			Path:     path,
			Distance: distance,
			Score:    1.0 - distance/2.0,
		})
	}

	return results, nil
}

// Count returns the number of live vectors in the index.
func (s *VectorIndex) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.idMap)
}

func normalizeVectorInPlace(v []float32) {
	var sumSquares float64
	for _, val := range v {
		sumSquares += float64(val) * float64(val)
	}
	if sumSquares == 0 {
		return
	}
	invMagnitude := float32(1.0 / math.Sqrt(sumSquares))
	for i := range v {
		v[i] *= invMagnitude
	}
}
