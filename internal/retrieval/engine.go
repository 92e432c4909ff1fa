package retrieval

import (
	"context"
	"fmt"
	"strings"

	"github.com/Aman-CERP/sovereign/internal/embed"
	"github.com/Aman-CERP/sovereign/internal/store"
)

// Engine is the hybrid retrieval engine: semantic search (via an in-memory
// HNSW candidate generator, reranked by exact cosine), keyword search, a
// linear weighted merge, optional rerank, and context assembly.
type Engine struct {
	store    store.Store
	embedder embed.Embedder
	vecIdx   *store.VectorIndex
	cfg      Config
}

// New builds a retrieval engine over an already-open store and embedder.
// vecIdx should be rebuilt from store.GetAllEmbeddings whenever the index
// changes; the engine only reads it.
func New(s store.Store, embedder embed.Embedder, vecIdx *store.VectorIndex, cfg Config) *Engine {
	return &Engine{store: s, embedder: embedder, vecIdx: vecIdx, cfg: cfg}
}

// Search performs the full hybrid pipeline: semantic + keyword, merge,
// optional rerank, filter by MinSimilarity, and truncate to TopK.
func (e *Engine) Search(ctx context.Context, query string) ([]SearchResult, error) {
	semantic, err := semanticSearch(ctx, e.store, e.vecIdx, e.embedder, query, e.cfg.TopK)
	if err != nil {
		return nil, fmt.Errorf("semantic search: %w", err)
	}

	keyword, err := keywordSearch(ctx, e.store, query, e.cfg.TopK)
	if err != nil {
		return nil, fmt.Errorf("keyword search: %w", err)
	}

	merged := mergeResults(semantic, keyword, e.cfg.SemanticWeight)

	final := merged
	if e.cfg.EnableRerank {
		final = rerankResults(query, merged)
	}

	filtered := final[:0]
	for _, r := range final {
		if r.Score >= e.cfg.MinSimilarity {
			filtered = append(filtered, r)
		}
	}

	if e.cfg.TopK > 0 && len(filtered) > e.cfg.TopK {
		filtered = filtered[:e.cfg.TopK]
	}
	return filtered, nil
}

// BuildContext concatenates results in order, each prefixed by a
// "--- path (lines a-b) ---" header, stopping once an approximate token
// count (words * 4/3) would exceed maxTokens.
func BuildContext(results []SearchResult, maxTokens int) string {
	var b strings.Builder
	tokenCount := 0

	for _, r := range results {
		words := len(strings.Fields(r.Chunk.Content))
		chunkTokens := words * 4 / 3

		if tokenCount+chunkTokens > maxTokens {
			break
		}

		fmt.Fprintf(&b, "\n--- %s (lines %d-%d) ---\n%s\n",
			r.Chunk.FilePath, r.Chunk.StartLine, r.Chunk.EndLine, r.Chunk.Content)

		tokenCount += chunkTokens
	}

	return b.String()
}
