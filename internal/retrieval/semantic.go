package retrieval

import (
	"context"

	"github.com/Aman-CERP/sovereign/internal/embed"
	"github.com/Aman-CERP/sovereign/internal/store"
)

// semanticSearch embeds the query, narrows candidates via the in-memory
// HNSW index, then reranks the candidate set by exact cosine similarity
// recomputed from the raw stored vectors — the index only narrows, it never
// supplies the final score, so approximate-search error never leaks into
// the reported ranking.
func semanticSearch(ctx context.Context, s store.Store, vecIdx *store.VectorIndex, embedder embed.Embedder, query string, topK int) ([]SearchResult, error) {
	queryVec, err := embedder.Embed(ctx, query)
	if err != nil {
		return nil, err
	}

	candidates, err := vecIdx.Search(ctx, queryVec, topK*2)
	if err != nil {
		return nil, err
	}

	embeddings, err := s.GetAllEmbeddings(ctx)
	if err != nil {
		return nil, err
	}
	vectorByPath := make(map[string][]float32, len(embeddings))
	for _, e := range embeddings {
		vectorByPath[e.Path] = e.Vector
	}

	results := make([]SearchResult, 0, len(candidates))
	for _, c := range candidates {
		f, err := s.GetFile(ctx, c.Path)
		if err != nil || f == nil {
			continue
		}

		exact := embed.CosineSimilarity(queryVec, vectorByPath[c.Path])

		results = append(results, SearchResult{
			Chunk: CodeChunk{
				FilePath: f.Path, Content: f.Content,
				StartLine: 1, EndLine: store.CountLines(f.Content), Language: f.Language,
			},
			Score:     exact,
			MatchType: MatchSemantic,
		})
	}

	return results, nil
}
