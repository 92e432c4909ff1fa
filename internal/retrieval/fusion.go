package retrieval

import "sort"

// mergeKey identifies a result for fusion purposes: semantic and keyword
// hits for the same file/start-line combine into one scored result.
type mergeKey struct {
	path  string
	start int
}

// mergeResults fuses semantic and keyword result sets with a linear
// weighted merge (semanticWeight*sem + (1-semanticWeight)*kw), keyed by
// (file_path, start_line). This is a plain weighted sum, not Reciprocal
// Rank Fusion: RRF trades exact scores for rank position, which would
// break downstream threshold/rerank math that depends on [0,1] scores.
func mergeResults(semantic, keyword []SearchResult, semanticWeight float32) []SearchResult {
	type pair struct {
		sem, kw float32
		chunk   CodeChunk
	}
	scores := make(map[mergeKey]*pair)

	for _, r := range semantic {
		k := mergeKey{r.Chunk.FilePath, r.Chunk.StartLine}
		p, ok := scores[k]
		if !ok {
			p = &pair{chunk: r.Chunk}
			scores[k] = p
		}
		p.sem = r.Score
	}
	for _, r := range keyword {
		k := mergeKey{r.Chunk.FilePath, r.Chunk.StartLine}
		p, ok := scores[k]
		if !ok {
			p = &pair{chunk: r.Chunk}
			scores[k] = p
		}
		p.kw = r.Score
	}

	keywordWeight := 1 - semanticWeight
	results := make([]SearchResult, 0, len(scores))
	for _, p := range scores {
		combined := semanticWeight*p.sem + keywordWeight*p.kw

		var mt MatchType
		switch {
		case p.sem > 0 && p.kw > 0:
			mt = MatchHybrid
		case p.sem > 0:
			mt = MatchSemantic
		default:
			mt = MatchKeyword
		}

		results = append(results, SearchResult{Chunk: p.chunk, Score: combined, MatchType: mt})
	}

	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	return results
}
