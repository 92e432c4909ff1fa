package retrieval

import (
	"context"
	"math"
	"sort"
	"strings"

	"github.com/Aman-CERP/sovereign/internal/store"
)

// keywordSearch scores every indexed file by term coverage plus an
// occurrence-count bonus, dropping zero-score files, and returns up to
// 2*topK hits sorted by score descending.
func keywordSearch(ctx context.Context, s store.Store, query string, topK int) ([]SearchResult, error) {
	terms := strings.Fields(query)
	if len(terms) == 0 {
		return nil, nil
	}

	// SQLite treats a negative LIMIT as "no limit"; keyword scoring needs
	// every indexed file as candidates before truncating to 2*topK below.
	files, err := s.ListFiles(ctx, "", -1)
	if err != nil {
		return nil, err
	}

	var results []SearchResult
	for _, f := range files {
		score := keywordScore(f.Content, terms)
		if score <= 0 {
			continue
		}
		results = append(results, SearchResult{
			Chunk: CodeChunk{
				FilePath: f.Path, Content: f.Content,
				StartLine: 1, EndLine: store.CountLines(f.Content), Language: f.Language,
			},
			Score:     score,
			MatchType: MatchKeyword,
		})
	}

	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })

	limit := topK * 2
	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// keywordScore computes matches/|terms| + ln(1+total_occurrences)/10,
// clamped to 1.0; matches counts terms occurring at least once
// (case-insensitive), total_occurrences sums every per-term occurrence.
func keywordScore(content string, terms []string) float32 {
	if len(terms) == 0 {
		return 0
	}
	lower := strings.ToLower(content)

	matches := 0
	totalOccurrences := 0
	for _, term := range terms {
		t := strings.ToLower(term)
		if t == "" {
			continue
		}
		n := strings.Count(lower, t)
		if n > 0 {
			matches++
			totalOccurrences += n
		}
	}

	matchRatio := float64(matches) / float64(len(terms))
	occurrenceBoost := math.Log1p(float64(totalOccurrences)) / 10.0

	score := matchRatio + occurrenceBoost
	if score > 1.0 {
		score = 1.0
	}
	return float32(score)
}

