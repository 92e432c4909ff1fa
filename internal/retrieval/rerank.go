package retrieval

import (
	"sort"
	"strings"
)

var declarationPrefixes = []string{
	"fn ", "function ", "def ", "class ", "struct ", "const ", "let ", "var ",
}

// rerankResults boosts each result by query-term density: +0.1 per term
// found anywhere in the chunk, +0.2 more if that term appears in
// declaration position, plus a size-focus bonus favoring smaller chunks.
// The final score is capped at 1.0.
func rerankResults(query string, results []SearchResult) []SearchResult {
	terms := strings.Fields(query)

	for i := range results {
		contentLower := strings.ToLower(results[i].Chunk.Content)
		var boost float32

		for _, term := range terms {
			termLower := strings.ToLower(term)
			if termLower == "" {
				continue
			}
			if strings.Contains(contentLower, termLower) {
				boost += 0.1
			}
			if isInDeclaration(contentLower, termLower) {
				boost += 0.2
			}
		}

		sizeFactor := 1.0 / (1.0 + float32(len(results[i].Chunk.Content))/5000.0)
		boost += sizeFactor * 0.1

		score := results[i].Score + boost
		if score > 1.0 {
			score = 1.0
		}
		results[i].Score = score
	}

	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	return results
}

func isInDeclaration(contentLower, termLower string) bool {
	for _, prefix := range declarationPrefixes {
		if strings.Contains(contentLower, prefix+termLower) {
			return true
		}
	}
	return false
}
