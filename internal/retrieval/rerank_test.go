package retrieval

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRerankResults_NoTermMatchOnlyGetsSizeBonus(t *testing.T) {
	content := "no relevant terms here"
	results := []SearchResult{{Chunk: CodeChunk{Content: content}, Score: 0.3}}
	got := rerankResults("unrelated", results)

	sizeFactor := float32(1.0) / (1.0 + float32(len(content))/5000.0)
	wantScore := float32(0.3) + sizeFactor*0.1

	assert.InDelta(t, wantScore, got[0].Score, 0.0001)
}

func TestRerankResults_TermMatchBoostsBeyondSizeBonus(t *testing.T) {
	results := []SearchResult{{Chunk: CodeChunk{Content: "widget appears here"}, Score: 0.0}}
	got := rerankResults("widget", results)
	assert.Greater(t, got[0].Score, float32(0.1))
}

func TestRerankResults_DeclarationBoostExceedsPlainMatch(t *testing.T) {
	inDecl := []SearchResult{{Chunk: CodeChunk{Content: "fn widget() { do_thing() }"}, Score: 0.0}}
	plainMatch := []SearchResult{{Chunk: CodeChunk{Content: "calls widget somewhere else"}, Score: 0.0}}

	declResult := rerankResults("widget", inDecl)
	plainResult := rerankResults("widget", plainMatch)

	assert.Greater(t, declResult[0].Score, plainResult[0].Score)
}

func TestRerankResults_ScoreCappedAtOne(t *testing.T) {
	results := []SearchResult{{Chunk: CodeChunk{Content: "fn foo() {}"}, Score: 0.95}}
	got := rerankResults("foo", results)
	assert.LessOrEqual(t, got[0].Score, float32(1.0))
}

func TestRerankResults_SortsDescendingAfterBoost(t *testing.T) {
	results := []SearchResult{
		{Chunk: CodeChunk{Content: "no match"}, Score: 0.5},
		{Chunk: CodeChunk{Content: "fn target() {}"}, Score: 0.1},
	}
	got := rerankResults("target", results)
	require.Len(t, got, 2)
	assert.Contains(t, got[0].Chunk.Content, "target")
}

func TestRerankResults_SizeFocusFavorsSmallerChunks(t *testing.T) {
	small := []SearchResult{{Chunk: CodeChunk{Content: "x"}, Score: 0.5}}
	large := []SearchResult{{Chunk: CodeChunk{Content: string(make([]byte, 10000))}, Score: 0.5}}

	gotSmall := rerankResults("nomatch", small)
	gotLarge := rerankResults("nomatch", large)
	assert.Greater(t, gotSmall[0].Score, gotLarge[0].Score)
}
