package orchestrator

import (
	"context"
	"fmt"
	"strings"

	"github.com/Aman-CERP/sovereign/internal/store"
)

func (o *Orchestrator) cmdSearch(ctx context.Context, query string) (string, error) {
	if query == "" {
		return "", fmt.Errorf("/search requires a query")
	}

	results, err := o.engine.Search(ctx, query)
	if err != nil {
		return "", fmt.Errorf("search: %w", err)
	}
	if len(results) == 0 {
		return "No results.", nil
	}

	var b strings.Builder
	for i, r := range results {
		fmt.Fprintf(&b, "%d. %s (lines %d-%d, score %.3f, %s)\n",
			i+1, r.Chunk.FilePath, r.Chunk.StartLine, r.Chunk.EndLine, r.Score, r.MatchType)
	}
	return strings.TrimRight(b.String(), "\n"), nil
}

func (o *Orchestrator) cmdSymbol(ctx context.Context, symbol string) (string, error) {
	if symbol == "" {
		return "", fmt.Errorf("/symbol requires a name")
	}

	hits, err := o.index.SearchBySymbol(ctx, symbol, DefaultSearchLimit)
	if err != nil {
		return "", fmt.Errorf("symbol search: %w", err)
	}
	if len(hits) == 0 {
		return "No matching symbols.", nil
	}

	var b strings.Builder
	for _, h := range hits {
		fmt.Fprintf(&b, "%s (score %.3f)\n", h.Path, h.Score)
	}
	return strings.TrimRight(b.String(), "\n"), nil
}

func (o *Orchestrator) cmdRead(ctx context.Context, path string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("/read requires a path")
	}
	content, err := o.index.GetFileContent(ctx, path)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	return content, nil
}

func (o *Orchestrator) cmdSummarize(ctx context.Context, path string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("/summarize requires a path")
	}
	f, err := o.index.GetFile(ctx, path)
	if err != nil {
		return "", fmt.Errorf("summarize %s: %w", path, err)
	}
	if f == nil {
		return "", fmt.Errorf("not found: %s", path)
	}

	lines := store.CountLines(f.Content)
	symbols := "none"
	if len(f.Symbols) > 0 {
		symbols = strings.Join(f.Symbols, ", ")
	}
	return fmt.Sprintf("%s (%s, %d lines, %d bytes)\nsymbols: %s",
		f.RelPath, f.Language, lines, f.Size, symbols), nil
}

func (o *Orchestrator) cmdEmbed(ctx context.Context, path string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("/embed requires a path")
	}
	content, err := o.index.GetFileContent(ctx, path)
	if err != nil {
		return "", fmt.Errorf("embed %s: %w", path, err)
	}

	vec, err := o.embedder.Embed(ctx, content)
	if err != nil {
		return "", fmt.Errorf("generate embedding: %w", err)
	}
	if err := o.index.StoreEmbedding(ctx, path, vec); err != nil {
		return "", fmt.Errorf("store embedding: %w", err)
	}
	if err := o.refreshEngine(ctx); err != nil {
		return "", fmt.Errorf("refresh vector index: %w", err)
	}

	return fmt.Sprintf("embedded %s (%d dimensions)", path, len(vec)), nil
}

func (o *Orchestrator) cmdStats(ctx context.Context) (string, error) {
	stats, err := o.index.GetStats(ctx)
	if err != nil {
		return "", fmt.Errorf("stats: %w", err)
	}
	if stats.TotalFiles == 0 {
		return "No codebase indexed.", nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Codebase Statistics\n")
	fmt.Fprintf(&b, "Files: %d\n", stats.TotalFiles)
	fmt.Fprintf(&b, "Lines: %d\n", stats.TotalLines)
	for _, lc := range stats.Languages {
		fmt.Fprintf(&b, "  %s: %d\n", lc.Language, lc.Count)
	}
	return strings.TrimRight(b.String(), "\n"), nil
}
