package orchestrator

import (
	"context"
	"fmt"
)

func (o *Orchestrator) cmdIndex(ctx context.Context, path string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("/index requires a path")
	}

	count, err := o.index.IndexDirectory(ctx, path, false)
	if err != nil {
		return "", fmt.Errorf("index %s: %w", path, err)
	}
	if err := o.refreshEngine(ctx); err != nil {
		return "", fmt.Errorf("refresh vector index: %w", err)
	}

	return fmt.Sprintf("indexed %s: %d files updated", path, count), nil
}
