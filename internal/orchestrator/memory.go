package orchestrator

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/Aman-CERP/sovereign/internal/memory"
)

const defaultMemoryLimit = 10

// cmdMemory dispatches the "/memory <subcommand> ..." family against the
// classic memory store (C5): remember/recent/type/project.
func (o *Orchestrator) cmdMemory(ctx context.Context, args string) (string, error) {
	fields := strings.SplitN(args, " ", 2)
	sub := fields[0]
	var rest string
	if len(fields) > 1 {
		rest = strings.TrimSpace(fields[1])
	}

	switch sub {
	case "remember":
		return o.memoryRemember(ctx, rest)
	case "recent":
		return o.memoryRecent(ctx, rest)
	case "type":
		return o.memoryByType(ctx, rest)
	case "project":
		return o.memoryByProject(ctx, rest)
	default:
		return "", fmt.Errorf("unknown /memory subcommand: %s", sub)
	}
}

// memoryRemember parses "<kind> <content...>" and stores it with default
// importance (0.5) and no project or tags — callers wanting those can reach
// for the underlying store directly once a richer surface is needed.
func (o *Orchestrator) memoryRemember(ctx context.Context, rest string) (string, error) {
	fields := strings.SplitN(rest, " ", 2)
	if len(fields) < 2 || strings.TrimSpace(fields[1]) == "" {
		return "", fmt.Errorf("usage: /memory remember <kind> <content>")
	}

	kind := memory.Kind(fields[0])
	content := strings.TrimSpace(fields[1])

	m, err := o.memories.Remember(ctx, content, kind, "", nil, 0.5)
	if err != nil {
		return "", fmt.Errorf("remember: %w", err)
	}
	return fmt.Sprintf("remembered %s (%s)", m.ID, m.Kind), nil
}

func (o *Orchestrator) memoryRecent(ctx context.Context, rest string) (string, error) {
	limit := parseMemoryLimit(rest)
	mems, err := o.memories.GetRecent(ctx, limit)
	if err != nil {
		return "", fmt.Errorf("recent memories: %w", err)
	}
	return formatMemories(mems), nil
}

func (o *Orchestrator) memoryByType(ctx context.Context, rest string) (string, error) {
	fields := strings.SplitN(rest, " ", 2)
	if fields[0] == "" {
		return "", fmt.Errorf("usage: /memory type <kind> [limit]")
	}
	limit := defaultMemoryLimit
	if len(fields) > 1 {
		limit = parseMemoryLimit(fields[1])
	}

	mems, err := o.memories.GetByType(ctx, memory.Kind(fields[0]), limit)
	if err != nil {
		return "", fmt.Errorf("memories by type: %w", err)
	}
	return formatMemories(mems), nil
}

func (o *Orchestrator) memoryByProject(ctx context.Context, rest string) (string, error) {
	fields := strings.SplitN(rest, " ", 2)
	if fields[0] == "" {
		return "", fmt.Errorf("usage: /memory project <name> [limit]")
	}
	limit := defaultMemoryLimit
	if len(fields) > 1 {
		limit = parseMemoryLimit(fields[1])
	}

	mems, err := o.memories.GetByProject(ctx, fields[0], limit)
	if err != nil {
		return "", fmt.Errorf("memories by project: %w", err)
	}
	return formatMemories(mems), nil
}

func parseMemoryLimit(s string) int {
	if s == "" {
		return defaultMemoryLimit
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return defaultMemoryLimit
	}
	return n
}

func formatMemories(mems []*memory.Memory) string {
	if len(mems) == 0 {
		return "No memories found."
	}
	var b strings.Builder
	for _, m := range mems {
		fmt.Fprintf(&b, "[%s] %s (importance %.2f)\n", m.Kind, m.Content, m.Importance)
	}
	return strings.TrimRight(b.String(), "\n")
}
