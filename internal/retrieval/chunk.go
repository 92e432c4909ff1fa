package retrieval

import "strings"

// boundaryPatterns are the declaration-keyword prefixes used to locate
// natural chunk boundaries, per language. Unknown languages fall back to a
// generic set spanning several languages' function/class keywords.
var boundaryPatterns = map[string][]string{
	"rust":       {"fn ", "impl ", "struct ", "enum ", "trait ", "mod "},
	"python":     {"def ", "class ", "async def "},
	"javascript": {"function ", "class ", "const ", "export "},
	"typescript": {"function ", "class ", "const ", "export "},
	"java":       {"public ", "private ", "protected ", "class ", "interface "},
	"kotlin":     {"public ", "private ", "protected ", "class ", "interface "},
	"go":         {"func ", "type ", "package "},
}

var genericBoundaryPatterns = []string{"fn ", "function ", "def ", "class "}

func findBoundaries(lines []string, language string) []int {
	patterns, ok := boundaryPatterns[language]
	if !ok {
		patterns = genericBoundaryPatterns
	}

	var interior []int
	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		if i == 0 {
			continue
		}
		for _, p := range patterns {
			if strings.HasPrefix(trimmed, p) {
				interior = append(interior, i)
				break
			}
		}
	}
	return interior
}

// ChunkContent splits content into CodeChunks, preferring natural
// declaration boundaries over fixed-size windows. Empty-trimmed chunks are
// dropped and line ranges are 1-based inclusive.
func ChunkContent(content, filePath, language string, cfg Config) []CodeChunk {
	if content == "" {
		return nil
	}
	lines := strings.Split(content, "\n")
	if len(lines) == 0 {
		return nil
	}

	interior := findBoundaries(lines, language)

	var chunks []CodeChunk
	if len(interior) > 0 {
		boundaries := append([]int{0}, interior...)
		boundaries = append(boundaries, len(lines))

		for i := 0; i+1 < len(boundaries); i++ {
			start := boundaries[i]
			end := boundaries[i+1]
			if end > len(lines) {
				end = len(lines)
			}
			if start >= end {
				continue
			}
			text := strings.Join(lines[start:end], "\n")
			if strings.TrimSpace(text) == "" {
				continue
			}
			chunks = append(chunks, CodeChunk{
				FilePath: filePath, Content: text,
				StartLine: start + 1, EndLine: end, Language: language,
			})
		}
		return chunks
	}

	chunkSize := cfg.ChunkSize
	if chunkSize <= 0 {
		chunkSize = DefaultConfig().ChunkSize
	}
	overlap := cfg.ChunkOverlap
	if overlap < 0 {
		overlap = 0
	}

	start := 0
	for start < len(lines) {
		end := start + chunkSize
		if end > len(lines) {
			end = len(lines)
		}
		text := strings.Join(lines[start:end], "\n")
		if strings.TrimSpace(text) != "" {
			chunks = append(chunks, CodeChunk{
				FilePath: filePath, Content: text,
				StartLine: start + 1, EndLine: end, Language: language,
			})
		}
		if end >= len(lines) {
			break
		}
		next := end - overlap
		if next <= start {
			next = end
		}
		start = next
	}

	return chunks
}
