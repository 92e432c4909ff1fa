package codeindex

import "strings"

// ExtractSymbols extracts "kind:name" pairs from content using a per-language
// line-prefix heuristic. Extraction is lexical, never an AST: it recognizes
// the common declaration keywords for each language and ignores everything
// else, including syntax errors. Order of appearance is preserved and empty
// names are dropped.
func ExtractSymbols(content, language string) []string {
	var symbols []string

	for _, line := range strings.Split(content, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}

		switch language {
		case "rust":
			switch {
			case strings.HasPrefix(trimmed, "fn ") || strings.HasPrefix(trimmed, "pub fn "):
				if name := extractFnName(trimmed, "fn "); name != "" {
					symbols = append(symbols, "fn:"+name)
				}
			case strings.HasPrefix(trimmed, "struct ") || strings.HasPrefix(trimmed, "pub struct "):
				if name := extractAfter(trimmed, "struct "); name != "" {
					symbols = append(symbols, "struct:"+name)
				}
			case strings.HasPrefix(trimmed, "enum ") || strings.HasPrefix(trimmed, "pub enum "):
				if name := extractAfter(trimmed, "enum "); name != "" {
					symbols = append(symbols, "enum:"+name)
				}
			case strings.HasPrefix(trimmed, "impl "):
				if name := extractAfter(trimmed, "impl "); name != "" {
					symbols = append(symbols, "impl:"+name)
				}
			}
		case "python":
			switch {
			case strings.HasPrefix(trimmed, "def "):
				if name := extractFnName(trimmed, "def "); name != "" {
					symbols = append(symbols, "def:"+name)
				}
			case strings.HasPrefix(trimmed, "class "):
				if name := extractAfter(trimmed, "class "); name != "" {
					symbols = append(symbols, "class:"+name)
				}
			}
		case "javascript", "typescript":
			switch {
			case strings.HasPrefix(trimmed, "function "):
				if name := extractFnName(trimmed, "function "); name != "" {
					symbols = append(symbols, "function:"+name)
				}
			case strings.HasPrefix(trimmed, "class "):
				if name := extractAfter(trimmed, "class "); name != "" {
					symbols = append(symbols, "class:"+name)
				}
			case strings.Contains(trimmed, "const ") && strings.Contains(trimmed, " = "):
				if name := extractConstName(trimmed); name != "" {
					symbols = append(symbols, "const:"+name)
				}
			}
		case "go":
			switch {
			case strings.HasPrefix(trimmed, "func "):
				if name := extractFnName(trimmed, "func "); name != "" {
					symbols = append(symbols, "func:"+name)
				}
			case strings.HasPrefix(trimmed, "type ") && strings.Contains(trimmed, " struct"):
				if name := extractAfter(trimmed, "type "); name != "" {
					symbols = append(symbols, "struct:"+name)
				}
			}
		case "java", "kotlin":
			if (strings.Contains(trimmed, "class ") || strings.Contains(trimmed, "interface ")) &&
				!strings.HasPrefix(trimmed, "//") {
				if name := extractJavaClass(trimmed); name != "" {
					symbols = append(symbols, "class:"+name)
				}
			}
		}
	}

	return symbols
}

func isIdentRune(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '_'
}

func takeIdent(s string) string {
	for i, r := range s {
		if !isIdentRune(r) {
			return s[:i]
		}
	}
	return s
}

func skipSpaceTakeIdent(s string) string {
	s = strings.TrimLeft(s, " \t")
	return takeIdent(s)
}

// extractFnName mirrors original_source's extract_fn_name: split on prefix
// and take the *second* segment (line.split(prefix).nth(1)), then the
// leading identifier run.
func extractFnName(line, prefix string) string {
	parts := strings.SplitN(line, prefix, 2)
	if len(parts) < 2 {
		return ""
	}
	return takeIdent(parts[1])
}

// extractAfter mirrors extract_after: split on prefix and take the *last*
// segment, skip leading whitespace, then the leading identifier run.
func extractAfter(line, prefix string) string {
	parts := strings.Split(line, prefix)
	if len(parts) < 2 {
		return ""
	}
	return skipSpaceTakeIdent(parts[len(parts)-1])
}

func extractConstName(line string) string {
	parts := strings.SplitN(line, "const ", 2)
	if len(parts) < 2 {
		return ""
	}
	return takeIdent(parts[1])
}

func extractJavaClass(line string) string {
	for _, kw := range []string{"class ", "interface "} {
		idx := strings.Index(line, kw)
		if idx < 0 {
			continue
		}
		name := skipSpaceTakeIdent(line[idx+len(kw):])
		if name != "" {
			return name
		}
	}
	return ""
}
