// Package codeindex walks a source tree, extracts symbols, and persists
// files into the embedded store (C2). It is the component that turns a
// directory on disk into the rows C4's retrieval engine searches over.
package codeindex

import "strings"

// languageByExtension is the codebase index's language table (distinct from
// and narrower than the file watcher's broader indexable-extension
// allowlist): anything not listed here is skipped by indexing, even though
// the watcher may still consider it worth a reindex trigger.
var languageByExtension = map[string]string{
	"rs":     "rust",
	"py":     "python",
	"js":     "javascript",
	"jsx":    "javascript",
	"ts":     "typescript",
	"tsx":    "typescript",
	"go":     "go",
	"java":   "java",
	"kt":     "kotlin",
	"c":      "c",
	"h":      "c",
	"cpp":    "cpp",
	"cc":     "cpp",
	"hpp":    "cpp",
	"cs":     "csharp",
	"rb":     "ruby",
	"php":    "php",
	"swift":  "swift",
	"scala":  "scala",
	"sh":     "shell",
	"bash":   "shell",
	"sql":    "sql",
	"html":   "html",
	"css":    "css",
	"json":   "json",
	"yaml":   "yaml",
	"yml":    "yaml",
	"toml":   "toml",
	"md":     "markdown",
}

// DetectLanguage returns the indexer's recognized language for path, or ""
// if the extension is not in the indexing table.
func DetectLanguage(path string) string {
	ext := extensionOf(path)
	if ext == "" {
		return ""
	}
	return languageByExtension[strings.ToLower(ext)]
}

func extensionOf(path string) string {
	base := path
	if i := strings.LastIndexAny(path, "/\\"); i >= 0 {
		base = path[i+1:]
	}
	i := strings.LastIndex(base, ".")
	if i < 0 || i == len(base)-1 {
		return ""
	}
	return base[i+1:]
}
