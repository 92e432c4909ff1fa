// Package watcher watches project directories for file changes and turns
// bursts of edits into a single re-index command per settled directory.
package watcher

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Operation represents a file system operation type.
type Operation int

const (
	// OpCreate indicates a new file or directory was created.
	OpCreate Operation = iota
	// OpModify indicates an existing file was modified.
	OpModify
	// OpDelete indicates a file or directory was deleted.
	OpDelete
	// OpRename indicates a file or directory was renamed.
	OpRename
)

// String returns a human-readable representation of the operation.
func (op Operation) String() string {
	switch op {
	case OpCreate:
		return "CREATE"
	case OpModify:
		return "MODIFY"
	case OpDelete:
		return "DELETE"
	case OpRename:
		return "RENAME"
	default:
		return "UNKNOWN"
	}
}

// FileEvent represents a single file system event observed by the watcher.
type FileEvent struct {
	// Path is the absolute path to the file or directory.
	Path string

	// Operation is the type of file system operation.
	Operation Operation

	// IsDir indicates if the event is for a directory.
	IsDir bool

	// Timestamp is when the event was detected.
	Timestamp time.Time
}

// Watcher watches one or more directories and coalesces the resulting churn
// into index commands.
type Watcher interface {
	// Start begins watching the given directory recursively.
	// Returns an error if watching fails to initialize.
	// The watcher runs until Stop is called or context is cancelled.
	Start(ctx context.Context, path string) error

	// Stop stops the watcher and releases resources.
	// Safe to call multiple times.
	Stop() error

	// Events returns a channel of raw file events, before coalescing.
	// The channel is closed when the watcher stops.
	Events() <-chan FileEvent

	// IndexCommands returns a channel of project roots to re-index.
	// Exactly one root is emitted per settled burst of changes.
	// The channel is closed when the watcher stops.
	IndexCommands() <-chan string

	// Errors returns a channel of watcher errors.
	// Non-fatal errors are sent here; the watcher continues running.
	// The channel is closed when the watcher stops.
	Errors() <-chan error
}

// Options configures the watcher behavior.
type Options struct {
	// DebounceWindow is the quiet period required before a burst of changes
	// is coalesced into a single index command.
	// Default: 500ms
	DebounceWindow time.Duration

	// EventBufferSize is the size of the event channel buffer.
	// Default: 1000
	EventBufferSize int

	// IgnorePatterns are additional gitignore-syntax patterns to ignore
	// beyond the project's own .gitignore files.
	IgnorePatterns []string
}

// DefaultDebounceWindow matches the daemon's re-index coalescing window.
const DefaultDebounceWindow = 500 * time.Millisecond

// DefaultOptions returns the default watcher options.
func DefaultOptions() Options {
	return Options{
		DebounceWindow:  DefaultDebounceWindow,
		EventBufferSize: 1000,
		IgnorePatterns:  nil,
	}
}

// WithDefaults returns options with defaults applied for zero values.
func (o Options) WithDefaults() Options {
	defaults := DefaultOptions()
	if o.DebounceWindow == 0 {
		o.DebounceWindow = defaults.DebounceWindow
	}
	if o.EventBufferSize == 0 {
		o.EventBufferSize = defaults.EventBufferSize
	}
	return o
}

// skipDirs are path components that are never worth indexing.
var skipDirs = map[string]struct{}{
	"node_modules": {},
	"target":       {},
	"build":        {},
	"dist":         {},
	".git":         {},
	"__pycache__":  {},
	"venv":         {},
	".venv":        {},
}

// indexableExtensions is the extended allowlist of file extensions the
// watcher will re-index on change. It is a superset of the indexer's own
// language table, since config and doc files are worth tracking too.
var indexableExtensions = map[string]struct{}{
	"rs": {}, "py": {}, "js": {}, "ts": {}, "jsx": {}, "tsx": {}, "java": {}, "kt": {},
	"go": {}, "c": {}, "cpp": {}, "cc": {}, "h": {}, "hpp": {}, "rb": {}, "php": {}, "swift": {},
	"scala": {}, "cs": {}, "fs": {}, "clj": {}, "ex": {}, "exs": {}, "erl": {}, "hs": {},
	"ml": {}, "lua": {}, "r": {}, "jl": {}, "dart": {}, "vue": {}, "svelte": {}, "html": {},
	"css": {}, "scss": {}, "sql": {}, "sh": {}, "bash": {}, "zsh": {}, "yaml": {}, "yml": {},
	"toml": {}, "json": {}, "xml": {}, "md": {}, "txt": {},
}

// ShouldIndex reports whether path is worth re-indexing. It rejects hidden
// files, anything under a skip directory, and anything outside the
// extension allowlist.
func ShouldIndex(path string) bool {
	base := filepath.Base(path)
	if strings.HasPrefix(base, ".") {
		return false
	}

	for _, part := range strings.Split(filepath.ToSlash(path), "/") {
		if _, skip := skipDirs[part]; skip {
			return false
		}
	}

	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
	if ext == "" {
		return false
	}
	_, ok := indexableExtensions[ext]
	return ok
}

// projectRootMarkers are files/directories whose presence marks a directory
// as a project root.
var projectRootMarkers = []string{"Cargo.toml", "package.json", ".git", "pyproject.toml"}

// hasProjectMarker reports whether dir contains any project root marker.
// Overridden in tests to avoid touching the real filesystem.
var hasProjectMarker = func(dir string) bool {
	for _, marker := range projectRootMarkers {
		if pathExists(filepath.Join(dir, marker)) {
			return true
		}
	}
	return false
}

// FindProjectRoot walks up from path looking for a directory containing a
// project root marker, stopping at the first match or at the filesystem
// root, whichever comes first.
func FindProjectRoot(path string) string {
	root := path
	for {
		parent := filepath.Dir(root)
		if parent == root {
			return root
		}
		if hasProjectMarker(parent) {
			return parent
		}
		root = parent
	}
}

func pathExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
