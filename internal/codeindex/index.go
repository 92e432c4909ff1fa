package codeindex

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/schollz/progressbar/v3"

	"github.com/Aman-CERP/sovereign/internal/gitignore"
	"github.com/Aman-CERP/sovereign/internal/store"
)

// skipDirs are hard-coded skip directories, on top of whatever a
// .gitignore/global-gitignore/git-exclude rule excludes.
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

// Index is the codebase index (C2): it walks a root directory, hashes and
// symbolizes each recognized file, and persists the result through Store.
type Index struct {
	store store.Store
	log   *slog.Logger
}

// New wraps an already-open Store as a codebase index.
func New(s store.Store, log *slog.Logger) *Index {
	if log == nil {
		log = slog.Default()
	}
	return &Index{store: s, log: log}
}

// IndexDirectory walks root respecting .gitignore/global-gitignore/
// git-exclude plus the hard-coded skip list, indexing every regular file
// whose extension is recognized. It returns the count of files newly
// written or updated (a same-hash file is a no-op and is not counted).
func (ix *Index) IndexDirectory(ctx context.Context, root string, showProgress bool) (int, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return 0, fmt.Errorf("resolving root: %w", err)
	}

	matcher := loadIgnoreRules(absRoot)

	var bar *progressbar.ProgressBar
	if showProgress {
		bar = progressbar.NewOptions(-1,
			progressbar.OptionSetDescription("indexing"),
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionClearOnFinish(),
		)
	}

	count := 0
	err = filepath.WalkDir(absRoot, func(path string, d fs.DirEntry, err error) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err != nil {
			// Unreadable entries are silently skipped.
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}

		rel, relErr := filepath.Rel(absRoot, path)
		if relErr != nil {
			rel = path
		}

		if d.IsDir() {
			if path != absRoot && (isSkipDir(d.Name()) || matcher.Match(rel, true)) {
				return fs.SkipDir
			}
			return nil
		}

		if matcher.Match(rel, false) {
			return nil
		}

		lang := DetectLanguage(path)
		if lang == "" {
			return nil
		}

		changed, indexErr := ix.indexFile(ctx, path, rel, lang)
		if indexErr != nil {
			// Unreadable files are silently skipped.
			return nil
		}
		if changed {
			count++
			if bar != nil {
				_ = bar.Add(1)
			}
		}
		return nil
	})
	if bar != nil {
		_ = bar.Finish()
	}
	if err != nil {
		return count, err
	}

	return count, nil
}

func (ix *Index) indexFile(ctx context.Context, absPath, relPath, language string) (bool, error) {
	content, err := os.ReadFile(absPath)
	if err != nil {
		return false, err
	}

	sum := sha256.Sum256(content)
	hash := hex.EncodeToString(sum[:])

	f := &store.File{
		Path:      absPath,
		RelPath:   relPath,
		Language:  language,
		Size:      int64(len(content)),
		Hash:      hash,
		Content:   string(content),
		Symbols:   ExtractSymbols(string(content), language),
		IndexedAt: time.Now(),
	}

	return ix.store.UpsertFile(ctx, f)
}

func isSkipDir(name string) bool {
	_, ok := skipDirs[name]
	return ok
}

// loadIgnoreRules builds a matcher from root's .gitignore plus the user's
// global gitignore and git's repo-local exclude file, mirroring `ignore`
// crate's git_ignore/git_global/git_exclude behavior.
func loadIgnoreRules(root string) *gitignore.Matcher {
	m := gitignore.New()

	// Paths are matched relative to root, so root-level rules take an
	// empty base.
	_ = m.AddFromFile(filepath.Join(root, ".gitignore"), "")
	_ = m.AddFromFile(filepath.Join(root, ".git", "info", "exclude"), "")

	if home, err := os.UserHomeDir(); err == nil {
		candidates := []string{
			filepath.Join(home, ".gitignore_global"),
			filepath.Join(home, ".config", "git", "ignore"),
		}
		for _, c := range candidates {
			_ = m.AddFromFile(c, "")
		}
	}

	return m
}

func (ix *Index) GetFile(ctx context.Context, pathOrRelative string) (*store.File, error) {
	return ix.store.GetFile(ctx, pathOrRelative)
}

func (ix *Index) GetFileContent(ctx context.Context, path string) (string, error) {
	return ix.store.GetFileContent(ctx, path)
}

func (ix *Index) Search(ctx context.Context, query string, limit int) ([]store.SearchHit, error) {
	return ix.store.Search(ctx, query, limit)
}

func (ix *Index) SearchBySymbol(ctx context.Context, symbol string, limit int) ([]store.SearchHit, error) {
	return ix.store.SearchBySymbol(ctx, symbol, limit)
}

func (ix *Index) StoreEmbedding(ctx context.Context, path string, vector []float32) error {
	return ix.store.StoreEmbedding(ctx, path, vector)
}

func (ix *Index) GetAllEmbeddings(ctx context.Context) ([]store.Embedding, error) {
	return ix.store.GetAllEmbeddings(ctx)
}

func (ix *Index) HasEmbedding(ctx context.Context, path string) (bool, error) {
	return ix.store.HasEmbedding(ctx, path)
}

func (ix *Index) GetStats(ctx context.Context) (*store.Stats, error) {
	return ix.store.Stats(ctx)
}

func (ix *Index) ListFiles(ctx context.Context, language string, limit int) ([]*store.File, error) {
	return ix.store.ListFiles(ctx, language, limit)
}

func (ix *Index) Close() error {
	return ix.store.Close()
}
