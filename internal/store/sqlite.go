package store

import (
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/blevesearch/bleve/v2"
	_ "github.com/mattn/go-sqlite3"
)

func timeParse(s string) (time.Time, error) {
	return time.Parse(time.RFC3339, s)
}

// SQLiteStore implements Store over a SQLite database (files, embeddings)
// mirrored into a bleve full-text index for ranked search.
type SQLiteStore struct {
	db    *sql.DB
	index bleve.Index
	log   *slog.Logger
}

// Open opens (creating if necessary) the codebase database and its mirrored
// bleve index under dataDir.
func Open(dataDir string, log *slog.Logger) (*SQLiteStore, error) {
	if log == nil {
		log = slog.Default()
	}
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating data dir: %w", err)
	}

	dbPath := filepath.Join(dataDir, "codebase.db")
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("opening codebase.db: %w", err)
	}
	db.SetMaxOpenConns(1) // single-writer, matches the daemon's single-owner model

	if err := migrate(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrating codebase.db: %w", err)
	}

	idx, err := openOrCreateBleveIndex(filepath.Join(dataDir, "codebase.bleve"))
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("opening bleve index: %w", err)
	}

	return &SQLiteStore{db: db, index: idx, log: log}, nil
}

func migrate(db *sql.DB) error {
	const schema = `
CREATE TABLE IF NOT EXISTS files (
	path TEXT PRIMARY KEY,
	rel_path TEXT NOT NULL,
	language TEXT,
	size INTEGER NOT NULL,
	hash TEXT NOT NULL,
	content TEXT NOT NULL,
	summary TEXT,
	symbols TEXT NOT NULL,
	indexed_at TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS embeddings (
	path TEXT PRIMARY KEY,
	vector BLOB NOT NULL,
	FOREIGN KEY(path) REFERENCES files(path) ON DELETE CASCADE
);
`
	_, err := db.Exec(schema)
	return err
}

type bleveDoc struct {
	Path    string `json:"path"`
	Content string `json:"content"`
	Symbols string `json:"symbols"`
}

func openOrCreateBleveIndex(path string) (bleve.Index, error) {
	idx, err := bleve.Open(path)
	if err == nil {
		return idx, nil
	}
	mapping := bleve.NewIndexMapping()
	return bleve.New(path, mapping)
}

// UpsertFile implements Store.
func (s *SQLiteStore) UpsertFile(ctx context.Context, f *File) (bool, error) {
	var existingHash string
	err := s.db.QueryRowContext(ctx, `SELECT hash FROM files WHERE path = ?`, f.Path).Scan(&existingHash)
	switch {
	case err == sql.ErrNoRows:
		// new file, fall through to insert
	case err != nil:
		return false, fmt.Errorf("checking existing hash: %w", err)
	case existingHash == f.Hash:
		return false, nil
	}

	symbolsJSON, err := json.Marshal(f.Symbols)
	if err != nil {
		return false, fmt.Errorf("encoding symbols: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
INSERT INTO files (path, rel_path, language, size, hash, content, summary, symbols, indexed_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(path) DO UPDATE SET
	rel_path = excluded.rel_path,
	language = excluded.language,
	size = excluded.size,
	hash = excluded.hash,
	content = excluded.content,
	summary = excluded.summary,
	symbols = excluded.symbols,
	indexed_at = excluded.indexed_at
`, f.Path, f.RelPath, f.Language, f.Size, f.Hash, f.Content, f.Summary, string(symbolsJSON), f.IndexedAt.Format("2006-01-02T15:04:05Z07:00"))
	if err != nil {
		return false, fmt.Errorf("writing file row: %w", err)
	}

	// Full-text mirroring is allowed to fail silently per spec: a legacy
	// row may already exist in the index.
	if err := s.index.Index(f.Path, bleveDoc{Path: f.Path, Content: f.Content, Symbols: string(symbolsJSON)}); err != nil {
		s.log.Warn("bleve index failed, full-text match may be stale", "path", f.Path, "error", err)
	}

	return true, nil
}

func (s *SQLiteStore) GetFile(ctx context.Context, path string) (*File, error) {
	row := s.db.QueryRowContext(ctx, `SELECT path, rel_path, language, size, hash, content, summary, symbols, indexed_at FROM files WHERE path = ?`, path)
	return scanFile(row)
}

func (s *SQLiteStore) GetFileContent(ctx context.Context, path string) (string, error) {
	var content string
	err := s.db.QueryRowContext(ctx, `SELECT content FROM files WHERE path = ?`, path).Scan(&content)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return content, err
}

func (s *SQLiteStore) ListFiles(ctx context.Context, language string, limit int) ([]*File, error) {
	var rows *sql.Rows
	var err error
	if language != "" {
		rows, err = s.db.QueryContext(ctx, `SELECT path, rel_path, language, size, hash, content, summary, symbols, indexed_at FROM files WHERE language = ? ORDER BY path LIMIT ?`, language, limit)
	} else {
		rows, err = s.db.QueryContext(ctx, `SELECT path, rel_path, language, size, hash, content, summary, symbols, indexed_at FROM files ORDER BY path LIMIT ?`, limit)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var files []*File
	for rows.Next() {
		f, err := scanFile(rows)
		if err != nil {
			return nil, err
		}
		files = append(files, f)
	}
	return files, rows.Err()
}

func (s *SQLiteStore) DeleteFile(ctx context.Context, path string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM files WHERE path = ?`, path); err != nil {
		return fmt.Errorf("deleting file row: %w", err)
	}
	if err := s.index.Delete(path); err != nil {
		s.log.Warn("bleve delete failed", "path", path, "error", err)
	}
	return nil
}

// rowScanner abstracts *sql.Row / *sql.Rows for scanFile.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanFile(row rowScanner) (*File, error) {
	var f File
	var symbolsJSON, indexedAt string
	err := row.Scan(&f.Path, &f.RelPath, &f.Language, &f.Size, &f.Hash, &f.Content, &f.Summary, &symbolsJSON, &indexedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(symbolsJSON), &f.Symbols); err != nil {
		return nil, fmt.Errorf("decoding symbols: %w", err)
	}
	if t, err := timeParse(indexedAt); err == nil {
		f.IndexedAt = t
	}
	return &f, nil
}

// Search implements Store.Search: ranked bleve match over content/symbols,
// falling back to an unranked substring scan when bleve errors.
func (s *SQLiteStore) Search(ctx context.Context, query string, limit int) ([]SearchHit, error) {
	req := bleve.NewSearchRequest(bleve.NewQueryStringQuery(query))
	req.Size = limit
	result, err := s.index.SearchInContext(ctx, req)
	if err != nil {
		s.log.Warn("bleve search failed, falling back to substring scan", "error", err)
		return s.substringScan(ctx, query, limit)
	}

	hits := make([]SearchHit, 0, len(result.Hits))
	for _, h := range result.Hits {
		hits = append(hits, SearchHit{Path: h.ID, Score: h.Score})
	}
	return hits, nil
}

func (s *SQLiteStore) substringScan(ctx context.Context, query string, limit int) ([]SearchHit, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT path, content, symbols FROM files`)
	if err != nil {
		return nil, fmt.Errorf("substring scan query: %w", err)
	}
	defer rows.Close()

	lowerQuery := strings.ToLower(query)
	var hits []SearchHit
	for rows.Next() {
		var path, content, symbols string
		if err := rows.Scan(&path, &content, &symbols); err != nil {
			return nil, err
		}
		if strings.Contains(strings.ToLower(content), lowerQuery) || strings.Contains(strings.ToLower(symbols), lowerQuery) {
			hits = append(hits, SearchHit{Path: path, Score: 1.0})
		}
		if len(hits) >= limit {
			break
		}
	}
	return hits, rows.Err()
}

func (s *SQLiteStore) SearchBySymbol(ctx context.Context, symbol string, limit int) ([]SearchHit, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT path, symbols FROM files WHERE symbols LIKE ? LIMIT ?`, "%"+symbol+"%", limit)
	if err != nil {
		return nil, fmt.Errorf("symbol search: %w", err)
	}
	defer rows.Close()

	var hits []SearchHit
	for rows.Next() {
		var path, symbols string
		if err := rows.Scan(&path, &symbols); err != nil {
			return nil, err
		}
		hits = append(hits, SearchHit{Path: path, Score: 1.0})
	}
	return hits, rows.Err()
}

func (s *SQLiteStore) StoreEmbedding(ctx context.Context, path string, vector []float32) error {
	_, err := s.db.ExecContext(ctx, `
INSERT INTO embeddings (path, vector) VALUES (?, ?)
ON CONFLICT(path) DO UPDATE SET vector = excluded.vector
`, path, encodeVector(vector))
	if err != nil {
		return fmt.Errorf("storing embedding: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetAllEmbeddings(ctx context.Context) ([]Embedding, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT path, vector FROM embeddings`)
	if err != nil {
		return nil, fmt.Errorf("listing embeddings: %w", err)
	}
	defer rows.Close()

	var out []Embedding
	for rows.Next() {
		var path string
		var blob []byte
		if err := rows.Scan(&path, &blob); err != nil {
			return nil, err
		}
		out = append(out, Embedding{Path: path, Vector: decodeVector(blob)})
	}
	return out, rows.Err()
}

func (s *SQLiteStore) HasEmbedding(ctx context.Context, path string) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM embeddings WHERE path = ?`, path).Scan(&count)
	return count > 0, err
}

func (s *SQLiteStore) Stats(ctx context.Context) (*Stats, error) {
	var totalFiles int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM files`).Scan(&totalFiles); err != nil {
		return nil, fmt.Errorf("counting files: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `SELECT language, content, indexed_at FROM files`)
	if err != nil {
		return nil, fmt.Errorf("scanning stats: %w", err)
	}
	defer rows.Close()

	langCounts := make(map[string]int)
	totalLines := 0
	var lastIndexed *string
	for rows.Next() {
		var language, content, indexedAt string
		if err := rows.Scan(&language, &content, &indexedAt); err != nil {
			return nil, err
		}
		if language != "" {
			langCounts[language]++
		}
		totalLines += CountLines(content)
		if lastIndexed == nil || indexedAt > *lastIndexed {
			v := indexedAt
			lastIndexed = &v
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	languages := make([]LanguageCount, 0, len(langCounts))
	for lang, count := range langCounts {
		languages = append(languages, LanguageCount{Language: lang, Count: count})
	}
	sort.Slice(languages, func(i, j int) bool { return languages[i].Count > languages[j].Count })

	stats := &Stats{TotalFiles: totalFiles, TotalLines: totalLines, Languages: languages}
	if lastIndexed != nil {
		if t, err := timeParse(*lastIndexed); err == nil {
			stats.LastIndexed = &t
		}
	}
	return stats, nil
}

func (s *SQLiteStore) Close() error {
	var errs []error
	if err := s.index.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := s.db.Close(); err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return fmt.Errorf("closing store: %v", errs)
	}
	return nil
}

func encodeVector(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

func decodeVector(buf []byte) []float32 {
	v := make([]float32, len(buf)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
	}
	return v
}

var _ Store = (*SQLiteStore)(nil)
