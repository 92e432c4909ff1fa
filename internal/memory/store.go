package memory

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

// Store is the classic memory store, backed by its own SQLite database
// (memory.db) separate from the codebase index's codebase.db.
type Store struct {
	db  *sql.DB
	log *slog.Logger
}

// Open opens (creating if necessary) memory.db under dataDir.
func Open(dataDir string, log *slog.Logger) (*Store, error) {
	if log == nil {
		log = slog.Default()
	}
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating data dir: %w", err)
	}

	dbPath := filepath.Join(dataDir, "memory.db")
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("opening memory.db: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := migrate(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrating memory.db: %w", err)
	}

	return &Store{db: db, log: log}, nil
}

func migrate(db *sql.DB) error {
	const schema = `
CREATE TABLE IF NOT EXISTS memories (
	id TEXT PRIMARY KEY,
	content TEXT NOT NULL,
	memory_type TEXT NOT NULL,
	project TEXT,
	tags TEXT NOT NULL,
	created_at TEXT NOT NULL,
	importance REAL NOT NULL DEFAULT 0.5
);
CREATE INDEX IF NOT EXISTS idx_memory_type ON memories(memory_type);
CREATE INDEX IF NOT EXISTS idx_project ON memories(project);
`
	_, err := db.Exec(schema)
	return err
}

// Remember allocates a new UUIDv4 memory, clamps its importance, and
// persists it. project may be empty for an untagged memory.
func (s *Store) Remember(ctx context.Context, content string, kind Kind, project string, tags []string, importance float32) (*Memory, error) {
	m := &Memory{
		ID:         uuid.NewString(),
		Content:    content,
		Kind:       kind,
		Project:    project,
		Tags:       append([]string(nil), tags...),
		CreatedAt:  time.Now(),
		Importance: clampImportance(importance),
	}

	if err := s.store(ctx, m); err != nil {
		return nil, err
	}
	return m, nil
}

func (s *Store) store(ctx context.Context, m *Memory) error {
	tagsJSON, err := json.Marshal(m.Tags)
	if err != nil {
		return fmt.Errorf("encoding tags: %w", err)
	}

	var project any
	if m.Project != "" {
		project = m.Project
	}

	_, err = s.db.ExecContext(ctx, `
INSERT OR REPLACE INTO memories (id, content, memory_type, project, tags, created_at, importance)
VALUES (?, ?, ?, ?, ?, ?, ?)
`, m.ID, m.Content, string(m.Kind), project, string(tagsJSON),
		// Fixed-width UTC nanoseconds keep created_at ordering exact even
		// for memories stored within the same second.
		m.CreatedAt.UTC().Format("2006-01-02T15:04:05.000000000Z07:00"), m.Importance)
	if err != nil {
		return fmt.Errorf("writing memory row: %w", err)
	}
	return nil
}

// Search performs a substring match against content, ranked by importance
// then recency.
func (s *Store) Search(ctx context.Context, query string, limit int) ([]*Memory, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT id, content, memory_type, project, tags, created_at, importance
FROM memories WHERE content LIKE ?
ORDER BY importance DESC, created_at DESC
LIMIT ?`, "%"+query+"%", limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanMemories(rows)
}

// GetRecent returns the limit most recently created memories.
func (s *Store) GetRecent(ctx context.Context, limit int) ([]*Memory, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT id, content, memory_type, project, tags, created_at, importance
FROM memories ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanMemories(rows)
}

// GetByType returns memories of the given kind, ranked by importance then
// recency.
func (s *Store) GetByType(ctx context.Context, kind Kind, limit int) ([]*Memory, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT id, content, memory_type, project, tags, created_at, importance
FROM memories WHERE memory_type = ?
ORDER BY importance DESC, created_at DESC
LIMIT ?`, string(kind), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanMemories(rows)
}

// GetByProject returns memories tagged with the given project, ranked by
// importance then recency.
func (s *Store) GetByProject(ctx context.Context, project string, limit int) ([]*Memory, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT id, content, memory_type, project, tags, created_at, importance
FROM memories WHERE project = ?
ORDER BY importance DESC, created_at DESC
LIMIT ?`, project, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanMemories(rows)
}

// Count returns the total number of stored memories.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM memories`).Scan(&n)
	return n, err
}

func (s *Store) Close() error {
	return s.db.Close()
}

func scanMemories(rows *sql.Rows) ([]*Memory, error) {
	var out []*Memory
	for rows.Next() {
		var (
			m          Memory
			kindStr    string
			project    sql.NullString
			tagsJSON   string
			createdStr string
		)
		if err := rows.Scan(&m.ID, &m.Content, &kindStr, &project, &tagsJSON, &createdStr, &m.Importance); err != nil {
			return nil, err
		}
		m.Kind = kindFromString(kindStr)
		if project.Valid {
			m.Project = project.String
		}
		_ = json.Unmarshal([]byte(tagsJSON), &m.Tags)
		if t, err := time.Parse(time.RFC3339, createdStr); err == nil {
			m.CreatedAt = t
		}
		out = append(out, &m)
	}
	return out, rows.Err()
}
