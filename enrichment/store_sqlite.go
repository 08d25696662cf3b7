package enrichment

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS enrichments (
	seq        INTEGER PRIMARY KEY AUTOINCREMENT,
	id         TEXT NOT NULL UNIQUE,
	alert_key  TEXT NOT NULL,
	alert_name TEXT NOT NULL DEFAULT '',
	action     TEXT NOT NULL,
	blocks     TEXT NOT NULL,
	created_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_enrichments_alert_key ON enrichments(alert_key);
`

// SQLiteStore persists enrichments in a local SQLite database.
type SQLiteStore struct {
	mu sync.RWMutex
	db *sql.DB
}

// NewSQLiteStore opens (creating if needed) the database at dbPath and
// applies the schema. ":memory:" opens a private in-memory database.
func NewSQLiteStore(ctx context.Context, dbPath string) (*SQLiteStore, error) {
	dsn := dbPath
	if dbPath != ":memory:" {
		dir := filepath.Dir(dbPath)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create data directory %s: %w", dir, err)
		}
		dsn += "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", dbPath, err)
	}
	// A single connection keeps ":memory:" databases shared and serialises writers.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply enrichment schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Add implements Store.
func (s *SQLiteStore) Add(ctx context.Context, e Enrichment) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.db == nil {
		return ErrStoreClosed
	}
	blocks, err := json.Marshal(e.Blocks)
	if err != nil {
		return fmt.Errorf("marshal blocks for %s: %w", e.ID, err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO enrichments (id, alert_key, alert_name, action, blocks, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		e.ID, e.AlertKey, e.AlertName, e.Action, string(blocks), e.CreatedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("insert enrichment %s: %w", e.ID, err)
	}
	return nil
}

// List implements Store.
func (s *SQLiteStore) List(ctx context.Context, alertKey string) ([]Enrichment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.db == nil {
		return nil, ErrStoreClosed
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, alert_key, alert_name, action, blocks, created_at FROM enrichments WHERE alert_key = ? ORDER BY seq`,
		alertKey)
	if err != nil {
		return nil, fmt.Errorf("query enrichments for %s: %w", alertKey, err)
	}
	defer rows.Close()

	var out []Enrichment
	for rows.Next() {
		var (
			e         Enrichment
			blocks    string
			createdAt string
		)
		if err := rows.Scan(&e.ID, &e.AlertKey, &e.AlertName, &e.Action, &blocks, &createdAt); err != nil {
			return nil, fmt.Errorf("scan enrichment: %w", err)
		}
		if err := json.Unmarshal([]byte(blocks), &e.Blocks); err != nil {
			return nil, fmt.Errorf("decode blocks for %s: %w", e.ID, err)
		}
		if e.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
			return nil, fmt.Errorf("parse created_at for %s: %w", e.ID, err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Close implements Store.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}
