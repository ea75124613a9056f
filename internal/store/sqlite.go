package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"pagebot/internal/domain"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements domain.ProfileStore using SQLite.
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

func NewSQLiteStore(dbPath string, logger *slog.Logger) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("cannot create database directory %s: %w", dir, err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("cannot open database: %w", err)
	}

	// Set connection pool (single connection for SQLite)
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	store := &SQLiteStore{db: db, logger: logger}

	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("database migration failed: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS pages (
		page_id      TEXT PRIMARY KEY,
		access_token TEXT NOT NULL,
		mode         TEXT NOT NULL,
		instructions TEXT,
		assistant_id TEXT,
		enabled      INTEGER NOT NULL DEFAULT 1,
		created_at   DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at   DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

func (s *SQLiteStore) Get(ctx context.Context, pageID string) (*domain.PageProfile, error) {
	var p domain.PageProfile
	var enabled int
	err := s.db.QueryRowContext(ctx,
		`SELECT page_id, access_token, mode, instructions, assistant_id, enabled
		 FROM pages WHERE page_id = ?`, pageID,
	).Scan(&p.PageID, &p.AccessToken, &p.Mode, &p.Instructions, &p.AssistantID, &enabled)
	if err == sql.ErrNoRows {
		return nil, domain.ErrProfileNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query page %s: %w", pageID, err)
	}
	p.Enabled = enabled != 0
	return &p, nil
}

func (s *SQLiteStore) Put(ctx context.Context, profile *domain.PageProfile) error {
	if err := profile.Validate(); err != nil {
		return err
	}
	enabled := 0
	if profile.Enabled {
		enabled = 1
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO pages (page_id, access_token, mode, instructions, assistant_id, enabled, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(page_id) DO UPDATE SET
		   access_token = excluded.access_token,
		   mode         = excluded.mode,
		   instructions = excluded.instructions,
		   assistant_id = excluded.assistant_id,
		   enabled      = excluded.enabled,
		   updated_at   = excluded.updated_at`,
		profile.PageID, profile.AccessToken, profile.Mode, profile.Instructions,
		profile.AssistantID, enabled, time.Now(),
	)
	if err != nil {
		return fmt.Errorf("upsert page %s: %w", profile.PageID, err)
	}
	return nil
}

func (s *SQLiteStore) Delete(ctx context.Context, pageID string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM pages WHERE page_id = ?`, pageID)
	if err != nil {
		return fmt.Errorf("delete page %s: %w", pageID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrProfileNotFound
	}
	return nil
}

func (s *SQLiteStore) List(ctx context.Context) ([]*domain.PageProfile, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT page_id, access_token, mode, instructions, assistant_id, enabled
		 FROM pages ORDER BY page_id`)
	if err != nil {
		return nil, fmt.Errorf("list pages: %w", err)
	}
	defer rows.Close()

	var profiles []*domain.PageProfile
	for rows.Next() {
		var p domain.PageProfile
		var enabled int
		if err := rows.Scan(&p.PageID, &p.AccessToken, &p.Mode, &p.Instructions, &p.AssistantID, &enabled); err != nil {
			return nil, err
		}
		p.Enabled = enabled != 0
		profiles = append(profiles, &p)
	}
	return profiles, rows.Err()
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
