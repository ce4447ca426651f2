package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/ashureev/draw-labs/internal/domain"
	"github.com/ashureev/draw-labs/internal/shared"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements Repository using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite creates a new SQLite-backed repository.
func NewSQLite(dbPath string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	// Pragmas in the DSN apply to every pooled connection.
	dsn := dbPath + "?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	query := `
	CREATE TABLE IF NOT EXISTS drawings (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		prompt TEXT NOT NULL,
		prompt_type TEXT NOT NULL CHECK (prompt_type IN ('today', 'random')),
		time_limit_seconds INTEGER NOT NULL CHECK (time_limit_seconds > 0),
		image_path TEXT NOT NULL,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_drawings_created ON drawings(created_at DESC, id DESC);
	CREATE INDEX IF NOT EXISTS idx_drawings_image_path ON drawings(image_path);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Ping verifies database connectivity.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Create inserts a drawing. Busy/locked errors are retried with exponential backoff.
func (s *SQLiteStore) Create(ctx context.Context, d *domain.Drawing) (int64, error) {
	createdAt := d.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	query := `
	INSERT INTO drawings (prompt, prompt_type, time_limit_seconds, image_path, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?)`

	maxRetries := 3
	baseDelay := 50 * time.Millisecond

	var lastErr error
	for i := 0; i < maxRetries; i++ {
		res, err := s.db.ExecContext(ctx, query,
			d.Prompt, string(d.PromptType), d.TimeLimitSeconds, d.ImagePath,
			createdAt.UnixMilli(), createdAt.UnixMilli(),
		)
		if err == nil {
			id, err := res.LastInsertId()
			if err != nil {
				return 0, fmt.Errorf("get inserted id: %w", err)
			}
			return id, nil
		}
		lastErr = err

		if !shared.IsSQLiteConflictError(err) || i == maxRetries-1 {
			break
		}
		delay := baseDelay * time.Duration(1<<i) // exponential backoff: 50ms, 100ms
		slog.Debug("Database locked during drawing insert, retrying",
			"attempt", i+1,
			"delay", delay)
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return 0, fmt.Errorf("insert drawing: %w", ctx.Err())
		}
	}
	return 0, fmt.Errorf("insert drawing: %w", lastErr)
}

// ListRecent returns up to limit drawings, newest first.
func (s *SQLiteStore) ListRecent(ctx context.Context, limit int) ([]*domain.Drawing, error) {
	query := `
		SELECT id, prompt, prompt_type, time_limit_seconds, image_path, created_at
		FROM drawings ORDER BY created_at DESC, id DESC LIMIT ?`

	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("query drawings: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			slog.Warn("failed to close drawings rows", "error", closeErr)
		}
	}()

	drawings := make([]*domain.Drawing, 0, limit)
	for rows.Next() {
		d, err := scanDrawing(rows)
		if err != nil {
			return nil, fmt.Errorf("scan drawing row: %w", err)
		}
		drawings = append(drawings, d)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate drawings: %w", err)
	}

	return drawings, nil
}

// GetByID retrieves a drawing by ID.
func (s *SQLiteStore) GetByID(ctx context.Context, id int64) (*domain.Drawing, error) {
	query := `
		SELECT id, prompt, prompt_type, time_limit_seconds, image_path, created_at
		FROM drawings WHERE id = ?`

	d, err := scanDrawing(s.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("drawing %d: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("scan drawing row: %w", err)
	}
	return d, nil
}

// HasImage reports whether any drawing references imagePath.
func (s *SQLiteStore) HasImage(ctx context.Context, imagePath string) (bool, error) {
	var exists int
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM drawings WHERE image_path = ?)`, imagePath,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check image reference: %w", err)
	}
	return exists == 1, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDrawing(row rowScanner) (*domain.Drawing, error) {
	var d domain.Drawing
	var promptType string
	var createdAt int64

	if err := row.Scan(&d.ID, &d.Prompt, &promptType, &d.TimeLimitSeconds, &d.ImagePath, &createdAt); err != nil {
		return nil, err
	}
	d.PromptType = domain.PromptType(promptType)
	d.CreatedAt = time.UnixMilli(createdAt).UTC()
	return &d, nil
}
