package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ashureev/draw-labs/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore implements Repository using PostgreSQL.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// PostgresConfig holds PostgreSQL connection configuration.
type PostgresConfig struct {
	DSN         string
	MaxConns    int32
	MinConns    int32
	MaxLifetime time.Duration
}

// NewPostgres connects to PostgreSQL and ensures the schema exists.
func NewPostgres(ctx context.Context, cfg PostgresConfig) (*PostgresStore, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse DSN: %w", err)
	}

	poolConfig.MaxConns = 25
	if cfg.MaxConns > 0 {
		poolConfig.MaxConns = cfg.MaxConns
	}
	poolConfig.MinConns = 2
	if cfg.MinConns > 0 {
		poolConfig.MinConns = cfg.MinConns
	}
	poolConfig.MaxConnLifetime = 30 * time.Minute
	if cfg.MaxLifetime > 0 {
		poolConfig.MaxConnLifetime = cfg.MaxLifetime
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	s := &PostgresStore{pool: pool}
	if err := s.initSchema(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	return s, nil
}

func (s *PostgresStore) initSchema(ctx context.Context) error {
	query := `
	CREATE TABLE IF NOT EXISTS drawings (
		id BIGSERIAL PRIMARY KEY,
		prompt VARCHAR(255) NOT NULL,
		prompt_type TEXT NOT NULL CHECK (prompt_type IN ('today', 'random')),
		time_limit_seconds INTEGER NOT NULL CHECK (time_limit_seconds > 0),
		image_path TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_drawings_created ON drawings(created_at DESC, id DESC);
	CREATE INDEX IF NOT EXISTS idx_drawings_image_path ON drawings(image_path);
	`
	if _, err := s.pool.Exec(ctx, query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Ping checks database connectivity.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Create inserts a drawing and returns its ID.
func (s *PostgresStore) Create(ctx context.Context, d *domain.Drawing) (int64, error) {
	createdAt := d.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	query := `
		INSERT INTO drawings (prompt, prompt_type, time_limit_seconds, image_path, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $5)
		RETURNING id`

	var id int64
	err := s.pool.QueryRow(ctx, query,
		d.Prompt, string(d.PromptType), d.TimeLimitSeconds, d.ImagePath, createdAt,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert drawing: %w", err)
	}
	return id, nil
}

// ListRecent returns up to limit drawings, newest first.
func (s *PostgresStore) ListRecent(ctx context.Context, limit int) ([]*domain.Drawing, error) {
	query := `
		SELECT id, prompt, prompt_type, time_limit_seconds, image_path, created_at
		FROM drawings ORDER BY created_at DESC, id DESC LIMIT $1`

	rows, err := s.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("query drawings: %w", err)
	}
	defer rows.Close()

	drawings := make([]*domain.Drawing, 0, limit)
	for rows.Next() {
		d, err := scanPgDrawing(rows)
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
func (s *PostgresStore) GetByID(ctx context.Context, id int64) (*domain.Drawing, error) {
	query := `
		SELECT id, prompt, prompt_type, time_limit_seconds, image_path, created_at
		FROM drawings WHERE id = $1`

	d, err := scanPgDrawing(s.pool.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("drawing %d: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("scan drawing row: %w", err)
	}
	return d, nil
}

// HasImage reports whether any drawing references imagePath.
func (s *PostgresStore) HasImage(ctx context.Context, imagePath string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM drawings WHERE image_path = $1)`, imagePath,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check image reference: %w", err)
	}
	return exists, nil
}

// Close closes the connection pool.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func scanPgDrawing(row pgx.Row) (*domain.Drawing, error) {
	var d domain.Drawing
	var promptType string
	if err := row.Scan(&d.ID, &d.Prompt, &promptType, &d.TimeLimitSeconds, &d.ImagePath, &d.CreatedAt); err != nil {
		return nil, err
	}
	d.PromptType = domain.PromptType(promptType)
	d.CreatedAt = d.CreatedAt.UTC()
	return &d, nil
}
