// Package store provides data persistence interfaces and implementations.
package store

import (
	"context"
	"fmt"

	"github.com/ashureev/draw-labs/internal/domain"
)

// Repository defines the interface for persisting drawing records.
type Repository interface {
	// Create inserts a drawing and returns its assigned ID. d.ID is ignored;
	// a zero d.CreatedAt is set to the current time.
	Create(ctx context.Context, d *domain.Drawing) (int64, error)

	// ListRecent returns up to limit drawings, newest first.
	ListRecent(ctx context.Context, limit int) ([]*domain.Drawing, error)

	// GetByID retrieves a drawing. It returns domain.ErrNotFound when absent.
	GetByID(ctx context.Context, id int64) (*domain.Drawing, error)

	// HasImage reports whether any drawing references imagePath.
	HasImage(ctx context.Context, imagePath string) (bool, error)

	// Ping verifies database connectivity and returns an error if the database is unreachable.
	Ping(ctx context.Context) error

	// Close closes the database connection.
	Close() error
}

// Supported DB_DRIVER values.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Open returns the repository for driver. sqlitePath is used by the SQLite
// driver and dsn by the Postgres driver.
func Open(ctx context.Context, driver, sqlitePath, dsn string) (Repository, error) {
	switch driver {
	case DriverSQLite, "":
		return NewSQLite(sqlitePath)
	case DriverPostgres:
		return NewPostgres(ctx, PostgresConfig{DSN: dsn})
	default:
		return nil, fmt.Errorf("unknown database driver %q", driver)
	}
}
