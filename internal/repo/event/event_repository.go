// Package event stores request outcome events.
package event

import (
	"context"
	"errors"
	"fmt"

	"github.com/mkrupp/homecase-authsvc/internal/domain"
)

// ErrUnknownBackend is returned for an unsupported EVENT_BACKEND value.
var ErrUnknownBackend = errors.New("unknown event repository backend")

// Repository is an append-only event store.
type Repository interface {
	// Record appends an event.
	Record(ctx context.Context, event domain.Event) error

	// List returns up to limit events, newest first. A limit <= 0 returns all.
	// Write-only stores return ErrListNotSupported.
	List(ctx context.Context, limit int) ([]domain.Event, error)

	// Close releases any resources held by the repository.
	Close() error
}

// RepositoryConfig selects and configures the event store backend.
type RepositoryConfig struct {
	// Backend is one of "sqlite", "postgres", "mongo", "memory" or "log"
	Backend string `env:"BACKEND" envDefault:"sqlite"`

	Memory   MemoryEventRepositoryConfig
	SQLite   SQLiteEventRepositoryConfig
	Postgres PostgresEventRepositoryConfig
	Mongo    MongoEventRepositoryConfig
	Log      LogEventRepositoryConfig
}

// NewRepository opens the configured backend.
func NewRepository(ctx context.Context, cfg RepositoryConfig) (Repository, error) {
	switch cfg.Backend {
	case "sqlite":
		return NewSQLiteEventRepository(ctx, cfg.SQLite)
	case "postgres":
		return NewPostgresEventRepository(ctx, cfg.Postgres)
	case "mongo":
		return NewMongoEventRepository(ctx, cfg.Mongo)
	case "memory":
		return NewMemoryEventRepository(cfg.Memory), nil
	case "log":
		return NewLogEventRepository(cfg.Log)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, cfg.Backend)
	}
}
