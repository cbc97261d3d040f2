package event

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/mkrupp/homecase-authsvc/internal/domain"
	"github.com/mkrupp/homecase-authsvc/internal/infra/logging"
	"github.com/mkrupp/homecase-authsvc/internal/repo/sqldb"
)

// SQLiteEventRepositoryConfig holds configuration for the SQLite event repository.
type SQLiteEventRepositoryConfig struct {
	// DatabasePath is the filesystem path to the SQLite database file
	DatabasePath string `env:"DATABASE_PATH" envDefault:"var/storage/authsvc.db"`
}

// SQLiteEventRepository implements Repository on SQLite.
type SQLiteEventRepository struct {
	db        *sql.DB
	log       logging.Logger
	writeLock *sync.Mutex // go-sqlite does not support concurrent writes
}

var _ Repository = (*SQLiteEventRepository)(nil)

// NewSQLiteEventRepository opens the database at cfg.DatabasePath and applies the migrations.
func NewSQLiteEventRepository(ctx context.Context, cfg SQLiteEventRepositoryConfig) (*SQLiteEventRepository, error) {
	db, err := sqldb.OpenSQLite(ctx, cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	return &SQLiteEventRepository{
		db: db,
		log: logging.GetLogger("repo.event.sqlite_event_repository").With(
			logging.Group("db", "path", cfg.DatabasePath),
		),
		writeLock: new(sync.Mutex),
	}, nil
}

// Record implements Repository.Record.
func (r *SQLiteEventRepository) Record(ctx context.Context, event domain.Event) error {
	metadata, err := encodeMetadata(event.Metadata)
	if err != nil {
		return err
	}

	r.writeLock.Lock()
	defer r.writeLock.Unlock()

	if _, err := r.db.ExecContext(ctx,
		"INSERT INTO events (id, level, timestamp, outcome, metadata) VALUES (?, ?, ?, ?, ?)",
		event.ID,
		string(event.Level),
		event.Timestamp.UnixMilli(),
		event.Outcome,
		metadata,
	); err != nil {
		return fmt.Errorf("insert event: %w", err)
	}

	return nil
}

// List implements Repository.List.
func (r *SQLiteEventRepository) List(ctx context.Context, limit int) ([]domain.Event, error) {
	if limit <= 0 {
		limit = -1 // no limit
	}

	rows, err := r.db.QueryContext(ctx,
		"SELECT id, level, timestamp, outcome, metadata FROM events ORDER BY timestamp DESC, id DESC LIMIT ?",
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var events []domain.Event

	for rows.Next() {
		var (
			event     domain.Event
			level     string
			timestamp int64
			metadata  string
		)

		if err := rows.Scan(&event.ID, &level, &timestamp, &event.Outcome, &metadata); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}

		event.Level = domain.EventLevel(level)
		event.Timestamp = time.UnixMilli(timestamp).UTC()

		if event.Metadata, err = decodeMetadata(metadata); err != nil {
			return nil, err
		}

		events = append(events, event)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}

	return events, nil
}

// Close implements Repository.Close.
func (r *SQLiteEventRepository) Close() error {
	if err := r.db.Close(); err != nil {
		return fmt.Errorf("close db: %w", err)
	}

	return nil
}

func encodeMetadata(metadata map[string]any) (string, error) {
	if metadata == nil {
		return "{}", nil
	}

	buf, err := json.Marshal(metadata)
	if err != nil {
		return "", fmt.Errorf("encode metadata: %w", err)
	}

	return string(buf), nil
}

func decodeMetadata(raw string) (map[string]any, error) {
	metadata := make(map[string]any)

	if err := json.Unmarshal([]byte(raw), &metadata); err != nil {
		return nil, fmt.Errorf("decode metadata: %w", err)
	}

	return metadata, nil
}
