package event

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"

	"github.com/mkrupp/homecase-authsvc/internal/domain"
)

// LogEventRepositoryConfig holds configuration for the JSON-lines event writer.
type LogEventRepositoryConfig struct {
	// Output is "stdout", "stderr" or a file path
	Output string `env:"LOG_OUTPUT" envDefault:"stdout"`
}

// LogEventRepository writes every event as one JSON line. It cannot list.
type LogEventRepository struct {
	logger zerolog.Logger
	closer io.Closer
}

var _ Repository = (*LogEventRepository)(nil)

// NewLogEventRepository opens cfg.Output for appending.
func NewLogEventRepository(cfg LogEventRepositoryConfig) (*LogEventRepository, error) {
	var (
		out    io.Writer
		closer io.Closer
	)

	switch cfg.Output {
	case "", "stdout":
		out = os.Stdout
	case "stderr":
		out = os.Stderr
	default:
		file, err := os.OpenFile(cfg.Output, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, fmt.Errorf("open event log: %w", err)
		}

		out, closer = file, file
	}

	repo := NewLogEventRepositoryWithWriter(out)
	repo.closer = closer

	return repo, nil
}

// NewLogEventRepositoryWithWriter writes events to w.
func NewLogEventRepositoryWithWriter(w io.Writer) *LogEventRepository {
	return &LogEventRepository{
		logger: zerolog.New(zerolog.SyncWriter(w)),
		closer: nil,
	}
}

// Record implements Repository.Record.
func (r *LogEventRepository) Record(_ context.Context, event domain.Event) error {
	r.logger.Log().
		Str("id", event.ID).
		Str("level", string(event.Level)).
		Time("timestamp", event.Timestamp).
		Str("outcome", event.Outcome).
		Interface("metadata", event.Metadata).
		Send()

	return nil
}

// List implements Repository.List.
func (r *LogEventRepository) List(context.Context, int) ([]domain.Event, error) {
	return nil, domain.ErrListNotSupported
}

// Close implements Repository.Close.
func (r *LogEventRepository) Close() error {
	if r.closer == nil {
		return nil
	}

	if err := r.closer.Close(); err != nil {
		return fmt.Errorf("close event log: %w", err)
	}

	return nil
}
