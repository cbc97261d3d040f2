package user

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mkrupp/homecase-authsvc/internal/domain"
)

// ErrUnknownBackend is returned for an unsupported USER_BACKEND value.
var ErrUnknownBackend = errors.New("unknown user repository backend")

// Repository defines the interface for credential persistence.
// Emails are expected in normalised form.
type Repository interface {
	// GetUserByEmail retrieves a user by email.
	// Returns the user and true if found, nil and false if not found.
	// Returns an error only if the lookup itself fails.
	GetUserByEmail(ctx context.Context, email string) (*domain.User, bool, error)

	// CreateUser stores a new user and returns its store-assigned id.
	// Returns ErrUserAlreadyExists if the email is already taken.
	CreateUser(ctx context.Context, user *domain.User) (string, error)

	// UpdateLastLogin sets the last-login timestamp of the user.
	// Returns ErrUserNotFound if no user has the given id.
	UpdateLastLogin(ctx context.Context, id string, at time.Time) error

	// Close releases any resources held by the repository.
	// Returns an error if cleanup fails.
	Close() error
}

// RepositoryFactory is a function that creates a new Repository instance.
// Returns an error if initialization fails.
type RepositoryFactory func() (Repository, error)

// RepositoryConfig selects and configures the credential store backend.
type RepositoryConfig struct {
	// Backend is one of "sqlite", "postgres", "mongo" or "memory"
	Backend string `env:"BACKEND" envDefault:"sqlite"`

	SQLite   SQLiteUserRepositoryConfig
	Postgres PostgresUserRepositoryConfig
	Mongo    MongoUserRepositoryConfig
}

// NewRepositoryFactory returns the factory for the configured backend.
func NewRepositoryFactory(ctx context.Context, cfg RepositoryConfig) (RepositoryFactory, error) {
	switch cfg.Backend {
	case "sqlite":
		return SQLiteUserRepositoryFactory(ctx, cfg.SQLite), nil
	case "postgres":
		return PostgresUserRepositoryFactory(ctx, cfg.Postgres), nil
	case "mongo":
		return MongoUserRepositoryFactory(ctx, cfg.Mongo), nil
	case "memory":
		return func() (Repository, error) { return NewMemoryUserRepository(), nil }, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, cfg.Backend)
	}
}

func notFound(id string) error {
	return fmt.Errorf("%w: %s", domain.ErrUserNotFound, id)
}
