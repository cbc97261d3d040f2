package user

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mkrupp/homecase-authsvc/internal/domain"
)

// MemoryUserRepository implements Repository in process memory.
// It is meant for tests and throwaway instances.
type MemoryUserRepository struct {
	mu      sync.RWMutex
	byID    map[string]*domain.User
	byEmail map[string]string
}

var _ Repository = (*MemoryUserRepository)(nil)

func NewMemoryUserRepository() *MemoryUserRepository {
	return &MemoryUserRepository{
		mu:      sync.RWMutex{},
		byID:    make(map[string]*domain.User),
		byEmail: make(map[string]string),
	}
}

// GetUserByEmail implements Repository.GetUserByEmail.
func (r *MemoryUserRepository) GetUserByEmail(_ context.Context, email string) (*domain.User, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byEmail[email]
	if !ok {
		return nil, false, nil
	}

	return cloneUser(r.byID[id]), true, nil
}

// CreateUser implements Repository.CreateUser.
func (r *MemoryUserRepository) CreateUser(_ context.Context, user *domain.User) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byEmail[user.Email]; ok {
		return "", domain.ErrUserAlreadyExists
	}

	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("new id: %w", err)
	}

	stored := cloneUser(user)
	stored.ID = id.String()

	r.byID[stored.ID] = stored
	r.byEmail[stored.Email] = stored.ID

	return stored.ID, nil
}

// UpdateLastLogin implements Repository.UpdateLastLogin.
func (r *MemoryUserRepository) UpdateLastLogin(_ context.Context, id string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	user, ok := r.byID[id]
	if !ok {
		return notFound(id)
	}

	user.LastLoginAt = &at

	return nil
}

// Close implements Repository.Close.
func (r *MemoryUserRepository) Close() error {
	return nil
}

func cloneUser(user *domain.User) *domain.User {
	clone := *user

	if user.LastLoginAt != nil {
		at := *user.LastLoginAt
		clone.LastLoginAt = &at
	}

	return &clone
}
