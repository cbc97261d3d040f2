package event

import (
	"context"
	"sync"

	"github.com/mkrupp/homecase-authsvc/internal/domain"
)

// MemoryEventRepositoryConfig bounds the in-memory event store.
type MemoryEventRepositoryConfig struct {
	// Capacity is the number of events kept; older events are discarded
	Capacity int `env:"MEMORY_CAPACITY" envDefault:"1000"`
}

// MemoryEventRepository keeps the most recent events in memory.
type MemoryEventRepository struct {
	mu       sync.RWMutex
	capacity int
	events   []domain.Event
}

var _ Repository = (*MemoryEventRepository)(nil)

func NewMemoryEventRepository(cfg MemoryEventRepositoryConfig) *MemoryEventRepository {
	return &MemoryEventRepository{
		mu:       sync.RWMutex{},
		capacity: cfg.Capacity,
		events:   nil,
	}
}

// Record implements Repository.Record.
func (r *MemoryEventRepository) Record(_ context.Context, event domain.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.events = append(r.events, event)

	if r.capacity > 0 && len(r.events) > r.capacity {
		r.events = append([]domain.Event(nil), r.events[len(r.events)-r.capacity:]...)
	}

	return nil
}

// List implements Repository.List.
func (r *MemoryEventRepository) List(_ context.Context, limit int) ([]domain.Event, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n := len(r.events)
	if limit > 0 && limit < n {
		n = limit
	}

	out := make([]domain.Event, 0, n)
	for i := len(r.events) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, r.events[i])
	}

	return out, nil
}

// Close implements Repository.Close.
func (r *MemoryEventRepository) Close() error {
	return nil
}
