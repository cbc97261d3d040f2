// Package eventsvc delivers request events to the event store off the request path.
package eventsvc

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/mkrupp/homecase-authsvc/internal/domain"
	"github.com/mkrupp/homecase-authsvc/internal/infra/logging"
	"github.com/mkrupp/homecase-authsvc/internal/repo/event"
)

// DispatcherConfig tunes the event queue.
type DispatcherConfig struct {
	// QueueSize is the number of events buffered before Dispatch starts dropping
	QueueSize int `env:"QUEUE_SIZE" envDefault:"1024"`
	// Workers is the number of goroutines writing to the store
	Workers int `env:"WORKERS" envDefault:"2"`
	// MaxRetries is the number of retries after a failed write
	MaxRetries uint64 `env:"MAX_RETRIES" envDefault:"2"`
	// RetryBackoff is the base of the exponential backoff between retries
	RetryBackoff time.Duration `env:"RETRY_BACKOFF" envDefault:"100ms"`
	// RecordTimeout bounds a single event write including its retries
	RecordTimeout time.Duration `env:"RECORD_TIMEOUT" envDefault:"5s"`
}

// Dispatcher queues events and records them in the background. Store failures
// are logged and never reach the caller of Dispatch.
type Dispatcher struct {
	repo event.Repository
	cfg  DispatcherConfig
	log  logging.Logger

	queue chan domain.Event
	wg    sync.WaitGroup

	mu     sync.RWMutex
	closed bool

	ctx    context.Context //nolint:containedctx
	cancel context.CancelFunc

	dropped atomic.Uint64
	failed  atomic.Uint64
}

// NewDispatcher starts cfg.Workers goroutines writing to repo. The dispatcher
// owns repo and closes it in Close.
func NewDispatcher(repo event.Repository, cfg DispatcherConfig) *Dispatcher {
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}

	if cfg.QueueSize < 0 {
		cfg.QueueSize = 0
	}

	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = time.Millisecond
	}

	ctx, cancel := context.WithCancel(context.Background())

	d := &Dispatcher{
		repo:   repo,
		cfg:    cfg,
		log:    logging.GetLogger("svc.eventsvc.dispatcher"),
		queue:  make(chan domain.Event, cfg.QueueSize),
		ctx:    ctx,
		cancel: cancel,
	}

	d.wg.Add(cfg.Workers)

	for range cfg.Workers {
		go d.work()
	}

	return d
}

// Dispatch enqueues event without blocking. It returns false when the queue is
// full or the dispatcher is closed; the event is then dropped.
func (d *Dispatcher) Dispatch(event domain.Event) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		d.dropped.Add(1)

		return false
	}

	select {
	case d.queue <- event:
		return true
	default:
		d.dropped.Add(1)

		return false
	}
}

// List returns the most recent events from the underlying store.
func (d *Dispatcher) List(ctx context.Context, limit int) ([]domain.Event, error) {
	//nolint:wrapcheck
	return d.repo.List(ctx, limit)
}

// Dropped returns the number of events rejected by Dispatch.
func (d *Dispatcher) Dropped() uint64 {
	return d.dropped.Load()
}

// Failed returns the number of events that could not be stored.
func (d *Dispatcher) Failed() uint64 {
	return d.failed.Load()
}

// Close stops accepting events, drains the queue and closes the store. If ctx
// ends first, pending writes are cancelled and ctx's error is returned.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()

		return nil
	}

	d.closed = true
	close(d.queue)
	d.mu.Unlock()

	done := make(chan struct{})

	go func() {
		d.wg.Wait()
		close(done)
	}()

	var drainErr error

	select {
	case <-done:
	case <-ctx.Done():
		d.cancel()
		<-done

		drainErr = fmt.Errorf("drain events: %w", ctx.Err())
	}

	d.cancel()

	log := d.log.With("dropped", d.Dropped(), "failed", d.Failed())
	log.DebugContext(ctx, "dispatcher closed")

	if err := d.repo.Close(); err != nil {
		return fmt.Errorf("close event repo: %w", err)
	}

	return drainErr
}

func (d *Dispatcher) work() {
	defer d.wg.Done()

	for event := range d.queue {
		d.record(event)
	}
}

func (d *Dispatcher) record(event domain.Event) {
	ctx := d.ctx

	if d.cfg.RecordTimeout > 0 {
		var cancel context.CancelFunc

		ctx, cancel = context.WithTimeout(ctx, d.cfg.RecordTimeout)
		defer cancel()
	}

	log := d.log.With(logging.Group("event", "id", event.ID, "outcome", event.Outcome))

	defer func() {
		if p := recover(); p != nil {
			d.failed.Add(1)
			log.ErrorContext(ctx, "record event panic", "panic", p)
		}
	}()

	backoff := retry.WithMaxRetries(d.cfg.MaxRetries, retry.NewExponential(d.cfg.RetryBackoff))

	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		if err := d.repo.Record(ctx, event); err != nil {
			return retry.RetryableError(err)
		}

		return nil
	})
	if err != nil {
		d.failed.Add(1)
		log.ErrorContext(ctx, "record event failed", "error", err)

		return
	}

	log.DebugContext(ctx, "event recorded")
}
