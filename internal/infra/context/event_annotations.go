package context

import (
	"context"
	"sync"
)

const contextKeyEventAnnotations = contextKey("eventAnnotations")

// EventAnnotations collects what a handler wants to add to the request event.
// The event middleware installs it before the handler runs and reads it back
// once the response is written.
type EventAnnotations struct {
	mu      sync.Mutex
	outcome string
	level   string
	err     error
}

// WithEventAnnotations returns a context carrying a fresh annotations holder.
func WithEventAnnotations(ctx context.Context) (context.Context, *EventAnnotations) {
	ann := &EventAnnotations{}

	return context.WithValue(ctx, contextKeyEventAnnotations, ann), ann
}

// EventAnnotationsFromContext returns the holder installed by WithEventAnnotations.
func EventAnnotationsFromContext(ctx context.Context) (*EventAnnotations, bool) {
	ann, ok := ctx.Value(contextKeyEventAnnotations).(*EventAnnotations)

	return ann, ok
}

// AnnotateOutcome sets the outcome name on the request event, if the
// context carries an annotations holder.
func AnnotateOutcome(ctx context.Context, outcome string) {
	if ann, ok := EventAnnotationsFromContext(ctx); ok {
		ann.SetOutcome(outcome)
	}
}

// AnnotateError attaches an error to the request event, if the context carries
// an annotations holder.
func AnnotateError(ctx context.Context, err error) {
	if ann, ok := EventAnnotationsFromContext(ctx); ok {
		ann.SetError(err)
	}
}

// AnnotateLevel overrides the request event level, if the context carries an
// annotations holder.
func AnnotateLevel(ctx context.Context, level string) {
	if ann, ok := EventAnnotationsFromContext(ctx); ok {
		ann.SetLevel(level)
	}
}

func (a *EventAnnotations) SetOutcome(outcome string) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.outcome = outcome
}

// SetLevel overrides the level derived from the response status.
func (a *EventAnnotations) SetLevel(level string) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.level = level
}

func (a *EventAnnotations) SetError(err error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.err = err
}

func (a *EventAnnotations) Outcome() string {
	a.mu.Lock()
	defer a.mu.Unlock()

	return a.outcome
}

func (a *EventAnnotations) Level() string {
	a.mu.Lock()
	defer a.mu.Unlock()

	return a.level
}

func (a *EventAnnotations) Err() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	return a.err
}
