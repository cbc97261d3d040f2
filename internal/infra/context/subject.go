package context

import (
	"context"
)

const contextKeySubject = contextKey("subject")

// SubjectFromContext returns the id of the authenticated user, if any.
func SubjectFromContext(ctx context.Context) (string, bool) {
	subject, ok := ctx.Value(contextKeySubject).(string)

	return subject, ok
}

// WithSubject stores the authenticated user id in the context.
func WithSubject(ctx context.Context, subject string) context.Context {
	return context.WithValue(ctx, contextKeySubject, subject)
}
