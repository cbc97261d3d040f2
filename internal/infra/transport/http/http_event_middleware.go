package http

import (
	"net"
	"net/http"
	"os"
	"runtime"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/mkrupp/homecase-authsvc/internal/domain"
	context_ "github.com/mkrupp/homecase-authsvc/internal/infra/context"
	"github.com/mkrupp/homecase-authsvc/internal/infra/logging"
)

// DefaultOutcome is used for requests whose handler did not name an outcome.
const DefaultOutcome = "http.request"

// EventDispatcher accepts request events without blocking.
type EventDispatcher interface {
	Dispatch(event domain.Event) bool
}

// EventMiddleware creates middleware that hands one event per request to the
// dispatcher once the handler has returned. The event level follows the response
// status unless the handler overrides it through the context annotations.
func EventMiddleware(next http.Handler, dispatcher EventDispatcher, cfg HTTPTransportConfig, log logging.Logger) http.Handler {
	system := map[string]any{
		"goVersion":   runtime.Version(),
		"environment": cfg.Environment,
		"pid":         os.Getpid(),
	}

	//nolint:varnamelen
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		ctx, ann := context_.WithEventAnnotations(r.Context())
		mw := WrapResponseWriter(w)

		next.ServeHTTP(mw, r.WithContext(ctx))

		event := newRequestEvent(r, mw.StatusCode, time.Since(start), ann)
		event.Metadata["system"] = system
		event.Metadata["server"] = cfg.ServerName

		if traceID, ok := context_.TraceIDFromContext(ctx); ok {
			event.Metadata["traceId"] = traceID
		}

		if !dispatcher.Dispatch(event) {
			log.WarnContext(ctx, "event dropped", "outcome", event.Outcome)
		}
	})
}

func newRequestEvent(r *http.Request, status int, elapsed time.Duration, ann *context_.EventAnnotations) domain.Event {
	level := domain.EventLevelForStatus(status)
	if override := ann.Level(); override != "" {
		level = domain.EventLevel(override)
	}

	outcome := ann.Outcome()
	if outcome == "" {
		outcome = DefaultOutcome
	}

	metadata := map[string]any{
		"method":       r.Method,
		"url":          r.URL.RequestURI(),
		"path":         r.URL.Path,
		"query":        queryMetadata(r),
		"statusCode":   status,
		"responseTime": strconv.FormatInt(elapsed.Milliseconds(), 10) + "ms",
		"ip":           remoteIP(r),
		"userAgent":    r.UserAgent(),
		"protocol":     protocol(r),
		"hostname":     hostname(r),
	}

	if err := ann.Err(); err != nil {
		metadata["error"] = eventErrorText(err)
	}

	var id string
	if uid, err := uuid.NewV7(); err == nil {
		id = uid.String()
	}

	return domain.Event{
		ID:        id,
		Level:     level,
		Timestamp: time.Now().UTC(),
		Outcome:   outcome,
		Metadata:  metadata,
	}
}

// eventErrorText keeps caller-caused error text. Anything else is reduced to
// the internal category, the full chain stays in the service log.
func eventErrorText(err error) string {
	if domain.IsClientError(err) {
		return err.Error()
	}

	return domain.ErrInternal.Error()
}

func queryMetadata(r *http.Request) map[string]any {
	query := make(map[string]any)

	for key, values := range r.URL.Query() {
		if len(values) == 1 {
			query[key] = values[0]
		} else {
			query[key] = values
		}
	}

	return query
}

func remoteIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}

	return host
}

func protocol(r *http.Request) string {
	if r.TLS != nil {
		return "https"
	}

	return "http"
}

func hostname(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.Host)
	if err != nil {
		return r.Host
	}

	return host
}
