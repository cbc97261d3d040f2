package http

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"

	context_ "github.com/mkrupp/homecase-authsvc/internal/infra/context"
	"github.com/mkrupp/homecase-authsvc/internal/infra/logging"
)

// RescueingMiddleware creates middleware that recovers from panics in HTTP handlers.
// It logs the panic and stack trace, then returns a 500 Internal Server Error to the client.
func RescueingMiddleware(next http.Handler, log logging.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mw := WrapResponseWriter(w)

		defer func(ctx context.Context) {
			if p := recover(); p != nil {
				log.ErrorContext(ctx, "request panic", slog.Group("http",
					"uri", r.RequestURI,
					"method", r.Method,
				), slog.Group("error",
					"panic", p,
					"stack", string(debug.Stack()),
				))

				context_.AnnotateError(ctx, fmt.Errorf("panic: %v", p))

				if !mw.WroteHeader() {
					WriteError(mw, r, http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError))
				}
			}
		}(r.Context())

		next.ServeHTTP(mw, r)
	})
}
