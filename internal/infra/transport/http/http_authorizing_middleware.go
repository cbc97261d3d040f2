package http

import (
	"net/http"
	"strings"

	context_ "github.com/mkrupp/homecase-authsvc/internal/infra/context"
	"github.com/mkrupp/homecase-authsvc/internal/infra/logging"
	"github.com/mkrupp/homecase-authsvc/internal/svc/authsvc/authclient"
)

// AuthorizingMiddleware creates middleware that validates bearer tokens.
// Requests without a valid token in the Authorization header are rejected.
// On successful validation, the token subject is added to the request context.
func AuthorizingMiddleware(
	next http.Handler,
	authClient authclient.AuthClient,
	log logging.Logger,
) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := BearerToken(r)
		if token == "" {
			log.WarnContext(r.Context(), "no token provided")
			WriteError(w, r, http.StatusBadRequest, "authorization token required")

			return
		}

		claims, ok, err := authClient.Validate(r.Context(), token)
		if err != nil {
			log.ErrorContext(r.Context(), "validate token failed", "error", err)
			WriteError(w, r, http.StatusUnauthorized, "invalid token")

			return
		} else if !ok {
			log.WarnContext(r.Context(), "invalid token")
			WriteError(w, r, http.StatusUnauthorized, "invalid token")

			return
		}

		next.ServeHTTP(w, r.WithContext(context_.WithSubject(r.Context(), claims.UserID)))
	})
}

// BearerToken extracts the token from an "Authorization: Bearer <token>" header.
// A bare token without scheme is accepted as well.
func BearerToken(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))

	scheme, token, ok := strings.Cut(header, " ")
	if ok && strings.EqualFold(scheme, "Bearer") {
		return strings.TrimSpace(token)
	}

	return header
}
