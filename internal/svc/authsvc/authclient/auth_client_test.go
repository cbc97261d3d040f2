package authclient_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mkrupp/homecase-authsvc/internal/domain"
	context_ "github.com/mkrupp/homecase-authsvc/internal/infra/context"
	"github.com/mkrupp/homecase-authsvc/internal/svc/authsvc/authclient"
)

var errUnavailable = errors.New("unavailable")

type stubValidator struct {
	claims domain.AuthClaims
	err    error
}

func (v stubValidator) ValidateToken(context.Context, string) (domain.AuthClaims, error) {
	return v.claims, v.err
}

func claims() domain.AuthClaims {
	//nolint:exhaustruct
	return domain.AuthClaims{UserID: "user-1", Email: "a@b.com", Username: "u"}
}

func TestLocalClient_Validate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		validator stubValidator
		wantOK    bool
		wantErr   error
	}{
		{name: "valid", validator: stubValidator{claims: claims()}, wantOK: true},
		{name: "expired", validator: stubValidator{err: fmt.Errorf("verify: %w", domain.ErrExpiredToken)}},
		{name: "missing", validator: stubValidator{err: domain.ErrNoAuthToken}},
		{name: "internal", validator: stubValidator{err: errUnavailable}, wantErr: errUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, ok, err := authclient.NewLocalClient(tt.validator).Validate(context.Background(), "token")
			require.ErrorIs(t, err, tt.wantErr)
			assert.Equal(t, tt.wantOK, ok)

			if tt.wantOK {
				assert.Equal(t, claims(), got)
			}
		})
	}
}

func TestHTTPClient_Validate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		status   int
		body     any
		wantOK   bool
		wantErr  error
		anyError bool
	}{
		{
			name:   "valid token",
			status: http.StatusOK,
			body:   map[string]any{"status": 200, "message": "token valid", "claims": claims()},
			wantOK: true,
		},
		{name: "invalid token", status: http.StatusUnauthorized, body: map[string]any{"status": 401}},
		{name: "missing token", status: http.StatusBadRequest, body: map[string]any{"status": 400}},
		{name: "server error", status: http.StatusInternalServerError, wantErr: domain.ErrInternal},
		{name: "broken body", status: http.StatusOK, body: "{", anyError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			headers := make(chan http.Header, 1)

			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, http.MethodPost, r.Method)

				headers <- r.Header.Clone()

				w.WriteHeader(tt.status)

				switch b := tt.body.(type) {
				case nil:
				case string:
					_, _ = w.Write([]byte(b))
				default:
					_ = json.NewEncoder(w).Encode(b)
				}
			}))
			t.Cleanup(srv.Close)

			client := authclient.NewHTTPClient(authclient.HTTPClientConfig{AuthURL: srv.URL}, nil)
			ctx := context_.WithTraceID(context.Background(), "trace-1")

			got, ok, err := client.Validate(ctx, "tok")

			hdr := <-headers
			assert.Equal(t, "Bearer tok", hdr.Get(authclient.AuthorizationHeader))
			assert.Equal(t, "trace-1", hdr.Get(authclient.TraceIDHeader))
			assert.Equal(t, tt.wantOK, ok)

			switch {
			case tt.anyError:
				require.Error(t, err)
			case tt.wantErr != nil:
				require.ErrorIs(t, err, tt.wantErr)
			default:
				require.NoError(t, err)
			}

			if tt.wantOK {
				assert.Equal(t, claims(), got)
			}
		})
	}

	t.Run("unreachable", func(t *testing.T) {
		t.Parallel()

		srv := httptest.NewServer(http.NotFoundHandler())
		url := srv.URL
		srv.Close()

		_, ok, err := authclient.NewHTTPClient(authclient.HTTPClientConfig{AuthURL: url}, nil).
			Validate(context.Background(), "tok")
		require.Error(t, err)
		assert.False(t, ok)
	})
}
