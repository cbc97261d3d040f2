package authclient

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/mkrupp/homecase-authsvc/internal/domain"
	context_ "github.com/mkrupp/homecase-authsvc/internal/infra/context"
	"github.com/mkrupp/homecase-authsvc/internal/infra/logging"
)

const (
	TraceIDHeader       = "X-Request-ID"
	AuthorizationHeader = "Authorization"
)

type validateResponse struct {
	Claims domain.AuthClaims `json:"claims"`
}

// HTTPClientConfig holds configuration for the HTTP auth client.
type HTTPClientConfig struct {
	// AuthURL is the endpoint for token validation requests
	AuthURL string `env:"AUTH_URL" envDefault:"http://localhost:5001/api/validate"`
}

// HTTPClient implements AuthClient using HTTP requests to validate tokens.
type HTTPClient struct {
	httpClient *http.Client
	log        logging.Logger
	cfg        HTTPClientConfig
}

var _ AuthClient = (*HTTPClient)(nil)

// NewHTTPClient creates a new HTTPClient with the given configuration.
// If httpClient is nil, http.DefaultClient will be used.
func NewHTTPClient(
	cfg HTTPClientConfig,
	httpClient *http.Client,
) *HTTPClient {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	return &HTTPClient{
		httpClient: httpClient,
		log:        logging.GetLogger("svc.authsvc.authclient.http_client"),
		cfg:        cfg,
	}
}

// Validate implements AuthClient.Validate by making an HTTP request to the configured
// auth service endpoint. The token is sent as a bearer token.
func (ht *HTTPClient) Validate(ctx context.Context, token string) (domain.AuthClaims, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, ht.cfg.AuthURL, nil)
	if err != nil {
		return domain.AuthClaims{}, false, fmt.Errorf("new request: %w", err)
	}

	req.Header.Set(AuthorizationHeader, "Bearer "+token)

	if traceID, ok := context_.TraceIDFromContext(ctx); ok {
		req.Header.Set(TraceIDHeader, traceID)
	}

	resp, err := ht.httpClient.Do(req)
	if err != nil {
		return domain.AuthClaims{}, false, fmt.Errorf("post: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode < http.StatusInternalServerError:
		ht.log.DebugContext(ctx, "token rejected", "status", resp.StatusCode)

		return domain.AuthClaims{}, false, nil
	default:
		return domain.AuthClaims{}, false, fmt.Errorf("%w: validate returned %d", domain.ErrInternal, resp.StatusCode)
	}

	var body validateResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return domain.AuthClaims{}, false, fmt.Errorf("decode claims: %w", err)
	}

	return body.Claims, true, nil
}
