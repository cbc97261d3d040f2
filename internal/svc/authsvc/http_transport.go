package authsvc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"runtime"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/mkrupp/homecase-authsvc/internal/domain"
	context_ "github.com/mkrupp/homecase-authsvc/internal/infra/context"
	"github.com/mkrupp/homecase-authsvc/internal/infra/logging"
	http_ "github.com/mkrupp/homecase-authsvc/internal/infra/transport/http"
	"github.com/mkrupp/homecase-authsvc/internal/svc/authsvc/authclient"
)

// Response messages. Unknown email and wrong password share MsgInvalidCredentials.
const (
	MsgRegistered         = "user registered"
	MsgLoggedIn           = "login successful"
	MsgTokenValid         = "token valid"
	MsgMissingFields      = "all fields are required"
	MsgInvalidEmail       = "invalid email"
	MsgPasswordTooLong    = "password too long"
	MsgUserExists         = "user already exists"
	MsgInvalidCredentials = "invalid credentials"
	MsgInvalidMFACode     = "invalid mfa code"
	MsgInvalidToken       = "invalid token"
	MsgNoToken            = "no token"
	MsgInvalidBody        = "invalid request body"
	MsgNoLogs             = "no logs available"
	MsgLogsNotSupported   = "log listing not supported"
	MsgInternal           = "internal error"
	MsgNotFound           = "not found"
	MsgMethodNotAllowed   = "method not allowed"
)

const maxLogsLimit = 1000

// HTTPTransportConfig contains configuration parameters for the HTTP transport layer.
type HTTPTransportConfig struct {
	http_.HTTPTransportConfig

	// LogsRequireAuth protects GET /api/logs with a bearer token
	LogsRequireAuth bool `env:"LOGS_REQUIRE_AUTH" envDefault:"false"`
	// LogsDefaultLimit is used when no valid limit query parameter is given
	LogsDefaultLimit int `env:"LOGS_DEFAULT_LIMIT" envDefault:"100"`
	// MaxBodyBytes bounds the size of JSON request bodies
	MaxBodyBytes int64 `env:"MAX_BODY_BYTES" envDefault:"1048576"`
}

// EventLister lists recorded request events, newest first.
type EventLister interface {
	List(ctx context.Context, limit int) ([]domain.Event, error)
}

// RegisterResponse is the body of a successful registration.
type RegisterResponse struct {
	Status      int    `json:"status"`
	Message     string `json:"message"`
	MFASetupURI string `json:"mfaSetupURI"`
	MFASetupQR  string `json:"mfaSetupQR,omitempty"`
}

// LoginResponse is the body of a successful login.
type LoginResponse struct {
	Status    int       `json:"status"`
	Message   string    `json:"message"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// ValidateResponse is the body of a successful token validation.
type ValidateResponse struct {
	Status  int               `json:"status"`
	Message string            `json:"message"`
	Claims  domain.AuthClaims `json:"claims"`
}

// LogsResponse is the body of GET /api/logs.
type LogsResponse struct {
	Logs []domain.Event `json:"logs"`
}

// InfoResponse is the body of GET /api/info.
type InfoResponse struct {
	Service     string    `json:"service"`
	Environment string    `json:"environment"`
	GoVersion   string    `json:"goVersion"`
	PID         int       `json:"pid"`
	StartedAt   time.Time `json:"startedAt"`
	Uptime      string    `json:"uptime"`
}

// HTTPTransport handles HTTP requests for the authentication service.
// It provides endpoints for registration, login, token validation, event listing and service info.
type HTTPTransport struct {
	authSvc   *AuthService
	events    EventLister
	log       logging.Logger
	cfg       HTTPTransportConfig
	router    chi.Router
	startedAt time.Time
}

var _ http_.HTTPTransport = (*HTTPTransport)(nil)

// NewHTTPTransport creates a new HTTPTransport instance with the given configuration.
// events may be nil, in which case GET /api/logs answers 501.
func NewHTTPTransport(
	authSvc *AuthService,
	events EventLister,
	cfg HTTPTransportConfig,
) *HTTPTransport {
	ht := &HTTPTransport{
		authSvc:   authSvc,
		events:    events,
		log:       logging.GetLogger("svc.authsvc.http_transport"),
		cfg:       cfg,
		router:    nil,
		startedAt: time.Now(),
	}

	ht.router = ht.routes()

	return ht
}

// routes sets up the auth service endpoints:
// - POST /api/register: Register a new user
// - POST /api/login: Login and get an auth token
// - POST /api/validate: Validate an auth token
// - GET /api/logs: List recorded request events
// - GET /api/info: Service information.
func (ht *HTTPTransport) routes() chi.Router {
	router := chi.NewRouter()

	router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		http_.WriteError(w, r, http.StatusNotFound, MsgNotFound)
	})
	router.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		http_.WriteError(w, r, http.StatusMethodNotAllowed, MsgMethodNotAllowed)
	})

	router.Route("/api", func(r chi.Router) {
		r.Post("/register", ht.HandleRegister)
		r.Post("/login", ht.HandleLogin)
		r.Post("/validate", ht.HandleValidate)
		r.Get("/info", ht.HandleInfo)
		r.Get("/getInfo", ht.HandleInfo)

		r.Group(func(r chi.Router) {
			if ht.cfg.LogsRequireAuth {
				client := authclient.NewLocalClient(ht.authSvc)

				r.Use(func(next http.Handler) http.Handler {
					return http_.AuthorizingMiddleware(next, client, ht.log)
				})
			}

			r.Get("/logs", ht.HandleLogs)
		})
	})

	return router
}

// ServeHTTP implements http.Handler.
func (ht *HTTPTransport) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ht.router.ServeHTTP(w, r)
}

// HandleRegister processes user registration requests.
// Expects a JSON body: email, username, password.
func (ht *HTTPTransport) HandleRegister(w http.ResponseWriter, r *http.Request) {
	_ = ht.handleRegister(w, r)
}

func (ht *HTTPTransport) handleRegister(w http.ResponseWriter, r *http.Request) (err error) {
	ctx := r.Context()
	log := ht.log.With(logging.Group("http", "method", r.Method, "url", r.URL.String()))

	defer func() {
		context_.AnnotateOutcome(ctx, registerOutcome(err))

		if err != nil {
			context_.AnnotateError(ctx, err)
			log.DebugContext(ctx, "register request failed", "error", err)
		}
	}()

	var req RegisterRequest
	if err := ht.decode(w, r, &req); err != nil {
		return err
	}

	res, err := ht.authSvc.Register(ctx, req)
	if err != nil {
		ht.writeServiceError(w, r, err)

		return fmt.Errorf("register user: %w", err)
	}

	resp := RegisterResponse{
		Status:      http.StatusCreated,
		Message:     MsgRegistered,
		MFASetupURI: res.MFASetupURI,
		MFASetupQR:  res.MFASetupQR,
	}

	if err := http_.WriteJSON(w, http.StatusCreated, resp); err != nil {
		return fmt.Errorf("write response: %w", err)
	}

	return nil
}

// HandleLogin processes user login requests.
// Expects a JSON body: email, password, token.
// Returns an auth token on successful login.
func (ht *HTTPTransport) HandleLogin(w http.ResponseWriter, r *http.Request) {
	_ = ht.handleLogin(w, r)
}

func (ht *HTTPTransport) handleLogin(w http.ResponseWriter, r *http.Request) (err error) {
	ctx := r.Context()
	log := ht.log.With(logging.Group("http", "method", r.Method, "url", r.URL.String()))

	defer func() {
		context_.AnnotateOutcome(ctx, loginOutcome(err))

		if errors.Is(err, domain.ErrMFACodeReused) {
			context_.AnnotateLevel(ctx, string(domain.EventLevelCritical))
		}

		if err != nil {
			context_.AnnotateError(ctx, err)
			log.DebugContext(ctx, "login request failed", "error", err)
		}
	}()

	var req LoginRequest
	if err := ht.decode(w, r, &req); err != nil {
		return err
	}

	res, err := ht.authSvc.Login(ctx, req)
	if err != nil {
		ht.writeServiceError(w, r, err)

		return fmt.Errorf("login user: %w", err)
	}

	resp := LoginResponse{
		Status:    http.StatusOK,
		Message:   MsgLoggedIn,
		Token:     res.Token,
		ExpiresAt: res.ExpiresAt,
	}

	if err := http_.WriteJSON(w, http.StatusOK, resp); err != nil {
		return fmt.Errorf("write response: %w", err)
	}

	return nil
}

// HandleValidate processes token validation requests.
// Expects the token in the Authorization header with Bearer scheme.
// Returns the claims carried by the token if valid.
func (ht *HTTPTransport) HandleValidate(w http.ResponseWriter, r *http.Request) {
	_ = ht.handleValidate(w, r)
}

func (ht *HTTPTransport) handleValidate(w http.ResponseWriter, r *http.Request) (err error) {
	ctx := r.Context()

	defer func() {
		context_.AnnotateOutcome(ctx, tokenOutcome(err))

		if err != nil {
			context_.AnnotateError(ctx, err)
		}
	}()

	claims, err := ht.authSvc.ValidateToken(ctx, http_.BearerToken(r))
	if err != nil {
		ht.writeServiceError(w, r, err)

		return fmt.Errorf("validate token: %w", err)
	}

	resp := ValidateResponse{Status: http.StatusOK, Message: MsgTokenValid, Claims: claims}

	if err := http_.WriteJSON(w, http.StatusOK, resp); err != nil {
		return fmt.Errorf("write response: %w", err)
	}

	return nil
}

// HandleLogs lists recorded request events. The optional limit query parameter
// bounds the result.
func (ht *HTTPTransport) HandleLogs(w http.ResponseWriter, r *http.Request) {
	_ = ht.handleLogs(w, r)
}

func (ht *HTTPTransport) handleLogs(w http.ResponseWriter, r *http.Request) (err error) {
	ctx := r.Context()
	log := ht.log.With(logging.Group("http", "method", r.Method, "url", r.URL.String()))

	context_.AnnotateOutcome(ctx, "logs.list")

	defer func() {
		if err != nil {
			context_.AnnotateError(ctx, err)
			log.ErrorContext(ctx, "list logs failed", "error", err)
		}
	}()

	if ht.events == nil {
		http_.WriteError(w, r, http.StatusNotImplemented, MsgLogsNotSupported)

		return nil
	}

	logs, err := ht.events.List(ctx, ht.logsLimit(r))
	if err != nil {
		if errors.Is(err, domain.ErrListNotSupported) {
			http_.WriteError(w, r, http.StatusNotImplemented, MsgLogsNotSupported)

			return nil
		}

		http_.WriteError(w, r, http.StatusInternalServerError, MsgInternal)

		return fmt.Errorf("list events: %w", err)
	}

	if len(logs) == 0 {
		http_.WriteError(w, r, http.StatusNotFound, MsgNoLogs)

		return nil
	}

	if err := http_.WriteJSON(w, http.StatusOK, LogsResponse{Logs: logs}); err != nil {
		return fmt.Errorf("write response: %w", err)
	}

	return nil
}

// HandleInfo reports service and runtime information.
func (ht *HTTPTransport) HandleInfo(w http.ResponseWriter, r *http.Request) {
	context_.AnnotateOutcome(r.Context(), "info")

	_ = http_.WriteJSON(w, http.StatusOK, InfoResponse{
		Service:     ht.cfg.ServerName,
		Environment: ht.cfg.Environment,
		GoVersion:   runtime.Version(),
		PID:         os.Getpid(),
		StartedAt:   ht.startedAt.UTC(),
		Uptime:      time.Since(ht.startedAt).Round(time.Second).String(),
	})
}

func (ht *HTTPTransport) logsLimit(r *http.Request) int {
	limit, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || limit <= 0 {
		limit = ht.cfg.LogsDefaultLimit
	}

	return min(limit, maxLogsLimit)
}

func (ht *HTTPTransport) decode(w http.ResponseWriter, r *http.Request, v any) error {
	body := r.Body
	if ht.cfg.MaxBodyBytes > 0 {
		body = http.MaxBytesReader(w, r.Body, ht.cfg.MaxBodyBytes)
	}

	if err := json.NewDecoder(body).Decode(v); err != nil {
		http_.WriteError(w, r, http.StatusBadRequest, MsgInvalidBody)

		return fmt.Errorf("%w: decode body: %w", domain.ErrValidation, err)
	}

	return nil
}

// writeServiceError maps an error category to its status code and generic message.
func (ht *HTTPTransport) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *domain.ValidationError

	switch {
	case errors.As(err, &verr):
		msg := MsgMissingFields

		switch {
		case errors.Is(verr, domain.ErrInvalidEmail):
			msg = MsgInvalidEmail
		case errors.Is(verr, domain.ErrPasswordTooLong):
			msg = MsgPasswordTooLong
		}

		_ = http_.WriteJSON(w, http.StatusBadRequest, http_.ErrorResponse{
			Status:        http.StatusBadRequest,
			Message:       msg,
			Errors:        verr.Fields,
			CorrelationID: "",
		})
	case errors.Is(err, domain.ErrNoAuthToken):
		http_.WriteError(w, r, http.StatusBadRequest, MsgNoToken)
	case errors.Is(err, domain.ErrConflict):
		http_.WriteError(w, r, http.StatusBadRequest, MsgUserExists)
	case errors.Is(err, domain.ErrInvalidCredentials):
		http_.WriteError(w, r, http.StatusUnauthorized, MsgInvalidCredentials)
	case errors.Is(err, domain.ErrInvalidMFACode):
		http_.WriteError(w, r, http.StatusUnauthorized, MsgInvalidMFACode)
	case errors.Is(err, domain.ErrInvalidAuthToken):
		http_.WriteError(w, r, http.StatusUnauthorized, MsgInvalidToken)
	case errors.Is(err, domain.ErrValidation):
		http_.WriteError(w, r, http.StatusBadRequest, MsgInvalidBody)
	case errors.Is(err, domain.ErrAuthentication):
		http_.WriteError(w, r, http.StatusUnauthorized, MsgInvalidCredentials)
	default:
		http_.WriteError(w, r, http.StatusInternalServerError, MsgInternal)
	}
}

func registerOutcome(err error) string {
	switch {
	case err == nil:
		return "register.success"
	case errors.Is(err, domain.ErrMissingFields):
		return "register.missing_fields"
	case errors.Is(err, domain.ErrInvalidEmail):
		return "register.invalid_email"
	case errors.Is(err, domain.ErrPasswordTooLong):
		return "register.password_too_long"
	case errors.Is(err, domain.ErrConflict):
		return "register.user_exists"
	case errors.Is(err, domain.ErrValidation):
		return "register.invalid_body"
	default:
		return "register.internal_error"
	}
}

func loginOutcome(err error) string {
	switch {
	case err == nil:
		return "login.success"
	case errors.Is(err, domain.ErrMissingFields):
		return "login.missing_fields"
	case errors.Is(err, domain.ErrInvalidCredentials):
		return "login.invalid_credentials"
	case errors.Is(err, domain.ErrMFACodeReused):
		return "login.replayed_mfa"
	case errors.Is(err, domain.ErrInvalidMFACode):
		return "login.invalid_mfa"
	case errors.Is(err, domain.ErrValidation):
		return "login.invalid_body"
	default:
		return "login.internal_error"
	}
}

func tokenOutcome(err error) string {
	switch {
	case err == nil:
		return "token.valid"
	case errors.Is(err, domain.ErrNoAuthToken):
		return "token.missing"
	case errors.Is(err, domain.ErrExpiredToken):
		return "token.expired"
	default:
		return "token.invalid"
	}
}
