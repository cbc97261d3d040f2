package authsvc

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/mkrupp/homecase-authsvc/internal/domain"
	"github.com/mkrupp/homecase-authsvc/internal/infra/logging"
	"github.com/mkrupp/homecase-authsvc/internal/repo/user"
)

// fallbackDummyDigest is a bcrypt digest verified against when the dummy hash
// cannot be computed.
const fallbackDummyDigest = "$2a$10$7EqJtq98hPqEX7fNZaFWoO5rQ8wV6R1x3s8Y2F0a0zC8Yb0Jj6e2K"

// AuthConfig contains configuration parameters for the authentication service.
type AuthConfig struct {
	// SigningSecret is the HS256 token signing secret
	SigningSecret string `env:"SIGNING_SECRET" envDefault:""`
	// SigningSecretFile is a file holding the signing secret, preferred over SigningSecret
	SigningSecretFile string `env:"SIGNING_SECRET_FILE" envDefault:""`

	// TokenDuration is the validity of issued tokens
	TokenDuration time.Duration `env:"TOKEN_DURATION" envDefault:"10m"`
	// TokenIssuer is the "iss" claim of issued tokens
	TokenIssuer string `env:"TOKEN_ISSUER" envDefault:"authsvc"`

	// PasswordAlgorithm is used for new password hashes ("bcrypt" or "argon2id")
	PasswordAlgorithm string `env:"PASSWORD_ALGORITHM" envDefault:"bcrypt"`

	// TOTPIssuer is shown by authenticator apps next to the account
	TOTPIssuer string `env:"TOTP_ISSUER" envDefault:"authsvc"`
	// TOTPSkew is the number of adjacent time steps accepted on each side
	TOTPSkew uint `env:"TOTP_SKEW" envDefault:"1"`
	// TOTPQRSize is the edge length of the enrollment QR code, 0 disables it
	TOTPQRSize int `env:"TOTP_QR_SIZE" envDefault:"200"`
	// TOTPRejectReplay rejects a code whose time step was already used by the user
	TOTPRejectReplay bool `env:"TOTP_REJECT_REPLAY" envDefault:"true"`
	// TOTPReplayCacheSize bounds the number of remembered (user, step) pairs
	TOTPReplayCacheSize int `env:"TOTP_REPLAY_CACHE_SIZE" envDefault:"10000"`
}

// RegistrationResult is returned once per successful registration. The
// provisioning URI is the only time the enrollment artifact leaves the service.
type RegistrationResult struct {
	UserID      string
	MFASetupURI string
	MFASetupQR  string
}

// LoginResult carries the issued token.
type LoginResult struct {
	Token     string
	ExpiresAt time.Time
	Claims    domain.AuthClaims
}

// AuthService provides registration, login and token validation.
type AuthService struct {
	Config    AuthConfig
	UserRepo  user.Repository
	Log       logging.Logger
	Hasher    *PasswordHasher
	TOTP      *TOTPEngine
	Tokens    TokenAuthority
	Replay    *ReplayGuard // nil accepts replayed codes
	Validator *RequestValidator
	Now       func() time.Time

	dummyOnce   sync.Once
	dummyDigest string
}

// NewAuthService creates a new AuthService with the given user repository factory and configuration.
// Returns an error if the signing secret cannot be loaded or a component cannot be created.
func NewAuthService(repoFactory user.RepositoryFactory, cfg AuthConfig) (*AuthService, error) {
	log := logging.GetLogger("svc.authsvc.auth_service")

	secret, err := LoadSigningSecret(cfg)
	if err != nil {
		return nil, fmt.Errorf("load signing secret: %w", err)
	}

	tokens, err := NewTokenIssuer(secret, cfg.TokenIssuer, cfg.TokenDuration)
	if err != nil {
		return nil, fmt.Errorf("new token issuer: %w", err)
	}

	hasher, err := NewPasswordHasher(cfg.PasswordAlgorithm)
	if err != nil {
		return nil, fmt.Errorf("new password hasher: %w", err)
	}

	validator, err := NewRequestValidator()
	if err != nil {
		return nil, fmt.Errorf("new request validator: %w", err)
	}

	var replay *ReplayGuard
	if cfg.TOTPRejectReplay {
		if replay, err = NewReplayGuard(cfg.TOTPReplayCacheSize); err != nil {
			return nil, fmt.Errorf("new replay guard: %w", err)
		}
	}

	userRepo, err := repoFactory()
	if err != nil {
		return nil, fmt.Errorf("new user repo: %w", err)
	}

	return &AuthService{
		Config:    cfg,
		UserRepo:  userRepo,
		Log:       log,
		Hasher:    hasher,
		TOTP:      NewTOTPEngine(cfg.TOTPIssuer, cfg.TOTPSkew, cfg.TOTPQRSize),
		Tokens:    tokens,
		Replay:    replay,
		Validator: validator,
		Now:       time.Now,
	}, nil
}

// Register creates a new account and enrolls it for TOTP.
// Nothing is stored unless every step succeeds.
func (s *AuthService) Register(ctx context.Context, req RegisterRequest) (_ RegistrationResult, err error) {
	req.Email = domain.NormalizeEmail(req.Email)

	log := s.Log.With(logging.Group("user", "email", req.Email, "username", req.Username))

	defer func() {
		switch {
		case err == nil:
			log.DebugContext(ctx, "user registered")
		case domain.IsClientError(err):
			log.WarnContext(ctx, "register user rejected", "error", err)
		default:
			log.ErrorContext(ctx, "register user failed", "error", err)
		}
	}()

	if err := s.Validator.Validate(req); err != nil {
		return RegistrationResult{}, err
	}

	if err := s.Hasher.CheckLength(req.Password); err != nil {
		return RegistrationResult{}, err
	}

	if _, found, err := s.UserRepo.GetUserByEmail(ctx, req.Email); err != nil {
		return RegistrationResult{}, internalError("get user", err)
	} else if found {
		return RegistrationResult{}, domain.ErrUserAlreadyExists
	}

	passwordHash, err := s.Hasher.Hash(req.Password)
	if err != nil {
		return RegistrationResult{}, internalError("hash password", err)
	}

	secret, uri, err := s.TOTP.GenerateSecret(req.Email)
	if err != nil {
		return RegistrationResult{}, internalError("generate mfa secret", err)
	}

	id, err := s.UserRepo.CreateUser(ctx, &domain.User{
		ID:           "",
		Email:        req.Email,
		Username:     req.Username,
		PasswordHash: passwordHash,
		MFASecret:    secret,
		RegisteredAt: s.Now().UTC(),
		LastLoginAt:  nil,
	})
	if err != nil {
		if errors.Is(err, domain.ErrUserAlreadyExists) {
			return RegistrationResult{}, domain.ErrUserAlreadyExists
		}

		return RegistrationResult{}, internalError("create user", err)
	}

	log = log.With("user_id", id)

	qr, err := s.TOTP.QRCode(uri)
	if err != nil {
		log.WarnContext(ctx, "render mfa qr code failed", "error", err)
	}

	return RegistrationResult{UserID: id, MFASetupURI: uri, MFASetupQR: qr}, nil
}

// Login verifies password and TOTP code and issues a bearer token.
// An unknown email and a wrong password produce the same error.
func (s *AuthService) Login(ctx context.Context, req LoginRequest) (_ LoginResult, err error) {
	req.Email = domain.NormalizeEmail(req.Email)

	log := s.Log.With(logging.Group("user", "email", req.Email))

	defer func() {
		switch {
		case err == nil:
			log.DebugContext(ctx, "login successful")
		case domain.IsClientError(err):
			log.WarnContext(ctx, "login rejected", "error", err)
		default:
			log.ErrorContext(ctx, "login failed", "error", err)
		}
	}()

	if err := s.Validator.Validate(req); err != nil {
		return LoginResult{}, err
	}

	usr, found, err := s.UserRepo.GetUserByEmail(ctx, req.Email)
	if err != nil {
		return LoginResult{}, internalError("get user", err)
	} else if !found {
		// same cost as a wrong password
		s.Hasher.Verify(req.Password, s.getDummyDigest())

		return LoginResult{}, domain.ErrInvalidCredentials
	}

	log = log.With("user_id", usr.ID)

	if !s.Hasher.Verify(req.Password, usr.PasswordHash) {
		return LoginResult{}, domain.ErrInvalidCredentials
	}

	now := s.Now()

	step, ok := s.TOTP.VerifyAt(usr.MFASecret, req.Token, now)
	if !ok {
		return LoginResult{}, domain.ErrInvalidMFACode
	}

	if s.Replay != nil && s.Replay.Seen(usr.ID, step) {
		return LoginResult{}, domain.ErrMFACodeReused
	}

	claims := domain.AuthClaims{
		UserID:    usr.ID,
		Email:     usr.Email,
		Username:  usr.Username,
		IssuedAt:  time.Time{},
		ExpiresAt: time.Time{},
	}

	token, issued, err := s.Tokens.Issue(claims)
	if err != nil {
		return LoginResult{}, internalError("issue token", err)
	}

	// the step is only burned once a token exists for it
	if s.Replay != nil && !s.Replay.Consume(usr.ID, step) {
		return LoginResult{}, domain.ErrMFACodeReused
	}

	claims.IssuedAt = issued.IssuedAt.UTC()
	claims.ExpiresAt = issued.ExpiresAt.UTC()

	log = log.With(logging.Group("token", "exp", claims.ExpiresAt.Format(time.RFC3339)))

	if err := s.UserRepo.UpdateLastLogin(ctx, usr.ID, now.UTC()); err != nil {
		log.WarnContext(ctx, "update last login failed", "error", err)
	}

	return LoginResult{Token: token, ExpiresAt: claims.ExpiresAt, Claims: claims}, nil
}

// ValidateToken verifies a bearer token and returns its claims.
func (s *AuthService) ValidateToken(ctx context.Context, token string) (claims domain.AuthClaims, err error) {
	log := s.Log

	defer func() {
		if err != nil {
			log.WarnContext(ctx, "validate token failed", "error", err)
		} else {
			log.DebugContext(ctx, "token validated")
		}
	}()

	claims, err = s.Tokens.Verify(token)
	if err != nil {
		return domain.AuthClaims{}, fmt.Errorf("verify token: %w", err)
	}

	log = log.With(logging.Group("token",
		"sub", claims.UserID,
		"exp", claims.ExpiresAt.Format(time.RFC3339),
		"iat", claims.IssuedAt.Format(time.RFC3339),
	))

	return claims, nil
}

// Close releases resources held by the service, such as database connections.
// Returns an error if cleanup fails.
func (s *AuthService) Close() error {
	if err := s.UserRepo.Close(); err != nil {
		return fmt.Errorf("close user repo: %w", err)
	}

	return nil
}

func (s *AuthService) getDummyDigest() string {
	s.dummyOnce.Do(func() {
		digest, err := s.Hasher.Hash("dummy-password-for-unknown-users")
		if err != nil {
			digest = fallbackDummyDigest
		}

		s.dummyDigest = digest
	})

	return s.dummyDigest
}

func internalError(op string, err error) error {
	if errors.Is(err, domain.ErrInternal) {
		return fmt.Errorf("%s: %w", op, err)
	}

	return fmt.Errorf("%w: %s: %w", domain.ErrInternal, op, err)
}
