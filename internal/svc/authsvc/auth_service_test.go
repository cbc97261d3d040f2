package authsvc_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mkrupp/homecase-authsvc/internal/domain"
	"github.com/mkrupp/homecase-authsvc/internal/repo/user"
	"github.com/mkrupp/homecase-authsvc/internal/svc/authsvc"
)

var errRepo = errors.New("repository error")

const (
	testEmail    = "a@b.com"
	testUsername = "u"
	testPassword = "Passw0rd!"
)

// failingUserRepository wraps a repository and fails the selected operations.
type failingUserRepository struct {
	user.Repository

	mu        sync.Mutex
	getErr    error
	createErr error
	updateErr error
}

func (r *failingUserRepository) GetUserByEmail(ctx context.Context, email string) (*domain.User, bool, error) {
	r.mu.Lock()
	err := r.getErr
	r.mu.Unlock()

	if err != nil {
		return nil, false, err
	}

	return r.Repository.GetUserByEmail(ctx, email) //nolint:wrapcheck
}

func (r *failingUserRepository) CreateUser(ctx context.Context, usr *domain.User) (string, error) {
	r.mu.Lock()
	err := r.createErr
	r.mu.Unlock()

	if err != nil {
		return "", err
	}

	return r.Repository.CreateUser(ctx, usr) //nolint:wrapcheck
}

func (r *failingUserRepository) UpdateLastLogin(ctx context.Context, id string, at time.Time) error {
	r.mu.Lock()
	err := r.updateErr
	r.mu.Unlock()

	if err != nil {
		return err
	}

	return r.Repository.UpdateLastLogin(ctx, id, at) //nolint:wrapcheck
}

type failingTokenAuthority struct {
	authsvc.TokenAuthority
}

func (failingTokenAuthority) Issue(domain.AuthClaims) (string, domain.AuthClaims, error) {
	return "", domain.AuthClaims{}, fmt.Errorf("%w: sign token: key unavailable", domain.ErrInternal)
}

func testAuthConfig() authsvc.AuthConfig {
	return authsvc.AuthConfig{
		SigningSecret:       strings.Repeat("k", authsvc.MinSigningSecretLength),
		SigningSecretFile:   "",
		TokenDuration:       10 * time.Minute,
		TokenIssuer:         "authsvc-test",
		PasswordAlgorithm:   authsvc.AlgorithmBcrypt,
		TOTPIssuer:          "authsvc-test",
		TOTPSkew:            1,
		TOTPQRSize:          0,
		TOTPRejectReplay:    true,
		TOTPReplayCacheSize: 100,
	}
}

func setupTestService(t *testing.T, mutate ...func(*authsvc.AuthConfig)) (*authsvc.AuthService, *failingUserRepository) {
	t.Helper()

	cfg := testAuthConfig()
	for _, fn := range mutate {
		fn(&cfg)
	}

	repo := &failingUserRepository{Repository: user.NewMemoryUserRepository()} //nolint:exhaustruct

	svc, err := authsvc.NewAuthService(func() (user.Repository, error) { return repo, nil }, cfg)
	require.NoError(t, err)

	t.Cleanup(func() { _ = svc.Close() })

	return svc, repo
}

// register creates the test user and returns its TOTP secret.
func register(t *testing.T, svc *authsvc.AuthService, email string) string {
	t.Helper()

	res, err := svc.Register(context.Background(), authsvc.RegisterRequest{
		Email:    email,
		Username: testUsername,
		Password: testPassword,
	})
	require.NoError(t, err)

	key, err := otp.NewKeyFromURL(res.MFASetupURI)
	require.NoError(t, err)

	return key.Secret()
}

func currentCode(t *testing.T, secret string) string {
	t.Helper()

	code, err := totp.GenerateCode(secret, time.Now())
	require.NoError(t, err)

	return code
}

func TestNewAuthService(t *testing.T) {
	t.Parallel()

	factory := func() (user.Repository, error) { return user.NewMemoryUserRepository(), nil }

	tests := []struct {
		name    string
		mutate  func(*authsvc.AuthConfig)
		wantErr error
	}{
		{
			name:    "missing signing secret",
			mutate:  func(c *authsvc.AuthConfig) { c.SigningSecret = "" },
			wantErr: authsvc.ErrNoSigningSecret,
		},
		{
			name:    "weak signing secret",
			mutate:  func(c *authsvc.AuthConfig) { c.SigningSecret = "short" },
			wantErr: authsvc.ErrWeakSigningSecret,
		},
		{
			name:    "unknown password algorithm",
			mutate:  func(c *authsvc.AuthConfig) { c.PasswordAlgorithm = "md5" },
			wantErr: authsvc.ErrUnknownPasswordAlgorithm,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := testAuthConfig()
			tt.mutate(&cfg)

			_, err := authsvc.NewAuthService(factory, cfg)
			require.ErrorIs(t, err, tt.wantErr)
		})
	}

	t.Run("repository factory error", func(t *testing.T) {
		t.Parallel()

		_, err := authsvc.NewAuthService(func() (user.Repository, error) { return nil, errRepo }, testAuthConfig())
		require.ErrorIs(t, err, errRepo)
	})

	t.Run("replay guard disabled", func(t *testing.T) {
		t.Parallel()

		cfg := testAuthConfig()
		cfg.TOTPRejectReplay = false

		svc, err := authsvc.NewAuthService(factory, cfg)
		require.NoError(t, err)
		assert.Nil(t, svc.Replay)
	})
}

func TestAuthService_Register(t *testing.T) {
	t.Parallel()

	t.Run("successful registration", func(t *testing.T) {
		t.Parallel()

		svc, repo := setupTestService(t)

		res, err := svc.Register(context.Background(), authsvc.RegisterRequest{
			Email:    "  A@B.com ",
			Username: testUsername,
			Password: testPassword,
		})
		require.NoError(t, err)

		assert.True(t, strings.HasPrefix(res.MFASetupURI, "otpauth://totp/"))
		assert.Empty(t, res.MFASetupQR)

		stored, found, err := repo.GetUserByEmail(context.Background(), testEmail)
		require.NoError(t, err)
		require.True(t, found)

		assert.Equal(t, res.UserID, stored.ID)
		assert.Equal(t, testUsername, stored.Username)
		assert.NotEqual(t, testPassword, stored.PasswordHash)
		assert.True(t, svc.Hasher.Verify(testPassword, stored.PasswordHash))
		assert.NotEmpty(t, stored.MFASecret)
		assert.Nil(t, stored.LastLoginAt)

		key, err := otp.NewKeyFromURL(res.MFASetupURI)
		require.NoError(t, err)
		assert.Equal(t, stored.MFASecret, key.Secret())
		assert.Equal(t, "authsvc-test", key.Issuer())
	})

	t.Run("qr code is returned when enabled", func(t *testing.T) {
		t.Parallel()

		svc, _ := setupTestService(t, func(c *authsvc.AuthConfig) { c.TOTPQRSize = 64 })

		res, err := svc.Register(context.Background(), authsvc.RegisterRequest{
			Email:    testEmail,
			Username: testUsername,
			Password: testPassword,
		})
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(res.MFASetupQR, "data:image/png;base64,"))
	})

	t.Run("duplicate email", func(t *testing.T) {
		t.Parallel()

		svc, _ := setupTestService(t)
		register(t, svc, testEmail)

		_, err := svc.Register(context.Background(), authsvc.RegisterRequest{
			Email:    "A@b.COM",
			Username: "other",
			Password: "another",
		})
		require.ErrorIs(t, err, domain.ErrUserAlreadyExists)
		require.ErrorIs(t, err, domain.ErrConflict)
	})

	t.Run("concurrent duplicates store one user", func(t *testing.T) {
		t.Parallel()

		svc, _ := setupTestService(t)

		const n = 4

		var (
			wg        sync.WaitGroup
			mu        sync.Mutex
			successes int
			conflicts int
		)

		for range n {
			wg.Add(1)

			go func() {
				defer wg.Done()

				_, err := svc.Register(context.Background(), authsvc.RegisterRequest{
					Email:    testEmail,
					Username: testUsername,
					Password: testPassword,
				})

				mu.Lock()
				defer mu.Unlock()

				switch {
				case err == nil:
					successes++
				case errors.Is(err, domain.ErrUserAlreadyExists):
					conflicts++
				}
			}()
		}

		wg.Wait()

		assert.Equal(t, 1, successes)
		assert.Equal(t, n-1, conflicts)
	})

	validationTests := []struct {
		name    string
		req     authsvc.RegisterRequest
		wantErr error
		field   string
	}{
		{
			name:    "missing email",
			req:     authsvc.RegisterRequest{Email: "", Username: testUsername, Password: testPassword},
			wantErr: domain.ErrMissingFields,
			field:   "email",
		},
		{
			name:    "whitespace email",
			req:     authsvc.RegisterRequest{Email: "   ", Username: testUsername, Password: testPassword},
			wantErr: domain.ErrMissingFields,
			field:   "email",
		},
		{
			name:    "missing username",
			req:     authsvc.RegisterRequest{Email: testEmail, Username: "", Password: testPassword},
			wantErr: domain.ErrMissingFields,
			field:   "username",
		},
		{
			name:    "missing password",
			req:     authsvc.RegisterRequest{Email: testEmail, Username: testUsername, Password: ""},
			wantErr: domain.ErrMissingFields,
			field:   "password",
		},
		{
			name:    "invalid email",
			req:     authsvc.RegisterRequest{Email: "not-an-email", Username: testUsername, Password: testPassword},
			wantErr: domain.ErrInvalidEmail,
			field:   "email",
		},
		{
			name:    "email without tld",
			req:     authsvc.RegisterRequest{Email: "a@b", Username: testUsername, Password: testPassword},
			wantErr: domain.ErrInvalidEmail,
			field:   "email",
		},
		{
			name:    "password too long",
			req:     authsvc.RegisterRequest{Email: testEmail, Username: testUsername, Password: strings.Repeat("p", 73)},
			wantErr: domain.ErrPasswordTooLong,
			field:   "password",
		},
	}

	for _, tt := range validationTests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			svc, repo := setupTestService(t)

			_, err := svc.Register(context.Background(), tt.req)
			require.ErrorIs(t, err, tt.wantErr)
			require.ErrorIs(t, err, domain.ErrValidation)

			var verr *domain.ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Contains(t, verr.Fields, tt.field)

			_, found, err := repo.GetUserByEmail(context.Background(), domain.NormalizeEmail(tt.req.Email))
			require.NoError(t, err)
			assert.False(t, found)
		})
	}

	t.Run("long password accepted with argon2id", func(t *testing.T) {
		t.Parallel()

		svc, _ := setupTestService(t, func(c *authsvc.AuthConfig) { c.PasswordAlgorithm = authsvc.AlgorithmArgon2id })

		_, err := svc.Register(context.Background(), authsvc.RegisterRequest{
			Email:    testEmail,
			Username: testUsername,
			Password: strings.Repeat("p", 100),
		})
		require.NoError(t, err)
	})

	repoErrTests := []struct {
		name   string
		mutate func(*failingUserRepository)
	}{
		{name: "lookup fails", mutate: func(r *failingUserRepository) { r.getErr = errRepo }},
		{name: "insert fails", mutate: func(r *failingUserRepository) { r.createErr = errRepo }},
	}

	for _, tt := range repoErrTests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			svc, repo := setupTestService(t)
			tt.mutate(repo)

			_, err := svc.Register(context.Background(), authsvc.RegisterRequest{
				Email:    testEmail,
				Username: testUsername,
				Password: testPassword,
			})
			require.ErrorIs(t, err, domain.ErrInternal)
			require.ErrorIs(t, err, errRepo)
			assert.False(t, domain.IsClientError(err))
		})
	}

	t.Run("store conflict is not internal", func(t *testing.T) {
		t.Parallel()

		svc, repo := setupTestService(t)
		repo.createErr = errors.Join(domain.ErrUserAlreadyExists, errRepo)

		_, err := svc.Register(context.Background(), authsvc.RegisterRequest{
			Email:    testEmail,
			Username: testUsername,
			Password: testPassword,
		})
		require.ErrorIs(t, err, domain.ErrUserAlreadyExists)
		assert.NotErrorIs(t, err, domain.ErrInternal)
	})
}

func TestAuthService_Login(t *testing.T) {
	t.Parallel()

	t.Run("successful login", func(t *testing.T) {
		t.Parallel()

		svc, repo := setupTestService(t)
		secret := register(t, svc, testEmail)

		before := time.Now()

		res, err := svc.Login(context.Background(), authsvc.LoginRequest{
			Email:    " A@B.COM",
			Password: testPassword,
			Token:    currentCode(t, secret),
		})
		require.NoError(t, err)
		require.NotEmpty(t, res.Token)

		assert.WithinDuration(t, before.Add(10*time.Minute), res.ExpiresAt, 5*time.Second)
		assert.Equal(t, testEmail, res.Claims.Email)
		assert.Equal(t, testUsername, res.Claims.Username)

		claims, err := svc.ValidateToken(context.Background(), res.Token)
		require.NoError(t, err)
		assert.Equal(t, res.Claims.UserID, claims.UserID)
		assert.Equal(t, testEmail, claims.Email)

		stored, _, err := repo.GetUserByEmail(context.Background(), testEmail)
		require.NoError(t, err)
		require.NotNil(t, stored.LastLoginAt)
		assert.WithinDuration(t, time.Now(), *stored.LastLoginAt, 5*time.Second)
	})

	t.Run("wrong password and unknown email are indistinguishable", func(t *testing.T) {
		t.Parallel()

		svc, _ := setupTestService(t)
		secret := register(t, svc, testEmail)

		_, errWrong := svc.Login(context.Background(), authsvc.LoginRequest{
			Email:    testEmail,
			Password: "wrong",
			Token:    currentCode(t, secret),
		})
		_, errUnknown := svc.Login(context.Background(), authsvc.LoginRequest{
			Email:    "nobody@b.com",
			Password: testPassword,
			Token:    currentCode(t, secret),
		})

		require.ErrorIs(t, errWrong, domain.ErrInvalidCredentials)
		require.ErrorIs(t, errUnknown, domain.ErrInvalidCredentials)
		assert.Equal(t, errWrong.Error(), errUnknown.Error())
	})

	t.Run("invalid mfa code", func(t *testing.T) {
		t.Parallel()

		svc, repo := setupTestService(t)
		secret := register(t, svc, testEmail)

		code := "000000"
		if svc.TOTP.Verify(secret, code) {
			code = "111111"
		}

		_, err := svc.Login(context.Background(), authsvc.LoginRequest{
			Email:    testEmail,
			Password: testPassword,
			Token:    code,
		})
		require.ErrorIs(t, err, domain.ErrInvalidMFACode)
		assert.NotErrorIs(t, err, domain.ErrInternal)

		stored, _, err := repo.GetUserByEmail(context.Background(), testEmail)
		require.NoError(t, err)
		assert.Nil(t, stored.LastLoginAt)
	})

	t.Run("code of another secret is rejected", func(t *testing.T) {
		t.Parallel()

		svc, _ := setupTestService(t)
		register(t, svc, testEmail)
		other := register(t, svc, "other@b.com")

		_, err := svc.Login(context.Background(), authsvc.LoginRequest{
			Email:    testEmail,
			Password: testPassword,
			Token:    currentCode(t, other),
		})
		require.ErrorIs(t, err, domain.ErrInvalidMFACode)
	})

	t.Run("replayed code is rejected", func(t *testing.T) {
		t.Parallel()

		svc, _ := setupTestService(t)
		secret := register(t, svc, testEmail)
		code := currentCode(t, secret)

		req := authsvc.LoginRequest{Email: testEmail, Password: testPassword, Token: code}

		_, err := svc.Login(context.Background(), req)
		require.NoError(t, err)

		_, err = svc.Login(context.Background(), req)
		require.ErrorIs(t, err, domain.ErrMFACodeReused)
		require.ErrorIs(t, err, domain.ErrInvalidMFACode)
	})

	t.Run("code survives a failed token issue", func(t *testing.T) {
		t.Parallel()

		svc, _ := setupTestService(t)
		secret := register(t, svc, testEmail)
		req := authsvc.LoginRequest{Email: testEmail, Password: testPassword, Token: currentCode(t, secret)}

		issuer := svc.Tokens
		svc.Tokens = failingTokenAuthority{TokenAuthority: issuer}

		_, err := svc.Login(context.Background(), req)
		require.ErrorIs(t, err, domain.ErrInternal)

		svc.Tokens = issuer

		_, err = svc.Login(context.Background(), req)
		require.NoError(t, err)
	})

	t.Run("claims match the issued token", func(t *testing.T) {
		t.Parallel()

		svc, _ := setupTestService(t)
		secret := register(t, svc, testEmail)

		issuer, ok := svc.Tokens.(*authsvc.TokenIssuer)
		require.True(t, ok)

		// issuer clock differs from the service clock
		issuer.SetClock(func() time.Time { return time.Now().Add(-2 * time.Minute) })

		res, err := svc.Login(context.Background(), authsvc.LoginRequest{
			Email:    testEmail,
			Password: testPassword,
			Token:    currentCode(t, secret),
		})
		require.NoError(t, err)

		claims, err := svc.ValidateToken(context.Background(), res.Token)
		require.NoError(t, err)
		assert.True(t, claims.IssuedAt.Equal(res.Claims.IssuedAt))
		assert.True(t, claims.ExpiresAt.Equal(res.Claims.ExpiresAt))
		assert.True(t, res.ExpiresAt.Equal(claims.ExpiresAt))
	})

	t.Run("replayed code is accepted without replay guard", func(t *testing.T) {
		t.Parallel()

		svc, _ := setupTestService(t, func(c *authsvc.AuthConfig) { c.TOTPRejectReplay = false })
		secret := register(t, svc, testEmail)
		code := currentCode(t, secret)

		req := authsvc.LoginRequest{Email: testEmail, Password: testPassword, Token: code}

		_, err := svc.Login(context.Background(), req)
		require.NoError(t, err)

		_, err = svc.Login(context.Background(), req)
		require.NoError(t, err)
	})

	missingTests := []struct {
		name string
		req  authsvc.LoginRequest
	}{
		{name: "missing email", req: authsvc.LoginRequest{Email: "", Password: testPassword, Token: "123456"}},
		{name: "missing password", req: authsvc.LoginRequest{Email: testEmail, Password: "", Token: "123456"}},
		{name: "missing token", req: authsvc.LoginRequest{Email: testEmail, Password: testPassword, Token: ""}},
	}

	for _, tt := range missingTests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			svc, _ := setupTestService(t)

			_, err := svc.Login(context.Background(), tt.req)
			require.ErrorIs(t, err, domain.ErrMissingFields)
		})
	}

	t.Run("store failure is internal", func(t *testing.T) {
		t.Parallel()

		svc, repo := setupTestService(t)
		register(t, svc, testEmail)
		repo.getErr = errRepo

		_, err := svc.Login(context.Background(), authsvc.LoginRequest{
			Email:    testEmail,
			Password: testPassword,
			Token:    "123456",
		})
		require.ErrorIs(t, err, domain.ErrInternal)
		require.ErrorIs(t, err, errRepo)
	})

	t.Run("last login failure does not fail login", func(t *testing.T) {
		t.Parallel()

		svc, repo := setupTestService(t)
		secret := register(t, svc, testEmail)
		repo.updateErr = errRepo

		res, err := svc.Login(context.Background(), authsvc.LoginRequest{
			Email:    testEmail,
			Password: testPassword,
			Token:    currentCode(t, secret),
		})
		require.NoError(t, err)
		assert.NotEmpty(t, res.Token)
	})
}

func TestAuthService_ValidateToken(t *testing.T) {
	t.Parallel()

	svc, _ := setupTestService(t)

	claims := domain.AuthClaims{
		UserID:    "user-1",
		Email:     testEmail,
		Username:  testUsername,
		IssuedAt:  time.Time{},
		ExpiresAt: time.Time{},
	}

	token, _, err := svc.Tokens.Issue(claims)
	require.NoError(t, err)

	t.Run("valid token", func(t *testing.T) {
		t.Parallel()

		got, err := svc.ValidateToken(context.Background(), token)
		require.NoError(t, err)
		assert.Equal(t, "user-1", got.UserID)
		assert.Equal(t, testEmail, got.Email)
		assert.Equal(t, testUsername, got.Username)
	})

	t.Run("empty token", func(t *testing.T) {
		t.Parallel()

		_, err := svc.ValidateToken(context.Background(), "")
		require.ErrorIs(t, err, domain.ErrNoAuthToken)
	})

	t.Run("tampered token", func(t *testing.T) {
		t.Parallel()

		_, err := svc.ValidateToken(context.Background(), token+"x")
		require.ErrorIs(t, err, domain.ErrInvalidAuthToken)
	})

	t.Run("garbage token", func(t *testing.T) {
		t.Parallel()

		_, err := svc.ValidateToken(context.Background(), "not.a.token")
		require.ErrorIs(t, err, domain.ErrInvalidAuthToken)
	})

	t.Run("token of another secret", func(t *testing.T) {
		t.Parallel()

		other, _ := setupTestService(t, func(c *authsvc.AuthConfig) {
			c.SigningSecret = strings.Repeat("o", authsvc.MinSigningSecretLength)
		})

		_, err := other.ValidateToken(context.Background(), token)
		require.ErrorIs(t, err, domain.ErrInvalidSignature)
	})
}
