package authsvc

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/mkrupp/homecase-authsvc/internal/domain"
)

type tokenClaims struct {
	Email    string `json:"email"`
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// TokenAuthority issues and checks bearer tokens.
type TokenAuthority interface {
	Issue(claims domain.AuthClaims) (string, domain.AuthClaims, error)
	Verify(token string) (domain.AuthClaims, error)
}

var _ TokenAuthority = (*TokenIssuer)(nil)

// TokenIssuer signs and verifies HS256 bearer tokens.
type TokenIssuer struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenIssuer creates an issuer signing with secret. Tokens expire ttl after issuance.
func NewTokenIssuer(secret []byte, issuer string, ttl time.Duration) (*TokenIssuer, error) {
	if len(secret) == 0 {
		return nil, ErrNoSigningSecret
	}

	return &TokenIssuer{
		secret: secret,
		issuer: issuer,
		ttl:    ttl,
		now:    time.Now,
	}, nil
}

// SetClock replaces the time source used for issuing and verifying tokens.
func (i *TokenIssuer) SetClock(now func() time.Time) {
	i.now = now
}

// TTL returns the validity of issued tokens.
func (i *TokenIssuer) TTL() time.Duration {
	return i.ttl
}

// Issue signs a token for claims. The returned claims carry the issue and
// expiry times written into the token.
func (i *TokenIssuer) Issue(claims domain.AuthClaims) (string, domain.AuthClaims, error) {
	now := i.now()

	tc := tokenClaims{
		Email:    claims.Email,
		Username: claims.Username,
		RegisteredClaims: jwt.RegisteredClaims{ //nolint:exhaustruct
			Subject:   claims.UserID,
			Issuer:    i.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, tc).SignedString(i.secret)
	if err != nil {
		return "", domain.AuthClaims{}, fmt.Errorf("%w: sign token: %w", domain.ErrInternal, err)
	}

	claims.IssuedAt = tc.IssuedAt.Time
	claims.ExpiresAt = tc.ExpiresAt.Time

	return signed, claims, nil
}

// Verify checks the signature, algorithm, issuer and expiry of token.
func (i *TokenIssuer) Verify(token string) (domain.AuthClaims, error) {
	if token == "" {
		return domain.AuthClaims{}, domain.ErrNoAuthToken
	}

	var tc tokenClaims

	_, err := jwt.ParseWithClaims(token, &tc, func(*jwt.Token) (any, error) {
		return i.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(i.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil {
		return domain.AuthClaims{}, tokenError(err)
	}

	return domain.AuthClaims{
		UserID:    tc.Subject,
		Email:     tc.Email,
		Username:  tc.Username,
		IssuedAt:  numericTime(tc.IssuedAt),
		ExpiresAt: numericTime(tc.ExpiresAt),
	}, nil
}

func tokenError(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return fmt.Errorf("%w: %w", domain.ErrExpiredToken, err)
	case errors.Is(err, jwt.ErrTokenMalformed):
		return fmt.Errorf("%w: %w", domain.ErrMalformedToken, err)
	default:
		return fmt.Errorf("%w: %w", domain.ErrInvalidSignature, err)
	}
}

func numericTime(d *jwt.NumericDate) time.Time {
	if d == nil {
		return time.Time{}
	}

	return d.UTC()
}
