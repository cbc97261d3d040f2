package domain

import (
	"fmt"
	"time"
)

var (
	// ErrNoAuthToken is returned when an authentication token is required but not provided.
	ErrNoAuthToken = fmt.Errorf("%w: no auth token", ErrValidation)
	// ErrInvalidAuthToken is the base error for every token verification failure.
	ErrInvalidAuthToken = fmt.Errorf("%w: invalid auth token", ErrAuthentication)
	// ErrExpiredToken is returned when the token is past its expiry.
	ErrExpiredToken = fmt.Errorf("%w: expired", ErrInvalidAuthToken)
	// ErrInvalidSignature is returned when the signature, method or issuer do not match.
	ErrInvalidSignature = fmt.Errorf("%w: invalid signature", ErrInvalidAuthToken)
	// ErrMalformedToken is returned when the token cannot be decoded.
	ErrMalformedToken = fmt.Errorf("%w: malformed", ErrInvalidAuthToken)
)

// AuthClaims is the identity carried by a bearer token.
type AuthClaims struct {
	UserID    string    `json:"userId"`
	Email     string    `json:"email"`
	Username  string    `json:"username"`
	IssuedAt  time.Time `json:"issuedAt"`
	ExpiresAt time.Time `json:"expiresAt"`
}
