package authclient

import (
	"context"

	"github.com/mkrupp/homecase-authsvc/internal/domain"
)

// AuthClient defines the interface for validating authentication tokens.
type AuthClient interface {
	// Validate checks if the given token is valid.
	// Returns the claims carried by the token, whether the token is valid,
	// and any error encountered while reaching the validator.
	Validate(ctx context.Context, token string) (domain.AuthClaims, bool, error)
}

// TokenValidator verifies a token in-process.
type TokenValidator interface {
	ValidateToken(ctx context.Context, token string) (domain.AuthClaims, error)
}

// LocalClient implements AuthClient on top of an in-process TokenValidator.
type LocalClient struct {
	validator TokenValidator
}

var _ AuthClient = (*LocalClient)(nil)

func NewLocalClient(validator TokenValidator) *LocalClient {
	return &LocalClient{validator: validator}
}

// Validate implements AuthClient. Token verification failures are reported as
// not ok; only unexpected errors are returned.
func (c *LocalClient) Validate(ctx context.Context, token string) (domain.AuthClaims, bool, error) {
	claims, err := c.validator.ValidateToken(ctx, token)
	if err != nil {
		if domain.IsClientError(err) {
			return domain.AuthClaims{}, false, nil
		}

		return domain.AuthClaims{}, false, err //nolint:wrapcheck
	}

	return claims, true, nil
}
