package domain_test

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mkrupp/homecase-authsvc/internal/domain"
)

func TestErrorCategories(t *testing.T) {
	t.Parallel()

	tests := []struct {
		err      error
		category error
	}{
		{domain.ErrMissingFields, domain.ErrValidation},
		{domain.ErrInvalidEmail, domain.ErrValidation},
		{domain.ErrPasswordTooLong, domain.ErrValidation},
		{domain.ErrNoAuthToken, domain.ErrValidation},
		{domain.ErrInvalidCredentials, domain.ErrAuthentication},
		{domain.ErrInvalidMFACode, domain.ErrAuthentication},
		{domain.ErrMFACodeReused, domain.ErrAuthentication},
		{domain.ErrMFACodeReused, domain.ErrInvalidMFACode},
		{domain.ErrExpiredToken, domain.ErrInvalidAuthToken},
		{domain.ErrInvalidSignature, domain.ErrAuthentication},
		{domain.ErrMalformedToken, domain.ErrAuthentication},
		{domain.ErrUserAlreadyExists, domain.ErrConflict},
	}

	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			t.Parallel()

			assert.ErrorIs(t, tt.err, tt.category)
			assert.True(t, domain.IsClientError(fmt.Errorf("wrapped: %w", tt.err)))
		})
	}

	assert.False(t, domain.IsClientError(domain.ErrInternal))
	assert.False(t, domain.IsClientError(errors.New("boom")))
	assert.False(t, domain.IsClientError(domain.ErrUserNotFound))
}

func TestValidationError(t *testing.T) {
	t.Parallel()

	err := &domain.ValidationError{
		Kind:   domain.ErrMissingFields,
		Fields: map[string]string{"password": "required", "email": "required"},
	}

	assert.ErrorIs(t, err, domain.ErrMissingFields)
	assert.ErrorIs(t, err, domain.ErrValidation)
	assert.Equal(t, "validation error: missing fields (email, password)", err.Error())

	var target *domain.ValidationError
	assert.True(t, errors.As(fmt.Errorf("register: %w", err), &target))
	assert.Equal(t, "required", target.Fields["email"])

	bare := &domain.ValidationError{Kind: domain.ErrInvalidEmail} //nolint:exhaustruct
	assert.Equal(t, domain.ErrInvalidEmail.Error(), bare.Error())
}

func TestNormalizeEmail(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "a@b.com", domain.NormalizeEmail("  A@B.Com "))
	assert.Equal(t, "", domain.NormalizeEmail("   "))
}

func TestEventLevelForStatus(t *testing.T) {
	t.Parallel()

	tests := []struct {
		code int
		want domain.EventLevel
	}{
		{http.StatusOK, domain.EventLevelInfo},
		{http.StatusCreated, domain.EventLevelInfo},
		{http.StatusFound, domain.EventLevelWarning},
		{http.StatusBadRequest, domain.EventLevelError},
		{http.StatusUnauthorized, domain.EventLevelError},
		{http.StatusInternalServerError, domain.EventLevelCritical},
		{http.StatusServiceUnavailable, domain.EventLevelCritical},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, domain.EventLevelForStatus(tt.code), "status %d", tt.code)
	}
}
