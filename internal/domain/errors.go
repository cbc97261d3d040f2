package domain

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Error categories. Every error returned by the auth service wraps exactly one
// of these, so transports can map them to a status without knowing the details.
var (
	// ErrValidation is the category for missing or malformed input.
	ErrValidation = errors.New("validation error")
	// ErrAuthentication is the category for bad credentials, MFA codes or tokens.
	ErrAuthentication = errors.New("authentication error")
	// ErrConflict is the category for duplicate registrations.
	ErrConflict = errors.New("conflict")
	// ErrInternal is the category for store, hashing and signing failures.
	ErrInternal = errors.New("internal error")
)

var (
	// ErrMissingFields is returned when a required request field is empty.
	ErrMissingFields = fmt.Errorf("%w: missing fields", ErrValidation)
	// ErrInvalidEmail is returned when the email does not look like local@domain.tld.
	ErrInvalidEmail = fmt.Errorf("%w: invalid email", ErrValidation)
	// ErrPasswordTooLong is returned when the password exceeds the hash input limit.
	ErrPasswordTooLong = fmt.Errorf("%w: password too long", ErrValidation)
)

// ValidationError carries per-field messages alongside the validation kind.
type ValidationError struct {
	Kind   error
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return e.Kind.Error()
	}

	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}

	sort.Strings(keys)

	return e.Kind.Error() + " (" + strings.Join(keys, ", ") + ")"
}

func (e *ValidationError) Unwrap() error {
	return e.Kind
}

// IsClientError reports whether err is caused by the caller rather than by the service.
func IsClientError(err error) bool {
	return errors.Is(err, ErrValidation) || errors.Is(err, ErrAuthentication) || errors.Is(err, ErrConflict)
}
