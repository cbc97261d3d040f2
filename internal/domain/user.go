package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrUserAlreadyExists is returned when trying to register an email that is already taken.
	ErrUserAlreadyExists = fmt.Errorf("%w: user already exists", ErrConflict)
	// ErrUserNotFound is returned by stores when looking up a non-existent user.
	ErrUserNotFound = errors.New("user not found")
	// ErrInvalidCredentials is returned for an unknown email or a wrong password.
	// Both cases are deliberately indistinguishable.
	ErrInvalidCredentials = fmt.Errorf("%w: invalid credentials", ErrAuthentication)
	// ErrInvalidMFACode is returned when the submitted one-time code does not verify.
	ErrInvalidMFACode = fmt.Errorf("%w: invalid mfa code", ErrAuthentication)
	// ErrMFACodeReused is returned when a valid code is submitted again within its time step.
	ErrMFACodeReused = fmt.Errorf("%w: code already used", ErrInvalidMFACode)
)

// User is the credential record of a registered account.
type User struct {
	ID           string     // Store-assigned identifier
	Email        string     // Normalised login email, unique
	Username     string     // Display name
	PasswordHash string     // Encoded password digest
	MFASecret    string     // Base32 TOTP secret
	RegisteredAt time.Time  // Creation time
	LastLoginAt  *time.Time // Last successful login, nil if never
}

// NormalizeEmail folds an email to the form used for storage and lookup.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
