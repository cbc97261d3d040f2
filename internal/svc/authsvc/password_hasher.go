package authsvc

import (
	"errors"
	"fmt"
	"strings"

	"github.com/matthewhartstonge/argon2"
	"golang.org/x/crypto/bcrypt"

	"github.com/mkrupp/homecase-authsvc/internal/domain"
)

const (
	// BcryptCost is the fixed bcrypt cost factor.
	BcryptCost = 10
	// BcryptMaxPasswordLength is the longest input bcrypt hashes without truncation.
	BcryptMaxPasswordLength = 72

	AlgorithmBcrypt   = "bcrypt"
	AlgorithmArgon2id = "argon2id"

	argon2Prefix = "$argon2"
)

// ErrUnknownPasswordAlgorithm is returned for an unsupported PASSWORD_ALGORITHM value.
var ErrUnknownPasswordAlgorithm = errors.New("unknown password algorithm")

// PasswordHasher hashes new passwords with the configured algorithm and verifies
// digests of either supported algorithm.
type PasswordHasher struct {
	algorithm string
	argon     argon2.Config
}

// NewPasswordHasher creates a hasher for "bcrypt" or "argon2id".
func NewPasswordHasher(algorithm string) (*PasswordHasher, error) {
	switch algorithm {
	case AlgorithmBcrypt, AlgorithmArgon2id:
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownPasswordAlgorithm, algorithm)
	}

	return &PasswordHasher{
		algorithm: algorithm,
		argon:     argon2.DefaultConfig(),
	}, nil
}

// Algorithm returns the algorithm used for new hashes.
func (h *PasswordHasher) Algorithm() string {
	return h.algorithm
}

// CheckLength rejects passwords the active algorithm cannot hash in full.
func (h *PasswordHasher) CheckLength(password string) error {
	if h.algorithm == AlgorithmBcrypt && len(password) > BcryptMaxPasswordLength {
		return &domain.ValidationError{
			Kind:   domain.ErrPasswordTooLong,
			Fields: map[string]string{"password": fmt.Sprintf("password must be at most %d bytes", BcryptMaxPasswordLength)},
		}
	}

	return nil
}

// Hash returns the encoded digest of password.
func (h *PasswordHasher) Hash(password string) (string, error) {
	if err := h.CheckLength(password); err != nil {
		return "", err
	}

	if h.algorithm == AlgorithmArgon2id {
		encoded, err := h.argon.HashEncoded([]byte(password))
		if err != nil {
			return "", fmt.Errorf("argon2 hash: %w", err)
		}

		return string(encoded), nil
	}

	digest, err := bcrypt.GenerateFromPassword([]byte(password), BcryptCost)
	if err != nil {
		return "", fmt.Errorf("bcrypt hash: %w", err)
	}

	return string(digest), nil
}

// Verify reports whether password matches digest. A malformed digest never matches.
func (h *PasswordHasher) Verify(password, digest string) bool {
	if strings.HasPrefix(digest, argon2Prefix) {
		ok, err := argon2.VerifyEncoded([]byte(password), []byte(digest))

		return err == nil && ok
	}

	return bcrypt.CompareHashAndPassword([]byte(digest), []byte(password)) == nil
}
