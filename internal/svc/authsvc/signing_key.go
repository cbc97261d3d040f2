package authsvc

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"strings"
)

// MinSigningSecretLength is the shortest accepted HS256 secret in bytes.
const MinSigningSecretLength = 32

var (
	// ErrNoSigningSecret is returned when neither a secret nor a secret file is configured.
	ErrNoSigningSecret = errors.New("no signing secret configured")
	// ErrWeakSigningSecret is returned for secrets shorter than MinSigningSecretLength.
	ErrWeakSigningSecret = fmt.Errorf("signing secret must be at least %d bytes", MinSigningSecretLength)
)

// LoadSigningSecret returns the token signing secret. A configured file wins over
// the inline value; surrounding whitespace of the file content is ignored.
func LoadSigningSecret(cfg AuthConfig) ([]byte, error) {
	secret := cfg.SigningSecret

	if cfg.SigningSecretFile != "" {
		buf, err := os.ReadFile(cfg.SigningSecretFile)
		if err != nil {
			return nil, fmt.Errorf("read signing secret file: %w", err)
		}

		secret = strings.TrimSpace(string(buf))
	}

	if secret == "" {
		return nil, ErrNoSigningSecret
	}

	if len(secret) < MinSigningSecretLength {
		return nil, ErrWeakSigningSecret
	}

	return []byte(secret), nil
}

// GenerateSigningSecret returns a random hex-encoded secret of 2*bytes characters.
func GenerateSigningSecret(bytes int) (string, error) {
	buf := make([]byte, bytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate secret: %w", err)
	}

	return hex.EncodeToString(buf), nil
}
