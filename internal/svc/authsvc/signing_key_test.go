package authsvc_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mkrupp/homecase-authsvc/internal/svc/authsvc"
)

func TestLoadSigningSecret(t *testing.T) {
	t.Parallel()

	inline := strings.Repeat("i", authsvc.MinSigningSecretLength)
	fromFile := strings.Repeat("f", authsvc.MinSigningSecretLength)

	path := filepath.Join(t.TempDir(), "secret")
	require.NoError(t, os.WriteFile(path, []byte(fromFile+"\n"), 0o600))

	tests := []struct {
		name    string
		secret  string
		file    string
		want    string
		wantErr error
	}{
		{name: "inline secret", secret: inline, want: inline},
		{name: "file wins over inline", secret: inline, file: path, want: fromFile},
		{name: "no secret", wantErr: authsvc.ErrNoSigningSecret},
		{name: "weak secret", secret: "short", wantErr: authsvc.ErrWeakSigningSecret},
		{name: "missing file", file: filepath.Join(t.TempDir(), "missing"), wantErr: os.ErrNotExist},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := testAuthConfig()
			cfg.SigningSecret = tt.secret
			cfg.SigningSecretFile = tt.file

			got, err := authsvc.LoadSigningSecret(cfg)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)

				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.want, string(got))
		})
	}
}

func TestGenerateSigningSecret(t *testing.T) {
	t.Parallel()

	a, err := authsvc.GenerateSigningSecret(32)
	require.NoError(t, err)
	assert.Len(t, a, 64)

	b, err := authsvc.GenerateSigningSecret(32)
	require.NoError(t, err)
	assert.NotEqual(t, a, b)

	cfg := testAuthConfig()
	cfg.SigningSecret = a

	_, err = authsvc.LoadSigningSecret(cfg)
	require.NoError(t, err)
}
