package authsvc

import (
	"bytes"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"image/png"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

const (
	// TOTPPeriod is the length of a time step in seconds.
	TOTPPeriod = 30
	// TOTPSecretSize is the secret length in bytes (160 bits).
	TOTPSecretSize = 20
	// TOTPDigits is the number of digits of a code.
	TOTPDigits = otp.DigitsSix
	// TOTPAlgorithm is the HMAC algorithm of the codes.
	TOTPAlgorithm = otp.AlgorithmSHA1
)

// TOTPEngine generates TOTP secrets and verifies codes against them.
type TOTPEngine struct {
	issuer string
	skew   uint
	qrSize int
	now    func() time.Time
}

// NewTOTPEngine creates an engine that accepts codes up to skew steps away from
// the current one. qrSize is the edge length of generated QR codes in pixels;
// zero disables them.
func NewTOTPEngine(issuer string, skew uint, qrSize int) *TOTPEngine {
	return &TOTPEngine{
		issuer: issuer,
		skew:   skew,
		qrSize: qrSize,
		now:    time.Now,
	}
}

// GenerateSecret creates a fresh base32 secret for accountName and returns it with
// its otpauth:// provisioning URI.
func (e *TOTPEngine) GenerateSecret(accountName string) (secret, uri string, err error) {
	//nolint:exhaustruct
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      e.issuer,
		AccountName: accountName,
		Period:      TOTPPeriod,
		SecretSize:  TOTPSecretSize,
		Digits:      TOTPDigits,
		Algorithm:   TOTPAlgorithm,
	})
	if err != nil {
		return "", "", fmt.Errorf("generate totp key: %w", err)
	}

	return key.Secret(), key.URL(), nil
}

// QRCode renders uri as a PNG data URI. It returns "" when QR codes are disabled.
func (e *TOTPEngine) QRCode(uri string) (string, error) {
	if e.qrSize <= 0 {
		return "", nil
	}

	key, err := otp.NewKeyFromURL(uri)
	if err != nil {
		return "", fmt.Errorf("parse key: %w", err)
	}

	img, err := key.Image(e.qrSize, e.qrSize)
	if err != nil {
		return "", fmt.Errorf("render qr code: %w", err)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return "", fmt.Errorf("encode png: %w", err)
	}

	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// Verify reports whether code is valid for secret now.
func (e *TOTPEngine) Verify(secret, code string) bool {
	_, ok := e.VerifyAt(secret, code, e.now())

	return ok
}

// VerifyAt checks code against the steps around t and returns the matching step.
// Codes are compared as strings in constant time and every candidate step is
// computed regardless of an earlier match.
func (e *TOTPEngine) VerifyAt(secret, code string, t time.Time) (uint64, bool) {
	if len(code) != TOTPDigits.Length() || !isDigits(code) {
		return 0, false
	}

	current := uint64(t.Unix()) / TOTPPeriod //nolint:gosec

	var (
		step    uint64
		matched bool
	)

	for offset := -int64(e.skew); offset <= int64(e.skew); offset++ { //nolint:gosec
		if offset < 0 && uint64(-offset) > current {
			continue
		}

		candidate := uint64(int64(current) + offset) //nolint:gosec

		//nolint:exhaustruct
		want, err := totp.GenerateCodeCustom(secret, time.Unix(int64(candidate*TOTPPeriod), 0), totp.ValidateOpts{ //nolint:gosec
			Period:    TOTPPeriod,
			Digits:    TOTPDigits,
			Algorithm: TOTPAlgorithm,
		})
		if err != nil {
			return 0, false
		}

		if subtle.ConstantTimeCompare([]byte(want), []byte(code)) == 1 && !matched {
			step, matched = candidate, true
		}
	}

	return step, matched
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}

	return true
}
