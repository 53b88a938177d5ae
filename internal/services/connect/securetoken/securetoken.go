// Package securetoken generates CSRF state values and PKCE pairs.
package securetoken

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"

	apperrors "github.com/louisbranch/socialconnect/internal/platform/errors"
)

const (
	// DefaultStateBytes is the random byte count used when no length is given.
	DefaultStateBytes = 64
	// VerifierLength is the hex length of a PKCE code verifier.
	VerifierLength = 128
	// MethodS256 is the only supported code challenge method.
	MethodS256 = "S256"
)

// ErrRandomUnavailable reports that the secure random source failed.
var ErrRandomUnavailable = apperrors.New(apperrors.CodeConfigRandomUnavailable, "secure random source unavailable")

// PKCE holds one verifier/challenge pair.
type PKCE struct {
	CodeVerifier        string
	CodeChallenge       string
	CodeChallengeMethod string
}

// Generator draws tokens from an injectable random source.
type Generator struct {
	Reader io.Reader
}

var defaultGenerator = Generator{}

// GenerateRandomState returns hex(length random bytes) using crypto/rand.
func GenerateRandomState(length int) (string, error) {
	return defaultGenerator.RandomState(length)
}

// GeneratePKCE returns a fresh S256 pair using crypto/rand.
func GeneratePKCE() (PKCE, error) {
	return defaultGenerator.PKCE()
}

// RandomState returns hex(length random bytes); length <= 0 uses DefaultStateBytes.
func (g Generator) RandomState(length int) (string, error) {
	if length <= 0 {
		length = DefaultStateBytes
	}
	raw, err := g.read(length)
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(raw), nil
}

// PKCE returns a verifier of VerifierLength hex chars and its S256 challenge.
func (g Generator) PKCE() (PKCE, error) {
	raw, err := g.read(VerifierLength / 2)
	if err != nil {
		return PKCE{}, err
	}
	verifier := hex.EncodeToString(raw)[:VerifierLength]
	return PKCE{
		CodeVerifier:        verifier,
		CodeChallenge:       ComputeS256Challenge(verifier),
		CodeChallengeMethod: MethodS256,
	}, nil
}

func (g Generator) read(n int) ([]byte, error) {
	reader := g.Reader
	if reader == nil {
		reader = rand.Reader
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(reader, buf); err != nil {
		return nil, apperrors.Wrap(apperrors.CodeConfigRandomUnavailable, "read random bytes", err)
	}
	return buf, nil
}

// ComputeS256Challenge returns base64url(SHA-256(verifier)) without padding.
func ComputeS256Challenge(verifier string) string {
	sum := sha256.Sum256([]byte(verifier))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

// VerifyPKCE reports whether verifier hashes to challenge.
func VerifyPKCE(verifier, challenge string) bool {
	if verifier == "" || challenge == "" {
		return false
	}
	computed := ComputeS256Challenge(verifier)
	return subtle.ConstantTimeCompare([]byte(computed), []byte(challenge)) == 1
}

// IsRandomUnavailable reports whether err came from a failed random source.
func IsRandomUnavailable(err error) bool {
	return errors.Is(err, ErrRandomUnavailable)
}

// String hides the verifier.
func (p PKCE) String() string {
	return fmt.Sprintf("PKCE{method=%s challenge=%s}", p.CodeChallengeMethod, p.CodeChallenge)
}
