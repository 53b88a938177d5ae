// Package secret seals credential payloads with AES-256-GCM under a
// workspace key.
//
// Sealed blobs are standard base64 of IV(12) || tag(16) || ciphertext.
package secret

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

const (
	// KeySize is the required key length in bytes.
	KeySize = 32
	// IVSize is the GCM nonce length in bytes.
	IVSize = 12
	// TagSize is the GCM authentication tag length in bytes.
	TagSize = 16
)

// ErrDecryptionFailed is returned for every decryption failure. The cause is
// not exposed.
var ErrDecryptionFailed = errors.New("decryption failed")

// ErrInvalidKey reports a key that is not KeySize bytes.
var ErrInvalidKey = fmt.Errorf("encryption key must be %d bytes", KeySize)

// Cipher seals JSON payloads. The zero value reads IVs from crypto/rand.
type Cipher struct {
	Reader io.Reader
}

// Encrypt seals payload with key using crypto/rand.
func Encrypt(payload any, key []byte) (string, error) {
	return Cipher{}.Encrypt(payload, key)
}

// Decrypt opens blob with key into out.
func Decrypt(blob string, key []byte, out any) error {
	return Cipher{}.Decrypt(blob, key, out)
}

// Encrypt marshals payload to JSON and seals it under a fresh IV.
func (c Cipher) Encrypt(payload any, key []byte) (string, error) {
	aead, err := newAEAD(key)
	if err != nil {
		return "", err
	}
	plaintext, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal payload: %w", err)
	}

	reader := c.Reader
	if reader == nil {
		reader = rand.Reader
	}
	iv := make([]byte, IVSize)
	if _, err := io.ReadFull(reader, iv); err != nil {
		return "", fmt.Errorf("read iv: %w", err)
	}

	// Seal returns ciphertext || tag.
	sealed := aead.Seal(nil, iv, plaintext, nil)
	ctLen := len(sealed) - TagSize

	out := make([]byte, 0, IVSize+len(sealed))
	out = append(out, iv...)
	out = append(out, sealed[ctLen:]...)
	out = append(out, sealed[:ctLen]...)
	return base64.StdEncoding.EncodeToString(out), nil
}

// Decrypt opens blob and unmarshals the JSON payload into out.
func (c Cipher) Decrypt(blob string, key []byte, out any) error {
	aead, err := newAEAD(key)
	if err != nil {
		return ErrDecryptionFailed
	}
	raw, err := base64.StdEncoding.DecodeString(blob)
	if err != nil {
		return ErrDecryptionFailed
	}
	if len(raw) < IVSize+TagSize {
		return ErrDecryptionFailed
	}
	iv := raw[:IVSize]
	tag := raw[IVSize : IVSize+TagSize]
	ciphertext := raw[IVSize+TagSize:]

	sealed := make([]byte, 0, len(ciphertext)+TagSize)
	sealed = append(sealed, ciphertext...)
	sealed = append(sealed, tag...)
	plaintext, err := aead.Open(nil, iv, sealed, nil)
	if err != nil {
		return ErrDecryptionFailed
	}
	if err := json.Unmarshal(plaintext, out); err != nil {
		return ErrDecryptionFailed
	}
	return nil
}

func newAEAD(key []byte) (cipher.AEAD, error) {
	if len(key) != KeySize {
		return nil, ErrInvalidKey
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("new cipher: %w", err)
	}
	aead, err := cipher.NewGCMWithNonceSize(block, IVSize)
	if err != nil {
		return nil, fmt.Errorf("new gcm: %w", err)
	}
	return aead, nil
}
