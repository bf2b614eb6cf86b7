// Package secrets seals model provider API keys before they reach the
// database. Sealed values are nonce||ciphertext||tag under AES-256-GCM with a
// key derived from the server secret by PBKDF2-SHA-256.
package secrets

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/pbkdf2"
)

const (
	KeySize           = 32
	DefaultIterations = 600000
)

// keySalt is fixed so every server instance derives the same key from the
// same secret.
var keySalt = []byte("quillpost/model-api-keys/v1")

var (
	ErrInvalidCiphertext = errors.New("invalid ciphertext format")
	ErrDecryptionFailed  = errors.New("decryption failed: authentication tag mismatch")
)

type Sealer struct {
	aead cipher.AEAD
}

// NewSealer derives the sealing key once. iterations <= 0 selects
// DefaultIterations.
func NewSealer(secret string, iterations int) (*Sealer, error) {
	if secret == "" {
		return nil, errors.New("sealing secret must not be empty")
	}
	if iterations <= 0 {
		iterations = DefaultIterations
	}

	key := pbkdf2.Key([]byte(secret), keySalt, iterations, KeySize, sha256.New)
	defer zero(key)

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}
	return &Sealer{aead: aead}, nil
}

func (s *Sealer) Seal(plaintext string) ([]byte, error) {
	nonce := make([]byte, s.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}
	return s.aead.Seal(nonce, nonce, []byte(plaintext), nil), nil
}

func (s *Sealer) Open(sealed []byte) (string, error) {
	n := s.aead.NonceSize()
	if len(sealed) < n+s.aead.Overhead() {
		return "", ErrInvalidCiphertext
	}
	plaintext, err := s.aead.Open(nil, sealed[:n], sealed[n:], nil)
	if err != nil {
		return "", ErrDecryptionFailed
	}
	return string(plaintext), nil
}

func zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
