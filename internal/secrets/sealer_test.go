package secrets

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSealer_RoundTrip(t *testing.T) {
	s, err := NewSealer("server-secret", 1000)
	require.NoError(t, err)

	sealed, err := s.Seal("sk-test-123")
	require.NoError(t, err)
	require.False(t, bytes.Contains(sealed, []byte("sk-test-123")))

	again, err := s.Seal("sk-test-123")
	require.NoError(t, err)
	require.NotEqual(t, sealed, again, "nonce must differ per seal")

	plain, err := s.Open(sealed)
	require.NoError(t, err)
	require.Equal(t, "sk-test-123", plain)

	// a second sealer from the same secret opens it too
	s2, err := NewSealer("server-secret", 1000)
	require.NoError(t, err)
	plain, err = s2.Open(again)
	require.NoError(t, err)
	require.Equal(t, "sk-test-123", plain)
}

func TestSealer_Rejects(t *testing.T) {
	s, err := NewSealer("server-secret", 1000)
	require.NoError(t, err)
	other, err := NewSealer("different", 1000)
	require.NoError(t, err)

	sealed, err := s.Seal("value")
	require.NoError(t, err)

	_, err = other.Open(sealed)
	require.True(t, errors.Is(err, ErrDecryptionFailed))

	_, err = s.Open([]byte("short"))
	require.ErrorIs(t, err, ErrInvalidCiphertext)

	sealed[len(sealed)-1] ^= 0xff
	_, err = s.Open(sealed)
	require.ErrorIs(t, err, ErrDecryptionFailed)

	_, err = NewSealer("", 1)
	require.Error(t, err)
}
