package token

import (
	"crypto/aes"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoundTrip(t *testing.T) {
	tests := []struct {
		name      string
		plaintext string
		secret    string
	}{
		{"typical token", "ghp_abc123XYZ", "server-secret"},
		{"empty plaintext", "", "server-secret"},
		{"unicode plaintext", "tøkén-ünïcode", "server-secret"},
		{"long secret", "short", strings.Repeat("s", 512)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			encrypted, err := Encrypt(tt.plaintext, tt.secret)
			require.NoError(t, err)

			decrypted, err := Decrypt(encrypted, tt.secret)
			require.NoError(t, err)
			assert.Equal(t, tt.plaintext, decrypted)
		})
	}
}

func TestDecryptWrongSecret(t *testing.T) {
	encrypted, err := Encrypt("top-secret-token", "right-secret")
	require.NoError(t, err)

	got, err := Decrypt(encrypted, "wrong-secret")
	if err == nil {
		// CTR with the wrong key can still yield valid UTF-8; when it does,
		// the output must at least not be the original credential.
		assert.NotEqual(t, "top-secret-token", got)
		return
	}
	assert.True(t, errors.Is(err, ErrDecryptionFailed))
	assert.Empty(t, got)
}

func TestDecryptMalformed(t *testing.T) {
	tests := []struct {
		name  string
		token string
	}{
		{"no separator", "deadbeef"},
		{"too many segments", "aa:bb:cc"},
		{"empty string", ""},
		{"invalid iv hex", "zzzz:deadbeef"},
		{"invalid ciphertext hex", "00112233445566778899aabbccddeeff:not-hex"},
		{"iv wrong length", "dead:beef"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Decrypt(tt.token, "any-secret")
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrDecryptionFailed), "want ErrDecryptionFailed, got %v", err)
			assert.Empty(t, got)
		})
	}
}

func TestDeriveKeyLength(t *testing.T) {
	key := DeriveKey("anything")
	assert.Len(t, key, 32)

	// Deterministic: same secret, same key.
	assert.Equal(t, key, DeriveKey("anything"))
	assert.NotEqual(t, key, DeriveKey("anything-else"))
}

func TestEncryptIVLength(t *testing.T) {
	encrypted, err := Encrypt("x", "s")
	require.NoError(t, err)

	parts := strings.SplitN(encrypted, ":", 2)
	require.Len(t, parts, 2)
	assert.Len(t, parts[0], aes.BlockSize*2) // hex doubles length
}
