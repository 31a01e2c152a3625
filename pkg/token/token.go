// Package token implements the access-token codec used for private
// repository fetches.
//
// Tokens travel as "hexIV:hexCiphertext". The symmetric key is the
// SHA-256 digest of the server secret, and the cipher is AES-256 in
// counter mode. The same derivation is used on both sides, so a token
// minted by Encrypt round-trips through Decrypt with the same secret.
package token

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

// ErrDecryptionFailed covers every way a token can fail to decrypt:
// wrong shape, bad hex, wrong IV length, or garbage plaintext. Callers
// never learn which; a partial credential is never returned.
var ErrDecryptionFailed = errors.New("failed to decrypt access token")

// DeriveKey hashes the server secret into a fixed-length AES-256 key.
func DeriveKey(secret string) []byte {
	sum := sha256.Sum256([]byte(secret))
	return sum[:]
}

// Decrypt recovers the plaintext credential from an encrypted token.
func Decrypt(encrypted, secret string) (string, error) {
	parts := strings.Split(encrypted, ":")
	if len(parts) != 2 {
		return "", fmt.Errorf("%w: expected iv:ciphertext", ErrDecryptionFailed)
	}

	iv, err := hex.DecodeString(parts[0])
	if err != nil {
		return "", fmt.Errorf("%w: invalid iv hex", ErrDecryptionFailed)
	}
	ciphertext, err := hex.DecodeString(parts[1])
	if err != nil {
		return "", fmt.Errorf("%w: invalid ciphertext hex", ErrDecryptionFailed)
	}
	if len(iv) != aes.BlockSize {
		return "", fmt.Errorf("%w: iv must be %d bytes", ErrDecryptionFailed, aes.BlockSize)
	}

	block, err := aes.NewCipher(DeriveKey(secret))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDecryptionFailed, err)
	}

	plaintext := make([]byte, len(ciphertext))
	cipher.NewCTR(block, iv).XORKeyStream(plaintext, ciphertext)

	if !utf8.Valid(plaintext) {
		return "", fmt.Errorf("%w: plaintext is not valid text", ErrDecryptionFailed)
	}
	return string(plaintext), nil
}

// Encrypt produces an encrypted token for the given plaintext credential.
// Used by the encrypt-token command so operators can mint tokens with the
// exact codec the server decrypts with.
func Encrypt(plaintext, secret string) (string, error) {
	iv := make([]byte, aes.BlockSize)
	if _, err := rand.Read(iv); err != nil {
		return "", fmt.Errorf("generate iv: %w", err)
	}

	block, err := aes.NewCipher(DeriveKey(secret))
	if err != nil {
		return "", fmt.Errorf("init cipher: %w", err)
	}

	ciphertext := make([]byte, len(plaintext))
	cipher.NewCTR(block, iv).XORKeyStream(ciphertext, []byte(plaintext))

	return hex.EncodeToString(iv) + ":" + hex.EncodeToString(ciphertext), nil
}
