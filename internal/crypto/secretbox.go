package crypto

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/nacl/secretbox"
)

// NonceSize is the secretbox nonce length prepended to every ciphertext.
const NonceSize = 24

// KeyHexLen is the expected length of a hex-encoded 256-bit key.
const KeyHexLen = 64

// ErrDecryptFailed is returned when authenticated decryption fails,
// typically because the wrong key was used or the ciphertext was tampered with.
var ErrDecryptFailed = errors.New("decryption failed: wrong key or corrupted ciphertext")

// ErrMalformedCiphertext is returned when a blob is too short to contain a nonce
// or is not valid hex.
var ErrMalformedCiphertext = errors.New("malformed ciphertext blob")

// ParseKey validates and decodes a 64-hex-character key into 32 raw bytes.
// Any other input is rejected before cryptographic use.
func ParseKey(s string) (*[32]byte, error) {
	if len(s) != KeyHexLen {
		return nil, fmt.Errorf("key must be %d hex characters, got %d", KeyHexLen, len(s))
	}
	raw, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("key is not valid hex: %w", err)
	}
	var key [32]byte
	copy(key[:], raw)
	return &key, nil
}

// Encrypt seals plaintext under key with a fresh random nonce and returns
// hex(nonce || ciphertext+tag). Repeated calls with identical inputs produce
// different output because the nonce is drawn from crypto/rand each time.
func Encrypt(plaintext string, key *[32]byte) (string, error) {
	var nonce [NonceSize]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return "", fmt.Errorf("generating nonce: %w", err)
	}
	sealed := secretbox.Seal(nonce[:], []byte(plaintext), &nonce, key)
	return hex.EncodeToString(sealed), nil
}

// Decrypt reverses Encrypt: it splits the decoded blob into nonce and
// ciphertext, authenticates and opens it. A wrong key fails closed with
// ErrDecryptFailed, never with silently corrupted plaintext.
func Decrypt(blob string, key *[32]byte) (string, error) {
	raw, err := hex.DecodeString(blob)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformedCiphertext, err)
	}
	if len(raw) < NonceSize {
		return "", fmt.Errorf("%w: %d bytes, need at least %d", ErrMalformedCiphertext, len(raw), NonceSize)
	}
	var nonce [NonceSize]byte
	copy(nonce[:], raw[:NonceSize])
	plaintext, ok := secretbox.Open(nil, raw[NonceSize:], &nonce, key)
	if !ok {
		return "", ErrDecryptFailed
	}
	return string(plaintext), nil
}
