// Package secrets seals operator access tokens before they are stored.
package secrets

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/nacl/secretbox"
)

const (
	keySize   = 32
	nonceSize = 24
	prefix    = "sb1:"
)

var (
	// ErrKeyRequired is returned when a sealed value is opened without a key.
	ErrKeyRequired = errors.New("secrets: sealed value requires a token key")
	// ErrCorrupt is returned when a sealed value fails authentication.
	ErrCorrupt = errors.New("secrets: sealed value is corrupt")
)

// Sealer encrypts and decrypts short secrets.
type Sealer interface {
	Seal(plaintext string) (string, error)
	Open(stored string) (string, error)
}

// New returns a secretbox Sealer for a base64-encoded 32-byte key, or a
// Passthrough sealer when key is empty.
func New(key string) (Sealer, error) {
	if key == "" {
		return Passthrough{}, nil
	}
	raw, err := base64.StdEncoding.DecodeString(key)
	if err != nil {
		return nil, fmt.Errorf("decode token key: %w", err)
	}
	if len(raw) != keySize {
		return nil, fmt.Errorf("token key must be %d bytes, got %d", keySize, len(raw))
	}
	b := &Box{rand: rand.Reader}
	copy(b.key[:], raw)
	return b, nil
}

// GenerateKey returns a fresh base64 key suitable for New.
func GenerateKey() (string, error) {
	var k [keySize]byte
	if _, err := io.ReadFull(rand.Reader, k[:]); err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(k[:]), nil
}

// Box seals with NaCl secretbox (XSalsa20-Poly1305).
type Box struct {
	key  [keySize]byte
	rand io.Reader
}

// Seal implements Sealer.
func (b *Box) Seal(plaintext string) (string, error) {
	var nonce [nonceSize]byte
	if _, err := io.ReadFull(b.rand, nonce[:]); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}
	out := secretbox.Seal(nonce[:], []byte(plaintext), &nonce, &b.key)
	return prefix + base64.StdEncoding.EncodeToString(out), nil
}

// Open implements Sealer. Values stored before a key was configured are
// returned unchanged.
func (b *Box) Open(stored string) (string, error) {
	enc, ok := strings.CutPrefix(stored, prefix)
	if !ok {
		return stored, nil
	}
	raw, err := base64.StdEncoding.DecodeString(enc)
	if err != nil || len(raw) < nonceSize+secretbox.Overhead {
		return "", ErrCorrupt
	}
	var nonce [nonceSize]byte
	copy(nonce[:], raw[:nonceSize])
	plain, ok := secretbox.Open(nil, raw[nonceSize:], &nonce, &b.key)
	if !ok {
		return "", ErrCorrupt
	}
	return string(plain), nil
}

// Passthrough stores secrets as-is. Development only.
type Passthrough struct{}

// Seal implements Sealer.
func (Passthrough) Seal(plaintext string) (string, error) { return plaintext, nil }

// Open implements Sealer.
func (Passthrough) Open(stored string) (string, error) {
	if strings.HasPrefix(stored, prefix) {
		return "", ErrKeyRequired
	}
	return stored, nil
}
