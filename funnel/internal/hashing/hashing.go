// Package hashing implements the PII digest used in server events.
package hashing

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

// ErrNotString is returned when a non-string value reaches the hasher.
var ErrNotString = errors.New("hashing: input is not a string")

// Normalize lowercases s and trims surrounding whitespace.
func Normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// SHA256 returns the lowercase hex SHA-256 digest of Normalize(s).
func SHA256(s string) string {
	sum := sha256.Sum256([]byte(Normalize(s)))
	return hex.EncodeToString(sum[:])
}

// HashValue hashes v if it is a string. Any other type is a caller bug.
func HashValue(v any) (string, error) {
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("%w: got %T", ErrNotString, v)
	}
	return SHA256(s), nil
}
