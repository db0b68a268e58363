// Package crypto implements server-side password hashing and verification.
package crypto

import (
	"crypto/sha256"
	"crypto/subtle"
)

// HashPassword returns the SHA-256 digest of the UTF-8 password.
// The digest is the persisted representation in users.dat.
func HashPassword(password string) []byte {
	sum := sha256.Sum256([]byte(password))
	return sum[:]
}

// VerifyPassword verifies password against the expected digest in constant time.
func VerifyPassword(password string, expected []byte) bool {
	got := HashPassword(password)
	return subtle.ConstantTimeCompare(got, expected) == 1
}
