// Package hasher computes the content digests used for skip decisions and
// chunk identity.
package hasher

import (
	"crypto/sha256"
	"encoding/hex"
)

// Hash returns the lowercase hex SHA-256 digest of b.
func Hash(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// HashString is Hash over the UTF-8 bytes of s.
func HashString(s string) string {
	return Hash([]byte(s))
}
