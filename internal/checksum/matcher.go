// Package checksum fingerprints uploads and row identities.
package checksum

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Sum returns the lowercase hex SHA-256 of data.
func Sum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// SumParts hashes parts joined by sep. Callers pick a sep that cannot occur
// inside a part so that different splits never collide.
func SumParts(sep string, parts ...string) string {
	return Sum([]byte(strings.Join(parts, sep)))
}
