package util

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Digest returns the hex sha256 of parts joined by the unit separator, so
// ("ab","c") and ("a","bc") never collide.
func Digest(parts ...string) string {
	sum := sha256.Sum256([]byte(strings.Join(parts, "\x1f")))
	return hex.EncodeToString(sum[:])
}
