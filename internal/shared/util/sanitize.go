package util

import (
	"errors"
	"strings"
)

const maxArtifactNameLength = 128

// ErrInvalidArtifactName is returned for names that cannot be used as the
// last segment of an object key.
var ErrInvalidArtifactName = errors.New("invalid artifact name")

// SanitizeArtifactName turns an uploaded file name into a single object key
// segment. Separators become underscores, other characters outside
// [A-Za-z0-9._-] become dashes, and traversal patterns are rejected.
func SanitizeArtifactName(name string) (string, error) {
	s := strings.TrimSpace(name)
	if s == "" || strings.Contains(s, "..") {
		return "", ErrInvalidArtifactName
	}
	var b strings.Builder
	for _, r := range s {
		switch {
		case r == '/' || r == '\\':
			b.WriteByte('_')
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '_', r == '-':
			b.WriteRune(r)
		default:
			b.WriteByte('-')
		}
	}
	out := strings.TrimLeft(b.String(), "._")
	if out == "" {
		return "", ErrInvalidArtifactName
	}
	if len(out) > maxArtifactNameLength {
		out = out[len(out)-maxArtifactNameLength:]
	}
	return out, nil
}
