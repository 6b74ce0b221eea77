package issues

import (
	"path"
	"regexp"
	"strconv"
	"strings"

	"quality-backend/internal/shared/util"
)

const (
	fingerprintVersion = "v1"
	// LineBucketSize is how many consecutive lines share a fingerprint location.
	LineBucketSize = 10
	fileBucket     = "file"
)

var digitRun = regexp.MustCompile(`[0-9]+`)

// Fingerprint returns the stable identity of an issue. It covers analyzer,
// rule, normalized path, a coarse line bucket and the message shape, so
// whitespace changes and small line shifts keep the same identity.
func Fingerprint(i Issue) string {
	return util.Digest(
		fingerprintVersion,
		strings.TrimSpace(i.AnalyzerID),
		strings.TrimSpace(i.RuleID),
		NormalizePath(i.FilePath),
		LineBucket(i.StartLine),
		MessageShape(i.Message),
	)
}

// LineBucket maps a 1-based line to its bucket; issues without a line share a file bucket.
func LineBucket(line *int) string {
	if line == nil || *line <= 0 {
		return fileBucket
	}
	return strconv.Itoa((*line - 1) / LineBucketSize)
}

// MessageShape collapses whitespace and replaces digit runs with 0.
func MessageShape(msg string) string {
	collapsed := strings.Join(strings.Fields(msg), " ")
	return digitRun.ReplaceAllString(collapsed, "0")
}

// NormalizePath uses forward slashes and drops leading "./".
func NormalizePath(p string) string {
	p = strings.TrimSpace(strings.ReplaceAll(p, "\\", "/"))
	if p == "" {
		return ""
	}
	p = path.Clean(p)
	return strings.TrimPrefix(p, "./")
}
