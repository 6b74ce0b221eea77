package util

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizeArtifactName(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{in: "snapshot.tar.gz", want: "snapshot.tar.gz"},
		{in: " src/main.zip ", want: "src_main.zip"},
		{in: `dir\file.zip`, want: "dir_file.zip"},
		{in: "my repo (1).zip", want: "my-repo--1-.zip"},
		{in: "/abs.zip", want: "abs.zip"},
	}
	for _, tc := range cases {
		got, err := SanitizeArtifactName(tc.in)
		require.NoError(t, err, tc.in)
		assert.Equal(t, tc.want, got, tc.in)
	}
}

func TestSanitizeArtifactNameRejects(t *testing.T) {
	for _, in := range []string{"../etc/passwd", "   ", "/", "..zip"} {
		_, err := SanitizeArtifactName(in)
		assert.ErrorIs(t, err, ErrInvalidArtifactName, in)
	}
}

func TestSanitizeArtifactNameKeepsExtensionWhenTruncating(t *testing.T) {
	got, err := SanitizeArtifactName(strings.Repeat("a", 200) + ".tar.gz")
	require.NoError(t, err)
	assert.Len(t, got, maxArtifactNameLength)
	assert.True(t, strings.HasSuffix(got, ".tar.gz"))
}
