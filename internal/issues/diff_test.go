package issues

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func withFingerprint(id, rule string) Issue {
	i := baseIssue()
	i.ID = id
	i.RuleID = rule
	i.Status = StatusOpen
	i.Fingerprint = Fingerprint(i)
	return i
}

func TestMarkNewWithoutBaselineMarksEverythingNew(t *testing.T) {
	current := []Issue{withFingerprint("1", "r1"), withFingerprint("2", "r2")}
	for _, i := range MarkNew(current, nil) {
		assert.True(t, i.IsNew, "issue %s", i.ID)
	}
}

func TestMarkNewMatchesBaselineFingerprints(t *testing.T) {
	current := []Issue{withFingerprint("1", "r1"), withFingerprint("2", "r2")}
	baseline := []Issue{withFingerprint("b1", "r1")}

	got := MarkNew(current, baseline)
	require.Len(t, got, 2)
	assert.False(t, got[0].IsNew)
	assert.True(t, got[1].IsNew)
	assert.False(t, current[1].IsNew, "input must not be mutated")
}

func TestMarkNewIdempotent(t *testing.T) {
	current := []Issue{withFingerprint("1", "r1"), withFingerprint("2", "r2"), withFingerprint("3", "r3")}
	baseline := []Issue{withFingerprint("b2", "r2")}

	first := MarkNew(current, baseline)
	second := MarkNew(first, baseline)
	assert.Equal(t, first, second)
}

func TestUnresolvedDropsResolved(t *testing.T) {
	open := withFingerprint("1", "r1")
	resolved := withFingerprint("2", "r2")
	resolved.Status = StatusResolved
	accepted := withFingerprint("3", "r3")
	accepted.Status = StatusAcceptedRisk

	got := Unresolved([]Issue{open, resolved, accepted})
	require.Len(t, got, 2)
	assert.Equal(t, "1", got[0].ID)
	assert.Equal(t, "3", got[1].ID)
}
