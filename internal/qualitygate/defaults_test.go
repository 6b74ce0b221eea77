package qualitygate

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quality-backend/internal/issues"
	"quality-backend/internal/measures"
)

func TestLoadBuiltinDefaults(t *testing.T) {
	d, err := LoadDefaults("")
	require.NoError(t, err)

	assert.Equal(t, "Default quality gate", d.Gate.Name)
	require.NotEmpty(t, d.Gate.Conditions)
	assert.Equal(t, Condition{Metric: "blocker_issues", Operator: OperatorGT, Threshold: 0, Scope: ScopeAll}, d.Gate.Conditions[0])
	assert.Equal(t, measures.DefaultDebtConfig(), d.Debt)

	gate := d.DefaultGate("p-1")
	assert.True(t, gate.IsDefault)
	assert.Equal(t, "p-1", gate.ProjectID)
}

func TestLoadDefaultsFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "quality.yaml")
	doc := `
gate:
  conditions:
    - metric: bugs
      operator: gt
      threshold: 5
debt:
  remediationMinutes: {MAJOR: 15}
  developmentCostPerLine: 20
  ratingThresholds: [0.1, 0.2, 0.3, 0.4]
`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o600))

	d, err := LoadDefaults(path)
	require.NoError(t, err)
	assert.Equal(t, OperatorGT, d.Gate.Conditions[0].Operator)
	assert.Equal(t, ScopeAll, d.Gate.Conditions[0].Scope)
	assert.Equal(t, 15.0, d.Debt.RemediationMinutes[issues.SeverityMajor])
	assert.Equal(t, "Default quality gate", d.Gate.Name)
}

func TestParseDefaultsRejects(t *testing.T) {
	cases := map[string]string{
		"unknown key": "gate: {}\nextra: 1\n",
		"bad operator": `
gate: {conditions: [{metric: bugs, operator: GTE, threshold: 1}]}
debt: {developmentCostPerLine: 30, ratingThresholds: [0.05, 0.1, 0.2, 0.5]}`,
		"non monotonic ratings": `
gate: {conditions: []}
debt: {developmentCostPerLine: 30, ratingThresholds: [0.2, 0.1, 0.3, 0.5]}`,
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ParseDefaults([]byte(doc))
			assert.Error(t, err)
		})
	}
}

func TestNormalizeConditionsCollectsFieldErrors(t *testing.T) {
	_, err := NormalizeConditions([]Condition{
		{Metric: "", Operator: "GE", Scope: "SOME"},
	})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.ErrorIs(t, err, ErrInvalidGate)
	assert.Len(t, verr.Fields, 3)
}
