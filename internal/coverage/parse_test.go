package coverage

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readFixture(t *testing.T, name string) []byte {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("testdata", name))
	require.NoError(t, err)
	return data
}

func assertAggregatesMatchFiles(t *testing.T, got ParsedCoverage) {
	t.Helper()
	var lines, covered, branches, coveredBranches int
	for _, f := range got.Files {
		assert.GreaterOrEqual(t, f.Lines, 0)
		assert.LessOrEqual(t, f.CoveredLines, f.Lines, f.Path)
		assert.LessOrEqual(t, f.CoveredBranches, f.Branches, f.Path)
		assert.Len(t, f.LineHits, f.Lines, f.Path)
		lines += f.Lines
		covered += f.CoveredLines
		branches += f.Branches
		coveredBranches += f.CoveredBranches
	}
	assert.Equal(t, lines, got.TotalLines)
	assert.Equal(t, covered, got.CoveredLines)
	assert.Equal(t, branches, got.TotalBranches)
	assert.Equal(t, coveredBranches, got.CoveredBranches)
	assert.Equal(t, RoundPercent(got.CoveredLines, got.TotalLines), got.CoveragePercent)
}

func TestParseFixtures(t *testing.T) {
	tests := []struct {
		name            string
		format          Format
		fixture         string
		paths           []string
		totalBranches   int
		coveredBranches int
		branchPercent   float64
	}{
		{
			name:            "lcov",
			format:          FormatLineCoverage,
			fixture:         "lcov.info",
			paths:           []string{"src/a.go", "src/b.go"},
			totalBranches:   2,
			coveredBranches: 2,
			branchPercent:   100,
		},
		{
			name:            "cobertura",
			format:          FormatCobertura,
			fixture:         "cobertura.xml",
			paths:           []string{"src/a.py", "src/b.py"},
			totalBranches:   3,
			coveredBranches: 2,
			branchPercent:   66.67,
		},
		{
			name:            "jacoco",
			format:          FormatJaCoCo,
			fixture:         "jacoco.xml",
			paths:           []string{"com/example/A.java", "com/example/B.java"},
			totalBranches:   4,
			coveredBranches: 3,
			branchPercent:   75,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(tt.format, readFixture(t, tt.fixture))
			require.NoError(t, err)

			assertAggregatesMatchFiles(t, got)
			assert.Equal(t, tt.format, got.Format)
			require.Len(t, got.Files, len(tt.paths))
			for i, p := range tt.paths {
				assert.Equal(t, p, got.Files[i].Path)
			}
			assert.Equal(t, 17, got.TotalLines)
			assert.Equal(t, 15, got.CoveredLines)
			assert.Equal(t, 88.24, got.CoveragePercent)
			assert.Equal(t, tt.totalBranches, got.TotalBranches)
			assert.Equal(t, tt.coveredBranches, got.CoveredBranches)
			assert.Equal(t, tt.branchPercent, got.BranchCoveragePercent)

			first := got.Files[0]
			assert.Equal(t, 10, first.Lines)
			assert.Equal(t, 10, first.CoveredLines)
			assert.Equal(t, 100.0, first.CoveragePercent)
		})
	}
}

func TestAggregateScenario(t *testing.T) {
	got := aggregate(FormatLineCoverage, []FileCoverage{
		{Path: "b", Lines: 7, CoveredLines: 5},
		{Path: "a", Lines: 10, CoveredLines: 10, Branches: 2, CoveredBranches: 2},
	})
	assert.Equal(t, 17, got.TotalLines)
	assert.Equal(t, 15, got.CoveredLines)
	assert.Equal(t, 88.24, got.CoveragePercent)
	assert.Equal(t, "a", got.Files[0].Path)
	assert.Equal(t, 71.43, got.Files[1].CoveragePercent)
}

func TestRoundPercent(t *testing.T) {
	tests := []struct {
		covered, total int
		want           float64
	}{
		{0, 0, 0},
		{5, 0, 0},
		{0, 10, 0},
		{15, 17, 88.24},
		{1, 3, 33.33},
		{2, 3, 66.67},
		{1, 8, 12.5},
		{1, 16, 6.25},
		{1, 32, 3.13},
		{10, 10, 100},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, RoundPercent(tt.covered, tt.total), "%d/%d", tt.covered, tt.total)
	}
}

func TestLineCoverageLineRules(t *testing.T) {
	raw := []byte("SF:x.go\nDA:1,0\nDA:2,3\nDA:2,1\nDA:3,0.0\nBRF:4\nBRH:9\nend_of_record\n")
	got, err := Parse(FormatLineCoverage, raw)
	require.NoError(t, err)
	f := got.Files[0]
	assert.Equal(t, 3, f.Lines)
	assert.Equal(t, 1, f.CoveredLines)
	assert.Equal(t, 4, f.LineHits[2])
	assert.Equal(t, 4, f.Branches)
	assert.Equal(t, 4, f.CoveredBranches, "BRH is clamped to BRF")
}

func TestCoberturaBranchFallback(t *testing.T) {
	raw := []byte(`<coverage><packages><package><classes>
<class filename="m.py"><lines>
<line number="1" hits="2" branch="true"/>
<line number="2" hits="0" branch="true"/>
<line number="3" hits="1" branch="true" condition-coverage="25% (1/4)"/>
</lines></class>
</classes></package></packages></coverage>`)
	got, err := Parse(FormatCobertura, raw)
	require.NoError(t, err)
	f := got.Files[0]
	assert.Equal(t, 6, f.Branches)
	assert.Equal(t, 2, f.CoveredBranches)
}

func TestJaCoCoLineCoveredByInstructionsOnly(t *testing.T) {
	raw := []byte(`<report name="r"><package name="p"><sourcefile name="S.java">
<line nr="1" mi="1" ci="0" mb="0" cb="2"/>
<line nr="2" mi="0" ci="1" mb="3" cb="0"/>
</sourcefile></package></report>`)
	got, err := Parse(FormatJaCoCo, raw)
	require.NoError(t, err)
	f := got.Files[0]
	assert.Equal(t, "p/S.java", f.Path)
	assert.Equal(t, 2, f.Lines)
	assert.Equal(t, 1, f.CoveredLines)
	assert.Equal(t, 5, f.Branches)
	assert.Equal(t, 2, f.CoveredBranches)
}

func TestParseErrorsAreUserFacing(t *testing.T) {
	tests := []struct {
		name    string
		format  Format
		raw     string
		message string
	}{
		{name: "empty lcov", format: FormatLineCoverage, raw: "  \n", message: "empty"},
		{name: "lcov without files", format: FormatLineCoverage, raw: "TN:\n", message: "no source files"},
		{name: "lcov bad DA", format: FormatLineCoverage, raw: "SF:a\nDA:x,1\n", message: "malformed DA"},
		{name: "lcov DA before SF", format: FormatLineCoverage, raw: "DA:1,1\n", message: "outside of an SF section"},
		{name: "cobertura garbage", format: FormatCobertura, raw: "<coverage><packages>", message: "malformed Cobertura XML"},
		{name: "cobertura wrong root", format: FormatCobertura, raw: "<report/>", message: "malformed Cobertura XML"},
		{name: "cobertura empty", format: FormatCobertura, raw: "<coverage/>", message: "no source files"},
		{name: "jacoco garbage", format: FormatJaCoCo, raw: "not xml", message: "malformed JaCoCo XML"},
		{name: "unknown format", format: Format("CLOVER"), raw: "x", message: "unsupported"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.format, []byte(tt.raw))
			require.Error(t, err)
			var perr *ParseError
			require.True(t, errors.As(err, &perr), "expected ParseError, got %T", err)
			assert.Contains(t, perr.Error(), tt.message)
		})
	}
}

func TestParseFormatAliases(t *testing.T) {
	for tag, want := range map[string]Format{
		"LINE_COVERAGE": FormatLineCoverage,
		"lcov":          FormatLineCoverage,
		"Cobertura":     FormatCobertura,
		"COBERTURA_XML": FormatCobertura,
		" jacoco ":      FormatJaCoCo,
	} {
		got, err := ParseFormat(tag)
		require.NoError(t, err, tag)
		assert.Equal(t, want, got, tag)
	}
	_, err := ParseFormat("clover")
	assert.Error(t, err)
	assert.Len(t, Formats(), 3)
}
