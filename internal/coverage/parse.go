package coverage

import (
	"bytes"
	"sort"
	"strings"
)

// Format identifies a coverage report format.
type Format string

const (
	FormatLineCoverage Format = "LINE_COVERAGE"
	FormatCobertura    Format = "COBERTURA_XML"
	FormatJaCoCo       Format = "JACOCO_XML"
)

// Parser turns raw report bytes into per-file coverage. Aggregation and
// percentages are computed by Parse, not by individual parsers.
type Parser interface {
	ParseFiles(raw []byte) ([]FileCoverage, error)
}

var parsers = map[Format]Parser{
	FormatLineCoverage: lcovParser{},
	FormatCobertura:    coberturaParser{},
	FormatJaCoCo:       jacocoParser{},
}

var formatAliases = map[string]Format{
	"line_coverage": FormatLineCoverage,
	"lcov":          FormatLineCoverage,
	"cobertura_xml": FormatCobertura,
	"cobertura":     FormatCobertura,
	"jacoco_xml":    FormatJaCoCo,
	"jacoco":        FormatJaCoCo,
}

// ParseFormat resolves a format tag or one of its aliases.
func ParseFormat(tag string) (Format, error) {
	f, ok := formatAliases[strings.ToLower(strings.TrimSpace(tag))]
	if !ok {
		return "", &ParseError{Message: "unsupported coverage format " + strings.TrimSpace(tag) + " (expected one of LINE_COVERAGE, COBERTURA_XML, JACOCO_XML)"}
	}
	return f, nil
}

// Formats lists the supported formats.
func Formats() []Format {
	out := make([]Format, 0, len(parsers))
	for f := range parsers {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Parse parses raw in the given format into the canonical shape.
func Parse(format Format, raw []byte) (ParsedCoverage, error) {
	p, ok := parsers[format]
	if !ok {
		return ParsedCoverage{}, &ParseError{Format: format, Message: "unsupported coverage format"}
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return ParsedCoverage{}, parseErrorf(format, nil, "coverage report is empty")
	}
	files, err := p.ParseFiles(raw)
	if err != nil {
		return ParsedCoverage{}, err
	}
	if len(files) == 0 {
		return ParsedCoverage{}, parseErrorf(format, nil, "coverage report contains no source files")
	}
	return aggregate(format, files), nil
}

func aggregate(format Format, files []FileCoverage) ParsedCoverage {
	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })

	out := ParsedCoverage{Format: format, Files: files}
	for i := range files {
		f := &files[i]
		f.Lines = nonNegative(f.Lines)
		f.CoveredLines = clamp(f.CoveredLines, f.Lines)
		f.Branches = nonNegative(f.Branches)
		f.CoveredBranches = clamp(f.CoveredBranches, f.Branches)
		f.CoveragePercent = RoundPercent(f.CoveredLines, f.Lines)
		if f.LineHits == nil {
			f.LineHits = map[int]int{}
		}

		out.TotalLines += f.Lines
		out.CoveredLines += f.CoveredLines
		out.TotalBranches += f.Branches
		out.CoveredBranches += f.CoveredBranches
	}
	out.CoveragePercent = RoundPercent(out.CoveredLines, out.TotalLines)
	out.BranchCoveragePercent = RoundPercent(out.CoveredBranches, out.TotalBranches)
	return out
}

// fileFromHits derives line totals from a line->hits map.
func fileFromHits(path string, hits map[int]int) FileCoverage {
	f := FileCoverage{Path: path, LineHits: hits, Lines: len(hits)}
	for _, h := range hits {
		if h > 0 {
			f.CoveredLines++
		}
	}
	return f
}

func nonNegative(v int) int {
	if v < 0 {
		return 0
	}
	return v
}

func clamp(v, max int) int {
	v = nonNegative(v)
	if v > max {
		return max
	}
	return v
}
