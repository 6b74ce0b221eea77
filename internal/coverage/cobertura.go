package coverage

import (
	"bytes"
	"encoding/xml"
	"errors"
	"regexp"
	"strconv"
	"strings"
)

type coberturaParser struct{}

type coberturaReport struct {
	XMLName  xml.Name           `xml:"coverage"`
	Packages []coberturaPackage `xml:"packages>package"`
}

type coberturaPackage struct {
	Classes []coberturaClass `xml:"classes>class"`
}

type coberturaClass struct {
	Filename string          `xml:"filename,attr"`
	Lines    []coberturaLine `xml:"lines>line"`
}

type coberturaLine struct {
	Number            string `xml:"number,attr"`
	Hits              string `xml:"hits,attr"`
	Branch            string `xml:"branch,attr"`
	ConditionCoverage string `xml:"condition-coverage,attr"`
}

type lineBranches struct {
	covered int
	total   int
}

var conditionCoverageRe = regexp.MustCompile(`\((\d+)\s*/\s*(\d+)\)`)

// ParseFiles merges class records per filename. A branch line takes its
// counts from the "(covered/total)" annotation, or counts as one branch
// covered iff the line was hit.
func (coberturaParser) ParseFiles(raw []byte) ([]FileCoverage, error) {
	var report coberturaReport
	if err := decodeXML(raw, &report); err != nil {
		return nil, parseErrorf(FormatCobertura, err, "malformed Cobertura XML: expected a <coverage> document (%s)", xmlReason(err))
	}

	hitsByPath := map[string]map[int]int{}
	branchesByPath := map[string]map[int]lineBranches{}
	order := []string{}

	for _, pkg := range report.Packages {
		for _, cls := range pkg.Classes {
			path := strings.TrimSpace(cls.Filename)
			if path == "" {
				return nil, parseErrorf(FormatCobertura, nil, "class element without a filename attribute")
			}
			if _, ok := hitsByPath[path]; !ok {
				hitsByPath[path] = map[int]int{}
				branchesByPath[path] = map[int]lineBranches{}
				order = append(order, path)
			}
			for _, ln := range cls.Lines {
				n, err := strconv.Atoi(strings.TrimSpace(ln.Number))
				if err != nil || n <= 0 {
					return nil, parseErrorf(FormatCobertura, err, "%s: invalid line number %q", path, ln.Number)
				}
				hits, err := parseHits(defaultString(ln.Hits, "0"))
				if err != nil {
					return nil, parseErrorf(FormatCobertura, err, "%s:%d: invalid hits %q", path, n, ln.Hits)
				}
				hitsByPath[path][n] += hits

				if !strings.EqualFold(strings.TrimSpace(ln.Branch), "true") {
					continue
				}
				b := branchCounts(ln.ConditionCoverage, hits)
				if prev, ok := branchesByPath[path][n]; ok {
					b = mergeBranches(prev, b)
				}
				branchesByPath[path][n] = b
			}
		}
	}

	files := make([]FileCoverage, 0, len(order))
	for _, path := range order {
		f := fileFromHits(path, hitsByPath[path])
		for _, b := range branchesByPath[path] {
			f.Branches += b.total
			f.CoveredBranches += b.covered
		}
		files = append(files, f)
	}
	return files, nil
}

func branchCounts(conditionCoverage string, hits int) lineBranches {
	if m := conditionCoverageRe.FindStringSubmatch(conditionCoverage); m != nil {
		covered, _ := strconv.Atoi(m[1])
		total, _ := strconv.Atoi(m[2])
		return lineBranches{covered: clamp(covered, total), total: total}
	}
	b := lineBranches{total: 1}
	if hits > 0 {
		b.covered = 1
	}
	return b
}

// mergeBranches keeps the richer record when the same line appears in
// several classes of one file.
func mergeBranches(a, b lineBranches) lineBranches {
	total := a.total
	if b.total > total {
		total = b.total
	}
	covered := a.covered
	if b.covered > covered {
		covered = b.covered
	}
	return lineBranches{covered: clamp(covered, total), total: total}
}

func decodeXML(raw []byte, v any) error {
	dec := xml.NewDecoder(bytes.NewReader(raw))
	dec.Strict = true
	return dec.Decode(v)
}

func xmlReason(err error) string {
	var synErr *xml.SyntaxError
	if errors.As(err, &synErr) {
		return "syntax error on line " + strconv.Itoa(synErr.Line) + ": " + synErr.Msg
	}
	return err.Error()
}

func defaultString(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}
