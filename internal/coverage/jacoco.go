package coverage

import (
	"encoding/xml"
	"path"
	"strings"
)

type jacocoParser struct{}

type jacocoReport struct {
	XMLName  xml.Name        `xml:"report"`
	Groups   []jacocoGroup   `xml:"group"`
	Packages []jacocoPackage `xml:"package"`
}

type jacocoGroup struct {
	Groups   []jacocoGroup   `xml:"group"`
	Packages []jacocoPackage `xml:"package"`
}

type jacocoPackage struct {
	Name        string             `xml:"name,attr"`
	SourceFiles []jacocoSourceFile `xml:"sourcefile"`
}

type jacocoSourceFile struct {
	Name  string       `xml:"name,attr"`
	Lines []jacocoLine `xml:"line"`
}

type jacocoLine struct {
	Nr int `xml:"nr,attr"`
	MI int `xml:"mi,attr"`
	CI int `xml:"ci,attr"`
	MB int `xml:"mb,attr"`
	CB int `xml:"cb,attr"`
}

// ParseFiles reads per-line instruction and branch counters. A line is
// covered iff its covered-instruction counter is positive; its branch total
// is covered+missed branches.
func (jacocoParser) ParseFiles(raw []byte) ([]FileCoverage, error) {
	var report jacocoReport
	if err := decodeXML(raw, &report); err != nil {
		return nil, parseErrorf(FormatJaCoCo, err, "malformed JaCoCo XML: expected a <report> document (%s)", xmlReason(err))
	}

	packages := append([]jacocoPackage{}, report.Packages...)
	for _, g := range report.Groups {
		packages = append(packages, flattenGroup(g)...)
	}

	type jacocoFile struct {
		hits     map[int]int
		branches int
		covered  int
	}
	byPath := map[string]*jacocoFile{}
	order := []string{}
	for _, pkg := range packages {
		for _, sf := range pkg.SourceFiles {
			name := strings.TrimSpace(sf.Name)
			if name == "" {
				return nil, parseErrorf(FormatJaCoCo, nil, "sourcefile element without a name in package %q", pkg.Name)
			}
			p := name
			if pkg.Name != "" {
				p = path.Join(pkg.Name, name)
			}
			f, ok := byPath[p]
			if !ok {
				f = &jacocoFile{hits: map[int]int{}}
				byPath[p] = f
				order = append(order, p)
			}
			for _, ln := range sf.Lines {
				if ln.Nr <= 0 {
					return nil, parseErrorf(FormatJaCoCo, nil, "%s: invalid line number %d", p, ln.Nr)
				}
				if ln.MI < 0 || ln.CI < 0 || ln.MB < 0 || ln.CB < 0 {
					return nil, parseErrorf(FormatJaCoCo, nil, "%s:%d: negative counter", p, ln.Nr)
				}
				f.hits[ln.Nr] += ln.CI
				f.branches += ln.MB + ln.CB
				f.covered += ln.CB
			}
		}
	}

	files := make([]FileCoverage, 0, len(order))
	for _, p := range order {
		jf := byPath[p]
		f := fileFromHits(p, jf.hits)
		f.Branches = jf.branches
		f.CoveredBranches = jf.covered
		files = append(files, f)
	}
	return files, nil
}

func flattenGroup(g jacocoGroup) []jacocoPackage {
	out := append([]jacocoPackage{}, g.Packages...)
	for _, child := range g.Groups {
		out = append(out, flattenGroup(child)...)
	}
	return out
}
