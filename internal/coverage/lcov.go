package coverage

import (
	"bufio"
	"bytes"
	"strconv"
	"strings"
)

type lcovParser struct{}

type lcovFile struct {
	hits     map[int]int
	branches int
	covered  int
}

// ParseFiles reads SF/DA/BRF/BRH records. Line totals come from DA entries;
// branch totals come only from the BRF/BRH pair of each record.
func (lcovParser) ParseFiles(raw []byte) ([]FileCoverage, error) {
	byPath := map[string]*lcovFile{}
	order := []string{}
	var (
		current *lcovFile
		lineNo  int
	)

	scanner := bufio.NewScanner(bytes.NewReader(raw))
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if line == "end_of_record" {
			current = nil
			continue
		}
		tag, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}

		if tag == "SF" {
			path := strings.TrimSpace(value)
			if path == "" {
				return nil, parseErrorf(FormatLineCoverage, nil, "line %d: SF record without a file path", lineNo)
			}
			current = byPath[path]
			if current == nil {
				current = &lcovFile{hits: map[int]int{}}
				byPath[path] = current
				order = append(order, path)
			}
			continue
		}
		if current == nil {
			switch tag {
			case "DA", "BRF", "BRH", "LF", "LH":
				return nil, parseErrorf(FormatLineCoverage, nil, "line %d: %s record outside of an SF section", lineNo, tag)
			}
			continue
		}

		switch tag {
		case "DA":
			parts := strings.Split(value, ",")
			if len(parts) < 2 {
				return nil, parseErrorf(FormatLineCoverage, nil, "line %d: malformed DA record %q", lineNo, line)
			}
			n, err1 := strconv.Atoi(strings.TrimSpace(parts[0]))
			hits, err2 := parseHits(parts[1])
			if err1 != nil || err2 != nil || n <= 0 {
				return nil, parseErrorf(FormatLineCoverage, nil, "line %d: malformed DA record %q", lineNo, line)
			}
			current.hits[n] += hits
		case "BRF":
			n, err := strconv.Atoi(strings.TrimSpace(value))
			if err != nil || n < 0 {
				return nil, parseErrorf(FormatLineCoverage, nil, "line %d: malformed BRF record %q", lineNo, line)
			}
			current.branches += n
		case "BRH":
			n, err := strconv.Atoi(strings.TrimSpace(value))
			if err != nil || n < 0 {
				return nil, parseErrorf(FormatLineCoverage, nil, "line %d: malformed BRH record %q", lineNo, line)
			}
			current.covered += n
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, parseErrorf(FormatLineCoverage, err, "unreadable report: %v", err)
	}

	files := make([]FileCoverage, 0, len(order))
	for _, p := range order {
		lf := byPath[p]
		f := fileFromHits(p, lf.hits)
		f.Branches = lf.branches
		f.CoveredBranches = lf.covered
		files = append(files, f)
	}
	return files, nil
}

// parseHits accepts integer hit counts, tolerating the float form some tools emit.
func parseHits(raw string) (int, error) {
	raw = strings.TrimSpace(raw)
	if n, err := strconv.Atoi(raw); err == nil {
		if n < 0 {
			n = 0
		}
		return n, nil
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, err
	}
	if f < 0 {
		return 0, nil
	}
	return int(f), nil
}
