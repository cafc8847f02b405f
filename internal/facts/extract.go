// Package facts turns a zero-context unified diff into the ordered list of
// added-line facts that is submitted to the authority.
package facts

import (
	"regexp"
	"strconv"
	"strings"
)

// Fact is one added line in the post-diff file.
type Fact struct {
	File  string `json:"file"`
	Line  int    `json:"line"`
	Added string `json:"added"`
}

const newFileMarker = "+++ b/"

var hunkHeader = regexp.MustCompile(`^@@ -\d+(?:,\d+)? \+(\d+)(?:,(\d+))? @@`)

// Extract scans diff text produced with --unified=0 and returns one Fact per
// added line, in diff order. It never fails: input it does not understand
// yields fewer (or no) facts.
//
// Lines before the first "+++ b/" header and hunk header pair are ignored.
// Deletions and "\ No newline at end of file" markers do not advance the
// new-file line cursor; any other non-addition line does.
func Extract(diff string) []Fact {
	facts := []Fact{}
	if diff == "" {
		return facts
	}

	var (
		file    string
		next    int
		hasFile bool
		hasLine bool
	)

	for _, line := range splitLines(diff) {
		if strings.HasPrefix(line, newFileMarker) {
			file = line[len(newFileMarker):]
			hasFile = true
			hasLine = false
			continue
		}

		if m := hunkHeader.FindStringSubmatch(line); m != nil {
			n, err := strconv.Atoi(m[1])
			if err != nil {
				// Overflowing start: treat the hunk as unusable.
				hasLine = false
				continue
			}
			next = n
			hasLine = true
			continue
		}

		if !hasFile || !hasLine {
			continue
		}

		switch {
		case strings.HasPrefix(line, "+") && !strings.HasPrefix(line, "+++"):
			facts = append(facts, Fact{File: file, Line: next, Added: line[1:]})
			next++
		case strings.HasPrefix(line, "-") && !strings.HasPrefix(line, "---"):
		case strings.HasPrefix(line, `\`):
		default:
			next++
		}
	}

	return facts
}

// splitLines splits on '\n' and drops one trailing '\r' per line. A final
// newline does not produce an empty trailing line.
func splitLines(s string) []string {
	s = strings.TrimSuffix(s, "\n")
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimSuffix(l, "\r")
	}
	return lines
}
