package extraction

import (
	"regexp"
	"strings"
)

// Rule is one named pattern in an ordered per-field rule table. Exclude vetoes a
// line that Pattern would otherwise claim.
type Rule[K comparable] struct {
	Key     K
	Name    string
	Pattern *regexp.Regexp
	Exclude *regexp.Regexp
}

// Match returns the submatch indices of the rule on line.
func (r Rule[K]) Match(line string) ([]int, bool) {
	if r.Exclude != nil && r.Exclude.MatchString(line) {
		return nil, false
	}
	loc := r.Pattern.FindStringSubmatchIndex(line)
	if loc == nil {
		return nil, false
	}
	return loc, true
}

// FirstRule returns the first rule in table order that claims line.
func FirstRule[K comparable](rules []Rule[K], line string) (Rule[K], []int, bool) {
	for _, rule := range rules {
		if loc, ok := rule.Match(line); ok {
			return rule, loc, true
		}
	}
	var zero Rule[K]
	return zero, nil, false
}

// Group returns submatch n from loc, or "" when it did not participate.
func Group(line string, loc []int, n int) string {
	if 2*n+1 >= len(loc) || loc[2*n] < 0 {
		return ""
	}
	return line[loc[2*n]:loc[2*n+1]]
}

// Lines splits text into trimmed lines, dropping blanks.
func Lines(text string) []string {
	raw := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	out := make([]string, 0, len(raw))
	for _, line := range raw {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		out = append(out, line)
	}
	return out
}

// RowText joins the non-empty cells of a table row with single spaces.
func RowText(row []string) string {
	parts := make([]string, 0, len(row))
	for _, cell := range row {
		cell = strings.TrimSpace(cell)
		if cell == "" {
			continue
		}
		parts = append(parts, cell)
	}
	return strings.Join(parts, " ")
}

// Cell returns the trimmed cell at index i, or "" when the row is short.
func Cell(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}
