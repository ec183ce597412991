package pdf

import (
	"regexp"
	"strings"
	"unicode"
)

var (
	urlRE   = regexp.MustCompile(`https?://\S+`)
	spaceRE = regexp.MustCompile(`[ \t]+`)
	blankRE = regexp.MustCompile(`\n{3,}`)
)

// Clean normalizes extracted text before chunking: strips control
// characters, removes URLs, collapses runs of spaces and blank lines,
// and trims surrounding whitespace.
func Clean(text string) string {
	text = strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' {
			return r
		}
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, text)

	text = urlRE.ReplaceAllString(text, "")
	text = spaceRE.ReplaceAllString(text, " ")

	// Trim trailing spaces per line so blank-line collapsing sees them.
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, " \t")
	}
	text = strings.Join(lines, "\n")
	text = blankRE.ReplaceAllString(text, "\n\n")

	return strings.TrimSpace(text)
}
