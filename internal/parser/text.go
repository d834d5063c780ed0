package parser

import (
	"html"
	"regexp"
	"strings"
)

var (
	wordRunRe    = regexp.MustCompile(`<w:t(?:\s[^>]*)?>([^<]*)</w:t>|</w:p>`)
	drawingRunRe = regexp.MustCompile(`<a:t(?:\s[^>]*)?>([^<]*)</a:t>|</a:p>`)

	blankLinesRe = regexp.MustCompile(`\n{3,}`)
	strayCharsRe = regexp.MustCompile(`[^\p{L}\p{M}\p{N}_\s\p{Zs}.,;:!?()\-]`)
)

// extractRuns concatenates the text runs of an OOXML part, starting a new
// line at every paragraph end.
func extractRuns(xml string, re *regexp.Regexp, paragraphEnd string) string {
	var b strings.Builder
	for _, m := range re.FindAllStringSubmatchIndex(xml, -1) {
		if xml[m[0]:m[1]] == paragraphEnd {
			b.WriteByte('\n')
			continue
		}
		b.WriteString(html.UnescapeString(xml[m[2]:m[3]]))
	}
	return strings.TrimSpace(b.String())
}

// CleanText collapses runs of blank lines and drops characters outside
// letters, digits, whitespace and basic punctuation.
func CleanText(text string) string {
	text = blankLinesRe.ReplaceAllString(text, "\n\n")
	return strayCharsRe.ReplaceAllString(text, "")
}
