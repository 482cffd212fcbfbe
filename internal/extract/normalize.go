package extract

import (
	"regexp"
	"strings"
)

var (
	// fencePattern matches a triple-backtick block, including its delimiters
	fencePattern = regexp.MustCompile("(?s)```.*?```")

	// separatorPattern matches a separator with any whitespace around it.
	// Newlines next to a separator are consumed, joining the two lines.
	separatorPattern = regexp.MustCompile(`\s*[-:–—]\s*`)

	// bulletPattern matches a leading bullet or heading marker
	bulletPattern = regexp.MustCompile(`^[-*\x{2022}]\s*`)
)

// Normalize strips code fences and converts separators to commas.
//
//	"```\n2014 - 120\n2015: 98\n```" -> "2014,120\n2015,98"
//
// Normalize is idempotent.
func Normalize(raw string) string {
	text := fencePattern.ReplaceAllStringFunc(raw, func(block string) string {
		return strings.Trim(block, "`")
	})
	text = strings.Trim(text, "`\n\r ")

	return separatorPattern.ReplaceAllString(text, ",")
}

// tokenize splits one normalized line into trimmed, non-empty tokens
func tokenize(line string) []string {
	line = bulletPattern.ReplaceAllString(line, "")

	if !strings.Contains(line, ",") {
		return strings.Fields(line)
	}

	var tokens []string
	for _, part := range strings.Split(line, ",") {
		if part = strings.TrimSpace(part); part != "" {
			tokens = append(tokens, part)
		}
	}
	return tokens
}
