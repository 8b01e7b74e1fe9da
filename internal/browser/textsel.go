package browser

import (
	"strings"
)

const hasTextPseudo = ":has-text("

// textSelector is one alternative of a selector list, with the
// :has-text() filter split out from the plain CSS.
type textSelector struct {
	CSS  string
	Text string // empty when the alternative has no :has-text filter
}

// SplitList splits a selector list on its top-level commas. Commas inside
// quotes, brackets or parentheses are kept.
func SplitList(selector string) []string {
	var (
		parts []string
		depth int
		quote rune
		start int
	)
	for i, r := range selector {
		switch {
		case quote != 0:
			if r == quote {
				quote = 0
			}
		case r == '"' || r == '\'':
			quote = r
		case r == '(' || r == '[':
			depth++
		case r == ')' || r == ']':
			if depth > 0 {
				depth--
			}
		case r == ',' && depth == 0:
			if part := strings.TrimSpace(selector[start:i]); part != "" {
				parts = append(parts, part)
			}
			start = i + 1
		}
	}
	if part := strings.TrimSpace(selector[start:]); part != "" {
		parts = append(parts, part)
	}
	return parts
}

// HasTextFilter reports whether any alternative uses :has-text().
func HasTextFilter(selector string) bool {
	return strings.Contains(selector, hasTextPseudo)
}

// parseTextSelector splits `button.save:has-text("저장")` into
// CSS `button.save` and text `저장`. A bare `:has-text("x")` matches any element.
func parseTextSelector(part string) textSelector {
	idx := strings.Index(part, hasTextPseudo)
	if idx < 0 {
		return textSelector{CSS: part}
	}

	rest := part[idx+len(hasTextPseudo):]
	end := strings.LastIndex(rest, ")")
	if end < 0 {
		return textSelector{CSS: part}
	}

	text := strings.TrimSpace(rest[:end])
	if len(text) >= 2 && (text[0] == '"' || text[0] == '\'') && text[len(text)-1] == text[0] {
		text = text[1 : len(text)-1]
	}

	css := strings.TrimSpace(part[:idx] + rest[end+1:])
	if css == "" {
		css = "*"
	}
	return textSelector{CSS: css, Text: text}
}
