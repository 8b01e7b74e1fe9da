package playbook

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/v0xg/playbot/internal/selector"
)

var (
	fallbackKey = regexp.MustCompile(`"?fallback"?\s*:\s*\[`)

	// Session-generated ids embed a long numeric run, e.g. #el_1699999999.
	dynamicID = []*regexp.Regexp{
		regexp.MustCompile(`#[A-Za-z_][\w-]*?[_-]?\d{10,}`),
		regexp.MustCompile(`\[id\s*[~|^$*]?=\s*["']?[^"'\]]*\d{10,}`),
	}
)

// HasDynamicID reports whether s contains an id that looks session-generated.
func HasDynamicID(s string) bool {
	for _, re := range dynamicID {
		if re.MatchString(s) {
			return true
		}
	}
	return false
}

// Lint scans selector-bearing text and returns advisory messages. It never
// parses the content; counts are textual and best-effort.
func Lint(content string) []string {
	var msgs []string

	for _, loc := range fallbackKey.FindAllStringIndex(content, -1) {
		body, ok := bracketBody(content[loc[1]:])
		if !ok {
			continue
		}
		line := strings.Count(content[:loc[0]], "\n") + 1
		n := countEntries(body)
		switch {
		case n == 0:
			msgs = append(msgs, fmt.Sprintf("line %d: fallback array is empty (recommended: %d or more)", line, selector.RecommendedFallbacks))
		case n < selector.RecommendedFallbacks:
			msgs = append(msgs, fmt.Sprintf("line %d: fallback has %d entries (recommended: %d or more)", line, n, selector.RecommendedFallbacks))
		}
	}

	if HasDynamicID(content) {
		msgs = append(msgs, "dynamic id pattern detected (10+ digit run); prefer text or ARIA based selectors")
	}

	return msgs
}

// bracketBody returns the text up to the ']' closing an array whose '[' has
// already been consumed. Brackets inside string literals are ignored.
func bracketBody(s string) (string, bool) {
	depth := 0
	var quote byte
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case quote != 0:
			if c == '\\' {
				i++
			} else if c == quote {
				quote = 0
			}
		case c == '"' || c == '\'' || c == '`':
			quote = c
		case c == '[':
			depth++
		case c == ']':
			if depth == 0 {
				return s[:i], true
			}
			depth--
		}
	}
	return "", false
}

// countEntries counts the top-level, comma-separated entries of an array body.
func countEntries(body string) int {
	if strings.TrimSpace(body) == "" {
		return 0
	}
	n := 1
	depth := 0
	var quote byte
	last := 0
	for i := 0; i < len(body); i++ {
		c := body[i]
		switch {
		case quote != 0:
			if c == '\\' {
				i++
			} else if c == quote {
				quote = 0
			}
		case c == '"' || c == '\'' || c == '`':
			quote = c
		case c == '[' || c == '{' || c == '(':
			depth++
		case c == ']' || c == '}' || c == ')':
			depth--
		case c == ',' && depth == 0:
			n++
			last = i
		}
	}
	// trailing comma
	if last > 0 && strings.TrimSpace(body[last+1:]) == "" {
		n--
	}
	return n
}
