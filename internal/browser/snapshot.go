package browser

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// PageMap is a compact description of the interactive controls on a page,
// small enough to hand to a language model.
type PageMap struct {
	URL      string    `json:"url,omitempty"`
	Title    string    `json:"title"`
	Controls []Control `json:"controls"`
}

// Control represents an interactive element on the page
type Control struct {
	Selector    string `json:"selector"`
	Tag         string `json:"tag"`
	Type        string `json:"type,omitempty"`
	Text        string `json:"text,omitempty"`
	Placeholder string `json:"placeholder,omitempty"`
	Name        string `json:"name,omitempty"`
	ID          string `json:"id,omitempty"`
	AriaLabel   string `json:"ariaLabel,omitempty"`
	Role        string `json:"role,omitempty"`
}

const controlQuery = `button, [role="button"], input:not([type="hidden"]), textarea, select, a[href]`

var validIdent = regexp.MustCompile(`^-?[_a-zA-Z][_a-zA-Z0-9-]*$`)

// Capture snapshots the live page's controls
func Capture(ctx context.Context, page Page) (*PageMap, error) {
	html, err := page.HTML(ctx)
	if err != nil {
		return nil, fmt.Errorf("read page html: %w", err)
	}
	return Snapshot(html)
}

// Snapshot extracts the interactive controls from an HTML document.
// Selectors prefer id, then name, then aria-label, then visible text.
func Snapshot(html string) (*PageMap, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	pm := &PageMap{Title: strings.TrimSpace(doc.Find("title").First().Text())}
	seen := make(map[string]bool)

	doc.Find(controlQuery).Each(func(_ int, s *goquery.Selection) {
		if _, hidden := s.Attr("hidden"); hidden {
			return
		}
		tag := goquery.NodeName(s)
		c := Control{
			Tag:         tag,
			Type:        s.AttrOr("type", ""),
			Text:        truncate(strings.Join(strings.Fields(s.Text()), " "), 50),
			Placeholder: s.AttrOr("placeholder", ""),
			Name:        s.AttrOr("name", ""),
			ID:          s.AttrOr("id", ""),
			AriaLabel:   s.AttrOr("aria-label", ""),
			Role:        s.AttrOr("role", ""),
		}
		c.Selector = controlSelector(c)
		if c.Selector == "" || seen[c.Selector] {
			return
		}
		seen[c.Selector] = true
		pm.Controls = append(pm.Controls, c)
	})

	return pm, nil
}

func controlSelector(c Control) string {
	switch {
	case c.ID != "" && validIdent.MatchString(c.ID):
		return "#" + c.ID
	case c.Name != "":
		return fmt.Sprintf(`%s[name="%s"]`, c.Tag, c.Name)
	case c.AriaLabel != "":
		return fmt.Sprintf(`%s[aria-label="%s"]`, c.Tag, c.AriaLabel)
	case c.Text != "":
		return fmt.Sprintf(`%s:has-text("%s")`, c.Tag, c.Text)
	case c.Placeholder != "":
		return fmt.Sprintf(`%s[placeholder="%s"]`, c.Tag, c.Placeholder)
	}
	return ""
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
