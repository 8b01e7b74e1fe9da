package ai

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
)

const maxSuggestions = 5

const systemPrompt = `You repair CSS selectors for browser automation playbooks that drive a Korean government subsidy portal.

You will receive:
1. The failing step: its type, message and the selectors that no longer match
2. A page map listing the interactive controls currently on the page

Output a JSON array of replacement selectors, best first. Rules:
- Only use elements present in the page map
- Rank by stability: id, then name attribute, then visible text or ARIA label, then position
- Visible text may be matched with the :has-text("...") extension, e.g. button:has-text("저장")
- Never use ids or attributes that contain long digit runs (timestamps, session or row ids)
- Return at most 5 selectors; return [] if nothing on the page fits the step

Example output:
["#saveBtn", "button[name=\"save\"]", "button:has-text(\"저장\")"]

Respond ONLY with the JSON array, no explanation or markdown.`

func buildUserPrompt(req Request) (string, error) {
	pageMapJSON, err := json.MarshalIndent(req.Page, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal page map: %w", err)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Step %q (%s): %s\n", req.Step.ID, req.Step.Type, req.Step.Message)
	if len(req.Tried) > 0 {
		b.WriteString("Selectors that failed:\n")
		for _, s := range req.Tried {
			b.WriteString("- " + s + "\n")
		}
	}
	b.WriteString("\nPage map:\n")
	b.Write(pageMapJSON)
	return b.String(), nil
}

// parseSelectorsJSON extracts a JSON array from a response that may contain
// surrounding text. Items may be strings or objects with a "selector" field.
func parseSelectorsJSON(response string) ([]string, error) {
	body := strings.TrimSpace(response)
	if !gjson.Valid(body) || !gjson.Parse(body).IsArray() {
		start := strings.Index(body, "[")
		end := strings.LastIndex(body, "]")
		if start == -1 || end < start {
			return nil, fmt.Errorf("no JSON array found in response")
		}
		body = body[start : end+1]
		if !gjson.Valid(body) {
			return nil, fmt.Errorf("invalid JSON array in response")
		}
	}

	var out []string
	for _, item := range gjson.Parse(body).Array() {
		s := item.String()
		if item.IsObject() {
			s = item.Get("selector").String()
		}
		if s != "" {
			out = append(out, s)
		}
		if len(out) == maxSuggestions {
			break
		}
	}
	return out, nil
}
