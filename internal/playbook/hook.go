package playbook

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/tidwall/gjson"
)

// EditRequest is the structured edit an editor hook receives on stdin.
type EditRequest struct {
	FilePath string
	Content  string
}

// ParseEditRequest reads {"tool_input": {...}} hook payloads.
func ParseEditRequest(data []byte) (EditRequest, error) {
	if !gjson.ValidBytes(data) {
		return EditRequest{}, fmt.Errorf("hook input is not valid JSON")
	}
	in := gjson.GetBytes(data, "tool_input")
	return EditRequest{
		FilePath: firstString(in, "file_path", "path"),
		Content:  firstString(in, "new_str", "new_string", "content"),
	}, nil
}

func firstString(obj gjson.Result, fields ...string) string {
	for _, f := range fields {
		if v := obj.Get(f); v.Type == gjson.String && v.Str != "" {
			return v.Str
		}
	}
	return ""
}

// IsPlaybookFile reports whether path names a playbook JSON document.
func IsPlaybookFile(path string) bool {
	lower := strings.ToLower(filepath.ToSlash(path))
	return strings.HasSuffix(lower, ".json") && strings.Contains(lower, "playbook")
}

// IsSelectorFile reports whether edits to path may touch selectors.
func IsSelectorFile(path string) bool {
	lower := strings.ToLower(path)
	for _, kw := range []string{"playbook", "selector", "healing"} {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// LintEdit lints the new content of an edit to a selector-bearing file.
// Edits to unrelated files produce nothing.
func LintEdit(req EditRequest) []string {
	if req.FilePath == "" || req.Content == "" || !IsSelectorFile(req.FilePath) {
		return nil
	}
	return Lint(req.Content)
}
