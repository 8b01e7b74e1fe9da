package playbook

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLintFallbackCount(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    []string
	}{
		{
			name:    "json two entries",
			content: `{"fallback": ["#a", "#b"]}`,
			want:    []string{"line 1: fallback has 2 entries (recommended: 3 or more)"},
		},
		{
			name:    "json three entries",
			content: `{"fallback": ["#a", "#b", "#c"]}`,
		},
		{
			name:    "bare key",
			content: "const spec = {\n  primary: '#x',\n  fallback: ['#y'],\n}",
			want:    []string{"line 3: fallback has 1 entries (recommended: 3 or more)"},
		},
		{
			name:    "empty array",
			content: `"fallback": []`,
			want:    []string{"line 1: fallback array is empty (recommended: 3 or more)"},
		},
		{
			name:    "brackets and commas inside strings",
			content: `"fallback": ["input[name=\"a,b\"]", "select[id='x']"]`,
			want:    []string{"line 1: fallback has 2 entries (recommended: 3 or more)"},
		},
		{
			name:    "trailing comma",
			content: `fallback: ["#a", "#b", "#c",]`,
		},
		{
			name:    "no fallback",
			content: `{"primary": "#a"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Lint(tt.content))
		})
	}
}

func TestLintEveryArray(t *testing.T) {
	content := "{\"fallback\": [\"#a\"]}\n{\"fallback\": [\"#a\", \"#b\", \"#c\"]}\n{\"fallback\": [\"#a\", \"#b\"]}"
	assert.Equal(t, []string{
		"line 1: fallback has 1 entries (recommended: 3 or more)",
		"line 3: fallback has 2 entries (recommended: 3 or more)",
	}, Lint(content))
}

func TestLintDynamicID(t *testing.T) {
	msgs := Lint(`{"primary": "#el_1699999999", "fallback": ["#a", "#b", "#c"]}`)
	require.Len(t, msgs, 1)
	assert.Contains(t, msgs[0], "dynamic id")
}

func TestHasDynamicID(t *testing.T) {
	assert.True(t, HasDynamicID("#el_1699999999"))
	assert.True(t, HasDynamicID("#btn-16999999991234"))
	assert.True(t, HasDynamicID(`div[id="row_1699999999"]`))
	assert.False(t, HasDynamicID("#fiscalYear"))
	assert.False(t, HasDynamicID("#row_123"))
	assert.False(t, HasDynamicID(`button:has-text("2025")`))
}

func TestLintEdit(t *testing.T) {
	content := `"fallback": ["#a"]`

	assert.NotEmpty(t, LintEdit(EditRequest{FilePath: "playbooks/card.json", Content: content}))
	assert.NotEmpty(t, LintEdit(EditRequest{FilePath: "internal/selector/healing.go", Content: content}))
	assert.Empty(t, LintEdit(EditRequest{FilePath: "README.md", Content: content}))
	assert.Empty(t, LintEdit(EditRequest{FilePath: "playbooks/card.json"}))
}

func TestParseEditRequest(t *testing.T) {
	req, err := ParseEditRequest([]byte(`{"tool_input":{"file_path":"a/playbook.json","content":"{}"}}`))
	require.NoError(t, err)
	assert.Equal(t, EditRequest{FilePath: "a/playbook.json", Content: "{}"}, req)

	req, err = ParseEditRequest([]byte(`{"tool_input":{"path":"b.ts","new_str":"x"}}`))
	require.NoError(t, err)
	assert.Equal(t, EditRequest{FilePath: "b.ts", Content: "x"}, req)

	_, err = ParseEditRequest([]byte(`not json`))
	assert.Error(t, err)
}

func TestIsPlaybookFile(t *testing.T) {
	assert.True(t, IsPlaybookFile("playbooks/card.json"))
	assert.True(t, IsPlaybookFile("/tmp/Login.Playbook.JSON"))
	assert.False(t, IsPlaybookFile("playbooks/README.md"))
	assert.False(t, IsPlaybookFile("config.json"))
}
