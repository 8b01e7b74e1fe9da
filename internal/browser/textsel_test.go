package browser

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSplitList(t *testing.T) {
	tests := []struct {
		name     string
		selector string
		want     []string
	}{
		{"single", "#save", []string{"#save"}},
		{"two alternatives", `input[name="userId"], input#userId`, []string{`input[name="userId"]`, "input#userId"}},
		{"comma in quotes", `button:has-text("a, b"), .x`, []string{`button:has-text("a, b")`, ".x"}},
		{"comma in brackets", `[data-x="1,2"]`, []string{`[data-x="1,2"]`}},
		{"trailing comma", "a, ", []string{"a"}},
		{"empty", "", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SplitList(tt.selector))
		})
	}
}

func TestParseTextSelector(t *testing.T) {
	tests := []struct {
		part string
		want textSelector
	}{
		{`button:has-text("저장")`, textSelector{CSS: "button", Text: "저장"}},
		{`a:has-text('등록')`, textSelector{CSS: "a", Text: "등록"}},
		{`:has-text("조회")`, textSelector{CSS: "*", Text: "조회"}},
		{`button.save-btn`, textSelector{CSS: "button.save-btn"}},
		{`div:has-text("x") > span`, textSelector{CSS: "div > span", Text: "x"}},
	}

	for _, tt := range tests {
		t.Run(tt.part, func(t *testing.T) {
			assert.Equal(t, tt.want, parseTextSelector(tt.part))
		})
	}
}

func TestHasTextFilter(t *testing.T) {
	assert.True(t, HasTextFilter(`button:has-text("로그인")`))
	assert.False(t, HasTextFilter(`button[type="submit"]`))
}
