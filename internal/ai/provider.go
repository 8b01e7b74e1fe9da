package ai

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/v0xg/playbot/internal/browser"
	"github.com/v0xg/playbot/internal/playbook"
)

// Request describes a step whose selectors stopped resolving.
type Request struct {
	Step  playbook.Step
	Page  *browser.PageMap
	Tried []string // candidates that failed, in order
}

// Provider defines the interface for fallback selector suggestions
type Provider interface {
	SuggestFallbacks(ctx context.Context, req Request) ([]string, error)
}

// NewProvider creates a new AI provider based on the provider name
func NewProvider(name, model string) (Provider, error) {
	switch name {
	case "claude", "anthropic":
		return NewClaudeProvider(model)
	case "openai", "gpt":
		return NewOpenAIProvider(model)
	default:
		return nil, fmt.Errorf("unknown provider: %s (supported: claude, openai)", name)
	}
}

// Suggest asks p for fallbacks and keeps only usable ones, in the
// provider's order. Suggestions are advisory; nothing is written back.
func Suggest(ctx context.Context, p Provider, req Request) ([]string, error) {
	raw, err := p.SuggestFallbacks(ctx, req)
	if err != nil {
		return nil, err
	}
	return Filter(raw, req.Tried), nil
}

// Filter drops blank and duplicate candidates, candidates already tried, and
// candidates keyed on generated ids.
func Filter(candidates, tried []string) []string {
	out := make([]string, 0, len(candidates))
	for _, c := range candidates {
		c = strings.TrimSpace(c)
		if c == "" || slices.Contains(tried, c) || slices.Contains(out, c) {
			continue
		}
		if playbook.HasDynamicID(c) {
			continue
		}
		out = append(out, c)
	}
	return out
}
