// Package selector resolves semantic locators against a live page.
//
// A Spec carries a primary selector and an ordered list of fallbacks. The
// resolver tries them strictly in declared order and returns the first one
// that matches; there is no scoring. Authors rank fallbacks by confidence
// (id > name > text/ARIA > positional) and the linter enforces coverage.
package selector

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/v0xg/playbot/internal/browser"
)

// RecommendedFallbacks is the fallback count below which a spec is flagged.
const RecommendedFallbacks = 3

// Spec is one semantic locator.
type Spec struct {
	Primary  string         `json:"primary"`
	Fallback []string       `json:"fallback,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// New builds a Spec from a primary selector and its fallbacks.
func New(primary string, fallback ...string) Spec {
	return Spec{Primary: primary, Fallback: fallback}
}

// Candidates returns primary followed by fallbacks, skipping blanks.
func (s Spec) Candidates() []string {
	out := make([]string, 0, len(s.Fallback)+1)
	if strings.TrimSpace(s.Primary) != "" {
		out = append(out, s.Primary)
	}
	for _, f := range s.Fallback {
		if strings.TrimSpace(f) != "" {
			out = append(out, f)
		}
	}
	return out
}

func (s Spec) String() string {
	if len(s.Fallback) == 0 {
		return s.Primary
	}
	return fmt.Sprintf("%s (+%d fallback)", s.Primary, len(s.Fallback))
}

// Mode says what the caller intends to do with the element.
type Mode int

const (
	// Interact requires a visible element (click, fill, select, check).
	Interact Mode = iota
	// Read accepts any attached element (extraction, waits).
	Read
)

func (m Mode) String() string {
	if m == Read {
		return "read"
	}
	return "interact"
}

// ErrNotResolved is matched by every ResolutionError.
var ErrNotResolved = errors.New("selector not resolved")

// ResolutionError reports that no candidate of a Spec matched.
type ResolutionError struct {
	Spec   Spec
	Mode   Mode
	Tried  []string
	Hidden []string // candidates that matched only hidden elements
	Causes []error  // per-candidate query errors (invalid selectors)
}

func (e *ResolutionError) Error() string {
	msg := fmt.Sprintf("no element for %q (tried %d candidates, mode %s)", e.Spec.Primary, len(e.Tried), e.Mode)
	if len(e.Hidden) > 0 {
		msg += fmt.Sprintf("; hidden matches: %s", strings.Join(e.Hidden, ", "))
	}
	return msg
}

func (e *ResolutionError) Is(target error) bool {
	return target == ErrNotResolved
}

func (e *ResolutionError) Unwrap() []error {
	return e.Causes
}

// Resolution is a successful lookup.
type Resolution struct {
	Element  browser.Element
	Selector string // the candidate that matched
	Index    int    // 0 for primary, i+1 for Fallback[i]
}

// Healed reports whether a fallback was needed.
func (r Resolution) Healed() bool {
	return r.Index > 0
}

// Resolver performs single-pass, first-match-wins resolution. It keeps no
// state between calls; retries belong to the caller.
type Resolver struct {
	logger *slog.Logger
}

// NewResolver creates a resolver that logs healed lookups to logger.
func NewResolver(logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Resolver{logger: logger}
}

// Resolve tries spec.Primary, then each fallback in order, against q.
// In Interact mode a candidate whose matches are all hidden is a non-match.
func (r *Resolver) Resolve(ctx context.Context, q browser.Querier, spec Spec, mode Mode) (Resolution, error) {
	rerr := &ResolutionError{Spec: spec, Mode: mode}

	for i, candidate := range append([]string{spec.Primary}, spec.Fallback...) {
		if strings.TrimSpace(candidate) == "" {
			continue
		}
		if err := ctx.Err(); err != nil {
			return Resolution{}, err
		}
		rerr.Tried = append(rerr.Tried, candidate)

		els, err := q.QueryAll(ctx, candidate)
		if err != nil {
			if ctx.Err() != nil {
				return Resolution{}, ctx.Err()
			}
			rerr.Causes = append(rerr.Causes, fmt.Errorf("%s: %w", candidate, err))
			continue
		}
		if len(els) == 0 {
			continue
		}

		el, ok := pick(ctx, els, mode)
		if !ok {
			rerr.Hidden = append(rerr.Hidden, candidate)
			continue
		}

		if i > 0 {
			r.logger.Info("selector healed",
				"primary", spec.Primary,
				"matched", candidate,
				"fallback_index", i-1)
		}
		return Resolution{Element: el, Selector: candidate, Index: i}, nil
	}

	return Resolution{}, rerr
}

func pick(ctx context.Context, els []browser.Element, mode Mode) (browser.Element, bool) {
	if mode == Read {
		return els[0], true
	}
	for _, el := range els {
		visible, err := el.Visible(ctx)
		if err == nil && visible {
			return el, true
		}
	}
	return nil, false
}
