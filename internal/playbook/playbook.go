// Package playbook defines the declarative step format shared by every
// automation, together with its validator and the selector linter.
package playbook

import (
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/v0xg/playbot/internal/selector"
)

// StepType is the action a step performs
type StepType string

const (
	Click      StepType = "click"
	Fill       StepType = "fill"
	Select     StepType = "select"
	Navigate   StepType = "navigate"
	Wait       StepType = "wait"
	Screenshot StepType = "screenshot"
	Hover      StepType = "hover"
	Check      StepType = "check"
	Uncheck    StepType = "uncheck"
)

// StepTypes lists every valid step type in schema order.
var StepTypes = []StepType{Click, Fill, Select, Navigate, Wait, Screenshot, Hover, Check, Uncheck}

// Valid reports whether t is a known step type.
func (t StepType) Valid() bool {
	for _, known := range StepTypes {
		if t == known {
			return true
		}
	}
	return false
}

// NeedsSelector reports whether steps of this type must carry a selector.
func (t StepType) NeedsSelector() bool {
	switch t {
	case Navigate, Wait, Screenshot:
		return false
	}
	return true
}

// Interactive reports whether the step acts on an element and therefore
// requires it to be visible.
func (t StepType) Interactive() bool {
	switch t {
	case Click, Fill, Select, Check, Uncheck, Hover:
		return true
	}
	return false
}

// Playbook is a named list of steps
type Playbook struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	StartURL string `json:"start_url,omitempty"`
	Steps    []Step `json:"steps"`
}

// Step is a single UI interaction
type Step struct {
	ID       string         `json:"id"`
	Type     StepType       `json:"type"`
	Message  string         `json:"message"`
	Selector *selector.Spec `json:"selector,omitempty"`
	Value    string         `json:"value,omitempty"`
	URL      string         `json:"url,omitempty"`
	Timeout  int            `json:"timeout,omitempty"` // milliseconds; 0 means executor default
}

// MaxTimeout is the largest step timeout accepted, in milliseconds (one hour).
const MaxTimeout = 3_600_000

// TimeoutOr returns the step timeout, or def when the step has none.
// Timeouts above MaxTimeout are clamped.
func (s Step) TimeoutOr(def time.Duration) time.Duration {
	if s.Timeout <= 0 {
		return def
	}
	return time.Duration(min(s.Timeout, MaxTimeout)) * time.Millisecond
}

// Target returns the navigation URL of a navigate step.
func (s Step) Target() string {
	if s.URL != "" {
		return s.URL
	}
	return s.Value
}

// Parse validates raw JSON and decodes it. A document with errors is
// rejected with a *ValidationError; warnings are returned alongside.
func Parse(data []byte) (*Playbook, *Result, error) {
	res := Validate(data)
	if !res.Valid() {
		return nil, res, &ValidationError{Errors: res.Errors}
	}

	var pb Playbook
	if err := json.Unmarshal(data, &pb); err != nil {
		return nil, res, fmt.Errorf("decode playbook: %w", err)
	}
	return &pb, res, nil
}

// Load reads and parses a playbook file
func Load(path string) (*Playbook, *Result, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("read playbook: %w", err)
	}
	return Parse(data)
}

var variablePattern = regexp.MustCompile(`\{\{\s*([a-zA-Z_][a-zA-Z0-9_.]*)\s*\}\}`)

// Interpolate replaces {{name}} placeholders with vars[name]. Unknown names
// are left as written so a missing variable is visible in the logs.
func Interpolate(s string, vars map[string]string) string {
	if len(vars) == 0 || !strings.Contains(s, "{{") {
		return s
	}
	return variablePattern.ReplaceAllStringFunc(s, func(match string) string {
		name := variablePattern.FindStringSubmatch(match)[1]
		if v, ok := vars[name]; ok {
			return v
		}
		return match
	})
}
