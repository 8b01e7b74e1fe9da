package playbook

import (
	"fmt"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/v0xg/playbot/internal/selector"
)

// Result holds validation findings. Errors block execution; warnings are advisory.
type Result struct {
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings"`
}

// Valid reports whether there are no errors.
func (r *Result) Valid() bool {
	return len(r.Errors) == 0
}

func (r *Result) errorf(format string, args ...any) {
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
}

func (r *Result) warnf(format string, args ...any) {
	r.Warnings = append(r.Warnings, fmt.Sprintf(format, args...))
}

// ValidationError is returned when a playbook fails schema validation.
type ValidationError struct {
	Errors []string
}

func (e *ValidationError) Error() string {
	if len(e.Errors) == 1 {
		return "invalid playbook: " + e.Errors[0]
	}
	return fmt.Sprintf("invalid playbook (%d errors):\n  - %s", len(e.Errors), strings.Join(e.Errors, "\n  - "))
}

func allowedTypes() string {
	names := make([]string, len(StepTypes))
	for i, t := range StepTypes {
		names[i] = string(t)
	}
	return strings.Join(names, ", ")
}

// Validate checks a raw playbook document against the schema. It works on
// the undecoded JSON so that an absent field and an empty one can be told
// apart. The output depends only on data.
func Validate(data []byte) *Result {
	res := &Result{Errors: []string{}, Warnings: []string{}}

	if !gjson.ValidBytes(data) {
		res.errorf("invalid JSON document")
		return res
	}
	doc := gjson.ParseBytes(data)
	if !doc.IsObject() {
		res.errorf("playbook must be a JSON object")
		return res
	}

	requireText(res, doc, "id", "")
	requireText(res, doc, "name", "")

	if start := doc.Get("start_url"); !start.Exists() {
		res.warnf("Missing 'start_url' (advisory)")
	} else if start.Type != gjson.String {
		res.errorf("Field 'start_url' must be a string")
	}

	steps := doc.Get("steps")
	switch {
	case !steps.Exists():
		res.errorf("Missing required field: steps")
	case !steps.IsArray():
		res.errorf("'steps' must be an array")
	case len(steps.Array()) == 0:
		res.errorf("'steps' array is empty")
	default:
		for i, step := range steps.Array() {
			validateStep(res, step, fmt.Sprintf("Step %d", i+1))
		}
	}

	return res
}

// requireText checks a required, non-blank string field. prefix is empty for
// document-level fields.
func requireText(res *Result, obj gjson.Result, field, prefix string) {
	v := obj.Get(field)
	switch {
	case !v.Exists() && prefix == "":
		res.errorf("Missing required field: %s", field)
	case !v.Exists():
		res.errorf("%s: Missing '%s'", prefix, field)
	case v.Type != gjson.String && prefix == "":
		res.errorf("Field '%s' must be a string", field)
	case v.Type != gjson.String:
		res.errorf("%s: '%s' must be a string", prefix, field)
	case strings.TrimSpace(v.Str) == "" && prefix == "":
		res.errorf("Field '%s' must not be blank", field)
	case strings.TrimSpace(v.Str) == "":
		res.errorf("%s: '%s' must not be blank", prefix, field)
	}
}

func validateStep(res *Result, step gjson.Result, prefix string) {
	if !step.IsObject() {
		res.errorf("%s: must be an object", prefix)
		return
	}

	requireText(res, step, "id", prefix)

	typ := step.Get("type")
	stepType := StepType(typ.Str)
	typeOK := false
	switch {
	case !typ.Exists():
		res.errorf("%s: Missing 'type'", prefix)
	case typ.Type != gjson.String || !stepType.Valid():
		res.errorf("%s: Invalid type '%s' (allowed: %s)", prefix, typ.String(), allowedTypes())
	default:
		typeOK = true
	}

	requireText(res, step, "message", prefix)

	sel := step.Get("selector")
	switch {
	case sel.Exists():
		validateSelector(res, sel, prefix)
	case typeOK && stepType.NeedsSelector():
		res.errorf("%s: Missing 'selector'", prefix)
	}

	for _, field := range []string{"value", "url"} {
		if v := step.Get(field); v.Exists() && v.Type != gjson.String {
			res.errorf("%s: '%s' must be a string", prefix, field)
		}
	}
	if typeOK && stepType == Fill && !step.Get("value").Exists() {
		res.warnf("%s: fill step has no 'value'", prefix)
	}

	timeout := step.Get("timeout")
	switch {
	case !timeout.Exists():
		res.warnf("%s: no 'timeout' (default applies)", prefix)
	case timeout.Type != gjson.Number || strings.ContainsAny(timeout.Raw, "-.eE"):
		res.errorf("%s: 'timeout' must be a non-negative integer (milliseconds)", prefix)
	case timeout.Num > MaxTimeout:
		res.errorf("%s: 'timeout' must not exceed %d ms", prefix, MaxTimeout)
	}
}

func validateSelector(res *Result, sel gjson.Result, prefix string) {
	if !sel.IsObject() {
		res.errorf("%s: 'selector' must be an object", prefix)
		return
	}

	primary := sel.Get("primary")
	switch {
	case !primary.Exists() || (primary.Type == gjson.String && strings.TrimSpace(primary.Str) == ""):
		res.errorf("%s: Missing 'selector.primary'", prefix)
	case primary.Type != gjson.String:
		res.errorf("%s: 'selector.primary' must be a string", prefix)
	}

	fallback := sel.Get("fallback")
	count := 0
	if fallback.Exists() {
		if !fallback.IsArray() {
			res.errorf("%s: 'selector.fallback' must be an array of strings", prefix)
			return
		}
		for _, f := range fallback.Array() {
			if f.Type != gjson.String {
				res.errorf("%s: 'selector.fallback' must be an array of strings", prefix)
				return
			}
		}
		count = len(fallback.Array())
	}
	if count < selector.RecommendedFallbacks {
		res.warnf("%s: fallback has %d entries (recommended: %d or more)", prefix, count, selector.RecommendedFallbacks)
	}

	if md := sel.Get("metadata"); md.Exists() && !md.IsObject() {
		res.errorf("%s: 'selector.metadata' must be an object", prefix)
	}
}
