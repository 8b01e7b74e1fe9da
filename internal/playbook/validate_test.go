package playbook

import (
	"encoding/json"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const loginPlaybook = `{
  "id": "login",
  "name": "Portal login",
  "start_url": "https://portal.example/login",
  "steps": [
    {
      "id": "user",
      "type": "fill",
      "message": "Enter user id",
      "value": "{{user}}",
      "timeout": 5000,
      "selector": {
        "primary": "#userId",
        "fallback": ["input[name=\"userId\"]", "input[placeholder*=\"아이디\"]", "input[type=\"text\"]"]
      }
    },
    {
      "id": "submit",
      "type": "click",
      "message": "Submit",
      "timeout": 5000,
      "selector": {
        "primary": "button[type=\"submit\"]",
        "fallback": ["button:has-text(\"로그인\")", ".login-btn", "#loginBtn"]
      }
    },
    {
      "id": "settle",
      "type": "wait",
      "message": "Wait for the dashboard",
      "timeout": 500
    }
  ]
}`

func TestValidateValid(t *testing.T) {
	res := Validate([]byte(loginPlaybook))
	assert.True(t, res.Valid(), "errors: %v", res.Errors)
	assert.Empty(t, res.Errors)
	assert.Empty(t, res.Warnings)
}

func TestValidateDeterministic(t *testing.T) {
	doc := []byte(`{"id":"x","steps":[{"type":"hover","selector":{"primary":"#a"}},{"id":"b","type":"teleport"}]}`)
	first := Validate(doc)
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, Validate(doc))
	}
	assert.False(t, first.Valid())
}

func TestValidateRequiredFields(t *testing.T) {
	// Removing exactly one required field must add exactly one error that names it.
	cases := []struct {
		path string
		want string
	}{
		{"id", "Missing required field: id"},
		{"name", "Missing required field: name"},
		{"steps", "Missing required field: steps"},
		{"steps.0.id", "Step 1: Missing 'id'"},
		{"steps.0.type", "Step 1: Missing 'type'"},
		{"steps.0.message", "Step 1: Missing 'message'"},
		{"steps.1.selector", "Step 2: Missing 'selector'"},
		{"steps.1.selector.primary", "Step 2: Missing 'selector.primary'"},
	}

	for _, tc := range cases {
		t.Run(tc.path, func(t *testing.T) {
			doc := without(t, loginPlaybook, tc.path)
			res := Validate(doc)
			require.Len(t, res.Errors, 1, "errors: %v", res.Errors)
			assert.Equal(t, tc.want, res.Errors[0])
		})
	}
}

func TestValidateSelectorExemptTypes(t *testing.T) {
	for _, typ := range []StepType{Navigate, Wait, Screenshot} {
		t.Run(string(typ), func(t *testing.T) {
			doc := `{"id":"p","name":"P","start_url":"https://x","steps":[{"id":"s","type":"` + string(typ) + `","message":"m","timeout":100}]}`
			res := Validate([]byte(doc))
			assert.True(t, res.Valid(), "errors: %v", res.Errors)
		})
	}

	for _, typ := range []StepType{Click, Fill, Select, Hover, Check, Uncheck} {
		t.Run(string(typ)+" requires selector", func(t *testing.T) {
			doc := `{"id":"p","name":"P","steps":[{"id":"s","type":"` + string(typ) + `","message":"m","value":"v"}]}`
			res := Validate([]byte(doc))
			assert.Contains(t, res.Errors, "Step 1: Missing 'selector'")
		})
	}
}

func TestValidateFallbackCoverage(t *testing.T) {
	step := func(fallback string) []byte {
		return []byte(`{"id":"p","name":"P","start_url":"https://x","steps":[{"id":"s","type":"click","message":"m","timeout":1,"selector":{"primary":"#a","fallback":` + fallback + `}}]}`)
	}

	res := Validate(step(`["#b","#c"]`))
	assert.True(t, res.Valid())
	require.Len(t, res.Warnings, 1)
	assert.Contains(t, res.Warnings[0], "fallback has 2 entries")

	res = Validate(step(`["#b","#c","#d"]`))
	assert.True(t, res.Valid())
	assert.Empty(t, res.Warnings)

	res = Validate(step(`"#b"`))
	assert.Contains(t, res.Errors, "Step 1: 'selector.fallback' must be an array of strings")
}

func TestValidateInvalidType(t *testing.T) {
	res := Validate([]byte(`{"id":"p","name":"P","steps":[{"id":"s","type":"teleport","message":"m"}]}`))
	require.Len(t, res.Errors, 1)
	assert.True(t, strings.HasPrefix(res.Errors[0], "Step 1: Invalid type 'teleport'"))
	assert.Contains(t, res.Errors[0], "click, fill, select, navigate, wait, screenshot, hover, check, uncheck")
}

func TestValidateDocumentShape(t *testing.T) {
	assert.Equal(t, []string{"invalid JSON document"}, Validate([]byte(`{"id":`)).Errors)
	assert.Equal(t, []string{"playbook must be a JSON object"}, Validate([]byte(`[1,2]`)).Errors)
	assert.Contains(t, Validate([]byte(`{"id":"a","name":"b","steps":[]}`)).Errors, "'steps' array is empty")
	assert.Contains(t, Validate([]byte(`{"id":"a","name":"b","steps":{}}`)).Errors, "'steps' must be an array")
	assert.Contains(t, Validate([]byte(`{"id":7,"name":"b","steps":[]}`)).Errors, "Field 'id' must be a string")
}

func TestValidateWarnings(t *testing.T) {
	res := Validate([]byte(`{"id":"p","name":"P","steps":[{"id":"s","type":"fill","message":"m","selector":{"primary":"#a","fallback":["#b","#c","#d"]}}]}`))
	assert.True(t, res.Valid())
	assert.Equal(t, []string{
		"Missing 'start_url' (advisory)",
		"Step 1: fill step has no 'value'",
		"Step 1: no 'timeout' (default applies)",
	}, res.Warnings)
}

func TestValidateTimeout(t *testing.T) {
	for _, bad := range []string{`-1`, `1.5`, `"100"`, `1000.0`, `1e3`, `1E3`} {
		res := Validate([]byte(`{"id":"p","name":"P","steps":[{"id":"s","type":"wait","message":"m","timeout":` + bad + `}]}`))
		assert.Contains(t, res.Errors, "Step 1: 'timeout' must be a non-negative integer (milliseconds)", bad)
	}

	res := Validate([]byte(`{"id":"p","name":"P","steps":[{"id":"s","type":"wait","message":"m","timeout":3600001}]}`))
	assert.Equal(t, []string{"Step 1: 'timeout' must not exceed 3600000 ms"}, res.Errors)

	for _, good := range []string{`0`, `1000`, `3600000`} {
		res := Validate([]byte(`{"id":"p","name":"P","steps":[{"id":"s","type":"wait","message":"m","timeout":` + good + `}]}`))
		assert.Empty(t, res.Errors, good)
	}
}

// Anything the validator accepts must also decode.
func TestValidateAgreesWithParse(t *testing.T) {
	for _, timeout := range []string{`1000.0`, `1e3`, `2500`} {
		doc := []byte(`{"id":"p","name":"P","start_url":"https://x","steps":[{"id":"s","type":"wait","message":"m","timeout":` + timeout + `}]}`)
		res := Validate(doc)
		_, _, err := Parse(doc)
		assert.Equal(t, res.Valid(), err == nil, timeout)
	}
}

func TestTimeoutOr(t *testing.T) {
	assert.Equal(t, 5*time.Second, Step{}.TimeoutOr(5*time.Second))
	assert.Equal(t, 250*time.Millisecond, Step{Timeout: 250}.TimeoutOr(time.Second))
	assert.Equal(t, time.Hour, Step{Timeout: math.MaxInt}.TimeoutOr(time.Second))
}

func TestParse(t *testing.T) {
	pb, res, err := Parse([]byte(loginPlaybook))
	require.NoError(t, err)
	assert.True(t, res.Valid())

	assert.Equal(t, "login", pb.ID)
	require.Len(t, pb.Steps, 3)
	assert.Equal(t, Fill, pb.Steps[0].Type)
	assert.Equal(t, "#userId", pb.Steps[0].Selector.Primary)
	assert.Len(t, pb.Steps[0].Selector.Fallback, 3)
	assert.Nil(t, pb.Steps[2].Selector)
}

func TestParseRejectsInvalid(t *testing.T) {
	_, res, err := Parse(without(t, loginPlaybook, "name"))
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, res.Errors, verr.Errors)
	assert.Contains(t, err.Error(), "Missing required field: name")
}

func TestInterpolate(t *testing.T) {
	vars := map[string]string{"user": "kim", "year": "2025"}
	assert.Equal(t, "kim", Interpolate("{{user}}", vars))
	assert.Equal(t, "FY 2025 for kim", Interpolate("FY {{ year }} for {{user}}", vars))
	assert.Equal(t, "{{missing}}", Interpolate("{{missing}}", vars))
	assert.Equal(t, "plain", Interpolate("plain", nil))
}

// without deletes the field at a dotted path from a JSON document.
func without(t *testing.T, doc, path string) []byte {
	t.Helper()

	var root any
	require.NoError(t, json.Unmarshal([]byte(doc), &root))

	parts := strings.Split(path, ".")
	node := root
	for _, p := range parts[:len(parts)-1] {
		switch n := node.(type) {
		case map[string]any:
			node = n[p]
		case []any:
			var idx int
			for _, r := range p {
				idx = idx*10 + int(r-'0')
			}
			node = n[idx]
		}
	}
	obj, ok := node.(map[string]any)
	require.True(t, ok, "parent of %s is not an object", path)
	delete(obj, parts[len(parts)-1])

	out, err := json.Marshal(root)
	require.NoError(t, err)
	return out
}
