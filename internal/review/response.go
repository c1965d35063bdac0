package review

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// ErrMalformedResponse is returned when a reply holds no usable JSON object.
var ErrMalformedResponse = errors.New("malformed review response")

// Proposal is one correction suggested by the reviewer. It is untrusted
// until checked against the current text.
type Proposal struct {
	Paragraph  int      `json:"paragraph"`
	Error      string   `json:"error"`
	Correction string   `json:"correction"`
	Type       string   `json:"type"`
	Confidence *float64 `json:"confidence,omitempty"`
	Batch      int      `json:"block"`
	Module     string   `json:"module,omitempty"`

	missing []string
}

const responseSchemaJSON = `{
  "type": "object",
  "required": ["corrections"],
  "properties": {
    "corrections": {
      "type": "array",
      "items": {"type": "object"}
    }
  }
}`

var responseSchema = jsonschema.MustCompileString("response.json", responseSchemaJSON)

var (
	codeBlockRe = regexp.MustCompile("(?s)^```(?:json)?\\s*(.*?)\\s*```$")
	objectRe    = regexp.MustCompile(`(?s)\{.*\}`)
)

func stripCodeBlock(s string) string {
	s = strings.TrimSpace(s)
	if m := codeBlockRe.FindStringSubmatch(s); len(m) > 1 {
		return m[1]
	}
	return s
}

// extractJSON pulls the outermost object out of a reply that may carry
// prose or code fences around it.
func extractJSON(s string) string {
	s = stripCodeBlock(s)
	if m := objectRe.FindString(s); m != "" {
		return m
	}
	return s
}

// ParseResponse decodes a reviewer reply into proposals. Entries missing
// required fields are kept and rejected later by ValidateProposal.
func ParseResponse(reply string) ([]Proposal, error) {
	raw := extractJSON(reply)

	var doc any
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if err := responseSchema.Validate(doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	items := doc.(map[string]any)["corrections"].([]any)
	out := make([]Proposal, 0, len(items))
	for _, item := range items {
		out = append(out, decodeProposal(item.(map[string]any)))
	}
	return out, nil
}

func decodeProposal(m map[string]any) Proposal {
	var p Proposal

	idx, ok := m["paragraph"]
	if !ok {
		idx, ok = m["text"]
	}
	if n, valid := asInt(idx); ok && valid {
		p.Paragraph = n
	} else {
		p.missing = append(p.missing, "paragraph")
	}

	for _, f := range []struct {
		key string
		dst *string
	}{
		{"error", &p.Error},
		{"correction", &p.Correction},
		{"type", &p.Type},
	} {
		s, ok := m[f.key].(string)
		if !ok {
			p.missing = append(p.missing, f.key)
			continue
		}
		*f.dst = s
	}

	if c, ok := asFloat(m["confidence"]); ok {
		p.Confidence = &c
	}
	return p
}

func asInt(v any) (int, bool) {
	switch x := v.(type) {
	case float64:
		return int(x), true
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(x))
		return n, err == nil
	}
	return 0, false
}

func asFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		return f, err == nil
	}
	return 0, false
}
