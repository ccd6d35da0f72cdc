// Package json extracts JSON payloads from model output.
//
// Models asked for structured output often wrap the object in
// markdown fences or surrounding prose. Callers get the bare
// payload back, best effort: brace matching, not a full parser.
package json

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ExtractObject returns the JSON payload inside text. It tries the
// fence-stripped text as a whole first, then the widest {...} window.
func ExtractObject(text string) (string, error) {
	candidate := stripFences(strings.TrimSpace(text))

	if json.Valid([]byte(candidate)) {
		return candidate, nil
	}

	start := strings.Index(candidate, "{")
	end := strings.LastIndex(candidate, "}")
	if start != -1 && end > start {
		window := candidate[start : end+1]
		if json.Valid([]byte(window)) {
			return window, nil
		}
	}

	preview := text
	if len(preview) > 100 {
		preview = preview[:100] + "..."
	}
	return "", fmt.Errorf("no JSON payload found in model output: %q", preview)
}

// stripFences removes a leading ```json or ``` marker and a trailing
// ``` marker, if present.
func stripFences(s string) string {
	if strings.HasPrefix(s, "```json") {
		s = strings.TrimSpace(strings.TrimPrefix(s, "```json"))
	} else if strings.HasPrefix(s, "```") {
		s = strings.TrimSpace(strings.TrimPrefix(s, "```"))
	}
	if strings.HasSuffix(s, "```") {
		s = strings.TrimSpace(strings.TrimSuffix(s, "```"))
	}
	return s
}
