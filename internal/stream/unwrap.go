package stream

import (
	"encoding/json"
	"strings"
)

type envelope struct {
	Content string `json:"content"`
}

// Unwrap returns the content field when text is a JSON envelope carrying
// one, and the trimmed text otherwise.
func Unwrap(text string) string {
	raw := strings.TrimSpace(text)
	if env, ok := parseEnvelope(raw); ok && env.Content != "" {
		return env.Content
	}
	return raw
}

func parseEnvelope(raw string) (envelope, bool) {
	var env envelope
	if err := json.Unmarshal([]byte(raw), &env); err != nil {
		return envelope{}, false
	}
	return env, true
}

// Clean scrubs streaming artifacts from text about to be rendered.
func Clean(text string) string {
	text = dataMarker.ReplaceAllString(text, "")
	text = strings.TrimLeft(text, `"'`)
	text = strings.TrimRight(text, `"'`)
	return strings.TrimSpace(text)
}
