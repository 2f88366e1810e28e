package analysis

import (
	"encoding/json"
	"strings"

	"clipsight/errors"
	"clipsight/models"
)

// ParseResult converts the raw model text into an AnalysisResult. An empty
// response and a malformed one are distinct parse failures, never confused
// with transport failures. Field values are passed through as returned by
// the model: severity and confidence are not re-clamped.
func ParseResult(raw string) (*models.AnalysisResult, error) {
	const op = "analysis.ParseResult"

	text := stripCodeFence(strings.TrimSpace(raw))
	if text == "" {
		return nil, errors.Parse(op, nil, "No response from model")
	}

	var result models.AnalysisResult
	if err := json.Unmarshal([]byte(text), &result); err != nil {
		return nil, errors.Parse(op, err, "Malformed response from model")
	}

	if result.Events == nil {
		result.Events = []models.SecurityEvent{}
	}

	return &result, nil
}

// stripCodeFence removes a markdown fence some models wrap around JSON
// output even when a JSON response type is requested.
func stripCodeFence(text string) string {
	if !strings.HasPrefix(text, "```") {
		return text
	}

	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(strings.TrimSpace(text), "```")
	return strings.TrimSpace(text)
}
