package gemini

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var ErrNoJSONObject = errors.New("no JSON object in model reply")

// ExtractJSONObject returns the text from the first '{' through the last '}'
// once it parses as a JSON object. Models often wrap the object in prose or
// markdown fences.
func ExtractJSONObject(text string) (json.RawMessage, error) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end < start {
		return nil, ErrNoJSONObject
	}
	candidate := text[start : end+1]
	var obj map[string]json.RawMessage
	if err := json.Unmarshal([]byte(candidate), &obj); err != nil {
		return nil, fmt.Errorf("decode model JSON: %w", err)
	}
	return json.RawMessage(candidate), nil
}
