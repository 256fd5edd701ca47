package classifier

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"call-outcomes-go/internal/types"
)

var (
	ErrNoJSONObject         = errors.New("no JSON object in model output")
	ErrConfidenceOutOfRange = errors.New("confidence outside [0,1]")
)

const (
	defaultGenerativeComment  = "automatic analysis by the generative classifier"
	defaultMissingConfidence  = 0.5
	invalidCategoryConfidence = 0.3
)

// Verdict is the validated content of one model response.
type Verdict struct {
	Category   types.Category
	Comment    string
	Confidence float64 // 0-1
	// Corrected is set when the model named an unknown category and the
	// verdict was coerced to Failed.
	Corrected bool
}

// ExtractJSONObject returns the first balanced {...} in s. Braces inside JSON
// strings are ignored, so prose, code fences and nested objects around or
// inside the object do not confuse it. Returns "" when there is none.
func ExtractJSONObject(s string) string {
	start := strings.Index(s, "{")
	for start != -1 {
		if end := matchBrace(s, start); end != -1 {
			return s[start : end+1]
		}
		// unbalanced from here; try the next opening brace
		next := strings.Index(s[start+1:], "{")
		if next == -1 {
			return ""
		}
		start += next + 1
	}
	return ""
}

func matchBrace(s string, start int) int {
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		ch := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}
		switch ch {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

// ParseVerdict extracts and validates the model's {category, comment,
// confidence} object. Unparseable output and numeric confidence outside
// [0,1] are errors; an unknown category, a missing confidence or an empty
// comment are corrected in place.
func ParseVerdict(content string) (Verdict, error) {
	obj := ExtractJSONObject(content)
	if obj == "" {
		return Verdict{}, ErrNoJSONObject
	}
	var raw map[string]any
	if err := json.Unmarshal([]byte(obj), &raw); err != nil {
		return Verdict{}, fmt.Errorf("parse model JSON: %w", err)
	}

	v := Verdict{Confidence: defaultMissingConfidence}
	if c, ok := raw["confidence"].(float64); ok {
		if c < 0 || c > 1 {
			return Verdict{}, fmt.Errorf("%w: %v", ErrConfidenceOutOfRange, c)
		}
		v.Confidence = c
	}

	name, _ := raw["category"].(string)
	cat, ok := types.ParseCategory(name)
	if !ok {
		v.Category = types.Failed
		v.Confidence = invalidCategoryConfidence
		v.Comment = fmt.Sprintf("invalid category %q returned by the model, classified as Failed", name)
		v.Corrected = true
		return v, nil
	}
	v.Category = cat

	comment, _ := raw["comment"].(string)
	v.Comment = strings.TrimSpace(comment)
	if v.Comment == "" {
		v.Comment = defaultGenerativeComment
	}
	return v, nil
}
