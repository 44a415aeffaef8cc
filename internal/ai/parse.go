package ai

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	appErr "github.com/xxxsen/persona/internal/pkg/errors"
)

// Model output is expected to be a JSON object but arrives without any
// schema guarantee: wrapped in code fences, prefixed with prose, carrying
// trailing commas or text after the closing brace. ParseObject applies
// repair steps one at a time, attempting a decode after each, so every step
// stays independently testable.
func ParseObject(raw string, dst interface{}) error {
	candidate := strings.TrimSpace(raw)
	steps := []func(string) string{
		func(s string) string { return s },
		StripCodeFence,
		ExtractBraces,
		RepairTrailingCommas,
	}
	for _, step := range steps {
		candidate = step(candidate)
		if tryDecodeObject(candidate, dst) {
			return nil
		}
	}
	return fmt.Errorf("unparseable model output: %w", appErr.ErrInvalid)
}

// tryDecodeObject probes with a throwaway map first so a failed attempt
// never leaves dst partially filled. Using a Decoder rather than Unmarshal
// tolerates trailing text after the object.
func tryDecodeObject(s string, dst interface{}) bool {
	var probe map[string]interface{}
	if err := json.NewDecoder(strings.NewReader(s)).Decode(&probe); err != nil {
		return false
	}
	return json.NewDecoder(strings.NewReader(s)).Decode(dst) == nil
}

// StripCodeFence unwraps the first ```-fenced block, dropping the info
// string on the opening fence.
func StripCodeFence(s string) string {
	start := strings.Index(s, "```")
	if start < 0 {
		return s
	}
	rest := s[start+3:]
	if nl := strings.IndexByte(rest, '\n'); nl >= 0 && !strings.Contains(rest[:nl], "{") {
		rest = rest[nl+1:]
	}
	if end := strings.LastIndex(rest, "```"); end >= 0 {
		rest = rest[:end]
	}
	return strings.TrimSpace(rest)
}

// ExtractBraces cuts the substring from the first '{' to the last '}'.
func ExtractBraces(s string) string {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end <= start {
		return s
	}
	return s[start : end+1]
}

var trailingCommaRegex = regexp.MustCompile(`,\s*([}\]])`)

// RepairTrailingCommas removes commas dangling before a closing brace or
// bracket.
func RepairTrailingCommas(s string) string {
	return trailingCommaRegex.ReplaceAllString(s, "$1")
}
