package sanitize

import (
	"bytes"
	"strings"

	derrors "git.home.luguber.info/inful/docweaver/internal/errors"
)

// Payload parses model output that nominally contains a JSON object but may
// arrive wrapped in a single pair of enclosing quote characters, in
// triple-backtick fences (with or without a language tag), or JSON-encoded as
// a string. Attempts, in order: direct parse; strip one layer of wrapping and
// re-parse; fail with a malformed_json classification.
//
// Malformed JSON is a content-quality failure handled by the orchestrator's
// bounded retry path. It is never a continuation signal.
func Payload(data []byte) (*Object, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, derrors.MalformedJSON(errEmpty{})
	}

	obj, err := parseObject(trimmed)
	if err == nil {
		return obj, nil
	}

	stripped, changed := stripWrapping(trimmed)
	if changed {
		if obj, retryErr := parseObject(stripped); retryErr == nil {
			return obj, nil
		}
	}

	return nil, derrors.MalformedJSON(err)
}

type errEmpty struct{}

func (errEmpty) Error() string { return "empty content" }

// parseObject decodes data and requires the result to be a JSON object.
// A JSON-encoded string whose content is itself an object is unwrapped,
// which also converts escaped newlines, quotes, and backslashes.
func parseObject(data []byte) (*Object, error) {
	v, err := Decode(data)
	if err != nil {
		return nil, err
	}
	switch t := v.(type) {
	case *Object:
		return t, nil
	case string:
		inner, err := Decode([]byte(t))
		if err != nil {
			return nil, err
		}
		if obj, ok := inner.(*Object); ok {
			return obj, nil
		}
		return nil, errNotObject{}
	default:
		return nil, errNotObject{}
	}
}

type errNotObject struct{}

func (errNotObject) Error() string { return "content is not a JSON object" }

// stripWrapping removes one layer of enclosing quotes or code fences.
// It reports whether anything was removed.
func stripWrapping(data []byte) ([]byte, bool) {
	s := strings.TrimSpace(string(data))

	if inner, ok := stripFences(s); ok {
		return []byte(strings.TrimSpace(inner)), true
	}
	if inner, ok := stripQuotePair(s); ok {
		return []byte(strings.TrimSpace(inner)), true
	}
	return data, false
}

// stripFences removes a ```lang ... ``` or ``` ... ``` wrapper.
func stripFences(s string) (string, bool) {
	if !strings.HasPrefix(s, "```") {
		return s, false
	}
	rest := s[3:]
	// Drop an optional language tag up to the first newline.
	if idx := strings.IndexByte(rest, '\n'); idx >= 0 {
		firstLine := strings.TrimSpace(rest[:idx])
		if firstLine == "" || isLanguageTag(firstLine) {
			rest = rest[idx+1:]
		}
	}
	rest = strings.TrimSpace(rest)
	if !strings.HasSuffix(rest, "```") {
		// Truncated fence: strip the opener anyway so the parser sees the
		// payload; a truncated body still fails the JSON parse.
		return rest, true
	}
	return strings.TrimSuffix(rest, "```"), true
}

func isLanguageTag(s string) bool {
	for _, r := range s {
		if (r < 'a' || r > 'z') && (r < 'A' || r > 'Z') && (r < '0' || r > '9') {
			return false
		}
	}
	return len(s) <= 16
}

// stripQuotePair removes one pair of matching single or double quotes
// enclosing the whole payload. The closing quote may be missing when the
// output was truncated mid-stream.
func stripQuotePair(s string) (string, bool) {
	if len(s) < 2 {
		return s, false
	}
	open := s[0]
	if open != '\'' && open != '"' {
		return s, false
	}
	if s[len(s)-1] == open {
		return s[1 : len(s)-1], true
	}
	// Opening quote with no closing partner: truncated wrap.
	return s[1:], true
}
