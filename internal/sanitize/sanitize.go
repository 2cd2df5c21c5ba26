// Package sanitize turns raw model output into validated post structures.
//
// Everything here is pure: no network, no files.
package sanitize

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Kind distinguishes parse failures.
type Kind string

const (
	KindMalformedJSON  Kind = "malformed_json"
	KindSchemaMismatch Kind = "schema_mismatch"
)

// ParseError reports model output that could not be turned into the expected shape.
type ParseError struct {
	Kind Kind
	// Text is the fence-stripped output that failed.
	Text   string
	Reason string
	Err    error
}

func (e *ParseError) Error() string {
	if e == nil {
		return "parse error"
	}
	msg := string(e.Kind)
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ParseError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

const fence = "```"

// StripFences removes a surrounding markdown code fence, with or without a
// language tag, and the whitespace around it.
func StripFences(raw string) string {
	s := strings.TrimSpace(raw)
	if strings.HasPrefix(s, fence) {
		s = strings.TrimPrefix(s, fence)
		s = strings.TrimLeftFunc(s, isTagRune)
	}
	if strings.HasSuffix(s, fence) {
		s = strings.TrimSuffix(s, fence)
	}
	return strings.TrimSpace(s)
}

func isTagRune(r rune) bool {
	return r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' || r == '_' || r == '-' || r == '+'
}

// decodeObject strips fences and decodes a JSON object into its raw fields.
func decodeObject(raw string) (string, map[string]json.RawMessage, error) {
	text := StripFences(raw)
	if text == "" {
		return text, nil, &ParseError{Kind: KindMalformedJSON, Text: text, Reason: "empty output"}
	}
	if !json.Valid([]byte(text)) {
		var probe any
		err := json.Unmarshal([]byte(text), &probe)
		return text, nil, &ParseError{Kind: KindMalformedJSON, Text: text, Err: err}
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(text), &fields); err != nil || fields == nil {
		return text, nil, &ParseError{Kind: KindSchemaMismatch, Text: text, Reason: "expected a JSON object"}
	}
	return text, fields, nil
}

func requireString(text string, fields map[string]json.RawMessage, name string) (string, error) {
	value, ok := fields[name]
	if !ok {
		return "", &ParseError{Kind: KindSchemaMismatch, Text: text, Reason: fmt.Sprintf("missing %q field", name)}
	}
	var s string
	if err := json.Unmarshal(value, &s); err != nil || string(value) == "null" {
		return "", &ParseError{Kind: KindSchemaMismatch, Text: text, Reason: fmt.Sprintf("%q must be a string", name)}
	}
	return s, nil
}
