package backend

import (
	"bytes"
	"encoding/json"
)

// Document is a JSON object from the configuration tree.
type Document = map[string]any

// Decode parses data as a Document. Empty input, null, non-object JSON and
// malformed JSON all yield an empty document; ok is false for malformed
// input so callers can log it.
func Decode(data []byte) (doc Document, ok bool) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return Document{}, true
	}
	var v any
	if err := json.Unmarshal(trimmed, &v); err != nil {
		return Document{}, false
	}
	m, isObject := v.(map[string]any)
	if !isObject {
		return Document{}, false
	}
	return m, true
}

// Clone returns a deep copy of doc.
func Clone(doc Document) Document {
	if doc == nil {
		return Document{}
	}
	out, _ := cloneValue(doc).(map[string]any)
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		m := make(map[string]any, len(t))
		for k, val := range t {
			m[k] = cloneValue(val)
		}
		return m
	case []any:
		s := make([]any, len(t))
		for i, val := range t {
			s[i] = cloneValue(val)
		}
		return s
	case []string:
		return append([]string(nil), t...)
	default:
		return v
	}
}

// Object returns doc[key] when it is an object.
func Object(doc Document, key string) (Document, bool) {
	if doc == nil {
		return nil, false
	}
	m, ok := doc[key].(map[string]any)
	return m, ok
}
