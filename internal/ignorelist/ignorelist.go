// Package ignorelist adds and removes a health check identifier from the
// ignore list held in the os/health document.
package ignorelist

import (
	"context"
	"fmt"
	"reflect"

	"github.com/adamgunderson/FMOS-LoadAvgCheck-Manager/internal/backend"
	"github.com/adamgunderson/FMOS-LoadAvgCheck-Manager/internal/logging"
)

const (
	SectionKey = "health"
	ListKey    = "ignore_checks"
)

// Add returns a copy of doc whose ignore list holds id exactly once. The
// position of an existing entry is kept; otherwise id is appended.
func Add(doc backend.Document, id string) backend.Document {
	out := backend.Clone(doc)
	section, ok := backend.Object(out, SectionKey)
	if !ok {
		section = map[string]any{}
		out[SectionKey] = section
	}

	entries := listOf(section)
	list := make([]any, 0, len(entries)+1)
	seen := false
	for _, e := range entries {
		if s, isString := e.(string); isString && s == id {
			if seen {
				continue
			}
			seen = true
		}
		list = append(list, e)
	}
	if !seen {
		list = append(list, id)
	}
	section[ListKey] = list
	return out
}

// Remove returns a copy of doc without any occurrence of id. When the list
// becomes empty the key is deleted. A document that does not contain id is
// returned unchanged.
func Remove(doc backend.Document, id string) backend.Document {
	out := backend.Clone(doc)
	section, ok := backend.Object(out, SectionKey)
	if !ok {
		return out
	}
	entries := listOf(section)
	if !containsID(entries, id) {
		return out
	}

	list := make([]any, 0, len(entries))
	for _, e := range entries {
		if s, isString := e.(string); isString && s == id {
			continue
		}
		list = append(list, e)
	}
	if len(list) == 0 {
		delete(section, ListKey)
	} else {
		section[ListKey] = list
	}
	return out
}

// Contains reports whether id is in the ignore list of doc.
func Contains(doc backend.Document, id string) bool {
	section, ok := backend.Object(doc, SectionKey)
	if !ok {
		return false
	}
	return containsID(listOf(section), id)
}

// IDs returns the string entries of the ignore list.
func IDs(doc backend.Document) []string {
	section, ok := backend.Object(doc, SectionKey)
	if !ok {
		return nil
	}
	var ids []string
	for _, e := range listOf(section) {
		if s, isString := e.(string); isString {
			ids = append(ids, s)
		}
	}
	return ids
}

func listOf(section map[string]any) []any {
	switch v := section[ListKey].(type) {
	case []any:
		return v
	case []string:
		out := make([]any, len(v))
		for i, s := range v {
			out[i] = s
		}
		return out
	default:
		return nil
	}
}

func containsID(entries []any, id string) bool {
	for _, e := range entries {
		if s, ok := e.(string); ok && s == id {
			return true
		}
	}
	return false
}

// Mutator applies ignore list changes through a backend. Every call reads
// the document fresh.
type Mutator struct {
	Backend   backend.Backend
	CheckName string
	Logger    *logging.Logger
}

// Disable adds the check to the ignore list. changed is false when it was
// already ignored and nothing was written.
func (m *Mutator) Disable(ctx context.Context) (changed bool, err error) {
	return m.mutate(ctx, "disable", Add)
}

// Enable removes the check from the ignore list.
func (m *Mutator) Enable(ctx context.Context) (changed bool, err error) {
	return m.mutate(ctx, "enable", Remove)
}

// IsIgnored reports whether the check is currently suppressed.
func (m *Mutator) IsIgnored(ctx context.Context) (bool, error) {
	doc, err := m.Backend.Get(ctx, backend.PathHealth)
	if err != nil {
		return false, fmt.Errorf("read %s: %w", backend.PathHealth, err)
	}
	return Contains(doc, m.CheckName), nil
}

// Others returns the ignore list entries other than the managed check.
func (m *Mutator) Others(ctx context.Context) ([]string, error) {
	doc, err := m.Backend.Get(ctx, backend.PathHealth)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", backend.PathHealth, err)
	}
	var others []string
	for _, id := range IDs(doc) {
		if id != m.CheckName {
			others = append(others, id)
		}
	}
	return others, nil
}

func (m *Mutator) mutate(ctx context.Context, action string, transform func(backend.Document, string) backend.Document) (bool, error) {
	current, err := m.Backend.Get(ctx, backend.PathHealth)
	if err != nil {
		return false, fmt.Errorf("%s %s: read %s: %w", action, m.CheckName, backend.PathHealth, err)
	}
	if current == nil {
		current = backend.Document{}
	}

	next := transform(current, m.CheckName)
	if reflect.DeepEqual(current, next) {
		m.Logger.Skip("%s already %sd in %s", m.CheckName, action, backend.PathHealth)
		return false, nil
	}

	if err := backend.Commit(ctx, m.Backend, backend.PathHealth, next); err != nil {
		return false, fmt.Errorf("%s %s: %w", action, m.CheckName, err)
	}
	m.Logger.Info("%s has been %sd", m.CheckName, action)
	return true, nil
}
