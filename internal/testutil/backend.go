package testutil

import (
	"context"
	"sync"

	"github.com/adamgunderson/FMOS-LoadAvgCheck-Manager/internal/backend"
)

var _ backend.Backend = (*MemoryBackend)(nil)

// MemoryBackend is an in-process backend.Backend holding documents in a map.
type MemoryBackend struct {
	mu      sync.Mutex
	docs    map[string]backend.Document
	Puts    []string
	Applies int

	// Optional failure hooks keyed by path.
	GetErr   map[string]error
	PutErr   map[string]error
	ApplyErr error
}

// NewMemoryBackend returns a MemoryBackend seeded with deep copies of docs.
func NewMemoryBackend(docs map[string]backend.Document) *MemoryBackend {
	m := &MemoryBackend{docs: make(map[string]backend.Document, len(docs))}
	for path, doc := range docs {
		m.docs[path] = backend.Clone(doc)
	}
	return m
}

func (m *MemoryBackend) Name() string { return "memory" }

func (m *MemoryBackend) Get(_ context.Context, path string) (backend.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.GetErr[path]; err != nil {
		return nil, err
	}
	doc, ok := m.docs[path]
	if !ok {
		return backend.Document{}, nil
	}
	return backend.Clone(doc), nil
}

func (m *MemoryBackend) Put(_ context.Context, path string, doc backend.Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.PutErr[path]; err != nil {
		return err
	}
	if m.docs == nil {
		m.docs = make(map[string]backend.Document)
	}
	m.docs[path] = backend.Clone(doc)
	m.Puts = append(m.Puts, path)
	return nil
}

func (m *MemoryBackend) Apply(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ApplyErr != nil {
		return m.ApplyErr
	}
	m.Applies++
	return nil
}

// Snapshot returns a deep copy of the stored document at path.
func (m *MemoryBackend) Snapshot(path string) backend.Document {
	m.mu.Lock()
	defer m.mu.Unlock()
	return backend.Clone(m.docs[path])
}

// PutCount returns how many times path was written.
func (m *MemoryBackend) PutCount(path string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, p := range m.Puts {
		if p == path {
			n++
		}
	}
	return n
}
