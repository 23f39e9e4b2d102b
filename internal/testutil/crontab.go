package testutil

import (
	"context"
	"sync"
)

// MemoryTable is an in-memory job table.
type MemoryTable struct {
	mu       sync.Mutex
	Content  string
	Writes   int
	ReadErr  error
	WriteErr error
}

func (m *MemoryTable) Read(context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ReadErr != nil {
		return "", m.ReadErr
	}
	return m.Content, nil
}

func (m *MemoryTable) Write(_ context.Context, content string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.WriteErr != nil {
		return m.WriteErr
	}
	m.Content = content
	m.Writes++
	return nil
}
