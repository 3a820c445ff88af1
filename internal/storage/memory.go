package storage

import (
	"context"
	"sync"
)

// MemoryBackend is an in-process ephemeral store. A positive quota caps the
// total stored bytes.
type MemoryBackend struct {
	mu    sync.RWMutex
	data  map[string][]byte
	size  int
	quota int
}

func NewMemoryBackend(quota int) *MemoryBackend {
	return &MemoryBackend{data: make(map[string][]byte), quota: quota}
}

func (m *MemoryBackend) Name() string { return "memory" }
func (m *MemoryBackend) Kind() Kind   { return KindEphemeral }

func (m *MemoryBackend) Probe(context.Context) error { return nil }

func (m *MemoryBackend) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[key]
	if !ok {
		return nil, ErrNotFound
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, nil
}

func (m *MemoryBackend) Set(_ context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	next := m.size - len(m.data[key]) + len(value)
	if m.quota > 0 && next > m.quota {
		return ErrQuotaExceeded
	}
	v := make([]byte, len(value))
	copy(v, value)
	m.data[key] = v
	m.size = next
	return nil
}

func (m *MemoryBackend) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.size -= len(m.data[key])
	delete(m.data, key)
	return nil
}
