package draft

import (
	"context"
	"sync"
)

// MemoryKV keeps values in process memory.
type MemoryKV struct {
	mu     sync.RWMutex
	values map[string]map[string][]byte
}

func NewMemoryKV() *MemoryKV {
	return &MemoryKV{values: make(map[string]map[string][]byte)}
}

func (m *MemoryKV) Get(_ context.Context, namespace, key string) ([]byte, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.values[namespace][key]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), v...), true, nil
}

func (m *MemoryKV) SetMany(_ context.Context, namespace string, values map[string][]byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	ns := m.values[namespace]
	if ns == nil {
		ns = make(map[string][]byte, len(values))
		m.values[namespace] = ns
	}
	for k, v := range values {
		ns[k] = append([]byte(nil), v...)
	}
	return nil
}
