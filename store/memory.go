package store

import "sync"

var _ Backend = (*MemoryBackend)(nil)

// MemoryBackend holds the payload in process memory. It backs ephemeral
// sessions, which deliberately do not survive a restart, and doubles as the
// storage fake in tests.
type MemoryBackend struct {
	mu   sync.RWMutex
	data []byte
	set  bool
}

// NewMemoryBackend creates an empty in-memory backend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{}
}

func (m *MemoryBackend) Load() ([]byte, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if !m.set {
		return nil, false, nil
	}
	out := make([]byte, len(m.data))
	copy(out, m.data)
	return out, true, nil
}

func (m *MemoryBackend) Save(data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data = make([]byte, len(data))
	copy(m.data, data)
	m.set = true
	return nil
}

func (m *MemoryBackend) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data = nil
	m.set = false
	return nil
}
