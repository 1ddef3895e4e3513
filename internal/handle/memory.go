package handle

import (
	"bytes"
	"fmt"
	"io"
	"sync"

	"vrec-go/internal/vr"
)

// Prefix starts every handle string, mirroring the shape of a browser
// object URL so handles are recognizable in logs.
const Prefix = "blob:vrec/"

// MemoryManager is an in-memory HandleManager. Payloads are kept by
// reference until their handle is released.
// This implementation is safe for concurrent use.
type MemoryManager struct {
	idgen   vr.IDGenerator
	handles map[string][]byte
	mu      sync.RWMutex
}

// NewMemoryManager creates a handle manager. A nil idgen uses random UUIDs.
func NewMemoryManager(idgen vr.IDGenerator) *MemoryManager {
	if idgen == nil {
		idgen = vr.UUIDGenerator{}
	}
	return &MemoryManager{
		idgen:   idgen,
		handles: make(map[string][]byte),
	}
}

// Create registers payload and returns a fresh handle.
func (m *MemoryManager) Create(payload []byte) string {
	m.mu.Lock()
	defer m.mu.Unlock()

	h := Prefix + m.idgen.New()
	for {
		if _, taken := m.handles[h]; !taken {
			break
		}
		h = Prefix + m.idgen.New()
	}
	m.handles[h] = payload
	return h
}

// Release drops the handle. Unknown handles are ignored.
func (m *MemoryManager) Release(h string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.handles, h)
}

// Open returns a reader over the payload behind a live handle.
func (m *MemoryManager) Open(h string) (io.ReadSeeker, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	data, ok := m.handles[h]
	if !ok {
		return nil, fmt.Errorf("handle %s: %w", h, vr.ErrNotFound)
	}
	return bytes.NewReader(data), nil
}

// Live returns the number of handles not yet released.
func (m *MemoryManager) Live() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.handles)
}

// Compile-time check that MemoryManager implements vr.HandleManager interface
var _ vr.HandleManager = (*MemoryManager)(nil)
