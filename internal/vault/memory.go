package vault

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"

	"vrec-go/internal/vr"
)

// MemoryVault is an in-memory implementation of the Vault interface.
// It stores all content and metadata in memory, making it useful for testing.
// This implementation is safe for concurrent use.
type MemoryVault struct {
	name            string
	content         map[string][]byte // key -> payload
	metadata        map[string][]byte // "scope/name" -> metadata
	metadataVersion map[string]int64  // "scope/name" -> version
	mu              sync.RWMutex
}

// NewMemoryVault creates a new in-memory vault with the given name.
func NewMemoryVault(name string) *MemoryVault {
	return &MemoryVault{
		name:            name,
		content:         make(map[string][]byte),
		metadata:        make(map[string][]byte),
		metadataVersion: make(map[string]int64),
	}
}

// metadataKey returns the map key for a scope/name pair.
func metadataKey(scope, name string) string {
	return scope + "/" + name
}

// PutContent stores the payload for key, replacing any previous value.
func (m *MemoryVault) PutContent(ctx context.Context, key string, r io.Reader, size int64) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("failed to read content: %w", err)
	}

	if int64(len(data)) != size {
		return fmt.Errorf("size mismatch: expected %d bytes, got %d", size, len(data))
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.content[key] = data
	return nil
}

// GetContent retrieves the payload for key.
func (m *MemoryVault) GetContent(ctx context.Context, key string, w io.Writer) error {
	m.mu.RLock()
	data, ok := m.content[key]
	m.mu.RUnlock()

	if !ok {
		return fmt.Errorf("content %s: %w", key, vr.ErrNotFound)
	}

	if _, err := io.Copy(w, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("failed to write content: %w", err)
	}

	return nil
}

// DeleteContent removes the payload for key. Absent keys are ignored.
func (m *MemoryVault) DeleteContent(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.content, key)
	return nil
}

// Len returns the number of stored payloads.
func (m *MemoryVault) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.content)
}

// PutMetadata stores a named metadata item under scope.
func (m *MemoryVault) PutMetadata(ctx context.Context, scope, name string, r io.Reader, size int64, version int64) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("failed to read metadata: %w", err)
	}

	if int64(len(data)) != size {
		return fmt.Errorf("size mismatch: expected %d bytes, got %d", size, len(data))
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	key := metadataKey(scope, name)
	m.metadata[key] = data
	m.metadataVersion[key] = version
	return nil
}

// GetMetadataVersion returns the version of a named metadata item.
// Returns 0 if nothing has been stored for this scope/name.
func (m *MemoryVault) GetMetadataVersion(ctx context.Context, scope, name string) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.metadataVersion[metadataKey(scope, name)], nil
}

// GetMetadata retrieves a named metadata item.
func (m *MemoryVault) GetMetadata(ctx context.Context, scope, name string, w io.Writer) error {
	m.mu.RLock()
	data, ok := m.metadata[metadataKey(scope, name)]
	m.mu.RUnlock()

	if !ok {
		return fmt.Errorf("metadata %q for %s: %w", name, scope, vr.ErrNotFound)
	}

	if _, err := io.Copy(w, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("failed to write metadata: %w", err)
	}

	return nil
}

// ValidateSetup always succeeds for in-memory vault.
func (m *MemoryVault) ValidateSetup(ctx context.Context) error {
	return nil
}

// Compile-time check that MemoryVault implements vr.Vault interface
var _ vr.Vault = (*MemoryVault)(nil)
