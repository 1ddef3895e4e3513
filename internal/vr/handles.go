package vr

import (
	"io"
	"sync"
)

// HandleManager hands out process-local references to in-memory payloads,
// the Go analogue of a browser object URL. Handles are never persisted and
// are meaningless after a restart.
type HandleManager interface {
	// Create registers payload and returns a fresh handle string.
	Create(payload []byte) string

	// Release invalidates handle. Releasing an unknown or already released
	// handle is a no-op and never affects other handles.
	Release(handle string)

	// Open returns a reader over the payload behind a live handle.
	// Returns an error wrapping ErrNotFound once the handle is released.
	Open(handle string) (io.ReadSeeker, error)

	// Live returns the number of handles not yet released.
	Live() int
}

// Playback is a scoped read capability over one record's payload, returned
// by RecordStore.Load. The holder must call Release when done; Release is
// idempotent and deleting the record releases it as well.
type Playback struct {
	recordID  string
	handle    string
	handles   HandleManager
	once      sync.Once
	onRelease func()
}

// RecordID returns the id of the record this playback belongs to.
func (p *Playback) RecordID() string { return p.recordID }

// Handle returns the process-local handle string for the payload.
func (p *Playback) Handle() string { return p.handle }

// Open returns a fresh reader positioned at the start of the payload.
func (p *Playback) Open() (io.ReadSeeker, error) {
	return p.handles.Open(p.handle)
}

// Release drops the handle. Safe to call more than once.
func (p *Playback) Release() {
	p.once.Do(func() {
		p.handles.Release(p.handle)
		if p.onRelease != nil {
			p.onRelease()
		}
	})
}
