package vr

import (
	"context"
	"io"
)

// Vault is the blob storage backend. Content holds recording payloads keyed
// by record id; metadata holds small named, versioned documents per owner or
// host (profile JSON, database snapshots) used for cloud sync.
// All operations stream through io.Reader/io.Writer.
type Vault interface {
	// PutContent stores the payload for key, replacing any previous value.
	// size is the number of bytes that will be read from r.
	PutContent(ctx context.Context, key string, r io.Reader, size int64) error

	// GetContent writes the payload for key to w.
	// Returns an error wrapping ErrNotFound if key is absent.
	GetContent(ctx context.Context, key string, w io.Writer) error

	// DeleteContent removes the payload for key. Deleting an absent key is a no-op.
	DeleteContent(ctx context.Context, key string) error

	// PutMetadata stores a named metadata item under scope (an owner or host id).
	// version is stored alongside the metadata for consistency checks.
	// Known names: "db" (SQLite snapshot), "profile" (profile JSON).
	PutMetadata(ctx context.Context, scope, name string, r io.Reader, size int64, version int64) error

	// GetMetadata writes a named metadata item to w.
	// Returns an error wrapping ErrNotFound if nothing was stored.
	GetMetadata(ctx context.Context, scope, name string, w io.Writer) error

	// GetMetadataVersion returns the stored version, or 0 if nothing was stored.
	GetMetadataVersion(ctx context.Context, scope, name string) (int64, error)

	// ValidateSetup verifies that the vault is accessible and properly configured.
	ValidateSetup(ctx context.Context) error
}
