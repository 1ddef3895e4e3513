package vr

import (
	"context"

	"vrec-go/internal/database/sqlc"
)

// Database provides metadata storage for records, profiles and the
// operation log. Implementations wrap failures in the package's sentinel
// errors: a broken unique index or check constraint wraps
// ErrConstraintViolation, a missing row on a write wraps ErrNotFound and
// everything else wraps ErrStorageUnavailable.
type Database interface {
	// Audio record operations

	// FindAudioRecord returns the record with the given id, or nil if absent.
	FindAudioRecord(ctx context.Context, id string) (*sqlc.AudioRecord, error)

	// FindAudioRecordByShareToken returns the record holding token, or nil.
	// Expiration is not checked here.
	FindAudioRecordByShareToken(ctx context.Context, token string) (*sqlc.AudioRecord, error)

	// ListAudioRecordsByUser returns every record owned by userID, newest first.
	ListAudioRecordsByUser(ctx context.Context, userID string) ([]*sqlc.AudioRecord, error)

	// ListAudioRecordIDsByUser returns the ids of every record owned by userID.
	ListAudioRecordIDsByUser(ctx context.Context, userID string) ([]string, error)

	// UpsertAudioRecord inserts rec or replaces the stored row with the same id
	// in one transaction, returning the row it replaced (nil for an insert).
	// Ownership and creation time of an existing row are never changed; a
	// differing owner is a constraint violation.
	UpsertAudioRecord(ctx context.Context, rec *sqlc.AudioRecord) (*sqlc.AudioRecord, error)

	// UpdateAudioRecord runs apply against the stored row and writes the
	// result back, all inside one transaction. apply may return an error to
	// abort. Returns the updated row.
	UpdateAudioRecord(ctx context.Context, id string, apply func(*sqlc.AudioRecord) error) (*sqlc.AudioRecord, error)

	// DeleteAudioRecord removes the row and returns what was deleted.
	DeleteAudioRecord(ctx context.Context, id string) (*sqlc.AudioRecord, error)

	// GetUserStats aggregates count, duration and size over userID's records.
	GetUserStats(ctx context.Context, userID string) (*sqlc.GetUserStatsRow, error)

	// Profile operations

	// FindProfile returns the profile for ownerID, or nil if none was saved.
	FindProfile(ctx context.Context, ownerID string) (*sqlc.Profile, error)

	// UpsertProfile creates or replaces a profile.
	UpsertProfile(ctx context.Context, profile *sqlc.Profile) error

	// Operation log

	CreateOperation(ctx context.Context, operation, parameters string) (*sqlc.Operation, error)
	FinishOperation(ctx context.Context, id int64, status string) error
	ListOperations(ctx context.Context, limit int) ([]*sqlc.Operation, error)
	MaxOperationID(ctx context.Context) (int64, error)

	// Path returns the database file path, or ":memory:".
	Path() string

	// CheckMigrations verifies the schema is at the latest version.
	CheckMigrations() error

	// BackupTo writes a consistent copy of the database to destPath.
	BackupTo(destPath string) error

	// Close closes the database connection.
	Close() error
}
