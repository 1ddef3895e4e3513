package vr

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

// AudioRecord is one stored recording. Payload is only populated by
// RecordStore.Load; every other read path leaves it nil.
type AudioRecord struct {
	ID             string
	UserID         string
	Name           string
	Description    string
	Payload        []byte
	FileURL        string // process-local playback handle, never persisted
	ShareableURL   *string
	Duration       float64 // seconds
	Size           int64   // plaintext payload length in bytes
	Format         string  // MIME type, e.g. "audio/webm"
	Checksum       string  // hex SHA-256 of the plaintext payload
	CreatedAt      time.Time
	UpdatedAt      time.Time
	DeviceInfo     string
	Transcription  *string
	IsPublic       bool
	ExpirationDate *time.Time
}

// Metadata returns the payload-free view of the record.
func (r *AudioRecord) Metadata() *AudioMetadata {
	return &AudioMetadata{
		ID:             r.ID,
		UserID:         r.UserID,
		Name:           r.Name,
		Description:    r.Description,
		FileURL:        r.FileURL,
		ShareableURL:   r.ShareableURL,
		Duration:       r.Duration,
		Size:           r.Size,
		Format:         r.Format,
		CreatedAt:      r.CreatedAt,
		UpdatedAt:      r.UpdatedAt,
		DeviceInfo:     r.DeviceInfo,
		Transcription:  r.Transcription,
		IsPublic:       r.IsPublic,
		ExpirationDate: r.ExpirationDate,
	}
}

// IsExpired reports whether the record's share link has lapsed at now.
// Records without an expiration date never expire.
func (r *AudioRecord) IsExpired(now time.Time) bool {
	return r.ExpirationDate != nil && r.ExpirationDate.Before(now)
}

// AudioMetadata is what the service hands to callers: every record field
// except the binary payload and its checksum.
type AudioMetadata struct {
	ID             string
	UserID         string
	Name           string
	Description    string
	FileURL        string
	ShareableURL   *string
	Duration       float64
	Size           int64
	Format         string
	CreatedAt      time.Time
	UpdatedAt      time.Time
	DeviceInfo     string
	Transcription  *string
	IsPublic       bool
	ExpirationDate *time.Time
}

// DownloadName returns the file name offered when exporting a recording:
// the record name plus the MIME subtype ("audio/webm" -> "name.webm").
// Codec parameters are dropped; an unparseable format falls back to mp3.
func (m *AudioMetadata) DownloadName() string {
	ext := "mp3"
	if _, sub, ok := strings.Cut(m.Format, "/"); ok {
		sub, _, _ = strings.Cut(sub, ";")
		if sub = strings.TrimSpace(sub); sub != "" {
			ext = sub
		}
	}
	return m.Name + "." + ext
}

// ShareState is the share-related slice of a record. The token, the public
// flag and the expiration always change together, so a record can never be
// public without a token or hold a token while private.
type ShareState struct {
	Token     string     // empty means "not shared"
	ExpiresAt *time.Time // nil means "never expires"
}

// RecordUpdate lists the mutable fields of a record. Nil fields are left
// untouched. Identity, ownership, payload and creation data cannot be
// updated.
type RecordUpdate struct {
	Name          *string
	Description   *string
	Transcription *string
	Share         *ShareState
}

// IsEmpty reports whether the update changes nothing.
func (u RecordUpdate) IsEmpty() bool {
	return u.Name == nil && u.Description == nil && u.Transcription == nil && u.Share == nil
}

// OwnerStats summarizes an owner's library.
type OwnerStats struct {
	Count         int64
	TotalDuration float64 // seconds
	TotalSize     int64   // bytes
}

// DeleteReport collects per-record outcomes of a bulk delete.
type DeleteReport struct {
	Deleted []string
	Failed  map[string]error
}

func newDeleteReport() *DeleteReport {
	return &DeleteReport{Failed: make(map[string]error)}
}

// Err joins the per-record failures, or returns nil when every record was removed.
func (r *DeleteReport) Err() error {
	if len(r.Failed) == 0 {
		return nil
	}
	ids := make([]string, 0, len(r.Failed))
	for id := range r.Failed {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	errs := make([]error, 0, len(ids))
	for _, id := range ids {
		errs = append(errs, fmt.Errorf("deleting %s: %w", id, r.Failed[id]))
	}
	return errors.Join(errs...)
}
