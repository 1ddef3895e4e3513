package vr

import (
	"bytes"
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"vrec-go/internal/database/sqlc"
)

// RecordStore is the persistent home of audio records. Metadata lives in the
// Database, payloads live in the Vault (sealed by the Encryptor when one is
// set), and every payload exposed to the process goes through the
// HandleManager so that deleting a record also revokes its handles.
//
// One RecordStore is created per process. Close releases every live handle
// but leaves the database and vault open; their owner closes them.
type RecordStore struct {
	db        Database
	vault     Vault
	encryptor Encryptor
	unlock    UnlockFunc
	handles   HandleManager
	logger    Logger
	clock     Clock

	decMu sync.Mutex
	dec   DecryptionContext

	mu        sync.Mutex
	primary   map[string]string // record id -> handle created by Put
	playbacks map[string]map[*Playback]struct{}
}

// NewRecordStore creates a RecordStore. A nil encryptor stores payloads in
// plaintext; unlock is only consulted when a payload has to be decrypted.
func NewRecordStore(db Database, vault Vault, encryptor Encryptor, unlock UnlockFunc, handles HandleManager, logger Logger, clock Clock) *RecordStore {
	return &RecordStore{
		db:        db,
		vault:     vault,
		encryptor: encryptor,
		unlock:    unlock,
		handles:   handles,
		logger:    logger,
		clock:     clock,
		primary:   make(map[string]string),
		playbacks: make(map[string]map[*Playback]struct{}),
	}
}

// contentKey names a payload in the vault. The checksum is part of the key
// so a replaced payload never overwrites the one still referenced by the
// committed row.
func contentKey(id, checksum string) string {
	return id + "." + checksum
}

func checksumOf(payload []byte) string {
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])
}

// latest returns the newest of the given times.
func latest(t time.Time, others ...time.Time) time.Time {
	for _, o := range others {
		if o.After(t) {
			t = o
		}
	}
	return t
}

func validateRecord(rec *AudioRecord) error {
	switch {
	case rec.ID == "":
		return fmt.Errorf("record id is empty: %w", ErrInvalidInput)
	case rec.UserID == "":
		return fmt.Errorf("record %s has no owner: %w", rec.ID, ErrInvalidInput)
	case strings.TrimSpace(rec.Name) == "":
		return fmt.Errorf("record %s has no name: %w", rec.ID, ErrInvalidInput)
	case rec.Duration < 0:
		return fmt.Errorf("record %s has negative duration: %w", rec.ID, ErrInvalidInput)
	case rec.ShareableURL != nil && *rec.ShareableURL == "":
		return fmt.Errorf("record %s has an empty share token: %w", rec.ID, ErrInvalidInput)
	case rec.IsPublic != (rec.ShareableURL != nil):
		return fmt.Errorf("record %s: public flag and share token disagree: %w", rec.ID, ErrInvalidInput)
	case rec.ShareableURL == nil && rec.ExpirationDate != nil:
		return fmt.Errorf("record %s: expiration without share token: %w", rec.ID, ErrInvalidInput)
	}
	return nil
}

// Put stores rec with its payload, inserting or replacing by id. The payload
// is written to the vault first and the metadata row second; if the row
// cannot be written the fresh payload is removed again. On success rec is
// updated in place with the stored size, checksum, timestamps and the
// record's handle in FileURL.
func (s *RecordStore) Put(ctx context.Context, rec *AudioRecord) error {
	if err := validateRecord(rec); err != nil {
		return err
	}

	existing, err := s.db.FindAudioRecord(ctx, rec.ID)
	if err != nil {
		return fmt.Errorf("checking for existing record: %w", err)
	}
	if existing != nil && existing.UserID != rec.UserID {
		return fmt.Errorf("record %s belongs to another owner: %w", rec.ID, ErrConstraintViolation)
	}

	checksum := checksumOf(rec.Payload)
	key := contentKey(rec.ID, checksum)
	reused := existing != nil && existing.Checksum == checksum

	if err := s.putPayload(ctx, key, rec.Payload); err != nil {
		return err
	}

	now := s.clock.Now()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	if existing != nil {
		rec.CreatedAt = existing.CreatedAt
		rec.UpdatedAt = latest(now, existing.UpdatedAt, existing.CreatedAt)
	} else {
		rec.UpdatedAt = latest(now, rec.UpdatedAt, rec.CreatedAt)
	}
	rec.Checksum = checksum
	rec.Size = int64(len(rec.Payload))

	row := toRow(rec)
	previous, err := s.db.UpsertAudioRecord(ctx, row)
	if err != nil {
		if !reused {
			if delErr := s.vault.DeleteContent(ctx, key); delErr != nil {
				s.logger.Warn("removing orphaned payload failed", "id", rec.ID, "key", key, "error", delErr)
			}
		}
		return fmt.Errorf("storing record %s: %w", rec.ID, err)
	}
	rec.CreatedAt = row.CreatedAt

	if previous != nil && previous.Checksum != checksum {
		oldKey := contentKey(previous.ID, previous.Checksum)
		if err := s.vault.DeleteContent(ctx, oldKey); err != nil {
			s.logger.Warn("removing replaced payload failed", "id", rec.ID, "key", oldKey, "error", err)
		}
	}

	h := s.handles.Create(rec.Payload)
	s.mu.Lock()
	if old, ok := s.primary[rec.ID]; ok {
		s.handles.Release(old)
	}
	s.primary[rec.ID] = h
	s.mu.Unlock()
	rec.FileURL = h

	s.logger.Debug("record stored", "id", rec.ID, "owner", rec.UserID, "size", rec.Size)
	return nil
}

func (s *RecordStore) putPayload(ctx context.Context, key string, payload []byte) error {
	var sealed bytes.Buffer
	if s.encryptor != nil {
		if err := s.encryptor.Encrypt(bytes.NewReader(payload), &sealed); err != nil {
			return storageErr("encrypting payload", err)
		}
	} else {
		sealed.Write(payload)
	}

	size := int64(sealed.Len())
	if err := s.vault.PutContent(ctx, key, &sealed, size); err != nil {
		return storageErr("writing payload", err)
	}
	return nil
}

// Get returns the record's metadata, or nil if no record has that id.
// Payload is left nil.
func (s *RecordStore) Get(ctx context.Context, id string) (*AudioRecord, error) {
	row, err := s.db.FindAudioRecord(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("getting record %s: %w", id, err)
	}
	if row == nil {
		return nil, nil
	}
	return s.fromRow(row), nil
}

// ListByOwner returns a snapshot of every record owned by userID, newest
// first. Records of other owners are never included.
func (s *RecordStore) ListByOwner(ctx context.Context, userID string) ([]*AudioRecord, error) {
	rows, err := s.db.ListAudioRecordsByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("listing records for %s: %w", userID, err)
	}

	result := make([]*AudioRecord, len(rows))
	for i, row := range rows {
		result[i] = s.fromRow(row)
	}
	return result, nil
}

// FindByShareToken returns the record shared under token, or nil when no
// record holds it or its link expired. Expiration is checked here, at read
// time; expired records stay in storage untouched.
func (s *RecordStore) FindByShareToken(ctx context.Context, token string) (*AudioRecord, error) {
	row, err := s.db.FindAudioRecordByShareToken(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("resolving share token: %w", err)
	}
	if row == nil {
		return nil, nil
	}

	rec := s.fromRow(row)
	if rec.IsExpired(s.clock.Now()) {
		s.logger.Debug("share token expired", "id", rec.ID)
		return nil, nil
	}
	return rec, nil
}

// Update applies upd to the record in one transaction and stamps UpdatedAt.
// The share token, public flag and expiration only change together through
// upd.Share.
func (s *RecordStore) Update(ctx context.Context, id string, upd RecordUpdate) (*AudioRecord, error) {
	if upd.Name != nil && strings.TrimSpace(*upd.Name) == "" {
		return nil, fmt.Errorf("record name is empty: %w", ErrInvalidInput)
	}
	if upd.Share != nil && upd.Share.Token == "" && upd.Share.ExpiresAt != nil {
		return nil, fmt.Errorf("expiration without share token: %w", ErrInvalidInput)
	}

	now := s.clock.Now()
	row, err := s.db.UpdateAudioRecord(ctx, id, func(r *sqlc.AudioRecord) error {
		if upd.Name != nil {
			r.Name = *upd.Name
		}
		if upd.Description != nil {
			r.Description = *upd.Description
		}
		if upd.Transcription != nil {
			r.Transcription = sql.NullString{String: *upd.Transcription, Valid: true}
		}
		if upd.Share != nil {
			r.ShareableUrl = sql.NullString{String: upd.Share.Token, Valid: upd.Share.Token != ""}
			r.IsPublic = upd.Share.Token != ""
			r.ExpirationDate = nullTime(upd.Share.ExpiresAt)
		}
		r.UpdatedAt = latest(now, r.UpdatedAt, r.CreatedAt)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("updating record %s: %w", id, err)
	}
	return s.fromRow(row), nil
}

// Delete removes the record and its payload and releases every handle that
// exposes it. Deleting an unknown id returns an error wrapping ErrNotFound.
// Once the row is gone the delete counts as done; a payload that cannot be
// removed is logged and left behind.
func (s *RecordStore) Delete(ctx context.Context, id string) error {
	row, err := s.db.DeleteAudioRecord(ctx, id)
	if err != nil {
		return fmt.Errorf("deleting record %s: %w", id, err)
	}

	key := contentKey(row.ID, row.Checksum)
	if err := s.vault.DeleteContent(ctx, key); err != nil {
		s.logger.Warn("removing payload failed", "id", id, "key", key, "error", err)
	}

	s.releaseAll(id)
	s.logger.Debug("record deleted", "id", id, "owner", row.UserID)
	return nil
}

// DeleteAllByOwner deletes every record owned by userID, one record per
// transaction. A failing record does not stop the others; the report lists
// the outcome per id and the returned error joins the failures.
func (s *RecordStore) DeleteAllByOwner(ctx context.Context, userID string) (*DeleteReport, error) {
	ids, err := s.db.ListAudioRecordIDsByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("listing records for %s: %w", userID, err)
	}

	report := newDeleteReport()
	for _, id := range ids {
		err := s.Delete(ctx, id)
		switch {
		case err == nil, errors.Is(err, ErrNotFound):
			report.Deleted = append(report.Deleted, id)
		default:
			report.Failed[id] = err
		}
	}

	s.logger.Info("owner records deleted", "owner", userID, "deleted", len(report.Deleted), "failed", len(report.Failed))
	return report, report.Err()
}

// Load returns the record with its payload and a Playback over it. The
// payload is decrypted and checked against the stored checksum. The
// returned record's FileURL is the playback handle.
func (s *RecordStore) Load(ctx context.Context, id string) (*AudioRecord, *Playback, error) {
	row, err := s.db.FindAudioRecord(ctx, id)
	if err != nil {
		return nil, nil, fmt.Errorf("loading record %s: %w", id, err)
	}
	if row == nil {
		return nil, nil, fmt.Errorf("record %s: %w", id, ErrNotFound)
	}

	payload, err := s.getPayload(ctx, row)
	if err != nil {
		return nil, nil, err
	}

	rec := s.fromRow(row)
	rec.Payload = payload

	pb := &Playback{recordID: id, handles: s.handles}
	pb.handle = s.handles.Create(payload)
	pb.onRelease = func() { s.forget(pb) }

	s.mu.Lock()
	set, ok := s.playbacks[id]
	if !ok {
		set = make(map[*Playback]struct{})
		s.playbacks[id] = set
	}
	set[pb] = struct{}{}
	s.mu.Unlock()

	rec.FileURL = pb.handle
	return rec, pb, nil
}

func (s *RecordStore) getPayload(ctx context.Context, row *sqlc.AudioRecord) ([]byte, error) {
	var sealed bytes.Buffer
	if err := s.vault.GetContent(ctx, contentKey(row.ID, row.Checksum), &sealed); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("payload of record %s is missing: %w: %w", row.ID, ErrStorageUnavailable, err)
		}
		return nil, storageErr("reading payload", err)
	}

	payload := sealed.Bytes()
	if s.encryptor != nil {
		dec, err := s.decryption()
		if err != nil {
			return nil, err
		}
		var plain bytes.Buffer
		if err := dec.Decrypt(&sealed, &plain); err != nil {
			return nil, storageErr("decrypting payload", err)
		}
		payload = plain.Bytes()
	}

	if checksumOf(payload) != row.Checksum {
		return nil, fmt.Errorf("payload of record %s is corrupt: checksum mismatch: %w", row.ID, ErrStorageUnavailable)
	}
	return payload, nil
}

// decryption unlocks the private key on first use and caches it.
func (s *RecordStore) decryption() (DecryptionContext, error) {
	s.decMu.Lock()
	defer s.decMu.Unlock()

	if s.dec != nil {
		return s.dec, nil
	}
	if s.unlock == nil {
		return nil, fmt.Errorf("payload is encrypted and no unlock method is set: %w", ErrStorageUnavailable)
	}
	dec, err := s.unlock()
	if err != nil {
		return nil, fmt.Errorf("unlocking encryption key: %w", err)
	}
	s.dec = dec
	return dec, nil
}

// Stats aggregates count, total duration and total size of userID's records.
func (s *RecordStore) Stats(ctx context.Context, userID string) (*OwnerStats, error) {
	row, err := s.db.GetUserStats(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("computing stats for %s: %w", userID, err)
	}
	return &OwnerStats{
		Count:         row.RecordCount,
		TotalDuration: row.TotalDuration,
		TotalSize:     row.TotalSize,
	}, nil
}

// Close releases every handle the store created.
func (s *RecordStore) Close() error {
	s.mu.Lock()
	ids := make([]string, 0, len(s.primary)+len(s.playbacks))
	for id := range s.primary {
		ids = append(ids, id)
	}
	for id := range s.playbacks {
		ids = append(ids, id)
	}
	s.mu.Unlock()

	for _, id := range ids {
		s.releaseAll(id)
	}
	return nil
}

// releaseAll drops the primary handle and every playback of a record.
func (s *RecordStore) releaseAll(id string) {
	s.mu.Lock()
	primary, hasPrimary := s.primary[id]
	delete(s.primary, id)
	pbs := s.playbacks[id]
	delete(s.playbacks, id)
	s.mu.Unlock()

	if hasPrimary {
		s.handles.Release(primary)
	}
	for pb := range pbs {
		pb.Release()
	}
}

func (s *RecordStore) forget(pb *Playback) {
	s.mu.Lock()
	defer s.mu.Unlock()

	set := s.playbacks[pb.recordID]
	delete(set, pb)
	if len(set) == 0 {
		delete(s.playbacks, pb.recordID)
	}
}

func (s *RecordStore) fromRow(row *sqlc.AudioRecord) *AudioRecord {
	rec := &AudioRecord{
		ID:          row.ID,
		UserID:      row.UserID,
		Name:        row.Name,
		Description: row.Description,
		Duration:    row.Duration,
		Size:        row.Size,
		Format:      row.Format,
		Checksum:    row.Checksum,
		CreatedAt:   row.CreatedAt,
		UpdatedAt:   row.UpdatedAt,
		DeviceInfo:  row.DeviceInfo,
		IsPublic:    row.IsPublic,
	}
	if row.ShareableUrl.Valid {
		token := row.ShareableUrl.String
		rec.ShareableURL = &token
	}
	if row.Transcription.Valid {
		text := row.Transcription.String
		rec.Transcription = &text
	}
	if row.ExpirationDate.Valid {
		exp := row.ExpirationDate.Time
		rec.ExpirationDate = &exp
	}

	s.mu.Lock()
	rec.FileURL = s.primary[row.ID]
	s.mu.Unlock()
	return rec
}

func toRow(rec *AudioRecord) *sqlc.AudioRecord {
	row := &sqlc.AudioRecord{
		ID:             rec.ID,
		UserID:         rec.UserID,
		Name:           rec.Name,
		Description:    rec.Description,
		Duration:       rec.Duration,
		Size:           rec.Size,
		Format:         rec.Format,
		Checksum:       rec.Checksum,
		CreatedAt:      rec.CreatedAt.UTC(),
		UpdatedAt:      rec.UpdatedAt.UTC(),
		DeviceInfo:     rec.DeviceInfo,
		IsPublic:       rec.IsPublic,
		ExpirationDate: nullTime(rec.ExpirationDate),
	}
	if rec.ShareableURL != nil {
		row.ShareableUrl = sql.NullString{String: *rec.ShareableURL, Valid: true}
	}
	if rec.Transcription != nil {
		row.Transcription = sql.NullString{String: *rec.Transcription, Valid: true}
	}
	return row
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}
