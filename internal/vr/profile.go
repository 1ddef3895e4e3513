package vr

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"

	"vrec-go/internal/database/sqlc"
)

// profileMetadataName is the vault metadata slot holding a profile.
const profileMetadataName = "profile"

// Profile holds per-owner preferences. A profile that was never saved has
// a zero UpdatedAt.
type Profile struct {
	OwnerID     string    `json:"owner_id"`
	DisplayName string    `json:"display_name"`
	Email       string    `json:"email"`
	Language    string    `json:"language"`
	Theme       string    `json:"theme"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Version is the profile's sync version: its update time in unix nanos.
func (p *Profile) Version() int64 {
	if p.UpdatedAt.IsZero() {
		return 0
	}
	return p.UpdatedAt.UnixNano()
}

// ProfileUpdate lists the fields to change; nil fields are kept.
type ProfileUpdate struct {
	DisplayName *string `validate:"omitnil,max=100"`
	Email       *string `validate:"omitempty,email"`
	Language    *string `validate:"omitnil,oneof=en th"`
	Theme       *string `validate:"omitnil,oneof=light dark system"`
}

// ProfileService keeps owner profiles in the local database and mirrors
// them to a sync vault when one is configured.
type ProfileService struct {
	db       Database
	vault    Vault
	clock    Clock
	logger   Logger
	validate *validator.Validate
}

// NewProfileService creates a ProfileService. vault may be nil, in which
// case SyncProfile and PullProfile fail with ErrInvalidInput.
func NewProfileService(db Database, vault Vault, clock Clock, logger Logger) *ProfileService {
	return &ProfileService{
		db:       db,
		vault:    vault,
		clock:    clock,
		logger:   logger,
		validate: validator.New(),
	}
}

func defaultProfile(ownerID string) *Profile {
	return &Profile{OwnerID: ownerID, Language: "en", Theme: "light"}
}

// GetProfile returns the owner's profile, or the defaults if none was saved.
func (s *ProfileService) GetProfile(ctx context.Context, ownerID string) (*Profile, error) {
	row, err := s.db.FindProfile(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("loading profile: %w", err)
	}
	if row == nil {
		return defaultProfile(ownerID), nil
	}
	return profileFromRow(row), nil
}

// UpdateProfile applies upd and saves the profile.
func (s *ProfileService) UpdateProfile(ctx context.Context, ownerID string, upd ProfileUpdate) (*Profile, error) {
	if ownerID == "" {
		return nil, fmt.Errorf("owner id is empty: %w", ErrInvalidInput)
	}
	if err := s.validate.Struct(upd); err != nil {
		return nil, fmt.Errorf("validating profile: %w: %w", ErrInvalidInput, err)
	}

	p, err := s.GetProfile(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	if upd.DisplayName != nil {
		p.DisplayName = *upd.DisplayName
	}
	if upd.Email != nil {
		p.Email = *upd.Email
	}
	if upd.Language != nil {
		p.Language = *upd.Language
	}
	if upd.Theme != nil {
		p.Theme = *upd.Theme
	}

	// Versions must strictly increase or a pull could not tell edits apart.
	now := s.clock.Now()
	if !now.After(p.UpdatedAt) {
		now = p.UpdatedAt.Add(time.Nanosecond)
	}
	p.UpdatedAt = now

	if err := s.db.UpsertProfile(ctx, profileToRow(p)); err != nil {
		return nil, fmt.Errorf("saving profile: %w", err)
	}
	return p, nil
}

// SyncProfile pushes the saved profile to the sync vault and returns the
// version written.
func (s *ProfileService) SyncProfile(ctx context.Context, ownerID string) (int64, error) {
	if s.vault == nil {
		return 0, fmt.Errorf("no sync vault configured: %w", ErrInvalidInput)
	}

	p, err := s.GetProfile(ctx, ownerID)
	if err != nil {
		return 0, err
	}
	if p.Version() == 0 {
		return 0, fmt.Errorf("profile of %s was never saved: %w", ownerID, ErrNotFound)
	}

	data, err := json.Marshal(p)
	if err != nil {
		return 0, fmt.Errorf("encoding profile: %w", err)
	}
	if err := s.vault.PutMetadata(ctx, ownerID, profileMetadataName, bytes.NewReader(data), int64(len(data)), p.Version()); err != nil {
		return 0, storageErr("uploading profile", err)
	}

	s.logger.Info("profile synced", "owner", ownerID, "version", p.Version())
	return p.Version(), nil
}

// PullProfile adopts the vault copy of the profile when it is newer than the
// local one. It reports whether the local profile changed.
func (s *ProfileService) PullProfile(ctx context.Context, ownerID string) (*Profile, bool, error) {
	if s.vault == nil {
		return nil, false, fmt.Errorf("no sync vault configured: %w", ErrInvalidInput)
	}

	local, err := s.GetProfile(ctx, ownerID)
	if err != nil {
		return nil, false, err
	}

	remoteVersion, err := s.vault.GetMetadataVersion(ctx, ownerID, profileMetadataName)
	if err != nil {
		return nil, false, storageErr("checking remote profile version", err)
	}
	if remoteVersion <= local.Version() {
		return local, false, nil
	}

	var buf bytes.Buffer
	if err := s.vault.GetMetadata(ctx, ownerID, profileMetadataName, &buf); err != nil {
		return nil, false, storageErr("downloading profile", err)
	}

	var remote Profile
	if err := json.Unmarshal(buf.Bytes(), &remote); err != nil {
		return nil, false, fmt.Errorf("decoding remote profile: %w: %w", ErrStorageUnavailable, err)
	}
	if remote.OwnerID != ownerID {
		return nil, false, fmt.Errorf("remote profile belongs to %q: %w", remote.OwnerID, ErrConstraintViolation)
	}
	remote.UpdatedAt = remote.UpdatedAt.UTC()

	if err := s.db.UpsertProfile(ctx, profileToRow(&remote)); err != nil {
		return nil, false, fmt.Errorf("saving pulled profile: %w", err)
	}

	s.logger.Info("profile pulled", "owner", ownerID, "version", remote.Version())
	return &remote, true, nil
}

func profileFromRow(row *sqlc.Profile) *Profile {
	return &Profile{
		OwnerID:     row.OwnerID,
		DisplayName: row.DisplayName,
		Email:       row.Email,
		Language:    row.Language,
		Theme:       row.Theme,
		UpdatedAt:   row.UpdatedAt,
	}
}

func profileToRow(p *Profile) *sqlc.Profile {
	return &sqlc.Profile{
		OwnerID:     p.OwnerID,
		DisplayName: p.DisplayName,
		Email:       p.Email,
		Language:    p.Language,
		Theme:       p.Theme,
		UpdatedAt:   p.UpdatedAt.UTC(),
	}
}
