package vr

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/go-playground/validator/v10"
)

// SaveAudioParams describes a freshly captured recording.
type SaveAudioParams struct {
	OwnerID     string  `validate:"required"`
	Name        string  `validate:"required"`
	Description string
	Payload     []byte  `validate:"min=1"`
	Duration    float64 `validate:"gte=0"`
	Format      string  `validate:"required"`
	DeviceInfo  string
}

// UploadAudioParams describes an existing audio file being imported. Format
// may be left empty to have it detected; the duration is always measured.
type UploadAudioParams struct {
	OwnerID     string `validate:"required"`
	Name        string `validate:"required"`
	Description string
	Payload     []byte `validate:"min=1"`
	Format      string
	DeviceInfo  string
}

// AudioService is the facade the CLI talks to. It validates input, stamps
// identifiers and turns full records into payload-free metadata.
type AudioService struct {
	store       *RecordStore
	share       *ShareEngine
	prober      Prober
	transcriber Transcriber
	idgen       IDGenerator
	logger      Logger
	validate    *validator.Validate
	deviceInfo  string
}

// NewAudioService creates an AudioService. deviceInfo is recorded on saves
// that do not name a device. transcriber may be nil when transcription is
// not configured.
func NewAudioService(store *RecordStore, share *ShareEngine, prober Prober, transcriber Transcriber, idgen IDGenerator, logger Logger, deviceInfo string) *AudioService {
	return &AudioService{
		store:       store,
		share:       share,
		prober:      prober,
		transcriber: transcriber,
		idgen:       idgen,
		logger:      logger,
		validate:    validator.New(),
		deviceInfo:  deviceInfo,
	}
}

// SaveAudio stores a new recording and returns its metadata.
func (s *AudioService) SaveAudio(ctx context.Context, p SaveAudioParams) (*AudioMetadata, error) {
	p.OwnerID = strings.TrimSpace(p.OwnerID)
	p.Name = strings.TrimSpace(p.Name)
	p.Format = strings.TrimSpace(p.Format)
	if err := s.validate.Struct(p); err != nil {
		return nil, fmt.Errorf("validating recording: %w: %w", ErrInvalidInput, err)
	}

	device := p.DeviceInfo
	if device == "" {
		device = s.deviceInfo
	}

	rec := &AudioRecord{
		ID:          s.idgen.New(),
		UserID:      p.OwnerID,
		Name:        p.Name,
		Description: p.Description,
		Payload:     p.Payload,
		Duration:    p.Duration,
		Format:      p.Format,
		DeviceInfo:  device,
	}
	if err := s.store.Put(ctx, rec); err != nil {
		return nil, fmt.Errorf("saving recording: %w", err)
	}

	s.logger.Info("recording saved", "id", rec.ID, "owner", rec.UserID, "format", rec.Format, "duration", rec.Duration)
	return rec.Metadata(), nil
}

// UploadExistingAudio imports an audio file, detecting its format when not
// given and measuring its duration before anything is stored.
func (s *AudioService) UploadExistingAudio(ctx context.Context, p UploadAudioParams) (*AudioMetadata, error) {
	p.OwnerID = strings.TrimSpace(p.OwnerID)
	p.Name = strings.TrimSpace(p.Name)
	if err := s.validate.Struct(p); err != nil {
		return nil, fmt.Errorf("validating upload: %w: %w", ErrInvalidInput, err)
	}

	info, err := s.prober.Probe(p.Payload, strings.TrimSpace(p.Format))
	if err != nil {
		return nil, fmt.Errorf("probing upload: %w", err)
	}

	return s.SaveAudio(ctx, SaveAudioParams{
		OwnerID:     p.OwnerID,
		Name:        p.Name,
		Description: p.Description,
		Payload:     p.Payload,
		Duration:    info.Duration,
		Format:      info.Format,
		DeviceInfo:  p.DeviceInfo,
	})
}

// ListForOwner returns the owner's recordings, newest first.
func (s *AudioService) ListForOwner(ctx context.Context, ownerID string) ([]*AudioMetadata, error) {
	recs, err := s.store.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	result := make([]*AudioMetadata, len(recs))
	for i, rec := range recs {
		result[i] = rec.Metadata()
	}
	return result, nil
}

// GetByID returns the recording's metadata, or nil if it does not exist.
func (s *AudioService) GetByID(ctx context.Context, id string) (*AudioMetadata, error) {
	rec, err := s.store.Get(ctx, id)
	if err != nil || rec == nil {
		return nil, err
	}
	return rec.Metadata(), nil
}

// GetByShareToken resolves a share link, or returns nil when the token is
// unknown or expired.
func (s *AudioService) GetByShareToken(ctx context.Context, token string) (*AudioMetadata, error) {
	rec, err := s.store.FindByShareToken(ctx, token)
	if err != nil || rec == nil {
		return nil, err
	}
	return rec.Metadata(), nil
}

// Rename changes the recording's display name.
func (s *AudioService) Rename(ctx context.Context, id, name string) (*AudioMetadata, error) {
	name = strings.TrimSpace(name)
	return s.update(ctx, id, RecordUpdate{Name: &name})
}

// Describe replaces the recording's description.
func (s *AudioService) Describe(ctx context.Context, id, description string) (*AudioMetadata, error) {
	return s.update(ctx, id, RecordUpdate{Description: &description})
}

// SaveTranscription stores text as the recording's transcription.
func (s *AudioService) SaveTranscription(ctx context.Context, id, text string) (*AudioMetadata, error) {
	return s.update(ctx, id, RecordUpdate{Transcription: &text})
}

func (s *AudioService) update(ctx context.Context, id string, upd RecordUpdate) (*AudioMetadata, error) {
	rec, err := s.store.Update(ctx, id, upd)
	if err != nil {
		return nil, err
	}
	return rec.Metadata(), nil
}

// DeleteOne deletes a single recording.
func (s *AudioService) DeleteOne(ctx context.Context, id string) error {
	if err := s.store.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Info("recording deleted", "id", id)
	return nil
}

// DeleteAllForOwner deletes every recording of ownerID. The report is
// returned even when some deletions failed.
func (s *AudioService) DeleteAllForOwner(ctx context.Context, ownerID string) (*DeleteReport, error) {
	if strings.TrimSpace(ownerID) == "" {
		return nil, fmt.Errorf("owner id is empty: %w", ErrInvalidInput)
	}
	return s.store.DeleteAllByOwner(ctx, ownerID)
}

// IssueShareLink makes the recording public and returns its token.
func (s *AudioService) IssueShareLink(ctx context.Context, id string, expirationDays int) (string, error) {
	return s.share.Issue(ctx, id, expirationDays)
}

// RevokeShareLink makes the recording private again.
func (s *AudioService) RevokeShareLink(ctx context.Context, id string) error {
	return s.share.Revoke(ctx, id)
}

// Transcribe sends the recording to the configured transcriber and stores
// the text it returns.
func (s *AudioService) Transcribe(ctx context.Context, id string) (*AudioMetadata, error) {
	if s.transcriber == nil {
		return nil, fmt.Errorf("transcription is not configured: %w", ErrInvalidInput)
	}

	rec, pb, err := s.store.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	defer pb.Release()

	text, err := s.transcriber.Transcribe(ctx, rec.Payload, rec.Format, rec.Metadata().DownloadName())
	if err != nil {
		return nil, fmt.Errorf("transcribing %s: %w", id, err)
	}

	s.logger.Info("recording transcribed", "id", id, "chars", len(text))
	return s.SaveTranscription(ctx, id, text)
}

// OpenPlayback loads the recording for playback. The caller must release
// the returned Playback.
func (s *AudioService) OpenPlayback(ctx context.Context, id string) (*AudioMetadata, *Playback, error) {
	rec, pb, err := s.store.Load(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	return rec.Metadata(), pb, nil
}

// Export writes the recording's payload to w and returns its metadata; use
// AudioMetadata.DownloadName for the file name.
func (s *AudioService) Export(ctx context.Context, id string, w io.Writer) (*AudioMetadata, error) {
	rec, pb, err := s.store.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	defer pb.Release()

	if _, err := io.Copy(w, bytes.NewReader(rec.Payload)); err != nil {
		return nil, fmt.Errorf("writing export: %w", err)
	}

	// The playback is released on return; report the primary handle instead.
	meta := rec.Metadata()
	meta.FileURL = ""
	if cur, err := s.store.Get(ctx, id); err == nil && cur != nil {
		meta.FileURL = cur.FileURL
	}
	return meta, nil
}

// Summary returns the owner's library totals.
func (s *AudioService) Summary(ctx context.Context, ownerID string) (*OwnerStats, error) {
	return s.store.Stats(ctx, ownerID)
}
