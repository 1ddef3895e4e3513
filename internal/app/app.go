package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"vrec-go/internal/config"
	"vrec-go/internal/database"
	"vrec-go/internal/database/sqlc"
	"vrec-go/internal/encryption"
	"vrec-go/internal/handle"
	"vrec-go/internal/media"
	"vrec-go/internal/transcribe"
	"vrec-go/internal/vault"
	"vrec-go/internal/vr"
)

// Options carries the parts of the app that the CLI (or a test) supplies
// instead of the config file.
type Options struct {
	// OwnerID overrides the config's owner_id when non-empty.
	OwnerID string
	// Unlock is called the first time an encrypted payload is read.
	Unlock vr.UnlockFunc
	// LogMirror receives a copy of every log line; nil disables mirroring.
	LogMirror io.Writer
	// LogLevel is the minimum level written to the log.
	LogLevel slog.Level
	// Vaults replaces the configured vault with the same name.
	Vaults map[string]vr.Vault
}

// VRecApp is the application layer between the CLI and the recording
// services. It constructs all dependencies from config, exposes high-level
// operations that accept file paths and raw strings, and manages the DB
// lifecycle on Close.
type VRecApp struct {
	cfg       *config.Config
	owner     string
	db        vr.Database
	syncVault vr.Vault
	store     *vr.RecordStore
	service   *vr.AudioService
	profiles  *vr.ProfileService
	op        *Operation
	logger    vr.Logger
	logFile   *os.File
}

// NewVRecApp creates a fully wired VRecApp from the given config.
// operation identifies the CLI command being run (e.g. "SaveAudio", "List").
// The caller must call Close when done.
func NewVRecApp(ctx context.Context, cfg *config.Config, operation string, opts Options) (*VRecApp, error) {
	if len(cfg.Vaults) == 0 {
		return nil, fmt.Errorf("no vaults configured")
	}

	vaults := make(map[string]vr.Vault, len(cfg.Vaults))
	openVault := func(vc config.VaultConfig) (vr.Vault, error) {
		if v, ok := vaults[vc.Name]; ok {
			return v, nil
		}
		v, ok := opts.Vaults[vc.Name]
		if !ok {
			var err error
			if v, err = vault.NewVaultFromConfig(ctx, vc); err != nil {
				return nil, fmt.Errorf("creating vault %s: %w", vc.Name, err)
			}
		}
		vaults[vc.Name] = v
		return v, nil
	}

	payloadVault, err := openVault(cfg.Vaults[0])
	if err != nil {
		return nil, err
	}

	var syncVault vr.Vault
	if cfg.Sync.Enabled {
		vc, ok := cfg.Vault(cfg.Sync.Vault)
		if !ok {
			return nil, fmt.Errorf("sync vault %q is not configured", cfg.Sync.Vault)
		}
		if syncVault, err = openVault(vc); err != nil {
			return nil, err
		}
	}

	db, err := database.NewDatabaseFromConfig(cfg.Database, cfg.HostID, vr.RealClock{})
	if err != nil {
		return nil, fmt.Errorf("creating database: %w", err)
	}

	if err := db.CheckMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("database schema out of date: %w", err)
	}

	if syncVault != nil {
		// Check local DB version against the snapshot in the sync vault.
		remoteVersion, err := syncVault.GetMetadataVersion(ctx, cfg.HostID, "db")
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("checking remote metadata version: %w", err)
		}

		localMax, err := db.MaxOperationID(ctx)
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("checking local metadata version: %w", err)
		}

		if remoteVersion > localMax {
			db.Close()
			return nil, fmt.Errorf("local database is behind remote (local=%d, remote=%d): restore from vault or re-initialize", localMax, remoteVersion)
		}
	}

	enc, err := encryption.NewEncryptorFromConfig(cfg.Encryption)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating encryptor: %w", err)
	}
	if enc != nil && !enc.IsConfigured() {
		db.Close()
		return nil, fmt.Errorf("encryption keys missing: run 'vrec config init' or set encryption.type = \"none\"")
	}

	transcriber, err := transcribe.NewTranscriberFromConfig(cfg.Transcription)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating transcriber: %w", err)
	}

	logDir := cfg.LogDir
	if logDir == "" {
		logDir = filepath.Join(cfg.BaseDir, "log")
	}
	opID := time.Now().UTC().Format("20060102T150405Z")
	l, logFile, err := newLogger(logDir, opID, opts.LogMirror, opts.LogLevel)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating logger: %w", err)
	}
	logger := &slogAdapter{l: l}

	owner := cfg.OwnerID
	if opts.OwnerID != "" {
		owner = opts.OwnerID
	}

	clock := vr.RealClock{}
	store := vr.NewRecordStore(db, payloadVault, enc, opts.Unlock, handle.NewMemoryManager(nil), logger, clock)
	share := vr.NewShareEngine(store, vr.TokenGenerator{}, clock, logger)
	svc := vr.NewAudioService(store, share, media.NewProber(), transcriber, vr.UUIDGenerator{}, logger, deviceInfo())

	profiles := vr.NewProfileService(db, syncVault, clock, logger)

	return &VRecApp{
		cfg:       cfg,
		owner:     owner,
		db:        db,
		syncVault: syncVault,
		store:     store,
		service:   svc,
		profiles:  profiles,
		op:        NewOperation(operation, ""),
		logger:    logger,
		logFile:   logFile,
	}, nil
}

// deviceInfo describes this machine for recordings saved without one.
func deviceInfo() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "unknown-host"
	}
	return fmt.Sprintf("%s (%s/%s)", host, runtime.GOOS, runtime.GOARCH)
}

// Owner returns the owner id every operation acts for.
func (a *VRecApp) Owner() string {
	return a.owner
}

// persistOperation saves the operation to the database, giving it an auto-increment ID.
// This should only be called for DB-mutating commands.
func (a *VRecApp) persistOperation(ctx context.Context, params ...string) error {
	if a.op.Persisted() {
		return nil // already persisted
	}
	a.op.Parameters = strings.Join(params, " ")
	dbOp, err := a.db.CreateOperation(ctx, a.op.Operation, a.op.Parameters)
	if err != nil {
		return fmt.Errorf("persisting operation: %w", err)
	}
	a.op.ID = dbOp.ID
	return nil
}

// SaveFile stores the file at path as a new recording. An empty name uses
// the file name without its extension.
func (a *VRecApp) SaveFile(ctx context.Context, path, name, description string, duration float64, format string) (*vr.AudioMetadata, error) {
	payload, name, err := readAudioFile(path, name)
	if err != nil {
		return nil, err
	}
	if err := a.persistOperation(ctx, path); err != nil {
		return nil, err
	}

	meta, err := a.service.SaveAudio(ctx, vr.SaveAudioParams{
		OwnerID:     a.owner,
		Name:        name,
		Description: description,
		Payload:     payload,
		Duration:    duration,
		Format:      format,
	})
	return meta, a.op.Fail(err)
}

// UploadFile imports an existing audio file, measuring its duration.
// format may be empty to have it detected.
func (a *VRecApp) UploadFile(ctx context.Context, path, name, description, format string) (*vr.AudioMetadata, error) {
	payload, name, err := readAudioFile(path, name)
	if err != nil {
		return nil, err
	}
	if err := a.persistOperation(ctx, path); err != nil {
		return nil, err
	}

	meta, err := a.service.UploadExistingAudio(ctx, vr.UploadAudioParams{
		OwnerID:     a.owner,
		Name:        name,
		Description: description,
		Payload:     payload,
		Format:      format,
	})
	return meta, a.op.Fail(err)
}

func readAudioFile(path, name string) ([]byte, string, error) {
	payload, err := os.ReadFile(path)
	if err != nil {
		return nil, "", fmt.Errorf("reading audio file: %w", err)
	}
	if strings.TrimSpace(name) == "" {
		base := filepath.Base(path)
		name = strings.TrimSuffix(base, filepath.Ext(base))
	}
	return payload, name, nil
}

// List returns the owner's recordings, newest first.
func (a *VRecApp) List(ctx context.Context) ([]*vr.AudioMetadata, error) {
	return a.service.ListForOwner(ctx, a.owner)
}

// Show returns a recording's metadata. A missing id is ErrNotFound.
func (a *VRecApp) Show(ctx context.Context, id string) (*vr.AudioMetadata, error) {
	meta, err := a.service.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if meta == nil {
		return nil, fmt.Errorf("recording %s: %w", id, vr.ErrNotFound)
	}
	return meta, nil
}

// Rename changes a recording's name.
func (a *VRecApp) Rename(ctx context.Context, id, name string) (*vr.AudioMetadata, error) {
	if err := a.persistOperation(ctx, id); err != nil {
		return nil, err
	}
	meta, err := a.service.Rename(ctx, id, name)
	return meta, a.op.Fail(err)
}

// Describe replaces a recording's description.
func (a *VRecApp) Describe(ctx context.Context, id, description string) (*vr.AudioMetadata, error) {
	if err := a.persistOperation(ctx, id); err != nil {
		return nil, err
	}
	meta, err := a.service.Describe(ctx, id, description)
	return meta, a.op.Fail(err)
}

// Share issues a share token for a recording. days == 0 never expires.
func (a *VRecApp) Share(ctx context.Context, id string, days int) (string, error) {
	if err := a.persistOperation(ctx, id); err != nil {
		return "", err
	}
	token, err := a.service.IssueShareLink(ctx, id, days)
	return token, a.op.Fail(err)
}

// Unshare revokes a recording's share token.
func (a *VRecApp) Unshare(ctx context.Context, id string) error {
	if err := a.persistOperation(ctx, id); err != nil {
		return err
	}
	return a.op.Fail(a.service.RevokeShareLink(ctx, id))
}

// Shared resolves a share token. Unknown and expired tokens are ErrNotFound.
func (a *VRecApp) Shared(ctx context.Context, token string) (*vr.AudioMetadata, error) {
	meta, err := a.service.GetByShareToken(ctx, token)
	if err != nil {
		return nil, err
	}
	if meta == nil {
		return nil, fmt.Errorf("share token is unknown or expired: %w", vr.ErrNotFound)
	}
	return meta, nil
}

// Transcribe runs the configured transcriber over a recording.
func (a *VRecApp) Transcribe(ctx context.Context, id string) (*vr.AudioMetadata, error) {
	if err := a.persistOperation(ctx, id); err != nil {
		return nil, err
	}
	meta, err := a.service.Transcribe(ctx, id)
	return meta, a.op.Fail(err)
}

// Export writes a recording's payload to outPath, or to its download name
// in the current directory when outPath is empty. Returns the path written.
func (a *VRecApp) Export(ctx context.Context, id, outPath string) (string, error) {
	if outPath == "" {
		meta, err := a.Show(ctx, id)
		if err != nil {
			return "", err
		}
		outPath = meta.DownloadName()
	}

	f, err := os.Create(outPath)
	if err != nil {
		return "", fmt.Errorf("creating export file: %w", err)
	}

	_, err = a.service.Export(ctx, id, f)
	if cerr := f.Close(); err == nil && cerr != nil {
		err = fmt.Errorf("closing export file: %w", cerr)
	}
	if err != nil {
		os.Remove(outPath)
		return "", err
	}
	return outPath, nil
}

// Delete removes a single recording.
func (a *VRecApp) Delete(ctx context.Context, id string) error {
	if err := a.persistOperation(ctx, id); err != nil {
		return err
	}
	return a.op.Fail(a.service.DeleteOne(ctx, id))
}

// DeleteAll removes every recording of the owner. The report lists each id's
// outcome even when some deletions failed.
func (a *VRecApp) DeleteAll(ctx context.Context) (*vr.DeleteReport, error) {
	if err := a.persistOperation(ctx, a.owner); err != nil {
		return nil, err
	}
	report, err := a.service.DeleteAllForOwner(ctx, a.owner)
	return report, a.op.Fail(err)
}

// Stats returns the owner's library totals.
func (a *VRecApp) Stats(ctx context.Context) (*vr.OwnerStats, error) {
	return a.service.Summary(ctx, a.owner)
}

// History returns the most recent mutating operations.
func (a *VRecApp) History(ctx context.Context, limit int) ([]*sqlc.Operation, error) {
	return a.db.ListOperations(ctx, limit)
}

// Profile returns the owner's profile.
func (a *VRecApp) Profile(ctx context.Context) (*vr.Profile, error) {
	return a.profiles.GetProfile(ctx, a.owner)
}

// UpdateProfile changes the owner's profile.
func (a *VRecApp) UpdateProfile(ctx context.Context, upd vr.ProfileUpdate) (*vr.Profile, error) {
	if err := a.persistOperation(ctx, a.owner); err != nil {
		return nil, err
	}
	p, err := a.profiles.UpdateProfile(ctx, a.owner, upd)
	return p, a.op.Fail(err)
}

// SyncProfile pushes the owner's profile to the sync vault.
func (a *VRecApp) SyncProfile(ctx context.Context) (int64, error) {
	return a.profiles.SyncProfile(ctx, a.owner)
}

// PullProfile adopts a newer profile from the sync vault.
func (a *VRecApp) PullProfile(ctx context.Context) (*vr.Profile, bool, error) {
	if err := a.persistOperation(ctx, a.owner); err != nil {
		return nil, false, err
	}
	p, changed, err := a.profiles.PullProfile(ctx, a.owner)
	return p, changed, a.op.Fail(err)
}

// Close finalizes the operation and closes all resources.
// For persisted operations: finishes the operation record, snapshots the DB,
// and uploads it to the sync vault when one is configured.
// For non-persisted operations: just closes the database.
func (a *VRecApp) Close(ctx context.Context) error {
	var errs []error

	if err := a.store.Close(); err != nil {
		errs = append(errs, fmt.Errorf("closing record store: %w", err))
	}

	if a.op.Persisted() {
		if err := a.db.FinishOperation(ctx, a.op.ID, a.op.Status); err != nil {
			errs = append(errs, fmt.Errorf("finishing operation: %w", err))
		}

		var snapshot string
		if a.syncVault != nil {
			path, err := a.snapshotDB()
			if err != nil {
				errs = append(errs, err)
			}
			snapshot = path
		}

		if err := a.db.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing database: %w", err))
		}

		if snapshot != "" {
			if err := a.uploadMetadata(ctx, snapshot, a.op.ID); err != nil {
				errs = append(errs, err)
			}
			os.Remove(snapshot)
		}
	} else {
		// Non-mutating operation: just close the database, no upload
		if err := a.db.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing database: %w", err))
		}
	}

	if a.logFile != nil {
		a.logFile.Close()
	}

	return errors.Join(errs...)
}

// snapshotDB writes a copy of the database to a temp file and returns its
// path.
func (a *VRecApp) snapshotDB() (string, error) {
	tmpFile, err := os.CreateTemp("", "vrec-db-backup-*.db")
	if err != nil {
		return "", fmt.Errorf("creating temp file for db backup: %w", err)
	}
	tmpPath := tmpFile.Name()
	tmpFile.Close()

	if err := a.db.BackupTo(tmpPath); err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("backing up database: %w", err)
	}
	return tmpPath, nil
}

// uploadMetadata opens the DB snapshot and uploads it to the sync vault.
func (a *VRecApp) uploadMetadata(ctx context.Context, path string, version int64) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening db backup for upload: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat db backup: %w", err)
	}

	if err := a.syncVault.PutMetadata(ctx, a.cfg.HostID, "db", f, info.Size(), version); err != nil {
		return fmt.Errorf("uploading metadata to vault: %w", err)
	}

	a.logger.Debug("database snapshot uploaded", "host", a.cfg.HostID, "version", version, "size", info.Size())
	return nil
}
