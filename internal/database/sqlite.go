package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/mattn/go-sqlite3"

	"vrec-go/internal/database/migrations"
	"vrec-go/internal/database/sqlc"
	"vrec-go/internal/vr"
)

// SQLiteDatabase implements the Database interface using SQLite.
type SQLiteDatabase struct {
	db      *sql.DB
	queries *sqlc.Queries
	clock   vr.Clock
	path    string
}

// NewSQLiteDatabase creates a new SQLite database connection.
// path can be a file path or ":memory:" for in-memory database.
// A nil clock uses the real clock.
func NewSQLiteDatabase(path string, clock vr.Clock) (*SQLiteDatabase, error) {
	db, err := OpenConnection(path)
	if err != nil {
		return nil, err
	}
	return newSQLiteDatabase(db, clock, path), nil
}

// NewSQLiteDatabaseFromDB wraps an existing database connection.
// The caller is responsible for ensuring the connection is properly configured.
func NewSQLiteDatabaseFromDB(db *sql.DB, clock vr.Clock) *SQLiteDatabase {
	return newSQLiteDatabase(db, clock, "")
}

func newSQLiteDatabase(db *sql.DB, clock vr.Clock, path string) *SQLiteDatabase {
	if clock == nil {
		clock = vr.RealClock{}
	}
	return &SQLiteDatabase{
		db:      db,
		queries: sqlc.New(db),
		clock:   clock,
		path:    path,
	}
}

// connectionParams are applied by the driver to every pooled connection.
// Immediate transactions take the write lock at BEGIN, so concurrent
// writers queue on busy_timeout instead of failing a lock upgrade.
const connectionParams = "_busy_timeout=5000&_txlock=immediate&_foreign_keys=on"

// OpenConnection opens and configures a SQLite database connection.
// This is exported for use in tools and tests that need a properly configured SQLite connection.
// path can be a file path or ":memory:" for in-memory database.
func OpenConnection(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path+"?"+connectionParams)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Every connection to ":memory:" is a separate empty database.
	if path == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	return db, nil
}

// classify wraps a driver error in the matching sentinel. Errors that
// already carry one of the sentinels pass through unchanged.
func classify(msg string, err error) error {
	if errors.Is(err, vr.ErrNotFound) || errors.Is(err, vr.ErrConstraintViolation) ||
		errors.Is(err, vr.ErrInvalidInput) || errors.Is(err, vr.ErrStorageUnavailable) {
		return fmt.Errorf("%s: %w", msg, err)
	}

	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) && sqliteErr.Code == sqlite3.ErrConstraint {
		return fmt.Errorf("%s: %w: %w", msg, vr.ErrConstraintViolation, err)
	}
	return fmt.Errorf("%s: %w: %w", msg, vr.ErrStorageUnavailable, err)
}

// Audio record operations

func (s *SQLiteDatabase) FindAudioRecord(ctx context.Context, id string) (*sqlc.AudioRecord, error) {
	rec, err := s.queries.GetAudioRecord(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Not found
		}
		return nil, classify("finding audio record", err)
	}
	return &rec, nil
}

func (s *SQLiteDatabase) FindAudioRecordByShareToken(ctx context.Context, token string) (*sqlc.AudioRecord, error) {
	if token == "" {
		return nil, nil
	}
	rec, err := s.queries.GetAudioRecordByShareableUrl(ctx, sql.NullString{String: token, Valid: true})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Not found
		}
		return nil, classify("finding audio record by share token", err)
	}
	return &rec, nil
}

func (s *SQLiteDatabase) ListAudioRecordsByUser(ctx context.Context, userID string) ([]*sqlc.AudioRecord, error) {
	recs, err := s.queries.ListAudioRecordsByUser(ctx, userID)
	if err != nil {
		return nil, classify("listing audio records", err)
	}

	result := make([]*sqlc.AudioRecord, len(recs))
	for i := range recs {
		result[i] = &recs[i]
	}
	return result, nil
}

func (s *SQLiteDatabase) ListAudioRecordIDsByUser(ctx context.Context, userID string) ([]string, error) {
	ids, err := s.queries.ListAudioRecordIDsByUser(ctx, userID)
	if err != nil {
		return nil, classify("listing audio record ids", err)
	}
	return ids, nil
}

// UpsertAudioRecord writes rec in a single transaction. When a row with the
// same id exists, rec.CreatedAt is reset to the stored value so the caller
// sees what was persisted.
func (s *SQLiteDatabase) UpsertAudioRecord(ctx context.Context, rec *sqlc.AudioRecord) (*sqlc.AudioRecord, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, classify("starting transaction", err)
	}
	defer tx.Rollback()

	qtx := s.queries.WithTx(tx)

	var previous *sqlc.AudioRecord
	existing, err := qtx.GetAudioRecord(ctx, rec.ID)
	switch {
	case err == nil:
		if existing.UserID != rec.UserID {
			return nil, fmt.Errorf("record %s belongs to another owner: %w", rec.ID, vr.ErrConstraintViolation)
		}
		rec.CreatedAt = existing.CreatedAt
		previous = &existing
	case errors.Is(err, sql.ErrNoRows):
	default:
		return nil, classify("checking for existing record", err)
	}

	err = qtx.UpsertAudioRecord(ctx, sqlc.UpsertAudioRecordParams{
		ID:             rec.ID,
		UserID:         rec.UserID,
		Name:           rec.Name,
		Description:    rec.Description,
		ShareableUrl:   rec.ShareableUrl,
		Duration:       rec.Duration,
		Size:           rec.Size,
		Format:         rec.Format,
		Checksum:       rec.Checksum,
		CreatedAt:      rec.CreatedAt,
		UpdatedAt:      rec.UpdatedAt,
		DeviceInfo:     rec.DeviceInfo,
		Transcription:  rec.Transcription,
		IsPublic:       rec.IsPublic,
		ExpirationDate: rec.ExpirationDate,
	})
	if err != nil {
		return nil, classify("upserting audio record", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, classify("committing transaction", err)
	}
	return previous, nil
}

func (s *SQLiteDatabase) UpdateAudioRecord(ctx context.Context, id string, apply func(*sqlc.AudioRecord) error) (*sqlc.AudioRecord, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, classify("starting transaction", err)
	}
	defer tx.Rollback()

	qtx := s.queries.WithTx(tx)

	rec, err := qtx.GetAudioRecord(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("record %s: %w", id, vr.ErrNotFound)
		}
		return nil, classify("loading audio record", err)
	}

	if err := apply(&rec); err != nil {
		return nil, err
	}

	err = qtx.UpdateAudioRecord(ctx, sqlc.UpdateAudioRecordParams{
		Name:           rec.Name,
		Description:    rec.Description,
		Transcription:  rec.Transcription,
		ShareableUrl:   rec.ShareableUrl,
		IsPublic:       rec.IsPublic,
		ExpirationDate: rec.ExpirationDate,
		UpdatedAt:      rec.UpdatedAt,
		ID:             rec.ID,
	})
	if err != nil {
		return nil, classify("updating audio record", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, classify("committing transaction", err)
	}
	return &rec, nil
}

func (s *SQLiteDatabase) DeleteAudioRecord(ctx context.Context, id string) (*sqlc.AudioRecord, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, classify("starting transaction", err)
	}
	defer tx.Rollback()

	qtx := s.queries.WithTx(tx)

	rec, err := qtx.GetAudioRecord(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("record %s: %w", id, vr.ErrNotFound)
		}
		return nil, classify("loading audio record", err)
	}

	if _, err := qtx.DeleteAudioRecord(ctx, id); err != nil {
		return nil, classify("deleting audio record", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, classify("committing transaction", err)
	}
	return &rec, nil
}

func (s *SQLiteDatabase) GetUserStats(ctx context.Context, userID string) (*sqlc.GetUserStatsRow, error) {
	stats, err := s.queries.GetUserStats(ctx, userID)
	if err != nil {
		return nil, classify("aggregating user stats", err)
	}
	return &stats, nil
}

// Profile operations

func (s *SQLiteDatabase) FindProfile(ctx context.Context, ownerID string) (*sqlc.Profile, error) {
	p, err := s.queries.GetProfile(ctx, ownerID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Not found
		}
		return nil, classify("finding profile", err)
	}
	return &p, nil
}

func (s *SQLiteDatabase) UpsertProfile(ctx context.Context, profile *sqlc.Profile) error {
	err := s.queries.UpsertProfile(ctx, sqlc.UpsertProfileParams{
		OwnerID:     profile.OwnerID,
		DisplayName: profile.DisplayName,
		Email:       profile.Email,
		Language:    profile.Language,
		Theme:       profile.Theme,
		UpdatedAt:   profile.UpdatedAt,
	})
	if err != nil {
		return classify("upserting profile", err)
	}
	return nil
}

// Operation tracking

func (s *SQLiteDatabase) CreateOperation(ctx context.Context, operation, parameters string) (*sqlc.Operation, error) {
	startedAt := s.clock.Now()
	id, err := s.queries.InsertOperation(ctx, sqlc.InsertOperationParams{
		Operation:  operation,
		Parameters: parameters,
		StartedAt:  startedAt,
	})
	if err != nil {
		return nil, classify("creating operation", err)
	}
	return &sqlc.Operation{
		ID:         id,
		Operation:  operation,
		Parameters: parameters,
		StartedAt:  startedAt,
		Status:     "running",
	}, nil
}

func (s *SQLiteDatabase) FinishOperation(ctx context.Context, id int64, status string) error {
	err := s.queries.UpdateOperationFinished(ctx, sqlc.UpdateOperationFinishedParams{
		FinishedAt: sql.NullTime{Time: s.clock.Now(), Valid: true},
		Status:     status,
		ID:         id,
	})
	if err != nil {
		return classify("finishing operation", err)
	}
	return nil
}

func (s *SQLiteDatabase) ListOperations(ctx context.Context, limit int) ([]*sqlc.Operation, error) {
	ops, err := s.queries.GetOperations(ctx, int64(limit))
	if err != nil {
		return nil, classify("listing operations", err)
	}

	result := make([]*sqlc.Operation, len(ops))
	for i := range ops {
		result[i] = &ops[i]
	}
	return result, nil
}

func (s *SQLiteDatabase) MaxOperationID(ctx context.Context) (int64, error) {
	id, err := s.queries.GetMaxOperationID(ctx)
	if err != nil {
		return 0, classify("getting max operation ID", err)
	}
	return id, nil
}

// Path returns the database file path (or ":memory:" for in-memory databases).
func (s *SQLiteDatabase) Path() string {
	return s.path
}

// Migrate applies any pending schema migrations.
func (s *SQLiteDatabase) Migrate() error {
	return migrations.MigrateUp(s.db)
}

// CheckMigrations verifies the database schema is up-to-date.
func (s *SQLiteDatabase) CheckMigrations() error {
	return migrations.CheckDBMigrationStatus(s.db)
}

// BackupTo creates a complete copy of the database at destPath using VACUUM INTO.
func (s *SQLiteDatabase) BackupTo(destPath string) error {
	_, err := s.db.Exec("VACUUM INTO ?", destPath)
	if err != nil {
		return fmt.Errorf("backing up database: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteDatabase) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Compile-time check that SQLiteDatabase implements vr.Database interface
var _ vr.Database = (*SQLiteDatabase)(nil)
