package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"vrec-go/internal/database/sqlc"
	"vrec-go/internal/vr"
)

var baseTime = time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)

// newTestDB creates a new in-memory database with schema applied.
func newTestDB(t *testing.T) *SQLiteDatabase {
	t.Helper()

	db, err := NewSQLiteDatabase(":memory:", nil)
	if err != nil {
		t.Fatalf("failed to create database: %v", err)
	}

	if _, err := db.db.Exec(Schema); err != nil {
		db.Close()
		t.Fatalf("failed to apply schema: %v", err)
	}

	t.Cleanup(func() {
		db.Close()
	})

	return db
}

func newRecord(id, owner string, createdAt time.Time) *sqlc.AudioRecord {
	return &sqlc.AudioRecord{
		ID:         id,
		UserID:     owner,
		Name:       "Recording " + id,
		Duration:   12.5,
		Size:       2048,
		Format:     "audio/webm",
		Checksum:   "checksum-" + id,
		CreatedAt:  createdAt,
		UpdatedAt:  createdAt,
		DeviceInfo: "test-device",
	}
}

func shared(rec *sqlc.AudioRecord, token string, expires *time.Time) *sqlc.AudioRecord {
	rec.ShareableUrl = sql.NullString{String: token, Valid: true}
	rec.IsPublic = true
	if expires != nil {
		rec.ExpirationDate = sql.NullTime{Time: *expires, Valid: true}
	}
	return rec
}

func mustUpsert(t *testing.T, db *SQLiteDatabase, rec *sqlc.AudioRecord) {
	t.Helper()
	if _, err := db.UpsertAudioRecord(context.Background(), rec); err != nil {
		t.Fatalf("UpsertAudioRecord(%s) error = %v", rec.ID, err)
	}
}

func TestSQLiteDatabase_FindAudioRecord(t *testing.T) {
	ctx := context.Background()

	t.Run("returns nil when record not found", func(t *testing.T) {
		db := newTestDB(t)

		rec, err := db.FindAudioRecord(ctx, "missing")
		if err != nil {
			t.Fatalf("FindAudioRecord() error = %v", err)
		}
		if rec != nil {
			t.Errorf("FindAudioRecord() = %v, want nil", rec)
		}
	})

	t.Run("round-trips every column", func(t *testing.T) {
		db := newTestDB(t)

		expires := baseTime.Add(72 * time.Hour)
		in := shared(newRecord("rec-1", "alice", baseTime), "tok-1", &expires)
		in.Description = "standup notes"
		in.Transcription = sql.NullString{String: "hello world", Valid: true}
		mustUpsert(t, db, in)

		got, err := db.FindAudioRecord(ctx, "rec-1")
		if err != nil {
			t.Fatalf("FindAudioRecord() error = %v", err)
		}
		if got == nil {
			t.Fatal("FindAudioRecord() returned nil, want record")
		}
		if got.UserID != "alice" || got.Name != in.Name || got.Description != "standup notes" {
			t.Errorf("identity fields = %q/%q/%q", got.UserID, got.Name, got.Description)
		}
		if got.Duration != 12.5 || got.Size != 2048 || got.Format != "audio/webm" {
			t.Errorf("media fields = %v/%v/%v", got.Duration, got.Size, got.Format)
		}
		if !got.CreatedAt.Equal(baseTime) || !got.UpdatedAt.Equal(baseTime) {
			t.Errorf("timestamps = %v/%v, want %v", got.CreatedAt, got.UpdatedAt, baseTime)
		}
		if !got.ShareableUrl.Valid || got.ShareableUrl.String != "tok-1" || !got.IsPublic {
			t.Errorf("share = %+v public=%v", got.ShareableUrl, got.IsPublic)
		}
		if !got.ExpirationDate.Valid || !got.ExpirationDate.Time.Equal(expires) {
			t.Errorf("ExpirationDate = %+v, want %v", got.ExpirationDate, expires)
		}
		if got.Transcription.String != "hello world" {
			t.Errorf("Transcription = %+v", got.Transcription)
		}
	})
}

func TestSQLiteDatabase_UpsertAudioRecord(t *testing.T) {
	ctx := context.Background()

	t.Run("insert returns no previous row", func(t *testing.T) {
		db := newTestDB(t)

		prev, err := db.UpsertAudioRecord(ctx, newRecord("rec-1", "alice", baseTime))
		if err != nil {
			t.Fatalf("UpsertAudioRecord() error = %v", err)
		}
		if prev != nil {
			t.Errorf("previous = %v, want nil", prev)
		}
	})

	t.Run("replace keeps creation time and returns previous row", func(t *testing.T) {
		db := newTestDB(t)
		mustUpsert(t, db, newRecord("rec-1", "alice", baseTime))

		later := baseTime.Add(time.Hour)
		repl := newRecord("rec-1", "alice", later)
		repl.Name = "renamed"
		repl.Checksum = "checksum-new"

		prev, err := db.UpsertAudioRecord(ctx, repl)
		if err != nil {
			t.Fatalf("UpsertAudioRecord() error = %v", err)
		}
		if prev == nil || prev.Checksum != "checksum-rec-1" {
			t.Fatalf("previous = %+v, want original row", prev)
		}
		if !repl.CreatedAt.Equal(baseTime) {
			t.Errorf("rec.CreatedAt = %v, want stored %v", repl.CreatedAt, baseTime)
		}

		got, _ := db.FindAudioRecord(ctx, "rec-1")
		if got.Name != "renamed" || !got.CreatedAt.Equal(baseTime) || !got.UpdatedAt.Equal(later) {
			t.Errorf("stored = name %q created %v updated %v", got.Name, got.CreatedAt, got.UpdatedAt)
		}
	})

	t.Run("owner cannot change", func(t *testing.T) {
		db := newTestDB(t)
		mustUpsert(t, db, newRecord("rec-1", "alice", baseTime))

		_, err := db.UpsertAudioRecord(ctx, newRecord("rec-1", "bob", baseTime))
		if !errors.Is(err, vr.ErrConstraintViolation) {
			t.Errorf("UpsertAudioRecord() error = %v, want ErrConstraintViolation", err)
		}
	})

	t.Run("duplicate share token is a constraint violation", func(t *testing.T) {
		db := newTestDB(t)
		mustUpsert(t, db, shared(newRecord("rec-1", "alice", baseTime), "dup", nil))

		_, err := db.UpsertAudioRecord(ctx, shared(newRecord("rec-2", "bob", baseTime), "dup", nil))
		if !errors.Is(err, vr.ErrConstraintViolation) {
			t.Fatalf("UpsertAudioRecord() error = %v, want ErrConstraintViolation", err)
		}

		if got, _ := db.FindAudioRecord(ctx, "rec-2"); got != nil {
			t.Error("rejected record was persisted")
		}
	})
}

func TestSQLiteDatabase_FindAudioRecordByShareToken(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)

	expired := baseTime.Add(-time.Hour)
	mustUpsert(t, db, shared(newRecord("rec-1", "alice", baseTime), "tok-1", &expired))
	mustUpsert(t, db, newRecord("rec-2", "alice", baseTime))

	tests := []struct {
		name   string
		token  string
		wantID string
	}{
		{"matches token regardless of expiration", "tok-1", "rec-1"},
		{"unknown token", "tok-x", ""},
		{"empty token never matches unshared records", "", ""},
		{"record id is not a token", "rec-2", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := db.FindAudioRecordByShareToken(ctx, tt.token)
			if err != nil {
				t.Fatalf("FindAudioRecordByShareToken() error = %v", err)
			}
			switch {
			case tt.wantID == "" && got != nil:
				t.Errorf("got %s, want nil", got.ID)
			case tt.wantID != "" && (got == nil || got.ID != tt.wantID):
				t.Errorf("got %v, want %s", got, tt.wantID)
			}
		})
	}
}

func TestSQLiteDatabase_ListAudioRecordsByUser(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)

	mustUpsert(t, db, newRecord("old", "alice", baseTime))
	mustUpsert(t, db, newRecord("new", "alice", baseTime.Add(2*time.Hour)))
	mustUpsert(t, db, newRecord("mid", "alice", baseTime.Add(time.Hour+500*time.Millisecond)))
	mustUpsert(t, db, newRecord("other", "bob", baseTime.Add(3*time.Hour)))

	recs, err := db.ListAudioRecordsByUser(ctx, "alice")
	if err != nil {
		t.Fatalf("ListAudioRecordsByUser() error = %v", err)
	}

	want := []string{"new", "mid", "old"}
	if len(recs) != len(want) {
		t.Fatalf("got %d records, want %d", len(recs), len(want))
	}
	for i, id := range want {
		if recs[i].ID != id {
			t.Errorf("recs[%d].ID = %s, want %s", i, recs[i].ID, id)
		}
	}

	ids, err := db.ListAudioRecordIDsByUser(ctx, "alice")
	if err != nil {
		t.Fatalf("ListAudioRecordIDsByUser() error = %v", err)
	}
	if len(ids) != 3 || ids[0] != "new" {
		t.Errorf("ids = %v, want %v", ids, want)
	}

	empty, err := db.ListAudioRecordsByUser(ctx, "nobody")
	if err != nil {
		t.Fatalf("ListAudioRecordsByUser() error = %v", err)
	}
	if len(empty) != 0 {
		t.Errorf("got %d records for unknown owner, want 0", len(empty))
	}
}

func TestSQLiteDatabase_UpdateAudioRecord(t *testing.T) {
	ctx := context.Background()

	t.Run("unknown id", func(t *testing.T) {
		db := newTestDB(t)

		_, err := db.UpdateAudioRecord(ctx, "missing", func(*sqlc.AudioRecord) error { return nil })
		if !errors.Is(err, vr.ErrNotFound) {
			t.Errorf("UpdateAudioRecord() error = %v, want ErrNotFound", err)
		}
	})

	t.Run("applies changes", func(t *testing.T) {
		db := newTestDB(t)
		mustUpsert(t, db, newRecord("rec-1", "alice", baseTime))

		later := baseTime.Add(time.Minute)
		got, err := db.UpdateAudioRecord(ctx, "rec-1", func(r *sqlc.AudioRecord) error {
			r.Name = "renamed"
			r.UpdatedAt = later
			return nil
		})
		if err != nil {
			t.Fatalf("UpdateAudioRecord() error = %v", err)
		}
		if got.Name != "renamed" {
			t.Errorf("returned Name = %q", got.Name)
		}

		stored, _ := db.FindAudioRecord(ctx, "rec-1")
		if stored.Name != "renamed" || !stored.UpdatedAt.Equal(later) {
			t.Errorf("stored = %q/%v", stored.Name, stored.UpdatedAt)
		}
	})

	t.Run("apply error aborts the write", func(t *testing.T) {
		db := newTestDB(t)
		mustUpsert(t, db, newRecord("rec-1", "alice", baseTime))

		boom := errors.New("boom")
		_, err := db.UpdateAudioRecord(ctx, "rec-1", func(r *sqlc.AudioRecord) error {
			r.Name = "should not persist"
			return boom
		})
		if !errors.Is(err, boom) {
			t.Fatalf("UpdateAudioRecord() error = %v, want boom", err)
		}

		stored, _ := db.FindAudioRecord(ctx, "rec-1")
		if stored.Name == "should not persist" {
			t.Error("aborted update was persisted")
		}
	})

	t.Run("token collision leaves record unchanged", func(t *testing.T) {
		db := newTestDB(t)
		mustUpsert(t, db, shared(newRecord("rec-1", "alice", baseTime), "taken", nil))
		mustUpsert(t, db, newRecord("rec-2", "alice", baseTime))

		_, err := db.UpdateAudioRecord(ctx, "rec-2", func(r *sqlc.AudioRecord) error {
			r.ShareableUrl = sql.NullString{String: "taken", Valid: true}
			r.IsPublic = true
			return nil
		})
		if !errors.Is(err, vr.ErrConstraintViolation) {
			t.Fatalf("UpdateAudioRecord() error = %v, want ErrConstraintViolation", err)
		}

		stored, _ := db.FindAudioRecord(ctx, "rec-2")
		if stored.ShareableUrl.Valid || stored.IsPublic {
			t.Errorf("rec-2 share = %+v public=%v, want unshared", stored.ShareableUrl, stored.IsPublic)
		}
	})
}

func TestSQLiteDatabase_DeleteAudioRecord(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	mustUpsert(t, db, newRecord("rec-1", "alice", baseTime))

	deleted, err := db.DeleteAudioRecord(ctx, "rec-1")
	if err != nil {
		t.Fatalf("DeleteAudioRecord() error = %v", err)
	}
	if deleted.Checksum != "checksum-rec-1" {
		t.Errorf("deleted.Checksum = %q", deleted.Checksum)
	}

	if got, _ := db.FindAudioRecord(ctx, "rec-1"); got != nil {
		t.Error("record still present after delete")
	}

	if _, err := db.DeleteAudioRecord(ctx, "rec-1"); !errors.Is(err, vr.ErrNotFound) {
		t.Errorf("second DeleteAudioRecord() error = %v, want ErrNotFound", err)
	}
}

func TestSQLiteDatabase_GetUserStats(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)

	empty, err := db.GetUserStats(ctx, "alice")
	if err != nil {
		t.Fatalf("GetUserStats() error = %v", err)
	}
	if empty.RecordCount != 0 || empty.TotalDuration != 0 || empty.TotalSize != 0 {
		t.Errorf("empty stats = %+v", empty)
	}

	mustUpsert(t, db, newRecord("rec-1", "alice", baseTime))
	mustUpsert(t, db, newRecord("rec-2", "alice", baseTime))
	mustUpsert(t, db, newRecord("rec-3", "bob", baseTime))

	stats, err := db.GetUserStats(ctx, "alice")
	if err != nil {
		t.Fatalf("GetUserStats() error = %v", err)
	}
	if stats.RecordCount != 2 || stats.TotalDuration != 25 || stats.TotalSize != 4096 {
		t.Errorf("stats = %+v, want 2/25/4096", stats)
	}
}

func TestSQLiteDatabase_Profiles(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)

	got, err := db.FindProfile(ctx, "alice")
	if err != nil || got != nil {
		t.Fatalf("FindProfile() = %v, %v; want nil, nil", got, err)
	}

	p := &sqlc.Profile{OwnerID: "alice", DisplayName: "Alice", Language: "th", Theme: "dark", UpdatedAt: baseTime}
	if err := db.UpsertProfile(ctx, p); err != nil {
		t.Fatalf("UpsertProfile() error = %v", err)
	}
	p.DisplayName = "Alice L."
	p.UpdatedAt = baseTime.Add(time.Hour)
	if err := db.UpsertProfile(ctx, p); err != nil {
		t.Fatalf("UpsertProfile() second call error = %v", err)
	}

	got, err = db.FindProfile(ctx, "alice")
	if err != nil {
		t.Fatalf("FindProfile() error = %v", err)
	}
	if got.DisplayName != "Alice L." || got.Language != "th" || !got.UpdatedAt.Equal(p.UpdatedAt) {
		t.Errorf("profile = %+v", got)
	}
}

func TestSQLiteDatabase_Operations(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)

	maxID, err := db.MaxOperationID(ctx)
	if err != nil || maxID != 0 {
		t.Fatalf("MaxOperationID() = %d, %v; want 0, nil", maxID, err)
	}

	first, err := db.CreateOperation(ctx, "SaveAudio", "clip.webm")
	if err != nil {
		t.Fatalf("CreateOperation() error = %v", err)
	}
	second, err := db.CreateOperation(ctx, "DeleteOne", "rec-1")
	if err != nil {
		t.Fatalf("CreateOperation() error = %v", err)
	}
	if second.ID <= first.ID {
		t.Errorf("ids not increasing: %d then %d", first.ID, second.ID)
	}

	if err := db.FinishOperation(ctx, first.ID, "success"); err != nil {
		t.Fatalf("FinishOperation() error = %v", err)
	}

	ops, err := db.ListOperations(ctx, 10)
	if err != nil {
		t.Fatalf("ListOperations() error = %v", err)
	}
	if len(ops) != 2 {
		t.Fatalf("got %d operations, want 2", len(ops))
	}
	if ops[0].ID != second.ID || ops[0].Status != "running" || ops[0].FinishedAt.Valid {
		t.Errorf("ops[0] = %+v, want unfinished %d", ops[0], second.ID)
	}
	if ops[1].Status != "success" || !ops[1].FinishedAt.Valid {
		t.Errorf("ops[1] = %+v, want finished success", ops[1])
	}

	maxID, _ = db.MaxOperationID(ctx)
	if maxID != second.ID {
		t.Errorf("MaxOperationID() = %d, want %d", maxID, second.ID)
	}
}

func TestSQLiteDatabase_BackupTo(t *testing.T) {
	db := newTestDB(t)
	mustUpsert(t, db, newRecord("rec-1", "alice", baseTime))

	dest := filepath.Join(t.TempDir(), "snapshot.db")
	if err := db.BackupTo(dest); err != nil {
		t.Fatalf("BackupTo() error = %v", err)
	}

	restored, err := NewSQLiteDatabase(dest, nil)
	if err != nil {
		t.Fatalf("opening snapshot: %v", err)
	}
	defer restored.Close()

	got, err := restored.FindAudioRecord(context.Background(), "rec-1")
	if err != nil || got == nil {
		t.Fatalf("snapshot FindAudioRecord() = %v, %v", got, err)
	}

	if _, err := os.Stat(dest); err != nil {
		t.Errorf("snapshot file missing: %v", err)
	}
}

func TestSQLiteDatabase_ConcurrentWrites(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "vrec.db")

	db, err := NewSQLiteDatabase(path, nil)
	if err != nil {
		t.Fatalf("NewSQLiteDatabase() error = %v", err)
	}
	defer db.Close()
	if _, err := db.db.Exec(Schema); err != nil {
		t.Fatalf("failed to apply schema: %v", err)
	}

	const writers = 16
	errs := make(chan error, writers)
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			rec := newRecord(fmt.Sprintf("rec-%02d", i), "alice", baseTime)
			if _, err := db.UpsertAudioRecord(ctx, rec); err != nil {
				errs <- fmt.Errorf("upsert %s: %w", rec.ID, err)
				return
			}
			rename := func(r *sqlc.AudioRecord) error {
				r.Name = "renamed"
				return nil
			}
			if _, err := db.UpdateAudioRecord(ctx, rec.ID, rename); err != nil {
				errs <- fmt.Errorf("update %s: %w", rec.ID, err)
			}
		}(i)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Error(err)
	}

	recs, err := db.ListAudioRecordsByUser(ctx, "alice")
	if err != nil {
		t.Fatalf("ListAudioRecordsByUser() error = %v", err)
	}
	if len(recs) != writers {
		t.Errorf("got %d records, want %d", len(recs), writers)
	}
	for _, rec := range recs {
		if rec.Name != "renamed" {
			t.Errorf("record %s name = %q, want renamed", rec.ID, rec.Name)
		}
	}
}
