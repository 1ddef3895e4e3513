package testutil

import (
	"testing"

	"vrec-go/internal/database"
	"vrec-go/internal/handle"
	"vrec-go/internal/media"
	"vrec-go/internal/transcribe"
	"vrec-go/internal/vault"
	"vrec-go/internal/vr"
)

// Stack is a fully wired in-memory service stack: SQLite in memory, a
// memory vault, memory handles and stub clock and id generators.
type Stack struct {
	Clock    *StubClock
	IDs      *StubIDGenerator
	Tokens   *StubIDGenerator
	DB       *database.SQLiteDatabase
	Vault    *vault.MemoryVault
	Handles  *handle.MemoryManager
	Store    *vr.RecordStore
	Share    *vr.ShareEngine
	Service  *vr.AudioService
	Profiles *vr.ProfileService
}

// NewStack builds a Stack. enc may be nil for plaintext payloads; otherwise
// the store unlocks it without a passphrase on first decrypt.
func NewStack(t *testing.T, enc vr.Encryptor) *Stack {
	t.Helper()

	s := &Stack{
		Clock:   FixedClock(),
		IDs:     NewStubIDGenerator(),
		Tokens:  NewStubTokenGenerator(),
		Vault:   NewTestVault(),
		Handles: handle.NewMemoryManager(nil),
	}
	s.DB = NewTestDatabase(t, s.Clock)

	var unlock vr.UnlockFunc
	if enc != nil {
		unlock = UnlockWith(enc)
	}

	logger := vr.NewNopLogger()
	s.Store = vr.NewRecordStore(s.DB, s.Vault, enc, unlock, s.Handles, logger, s.Clock)
	s.Share = vr.NewShareEngine(s.Store, s.Tokens, s.Clock, logger)
	s.Service = vr.NewAudioService(s.Store, s.Share, media.NewProber(), transcribe.NewStaticTranscriber(), s.IDs, logger, "test-device")
	s.Profiles = vr.NewProfileService(s.DB, s.Vault, s.Clock, logger)

	t.Cleanup(func() {
		s.Store.Close()
	})
	return s
}
