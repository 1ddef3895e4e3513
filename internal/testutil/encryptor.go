package testutil

import (
	"vrec-go/internal/encryption"
	"vrec-go/internal/vr"
)

// NewTestEncryptor creates a new test encryptor for testing.
func NewTestEncryptor() *encryption.TestEncryptor {
	return encryption.NewTestEncryptor()
}

// UnlockWith returns an UnlockFunc that unlocks enc without a passphrase.
func UnlockWith(enc vr.Encryptor) vr.UnlockFunc {
	return func() (vr.DecryptionContext, error) {
		return enc.Unlock("")
	}
}
