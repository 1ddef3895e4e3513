package testutil

import (
	"crypto/sha256"
	"encoding/hex"
)

// SHA256Hex returns the SHA-256 checksum of data as a lowercase hex string.
// Matches the checksum stored with each record.
func SHA256Hex(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// ContentKey returns the vault key under which a record's payload is stored.
func ContentKey(id string, payload []byte) string {
	return id + "." + SHA256Hex(payload)
}
