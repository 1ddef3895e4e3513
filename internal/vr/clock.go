package vr

import (
	"crypto/rand"
	"math/big"
	"time"

	"github.com/google/uuid"
)

// Clock abstracts time retrieval so business logic is deterministic in tests.
type Clock interface {
	Now() time.Time
}

// RealClock returns the actual current time in UTC.
type RealClock struct{}

func (RealClock) Now() time.Time { return time.Now().UTC() }

// IDGenerator abstracts unique ID generation so tests are deterministic.
// The same generator produces record ids and share tokens.
type IDGenerator interface {
	New() string
}

// UUIDGenerator produces random UUIDs.
type UUIDGenerator struct{}

func (UUIDGenerator) New() string { return uuid.New().String() }

const (
	tokenAlphabet = "0123456789abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"

	// DefaultTokenLength gives ~143 bits of entropy with a 62-symbol alphabet.
	DefaultTokenLength = 24
)

// TokenGenerator produces random alphanumeric tokens from crypto/rand.
type TokenGenerator struct {
	Length int
}

func (g TokenGenerator) New() string {
	n := g.Length
	if n <= 0 {
		n = DefaultTokenLength
	}
	max := big.NewInt(int64(len(tokenAlphabet)))
	out := make([]byte, n)
	for i := range out {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			// crypto/rand only fails when the OS entropy source is broken.
			panic("vr: reading random source: " + err.Error())
		}
		out[i] = tokenAlphabet[idx.Int64()]
	}
	return string(out)
}
