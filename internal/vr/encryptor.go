package vr

import "io"

// Encryptor seals recording payloads before they reach the vault.
// Encryption uses the public key only. Decryption requires unlocking the
// private key, producing a DecryptionContext for the session.
type Encryptor interface {
	// Setup performs one-time key generation. Called during `vrec config init`.
	Setup(passphrase string) error

	// Encrypt encrypts data read from r and writes ciphertext to w.
	Encrypt(r io.Reader, w io.Writer) error

	// Unlock decrypts the private key using the passphrase and returns a
	// DecryptionContext usable for the rest of the session.
	Unlock(passphrase string) (DecryptionContext, error)

	// IsConfigured returns true if the key material exists.
	IsConfigured() bool
}

// DecryptionContext holds an unlocked private key in memory.
type DecryptionContext interface {
	// Decrypt decrypts data read from r and writes plaintext to w.
	Decrypt(r io.Reader, w io.Writer) error
}

// UnlockFunc produces a DecryptionContext on demand, typically by prompting
// for a passphrase. The record store calls it at most once per success.
type UnlockFunc func() (DecryptionContext, error)
