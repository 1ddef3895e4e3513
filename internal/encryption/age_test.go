package encryption

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"vrec-go/internal/config"
	"vrec-go/internal/vr"
)

func newTestAgeEncryptor(t *testing.T) *AgeEncryptor {
	t.Helper()
	dir := t.TempDir()
	cfg := config.EncryptionConfig{
		PublicKeyPath:  filepath.Join(dir, "keys", "vrec.pub"),
		PrivateKeyPath: filepath.Join(dir, "keys", "vrec.key"),
	}
	return NewAgeEncryptor(cfg)
}

func TestAgeEncryptor_IsConfigured_BeforeSetup(t *testing.T) {
	t.Parallel()
	e := newTestAgeEncryptor(t)
	if e.IsConfigured() {
		t.Error("IsConfigured() = true before Setup, want false")
	}
}

func TestAgeEncryptor_Setup_IsConfigured(t *testing.T) {
	t.Parallel()
	e := newTestAgeEncryptor(t)

	if err := e.Setup("test-passphrase"); err != nil {
		t.Fatalf("Setup() error = %v", err)
	}

	if !e.IsConfigured() {
		t.Error("IsConfigured() = false after Setup, want true")
	}
}

func TestAgeEncryptor_EncryptDecryptRoundTrip(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input []byte
	}{
		{name: "simple text", input: []byte("hello world")},
		{name: "empty", input: []byte{}},
		{name: "binary data", input: []byte{0x00, 0xff, 0x01, 0xfe}},
		{name: "large data", input: bytes.Repeat([]byte("abcdef"), 10000)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			passphrase := "test-passphrase"
			e := newTestAgeEncryptor(t)
			if err := e.Setup(passphrase); err != nil {
				t.Fatalf("Setup() error = %v", err)
			}

			// Encrypt
			var encrypted bytes.Buffer
			if err := e.Encrypt(bytes.NewReader(tt.input), &encrypted); err != nil {
				t.Fatalf("Encrypt() error = %v", err)
			}

			// Encrypted output should differ from plaintext
			if len(tt.input) > 0 && bytes.Equal(encrypted.Bytes(), tt.input) {
				t.Error("encrypted output is identical to plaintext")
			}

			// Decrypt
			ctx, err := e.Unlock(passphrase)
			if err != nil {
				t.Fatalf("Unlock() error = %v", err)
			}

			var decrypted bytes.Buffer
			if err := ctx.Decrypt(bytes.NewReader(encrypted.Bytes()), &decrypted); err != nil {
				t.Fatalf("Decrypt() error = %v", err)
			}

			if !bytes.Equal(decrypted.Bytes(), tt.input) {
				t.Errorf("round-trip failed: got %d bytes, want %d bytes", decrypted.Len(), len(tt.input))
			}
		})
	}
}

func TestAgeEncryptor_UnlockWrongPassphrase(t *testing.T) {
	t.Parallel()

	e := newTestAgeEncryptor(t)
	if err := e.Setup("correct-passphrase"); err != nil {
		t.Fatalf("Setup() error = %v", err)
	}

	if _, err := e.Unlock("wrong-passphrase"); !errors.Is(err, ErrWrongPassphrase) {
		t.Errorf("Unlock() error = %v, want ErrWrongPassphrase", err)
	}
}

func TestAgeEncryptor_SetupRefusesExistingKeys(t *testing.T) {
	t.Parallel()

	e := newTestAgeEncryptor(t)
	if err := e.Setup("first"); err != nil {
		t.Fatalf("Setup() error = %v", err)
	}
	before, err := os.ReadFile(e.publicKeyPath)
	if err != nil {
		t.Fatal(err)
	}

	if err := e.Setup("second"); !errors.Is(err, ErrKeysExist) {
		t.Fatalf("second Setup() error = %v, want ErrKeysExist", err)
	}
	after, _ := os.ReadFile(e.publicKeyPath)
	if !bytes.Equal(before, after) {
		t.Error("second Setup() replaced the public key")
	}
	if _, err := e.Unlock("first"); err != nil {
		t.Errorf("Unlock() with original passphrase error = %v", err)
	}
}

func TestAgeEncryptor_SetupRejectsEmptyPassphrase(t *testing.T) {
	t.Parallel()

	e := newTestAgeEncryptor(t)
	if err := e.Setup(""); !errors.Is(err, vr.ErrInvalidInput) {
		t.Errorf("Setup(\"\") error = %v, want ErrInvalidInput", err)
	}
	if e.IsConfigured() {
		t.Error("IsConfigured() = true after rejected Setup")
	}
}

func TestAgeEncryptor_KeyFileLayout(t *testing.T) {
	t.Parallel()

	e := newTestAgeEncryptor(t)
	if err := e.Setup("passphrase"); err != nil {
		t.Fatalf("Setup() error = %v", err)
	}

	pub, err := os.ReadFile(e.publicKeyPath)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(string(pub), keyFileBanner+"\n") {
		t.Errorf("public key file starts %q, want the vrec banner", strings.SplitN(string(pub), "\n", 2)[0])
	}
	if !strings.Contains(string(pub), "\nage1") {
		t.Error("public key file holds no age recipient")
	}

	info, err := os.Stat(e.privateKeyPath)
	if err != nil {
		t.Fatal(err)
	}
	if perm := info.Mode().Perm(); perm != 0600 {
		t.Errorf("private key mode = %o, want 600", perm)
	}
	priv, _ := os.ReadFile(e.privateKeyPath)
	if bytes.Contains(priv, []byte("AGE-SECRET-KEY")) {
		t.Error("private key stored in plaintext")
	}
}

func TestAgeEncryptor_UnlockRejectsForeignPrivateKey(t *testing.T) {
	t.Parallel()

	a := newTestAgeEncryptor(t)
	b := newTestAgeEncryptor(t)
	for _, e := range []*AgeEncryptor{a, b} {
		if err := e.Setup("passphrase"); err != nil {
			t.Fatalf("Setup() error = %v", err)
		}
	}

	// Pair a's public key with b's private key.
	mixed := NewAgeEncryptor(config.EncryptionConfig{
		PublicKeyPath:  a.publicKeyPath,
		PrivateKeyPath: b.privateKeyPath,
	})
	if _, err := mixed.Unlock("passphrase"); !errors.Is(err, ErrKeyMismatch) {
		t.Errorf("Unlock() error = %v, want ErrKeyMismatch", err)
	}
}

func TestAgeEncryptor_DecryptOtherKeyFails(t *testing.T) {
	t.Parallel()

	a := newTestAgeEncryptor(t)
	b := newTestAgeEncryptor(t)
	for _, e := range []*AgeEncryptor{a, b} {
		if err := e.Setup("passphrase"); err != nil {
			t.Fatalf("Setup() error = %v", err)
		}
	}

	var sealed bytes.Buffer
	if err := a.Encrypt(strings.NewReader("take one"), &sealed); err != nil {
		t.Fatalf("Encrypt() error = %v", err)
	}
	dec, err := b.Unlock("passphrase")
	if err != nil {
		t.Fatalf("Unlock() error = %v", err)
	}
	var out bytes.Buffer
	if err := dec.Decrypt(&sealed, &out); err == nil {
		t.Error("Decrypt() with another recording key succeeded")
	}
}

func TestAgeEncryptor_EncryptBeforeSetup(t *testing.T) {
	t.Parallel()

	e := newTestAgeEncryptor(t)
	var buf bytes.Buffer
	err := e.Encrypt(bytes.NewReader([]byte("data")), &buf)
	if err == nil {
		t.Error("Encrypt() before Setup should return error")
	}
}

func TestAgeEncryptor_UnlockBeforeSetup(t *testing.T) {
	t.Parallel()

	e := newTestAgeEncryptor(t)
	_, err := e.Unlock("passphrase")
	if err == nil {
		t.Error("Unlock() before Setup should return error")
	}
}

func TestAgeEncryptor_OneUnlockDecryptsManyPayloads(t *testing.T) {
	t.Parallel()

	passphrase := "test-passphrase"
	e := newTestAgeEncryptor(t)
	if err := e.Setup(passphrase); err != nil {
		t.Fatalf("Setup() error = %v", err)
	}

	payloads := [][]byte{[]byte("RIFF first take"), []byte("RIFF second take")}
	sealed := make([][]byte, len(payloads))
	for i, p := range payloads {
		var buf bytes.Buffer
		if err := e.Encrypt(bytes.NewReader(p), &buf); err != nil {
			t.Fatalf("Encrypt() error = %v", err)
		}
		sealed[i] = buf.Bytes()
	}

	dec, err := e.Unlock(passphrase)
	if err != nil {
		t.Fatalf("Unlock() error = %v", err)
	}
	for i, s := range sealed {
		var out bytes.Buffer
		if err := dec.Decrypt(bytes.NewReader(s), &out); err != nil {
			t.Fatalf("Decrypt(%d) error = %v", i, err)
		}
		if !bytes.Equal(out.Bytes(), payloads[i]) {
			t.Errorf("Decrypt(%d) = %q, want %q", i, out.Bytes(), payloads[i])
		}
	}
}
