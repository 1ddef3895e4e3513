package encryption

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"filippo.io/age"

	"vrec-go/internal/config"
	"vrec-go/internal/vr"
)

// keyFileBanner opens both key files so they can be recognized on disk.
const keyFileBanner = "# vrec recording key"

var (
	// ErrKeysExist is returned by Setup when either key file is present.
	// Replacing the key pair would orphan every sealed recording.
	ErrKeysExist = errors.New("recording keys already exist")

	// ErrWrongPassphrase is returned by Unlock when the passphrase does not
	// open the private key.
	ErrWrongPassphrase = errors.New("wrong passphrase")

	// ErrKeyMismatch is returned by Unlock when the private key does not
	// belong to the public key recordings are sealed to.
	ErrKeyMismatch = errors.New("private key does not match public key")
)

// AgeEncryptor seals recording payloads to an X25519 recipient. The public
// key sits in plaintext next to a passphrase-sealed private key, so saving
// never prompts and only playback and export need the passphrase.
type AgeEncryptor struct {
	publicKeyPath  string
	privateKeyPath string

	mu        sync.Mutex
	recipient *age.X25519Recipient
}

var _ vr.Encryptor = (*AgeEncryptor)(nil)

// NewAgeEncryptor creates a new AgeEncryptor from configuration.
func NewAgeEncryptor(cfg config.EncryptionConfig) *AgeEncryptor {
	return &AgeEncryptor{
		publicKeyPath:  cfg.PublicKeyPath,
		privateKeyPath: cfg.PrivateKeyPath,
	}
}

// Setup generates the recording key pair. It refuses to overwrite existing
// keys and rejects an empty passphrase.
func (e *AgeEncryptor) Setup(passphrase string) error {
	if passphrase == "" {
		return fmt.Errorf("empty passphrase: %w", vr.ErrInvalidInput)
	}
	for _, path := range []string{e.publicKeyPath, e.privateKeyPath} {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%s: %w", path, ErrKeysExist)
		}
	}

	identity, err := age.GenerateX25519Identity()
	if err != nil {
		return fmt.Errorf("generating key pair: %w", err)
	}
	banner := fmt.Sprintf("%s\n# created: %s\n", keyFileBanner, time.Now().UTC().Format(time.RFC3339))

	var sealed bytes.Buffer
	scrypt, err := age.NewScryptRecipient(passphrase)
	if err != nil {
		return fmt.Errorf("creating passphrase recipient: %w", err)
	}
	w, err := age.Encrypt(&sealed, scrypt)
	if err != nil {
		return fmt.Errorf("sealing private key: %w", err)
	}
	if _, err := io.WriteString(w, banner+identity.String()+"\n"); err != nil {
		return fmt.Errorf("sealing private key: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("sealing private key: %w", err)
	}

	// The private key goes first: a public key alone would let recordings be
	// sealed that nothing can open.
	if err := writeKeyFile(e.privateKeyPath, sealed.Bytes(), 0600); err != nil {
		return err
	}
	public := banner + "# public key, safe to share\n" + identity.Recipient().String() + "\n"
	if err := writeKeyFile(e.publicKeyPath, []byte(public), 0644); err != nil {
		os.Remove(e.privateKeyPath)
		return err
	}
	return nil
}

func writeKeyFile(path string, data []byte, perm os.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("creating key directory: %w", err)
	}
	if err := os.WriteFile(path, data, perm); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}

// Encrypt seals one recording payload to the public key.
func (e *AgeEncryptor) Encrypt(r io.Reader, w io.Writer) error {
	recipient, err := e.loadRecipient()
	if err != nil {
		return err
	}

	sealed, err := age.Encrypt(w, recipient)
	if err != nil {
		return fmt.Errorf("starting payload encryption: %w", err)
	}
	if _, err := io.Copy(sealed, r); err != nil {
		return fmt.Errorf("encrypting payload: %w", err)
	}
	if err := sealed.Close(); err != nil {
		return fmt.Errorf("finishing payload encryption: %w", err)
	}
	return nil
}

// Unlock opens the private key with passphrase and checks it against the
// public key before handing it out.
func (e *AgeEncryptor) Unlock(passphrase string) (vr.DecryptionContext, error) {
	sealed, err := os.ReadFile(e.privateKeyPath)
	if err != nil {
		return nil, fmt.Errorf("reading private key: %w", err)
	}

	scrypt, err := age.NewScryptIdentity(passphrase)
	if err != nil {
		return nil, fmt.Errorf("creating passphrase identity: %w", err)
	}
	r, err := age.Decrypt(bytes.NewReader(sealed), scrypt)
	if err != nil {
		var noMatch *age.NoIdentityMatchError
		if errors.As(err, &noMatch) {
			return nil, ErrWrongPassphrase
		}
		return nil, fmt.Errorf("opening private key: %w", err)
	}

	identity, err := parseIdentity(r)
	if err != nil {
		return nil, err
	}

	recipient, err := e.loadRecipient()
	if err != nil {
		return nil, err
	}
	if identity.Recipient().String() != recipient.String() {
		return nil, ErrKeyMismatch
	}
	return &AgeDecryptionContext{identity: identity}, nil
}

// IsConfigured reports whether both key files exist.
func (e *AgeEncryptor) IsConfigured() bool {
	for _, path := range []string{e.publicKeyPath, e.privateKeyPath} {
		if _, err := os.Stat(path); err != nil {
			return false
		}
	}
	return true
}

// loadRecipient reads the public key once and caches it.
func (e *AgeEncryptor) loadRecipient() (*age.X25519Recipient, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.recipient != nil {
		return e.recipient, nil
	}

	f, err := os.Open(e.publicKeyPath)
	if err != nil {
		return nil, fmt.Errorf("reading public key: %w", err)
	}
	defer f.Close()

	line, err := keyLine(f)
	if err != nil {
		return nil, fmt.Errorf("public key %s: %w", e.publicKeyPath, err)
	}
	recipient, err := age.ParseX25519Recipient(line)
	if err != nil {
		return nil, fmt.Errorf("parsing public key: %w", err)
	}
	e.recipient = recipient
	return recipient, nil
}

func parseIdentity(r io.Reader) (*age.X25519Identity, error) {
	line, err := keyLine(r)
	if err != nil {
		return nil, fmt.Errorf("private key: %w", err)
	}
	identity, err := age.ParseX25519Identity(line)
	if err != nil {
		return nil, fmt.Errorf("parsing private key: %w", err)
	}
	return identity, nil
}

// keyLine returns the first line of a key file that is not a comment.
func keyLine(r io.Reader) (string, error) {
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line != "" && !strings.HasPrefix(line, "#") {
			return line, nil
		}
	}
	if err := sc.Err(); err != nil {
		return "", err
	}
	return "", errors.New("no key found")
}

// AgeDecryptionContext holds the unlocked private key for the session.
type AgeDecryptionContext struct {
	identity *age.X25519Identity
}

var _ vr.DecryptionContext = (*AgeDecryptionContext)(nil)

// Decrypt opens one sealed recording payload.
func (c *AgeDecryptionContext) Decrypt(r io.Reader, w io.Writer) error {
	plain, err := age.Decrypt(r, c.identity)
	if err != nil {
		return fmt.Errorf("opening payload: %w", err)
	}
	if _, err := io.Copy(w, plain); err != nil {
		return fmt.Errorf("decrypting payload: %w", err)
	}
	return nil
}
