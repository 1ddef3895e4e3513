package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/go-playground/validator/v10"
)

// Config represents the main configuration for vrec.
type Config struct {
	OwnerID       string              `toml:"owner_id" validate:"required"`
	HostID        string              `toml:"host_id" validate:"required"`
	BaseDir       string              `toml:"base_dir" validate:"required"`
	LogDir        string              `toml:"log_dir"`
	Vaults        []VaultConfig       `toml:"vaults" validate:"min=1,dive"`
	Encryption    EncryptionConfig    `toml:"encryption"`
	Database      DatabaseConfig      `toml:"database"`
	Sync          SyncConfig          `toml:"sync"`
	Transcription TranscriptionConfig `toml:"transcription"`
}

// EncryptionConfig selects how payloads are sealed at rest.
type EncryptionConfig struct {
	Type           string `toml:"type" validate:"omitempty,oneof=none age test"` // "none" (default), "age" or "test"
	PublicKeyPath  string `toml:"public_key_path" validate:"required_if=Type age"`
	PrivateKeyPath string `toml:"private_key_path" validate:"required_if=Type age"`
}

// VaultConfig represents configuration for a vault backend.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type VaultConfig struct {
	Type string `toml:"type" validate:"oneof=memory filesystem s3"`
	Name string `toml:"name" validate:"required"`

	// S3-specific fields (only used when Type == "s3")
	S3Bucket          string `toml:"s3_bucket,omitempty" validate:"required_if=Type s3"`
	S3Prefix          string `toml:"s3_prefix,omitempty"`
	S3Region          string `toml:"s3_region,omitempty"`
	S3Endpoint        string `toml:"s3_endpoint,omitempty" validate:"omitempty,url"` // for S3-compatible stores
	S3AccessKeyID     string `toml:"s3_access_key_id,omitempty"`                     // falls back to the default AWS chain
	S3SecretAccessKey string `toml:"s3_secret_access_key,omitempty" validate:"required_with=S3AccessKeyID"`

	// FileSystem-specific fields (only used when Type == "filesystem")
	FSVaultRoot string `toml:"fs_vault_root,omitempty" validate:"required_if=Type filesystem"`
}

// DatabaseConfig represents configuration for the metadata database.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type DatabaseConfig struct {
	Type    string `toml:"type" validate:"oneof=sqlite memory"`
	DataDir string `toml:"data_dir,omitempty" validate:"required_if=Type sqlite"`
}

// SyncConfig names the vault that receives database snapshots and profiles.
type SyncConfig struct {
	Enabled bool   `toml:"enabled"`
	Vault   string `toml:"vault,omitempty" validate:"required_if=Enabled true"`
}

// TranscriptionConfig selects the speech-to-text backend.
type TranscriptionConfig struct {
	Type     string `toml:"type" validate:"omitempty,oneof=static mistral"`
	APIKey   string `toml:"api_key,omitempty" validate:"required_if=Type mistral"`
	BaseURL  string `toml:"base_url,omitempty" validate:"omitempty,url"`
	Model    string `toml:"model,omitempty"`
	Language string `toml:"language,omitempty"`
}

// NewConfig creates a new Config with the provided values and defaults:
// a filesystem vault and a SQLite database under baseDir, no encryption,
// and the built-in static transcriber.
func NewConfig(ownerID, hostID, baseDir string) *Config {
	return &Config{
		OwnerID: ownerID,
		HostID:  hostID,
		BaseDir: baseDir,
		LogDir:  filepath.Join(baseDir, "log"),
		Vaults: []VaultConfig{
			{Type: "filesystem", Name: "local", FSVaultRoot: filepath.Join(baseDir, "vault")},
		},
		Encryption: EncryptionConfig{
			Type:           "none",
			PublicKeyPath:  filepath.Join(baseDir, "keys", "vrec.pub"),
			PrivateKeyPath: filepath.Join(baseDir, "keys", "vrec.key"),
		},
		Database:      DatabaseConfig{Type: "sqlite", DataDir: filepath.Join(baseDir, "db")},
		Transcription: TranscriptionConfig{Type: "static"},
	}
}

// Validate checks field constraints and cross references between sections.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	seen := make(map[string]bool, len(c.Vaults))
	for _, v := range c.Vaults {
		if seen[v.Name] {
			return fmt.Errorf("invalid config: duplicate vault name %q", v.Name)
		}
		seen[v.Name] = true
	}
	if c.Sync.Enabled && !seen[c.Sync.Vault] {
		return fmt.Errorf("invalid config: sync vault %q is not configured", c.Sync.Vault)
	}
	return nil
}

// Vault returns the vault configuration with the given name.
func (c *Config) Vault(name string) (VaultConfig, bool) {
	for _, v := range c.Vaults {
		if v.Name == name {
			return v, true
		}
	}
	return VaultConfig{}, false
}

// Manager handles reading and writing configuration.
type Manager struct{}

// Read decodes a Config from the provided reader.
func (m *Manager) Read(r io.Reader) (*Config, error) {
	var cfg Config
	if _, err := toml.NewDecoder(r).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return &cfg, nil
}

// Write encodes a Config to the provided writer.
func (m *Manager) Write(w io.Writer, cfg *Config) error {
	if err := toml.NewEncoder(w).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

// ReadFromFile reads and validates a Config from the specified file path.
func ReadFromFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	cfg, err := m.Read(f)
	if err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}
	return cfg, nil
}

// writeToFile writes a Config to the specified file path.
// This is an internal helper and should not be exported.
func writeToFile(path string, cfg *Config) error {
	// Ensure the directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	if err := m.Write(f, cfg); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}
	return nil
}

// Init initializes a new config file at the specified path with the provided Config.
func Init(path string, cfg *Config) error {
	// Check if config already exists
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("initializing config: %w", err)
	}
	if err := writeToFile(path, cfg); err != nil {
		return fmt.Errorf("initializing config: %w", err)
	}
	return nil
}
