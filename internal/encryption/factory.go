package encryption

import (
	"fmt"

	"vrec-go/internal/config"
	"vrec-go/internal/vr"
)

// NewEncryptorFromConfig creates an Encryptor based on the configuration type.
// Type "none" (or empty) returns a nil Encryptor: payloads are stored as-is.
func NewEncryptorFromConfig(cfg config.EncryptionConfig) (vr.Encryptor, error) {
	switch cfg.Type {
	case "none", "":
		return nil, nil
	case "age":
		return NewAgeEncryptor(cfg), nil
	case "test":
		return NewTestEncryptor(), nil
	default:
		return nil, fmt.Errorf("unknown encryption type: %q", cfg.Type)
	}
}
