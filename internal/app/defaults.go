package app

import (
	"fmt"
	"os"
	"path/filepath"
)

// GetDefaults returns application default paths, checking environment variables first.
// Environment variables:
//   - VREC_CONFIG_PATH: config file location (default: ~/.config/vrec.toml)
//   - VREC_HOME: base directory for vrec data (default: ~/.local/share/vrec)
func GetDefaults() (map[string]string, error) {
	configPath, err := getConfigPath()
	if err != nil {
		return nil, err
	}

	baseDir, err := getBaseDir()
	if err != nil {
		return nil, err
	}

	return map[string]string{
		"config_path": configPath,
		"base_dir":    baseDir,
		"log_dir":     filepath.Join(baseDir, "log"),
		"vault_dir":   filepath.Join(baseDir, "vault"),
		"data_dir":    filepath.Join(baseDir, "db"),
	}, nil
}

// getConfigPath returns the config file path, checking VREC_CONFIG_PATH env var first,
// then falling back to the default ~/.config/vrec.toml.
func getConfigPath() (string, error) {
	if path := os.Getenv("VREC_CONFIG_PATH"); path != "" {
		return path, nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(homeDir, ".config", "vrec.toml"), nil
}

// getBaseDir returns the base directory for vrec data, checking VREC_HOME env var first,
// then falling back to the XDG default ~/.local/share/vrec.
func getBaseDir() (string, error) {
	if path := os.Getenv("VREC_HOME"); path != "" {
		return path, nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(homeDir, ".local", "share", "vrec"), nil
}
