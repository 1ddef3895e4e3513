package database

import (
	"fmt"
	"os"
	"path/filepath"

	"vrec-go/internal/config"
	"vrec-go/internal/vr"
)

// NewDatabaseFromConfig creates a Database implementation based on the database config type.
// The schema is migrated to the latest version before the database is returned.
func NewDatabaseFromConfig(cfg config.DatabaseConfig, hostID string, clock vr.Clock) (*SQLiteDatabase, error) {
	var path string
	switch cfg.Type {
	case "sqlite":
		if cfg.DataDir == "" {
			return nil, fmt.Errorf("data_dir required for sqlite database")
		}
		if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
		path = filepath.Join(cfg.DataDir, hostID+".db")
	case "memory":
		path = ":memory:"
	default:
		return nil, fmt.Errorf("unknown database type: %s", cfg.Type)
	}

	db, err := NewSQLiteDatabase(path, clock)
	if err != nil {
		return nil, err
	}
	if err := db.Migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrating %s: %w", path, err)
	}
	return db, nil
}
