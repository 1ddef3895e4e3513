// Package migrations holds the embedded vrec schema history and applies it
// with golang-migrate.
package migrations

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed files/*.sql
var files embed.FS

var (
	ErrUnversioned = errors.New("database has no schema version")
	ErrDirty       = errors.New("database schema is dirty")
	ErrBehind      = errors.New("database schema is behind this binary")
	ErrAhead       = errors.New("database schema is ahead of this binary")
)

// Migration is one embedded schema step, e.g. {1, "create_audio_records"}.
type Migration struct {
	Version uint
	Name    string
}

func (m Migration) String() string {
	return fmt.Sprintf("%06d_%s", m.Version, m.Name)
}

// Available lists the embedded migrations in version order.
func Available() ([]Migration, error) {
	src, err := iofs.New(files, "files")
	if err != nil {
		return nil, fmt.Errorf("reading embedded migrations: %w", err)
	}
	defer src.Close()

	version, err := src.First()
	if err != nil {
		return nil, fmt.Errorf("finding first migration: %w", err)
	}

	var list []Migration
	for {
		r, name, err := src.ReadUp(version)
		if err != nil {
			return nil, fmt.Errorf("reading migration %d: %w", version, err)
		}
		r.Close()
		list = append(list, Migration{Version: version, Name: name})

		next, err := src.Next(version)
		if errors.Is(err, fs.ErrNotExist) {
			return list, nil
		}
		if err != nil {
			return nil, fmt.Errorf("finding migration after %d: %w", version, err)
		}
		version = next
	}
}

// TargetVersion is the schema version this binary migrates to.
func TargetVersion() (uint, error) {
	list, err := Available()
	if err != nil {
		return 0, err
	}
	return list[len(list)-1].Version, nil
}

// Status describes where a database stands against the embedded migrations.
type Status struct {
	Current uint // 0 when the database was never migrated
	Target  uint
	Dirty   bool
	Pending []Migration
}

// Err returns nil when the schema is exactly at Target, or an error wrapping
// one of ErrUnversioned, ErrDirty, ErrBehind or ErrAhead.
func (s *Status) Err() error {
	switch {
	case s.Dirty:
		return fmt.Errorf("%w: migration %d failed part way", ErrDirty, s.Current)
	case s.Current == 0:
		return fmt.Errorf("%w: %d migrations pending (%s)", ErrUnversioned, len(s.Pending), names(s.Pending))
	case s.Current < s.Target:
		return fmt.Errorf("%w: at version %d, want %d; pending %s", ErrBehind, s.Current, s.Target, names(s.Pending))
	case s.Current > s.Target:
		return fmt.Errorf("%w: at version %d, binary knows up to %d", ErrAhead, s.Current, s.Target)
	}
	return nil
}

func names(list []Migration) string {
	parts := make([]string, len(list))
	for i, m := range list {
		parts[i] = m.String()
	}
	return strings.Join(parts, ", ")
}

// ReadStatus reports the database's schema version against the embedded
// migrations.
func ReadStatus(db *sql.DB) (*Status, error) {
	available, err := Available()
	if err != nil {
		return nil, err
	}

	m, err := newMigrate(db)
	if err != nil {
		return nil, err
	}
	// Closing m would close db, which the caller owns.

	st := &Status{Target: available[len(available)-1].Version}
	version, dirty, err := m.Version()
	switch {
	case errors.Is(err, migrate.ErrNilVersion):
	case err != nil:
		return nil, fmt.Errorf("reading schema version: %w", err)
	default:
		st.Current, st.Dirty = version, dirty
	}

	for _, mig := range available {
		if mig.Version > st.Current {
			st.Pending = append(st.Pending, mig)
		}
	}
	return st, nil
}

// CheckDBMigrationStatus returns nil when the database is at TargetVersion.
func CheckDBMigrationStatus(db *sql.DB) error {
	st, err := ReadStatus(db)
	if err != nil {
		return err
	}
	return st.Err()
}

// MigrateUp applies every pending migration. A dirty database is left alone.
func MigrateUp(db *sql.DB) error {
	st, err := ReadStatus(db)
	if err != nil {
		return err
	}
	if st.Dirty {
		return st.Err()
	}
	if len(st.Pending) == 0 {
		return nil
	}

	m, err := newMigrate(db)
	if err != nil {
		return err
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("applying %s: %w", names(st.Pending), err)
	}
	return nil
}

func newMigrate(db *sql.DB) (*migrate.Migrate, error) {
	src, err := iofs.New(files, "files")
	if err != nil {
		return nil, fmt.Errorf("reading embedded migrations: %w", err)
	}

	driver, err := sqlite3.WithInstance(db, &sqlite3.Config{})
	if err != nil {
		src.Close()
		return nil, fmt.Errorf("creating sqlite migration driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, "sqlite3", driver)
	if err != nil {
		src.Close()
		return nil, fmt.Errorf("creating migrator: %w", err)
	}
	return m, nil
}
