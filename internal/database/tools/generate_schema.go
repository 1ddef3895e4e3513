// Command generate_schema rebuilds internal/database/sqlc/schema.sql by
// applying every embedded migration to an empty database. Run it from the
// repository root through `go generate ./internal/database`.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"vrec-go/internal/database"
	"vrec-go/internal/database/migrations"
)

func main() {
	if err := run(filepath.Join("internal", "database", "sqlc", "schema.sql")); err != nil {
		fmt.Fprintf(os.Stderr, "generate_schema: %v\n", err)
		os.Exit(1)
	}
}

func run(outPath string) error {
	db, err := database.OpenConnection(":memory:")
	if err != nil {
		return err
	}
	defer db.Close()

	if err := migrations.MigrateUp(db); err != nil {
		return err
	}
	applied, err := migrations.Available()
	if err != nil {
		return err
	}

	objs, err := database.DumpSchema(db)
	if err != nil {
		return err
	}
	if err := os.WriteFile(outPath, []byte(database.RenderSchema(objs, applied)), 0644); err != nil {
		return fmt.Errorf("writing %s: %w", outPath, err)
	}

	fmt.Printf("wrote %s: %d objects at schema version %d\n", outPath, len(objs), applied[len(applied)-1].Version)
	return nil
}
