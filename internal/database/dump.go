package database

import (
	"database/sql"
	"fmt"
	"strings"

	"vrec-go/internal/database/migrations"
)

// SchemaObject is one table or index definition as SQLite stores it.
type SchemaObject struct {
	Type string
	Name string
	SQL  string
}

// DumpSchema lists the tables and indexes of db, tables first, leaving out
// SQLite internals and the migration bookkeeping table.
func DumpSchema(db *sql.DB) ([]SchemaObject, error) {
	rows, err := db.Query(`
		SELECT type, name, sql
		FROM sqlite_master
		WHERE type IN ('table', 'index')
		  AND sql IS NOT NULL
		  AND name NOT LIKE 'sqlite_%'
		  AND tbl_name != 'schema_migrations'
		ORDER BY CASE type WHEN 'table' THEN 1 ELSE 2 END, name
	`)
	if err != nil {
		return nil, fmt.Errorf("reading sqlite_master: %w", err)
	}
	defer rows.Close()

	var objs []SchemaObject
	for rows.Next() {
		var o SchemaObject
		if err := rows.Scan(&o.Type, &o.Name, &o.SQL); err != nil {
			return nil, fmt.Errorf("scanning schema object: %w", err)
		}
		objs = append(objs, o)
	}
	return objs, rows.Err()
}

// RenderSchema formats objects as the schema.sql consumed by sqlc and by
// tests. The header names the migrations the schema was built from.
func RenderSchema(objs []SchemaObject, applied []migrations.Migration) string {
	var b strings.Builder
	b.WriteString("-- Code generated from internal/database/migrations/files by generate_schema.go. DO NOT EDIT.\n")
	if len(applied) > 0 {
		fmt.Fprintf(&b, "-- Schema version %d:\n", applied[len(applied)-1].Version)
		for _, m := range applied {
			fmt.Fprintf(&b, "--   %s\n", m)
		}
	}
	b.WriteString("\n")

	for _, o := range objs {
		b.WriteString(o.SQL)
		b.WriteString(";\n\n")
	}
	return b.String()
}
