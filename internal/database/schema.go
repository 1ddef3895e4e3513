package database

import _ "embed"

// Schema is the full schema produced by applying every migration, kept in
// sync by `go generate`. Tests apply it directly to fresh in-memory databases.
//
//go:embed sqlc/schema.sql
var Schema string
