// Package migrations embeds the SQLite schema migrations for the task store.
package migrations

import "embed"

// FS holds the embedded SQL migration files.
//
//go:embed *.sql
var FS embed.FS
