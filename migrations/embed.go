// Package migrations embeds the goose SQL migrations applied at startup.
package migrations

import "embed"

// FS holds every migration file in this directory.
//
//go:embed *.sql
var FS embed.FS
