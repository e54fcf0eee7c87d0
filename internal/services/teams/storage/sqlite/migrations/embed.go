// Package migrations embeds the team service schema migrations.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
