// Package migrations embeds the SQL schema files into the binary so the
// server can bootstrap its own tables at startup.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
