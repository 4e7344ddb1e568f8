package migrations

import "embed"

// FS embeds the goose migration set for the accounts/snapshot_meta tables,
// the same embed.FS + goose.SetBaseFS pairing the teacher uses for its
// character database migrations.
//
//go:embed *.sql
var FS embed.FS
