// Package migrations holds the snapshot schema, applied in file-name order.
package migrations

import "embed"

// FS holds the up and down migrations. Only *.up.sql files are applied.
//
//go:embed *.sql
var FS embed.FS
