package migrations

import "embed"

// FS содержит SQL-миграции схемы историй.
//
//go:embed *.sql
var FS embed.FS
