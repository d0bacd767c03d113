// Package migrations embeds the salon-service schema for cmd/salon-migrate.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
