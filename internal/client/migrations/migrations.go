// Package migrations embeds the goose migrations of the client's local
// sent-mail cache.
package migrations

import "embed"

//go:embed *.sql
var Migrations embed.FS
