// Package db holds the embedded database migration files.
package db

import "embed"

// Migrations contains the SQL migration files applied at startup.
//
//go:embed migrations/*.sql
var Migrations embed.FS
