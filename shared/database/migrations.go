package database

import "embed"

// MigrationsFS holds the SQL schema migrations, rooted at MigrationsDir.
//
//go:embed migrations/*.sql
var MigrationsFS embed.FS

// MigrationsDir is the directory of the migration files inside MigrationsFS.
const MigrationsDir = "migrations"
