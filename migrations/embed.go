// Package migrations embeds the SQL migration files into the binary.
//
// Importing the package registers the files with the database package.
package migrations

import (
	"embed"

	"github.com/nerrad567/nora-local/internal/infrastructure/database"
)

//go:embed *.sql
var migrationsFS embed.FS

func init() {
	database.MigrationsFS = migrationsFS
	database.MigrationsDir = "."
}
