package shared

import (
	"context"
	"database/sql"
	"io/fs"

	"github.com/golang-migrate/migrate/v4/database"
)

type ConnectionPurpose int

const (
	// PurposeTarget connects to the application database.
	PurposeTarget ConnectionPurpose = iota
	// PurposeMaintenance connects to the server without selecting the
	// application database, so it works before the database exists.
	PurposeMaintenance
)

func (p ConnectionPurpose) String() string {
	if p == PurposeMaintenance {
		return "maintenance"
	}

	return "target"
}

// MigrationTarget is a migrate database driver bound to a handle. Borrowed
// drivers share the handle's connection and are never closed by the handle;
// owned drivers hold their own connection and are closed after each use.
type MigrationTarget struct {
	Driver database.Driver
	Owned  bool
}

// Dialect isolates everything provider specific from Factory and Handle.
type Dialect interface {
	Name() string
	Target() string
	OpenDB(purpose ConnectionPurpose) (*sql.DB, error)
	IsUnknownDatabase(err error) bool
	CreateDatabase(ctx context.Context, maintenance *sql.Conn) (bool, error)
	MigrationTarget(ctx context.Context, conn *sql.Conn) (MigrationTarget, error)
	Migrations() (fs.FS, string)
	QuoteIdentifier(name string) string
	AtomicMigrations() bool
}
