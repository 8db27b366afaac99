package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"ledgerdesk/internal/adapters/outbound/persistence/shared"
)

const (
	ProviderName = "sqlite"

	driverName     = "sqlite"
	maintenanceDSN = "file::memory:"
	// applicationID is written to the header of every database file this
	// dialect creates ("LDK1").
	applicationID = 0x4C444B31
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

var uriEscaper = strings.NewReplacer("%", "%25", "?", "%3f", "#", "%23")

type Dialect struct {
	path string
}

var _ shared.Dialect = (*Dialect)(nil)

// NewDialect accepts a plain file path or a "file:" URI. In-memory databases
// are rejected because every handle would see a different database.
func NewDialect(connectionString string) (*Dialect, error) {
	raw := strings.TrimSpace(connectionString)
	raw = strings.TrimPrefix(raw, "file:")
	if index := strings.IndexByte(raw, '?'); index >= 0 {
		raw = raw[:index]
	}
	if raw == "" {
		return nil, errors.New("sqlite database path is required")
	}
	if raw == ":memory:" || strings.HasPrefix(raw, ":memory:") {
		return nil, errors.New("sqlite in-memory databases are not supported")
	}

	path, err := filepath.Abs(raw)
	if err != nil {
		return nil, fmt.Errorf("resolve sqlite path %s: %w", raw, err)
	}

	return &Dialect{path: path}, nil
}

func (d *Dialect) Name() string {
	return ProviderName
}

func (d *Dialect) Target() string {
	return d.path
}

func (d *Dialect) OpenDB(purpose shared.ConnectionPurpose) (*sql.DB, error) {
	dsn := d.dsn("rw")
	if purpose == shared.PurposeMaintenance {
		dsn = maintenanceDSN
	}

	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", purpose, err)
	}

	return db, nil
}

func (d *Dialect) IsUnknownDatabase(err error) bool {
	var sqliteErr *sqlite.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}

	return sqliteErr.Code()&0xff == sqlite3.SQLITE_CANTOPEN
}

func (d *Dialect) CreateDatabase(ctx context.Context, _ *sql.Conn) (bool, error) {
	if _, err := os.Stat(d.path); err == nil {
		return false, nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return false, err
	}

	if err := os.MkdirAll(filepath.Dir(d.path), 0o755); err != nil {
		return false, fmt.Errorf("create sqlite directory: %w", err)
	}

	db, err := sql.Open(driverName, d.dsn("rwc"))
	if err != nil {
		return false, err
	}
	defer db.Close()

	if _, err := db.ExecContext(ctx, fmt.Sprintf("PRAGMA application_id = %d", applicationID)); err != nil {
		return false, fmt.Errorf("initialize sqlite file: %w", err)
	}

	return true, nil
}

// MigrationTarget opens a second connection for the migrate driver, which
// only accepts a *sql.DB.
func (d *Dialect) MigrationTarget(context.Context, *sql.Conn) (shared.MigrationTarget, error) {
	db, err := d.OpenDB(shared.PurposeTarget)
	if err != nil {
		return shared.MigrationTarget{}, err
	}

	driver, err := migratesqlite.WithInstance(db, &migratesqlite.Config{})
	if err != nil {
		_ = db.Close()
		return shared.MigrationTarget{}, err
	}

	return shared.MigrationTarget{Driver: driver, Owned: true}, nil
}

func (d *Dialect) Migrations() (fs.FS, string) {
	return migrationFiles, "migrations"
}

func (d *Dialect) QuoteIdentifier(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func (d *Dialect) AtomicMigrations() bool {
	return true
}

func (d *Dialect) dsn(mode string) string {
	return "file:" + uriEscaper.Replace(filepath.ToSlash(d.path)) +
		"?mode=" + mode +
		"&_pragma=busy_timeout(5000)" +
		"&_pragma=foreign_keys(1)"
}
