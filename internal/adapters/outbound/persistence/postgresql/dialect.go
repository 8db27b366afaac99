package postgresql

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"strings"

	migratepostgres "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/stdlib"

	"ledgerdesk/internal/adapters/outbound/persistence/shared"
)

const (
	ProviderName = "postgresql"

	maintenanceDatabase = "postgres"
	migrationsTable     = "schema_migrations"

	sqlStateInvalidCatalogName = "3D000"
	sqlStateDuplicateDatabase  = "42P04"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

type Dialect struct {
	config *pgx.ConnConfig
	target string
}

var _ shared.Dialect = (*Dialect)(nil)

func NewDialect(connectionString string) (*Dialect, error) {
	config, err := pgx.ParseConfig(strings.TrimSpace(connectionString))
	if err != nil {
		return nil, fmt.Errorf("parse postgresql connection string: %w", err)
	}
	if config.Host == "" {
		return nil, errors.New("postgresql host is required")
	}
	if config.Database == "" {
		return nil, errors.New("postgresql database name is required")
	}

	return &Dialect{
		config: config,
		target: DatabaseTarget(config),
	}, nil
}

// DatabaseTarget renders host:port/database without credentials.
func DatabaseTarget(config *pgx.ConnConfig) string {
	return fmt.Sprintf("%s:%d/%s", config.Host, config.Port, config.Database)
}

func (d *Dialect) Name() string {
	return ProviderName
}

func (d *Dialect) Target() string {
	return d.target
}

func (d *Dialect) DatabaseName() string {
	return d.config.Database
}

func (d *Dialect) OpenDB(purpose shared.ConnectionPurpose) (*sql.DB, error) {
	config := d.config.Copy()
	if purpose == shared.PurposeMaintenance {
		config.Database = maintenanceDatabase
	}

	return stdlib.OpenDB(*config), nil
}

func (d *Dialect) IsUnknownDatabase(err error) bool {
	return hasSQLState(err, sqlStateInvalidCatalogName)
}

// CreateDatabase runs on the native pgx connection behind the maintenance
// handle. A concurrent creator winning the race counts as "already exists".
func (d *Dialect) CreateDatabase(ctx context.Context, maintenance *sql.Conn) (bool, error) {
	created := false
	err := maintenance.Raw(func(driverConn any) error {
		stdlibConn, ok := driverConn.(*stdlib.Conn)
		if !ok {
			return fmt.Errorf("unexpected driver connection %T", driverConn)
		}
		conn := stdlibConn.Conn()

		var exists bool
		if err := conn.QueryRow(
			ctx,
			"SELECT EXISTS (SELECT 1 FROM pg_database WHERE datname = $1)",
			d.config.Database,
		).Scan(&exists); err != nil {
			return fmt.Errorf("query pg_database: %w", err)
		}
		if exists {
			return nil
		}

		_, err := conn.Exec(ctx, "CREATE DATABASE "+pgx.Identifier{d.config.Database}.Sanitize())
		if hasSQLState(err, sqlStateDuplicateDatabase) {
			return nil
		}
		if err != nil {
			return err
		}

		created = true
		return nil
	})
	if err != nil {
		return false, err
	}

	return created, nil
}

func (d *Dialect) MigrationTarget(ctx context.Context, conn *sql.Conn) (shared.MigrationTarget, error) {
	driver, err := migratepostgres.WithConnection(ctx, conn, &migratepostgres.Config{
		MigrationsTable: migrationsTable,
		DatabaseName:    d.config.Database,
	})
	if err != nil {
		return shared.MigrationTarget{}, err
	}

	return shared.MigrationTarget{Driver: driver}, nil
}

func (d *Dialect) Migrations() (fs.FS, string) {
	return migrationFiles, "migrations"
}

func (d *Dialect) QuoteIdentifier(name string) string {
	return pgx.Identifier{name}.Sanitize()
}

func (d *Dialect) AtomicMigrations() bool {
	return true
}

func hasSQLState(err error, code string) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == code
}
