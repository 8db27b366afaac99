package mysql

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/go-sql-driver/mysql"
	migratemysql "github.com/golang-migrate/migrate/v4/database/mysql"

	"ledgerdesk/internal/adapters/outbound/persistence/shared"
)

const (
	ProviderName = "mysql"

	migrationsTable = "schema_migrations"

	errUnknownDatabase uint16 = 1049
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

type Dialect struct {
	config *mysql.Config
	target string
}

var _ shared.Dialect = (*Dialect)(nil)

func NewDialect(dsn string) (*Dialect, error) {
	config, err := mysql.ParseDSN(strings.TrimSpace(dsn))
	if err != nil {
		return nil, fmt.Errorf("parse mysql dsn: %w", err)
	}
	if config.DBName == "" {
		return nil, errors.New("mysql database name is required")
	}

	// Migration files hold several statements each.
	config.MultiStatements = true
	config.ParseTime = true

	return &Dialect{
		config: config,
		target: DatabaseTarget(config),
	}, nil
}

// DatabaseTarget renders addr/database without credentials.
func DatabaseTarget(config *mysql.Config) string {
	return config.Addr + "/" + config.DBName
}

func (d *Dialect) Name() string {
	return ProviderName
}

func (d *Dialect) Target() string {
	return d.target
}

func (d *Dialect) OpenDB(purpose shared.ConnectionPurpose) (*sql.DB, error) {
	config := d.config.Clone()
	if purpose == shared.PurposeMaintenance {
		config.DBName = ""
	}

	connector, err := mysql.NewConnector(config)
	if err != nil {
		return nil, fmt.Errorf("create mysql connector: %w", err)
	}

	return sql.OpenDB(connector), nil
}

func (d *Dialect) IsUnknownDatabase(err error) bool {
	var mysqlErr *mysql.MySQLError
	return errors.As(err, &mysqlErr) && mysqlErr.Number == errUnknownDatabase
}

func (d *Dialect) CreateDatabase(ctx context.Context, maintenance *sql.Conn) (bool, error) {
	var count int
	if err := maintenance.QueryRowContext(
		ctx,
		"SELECT COUNT(*) FROM information_schema.SCHEMATA WHERE SCHEMA_NAME = ?",
		d.config.DBName,
	).Scan(&count); err != nil {
		return false, fmt.Errorf("query information_schema: %w", err)
	}
	if count > 0 {
		return false, nil
	}

	statement := "CREATE DATABASE IF NOT EXISTS " + d.QuoteIdentifier(d.config.DBName) +
		" CHARACTER SET utf8mb4 COLLATE utf8mb4_unicode_ci"
	if _, err := maintenance.ExecContext(ctx, statement); err != nil {
		return false, err
	}

	return true, nil
}

func (d *Dialect) MigrationTarget(ctx context.Context, conn *sql.Conn) (shared.MigrationTarget, error) {
	driver, err := migratemysql.WithConnection(ctx, conn, &migratemysql.Config{
		MigrationsTable: migrationsTable,
		DatabaseName:    d.config.DBName,
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
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}

// AtomicMigrations is false: MySQL commits DDL implicitly, so a failing
// migration can leave earlier statements applied.
func (d *Dialect) AtomicMigrations() bool {
	return false
}
