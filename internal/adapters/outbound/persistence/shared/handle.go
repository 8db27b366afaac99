package shared

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"

	portsout "ledgerdesk/internal/application/ports/out"
	valueobjects "ledgerdesk/internal/domain/value_objects"
	apperrors "ledgerdesk/internal/shared_kernel/errors"
)

var (
	ErrHandleNotOpen     = errors.New("persistence handle is not open")
	ErrHandleAlreadyOpen = errors.New("persistence handle is already open")
	ErrHandleClosed      = errors.New("persistence handle is closed")
	ErrDatabaseMissing   = errors.New("target database does not exist")
)

// Handle owns one exclusive connection between Open and Close. When the
// target database is missing, Open falls back to a server-level connection
// that only supports EnsureSchemaCreated and PendingMigrations.
type Handle struct {
	dialect Dialect
	pool    *sql.DB
	logger  portsout.LoggerSink

	mu         sync.Mutex
	conn       *sql.Conn
	ownedDB    *sql.DB
	serverOnly bool
	closed     bool
}

var _ portsout.PersistenceHandle = (*Handle)(nil)

func (h *Handle) Open(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return ErrHandleClosed
	}
	if h.conn != nil {
		return ErrHandleAlreadyOpen
	}

	conn, owned, err := h.connect(ctx, PurposeTarget)
	if err != nil {
		if !h.dialect.IsUnknownDatabase(err) {
			return fmt.Errorf("connect to %s: %w", h.dialect.Target(), err)
		}

		conn, owned, err = h.connect(ctx, PurposeMaintenance)
		if err != nil {
			return fmt.Errorf("connect to %s server: %w", h.dialect.Target(), err)
		}
		h.serverOnly = true
		h.logger.Info("target database missing, using server connection", "target", h.dialect.Target())
	}

	h.conn = conn
	h.ownedDB = owned
	return nil
}

func (h *Handle) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil
	}
	h.closed = true

	var errs []error
	if h.conn != nil {
		if err := h.conn.Close(); err != nil && !errors.Is(err, sql.ErrConnDone) {
			errs = append(errs, fmt.Errorf("close connection: %w", err))
		}
		h.conn = nil
	}
	if h.ownedDB != nil {
		if err := h.ownedDB.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close database: %w", err))
		}
		h.ownedDB = nil
	}

	return errors.Join(errs...)
}

func (h *Handle) EnsureSchemaCreated(ctx context.Context) (bool, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if err := h.requireOpen(); err != nil {
		return false, err
	}
	if !h.serverOnly {
		return false, nil
	}

	created, err := h.dialect.CreateDatabase(ctx, h.conn)
	if err != nil {
		return false, fmt.Errorf("create database %s: %w", h.dialect.Target(), err)
	}

	return created, nil
}

func (h *Handle) PendingMigrations(ctx context.Context) (valueobjects.SchemaState, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if err := h.requireOpen(); err != nil {
		return valueobjects.SchemaState{}, err
	}

	return h.schemaState(ctx)
}

// ApplyMigration applies exactly one migration, which must be the next
// pending one.
func (h *Handle) ApplyMigration(ctx context.Context, id string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if err := h.requireTarget(); err != nil {
		return err
	}

	requested, err := valueobjects.ParseMigrationID(id)
	if err != nil {
		return err
	}

	state, err := h.schemaState(ctx)
	if err != nil {
		return err
	}
	if state.Dirty {
		return apperrors.NewMigration(
			"DB_MIGRATION_DIRTY",
			"database migration version is dirty",
			map[string]any{"version": state.CurrentVersion},
			nil,
		)
	}
	if !state.HasPending() {
		return fmt.Errorf("migration %s is not pending", id)
	}
	if next := state.Pending[0]; next.Version != requested.Version {
		return fmt.Errorf("migration %s is out of order, next pending is %s", id, next)
	}

	fsys, dir := h.dialect.Migrations()
	src, err := OpenMigrationSource(fsys, dir)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := src.Close(); closeErr != nil {
			h.logger.Error("failed to close migration source", closeErr, "provider", h.dialect.Name())
		}
	}()

	target, err := h.dialect.MigrationTarget(ctx, h.conn)
	if err != nil {
		return fmt.Errorf("prepare migration driver: %w", err)
	}
	defer h.release(target)

	// The database driver may share this handle's connection, so the
	// migrate instance itself is never closed.
	runner, err := migrate.NewWithInstance("iofs", src, h.dialect.Name(), target.Driver)
	if err != nil {
		return fmt.Errorf("init migration runner: %w", err)
	}

	if err := runner.Steps(1); err != nil {
		return fmt.Errorf("apply migration %s: %w", id, err)
	}

	return nil
}

func (h *Handle) Count(ctx context.Context, table string) (int64, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if err := h.requireTarget(); err != nil {
		return 0, err
	}

	var rows int64
	query := "SELECT COUNT(*) FROM " + h.dialect.QuoteIdentifier(table)
	if err := h.conn.QueryRowContext(ctx, query).Scan(&rows); err != nil {
		return 0, fmt.Errorf("count rows in %s: %w", table, err)
	}

	return rows, nil
}

func (h *Handle) schemaState(ctx context.Context) (valueobjects.SchemaState, error) {
	fsys, dir := h.dialect.Migrations()
	catalog, err := LoadMigrationCatalog(fsys, dir)
	if err != nil {
		return valueobjects.SchemaState{}, apperrors.NewMigration(
			"DB_MIGRATION_SOURCE_INVALID",
			"migration source is invalid",
			map[string]any{"provider": h.dialect.Name()},
			err,
		)
	}

	state := valueobjects.SchemaState{
		DatabaseExists:    !h.serverOnly,
		SourceFingerprint: catalog.Fingerprint,
	}
	if h.serverOnly {
		state.Pending = catalog.Pending(nil)
		return state, nil
	}

	target, err := h.dialect.MigrationTarget(ctx, h.conn)
	if err != nil {
		return valueobjects.SchemaState{}, fmt.Errorf("prepare migration driver: %w", err)
	}
	defer h.release(target)

	version, dirty, err := target.Driver.Version()
	if err != nil {
		return valueobjects.SchemaState{}, fmt.Errorf("read migration version: %w", err)
	}

	if version == database.NilVersion {
		state.Pending = catalog.Pending(nil)
		return state, nil
	}

	current := uint(version)
	state.Versioned = true
	state.CurrentVersion = current
	state.Dirty = dirty
	state.Pending = catalog.Pending(&current)
	return state, nil
}

func (h *Handle) connect(ctx context.Context, purpose ConnectionPurpose) (*sql.Conn, *sql.DB, error) {
	db := h.pool
	var owned *sql.DB
	if db == nil || purpose == PurposeMaintenance {
		opened, err := h.dialect.OpenDB(purpose)
		if err != nil {
			return nil, nil, err
		}
		ConfigureSingleConnection(opened)
		db, owned = opened, opened
	}

	conn, err := db.Conn(ctx)
	if err == nil {
		if err = conn.PingContext(ctx); err != nil {
			_ = conn.Close()
		}
	}
	if err != nil {
		if owned != nil {
			_ = owned.Close()
		}
		return nil, nil, err
	}

	return conn, owned, nil
}

func (h *Handle) release(target MigrationTarget) {
	if !target.Owned || target.Driver == nil {
		return
	}

	if err := target.Driver.Close(); err != nil {
		h.logger.Error("failed to close migration driver", err, "provider", h.dialect.Name())
	}
}

func (h *Handle) requireOpen() error {
	if h.closed {
		return ErrHandleClosed
	}
	if h.conn == nil {
		return ErrHandleNotOpen
	}

	return nil
}

func (h *Handle) requireTarget() error {
	if err := h.requireOpen(); err != nil {
		return err
	}
	if h.serverOnly {
		return ErrDatabaseMissing
	}

	return nil
}
