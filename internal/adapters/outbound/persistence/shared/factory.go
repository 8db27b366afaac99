package shared

import (
	"context"
	"database/sql"
	"errors"
	"sync"

	portsout "ledgerdesk/internal/application/ports/out"
)

var (
	ErrFactoryNotStarted = errors.New("persistence factory is not started")
	ErrFactoryClosed     = errors.New("persistence factory is closed")
)

type FactoryOptions struct {
	Pooled bool
	Pool   PoolSettings
	Logger portsout.LoggerSink
}

// Factory creates handles for one dialect. In pooled mode every handle
// borrows a connection from a shared *sql.DB; otherwise each handle opens
// and closes its own single-connection *sql.DB.
type Factory struct {
	dialect Dialect
	options FactoryOptions

	mu      sync.RWMutex
	pool    *sql.DB
	started bool
	closed  bool
}

var _ portsout.PersistenceFactory = (*Factory)(nil)

func NewFactory(dialect Dialect, options FactoryOptions) *Factory {
	if options.Logger == nil {
		options.Logger = discardLogger{}
	}
	options.Pool = options.Pool.withDefaults()

	return &Factory{
		dialect: dialect,
		options: options,
	}
}

// Start opens the shared pool in pooled mode. It does not connect, so it
// succeeds even when the server is down.
func (f *Factory) Start(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return ErrFactoryClosed
	}
	if f.started {
		return nil
	}

	if f.options.Pooled {
		db, err := f.dialect.OpenDB(PurposeTarget)
		if err != nil {
			return err
		}
		ConfigurePool(db, f.options.Pool)
		f.pool = db

		f.options.Logger.Info(
			"database pool initialized",
			"provider", f.dialect.Name(),
			"target", f.dialect.Target(),
			"max_open_conns", f.options.Pool.MaxOpenConns,
		)
	}

	f.started = true
	return nil
}

func (f *Factory) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return nil
	}
	f.closed = true

	if f.pool == nil {
		return nil
	}

	err := f.pool.Close()
	f.pool = nil
	return err
}

func (f *Factory) CreateHandle(context.Context) (portsout.PersistenceHandle, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if f.closed {
		return nil, ErrFactoryClosed
	}
	if !f.started {
		return nil, ErrFactoryNotStarted
	}

	return &Handle{
		dialect: f.dialect,
		pool:    f.pool,
		logger:  f.options.Logger,
	}, nil
}

func (f *Factory) Describe() portsout.PersistenceFactoryInfo {
	return portsout.PersistenceFactoryInfo{
		Provider:         f.dialect.Name(),
		Target:           f.dialect.Target(),
		Pooled:           f.options.Pooled,
		AtomicMigrations: f.dialect.AtomicMigrations(),
	}
}

type discardLogger struct{}

func (discardLogger) Info(string, ...any)         {}
func (discardLogger) Error(string, error, ...any) {}
func (discardLogger) Fatal(string, error)         {}
func (discardLogger) Flush() error                { return nil }
