package di

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"golang.org/x/sync/singleflight"

	"ledgerdesk/internal/adapters/outbound/persistence/shared"
	portsin "ledgerdesk/internal/application/ports/in"
	portsout "ledgerdesk/internal/application/ports/out"
	"ledgerdesk/internal/application/use_cases"
	"ledgerdesk/internal/infrastructure/config"
	apperrors "ledgerdesk/internal/shared_kernel/errors"
)

var (
	ErrHostNotStarted = errors.New("runtime host is not started")
	ErrHostStopped    = errors.New("runtime host is stopped")
)

type MainWindowBuilder func(cfg config.Config) portsout.MainWindow

type Options struct {
	Logger            portsout.LoggerSink
	Observer          portsout.BootstrapObserver
	Clock             use_cases.Clock
	Tables            []string
	MainWindowBuilder MainWindowBuilder
}

type namedCloser struct {
	name   string
	closer io.Closer
}

// Host owns every long-lived service of the process. Services are built in
// Start and released in reverse order by Stop.
type Host struct {
	cfg     config.Config
	source  portsout.ConfigurationSource
	options Options
	flight  singleflight.Group

	mu      sync.Mutex
	started bool
	stopped bool
	closers []namedCloser
	scopes  sync.WaitGroup

	factory            ManagedPersistenceFactory
	initializeUseCase  portsin.InitializeReadinessUseCase
	schemaStateUseCase portsin.GetSchemaStateUseCase

	mainWindowOnce sync.Once
	mainWindow     portsout.MainWindow
}

func NewHost(cfg config.Config, source portsout.ConfigurationSource, options Options) *Host {
	if options.Logger == nil {
		options.Logger = discardLogger{}
	}

	return &Host{
		cfg:     cfg,
		source:  source,
		options: options,
	}
}

// Start builds the container. Any failure leaves nothing running and is
// reported as a host_start error.
func (h *Host) Start(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.stopped {
		return apperrors.NewHostStart("HOST_STOPPED", "runtime host is stopped", nil, ErrHostStopped)
	}
	if h.started {
		return nil
	}

	provider := h.cfg.Database.Provider
	builder, exists := lookupPersistenceProvider(provider)
	if !exists {
		return apperrors.NewHostStart(
			"HOST_PROVIDER_UNSUPPORTED",
			"unsupported persistence provider: "+provider,
			map[string]any{"provider": provider},
			nil,
		)
	}

	if h.source == nil {
		return apperrors.NewHostStart("HOST_CONFIGURATION_MISSING", "configuration source is required", nil, nil)
	}
	connectionString, err := h.source.ConnectionString(h.cfg.Database.ConnectionName)
	if err != nil {
		var configErr *apperrors.AppError
		if errors.As(err, &configErr) && configErr.Type == apperrors.TypeConfiguration {
			return configErr
		}
		return apperrors.NewHostStart(
			"HOST_CONNECTION_STRING_MISSING",
			"connection string is not available",
			map[string]any{"name": h.cfg.Database.ConnectionName},
			err,
		)
	}

	factory, err := builder(connectionString, shared.FactoryOptions{
		Pooled: h.cfg.Database.Pooled,
		Pool: shared.PoolSettings{
			MaxOpenConns:    h.cfg.Database.Pool.MaxOpenConns,
			MaxIdleConns:    h.cfg.Database.Pool.MaxIdleConns,
			ConnMaxIdleTime: h.cfg.Database.Pool.ConnMaxIdleTime,
			ConnMaxLifetime: h.cfg.Database.Pool.ConnMaxLifetime,
		},
		Logger: h.options.Logger,
	})
	if err != nil {
		return apperrors.NewHostStart(
			"HOST_PERSISTENCE_INVALID",
			"invalid persistence configuration",
			map[string]any{"provider": provider},
			err,
		)
	}
	if err := factory.Start(ctx); err != nil {
		if closeErr := factory.Close(); closeErr != nil {
			h.options.Logger.Error("failed to release persistence factory", closeErr, "provider", provider)
		}
		return apperrors.NewHostStart(
			"HOST_PERSISTENCE_START_FAILED",
			"failed to start persistence factory",
			map[string]any{"provider": provider},
			err,
		)
	}

	h.factory = factory
	h.closers = append(h.closers, namedCloser{name: "persistence factory", closer: factory})

	h.initializeUseCase = use_cases.NewInitializeReadinessUseCase(
		factory,
		h.options.Logger,
		h.options.Observer,
		h.options.Clock,
		&h.flight,
		h.options.Tables,
	)
	h.schemaStateUseCase = use_cases.NewGetSchemaStateUseCase(factory)
	h.started = true

	info := factory.Describe()
	h.options.Logger.Info(
		"runtime host started",
		"provider", info.Provider,
		"target", info.Target,
		"pooled", info.Pooled,
	)
	return nil
}

// Stop waits for open scopes and releases services in reverse construction
// order. It is safe to call repeatedly and before Start.
func (h *Host) Stop() error {
	h.mu.Lock()
	if h.stopped {
		h.mu.Unlock()
		return nil
	}
	h.stopped = true
	started := h.started
	h.mu.Unlock()

	if !started {
		return nil
	}

	h.scopes.Wait()

	h.mu.Lock()
	closers := h.closers
	h.closers = nil
	h.mu.Unlock()

	var errs []error
	for i := len(closers) - 1; i >= 0; i-- {
		if err := closers[i].closer.Close(); err != nil {
			h.options.Logger.Error("failed to release "+closers[i].name, err)
			errs = append(errs, fmt.Errorf("close %s: %w", closers[i].name, err))
		}
	}

	h.options.Logger.Info("runtime host stopped")
	return errors.Join(errs...)
}

// NewScope opens a resolution scope. Stop blocks until every scope is closed.
func (h *Host) NewScope() (*Scope, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.stopped {
		return nil, ErrHostStopped
	}
	if !h.started {
		return nil, ErrHostNotStarted
	}

	h.scopes.Add(1)
	return &Scope{host: h}, nil
}

// MainWindow resolves the single main window instance.
func (h *Host) MainWindow() (portsout.MainWindow, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.stopped {
		return nil, ErrHostStopped
	}
	if !h.started {
		return nil, ErrHostNotStarted
	}
	if h.options.MainWindowBuilder == nil {
		return nil, errors.New("main window builder is not configured")
	}

	h.mainWindowOnce.Do(func() {
		h.mainWindow = h.options.MainWindowBuilder(h.cfg)
		if closer, ok := h.mainWindow.(io.Closer); ok {
			h.closers = append(h.closers, namedCloser{name: "main window", closer: closer})
		}
	})

	return h.mainWindow, nil
}

func (h *Host) PersistenceInfo() (portsout.PersistenceFactoryInfo, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.started {
		return portsout.PersistenceFactoryInfo{}, ErrHostNotStarted
	}

	return h.factory.Describe(), nil
}

// Scope is a unit of work resolved from the host.
type Scope struct {
	host *Host
	once sync.Once
}

func (s *Scope) InitializeReadiness() portsin.InitializeReadinessUseCase {
	return s.host.initializeUseCase
}

func (s *Scope) GetSchemaState() portsin.GetSchemaStateUseCase {
	return s.host.schemaStateUseCase
}

func (s *Scope) PersistenceFactory() portsout.PersistenceFactory {
	return s.host.factory
}

func (s *Scope) Close() {
	s.once.Do(s.host.scopes.Done)
}

type discardLogger struct{}

func (discardLogger) Info(string, ...any)         {}
func (discardLogger) Error(string, error, ...any) {}
func (discardLogger) Fatal(string, error)         {}
func (discardLogger) Flush() error                { return nil }
