package bootstrap

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/fatih/color"
	"golang.org/x/text/message"

	"ledgerdesk/internal/adapters/inbound/console"
	"ledgerdesk/internal/application/dto"
	portsout "ledgerdesk/internal/application/ports/out"
	valueobjects "ledgerdesk/internal/domain/value_objects"
	"ledgerdesk/internal/infrastructure/config"
	"ledgerdesk/internal/infrastructure/di"
	"ledgerdesk/internal/infrastructure/diagnostics"
	"ledgerdesk/internal/infrastructure/logging"
	apperrors "ledgerdesk/internal/shared_kernel/errors"
)

const (
	ExitOK              = 0
	ExitStartupError    = 1
	ExitBootstrapFailed = 2
	ExitInterrupted     = 130
)

type Options struct {
	// ConfigPath overrides the configuration search path.
	ConfigPath string
	// Watch reloads logging.level and diagnostics.metrics_file on change.
	Watch bool

	// Stdin keeps the main window open until a line is read. Nil closes it
	// right after rendering.
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
}

// Shell sequences one process lifetime: configuration, runtime host,
// readiness bootstrap, then the main window or a failure notice.
type Shell struct {
	options Options

	mu    sync.Mutex
	state valueobjects.ShellState
}

type session struct {
	logger   *logging.Sink
	source   *config.Source
	cfg      config.Config
	printer  *message.Printer
	notifier *console.FailureNotice
	metrics  *diagnostics.BootstrapMetrics
	host     *di.Host
}

func NewShell(options Options) *Shell {
	if options.Stdout == nil {
		options.Stdout = os.Stdout
	}
	if options.Stderr == nil {
		options.Stderr = os.Stderr
	}

	return &Shell{
		options: options,
		state:   valueobjects.ShellStateNotStarted,
	}
}

func (s *Shell) State() valueobjects.ShellState {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.state
}

// Run starts the application and returns the process exit code.
func (s *Shell) Run(ctx context.Context) (exitCode int) {
	rt, err := s.newSession()
	if err != nil {
		fmt.Fprintf(s.options.Stderr, "ledgerdesk: %v\n", err)
		return ExitStartupError
	}
	defer s.shutdown(rt)
	defer s.recoverStartup(rt, &exitCode)

	s.transition(rt, valueobjects.ShellStateStarting)
	if !s.configure(rt) {
		s.transition(rt, valueobjects.ShellStateFailed)
		return ExitStartupError
	}

	rt.metrics = diagnostics.NewBootstrapMetrics(rt.cfg.Diagnostics.MetricsFile)
	if s.options.Watch {
		s.watch(rt)
	}

	if err := s.startHost(ctx, rt); err != nil {
		s.transition(rt, valueobjects.ShellStateFailed)
		return ExitStartupError
	}

	s.transition(rt, valueobjects.ShellStateBootstrapRunning)
	outcome, err := s.bootstrap(ctx, rt)
	if err != nil {
		rt.logger.Fatal("failed to resolve readiness bootstrap", err)
		rt.notifier.NotifyStartupError(err)
		s.transition(rt, valueobjects.ShellStateFailed)
		return ExitStartupError
	}

	switch {
	case outcome.Interrupted():
		rt.logger.Info("startup interrupted, shutting down", "run_id", outcome.RunID())
		rt.notifier.NotifyFailure(outcome)
		s.transition(rt, valueobjects.ShellStateStopping)
		return ExitInterrupted
	case !outcome.Succeeded():
		rt.logger.Fatal("bootstrap failed, main window will not open", outcome.Err())
		rt.notifier.NotifyFailure(outcome)
		s.transition(rt, valueobjects.ShellStateFailed)
		return ExitBootstrapFailed
	}

	s.transition(rt, valueobjects.ShellStateReady)
	window, err := rt.host.MainWindow()
	if err != nil {
		return s.failAfterReady(rt, "failed to resolve main window", err)
	}

	if err := window.Show(ctx, outcome.Report()); err != nil {
		return s.failAfterReady(rt, "main window failed", err)
	}

	rt.logger.Info("main window closed")
	return ExitOK
}

// failAfterReady reports a UI failure once the bootstrap has succeeded. Ready
// only leads to Stopping, so the failure lives in the log and the exit code.
func (s *Shell) failAfterReady(rt *session, msg string, err error) int {
	rt.logger.Error(msg, err, "state", s.State().String(), "exit_code", ExitStartupError)
	rt.logger.Fatal(msg, err)
	rt.notifier.NotifyStartupError(err)
	return ExitStartupError
}

// RunProbe checks that the configured database is reachable. It returns
// ExitOK when it is and ExitStartupError otherwise.
func (s *Shell) RunProbe(ctx context.Context) int {
	rt, err := s.newSession()
	if err != nil {
		fmt.Fprintf(s.options.Stderr, "ledgerdesk: %v\n", err)
		return ExitStartupError
	}
	defer s.shutdown(rt)

	if !s.configure(rt) {
		return ExitStartupError
	}
	if err := s.startHost(ctx, rt); err != nil {
		return ExitStartupError
	}

	scope, err := rt.host.NewScope()
	if err != nil {
		rt.logger.Error("failed to open host scope", err)
		return ExitStartupError
	}
	defer scope.Close()

	info := scope.PersistenceFactory().Describe()
	reachable := scope.InitializeReadiness().ProbeConnectivity(ctx, dto.ProbeConnectivityCommand{
		Timeout: rt.cfg.Database.ProbeTimeout,
	})
	if !reachable {
		fmt.Fprintf(s.options.Stdout, "%s %s %s\n", info.Provider, info.Target, color.RedString("unreachable"))
		return ExitStartupError
	}

	fmt.Fprintf(s.options.Stdout, "%s %s %s\n", info.Provider, info.Target, color.GreenString("reachable"))
	return ExitOK
}

// RunMigrationStatus prints the schema version and pending migrations
// without applying anything.
func (s *Shell) RunMigrationStatus(ctx context.Context) int {
	rt, err := s.newSession()
	if err != nil {
		fmt.Fprintf(s.options.Stderr, "ledgerdesk: %v\n", err)
		return ExitStartupError
	}
	defer s.shutdown(rt)

	if !s.configure(rt) {
		return ExitStartupError
	}
	if err := s.startHost(ctx, rt); err != nil {
		return ExitStartupError
	}

	scope, err := rt.host.NewScope()
	if err != nil {
		rt.logger.Error("failed to open host scope", err)
		return ExitStartupError
	}
	defer scope.Close()

	state, appErr := scope.GetSchemaState().Execute(ctx, dto.GetSchemaStateCommand{
		Timeout: rt.cfg.Database.StageTimeout,
	})
	if appErr != nil {
		rt.logger.Error("failed to read schema state", appErr, "code", appErr.Code)
		rt.notifier.NotifyStartupError(appErr)
		return ExitStartupError
	}

	console.RenderSchemaState(s.options.Stdout, scope.PersistenceFactory().Describe().Provider, state)
	return ExitOK
}

func (s *Shell) newSession() (*session, error) {
	logger, err := logging.New(logging.Options{
		Level:         "info",
		Console:       true,
		ConsoleWriter: s.options.Stderr,
	})
	if err != nil {
		return nil, fmt.Errorf("initialize logging: %w", err)
	}

	printer := console.NewPrinter(console.DetectLocale(""))
	return &session{
		logger:   logger,
		printer:  printer,
		notifier: console.NewFailureNotice(s.options.Stderr, printer, ""),
	}, nil
}

func (s *Shell) configure(rt *session) bool {
	source, cfgErr := config.Load(s.options.ConfigPath)
	if cfgErr != nil {
		appErr := apperrors.NewConfiguration(cfgErr.Code, cfgErr.Message, metadataDetails(cfgErr.Metadata))
		rt.logger.Fatal("failed to load configuration", appErr)
		rt.notifier.NotifyStartupError(appErr)
		return false
	}

	rt.source = source
	rt.cfg = source.Config()

	if err := rt.logger.Apply(loggingOptions(rt.cfg.Logging, s.options.Stderr)); err != nil {
		rt.logger.Error("failed to apply logging configuration, keeping console output", err)
	}

	rt.printer = console.NewPrinter(console.DetectLocale(rt.cfg.UI.Locale))
	rt.notifier = console.NewFailureNotice(s.options.Stderr, rt.printer, logFilePath(rt.cfg.Logging))

	rt.logger.Info(
		"configuration loaded",
		"file", source.ConfigFileUsed(),
		"provider", rt.cfg.Database.Provider,
		"connection_name", rt.cfg.Database.ConnectionName,
		"pooled", rt.cfg.Database.Pooled,
	)
	return true
}

func (s *Shell) watch(rt *session) {
	rt.source.OnReload(func(cfg config.Config) {
		if err := rt.logger.SetLevel(cfg.Logging.Level); err != nil {
			rt.logger.Error("failed to apply reloaded log level", err)
		}
		rt.metrics.SetMetricsFile(cfg.Diagnostics.MetricsFile)
	})
	rt.source.Watch(rt.logger)
}

func (s *Shell) startHost(ctx context.Context, rt *session) error {
	options := di.Options{
		Logger: rt.logger,
		MainWindowBuilder: func(cfg config.Config) portsout.MainWindow {
			return console.NewMainWindow(s.options.Stdout, s.options.Stdin, cfg.UI.Title, rt.printer)
		},
	}
	if rt.metrics != nil {
		options.Observer = rt.metrics
	}

	host := di.NewHost(rt.cfg, rt.source, options)
	if err := host.Start(ctx); err != nil {
		rt.logger.Fatal("runtime host failed to start", err)
		rt.notifier.NotifyStartupError(err)
		return err
	}

	rt.host = host
	return nil
}

func (s *Shell) bootstrap(ctx context.Context, rt *session) (dto.BootstrapOutcome, error) {
	scope, err := rt.host.NewScope()
	if err != nil {
		return dto.BootstrapOutcome{}, err
	}
	defer scope.Close()

	splash := console.NewSplash(s.options.Stdout, rt.printer)
	splash.Start(console.PreparingMessage())
	defer splash.Stop()

	return scope.InitializeReadiness().Initialize(ctx, dto.InitializeReadinessCommand{
		ProbeTimeout: rt.cfg.Database.ProbeTimeout,
	}), nil
}

func (s *Shell) recoverStartup(rt *session, exitCode *int) {
	recovered := recover()
	if recovered == nil {
		return
	}

	err := apperrors.NewInternal("SHELL_PANIC", "unhandled error during startup", nil, fmt.Errorf("panic: %v", recovered))
	rt.logger.Fatal("unhandled error during startup", err)
	rt.notifier.NotifyStartupError(err)
	if s.State().CanTransitionTo(valueobjects.ShellStateFailed) {
		s.transition(rt, valueobjects.ShellStateFailed)
	}
	*exitCode = ExitStartupError
}

// shutdown stops the host and flushes diagnostics and logs. It runs on every
// exit path.
func (s *Shell) shutdown(rt *session) {
	if current := s.State(); current.CanTransitionTo(valueobjects.ShellStateStopping) {
		s.transition(rt, valueobjects.ShellStateStopping)
	}

	if rt.host != nil {
		if err := rt.host.Stop(); err != nil {
			rt.logger.Error("runtime host stopped with errors", err)
		}
	}
	if rt.metrics != nil {
		if err := rt.metrics.Flush(); err != nil {
			rt.logger.Error("failed to write bootstrap metrics", err, "file", rt.metrics.MetricsFile())
		}
	}

	if s.State() == valueobjects.ShellStateStopping {
		s.transition(rt, valueobjects.ShellStateStopped)
	}
	rt.logger.Info("ledgerdesk exiting", "state", s.State().String())

	if err := rt.logger.Close(); err != nil {
		fmt.Fprintf(s.options.Stderr, "ledgerdesk: failed to flush logs: %v\n", err)
	}
}

func (s *Shell) transition(rt *session, next valueobjects.ShellState) {
	s.mu.Lock()
	previous := s.state
	state, err := previous.TransitionTo(next)
	s.state = state
	s.mu.Unlock()

	if err != nil {
		rt.logger.Error("invalid shell state transition", err)
		return
	}
	rt.logger.Info("shell state changed", "from", previous.String(), "to", next.String())
}

func loggingOptions(cfg config.LoggingConfig, consoleWriter io.Writer) logging.Options {
	return logging.Options{
		Level:         cfg.Level,
		Directory:     cfg.Directory,
		FileName:      cfg.FileName,
		MaxAgeDays:    cfg.MaxAgeDays,
		MaxBackups:    cfg.MaxBackups,
		Compress:      cfg.Compress,
		Console:       cfg.Console,
		ConsoleWriter: consoleWriter,
	}
}

func logFilePath(cfg config.LoggingConfig) string {
	if cfg.Directory == "" {
		return ""
	}
	if cfg.FileName == "" {
		return filepath.Join(cfg.Directory, "ledgerdesk.log")
	}

	return filepath.Join(cfg.Directory, cfg.FileName)
}

func metadataDetails(metadata map[string]string) map[string]any {
	if len(metadata) == 0 {
		return nil
	}

	details := make(map[string]any, len(metadata))
	for key, value := range metadata {
		details[key] = value
	}
	return details
}
