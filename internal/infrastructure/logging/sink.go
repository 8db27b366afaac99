package logging

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"

	portsout "ledgerdesk/internal/application/ports/out"
)

const (
	defaultFileName   = "ledgerdesk.log"
	defaultMaxSizeMB  = 50
	defaultMaxAgeDays = 14
)

type Options struct {
	Level      string
	Directory  string
	FileName   string
	MaxAgeDays int
	MaxBackups int
	Compress   bool
	Console    bool

	// ConsoleWriter defaults to os.Stderr.
	ConsoleWriter io.Writer
	// Now drives daily rolling; tests replace it.
	Now func() time.Time
}

// Sink is the process-wide zap logger behind portsout.LoggerSink. The active
// logger can be replaced with Apply while other goroutines keep logging.
type Sink struct {
	level   zap.AtomicLevel
	current atomic.Pointer[zap.Logger]

	mu      sync.Mutex
	closers []io.Closer
}

var _ portsout.LoggerSink = (*Sink)(nil)

// NewConsoleSink returns a console-only sink used until configuration is
// available.
func NewConsoleSink(level string) (*Sink, error) {
	return New(Options{Level: level, Console: true})
}

func New(options Options) (*Sink, error) {
	sink := &Sink{level: zap.NewAtomicLevel()}
	if err := sink.Apply(options); err != nil {
		return nil, err
	}

	return sink, nil
}

// Apply rebuilds the cores from options and swaps them in. Writers owned by
// the previous logger are synced and closed.
func (s *Sink) Apply(options Options) error {
	level, err := parseLevel(options.Level)
	if err != nil {
		return err
	}

	logger, closers, err := s.build(options)
	if err != nil {
		return err
	}

	s.level.SetLevel(level)
	s.mu.Lock()
	previous := s.current.Swap(logger)
	previousClosers := s.closers
	s.closers = closers
	s.mu.Unlock()

	if previous != nil {
		_ = ignoreTerminalSyncErrors(previous.Sync())
	}
	for _, closer := range previousClosers {
		_ = closer.Close()
	}

	return nil
}

func (s *Sink) SetLevel(level string) error {
	parsed, err := parseLevel(level)
	if err != nil {
		return err
	}

	s.level.SetLevel(parsed)
	return nil
}

func (s *Sink) Level() zapcore.Level {
	return s.level.Level()
}

func (s *Sink) Logger() *zap.Logger {
	return s.current.Load()
}

func (s *Sink) Info(msg string, keysAndValues ...any) {
	s.sugar().Infow(msg, keysAndValues...)
}

func (s *Sink) Error(msg string, err error, keysAndValues ...any) {
	s.sugar().Errorw(msg, withError(err, keysAndValues)...)
}

// Fatal writes at fatal severity and returns. Process exit stays with the
// caller so deferred shutdown can still run.
func (s *Sink) Fatal(msg string, err error) {
	s.sugar().Fatalw(msg, withError(err, nil)...)
}

func (s *Sink) Flush() error {
	return ignoreTerminalSyncErrors(s.current.Load().Sync())
}

// Close flushes and releases the log file.
func (s *Sink) Close() error {
	flushErr := s.Flush()

	s.mu.Lock()
	closers := s.closers
	s.closers = nil
	s.mu.Unlock()

	errs := []error{flushErr}
	for _, closer := range closers {
		errs = append(errs, closer.Close())
	}

	return errors.Join(errs...)
}

func (s *Sink) sugar() *zap.SugaredLogger {
	return s.current.Load().WithOptions(zap.AddCallerSkip(1)).Sugar()
}

func (s *Sink) build(options Options) (*zap.Logger, []io.Closer, error) {
	var cores []zapcore.Core
	var closers []io.Closer

	if options.Console || options.Directory == "" {
		consoleWriter := options.ConsoleWriter
		if consoleWriter == nil {
			consoleWriter = os.Stderr
		}

		encoderConfig := zap.NewDevelopmentEncoderConfig()
		encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		encoderConfig.EncodeCaller = zapcore.ShortCallerEncoder

		cores = append(cores, zapcore.NewCore(
			zapcore.NewConsoleEncoder(encoderConfig),
			zapcore.Lock(zapcore.AddSync(consoleWriter)),
			s.level,
		))
	}

	if options.Directory != "" {
		if err := os.MkdirAll(options.Directory, 0o755); err != nil {
			return nil, nil, fmt.Errorf("create log directory: %w", err)
		}

		fileName := options.FileName
		if fileName == "" {
			fileName = defaultFileName
		}
		maxAge := options.MaxAgeDays
		if maxAge <= 0 {
			maxAge = defaultMaxAgeDays
		}

		writer := newDailyWriter(&lumberjack.Logger{
			Filename:   filepath.Join(options.Directory, fileName),
			MaxSize:    defaultMaxSizeMB,
			MaxAge:     maxAge,
			MaxBackups: options.MaxBackups,
			Compress:   options.Compress,
			LocalTime:  true,
		}, options.Now)
		closers = append(closers, writer)

		encoderConfig := zap.NewProductionEncoderConfig()
		encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		encoderConfig.TimeKey = "time"

		cores = append(cores, zapcore.NewCore(
			zapcore.NewJSONEncoder(encoderConfig),
			writer,
			s.level,
		))
	}

	logger := zap.New(
		zapcore.NewTee(cores...),
		zap.AddCaller(),
		zap.AddStacktrace(zapcore.FatalLevel),
		zap.WithFatalHook(continueAfterFatal{}),
	)

	return logger, closers, nil
}

func parseLevel(level string) (zapcore.Level, error) {
	level = strings.TrimSpace(level)
	if level == "" {
		level = "info"
	}

	parsed, err := zapcore.ParseLevel(level)
	if err != nil {
		return zapcore.InfoLevel, fmt.Errorf("invalid log level %q: %w", level, err)
	}

	return parsed, nil
}

type continueAfterFatal struct{}

func (continueAfterFatal) OnWrite(*zapcore.CheckedEntry, []zapcore.Field) {}

func withError(err error, keysAndValues []any) []any {
	if err == nil {
		return keysAndValues
	}

	fields := make([]any, 0, len(keysAndValues)+1)
	fields = append(fields, zap.Error(err))
	return append(fields, keysAndValues...)
}

// ignoreTerminalSyncErrors drops the EINVAL/ENOTTY errors fsync reports for
// terminals and pipes.
func ignoreTerminalSyncErrors(err error) error {
	if err == nil {
		return nil
	}

	var remaining []error
	for _, syncErr := range multierr.Errors(err) {
		if errors.Is(syncErr, syscall.EINVAL) || errors.Is(syncErr, syscall.ENOTTY) {
			continue
		}
		remaining = append(remaining, syncErr)
	}

	return errors.Join(remaining...)
}
