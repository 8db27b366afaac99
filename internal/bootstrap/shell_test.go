//go:build !integration

package bootstrap

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"testing/iotest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ledgerdesk/internal/adapters/outbound/persistence/shared"
	portsout "ledgerdesk/internal/application/ports/out"
	valueobjects "ledgerdesk/internal/domain/value_objects"
	"ledgerdesk/internal/infrastructure/config"
	"ledgerdesk/internal/infrastructure/di"
)

const unreachableProvider = "shell-test-unreachable"

func init() {
	di.RegisterPersistenceProvider(unreachableProvider, func(string, shared.FactoryOptions) (di.ManagedPersistenceFactory, error) {
		return unreachableFactory{}, nil
	})
}

type unreachableFactory struct{}

func (unreachableFactory) CreateHandle(context.Context) (portsout.PersistenceHandle, error) {
	return unreachableHandle{}, nil
}

func (unreachableFactory) Describe() portsout.PersistenceFactoryInfo {
	return portsout.PersistenceFactoryInfo{Provider: unreachableProvider, Target: "nowhere:5432/ledgerdesk"}
}

func (unreachableFactory) Start(context.Context) error { return nil }
func (unreachableFactory) Close() error                { return nil }

type unreachableHandle struct{}

func (unreachableHandle) Open(context.Context) error {
	return errors.New("dial tcp nowhere:5432: connect: connection refused")
}
func (unreachableHandle) Close() error { return nil }
func (unreachableHandle) EnsureSchemaCreated(context.Context) (bool, error) {
	return false, errors.New("not open")
}
func (unreachableHandle) PendingMigrations(context.Context) (valueobjects.SchemaState, error) {
	return valueobjects.SchemaState{}, errors.New("not open")
}
func (unreachableHandle) ApplyMigration(context.Context, string) error { return errors.New("not open") }
func (unreachableHandle) Count(context.Context, string) (int64, error) {
	return 0, errors.New("not open")
}

type shellFixture struct {
	dir    string
	config string
	stdout *bytes.Buffer
	stderr *bytes.Buffer
}

func newShellFixture(t *testing.T, provider string) shellFixture {
	t.Helper()
	t.Setenv("LC_ALL", "")
	t.Setenv("LC_MESSAGES", "")
	t.Setenv("LANG", "C")

	dir := t.TempDir()
	body := "connection_strings:\n" +
		"  default: " + filepath.Join(dir, "data", "ledgerdesk.db") + "\n" +
		"database:\n" +
		"  provider: " + provider + "\n" +
		"  pooled: false\n" +
		"logging:\n" +
		"  directory: " + filepath.Join(dir, "logs") + "\n" +
		"  console: true\n" +
		"ui:\n" +
		"  locale: en\n" +
		"diagnostics:\n" +
		"  metrics_file: " + filepath.Join(dir, "metrics", "ledgerdesk.prom") + "\n"

	path := filepath.Join(dir, "ledgerdesk.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	return shellFixture{
		dir:    dir,
		config: path,
		stdout: &bytes.Buffer{},
		stderr: &bytes.Buffer{},
	}
}

func (f shellFixture) shell() *Shell {
	return NewShell(Options{
		ConfigPath: f.config,
		Stdout:     f.stdout,
		Stderr:     f.stderr,
	})
}

func TestShellRunOpensMainWindowAfterBootstrap(t *testing.T) {
	fixture := newShellFixture(t, "sqlite")
	shell := fixture.shell()

	code := shell.Run(context.Background())

	require.Equal(t, ExitOK, code, fixture.stderr.String())
	assert.Equal(t, valueobjects.ShellStateStopped, shell.State())
	for _, table := range valueobjects.EntityTables() {
		assert.Contains(t, fixture.stdout.String(), table)
	}

	metrics, err := os.ReadFile(filepath.Join(fixture.dir, "metrics", "ledgerdesk.prom"))
	require.NoError(t, err)
	assert.Contains(t, string(metrics), `ledgerdesk_bootstrap_runs_total{failed_stage="none",result="succeeded"} 1`)

	logs, err := os.ReadFile(filepath.Join(fixture.dir, "logs", "ledgerdesk.log"))
	require.NoError(t, err)
	assert.Contains(t, string(logs), "bootstrap succeeded")
	assert.Contains(t, string(logs), "runtime host stopped")

	second := fixture.shell()
	require.Equal(t, ExitOK, second.Run(context.Background()))
}

func TestShellRunReportsMainWindowFailure(t *testing.T) {
	fixture := newShellFixture(t, "sqlite")
	shell := NewShell(Options{
		ConfigPath: fixture.config,
		Stdin:      iotest.ErrReader(errors.New("terminal detached")),
		Stdout:     fixture.stdout,
		Stderr:     fixture.stderr,
	})

	assert.Equal(t, ExitStartupError, shell.Run(context.Background()))
	assert.Equal(t, valueobjects.ShellStateStopped, shell.State())

	logs, err := os.ReadFile(filepath.Join(fixture.dir, "logs", "ledgerdesk.log"))
	require.NoError(t, err)
	assert.Contains(t, string(logs), "main window failed")
	assert.Contains(t, string(logs), "terminal detached")
	assert.Contains(t, string(logs), `"state":"ready"`)
}

func TestShellRunReportsBootstrapFailure(t *testing.T) {
	fixture := newShellFixture(t, unreachableProvider)
	shell := fixture.shell()

	code := shell.Run(context.Background())

	assert.Equal(t, ExitBootstrapFailed, code)
	assert.Equal(t, valueobjects.ShellStateFailed, shell.State())
	assert.Contains(t, fixture.stderr.String(), "LedgerDesk could not start")
	assert.Contains(t, fixture.stderr.String(), "DB_UNREACHABLE")
	assert.NotContains(t, fixture.stdout.String(), "customers")
}

func TestShellRunHostStartFailure(t *testing.T) {
	fixture := newShellFixture(t, "oracle")
	shell := fixture.shell()

	assert.Equal(t, ExitStartupError, shell.Run(context.Background()))
	assert.Equal(t, valueobjects.ShellStateFailed, shell.State())
	assert.Contains(t, fixture.stderr.String(), "HOST_PROVIDER_UNSUPPORTED")
}

func TestShellRunConfigurationFailure(t *testing.T) {
	fixture := newShellFixture(t, "sqlite")
	shell := NewShell(Options{
		ConfigPath: filepath.Join(fixture.dir, "missing.yaml"),
		Stdout:     fixture.stdout,
		Stderr:     fixture.stderr,
	})

	assert.Equal(t, ExitStartupError, shell.Run(context.Background()))
	assert.Equal(t, valueobjects.ShellStateFailed, shell.State())
	assert.Contains(t, fixture.stderr.String(), "CONFIG_FILE_READ_FAILED")
}

func TestShellRunInterruptedBeforeBootstrap(t *testing.T) {
	fixture := newShellFixture(t, "sqlite")
	shell := fixture.shell()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.Equal(t, ExitInterrupted, shell.Run(ctx))
	assert.Equal(t, valueobjects.ShellStateStopped, shell.State())
	assert.Contains(t, fixture.stderr.String(), "LedgerDesk startup was interrupted")
	_, err := os.Stat(filepath.Join(fixture.dir, "data", "ledgerdesk.db"))
	assert.True(t, os.IsNotExist(err))
}

func TestShellRunProbe(t *testing.T) {
	fixture := newShellFixture(t, "sqlite")
	assert.Equal(t, ExitOK, fixture.shell().RunProbe(context.Background()))
	assert.Contains(t, fixture.stdout.String(), "reachable")
	assert.NotContains(t, fixture.stdout.String(), "unreachable")

	fixture = newShellFixture(t, unreachableProvider)
	assert.Equal(t, ExitStartupError, fixture.shell().RunProbe(context.Background()))
	assert.Contains(t, fixture.stdout.String(), "unreachable")
}

func TestShellRunMigrationStatus(t *testing.T) {
	fixture := newShellFixture(t, "sqlite")

	assert.Equal(t, ExitOK, fixture.shell().RunMigrationStatus(context.Background()))
	assert.Contains(t, fixture.stdout.String(), "0001_create_customers_and_products")
	assert.Contains(t, fixture.stdout.String(), "0003_create_payments_and_settings")

	fixture = newShellFixture(t, unreachableProvider)
	assert.Equal(t, ExitStartupError, fixture.shell().RunMigrationStatus(context.Background()))
}

func TestLogFilePath(t *testing.T) {
	assert.Empty(t, logFilePath(config.LoggingConfig{}))
	assert.Equal(t, filepath.Join("logs", "ledgerdesk.log"), logFilePath(config.LoggingConfig{Directory: "logs"}))
	assert.Equal(t, filepath.Join("logs", "app.log"), logFilePath(config.LoggingConfig{Directory: "logs", FileName: "app.log"}))
}
