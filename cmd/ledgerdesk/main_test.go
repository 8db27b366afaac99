//go:build !integration

package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeSQLiteConfig(t *testing.T) string {
	t.Helper()

	dir := t.TempDir()
	body := "connection_strings:\n" +
		"  default: " + filepath.Join(dir, "ledgerdesk.db") + "\n" +
		"database:\n" +
		"  provider: sqlite\n" +
		"logging:\n" +
		"  directory: " + filepath.Join(dir, "logs") + "\n"
	path := filepath.Join(dir, "ledgerdesk.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func runCommand(t *testing.T, args ...string) (int, string, string) {
	t.Helper()

	var stdout, stderr bytes.Buffer
	root := newRootCommand(nil, &stdout, &stderr)
	root.SetArgs(args)

	code := execute(context.Background(), root)
	return code, stdout.String(), stderr.String()
}

func TestRootCommandRegistersSubcommands(t *testing.T) {
	root := newRootCommand(nil, &bytes.Buffer{}, &bytes.Buffer{})

	names := []string{}
	for _, command := range root.Commands() {
		names = append(names, command.Name())
	}
	assert.Contains(t, names, "probe")
	assert.Contains(t, names, "migrations")
	assert.NotNil(t, root.PersistentFlags().Lookup("config"))
	assert.NotNil(t, root.Flags().Lookup("watch-config"))
}

func TestRootCommandRunsShell(t *testing.T) {
	config := writeSQLiteConfig(t)

	code, stdout, stderr := runCommand(t, "--config", config, "--watch-config=false")
	require.Equal(t, 0, code, stderr)
	assert.Contains(t, stdout, "customers")
}

func TestMigrationsCommand(t *testing.T) {
	config := writeSQLiteConfig(t)

	code, stdout, _ := runCommand(t, "migrations", "--config", config)
	assert.Equal(t, 0, code)
	assert.Contains(t, stdout, "0002_create_invoices")
}

func TestProbeCommandPropagatesExitCode(t *testing.T) {
	code, _, _ := runCommand(t, "probe", "--config", filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Equal(t, 1, code)
}

func TestUnknownArgumentsFail(t *testing.T) {
	code, _, stderr := runCommand(t, "probe", "extra")
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "unknown command")
}
