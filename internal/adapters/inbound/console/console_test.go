//go:build !integration

package console

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"testing/iotest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"

	"ledgerdesk/internal/application/dto"
	valueobjects "ledgerdesk/internal/domain/value_objects"
	apperrors "ledgerdesk/internal/shared_kernel/errors"
)

func testReport(t *testing.T) valueobjects.VerificationReport {
	t.Helper()

	report := valueobjects.NewVerificationReport()
	var err error
	report, err = report.Record("customers", 1234)
	require.NoError(t, err)
	report, err = report.Record("invoices", 0)
	require.NoError(t, err)
	return report
}

func TestDetectLocale(t *testing.T) {
	t.Setenv("LC_ALL", "")
	t.Setenv("LC_MESSAGES", "")
	t.Setenv("LANG", "de_DE.UTF-8")

	assert.Equal(t, language.German, DetectLocale(""))
	assert.Equal(t, language.English, DetectLocale("en-GB"))
	assert.Equal(t, language.German, DetectLocale("de-AT"))

	t.Setenv("LANG", "C")
	assert.Equal(t, language.English, DetectLocale(""))
	assert.Equal(t, language.English, DetectLocale("not a locale"))
}

func TestParseLocale(t *testing.T) {
	tag, ok := parseLocale("de_CH.UTF-8@euro")
	require.True(t, ok)
	base, _ := tag.Base()
	assert.Equal(t, "de", base.String())

	_, ok = parseLocale("POSIX")
	assert.False(t, ok)
}

func TestMainWindowRendersReport(t *testing.T) {
	var out bytes.Buffer
	window := NewMainWindow(&out, nil, "LedgerDesk", NewPrinter(language.English))

	require.NoError(t, window.Show(context.Background(), testReport(t)))

	rendered := out.String()
	assert.Contains(t, rendered, "customers")
	assert.Contains(t, rendered, "1,234")
	assert.Contains(t, rendered, "invoices")
	assert.Contains(t, rendered, "Ready. 2 tables verified.")

	assert.ErrorIs(t, window.Show(context.Background(), testReport(t)), ErrWindowAlreadyShown)
}

func TestMainWindowWaitsForInputOrContext(t *testing.T) {
	t.Run("input closed", func(t *testing.T) {
		var out bytes.Buffer
		window := NewMainWindow(&out, strings.NewReader(""), "LedgerDesk", NewPrinter(language.English))

		require.NoError(t, window.Show(context.Background(), testReport(t)))
		assert.Contains(t, out.String(), "Press Enter to exit.")
	})

	t.Run("input fails", func(t *testing.T) {
		readErr := errors.New("terminal detached")
		window := NewMainWindow(io.Discard, iotest.ErrReader(readErr), "LedgerDesk", NewPrinter(language.English))

		err := window.Show(context.Background(), testReport(t))
		assert.ErrorIs(t, err, readErr)
	})

	t.Run("context done", func(t *testing.T) {
		reader, writer := io.Pipe()
		defer writer.Close()

		ctx, cancel := context.WithCancel(context.Background())
		window := NewMainWindow(io.Discard, reader, "LedgerDesk", NewPrinter(language.English))

		done := make(chan error, 1)
		go func() { done <- window.Show(ctx, testReport(t)) }()

		cancel()
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(5 * time.Second):
			t.Fatal("Show did not return after cancel")
		}
	})
}

func TestMainWindowTranslatesMessages(t *testing.T) {
	var out bytes.Buffer
	window := NewMainWindow(&out, nil, "LedgerDesk", NewPrinter(language.German))

	require.NoError(t, window.Show(context.Background(), testReport(t)))
	assert.Contains(t, out.String(), "Bereit. 2 Tabellen geprüft.")
	assert.Contains(t, out.String(), "1.234")
}

func TestFailureNoticeDescribesFailedStage(t *testing.T) {
	var out bytes.Buffer
	notice := NewFailureNotice(&out, NewPrinter(language.English), "logs/ledgerdesk.log")

	outcome := dto.NewFailedOutcome(
		valueobjects.BootstrapStageVerification,
		apperrors.NewVerification("DB_TABLE_VERIFICATION_FAILED", "failed to verify table payments", nil, errors.New("no such table")),
		dto.BootstrapOutcomeDetails{RunID: "run-1"},
	)
	notice.NotifyFailure(outcome)

	rendered := out.String()
	assert.Contains(t, rendered, "LedgerDesk could not start")
	assert.Contains(t, rendered, "The table check step failed: failed to verify table payments: no such table")
	assert.Contains(t, rendered, "Error code: DB_TABLE_VERIFICATION_FAILED")
	assert.Contains(t, rendered, "Run ID: run-1")
	assert.Contains(t, rendered, "logs/ledgerdesk.log")
}

func TestFailureNoticeInterruptedAndSucceeded(t *testing.T) {
	var out bytes.Buffer
	notice := NewFailureNotice(&out, NewPrinter(language.German), "")

	notice.NotifyFailure(dto.NewSucceededOutcome(dto.BootstrapOutcomeDetails{}))
	assert.Empty(t, out.String())

	notice.NotifyFailure(dto.NewInterruptedOutcome(valueobjects.BootstrapStageMigration, dto.BootstrapOutcomeDetails{}))
	assert.Contains(t, out.String(), "Der Start von LedgerDesk wurde abgebrochen")
	assert.NotContains(t, out.String(), "Fehlercode")
}

func TestFailureNoticeStartupError(t *testing.T) {
	var out bytes.Buffer
	notice := NewFailureNotice(&out, NewPrinter(language.English), "")

	notice.NotifyStartupError(nil)
	assert.Empty(t, out.String())

	notice.NotifyStartupError(apperrors.NewHostStart("HOST_PROVIDER_UNKNOWN", "unknown persistence provider", nil, nil))
	assert.Contains(t, out.String(), "unknown persistence provider")
	assert.Contains(t, out.String(), "Error code: HOST_PROVIDER_UNKNOWN")

	out.Reset()
	notice.NotifyStartupError(errors.New("boom"))
	assert.Contains(t, out.String(), "boom")
	assert.NotContains(t, out.String(), "Error code")
}

func TestSplashStartStop(t *testing.T) {
	splash := NewSplash(io.Discard, NewPrinter(language.English))

	splash.Start(PreparingMessage())
	assert.Equal(t, " Preparing the database...", splash.s.Suffix)
	splash.Stop()
	splash.Stop()
}

func TestRenderSchemaState(t *testing.T) {
	var out bytes.Buffer
	RenderSchemaState(&out, "sqlite", valueobjects.SchemaState{
		DatabaseExists:    true,
		Versioned:         true,
		CurrentVersion:    1,
		SourceFingerprint: "abc123",
		Pending: []valueobjects.MigrationID{
			valueobjects.NewMigrationID(2, "create_invoices"),
		},
	})

	rendered := out.String()
	assert.Contains(t, rendered, "abc123")
	assert.Contains(t, rendered, "0002_create_invoices")

	out.Reset()
	RenderSchemaState(&out, "sqlite", valueobjects.SchemaState{DatabaseExists: true})
	assert.Contains(t, out.String(), "up to date")
}
