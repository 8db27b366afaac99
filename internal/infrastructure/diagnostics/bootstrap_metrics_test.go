//go:build !integration

package diagnostics

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ledgerdesk/internal/application/dto"
	valueobjects "ledgerdesk/internal/domain/value_objects"
	apperrors "ledgerdesk/internal/shared_kernel/errors"
)

func TestObserveStageRecordsResult(t *testing.T) {
	metrics := NewBootstrapMetrics("")

	metrics.ObserveStage(valueobjects.BootstrapStageConnectivity, 20*time.Millisecond, nil)
	metrics.ObserveStage(valueobjects.BootstrapStageMigration, time.Second,
		apperrors.NewMigration("DB_MIGRATION_APPLY_FAILED", "failed", nil, nil))

	assert.Equal(t, 2, testutil.CollectAndCount(metrics.stageDuration))

	problems, err := testutil.CollectAndLint(metrics.stageDuration)
	require.NoError(t, err)
	assert.Empty(t, problems)
}

func TestObserveOutcome(t *testing.T) {
	metrics := NewBootstrapMetrics("")

	report := valueobjects.NewVerificationReport()
	report, err := report.Record("customers", 12)
	require.NoError(t, err)
	report, err = report.Record("invoices", 0)
	require.NoError(t, err)

	metrics.ObserveSchemaState(valueobjects.SchemaState{
		CurrentVersion: 1,
		Pending: []valueobjects.MigrationID{
			valueobjects.NewMigrationID(2, "create_invoices"),
			valueobjects.NewMigrationID(3, "create_payments_and_settings"),
		},
	})
	metrics.ObserveOutcome(dto.NewSucceededOutcome(dto.BootstrapOutcomeDetails{
		Report:            report,
		AppliedMigrations: []string{"0002_create_invoices", "0003_create_payments_and_settings"},
		Duration:          1500 * time.Millisecond,
	}))
	metrics.ObserveOutcome(dto.NewInterruptedOutcome(valueobjects.BootstrapStageMigration, dto.BootstrapOutcomeDetails{}))
	metrics.ObserveOutcome(dto.NewFailedOutcome(valueobjects.BootstrapStageVerification, nil, dto.BootstrapOutcomeDetails{}))

	assert.Equal(t, float64(2), testutil.ToFloat64(metrics.pendingMigrations))
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.schemaVersion))
	assert.Equal(t, float64(2), testutil.ToFloat64(metrics.appliedMigrations))
	assert.Equal(t, float64(12), testutil.ToFloat64(metrics.tableRows.WithLabelValues("customers")))
	assert.Equal(t, float64(0), testutil.ToFloat64(metrics.tableRows.WithLabelValues("invoices")))
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.runs.WithLabelValues("succeeded", "none")))
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.runs.WithLabelValues("interrupted", "migration")))
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.runs.WithLabelValues("failed", "verification")))
	assert.Equal(t, float64(0), testutil.ToFloat64(metrics.lastRunDuration))
}

func TestFlushWritesTextfile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "textfile", "ledgerdesk.prom")
	metrics := NewBootstrapMetrics("")

	require.NoError(t, metrics.Flush())
	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))

	metrics.SetMetricsFile(path)
	assert.Equal(t, path, metrics.MetricsFile())
	metrics.ObserveStage(valueobjects.BootstrapStageConnectivity, time.Millisecond, nil)
	require.NoError(t, metrics.Flush())

	body, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(body), `ledgerdesk_bootstrap_stage_duration_seconds_count{result="succeeded",stage="connectivity"} 1`))
}
