package diagnostics

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"ledgerdesk/internal/application/dto"
	portsout "ledgerdesk/internal/application/ports/out"
	valueobjects "ledgerdesk/internal/domain/value_objects"
	apperrors "ledgerdesk/internal/shared_kernel/errors"
)

const namespace = "ledgerdesk"

const (
	resultSucceeded   = "succeeded"
	resultFailed      = "failed"
	resultInterrupted = "interrupted"
)

// BootstrapMetrics records bootstrap progress in a private registry. Nothing
// is served over the network; the registry is dumped as a node-exporter
// textfile when the process exits.
type BootstrapMetrics struct {
	registry *prometheus.Registry

	stageDuration     *prometheus.HistogramVec
	runs              *prometheus.CounterVec
	lastRunDuration   prometheus.Gauge
	pendingMigrations prometheus.Gauge
	appliedMigrations prometheus.Counter
	schemaVersion     prometheus.Gauge
	tableRows         *prometheus.GaugeVec

	mu          sync.RWMutex
	metricsFile string
}

var _ portsout.BootstrapObserver = (*BootstrapMetrics)(nil)

func NewBootstrapMetrics(metricsFile string) *BootstrapMetrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &BootstrapMetrics{
		registry: registry,
		stageDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "bootstrap_stage_duration_seconds",
				Help:      "Time taken by each bootstrap stage",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"stage", "result"},
		),
		runs: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "bootstrap_runs_total",
				Help:      "Total number of bootstrap runs by result",
			},
			[]string{"result", "failed_stage"},
		),
		lastRunDuration: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "bootstrap_last_run_duration_seconds",
				Help:      "Duration of the most recent bootstrap run",
			},
		),
		pendingMigrations: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "bootstrap_pending_migrations",
				Help:      "Pending migrations observed before reconciliation",
			},
		),
		appliedMigrations: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "bootstrap_migrations_applied_total",
				Help:      "Total number of migrations applied during bootstrap",
			},
		),
		schemaVersion: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "bootstrap_schema_version",
				Help:      "Schema version reported by the database, 0 when unversioned",
			},
		),
		tableRows: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "bootstrap_table_rows",
				Help:      "Row counts observed during table verification",
			},
			[]string{"table"},
		),
		metricsFile: metricsFile,
	}
}

func (m *BootstrapMetrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *BootstrapMetrics) ObserveStage(stage valueobjects.BootstrapStage, elapsed time.Duration, appErr *apperrors.AppError) {
	result := resultSucceeded
	if appErr != nil {
		result = resultFailed
	}

	m.stageDuration.WithLabelValues(stage.String(), result).Observe(elapsed.Seconds())
}

func (m *BootstrapMetrics) ObserveSchemaState(state valueobjects.SchemaState) {
	m.pendingMigrations.Set(float64(len(state.Pending)))
	m.schemaVersion.Set(float64(state.CurrentVersion))
}

func (m *BootstrapMetrics) ObserveOutcome(outcome dto.BootstrapOutcome) {
	result := resultSucceeded
	switch {
	case outcome.Interrupted():
		result = resultInterrupted
	case !outcome.Succeeded():
		result = resultFailed
	}

	m.runs.WithLabelValues(result, outcome.FailedStage().String()).Inc()
	m.lastRunDuration.Set(outcome.Duration().Seconds())
	m.appliedMigrations.Add(float64(len(outcome.AppliedMigrations())))

	report := outcome.Report()
	for _, table := range report.Tables() {
		rows, _ := report.Count(table)
		m.tableRows.WithLabelValues(table).Set(float64(rows))
	}
}

// SetMetricsFile changes where Flush writes. An empty path disables it.
func (m *BootstrapMetrics) SetMetricsFile(path string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.metricsFile = path
}

func (m *BootstrapMetrics) MetricsFile() string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.metricsFile
}

// Flush writes the registry to the configured textfile, if any.
func (m *BootstrapMetrics) Flush() error {
	path := m.MetricsFile()
	if path == "" {
		return nil
	}

	return m.WriteTextfile(path)
}

func (m *BootstrapMetrics) WriteTextfile(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create metrics directory: %w", err)
		}
	}

	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("write metrics textfile %s: %w", path, err)
	}

	return nil
}
