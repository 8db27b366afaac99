package dto

import (
	"time"

	valueobjects "ledgerdesk/internal/domain/value_objects"
	apperrors "ledgerdesk/internal/shared_kernel/errors"
)

type InitializeReadinessCommand struct {
	ProbeTimeout time.Duration
}

type ProbeConnectivityCommand struct {
	Timeout time.Duration
}

type GetSchemaStateCommand struct {
	Timeout time.Duration
}

// BootstrapOutcomeDetails carries what a run observed up to the point it
// stopped. Zero values are valid for any field.
type BootstrapOutcomeDetails struct {
	RunID             string
	Report            valueobjects.VerificationReport
	AppliedMigrations []string
	SchemaCreated     bool
	Duration          time.Duration
}

// BootstrapOutcome is the single result of one readiness run.
type BootstrapOutcome struct {
	succeeded   bool
	interrupted bool
	failedStage valueobjects.BootstrapStage
	err         *apperrors.AppError
	details     BootstrapOutcomeDetails
}

func NewSucceededOutcome(details BootstrapOutcomeDetails) BootstrapOutcome {
	return BootstrapOutcome{
		succeeded:   true,
		failedStage: valueobjects.BootstrapStageNone,
		details:     cloneDetails(details),
	}
}

func NewFailedOutcome(stage valueobjects.BootstrapStage, err *apperrors.AppError, details BootstrapOutcomeDetails) BootstrapOutcome {
	if stage.IsNone() {
		stage = valueobjects.BootstrapStageConnectivity
	}
	if err == nil {
		err = apperrors.NewInternal("BOOTSTRAP_FAILED", "bootstrap failed without a cause", nil, nil)
	}

	return BootstrapOutcome{
		failedStage: stage,
		err:         err,
		details:     cloneDetails(details),
	}
}

// NewInterruptedOutcome marks a run that stopped before stage because shutdown
// was requested.
func NewInterruptedOutcome(stage valueobjects.BootstrapStage, details BootstrapOutcomeDetails) BootstrapOutcome {
	return BootstrapOutcome{
		interrupted: true,
		failedStage: stage,
		err: apperrors.NewInternal(
			"BOOTSTRAP_INTERRUPTED",
			"bootstrap interrupted before "+stage.String(),
			map[string]any{"stage": stage.String()},
			apperrors.ErrShutdownRequested,
		),
		details: cloneDetails(details),
	}
}

func (o BootstrapOutcome) Succeeded() bool {
	return o.succeeded
}

func (o BootstrapOutcome) Interrupted() bool {
	return o.interrupted
}

func (o BootstrapOutcome) FailedStage() valueobjects.BootstrapStage {
	if o.failedStage == "" {
		return valueobjects.BootstrapStageNone
	}

	return o.failedStage
}

func (o BootstrapOutcome) Err() *apperrors.AppError {
	return o.err
}

func (o BootstrapOutcome) RunID() string {
	return o.details.RunID
}

func (o BootstrapOutcome) Report() valueobjects.VerificationReport {
	return o.details.Report
}

func (o BootstrapOutcome) AppliedMigrations() []string {
	return append([]string(nil), o.details.AppliedMigrations...)
}

func (o BootstrapOutcome) SchemaCreated() bool {
	return o.details.SchemaCreated
}

func (o BootstrapOutcome) Duration() time.Duration {
	return o.details.Duration
}

func cloneDetails(details BootstrapOutcomeDetails) BootstrapOutcomeDetails {
	details.AppliedMigrations = append([]string(nil), details.AppliedMigrations...)
	return details
}
