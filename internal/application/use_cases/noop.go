package use_cases

import (
	"time"

	"ledgerdesk/internal/application/dto"
	portsout "ledgerdesk/internal/application/ports/out"
	valueobjects "ledgerdesk/internal/domain/value_objects"
	apperrors "ledgerdesk/internal/shared_kernel/errors"
)

type noopLoggerSink struct{}

func (noopLoggerSink) Info(string, ...any)         {}
func (noopLoggerSink) Error(string, error, ...any) {}
func (noopLoggerSink) Fatal(string, error)         {}
func (noopLoggerSink) Flush() error                { return nil }

type noopBootstrapObserver struct{}

func (noopBootstrapObserver) ObserveStage(valueobjects.BootstrapStage, time.Duration, *apperrors.AppError) {
}
func (noopBootstrapObserver) ObserveSchemaState(valueobjects.SchemaState) {}
func (noopBootstrapObserver) ObserveOutcome(dto.BootstrapOutcome)         {}

var (
	_ portsout.LoggerSink        = noopLoggerSink{}
	_ portsout.BootstrapObserver = noopBootstrapObserver{}
)
