package out

import (
	"time"

	"ledgerdesk/internal/application/dto"
	valueobjects "ledgerdesk/internal/domain/value_objects"
	apperrors "ledgerdesk/internal/shared_kernel/errors"
)

type BootstrapObserver interface {
	ObserveStage(stage valueobjects.BootstrapStage, elapsed time.Duration, appErr *apperrors.AppError)
	ObserveSchemaState(state valueobjects.SchemaState)
	ObserveOutcome(outcome dto.BootstrapOutcome)
}
