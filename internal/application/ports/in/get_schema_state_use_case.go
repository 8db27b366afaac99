package in

import (
	"context"

	"ledgerdesk/internal/application/dto"
	valueobjects "ledgerdesk/internal/domain/value_objects"
	apperrors "ledgerdesk/internal/shared_kernel/errors"
)

type GetSchemaStateUseCase interface {
	Execute(ctx context.Context, command dto.GetSchemaStateCommand) (valueobjects.SchemaState, *apperrors.AppError)
}
