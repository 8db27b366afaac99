package use_cases

import (
	"context"

	"ledgerdesk/internal/application/dto"
	portsin "ledgerdesk/internal/application/ports/in"
	portsout "ledgerdesk/internal/application/ports/out"
	valueobjects "ledgerdesk/internal/domain/value_objects"
	apperrors "ledgerdesk/internal/shared_kernel/errors"
)

type getSchemaStateUseCase struct {
	factory portsout.PersistenceFactory
}

func NewGetSchemaStateUseCase(factory portsout.PersistenceFactory) portsin.GetSchemaStateUseCase {
	return &getSchemaStateUseCase{
		factory: factory,
	}
}

func (u *getSchemaStateUseCase) Execute(ctx context.Context, command dto.GetSchemaStateCommand) (valueobjects.SchemaState, *apperrors.AppError) {
	if u.factory == nil {
		return valueobjects.SchemaState{}, apperrors.NewInternal(
			"PERSISTENCE_FACTORY_MISSING",
			"persistence factory is required",
			nil,
			nil,
		)
	}

	timeout := command.Timeout
	if timeout <= 0 {
		timeout = defaultProbeTimeout
	}
	stateCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	handle, err := u.factory.CreateHandle(stateCtx)
	if err != nil {
		return valueobjects.SchemaState{}, stageError(
			valueobjects.BootstrapStageMigration,
			"DB_HANDLE_CREATE_FAILED",
			"failed to create persistence handle",
			nil,
			err,
		)
	}
	defer func() {
		_ = handle.Close()
	}()

	if err := handle.Open(stateCtx); err != nil {
		return valueobjects.SchemaState{}, apperrors.NewConnectivity(
			"DB_UNREACHABLE",
			"database is unreachable",
			map[string]any{"target": u.factory.Describe().Target},
			err,
		)
	}

	state, err := handle.PendingMigrations(stateCtx)
	if err != nil {
		return valueobjects.SchemaState{}, stageError(
			valueobjects.BootstrapStageMigration,
			"DB_MIGRATION_STATE_FAILED",
			"failed to read migration state",
			nil,
			err,
		)
	}

	return state, nil
}
