package use_cases

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"ledgerdesk/internal/application/dto"
	portsin "ledgerdesk/internal/application/ports/in"
	portsout "ledgerdesk/internal/application/ports/out"
	valueobjects "ledgerdesk/internal/domain/value_objects"
	apperrors "ledgerdesk/internal/shared_kernel/errors"
)

const (
	defaultProbeTimeout = 10 * time.Second

	initializeFlightKey = "initialize"
)

type initializeReadinessUseCase struct {
	factory  portsout.PersistenceFactory
	logger   portsout.LoggerSink
	observer portsout.BootstrapObserver
	clock    Clock
	flight   *singleflight.Group
	tables   []string
}

type bootstrapStep struct {
	stage valueobjects.BootstrapStage
	run   func(ctx context.Context, details *dto.BootstrapOutcomeDetails) *apperrors.AppError
}

// NewInitializeReadinessUseCase builds the readiness orchestrator. Callers that
// construct it more than once per process must pass the same flight group so
// concurrent runs collapse into one.
func NewInitializeReadinessUseCase(
	factory portsout.PersistenceFactory,
	logger portsout.LoggerSink,
	observer portsout.BootstrapObserver,
	clock Clock,
	flight *singleflight.Group,
	tables []string,
) portsin.InitializeReadinessUseCase {
	if logger == nil {
		logger = noopLoggerSink{}
	}
	if observer == nil {
		observer = noopBootstrapObserver{}
	}
	if clock == nil {
		clock = NewSystemClock()
	}
	if flight == nil {
		flight = &singleflight.Group{}
	}
	if len(tables) == 0 {
		tables = valueobjects.EntityTables()
	}

	return &initializeReadinessUseCase{
		factory:  factory,
		logger:   logger,
		observer: observer,
		clock:    clock,
		flight:   flight,
		tables:   append([]string(nil), tables...),
	}
}

func (u *initializeReadinessUseCase) Initialize(ctx context.Context, command dto.InitializeReadinessCommand) dto.BootstrapOutcome {
	result, _, _ := u.flight.Do(initializeFlightKey, func() (any, error) {
		return u.run(ctx, command), nil
	})

	return result.(dto.BootstrapOutcome)
}

func (u *initializeReadinessUseCase) ProbeConnectivity(ctx context.Context, command dto.ProbeConnectivityCommand) (reachable bool) {
	defer func() {
		if recovered := recover(); recovered != nil {
			u.logger.Error("connectivity probe panicked", fmt.Errorf("panic: %v", recovered))
			reachable = false
		}
	}()

	appErr := u.checkConnectivity(ctx, command.Timeout)
	status := valueobjects.NewConnectivityStatus(appErr == nil)
	if appErr != nil {
		u.logger.Error("connectivity probe failed", appErr, "code", appErr.Code, "target", u.describe().Target)
		return status.Reachable()
	}

	u.logger.Info("connectivity probe succeeded", "target", u.describe().Target)
	return status.Reachable()
}

func (u *initializeReadinessUseCase) run(ctx context.Context, command dto.InitializeReadinessCommand) dto.BootstrapOutcome {
	startedAt := u.clock.NowUTC()
	details := dto.BootstrapOutcomeDetails{
		RunID:  uuid.NewString(),
		Report: valueobjects.NewVerificationReport(),
	}

	if u.factory == nil {
		appErr := apperrors.NewInternal(
			"PERSISTENCE_FACTORY_MISSING",
			"persistence factory is required",
			nil,
			nil,
		)
		u.logger.Error("bootstrap cannot start", appErr, "run_id", details.RunID)
		return u.finish(dto.NewFailedOutcome(valueobjects.BootstrapStageConnectivity, appErr, details))
	}

	info := u.factory.Describe()
	u.logger.Info(
		"bootstrap started",
		"run_id", details.RunID,
		"provider", info.Provider,
		"target", info.Target,
		"pooled", info.Pooled,
	)

	// Stage work must not be torn down by a shutdown signal; the caller's
	// context is only consulted between stages.
	stageCtx := context.WithoutCancel(ctx)
	steps := []bootstrapStep{
		{
			stage: valueobjects.BootstrapStageConnectivity,
			run: func(ctx context.Context, _ *dto.BootstrapOutcomeDetails) *apperrors.AppError {
				return u.checkConnectivity(ctx, command.ProbeTimeout)
			},
		},
		{stage: valueobjects.BootstrapStageSchemaEnsure, run: u.ensureSchema},
		{stage: valueobjects.BootstrapStageMigration, run: u.reconcileMigrations},
		{stage: valueobjects.BootstrapStageVerification, run: u.verifyTables},
	}

	for _, step := range steps {
		if ctx.Err() != nil {
			details.Duration = elapsedSince(u.clock, startedAt)
			outcome := dto.NewInterruptedOutcome(step.stage, details)
			u.logger.Error(
				"bootstrap interrupted by shutdown request",
				outcome.Err(),
				"run_id", details.RunID,
				"next_stage", step.stage.String(),
			)
			return u.finish(outcome)
		}

		u.logger.Info("bootstrap stage started", "run_id", details.RunID, "stage", step.stage.String())
		stageStartedAt := u.clock.NowUTC()
		appErr := u.runStep(stageCtx, step, &details)
		elapsed := elapsedSince(u.clock, stageStartedAt)
		u.observer.ObserveStage(step.stage, elapsed, appErr)

		if appErr != nil {
			u.logger.Error(
				"bootstrap stage failed",
				appErr,
				"run_id", details.RunID,
				"stage", step.stage.String(),
				"code", appErr.Code,
				"elapsed", elapsed,
			)
			details.Duration = elapsedSince(u.clock, startedAt)
			return u.finish(dto.NewFailedOutcome(step.stage, appErr, details))
		}

		u.logger.Info(
			"bootstrap stage completed",
			"run_id", details.RunID,
			"stage", step.stage.String(),
			"elapsed", elapsed,
		)
	}

	details.Duration = elapsedSince(u.clock, startedAt)
	u.logger.Info(
		"bootstrap succeeded",
		"run_id", details.RunID,
		"schema_created", details.SchemaCreated,
		"applied_migrations", len(details.AppliedMigrations),
		"duration", details.Duration,
	)

	return u.finish(dto.NewSucceededOutcome(details))
}

func (u *initializeReadinessUseCase) finish(outcome dto.BootstrapOutcome) dto.BootstrapOutcome {
	u.observer.ObserveOutcome(outcome)
	return outcome
}

func (u *initializeReadinessUseCase) runStep(
	ctx context.Context,
	step bootstrapStep,
	details *dto.BootstrapOutcomeDetails,
) (appErr *apperrors.AppError) {
	defer func() {
		if recovered := recover(); recovered != nil {
			appErr = stageError(
				step.stage,
				"BOOTSTRAP_STAGE_PANIC",
				"bootstrap stage panicked",
				nil,
				fmt.Errorf("panic: %v", recovered),
			)
		}
	}()

	return step.run(ctx, details)
}

func (u *initializeReadinessUseCase) checkConnectivity(ctx context.Context, timeout time.Duration) *apperrors.AppError {
	if u.factory == nil {
		return apperrors.NewInternal(
			"PERSISTENCE_FACTORY_MISSING",
			"persistence factory is required",
			nil,
			nil,
		)
	}
	if timeout <= 0 {
		timeout = defaultProbeTimeout
	}

	probeCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	return u.withHandle(probeCtx, valueobjects.BootstrapStageConnectivity, func(portsout.PersistenceHandle) *apperrors.AppError {
		return nil
	})
}

func (u *initializeReadinessUseCase) ensureSchema(ctx context.Context, details *dto.BootstrapOutcomeDetails) *apperrors.AppError {
	return u.withHandle(ctx, valueobjects.BootstrapStageSchemaEnsure, func(handle portsout.PersistenceHandle) *apperrors.AppError {
		created, err := handle.EnsureSchemaCreated(ctx)
		if err != nil {
			return stageError(
				valueobjects.BootstrapStageSchemaEnsure,
				"DB_SCHEMA_CREATE_FAILED",
				"failed to ensure database schema exists",
				map[string]any{"target": u.describe().Target},
				err,
			)
		}

		details.SchemaCreated = created
		if created {
			u.logger.Info("database created", "run_id", details.RunID, "target", u.describe().Target)
		} else {
			u.logger.Info("database already exists", "run_id", details.RunID, "target", u.describe().Target)
		}

		return nil
	})
}

func (u *initializeReadinessUseCase) reconcileMigrations(ctx context.Context, details *dto.BootstrapOutcomeDetails) *apperrors.AppError {
	return u.withHandle(ctx, valueobjects.BootstrapStageMigration, func(handle portsout.PersistenceHandle) *apperrors.AppError {
		state, err := handle.PendingMigrations(ctx)
		if err != nil {
			return stageError(
				valueobjects.BootstrapStageMigration,
				"DB_MIGRATION_STATE_FAILED",
				"failed to read migration state",
				nil,
				err,
			)
		}
		u.observer.ObserveSchemaState(state)

		u.logger.Info(
			"migration state loaded",
			"run_id", details.RunID,
			"current_version", state.CurrentVersion,
			"versioned", state.Versioned,
			"pending", len(state.Pending),
			"source_fingerprint", state.SourceFingerprint,
		)

		if state.Dirty {
			return apperrors.NewMigration(
				"DB_MIGRATION_DIRTY",
				"database migration version is dirty",
				map[string]any{"version": state.CurrentVersion},
				nil,
			)
		}
		if !state.HasPending() {
			u.logger.Info("no pending migrations", "run_id", details.RunID)
			return nil
		}
		if !u.describe().AtomicMigrations {
			u.logger.Info(
				"provider does not apply migrations atomically",
				"run_id", details.RunID,
				"provider", u.describe().Provider,
			)
		}

		pending := state.PendingIDs()
		for index, id := range pending {
			if err := handle.ApplyMigration(ctx, id); err != nil {
				return stageError(
					valueobjects.BootstrapStageMigration,
					"DB_MIGRATION_APPLY_FAILED",
					"failed to apply migration "+id,
					map[string]any{
						"migration": id,
						"applied":   append([]string(nil), details.AppliedMigrations...),
						"remaining": append([]string(nil), pending[index+1:]...),
					},
					err,
				)
			}

			details.AppliedMigrations = append(details.AppliedMigrations, id)
			u.logger.Info(
				"migration applied",
				"run_id", details.RunID,
				"migration", id,
				"position", index+1,
				"total", len(pending),
			)
		}

		return nil
	})
}

func (u *initializeReadinessUseCase) verifyTables(ctx context.Context, details *dto.BootstrapOutcomeDetails) *apperrors.AppError {
	return u.withHandle(ctx, valueobjects.BootstrapStageVerification, func(handle portsout.PersistenceHandle) *apperrors.AppError {
		report := details.Report
		for _, table := range u.tables {
			rows, err := handle.Count(ctx, table)
			if err != nil {
				return stageError(
					valueobjects.BootstrapStageVerification,
					"DB_TABLE_VERIFICATION_FAILED",
					"failed to verify table "+table,
					map[string]any{"table": table},
					err,
				)
			}

			report, err = report.Record(table, rows)
			if err != nil {
				return apperrors.NewVerification(
					"DB_TABLE_COUNT_INVALID",
					"invalid row count for table "+table,
					map[string]any{"table": table, "rows": rows},
					err,
				)
			}

			u.logger.Info("table verified", "run_id", details.RunID, "table", table, "rows", rows)
		}

		details.Report = report
		return nil
	})
}

// withHandle runs fn against a freshly opened handle and always closes it
// before returning, including when Open or fn panics.
func (u *initializeReadinessUseCase) withHandle(
	ctx context.Context,
	stage valueobjects.BootstrapStage,
	fn func(handle portsout.PersistenceHandle) *apperrors.AppError,
) (appErr *apperrors.AppError) {
	handle, err := u.factory.CreateHandle(ctx)
	if err != nil {
		return stageError(stage, "DB_HANDLE_CREATE_FAILED", "failed to create persistence handle", nil, err)
	}

	opened := false
	defer func() {
		closeErr := handle.Close()
		if closeErr == nil || !opened {
			return
		}
		if appErr == nil {
			appErr = stageError(stage, "DB_HANDLE_CLOSE_FAILED", "failed to close persistence handle", nil, closeErr)
			return
		}
		u.logger.Error("failed to close persistence handle", closeErr, "stage", stage.String())
	}()

	if err := handle.Open(ctx); err != nil {
		if stage == valueobjects.BootstrapStageConnectivity {
			return apperrors.NewConnectivity(
				"DB_UNREACHABLE",
				"database is unreachable",
				map[string]any{"target": u.describe().Target},
				err,
			)
		}
		return stageError(stage, "DB_HANDLE_OPEN_FAILED", "failed to open persistence handle", nil, err)
	}
	opened = true

	return fn(handle)
}

func (u *initializeReadinessUseCase) describe() portsout.PersistenceFactoryInfo {
	if u.factory == nil {
		return portsout.PersistenceFactoryInfo{}
	}

	return u.factory.Describe()
}

// stageError maps a failure to the error type of stage. A cause that already
// carries an application code keeps it.
func stageError(
	stage valueobjects.BootstrapStage,
	code string,
	message string,
	details map[string]any,
	cause error,
) *apperrors.AppError {
	var causeErr *apperrors.AppError
	if errors.As(cause, &causeErr) && causeErr != nil && causeErr.Code != "" {
		code = causeErr.Code
		if len(causeErr.Details) > 0 {
			merged := make(map[string]any, len(details)+len(causeErr.Details))
			for key, value := range causeErr.Details {
				merged[key] = value
			}
			for key, value := range details {
				merged[key] = value
			}
			details = merged
		}
	}

	switch stage {
	case valueobjects.BootstrapStageConnectivity:
		return apperrors.NewConnectivity(code, message, details, cause)
	case valueobjects.BootstrapStageSchemaEnsure:
		return apperrors.NewSchemaCreation(code, message, details, cause)
	case valueobjects.BootstrapStageMigration:
		return apperrors.NewMigration(code, message, details, cause)
	case valueobjects.BootstrapStageVerification:
		return apperrors.NewVerification(code, message, details, cause)
	default:
		return apperrors.NewInternal(code, message, details, cause)
	}
}
