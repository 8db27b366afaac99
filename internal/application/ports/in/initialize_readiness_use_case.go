package in

import (
	"context"

	"ledgerdesk/internal/application/dto"
)

type InitializeReadinessUseCase interface {
	Initialize(ctx context.Context, command dto.InitializeReadinessCommand) dto.BootstrapOutcome
	ProbeConnectivity(ctx context.Context, command dto.ProbeConnectivityCommand) bool
}
