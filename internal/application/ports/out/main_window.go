package out

import (
	"context"

	valueobjects "ledgerdesk/internal/domain/value_objects"
)

type MainWindow interface {
	Show(ctx context.Context, report valueobjects.VerificationReport) error
}
