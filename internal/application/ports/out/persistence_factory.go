package out

import (
	"context"

	valueobjects "ledgerdesk/internal/domain/value_objects"
)

type PersistenceFactoryInfo struct {
	Provider         string
	Target           string
	Pooled           bool
	AtomicMigrations bool
}

// PersistenceFactory hands out independent handles. Implementations must be
// safe for concurrent use.
type PersistenceFactory interface {
	CreateHandle(ctx context.Context) (PersistenceHandle, error)
	Describe() PersistenceFactoryInfo
}

// PersistenceHandle is a short-lived unit of database access. Every method
// except Open and Close requires a successful Open.
type PersistenceHandle interface {
	Open(ctx context.Context) error
	Close() error
	EnsureSchemaCreated(ctx context.Context) (bool, error)
	PendingMigrations(ctx context.Context) (valueobjects.SchemaState, error)
	ApplyMigration(ctx context.Context, id string) error
	Count(ctx context.Context, table string) (int64, error)
}
