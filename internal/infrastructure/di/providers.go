package di

import (
	"context"
	"strings"
	"sync"

	"ledgerdesk/internal/adapters/outbound/persistence/mysql"
	"ledgerdesk/internal/adapters/outbound/persistence/postgresql"
	"ledgerdesk/internal/adapters/outbound/persistence/shared"
	"ledgerdesk/internal/adapters/outbound/persistence/sqlite"
	portsout "ledgerdesk/internal/application/ports/out"
)

// ManagedPersistenceFactory is a persistence factory whose resources are
// owned by the host.
type ManagedPersistenceFactory interface {
	portsout.PersistenceFactory
	Start(ctx context.Context) error
	Close() error
}

type PersistenceProviderBuilder func(connectionString string, options shared.FactoryOptions) (ManagedPersistenceFactory, error)

var persistenceProviderBuilders = map[string]PersistenceProviderBuilder{
	postgresql.ProviderName: func(connectionString string, options shared.FactoryOptions) (ManagedPersistenceFactory, error) {
		dialect, err := postgresql.NewDialect(connectionString)
		if err != nil {
			return nil, err
		}
		return shared.NewFactory(dialect, options), nil
	},
	mysql.ProviderName: func(connectionString string, options shared.FactoryOptions) (ManagedPersistenceFactory, error) {
		dialect, err := mysql.NewDialect(connectionString)
		if err != nil {
			return nil, err
		}
		return shared.NewFactory(dialect, options), nil
	},
	sqlite.ProviderName: func(connectionString string, options shared.FactoryOptions) (ManagedPersistenceFactory, error) {
		dialect, err := sqlite.NewDialect(connectionString)
		if err != nil {
			return nil, err
		}
		return shared.NewFactory(dialect, options), nil
	},
}

var persistenceProviderBuildersMu sync.RWMutex

func RegisterPersistenceProvider(provider string, builder PersistenceProviderBuilder) {
	normalizedProvider := strings.ToLower(strings.TrimSpace(provider))
	if normalizedProvider == "" || builder == nil {
		return
	}

	persistenceProviderBuildersMu.Lock()
	defer persistenceProviderBuildersMu.Unlock()
	persistenceProviderBuilders[normalizedProvider] = builder
}

func lookupPersistenceProvider(provider string) (PersistenceProviderBuilder, bool) {
	normalizedProvider := strings.ToLower(strings.TrimSpace(provider))

	persistenceProviderBuildersMu.RLock()
	defer persistenceProviderBuildersMu.RUnlock()
	builder, exists := persistenceProviderBuilders[normalizedProvider]
	return builder, exists
}
