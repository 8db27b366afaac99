//go:build integration

package postgresql

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ledgerdesk/internal/adapters/outbound/persistence/shared"
	"ledgerdesk/internal/application/dto"
	"ledgerdesk/internal/application/use_cases"
)

func TestInitializeReadiness_Integration(t *testing.T) {
	databaseURL := os.Getenv("TEST_DATABASE_URL")
	if databaseURL == "" {
		t.Skip("set TEST_DATABASE_URL to run integration test")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	config, err := pgx.ParseConfig(databaseURL)
	require.NoError(t, err)
	config.Database = "ledgerdesk_it_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:12]

	dialect := &Dialect{config: config, target: DatabaseTarget(config)}

	t.Cleanup(func() {
		maintenance := config.Copy()
		maintenance.Database = maintenanceDatabase
		conn, err := pgx.ConnectConfig(context.Background(), maintenance)
		if err != nil {
			return
		}
		defer conn.Close(context.Background())
		_, _ = conn.Exec(context.Background(), "DROP DATABASE IF EXISTS "+pgx.Identifier{config.Database}.Sanitize())
	})

	for _, pooled := range []bool{true, false} {
		factory := shared.NewFactory(dialect, shared.FactoryOptions{Pooled: pooled})
		require.NoError(t, factory.Start(ctx))

		useCase := use_cases.NewInitializeReadinessUseCase(factory, nil, nil, nil, nil, nil)
		outcome := useCase.Initialize(ctx, dto.InitializeReadinessCommand{ProbeTimeout: 10 * time.Second})
		require.True(t, outcome.Succeeded(), "%v", outcome.Err())
		if pooled {
			assert.True(t, outcome.SchemaCreated())
			assert.Len(t, outcome.AppliedMigrations(), 3)
		} else {
			assert.False(t, outcome.SchemaCreated())
			assert.Empty(t, outcome.AppliedMigrations())
		}

		require.NoError(t, factory.Close())
	}
}
