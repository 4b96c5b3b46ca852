// Package dbtest starts a throwaway Postgres for integration suites.
package dbtest

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/MikeMC777/ordenes-pipeline/internal/database"
)

const image = "postgres:16-alpine"

func StartPostgres(ctx context.Context) (testcontainers.Container, string, error) {
	container, err := postgres.Run(ctx, image,
		postgres.WithDatabase("ordenesdb"),
		postgres.WithUsername("user"),
		postgres.WithPassword("pass"),
		postgres.BasicWaitStrategies(),
	)
	if err != nil {
		return nil, "", fmt.Errorf("postgres.Run: %w", err)
	}

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		return container, "", fmt.Errorf("container.ConnectionString: %w", err)
	}
	return container, connStr, nil
}

// StartMigrated starts Postgres, opens a pool and applies the schema.
func StartMigrated(ctx context.Context) (testcontainers.Container, *pgxpool.Pool, error) {
	container, connStr, err := StartPostgres(ctx)
	if err != nil {
		return container, nil, err
	}

	pool, err := database.Open(ctx, connStr)
	if err != nil {
		return container, nil, err
	}

	if err := database.Migrate(ctx, pool); err != nil {
		pool.Close()
		return container, nil, err
	}
	return container, pool, nil
}
