package testkit

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib" // pgx database/sql driver
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// PostgresInstance is a running Postgres the tests can connect to, either a
// container owned by the harness or an external server supplied via config.
type PostgresInstance struct {
	dsn       string
	container testcontainers.Container
}

func (p *PostgresInstance) DSN() string { return p.dsn }

// Close terminates the container. External instances are left untouched.
func (p *PostgresInstance) Close(ctx context.Context) error {
	if p.container == nil {
		return nil
	}
	return p.container.Terminate(ctx)
}

func startPostgres(ctx context.Context, cfg Config) (*PostgresInstance, error) {
	if cfg.ExternalPostgresDSN != "" {
		return &PostgresInstance{dsn: cfg.ExternalPostgresDSN}, nil
	}

	// A fresh database name per run keeps reruns against a kept container
	// from tripping over stale schema state.
	dbName := "ratetracker_" + strings.ReplaceAll(uuid.NewString()[:13], "-", "")

	ctr, err := tcpostgres.Run(ctx,
		cfg.PostgresImage,
		tcpostgres.WithDatabase(dbName),
		tcpostgres.WithUsername("ratetracker"),
		tcpostgres.WithPassword("ratetracker"),
		testcontainers.WithWaitStrategyAndDeadline(cfg.StartupTimeout,
			wait.ForLog("database system is ready to accept connections").WithOccurrence(2),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("run postgres container: %w", err)
	}

	dsn, err := ctr.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		_ = ctr.Terminate(ctx)
		return nil, fmt.Errorf("resolve postgres dsn: %w", err)
	}

	return &PostgresInstance{dsn: dsn, container: ctr}, nil
}
