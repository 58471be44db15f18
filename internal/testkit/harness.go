package testkit

import (
	"context"
	"fmt"
	"os"
	"testing"
)

// Harness owns the backing services for an integration test run.
type Harness struct {
	cfg   Config
	pg    *PostgresInstance
	redis *RedisInstance
}

// PostgresDSN returns the DSN of the harness Postgres, or "" before Start.
func (h *Harness) PostgresDSN() string {
	if h.pg == nil {
		return ""
	}
	return h.pg.DSN()
}

// RedisAddr returns the host:port of the harness Redis, or "" before Start.
func (h *Harness) RedisAddr() string {
	if h.redis == nil {
		return ""
	}
	return h.redis.Addr()
}

// Start provisions Postgres and Redis per the config.
func (h *Harness) Start(ctx context.Context) error {
	pg, err := startPostgres(ctx, h.cfg)
	if err != nil {
		return fmt.Errorf("harness postgres: %w", err)
	}
	h.pg = pg

	rdb, err := startRedis(ctx, h.cfg)
	if err != nil {
		if !h.cfg.KeepContainers {
			_ = pg.Close(ctx)
		}
		return fmt.Errorf("harness redis: %w", err)
	}
	h.redis = rdb

	return nil
}

// Stop tears down the containers, unless the config asks to keep them.
func (h *Harness) Stop(ctx context.Context) {
	if h.cfg.KeepContainers {
		fmt.Fprintln(os.Stderr, "TEST_KEEP_CONTAINERS set, leaving containers running:")
		fmt.Fprintln(os.Stderr, "  postgres:", h.PostgresDSN())
		fmt.Fprintln(os.Stderr, "  redis:   ", h.RedisAddr())
		return
	}

	if h.redis != nil {
		if err := h.redis.Close(ctx); err != nil {
			fmt.Fprintln(os.Stderr, "testkit: redis teardown:", err)
		}
	}
	if h.pg != nil {
		if err := h.pg.Close(ctx); err != nil {
			fmt.Fprintln(os.Stderr, "testkit: postgres teardown:", err)
		}
	}
}

// Run is the TestMain entry point: it starts the harness, hands it to
// bootstrap (migrations, client setup), runs the tests, and tears down.
func Run(m *testing.M, bootstrap func(h *Harness) error) {
	h := &Harness{cfg: ConfigFromEnv()}
	ctx := context.Background()

	if err := h.Start(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "testkit: start harness: %v\n", err)
		os.Exit(1)
	}

	if bootstrap != nil {
		if err := bootstrap(h); err != nil {
			fmt.Fprintf(os.Stderr, "testkit: bootstrap: %v\n", err)
			h.Stop(ctx)
			os.Exit(1)
		}
	}

	code := m.Run()
	h.Stop(ctx)
	os.Exit(code)
}
