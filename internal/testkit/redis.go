package testkit

import (
	"context"
	"fmt"
	"strings"

	"github.com/testcontainers/testcontainers-go"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"
)

// RedisInstance is a running Redis reachable at Addr (host:port).
type RedisInstance struct {
	addr      string
	container testcontainers.Container
}

func (r *RedisInstance) Addr() string { return r.addr }

// Close terminates the container. External instances are left untouched.
func (r *RedisInstance) Close(ctx context.Context) error {
	if r.container == nil {
		return nil
	}
	return r.container.Terminate(ctx)
}

func startRedis(ctx context.Context, cfg Config) (*RedisInstance, error) {
	if cfg.ExternalRedisAddr != "" {
		return &RedisInstance{addr: cfg.ExternalRedisAddr}, nil
	}

	ctr, err := tcredis.Run(ctx, cfg.RedisImage)
	if err != nil {
		return nil, fmt.Errorf("run redis container: %w", err)
	}

	connStr, err := ctr.ConnectionString(ctx)
	if err != nil {
		_ = ctr.Terminate(ctx)
		return nil, fmt.Errorf("resolve redis address: %w", err)
	}

	// go-redis wants a bare host:port, ConnectionString returns redis://host:port.
	addr := strings.TrimPrefix(connStr, "redis://")

	return &RedisInstance{addr: addr, container: ctr}, nil
}
