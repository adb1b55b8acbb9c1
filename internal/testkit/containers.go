package testkit

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net/url"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // pgx driver registration
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"
	"github.com/testcontainers/testcontainers-go/wait"
)

type pgInstance struct {
	container testcontainers.Container // nil for external instances
	dsn       string
}

type redisInstance struct {
	container testcontainers.Container
	addr      string
}

func (p *pgInstance) terminate(ctx context.Context) error {
	if p.container == nil {
		return nil
	}
	return p.container.Terminate(ctx)
}

func (r *redisInstance) terminate(ctx context.Context) error {
	if r.container == nil {
		return nil
	}
	return r.container.Terminate(ctx)
}

func startPostgres(ctx context.Context, externalDSN, image string, deadline time.Duration) (*pgInstance, error) {
	if externalDSN != "" {
		return &pgInstance{dsn: externalDSN}, nil
	}

	// A random database name per test binary keeps parallel runs on an
	// external Docker daemon from colliding.
	suffix := make([]byte, 4)
	if _, err := rand.Read(suffix); err != nil {
		return nil, fmt.Errorf("generate db name: %w", err)
	}

	ctr, err := postgres.Run(ctx,
		image,
		postgres.WithDatabase("rates_"+hex.EncodeToString(suffix)),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategyAndDeadline(deadline,
			wait.ForLog("database system is ready to accept connections").WithOccurrence(2),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("run postgres container: %w", err)
	}

	dsn, err := ctr.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		_ = ctr.Terminate(ctx)
		return nil, fmt.Errorf("postgres connection string: %w", err)
	}

	return &pgInstance{container: ctr, dsn: dsn}, nil
}

func startRedis(ctx context.Context, externalAddr, image string) (*redisInstance, error) {
	if externalAddr != "" {
		return &redisInstance{addr: externalAddr}, nil
	}

	ctr, err := tcredis.Run(ctx, image)
	if err != nil {
		return nil, fmt.Errorf("run redis container: %w", err)
	}

	connStr, err := ctr.ConnectionString(ctx)
	if err != nil {
		_ = ctr.Terminate(ctx)
		return nil, fmt.Errorf("redis connection string: %w", err)
	}

	// ConnectionString yields a redis:// URL; the client wants host:port.
	u, err := url.Parse(connStr)
	if err != nil {
		_ = ctr.Terminate(ctx)
		return nil, fmt.Errorf("parse redis connection string %q: %w", connStr, err)
	}

	return &redisInstance{container: ctr, addr: u.Host}, nil
}
