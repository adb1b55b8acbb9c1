// Package testkit spins up the Postgres and Redis instances the integration
// tests run against, backed by testcontainers. Both can be pointed at external
// instances through environment variables, which skips container startup.
package testkit

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"sync"
	"testing"
	"time"
)

// Infra holds the live test infrastructure for one test binary.
type Infra struct {
	mu      sync.Mutex
	pg      *pgInstance
	redis   *redisInstance
	started bool

	pgImage    string
	redisImage string
	pgDSN      string // external override, skips the Postgres container
	redisAddr  string // external override, skips the Redis container
	deadline   time.Duration
	keepAlive  bool // leave containers running after the tests
}

var (
	shared     *Infra
	sharedOnce sync.Once
)

// Shared returns the process-wide Infra, configured from the environment.
func Shared() *Infra {
	sharedOnce.Do(func() {
		shared = &Infra{
			pgImage:    envString("RATES_TEST_PG_IMAGE", "postgres:18.1-alpine"),
			redisImage: envString("RATES_TEST_REDIS_IMAGE", "redis:8.4.0-alpine"),
			pgDSN:      os.Getenv("RATES_TEST_PG_DSN"),
			redisAddr:  os.Getenv("RATES_TEST_REDIS_ADDR"),
			deadline:   envDuration("RATES_TEST_STARTUP_TIMEOUT", 90*time.Second),
			keepAlive:  envBool("RATES_TEST_KEEP_CONTAINERS", false),
		}
	})
	return shared
}

// Start brings up both backing stores. Calling it on an already started
// Infra is an error.
func (in *Infra) Start(ctx context.Context) error {
	in.mu.Lock()
	defer in.mu.Unlock()

	if in.started {
		return fmt.Errorf("test infrastructure already started")
	}

	pg, err := startPostgres(ctx, in.pgDSN, in.pgImage, in.deadline)
	if err != nil {
		return fmt.Errorf("start postgres: %w", err)
	}

	rdb, err := startRedis(ctx, in.redisAddr, in.redisImage)
	if err != nil {
		if !in.keepAlive {
			_ = pg.terminate(ctx)
		}
		return fmt.Errorf("start redis: %w", err)
	}

	in.pg = pg
	in.redis = rdb
	in.started = true
	return nil
}

// Stop tears the containers down, unless keep-alive is requested, in which
// case it prints the endpoints so a developer can inspect the state.
func (in *Infra) Stop(ctx context.Context) {
	in.mu.Lock()
	defer in.mu.Unlock()

	if !in.started {
		return
	}
	in.started = false

	if in.keepAlive {
		fmt.Println("RATES_TEST_KEEP_CONTAINERS=true, containers left running")
		fmt.Println("  postgres:", in.pg.dsn)
		fmt.Println("  redis:   ", in.redis.addr)
		return
	}

	if err := in.redis.terminate(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "testkit: terminate redis:", err)
	}
	if err := in.pg.terminate(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "testkit: terminate postgres:", err)
	}
}

// PostgresDSN returns the connection string of the test database.
func (in *Infra) PostgresDSN() string {
	in.mu.Lock()
	defer in.mu.Unlock()
	if in.pg == nil {
		return ""
	}
	return in.pg.dsn
}

// RedisAddr returns the host:port of the test Redis.
func (in *Infra) RedisAddr() string {
	in.mu.Lock()
	defer in.mu.Unlock()
	if in.redis == nil {
		return ""
	}
	return in.redis.addr
}

// Run wraps m.Run with infrastructure startup and teardown. The afterStart
// callbacks run once the stores are reachable, before any test, and are the
// place to apply migrations. Intended to be the body of TestMain.
func Run(m *testing.M, afterStart ...func(in *Infra) error) {
	in := Shared()
	ctx := context.Background()

	if err := in.Start(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "integration setup: %v\n", err)
		os.Exit(1)
	}

	for _, fn := range afterStart {
		if err := fn(in); err != nil {
			fmt.Fprintf(os.Stderr, "integration setup: %v\n", err)
			in.Stop(ctx)
			os.Exit(1)
		}
	}

	code := m.Run()
	in.Stop(ctx)
	os.Exit(code)
}

func envString(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(v); err == nil {
		return time.Duration(secs) * time.Second
	}
	fmt.Fprintf(os.Stderr, "testkit: ignoring invalid %s=%q\n", key, v)
	return def
}

func envBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		fmt.Fprintf(os.Stderr, "testkit: ignoring invalid %s=%q\n", key, v)
		return def
	}
	return b
}
