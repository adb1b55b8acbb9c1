//go:build integration

package integration

import (
	"database/sql"
	"fmt"
	"testing"

	"go.uber.org/zap"

	"valutatradehub/internal/repository"
	"valutatradehub/internal/testkit"
)

func TestMain(m *testing.M) {
	testkit.Run(m, func(in *testkit.Infra) error {
		db, err := sql.Open("pgx", in.PostgresDSN())
		if err != nil {
			return fmt.Errorf("open migration connection: %w", err)
		}
		defer db.Close() //nolint:errcheck // best-effort close

		return repository.RunMigrations(db, zap.NewNop().Sugar())
	})
}

// openDB opens a connection to the suite's Postgres for one test.
func openDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("pgx", testkit.Shared().PostgresDSN())
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}
