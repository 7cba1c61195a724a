package store

import (
	"context"
	"database/sql"
	"os"
	"strings"
	"testing"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// openTestDB connects to CASEDESK_TEST_DATABASE_URL on a freshly reset public
// schema, or skips the test when the variable is not set.
func openTestDB(t *testing.T) (*sql.DB, context.Context) {
	t.Helper()
	dsn := strings.TrimSpace(os.Getenv("CASEDESK_TEST_DATABASE_URL"))
	if dsn == "" {
		t.Skip("CASEDESK_TEST_DATABASE_URL is not set")
	}

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		t.Fatalf("open postgres: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	t.Cleanup(cancel)

	if err := db.PingContext(ctx); err != nil {
		t.Fatalf("ping postgres: %v", err)
	}
	if err := resetPublicSchema(ctx, db); err != nil {
		t.Fatalf("reset schema: %v", err)
	}
	return db, ctx
}

func TestMigrationsRoundTripPostgres(t *testing.T) {
	db, ctx := openTestDB(t)

	if err := ApplyMigrations(ctx, db, migrationsDir); err != nil {
		t.Fatalf("apply up migrations (pass 1): %v", err)
	}

	states, err := MigrationStatus(ctx, db, migrationsDir)
	if err != nil {
		t.Fatalf("migration status: %v", err)
	}
	for _, state := range states {
		if state.AppliedAt == nil {
			t.Fatalf("expected %s to be applied", state.Version)
		}
	}

	for range states {
		if _, err := RollbackLast(ctx, db, migrationsDir); err != nil {
			t.Fatalf("rollback: %v", err)
		}
	}
	version, err := RollbackLast(ctx, db, migrationsDir)
	if err != nil {
		t.Fatalf("rollback on empty schema: %v", err)
	}
	if version != "" {
		t.Fatalf("expected nothing to roll back, got %s", version)
	}

	if err := ApplyMigrations(ctx, db, migrationsDir); err != nil {
		t.Fatalf("apply up migrations (pass 2): %v", err)
	}
}

func resetPublicSchema(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `DROP SCHEMA IF EXISTS public CASCADE; CREATE SCHEMA public;`)
	return err
}
