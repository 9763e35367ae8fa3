package migrations_test

import (
	"context"
	"testing"

	"github.com/playperu/citywalk/internal/database"
	"github.com/playperu/citywalk/internal/migrations"
)

func TestMigrations(t *testing.T) {
	db, err := database.Open(context.Background(), ":memory:")
	if err != nil {
		t.Fatalf("opening database: %v", err)
	}
	defer db.Close()

	if err := migrations.Run(context.Background(), db); err != nil {
		t.Fatalf("running migrations: %v", err)
	}

	// Verify all tables exist by querying sqlite_master.
	want := []string{"paths", "points", "path_progress", "point_visits", "reward_grants"}

	for _, table := range want {
		var name string
		err := db.QueryRow(
			"SELECT name FROM sqlite_master WHERE type='table' AND name=?", table,
		).Scan(&name)
		if err != nil {
			t.Errorf("table %q not found: %v", table, err)
		}
	}
}

func TestMigrationsIdempotent(t *testing.T) {
	db, err := database.Open(context.Background(), ":memory:")
	if err != nil {
		t.Fatalf("opening database: %v", err)
	}
	defer db.Close()

	if err := migrations.Run(context.Background(), db); err != nil {
		t.Fatalf("first run: %v", err)
	}
	if err := migrations.Run(context.Background(), db); err != nil {
		t.Fatalf("second run (should be no-op): %v", err)
	}
}

func TestSingleActiveIndex(t *testing.T) {
	db, err := database.Open(context.Background(), ":memory:")
	if err != nil {
		t.Fatalf("opening database: %v", err)
	}
	defer db.Close()

	if err := migrations.Run(context.Background(), db); err != nil {
		t.Fatalf("running migrations: %v", err)
	}

	mustExec := func(q string, args ...any) {
		t.Helper()
		if _, err := db.Exec(q, args...); err != nil {
			t.Fatalf("%s: %v", q, err)
		}
	}
	mustExec(`INSERT INTO paths (id, name, created_at) VALUES ('p1', 'one', 'now'), ('p2', 'two', 'now')`)

	insert := `INSERT INTO path_progress (id, user_id, path_id, status, started_at, updated_at)
		VALUES (?, 'u1', ?, ?, 'now', 'now')`
	mustExec(insert, "a", "p1", "in_progress")
	mustExec(insert, "b", "p2", "paused")

	if _, err := db.Exec(insert, "c", "p2", "in_progress"); err == nil {
		t.Fatal("expected second in_progress row for the same user to be rejected")
	}
}
