package turso_test

import (
	"context"
	"database/sql"
	"testing"

	_ "github.com/tursodatabase/go-libsql"

	"github.com/emiliopalmerini/promptreg/internal/adapters/turso"
	"github.com/emiliopalmerini/promptreg/internal/domain"
	"github.com/emiliopalmerini/promptreg/internal/migrate"
)

func testDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("libsql", "file::memory:?cache=shared")
	if err != nil {
		t.Fatalf("Failed to open in-memory database: %v", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		_ = db.Close()
		t.Fatalf("Failed to enable foreign keys: %v", err)
	}

	ctx := context.Background()
	if err := migrate.RunAll(ctx, db); err != nil {
		_ = db.Close()
		t.Fatalf("Failed to run migrations: %v", err)
	}

	t.Cleanup(func() { _ = db.Close() })
	return db
}

// seedPrompt registers a prompt so rows with a foreign key on it can exist.
func seedPrompt(t *testing.T, db *sql.DB, name string) {
	t.Helper()

	repo := turso.NewPromptRepository(db)
	if _, err := repo.Register(context.Background(), name, "content of "+name, nil, nil, nil); err != nil {
		t.Fatalf("Failed to seed prompt %q: %v", name, err)
	}
}

// seedExperiment creates a two-variant experiment over a fresh prompt.
func seedExperiment(t *testing.T, db *sql.DB, promptName string) *domain.Experiment {
	t.Helper()

	seedPrompt(t, db, promptName)
	exp, err := domain.NewExperiment(promptName, []domain.VariantSpec{
		{Name: "control", Content: "control content", Weight: 50},
		{Name: "treatment", Content: "treatment content", Weight: 50},
	}, "")
	if err != nil {
		t.Fatalf("Failed to build experiment: %v", err)
	}
	if err := turso.NewExperimentRepository(db).Create(context.Background(), exp); err != nil {
		t.Fatalf("Failed to create experiment: %v", err)
	}
	return exp
}
