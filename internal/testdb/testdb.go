// Package testdb opens migrated in-memory SQLite databases for tests.
package testdb

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/helixml/cinerag/domain/catalog"
	"github.com/helixml/cinerag/infrastructure/persistence"
	"github.com/helixml/cinerag/internal/database"
)

// New creates an in-memory SQLite database with the catalog, rating and
// profile tables migrated, and saves items into the catalog. The database
// is closed when the test finishes. Query logging is discarded.
func New(t testing.TB, items ...catalog.Item) database.Database {
	t.Helper()
	ctx := context.Background()

	quiet := slog.New(slog.NewTextHandler(io.Discard, nil))
	db, err := database.NewDatabase(ctx, "sqlite:///:memory:", database.WithLogger(quiet))
	if err != nil {
		t.Fatalf("testdb.New: open database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if err := persistence.AutoMigrate(db); err != nil {
		t.Fatalf("testdb.New: auto migrate: %v", err)
	}
	if len(items) > 0 {
		if err := persistence.NewCatalogStore(db).SaveAll(ctx, items); err != nil {
			t.Fatalf("testdb.New: seed catalog: %v", err)
		}
	}
	return db
}
