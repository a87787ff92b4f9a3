package testsupport

import (
	"testing"

	"dailybrief/internal/catalog"
	"dailybrief/internal/config"
	"dailybrief/internal/generation"
	"dailybrief/internal/storage"
)

// MustOpenDB opens the shared database for tests and registers cleanup.
func MustOpenDB(t testing.TB, cfg *config.Config) *storage.DB {
	t.Helper()

	db, err := storage.Open(cfg)
	if err != nil {
		t.Fatalf("storage.Open: %v", err)
	}
	t.Cleanup(func() {
		_ = db.Close()
	})
	return db
}

// MustOpenGenerationStore opens a generation.Store backed by a fresh database.
func MustOpenGenerationStore(t testing.TB, cfg *config.Config) *generation.Store {
	t.Helper()
	return generation.NewStore(MustOpenDB(t, cfg))
}

// MustOpenCatalog opens a catalog.Store backed by a fresh database.
func MustOpenCatalog(t testing.TB, cfg *config.Config) *catalog.Store {
	t.Helper()
	return catalog.NewStore(MustOpenDB(t, cfg))
}
