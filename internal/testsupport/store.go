package testsupport

import (
	"context"
	"testing"

	"audioindex/internal/config"
	"audioindex/internal/records"
)

// MustOpenRecords opens the primary record store described by cfg and
// registers cleanup.
func MustOpenRecords(t testing.TB, cfg *config.Config) *records.Store {
	t.Helper()

	store, err := records.OpenFromConfig(context.Background(), cfg, nil)
	if err != nil {
		t.Fatalf("records.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}
