package testsupport

import (
	"testing"

	"podharvest/internal/runlog"
)

// MustOpenRunlog opens a run history store for tests and registers cleanup.
func MustOpenRunlog(t testing.TB, path string) *runlog.Store {
	t.Helper()

	store, err := runlog.Open(path)
	if err != nil {
		t.Fatalf("runlog.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}
