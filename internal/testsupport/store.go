package testsupport

import (
	"path/filepath"
	"testing"

	"berth/internal/queue"
)

// NewStore opens a queue store backed by a per-test temp database.
func NewStore(t testing.TB) *queue.Store {
	t.Helper()

	store, err := queue.OpenPath(filepath.Join(t.TempDir(), "queue.db"))
	if err != nil {
		t.Fatalf("open queue store: %v", err)
	}
	t.Cleanup(func() {
		if closeErr := store.Close(); closeErr != nil {
			t.Errorf("close queue store: %v", closeErr)
		}
	})
	return store
}
