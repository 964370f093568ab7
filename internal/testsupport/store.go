package testsupport

import (
	"context"
	"testing"

	"fortuna/internal/config"
	"fortuna/internal/queue"
)

// TestRunID is the run identifier test works are enqueued under.
const TestRunID = "run-test"

// MustOpenStore opens a queue.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *queue.Store {
	t.Helper()

	store, err := queue.Open(cfg)
	if err != nil {
		t.Fatalf("queue.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// NewWork enqueues a pending work for tests using the provided store.
func NewWork(t testing.TB, store *queue.Store, key, title, sourcePath string) *queue.Item {
	t.Helper()

	item, err := store.NewWork(context.Background(), TestRunID, key, title, sourcePath)
	if err != nil {
		t.Fatalf("store.NewWork: %v", err)
	}
	return item
}
