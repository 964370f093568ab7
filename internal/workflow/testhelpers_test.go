package workflow_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"fortuna/internal/config"
	"fortuna/internal/notifications"
	"fortuna/internal/queue"
	"fortuna/internal/stage"
	"fortuna/internal/testsupport"
)

// stubStage is a scriptable stage handler. Hooks and errors are set before
// the manager starts; execution bookkeeping is locked because pool workers
// run concurrently.
type stubStage struct {
	name          string
	prepareHook   func(*queue.Item)
	executeHook   func(*queue.Item)
	executeErrFor func(*queue.Item) error
	prepareErr    error
	executeErr    error
	health        stage.Health

	mu       sync.Mutex
	executed []int64
}

func newStubStage(name string) *stubStage {
	return &stubStage{name: name, health: stage.Healthy(name)}
}

func (s *stubStage) Prepare(_ context.Context, item *queue.Item) error {
	if s.prepareHook != nil {
		s.prepareHook(item)
	}
	return s.prepareErr
}

func (s *stubStage) Execute(_ context.Context, item *queue.Item) error {
	s.mu.Lock()
	s.executed = append(s.executed, item.ID)
	s.mu.Unlock()
	if s.executeHook != nil {
		s.executeHook(item)
	}
	if s.executeErrFor != nil {
		if err := s.executeErrFor(item); err != nil {
			return err
		}
	}
	return s.executeErr
}

func (s *stubStage) HealthCheck(context.Context) stage.Health { return s.health }

func (s *stubStage) executions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.executed)
}

// recordingNotifier captures published events for assertions.
type recordingNotifier struct {
	mu       sync.Mutex
	payloads map[notifications.Event][]notifications.Payload
}

func (n *recordingNotifier) Publish(_ context.Context, event notifications.Event, payload notifications.Payload) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.payloads == nil {
		n.payloads = make(map[notifications.Event][]notifications.Payload)
	}
	n.payloads[event] = append(n.payloads[event], payload)
	return nil
}

func (n *recordingNotifier) count(event notifications.Event) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.payloads[event])
}

func (n *recordingNotifier) lastPayload(event notifications.Event) notifications.Payload {
	n.mu.Lock()
	defer n.mu.Unlock()
	recorded := n.payloads[event]
	if len(recorded) == 0 {
		return nil
	}
	return recorded[len(recorded)-1]
}

// workflowConfig builds a test config tuned for fast polling.
func workflowConfig(t *testing.T, opts ...testsupport.ConfigOption) *config.Config {
	t.Helper()
	cfg := testsupport.NewConfig(t, opts...)
	cfg.Workflow.QueuePollInterval = 0
	cfg.Workflow.ErrorRetryInterval = 0
	return cfg
}

// waitForStatus polls the ledger until the work reaches the wanted status.
func waitForStatus(t *testing.T, store *queue.Store, id int64, want queue.Status) *queue.Item {
	t.Helper()
	ctx := context.Background()
	deadline := time.After(30 * time.Second)
	for {
		select {
		case <-deadline:
			t.Fatalf("timed out waiting for work %d to reach %s", id, want)
		default:
		}
		updated, err := store.GetByID(ctx, id)
		if err != nil {
			t.Fatalf("GetByID: %v", err)
		}
		if updated.Status == want {
			return updated
		}
		if want != queue.StatusFailed && updated.Status == queue.StatusFailed {
			t.Fatalf("work %d failed while waiting for %s: %s", id, want, updated.ErrorMessage)
		}
		time.Sleep(10 * time.Millisecond)
	}
}
