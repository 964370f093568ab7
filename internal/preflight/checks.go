package preflight

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"golang.org/x/sys/unix"

	"fortuna/internal/config"
	"fortuna/internal/queue"
	"fortuna/internal/segment"
	"fortuna/internal/services/inference"
	"fortuna/internal/services/llm"
)

// CheckScoringBackend verifies that the configured classifier backend is
// reachable before any sentences are queued against it. It uses a 30-second
// timeout and a single attempt (no retries).
func CheckScoringBackend(ctx context.Context, cfg *config.Config) Result {
	switch cfg.Scoring.Backend {
	case config.BackendInference:
		return checkInference(ctx, cfg)
	case config.BackendOpenAI:
		return checkOpenAI(ctx, cfg)
	default:
		return Result{
			Name:   "Scoring backend",
			Detail: fmt.Sprintf("unknown backend %q", cfg.Scoring.Backend),
		}
	}
}

func checkInference(ctx context.Context, cfg *config.Config) Result {
	const name = "Inference server"

	checkCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	client := inference.NewClient(inference.Config{
		BaseURL:        cfg.Inference.BaseURL,
		TimeoutSeconds: cfg.Inference.TimeoutSeconds,
	}, inference.WithRetryMaxAttempts(1))

	if err := client.HealthCheck(checkCtx); err != nil {
		return Result{Name: name, Detail: summarizeBackendError(err)}
	}
	return Result{Name: name, Passed: true, Detail: "server reachable"}
}

func checkOpenAI(ctx context.Context, cfg *config.Config) Result {
	const name = "OpenAI API"

	settings := cfg.GetLLM()
	if settings.APIKey == "" {
		return Result{Name: name, Detail: "API key missing"}
	}

	checkCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	client := llm.NewClient(llm.Config{
		APIKey:         settings.APIKey,
		BaseURL:        settings.BaseURL,
		Model:          settings.Model,
		TimeoutSeconds: settings.TimeoutSeconds,
	}, llm.WithRetryMaxAttempts(1))

	if err := client.HealthCheck(checkCtx); err != nil {
		return Result{Name: name, Detail: summarizeBackendError(err)}
	}
	return Result{Name: name, Passed: true, Detail: "API reachable"}
}

// CheckLedger verifies the work ledger opens and its schema and integrity
// hold up, creating the database on first use.
func CheckLedger(ctx context.Context, cfg *config.Config) Result {
	const name = "Work ledger"

	store, err := queue.Open(cfg)
	if err != nil {
		return Result{Name: name, Detail: err.Error()}
	}
	defer store.Close()

	health, err := store.CheckHealth(ctx)
	if err != nil {
		return Result{Name: name, Detail: err.Error()}
	}
	if !health.IntegrityCheck {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: integrity check failed)", health.DBPath)}
	}
	if len(health.MissingColumns) > 0 {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: schema missing columns: %s)", health.DBPath, strings.Join(health.MissingColumns, ", "))}
	}

	summary, err := store.Health(ctx)
	if err != nil {
		return Result{Name: name, Detail: err.Error()}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (%d works, %d failed)", health.DBPath, summary.Total, summary.Failed)}
}

// CheckTokenizer verifies the sentence tokenizer training data loads.
func CheckTokenizer() Result {
	const name = "Sentence tokenizer"
	if _, err := segment.New(); err != nil {
		return Result{Name: name, Detail: err.Error()}
	}
	return Result{Name: name, Passed: true, Detail: "tokenizer ready"}
}

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// summarizeBackendError produces a human-readable summary for classifier
// health check failures.
func summarizeBackendError(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "health check timed out (classifier unresponsive)"
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "health check timed out (classifier unreachable)"
	}
	return err.Error()
}
