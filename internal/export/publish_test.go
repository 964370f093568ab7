package export_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"fortuna/internal/export"
	"fortuna/internal/logging"
	"fortuna/internal/queue"
	"fortuna/internal/services"
	"fortuna/internal/testsupport"
)

func stageBundles(t *testing.T, stagingDir string) (string, string) {
	t.Helper()
	now := time.Now()
	originalPath, err := export.WriteOriginal(stagingDir, export.BuildOriginal(testWork(), testResult(), testsupport.TestRunID, now))
	if err != nil {
		t.Fatalf("WriteOriginal: %v", err)
	}
	cumulativePath, err := export.WriteCumulative(stagingDir, export.BuildCumulative(testWork(), testResult(), testsupport.TestRunID, now))
	if err != nil {
		t.Fatalf("WriteCumulative: %v", err)
	}
	return originalPath, cumulativePath
}

func TestPublishStageMovesBundles(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	item := testsupport.NewWork(t, store, "hamlet", "Hamlet", "hamlet.txt")
	item.Status = queue.StatusExporting
	stagingDir := filepath.Join(cfg.StagingDir(), item.WorkKey)
	item.OriginalFile, item.CumulativeFile = stageBundles(t, stagingDir)
	if err := store.Update(context.Background(), item); err != nil {
		t.Fatalf("Update: %v", err)
	}

	handler := export.NewPublishStage(cfg, store, logging.NewNop())
	if err := handler.Prepare(context.Background(), item); err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	if err := handler.Execute(context.Background(), item); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	if item.Status != queue.StatusCompleted {
		t.Fatalf("status = %s, want %s", item.Status, queue.StatusCompleted)
	}
	wantOriginal := filepath.Join(cfg.Paths.OutputDir, "hamlet_original.json")
	wantCumulative := filepath.Join(cfg.Paths.OutputDir, "hamlet_cumulative.json")
	if item.OriginalFile != wantOriginal || item.CumulativeFile != wantCumulative {
		t.Errorf("published paths = %q, %q, want %q, %q", item.OriginalFile, item.CumulativeFile, wantOriginal, wantCumulative)
	}
	for _, path := range []string{wantOriginal, wantCumulative} {
		if _, err := os.Stat(path); err != nil {
			t.Errorf("published bundle missing: %v", err)
		}
	}
	if _, err := os.Stat(stagingDir); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("expected staging cleanup, err = %v", err)
	}

	bundle, err := export.ReadCumulative(item.CumulativeFile)
	if err != nil {
		t.Fatalf("ReadCumulative after publish: %v", err)
	}
	if bundle.WorkID != "hamlet" {
		t.Errorf("published bundle work id = %q", bundle.WorkID)
	}
}

func TestPublishStageFailsWithoutStagedBundles(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	item := testsupport.NewWork(t, store, "bare", "Bare", "bare.txt")

	handler := export.NewPublishStage(cfg, store, logging.NewNop())

	err := handler.Execute(context.Background(), item)
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("Execute error = %v, want validation failure", err)
	}
}

func TestPublishStageFailsWhenStagingVanished(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	item := testsupport.NewWork(t, store, "gone", "Gone", "gone.txt")
	item.OriginalFile = filepath.Join(cfg.StagingDir(), "gone", "gone_original.json")
	item.CumulativeFile = filepath.Join(cfg.StagingDir(), "gone", "gone_cumulative.json")

	handler := export.NewPublishStage(cfg, store, logging.NewNop())

	err := handler.Execute(context.Background(), item)
	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("Execute error = %v, want transient failure", err)
	}
}

func TestPublishStageHealthCheck(t *testing.T) {
	cfg := testsupport.NewConfig(t)

	healthy := export.NewPublishStage(cfg, nil, logging.NewNop())
	if health := healthy.HealthCheck(context.Background()); !health.Ready {
		t.Errorf("expected healthy stage, got %+v", health)
	}

	unconfigured := testsupport.NewConfig(t)
	unconfigured.Paths.OutputDir = ""
	broken := export.NewPublishStage(unconfigured, nil, logging.NewNop())
	if health := broken.HealthCheck(context.Background()); health.Ready {
		t.Error("expected unhealthy stage without an output directory")
	}
}
