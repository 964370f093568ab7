package workflow_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"fortuna/internal/config"
	"fortuna/internal/export"
	"fortuna/internal/logging"
	"fortuna/internal/queue"
	"fortuna/internal/segment"
	"fortuna/internal/sentiment"
	"fortuna/internal/testsupport"
	"fortuna/internal/workflow"
)

func realStageSet(t *testing.T, cfg *config.Config, store *queue.Store, classifier sentiment.Classifier) workflow.StageSet {
	t.Helper()
	segmenter, err := segment.New(segment.WithMinWords(cfg.Analysis.MinWords))
	if err != nil {
		t.Fatalf("segment.New: %v", err)
	}
	logger := logging.NewNop()
	return workflow.StageSet{
		Segmenter: segment.NewStage(cfg, store, logger, segmenter),
		Scorer:    sentiment.NewStage(cfg, store, logger, classifier),
		Analyzer:  export.NewAnalyzeStage(cfg, store, logger),
		Exporter:  export.NewPublishStage(cfg, store, logger),
	}
}

func TestWorkflowIntegrationEndToEnd(t *testing.T) {
	cfg := workflowConfig(t)
	// Small windows so a short fixture still produces every curve family.
	cfg.Analysis.RollingWindows = []int{3, 5}
	cfg.Analysis.SavGol = []config.SavGol{{Window: 7, Degree: 2}}
	cfg.Analysis.MacroWindow = 7
	cfg.Analysis.MacroDegree = 2
	store := testsupport.MustOpenStore(t, cfg)
	classifier := &testsupport.StubClassifier{}

	sourcePath := filepath.Join(testsupport.BaseDir(cfg), "texts", "integration.txt")
	testsupport.WriteText(t, sourcePath, testsupport.Narrative(16))

	mgr := workflow.NewManagerWithNotifier(cfg, store, logging.NewNop(), testsupport.TestRunID, &recordingNotifier{})
	mgr.ConfigureStages(realStageSet(t, cfg, store, classifier))

	item := testsupport.NewWork(t, store, "integration", "Integration", sourcePath)

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()
	if err := mgr.RunUntilDrained(ctx); err != nil {
		t.Fatalf("RunUntilDrained failed: %v", err)
	}

	updated, err := store.GetByID(context.Background(), item.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if updated.Status != queue.StatusCompleted {
		t.Fatalf("work status = %s, want completed (%s)", updated.Status, updated.ErrorMessage)
	}
	if updated.SentenceCount != 16 {
		t.Errorf("sentence count = %d, want 16", updated.SentenceCount)
	}
	if updated.UltimateFortune == nil {
		t.Fatal("expected ultimate fortune on completed work")
	}

	for _, path := range []string{updated.OriginalFile, updated.CumulativeFile} {
		if filepath.Dir(path) != cfg.Paths.OutputDir {
			t.Errorf("bundle %s not published to output dir %s", path, cfg.Paths.OutputDir)
		}
		if _, err := os.Stat(path); err != nil {
			t.Errorf("published bundle missing: %v", err)
		}
	}

	bundle, err := export.ReadCumulative(updated.CumulativeFile)
	if err != nil {
		t.Fatalf("ReadCumulative: %v", err)
	}
	if bundle.WorkID != "integration" {
		t.Errorf("bundle work id = %q, want integration", bundle.WorkID)
	}
	if bundle.UltimateFortune == nil || *bundle.UltimateFortune != *updated.UltimateFortune {
		t.Errorf("bundle ultimate fortune = %v, ledger has %v", bundle.UltimateFortune, *updated.UltimateFortune)
	}
	if len(bundle.Cumulative) != 16 {
		t.Errorf("cumulative values = %d, want 16", len(bundle.Cumulative))
	}
	if _, ok := bundle.Curves["macro_arc"]; !ok {
		t.Error("cumulative bundle missing macro_arc curve")
	}

	// Staging leftovers are removed once bundles are published.
	stagingDir := filepath.Join(cfg.StagingDir(), "integration")
	if _, err := os.Stat(stagingDir); !os.IsNotExist(err) {
		t.Errorf("staging dir %s still present after publish", stagingDir)
	}

	if classifier.BatchCount() == 0 {
		t.Error("classifier was never called")
	}
}

func TestWorkflowReclaimsStaleWork(t *testing.T) {
	cfg := workflowConfig(t)
	cfg.Analysis.RollingWindows = []int{3}
	cfg.Analysis.SavGol = nil
	cfg.Analysis.MacroWindow = 5
	cfg.Analysis.MacroDegree = 2
	store := testsupport.MustOpenStore(t, cfg)
	classifier := &testsupport.StubClassifier{}

	sourcePath := filepath.Join(testsupport.BaseDir(cfg), "texts", "stale.txt")
	testsupport.WriteText(t, sourcePath, testsupport.Narrative(8))

	item := testsupport.NewWork(t, store, "stale", "Stale", sourcePath)

	// Simulate a crashed worker: stuck mid-segmentation with an expired heartbeat.
	stale := time.Now().Add(-2 * time.Hour).UTC()
	item.Status = queue.StatusSegmenting
	item.LastHeartbeat = &stale
	if err := store.Update(context.Background(), item); err != nil {
		t.Fatalf("Update: %v", err)
	}

	mgr := workflow.NewManagerWithNotifier(cfg, store, logging.NewNop(), testsupport.TestRunID, &recordingNotifier{})
	mgr.ConfigureStages(realStageSet(t, cfg, store, classifier))

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()
	if err := mgr.RunUntilDrained(ctx); err != nil {
		t.Fatalf("RunUntilDrained failed: %v", err)
	}

	updated, err := store.GetByID(context.Background(), item.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if updated.Status != queue.StatusCompleted {
		t.Fatalf("reclaimed work status = %s, want completed (%s)", updated.Status, updated.ErrorMessage)
	}
}

func TestWorkflowSegmentationFailureSurfacesValidation(t *testing.T) {
	cfg := workflowConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	classifier := &testsupport.StubClassifier{}

	mgr := workflow.NewManagerWithNotifier(cfg, store, logging.NewNop(), testsupport.TestRunID, &recordingNotifier{})
	mgr.ConfigureStages(realStageSet(t, cfg, store, classifier))

	missing := filepath.Join(testsupport.BaseDir(cfg), "texts", "missing.txt")
	item := testsupport.NewWork(t, store, "missing", "Missing", missing)

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()
	if err := mgr.RunUntilDrained(ctx); err != nil {
		t.Fatalf("RunUntilDrained failed: %v", err)
	}

	updated, err := store.GetByID(context.Background(), item.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if updated.Status != queue.StatusFailed {
		t.Fatalf("work status = %s, want failed", updated.Status)
	}
	if !strings.Contains(updated.ErrorMessage, "Source file missing or empty") {
		t.Errorf("error message = %q, want source file detail", updated.ErrorMessage)
	}
	if classifier.BatchCount() != 0 {
		t.Errorf("classifier called %d times for a work that never segmented", classifier.BatchCount())
	}
}
