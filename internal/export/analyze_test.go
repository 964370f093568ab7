package export_test

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"fortuna/internal/export"
	"fortuna/internal/logging"
	"fortuna/internal/queue"
	"fortuna/internal/services"
	"fortuna/internal/testsupport"
	"fortuna/internal/works"
)

func seedAnalysisItem(t *testing.T, store *queue.Store, scores []float64) *queue.Item {
	t.Helper()
	sentences := make([]works.Sentence, len(scores))
	for i := range scores {
		sentences[i] = works.Sentence{Index: i, Clean: "The wheel turned once more.", Words: 5}
	}
	item := testsupport.NewWork(t, store, "hamlet", "Hamlet", "hamlet.txt")
	item.Status = queue.StatusAnalyzing
	if err := item.SetSentences(sentences); err != nil {
		t.Fatalf("SetSentences: %v", err)
	}
	if err := item.SetScores(scores); err != nil {
		t.Fatalf("SetScores: %v", err)
	}
	if err := store.Update(context.Background(), item); err != nil {
		t.Fatalf("Update: %v", err)
	}
	return item
}

func TestAnalyzeStageStagesBundles(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	item := seedAnalysisItem(t, store, []float64{0.9, -0.4, 0.9, -0.4})

	handler := export.NewAnalyzeStage(cfg, store, logging.NewNop())
	if err := handler.Prepare(context.Background(), item); err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	if err := handler.Execute(context.Background(), item); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	if item.Status != queue.StatusAnalyzed {
		t.Fatalf("status = %s, want %s", item.Status, queue.StatusAnalyzed)
	}
	if item.UltimateFortune == nil {
		t.Fatal("expected ultimate fortune on the item")
	}
	if math.Abs(*item.UltimateFortune-1.0) > 1e-9 {
		t.Errorf("ultimate fortune = %v, want 1.0", *item.UltimateFortune)
	}

	wantOriginal := filepath.Join(cfg.StagingDir(), "hamlet", "hamlet_original.json")
	if item.OriginalFile != wantOriginal {
		t.Errorf("original file = %q, want %q", item.OriginalFile, wantOriginal)
	}
	for _, path := range []string{item.OriginalFile, item.CumulativeFile} {
		if !strings.HasPrefix(path, cfg.StagingDir()) {
			t.Errorf("bundle %q staged outside the staging directory", path)
		}
		if _, err := os.Stat(path); err != nil {
			t.Errorf("staged bundle missing: %v", err)
		}
	}

	bundle, err := export.ReadCumulative(item.CumulativeFile)
	if err != nil {
		t.Fatalf("ReadCumulative: %v", err)
	}
	if bundle.WorkID != "hamlet" || bundle.SentenceCount != 4 {
		t.Errorf("bundle meta = %q/%d, want hamlet/4", bundle.WorkID, bundle.SentenceCount)
	}
	if len(bundle.Cumulative) != 4 {
		t.Fatalf("cumulative length = %d, want 4", len(bundle.Cumulative))
	}
	if math.Abs(bundle.Cumulative[3]-1.0) > 1e-9 {
		t.Errorf("final cumulative = %v, want 1.0", bundle.Cumulative[3])
	}
	// Four sentences cannot fill any Savitzky-Golay window, so the smoothed
	// curves and the macro arc stay out of the bundle.
	if _, ok := bundle.Curves["macro_arc"]; ok {
		t.Error("macro arc must be omitted for a series shorter than its window")
	}
	if _, ok := bundle.Curves["rolling_100"]; !ok {
		t.Error("expected the cumulative rolling curve in the bundle")
	}
}

func TestAnalyzeStageFailsWithoutScores(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	item := testsupport.NewWork(t, store, "unscored", "Unscored", "unscored.txt")
	if err := item.SetSentences([]works.Sentence{{Index: 0, Clean: "A lone sentence stands here.", Words: 5}}); err != nil {
		t.Fatalf("SetSentences: %v", err)
	}
	if err := store.Update(context.Background(), item); err != nil {
		t.Fatalf("Update: %v", err)
	}

	handler := export.NewAnalyzeStage(cfg, store, logging.NewNop())

	err := handler.Execute(context.Background(), item)
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("Execute error = %v, want validation failure", err)
	}
}

func TestAnalyzeStageHealthCheck(t *testing.T) {
	cfg := testsupport.NewConfig(t)

	healthy := export.NewAnalyzeStage(cfg, nil, logging.NewNop())
	if health := healthy.HealthCheck(context.Background()); !health.Ready {
		t.Errorf("expected healthy stage, got %+v", health)
	}

	broken := export.NewAnalyzeStage(nil, nil, logging.NewNop())
	if health := broken.HealthCheck(context.Background()); health.Ready {
		t.Error("expected unhealthy stage without configuration")
	}
}
