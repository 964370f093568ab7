// Package runner boots and drives a single corpus run end to end: lock,
// logger, preflight, ledger, classifier, worker pool, and final ranking.
package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"fortuna/internal/analysis"
	"fortuna/internal/config"
	"fortuna/internal/export"
	"fortuna/internal/logging"
	"fortuna/internal/notifications"
	"fortuna/internal/preflight"
	"fortuna/internal/queue"
	"fortuna/internal/ranking"
	"fortuna/internal/segment"
	"fortuna/internal/sentiment"
	"fortuna/internal/services/inference"
	"fortuna/internal/services/llm"
	"fortuna/internal/textutil"
	"fortuna/internal/workflow"
	"fortuna/internal/works"
)

// Options configures run process behavior. A non-empty ResumeRunID finishes
// an existing run instead of starting a new one: its failed works are
// requeued and no inputs are enqueued.
type Options struct {
	LogLevel    string
	Development bool
	ResumeRunID string
}

// Report summarizes a finished run for the caller. Enqueued counts works put
// into the run this invocation (requeued works when resuming); Processed and
// Failed count ledger outcomes; Skipped counts inputs that never became works.
type Report struct {
	RunID      string
	Enqueued   int
	Skipped    int
	Processed  int
	Failed     int
	Ranked     int
	MasterPath string
	Duration   time.Duration
}

// Run executes one full corpus run: enqueue the input texts, drive every work
// through segmentation, scoring, analysis, and export, then rank the completed
// works and write the master bundle. A non-nil error means the run produced no
// usable ranking and the process should exit non-zero.
func Run(cmdCtx context.Context, cfg *config.Config, inputs []string, opts Options) (Report, error) {
	report := Report{}
	if cfg == nil {
		return report, errors.New("config is required")
	}
	resumeRunID := strings.TrimSpace(opts.ResumeRunID)
	if resumeRunID == "" && len(inputs) == 0 {
		return report, errors.New("at least one input text is required")
	}
	if resumeRunID != "" && len(inputs) > 0 {
		return report, errors.New("input texts cannot be combined with a resumed run")
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := cfg.EnsureDirectories(); err != nil {
		return report, err
	}

	lock := flock.New(cfg.LockPath())
	locked, err := lock.TryLock()
	if err != nil {
		return report, fmt.Errorf("acquire run lock: %w", err)
	}
	if !locked {
		return report, errors.New("another fortuna run is already active")
	}
	defer func() {
		_ = lock.Unlock()
	}()

	runID := resumeRunID
	if runID == "" {
		runID = uuid.NewString()
	}
	started := time.Now()
	report.RunID = runID

	logLevel := strings.TrimSpace(opts.LogLevel)
	if logLevel == "" {
		logLevel = cfg.Logging.Level
	}
	logPath := filepath.Join(cfg.Paths.LogDir, fmt.Sprintf("fortuna-%s.log", started.UTC().Format("20060102T150405")))
	baseLogger, err := logging.New(logging.Options{
		Level:            logLevel,
		Format:           cfg.Logging.Format,
		OutputPaths:      []string{"stdout", logPath},
		ErrorOutputPaths: []string{"stderr", logPath},
		Development:      opts.Development,
	})
	if err != nil {
		return report, fmt.Errorf("init logger: %w", err)
	}
	logger := logging.WithRunID(baseLogger, runID)

	if err := ensureCurrentLogPointer(cfg.Paths.LogDir, logPath); err != nil {
		fmt.Fprintf(os.Stderr, "warn: unable to update fortuna.log link: %v\n", err)
	}
	logging.CleanupOldLogs(logger, cfg.Logging.RetentionDays,
		logging.RetentionTarget{Dir: cfg.Paths.LogDir, Pattern: "fortuna-*.log", Exclude: []string{logPath}},
	)
	pidPath := filepath.Join(cfg.Paths.LogDir, "fortuna.pid")
	if err := writePIDFile(pidPath); err != nil {
		return report, fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	startAttrs := []logging.Attr{
		logging.String(logging.FieldEventType, "run_start"),
		logging.String("backend", cfg.Scoring.Backend),
		logging.Int("workers", cfg.Workflow.Workers),
		logging.Int("inputs", len(inputs)),
	}
	if resumeRunID != "" {
		startAttrs = append(startAttrs, logging.Bool("resumed", true))
	}
	logger.Info("run starting", logging.Args(startAttrs...)...)

	if err := runPreflight(signalCtx, cfg, logger); err != nil {
		return report, err
	}

	store, err := queue.Open(cfg)
	if err != nil {
		logger.Error("open work ledger", logging.Error(err))
		return report, err
	}
	defer store.Close()
	healStuckWorks(signalCtx, store, logger)

	classifier, err := newClassifier(cfg)
	if err != nil {
		logger.Error("init classifier", logging.Error(err))
		return report, err
	}
	defer func() {
		if closeErr := classifier.Close(); closeErr != nil {
			logger.Warn("close classifier", logging.Error(closeErr))
		}
	}()

	segmenter, err := segment.New(segment.WithMinWords(cfg.Analysis.MinWords))
	if err != nil {
		logger.Error("init tokenizer", logging.Error(err))
		return report, fmt.Errorf("init tokenizer: %w", err)
	}

	if resumeRunID != "" {
		report.Enqueued, err = requeueFailed(signalCtx, store, logger, runID)
		if err != nil {
			return report, err
		}
	} else {
		report.Enqueued, report.Skipped = enqueueInputs(signalCtx, store, logger, runID, inputs)
		if report.Enqueued == 0 {
			logger.Error("no works enqueued",
				logging.String(logging.FieldEventType, "run_empty"),
				logging.Int("skipped", report.Skipped),
			)
			return report, errors.New("no works enqueued")
		}
	}

	notifier := notifications.NewService(cfg)
	manager := workflow.NewManagerWithNotifier(cfg, store, logger, runID, notifier)
	registerStages(manager, cfg, store, logger, segmenter, classifier)

	if err := manager.RunUntilDrained(signalCtx); err != nil {
		abortInFlight(store, logger, runID)
		attrs := []logging.Attr{
			logging.String(logging.FieldEventType, "run_aborted"),
			logging.Error(err),
		}
		statusCtx, statusCancel := context.WithTimeout(context.Background(), 5*time.Second)
		if last := manager.Status(statusCtx).LastError; last != "" && last != err.Error() {
			attrs = append(attrs, logging.String("last_stage_error", last))
		}
		statusCancel()
		logger.Warn("run interrupted before completion", logging.Args(attrs...)...)
		return report, fmt.Errorf("run aborted: %w", err)
	}

	stats, err := store.StatsForRun(signalCtx, runID)
	if err != nil {
		return report, fmt.Errorf("read run stats: %w", err)
	}
	report.Processed = stats[queue.StatusCompleted]
	report.Failed = stats[queue.StatusFailed]

	masterPath, ranked, err := writeRanking(signalCtx, cfg, store, logger, runID)
	if err != nil {
		return report, err
	}
	report.MasterPath = masterPath
	report.Ranked = ranked
	report.Duration = time.Since(started)

	logger.Info("run complete",
		logging.String(logging.FieldEventType, "run_complete"),
		logging.Int("processed", report.Processed),
		logging.Int("failed", report.Failed),
		logging.Int("ranked", report.Ranked),
		logging.String("ranking_path", masterPath),
		logging.Duration("duration", report.Duration),
	)
	return report, nil
}

// runPreflight verifies the classifier backend, tokenizer, and directories
// before any work is enqueued. Any failed check aborts the run.
func runPreflight(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	results := preflight.RunAll(ctx, cfg)
	for _, result := range results {
		if result.Passed {
			logger.Debug("preflight check passed",
				logging.String("check", result.Name),
				logging.String("detail", result.Detail),
			)
			continue
		}
		logger.Error("preflight check failed",
			logging.String(logging.FieldEventType, "preflight_failed"),
			logging.String("check", result.Name),
			logging.String("detail", result.Detail),
		)
	}
	if failed := preflight.Failed(results); len(failed) > 0 {
		names := make([]string, 0, len(failed))
		for _, result := range failed {
			names = append(names, result.Name)
		}
		return fmt.Errorf("preflight failed: %s", strings.Join(names, ", "))
	}
	return nil
}

// newClassifier builds the process-wide classifier for the configured backend.
func newClassifier(cfg *config.Config) (sentiment.Classifier, error) {
	switch cfg.Scoring.Backend {
	case config.BackendInference:
		opts := []inference.Option{inference.WithRetryMaxAttempts(cfg.Scoring.MaxAttempts)}
		if cfg.Scoring.RetryDelaySeconds > 0 {
			base := time.Duration(cfg.Scoring.RetryDelaySeconds) * time.Second
			opts = append(opts, inference.WithRetryBackoff(base, 8*base))
		}
		return inference.NewClient(inference.Config{
			BaseURL:        cfg.Inference.BaseURL,
			TimeoutSeconds: cfg.Inference.TimeoutSeconds,
		}, opts...), nil
	case config.BackendOpenAI:
		settings := cfg.GetLLM()
		if strings.TrimSpace(settings.APIKey) == "" {
			return nil, errors.New("llm.api_key is required for the openai backend")
		}
		opts := []llm.Option{llm.WithRetryMaxAttempts(cfg.Scoring.MaxAttempts)}
		if cfg.Scoring.RetryDelaySeconds > 0 {
			base := time.Duration(cfg.Scoring.RetryDelaySeconds) * time.Second
			opts = append(opts, llm.WithRetryBackoff(base, 8*base))
		}
		return llm.NewClient(llm.Config{
			APIKey:         settings.APIKey,
			BaseURL:        settings.BaseURL,
			Model:          settings.Model,
			TimeoutSeconds: settings.TimeoutSeconds,
		}, opts...), nil
	default:
		return nil, fmt.Errorf("unknown scoring backend %q", cfg.Scoring.Backend)
	}
}

// enqueueInputs inserts one pending work per usable input path. Inputs that
// cannot become works (blank paths, unkeyable names, duplicate keys) are
// skipped with a warning; unreadable files still enqueue and fail at the
// segmentation stage so the failure lands on the ledger.
func enqueueInputs(ctx context.Context, store *queue.Store, logger *slog.Logger, runID string, inputs []string) (enqueued, skipped int) {
	seen := make(map[string]string, len(inputs))
	for _, input := range inputs {
		path := strings.TrimSpace(input)
		if path == "" {
			skipped++
			continue
		}
		abs, err := filepath.Abs(path)
		if err != nil {
			logger.Warn("skipping input with unresolvable path",
				logging.String("path", path),
				logging.Error(err),
			)
			skipped++
			continue
		}
		key := works.KeyFromPath(abs)
		if key == "" {
			logger.Warn("skipping input without a derivable work key",
				logging.String("path", abs),
			)
			skipped++
			continue
		}
		if first, dup := seen[key]; dup {
			logger.Warn("skipping duplicate work key",
				logging.String("work_key", key),
				logging.String("path", abs),
				logging.String("first_path", first),
			)
			skipped++
			continue
		}
		seen[key] = abs

		item, err := store.NewWork(ctx, runID, key, textutil.DisplayTitle(key), abs)
		if err != nil {
			logger.Warn("failed to enqueue work",
				logging.String("work_key", key),
				logging.String("path", abs),
				logging.Error(err),
			)
			skipped++
			continue
		}
		logger.Debug("work enqueued",
			logging.Int64(logging.FieldWorkID, item.ID),
			logging.String("work_key", key),
			logging.String("path", abs),
		)
		enqueued++
	}
	return enqueued, skipped
}

// requeueFailed verifies the resumed run exists and returns its failed works
// to pending so they pass through the pipeline again. Works a previous
// process left mid-stage have already been healed back to their stage-start
// statuses, so after this the drain loop can finish the run.
func requeueFailed(ctx context.Context, store *queue.Store, logger *slog.Logger, runID string) (int, error) {
	stats, err := store.StatsForRun(ctx, runID)
	if err != nil {
		return 0, fmt.Errorf("read run stats: %w", err)
	}
	total := 0
	for _, count := range stats {
		total += count
	}
	if total == 0 {
		return 0, fmt.Errorf("run %s has no works", runID)
	}

	failed, err := store.ListRun(ctx, runID, queue.StatusFailed)
	if err != nil {
		return 0, fmt.Errorf("list failed works: %w", err)
	}
	if len(failed) == 0 {
		return 0, nil
	}
	ids := make([]int64, 0, len(failed))
	for _, item := range failed {
		ids = append(ids, item.ID)
	}
	count, err := store.RetryFailed(ctx, ids...)
	if err != nil {
		return 0, fmt.Errorf("requeue failed works: %w", err)
	}
	logger.Info("failed works requeued",
		logging.String(logging.FieldEventType, "works_requeued"),
		logging.Int64("works", count),
	)
	return int(count), nil
}

func registerStages(mgr *workflow.Manager, cfg *config.Config, store *queue.Store, logger *slog.Logger, segmenter *segment.Segmenter, classifier sentiment.Classifier) {
	if mgr == nil || cfg == nil {
		return
	}
	mgr.ConfigureStages(workflow.StageSet{
		Segmenter: segment.NewStage(cfg, store, logger, segmenter),
		Scorer:    sentiment.NewStage(cfg, store, logger, classifier),
		Analyzer:  export.NewAnalyzeStage(cfg, store, logger),
		Exporter:  export.NewPublishStage(cfg, store, logger),
	})
}

// healStuckWorks returns works a crashed process left mid-stage to the start
// of their stage. Failures are logged and ignored: a stuck row also gets
// reclaimed by the heartbeat monitor once its heartbeat expires.
func healStuckWorks(ctx context.Context, store *queue.Store, logger *slog.Logger) {
	healed, err := store.ResetStuckProcessing(ctx)
	if err != nil {
		logger.Warn("failed to reset stuck works", logging.Error(err))
		return
	}
	if healed > 0 {
		logger.Info("stuck works reset to stage start",
			logging.String(logging.FieldEventType, "ledger_healed"),
			logging.Int64("works", healed),
		)
	}
}

// abortInFlight fails every work still mid-stage so an interrupted run leaves
// no phantom in-progress rows. Uses a fresh context because the run context
// is already canceled when this is called.
func abortInFlight(store *queue.Store, logger *slog.Logger, runID string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	count, err := store.FailProcessing(ctx, runID, queue.RunAbortedReason)
	if err != nil {
		logger.Warn("failed to mark in-flight works aborted", logging.Error(err))
		return
	}
	if count > 0 {
		logger.Info("in-flight works marked aborted", logging.Int64("works", count))
	}
}

// writeRanking ranks the run's completed works and writes the master bundle.
// Zero completed works is fatal: there is nothing to rank.
func writeRanking(ctx context.Context, cfg *config.Config, store *queue.Store, logger *slog.Logger, runID string) (string, int, error) {
	completed, err := store.ListRun(ctx, runID, queue.StatusCompleted)
	if err != nil {
		return "", 0, fmt.Errorf("list completed works: %w", err)
	}
	if len(completed) == 0 {
		logger.Error("no works completed; ranking not emitted",
			logging.String(logging.FieldEventType, "run_failed"),
		)
		return "", 0, errors.New("no works completed")
	}

	results := make([]ranking.WorkResult, 0, len(completed))
	arcs := make(map[string]analysis.Series, len(completed))
	for _, item := range completed {
		if item.UltimateFortune == nil {
			logger.Warn("completed work missing ultimate fortune; excluded from ranking",
				logging.String("work_key", item.WorkKey),
			)
			continue
		}
		results = append(results, ranking.WorkResult{
			WorkKey:         item.WorkKey,
			Title:           item.DisplayTitle(),
			SentenceCount:   item.SentenceCount,
			UltimateFortune: *item.UltimateFortune,
		})
		bundle, readErr := export.ReadCumulative(item.CumulativeFile)
		if readErr != nil {
			logger.Warn("failed to read cumulative bundle for ranking arc",
				logging.String("work_key", item.WorkKey),
				logging.Error(readErr),
			)
			continue
		}
		if arc, ok := bundle.Curves["macro_arc"]; ok {
			arcs[item.WorkKey] = arc
		}
	}
	if len(results) == 0 {
		return "", 0, errors.New("no works eligible for ranking")
	}

	entries := ranking.Rank(results)
	master := export.BuildMaster(entries, arcs, runID, time.Now().UTC())
	masterPath, err := export.WriteMaster(cfg.Paths.OutputDir, master)
	if err != nil {
		return "", 0, fmt.Errorf("write ranking bundle: %w", err)
	}
	return masterPath, len(entries), nil
}

func ensureCurrentLogPointer(logDir, target string) error {
	if logDir == "" || target == "" {
		return nil
	}
	current := filepath.Join(logDir, "fortuna.log")
	if err := os.Remove(current); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove existing log pointer: %w", err)
	}
	if err := os.Symlink(target, current); err == nil {
		return nil
	}
	if err := os.Link(target, current); err != nil {
		return fmt.Errorf("link log pointer: %w", err)
	}
	return nil
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	value := strconv.Itoa(os.Getpid()) + "\n"
	return os.WriteFile(path, []byte(value), 0o644)
}
