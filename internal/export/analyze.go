package export

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"log/slog"

	"fortuna/internal/analysis"
	"fortuna/internal/config"
	"fortuna/internal/logging"
	"fortuna/internal/queue"
	"fortuna/internal/services"
	"fortuna/internal/stage"
	"fortuna/internal/works"
)

// AnalyzeStage turns a work's scored sentences into fortune curves and stages
// the original and cumulative bundles for publication.
type AnalyzeStage struct {
	cfg    *config.Config
	store  *queue.Store
	logger *slog.Logger
}

// NewAnalyzeStage constructs the analysis stage handler.
func NewAnalyzeStage(cfg *config.Config, store *queue.Store, logger *slog.Logger) *AnalyzeStage {
	s := &AnalyzeStage{cfg: cfg, store: store}
	s.SetLogger(logger)
	return s
}

// SetLogger installs the logger used for analysis output.
func (s *AnalyzeStage) SetLogger(logger *slog.Logger) {
	s.logger = logging.NewComponentLogger(logger, "analyze")
}

func (s *AnalyzeStage) Prepare(ctx context.Context, item *queue.Item) error {
	item.InitProgress("Analyzing", "Computing fortune curves")
	logging.WithContext(ctx, s.logger).Debug(
		"prepared analysis",
		logging.String(logging.FieldWorkTitle, item.DisplayTitle()),
	)
	return nil
}

func (s *AnalyzeStage) Execute(ctx context.Context, item *queue.Item) error {
	logger := logging.WithContext(ctx, s.logger)

	sentences, err := stage.LoadSentences(item)
	if err != nil {
		return err
	}
	scores, err := stage.LoadScores(item)
	if err != nil {
		return err
	}

	result := analysis.Compute(scores, analysisOptions(s.cfg.Analysis))
	for _, window := range result.OmittedWindows() {
		logger.Warn(
			"smoothing window omitted",
			logging.Int("window", window),
			logging.Int(logging.FieldSentenceCount, len(scores)),
		)
	}
	fortune, ok := result.UltimateFortune()
	if !ok {
		return services.Wrap(
			services.ErrValidation,
			"analysis",
			"compute fortune",
			"Score series produced no cumulative value; rerun scoring",
			nil,
		)
	}

	item.SetProgress("Analyzing", "Staging fortune bundles", 50)
	if s.store != nil {
		if err := s.store.UpdateProgress(ctx, item); err != nil {
			logger.Warn("failed to persist analysis progress", logging.Error(err))
		}
	}

	work := works.Work{
		ID:         item.WorkKey,
		Title:      item.DisplayTitle(),
		SourcePath: item.SourcePath,
		Sentences:  sentences,
	}
	stagingDir := filepath.Join(s.cfg.StagingDir(), item.WorkKey)
	now := time.Now()
	originalPath, err := WriteOriginal(stagingDir, BuildOriginal(work, result, item.RunID, now))
	if err != nil {
		return services.Wrap(
			services.ErrTransient,
			"analysis",
			"stage original bundle",
			"Could not stage the original bundle; check staging directory permissions and free space",
			err,
		)
	}
	cumulativePath, err := WriteCumulative(stagingDir, BuildCumulative(work, result, item.RunID, now))
	if err != nil {
		return services.Wrap(
			services.ErrTransient,
			"analysis",
			"stage cumulative bundle",
			"Could not stage the cumulative bundle; check staging directory permissions and free space",
			err,
		)
	}

	item.OriginalFile = originalPath
	item.CumulativeFile = cumulativePath
	item.UltimateFortune = &fortune
	item.Status = queue.StatusAnalyzed
	item.SetProgressComplete("Analyzed", fmt.Sprintf("Ultimate fortune %+.2f", fortune))
	logger.Info(
		"analysis complete",
		logging.String(logging.FieldWorkTitle, item.DisplayTitle()),
		logging.Int(logging.FieldSentenceCount, len(scores)),
		logging.Float64("ultimate_fortune", fortune),
	)
	return nil
}

// HealthCheck verifies the analysis stage has somewhere to stage bundles.
func (s *AnalyzeStage) HealthCheck(ctx context.Context) stage.Health {
	const name = "analyze"
	if s.cfg == nil {
		return stage.Unhealthy(name, "configuration unavailable")
	}
	if s.cfg.Paths.WorkspaceDir == "" {
		return stage.Unhealthy(name, "workspace directory not configured")
	}
	return stage.Healthy(name)
}

func analysisOptions(cfg config.Analysis) analysis.Options {
	specs := make([]analysis.WindowSpec, 0, len(cfg.SavGol))
	for _, sg := range cfg.SavGol {
		specs = append(specs, analysis.WindowSpec{Window: sg.Window, Degree: sg.Degree})
	}
	return analysis.Options{
		RollingWindows: append([]int(nil), cfg.RollingWindows...),
		SavGol:         specs,
		MacroWindow:    cfg.MacroWindow,
		MacroDegree:    cfg.MacroDegree,
	}
}
