package segment

import (
	"context"
	"fmt"
	"log/slog"

	"fortuna/internal/config"
	"fortuna/internal/logging"
	"fortuna/internal/queue"
	"fortuna/internal/services"
	"fortuna/internal/stage"
	"fortuna/internal/works"
)

// Stage reads a work's source text, segments it, and persists the retained
// sentences on the ledger row for the scoring stage.
type Stage struct {
	cfg       *config.Config
	store     *queue.Store
	logger    *slog.Logger
	segmenter *Segmenter
}

// NewStage constructs the segmentation stage handler.
func NewStage(cfg *config.Config, store *queue.Store, logger *slog.Logger, segmenter *Segmenter) *Stage {
	s := &Stage{
		cfg:       cfg,
		store:     store,
		segmenter: segmenter,
	}
	s.SetLogger(logger)
	return s
}

// SetLogger updates the stage's logging destination.
func (s *Stage) SetLogger(logger *slog.Logger) {
	s.logger = logging.NewComponentLogger(logger, "segment")
}

// Prepare initializes progress messaging prior to Execute.
func (s *Stage) Prepare(ctx context.Context, item *queue.Item) error {
	item.InitProgress("Segmenting", "Splitting text into sentences")
	logging.WithContext(ctx, s.logger).Debug("starting segmentation")
	return nil
}

// Execute loads the source text and stores the retained sentence list.
func (s *Stage) Execute(ctx context.Context, item *queue.Item) error {
	logger := logging.WithContext(ctx, s.logger)

	source, err := works.LoadSource(item.SourcePath)
	if err != nil {
		return services.Wrap(
			services.ErrValidation, "segmentation", "read source",
			"Source file missing or empty; check the input path", err)
	}

	sentences := s.segmenter.Segment(source.Text)
	if len(sentences) == 0 {
		return services.Wrap(
			services.ErrValidation, "segmentation", "retain sentences",
			"No sentences cleared the word threshold; nothing to score", nil)
	}

	if err := queue.PersistSentences(ctx, s.store, item, sentences); err != nil {
		return services.Wrap(
			services.ErrTransient, "segmentation", "persist sentences",
			"Could not store the sentence payload on the ledger", err)
	}

	item.Status = queue.StatusSegmented
	item.SetProgressComplete("Segmented", fmt.Sprintf("%d sentences retained", len(sentences)))
	logger.Info("segmentation complete",
		logging.String(logging.FieldWorkTitle, item.DisplayTitle()),
		logging.Int(logging.FieldSentenceCount, len(sentences)),
	)
	return nil
}

// HealthCheck reports the stage's operational readiness.
func (s *Stage) HealthCheck(context.Context) stage.Health {
	if s.segmenter == nil {
		return stage.Unhealthy("segment", "sentence tokenizer unavailable")
	}
	return stage.Healthy("segment")
}
