package sentiment

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"fortuna/internal/config"
	"fortuna/internal/logging"
	"fortuna/internal/queue"
	"fortuna/internal/services"
	"fortuna/internal/stage"
)

const healthCheckTimeout = 10 * time.Second

// Stage scores a work's retained sentences through the shared classifier and
// persists the bipolar score series on the ledger row.
type Stage struct {
	cfg        *config.Config
	store      *queue.Store
	logger     *slog.Logger
	classifier Classifier
}

// NewStage constructs the scoring stage handler around the process-wide
// classifier.
func NewStage(cfg *config.Config, store *queue.Store, logger *slog.Logger, classifier Classifier) *Stage {
	s := &Stage{
		cfg:        cfg,
		store:      store,
		classifier: classifier,
	}
	s.SetLogger(logger)
	return s
}

// SetLogger updates the stage's logging destination.
func (s *Stage) SetLogger(logger *slog.Logger) {
	s.logger = logging.NewComponentLogger(logger, "scoring")
}

// Prepare initializes progress messaging prior to Execute.
func (s *Stage) Prepare(ctx context.Context, item *queue.Item) error {
	item.InitProgress("Scoring", "Classifying sentences")
	logging.WithContext(ctx, s.logger).Debug("starting scoring")
	return nil
}

// Execute classifies every stored sentence and persists the score series.
func (s *Stage) Execute(ctx context.Context, item *queue.Item) error {
	logger := logging.WithContext(ctx, s.logger)

	sentences, err := stage.LoadSentences(item)
	if err != nil {
		return err
	}

	sampler := logging.NewProgressSampler(0)
	scorer := NewScorer(s.classifier, s.cfg.Scoring.BatchSize,
		WithLogger(logger),
		WithProgress(func(done, total int) {
			percent := 100 * float64(done) / float64(total)
			message := fmt.Sprintf("Scored %d/%d sentences", done, total)
			item.SetProgress("Scoring", message, percent)
			if s.store != nil {
				_ = s.store.UpdateProgress(ctx, item)
			}
			if sampler.ShouldLog(percent, "Scoring", message) {
				logger.Info("scoring progress",
					logging.Int("scored", done),
					logging.Int("total", total),
				)
			}
		}),
	)

	scores, err := scorer.Score(ctx, sentences)
	if err != nil {
		return services.Wrap(
			services.ErrExternalService, "scoring", "classify sentences",
			"Classifier failed for this work; see the cause for the failing batch", err)
	}

	if err := queue.PersistScores(ctx, s.store, item, scores); err != nil {
		return services.Wrap(
			services.ErrTransient, "scoring", "persist scores",
			"Could not store the score payload on the ledger", err)
	}

	item.Status = queue.StatusScored
	item.SetProgressComplete("Scored", fmt.Sprintf("%d sentences scored", len(scores)))
	logger.Info("scoring complete",
		logging.String(logging.FieldWorkTitle, item.DisplayTitle()),
		logging.Int(logging.FieldSentenceCount, len(scores)),
	)
	return nil
}

// HealthCheck pings the classifier backend.
func (s *Stage) HealthCheck(ctx context.Context) stage.Health {
	if s.classifier == nil {
		return stage.Unhealthy("scoring", "classifier unavailable")
	}
	checkCtx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
	defer cancel()
	if err := s.classifier.HealthCheck(checkCtx); err != nil {
		return stage.Unhealthy("scoring", err.Error())
	}
	return stage.Healthy("scoring")
}
