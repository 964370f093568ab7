package sentiment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"fortuna/internal/logging"
	"fortuna/internal/works"
)

const defaultBatchSize = 32

// Scorer turns retained sentences into a bipolar score series by driving a
// Classifier in fixed-size batches. Scores stay index-aligned with their
// sentences no matter how the batches fall; a batch failure fails the whole
// work rather than skipping or shifting indices.
type Scorer struct {
	classifier Classifier
	batchSize  int
	logger     *slog.Logger
	progress   func(done, total int)
}

// ScorerOption customizes optional Scorer behavior.
type ScorerOption func(*Scorer)

// WithLogger attaches a logger for batch-level diagnostics.
func WithLogger(logger *slog.Logger) ScorerOption {
	return func(s *Scorer) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithProgress registers a callback invoked after each scored batch with the
// number of sentences scored so far and the total.
func WithProgress(fn func(done, total int)) ScorerOption {
	return func(s *Scorer) {
		s.progress = fn
	}
}

// NewScorer constructs a scorer over the given classifier. A batch size of
// zero or less falls back to the default.
func NewScorer(classifier Classifier, batchSize int, opts ...ScorerOption) *Scorer {
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	scorer := &Scorer{
		classifier: classifier,
		batchSize:  batchSize,
		logger:     logging.NewNop(),
	}
	for _, opt := range opts {
		opt(scorer)
	}
	return scorer
}

// Score classifies every sentence and returns one bipolar score per sentence,
// in input order. An empty input yields an empty series without touching the
// classifier.
func (s *Scorer) Score(ctx context.Context, sentences []works.Sentence) ([]float64, error) {
	if s == nil || s.classifier == nil {
		return nil, errors.New("classifier is required")
	}
	if len(sentences) == 0 {
		return []float64{}, nil
	}

	total := len(sentences)
	scores := make([]float64, 0, total)
	for start := 0; start < total; start += s.batchSize {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		end := start + s.batchSize
		if end > total {
			end = total
		}
		texts := make([]string, 0, end-start)
		for _, sentence := range sentences[start:end] {
			texts = append(texts, sentence.Clean)
		}

		judgments, err := s.classifier.Classify(ctx, texts)
		if err != nil {
			return nil, fmt.Errorf("classify batch at sentence %d: %w", start, err)
		}
		if len(judgments) != len(texts) {
			return nil, fmt.Errorf("classifier returned %d judgments for %d sentences", len(judgments), len(texts))
		}
		for _, judgment := range judgments {
			scores = append(scores, judgment.Score())
		}

		if s.progress != nil {
			s.progress(end, total)
		}
		s.logger.Debug("scored batch",
			logging.Int("batch_start", start),
			logging.Int("batch_size", len(texts)),
			logging.Int("scored", end),
			logging.Int("total", total),
		)
	}
	return scores, nil
}
