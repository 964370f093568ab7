package testsupport

import (
	"context"
	"strings"
	"sync"

	"fortuna/internal/sentiment"
)

var gloomyWords = []string{"grief", "ruin", "woe", "death", "dark", "night", "sorrow"}

// StubClassifier is a deterministic in-memory classifier for tests. By
// default sentences containing a gloomy keyword score NEGATIVE 0.9 and
// everything else POSITIVE 0.9; set Judge to override. Safe for concurrent
// use by pipeline workers.
type StubClassifier struct {
	mu        sync.Mutex
	Batches   [][]string
	Judge     func(text string) sentiment.Judgment
	Err       error
	HealthErr error
	Closed    bool
}

// Classify records the batch and returns one judgment per text.
func (c *StubClassifier) Classify(_ context.Context, texts []string) ([]sentiment.Judgment, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.Err != nil {
		return nil, c.Err
	}
	c.Batches = append(c.Batches, append([]string(nil), texts...))
	judgments := make([]sentiment.Judgment, 0, len(texts))
	for _, text := range texts {
		if c.Judge != nil {
			judgments = append(judgments, c.Judge(text))
			continue
		}
		judgments = append(judgments, defaultJudge(text))
	}
	return judgments, nil
}

// HealthCheck reports the scripted health state.
func (c *StubClassifier) HealthCheck(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.HealthErr
}

// Close marks the classifier as closed.
func (c *StubClassifier) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Closed = true
	return nil
}

// BatchCount returns how many Classify calls the stub has served.
func (c *StubClassifier) BatchCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.Batches)
}

func defaultJudge(text string) sentiment.Judgment {
	lowered := strings.ToLower(text)
	for _, word := range gloomyWords {
		if strings.Contains(lowered, word) {
			return sentiment.Judgment{Label: sentiment.LabelNegative, Confidence: 0.9}
		}
	}
	return sentiment.Judgment{Label: sentiment.LabelPositive, Confidence: 0.9}
}
