package sentiment

import "context"

// Label classifies the overall tone of a sentence.
type Label string

const (
	LabelPositive Label = "POSITIVE"
	LabelNegative Label = "NEGATIVE"
)

// Judgment is a single classifier verdict: a label plus the classifier's
// confidence in it.
type Judgment struct {
	Label      Label
	Confidence float64
}

// Score folds the judgment into a bipolar value in [-1, 1]: positive
// sentences keep their confidence, negative sentences negate it. Confidence
// outside [0, 1] is clamped before folding.
func (j Judgment) Score() float64 {
	confidence := j.Confidence
	if confidence < 0 {
		confidence = 0
	}
	if confidence > 1 {
		confidence = 1
	}
	if j.Label == LabelNegative {
		return -confidence
	}
	return confidence
}

// Classifier labels batches of sentences. Implementations carry expensive
// process-wide state (a loaded model or an API session), so one classifier is
// constructed per run, health-checked before any scoring, shared by all
// workers, and closed at shutdown.
type Classifier interface {
	// Classify returns exactly one judgment per input text, in input order.
	Classify(ctx context.Context, texts []string) ([]Judgment, error)
	// HealthCheck verifies the classifier is ready. A failure here is fatal
	// for the run.
	HealthCheck(ctx context.Context) error
	// Close releases any resources held by the classifier.
	Close() error
}
