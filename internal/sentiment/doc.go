// Package sentiment defines the classifier port and the scorer that folds
// classifier judgments into the bipolar score series the metric engine
// consumes.
//
// A Judgment pairs a POSITIVE/NEGATIVE label with a confidence; Score maps it
// into [-1, 1] (negative labels negate the confidence). The Scorer batches
// sentences through a Classifier while keeping scores strictly index-aligned
// with their sentences. Concrete classifiers live under internal/services:
// the self-hosted inference server adapter and the OpenAI-compatible LLM
// adapter.
package sentiment
