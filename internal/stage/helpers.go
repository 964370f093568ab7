package stage

import (
	"fortuna/internal/queue"
	"fortuna/internal/services"
	"fortuna/internal/works"
)

// LoadSentences decodes the segmenter payload stored on a work. Later stages
// depend on it, so a missing or corrupt payload is a validation error telling
// the operator to rerun segmentation.
func LoadSentences(item *queue.Item) ([]works.Sentence, error) {
	sentences, err := item.Sentences()
	if err != nil {
		return nil, services.Wrap(
			services.ErrValidation, "stage", "decode sentences",
			"Sentence payload is corrupt; rerun segmentation", err)
	}
	if len(sentences) == 0 {
		return nil, services.Wrap(
			services.ErrValidation, "stage", "load sentences",
			"Sentence payload missing; rerun segmentation", nil)
	}
	return sentences, nil
}

// LoadScores decodes the scorer payload stored on a work and checks it still
// lines up one-to-one with the stored sentences.
func LoadScores(item *queue.Item) ([]float64, error) {
	scores, err := item.Scores()
	if err != nil {
		return nil, services.Wrap(
			services.ErrValidation, "stage", "decode scores",
			"Score payload is corrupt; rerun scoring", err)
	}
	if len(scores) == 0 {
		return nil, services.Wrap(
			services.ErrValidation, "stage", "load scores",
			"Score payload missing; rerun scoring", nil)
	}
	if item.SentenceCount > 0 && len(scores) != item.SentenceCount {
		return nil, services.Wrap(
			services.ErrValidation, "stage", "check score alignment",
			"Score payload no longer matches the sentence count; rerun scoring", nil)
	}
	return scores, nil
}
