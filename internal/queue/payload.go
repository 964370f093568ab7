package queue

import (
	"context"
	"encoding/json"
	"fmt"

	"fortuna/internal/works"
)

// Stage payloads ride on the work row as JSON columns so a run can resume
// from the last completed stage after a crash.

// SetSentences stores the segmenter output on the item and refreshes the
// sentence count.
func (i *Item) SetSentences(sentences []works.Sentence) error {
	data, err := json.Marshal(sentences)
	if err != nil {
		return fmt.Errorf("marshal sentences: %w", err)
	}
	i.SentencesJSON = string(data)
	i.SentenceCount = len(sentences)
	return nil
}

// Sentences decodes the stored segmenter output. An empty column yields a nil
// slice; callers decide whether that is acceptable for their stage.
func (i *Item) Sentences() ([]works.Sentence, error) {
	if i.SentencesJSON == "" {
		return nil, nil
	}
	var sentences []works.Sentence
	if err := json.Unmarshal([]byte(i.SentencesJSON), &sentences); err != nil {
		return nil, fmt.Errorf("decode sentences: %w", err)
	}
	return sentences, nil
}

// SetScores stores the per-sentence bipolar scores on the item.
func (i *Item) SetScores(scores []float64) error {
	data, err := json.Marshal(scores)
	if err != nil {
		return fmt.Errorf("marshal scores: %w", err)
	}
	i.ScoresJSON = string(data)
	return nil
}

// Scores decodes the stored score series. An empty column yields a nil slice.
func (i *Item) Scores() ([]float64, error) {
	if i.ScoresJSON == "" {
		return nil, nil
	}
	var scores []float64
	if err := json.Unmarshal([]byte(i.ScoresJSON), &scores); err != nil {
		return nil, fmt.Errorf("decode scores: %w", err)
	}
	return scores, nil
}

// PersistSentences encodes sentences onto item and writes the result via
// store.Update. On success the updated item fields are written back through
// the item pointer. Returns a non-nil error when encoding or persistence
// fails; callers decide how to log the result.
func PersistSentences(ctx context.Context, store *Store, item *Item, sentences []works.Sentence) error {
	copy := *item
	if err := copy.SetSentences(sentences); err != nil {
		return err
	}
	if store != nil {
		if err := store.Update(ctx, &copy); err != nil {
			return err
		}
	}
	*item = copy
	return nil
}

// PersistScores encodes scores onto item and writes the result via
// store.Update, mirroring PersistSentences.
func PersistScores(ctx context.Context, store *Store, item *Item, scores []float64) error {
	copy := *item
	if err := copy.SetScores(scores); err != nil {
		return err
	}
	if store != nil {
		if err := store.Update(ctx, &copy); err != nil {
			return err
		}
	}
	*item = copy
	return nil
}
