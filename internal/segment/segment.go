// Package segment turns raw narrative text into the retained sentence list a
// work is scored on. Sentence boundaries come from a Punkt tokenizer trained
// on English; fragments of a few words carry no usable sentiment signal and
// are dropped before scoring.
package segment

import (
	"fmt"
	"strings"

	"github.com/neurosnap/sentences"
	"github.com/neurosnap/sentences/english"

	"fortuna/internal/works"
)

// DefaultMinWords is the retention threshold: sentences must exceed this many
// whitespace-separated words to be kept.
const DefaultMinWords = 3

// Segmenter splits text into cleaned, filtered, re-indexed sentences. Safe
// for concurrent use once constructed.
type Segmenter struct {
	tokenizer *sentences.DefaultSentenceTokenizer
	minWords  int
}

// Option configures a Segmenter.
type Option func(*Segmenter)

// WithMinWords overrides the retention threshold. Negative values are treated
// as zero, which retains every non-empty sentence.
func WithMinWords(n int) Option {
	return func(s *Segmenter) {
		if n < 0 {
			n = 0
		}
		s.minWords = n
	}
}

// New builds a Segmenter with the bundled English training data. Loading the
// tokenizer happens once per process; construction failure means the binary
// cannot segment anything and should be treated as fatal.
func New(opts ...Option) (*Segmenter, error) {
	tokenizer, err := english.NewSentenceTokenizer(nil)
	if err != nil {
		return nil, fmt.Errorf("load sentence tokenizer: %w", err)
	}
	segmenter := &Segmenter{
		tokenizer: tokenizer,
		minWords:  DefaultMinWords,
	}
	for _, opt := range opts {
		opt(segmenter)
	}
	return segmenter, nil
}

var newlineReplacer = strings.NewReplacer("\r\n", " ", "\n", " ", "\r", " ")

// Clean normalizes one candidate sentence: surrounding whitespace stripped,
// embedded line breaks replaced with spaces.
func Clean(raw string) string {
	return newlineReplacer.Replace(strings.TrimSpace(raw))
}

// Segment tokenizes text and returns the retained sentences in reading order,
// re-indexed contiguously from zero. Blank input yields no sentences; a text
// where every sentence falls under the word threshold yields an empty, valid
// result that the caller decides how to treat.
func (s *Segmenter) Segment(text string) []works.Sentence {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	candidates := s.tokenizer.Tokenize(text)
	retained := make([]works.Sentence, 0, len(candidates))
	for _, candidate := range candidates {
		clean := Clean(candidate.Text)
		words := len(strings.Fields(clean))
		if words <= s.minWords {
			continue
		}
		retained = append(retained, works.Sentence{
			Index: len(retained),
			Raw:   candidate.Text,
			Clean: clean,
			Words: words,
		})
	}
	return retained
}
