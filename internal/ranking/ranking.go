package ranking

import (
	"sort"

	"github.com/lucasb-eyer/go-colorful"
)

const (
	hueGreen   = 120.0
	saturation = 0.8
	value      = 0.8
)

// WorkResult is one completed work's contribution to the corpus ranking.
type WorkResult struct {
	WorkKey         string
	Title           string
	SentenceCount   int
	UltimateFortune float64
}

// Entry is a ranked work with its assigned fortune color.
type Entry struct {
	WorkResult
	Rank  int
	Color string
}

// Rank orders works by descending ultimate fortune and assigns each a color
// on the green-to-red gradient. The sort is stable, so works with equal
// fortune keep their input order. Hue decreases monotonically with rank:
// a lower-fortune work never receives a more positive color.
func Rank(results []WorkResult) []Entry {
	ordered := make([]WorkResult, len(results))
	copy(ordered, results)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].UltimateFortune > ordered[j].UltimateFortune
	})

	entries := make([]Entry, len(ordered))
	for i, result := range ordered {
		entries[i] = Entry{
			WorkResult: result,
			Rank:       i + 1,
			Color:      rankColor(i, len(ordered)),
		}
	}
	return entries
}

// rankColor interpolates hue linearly from green (rank 0) to red (last rank)
// at fixed saturation and value. A single work is always green.
func rankColor(rank, total int) string {
	t := 0.0
	if total > 1 {
		t = float64(rank) / float64(total-1)
	}
	hue := hueGreen * (1 - t)
	return colorful.Hsv(hue, saturation, value).Hex()
}
