package export

import (
	"fmt"
	"time"

	"fortuna/internal/analysis"
	"fortuna/internal/ranking"
	"fortuna/internal/works"
)

// SchemaVersion identifies the bundle layout for downstream viewers.
const SchemaVersion = 1

// MasterFileName is the corpus-level artifact holding the ranked fortune map.
const MasterFileName = "index.json"

// OriginalFileName returns the per-work volatility artifact name.
func OriginalFileName(workID string) string {
	return workID + "_original.json"
}

// CumulativeFileName returns the per-work cumulative artifact name.
func CumulativeFileName(workID string) string {
	return workID + "_cumulative.json"
}

// SentenceRef pairs a retained sentence with its position index.
type SentenceRef struct {
	Index int    `json:"index"`
	Text  string `json:"text"`
}

// WorkMeta is the header shared by both per-work bundles.
type WorkMeta struct {
	SchemaVersion int       `json:"schema_version"`
	WorkID        string    `json:"work_id"`
	Title         string    `json:"title"`
	RunID         string    `json:"run_id,omitempty"`
	GeneratedAt   time.Time `json:"generated_at"`
	SentenceCount int       `json:"sentence_count"`
}

// OriginalBundle is the volatility view: raw bipolar scores with their
// rolling-mean and Savitzky-Golay curves.
type OriginalBundle struct {
	WorkMeta
	Sentences []SentenceRef              `json:"sentences"`
	Scores    analysis.Series            `json:"scores"`
	Curves    map[string]analysis.Series `json:"curves"`
}

// CumulativeBundle is the fortune view: the running sum with its smoothed
// curves and the macro arc.
type CumulativeBundle struct {
	WorkMeta
	Sentences       []SentenceRef              `json:"sentences"`
	Cumulative      analysis.Series            `json:"cumulative"`
	UltimateFortune *float64                   `json:"ultimate_fortune,omitempty"`
	Curves          map[string]analysis.Series `json:"curves"`
}

// MasterEntry is one ranked work in the corpus bundle.
type MasterEntry struct {
	Rank            int             `json:"rank"`
	WorkID          string          `json:"work_id"`
	Title           string          `json:"title"`
	SentenceCount   int             `json:"sentence_count"`
	UltimateFortune float64         `json:"ultimate_fortune"`
	Color           string          `json:"color"`
	MacroArc        analysis.Series `json:"macro_arc,omitempty"`
}

// MasterBundle is the corpus artifact: every successful work ranked by
// ultimate fortune, each carrying its macro arc for the combined map.
type MasterBundle struct {
	SchemaVersion int           `json:"schema_version"`
	RunID         string        `json:"run_id,omitempty"`
	GeneratedAt   time.Time     `json:"generated_at"`
	WorkCount     int           `json:"work_count"`
	Works         []MasterEntry `json:"works"`
}

// BuildOriginal assembles the volatility bundle for one work. Curves that
// were omitted for lack of data do not appear; rolling curves are always
// present, with nulls where the window never fit.
func BuildOriginal(work works.Work, result analysis.Result, runID string, generatedAt time.Time) OriginalBundle {
	bundle := OriginalBundle{
		WorkMeta:  buildMeta(work, runID, generatedAt),
		Sentences: sentenceRefs(work.Sentences),
		Scores:    result.Scores,
		Curves:    make(map[string]analysis.Series),
	}
	addCurves(bundle.Curves, "rolling", result.Rolling)
	addCurves(bundle.Curves, "savgol", result.Smoothed)
	return bundle
}

// BuildCumulative assembles the fortune bundle for one work. The macro arc
// keeps its own stable key regardless of the configured macro window.
func BuildCumulative(work works.Work, result analysis.Result, runID string, generatedAt time.Time) CumulativeBundle {
	bundle := CumulativeBundle{
		WorkMeta:   buildMeta(work, runID, generatedAt),
		Sentences:  sentenceRefs(work.Sentences),
		Cumulative: result.Cumulative,
		Curves:     make(map[string]analysis.Series),
	}
	if fortune, ok := result.UltimateFortune(); ok {
		bundle.UltimateFortune = &fortune
	}
	addCurves(bundle.Curves, "rolling", result.CumulativeRolling)
	addCurves(bundle.Curves, "savgol", result.CumulativeSmoothed)
	if !result.MacroArc.Omitted() && result.MacroArc.Values != nil {
		bundle.Curves["macro_arc"] = result.MacroArc.Values
	}
	return bundle
}

// BuildMaster assembles the corpus bundle from the ranked entries. Macro arcs
// are looked up by work id; a missing arc leaves the entry without one rather
// than failing the corpus.
func BuildMaster(entries []ranking.Entry, arcs map[string]analysis.Series, runID string, generatedAt time.Time) MasterBundle {
	bundle := MasterBundle{
		SchemaVersion: SchemaVersion,
		RunID:         runID,
		GeneratedAt:   generatedAt.UTC(),
		WorkCount:     len(entries),
		Works:         make([]MasterEntry, 0, len(entries)),
	}
	for _, entry := range entries {
		bundle.Works = append(bundle.Works, MasterEntry{
			Rank:            entry.Rank,
			WorkID:          entry.WorkKey,
			Title:           entry.Title,
			SentenceCount:   entry.SentenceCount,
			UltimateFortune: entry.UltimateFortune,
			Color:           entry.Color,
			MacroArc:        arcs[entry.WorkKey],
		})
	}
	return bundle
}

func buildMeta(work works.Work, runID string, generatedAt time.Time) WorkMeta {
	return WorkMeta{
		SchemaVersion: SchemaVersion,
		WorkID:        work.ID,
		Title:         work.Title,
		RunID:         runID,
		GeneratedAt:   generatedAt.UTC(),
		SentenceCount: len(work.Sentences),
	}
}

func sentenceRefs(sentences []works.Sentence) []SentenceRef {
	refs := make([]SentenceRef, 0, len(sentences))
	for _, sentence := range sentences {
		refs = append(refs, SentenceRef{Index: sentence.Index, Text: sentence.Clean})
	}
	return refs
}

func addCurves(curves map[string]analysis.Series, prefix string, windowCurves []analysis.WindowCurve) {
	for _, curve := range windowCurves {
		if curve.Omitted() || curve.Values == nil {
			continue
		}
		curves[fmt.Sprintf("%s_%d", prefix, curve.Window)] = curve.Values
	}
}
