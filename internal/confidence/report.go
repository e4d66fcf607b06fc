package confidence

import (
	"fmt"
	"math"

	"github.com/dgallion1/docstruct/internal/doctree"
)

// RiskLevel is a coarse triage class for document-wide confidence.
type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// Thresholds split scores into good / acceptable / poor.
type Thresholds struct {
	Good       float64 `json:"good" yaml:"good"`
	Acceptable float64 `json:"acceptable" yaml:"acceptable"`
}

// DefaultThresholds returns the default good/acceptable pair.
func DefaultThresholds() Thresholds {
	return Thresholds{Good: 0.8, Acceptable: 0.6}
}

// Risk classifies a score.
func (t Thresholds) Risk(score float64) RiskLevel {
	switch {
	case score >= t.Good:
		return RiskLow
	case score >= t.Acceptable:
		return RiskMedium
	default:
		return RiskHigh
	}
}

// ChapterScore is one row of the per-chapter breakdown.
type ChapterScore struct {
	Position   int              `json:"position" yaml:"position"`
	ID         string           `json:"id" yaml:"id"`
	Title      string           `json:"title" yaml:"title"`
	Confidence float64          `json:"confidence" yaml:"confidence"`
	Risk       RiskLevel        `json:"risk" yaml:"risk"`
	IsFallback bool             `json:"is_fallback" yaml:"is_fallback"`
	Signals    []doctree.Signal `json:"signals,omitempty" yaml:"signals,omitempty"`
}

// Distribution buckets scores by threshold.
type Distribution struct {
	Good       int     `json:"good" yaml:"good"`
	Acceptable int     `json:"acceptable" yaml:"acceptable"`
	Poor       int     `json:"poor" yaml:"poor"`
	Total      int     `json:"total" yaml:"total"`
	Mean       float64 `json:"mean" yaml:"mean"`
}

func (d *Distribution) add(score float64, t Thresholds) {
	switch t.Risk(score) {
	case RiskLow:
		d.Good++
	case RiskMedium:
		d.Acceptable++
	default:
		d.Poor++
	}
	d.Mean = (d.Mean*float64(d.Total) + score) / float64(d.Total+1)
	d.Total++
}

// StructureFactors summarizes how the structure was derived.
type StructureFactors struct {
	Chapters           int     `json:"chapters" yaml:"chapters"`
	FallbackChapters   int     `json:"fallback_chapters" yaml:"fallback_chapters"`
	UntitledChapters   int     `json:"untitled_chapters" yaml:"untitled_chapters"`
	ManualOverrides    int     `json:"manual_overrides" yaml:"manual_overrides"`
	HeadingConsistency float64 `json:"heading_consistency" yaml:"heading_consistency"`
	ParagraphsPerChap  float64 `json:"paragraphs_per_chapter" yaml:"paragraphs_per_chapter"`
}

// UnitLocation points at a low-confidence unit. -1 means not applicable.
type UnitLocation struct {
	Kind       string  `json:"kind" yaml:"kind"`
	Chapter    int     `json:"chapter" yaml:"chapter"`
	Paragraph  int     `json:"paragraph" yaml:"paragraph"`
	Sentence   int     `json:"sentence" yaml:"sentence"`
	Confidence float64 `json:"confidence" yaml:"confidence"`
	Excerpt    string  `json:"excerpt,omitempty" yaml:"excerpt,omitempty"`
}

// Report aggregates the scores of a structure.
type Report struct {
	Overall         float64          `json:"overall" yaml:"overall"`
	Risk            RiskLevel        `json:"risk" yaml:"risk"`
	Thresholds      Thresholds       `json:"thresholds" yaml:"thresholds"`
	Chapters        []ChapterScore   `json:"chapters" yaml:"chapters"`
	Paragraphs      Distribution     `json:"paragraphs" yaml:"paragraphs"`
	Sentences       Distribution     `json:"sentences" yaml:"sentences"`
	SentenceAverage float64          `json:"sentence_average" yaml:"sentence_average"`
	Factors         StructureFactors `json:"factors" yaml:"factors"`
	Recommendations []string         `json:"recommendations" yaml:"recommendations"`
	LowConfidence   []UnitLocation   `json:"low_confidence,omitempty" yaml:"low_confidence,omitempty"`
}

// GenerateReport aggregates d's scores. The result depends only on d, detailed and t.
func GenerateReport(d *doctree.DocumentStructure, detailed bool, t Thresholds) Report {
	if t.Good <= 0 && t.Acceptable <= 0 {
		t = DefaultThresholds()
	}
	r := Report{
		Overall:    doctree.Clamp01(d.Confidence),
		Thresholds: t,
	}
	r.Risk = t.Risk(r.Overall)

	headingSum := 0.0
	for ci, ch := range d.Chapters {
		cs := ChapterScore{
			Position:   ci,
			ID:         ch.ID,
			Title:      ch.Title,
			Confidence: ch.Confidence,
			Risk:       t.Risk(ch.Confidence),
			IsFallback: ch.IsFallback,
		}
		if detailed {
			cs.Signals = ch.Signals
		}
		r.Chapters = append(r.Chapters, cs)

		r.Factors.Chapters++
		headingSum += ch.DetectedScore
		if ch.IsFallback {
			r.Factors.FallbackChapters++
		}
		if ch.Title == "" {
			r.Factors.UntitledChapters++
		}
		if ch.Correction != nil && ch.Correction.IsManualOverride {
			r.Factors.ManualOverrides++
		}
		if detailed && ch.Confidence < t.Acceptable {
			r.LowConfidence = append(r.LowConfidence, UnitLocation{Kind: "chapter", Chapter: ci, Paragraph: -1, Sentence: -1, Confidence: ch.Confidence, Excerpt: ch.Title})
		}

		for pi, p := range ch.Paragraphs {
			r.Paragraphs.add(p.Confidence, t)
			if detailed && p.Confidence < t.Acceptable {
				r.LowConfidence = append(r.LowConfidence, UnitLocation{Kind: "paragraph", Chapter: ci, Paragraph: pi, Sentence: -1, Confidence: p.Confidence, Excerpt: excerpt(p.RawText)})
			}
			for si, s := range p.Sentences {
				r.Sentences.add(s.Confidence, t)
				if detailed && s.Confidence < t.Acceptable {
					r.LowConfidence = append(r.LowConfidence, UnitLocation{Kind: "sentence", Chapter: ci, Paragraph: pi, Sentence: si, Confidence: s.Confidence, Excerpt: excerpt(s.Text)})
				}
			}
		}
	}
	r.SentenceAverage = round(r.Sentences.Mean)
	r.Paragraphs.Mean = round(r.Paragraphs.Mean)
	r.Sentences.Mean = round(r.Sentences.Mean)
	if n := r.Factors.Chapters; n > 0 {
		r.Factors.HeadingConsistency = round(headingSum / float64(n))
		r.Factors.ParagraphsPerChap = round(float64(r.Paragraphs.Total) / float64(n))
	}
	r.Recommendations = recommend(d, r, t)
	return r
}

func recommend(d *doctree.DocumentStructure, r Report, t Thresholds) []string {
	var recs []string
	if len(d.Chapters) == 0 {
		return []string{"No content was analyzed; check that the source extracted to text."}
	}
	if d.IsFallback || r.Factors.FallbackChapters > 0 {
		recs = append(recs, "No chapter markers were found; add headings or a navigation outline so chapters can be detected.")
	}

	// Runs of low chapters point at a systematic detection gap; lone ones at a bad title.
	for i := 0; i < len(d.Chapters); {
		if d.Chapters[i].IsFallback || d.Chapters[i].Confidence >= t.Acceptable {
			i++
			continue
		}
		j := i
		for j+1 < len(d.Chapters) && d.Chapters[j+1].Confidence < t.Acceptable {
			j++
		}
		if j > i {
			recs = append(recs, fmt.Sprintf("Chapters %d-%d score below %.2f; review their boundaries and titles together.", i+1, j+1, t.Acceptable))
		} else {
			recs = append(recs, fmt.Sprintf("Chapter %d %q scores %.2f; review its title.", i+1, d.Chapters[i].Title, d.Chapters[i].Confidence))
		}
		i = j + 1
	}

	if n := r.Factors.UntitledChapters; n > 0 {
		recs = append(recs, fmt.Sprintf("%d chapter(s) have no title; add titles or merge them into a neighbor.", n))
	}
	if r.Paragraphs.Total > 0 && float64(r.Paragraphs.Poor)/float64(r.Paragraphs.Total) > 0.25 {
		recs = append(recs, fmt.Sprintf("%d of %d paragraphs score below %.2f; check paragraph breaks in the source.", r.Paragraphs.Poor, r.Paragraphs.Total, t.Acceptable))
	}
	if r.Sentences.Total > 0 && r.SentenceAverage < t.Acceptable {
		recs = append(recs, fmt.Sprintf("Sentence confidence averages %.2f; check punctuation and abbreviation handling.", r.SentenceAverage))
	}
	if len(recs) == 0 {
		recs = append(recs, "Structure looks reliable; no review needed.")
	}
	return recs
}

func excerpt(s string) string {
	r := []rune(s)
	if len(r) <= 60 {
		return s
	}
	return string(r[:57]) + "..."
}

func round(v float64) float64 {
	return math.Round(v*1000) / 1000
}
