package analyzer

import (
	"fmt"
	"strings"

	"github.com/dgallion1/docstruct/internal/doctree"
	"github.com/dgallion1/docstruct/internal/validate"
)

// EdgeCaseKind names a structural oddity worth a reviewer's attention.
type EdgeCaseKind string

const (
	EdgeEmptyChapter     EdgeCaseKind = "empty_chapter"
	EdgeShortChapter     EdgeCaseKind = "short_chapter"
	EdgeOversizedChapter EdgeCaseKind = "oversized_chapter"
	EdgeDuplicateTitle   EdgeCaseKind = "duplicate_title"
	EdgeUntitledChapter  EdgeCaseKind = "untitled_chapter"
	EdgeLongSentence     EdgeCaseKind = "long_sentence"
	EdgeFallback         EdgeCaseKind = "fallback_structure"
)

// EdgeCase is one detected oddity.
type EdgeCase struct {
	Kind     EdgeCaseKind      `json:"kind" yaml:"kind"`
	Severity validate.Severity `json:"severity" yaml:"severity"`
	Location validate.Location `json:"location" yaml:"location"`
	Message  string            `json:"message" yaml:"message"`
}

// EdgeCaseConfig sets the size limits edge cases are judged against.
type EdgeCaseConfig struct {
	ShortChapterWords     int
	OversizedChapterWords int
	LongSentenceWords     int
}

// DefaultEdgeCaseConfig returns sensible defaults.
func DefaultEdgeCaseConfig() EdgeCaseConfig {
	return EdgeCaseConfig{
		ShortChapterWords:     50,
		OversizedChapterWords: 20000,
		LongSentenceWords:     80,
	}
}

// DetectEdgeCases lists structural oddities in chapter order, document-wide ones first.
func DetectEdgeCases(d *doctree.DocumentStructure, cfg EdgeCaseConfig) []EdgeCase {
	def := DefaultEdgeCaseConfig()
	if cfg.ShortChapterWords <= 0 {
		cfg.ShortChapterWords = def.ShortChapterWords
	}
	if cfg.OversizedChapterWords <= 0 {
		cfg.OversizedChapterWords = def.OversizedChapterWords
	}
	if cfg.LongSentenceWords <= 0 {
		cfg.LongSentenceWords = def.LongSentenceWords
	}

	var out []EdgeCase
	if d.IsFallback {
		out = append(out, EdgeCase{
			Kind:     EdgeFallback,
			Severity: validate.SeverityHigh,
			Location: validate.Document,
			Message:  "no chapter markers found; the whole document is one inferred chapter",
		})
	}

	seen := map[string]int{}
	for ci, ch := range d.Chapters {
		loc := validate.AtChapter(ci)
		title := strings.ToLower(strings.TrimSpace(ch.Title))

		switch {
		case len(ch.Paragraphs) == 0 || ch.WordCount == 0:
			out = append(out, EdgeCase{Kind: EdgeEmptyChapter, Severity: validate.SeverityMedium, Location: loc,
				Message: fmt.Sprintf("chapter %d has no content", ci+1)})
		case ch.WordCount < cfg.ShortChapterWords && ch.Source != doctree.DetectionLeading:
			out = append(out, EdgeCase{Kind: EdgeShortChapter, Severity: validate.SeverityLow, Location: loc,
				Message: fmt.Sprintf("chapter %d has only %d words", ci+1, ch.WordCount)})
		case ch.WordCount > cfg.OversizedChapterWords:
			out = append(out, EdgeCase{Kind: EdgeOversizedChapter, Severity: validate.SeverityMedium, Location: loc,
				Message: fmt.Sprintf("chapter %d has %d words; it may combine several chapters", ci+1, ch.WordCount)})
		}

		if title == "" {
			out = append(out, EdgeCase{Kind: EdgeUntitledChapter, Severity: validate.SeverityLow, Location: loc,
				Message: fmt.Sprintf("chapter %d has no title", ci+1)})
		} else if first, ok := seen[title]; ok {
			out = append(out, EdgeCase{Kind: EdgeDuplicateTitle, Severity: validate.SeverityMedium, Location: loc,
				Message: fmt.Sprintf("chapter %d repeats the title of chapter %d", ci+1, first+1)})
		} else {
			seen[title] = ci
		}

		for pi, p := range ch.Paragraphs {
			for si, s := range p.Sentences {
				if s.WordCount > cfg.LongSentenceWords {
					out = append(out, EdgeCase{
						Kind:     EdgeLongSentence,
						Severity: validate.SeverityLow,
						Location: validate.Location{Chapter: ci, Paragraph: pi, Sentence: si},
						Message:  fmt.Sprintf("sentence has %d words; it may be missing terminators", s.WordCount),
					})
				}
			}
		}
	}
	return out
}
