// Package validate checks an analyzed structure against thresholds and custom rules.
package validate

import (
	"fmt"
	"math"
	"sync"

	"github.com/dgallion1/docstruct/internal/doctree"
)

// Severity ranks an issue.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Location points into the structure. -1 means not applicable.
type Location struct {
	Chapter   int `json:"chapter" yaml:"chapter"`
	Paragraph int `json:"paragraph" yaml:"paragraph"`
	Sentence  int `json:"sentence" yaml:"sentence"`
}

// Document is the location of document-wide issues.
var Document = Location{Chapter: -1, Paragraph: -1, Sentence: -1}

// AtChapter returns the location of chapter i.
func AtChapter(i int) Location { return Location{Chapter: i, Paragraph: -1, Sentence: -1} }

// AtParagraph returns the location of paragraph p in chapter c.
func AtParagraph(c, p int) Location { return Location{Chapter: c, Paragraph: p, Sentence: -1} }

// Issue is one validation error or warning.
type Issue struct {
	Code     string   `json:"code" yaml:"code"`
	Message  string   `json:"message" yaml:"message"`
	Severity Severity `json:"severity" yaml:"severity"`
	Location Location `json:"location" yaml:"location"`
}

// Result is the outcome of validating a structure.
type Result struct {
	IsValid  bool    `json:"is_valid" yaml:"is_valid"`
	Errors   []Issue `json:"errors" yaml:"errors"`
	Warnings []Issue `json:"warnings" yaml:"warnings"`
	Score    float64 `json:"score" yaml:"score"`
}

// Rule is a pluggable check. It must not modify the structure.
type Rule func(d *doctree.DocumentStructure) Result

// Options configure a validation run.
type Options struct {
	MinConfidence float64 `json:"min_confidence" yaml:"min_confidence"`
	MaxWarnings   int     `json:"max_warnings" yaml:"max_warnings"` // 0 disables the ceiling
	Strict        bool    `json:"strict" yaml:"strict"`
	Rules         []Rule  `json:"-" yaml:"-"`
}

// DefaultOptions returns sensible defaults.
func DefaultOptions() Options {
	return Options{MinConfidence: 0.6, MaxWarnings: 10}
}

// Validate checks d: confidence floor and integrity first, then the warning
// ceiling, then custom rules. d is never modified.
func Validate(d *doctree.DocumentStructure, opts Options) Result {
	var r Result

	// 1. Confidence floor and integrity.
	if d.Confidence < opts.MinConfidence {
		sev := SeverityHigh
		if d.Confidence < opts.MinConfidence/2 {
			sev = SeverityCritical
		}
		r.Errors = append(r.Errors, Issue{
			Code:     "confidence_below_minimum",
			Message:  fmt.Sprintf("document confidence %.2f is below the minimum %.2f", d.Confidence, opts.MinConfidence),
			Severity: sev,
			Location: Document,
		})
	}
	checkIntegrity(d, opts, &r)

	// 2. Warning ceiling.
	if opts.MaxWarnings > 0 && len(r.Warnings) > opts.MaxWarnings && opts.Strict {
		r.Errors = append(r.Errors, Issue{
			Code:     "too_many_warnings",
			Message:  fmt.Sprintf("%d warnings exceed the limit of %d", len(r.Warnings), opts.MaxWarnings),
			Severity: SeverityMedium,
			Location: Document,
		})
	}

	// 3. Custom rules.
	for _, rule := range opts.Rules {
		rr := rule(d)
		r.Errors = append(r.Errors, rr.Errors...)
		r.Warnings = append(r.Warnings, rr.Warnings...)
	}

	r.IsValid = len(r.Errors) == 0
	r.Score = score(d.Confidence, r)
	return r
}

func checkIntegrity(d *doctree.DocumentStructure, opts Options, r *Result) {
	if len(d.Chapters) == 0 {
		r.Errors = append(r.Errors, Issue{Code: "no_chapters", Message: "structure has no chapters", Severity: SeverityCritical, Location: Document})
		return
	}
	if d.TotalChapters != len(d.Chapters) {
		r.Errors = append(r.Errors, Issue{
			Code:     "chapter_count_mismatch",
			Message:  fmt.Sprintf("total_chapters %d does not match %d chapters", d.TotalChapters, len(d.Chapters)),
			Severity: SeverityHigh,
			Location: Document,
		})
	}
	words := 0
	for _, ch := range d.Chapters {
		words += ch.WordCount
	}
	if d.TotalWordCount != words {
		r.Errors = append(r.Errors, Issue{
			Code:     "word_count_mismatch",
			Message:  fmt.Sprintf("total_word_count %d does not match chapter sum %d", d.TotalWordCount, words),
			Severity: SeverityHigh,
			Location: Document,
		})
	}
	if !inRange(d.Confidence) {
		r.Errors = append(r.Errors, Issue{Code: "confidence_out_of_range", Message: "document confidence outside [0,1]", Severity: SeverityCritical, Location: Document})
	}
	if d.IsFallback {
		r.Warnings = append(r.Warnings, Issue{Code: "fallback_structure", Message: "no chapter markers found; structure is inferred", Severity: SeverityMedium, Location: Document})
	}

	for ci, ch := range d.Chapters {
		loc := AtChapter(ci)
		if ch.StartPosition >= ch.EndPosition {
			r.Errors = append(r.Errors, Issue{
				Code:     "invalid_chapter_range",
				Message:  fmt.Sprintf("chapter %d start %d is not before end %d", ci+1, ch.StartPosition, ch.EndPosition),
				Severity: SeverityHigh,
				Location: loc,
			})
		}
		if ci > 0 && ch.Position <= d.Chapters[ci-1].Position {
			r.Errors = append(r.Errors, Issue{Code: "chapter_order", Message: fmt.Sprintf("chapter %d position is not increasing", ci+1), Severity: SeverityHigh, Location: loc})
		}
		if !inRange(ch.Confidence) {
			r.Errors = append(r.Errors, Issue{Code: "confidence_out_of_range", Message: fmt.Sprintf("chapter %d confidence outside [0,1]", ci+1), Severity: SeverityCritical, Location: loc})
		} else if ch.Confidence < opts.MinConfidence {
			r.Warnings = append(r.Warnings, Issue{
				Code:     "low_chapter_confidence",
				Message:  fmt.Sprintf("chapter %d %q confidence %.2f is below %.2f", ci+1, ch.Title, ch.Confidence, opts.MinConfidence),
				Severity: SeverityMedium,
				Location: loc,
			})
		}
		if ch.Title == "" {
			r.Warnings = append(r.Warnings, Issue{Code: "untitled_chapter", Message: fmt.Sprintf("chapter %d has no title", ci+1), Severity: SeverityLow, Location: loc})
		}
		if len(ch.Paragraphs) == 0 {
			r.Warnings = append(r.Warnings, Issue{Code: "empty_chapter", Message: fmt.Sprintf("chapter %d has no paragraphs", ci+1), Severity: SeverityMedium, Location: loc})
		}

		for pi, p := range ch.Paragraphs {
			sum := 0
			for si, s := range p.Sentences {
				sum += s.WordCount
				if !inRange(s.Confidence) {
					r.Errors = append(r.Errors, Issue{
						Code:     "confidence_out_of_range",
						Message:  "sentence confidence outside [0,1]",
						Severity: SeverityCritical,
						Location: Location{Chapter: ci, Paragraph: pi, Sentence: si},
					})
				}
			}
			if sum != p.WordCount {
				r.Warnings = append(r.Warnings, Issue{
					Code:     "paragraph_word_count",
					Message:  fmt.Sprintf("paragraph word count %d differs from sentence sum %d", p.WordCount, sum),
					Severity: SeverityLow,
					Location: AtParagraph(ci, pi),
				})
			}
			if !inRange(p.Confidence) {
				r.Errors = append(r.Errors, Issue{Code: "confidence_out_of_range", Message: "paragraph confidence outside [0,1]", Severity: SeverityCritical, Location: AtParagraph(ci, pi)})
			}
		}
	}
}

func inRange(v float64) bool {
	return !math.IsNaN(v) && v >= 0 && v <= 1
}

// score starts from the document confidence and deducts per issue severity.
func score(conf float64, r Result) float64 {
	s := doctree.Clamp01(conf)
	penalty := map[Severity]float64{SeverityLow: 0.01, SeverityMedium: 0.03, SeverityHigh: 0.1, SeverityCritical: 0.25}
	for _, e := range r.Errors {
		s -= penalty[e.Severity]
	}
	for _, w := range r.Warnings {
		s -= penalty[w.Severity] / 2
	}
	return math.Round(doctree.Clamp01(s)*1000) / 1000
}

// State is the lifecycle of a Validation.
type State string

const (
	StateUnchecked State = "unchecked"
	StateValidated State = "validated"
)

// Validation tracks one structure through unchecked -> validated and caches the result.
type Validation struct {
	mu     sync.Mutex
	doc    *doctree.DocumentStructure
	opts   Options
	state  State
	result Result
}

// NewValidation creates an unchecked Validation for d.
func NewValidation(d *doctree.DocumentStructure, opts Options) *Validation {
	return &Validation{doc: d, opts: opts, state: StateUnchecked}
}

// State returns the current lifecycle state.
func (v *Validation) State() State {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.state
}

// Run validates once; later calls return the cached result.
func (v *Validation) Run() Result {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.state == StateUnchecked {
		v.result = Validate(v.doc, v.opts)
		v.state = StateValidated
	}
	return v.result
}
