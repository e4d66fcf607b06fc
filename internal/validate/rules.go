package validate

import (
	"fmt"
	"strings"

	"github.com/dgallion1/docstruct/internal/doctree"
)

// MinChapters fails structures with fewer than n chapters.
func MinChapters(n int) Rule {
	return func(d *doctree.DocumentStructure) Result {
		if len(d.Chapters) >= n {
			return Result{IsValid: true}
		}
		return Result{Errors: []Issue{{
			Code:     "too_few_chapters",
			Message:  fmt.Sprintf("expected at least %d chapters, found %d", n, len(d.Chapters)),
			Severity: SeverityHigh,
			Location: Document,
		}}}
	}
}

// UniqueTitles warns about chapters sharing a title.
func UniqueTitles() Rule {
	return func(d *doctree.DocumentStructure) Result {
		var r Result
		seen := map[string]int{}
		for i, ch := range d.Chapters {
			key := strings.ToLower(strings.TrimSpace(ch.Title))
			if key == "" {
				continue
			}
			if first, ok := seen[key]; ok {
				r.Warnings = append(r.Warnings, Issue{
					Code:     "duplicate_title",
					Message:  fmt.Sprintf("chapter %d repeats the title of chapter %d", i+1, first+1),
					Severity: SeverityLow,
					Location: AtChapter(i),
				})
				continue
			}
			seen[key] = i
		}
		r.IsValid = true
		return r
	}
}

// MaxSentenceWords warns about sentences longer than n words.
func MaxSentenceWords(n int) Rule {
	return func(d *doctree.DocumentStructure) Result {
		var r Result
		for ci, ch := range d.Chapters {
			for pi, p := range ch.Paragraphs {
				if !p.IncludeInAudio {
					continue
				}
				for si, s := range p.Sentences {
					if s.WordCount > n {
						r.Warnings = append(r.Warnings, Issue{
							Code:     "long_sentence",
							Message:  fmt.Sprintf("sentence has %d words (limit %d)", s.WordCount, n),
							Severity: SeverityLow,
							Location: Location{Chapter: ci, Paragraph: pi, Sentence: si},
						})
					}
				}
			}
		}
		r.IsValid = true
		return r
	}
}
