package confidence

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/dgallion1/docstruct/internal/doctree"
)

var chapterTitlePattern = regexp.MustCompile(`(?i)^(?:chapter|part|book|section)\s+\S+`)

// TitleClarity scores how much a chapter title looks like a deliberate title.
func TitleClarity(title string) float64 {
	t := strings.TrimSpace(title)
	runes := []rune(t)
	letters, digits, upper, lower := 0, 0, 0, 0
	for _, r := range runes {
		switch {
		case unicode.IsLetter(r):
			letters++
			if unicode.IsUpper(r) {
				upper++
			} else if unicode.IsLower(r) {
				lower++
			}
		case unicode.IsDigit(r):
			digits++
		}
	}
	alnum := letters + digits
	if alnum == 0 {
		return 0
	}
	if len(runes) == 1 {
		return 0.2
	}

	score := 0.4
	first := runes[0]
	if unicode.IsUpper(first) || unicode.IsDigit(first) || (unicode.IsLetter(first) && !unicode.IsLower(first)) {
		score += 0.2
	}
	if len(runes) >= 3 && len(runes) <= 80 {
		score += 0.2
	}
	if chapterTitlePattern.MatchString(t) || len(strings.Fields(t)) >= 2 {
		score += 0.2
	}

	if upper == 0 && lower > 0 {
		score -= 0.2
	}
	if len(runes) > 120 {
		score -= 0.3
	}
	if strings.HasSuffix(t, ".") && !strings.HasSuffix(t, "...") {
		score -= 0.1
	}
	if digits*2 > alnum {
		score -= 0.2
	}
	return doctree.Clamp01(score)
}

// ChapterLength scores a chapter's word count: empty and oversized chapters
// both suggest a missed or spurious boundary.
func ChapterLength(words, maxWords int) float64 {
	switch {
	case words == 0:
		return 0.1
	case words < 20:
		return 0.5
	case words <= maxWords:
		return 1
	case words <= 2*maxWords:
		return 0.6
	default:
		return 0.3
	}
}

func paragraphLength(p *doctree.Paragraph) float64 {
	if p.WordCount == 0 {
		return 0
	}
	switch p.Type {
	case doctree.ParagraphHeading, doctree.ParagraphCode, doctree.ParagraphTable:
		return 1
	}
	switch {
	case p.WordCount <= 2:
		return 0.5
	case p.WordCount <= 300:
		return 1
	default:
		return 0.6
	}
}

func formattingRegularity(p *doctree.Paragraph) float64 {
	switch p.Type {
	case doctree.ParagraphCode:
		if strings.HasPrefix(strings.TrimSpace(p.RawText), "```") && strings.Count(p.RawText, "```")%2 != 0 {
			return 0.5
		}
		return 1
	case doctree.ParagraphText:
		if len(p.Sentences) == 0 {
			return 0.5
		}
		formatted := 0
		for _, s := range p.Sentences {
			if s.HasFormatting {
				formatted++
			}
		}
		return 1 - 0.4*float64(formatted)/float64(len(p.Sentences))
	}
	return 1
}

func sentenceConsistency(p *doctree.Paragraph) float64 {
	if len(p.Sentences) == 0 {
		return 0
	}
	sum := 0.0
	for _, s := range p.Sentences {
		sum += s.Confidence
	}
	return sum / float64(len(p.Sentences))
}

// prose reports whether sentences in this paragraph type are expected to read like prose.
func prose(t doctree.ParagraphType) bool {
	return t == doctree.ParagraphText || t == doctree.ParagraphQuote
}

func terminatorScore(s *doctree.Sentence, t doctree.ParagraphType, final bool) float64 {
	switch {
	case !prose(t), s.Terminated:
		return 1
	case final:
		return 0.6
	default:
		return 0.3
	}
}

func sentenceLength(s *doctree.Sentence, t doctree.ParagraphType) float64 {
	if s.WordCount == 0 {
		return 0
	}
	if !prose(t) {
		return 1
	}
	switch {
	case s.WordCount <= 2:
		return 0.5
	case s.WordCount <= 40:
		return 1
	case s.WordCount <= 80:
		return 0.7
	default:
		return 0.4
	}
}

func capitalization(s *doctree.Sentence, t doctree.ParagraphType) float64 {
	if !prose(t) {
		return 1
	}
	for _, r := range s.Text {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if unicode.IsLower(r) {
				return 0.5
			}
			return 1
		}
	}
	return 0.5
}
