package segment

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/dgallion1/docstruct/internal/doctree"
)

// Span is a half-open byte range of one sentence inside a paragraph.
type Span struct {
	Start      int
	End        int
	Terminated bool // Ends in a sentence terminator rather than running out of text.
}

// DefaultAbbreviations are tokens that may precede a period without ending a sentence.
var DefaultAbbreviations = []string{
	// Titles
	"mr", "mrs", "ms", "dr", "prof", "sr", "jr", "st", "rev", "hon", "gen", "col", "capt", "lt", "sgt", "fr",
	// Months and days
	"jan", "feb", "apr", "jun", "jul", "aug", "sep", "sept", "oct", "nov", "dec",
	"tue", "tues", "thu", "thur", "thurs", "fri",
	// Units
	"km", "kg", "cm", "mm", "lb", "lbs", "oz", "ft", "hr", "hrs", "mins", "secs", "approx",
	// Latin and reference forms
	"etc", "vs", "cf", "viz", "fig", "figs", "eq", "vol", "pp", "eds", "dept",
	// Organizations
	"inc", "ltd", "corp", "bros", "assn",
}

// DefaultAmbiguousAbbreviations are abbreviations that are also ordinary
// words. They hold a sentence open only when the next word does not start
// with a capital, as in "Mar. 3" or "et al. found".
var DefaultAmbiguousAbbreviations = []string{
	"mar", "may", "mon", "wed", "sat", "sun",
	"mi", "min", "sec",
	"al", "ca", "ch", "ed", "est", "co",
}

var acronymPattern = regexp.MustCompile(`^(?:[A-Za-z]\.)+[A-Za-z]$`)

var formattingPattern = regexp.MustCompile("\\*\\*|__|`|\\[[^\\]]*\\]\\(|(?:^|\\s)[*_][^*_\\s]")

// SentenceSegmenter splits paragraph text on sentence terminators.
type SentenceSegmenter struct {
	wordDuration float64
	terminators  map[rune]bool
	spaceless    map[rune]bool // Terminators that end a sentence without trailing whitespace.
	abbrev       map[string]bool
	ambiguous    map[string]bool
	initials     bool
}

// NewSentenceSegmenter builds a segmenter for the configured locale.
func NewSentenceSegmenter(cfg Config) *SentenceSegmenter {
	cfg = cfg.withDefaults()
	s := &SentenceSegmenter{
		wordDuration: cfg.WordDuration,
		terminators:  map[rune]bool{'.': true, '!': true, '?': true, '…': true},
		spaceless:    map[rune]bool{},
		abbrev:       make(map[string]bool),
		ambiguous:    make(map[string]bool),
		initials:     !cfg.NoInitials,
	}
	for _, r := range localeTerminators(cfg.Locale) {
		s.terminators[r] = true
	}
	for _, r := range localeSpaceless(cfg.Locale) {
		s.terminators[r] = true
		s.spaceless[r] = true
	}

	abbrevs := cfg.Abbreviations
	if extra, ok := cfg.LocaleAbbreviations[baseLocale(cfg.Locale)]; ok {
		abbrevs = append(append([]string(nil), abbrevs...), extra...)
	}
	for _, a := range abbrevs {
		s.abbrev[strings.ToLower(strings.TrimSuffix(a, "."))] = true
	}
	for _, a := range cfg.AmbiguousAbbreviations {
		a = strings.ToLower(strings.TrimSuffix(a, "."))
		if !s.abbrev[a] {
			s.ambiguous[a] = true
		}
	}
	return s
}

// Split returns the sentence spans of text in order.
func (s *SentenceSegmenter) Split(text string) []Span {
	var spans []Span
	start := skipSpace(text, 0)
	i := start

	for i < len(text) {
		r, size := utf8.DecodeRuneInString(text[i:])
		if !s.terminators[r] {
			i += size
			continue
		}

		runStart := i
		count := 0
		allDots := true
		spaceless := false
		for i < len(text) {
			r2, sz := utf8.DecodeRuneInString(text[i:])
			if !s.terminators[r2] {
				break
			}
			if r2 != '.' && r2 != '…' {
				allDots = false
			}
			if r2 == '…' {
				count++ // A single ellipsis rune counts as a run.
			}
			if s.spaceless[r2] {
				spaceless = true
			}
			count++
			i += sz
		}
		end := i
		for end < len(text) {
			r3, sz := utf8.DecodeRuneInString(text[end:])
			if !isCloser(r3) {
				break
			}
			end += sz
		}

		if s.isBoundary(text, start, runStart, end, count, allDots, spaceless) {
			spans = append(spans, Span{Start: start, End: end, Terminated: true})
			start = skipSpace(text, end)
			i = start
			continue
		}
		i = end
	}

	if start < len(text) {
		stop := len(strings.TrimRightFunc(text, unicode.IsSpace))
		if stop > start {
			spans = append(spans, Span{Start: start, End: stop})
		}
	}
	return spans
}

func (s *SentenceSegmenter) isBoundary(text string, sentStart, runStart, end, count int, allDots, spaceless bool) bool {
	rest := text[end:]
	if strings.TrimSpace(rest) == "" {
		return true
	}
	if spaceless {
		return true
	}
	next, _ := utf8.DecodeRuneInString(rest)
	if !unicode.IsSpace(next) {
		// Decimals, URLs and inner acronym dots.
		return false
	}
	following, _ := utf8.DecodeRuneInString(text[skipSpace(text, end):])

	if allDots && count >= 2 {
		// Ellipsis: only a capitalized clause starts a new sentence.
		return unicode.IsUpper(following)
	}
	if allDots && count == 1 {
		token := tokenBefore(text, sentStart, runStart)
		if s.isAbbreviation(token) {
			return false
		}
		if s.ambiguous[strings.ToLower(token)] && !unicode.IsUpper(following) {
			return false
		}
	}
	return true
}

func (s *SentenceSegmenter) isAbbreviation(token string) bool {
	if token == "" {
		return false
	}
	if s.abbrev[strings.ToLower(token)] {
		return true
	}
	if acronymPattern.MatchString(token) {
		return true
	}
	// Single capital initial, as in "John F. Kennedy". The pronoun "I" is not one.
	if s.initials && token != "I" && utf8.RuneCountInString(token) == 1 {
		r, _ := utf8.DecodeRuneInString(token)
		return unicode.IsUpper(r)
	}
	return false
}

// tokenBefore returns the whitespace-delimited token ending at pos, without leading openers.
func tokenBefore(text string, floor, pos int) string {
	begin := pos
	for begin > floor {
		r, size := utf8.DecodeLastRuneInString(text[floor:begin])
		if unicode.IsSpace(r) {
			break
		}
		begin -= size
	}
	return strings.TrimLeft(text[begin:pos], "([{\"'“‘«")
}

// Sentences converts text into sentence records with counts and durations.
func (s *SentenceSegmenter) Sentences(text string) []doctree.Sentence {
	spans := s.Split(text)
	out := make([]doctree.Sentence, 0, len(spans))
	for i, sp := range spans {
		out = append(out, s.sentence(text, sp, i))
	}
	return out
}

func (s *SentenceSegmenter) sentence(text string, sp Span, pos int) doctree.Sentence {
	t := text[sp.Start:sp.End]
	words := doctree.CountWords(t)
	return doctree.Sentence{
		Text:              t,
		Position:          pos,
		WordCount:         words,
		EstimatedDuration: float64(words) * s.wordDuration,
		HasFormatting:     formattingPattern.MatchString(t),
		Terminated:        sp.Terminated,
		CharRange:         &doctree.CharRange{Start: sp.Start, End: sp.End},
	}
}

// WordDuration returns the per-word narration estimate.
func (s *SentenceSegmenter) WordDuration() float64 { return s.wordDuration }

func skipSpace(text string, i int) int {
	for i < len(text) {
		r, size := utf8.DecodeRuneInString(text[i:])
		if !unicode.IsSpace(r) {
			break
		}
		i += size
	}
	return i
}

func isCloser(r rune) bool {
	switch r {
	case '"', '\'', '”', '’', ')', ']', '»', '」', '』':
		return true
	}
	return false
}

func baseLocale(locale string) string {
	locale = strings.ToLower(locale)
	if i := strings.IndexAny(locale, "-_"); i >= 0 {
		locale = locale[:i]
	}
	return locale
}

func localeTerminators(locale string) []rune {
	switch baseLocale(locale) {
	case "hi", "bn", "ne", "mr":
		return []rune{'।', '॥'}
	case "ar", "fa", "ur":
		return []rune{'؟', '۔'}
	case "el":
		return []rune{';'}
	case "hy":
		return []rune{'։'}
	}
	return nil
}

func localeSpaceless(locale string) []rune {
	switch baseLocale(locale) {
	case "zh", "ja":
		return []rune{'。', '！', '？', '．'}
	}
	return nil
}
