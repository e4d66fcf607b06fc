package segment

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/dgallion1/docstruct/internal/doctree"
)

// Block is a raw paragraph region of a chapter body.
type Block struct {
	Text  string
	Start int // Byte offset relative to the segmented text.
	End   int
}

var (
	headingLine   = regexp.MustCompile(`^ {0,3}(#{1,6})(?:[ \t]+|$)`)
	setextLine    = regexp.MustCompile(`^ {0,3}(?:=+|-{2,})[ \t]*$`)
	thematicBreak = regexp.MustCompile(`^ {0,3}([-*_])(?:[ \t]*[-*_]){2,}[ \t]*$`)
	listMarker    = regexp.MustCompile(`^[ \t]*(?:[-*+•]|\d{1,3}[.)])[ \t]+`)
	closingHashes = regexp.MustCompile(`[ \t]+#+[ \t]*$`)
	tableDivider  = regexp.MustCompile(`^[ \t]*\|?[ \t]*:?-{3,}:?[ \t]*(?:\|[ \t]*:?-{3,}:?[ \t]*)*\|?[ \t]*$`)
)

// Segmenter turns chapter bodies into classified paragraphs with sentences.
type Segmenter struct {
	sentences *SentenceSegmenter
}

// New creates a Segmenter.
func New(cfg Config) *Segmenter {
	return &Segmenter{sentences: NewSentenceSegmenter(cfg)}
}

// Sentences exposes the underlying sentence segmenter.
func (s *Segmenter) Sentences() *SentenceSegmenter { return s.sentences }

// Paragraphs splits body into paragraphs. base is the absolute offset of body in the source.
func (s *Segmenter) Paragraphs(body string, base int) []doctree.Paragraph {
	blocks := SplitBlocks(body)
	out := make([]doctree.Paragraph, 0, len(blocks))
	for i, b := range blocks {
		p := s.Paragraph(b, base)
		p.Position = i
		out = append(out, p)
	}
	return out
}

// Paragraph classifies one block and segments its sentences.
func (s *Segmenter) Paragraph(b Block, base int) doctree.Paragraph {
	typ := Classify(b.Text)
	p := doctree.Paragraph{
		Type:           typ,
		RawText:        b.Text,
		StartOffset:    base + b.Start,
		IncludeInAudio: typ != doctree.ParagraphCode && typ != doctree.ParagraphTable,
	}
	p.Sentences = s.sentencesFor(typ, b.Text)
	p.Recount()
	return p
}

// Resegment rebuilds sentences for a paragraph whose raw text changed.
func (s *Segmenter) Resegment(p doctree.Paragraph) doctree.Paragraph {
	out := s.Paragraph(Block{Text: p.RawText}, p.StartOffset)
	out.ID = p.ID
	out.Position = p.Position
	out.Correction = p.Correction
	return out
}

func (s *Segmenter) sentencesFor(typ doctree.ParagraphType, text string) []doctree.Sentence {
	var spans []Span
	switch typ {
	case doctree.ParagraphCode, doctree.ParagraphTable:
		start := skipSpace(text, 0)
		if start < len(text) {
			spans = []Span{{Start: start, End: len(strings.TrimRightFunc(text, unicode.IsSpace))}}
		}
	case doctree.ParagraphHeading:
		if sp, ok := headingSpan(text); ok {
			spans = []Span{sp}
		}
	case doctree.ParagraphList:
		for _, item := range listItems(text) {
			for _, sp := range s.sentences.Split(text[item.Start:item.End]) {
				spans = append(spans, Span{Start: item.Start + sp.Start, End: item.Start + sp.End, Terminated: sp.Terminated})
			}
		}
	default:
		spans = s.sentences.Split(text)
	}

	out := make([]doctree.Sentence, 0, len(spans))
	for i, sp := range spans {
		out = append(out, s.sentences.sentence(text, sp, i))
	}
	return out
}

// SplitBlocks splits text on blank lines. Runs of blank lines yield one boundary,
// fenced code keeps its inner blank lines, and ATX headings always stand alone.
func SplitBlocks(text string) []Block {
	var blocks []Block
	blockStart, blockEnd := -1, -1
	inFence := false
	fence := ""

	flush := func() {
		if blockStart >= 0 && blockEnd > blockStart {
			blocks = append(blocks, Block{Text: text[blockStart:blockEnd], Start: blockStart, End: blockEnd})
		}
		blockStart, blockEnd = -1, -1
	}

	for pos := 0; pos < len(text); {
		lineEnd, next := len(text), len(text)
		if nl := strings.IndexByte(text[pos:], '\n'); nl >= 0 {
			lineEnd = pos + nl
			next = lineEnd + 1
		}
		line := text[pos:lineEnd]
		trimmed := strings.TrimSpace(line)
		contentEnd := pos + len(strings.TrimRightFunc(line, unicode.IsSpace))

		switch {
		case inFence:
			if trimmed != "" {
				blockEnd = contentEnd
			}
			if strings.HasPrefix(trimmed, fence) && strings.Trim(trimmed, fence[:1]) == "" {
				inFence = false
				flush()
			}
		case trimmed == "":
			flush()
		case isFenceOpen(trimmed):
			flush()
			inFence = true
			fence = trimmed[:3]
			blockStart, blockEnd = pos, contentEnd
		case headingLine.MatchString(line):
			flush()
			blockStart, blockEnd = pos, contentEnd
			flush()
		case blockStart >= 0 && setextLine.MatchString(line) && !listMarker.MatchString(line):
			blockEnd = contentEnd
			flush()
		case thematicBreak.MatchString(line):
			flush()
		default:
			if blockStart < 0 {
				blockStart = pos
			}
			blockEnd = contentEnd
		}
		pos = next
	}
	flush()
	return blocks
}

func isFenceOpen(trimmed string) bool {
	return strings.HasPrefix(trimmed, "```") || strings.HasPrefix(trimmed, "~~~")
}

// Classify detects the block type from its markers.
func Classify(text string) doctree.ParagraphType {
	lines := nonEmptyLines(text)
	if len(lines) == 0 {
		return doctree.ParagraphText
	}
	first := strings.TrimSpace(lines[0])

	if isFenceOpen(first) {
		return doctree.ParagraphCode
	}
	if allLines(lines, func(l string) bool { return strings.HasPrefix(l, "    ") || strings.HasPrefix(l, "\t") }) {
		return doctree.ParagraphCode
	}
	if len(lines) == 1 && headingLine.MatchString(lines[0]) {
		return doctree.ParagraphHeading
	}
	if len(lines) == 2 && setextLine.MatchString(lines[1]) && !headingLine.MatchString(lines[0]) {
		return doctree.ParagraphHeading
	}
	if allLines(lines, func(l string) bool { return strings.HasPrefix(strings.TrimSpace(l), ">") }) {
		return doctree.ParagraphQuote
	}
	if len(lines) >= 2 && allLines(lines, func(l string) bool { return strings.Contains(l, "|") }) {
		for _, l := range lines {
			if tableDivider.MatchString(l) {
				return doctree.ParagraphTable
			}
		}
	}
	if listMarker.MatchString(lines[0]) {
		return doctree.ParagraphList
	}
	return doctree.ParagraphText
}

func headingSpan(text string) (Span, bool) {
	lineEnd := strings.IndexByte(text, '\n')
	if lineEnd < 0 {
		lineEnd = len(text)
	}
	line := text[:lineEnd]
	start, end := 0, len(line)
	if m := headingLine.FindStringIndex(line); m != nil {
		start = m[1]
		if loc := closingHashes.FindStringIndex(line); loc != nil && loc[0] >= start {
			end = loc[0]
		}
	}
	start = skipSpace(line, start)
	if start >= end {
		return Span{}, false
	}
	end = start + len(strings.TrimRightFunc(line[start:end], unicode.IsSpace))
	return Span{Start: start, End: end}, true
}

// listItems returns the content range of each list item, excluding markers.
func listItems(text string) []Block {
	var items []Block
	for pos := 0; pos < len(text); {
		lineEnd, next := len(text), len(text)
		if nl := strings.IndexByte(text[pos:], '\n'); nl >= 0 {
			lineEnd = pos + nl
			next = lineEnd + 1
		}
		line := text[pos:lineEnd]
		if m := listMarker.FindStringIndex(line); m != nil {
			items = append(items, Block{Start: pos + m[1], End: lineEnd})
		} else if len(items) > 0 && strings.TrimSpace(line) != "" {
			items[len(items)-1].End = lineEnd
		} else if len(items) == 0 && strings.TrimSpace(line) != "" {
			items = append(items, Block{Start: pos, End: lineEnd})
		}
		pos = next
	}
	for i := range items {
		items[i].Text = text[items[i].Start:items[i].End]
	}
	return items
}

func nonEmptyLines(text string) []string {
	var out []string
	for _, l := range strings.Split(text, "\n") {
		if strings.TrimSpace(l) != "" {
			out = append(out, strings.TrimRight(l, "\r"))
		}
	}
	return out
}

func allLines(lines []string, pred func(string) bool) bool {
	for _, l := range lines {
		if !pred(l) {
			return false
		}
	}
	return true
}
