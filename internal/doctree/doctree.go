package doctree

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// DocumentStructure is the root of an analyzed document.
type DocumentStructure struct {
	Metadata          Metadata          `json:"metadata" yaml:"metadata"`
	Chapters          []Chapter         `json:"chapters" yaml:"chapters"`
	TotalChapters     int               `json:"total_chapters" yaml:"total_chapters"`
	TotalParagraphs   int               `json:"total_paragraphs" yaml:"total_paragraphs"`
	TotalSentences    int               `json:"total_sentences" yaml:"total_sentences"`
	TotalWordCount    int               `json:"total_word_count" yaml:"total_word_count"`
	EstimatedDuration float64           `json:"estimated_duration" yaml:"estimated_duration"`
	Confidence        float64           `json:"confidence" yaml:"confidence"`
	Signals           []Signal          `json:"signals,omitempty" yaml:"signals,omitempty"`
	IsFallback        bool              `json:"is_fallback" yaml:"is_fallback"`
	ProcessingMetrics ProcessingMetrics `json:"processing_metrics" yaml:"processing_metrics"`
	ProcessingErrors  []string          `json:"processing_errors,omitempty" yaml:"processing_errors,omitempty"`
}

// Metadata identifies the source document.
type Metadata struct {
	Title       string `json:"title" yaml:"title"`
	Filename    string `json:"filename,omitempty" yaml:"filename,omitempty"`
	Format      Format `json:"format" yaml:"format"`
	Locale      string `json:"locale,omitempty" yaml:"locale,omitempty"`
	DocumentID  string `json:"document_id" yaml:"document_id"`   // Stable identity (title slug)
	Fingerprint string `json:"fingerprint" yaml:"fingerprint"`   // Hash of normalized chapter titles
	ContentHash string `json:"content_hash" yaml:"content_hash"` // SHA-256 of raw content
}

// ProcessingMetrics records how a structure was produced.
type ProcessingMetrics struct {
	DurationMs      int64            `json:"duration_ms" yaml:"duration_ms"`
	StageMs         map[string]int64 `json:"stage_ms,omitempty" yaml:"stage_ms,omitempty"`
	Streamed        bool             `json:"streamed" yaml:"streamed"`
	ChunksProcessed int              `json:"chunks_processed" yaml:"chunks_processed"`
	ContentBytes    int              `json:"content_bytes" yaml:"content_bytes"`
	AnalyzedAt      time.Time        `json:"analyzed_at" yaml:"analyzed_at"`
}

// Chapter is one top-level structural unit.
type Chapter struct {
	ID                string      `json:"id" yaml:"id"`
	Title             string      `json:"title" yaml:"title"`
	RawTitle          string      `json:"raw_title,omitempty" yaml:"raw_title,omitempty"`
	Number            int         `json:"number,omitempty" yaml:"number,omitempty"`
	Level             int         `json:"level" yaml:"level"`
	Paragraphs        []Paragraph `json:"paragraphs" yaml:"paragraphs"`
	Position          int         `json:"position" yaml:"position"`
	WordCount         int         `json:"word_count" yaml:"word_count"`
	StartPosition     int         `json:"start_position" yaml:"start_position"`
	EndPosition       int         `json:"end_position" yaml:"end_position"`
	EstimatedDuration float64     `json:"estimated_duration" yaml:"estimated_duration"`
	Confidence        float64     `json:"confidence" yaml:"confidence"`
	Signals           []Signal    `json:"signals,omitempty" yaml:"signals,omitempty"`
	Source            Detection   `json:"source" yaml:"source"`
	DetectedScore     float64     `json:"detected_score" yaml:"detected_score"` // Raw detector confidence
	IsFallback        bool        `json:"is_fallback" yaml:"is_fallback"`
	Correction        *Provenance `json:"correction,omitempty" yaml:"correction,omitempty"`
}

// ParagraphType classifies a paragraph's content.
type ParagraphType string

const (
	ParagraphText    ParagraphType = "text"
	ParagraphCode    ParagraphType = "code"
	ParagraphQuote   ParagraphType = "quote"
	ParagraphList    ParagraphType = "list"
	ParagraphTable   ParagraphType = "table"
	ParagraphHeading ParagraphType = "heading"
)

// Paragraph is a contiguous block of content inside a chapter.
type Paragraph struct {
	ID                string        `json:"id" yaml:"id"`
	Type              ParagraphType `json:"type" yaml:"type"`
	Sentences         []Sentence    `json:"sentences" yaml:"sentences"`
	Position          int           `json:"position" yaml:"position"`
	WordCount         int           `json:"word_count" yaml:"word_count"`
	RawText           string        `json:"raw_text" yaml:"raw_text"`
	StartOffset       int           `json:"start_offset" yaml:"start_offset"` // Absolute offset in the source content
	IncludeInAudio    bool          `json:"include_in_audio" yaml:"include_in_audio"`
	EstimatedDuration float64       `json:"estimated_duration" yaml:"estimated_duration"`
	Confidence        float64       `json:"confidence" yaml:"confidence"`
	Correction        *Provenance   `json:"correction,omitempty" yaml:"correction,omitempty"`
}

// Sentence is the smallest narration unit.
type Sentence struct {
	ID                string     `json:"id" yaml:"id"`
	Text              string     `json:"text" yaml:"text"`
	Position          int        `json:"position" yaml:"position"`
	WordCount         int        `json:"word_count" yaml:"word_count"`
	EstimatedDuration float64    `json:"estimated_duration" yaml:"estimated_duration"`
	HasFormatting     bool       `json:"has_formatting" yaml:"has_formatting"`
	Terminated        bool       `json:"terminated" yaml:"terminated"`
	CharRange         *CharRange `json:"char_range,omitempty" yaml:"char_range,omitempty"`
	Confidence        float64    `json:"confidence" yaml:"confidence"`
}

// CharRange is a half-open byte range within the paragraph's raw text.
type CharRange struct {
	Start int `json:"start" yaml:"start"`
	End   int `json:"end" yaml:"end"`
}

// Signal is one weighted component of a confidence score.
type Signal struct {
	Name   string  `json:"name" yaml:"name"`
	Score  float64 `json:"score" yaml:"score"`
	Weight float64 `json:"weight" yaml:"weight"`
}

// Detection records which heuristic produced a chapter boundary.
type Detection string

const (
	DetectionHeading    Detection = "heading"
	DetectionNavigation Detection = "navigation"
	DetectionPage       Detection = "page"
	DetectionPattern    Detection = "pattern"
	DetectionLeading    Detection = "leading"
	DetectionFallback   Detection = "fallback"
	DetectionManual     Detection = "manual"
)

// Provenance marks a unit whose value came from a correction rather than the detector.
type Provenance struct {
	Applied            bool     `json:"correction_applied" yaml:"correction_applied"`
	Source             string   `json:"correction_source" yaml:"correction_source"`
	IsManualOverride   bool     `json:"is_manual_override" yaml:"is_manual_override"`
	OriginalTitle      string   `json:"original_title,omitempty" yaml:"original_title,omitempty"`
	DetectedConfidence *float64 `json:"detected_confidence,omitempty" yaml:"detected_confidence,omitempty"`
	UserConfidence     *float64 `json:"user_confidence,omitempty" yaml:"user_confidence,omitempty"`
}

// MeetsQualityThreshold reports whether the document confidence reaches t.
func (d *DocumentStructure) MeetsQualityThreshold(t float64) bool {
	return d.Confidence >= t
}

// Recount recomputes positions, totals and duration rollups from the chapter list.
func (d *DocumentStructure) Recount() {
	d.TotalChapters = len(d.Chapters)
	d.TotalParagraphs = 0
	d.TotalSentences = 0
	d.TotalWordCount = 0
	d.EstimatedDuration = 0
	for i := range d.Chapters {
		ch := &d.Chapters[i]
		ch.Position = i
		ch.Recount()
		d.TotalParagraphs += len(ch.Paragraphs)
		for _, p := range ch.Paragraphs {
			d.TotalSentences += len(p.Sentences)
		}
		d.TotalWordCount += ch.WordCount
		d.EstimatedDuration += ch.EstimatedDuration
	}
}

// Recount recomputes paragraph positions, word count and duration.
func (c *Chapter) Recount() {
	c.WordCount = 0
	c.EstimatedDuration = 0
	for i := range c.Paragraphs {
		p := &c.Paragraphs[i]
		p.Position = i
		p.Recount()
		c.WordCount += p.WordCount
		if p.IncludeInAudio {
			c.EstimatedDuration += p.EstimatedDuration
		}
	}
}

// Recount recomputes sentence positions, word count and duration.
func (p *Paragraph) Recount() {
	p.WordCount = 0
	p.EstimatedDuration = 0
	for i := range p.Sentences {
		p.Sentences[i].Position = i
		p.WordCount += p.Sentences[i].WordCount
		p.EstimatedDuration += p.Sentences[i].EstimatedDuration
	}
}

// AssignIDs gives every unit without an ID a position-derived one.
// Existing IDs are kept so corrections can keep addressing the same node.
func (d *DocumentStructure) AssignIDs() {
	for ci := range d.Chapters {
		ch := &d.Chapters[ci]
		if ch.ID == "" {
			ch.ID = ChapterID(ci)
		}
		for pi := range ch.Paragraphs {
			p := &ch.Paragraphs[pi]
			if p.ID == "" {
				p.ID = ParagraphID(ch.ID, pi)
			}
			for si := range p.Sentences {
				if p.Sentences[si].ID == "" {
					p.Sentences[si].ID = SentenceID(p.ID, si)
				}
			}
		}
	}
}

// ResetSentenceIDs re-derives sentence IDs of p from its ID.
func (p *Paragraph) ResetSentenceIDs() {
	for si := range p.Sentences {
		p.Sentences[si].ID = SentenceID(p.ID, si)
	}
}

// ChapterID returns the canonical ID for the chapter at index i.
func ChapterID(i int) string { return fmt.Sprintf("ch-%d", i+1) }

// ParagraphID returns the canonical ID for paragraph i of a chapter.
func ParagraphID(chapterID string, i int) string { return fmt.Sprintf("%s-p%d", chapterID, i+1) }

// SentenceID returns the canonical ID for sentence i of a paragraph.
func SentenceID(paragraphID string, i int) string { return fmt.Sprintf("%s-s%d", paragraphID, i+1) }

// Clone returns a deep copy so corrections never touch the original.
func (d *DocumentStructure) Clone() *DocumentStructure {
	if d == nil {
		return nil
	}
	out := *d
	out.Signals = append([]Signal(nil), d.Signals...)
	out.ProcessingErrors = append([]string(nil), d.ProcessingErrors...)
	if d.ProcessingMetrics.StageMs != nil {
		out.ProcessingMetrics.StageMs = make(map[string]int64, len(d.ProcessingMetrics.StageMs))
		for k, v := range d.ProcessingMetrics.StageMs {
			out.ProcessingMetrics.StageMs[k] = v
		}
	}
	out.Chapters = make([]Chapter, len(d.Chapters))
	for i, ch := range d.Chapters {
		out.Chapters[i] = ch.Clone()
	}
	return &out
}

// Clone returns a deep copy of the chapter.
func (c Chapter) Clone() Chapter {
	out := c
	out.Signals = append([]Signal(nil), c.Signals...)
	out.Correction = c.Correction.clone()
	out.Paragraphs = make([]Paragraph, len(c.Paragraphs))
	for i, p := range c.Paragraphs {
		out.Paragraphs[i] = p.Clone()
	}
	return out
}

// Clone returns a deep copy of the paragraph.
func (p Paragraph) Clone() Paragraph {
	out := p
	out.Correction = p.Correction.clone()
	out.Sentences = make([]Sentence, len(p.Sentences))
	for i, s := range p.Sentences {
		out.Sentences[i] = s
		if s.CharRange != nil {
			r := *s.CharRange
			out.Sentences[i].CharRange = &r
		}
	}
	return out
}

func (p *Provenance) clone() *Provenance {
	if p == nil {
		return nil
	}
	out := *p
	if p.DetectedConfidence != nil {
		v := *p.DetectedConfidence
		out.DetectedConfidence = &v
	}
	if p.UserConfidence != nil {
		v := *p.UserConfidence
		out.UserConfidence = &v
	}
	return &out
}

// CountWords counts whitespace-delimited tokens.
func CountWords(text string) int {
	return len(strings.Fields(text))
}

// Clamp01 bounds v to [0,1].
func Clamp01(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
