package confidence

import (
	"fmt"
	"sort"

	"github.com/dgallion1/docstruct/internal/doctree"
)

// Scorer assigns confidence to every unit of a structure.
type Scorer struct {
	cfg Config
}

// NewScorer validates cfg and returns a Scorer.
func NewScorer(cfg Config) (*Scorer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("confidence config: %w", err)
	}
	return &Scorer{cfg: cfg}, nil
}

// Config returns the scorer's configuration.
func (s *Scorer) Config() Config { return s.cfg }

// Combine returns the weight-normalized sum of signals, clamped to [0,1].
func Combine(signals []doctree.Signal) float64 {
	total, weighted := 0.0, 0.0
	for _, sig := range signals {
		if sig.Weight <= 0 {
			continue
		}
		total += sig.Weight
		weighted += sig.Weight * doctree.Clamp01(sig.Score)
	}
	if total == 0 {
		return 0
	}
	return doctree.Clamp01(weighted / total)
}

// signals builds the weighted signal list in a stable order, skipping disabled ones.
func signals(weights map[string]float64, scores map[string]float64) []doctree.Signal {
	names := make([]string, 0, len(scores))
	for name := range scores {
		names = append(names, name)
	}
	sort.Strings(names)
	out := make([]doctree.Signal, 0, len(names))
	for _, name := range names {
		w, ok := weights[name]
		if !ok || w <= 0 {
			continue
		}
		out = append(out, doctree.Signal{Name: name, Score: doctree.Clamp01(scores[name]), Weight: w})
	}
	return out
}

// ScoreSentence sets the confidence of one sentence. final marks the last
// sentence of its paragraph, which may legitimately lack a terminator.
func (s *Scorer) ScoreSentence(sent *doctree.Sentence, t doctree.ParagraphType, final bool) {
	sent.Confidence = Combine(signals(s.cfg.Sentence, map[string]float64{
		SignalTerminator:     terminatorScore(sent, t, final),
		SignalSentenceLength: sentenceLength(sent, t),
		SignalCapitalization: capitalization(sent, t),
	}))
}

// ScoreParagraph scores the paragraph's sentences, then the paragraph.
func (s *Scorer) ScoreParagraph(p *doctree.Paragraph) {
	for i := range p.Sentences {
		s.ScoreSentence(&p.Sentences[i], p.Type, i == len(p.Sentences)-1)
	}
	p.Confidence = Combine(signals(s.cfg.Paragraph, map[string]float64{
		SignalParagraphLength:      paragraphLength(p),
		SignalFormattingRegularity: formattingRegularity(p),
		SignalSentenceConsistency:  sentenceConsistency(p),
	}))
	if p.Correction != nil && p.Correction.UserConfidence != nil {
		p.Confidence = doctree.Clamp01(*p.Correction.UserConfidence)
	}
}

// ChapterContext is what a chapter's hierarchy signal is judged against.
type ChapterContext struct {
	Level          int // Dominant chapter level of the document.
	PreviousNumber int // Number of the preceding numbered chapter, 0 if none.
}

// ScoreChapter scores a chapter whose paragraphs are already scored.
func (s *Scorer) ScoreChapter(ch *doctree.Chapter, cc ChapterContext) {
	sigs := signals(s.cfg.Chapter, map[string]float64{
		SignalTitleClarity:         TitleClarity(ch.Title),
		SignalHeadingConsistency:   ch.DetectedScore,
		SignalLengthPlausibility:   ChapterLength(ch.WordCount, s.cfg.MaxChapterWords),
		SignalHierarchyConsistency: hierarchy(ch, cc),
	})
	ch.Signals = sigs
	ch.Confidence = Combine(sigs)
	if ch.IsFallback && ch.Confidence > s.cfg.FallbackCeiling {
		ch.Confidence = s.cfg.FallbackCeiling
	}
	if ch.Correction != nil && ch.Correction.UserConfidence != nil {
		ch.Confidence = doctree.Clamp01(*ch.Correction.UserConfidence)
	}
}

func hierarchy(ch *doctree.Chapter, cc ChapterContext) float64 {
	switch ch.Source {
	case doctree.DetectionFallback, doctree.DetectionLeading:
		return 0.5
	}
	score := 1.0
	if cc.Level > 0 && ch.Level != cc.Level {
		score -= 0.4
	}
	if ch.Number > 0 && cc.PreviousNumber > 0 && ch.Number != cc.PreviousNumber+1 {
		score -= 0.3
	}
	return doctree.Clamp01(score)
}

// ScoreDocument scores every unit bottom-up and sets the document confidence.
func (s *Scorer) ScoreDocument(d *doctree.DocumentStructure) {
	level := dominantLevel(d.Chapters)
	prev := 0
	for i := range d.Chapters {
		ch := &d.Chapters[i]
		for j := range ch.Paragraphs {
			s.ScoreParagraph(&ch.Paragraphs[j])
		}
		s.ScoreChapter(ch, ChapterContext{Level: level, PreviousNumber: prev})
		if ch.Number > 0 {
			prev = ch.Number
		}
	}

	if len(d.Chapters) == 0 {
		d.Signals = nil
		d.Confidence = 0
		return
	}

	sum, consistent, covered := 0.0, 0, 0
	for _, ch := range d.Chapters {
		sum += ch.Confidence
		if !ch.IsFallback && ch.Title != "" && ch.DetectedScore >= 0.6 {
			consistent++
		}
		if len(ch.Paragraphs) > 0 {
			covered++
		}
	}
	n := float64(len(d.Chapters))
	structure := float64(consistent) / n
	if d.IsFallback {
		structure = 0.2
	}
	d.Signals = signals(s.cfg.Document, map[string]float64{
		SignalChapterAverage:       sum / n,
		SignalStructureConsistency: structure,
		SignalCoverage:             float64(covered) / n,
	})
	d.Confidence = Combine(d.Signals)
	if d.IsFallback && d.Confidence > s.cfg.FallbackCeiling {
		d.Confidence = s.cfg.FallbackCeiling
	}
}

// dominantLevel is the most common level among detected (non-leading) chapters.
func dominantLevel(chapters []doctree.Chapter) int {
	counts := map[int]int{}
	best, bestN := 0, 0
	for _, ch := range chapters {
		if ch.Source == doctree.DetectionLeading || ch.Source == doctree.DetectionFallback {
			continue
		}
		counts[ch.Level]++
		if n := counts[ch.Level]; n > bestN || (n == bestN && ch.Level < best) {
			best, bestN = ch.Level, n
		}
	}
	return best
}
