package analyzer

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"reflect"
	"strings"
	"testing"

	"github.com/dgallion1/docstruct/internal/correction"
	"github.com/dgallion1/docstruct/internal/doctree"
	"github.com/dgallion1/docstruct/internal/metrics"
)

const novel = `# Chapter 1: The Beginning

It was a cold morning in the harbor. Dr. Ames walked along the pier at 6.30 and counted the boats.

The fishermen were already gone. Only the gulls remained, circling the empty moorings.

# Chapter 2: The Letter

A letter arrived at noon. It had no stamp and no return address.

- The envelope was blue.
- The paper smelled of salt.

> Come to the lighthouse, it said.

# Chapter 3: The Lighthouse

She climbed the stairs slowly... Each step creaked under her weight. At the top a lamp was burning!

` + "```\nlog: lamp lit at 21:04\n```\n"

func newTestAnalyzer(t *testing.T) *Analyzer {
	t.Helper()
	a, err := New(DefaultConfig(), correction.NewMemoryStore(), metrics.NewWindow(0), slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return a
}

func source(content string) doctree.Source {
	return doctree.Source{Content: content, Format: doctree.FormatMarkdown, Hints: doctree.Hints{Title: "The Harbor"}}
}

func TestAnalyze_Markdown(t *testing.T) {
	a := newTestAnalyzer(t)
	res, err := a.Analyze(context.Background(), source(novel), Options{ValidateStructure: true, GenerateTree: true, DetailedConfidence: true})
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	d := res.Structure
	if d.TotalChapters != 3 || len(d.Chapters) != 3 {
		t.Fatalf("expected 3 chapters, got %d", d.TotalChapters)
	}
	wantTitles := []string{"Chapter 1: The Beginning", "Chapter 2: The Letter", "Chapter 3: The Lighthouse"}
	for i, w := range wantTitles {
		if d.Chapters[i].Title != w {
			t.Errorf("chapter %d: expected %q, got %q", i, w, d.Chapters[i].Title)
		}
	}

	types := []doctree.ParagraphType{}
	for _, p := range d.Chapters[1].Paragraphs {
		types = append(types, p.Type)
	}
	wantTypes := []doctree.ParagraphType{doctree.ParagraphText, doctree.ParagraphList, doctree.ParagraphQuote}
	if !reflect.DeepEqual(types, wantTypes) {
		t.Errorf("expected types %v, got %v", wantTypes, types)
	}
	last := d.Chapters[2].Paragraphs[len(d.Chapters[2].Paragraphs)-1]
	if last.Type != doctree.ParagraphCode || last.IncludeInAudio {
		t.Errorf("expected code block excluded from audio, got %s %v", last.Type, last.IncludeInAudio)
	}
	if n := len(d.Chapters[0].Paragraphs[0].Sentences); n != 2 {
		t.Errorf("expected abbreviation and decimal kept in 2 sentences, got %d", n)
	}

	sum := 0
	for _, ch := range d.Chapters {
		sum += ch.WordCount
	}
	if d.TotalWordCount != sum {
		t.Errorf("expected total words %d, got %d", sum, d.TotalWordCount)
	}
	if d.Metadata.DocumentID != "the-harbor" || d.Metadata.Fingerprint == "" || d.Metadata.ContentHash == "" {
		t.Errorf("unexpected metadata %+v", d.Metadata)
	}
	if d.Confidence < 0.6 {
		t.Errorf("expected a well-structured document to score >= 0.6, got %v", d.Confidence)
	}
	if res.MeetsThreshold != d.MeetsQualityThreshold(res.Threshold) {
		t.Error("MeetsThreshold disagrees with the structure")
	}
	if res.Validation == nil || !res.Validation.IsValid {
		t.Errorf("expected valid structure, got %+v", res.Validation)
	}
	if res.Tree == nil || res.Tree.Nodes[0].ID != "doc" || len(res.Tree.Children(0)) != 3 {
		t.Error("expected tree with 3 chapters")
	}
	if res.Report.Overall != d.Confidence {
		t.Errorf("report overall %v differs from document %v", res.Report.Overall, d.Confidence)
	}
	for _, stage := range []string{metrics.StageDetect, metrics.StageSegment, metrics.StageScore} {
		if _, ok := d.ProcessingMetrics.StageMs[stage]; !ok {
			t.Errorf("missing stage %s in metrics", stage)
		}
	}
}

func TestAnalyze_ConfidenceBounds(t *testing.T) {
	a := newTestAnalyzer(t)
	inputs := []string{
		novel,
		"# ?\n\nx\n\n# ?\n\n\n\n",
		"no structure at all",
		"# A\n\n" + strings.Repeat("word ", 30000),
		"1. one\n2. two\n\n| a | b |\n|---|---|\n| 1 | 2 |\n",
	}
	in := func(v float64) bool { return v >= 0 && v <= 1 }
	for i, content := range inputs {
		res, err := a.Analyze(context.Background(), source(content), Options{})
		if err != nil {
			t.Fatalf("input %d: %v", i, err)
		}
		d := res.Structure
		if !in(d.Confidence) {
			t.Errorf("input %d: document confidence %v", i, d.Confidence)
		}
		for _, ch := range d.Chapters {
			if !in(ch.Confidence) {
				t.Errorf("input %d: chapter confidence %v", i, ch.Confidence)
			}
			for _, p := range ch.Paragraphs {
				if !in(p.Confidence) {
					t.Errorf("input %d: paragraph confidence %v", i, p.Confidence)
				}
				for _, s := range p.Sentences {
					if !in(s.Confidence) {
						t.Errorf("input %d: sentence confidence %v", i, s.Confidence)
					}
				}
			}
		}
	}
}

func TestAnalyze_MissingHeadersFallsBack(t *testing.T) {
	a := newTestAnalyzer(t)
	content := "The first paragraph has no heading at all.\n\n" +
		"Neither does the second one, which rambles on.\n\n" +
		"And the third simply ends the document.\n"
	res, err := a.Analyze(context.Background(), doctree.Source{Content: content, Format: doctree.FormatMarkdown}, Options{DetectEdgeCases: true})
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	d := res.Structure
	if len(d.Chapters) != 1 {
		t.Fatalf("expected exactly one fallback chapter, got %d", len(d.Chapters))
	}
	ch := d.Chapters[0]
	if !ch.IsFallback || !d.IsFallback {
		t.Error("expected fallback flags set")
	}
	if ch.Confidence >= 0.5 || d.Confidence >= 0.5 {
		t.Errorf("expected fallback confidence < 0.5, got chapter %v document %v", ch.Confidence, d.Confidence)
	}
	if len(ch.Paragraphs) != 3 {
		t.Errorf("expected 3 paragraphs, got %d", len(ch.Paragraphs))
	}
	if ch.Title == "" {
		t.Error("expected fallback chapter to carry a title")
	}
	if len(res.EdgeCases) == 0 || res.EdgeCases[0].Kind != EdgeFallback {
		t.Errorf("expected fallback edge case first, got %+v", res.EdgeCases)
	}
}

func TestAnalyze_InvalidInputNeverErrors(t *testing.T) {
	a := newTestAnalyzer(t)
	tests := []struct {
		name string
		src  doctree.Source
	}{
		{"empty", doctree.Source{Format: doctree.FormatMarkdown}},
		{"whitespace", doctree.Source{Content: " \n\n\t", Format: doctree.FormatPDF}},
		{"unknown format", doctree.Source{Content: "# Title\n\nBody.", Format: "docx"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			res, err := a.Analyze(context.Background(), tc.src, Options{ValidateStructure: true, GenerateTree: true})
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			d := res.Structure
			if d.Confidence != 0 || len(d.Chapters) != 0 {
				t.Errorf("expected empty zero-confidence structure, got %v with %d chapters", d.Confidence, len(d.Chapters))
			}
			if len(d.ProcessingErrors) == 0 {
				t.Error("expected processing errors")
			}
			if res.Validation.IsValid {
				t.Error("expected empty structure to fail validation")
			}
		})
	}
}

func TestAnalyze_StreamingMatchesWhole(t *testing.T) {
	a := newTestAnalyzer(t)
	whole, err := a.Analyze(context.Background(), source(novel), Options{})
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}

	for _, size := range []int{1, 3, 17, 64, 1 << 20} {
		var pcts []float64
		opts := Options{Streaming: Streaming{Enabled: true, ChunkSize: size, OnProgress: func(p float64) { pcts = append(pcts, p) }}}
		streamed, err := a.Analyze(context.Background(), source(novel), opts)
		if err != nil {
			t.Fatalf("size %d: %v", size, err)
		}
		if !reflect.DeepEqual(whole.Structure.Chapters, streamed.Structure.Chapters) {
			t.Fatalf("size %d: streamed chapters differ from whole-text analysis", size)
		}
		if streamed.Structure.Confidence != whole.Structure.Confidence {
			t.Errorf("size %d: confidence %v vs %v", size, streamed.Structure.Confidence, whole.Structure.Confidence)
		}
		m := streamed.Structure.ProcessingMetrics
		if !m.Streamed || m.ChunksProcessed == 0 {
			t.Errorf("size %d: expected streamed metrics, got %+v", size, m)
		}
		if len(pcts) == 0 || pcts[len(pcts)-1] != 100 {
			t.Errorf("size %d: expected progress ending at 100, got %v", size, pcts)
		}
		for i := 1; i < len(pcts); i++ {
			if pcts[i] < pcts[i-1] {
				t.Errorf("size %d: progress went backwards: %v", size, pcts)
				break
			}
		}
	}
}

func TestAnalyze_StreamingCancellation(t *testing.T) {
	a := newTestAnalyzer(t)
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	opts := Options{Streaming: Streaming{Enabled: true, ChunkSize: 8, OnProgress: func(float64) {
		calls++
		if calls == 2 {
			cancel()
		}
	}}}
	_, err := a.Analyze(ctx, source(novel), opts)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if calls != 2 {
		t.Errorf("expected cancellation checked before the next chunk, got %d progress calls", calls)
	}
}

func TestAnalyze_ReplaysSavedCorrections(t *testing.T) {
	ctx := context.Background()
	a := newTestAnalyzer(t)

	first, err := a.Analyze(ctx, source(novel), Options{})
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	fixed := a.ApplyCorrections(first.Structure, []correction.Correction{
		{Kind: correction.KindAdjust, Target: "ch-2", Value: "Chapter 2: The Blue Letter"},
	})
	if fixed.Applied != 1 {
		t.Fatalf("expected correction applied, got %+v", fixed.Corrections)
	}
	if _, err := a.Engine().Save(ctx, first.Structure.Metadata.DocumentID); err != nil {
		t.Fatalf("Save: %v", err)
	}

	again, err := a.Analyze(ctx, source(novel), Options{ApplySavedCorrections: true, GenerateTree: true})
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	ch := again.Structure.Chapters[1]
	if ch.Title != "Chapter 2: The Blue Letter" {
		t.Fatalf("expected replayed title, got %q", ch.Title)
	}
	if ch.Correction == nil || !ch.Correction.Applied || ch.Correction.Source != correction.SourceSavedProfile {
		t.Errorf("expected saved-profile provenance, got %+v", ch.Correction)
	}
	if again.Replayed == nil || again.Replayed.Applied != 1 {
		t.Errorf("expected one replayed correction, got %+v", again.Replayed)
	}

	plain, _ := a.Analyze(ctx, source(novel), Options{})
	if plain.Structure.Chapters[1].Title != "Chapter 2: The Letter" {
		t.Error("saved corrections must only replay when requested")
	}
}

func TestAnalyze_UsesLocale(t *testing.T) {
	a := newTestAnalyzer(t)
	src := doctree.Source{Content: "# 第一章\n\n今天天气很好。我们去公园。\n", Format: doctree.FormatMarkdown}
	res, err := a.Analyze(context.Background(), src, Options{Locale: "zh"})
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if n := len(res.Structure.Chapters[0].Paragraphs[0].Sentences); n != 2 {
		t.Errorf("expected 2 sentences with zh terminators, got %d", n)
	}
	if res.Structure.Metadata.Locale != "zh" {
		t.Errorf("expected locale recorded, got %q", res.Structure.Metadata.Locale)
	}
}

func TestAnalyzeBatch(t *testing.T) {
	window := metrics.NewWindow(0)
	a, err := New(DefaultConfig(), nil, window, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	sources := []doctree.Source{
		{Content: "# One\n\nFirst document body.", Format: doctree.FormatMarkdown, Filename: "one.md"},
		{Content: "", Format: doctree.FormatMarkdown, Filename: "empty.md"},
		{Content: "# Three\n\nThird.\n\n# Four\n\nFourth.", Format: doctree.FormatMarkdown, Filename: "three.md"},
	}
	results, err := a.AnalyzeBatch(context.Background(), sources, Options{})
	if err != nil {
		t.Fatalf("AnalyzeBatch: %v", err)
	}
	want := []int{1, 0, 2}
	for i, r := range results {
		if r.Structure.Metadata.Filename != sources[i].Filename {
			t.Errorf("result %d out of order: %s", i, r.Structure.Metadata.Filename)
		}
		if len(r.Structure.Chapters) != want[i] {
			t.Errorf("result %d: expected %d chapters, got %d", i, want[i], len(r.Structure.Chapters))
		}
	}
	if snap := window.Snapshot(); snap.Count != 3 {
		t.Errorf("expected 3 latency samples, got %d", snap.Count)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := a.AnalyzeBatch(ctx, sources, Options{}); err == nil {
		t.Error("expected error for cancelled batch")
	}
}

func TestNew_RejectsBadScoringConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Scoring.Chapter = map[string]float64{"made_up": 1}
	if _, err := New(cfg, nil, nil, nil); err == nil {
		t.Fatal("expected invalid scoring config error")
	}
}

func TestDetectEdgeCases(t *testing.T) {
	d := &doctree.DocumentStructure{Chapters: []doctree.Chapter{
		{Title: "Intro", WordCount: 5, Paragraphs: []doctree.Paragraph{{WordCount: 5}}},
		{Title: "", Paragraphs: nil},
		{Title: "intro", WordCount: 100, Paragraphs: []doctree.Paragraph{{
			WordCount: 100,
			Sentences: []doctree.Sentence{{WordCount: 100}},
		}}},
		{Title: "Huge", WordCount: 30000, Paragraphs: []doctree.Paragraph{{WordCount: 30000}}},
	}}
	got := DetectEdgeCases(d, EdgeCaseConfig{})
	var kinds []EdgeCaseKind
	for _, e := range got {
		kinds = append(kinds, e.Kind)
	}
	want := []EdgeCaseKind{
		EdgeShortChapter,
		EdgeEmptyChapter, EdgeUntitledChapter,
		EdgeDuplicateTitle, EdgeLongSentence,
		EdgeOversizedChapter,
	}
	if !reflect.DeepEqual(kinds, want) {
		t.Fatalf("expected %v, got %v", want, kinds)
	}
	if got[4].Location.Sentence != 0 || got[4].Location.Chapter != 2 {
		t.Errorf("unexpected long sentence location %+v", got[4].Location)
	}
}
