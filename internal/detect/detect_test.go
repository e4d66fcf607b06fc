package detect

import (
	"strings"
	"testing"

	"github.com/dgallion1/docstruct/internal/doctree"
)

func markdown(content string) doctree.Source {
	return doctree.Source{Content: content, Format: doctree.FormatMarkdown}
}

func TestDetect_MarkdownHeadings(t *testing.T) {
	content := "# Chapter 1: The Beginning\n\nIt was a dark night.\n\n# 2. Later On\n\nMore text here.\n"
	res := New(DefaultConfig()).Detect(markdown(content))
	bs := res.Boundaries
	if len(bs) != 2 {
		t.Fatalf("expected 2 boundaries, got %d: %+v", len(bs), bs)
	}
	if bs[0].Title != "Chapter 1: The Beginning" {
		t.Errorf("unexpected title %q", bs[0].Title)
	}
	if bs[1].Title != "Chapter 2: Later On" || bs[1].Number != 2 {
		t.Errorf("expected normalized numbered title, got %q (%d)", bs[1].Title, bs[1].Number)
	}
	if bs[1].RawTitle != "2. Later On" {
		t.Errorf("raw title not preserved: %q", bs[1].RawTitle)
	}
	if bs[0].End != bs[1].Start {
		t.Errorf("boundaries not contiguous: %d vs %d", bs[0].End, bs[1].Start)
	}
	if bs[1].End != len(content) {
		t.Errorf("last boundary should end at content end, got %d", bs[1].End)
	}
	body := content[bs[0].BodyStart:bs[0].End]
	if strings.Contains(body, "#") || !strings.Contains(body, "dark night") {
		t.Errorf("unexpected first body %q", body)
	}
	for _, b := range bs {
		if b.Start >= b.End {
			t.Errorf("boundary %q has start %d >= end %d", b.Title, b.Start, b.End)
		}
		if b.Source != doctree.DetectionHeading || b.Confidence != ScoreHeading {
			t.Errorf("unexpected source/score %s %v", b.Source, b.Confidence)
		}
	}
}

func TestDetect_IgnoresFencedHashes(t *testing.T) {
	content := "# Real Chapter\n\n```\n# not a heading\n```\n\nText.\n"
	bs := New(DefaultConfig()).Detect(markdown(content)).Boundaries
	if len(bs) != 1 {
		t.Fatalf("expected 1 boundary, got %d", len(bs))
	}
}

func TestDetect_SetextHeading(t *testing.T) {
	content := "Opening Title\n=============\n\nBody paragraph.\n"
	bs := New(DefaultConfig()).Detect(markdown(content)).Boundaries
	if len(bs) != 1 {
		t.Fatalf("expected 1 boundary, got %d", len(bs))
	}
	if bs[0].Title != "Opening Title" {
		t.Errorf("unexpected title %q", bs[0].Title)
	}
	if got := strings.TrimSpace(content[bs[0].BodyStart:bs[0].End]); got != "Body paragraph." {
		t.Errorf("setext underline leaked into body: %q", got)
	}
}

func TestDetect_LeadingContent(t *testing.T) {
	content := "A short preface before anything.\n\n# First\n\nBody.\n"
	bs := New(DefaultConfig()).Detect(markdown(content)).Boundaries
	if len(bs) != 2 {
		t.Fatalf("expected leading + 1 boundary, got %d", len(bs))
	}
	if bs[0].Source != doctree.DetectionLeading || bs[0].Title != "" {
		t.Errorf("expected untitled leading boundary, got %+v", bs[0])
	}
	if bs[0].End != bs[1].Start {
		t.Error("leading boundary should end where the first chapter starts")
	}
}

func TestDetect_AutoLevel(t *testing.T) {
	content := "## Alpha\n\nText.\n\n## Beta\n\nText.\n\n### Nested\n\nMore.\n"
	res := New(DefaultConfig()).Detect(markdown(content))
	if !res.LevelInferred || res.Level != 2 {
		t.Fatalf("expected inferred level 2, got %d inferred=%v", res.Level, res.LevelInferred)
	}
	if len(res.Boundaries) != 2 {
		t.Fatalf("expected 2 boundaries, got %d", len(res.Boundaries))
	}
	if res.Boundaries[0].Confidence >= ScoreHeading {
		t.Errorf("expected reduced heading score, got %v", res.Boundaries[0].Confidence)
	}

	cfg := DefaultConfig()
	cfg.AutoLevel = false
	res = New(cfg).Detect(markdown(content))
	if len(res.Boundaries) != 1 || !res.Boundaries[0].IsFallback {
		t.Errorf("expected fallback without auto level, got %+v", res.Boundaries)
	}
}

func TestDetect_Fallback(t *testing.T) {
	content := "First unheaded paragraph of text.\n\nSecond paragraph here.\n\nThird and final paragraph."
	bs := New(DefaultConfig()).Detect(markdown(content)).Boundaries
	if len(bs) != 1 {
		t.Fatalf("expected exactly 1 boundary, got %d", len(bs))
	}
	b := bs[0]
	if !b.IsFallback || b.Source != doctree.DetectionFallback {
		t.Errorf("expected fallback boundary, got %+v", b)
	}
	if b.Confidence >= 0.5 {
		t.Errorf("fallback confidence should be below 0.5, got %v", b.Confidence)
	}
	if b.Title != "First unheaded paragraph of text" {
		t.Errorf("unexpected fallback title %q", b.Title)
	}
	if b.Start != 0 || b.End != len(content) {
		t.Errorf("fallback should cover all content, got [%d,%d)", b.Start, b.End)
	}

	src := markdown(content)
	src.Hints.Title = "My Notes"
	if got := New(DefaultConfig()).Detect(src).Boundaries[0].Title; got != "My Notes" {
		t.Errorf("expected hint title, got %q", got)
	}
}

func TestDetect_Empty(t *testing.T) {
	for _, content := range []string{"", "   \n\n  "} {
		if bs := New(DefaultConfig()).Detect(markdown(content)).Boundaries; len(bs) != 0 {
			t.Errorf("expected no boundaries for %q, got %d", content, len(bs))
		}
	}
	if bs := New(DefaultConfig()).Detect(doctree.Source{Content: "text", Format: "docx"}).Boundaries; len(bs) != 0 {
		t.Errorf("expected no boundaries for unknown format, got %d", len(bs))
	}
}

func TestDetect_PDFPages(t *testing.T) {
	content := "Chapter 1\nThe first page text.\n\nChapter 2\nSecond chapter text.\n\nsee chapter 3 later\n"
	second := strings.Index(content, "Chapter 2")
	src := doctree.Source{
		Content: content,
		Format:  doctree.FormatPDF,
		Hints:   doctree.Hints{PageBreaks: []int{0, second}},
	}
	bs := New(DefaultConfig()).Detect(src).Boundaries
	if len(bs) != 2 {
		t.Fatalf("expected 2 boundaries, got %d: %+v", len(bs), bs)
	}
	for _, b := range bs {
		if b.Source != doctree.DetectionPage || b.Confidence != ScorePage {
			t.Errorf("expected page-aligned boundary, got %s %v", b.Source, b.Confidence)
		}
	}
	if bs[1].Title != "Chapter 2" || bs[1].Number != 2 {
		t.Errorf("unexpected title %q", bs[1].Title)
	}

	src.Hints.PageBreaks = nil
	bs = New(DefaultConfig()).Detect(src).Boundaries
	if bs[0].Source != doctree.DetectionPattern {
		t.Errorf("expected pattern source without page hints, got %s", bs[0].Source)
	}
}

func TestDetect_EPUBNavigation(t *testing.T) {
	content := "Cover text\n\nThe Arrival\nShe came at dawn.\n\nThe Departure\nHe left at dusk.\n"
	arrival := strings.Index(content, "The Arrival")
	departure := strings.Index(content, "The Departure")
	src := doctree.Source{
		Content: content,
		Format:  doctree.FormatEPUB,
		Hints: doctree.Hints{Navigation: []doctree.NavPoint{
			{Title: "The Departure", Offset: departure, Level: 1},
			{Title: "The Arrival", Offset: arrival, Level: 1},
			{Title: "A subsection", Offset: arrival + 12, Level: 2},
			{Title: "Out of range", Offset: len(content) + 10, Level: 1},
		}},
	}
	bs := New(DefaultConfig()).Detect(src).Boundaries
	if len(bs) != 3 {
		t.Fatalf("expected leading + 2 navigation boundaries, got %d: %+v", len(bs), bs)
	}
	if bs[0].Source != doctree.DetectionLeading {
		t.Errorf("expected leading cover content, got %s", bs[0].Source)
	}
	if bs[1].Title != "The Arrival" || bs[1].Source != doctree.DetectionNavigation {
		t.Errorf("unexpected nav boundary %+v", bs[1])
	}
	if got := content[bs[1].BodyStart:bs[1].End]; strings.Contains(got, "The Arrival") {
		t.Errorf("title line should be skipped in body, got %q", got)
	}
}

func TestNormalizeTitle(t *testing.T) {
	tests := []struct {
		raw    string
		want   string
		number int
	}{
		{"Chapter 1: The Beginning", "Chapter 1: The Beginning", 1},
		{"3. The Road", "Chapter 3: The Road", 3},
		{"CHAPTER II - The Storm", "Chapter 2: The Storm", 2},
		{"Chapter Twelve", "Chapter 12", 12},
		{"chapter xiv. Home", "Chapter 14: Home", 14},
		{"**Bold   Title**", "Bold Title", 0},
		{"[Linked](http://x.y) Title", "Linked Title", 0},
		{"Introduction", "Introduction", 0},
		{"Chapters of Life", "Chapters of Life", 0},
		{"Chapter Mix Tape", "Chapter Mix Tape", 0},
		{"Chapter MIX Tape", "Chapter MIX Tape", 0},
		{"Chapter Did It", "Chapter Did It", 0},
		{"Chapter XLII: Answers", "Chapter 42: Answers", 42},
		{"  ", "", 0},
	}
	for _, tc := range tests {
		t.Run(tc.raw, func(t *testing.T) {
			got, n := NormalizeTitle(tc.raw)
			if got != tc.want || n != tc.number {
				t.Errorf("expected %q (%d), got %q (%d)", tc.want, tc.number, got, n)
			}
		})
	}
}
