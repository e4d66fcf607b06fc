package chunker

import (
	"fmt"
	"strings"
	"testing"

	"github.com/dgallion1/docstruct/internal/doctree"
)

// para builds a paragraph of n sentences with the given word count each.
func para(id string, include bool, n, words int) doctree.Paragraph {
	p := doctree.Paragraph{ID: id, Type: doctree.ParagraphText, IncludeInAudio: include}
	for i := 0; i < n; i++ {
		text := strings.TrimSpace(strings.Repeat("word ", words)) + "."
		p.Sentences = append(p.Sentences, doctree.Sentence{
			ID:                fmt.Sprintf("%s-s%d", id, i),
			Text:              text,
			Position:          i,
			WordCount:         words,
			EstimatedDuration: float64(words) * 0.5,
		})
		p.WordCount += words
	}
	return p
}

func doc(chapters ...doctree.Chapter) *doctree.DocumentStructure {
	return &doctree.DocumentStructure{
		Metadata: doctree.Metadata{Title: "Book"},
		Chapters: chapters,
	}
}

func TestChunk_SmallChapterFitsOneChunk(t *testing.T) {
	d := doc(doctree.Chapter{
		ID:    "ch-1",
		Title: "One",
		Paragraphs: []doctree.Paragraph{
			para("p1", true, 2, 3),
			para("p2", true, 2, 3),
		},
	})

	chunks := ChunkDocument(d, DefaultConfig())
	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(chunks))
	}
	c := chunks[0]
	if c.ChapterID != "ch-1" {
		t.Errorf("chapter id = %q", c.ChapterID)
	}
	if len(c.Breadcrumb) != 2 || c.Breadcrumb[0] != "Book" || c.Breadcrumb[1] != "One" {
		t.Errorf("breadcrumb = %v", c.Breadcrumb)
	}
	if len(c.ParagraphIDs) != 2 || len(c.SentenceIDs) != 4 {
		t.Errorf("paragraphs=%v sentences=%v", c.ParagraphIDs, c.SentenceIDs)
	}
	want := "word word word. word word word.\n\nword word word. word word word."
	if c.Text != want {
		t.Errorf("text = %q, want %q", c.Text, want)
	}
	if c.Tokens != 12 || c.WordCount != 12 {
		t.Errorf("tokens=%d words=%d, want 12 and 12", c.Tokens, c.WordCount)
	}
	if c.EstimatedDuration != 6 {
		t.Errorf("duration = %v, want 6", c.EstimatedDuration)
	}
}

func TestChunk_ParagraphKeptWhole(t *testing.T) {
	d := doc(doctree.Chapter{
		ID: "ch-1",
		Paragraphs: []doctree.Paragraph{
			para("p1", true, 3, 3),
			para("p2", true, 3, 3),
		},
	})

	chunks := ChunkDocument(d, Config{ChunkSize: 15})
	if len(chunks) != 2 {
		t.Fatalf("expected 2 chunks, got %d", len(chunks))
	}
	for i, c := range chunks {
		if len(c.ParagraphIDs) != 1 || c.ParagraphIDs[0] != fmt.Sprintf("p%d", i+1) {
			t.Errorf("chunk %d paragraphs = %v", i, c.ParagraphIDs)
		}
	}
}

func TestChunk_LargeParagraphSplitsBetweenSentences(t *testing.T) {
	tests := []struct {
		name     string
		minChunk int
		sizes    []int
	}{
		{"tail kept", 0, []int{2, 2, 1}},
		{"tail folded", 5, []int{2, 3}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := doc(doctree.Chapter{ID: "ch-1", Paragraphs: []doctree.Paragraph{para("p1", true, 5, 3)}})
			chunks := ChunkDocument(d, Config{ChunkSize: 7, MinChunk: tt.minChunk})
			if len(chunks) != len(tt.sizes) {
				t.Fatalf("expected %d chunks, got %d", len(tt.sizes), len(chunks))
			}
			for i, c := range chunks {
				if len(c.SentenceIDs) != tt.sizes[i] {
					t.Errorf("chunk %d has %d sentences, want %d", i, len(c.SentenceIDs), tt.sizes[i])
				}
				if c.Index != i {
					t.Errorf("chunk %d index = %d", i, c.Index)
				}
			}
		})
	}
}

func TestChunk_SkipsExcludedParagraphs(t *testing.T) {
	d := doc(doctree.Chapter{
		ID: "ch-1",
		Paragraphs: []doctree.Paragraph{
			para("p1", true, 1, 3),
			para("code", false, 2, 3),
			para("p2", true, 1, 3),
		},
	})

	chunks := ChunkDocument(d, DefaultConfig())
	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(chunks))
	}
	for _, id := range chunks[0].SentenceIDs {
		if strings.HasPrefix(id, "code") {
			t.Errorf("excluded sentence %s was chunked", id)
		}
	}
	if got := chunks[0].ParagraphIDs; len(got) != 2 || got[0] != "p1" || got[1] != "p2" {
		t.Errorf("paragraphs = %v", got)
	}
}

func TestChunk_NeverSpansChapters(t *testing.T) {
	d := doc(
		doctree.Chapter{ID: "ch-1", Title: "One", Paragraphs: []doctree.Paragraph{para("a", true, 1, 3)}},
		doctree.Chapter{ID: "ch-2", Title: "Two", Paragraphs: []doctree.Paragraph{para("b", true, 1, 3)}},
	)

	chunks := ChunkDocument(d, DefaultConfig())
	if len(chunks) != 2 {
		t.Fatalf("expected 2 chunks, got %d", len(chunks))
	}
	if chunks[0].ChapterID != "ch-1" || chunks[1].ChapterID != "ch-2" {
		t.Errorf("chapter ids = %s, %s", chunks[0].ChapterID, chunks[1].ChapterID)
	}
	if chunks[1].Index != 1 || chunks[1].Breadcrumb[1] != "Two" {
		t.Errorf("second chunk = %+v", chunks[1])
	}
}

func TestChunk_Overlap(t *testing.T) {
	d := doc(doctree.Chapter{ID: "ch-1", Paragraphs: []doctree.Paragraph{para("p1", true, 5, 3)}})

	chunks := ChunkDocument(d, Config{ChunkSize: 9, ChunkOverlap: 3})
	if len(chunks) != 2 {
		t.Fatalf("expected 2 chunks, got %d", len(chunks))
	}
	second := chunks[1]
	if second.Overlap != 1 {
		t.Errorf("overlap = %d, want 1", second.Overlap)
	}
	want := []string{"p1-s2", "p1-s3", "p1-s4"}
	if strings.Join(second.SentenceIDs, ",") != strings.Join(want, ",") {
		t.Errorf("sentences = %v, want %v", second.SentenceIDs, want)
	}
}

func TestChunk_OversizedSentenceStandsAlone(t *testing.T) {
	big := para("big", true, 1, 10)
	small := para("small", true, 1, 2)
	d := doc(doctree.Chapter{ID: "ch-1", Paragraphs: []doctree.Paragraph{big, small}})

	chunks := ChunkDocument(d, Config{ChunkSize: 5})
	if len(chunks) != 2 {
		t.Fatalf("expected 2 chunks, got %d", len(chunks))
	}
	if chunks[0].Tokens <= 5 {
		t.Errorf("oversized chunk tokens = %d", chunks[0].Tokens)
	}
	if chunks[1].ParagraphIDs[0] != "small" {
		t.Errorf("second chunk = %v", chunks[1].ParagraphIDs)
	}
}

func TestChunk_EmptyDocument(t *testing.T) {
	if chunks := ChunkDocument(doc(), DefaultConfig()); len(chunks) != 0 {
		t.Errorf("expected no chunks, got %d", len(chunks))
	}
	d := doc(doctree.Chapter{ID: "ch-1"})
	if chunks := ChunkDocument(d, DefaultConfig()); len(chunks) != 0 {
		t.Errorf("expected no chunks for empty chapter, got %d", len(chunks))
	}
}

func TestChunk_NoTitleNoBreadcrumb(t *testing.T) {
	d := &doctree.DocumentStructure{Chapters: []doctree.Chapter{
		{ID: "ch-1", Paragraphs: []doctree.Paragraph{para("p", true, 1, 3)}},
	}}
	chunks := ChunkDocument(d, DefaultConfig())
	if len(chunks) != 1 || chunks[0].Breadcrumb != nil {
		t.Fatalf("chunks = %+v", chunks)
	}
}

func TestEstimateTokens(t *testing.T) {
	tests := []struct {
		text string
		want int
	}{
		{"", 0},
		{"   ", 0},
		{"word", 1},
		{"a b c", 3},
		{strings.Repeat("w ", 100), 133},
	}
	for _, tt := range tests {
		if got := EstimateTokens(tt.text); got != tt.want {
			t.Errorf("EstimateTokens(%q) = %d, want %d", tt.text, got, tt.want)
		}
	}
}
