package confidence

import (
	"reflect"
	"strings"
	"testing"

	"github.com/dgallion1/docstruct/internal/doctree"
)

func scoredDoc(confs ...float64) *doctree.DocumentStructure {
	d := &doctree.DocumentStructure{}
	for i, c := range confs {
		d.Chapters = append(d.Chapters, doctree.Chapter{
			ID:            doctree.ChapterID(i),
			Title:         "Chapter",
			Confidence:    c,
			DetectedScore: 0.9,
			Paragraphs: []doctree.Paragraph{{
				Confidence: c,
				RawText:    "Text.",
				Sentences:  []doctree.Sentence{{Text: "Text.", Confidence: c, WordCount: 1}},
			}},
		})
	}
	sum := 0.0
	for _, c := range confs {
		sum += c
	}
	if len(confs) > 0 {
		d.Confidence = sum / float64(len(confs))
	}
	d.Recount()
	return d
}

func TestThresholds_Risk(t *testing.T) {
	th := DefaultThresholds()
	tests := []struct {
		score float64
		want  RiskLevel
	}{
		{0.95, RiskLow},
		{0.8, RiskLow},
		{0.79, RiskMedium},
		{0.6, RiskMedium},
		{0.59, RiskHigh},
		{0, RiskHigh},
	}
	for _, tc := range tests {
		if got := th.Risk(tc.score); got != tc.want {
			t.Errorf("Risk(%v): expected %s, got %s", tc.score, tc.want, got)
		}
	}
}

func TestGenerateReport_Healthy(t *testing.T) {
	d := scoredDoc(0.9, 0.95, 0.85)
	r := GenerateReport(d, false, DefaultThresholds())
	if r.Risk != RiskLow {
		t.Errorf("expected low risk, got %s", r.Risk)
	}
	if len(r.Chapters) != 3 || r.Paragraphs.Total != 3 || r.Sentences.Total != 3 {
		t.Errorf("unexpected counts: %d chapters, %d paragraphs, %d sentences", len(r.Chapters), r.Paragraphs.Total, r.Sentences.Total)
	}
	if r.Paragraphs.Good != 3 {
		t.Errorf("expected 3 good paragraphs, got %+v", r.Paragraphs)
	}
	if len(r.Recommendations) != 1 || !strings.Contains(r.Recommendations[0], "reliable") {
		t.Errorf("unexpected recommendations %q", r.Recommendations)
	}
	if r.LowConfidence != nil || r.Chapters[0].Signals != nil {
		t.Error("detail fields should be empty without detailed flag")
	}
}

func TestGenerateReport_ClusterRecommendation(t *testing.T) {
	d := scoredDoc(0.9, 0.4, 0.3, 0.5, 0.9, 0.2)
	r := GenerateReport(d, true, DefaultThresholds())
	if r.Risk != RiskHigh {
		t.Errorf("expected high risk, got %s (overall %v)", r.Risk, r.Overall)
	}
	joined := strings.Join(r.Recommendations, "\n")
	if !strings.Contains(joined, "Chapters 2-4") {
		t.Errorf("expected cluster recommendation, got:\n%s", joined)
	}
	if !strings.Contains(joined, "Chapter 6") {
		t.Errorf("expected single-chapter recommendation, got:\n%s", joined)
	}
	chapters := 0
	for _, u := range r.LowConfidence {
		if u.Kind == "chapter" {
			chapters++
			if u.Paragraph != -1 || u.Sentence != -1 {
				t.Errorf("chapter location should not carry paragraph/sentence: %+v", u)
			}
		}
	}
	if chapters != 4 {
		t.Errorf("expected 4 low chapters, got %d", chapters)
	}
}

func TestGenerateReport_Deterministic(t *testing.T) {
	d := scoredDoc(0.7, 0.4, 0.95)
	a := GenerateReport(d, true, DefaultThresholds())
	b := GenerateReport(d.Clone(), true, DefaultThresholds())
	if !reflect.DeepEqual(a, b) {
		t.Error("report differs between identical inputs")
	}
}

func TestGenerateReport_FallbackAndEmpty(t *testing.T) {
	d := scoredDoc(0.45)
	d.IsFallback = true
	d.Chapters[0].IsFallback = true
	r := GenerateReport(d, false, Thresholds{})
	if r.Thresholds != DefaultThresholds() {
		t.Errorf("expected default thresholds, got %+v", r.Thresholds)
	}
	if !strings.Contains(strings.Join(r.Recommendations, " "), "No chapter markers") {
		t.Errorf("expected fallback recommendation, got %q", r.Recommendations)
	}

	empty := GenerateReport(&doctree.DocumentStructure{}, false, DefaultThresholds())
	if empty.Risk != RiskHigh || len(empty.Recommendations) != 1 {
		t.Errorf("unexpected empty report %+v", empty)
	}
}
