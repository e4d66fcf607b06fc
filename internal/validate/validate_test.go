package validate

import (
	"reflect"
	"strings"
	"testing"

	"github.com/dgallion1/docstruct/internal/doctree"
)

func validDoc() *doctree.DocumentStructure {
	ch := func(title string, start, end int, conf float64) doctree.Chapter {
		return doctree.Chapter{
			Title:         title,
			StartPosition: start,
			EndPosition:   end,
			Confidence:    conf,
			Paragraphs: []doctree.Paragraph{{
				Confidence:     0.9,
				IncludeInAudio: true,
				Sentences:      []doctree.Sentence{{Text: "A short sentence.", WordCount: 3, Confidence: 0.9}},
			}},
		}
	}
	d := &doctree.DocumentStructure{
		Confidence: 0.85,
		Chapters: []doctree.Chapter{
			ch("Chapter 1: One", 0, 100, 0.9),
			ch("Chapter 2: Two", 100, 200, 0.8),
		},
	}
	d.Recount()
	return d
}

func codes(issues []Issue) []string {
	var out []string
	for _, i := range issues {
		out = append(out, i.Code)
	}
	return out
}

func TestValidate_Clean(t *testing.T) {
	r := Validate(validDoc(), DefaultOptions())
	if !r.IsValid || len(r.Errors) != 0 || len(r.Warnings) != 0 {
		t.Fatalf("expected clean result, got errors=%v warnings=%v", codes(r.Errors), codes(r.Warnings))
	}
	if r.Score != 0.85 {
		t.Errorf("expected score 0.85, got %v", r.Score)
	}
}

func TestValidate_ConfidenceFloor(t *testing.T) {
	d := validDoc()
	d.Confidence = 0.5
	r := Validate(d, DefaultOptions())
	if r.IsValid {
		t.Fatal("expected invalid below floor")
	}
	if r.Errors[0].Code != "confidence_below_minimum" || r.Errors[0].Severity != SeverityHigh {
		t.Errorf("unexpected first error %+v", r.Errors[0])
	}

	d.Confidence = 0.1
	if r := Validate(d, DefaultOptions()); r.Errors[0].Severity != SeverityCritical {
		t.Errorf("expected critical severity far below floor, got %s", r.Errors[0].Severity)
	}
}

func TestValidate_IntegrityIssues(t *testing.T) {
	d := validDoc()
	d.Chapters[1].StartPosition = 300
	d.Chapters[0].Paragraphs[0].WordCount = 99
	d.Chapters[1].Title = ""
	d.Chapters[1].Confidence = 0.4
	r := Validate(d, DefaultOptions())

	if !reflect.DeepEqual(codes(r.Errors), []string{"invalid_chapter_range"}) {
		t.Errorf("unexpected errors %v", codes(r.Errors))
	}
	got := strings.Join(codes(r.Warnings), ",")
	for _, want := range []string{"low_chapter_confidence", "untitled_chapter", "paragraph_word_count"} {
		if !strings.Contains(got, want) {
			t.Errorf("missing warning %s in %s", want, got)
		}
	}
	for _, w := range r.Warnings {
		if w.Code == "paragraph_word_count" {
			if w.Severity != SeverityLow || w.Location != AtParagraph(0, 0) {
				t.Errorf("unexpected word count warning %+v", w)
			}
		}
	}
}

func TestValidate_WarningCeiling(t *testing.T) {
	d := validDoc()
	for i := range d.Chapters {
		d.Chapters[i].Title = ""
	}
	opts := DefaultOptions()
	opts.MaxWarnings = 1

	if r := Validate(d, opts); !r.IsValid {
		t.Errorf("ceiling should not fail without strict, got %v", codes(r.Errors))
	}
	opts.Strict = true
	r := Validate(d, opts)
	if r.IsValid || r.Errors[len(r.Errors)-1].Code != "too_many_warnings" {
		t.Errorf("expected too_many_warnings error, got %v", codes(r.Errors))
	}
}

func TestValidate_CustomRulesRunLast(t *testing.T) {
	d := validDoc()
	d.Chapters[1].Title = d.Chapters[0].Title
	opts := DefaultOptions()
	opts.Rules = []Rule{MinChapters(3), UniqueTitles()}
	r := Validate(d, opts)
	if r.IsValid {
		t.Fatal("expected invalid from custom rule")
	}
	if !reflect.DeepEqual(codes(r.Errors), []string{"too_few_chapters"}) {
		t.Errorf("unexpected errors %v", codes(r.Errors))
	}
	if !reflect.DeepEqual(codes(r.Warnings), []string{"duplicate_title"}) {
		t.Errorf("unexpected warnings %v", codes(r.Warnings))
	}
}

func TestValidate_DoesNotMutate(t *testing.T) {
	d := validDoc()
	d.Chapters[0].Paragraphs[0].WordCount = 42
	before := d.Clone()
	opts := DefaultOptions()
	opts.Rules = []Rule{MaxSentenceWords(1), UniqueTitles()}
	Validate(d, opts)
	if !reflect.DeepEqual(before, d) {
		t.Error("validation modified the structure")
	}
}

func TestValidate_IsValidMatchesErrors(t *testing.T) {
	docs := []*doctree.DocumentStructure{validDoc(), {}, {Confidence: 2}}
	for i, d := range docs {
		r := Validate(d, DefaultOptions())
		if r.IsValid != (len(r.Errors) == 0) {
			t.Errorf("doc %d: is_valid %v with %d errors", i, r.IsValid, len(r.Errors))
		}
		if r.Score < 0 || r.Score > 1 {
			t.Errorf("doc %d: score out of range %v", i, r.Score)
		}
	}
}

func TestValidation_Lifecycle(t *testing.T) {
	calls := 0
	opts := DefaultOptions()
	opts.Rules = []Rule{func(*doctree.DocumentStructure) Result {
		calls++
		return Result{IsValid: true}
	}}
	v := NewValidation(validDoc(), opts)
	if v.State() != StateUnchecked {
		t.Fatalf("expected unchecked, got %s", v.State())
	}
	first := v.Run()
	second := v.Run()
	if v.State() != StateValidated {
		t.Errorf("expected validated, got %s", v.State())
	}
	if calls != 1 {
		t.Errorf("expected rules to run once, ran %d times", calls)
	}
	if !reflect.DeepEqual(first, second) {
		t.Error("cached result differs")
	}
}
