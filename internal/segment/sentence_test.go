package segment

import (
	"strings"
	"testing"
	"unicode"
)

func splitTexts(s *SentenceSegmenter, text string) []string {
	var out []string
	for _, sp := range s.Split(text) {
		out = append(out, text[sp.Start:sp.End])
	}
	return out
}

func TestSplit_Abbreviations(t *testing.T) {
	s := NewSentenceSegmenter(DefaultConfig())
	text := "Dr. Smith went to the U.S.A. on Jan. 3rd, 2024."
	got := splitTexts(s, text)
	if len(got) != 1 {
		t.Fatalf("expected 1 sentence, got %d: %q", len(got), got)
	}
	if got[0] != text {
		t.Errorf("expected sentence %q, got %q", text, got[0])
	}
}

func TestSplit_Decimals(t *testing.T) {
	s := NewSentenceSegmenter(DefaultConfig())
	text := "The value is 3.14159 and pi is approximately 3.14."
	got := splitTexts(s, text)
	if len(got) != 1 {
		t.Fatalf("expected 1 sentence, got %d: %q", len(got), got)
	}
	if !strings.Contains(got[0], "3.14159") || !strings.HasSuffix(got[0], "3.14.") {
		t.Errorf("numbers not intact: %q", got[0])
	}
}

func TestSplit_Basic(t *testing.T) {
	s := NewSentenceSegmenter(DefaultConfig())
	tests := []struct {
		name string
		text string
		want []string
	}{
		{"three sentences", "One is here. Two is there! Is three anywhere?", []string{"One is here.", "Two is there!", "Is three anywhere?"}},
		{"unterminated tail", "Complete sentence. trailing fragment", []string{"Complete sentence.", "trailing fragment"}},
		{"closing quote", `He said "stop." Then he left.`, []string{`He said "stop."`, "Then he left."}},
		{"mixed run", "Really?! Yes.", []string{"Really?!", "Yes."}},
		{"initial", "John F. Kennedy spoke. It was brief.", []string{"John F. Kennedy spoke.", "It was brief."}},
		{"url", "Visit example.com today. Thanks.", []string{"Visit example.com today.", "Thanks."}},
		{"eg acronym", "Use a tool, e.g. a hammer. Done.", []string{"Use a tool, e.g. a hammer.", "Done."}},
		{"empty", "   ", nil},
		{"word sat", "He sat. Then she left.", []string{"He sat.", "Then she left."}},
		{"pronoun I", "So did I. Then we left.", []string{"So did I.", "Then we left."}},
		{"word sun", "We watched the sun. Everyone cheered.", []string{"We watched the sun.", "Everyone cheered."}},
		{"word ed", "She wrote an ed. Nobody read it.", []string{"She wrote an ed.", "Nobody read it."}},
		{"month before number", "It opened Mar. 3 downtown. Crowds came.", []string{"It opened Mar. 3 downtown.", "Crowds came."}},
		{"et al lowercase", "Smith et al. found it. Others agreed.", []string{"Smith et al. found it.", "Others agreed."}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := splitTexts(s, tc.text)
			if len(got) != len(tc.want) {
				t.Fatalf("expected %d sentences %q, got %d %q", len(tc.want), tc.want, len(got), got)
			}
			for i := range tc.want {
				if got[i] != tc.want[i] {
					t.Errorf("sentence %d: expected %q, got %q", i, tc.want[i], got[i])
				}
			}
		})
	}
}

func TestSplit_Ellipsis(t *testing.T) {
	s := NewSentenceSegmenter(DefaultConfig())
	tests := []struct {
		name string
		text string
		want int
	}{
		{"lowercase continuation", "Wait... what happened here?", 1},
		{"capital continuation", "I waited... Then he came.", 2},
		{"unicode ellipsis lowercase", "Well… maybe not.", 1},
		{"unicode ellipsis capital", "Well… Maybe not.", 2},
		{"trailing ellipsis", "And then...", 1},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := splitTexts(s, tc.text)
			if len(got) != tc.want {
				t.Errorf("expected %d sentences, got %d: %q", tc.want, len(got), got)
			}
		})
	}
}

func TestSplit_Terminated(t *testing.T) {
	s := NewSentenceSegmenter(DefaultConfig())
	spans := s.Split("First one. second without end")
	if len(spans) != 2 {
		t.Fatalf("expected 2 spans, got %d", len(spans))
	}
	if !spans[0].Terminated {
		t.Error("expected first span terminated")
	}
	if spans[1].Terminated {
		t.Error("expected final fragment unterminated")
	}
}

func TestSplit_Locales(t *testing.T) {
	tests := []struct {
		locale string
		text   string
		want   int
	}{
		{"zh", "我们走吧。他来了！你好吗？", 3},
		{"ja", "今日は晴れです。明日は雨です。", 2},
		{"hi", "यह एक वाक्य है। यह दूसरा है।", 2},
		{"ar", "هل أنت بخير؟ نعم.", 2},
		{"en", "我们走吧。他来了！", 1},
	}
	for _, tc := range tests {
		t.Run(tc.locale, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.Locale = tc.locale
			s := NewSentenceSegmenter(cfg)
			got := splitTexts(s, tc.text)
			if len(got) != tc.want {
				t.Errorf("expected %d sentences, got %d: %q", tc.want, len(got), got)
			}
		})
	}
}

func TestSplit_NoInitials(t *testing.T) {
	text := "The grade was a B. Nobody complained."
	if n := len(splitTexts(NewSentenceSegmenter(DefaultConfig()), text)); n != 1 {
		t.Errorf("expected initial to hold the sentence open, got %d sentences", n)
	}
	cfg := DefaultConfig()
	cfg.NoInitials = true
	if n := len(splitTexts(NewSentenceSegmenter(cfg), text)); n != 2 {
		t.Errorf("expected 2 sentences with initials disabled, got %d", n)
	}
}

func TestSplit_LocaleAbbreviations(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Locale = "de"
	cfg.LocaleAbbreviations = map[string][]string{"de": {"bzw", "usw"}}
	s := NewSentenceSegmenter(cfg)
	got := splitTexts(s, "Äpfel bzw. Birnen sind gut. Ende.")
	if len(got) != 2 {
		t.Errorf("expected 2 sentences, got %d: %q", len(got), got)
	}

	plain := NewSentenceSegmenter(DefaultConfig())
	if n := len(splitTexts(plain, "Äpfel bzw. Birnen sind gut. Ende.")); n != 3 {
		t.Errorf("expected 3 sentences without locale list, got %d", n)
	}
}

func TestSplit_Idempotent(t *testing.T) {
	s := NewSentenceSegmenter(DefaultConfig())
	texts := []string{
		"Dr. Smith arrived. He was late!  Nobody minded...   Why would they? the end",
		"  Leading space. Trailing space.  ",
		"Line one.\nLine two continues\nacross lines. Done",
		"Wait... what? Mr. Jones paid $3.50 for it.",
	}
	for _, text := range texts {
		spans := s.Split(text)

		// Ranges map back onto the text and are separated only by whitespace.
		prev := 0
		for i, sp := range spans {
			if strings.TrimSpace(text[prev:sp.Start]) != "" {
				t.Errorf("%q: non-space gap before sentence %d: %q", text, i, text[prev:sp.Start])
			}
			prev = sp.End
		}
		if strings.TrimSpace(text[prev:]) != "" {
			t.Errorf("%q: trailing text not covered: %q", text, text[prev:])
		}

		// Re-joining with the original separators reproduces the paragraph,
		// and re-segmenting it yields the same sentences.
		var b strings.Builder
		b.WriteString(text[:spans[0].Start])
		for i, sp := range spans {
			b.WriteString(text[sp.Start:sp.End])
			if i+1 < len(spans) {
				b.WriteString(text[sp.End:spans[i+1].Start])
			}
		}
		b.WriteString(text[spans[len(spans)-1].End:])
		if b.String() != text {
			t.Errorf("rejoined text differs:\n%q\n%q", b.String(), text)
		}
		again := splitTexts(s, b.String())
		first := splitTexts(s, text)
		if strings.Join(again, "|") != strings.Join(first, "|") {
			t.Errorf("resegmentation changed output: %q vs %q", first, again)
		}
	}
}

func TestSentences_CountsAndDuration(t *testing.T) {
	cfg := DefaultConfig()
	cfg.WordDuration = 0.4
	s := NewSentenceSegmenter(cfg)
	sents := s.Sentences("The **bold** claim stands. Short one.")
	if len(sents) != 2 {
		t.Fatalf("expected 2 sentences, got %d", len(sents))
	}
	if sents[0].WordCount != 4 {
		t.Errorf("expected 4 words, got %d", sents[0].WordCount)
	}
	if sents[0].EstimatedDuration != 1.6 {
		t.Errorf("expected duration 1.6, got %v", sents[0].EstimatedDuration)
	}
	if !sents[0].HasFormatting {
		t.Error("expected formatting flag for bold text")
	}
	if sents[1].HasFormatting {
		t.Error("expected no formatting flag")
	}
	if sents[1].Position != 1 {
		t.Errorf("expected position 1, got %d", sents[1].Position)
	}
	if sents[1].CharRange == nil || sents[1].CharRange.Start != 27 {
		t.Errorf("unexpected char range %+v", sents[1].CharRange)
	}
}

func TestSentences_EndInTerminatorOrFinal(t *testing.T) {
	s := NewSentenceSegmenter(DefaultConfig())
	sents := s.Sentences("Alpha beta. Gamma delta! Epsilon")
	for i, sent := range sents {
		last := []rune(sent.Text)[len([]rune(sent.Text))-1]
		isTerm := last == '.' || last == '!' || last == '?'
		if !isTerm && i != len(sents)-1 {
			t.Errorf("sentence %d %q neither terminated nor final", i, sent.Text)
		}
		if unicode.IsSpace(last) {
			t.Errorf("sentence %d has trailing space", i)
		}
	}
}
