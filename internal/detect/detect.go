// Package detect finds chapter boundaries in extracted document content.
package detect

import (
	"regexp"
	"sort"
	"strings"

	"github.com/dgallion1/docstruct/internal/doctree"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// Raw detector confidence per boundary source.
const (
	ScoreNavigation = 0.95
	ScoreHeading    = 0.9
	ScorePage       = 0.75
	ScorePattern    = 0.65
	ScoreLeading    = 0.5
	ScoreFallback   = 0.3

	// Applied to heading scores when the chapter level had to be inferred.
	autoLevelPenalty = 0.85
)

// Config controls boundary detection.
type Config struct {
	ChapterLevel       int  // Heading level that marks a chapter (1 = "#").
	AutoLevel          bool // Use the shallowest heading level present when ChapterLevel has none.
	FallbackTitleWords int  // Words taken from the content for a fallback title.
	PageSlack          int  // Bytes after a page break where a chapter line still counts as page-aligned.
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		ChapterLevel:       1,
		AutoLevel:          true,
		FallbackTitleWords: 6,
		PageSlack:          200,
	}
}

func (c Config) withDefaults() Config {
	if c.ChapterLevel < 1 || c.ChapterLevel > 6 {
		c.ChapterLevel = 1
	}
	if c.FallbackTitleWords <= 0 {
		c.FallbackTitleWords = 6
	}
	if c.PageSlack < 0 {
		c.PageSlack = 0
	}
	return c
}

// Boundary is one detected chapter region of the content.
type Boundary struct {
	Start      int // Offset of the chapter marker (or body when there is none).
	BodyStart  int // Offset where chapter body text begins.
	End        int // Exclusive end offset.
	Title      string
	RawTitle   string
	Number     int
	Level      int
	Confidence float64 // Raw detector confidence.
	Source     doctree.Detection
	IsFallback bool
}

// Result is the outcome of a detection pass.
type Result struct {
	Boundaries    []Boundary
	Level         int  // Heading level used for chapters.
	LevelInferred bool // ChapterLevel had no headings and another level was used.
}

// Detector finds chapter boundaries using format-appropriate heuristics.
type Detector struct {
	cfg Config
	md  goldmark.Markdown
}

// New creates a Detector.
func New(cfg Config) *Detector {
	return &Detector{cfg: cfg.withDefaults(), md: goldmark.New()}
}

type strategy func(src doctree.Source, res *Result) []Boundary

// Detect returns ordered, non-overlapping chapter boundaries. Non-blank
// content always yields at least one boundary; blank content yields none.
func (d *Detector) Detect(src doctree.Source) Result {
	res := Result{Level: d.cfg.ChapterLevel}
	if strings.TrimSpace(src.Content) == "" {
		return res
	}

	var chain []strategy
	switch src.Format {
	case doctree.FormatMarkdown:
		chain = []strategy{d.headings, d.patterns}
	case doctree.FormatPDF:
		chain = []strategy{d.navigation, d.patterns, d.headings}
	case doctree.FormatEPUB:
		chain = []strategy{d.navigation, d.headings, d.patterns}
	default:
		return res
	}

	for _, s := range chain {
		if bs := s(src, &res); len(bs) > 0 {
			res.Boundaries = withLeading(src.Content, bs)
			return res
		}
	}
	res.Boundaries = []Boundary{d.fallback(src)}
	return res
}

// headings uses the goldmark AST so fenced code and quoted "#" lines never count.
func (d *Detector) headings(src doctree.Source, res *Result) []Boundary {
	content := []byte(src.Content)
	doc := d.md.Parser().Parse(text.NewReader(content))

	type heading struct {
		level            int
		start, bodyStart int
		raw              string
	}
	var all []heading
	levels := map[int]bool{}
	for n := doc.FirstChild(); n != nil; n = n.NextSibling() {
		h, ok := n.(*ast.Heading)
		if !ok || h.Lines().Len() == 0 {
			continue
		}
		lines := h.Lines()
		first, last := lines.At(0), lines.At(lines.Len()-1)
		var raw strings.Builder
		for i := 0; i < lines.Len(); i++ {
			seg := lines.At(i)
			if i > 0 {
				raw.WriteByte(' ')
			}
			raw.WriteString(strings.TrimSpace(string(seg.Value(content))))
		}
		start := lineStart(src.Content, first.Start)
		stop := last.Stop
		if stop > last.Start && src.Content[stop-1] == '\n' {
			stop--
		}
		bodyStart := lineEnd(src.Content, stop)
		if !isATX(src.Content[start:]) {
			bodyStart = lineEnd(src.Content, bodyStart) // setext underline
		}
		all = append(all, heading{level: h.Level, start: start, bodyStart: bodyStart, raw: strings.TrimSpace(raw.String())})
		levels[h.Level] = true
	}
	if len(all) == 0 {
		return nil
	}

	level := d.cfg.ChapterLevel
	score := ScoreHeading
	if !levels[level] {
		if !d.cfg.AutoLevel {
			return nil
		}
		level = 7
		for l := range levels {
			if l < level {
				level = l
			}
		}
		res.LevelInferred = true
		score *= autoLevelPenalty
	}
	res.Level = level

	var out []Boundary
	for _, h := range all {
		if h.level != level {
			continue
		}
		title, num := NormalizeTitle(h.raw)
		out = append(out, Boundary{
			Start:      h.start,
			BodyStart:  h.bodyStart,
			Title:      title,
			RawTitle:   h.raw,
			Number:     num,
			Level:      level,
			Confidence: score,
			Source:     doctree.DetectionHeading,
		})
	}
	closeEnds(out, len(src.Content))
	return out
}

// navigation uses outline entries supplied by the adapter.
func (d *Detector) navigation(src doctree.Source, res *Result) []Boundary {
	nav := src.Hints.Navigation
	if len(nav) == 0 {
		return nil
	}
	top := 0
	for _, np := range nav {
		lvl := max(np.Level, 1)
		if top == 0 || lvl < top {
			top = lvl
		}
	}

	points := make([]doctree.NavPoint, 0, len(nav))
	for _, np := range nav {
		if max(np.Level, 1) != top || np.Offset < 0 || np.Offset >= len(src.Content) {
			continue
		}
		points = append(points, np)
	}
	sort.SliceStable(points, func(i, j int) bool { return points[i].Offset < points[j].Offset })

	var out []Boundary
	for i, np := range points {
		if i > 0 && np.Offset == points[i-1].Offset {
			continue
		}
		title, num := NormalizeTitle(np.Title)
		out = append(out, Boundary{
			Start:      np.Offset,
			BodyStart:  skipTitleLine(src.Content, np.Offset, np.Title),
			Title:      title,
			RawTitle:   np.Title,
			Number:     num,
			Level:      1,
			Confidence: ScoreNavigation,
			Source:     doctree.DetectionNavigation,
		})
	}
	res.Level = top
	closeEnds(out, len(src.Content))
	return out
}

var (
	chapterLine = regexp.MustCompile(`(?im)^[ \t]*(?:chapter|part|book)[ \t]+(?:[0-9]{1,3}|[ivxlcdm]+|one|two|three|four|five|six|seven|eight|nine|ten|eleven|twelve|thirteen|fourteen|fifteen|sixteen|seventeen|eighteen|nineteen|twenty)\b[^\n]{0,80}$`)
	sectionLine = regexp.MustCompile(`(?im)^[ \t]*(?:prologue|epilogue|preface|introduction|afterword|foreword)[ \t]*$`)
)

// patterns recognizes standalone chapter lines in plain extracted text.
// Lines aligned with a page break score higher than free-floating ones.
func (d *Detector) patterns(src doctree.Source, res *Result) []Boundary {
	content := src.Content
	var locs [][]int
	locs = append(locs, chapterLine.FindAllStringIndex(content, -1)...)
	locs = append(locs, sectionLine.FindAllStringIndex(content, -1)...)
	sort.Slice(locs, func(i, j int) bool { return locs[i][0] < locs[j][0] })

	var out []Boundary
	for _, loc := range locs {
		if !standalone(content, loc[0]) {
			continue
		}
		raw := strings.TrimSpace(content[loc[0]:loc[1]])
		title, num := NormalizeTitle(raw)
		b := Boundary{
			Start:      loc[0],
			BodyStart:  lineEnd(content, loc[1]),
			Title:      title,
			RawTitle:   raw,
			Number:     num,
			Level:      1,
			Confidence: ScorePattern,
			Source:     doctree.DetectionPattern,
		}
		if src.Hints.IsPageStart(loc[0], d.cfg.PageSlack) {
			b.Confidence = ScorePage
			b.Source = doctree.DetectionPage
		}
		out = append(out, b)
	}
	closeEnds(out, len(content))
	return out
}

func (d *Detector) fallback(src doctree.Source) Boundary {
	title := strings.TrimSpace(src.Hints.Title)
	if title == "" {
		words := strings.Fields(cleanTitle(firstLine(src.Content)))
		if len(words) > d.cfg.FallbackTitleWords {
			words = words[:d.cfg.FallbackTitleWords]
		}
		title = strings.TrimRight(strings.Join(words, " "), ".,;:!?")
	}
	if title == "" {
		title = "Document"
	}
	return Boundary{
		Start:      0,
		BodyStart:  0,
		End:        len(src.Content),
		Title:      title,
		Level:      1,
		Confidence: ScoreFallback,
		Source:     doctree.DetectionFallback,
		IsFallback: true,
	}
}

// withLeading prepends an untitled chapter for non-blank content before the first boundary.
func withLeading(content string, bs []Boundary) []Boundary {
	first := bs[0].Start
	if first == 0 || strings.TrimSpace(content[:first]) == "" {
		return bs
	}
	lead := Boundary{
		Start:      0,
		BodyStart:  0,
		End:        first,
		Level:      bs[0].Level,
		Confidence: ScoreLeading,
		Source:     doctree.DetectionLeading,
	}
	return append([]Boundary{lead}, bs...)
}

func closeEnds(bs []Boundary, total int) {
	for i := range bs {
		if i+1 < len(bs) {
			bs[i].End = bs[i+1].Start
		} else {
			bs[i].End = total
		}
		if bs[i].BodyStart > bs[i].End {
			bs[i].BodyStart = bs[i].End
		}
	}
}

func lineStart(s string, i int) int {
	if i > len(s) {
		i = len(s)
	}
	return strings.LastIndexByte(s[:i], '\n') + 1
}

// lineEnd returns the offset just past the newline ending the line at i.
func lineEnd(s string, i int) int {
	if i >= len(s) {
		return len(s)
	}
	if nl := strings.IndexByte(s[i:], '\n'); nl >= 0 {
		return i + nl + 1
	}
	return len(s)
}

func isATX(line string) bool {
	return strings.HasPrefix(strings.TrimLeft(line, " "), "#")
}

// standalone reports whether the line at i is preceded by a blank line or the start of content.
func standalone(s string, i int) bool {
	if i == 0 {
		return true
	}
	prevEnd := i - 1 // the '\n' ending the previous line
	prevStart := lineStart(s, prevEnd)
	return strings.TrimSpace(s[prevStart:prevEnd]) == ""
}

func skipTitleLine(content string, offset int, title string) int {
	end := lineEnd(content, offset)
	line := strings.TrimSpace(content[offset:end])
	if line != "" && strings.EqualFold(cleanTitle(strings.TrimLeft(line, "# ")), cleanTitle(title)) {
		return end
	}
	return offset
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		return s[:nl]
	}
	return s
}
