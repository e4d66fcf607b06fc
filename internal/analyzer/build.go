package analyzer

import (
	"context"
	"fmt"

	"github.com/dgallion1/docstruct/internal/detect"
	"github.com/dgallion1/docstruct/internal/doctree"
	"github.com/dgallion1/docstruct/internal/metrics"
	"github.com/dgallion1/docstruct/internal/segment"
)

// build fills d's chapters from the detected boundaries.
func (a *Analyzer) build(ctx context.Context, d *doctree.DocumentStructure, src doctree.Source, seg *segment.Segmenter, st Streaming, col *metrics.Collector) error {
	stop := col.Stage(metrics.StageDetect)
	det := a.detector.Detect(src)
	stop()

	stop = col.Stage(metrics.StageSegment)
	defer stop()

	var prog *progress
	if st.Enabled {
		d.ProcessingMetrics.Streamed = true
		prog = &progress{total: len(src.Content), fn: st.OnProgress}
	}

	for _, b := range det.Boundaries {
		ch := chapterFrom(b)
		body := ""
		if b.BodyStart < b.End {
			body = src.Content[b.BodyStart:b.End]
		}
		if st.Enabled {
			paras, err := streamParagraphs(ctx, seg, body, b.BodyStart, st.ChunkSize, prog, col)
			if err != nil {
				return fmt.Errorf("stream chapter %q: %w", ch.Title, err)
			}
			ch.Paragraphs = paras
		} else {
			ch.Paragraphs = seg.Paragraphs(body, b.BodyStart)
		}
		if b.IsFallback {
			d.IsFallback = true
		}
		d.Chapters = append(d.Chapters, ch)
	}
	if prog != nil {
		prog.finish()
	}
	return nil
}

func chapterFrom(b detect.Boundary) doctree.Chapter {
	return doctree.Chapter{
		Title:         b.Title,
		RawTitle:      b.RawTitle,
		Number:        b.Number,
		Level:         b.Level,
		StartPosition: b.Start,
		EndPosition:   b.End,
		Source:        b.Source,
		DetectedScore: b.Confidence,
		IsFallback:    b.IsFallback,
	}
}

type progress struct {
	total int
	done  int
	fn    func(float64)
}

func (p *progress) advance(n int) {
	p.done += n
	if p.fn == nil || p.total == 0 {
		return
	}
	pct := float64(p.done) / float64(p.total) * 100
	if pct > 100 {
		pct = 100
	}
	p.fn(pct)
}

func (p *progress) finish() {
	if p.fn != nil {
		p.fn(100)
	}
}

// streamParagraphs segments body chunk by chunk. Cancellation is checked
// between chunks only.
func streamParagraphs(ctx context.Context, seg *segment.Segmenter, body string, base, size int, prog *progress, col *metrics.Collector) ([]doctree.Paragraph, error) {
	if size <= 0 {
		size = defaultChunkSize
	}
	asm := segment.NewAssembler()
	var paras []doctree.Paragraph
	emit := func(blocks []segment.Block) {
		for _, b := range blocks {
			p := seg.Paragraph(b, base)
			p.Position = len(paras)
			paras = append(paras, p)
		}
	}

	for _, chunk := range segment.Chunks(body, size) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		emit(asm.Write(chunk))
		col.Add("chunks", 1)
		prog.advance(len(chunk))
	}
	emit(asm.Flush())
	if paras == nil {
		paras = []doctree.Paragraph{}
	}
	return paras, nil
}
