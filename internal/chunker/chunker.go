// Package chunker groups the narratable sentences of an analyzed document
// into token-bounded chunks for speech synthesis.
package chunker

import (
	"strings"

	"github.com/dgallion1/docstruct/internal/doctree"
)

// Config controls chunking behavior.
type Config struct {
	ChunkSize    int `json:"chunk_size" yaml:"chunk_size"`       // Target chunk size in tokens.
	ChunkOverlap int `json:"chunk_overlap" yaml:"chunk_overlap"` // Tokens of trailing sentences repeated in the next chunk.
	MinChunk     int `json:"min_chunk" yaml:"min_chunk"`         // Smaller chapter tails fold into the previous chunk.
}

// DefaultConfig returns sensible defaults. Narration does not overlap.
func DefaultConfig() Config {
	return Config{
		ChunkSize:    1500,
		ChunkOverlap: 0,
		MinChunk:     100,
	}
}

// Chunk is a run of consecutive sentences from one chapter.
type Chunk struct {
	Index             int      `json:"index" yaml:"index"`
	ChapterID         string   `json:"chapter_id" yaml:"chapter_id"`
	Breadcrumb        []string `json:"breadcrumb,omitempty" yaml:"breadcrumb,omitempty"`
	Text              string   `json:"text" yaml:"text"`
	ParagraphIDs      []string `json:"paragraph_ids" yaml:"paragraph_ids"`
	SentenceIDs       []string `json:"sentence_ids" yaml:"sentence_ids"`
	Overlap           int      `json:"overlap,omitempty" yaml:"overlap,omitempty"` // Leading sentences repeated from the previous chunk.
	Tokens            int      `json:"tokens" yaml:"tokens"`
	WordCount         int      `json:"word_count" yaml:"word_count"`
	EstimatedDuration float64  `json:"estimated_duration" yaml:"estimated_duration"`
}

// ChunkDocument walks d chapter by chapter and packs the sentences of paragraphs
// marked for audio into chunks. Chunks never span chapters. A paragraph is
// kept whole when it fits in a chunk; larger ones split between sentences.
// A single sentence over the limit becomes its own chunk.
func ChunkDocument(d *doctree.DocumentStructure, cfg Config) []Chunk {
	def := DefaultConfig()
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = def.ChunkSize
	}
	if cfg.ChunkOverlap < 0 || cfg.ChunkOverlap >= cfg.ChunkSize {
		cfg.ChunkOverlap = 0
	}
	if cfg.MinChunk < 0 {
		cfg.MinChunk = 0
	}

	var chunks []Chunk
	for _, ch := range d.Chapters {
		crumb := breadcrumb(d.Metadata.Title, ch.Title)
		for _, c := range chunkChapter(ch, cfg) {
			c.Index = len(chunks)
			c.ChapterID = ch.ID
			c.Breadcrumb = crumb
			chunks = append(chunks, c)
		}
	}
	return chunks
}

// unit is one sentence with the paragraph it came from.
type unit struct {
	s      doctree.Sentence
	para   string
	tokens int
}

type packer struct {
	cfg   Config
	done  [][]unit
	lead  []int // overlap count per finished chunk
	cur   []unit
	tok   int
	carry int // leading units of cur repeated from the previous chunk
}

// room makes space for tok more tokens in the current chunk.
func (p *packer) room(tok int) {
	if p.tok+tok <= p.cfg.ChunkSize {
		return
	}
	if len(p.cur) == p.carry {
		p.cur, p.tok, p.carry = nil, 0, 0
		return
	}
	p.flush(true)
	if p.tok+tok > p.cfg.ChunkSize {
		p.cur, p.tok, p.carry = nil, 0, 0
	}
}

func (p *packer) flush(overlap bool) {
	if len(p.cur) == p.carry {
		return
	}
	p.done = append(p.done, p.cur)
	p.lead = append(p.lead, p.carry)

	var next []unit
	if overlap && p.cfg.ChunkOverlap > 0 {
		next = tail(p.cur, p.cfg.ChunkOverlap)
	}
	p.cur, p.tok, p.carry = next, sumTokens(next), len(next)
}

func (p *packer) add(u unit) {
	p.cur = append(p.cur, u)
	p.tok += u.tokens
}

func chunkChapter(ch doctree.Chapter, cfg Config) []Chunk {
	p := &packer{cfg: cfg}
	for _, para := range ch.Paragraphs {
		if !para.IncludeInAudio {
			continue
		}
		units := unitsOf(para)
		if len(units) == 0 {
			continue
		}
		if total := sumTokens(units); p.tok > 0 && p.tok+total > cfg.ChunkSize && total <= cfg.ChunkSize {
			p.room(total)
		}
		for _, u := range units {
			if p.tok > 0 {
				p.room(u.tokens)
			}
			p.add(u)
		}
	}
	p.flush(false)

	// Fold a short tail into its predecessor.
	if n := len(p.done); n > 1 && sumTokens(p.done[n-1][p.lead[n-1]:]) < cfg.MinChunk {
		p.done[n-2] = append(p.done[n-2], p.done[n-1][p.lead[n-1]:]...)
		p.done = p.done[:n-1]
		p.lead = p.lead[:n-1]
	}

	out := make([]Chunk, 0, len(p.done))
	for i, units := range p.done {
		out = append(out, assemble(units, p.lead[i]))
	}
	return out
}

func unitsOf(para doctree.Paragraph) []unit {
	var out []unit
	for _, s := range para.Sentences {
		if strings.TrimSpace(s.Text) == "" {
			continue
		}
		out = append(out, unit{s: s, para: para.ID, tokens: EstimateTokens(s.Text)})
	}
	return out
}

// tail returns the trailing units whose tokens fit within budget.
func tail(units []unit, budget int) []unit {
	n, tok := 0, 0
	for i := len(units) - 1; i >= 0; i-- {
		if tok+units[i].tokens > budget {
			break
		}
		tok += units[i].tokens
		n++
	}
	if n == 0 {
		return nil
	}
	out := make([]unit, n)
	copy(out, units[len(units)-n:])
	return out
}

func assemble(units []unit, overlap int) Chunk {
	var b strings.Builder
	c := Chunk{Overlap: overlap}
	for i, u := range units {
		if i > 0 {
			if u.para == units[i-1].para {
				b.WriteByte(' ')
			} else {
				b.WriteString("\n\n")
			}
		}
		b.WriteString(u.s.Text)
		if len(c.ParagraphIDs) == 0 || c.ParagraphIDs[len(c.ParagraphIDs)-1] != u.para {
			c.ParagraphIDs = append(c.ParagraphIDs, u.para)
		}
		c.SentenceIDs = append(c.SentenceIDs, u.s.ID)
		c.Tokens += u.tokens
		c.WordCount += u.s.WordCount
		c.EstimatedDuration += u.s.EstimatedDuration
	}
	c.Text = b.String()
	return c
}

func sumTokens(units []unit) int {
	n := 0
	for _, u := range units {
		n += u.tokens
	}
	return n
}

func breadcrumb(title, chapter string) []string {
	var bc []string
	if t := strings.TrimSpace(title); t != "" {
		bc = append(bc, t)
	}
	if t := strings.TrimSpace(chapter); t != "" {
		bc = append(bc, t)
	}
	return bc
}
