package segment

import (
	"strings"
	"unicode/utf8"
)

// Assembler rebuilds paragraph blocks from content delivered in arbitrary chunks.
// The unterminated tail of each chunk is carried into the next one, so chunk
// boundaries never show up as paragraph or sentence boundaries.
type Assembler struct {
	tail      strings.Builder
	tailStart int // Offset of the tail's first byte in the full stream.
	consumed  int // Total bytes written.
}

// NewAssembler creates an empty Assembler.
func NewAssembler() *Assembler {
	return &Assembler{}
}

// Write appends a chunk and returns the blocks that can no longer change.
// Block offsets are relative to the start of the stream.
func (a *Assembler) Write(chunk string) []Block {
	a.tail.WriteString(chunk)
	a.consumed += len(chunk)

	tail := a.tail.String()
	lastNL := strings.LastIndexByte(tail, '\n')
	if lastNL < 0 {
		return nil
	}
	// Only complete lines decide boundaries; a partial line may still turn
	// into a heading, fence or continuation.
	blocks := SplitBlocks(tail[:lastNL+1])
	if len(blocks) < 2 {
		return nil
	}

	done := blocks[:len(blocks)-1]
	keepFrom := blocks[len(blocks)-1].Start
	out := make([]Block, len(done))
	for i, b := range done {
		out[i] = Block{Text: b.Text, Start: a.tailStart + b.Start, End: a.tailStart + b.End}
	}

	rest := tail[keepFrom:]
	a.tail.Reset()
	a.tail.WriteString(rest)
	a.tailStart += keepFrom
	return out
}

// Flush returns every remaining block once the stream has ended.
func (a *Assembler) Flush() []Block {
	tail := a.tail.String()
	blocks := SplitBlocks(tail)
	for i := range blocks {
		blocks[i].Start += a.tailStart
		blocks[i].End += a.tailStart
	}
	a.tail.Reset()
	a.tailStart = a.consumed
	return blocks
}

// Pending returns the number of carried-over bytes not yet emitted.
func (a *Assembler) Pending() int {
	return a.tail.Len()
}

// Chunks cuts text into pieces of at most size bytes without splitting a rune.
func Chunks(text string, size int) []string {
	if size <= 0 || len(text) <= size {
		if text == "" {
			return nil
		}
		return []string{text}
	}
	var out []string
	for len(text) > 0 {
		n := size
		if n >= len(text) {
			out = append(out, text)
			break
		}
		for n > 0 && !utf8.RuneStart(text[n]) {
			n--
		}
		if n == 0 {
			// A single rune wider than size.
			_, n = utf8.DecodeRuneInString(text)
		}
		out = append(out, text[:n])
		text = text[n:]
	}
	return out
}
