package parser

import (
	"fmt"
	"io"

	"github.com/dgallion1/docstruct/internal/doctree"
)

// TextParser handles plain text files. Text is analyzed with the Markdown
// heuristics, so blank-line paragraphs and chapter lines still apply.
type TextParser struct{}

func (p *TextParser) Parse(r io.Reader, filename string) (doctree.Source, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return doctree.Source{}, fmt.Errorf("read text: %w", err)
	}
	return doctree.Source{
		Content:  normalizeNewlines(string(data)),
		Format:   doctree.FormatMarkdown,
		Filename: filename,
		Hints:    doctree.Hints{Title: stem(filename)},
	}, nil
}
