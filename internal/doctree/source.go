package doctree

import (
	"fmt"
	"strings"
)

// Format is the closed set of source formats the detector understands.
type Format string

const (
	FormatMarkdown Format = "markdown"
	FormatPDF      Format = "pdf"
	FormatEPUB     Format = "epub"
)

// ParseFormat converts a format tag into a Format.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "markdown", "md", "text", "txt":
		return FormatMarkdown, nil
	case "pdf":
		return FormatPDF, nil
	case "epub":
		return FormatEPUB, nil
	default:
		return "", fmt.Errorf("unsupported format: %q", s)
	}
}

// Valid reports whether f is one of the known formats.
func (f Format) Valid() bool {
	switch f {
	case FormatMarkdown, FormatPDF, FormatEPUB:
		return true
	}
	return false
}

// Source is raw extracted content handed over by a format adapter.
type Source struct {
	Content  string `json:"content"`
	Format   Format `json:"format"`
	Filename string `json:"filename,omitempty"`
	Hints    Hints  `json:"hints"`
}

// Hints carries optional per-format metadata from the adapter.
type Hints struct {
	Title      string     `json:"title,omitempty"`
	Locale     string     `json:"locale,omitempty"`
	PageBreaks []int      `json:"page_breaks,omitempty"` // PDF: byte offsets where each page starts
	Navigation []NavPoint `json:"navigation,omitempty"`  // EPUB/PDF outline entries
}

// NavPoint is one navigation entry with its offset into the content.
type NavPoint struct {
	Title  string `json:"title"`
	Offset int    `json:"offset"`
	Level  int    `json:"level"` // 1 = top level
}

// PageAt returns the 1-based page containing offset, or 0 without page hints.
func (h Hints) PageAt(offset int) int {
	if len(h.PageBreaks) == 0 {
		return 0
	}
	page := 0
	for i, b := range h.PageBreaks {
		if b > offset {
			break
		}
		page = i + 1
	}
	return page
}

// IsPageStart reports whether offset falls at (or within slack bytes after) a page break.
func (h Hints) IsPageStart(offset, slack int) bool {
	for _, b := range h.PageBreaks {
		if offset >= b && offset-b <= slack {
			return true
		}
	}
	return false
}
