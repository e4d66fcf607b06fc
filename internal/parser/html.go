package parser

import (
	"fmt"
	"io"
	"strings"

	"github.com/dgallion1/docstruct/internal/doctree"
	"golang.org/x/net/html"
)

// HTMLParser handles HTML files. Block elements are rendered as Markdown-style
// paragraphs and headings become "#" lines, so the content is analyzed as Markdown.
type HTMLParser struct{}

func (p *HTMLParser) Parse(r io.Reader, filename string) (doctree.Source, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return doctree.Source{}, fmt.Errorf("parse html: %w", err)
	}

	src := doctree.Source{
		Format:   doctree.FormatMarkdown,
		Filename: filename,
		Hints:    doctree.Hints{Title: stem(filename), Locale: findLang(doc)},
	}
	if title := findTitle(doc); title != "" {
		src.Hints.Title = title
	}
	src.Content = renderBlocks(doc)
	return src, nil
}

// renderBlocks converts the body of an HTML document into blank-line separated blocks.
func renderBlocks(doc *html.Node) string {
	var w blockWriter
	if body := findBody(doc); body != nil {
		w.walk(body)
	} else {
		w.walk(doc)
	}
	return w.String()
}

type blockWriter struct {
	blocks []string
}

func (w *blockWriter) add(s string) {
	if s = strings.TrimSpace(s); s != "" {
		w.blocks = append(w.blocks, s)
	}
}

func (w *blockWriter) String() string {
	if len(w.blocks) == 0 {
		return ""
	}
	return strings.Join(w.blocks, "\n\n") + "\n"
}

func (w *blockWriter) walk(n *html.Node) {
	switch n.Type {
	case html.TextNode:
		w.add(collapse(n.Data))
		return
	case html.ElementNode:
		if level := headingLevel(n.Data); level > 0 {
			if t := textContent(n); t != "" {
				w.add(strings.Repeat("#", level) + " " + t)
			}
			return
		}
		switch n.Data {
		case "script", "style", "nav", "head", "title", "footer":
			return
		case "p", "figcaption", "dt", "dd":
			w.add(textContent(n))
			return
		case "blockquote":
			var lines []string
			var inner blockWriter
			for c := n.FirstChild; c != nil; c = c.NextSibling {
				inner.walk(c)
			}
			for _, b := range inner.blocks {
				for _, l := range strings.Split(b, "\n") {
					lines = append(lines, "> "+l)
				}
			}
			w.add(strings.Join(lines, "\n"))
			return
		case "ul", "ol":
			w.add(listItems(n))
			return
		case "pre":
			w.add("```\n" + strings.Trim(rawText(n), "\n") + "\n```")
			return
		case "table":
			w.add(tableRows(n))
			return
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		w.walk(c)
	}
}

func listItems(n *html.Node) string {
	var items []string
	i := 0
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type != html.ElementNode || c.Data != "li" {
			continue
		}
		i++
		marker := "-"
		if n.Data == "ol" {
			marker = fmt.Sprintf("%d.", i)
		}
		if t := textContent(c); t != "" {
			items = append(items, marker+" "+t)
		}
	}
	return strings.Join(items, "\n")
}

func tableRows(n *html.Node) string {
	var rows []string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "tr" {
			var cells []string
			for c := n.FirstChild; c != nil; c = c.NextSibling {
				if c.Type == html.ElementNode && (c.Data == "td" || c.Data == "th") {
					cells = append(cells, textContent(c))
				}
			}
			if len(cells) > 0 {
				rows = append(rows, "| "+strings.Join(cells, " | ")+" |")
				if len(rows) == 1 {
					rows = append(rows, "|"+strings.Repeat(" --- |", len(cells)))
				}
			}
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.Join(rows, "\n")
}

func headingLevel(tag string) int {
	switch tag {
	case "h1":
		return 1
	case "h2":
		return 2
	case "h3":
		return 3
	case "h4":
		return 4
	case "h5":
		return 5
	case "h6":
		return 6
	}
	return 0
}

// textContent returns the element's text with whitespace collapsed.
func textContent(n *html.Node) string {
	return collapse(rawText(n))
}

func rawText(n *html.Node) string {
	var buf strings.Builder
	var extract func(*html.Node)
	extract = func(n *html.Node) {
		switch {
		case n.Type == html.TextNode:
			buf.WriteString(n.Data)
		case n.Type == html.ElementNode && n.Data == "br":
			buf.WriteByte('\n')
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			extract(c)
		}
	}
	extract(n)
	return buf.String()
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func findTitle(n *html.Node) string {
	if n.Type == html.ElementNode && n.Data == "title" {
		return textContent(n)
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if t := findTitle(c); t != "" {
			return t
		}
	}
	return ""
}

func findLang(n *html.Node) string {
	if n.Type == html.ElementNode && n.Data == "html" {
		for _, a := range n.Attr {
			if a.Key == "lang" || a.Key == "xml:lang" {
				return a.Val
			}
		}
		return ""
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if l := findLang(c); l != "" {
			return l
		}
	}
	return ""
}

func findBody(n *html.Node) *html.Node {
	if n.Type == html.ElementNode && n.Data == "body" {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if b := findBody(c); b != nil {
			return b
		}
	}
	return nil
}
