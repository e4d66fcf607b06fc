package parser

import (
	"fmt"
	"io"
	"strings"

	"github.com/dgallion1/docstruct/internal/doctree"
	"gopkg.in/yaml.v3"
)

// MarkdownParser handles Markdown files. A leading YAML front matter block
// supplies the title and language and is removed from the content.
type MarkdownParser struct{}

type frontMatter struct {
	Title    string `yaml:"title"`
	Lang     string `yaml:"lang"`
	Language string `yaml:"language"`
}

func (p *MarkdownParser) Parse(r io.Reader, filename string) (doctree.Source, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return doctree.Source{}, fmt.Errorf("read markdown: %w", err)
	}
	content := normalizeNewlines(string(data))

	src := doctree.Source{
		Format:   doctree.FormatMarkdown,
		Filename: filename,
		Hints:    doctree.Hints{Title: stem(filename)},
	}

	fm, body, ok := splitFrontMatter(content)
	if ok {
		var meta frontMatter
		if err := yaml.Unmarshal([]byte(fm), &meta); err != nil {
			return doctree.Source{}, fmt.Errorf("parse front matter: %w", err)
		}
		if t := strings.TrimSpace(meta.Title); t != "" {
			src.Hints.Title = t
		}
		src.Hints.Locale = meta.Lang
		if src.Hints.Locale == "" {
			src.Hints.Locale = meta.Language
		}
		content = body
	}
	src.Content = content
	return src, nil
}

// splitFrontMatter separates a "---" delimited block at the very start of content.
func splitFrontMatter(content string) (string, string, bool) {
	if !strings.HasPrefix(content, "---\n") {
		return "", content, false
	}
	rest := content[len("---\n"):]
	end := strings.Index(rest, "\n---")
	if end < 0 {
		return "", content, false
	}
	after := rest[end+len("\n---"):]
	if after != "" && after[0] != '\n' {
		return "", content, false
	}
	return rest[:end], strings.TrimLeft(after, "\n"), true
}
