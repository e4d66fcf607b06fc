package parser

import (
	"archive/zip"
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"path"
	"strings"

	"github.com/dgallion1/docstruct/internal/doctree"
	"github.com/taylorskalyo/goreader/epub"
	"golang.org/x/net/html"
)

// EPUBParser handles EPUB files. Spine documents are rendered in reading
// order and the NCX table of contents becomes navigation hints.
type EPUBParser struct{}

type ncx struct {
	DocTitle struct {
		Text string `xml:"text"`
	} `xml:"docTitle"`
	NavMap struct {
		NavPoints []navPoint `xml:"navPoint"`
	} `xml:"navMap"`
}

type navPoint struct {
	Label struct {
		Text string `xml:"text"`
	} `xml:"navLabel"`
	Content struct {
		Src string `xml:"src,attr"`
	} `xml:"content"`
	Children []navPoint `xml:"navPoint"`
}

func (p *EPUBParser) Parse(r io.Reader, filename string) (doctree.Source, error) {
	// goreader opens archives by path.
	tmp, err := os.CreateTemp("", "docstruct-epub-*.epub")
	if err != nil {
		return doctree.Source{}, fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		return doctree.Source{}, fmt.Errorf("write temp file: %w", err)
	}
	tmp.Close()

	return parseEPUB(tmpPath, filename)
}

func parseEPUB(archive, filename string) (doctree.Source, error) {
	rc, err := epub.OpenReader(archive)
	if err != nil {
		return doctree.Source{}, fmt.Errorf("open epub: %w", err)
	}
	defer rc.Close()

	if len(rc.Rootfiles) == 0 {
		return doctree.Source{}, fmt.Errorf("no rootfiles found in epub")
	}
	book := rc.Rootfiles[0]

	src := doctree.Source{
		Format:   doctree.FormatEPUB,
		Filename: filename,
		Hints:    doctree.Hints{Title: stem(filename)},
	}

	var content strings.Builder
	offsets := map[string]int{} // spine href -> offset of its first byte
	for _, ref := range book.Spine.Itemrefs {
		if ref.Item == nil {
			continue
		}
		r, err := ref.Item.Open()
		if err != nil {
			continue
		}
		doc, err := html.Parse(r)
		r.Close()
		if err != nil {
			continue
		}
		if src.Hints.Locale == "" {
			src.Hints.Locale = findLang(doc)
		}
		text := renderBlocks(doc)
		if text == "" {
			continue
		}
		if content.Len() > 0 {
			content.WriteString("\n")
		}
		offsets[path.Base(ref.Item.HREF)] = content.Len()
		content.WriteString(text)
	}
	src.Content = content.String()

	data, err := readNCX(archive, book)
	if err != nil {
		// A missing table of contents only costs the navigation hints.
		return src, nil
	}
	var toc ncx
	if err := xml.Unmarshal(data, &toc); err != nil {
		return src, nil
	}
	if t := strings.TrimSpace(toc.DocTitle.Text); t != "" {
		src.Hints.Title = t
	}
	src.Hints.Navigation = navigation(toc.NavMap.NavPoints, offsets, 1)
	return src, nil
}

// navigation flattens nav points in document order. Points into a spine
// document resolve to that document's start offset.
func navigation(points []navPoint, offsets map[string]int, level int) []doctree.NavPoint {
	var out []doctree.NavPoint
	for _, np := range points {
		href := np.Content.Src
		if i := strings.Index(href, "#"); i >= 0 {
			href = href[:i]
		}
		if off, ok := offsets[path.Base(href)]; ok {
			if title := strings.TrimSpace(np.Label.Text); title != "" {
				out = append(out, doctree.NavPoint{Title: title, Offset: off, Level: level})
			}
		}
		out = append(out, navigation(np.Children, offsets, level+1)...)
	}
	return out
}

func readNCX(archive string, book *epub.Rootfile) ([]byte, error) {
	zr, err := zip.OpenReader(archive)
	if err != nil {
		return nil, err
	}
	defer zr.Close()

	var ncxPath string
	for _, item := range book.Manifest.Items {
		if item.MediaType == "application/x-dtbncx+xml" {
			ncxPath = item.HREF
			break
		}
	}
	for _, f := range zr.File {
		name := strings.ToLower(f.Name)
		if (ncxPath != "" && path.Base(f.Name) == path.Base(ncxPath)) || (ncxPath == "" && strings.HasSuffix(name, ".ncx")) {
			r, err := f.Open()
			if err != nil {
				return nil, err
			}
			defer r.Close()
			return io.ReadAll(r)
		}
	}
	return nil, fmt.Errorf("no NCX file found in epub")
}
