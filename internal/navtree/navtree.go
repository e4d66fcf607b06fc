// Package navtree builds the display/navigation tree for an analyzed document.
//
// The tree is a flat node table: children and parents are indices into
// Tree.Nodes, so a Tree is a plain value that serializes without cycles.
package navtree

import (
	"fmt"

	"github.com/dgallion1/docstruct/internal/doctree"
)

// NodeType is the kind of a tree node.
type NodeType string

const (
	NodeDocument NodeType = "document"
	NodeChapter  NodeType = "chapter"
	NodeSection  NodeType = "section"
	NodeSentence NodeType = "sentence"
	NodeMore     NodeType = "more"
)

// Display carries presentation hints for UIs.
type Display struct {
	Confidence float64 `json:"confidence" yaml:"confidence"`
	Icon       string  `json:"icon" yaml:"icon"`
	Expanded   bool    `json:"expanded" yaml:"expanded"`
	HasIssues  bool    `json:"has_issues" yaml:"has_issues"`
}

// Node is one entry of the tree.
type Node struct {
	ID       string   `json:"id" yaml:"id"`
	Label    string   `json:"label" yaml:"label"`
	Type     NodeType `json:"type" yaml:"type"`
	Level    int      `json:"level" yaml:"level"`
	Parent   int      `json:"parent" yaml:"parent"` // -1 for the root
	Children []int    `json:"children" yaml:"children"`
	Display  Display  `json:"display" yaml:"display"`
	Removed  bool     `json:"removed,omitempty" yaml:"removed,omitempty"`
	Status   string   `json:"status,omitempty" yaml:"status,omitempty"`
}

// Tree is a derived, disposable view of a DocumentStructure.
type Tree struct {
	Nodes []Node `json:"nodes" yaml:"nodes"`
	Root  int    `json:"root" yaml:"root"`
}

// Thresholds below which a node is flagged with issues.
type Thresholds struct {
	Document float64 `json:"document" yaml:"document"`
	Chapter  float64 `json:"chapter" yaml:"chapter"`
	Section  float64 `json:"section" yaml:"section"`
	Sentence float64 `json:"sentence" yaml:"sentence"`
}

// Config controls tree construction.
type Config struct {
	PreviewSentences int // Sentences shown per section before collapsing into a "more" node.
	Thresholds       Thresholds
	ShowRemoved      bool // Render merged-away nodes flagged instead of hiding them.
	ExpandChapters   bool
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		PreviewSentences: 3,
		Thresholds:       Thresholds{Document: 0.7, Chapter: 0.6, Section: 0.5, Sentence: 0.5},
	}
}

// Overlay exposes correction state for nodes by ID.
type Overlay interface {
	Removed(id string) bool
	Status(id string) string
}

// RemovedChapter is a merged-away chapter kept for display.
type RemovedChapter struct {
	Chapter doctree.Chapter
	After   int // Index of the live chapter it follows; -1 for before the first.
}

// Builder builds trees.
type Builder struct {
	cfg Config
}

// NewBuilder creates a Builder.
func NewBuilder(cfg Config) *Builder {
	if cfg.PreviewSentences < 0 {
		cfg.PreviewSentences = 0
	}
	return &Builder{cfg: cfg}
}

// Build builds the tree for d. overlay may be nil.
func (b *Builder) Build(d *doctree.DocumentStructure, overlay Overlay) Tree {
	return b.BuildWithRemoved(d, overlay, nil)
}

// BuildWithRemoved also renders removed chapters when ShowRemoved is set.
func (b *Builder) BuildWithRemoved(d *doctree.DocumentStructure, overlay Overlay, removed []RemovedChapter) Tree {
	t := Tree{Root: 0}
	th := b.cfg.Thresholds
	label := d.Metadata.Title
	if label == "" {
		label = d.Metadata.Filename
	}
	if label == "" {
		label = "Document"
	}
	t.add(-1, Node{
		ID:      "doc",
		Label:   label,
		Type:    NodeDocument,
		Level:   0,
		Display: display(d.Confidence, th.Document, "book", true),
	})

	emitRemoved := func(after int) {
		if !b.cfg.ShowRemoved {
			return
		}
		for _, rc := range removed {
			if rc.After == after {
				b.addChapter(&t, rc.Chapter, overlay, true)
			}
		}
	}

	emitRemoved(-1)
	for i, ch := range d.Chapters {
		hidden := overlay != nil && overlay.Removed(ch.ID)
		if hidden && !b.cfg.ShowRemoved {
			continue
		}
		b.addChapter(&t, ch, overlay, hidden)
		emitRemoved(i)
	}
	return t
}

func (b *Builder) addChapter(t *Tree, ch doctree.Chapter, overlay Overlay, removed bool) {
	th := b.cfg.Thresholds
	label := ch.Title
	if label == "" {
		label = fmt.Sprintf("Untitled (%d)", ch.Position+1)
	}
	icon := "chapter"
	if ch.IsFallback {
		icon = "fallback"
	}
	ci := t.add(t.Root, Node{
		ID:      ch.ID,
		Label:   label,
		Type:    NodeChapter,
		Level:   1,
		Display: display(ch.Confidence, th.Chapter, icon, b.cfg.ExpandChapters),
		Removed: removed,
		Status:  status(overlay, ch.ID),
	})

	for _, p := range ch.Paragraphs {
		pi := t.add(ci, Node{
			ID:      p.ID,
			Label:   sectionLabel(p),
			Type:    NodeSection,
			Level:   2,
			Display: display(p.Confidence, th.Section, string(p.Type), false),
			Removed: removed || (overlay != nil && overlay.Removed(p.ID)),
			Status:  status(overlay, p.ID),
		})
		for si, s := range p.Sentences {
			if si >= b.cfg.PreviewSentences {
				rest := len(p.Sentences) - si
				t.add(pi, Node{
					ID:    p.ID + "-more",
					Label: fmt.Sprintf("…and %d more", rest),
					Type:  NodeMore,
					Level: 3,
					Display: Display{
						Confidence: p.Confidence,
						Icon:       "more",
					},
				})
				break
			}
			t.add(pi, Node{
				ID:      s.ID,
				Label:   s.Text,
				Type:    NodeSentence,
				Level:   3,
				Display: display(s.Confidence, th.Sentence, "sentence", false),
			})
		}
	}
}

func (t *Tree) add(parent int, n Node) int {
	n.Parent = parent
	if n.Children == nil {
		n.Children = []int{}
	}
	idx := len(t.Nodes)
	t.Nodes = append(t.Nodes, n)
	if parent >= 0 {
		t.Nodes[parent].Children = append(t.Nodes[parent].Children, idx)
	}
	return idx
}

func display(conf, threshold float64, icon string, expanded bool) Display {
	return Display{
		Confidence: conf,
		Icon:       icon,
		Expanded:   expanded,
		HasIssues:  conf < threshold,
	}
}

func status(o Overlay, id string) string {
	if o == nil {
		return ""
	}
	return o.Status(id)
}

func sectionLabel(p doctree.Paragraph) string {
	if len(p.Sentences) > 0 {
		return truncate(p.Sentences[0].Text, 48)
	}
	return truncate(p.RawText, 48)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

// Children returns the child nodes of node i.
func (t Tree) Children(i int) []Node {
	out := make([]Node, 0, len(t.Nodes[i].Children))
	for _, c := range t.Nodes[i].Children {
		out = append(out, t.Nodes[c])
	}
	return out
}

// ParentOf returns the parent of node i and false for the root.
func (t Tree) ParentOf(i int) (Node, bool) {
	p := t.Nodes[i].Parent
	if p < 0 {
		return Node{}, false
	}
	return t.Nodes[p], true
}

// Find returns the index of the node with id, or -1.
func (t Tree) Find(id string) int {
	for i, n := range t.Nodes {
		if n.ID == id {
			return i
		}
	}
	return -1
}

// Walk visits nodes depth-first from the root. Returning false skips a node's children.
func (t Tree) Walk(fn func(i int, n Node) bool) {
	if len(t.Nodes) == 0 {
		return
	}
	var visit func(i int)
	visit = func(i int) {
		if !fn(i, t.Nodes[i]) {
			return
		}
		for _, c := range t.Nodes[i].Children {
			visit(c)
		}
	}
	visit(t.Root)
}

// Issues returns the IDs of nodes flagged with issues, in depth-first order.
func (t Tree) Issues() []string {
	var out []string
	t.Walk(func(_ int, n Node) bool {
		if n.Display.HasIssues {
			out = append(out, n.ID)
		}
		return true
	})
	return out
}
