// Package correction applies user corrections to analyzed structures, keeps an
// append-only history per document, and replays saved correction profiles.
package correction

import (
	"time"

	"github.com/dgallion1/docstruct/internal/doctree"
)

// Kind is the type of a correction.
type Kind string

const (
	KindSplit       Kind = "split"
	KindMerge       Kind = "merge"
	KindAdjust      Kind = "adjust"
	KindRecalibrate Kind = "recalibrate"
	KindMove        Kind = "move"
)

// Status is the review state of a node.
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
	StatusModified Status = "modified"
)

// Correction sources.
const (
	SourceUser         = "user"
	SourceSavedProfile = "saved-profile"
)

// Adjustable fields.
const (
	FieldTitle          = "title"
	FieldType           = "type"
	FieldIncludeInAudio = "include_in_audio"
)

// Correction is one proposed or applied change to a structure.
type Correction struct {
	ID          string   `json:"id" yaml:"id"`
	Kind        Kind     `json:"type" yaml:"type"`
	Target      string   `json:"target,omitempty" yaml:"target,omitempty"`   // Chapter or paragraph ID.
	Targets     []string `json:"targets,omitempty" yaml:"targets,omitempty"` // Merge: sibling IDs in order.
	Field       string   `json:"field,omitempty" yaml:"field,omitempty"`
	Value       string   `json:"value,omitempty" yaml:"value,omitempty"`
	Confidence  *float64 `json:"confidence,omitempty" yaml:"confidence,omitempty"`
	At          int      `json:"at,omitempty" yaml:"at,omitempty"`         // Split: first paragraph (or sentence) of the new node.
	Offset      int      `json:"offset,omitempty" yaml:"offset,omitempty"` // Move: paragraphs to shift a chapter start by.
	Description string   `json:"description,omitempty" yaml:"description,omitempty"`

	// Replay anchors, filled on apply.
	TargetTitle    string   `json:"target_title,omitempty" yaml:"target_title,omitempty"`
	TargetTitles   []string `json:"target_titles,omitempty" yaml:"target_titles,omitempty"` // Merge: chapter title per target, empty for paragraphs.
	TargetPosition int      `json:"target_position" yaml:"target_position"`

	Delta     float64   `json:"confidence_delta" yaml:"confidence_delta"`
	Applied   bool      `json:"applied" yaml:"applied"`
	Error     string    `json:"error,omitempty" yaml:"error,omitempty"`
	Source    string    `json:"source" yaml:"source"`
	Timestamp time.Time `json:"timestamp" yaml:"timestamp"`
}

// Result is the outcome of applying a batch of corrections.
type Result struct {
	Structure        *doctree.DocumentStructure `json:"structure" yaml:"structure"`
	Corrections      []Correction               `json:"corrections" yaml:"corrections"`
	Applied          int                        `json:"applied" yaml:"applied"`
	Failed           int                        `json:"failed" yaml:"failed"`
	ConfidenceBefore float64                    `json:"confidence_before" yaml:"confidence_before"`
	ConfidenceAfter  float64                    `json:"confidence_after" yaml:"confidence_after"`
	HistoryVersion   int                        `json:"history_version" yaml:"history_version"`
}
