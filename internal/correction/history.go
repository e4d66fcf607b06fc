package correction

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Entry is one immutable record in a document's history.
type Entry struct {
	ID         string     `json:"id" yaml:"id"`
	Version    int        `json:"version" yaml:"version"`
	DocumentID string     `json:"document_id" yaml:"document_id"`
	Action     string     `json:"action" yaml:"action"` // apply, approve, reject
	NodeID     string     `json:"node_id,omitempty" yaml:"node_id,omitempty"`
	Correction Correction `json:"correction" yaml:"correction"`
	At         time.Time  `json:"at" yaml:"at"`
}

// Snapshot is a point-in-time copy of a document's history.
type Snapshot struct {
	DocumentID string  `json:"document_id"`
	Version    int     `json:"version"`
	Entries    []Entry `json:"entries"`
}

// History is an append-only, versioned log keyed by document identity.
type History struct {
	mu   sync.RWMutex
	logs map[string][]Entry
}

// NewHistory creates an empty History.
func NewHistory() *History {
	return &History{logs: make(map[string][]Entry)}
}

// Append records e and returns it with its ID and version assigned.
func (h *History) Append(docID string, e Entry) Entry {
	h.mu.Lock()
	defer h.mu.Unlock()
	e.DocumentID = docID
	e.Version = len(h.logs[docID]) + 1
	e.ID = newEntryID()
	if e.At.IsZero() {
		e.At = time.Now().UTC()
	}
	h.logs[docID] = append(h.logs[docID], e)
	return e
}

// Snapshot returns a copy of the log; later appends do not affect it.
func (h *History) Snapshot(docID string) Snapshot {
	h.mu.RLock()
	defer h.mu.RUnlock()
	log := h.logs[docID]
	entries := make([]Entry, len(log))
	copy(entries, log)
	return Snapshot{DocumentID: docID, Version: len(log), Entries: entries}
}

// Version returns the number of entries recorded for docID.
func (h *History) Version(docID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.logs[docID])
}

// newEntryID returns a time-ordered UUIDv7.
func newEntryID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}
