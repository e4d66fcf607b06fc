package correction

import (
	"sync"
	"time"
)

// NodeState is the correction state of one node, kept outside the structure.
type NodeState struct {
	Status             Status    `json:"status"`
	Removed            bool      `json:"removed"`
	MergedInto         string    `json:"merged_into,omitempty"`
	IsManualOverride   bool      `json:"is_manual_override"`
	CorrectionApplied  bool      `json:"correction_applied"`
	CorrectionSource   string    `json:"correction_source,omitempty"`
	OriginalValue      string    `json:"original_value,omitempty"`
	Value              string    `json:"value,omitempty"`
	DetectedConfidence *float64  `json:"detected_confidence,omitempty"`
	UserConfidence     *float64  `json:"user_confidence,omitempty"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// Overlay maps node IDs to correction state. Writes to the same node are last-write-wins.
type Overlay struct {
	mu    sync.RWMutex
	nodes map[string]NodeState
}

// NewOverlay creates an empty Overlay.
func NewOverlay() *Overlay {
	return &Overlay{nodes: make(map[string]NodeState)}
}

// Get returns the state of id. Unknown nodes are pending.
func (o *Overlay) Get(id string) NodeState {
	o.mu.RLock()
	defer o.mu.RUnlock()
	if s, ok := o.nodes[id]; ok {
		return s
	}
	return NodeState{Status: StatusPending}
}

// Update applies fn to the state of id.
func (o *Overlay) Update(id string, fn func(*NodeState)) {
	o.mu.Lock()
	defer o.mu.Unlock()
	s, ok := o.nodes[id]
	if !ok {
		s = NodeState{Status: StatusPending}
	}
	fn(&s)
	s.UpdatedAt = time.Now().UTC()
	o.nodes[id] = s
}

// Removed reports whether id was merged away.
func (o *Overlay) Removed(id string) bool {
	return o.Get(id).Removed
}

// Status returns the review status of id, or "" for untouched nodes.
func (o *Overlay) Status(id string) string {
	o.mu.RLock()
	defer o.mu.RUnlock()
	if s, ok := o.nodes[id]; ok {
		return string(s.Status)
	}
	return ""
}

// States returns a copy of every tracked node state.
func (o *Overlay) States() map[string]NodeState {
	o.mu.RLock()
	defer o.mu.RUnlock()
	out := make(map[string]NodeState, len(o.nodes))
	for k, v := range o.nodes {
		out[k] = v
	}
	return out
}
