package correction

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/dgallion1/docstruct/internal/confidence"
	"github.com/dgallion1/docstruct/internal/doctree"
	"github.com/dgallion1/docstruct/internal/navtree"
	"github.com/dgallion1/docstruct/internal/segment"
	"github.com/google/uuid"
)

// Session holds the correction state of one document identity.
type Session struct {
	DocumentID string

	mu      sync.Mutex
	overlay *Overlay
	base    *doctree.DocumentStructure // structure as first seen, before corrections
	current *doctree.DocumentStructure
	removed []navtree.RemovedChapter
	applied []Correction
}

// Overlay returns the session's node-state overlay.
func (s *Session) Overlay() *Overlay { return s.overlay }

// Current returns a copy of the latest corrected structure, or nil.
func (s *Session) Current() *doctree.DocumentStructure {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current.Clone()
}

// Removed returns merged-away chapters for display.
func (s *Session) Removed() []navtree.RemovedChapter {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]navtree.RemovedChapter(nil), s.removed...)
}

// Corrections returns the successfully applied corrections in order.
func (s *Session) Corrections() []Correction {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Correction(nil), s.applied...)
}

// Engine applies corrections and manages sessions, history and profiles.
type Engine struct {
	scorer  *confidence.Scorer
	seg     *segment.Segmenter
	store   ProfileStore
	history *History
	log     *slog.Logger

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewEngine creates an Engine. A nil store keeps profiles in memory.
func NewEngine(scorer *confidence.Scorer, seg *segment.Segmenter, store ProfileStore, log *slog.Logger) *Engine {
	if store == nil {
		store = NewMemoryStore()
	}
	if log == nil {
		log = slog.Default()
	}
	return &Engine{
		scorer:   scorer,
		seg:      seg,
		store:    store,
		history:  NewHistory(),
		log:      log,
		sessions: make(map[string]*Session),
	}
}

// Session returns the session for docID, creating it if needed.
func (e *Engine) Session(docID string) *Session {
	e.mu.Lock()
	defer e.mu.Unlock()
	s, ok := e.sessions[docID]
	if !ok {
		s = &Session{DocumentID: docID, overlay: NewOverlay()}
		e.sessions[docID] = s
	}
	return s
}

// Lookup returns the session for docID if one exists.
func (e *Engine) Lookup(docID string) (*Session, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	s, ok := e.sessions[docID]
	return s, ok
}

// Track records d as the latest analysis of its document so its nodes can be
// reviewed before any correction is applied. A session that already holds
// corrected state keeps it.
func (e *Engine) Track(d *doctree.DocumentStructure) {
	sess := e.Session(identity(d))
	sess.mu.Lock()
	defer sess.mu.Unlock()
	if sess.base == nil {
		sess.base = d.Clone()
	}
	if sess.current == nil {
		sess.current = d.Clone()
	}
}

// History returns a snapshot of docID's correction history.
func (e *Engine) History(docID string) Snapshot {
	return e.history.Snapshot(docID)
}

// Store returns the profile store.
func (e *Engine) Store() ProfileStore { return e.store }

func identity(d *doctree.DocumentStructure) string {
	if d.Metadata.DocumentID != "" {
		return d.Metadata.DocumentID
	}
	return DocumentID(d.Metadata.Title, d.Metadata.Filename, d.Metadata.ContentHash)
}

// Apply applies corrections in order to a copy of d. A correction that
// cannot be applied is marked with its error and the rest still run.
func (e *Engine) Apply(d *doctree.DocumentStructure, corrections []Correction) Result {
	return e.apply(d, corrections, SourceUser)
}

func (e *Engine) apply(d *doctree.DocumentStructure, corrections []Correction, source string) Result {
	docID := identity(d)
	log := e.log.With("doc_id", docID)
	sess := e.Session(docID)
	sess.mu.Lock()
	defer sess.mu.Unlock()

	work := d.Clone()
	work.Metadata.DocumentID = docID
	work.AssignIDs()
	if sess.base == nil {
		sess.base = work.Clone()
	}
	if source == SourceSavedProfile {
		// A replay starts over from a fresh analysis.
		sess.applied, sess.removed = nil, nil
	}

	res := Result{ConfidenceBefore: d.Confidence}
	for _, c := range corrections {
		if c.ID == "" {
			c.ID = uuid.NewString()
		}
		if c.Source == "" {
			c.Source = source
		}
		if c.Timestamp.IsZero() {
			c.Timestamp = time.Now().UTC()
		}
		c.Applied, c.Error, c.Delta = false, "", 0

		next := work.Clone()
		if err := e.applyOne(next, sess, &c); err != nil {
			c.Error = err.Error()
			res.Failed++
			log.Warn("correction rejected", "kind", c.Kind, "target", c.Target, "error", err)
		} else {
			e.finish(next)
			c.Applied = true
			c.Delta = math.Round((next.Confidence-work.Confidence)*1000) / 1000
			work = next
			res.Applied++
			sess.applied = append(sess.applied, c)
			log.Info("correction applied", "kind", c.Kind, "target", c.Target, "source", c.Source, "delta", c.Delta)
		}

		node := c.Target
		if node == "" && len(c.Targets) > 0 {
			node = c.Targets[0]
		}
		e.history.Append(docID, Entry{Action: "apply", NodeID: node, Correction: c, At: c.Timestamp})
		res.Corrections = append(res.Corrections, c)
	}

	sess.current = work
	res.Structure = work
	res.ConfidenceAfter = work.Confidence
	res.HistoryVersion = e.history.Version(docID)
	return res
}

// finish re-derives counts, IDs and confidence after a structural change.
func (e *Engine) finish(d *doctree.DocumentStructure) {
	d.Recount()
	d.AssignIDs()
	if e.scorer != nil {
		e.scorer.ScoreDocument(d)
	}
}

func (e *Engine) applyOne(d *doctree.DocumentStructure, sess *Session, c *Correction) error {
	if ci := chapterIndex(d, c.Target); ci >= 0 {
		c.TargetTitle = d.Chapters[ci].Title
		c.TargetPosition = ci
	}
	if len(c.Targets) > 0 {
		c.TargetTitles = make([]string, len(c.Targets))
		for i, id := range c.Targets {
			if ci := chapterIndex(d, id); ci >= 0 {
				c.TargetTitles[i] = d.Chapters[ci].Title
			}
		}
	}
	switch c.Kind {
	case KindAdjust:
		return e.adjust(d, sess, c)
	case KindRecalibrate:
		return recalibrate(d, sess, c)
	case KindMerge:
		return e.merge(d, sess, c)
	case KindSplit:
		return e.split(d, sess, c)
	case KindMove:
		return move(d, sess, c)
	default:
		return fmt.Errorf("unknown correction type %q", c.Kind)
	}
}

func mark(p *doctree.Provenance, source string) *doctree.Provenance {
	if p == nil {
		p = &doctree.Provenance{}
	}
	p.Applied = true
	p.Source = source
	return p
}

func (e *Engine) adjust(d *doctree.DocumentStructure, sess *Session, c *Correction) error {
	field := c.Field
	if field == "" {
		field = FieldTitle
	}
	if ci := chapterIndex(d, c.Target); ci >= 0 {
		if field != FieldTitle {
			return fmt.Errorf("chapters only support %q adjustments, got %q", FieldTitle, field)
		}
		title := strings.TrimSpace(c.Value)
		if title == "" {
			return errors.New("title must not be empty")
		}
		ch := &d.Chapters[ci]
		prev := ch.Title
		ch.Correction = mark(ch.Correction, c.Source)
		if ch.Correction.OriginalTitle == "" {
			ch.Correction.OriginalTitle = prev
		}
		ch.Title = title
		sess.overlay.Update(ch.ID, func(s *NodeState) {
			s.Status = StatusModified
			s.CorrectionApplied = true
			s.CorrectionSource = c.Source
			if s.OriginalValue == "" {
				s.OriginalValue = prev
			}
			s.Value = title
		})
		return nil
	}

	ci, pi := paragraphIndex(d, c.Target)
	if ci < 0 {
		return fmt.Errorf("target %q not found", c.Target)
	}
	p := &d.Chapters[ci].Paragraphs[pi]
	prev := ""
	switch field {
	case FieldType:
		t := doctree.ParagraphType(c.Value)
		if !validType(t) {
			return fmt.Errorf("unknown paragraph type %q", c.Value)
		}
		prev = string(p.Type)
		p.Type = t
		p.IncludeInAudio = t != doctree.ParagraphCode && t != doctree.ParagraphTable
	case FieldIncludeInAudio:
		v, err := strconv.ParseBool(c.Value)
		if err != nil {
			return fmt.Errorf("include_in_audio: %w", err)
		}
		prev = strconv.FormatBool(p.IncludeInAudio)
		p.IncludeInAudio = v
	default:
		return fmt.Errorf("paragraphs do not support %q adjustments", field)
	}
	p.Correction = mark(p.Correction, c.Source)
	sess.overlay.Update(p.ID, func(s *NodeState) {
		s.Status = StatusModified
		s.CorrectionApplied = true
		s.CorrectionSource = c.Source
		s.OriginalValue = prev
		s.Value = c.Value
	})
	return nil
}

func validType(t doctree.ParagraphType) bool {
	switch t {
	case doctree.ParagraphText, doctree.ParagraphCode, doctree.ParagraphQuote,
		doctree.ParagraphList, doctree.ParagraphTable, doctree.ParagraphHeading:
		return true
	}
	return false
}

func recalibrate(d *doctree.DocumentStructure, sess *Session, c *Correction) error {
	if c.Confidence == nil {
		return errors.New("recalibrate requires a confidence value")
	}
	v := *c.Confidence
	if math.IsNaN(v) || v < 0 || v > 1 {
		return fmt.Errorf("confidence %v outside [0,1]", v)
	}

	var prov **doctree.Provenance
	var detected float64
	var id string
	if ci := chapterIndex(d, c.Target); ci >= 0 {
		ch := &d.Chapters[ci]
		prov, detected, id = &ch.Correction, ch.Confidence, ch.ID
	} else if ci, pi := paragraphIndex(d, c.Target); ci >= 0 {
		p := &d.Chapters[ci].Paragraphs[pi]
		prov, detected, id = &p.Correction, p.Confidence, p.ID
	} else {
		return fmt.Errorf("target %q not found", c.Target)
	}

	p := mark(*prov, c.Source)
	if p.DetectedConfidence == nil {
		p.DetectedConfidence = &detected
	}
	user := v
	p.UserConfidence = &user
	*prov = p

	sess.overlay.Update(id, func(s *NodeState) {
		s.Status = StatusModified
		s.CorrectionApplied = true
		s.CorrectionSource = c.Source
		if s.DetectedConfidence == nil {
			s.DetectedConfidence = &detected
		}
		s.UserConfidence = &user
	})
	return nil
}

func (e *Engine) merge(d *doctree.DocumentStructure, sess *Session, c *Correction) error {
	if len(c.Targets) < 2 {
		return errors.New("merge requires at least two targets")
	}

	chapters := make([]int, 0, len(c.Targets))
	for _, id := range c.Targets {
		if ci := chapterIndex(d, id); ci >= 0 {
			chapters = append(chapters, ci)
		}
	}
	if len(chapters) == len(c.Targets) {
		if !consecutive(chapters) {
			return errors.New("merge targets must be adjacent sibling chapters in order")
		}
		return mergeChapters(d, sess, c, chapters[0], chapters[len(chapters)-1])
	}
	if len(chapters) > 0 {
		return errors.New("merge targets must all be chapters or all be paragraphs")
	}

	owner := -1
	paras := make([]int, 0, len(c.Targets))
	for _, id := range c.Targets {
		ci, pi := paragraphIndex(d, id)
		if ci < 0 {
			return fmt.Errorf("target %q not found", id)
		}
		if owner >= 0 && ci != owner {
			return errors.New("merge targets must be sibling paragraphs of one chapter")
		}
		owner = ci
		paras = append(paras, pi)
	}
	if !consecutive(paras) {
		return errors.New("merge targets must be adjacent sibling paragraphs in order")
	}
	return e.mergeParagraphs(d, sess, c, owner, paras[0], paras[len(paras)-1])
}

func consecutive(idx []int) bool {
	for i := 1; i < len(idx); i++ {
		if idx[i] != idx[i-1]+1 {
			return false
		}
	}
	return true
}

func mergeChapters(d *doctree.DocumentStructure, sess *Session, c *Correction, from, to int) error {
	first, last := d.Chapters[from], d.Chapters[to]
	merged := first.Clone()
	merged.ID = uniqueID(d, first.ID+"-m")
	if v := strings.TrimSpace(c.Value); v != "" {
		merged.Title = v
	}
	merged.EndPosition = last.EndPosition
	merged.Source = doctree.DetectionManual
	merged.IsFallback = false
	for i := from + 1; i <= to; i++ {
		merged.Paragraphs = append(merged.Paragraphs, d.Chapters[i].Clone().Paragraphs...)
		merged.DetectedScore = math.Max(merged.DetectedScore, d.Chapters[i].DetectedScore)
	}
	merged.Correction = mark(merged.Correction, c.Source)
	merged.Correction.IsManualOverride = true
	if merged.Correction.OriginalTitle == "" {
		merged.Correction.OriginalTitle = first.Title
	}

	originals := append([]doctree.Chapter(nil), d.Chapters[from:to+1]...)
	rest := append([]doctree.Chapter{merged}, d.Chapters[to+1:]...)
	d.Chapters = append(d.Chapters[:from], rest...)

	for _, o := range originals {
		sess.overlay.Update(o.ID, func(s *NodeState) {
			s.Status = StatusModified
			s.Removed = true
			s.MergedInto = merged.ID
			s.CorrectionApplied = true
			s.CorrectionSource = c.Source
		})
		sess.removed = append(sess.removed, navtree.RemovedChapter{Chapter: o, After: from})
	}
	sess.overlay.Update(merged.ID, func(s *NodeState) {
		s.Status = StatusModified
		s.IsManualOverride = true
		s.CorrectionApplied = true
		s.CorrectionSource = c.Source
		s.Value = merged.Title
	})
	return nil
}

func (e *Engine) mergeParagraphs(d *doctree.DocumentStructure, sess *Session, c *Correction, ci, from, to int) error {
	ch := &d.Chapters[ci]
	texts := make([]string, 0, to-from+1)
	for i := from; i <= to; i++ {
		texts = append(texts, ch.Paragraphs[i].RawText)
	}
	first := ch.Paragraphs[from]
	merged := e.seg.Paragraph(segment.Block{Text: strings.Join(texts, "\n\n")}, first.StartOffset)
	merged.ID = uniqueID(d, first.ID+"-m")
	merged.ResetSentenceIDs()
	merged.Correction = mark(nil, c.Source)
	merged.Correction.IsManualOverride = true

	originals := append([]doctree.Paragraph(nil), ch.Paragraphs[from:to+1]...)
	rest := append([]doctree.Paragraph{merged}, ch.Paragraphs[to+1:]...)
	ch.Paragraphs = append(ch.Paragraphs[:from], rest...)

	for _, o := range originals {
		sess.overlay.Update(o.ID, func(s *NodeState) {
			s.Status = StatusModified
			s.Removed = true
			s.MergedInto = merged.ID
		})
	}
	sess.overlay.Update(merged.ID, func(s *NodeState) {
		s.Status = StatusModified
		s.IsManualOverride = true
		s.CorrectionApplied = true
		s.CorrectionSource = c.Source
	})
	return nil
}

func (e *Engine) split(d *doctree.DocumentStructure, sess *Session, c *Correction) error {
	if ci := chapterIndex(d, c.Target); ci >= 0 {
		ch := &d.Chapters[ci]
		k := c.At
		if k < 1 || k >= len(ch.Paragraphs) {
			return fmt.Errorf("split point %d must fall inside the chapter's %d paragraphs", k, len(ch.Paragraphs))
		}
		boundary := ch.Paragraphs[k].StartOffset
		if boundary <= ch.StartPosition || boundary >= ch.EndPosition {
			return fmt.Errorf("split offset %d outside chapter range [%d,%d)", boundary, ch.StartPosition, ch.EndPosition)
		}
		next := doctree.Chapter{
			ID:            uniqueID(d, ch.ID+"-s"),
			Title:         strings.TrimSpace(c.Value),
			Level:         ch.Level,
			Paragraphs:    append([]doctree.Paragraph(nil), ch.Paragraphs[k:]...),
			StartPosition: boundary,
			EndPosition:   ch.EndPosition,
			Source:        doctree.DetectionManual,
			DetectedScore: 1,
			Correction:    &doctree.Provenance{Applied: true, Source: c.Source, IsManualOverride: true},
		}
		ch.Paragraphs = ch.Paragraphs[:k]
		ch.EndPosition = boundary
		ch.Correction = mark(ch.Correction, c.Source)

		d.Chapters = append(d.Chapters[:ci+1], append([]doctree.Chapter{next}, d.Chapters[ci+1:]...)...)

		sess.overlay.Update(ch.ID, func(s *NodeState) {
			s.Status = StatusModified
			s.CorrectionApplied = true
			s.CorrectionSource = c.Source
		})
		sess.overlay.Update(next.ID, func(s *NodeState) {
			s.Status = StatusModified
			s.IsManualOverride = true
			s.CorrectionApplied = true
			s.CorrectionSource = c.Source
			s.Value = next.Title
		})
		return nil
	}

	ci, pi := paragraphIndex(d, c.Target)
	if ci < 0 {
		return fmt.Errorf("target %q not found", c.Target)
	}
	ch := &d.Chapters[ci]
	p := ch.Paragraphs[pi]
	k := c.At
	if k < 1 || k >= len(p.Sentences) {
		return fmt.Errorf("split point %d must fall inside the paragraph's %d sentences", k, len(p.Sentences))
	}
	if p.Sentences[k].CharRange == nil {
		return errors.New("paragraph has no sentence offsets to split at")
	}
	cut := p.Sentences[k].CharRange.Start
	head := e.seg.Paragraph(segment.Block{Text: strings.TrimRight(p.RawText[:cut], " \t\r\n")}, p.StartOffset)
	tail := e.seg.Paragraph(segment.Block{Text: p.RawText[cut:]}, p.StartOffset+cut)
	head.ID = p.ID
	head.ResetSentenceIDs()
	head.Correction = mark(p.Correction, c.Source)
	tail.ID = uniqueID(d, p.ID+"-s")
	tail.ResetSentenceIDs()
	tail.Correction = &doctree.Provenance{Applied: true, Source: c.Source, IsManualOverride: true}

	paras := append([]doctree.Paragraph(nil), ch.Paragraphs[:pi]...)
	paras = append(paras, head, tail)
	ch.Paragraphs = append(paras, ch.Paragraphs[pi+1:]...)

	sess.overlay.Update(head.ID, func(s *NodeState) {
		s.Status = StatusModified
		s.CorrectionApplied = true
		s.CorrectionSource = c.Source
	})
	sess.overlay.Update(tail.ID, func(s *NodeState) {
		s.Status = StatusModified
		s.IsManualOverride = true
		s.CorrectionApplied = true
		s.CorrectionSource = c.Source
	})
	return nil
}

// move shifts the start of the target chapter by Offset paragraphs:
// negative pulls paragraphs from the previous chapter, positive hands them back.
func move(d *doctree.DocumentStructure, sess *Session, c *Correction) error {
	ci := chapterIndex(d, c.Target)
	if ci < 0 {
		return fmt.Errorf("chapter %q not found", c.Target)
	}
	if ci == 0 {
		return errors.New("cannot move the start of the first chapter")
	}
	if c.Offset == 0 {
		return errors.New("move offset must not be zero")
	}
	prev, ch := &d.Chapters[ci-1], &d.Chapters[ci]

	if c.Offset < 0 {
		n := -c.Offset
		if n >= len(prev.Paragraphs) {
			return fmt.Errorf("cannot move %d paragraphs out of a chapter with %d", n, len(prev.Paragraphs))
		}
		cut := len(prev.Paragraphs) - n
		moved := append([]doctree.Paragraph(nil), prev.Paragraphs[cut:]...)
		ch.Paragraphs = append(moved, ch.Paragraphs...)
		prev.Paragraphs = prev.Paragraphs[:cut]
	} else {
		n := c.Offset
		if n >= len(ch.Paragraphs) {
			return fmt.Errorf("cannot move %d paragraphs out of a chapter with %d", n, len(ch.Paragraphs))
		}
		prev.Paragraphs = append(prev.Paragraphs, ch.Paragraphs[:n]...)
		ch.Paragraphs = append([]doctree.Paragraph(nil), ch.Paragraphs[n:]...)
	}

	boundary := ch.Paragraphs[0].StartOffset
	if boundary > prev.StartPosition && boundary < ch.EndPosition {
		ch.StartPosition = boundary
		prev.EndPosition = boundary
	}
	ch.Correction = mark(ch.Correction, c.Source)
	prev.Correction = mark(prev.Correction, c.Source)
	for _, id := range []string{prev.ID, ch.ID} {
		sess.overlay.Update(id, func(s *NodeState) {
			s.Status = StatusModified
			s.CorrectionApplied = true
			s.CorrectionSource = c.Source
		})
	}
	return nil
}

// Review moves a node to approved or rejected and records it in the history.
func (e *Engine) Review(docID, nodeID string, status Status) error {
	if status != StatusApproved && status != StatusRejected {
		return fmt.Errorf("review status must be approved or rejected, got %q", status)
	}
	sess, ok := e.Lookup(docID)
	if !ok {
		return fmt.Errorf("%w %q: document %s has no analysis", ErrUnknownNode, nodeID, docID)
	}
	sess.mu.Lock()
	known := hasNode(sess.current, nodeID) || hasNode(sess.base, nodeID)
	sess.mu.Unlock()
	if !known {
		return fmt.Errorf("%w %q in document %s", ErrUnknownNode, nodeID, docID)
	}
	sess.overlay.Update(nodeID, func(s *NodeState) { s.Status = status })
	action := "approve"
	if status == StatusRejected {
		action = "reject"
	}
	e.history.Append(docID, Entry{Action: action, NodeID: nodeID})
	e.log.Info("node reviewed", "doc_id", docID, "node_id", nodeID, "status", status)
	return nil
}

// Approve marks a node approved.
func (e *Engine) Approve(docID, nodeID string) error { return e.Review(docID, nodeID, StatusApproved) }

// Reject marks a node rejected.
func (e *Engine) Reject(docID, nodeID string) error { return e.Review(docID, nodeID, StatusRejected) }

// Save persists the session's applied corrections as a profile.
func (e *Engine) Save(ctx context.Context, docID string) (SavedCorrections, error) {
	sess, ok := e.Lookup(docID)
	if !ok {
		return SavedCorrections{}, fmt.Errorf("%w for %s", ErrNoCorrections, docID)
	}
	sess.mu.Lock()
	p := SavedCorrections{
		DocumentID:  docID,
		Corrections: append([]Correction(nil), sess.applied...),
		SavedAt:     time.Now().UTC(),
	}
	if sess.base != nil {
		p.Patterns = PatternsFor(sess.base)
	}
	sess.mu.Unlock()

	if len(p.Corrections) == 0 {
		return p, fmt.Errorf("%w for %s", ErrNoCorrections, docID)
	}
	if err := e.store.Save(ctx, p); err != nil {
		return p, fmt.Errorf("save profile %s: %w", docID, err)
	}
	e.log.Info("correction profile saved", "doc_id", docID, "corrections", len(p.Corrections))
	return p, nil
}

// FindProfile returns the saved profile that matches d, by identity first and
// then by fingerprint across all profiles.
func (e *Engine) FindProfile(ctx context.Context, d *doctree.DocumentStructure) (SavedCorrections, error) {
	p, err := e.store.Load(ctx, identity(d))
	if err == nil && p.Patterns.Matches(d) {
		return p, nil
	}
	if err != nil && !errors.Is(err, ErrProfileNotFound) {
		return p, err
	}

	fp := Fingerprint(DetectedTitles(d))
	ids, err := e.store.List(ctx)
	if err != nil {
		return SavedCorrections{}, err
	}
	for _, id := range ids {
		cand, err := e.store.Load(ctx, id)
		if err != nil {
			continue
		}
		if cand.Patterns.Fingerprint == fp {
			return cand, nil
		}
	}
	return SavedCorrections{}, ErrProfileNotFound
}

// Replay applies a matching saved profile to d. It reports false when no
// profile matches.
func (e *Engine) Replay(ctx context.Context, d *doctree.DocumentStructure) (Result, bool, error) {
	p, err := e.FindProfile(ctx, d)
	if errors.Is(err, ErrProfileNotFound) {
		return Result{Structure: d}, false, nil
	}
	if err != nil {
		return Result{Structure: d}, false, fmt.Errorf("load profile: %w", err)
	}

	work := d.Clone()
	work.AssignIDs()
	replay := make([]Correction, 0, len(p.Corrections))
	for _, c := range p.Corrections {
		c.ID = ""
		c.Timestamp = time.Time{}
		c.Source = SourceSavedProfile
		resolveTarget(work, &c)
		replay = append(replay, c)
	}
	res := e.apply(work, replay, SourceSavedProfile)
	e.log.Info("correction profile replayed", "doc_id", identity(d), "profile", p.DocumentID, "applied", res.Applied, "failed", res.Failed)
	return res, true, nil
}

// resolveTarget re-anchors chapter corrections by their recorded titles when
// the saved IDs no longer point at those chapters.
func resolveTarget(d *doctree.DocumentStructure, c *Correction) {
	if c.Target != "" && c.TargetTitle != "" {
		c.Target = anchorChapter(d, c.Target, c.TargetTitle, 0)
	}
	if len(c.TargetTitles) != len(c.Targets) {
		return
	}
	targets := make([]string, len(c.Targets))
	from := 0
	for i, id := range c.Targets {
		targets[i] = id
		if c.TargetTitles[i] == "" {
			continue
		}
		targets[i] = anchorChapter(d, id, c.TargetTitles[i], from)
		if ci := chapterIndex(d, targets[i]); ci >= 0 {
			from = ci + 1
		}
	}
	c.Targets = targets
}

// anchorChapter returns id when it still names a chapter titled title.
// Otherwise it returns the first chapter at or after index from with that
// title, or id unchanged when none matches.
func anchorChapter(d *doctree.DocumentStructure, id, title string, from int) string {
	want := normalizeTitle(title)
	if ci := chapterIndex(d, id); ci >= from && normalizeTitle(d.Chapters[ci].Title) == want {
		return id
	}
	for i := from; i < len(d.Chapters); i++ {
		if normalizeTitle(d.Chapters[i].Title) == want {
			return d.Chapters[i].ID
		}
	}
	return id
}

func hasNode(d *doctree.DocumentStructure, id string) bool {
	if d == nil {
		return false
	}
	for _, ch := range d.Chapters {
		if ch.ID == id {
			return true
		}
		for _, p := range ch.Paragraphs {
			if p.ID == id {
				return true
			}
			for _, s := range p.Sentences {
				if s.ID == id {
					return true
				}
			}
		}
	}
	return false
}

func chapterIndex(d *doctree.DocumentStructure, id string) int {
	if id == "" {
		return -1
	}
	for i, ch := range d.Chapters {
		if ch.ID == id {
			return i
		}
	}
	return -1
}

func paragraphIndex(d *doctree.DocumentStructure, id string) (int, int) {
	if id == "" {
		return -1, -1
	}
	for ci, ch := range d.Chapters {
		for pi, p := range ch.Paragraphs {
			if p.ID == id {
				return ci, pi
			}
		}
	}
	return -1, -1
}

// uniqueID returns base, or base with a numeric suffix, unused by any chapter or paragraph.
func uniqueID(d *doctree.DocumentStructure, base string) string {
	used := map[string]bool{}
	for _, ch := range d.Chapters {
		used[ch.ID] = true
		for _, p := range ch.Paragraphs {
			used[p.ID] = true
		}
	}
	id := base
	for n := 2; used[id]; n++ {
		id = fmt.Sprintf("%s%d", base, n)
	}
	return id
}
