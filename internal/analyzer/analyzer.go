// Package analyzer is the entry point that turns extracted content into a
// scored, validated and optionally corrected document structure.
package analyzer

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/dgallion1/docstruct/internal/confidence"
	"github.com/dgallion1/docstruct/internal/correction"
	"github.com/dgallion1/docstruct/internal/detect"
	"github.com/dgallion1/docstruct/internal/doctree"
	"github.com/dgallion1/docstruct/internal/metrics"
	"github.com/dgallion1/docstruct/internal/navtree"
	"github.com/dgallion1/docstruct/internal/segment"
	"github.com/dgallion1/docstruct/internal/validate"
)

// Config bundles the component configurations.
type Config struct {
	Detect     detect.Config
	Segment    segment.Config
	Scoring    confidence.Config
	Tree       navtree.Config
	Validate   validate.Options
	Thresholds confidence.Thresholds
	EdgeCases  EdgeCaseConfig

	BatchConcurrency int
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Detect:           detect.DefaultConfig(),
		Segment:          segment.DefaultConfig(),
		Scoring:          confidence.DefaultConfig(),
		Tree:             navtree.DefaultConfig(),
		Validate:         validate.DefaultOptions(),
		Thresholds:       confidence.DefaultThresholds(),
		EdgeCases:        DefaultEdgeCaseConfig(),
		BatchConcurrency: 4,
	}
}

// Streaming controls chunked processing of chapter bodies.
type Streaming struct {
	Enabled    bool
	ChunkSize  int               // Bytes per chunk; defaults to 64 KiB.
	OnProgress func(pct float64) // Called after every chunk with 0-100.
}

const defaultChunkSize = 64 * 1024

// Options control one analysis call.
type Options struct {
	ConfidenceThreshold   float64 `json:"confidence_threshold"` // 0 uses the validator minimum
	DetailedConfidence    bool    `json:"detailed_confidence"`
	DetectEdgeCases       bool    `json:"detect_edge_cases"`
	ValidateStructure     bool    `json:"validate_structure"`
	GenerateTree          bool    `json:"generate_tree"`
	ApplySavedCorrections bool    `json:"apply_saved_corrections"`
	Locale                string  `json:"locale,omitempty"`

	Streaming Streaming `json:"-"`
}

// Result is the outcome of analyzing one document.
type Result struct {
	Structure      *doctree.DocumentStructure `json:"structure" yaml:"structure"`
	MeetsThreshold bool                       `json:"meets_threshold" yaml:"meets_threshold"`
	Threshold      float64                    `json:"threshold" yaml:"threshold"`
	Report         confidence.Report          `json:"report" yaml:"report"`
	Validation     *validate.Result           `json:"validation,omitempty" yaml:"validation,omitempty"`
	Tree           *navtree.Tree              `json:"tree,omitempty" yaml:"tree,omitempty"`
	EdgeCases      []EdgeCase                 `json:"edge_cases,omitempty" yaml:"edge_cases,omitempty"`
	Replayed       *correction.Result         `json:"replayed,omitempty" yaml:"replayed,omitempty"`
}

// Analyzer wires the detector, segmenter, scorer, validator, tree builder
// and correction engine together. It is safe for concurrent use.
type Analyzer struct {
	cfg      Config
	detector *detect.Detector
	seg      *segment.Segmenter
	scorer   *confidence.Scorer
	trees    *navtree.Builder
	engine   *correction.Engine
	window   *metrics.Window
	log      *slog.Logger
}

// New creates an Analyzer. A nil store keeps correction profiles in memory;
// a nil window disables latency tracking.
func New(cfg Config, store correction.ProfileStore, window *metrics.Window, log *slog.Logger) (*Analyzer, error) {
	if log == nil {
		log = slog.Default()
	}
	scorer, err := confidence.NewScorer(cfg.Scoring)
	if err != nil {
		return nil, fmt.Errorf("scoring config: %w", err)
	}
	if cfg.Thresholds == (confidence.Thresholds{}) {
		cfg.Thresholds = confidence.DefaultThresholds()
	}
	if cfg.BatchConcurrency <= 0 {
		cfg.BatchConcurrency = 4
	}
	seg := segment.New(cfg.Segment)
	return &Analyzer{
		cfg:      cfg,
		detector: detect.New(cfg.Detect),
		seg:      seg,
		scorer:   scorer,
		trees:    navtree.NewBuilder(cfg.Tree),
		engine:   correction.NewEngine(scorer, seg, store, log),
		window:   window,
		log:      log,
	}, nil
}

// Engine returns the correction engine shared by all analyses.
func (a *Analyzer) Engine() *correction.Engine { return a.engine }

// Config returns the analyzer configuration.
func (a *Analyzer) Config() Config { return a.cfg }

func (a *Analyzer) segmenterFor(locale string) *segment.Segmenter {
	if locale == "" || locale == a.cfg.Segment.Locale {
		return a.seg
	}
	cfg := a.cfg.Segment
	cfg.Locale = locale
	return segment.New(cfg)
}

// Analyze detects, segments and scores src. Data-quality problems never
// return an error: empty or unsupported input yields a zero-confidence
// structure with ProcessingErrors set. Errors are returned only for
// cancellation and profile store failures.
func (a *Analyzer) Analyze(ctx context.Context, src doctree.Source, opts Options) (Result, error) {
	col := metrics.NewCollector()
	log := a.log.With("filename", src.Filename, "format", src.Format)

	locale := opts.Locale
	if locale == "" {
		locale = src.Hints.Locale
	}
	sum := sha256.Sum256([]byte(src.Content))
	d := &doctree.DocumentStructure{
		Metadata: doctree.Metadata{
			Title:       strings.TrimSpace(src.Hints.Title),
			Filename:    src.Filename,
			Format:      src.Format,
			Locale:      locale,
			ContentHash: hex.EncodeToString(sum[:]),
		},
	}

	switch {
	case !src.Format.Valid():
		d.ProcessingErrors = append(d.ProcessingErrors, fmt.Sprintf("unsupported format %q", src.Format))
	case strings.TrimSpace(src.Content) == "":
		d.ProcessingErrors = append(d.ProcessingErrors, "content is empty")
	default:
		if err := a.build(ctx, d, src, a.segmenterFor(locale), opts.Streaming, col); err != nil {
			return Result{Structure: d}, err
		}
	}

	d.Recount()
	d.AssignIDs()
	d.Metadata.Fingerprint = correction.Fingerprint(correction.DetectedTitles(d))
	d.Metadata.DocumentID = correction.DocumentID(d.Metadata.Title, d.Metadata.Filename, d.Metadata.ContentHash)

	stop := col.Stage(metrics.StageScore)
	a.scorer.ScoreDocument(d)
	stop()
	a.checkWordCounts(d, log)

	res := Result{}
	if opts.ApplySavedCorrections && len(d.Chapters) > 0 {
		stop := col.Stage(metrics.StageReplay)
		replayed, ok, err := a.engine.Replay(ctx, d)
		stop()
		if err != nil {
			return Result{Structure: d}, fmt.Errorf("replay corrections: %w", err)
		}
		if ok {
			d = replayed.Structure
			res.Replayed = &replayed
		}
	}
	if len(d.Chapters) > 0 {
		a.engine.Track(d)
	}

	d.ProcessingMetrics.DurationMs = col.Elapsed().Milliseconds()
	d.ProcessingMetrics.StageMs = col.StageMs()
	d.ProcessingMetrics.ChunksProcessed = col.Counter("chunks")
	d.ProcessingMetrics.ContentBytes = len(src.Content)
	d.ProcessingMetrics.AnalyzedAt = time.Now().UTC()

	res.Structure = d
	res.Threshold = opts.ConfidenceThreshold
	if res.Threshold <= 0 {
		res.Threshold = a.cfg.Validate.MinConfidence
	}
	res.MeetsThreshold = d.MeetsQualityThreshold(res.Threshold)
	res.Report = confidence.GenerateReport(d, opts.DetailedConfidence, a.cfg.Thresholds)

	if opts.DetectEdgeCases {
		res.EdgeCases = DetectEdgeCases(d, a.cfg.EdgeCases)
	}
	if opts.ValidateStructure {
		stop := col.Stage(metrics.StageValidate)
		vopts := a.cfg.Validate
		vopts.MinConfidence = res.Threshold
		v := validate.Validate(d, vopts)
		stop()
		res.Validation = &v
	}
	if opts.GenerateTree {
		stop := col.Stage(metrics.StageTree)
		t := a.GenerateStructureTree(d)
		stop()
		res.Tree = &t
	}
	d.ProcessingMetrics.StageMs = col.StageMs()

	if a.window != nil {
		a.window.Record(string(src.Format), d.ProcessingMetrics.DurationMs)
	}
	log.Info("analysis complete",
		"doc_id", d.Metadata.DocumentID,
		"chapters", d.TotalChapters,
		"paragraphs", d.TotalParagraphs,
		"confidence", d.Confidence,
		"fallback", d.IsFallback,
		"duration_ms", d.ProcessingMetrics.DurationMs,
	)
	return res, nil
}

// checkWordCounts logs paragraphs whose raw text disagrees with their
// sentences. The validator reports the same condition as a warning.
func (a *Analyzer) checkWordCounts(d *doctree.DocumentStructure, log *slog.Logger) {
	for ci, ch := range d.Chapters {
		for pi, p := range ch.Paragraphs {
			if p.Type != doctree.ParagraphText {
				continue
			}
			if raw := doctree.CountWords(p.RawText); raw != p.WordCount {
				log.Warn("paragraph word count mismatch", "chapter", ci, "paragraph", pi, "raw", raw, "sentences", p.WordCount)
			}
		}
	}
}

// ValidateStructure validates d. Zero options use the configured defaults.
func (a *Analyzer) ValidateStructure(d *doctree.DocumentStructure, opts *validate.Options) validate.Result {
	o := a.cfg.Validate
	if opts != nil {
		o = *opts
	}
	return validate.Validate(d, o)
}

// ApplyCorrections applies corrections to a copy of d.
func (a *Analyzer) ApplyCorrections(d *doctree.DocumentStructure, cs []correction.Correction) correction.Result {
	return a.engine.Apply(d, cs)
}

// GenerateConfidenceReport aggregates d's scores.
func (a *Analyzer) GenerateConfidenceReport(d *doctree.DocumentStructure, detailed bool) confidence.Report {
	return confidence.GenerateReport(d, detailed, a.cfg.Thresholds)
}

// GenerateStructureTree builds the navigation tree for d, overlaid with the
// correction state of its document identity.
func (a *Analyzer) GenerateStructureTree(d *doctree.DocumentStructure) navtree.Tree {
	docID := d.Metadata.DocumentID
	if docID == "" {
		docID = correction.DocumentID(d.Metadata.Title, d.Metadata.Filename, d.Metadata.ContentHash)
	}
	sess, ok := a.engine.Lookup(docID)
	if !ok {
		return a.trees.Build(d, nil)
	}
	return a.trees.BuildWithRemoved(d, sess.Overlay(), sess.Removed())
}
