// Package confidence scores detected structure and aggregates the scores into reports.
package confidence

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"slices"
	"sort"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"
)

// Signal names.
const (
	SignalTitleClarity         = "title_clarity"
	SignalHeadingConsistency   = "heading_consistency"
	SignalLengthPlausibility   = "length_plausibility"
	SignalHierarchyConsistency = "hierarchy_consistency"

	SignalParagraphLength      = "paragraph_length"
	SignalFormattingRegularity = "formatting_regularity"
	SignalSentenceConsistency  = "sentence_consistency"

	SignalTerminator     = "terminator"
	SignalSentenceLength = "sentence_length"
	SignalCapitalization = "capitalization"

	SignalChapterAverage       = "chapter_average"
	SignalStructureConsistency = "structure_consistency"
	SignalCoverage             = "coverage"
)

var knownSignals = map[string][]string{
	"chapter":   {SignalTitleClarity, SignalHeadingConsistency, SignalLengthPlausibility, SignalHierarchyConsistency},
	"paragraph": {SignalParagraphLength, SignalFormattingRegularity, SignalSentenceConsistency},
	"sentence":  {SignalTerminator, SignalSentenceLength, SignalCapitalization},
	"document":  {SignalChapterAverage, SignalStructureConsistency, SignalCoverage},
}

// Config holds per-level signal weights. A signal missing from a map is disabled.
type Config struct {
	Chapter   map[string]float64 `yaml:"chapter" json:"chapter"`
	Paragraph map[string]float64 `yaml:"paragraph" json:"paragraph"`
	Sentence  map[string]float64 `yaml:"sentence" json:"sentence"`
	Document  map[string]float64 `yaml:"document" json:"document"`

	// FallbackCeiling caps the confidence of fallback chapters and documents.
	FallbackCeiling float64 `yaml:"fallback_ceiling" json:"fallback_ceiling"`
	// MaxChapterWords is the length above which chapters look like missed boundaries.
	MaxChapterWords int `yaml:"max_chapter_words" json:"max_chapter_words"`
}

// DefaultConfig returns the calibrated default weights.
func DefaultConfig() Config {
	return Config{
		Chapter: map[string]float64{
			SignalTitleClarity:         0.76,
			SignalHeadingConsistency:   0.08,
			SignalLengthPlausibility:   0.08,
			SignalHierarchyConsistency: 0.08,
		},
		Paragraph: map[string]float64{
			SignalParagraphLength:      0.35,
			SignalFormattingRegularity: 0.30,
			SignalSentenceConsistency:  0.35,
		},
		Sentence: map[string]float64{
			SignalTerminator:     0.40,
			SignalSentenceLength: 0.35,
			SignalCapitalization: 0.25,
		},
		Document: map[string]float64{
			SignalChapterAverage:       0.60,
			SignalStructureConsistency: 0.25,
			SignalCoverage:             0.15,
		},
		FallbackCeiling: 0.45,
		MaxChapterWords: 20000,
	}
}

// Validate rejects unknown signals, negative weights and levels with no weight at all.
func (c Config) Validate() error {
	levels := map[string]map[string]float64{
		"chapter":   c.Chapter,
		"paragraph": c.Paragraph,
		"sentence":  c.Sentence,
		"document":  c.Document,
	}
	names := make([]string, 0, len(levels))
	for name := range levels {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, level := range names {
		weights := levels[level]
		total := 0.0
		for sig, w := range weights {
			if !slices.Contains(knownSignals[level], sig) {
				return fmt.Errorf("%s: unknown signal %q", level, sig)
			}
			if w < 0 {
				return fmt.Errorf("%s: negative weight for %s: %v", level, sig, w)
			}
			total += w
		}
		if total == 0 {
			return fmt.Errorf("%s: all signal weights are zero", level)
		}
	}
	if c.FallbackCeiling <= 0 || c.FallbackCeiling >= 1 {
		return fmt.Errorf("fallback_ceiling must be in (0,1), got %v", c.FallbackCeiling)
	}
	if c.MaxChapterWords <= 0 {
		return fmt.Errorf("max_chapter_words must be positive")
	}
	return nil
}

//go:embed scoring.schema.json
var scoringSchema []byte

var compileSchema = sync.OnceValues(func() (*jsonschema.Schema, error) {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("scoring.schema.json", bytes.NewReader(scoringSchema)); err != nil {
		return nil, fmt.Errorf("load scoring schema: %w", err)
	}
	return compiler.Compile("scoring.schema.json")
})

// checkSchema validates the raw YAML document against the scoring profile
// schema, so misspelled keys fail instead of silently keeping defaults.
func checkSchema(data []byte) error {
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return err
	}
	if doc == nil {
		return nil
	}
	// Round-trip through JSON so the validator sees JSON types only.
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("scoring profile is not a JSON-compatible document: %w", err)
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return err
	}
	schema, err := compileSchema()
	if err != nil {
		return err
	}
	return schema.Validate(v)
}

// LoadConfig reads a YAML scoring profile. Keys present in the file override
// the defaults; everything else keeps its default value.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read scoring profile: %w", err)
	}
	if err := checkSchema(data); err != nil {
		return cfg, fmt.Errorf("scoring profile %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse scoring profile: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("scoring profile %s: %w", path, err)
	}
	return cfg, nil
}
