package commands

import (
	"fmt"

	"github.com/dgallion1/docstruct/internal/analyzer"
	"github.com/dgallion1/docstruct/internal/doctree"
	"github.com/spf13/cobra"
)

var (
	analyzeThreshold float64
	analyzeDetailed  bool
	analyzeEdges     bool
	analyzeValidate  bool
	analyzeTree      bool
	analyzeReplay    bool
	analyzeStream    bool
	analyzeChunkSize int
	analyzeSummary   bool
)

// NewAnalyzeCmd creates the analyze command.
func NewAnalyzeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "analyze FILE...",
		Short: "Analyze document structure",
		Long: `Detect chapters, paragraphs and sentences and score the result.

Several files are analyzed in parallel (WORKER_COUNT at a time).

Examples:
  docstruct analyze book.md
  docstruct analyze book.epub --tree --validate -o json
  docstruct analyze a.md b.md --summary`,
		Args: cobra.MinimumNArgs(1),
		RunE: runAnalyze,
	}

	cmd.Flags().Float64Var(&analyzeThreshold, "threshold", 0, "Confidence threshold (default CONFIDENCE_THRESHOLD)")
	cmd.Flags().BoolVar(&analyzeDetailed, "detailed", false, "Include per-chapter confidence in the report")
	cmd.Flags().BoolVar(&analyzeEdges, "edge-cases", false, "Detect structural edge cases")
	cmd.Flags().BoolVar(&analyzeValidate, "validate", false, "Validate the structure")
	cmd.Flags().BoolVar(&analyzeTree, "tree", false, "Include the navigation tree")
	cmd.Flags().BoolVar(&analyzeReplay, "replay", false, "Apply saved correction profiles")
	cmd.Flags().BoolVar(&analyzeStream, "stream", false, "Segment in chunks and print progress to stderr")
	cmd.Flags().IntVar(&analyzeChunkSize, "chunk-size", 0, "Streaming chunk size in bytes")
	cmd.Flags().BoolVar(&analyzeSummary, "summary", false, "Print counts and confidence instead of the full structure")

	return cmd
}

// summary is the short form of one analysis.
type summary struct {
	File           string   `json:"file" yaml:"file"`
	DocumentID     string   `json:"document_id" yaml:"document_id"`
	Chapters       int      `json:"chapters" yaml:"chapters"`
	Paragraphs     int      `json:"paragraphs" yaml:"paragraphs"`
	Sentences      int      `json:"sentences" yaml:"sentences"`
	Words          int      `json:"words" yaml:"words"`
	Confidence     float64  `json:"confidence" yaml:"confidence"`
	MeetsThreshold bool     `json:"meets_threshold" yaml:"meets_threshold"`
	Fallback       bool     `json:"fallback" yaml:"fallback"`
	Errors         []string `json:"errors,omitempty" yaml:"errors,omitempty"`
}

func summarize(file string, res analyzer.Result) summary {
	d := res.Structure
	return summary{
		File:           file,
		DocumentID:     d.Metadata.DocumentID,
		Chapters:       d.TotalChapters,
		Paragraphs:     d.TotalParagraphs,
		Sentences:      d.TotalSentences,
		Words:          d.TotalWordCount,
		Confidence:     d.Confidence,
		MeetsThreshold: res.MeetsThreshold,
		Fallback:       d.IsFallback,
		Errors:         d.ProcessingErrors,
	}
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.close()

	opts := a.options()
	opts.ConfidenceThreshold = analyzeThreshold
	opts.DetailedConfidence = analyzeDetailed
	opts.DetectEdgeCases = analyzeEdges
	opts.ValidateStructure = analyzeValidate
	opts.GenerateTree = analyzeTree
	opts.ApplySavedCorrections = analyzeReplay
	if analyzeStream {
		opts.Streaming = analyzer.Streaming{
			Enabled:   true,
			ChunkSize: analyzeChunkSize,
			OnProgress: func(pct float64) {
				fmt.Fprintf(cmd.ErrOrStderr(), "\r%5.1f%%", pct)
				if pct >= 100 {
					fmt.Fprintln(cmd.ErrOrStderr())
				}
			},
		}
	}

	sources := make([]doctree.Source, 0, len(args))
	for _, path := range args {
		src, err := a.readSource(path)
		if err != nil {
			return err
		}
		sources = append(sources, src)
	}

	var results []analyzer.Result
	if len(sources) == 1 {
		res, err := a.analyzer.Analyze(cmd.Context(), sources[0], opts)
		if err != nil {
			return err
		}
		results = []analyzer.Result{res}
	} else {
		results, err = a.analyzer.AnalyzeBatch(cmd.Context(), sources, opts)
		if err != nil {
			return err
		}
	}

	if analyzeSummary {
		out := make([]summary, len(results))
		for i, res := range results {
			out[i] = summarize(args[i], res)
		}
		if len(out) == 1 {
			return writeOutput(cmd.OutOrStdout(), out[0])
		}
		return writeOutput(cmd.OutOrStdout(), out)
	}
	if len(results) == 1 {
		return writeOutput(cmd.OutOrStdout(), results[0])
	}
	return writeOutput(cmd.OutOrStdout(), results)
}
