package commands

import (
	"fmt"
	"io"
	"strings"

	"github.com/dgallion1/docstruct/internal/chunker"
	"github.com/spf13/cobra"
)

var (
	chunkSize    int
	chunkOverlap int
	chunkMin     int
	chunksPlain  bool
)

// NewChunksCmd creates the chunks command.
func NewChunksCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chunks FILE",
		Short: "Split a document into narration chunks",
		Long: `Split a document into token-bounded narration chunks.

Only paragraphs marked for audio are included. Chunks never span
chapters and paragraphs are kept whole when they fit. Saved corrections
for the document are replayed first.

Defaults come from DEFAULT_CHUNK_SIZE, DEFAULT_CHUNK_OVERLAP and MIN_CHUNK.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.close()

			src, err := a.readSource(args[0])
			if err != nil {
				return err
			}
			opts := a.options()
			opts.ApplySavedCorrections = true
			res, err := a.analyzer.Analyze(cmd.Context(), src, opts)
			if err != nil {
				return err
			}

			cfg := a.cfg.Chunker()
			flags := cmd.Flags()
			if flags.Changed("size") {
				cfg.ChunkSize = chunkSize
			}
			if flags.Changed("overlap") {
				cfg.ChunkOverlap = chunkOverlap
			}
			if flags.Changed("min-chunk") {
				cfg.MinChunk = chunkMin
			}

			chunks := chunker.ChunkDocument(res.Structure, cfg)
			a.log.Debug("chunked document", "chunks", len(chunks), "size", cfg.ChunkSize)
			if chunksPlain {
				return printChunks(cmd.OutOrStdout(), chunks)
			}
			return writeOutput(cmd.OutOrStdout(), chunks)
		},
	}
	cmd.Flags().IntVar(&chunkSize, "size", 1500, "Target chunk size in tokens")
	cmd.Flags().IntVar(&chunkOverlap, "overlap", 0, "Tokens of trailing sentences repeated in the next chunk")
	cmd.Flags().IntVar(&chunkMin, "min-chunk", 100, "Fold smaller chapter tails into the previous chunk")
	cmd.Flags().BoolVar(&chunksPlain, "plain", false, "Print chunk text with a header line per chunk")
	return cmd
}

func printChunks(w io.Writer, chunks []chunker.Chunk) error {
	for _, c := range chunks {
		if _, err := fmt.Fprintf(w, "--- %d: %s (%d tokens, %.1fs)\n%s\n\n",
			c.Index, strings.Join(c.Breadcrumb, " > "), c.Tokens, c.EstimatedDuration, c.Text); err != nil {
			return err
		}
	}
	return nil
}
