// Package commands implements the docstruct command line.
package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/dgallion1/docstruct/internal/analyzer"
	"github.com/dgallion1/docstruct/internal/config"
	"github.com/dgallion1/docstruct/internal/doctree"
	"github.com/dgallion1/docstruct/internal/parser"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// Global flags.
var (
	outputFormat string
	verbose      bool
	locale       string
)

// NewRootCmd creates the root command with all subcommands attached.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "docstruct",
		Short: "Analyze the chapter, paragraph and sentence structure of documents",
		Long: `docstruct detects chapters, segments paragraphs and sentences, and
scores how confident it is in the result.

Supported inputs: Markdown, plain text, HTML, PDF and EPUB.

Examples:
  docstruct analyze book.epub --tree
  docstruct report novel.md --detailed
  docstruct chunks novel.md --size 800 --plain
  docstruct correct novel.md --corrections fixes.yaml --save`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "yaml", "Output format: yaml or json")
	cmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log debug output to stderr")
	cmd.PersistentFlags().StringVar(&locale, "locale", "", "Sentence locale override (en, de, zh, ...)")

	cmd.AddCommand(
		NewAnalyzeCmd(),
		NewReportCmd(),
		NewTreeCmd(),
		NewValidateCmd(),
		NewChunksCmd(),
		NewCorrectCmd(),
		NewProfilesCmd(),
	)
	return cmd
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}

// app is the per-invocation wiring shared by subcommands.
type app struct {
	cfg      config.Config
	analyzer *analyzer.Analyzer
	log      *slog.Logger
	close    func()
}

func newApp(cmd *cobra.Command) (*app, error) {
	// Load .env if present.
	_ = godotenv.Load()

	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	log := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	acfg, err := cfg.Analyzer()
	if err != nil {
		return nil, err
	}
	store, closeStore, err := cfg.Profiles()
	if err != nil {
		return nil, fmt.Errorf("opening profile store: %w", err)
	}
	a, err := analyzer.New(acfg, store, nil, log)
	if err != nil {
		closeStore()
		return nil, err
	}
	return &app{cfg: cfg, analyzer: a, log: log, close: closeStore}, nil
}

// readSource parses a file from disk with the parser for its extension.
func (a *app) readSource(path string) (doctree.Source, error) {
	p, err := parser.ForFile(path, parser.Options{PDFFallbackPdftotext: a.cfg.PDFFallbackPdftotext})
	if err != nil {
		return doctree.Source{}, err
	}
	f, err := os.Open(path)
	if err != nil {
		return doctree.Source{}, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()
	src, err := p.Parse(f, path)
	if err != nil {
		return doctree.Source{}, fmt.Errorf("parsing %s: %w", path, err)
	}
	return src, nil
}

// options returns analysis options with the global locale applied.
func (a *app) options() analyzer.Options {
	return analyzer.Options{Locale: locale}
}

// writeOutput encodes v in the selected output format.
func writeOutput(w io.Writer, v any) error {
	switch outputFormat {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case "yaml", "":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		defer enc.Close()
		return enc.Encode(v)
	default:
		return fmt.Errorf("unknown output format %q (want yaml or json)", outputFormat)
	}
}
