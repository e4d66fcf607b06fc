package commands

import (
	"fmt"
	"os"

	"github.com/dgallion1/docstruct/internal/correction"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var (
	correctFile string
	correctSave bool
)

// correctionFile is the on-disk format of a corrections batch.
type correctionFile struct {
	Corrections []correction.Correction `yaml:"corrections"`
}

// NewCorrectCmd creates the correct command.
func NewCorrectCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "correct FILE",
		Short: "Apply structural corrections to a document",
		Long: `Apply a YAML batch of corrections to a document and print the result.

Corrections file example:
  corrections:
    - type: adjust
      target: ch-2
      field: title
      value: "Chapter 2: The Market"
    - type: merge
      targets: [ch-3, ch-4]

With --save the applied corrections are stored as a profile and replayed
by "docstruct analyze --replay" on later runs.`,
		Args: cobra.ExactArgs(1),
		RunE: runCorrect,
	}
	cmd.Flags().StringVarP(&correctFile, "corrections", "c", "", "YAML file with corrections (required)")
	cmd.Flags().BoolVar(&correctSave, "save", false, "Save applied corrections as a profile")
	cmd.MarkFlagRequired("corrections")
	return cmd
}

func loadCorrections(path string) ([]correction.Correction, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading corrections: %w", err)
	}
	var cf correctionFile
	if err := yaml.Unmarshal(data, &cf); err != nil {
		return nil, fmt.Errorf("parsing corrections: %w", err)
	}
	if len(cf.Corrections) == 0 {
		return nil, fmt.Errorf("%s contains no corrections", path)
	}
	return cf.Corrections, nil
}

func runCorrect(cmd *cobra.Command, args []string) error {
	cs, err := loadCorrections(correctFile)
	if err != nil {
		return err
	}

	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.close()

	src, err := a.readSource(args[0])
	if err != nil {
		return err
	}
	res, err := a.analyzer.Analyze(cmd.Context(), src, a.options())
	if err != nil {
		return err
	}

	out := a.analyzer.ApplyCorrections(res.Structure, cs)
	for _, c := range out.Corrections {
		if !c.Applied {
			a.log.Warn("correction not applied", "id", c.ID, "type", c.Kind, "error", c.Error)
		}
	}
	if correctSave && out.Applied > 0 {
		saved, err := a.analyzer.Engine().Save(cmd.Context(), out.Structure.Metadata.DocumentID)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "saved %d corrections for %s\n", len(saved.Corrections), saved.DocumentID)
	}
	return writeOutput(cmd.OutOrStdout(), out)
}
