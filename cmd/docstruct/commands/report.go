package commands

import (
	"fmt"
	"io"
	"strings"

	"github.com/dgallion1/docstruct/internal/navtree"
	"github.com/spf13/cobra"
)

var (
	reportDetailed bool
	treePlain      bool
	validateStrict bool
)

// NewReportCmd creates the report command.
func NewReportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report FILE",
		Short: "Print the confidence report for a document",
		Args:  cobra.ExactArgs(1),
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
			res, err := a.analyzer.Analyze(cmd.Context(), src, a.options())
			if err != nil {
				return err
			}
			return writeOutput(cmd.OutOrStdout(), a.analyzer.GenerateConfidenceReport(res.Structure, reportDetailed))
		},
	}
	cmd.Flags().BoolVar(&reportDetailed, "detailed", false, "Include per-chapter scores and signals")
	return cmd
}

// NewTreeCmd creates the tree command.
func NewTreeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tree FILE",
		Short: "Print the navigation tree for a document",
		Args:  cobra.ExactArgs(1),
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
			res, err := a.analyzer.Analyze(cmd.Context(), src, a.options())
			if err != nil {
				return err
			}
			tree := a.analyzer.GenerateStructureTree(res.Structure)
			if treePlain {
				return printTree(cmd.OutOrStdout(), tree)
			}
			return writeOutput(cmd.OutOrStdout(), tree)
		},
	}
	cmd.Flags().BoolVar(&treePlain, "plain", false, "Print an indented outline instead of structured output")
	return cmd
}

// NewValidateCmd creates the validate command.
func NewValidateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate FILE",
		Short: "Validate the detected structure of a document",
		Long: `Validate the detected structure of a document.

With --strict the command fails when the structure is invalid.`,
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
			res, err := a.analyzer.Analyze(cmd.Context(), src, a.options())
			if err != nil {
				return err
			}
			v := a.analyzer.ValidateStructure(res.Structure, nil)
			if err := writeOutput(cmd.OutOrStdout(), v); err != nil {
				return err
			}
			if validateStrict && !v.IsValid {
				return fmt.Errorf("structure is invalid: %d errors", len(v.Errors))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&validateStrict, "strict", false, "Exit with an error when validation fails")
	return cmd
}

// printTree writes one line per node, indented by depth. Flagged nodes get a "!".
func printTree(w io.Writer, t navtree.Tree) error {
	if len(t.Nodes) == 0 {
		return nil
	}
	var walk func(i, depth int) error
	walk = func(i, depth int) error {
		n := t.Nodes[i]
		mark := " "
		if n.Display.HasIssues {
			mark = "!"
		}
		if _, err := fmt.Fprintf(w, "%s%s %s (%.2f)\n", strings.Repeat("  ", depth), mark, n.Label, n.Display.Confidence); err != nil {
			return err
		}
		for _, c := range n.Children {
			if err := walk(c, depth+1); err != nil {
				return err
			}
		}
		return nil
	}
	return walk(t.Root, 0)
}
