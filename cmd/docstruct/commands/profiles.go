package commands

import (
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/dgallion1/docstruct/internal/correction"
	"github.com/spf13/cobra"
)

// NewProfilesCmd creates the profiles command.
func NewProfilesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "profiles [DOCUMENT_ID]",
		Short: "List saved correction profiles, or show one",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runProfiles,
	}
	return cmd
}

func runProfiles(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.close()

	store := a.analyzer.Engine().Store()
	if len(args) == 1 {
		p, err := store.Load(cmd.Context(), args[0])
		if errors.Is(err, correction.ErrProfileNotFound) {
			return fmt.Errorf("no profile saved for %s", args[0])
		}
		if err != nil {
			return err
		}
		return writeOutput(cmd.OutOrStdout(), p)
	}

	ids, err := store.List(cmd.Context())
	if err != nil {
		return fmt.Errorf("listing profiles: %w", err)
	}
	if len(ids) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No saved profiles.")
		return nil
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "DOCUMENT\tCORRECTIONS\tSAVED")
	for _, id := range ids {
		p, err := store.Load(cmd.Context(), id)
		if err != nil {
			fmt.Fprintf(w, "%s\t?\t%v\n", id, err)
			continue
		}
		fmt.Fprintf(w, "%s\t%d\t%s\n", id, len(p.Corrections), p.SavedAt.Format("2006-01-02 15:04"))
	}
	return w.Flush()
}
