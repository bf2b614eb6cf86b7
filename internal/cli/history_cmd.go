package cli

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"quillpost/internal/models"
)

func newHistoryCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Manage saved conversations",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List saved conversations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			r := a.newRepl()
			printHistories(a.out, r.history.FetchAll(cmd.Context()))
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "show <id>",
		Short: "Print a saved conversation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r := a.newRepl()
			if err := r.history.Load(cmd.Context(), args[0]); err != nil {
				return err
			}
			r.printTranscript()
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a saved conversation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.newRepl().history.Delete(cmd.Context(), args[0])
		},
	})

	return cmd
}

func printHistories(w io.Writer, list []models.ChatHistory) {
	if len(list) == 0 {
		fmt.Fprintln(w, "no saved conversations")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tUPDATED\tMESSAGES\tTITLE")
	for _, h := range list {
		updated := "-"
		if !h.UpdatedAt.IsZero() {
			updated = h.UpdatedAt.Local().Format("2006-01-02 15:04")
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n", h.ID, updated, len(h.Messages), h.Title)
	}
	tw.Flush()
}
