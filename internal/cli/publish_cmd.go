package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"quillpost/internal/models"
	"quillpost/internal/publish"
)

func (a *app) dashboard() *publish.Dashboard {
	return publish.NewDashboard(a.client, a.notifier(), a.logger.Named("publish"))
}

func newDraftsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "drafts",
		Short: "List draft articles",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			d := a.dashboard()
			list, err := d.ListDrafts(cmd.Context())
			if err != nil {
				return err
			}
			printDrafts(a.out, list, d.Selected())
			return nil
		},
	}
}

func newPublishCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "publish [article-id]",
		Short: "Publish a draft article (the first draft when no id is given)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d := a.dashboard()
			if _, err := d.ListDrafts(cmd.Context()); err != nil {
				return err
			}
			if len(args) == 1 {
				if err := d.SelectByID(args[0]); err != nil {
					return err
				}
			}
			if err := d.Publish(cmd.Context()); err != nil {
				return err
			}
			printDrafts(a.out, d.Articles(), d.Selected())
			return nil
		},
	}
}

func printDrafts(w io.Writer, list []models.Article, selected *models.Article) {
	if len(list) == 0 {
		fmt.Fprintln(w, "no drafts")
		return
	}
	for _, art := range list {
		mark := " "
		if selected != nil && selected.ID == art.ID {
			mark = "*"
		}
		fmt.Fprintf(w, "%s %s  %s\n", mark, art.ID, art.Title)
	}
}
