package cli

import (
	"errors"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"quillpost/internal/chat"
	"quillpost/internal/models"
)

func newModelsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "models",
		Short: "List and register chat models",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List configured models",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s := a.newRepl().session
			if err := s.CheckModels(cmd.Context()); err != nil && !errors.Is(err, chat.ErrNoModel) {
				return err
			}
			printModels(a.out, s.State().Models(), s.State().SelectedModel())
			return nil
		},
	})

	var req models.CreateModelRequest
	add := &cobra.Command{
		Use:   "add",
		Short: "Register a model",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := a.client.RegisterModel(cmd.Context(), req)
			if err != nil {
				return fmt.Errorf("register model: %w", err)
			}
			a.notifier().Success(fmt.Sprintf("Model %s registered (%s)", m.Name, m.ID))
			return nil
		},
	}
	add.Flags().StringVar(&req.Name, "name", "", "display name")
	add.Flags().StringVar(&req.Endpoint, "endpoint", "", "API base URL")
	add.Flags().StringVar(&req.Model, "model", "", "model identifier, e.g. gpt-4o-mini")
	add.Flags().StringVar(&req.Provider, "provider", models.ProviderOpenAI, "openai or gemini")
	add.Flags().StringVar(&req.APIKey, "api-key", "", "provider API key")
	add.Flags().BoolVar(&req.IsDefault, "default", false, "make this the default model")
	_ = add.MarkFlagRequired("name")
	_ = add.MarkFlagRequired("model")
	cmd.AddCommand(add)

	return cmd
}

func printModels(w io.Writer, list []models.ModelConfig, selected string) {
	if len(list) == 0 {
		fmt.Fprintln(w, "no models configured")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, " \tID\tNAME\tMODEL\tPROVIDER\tKEY")
	for _, m := range list {
		mark := " "
		if m.ID == selected {
			mark = "*"
		}
		key := "no"
		if m.HasAPIKey {
			key = "yes"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n", mark, m.ID, m.Name, m.Model, m.Provider, key)
	}
	tw.Flush()
}
