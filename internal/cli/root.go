// Package cli implements quillctl, a terminal client for the quillpost API.
package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"quillpost/internal/apiclient"
	"quillpost/internal/config"
)

var (
	version = "dev"
	commit  = "unknown"
)

// app carries what every subcommand needs. It is filled in by the root
// command's pre-run hook.
type app struct {
	cfg    *config.ClientConfig
	logger *zap.Logger
	client *apiclient.Client
	out    io.Writer
	errOut io.Writer
}

func (a *app) init(cmd *cobra.Command, cfgPath string, verbose bool) error {
	cfg, err := config.LoadClient(cfgPath)
	if err != nil {
		return err
	}

	logger := zap.NewNop()
	if verbose {
		logger, err = zap.NewDevelopment()
		if err != nil {
			return fmt.Errorf("failed to create logger: %w", err)
		}
	}

	a.cfg = cfg
	a.logger = logger
	a.out = cmd.OutOrStdout()
	a.errOut = cmd.ErrOrStderr()
	a.client = apiclient.New(apiclient.Options{
		BaseURL:      cfg.APIURL,
		SessionToken: cfg.SessionToken,
		UserToken:    cfg.UserToken,
		UserID:       cfg.UserID,
		Timeout:      cfg.Timeout(),
		Logger:       logger.Named("api"),
	})
	logger.Debug("client configured", zap.String("api_url", cfg.APIURL))
	return nil
}

func (a *app) notifier() *terminalNotifier {
	return &terminalNotifier{out: a.out, errOut: a.errOut}
}

// NewRootCmd builds the quillctl command tree.
func NewRootCmd() *cobra.Command {
	a := &app{}
	var (
		cfgPath string
		verbose bool
	)

	root := &cobra.Command{
		Use:   "quillctl",
		Short: "Chat with configured models and publish drafts from the terminal",
		Long: `quillctl talks to a quillpost server. It keeps conversations in sync
with the web app and can publish draft articles.

Configuration is read from --config (YAML) and QUILL_* environment variables.`,
		Version:      fmt.Sprintf("%s (commit: %s)", version, commit),
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init(cmd, cfgPath, verbose)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.logger != nil {
				_ = a.logger.Sync()
			}
		},
	}

	root.CompletionOptions.DisableDefaultCmd = true
	root.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "config file path")
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	root.AddCommand(
		newChatCmd(a),
		newHistoryCmd(a),
		newModelsCmd(a),
		newDraftsCmd(a),
		newPublishCmd(a),
	)
	return root
}

// Execute runs quillctl. Called by main.main.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
