package main

import (
	"io"
	"log/slog"

	"github.com/spf13/cobra"
)

type rootOptions struct {
	verbose bool
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "deployd",
		Short:         "Deployment orchestration service",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			setupLogger(cmd.OutOrStdout(), opts.verbose)
		},
	}
	cmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "enable debug logging")

	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newTemplatesCmd())
	cmd.AddCommand(newUsersCmd())
	return cmd
}

func setupLogger(w io.Writer, verbose bool) {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})))
}
