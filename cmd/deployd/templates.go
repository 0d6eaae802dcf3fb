package main

import (
	"deployd/internal/template"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"
)

func newTemplatesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "templates",
		Short: "Inspect deployment templates",
	}
	cmd.AddCommand(newTemplatesValidateCmd())
	cmd.AddCommand(newTemplatesListCmd())
	return cmd
}

func newTemplatesValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <file>...",
		Short: "Check template documents without running them",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			failed := 0
			for _, path := range args {
				t, err := template.ParseFile(path)
				if err != nil {
					failed++
					fmt.Fprintf(cmd.ErrOrStderr(), "%s: %v\n", path, err)
					continue
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s: ok (%s, %d steps)\n", path, t.Name, len(t.Steps))
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d template(s) invalid", failed, len(args))
			}
			return nil
		},
	}
}

func newTemplatesListCmd() *cobra.Command {
	var configDir string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the template catalog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			catalog, err := template.NewLoader(filepath.Join(configDir, "templates")).List()
			if err != nil {
				return err
			}
			for _, s := range catalog {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%d\t%s\n", s.Name, s.TotalSteps, s.Description)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&configDir, "config-dir", "./config", "configuration directory")
	return cmd
}
