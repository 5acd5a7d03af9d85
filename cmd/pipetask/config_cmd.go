package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"
	"go.yaml.in/yaml/v3"

	"github.com/aristath/pipetask/internal/config"
	"github.com/aristath/pipetask/internal/tui"
)

func newConfigCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show or write configuration",
	}

	show := &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration as YAML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			data, err := yaml.Marshal(a.cfg)
			if err != nil {
				return fmt.Errorf("marshaling config: %w", err)
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}

	var force, interactive bool
	initCmd := &cobra.Command{
		Use:   "init [path]",
		Short: "Write the effective configuration to a file",
		Long: `Write the effective configuration to path (default .pipetask/config.yaml).
With --interactive, edit the common settings in a form first.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, path, err := config.DefaultPaths()
			if err != nil {
				return err
			}
			if len(args) == 1 {
				path = args[0]
			}
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", path)
			}
			if interactive {
				settings := tui.NewSettingsForm(a.cfg)
				form := settings.Form().
					WithInput(cmd.InOrStdin()).
					WithOutput(cmd.ErrOrStderr())
				if err := form.RunWithContext(cmd.Context()); err != nil {
					if errors.Is(err, huh.ErrUserAborted) {
						fmt.Fprintln(cmd.ErrOrStderr(), "aborted, nothing written")
						return nil
					}
					return err
				}
				if err := settings.Apply(); err != nil {
					return err
				}
			}
			if err := config.Save(a.cfg, path); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "wrote", path)
			return nil
		},
	}
	initCmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")
	initCmd.Flags().BoolVarP(&interactive, "interactive", "i", false, "edit settings in a form before writing")

	cmd.AddCommand(show, initCmd)
	return cmd
}
