// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/questsystem/packdeploy/internal/config"

	"github.com/spf13/cobra"
)

// newConfigCommand creates the `packdeploy config` command tree.
func newConfigCommand(app *App) *cobra.Command {
	cfgCmd := &cobra.Command{
		Use:   "config",
		Short: "Manage packdeploy configuration",
		Long: `Manage packdeploy configuration.

Configuration is read from the first of:
  - the file given with --config
  - <project>/packdeploy.cue
  - packdeploy.cue in the user configuration directory

Any key can be overridden with a PACKDEPLOY_ environment variable, for
example PACKDEPLOY_DEPENDENCY_STRICT=true.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show the resolved configuration as CUE",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			loaded, err := app.loadConfig(cmd.Context())
			if err != nil {
				return reportConfigError(cmd.ErrOrStderr(), err, app.flags.verbose)
			}

			source := SubtitleStyle.Render("(using defaults)")
			if loaded.Path != "" {
				source = loaded.Path
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "%s %s\n\n", CmdStyle.Render("Config file:"), source)
			fmt.Fprint(cmd.OutOrStdout(), config.GenerateCUE(loaded.Config))
			return nil
		},
	})

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "init",
		Short: "Create a default packdeploy.cue in the project directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := app.flags.project
			if dir == "" {
				wd, err := os.Getwd()
				if err != nil {
					return err
				}
				dir = wd
			}
			path := filepath.Join(dir, config.FileName())

			written, err := config.WriteDefault(path)
			if err != nil {
				return err
			}
			if !written {
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s already exists\n", infoIcon, path)
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s Created default configuration at %s\n", successIcon, path)
			return nil
		},
	})

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show the user configuration directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgDir, err := config.ConfigDir()
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Config directory: %s\n", cfgDir)
			fmt.Fprintf(cmd.OutOrStdout(), "Config file: %s\n", filepath.Join(cfgDir, config.FileName()))
			return nil
		},
	})

	return cfgCmd
}
