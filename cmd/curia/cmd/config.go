package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/curia-rag/curia/internal/config"
	"github.com/curia-rag/curia/internal/output"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage configuration",
		Long: `Manage the curia configuration file.

Configuration precedence (lowest to highest):
  1. Defaults
  2. User config (~/.config/curia/config.yaml)
  3. Project config (./curia.yaml, or --config)
  4. Environment variables (CURIA_*, also read from ./.env)
  5. Command line flags`,
		Example: `  # Write the defaults to ./curia.yaml
  curia config init

  # Show the effective configuration
  curia config show`,
	}

	cmd.AddCommand(newConfigInitCmd())
	cmd.AddCommand(newConfigShowCmd())
	cmd.AddCommand(newConfigPathCmd())

	return cmd
}

func newConfigInitCmd() *cobra.Command {
	var (
		force bool
		user  bool
	)

	cmd := &cobra.Command{
		Use:         "init [path]",
		Short:       "Write a configuration file with the defaults",
		Args:        cobra.MaximumNArgs(1),
		Annotations: map[string]string{skipConfig: "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			path := config.FileNames[0]
			if user {
				path = config.GetUserConfigPath()
			}
			if len(args) > 0 {
				path = args[0]
			}
			return runConfigInit(cmd, path, force)
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing file, keeping a backup")
	cmd.Flags().BoolVar(&user, "user", false, "Write the user config instead of ./curia.yaml")

	return cmd
}

func runConfigInit(cmd *cobra.Command, path string, force bool) error {
	out := output.New(cmd.OutOrStdout())

	if _, err := os.Stat(path); err == nil && !force {
		out.Warningf("%s already exists", path)
		out.Status("💡", "Use --force to overwrite it (a backup is kept)")
		return nil
	}

	backup, err := config.Backup(path)
	if err != nil {
		return err
	}

	if err := config.NewConfig().WriteYAML(path); err != nil {
		return err
	}

	out.Successf("Created %s", path)
	if backup != "" {
		out.Statusf("💾", "Backup: %s", backup)
	}
	return nil
}

func newConfigShowCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := mustApp(cmd)
			if err != nil {
				return err
			}

			if jsonOutput {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(a.cfg)
			}

			data, err := yaml.Marshal(a.cfg)
			if err != nil {
				return fmt.Errorf("failed to marshal config: %w", err)
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}

func newConfigPathCmd() *cobra.Command {
	return &cobra.Command{
		Use:         "path",
		Short:       "Print the user config file path",
		Args:        cobra.NoArgs,
		Annotations: map[string]string{skipConfig: "true"},
		RunE: func(cmd *cobra.Command, _ []string) error {
			fmt.Fprintln(cmd.OutOrStdout(), config.GetUserConfigPath())
			return nil
		},
	}
}
