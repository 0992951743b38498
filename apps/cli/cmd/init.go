package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/abdul-hamid-achik/hitsession/packages/core/config"
	"github.com/spf13/cobra"
)

func newInitCmd() *cobra.Command {
	var (
		force  bool
		format string
		dir    string
	)

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default hitsession config file",
		Long: `Write a configuration file with the default settings to the current
directory (or --dir).

Examples:
  hitsession init
  hitsession init --format json
  hitsession init --force`,
		Args: usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			var name string
			switch format {
			case "yaml", "yml":
				name = "hitsession.yaml"
			case "json":
				name = "hitsession.json"
			default:
				return withCode(ExitUsageError, fmt.Errorf("unknown format %q (use yaml or json)", format))
			}

			if dir == "" {
				cwd, err := os.Getwd()
				if err != nil {
					return err
				}
				dir = cwd
			}
			configFile := filepath.Join(dir, name)

			if !force {
				if _, err := os.Stat(configFile); err == nil {
					return withCode(ExitUsageError, fmt.Errorf("file already exists: %s (use --force to overwrite)", configFile))
				}
			}

			cfg := config.DefaultConfig()
			cfg.Headers = map[string]string{"User-Agent": "hitsession/" + version}
			if err := cfg.SaveConfig(configFile); err != nil {
				return withCode(ExitConfigError, fmt.Errorf("failed to create config file: %w", err))
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created: %s\n", configFile)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "Overwrite an existing file")
	cmd.Flags().StringVar(&format, "format", "yaml", "Config format: yaml or json")
	cmd.Flags().StringVar(&dir, "dir", "", "Directory to write to (default: current directory)")

	return cmd
}
