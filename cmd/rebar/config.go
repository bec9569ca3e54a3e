package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"sigs.k8s.io/yaml"
)

var configShowSource bool

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Configuration utilities",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show effective configuration",
	Long: `Show the effective configuration after merging defaults, config file,
and environment variables. Database passwords are masked in the output,
including passwords embedded in a database URL.`,
	Example: `  # Show effective configuration
  rebar config show

  # Show configuration with source file path
  rebar config show --source`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if configShowSource {
			source := configPath
			if source == "" {
				source = "(none, using defaults)"
			}
			fmt.Printf("Config file: %s\n\n", source)
		}

		out, err := yaml.Marshal(cfg.Redacted())
		if err != nil {
			return err
		}
		fmt.Print(string(out))
		return nil
	},
}

func init() {
	configShowCmd.Flags().BoolVar(&configShowSource, "source", false, "show config file source")
	configCmd.AddCommand(configShowCmd)
}
