package config

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/openthread/otcommissioner/pkg/config"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a configuration file",
	Long: `Load and validate an otcommissioner configuration file without
connecting to a border agent.

Examples:
  # Validate the default config file
  otcommissioner config validate

  # Validate a specific config file
  otcommissioner config validate --config /etc/otcommissioner/config.yaml`,
	RunE: runConfigValidate,
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	configPath, _ := cmd.Flags().GetString("config")

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("configuration is invalid: %w", err)
	}

	if err := config.Validate(cfg); err != nil {
		return fmt.Errorf("configuration is invalid: %w", err)
	}

	fmt.Println("Configuration is valid.")
	return nil
}
