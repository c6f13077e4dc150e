// Package config implements configuration management subcommands.
package config

import (
	"github.com/spf13/cobra"
)

// Cmd is the config subcommand.
var Cmd = &cobra.Command{
	Use:   "config",
	Short: "Configuration management",
	Long: `Manage otcommissioner configuration files.

Use 'otcommissioner init' to create a new configuration file.

Subcommands:
  show      Display current configuration
  validate  Validate a configuration file
  schema    Generate a JSON schema for IDE/validation tooling`,
}

func init() {
	Cmd.AddCommand(showCmd)
	Cmd.AddCommand(validateCmd)
	Cmd.AddCommand(schemaCmd)
}
