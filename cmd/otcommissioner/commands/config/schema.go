package config

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/openthread/otcommissioner/pkg/config"
)

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Print the configuration JSON schema",
	Long: `Print a JSON Schema document describing the otcommissioner
configuration file, for IDE autocompletion or external validation tooling.

Examples:
  # Print the schema to stdout
  otcommissioner config schema

  # Save it for an editor's JSON schema association
  otcommissioner config schema > otcommissioner-schema.json`,
	RunE: runConfigSchema,
}

func runConfigSchema(cmd *cobra.Command, args []string) error {
	schema, err := config.Schema()
	if err != nil {
		return fmt.Errorf("failed to generate schema: %w", err)
	}
	fmt.Println(string(schema))
	return nil
}
