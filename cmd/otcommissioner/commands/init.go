package commands

import (
	"encoding/hex"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/openthread/otcommissioner/internal/cli/prompt"
	"github.com/openthread/otcommissioner/pkg/config"
)

var (
	initForce       bool
	initInteractive bool
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a sample configuration file",
	Long: `Initialize a sample otcommissioner configuration file.

By default, the configuration file is created at
$XDG_CONFIG_HOME/otcommissioner/config.yaml. Use --config to specify a
custom path.

Examples:
  # Initialize with default location
  otcommissioner init

  # Initialize with custom path
  otcommissioner init --config /etc/otcommissioner/config.yaml

  # Force overwrite an existing config
  otcommissioner init --force

  # Walk through setup interactively
  otcommissioner init --interactive`,
	RunE: runInit,
}

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "Force overwrite existing config file")
	initCmd.Flags().BoolVarP(&initInteractive, "interactive", "i", false, "Prompt for commissioner settings instead of writing placeholder defaults")
}

func runInit(cmd *cobra.Command, args []string) error {
	configPath := GetConfigFile()
	if configPath == "" {
		configPath = config.GetDefaultConfigPath()
	}

	if _, err := os.Stat(configPath); err == nil && !initForce {
		if initInteractive {
			overwrite, promptErr := prompt.ConfirmWithForce(fmt.Sprintf("%s already exists, overwrite", configPath), false)
			if promptErr != nil {
				return fmt.Errorf("prompt aborted: %w", promptErr)
			}
			if !overwrite {
				return fmt.Errorf("not overwriting existing configuration file at %s", configPath)
			}
		} else {
			return fmt.Errorf("configuration file already exists at %s (use --force to overwrite)", configPath)
		}
	}

	cfg := config.GetDefaultConfig()
	if initInteractive {
		if err := promptForConfig(cfg); err != nil {
			return err
		}
	} else {
		cfg.Commissioner.ID = "otcommissioner"
		cfg.BorderAgent.Address = "192.168.1.1"
		cfg.Credentials.PSKcHex = "00000000000000000000000000000000"
	}

	if err := config.SaveConfig(cfg, configPath); err != nil {
		return fmt.Errorf("failed to initialize config: %w", err)
	}

	fmt.Printf("Configuration file created at: %s\n", configPath)
	fmt.Println("\nNext steps:")
	fmt.Println("  1. Edit the configuration file with your border agent address and PSKc")
	fmt.Println("  2. Connect with: otcommissioner connect")
	fmt.Printf("  3. Or specify a custom config: otcommissioner connect --config %s\n", configPath)

	return nil
}

func validatePSKcHex(input string) error {
	if len(input) != 32 {
		return fmt.Errorf("must be exactly 32 hex characters")
	}
	if _, err := hex.DecodeString(input); err != nil {
		return fmt.Errorf("must be valid hexadecimal")
	}
	return nil
}

// promptForConfig walks the operator through the settings Connect needs,
// filling cfg in place.
func promptForConfig(cfg *config.Config) error {
	id, err := prompt.InputRequired("Commissioner ID")
	if err != nil {
		return fmt.Errorf("prompt aborted: %w", err)
	}
	cfg.Commissioner.ID = id

	address, err := prompt.InputRequired("Border agent address")
	if err != nil {
		return fmt.Errorf("prompt aborted: %w", err)
	}
	cfg.BorderAgent.Address = address

	port, err := prompt.InputPort("Border agent port", int(cfg.BorderAgent.Port))
	if err != nil {
		return fmt.Errorf("prompt aborted: %w", err)
	}
	cfg.BorderAgent.Port = uint16(port)

	enableCCM, err := prompt.Confirm("Authenticate with a CCM certificate instead of a PSKc", false)
	if err != nil {
		return fmt.Errorf("prompt aborted: %w", err)
	}
	cfg.Commissioner.EnableCCM = enableCCM

	if enableCCM {
		domainName, err := prompt.InputRequired("CCM domain name")
		if err != nil {
			return fmt.Errorf("prompt aborted: %w", err)
		}
		cfg.Commissioner.DomainName = domainName

		certFile, err := prompt.InputRequired("Client certificate file")
		if err != nil {
			return fmt.Errorf("prompt aborted: %w", err)
		}
		cfg.Credentials.CertFile = certFile

		keyFile, err := prompt.InputRequired("Client private key file")
		if err != nil {
			return fmt.Errorf("prompt aborted: %w", err)
		}
		cfg.Credentials.KeyFile = keyFile

		anchorFile, err := prompt.InputRequired("Trust anchor (CA) file")
		if err != nil {
			return fmt.Errorf("prompt aborted: %w", err)
		}
		cfg.Credentials.TrustAnchorFiles = []string{anchorFile}
	} else {
		pskcHex, err := prompt.InputWithValidation("PSKc (32 hex characters)", validatePSKcHex)
		if err != nil {
			return fmt.Errorf("prompt aborted: %w", err)
		}
		cfg.Credentials.PSKcHex = pskcHex
	}

	return nil
}
