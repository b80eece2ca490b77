package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Generate a default config file",
	Long:  `Generate a default keygated configuration file at ~/.config/keygated/config.yaml`,
	RunE:  runConfigInit,
}

// init registers the config "init" subcommand and its CLI flags.
func init() {
	configCmd.AddCommand(configInitCmd)
	configInitCmd.Flags().StringP("output", "o", "", "output path (default: ~/.config/keygated/config.yaml)")
	configInitCmd.Flags().Bool("force", false, "overwrite existing config file")
}

// defaultConfigTemplate is written out by "keygated config init".
const defaultConfigTemplate = `# keygated configuration

keys:
  - ${ANTHROPIC_API_KEY}

server:
  listen: "127.0.0.1:8788"
  timeout_ms: 5000

logging:
  level: info
  format: json

registry:
  max_failures: 5
  max_retries: 3
  timezone: "UTC"
  quota_reset_hour: 0

pool:
  pool_size: 10
  min_threshold: 2

verifier:
  batch_size: 5

retry:
  max_retries: 3
`

func runConfigInit(cmd *cobra.Command, _ []string) error {
	output, err := cmd.Flags().GetString("output")
	if err != nil {
		return fmt.Errorf("failed to get output flag: %w", err)
	}

	force, err := cmd.Flags().GetBool("force")
	if err != nil {
		return fmt.Errorf("failed to get force flag: %w", err)
	}

	if output == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("failed to get home directory: %w", err)
		}

		output = filepath.Join(home, ".config", "keygated", defaultConfigFile)
	}

	if _, err := os.Stat(output); err == nil && !force {
		return fmt.Errorf("config file already exists at %s (use --force to overwrite)", output)
	}

	dir := filepath.Dir(output)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(output, []byte(defaultConfigTemplate), 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	fmt.Printf("✓ Config file created at %s\n", output)
	fmt.Println("\nNext steps:")
	fmt.Println("  1. Set ANTHROPIC_API_KEY environment variable")
	fmt.Println("  2. Edit the config file to customize key lifecycle tunables")
	fmt.Println("  3. Validate with: keygated config validate")
	fmt.Println("  4. Start the service: keygated serve")

	return nil
}
