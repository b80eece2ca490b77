// Package main is the entry point for keygated.
package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/charmbracelet/fang/v2"
	"github.com/spf13/cobra"
)

// defaultConfigFile is the config file name looked up relative to the
// current directory or ~/.config/keygated when --config is not given.
const defaultConfigFile = "config.yaml"

// cfgFile holds the --config flag value shared by every subcommand.
var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "keygated",
	Short: "keygated manages a rotating pool of upstream API keys",
	Long: `keygated is a standalone key lifecycle service: it rotates, verifies,
and cools down a pool of upstream API keys on behalf of callers that proxy
requests to an AI provider, and exposes their health over a small status
endpoint.`,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "path to config file")
}

func main() {
	if err := fang.Execute(context.Background(), rootCmd); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// findConfigFile searches for the default config file relative to the
// current directory and then the user's config directory.
func findConfigFile() string {
	if _, err := os.Stat(defaultConfigFile); err == nil {
		return defaultConfigFile
	}

	home, err := os.UserHomeDir()
	if err == nil && home != "" {
		p := filepath.Join(home, ".config", "keygated", defaultConfigFile)
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}

	return defaultConfigFile
}
