package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/artpar/reportgate/app"
	"github.com/artpar/reportgate/bootstrap"
	"github.com/artpar/reportgate/config"
)

const (
	checkMark = "✓"
	crossMark = "✗"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration and metadata before deployment",
	Long: `Validate the reportgate configuration file and metadata directory.

Checks:
  - YAML syntax is valid
  - Required fields are present
  - Schemas, lookup tables, and organization settings load cleanly

Examples:
  reportgate validate
  reportgate validate --config /etc/reportgate/config.yaml`,
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
	fmt.Printf("Validating %s...\n\n", cfgFile)

	if _, err := os.Stat(cfgFile); os.IsNotExist(err) {
		fmt.Printf("  %s Config file exists\n", crossMark)
		return fmt.Errorf("config file not found: %s", cfgFile)
	}
	fmt.Printf("  %s Config file exists\n", checkMark)

	cfg, err := config.Load(cfgFile)
	if err != nil {
		fmt.Printf("  %s Config syntax valid\n", crossMark)
		return fmt.Errorf("config error: %w", err)
	}
	fmt.Printf("  %s Config syntax valid\n", checkMark)

	logger := bootstrap.NewLogger(config.LoggingConfig{Level: "error", Format: "console"})
	if _, err := app.NewMetadata(cfg.Metadata.Dir, logger); err != nil {
		fmt.Printf("  %s Metadata loads\n", crossMark)
		return fmt.Errorf("metadata error: %w", err)
	}
	fmt.Printf("  %s Metadata loads\n", checkMark)

	fmt.Println("\nConfiguration valid")
	return nil
}
