package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	cfgFile string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "reportgate",
	Short: "Test report transformation, lineage, and routing engine",
	Long: `Reportgate accepts test reports from sending clients, translates them
into each receiver's schema and format, records full item-level lineage,
and stages delivery according to receiver timing policies.

Commands:
  reportgate submit    # Submit a report payload through the pipeline
  reportgate validate  # Validate configuration and metadata
  reportgate version   # Print version information`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "reportgate.yaml", "config file path")
}
