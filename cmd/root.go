// Package cmd defines and implements the CLI commands for the searchscout
// executable.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var cfgFile string

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "searchscout",
		Short: "Discovers how websites implement on-site search.",
		Long: `searchscout probes website landing pages, inspects their DOM,
network traffic, and CMS fingerprints, and records the search pattern each
site implements together with a calibrated confidence score.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (optional; env vars prefixed SEARCHSCOUT_ also apply)")

	cmd.AddCommand(newDiscoverCmd())
	cmd.AddCommand(newVerifyCmd())
	cmd.AddCommand(newServeCmd())

	return cmd
}

// Execute is the main entry point.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
