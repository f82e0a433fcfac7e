// Package cmd implements the command-line interface for gigharvest.
// It provides the root command and subcommands for running and managing
// event-listing ingestion.
package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/jonesrussell/gigharvest/cmd/harvest"
	"github.com/jonesrussell/gigharvest/cmd/jobs"
	cmdscheduler "github.com/jonesrussell/gigharvest/cmd/scheduler"
	cmdsources "github.com/jonesrussell/gigharvest/cmd/sources"
)

// version is set at build time via -ldflags.
var version = "dev"

var (
	// cfgFile holds the path to the configuration file.
	cfgFile string

	rootCmd = &cobra.Command{
		Use:   "gigharvest",
		Short: "An event-listing ingestion engine",
		Long: `gigharvest collects live-event listings from configured websites,
normalizes them into a common shape, detects changes between runs, and
keeps a searchable index up to date.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
)

// Execute runs the root command.
func Execute() error {
	// Load .env early so environment variables are available to every
	// subcommand.
	_ = godotenv.Load()

	return rootCmd.ExecuteContext(context.Background())
}

func init() {
	rootCmd.PersistentFlags().StringVar(
		&cfgFile,
		"config",
		"",
		"config file (default is ./config.yaml or ./config/config.yaml)",
	)

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("gigharvest version %s\n", version)
		},
	})

	rootCmd.AddCommand(harvest.Command(&cfgFile))
	rootCmd.AddCommand(cmdscheduler.Command(&cfgFile))
	rootCmd.AddCommand(cmdsources.Command(&cfgFile))
	rootCmd.AddCommand(jobs.Command())
}

// Exit prints the error and exits non-zero. Used by main.
func Exit(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}
