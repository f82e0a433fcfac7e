// Package sources implements the CLI commands for inspecting and
// validating source definitions.
package sources

import (
	"fmt"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/jonesrussell/gigharvest/internal/config"
	"github.com/jonesrussell/gigharvest/internal/logger"
	"github.com/jonesrussell/gigharvest/internal/sources"
)

// Command returns the sources command group.
func Command(cfgFile *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sources",
		Short: "Manage source definitions",
		Long:  `Inspect and validate the per-source YAML definitions.`,
	}

	cmd.AddCommand(newListCommand(cfgFile))
	cmd.AddCommand(newValidateCommand())
	return cmd
}

// newListCommand creates the list command, which renders every loadable
// source definition as a table.
func newListCommand(cfgFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all configured sources",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*cfgFile)
			if err != nil {
				return err
			}

			configs, err := sources.LoadDir(cfg.Sources.Dir, logger.NewNoOp())
			if err != nil {
				return fmt.Errorf("load sources: %w", err)
			}

			renderTable(configs)
			return nil
		},
	}
}

// newValidateCommand creates the validate command, which checks one
// definition file and reports the first problem found.
func newValidateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "validate [file]",
		Short: "Validate a source definition file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := sources.LoadFile(args[0])
			if err != nil {
				return fmt.Errorf("invalid: %w", err)
			}
			fmt.Printf("%s: valid (%d workflow actions, schedule %dm, trust %d)\n",
				cfg.Site.Name,
				len(cfg.Workflow),
				cfg.Site.ScheduleMinutes,
				cfg.Site.TrustScore,
			)
			return nil
		},
	}
}

func renderTable(configs []*sources.Config) {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetStyle(table.StyleLight)

	t.AppendHeader(table.Row{"Name", "URL", "Schedule", "Rate Limit", "Trust", "Mode", "Actions"})
	for _, cfg := range configs {
		t.AppendRow(table.Row{
			cfg.Site.Name,
			cfg.Site.URL,
			fmt.Sprintf("%dm", cfg.Site.ScheduleMinutes),
			fmt.Sprintf("%d/min", cfg.RateLimit.RequestsPerMinute),
			cfg.Site.TrustScore,
			cfg.Validation.Mode,
			len(cfg.Workflow),
		})
	}
	t.Render()
}
