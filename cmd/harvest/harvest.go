// Package harvest implements the one-shot ingestion command.
package harvest

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/jonesrussell/gigharvest/cmd/common"
)

const timePrecision = time.Millisecond

// Command returns the harvest command, which runs one source once and
// exits.
func Command(cfgFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "harvest [source]",
		Short: "Run a single ingestion pass for one source",
		Long: `Harvest fetches the named source once, normalizes and validates the
listings, classifies them against the previous snapshot, and persists
the results. The source must be defined in the sources directory.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			source := args[0]

			app, err := common.Bootstrap(*cfgFile)
			if err != nil {
				return err
			}
			defer app.Close()

			stats, err := app.Runner.Run(cmd.Context(), source)
			if err != nil {
				return fmt.Errorf("harvest %s: %w", source, err)
			}

			fmt.Printf("harvested %s: %d raw, %d normalized, %d new, %d updated, %d unchanged (%s)\n",
				source,
				stats.RawCount,
				stats.NormalizedCount,
				stats.NewCount,
				stats.UpdatedCount,
				stats.UnchangedCount,
				stats.Duration.Round(timePrecision),
			)
			return nil
		},
	}
}
