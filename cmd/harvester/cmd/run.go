package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/webharvest/harvester/pkg/models"
)

var runSource string

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Harvest all configured sources once",
	Long: `Harvest every configured source (or one source with --source),
process the results, and persist them.

Examples:
  # Harvest everything
  harvester run

  # Harvest a single source by name
  harvester run --source tech-news`,
	RunE: runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVar(&runSource, "source", "", "harvest only this source")
}

func runRun(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	e, cleanup, err := buildEngine(ctx, cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	var report models.RunReport
	if runSource != "" {
		report, err = e.RunSource(ctx, runSource)
	} else {
		report, err = e.RunOnce(ctx)
	}
	if err != nil {
		return err
	}

	for _, sr := range report.PerSource {
		if sr.Error != "" {
			fmt.Printf("  %s: FAILED (%s)\n", sr.Name, sr.Error)
			continue
		}
		fmt.Printf("  %s: %d items\n", sr.Name, sr.Count)
	}
	fmt.Printf("\nScraped %d items, persisted %d in %v\n",
		report.ItemsScraped, report.ItemsPersisted, report.Duration.Round(time.Millisecond))
	if report.PartialPersistence {
		fmt.Println("Warning: database unreachable, records held in memory only")
	}
	return nil
}
