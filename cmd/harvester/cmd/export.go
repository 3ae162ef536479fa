package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/webharvest/harvester/internal/export"
	"github.com/webharvest/harvester/internal/store"
)

var (
	exportOut    string
	exportSource string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write stored records to a JSON or CSV file",
	Long: `Export stored records to a file. The format follows the file
extension: .json or .csv.

Examples:
  harvester export --out harvest.json
  harvester export --out shop.csv --source shop`,
	RunE: runExport,
}

func init() {
	rootCmd.AddCommand(exportCmd)

	exportCmd.Flags().StringVar(&exportOut, "out", "harvest.json", "output file (.json or .csv)")
	exportCmd.Flags().StringVar(&exportSource, "source", "", "export only this source")
}

func runExport(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	e, cleanup, err := buildEngine(ctx, cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	records, err := e.List(ctx, store.Filter{Source: exportSource})
	if err != nil {
		return err
	}

	switch strings.ToLower(filepath.Ext(exportOut)) {
	case ".json":
		err = export.ToFile(exportOut, records, export.JSON)
	case ".csv":
		err = export.ToFile(exportOut, records, export.CSV)
	default:
		return fmt.Errorf("unsupported export extension %q (use .json or .csv)", filepath.Ext(exportOut))
	}
	if err != nil {
		return err
	}

	fmt.Printf("Exported %d records to %s\n", len(records), exportOut)
	return nil
}
