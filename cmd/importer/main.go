// The importer loads historical CRM snapshots from spreadsheet exports into
// the warehouse. Three modes: the configured sheet pairs, auto-detection as
// a single snapshot, or a structural validation of the workbook.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/nordlys/crmx/pkg/config"
	"github.com/nordlys/crmx/pkg/db/warehouse"
	"github.com/nordlys/crmx/pkg/logging"
	"github.com/nordlys/crmx/pkg/xlsximport"
)

var (
	mode       string
	dryRun     bool
	snapshotID string
	testMode   bool
)

var rootCmd = &cobra.Command{
	Use:   "importer <workbook.xlsx>",
	Short: "Import CRM snapshots from a spreadsheet export",
	Args:  cobra.ExactArgs(1),
	RunE:  run,

	SilenceUsage: true,
}

func init() {
	rootCmd.Flags().StringVar(&mode, "mode", "snapshots", "import mode: snapshots, auto, or validate")
	rootCmd.Flags().BoolVar(&dryRun, "dry-run", false, "map and preview without writing")
	rootCmd.Flags().StringVar(&snapshotID, "snapshot-id", "", "snapshot id for auto mode (default: now)")
	rootCmd.Flags().BoolVar(&testMode, "test-mode", false, "load into the test dataset")
}

func run(cmd *cobra.Command, args []string) error {
	path := args[0]
	ctx := cmd.Context()

	logger, err := logging.New()
	if err != nil {
		return err
	}

	owners, err := xlsximport.LoadOwnerLookup()
	if err != nil {
		return err
	}
	importer := &xlsximport.Importer{
		Mapper: &xlsximport.Mapper{Owners: owners, Logger: logger},
		Logger: logger,
	}

	// Validation never touches the warehouse.
	if mode == "validate" {
		report, err := importer.Validate(path)
		if err != nil {
			return err
		}
		printValidation(report)
		return nil
	}

	cfg := config.FromEnv()
	store, err := warehouse.New(ctx, logger, cfg.ClickHouseAddr, cfg.DatasetFor(testMode))
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error("Failed to close warehouse connection", zap.Error(err))
		}
	}()
	importer.Store = store

	var result *xlsximport.Result
	switch mode {
	case "snapshots":
		result, err = importer.RunSnapshots(ctx, path, dryRun)
	case "auto":
		result, err = importer.RunAuto(ctx, path, snapshotID, dryRun)
	default:
		return fmt.Errorf("unknown mode %q, want snapshots, auto, or validate", mode)
	}
	if err != nil {
		return err
	}

	printResult(result)
	return nil
}

func printValidation(report *xlsximport.ValidationReport) {
	fmt.Printf("Workbook sheets: %d\n", len(report.Sheets))
	fmt.Printf("Configured sheets found: %d, missing: %d\n", len(report.Found), len(report.Missing))
	for _, name := range report.Missing {
		fmt.Printf("  missing: %s\n", name)
	}
	fmt.Printf("Auto-detected export sheets: %d\n", len(report.Detected))
	for name, kind := range report.Detected {
		fmt.Printf("  %s: %s\n", name, kind)
	}
}

func printResult(result *xlsximport.Result) {
	if result.DryRun {
		fmt.Println("Dry run, nothing written.")
		for _, preview := range result.Previews {
			fmt.Printf("  %s: %d rows\n", preview.Table, preview.RowCount)
		}
		return
	}

	for snapshotID, counts := range result.Snapshots {
		fmt.Printf("%s:\n", snapshotID)
		for table, n := range counts {
			fmt.Printf("  %s: %d rows\n", table, n)
		}
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
