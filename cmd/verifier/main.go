// The verifier runs the warehouse integrity checks and exits non-zero when
// any critical issue is found, so it can gate deployments and cron alerts.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/nordlys/crmx/pkg/config"
	"github.com/nordlys/crmx/pkg/db/warehouse"
	"github.com/nordlys/crmx/pkg/logging"
	"github.com/nordlys/crmx/pkg/verify"
)

var testMode bool

var rootCmd = &cobra.Command{
	Use:   "verifier",
	Short: "Check warehouse integrity: references, required fields, uniqueness, formats",
	RunE:  run,

	SilenceUsage: true,
}

func init() {
	rootCmd.Flags().BoolVar(&testMode, "test-mode", false, "verify the test dataset")
}

func run(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	logger, err := logging.New()
	if err != nil {
		return err
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

	verifier := &verify.Verifier{Store: store, Logger: logger}
	report, err := verifier.Run(ctx)
	if err != nil {
		return err
	}

	fmt.Printf("Dataset %s: %d tables checked, %d critical, %d warnings, %d info\n",
		report.Dataset, report.TablesChecked, report.Critical, report.Warnings, report.Infos)
	for _, issue := range report.Issues {
		fmt.Printf("  [%s] %s.%s %s: %s (%d rows)\n",
			issue.Severity, issue.Table, issue.Column, issue.Check, issue.Description, issue.Count)
	}

	if !report.Passed {
		fmt.Println("FAILED: critical integrity issues found")
		os.Exit(1)
	}
	fmt.Println("PASSED")
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
