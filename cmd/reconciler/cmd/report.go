package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"lesson-reconciliation-service/cmd/reconciler/config"
	"lesson-reconciliation-service/internal/models"
	"lesson-reconciliation-service/internal/reporter"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	reportFrom   string
	reportTo     string
	reportFormat string
	reportFile   string
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Generate a review report",
	Long: `Generate a review report: payments broken down by state, lessons in
the day window with money still outstanding and the current suggestion
queue.

Examples:
  reconciler report
  reconciler report --from 2024-03-01 --to 2024-03-31
  reconciler report --format json --output report.json
  reconciler report --format csv --output unpaid.csv`,
	PreRunE: validateReportFlags,
	RunE:    runReport,
}

func init() {
	rootCmd.AddCommand(reportCmd)

	reportCmd.Flags().StringVar(&reportFrom, "from", "", "first lesson day (YYYY-MM-DD, default 30 days back)")
	reportCmd.Flags().StringVar(&reportTo, "to", "", "last lesson day (YYYY-MM-DD, default today)")
	reportCmd.Flags().StringVarP(&reportFormat, "format", "f", "console", "output format: console, json, csv")
	reportCmd.Flags().StringVarP(&reportFile, "output", "o", "", "output file path (default: stdout)")

	viper.BindPFlag("report-format", reportCmd.Flags().Lookup("format"))
}

func validateReportFlags(cmd *cobra.Command, args []string) error {
	now := time.Now().UTC()
	if reportFrom == "" {
		reportFrom = now.AddDate(0, 0, -30).Format(models.DayFormat)
	}
	if reportTo == "" {
		reportTo = now.Format(models.DayFormat)
	}

	from, err := time.Parse(models.DayFormat, reportFrom)
	if err != nil {
		return fmt.Errorf("invalid from date. Use YYYY-MM-DD: %w", err)
	}
	to, err := time.Parse(models.DayFormat, reportTo)
	if err != nil {
		return fmt.Errorf("invalid to date. Use YYYY-MM-DD: %w", err)
	}
	if from.After(to) {
		return fmt.Errorf("from date cannot be after to date")
	}

	if !reporter.OutputFormat(reportFormat).IsValid() {
		return fmt.Errorf("invalid output format '%s'. Valid formats: console, json, csv", reportFormat)
	}

	if reportFile != "" {
		dir := filepath.Dir(reportFile)
		if dir != "." {
			if _, err := os.Stat(dir); os.IsNotExist(err) {
				return fmt.Errorf("output directory does not exist: %s", dir)
			}
		}
	}

	return nil
}

func runReport(cmd *cobra.Command, args []string) error {
	service, closer, err := openService()
	if err != nil {
		return err
	}
	defer closer()

	report, err := service.BuildReport(reportFrom, reportTo)
	if err != nil {
		return err
	}

	reportConfig, err := config.BuildReportConfig(reportFormat)
	if err != nil {
		return err
	}
	generator, err := reporter.NewReportGenerator(reportConfig)
	if err != nil {
		return err
	}

	var output *os.File
	if reportFile != "" {
		output, err = os.Create(reportFile)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer output.Close()
	} else {
		output = os.Stdout
	}

	if err := generator.GenerateReport(report, output); err != nil {
		return fmt.Errorf("failed to generate report: %w", err)
	}

	if viper.GetBool("verbose") && reportFile != "" {
		fmt.Fprintf(os.Stderr, "Report written to %s\n", reportFile)
	}
	return nil
}
