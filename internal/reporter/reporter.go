// Package reporter renders review reports for human consumption.
//
// Supported output formats:
//   - Console: tabular output for terminal review sessions
//   - JSON: structured data for the bot and web UI
//   - CSV: unpaid-lesson export for spreadsheets
package reporter

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"lesson-reconciliation-service/internal/reconciler"
)

// OutputFormat represents the supported report output formats.
type OutputFormat string

const (
	FormatConsole OutputFormat = "console"
	FormatJSON    OutputFormat = "json"
	FormatCSV     OutputFormat = "csv"
)

// IsValid checks if the output format is supported
func (f OutputFormat) IsValid() bool {
	switch f {
	case FormatConsole, FormatJSON, FormatCSV:
		return true
	default:
		return false
	}
}

// ReportConfig holds configuration options for report generation
type ReportConfig struct {
	Format OutputFormat `json:"format"`

	IncludeUnpaidLessons bool `json:"include_unpaid_lessons"`
	IncludeSuggestions   bool `json:"include_suggestions"`

	// CSV options
	CSVDelimiter rune `json:"csv_delimiter"`
	CSVHeaders   bool `json:"csv_headers"`
}

// DefaultReportConfig returns a default report configuration
func DefaultReportConfig() *ReportConfig {
	return &ReportConfig{
		Format:               FormatConsole,
		IncludeUnpaidLessons: true,
		IncludeSuggestions:   true,
		CSVDelimiter:         ',',
		CSVHeaders:           true,
	}
}

// Validate validates the report configuration
func (c *ReportConfig) Validate() error {
	if !c.Format.IsValid() {
		return fmt.Errorf("invalid output format: %s", c.Format)
	}
	return nil
}

// ReportGenerator renders review reports in various formats
type ReportGenerator struct {
	config *ReportConfig
}

// NewReportGenerator creates a new report generator with the specified configuration
func NewReportGenerator(config *ReportConfig) (*ReportGenerator, error) {
	if config == nil {
		config = DefaultReportConfig()
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid report configuration: %w", err)
	}

	return &ReportGenerator{config: config}, nil
}

// GenerateReport renders a review report to the provided writer.
func (rg *ReportGenerator) GenerateReport(report *reconciler.ReviewReport, writer io.Writer) error {
	if report == nil {
		return fmt.Errorf("review report cannot be nil")
	}

	switch rg.config.Format {
	case FormatConsole:
		return rg.generateConsoleReport(report, writer)
	case FormatJSON:
		return rg.generateJSONReport(report, writer)
	case FormatCSV:
		return rg.generateCSVReport(report, writer)
	default:
		return fmt.Errorf("unsupported output format: %s", rg.config.Format)
	}
}

func (rg *ReportGenerator) generateConsoleReport(report *reconciler.ReviewReport, writer io.Writer) error {
	fmt.Fprintf(writer, "LESSON RECONCILIATION REPORT\n")
	fmt.Fprintf(writer, "Generated: %s\n", report.GeneratedAt.Format(time.RFC3339))
	fmt.Fprintf(writer, "Lesson window: %s .. %s\n\n", report.FromDay, report.ToDay)

	fmt.Fprintf(writer, "=== PAYMENTS ===\n")
	fmt.Fprintf(writer, "%-12s %8s %14s %14s %14s\n", "Status", "Count", "Total", "Allocated", "Residual")
	fmt.Fprintf(writer, "%s\n", strings.Repeat("-", 66))
	for _, b := range report.Payments {
		fmt.Fprintf(writer, "%-12s %8d %14s %14s %14s\n",
			b.Status, b.Count, b.Total.StringFixed(2), b.Allocated.StringFixed(2), b.Residual.StringFixed(2))
	}
	fmt.Fprintf(writer, "\nOpen residual: %s\n\n", report.OpenResidual.StringFixed(2))

	if rg.config.IncludeUnpaidLessons && len(report.Unpaid) > 0 {
		fmt.Fprintf(writer, "=== UNPAID LESSONS ===\n")
		fmt.Fprintf(writer, "%-6s %-20s %-12s %-10s %12s %12s\n",
			"ID", "Student", "Day", "Time", "Cost", "Outstanding")
		fmt.Fprintf(writer, "%s\n", strings.Repeat("-", 78))
		for _, l := range report.Unpaid {
			fmt.Fprintf(writer, "%-6d %-20s %-12s %-10s %12s %12s\n",
				l.LessonID, l.StudentName, l.Day, l.TimeOfDay,
				l.Cost.StringFixed(2), l.Outstanding.StringFixed(2))
		}
		fmt.Fprintf(writer, "\n")
	}

	if rg.config.IncludeSuggestions && len(report.Suggestions) > 0 {
		fmt.Fprintf(writer, "=== SUGGESTIONS ===\n")
		fmt.Fprintf(writer, "%-8s %-8s %-20s %-20s %12s %6s\n",
			"Lesson", "Payment", "Student", "Payer", "Quota", "Days")
		fmt.Fprintf(writer, "%s\n", strings.Repeat("-", 80))
		for _, s := range report.Suggestions {
			fmt.Fprintf(writer, "%-8d %-8d %-20s %-20s %12s %6d\n",
				s.LessonID, s.PaymentID, s.StudentName, s.PayerName,
				s.Quota.StringFixed(2), s.DayDistance)
		}
	}

	return nil
}

func (rg *ReportGenerator) generateJSONReport(report *reconciler.ReviewReport, writer io.Writer) error {
	filtered := *report
	if !rg.config.IncludeUnpaidLessons {
		filtered.Unpaid = nil
	}
	if !rg.config.IncludeSuggestions {
		filtered.Suggestions = nil
	}

	encoder := json.NewEncoder(writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(&filtered)
}

// generateCSVReport exports the unpaid lessons; that is the list an
// operator chases, one row per lesson.
func (rg *ReportGenerator) generateCSVReport(report *reconciler.ReviewReport, writer io.Writer) error {
	csvWriter := csv.NewWriter(writer)
	csvWriter.Comma = rg.config.CSVDelimiter
	defer csvWriter.Flush()

	if rg.config.CSVHeaders {
		if err := csvWriter.Write([]string{
			"lesson_id", "student", "day", "time", "cost", "paid", "outstanding",
		}); err != nil {
			return err
		}
	}

	for _, l := range report.Unpaid {
		if err := csvWriter.Write([]string{
			fmt.Sprintf("%d", l.LessonID),
			l.StudentName,
			l.Day,
			l.TimeOfDay,
			l.Cost.StringFixed(2),
			l.Paid.StringFixed(2),
			l.Outstanding.StringFixed(2),
		}); err != nil {
			return err
		}
	}

	return csvWriter.Error()
}
