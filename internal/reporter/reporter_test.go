package reporter

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"lesson-reconciliation-service/internal/models"
	"lesson-reconciliation-service/internal/reconciler"

	"github.com/shopspring/decimal"
)

func sampleReport() *reconciler.ReviewReport {
	return &reconciler.ReviewReport{
		GeneratedAt: time.Date(2024, 3, 20, 10, 0, 0, 0, time.UTC),
		FromDay:     "2024-03-10",
		ToDay:       "2024-03-20",
		Payments: []*reconciler.StatusBreakdown{
			{
				Status:    models.StatusPending,
				Count:     2,
				Total:     decimal.NewFromInt(6000),
				Allocated: decimal.Zero,
				Residual:  decimal.NewFromInt(6000),
			},
			{
				Status:    models.StatusUsed,
				Count:     1,
				Total:     decimal.NewFromInt(2000),
				Allocated: decimal.NewFromInt(2000),
				Residual:  decimal.Zero,
			},
		},
		OpenResidual: decimal.NewFromInt(6000),
		Unpaid: []*reconciler.UnpaidLesson{
			{
				LessonID:    7,
				StudentName: "Sofia",
				Day:         "2024-03-15",
				TimeOfDay:   "16:00:00",
				Cost:        decimal.NewFromInt(2000),
				Paid:        decimal.Zero,
				Outstanding: decimal.NewFromInt(2000),
			},
			{
				LessonID:    8,
				StudentName: "Daria",
				Day:         "2024-03-16",
				TimeOfDay:   "17:00:00",
				Cost:        decimal.NewFromInt(2000),
				Paid:        decimal.NewFromInt(500),
				Outstanding: decimal.NewFromInt(1500),
			},
		},
		Suggestions: []*models.Suggestion{
			{
				PaymentID:   3,
				LessonID:    7,
				PayerName:   "Мария Петрова",
				StudentName: "Sofia",
				Quota:       decimal.NewFromInt(2000),
				Score:       100,
				DayDistance: 1,
			},
		},
	}
}

func TestOutputFormatIsValid(t *testing.T) {
	tests := []struct {
		format OutputFormat
		valid  bool
	}{
		{FormatConsole, true},
		{FormatJSON, true},
		{FormatCSV, true},
		{OutputFormat("xml"), false},
		{OutputFormat(""), false},
	}

	for _, tt := range tests {
		if got := tt.format.IsValid(); got != tt.valid {
			t.Errorf("IsValid(%q) = %v, want %v", tt.format, got, tt.valid)
		}
	}
}

func TestNewReportGeneratorDefaults(t *testing.T) {
	rg, err := NewReportGenerator(nil)
	if err != nil {
		t.Fatalf("NewReportGenerator(nil) failed: %v", err)
	}
	if rg.config.Format != FormatConsole {
		t.Errorf("expected console default, got %s", rg.config.Format)
	}

	bad := DefaultReportConfig()
	bad.Format = "pdf"
	if _, err := NewReportGenerator(bad); err == nil {
		t.Error("expected error for invalid format")
	}
}

func TestGenerateReportNilReport(t *testing.T) {
	rg, _ := NewReportGenerator(nil)
	if err := rg.GenerateReport(nil, &bytes.Buffer{}); err == nil {
		t.Error("expected error for nil report")
	}
}

func TestConsoleReportSections(t *testing.T) {
	rg, _ := NewReportGenerator(nil)

	var buf bytes.Buffer
	if err := rg.GenerateReport(sampleReport(), &buf); err != nil {
		t.Fatalf("GenerateReport failed: %v", err)
	}

	output := buf.String()
	for _, want := range []string{
		"=== PAYMENTS ===",
		"=== UNPAID LESSONS ===",
		"=== SUGGESTIONS ===",
		"Open residual: 6000.00",
		"Sofia",
		"Мария Петрова",
	} {
		if !strings.Contains(output, want) {
			t.Errorf("console output missing %q", want)
		}
	}
}

func TestConsoleReportOmitsDisabledSections(t *testing.T) {
	config := DefaultReportConfig()
	config.IncludeUnpaidLessons = false
	config.IncludeSuggestions = false
	rg, _ := NewReportGenerator(config)

	var buf bytes.Buffer
	if err := rg.GenerateReport(sampleReport(), &buf); err != nil {
		t.Fatalf("GenerateReport failed: %v", err)
	}

	output := buf.String()
	if strings.Contains(output, "UNPAID LESSONS") || strings.Contains(output, "SUGGESTIONS") {
		t.Errorf("disabled sections still present:\n%s", output)
	}
}

func TestJSONReportRoundTrip(t *testing.T) {
	config := DefaultReportConfig()
	config.Format = FormatJSON
	rg, _ := NewReportGenerator(config)

	var buf bytes.Buffer
	if err := rg.GenerateReport(sampleReport(), &buf); err != nil {
		t.Fatalf("GenerateReport failed: %v", err)
	}

	var decoded reconciler.ReviewReport
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("failed to decode JSON report: %v", err)
	}
	if len(decoded.Payments) != 2 {
		t.Errorf("expected 2 breakdowns, got %d", len(decoded.Payments))
	}
	if len(decoded.Unpaid) != 2 || decoded.Unpaid[1].StudentName != "Daria" {
		t.Errorf("unexpected unpaid lessons: %v", decoded.Unpaid)
	}
	if !decoded.OpenResidual.Equal(decimal.NewFromInt(6000)) {
		t.Errorf("expected open residual 6000, got %s", decoded.OpenResidual.String())
	}
}

func TestJSONReportFiltersSections(t *testing.T) {
	config := DefaultReportConfig()
	config.Format = FormatJSON
	config.IncludeSuggestions = false
	rg, _ := NewReportGenerator(config)

	var buf bytes.Buffer
	if err := rg.GenerateReport(sampleReport(), &buf); err != nil {
		t.Fatalf("GenerateReport failed: %v", err)
	}

	var decoded reconciler.ReviewReport
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("failed to decode JSON report: %v", err)
	}
	if len(decoded.Suggestions) != 0 {
		t.Errorf("expected suggestions filtered out, got %d", len(decoded.Suggestions))
	}
}

func TestCSVReportRows(t *testing.T) {
	config := DefaultReportConfig()
	config.Format = FormatCSV
	rg, _ := NewReportGenerator(config)

	var buf bytes.Buffer
	if err := rg.GenerateReport(sampleReport(), &buf); err != nil {
		t.Fatalf("GenerateReport failed: %v", err)
	}

	records, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("failed to parse CSV output: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("expected header plus 2 rows, got %d", len(records))
	}
	if records[0][0] != "lesson_id" {
		t.Errorf("unexpected header row: %v", records[0])
	}
	if records[2][1] != "Daria" || records[2][6] != "1500.00" {
		t.Errorf("unexpected data row: %v", records[2])
	}
}

func TestCSVReportCustomDelimiter(t *testing.T) {
	config := DefaultReportConfig()
	config.Format = FormatCSV
	config.CSVDelimiter = ';'
	config.CSVHeaders = false
	rg, _ := NewReportGenerator(config)

	var buf bytes.Buffer
	if err := rg.GenerateReport(sampleReport(), &buf); err != nil {
		t.Fatalf("GenerateReport failed: %v", err)
	}

	reader := csv.NewReader(&buf)
	reader.Comma = ';'
	records, err := reader.ReadAll()
	if err != nil {
		t.Fatalf("failed to parse CSV output: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 rows without headers, got %d", len(records))
	}
}
