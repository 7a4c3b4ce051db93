package config

import (
	"testing"

	"lesson-reconciliation-service/internal/reporter"

	"github.com/spf13/viper"
)

func resetViper(t *testing.T) {
	t.Helper()
	viper.Reset()
	t.Cleanup(viper.Reset)
}

func TestBuildServiceConfigDefaults(t *testing.T) {
	resetViper(t)

	config, err := BuildServiceConfig()
	if err != nil {
		t.Fatalf("BuildServiceConfig failed: %v", err)
	}

	if config.Matcher.HighConfidenceThreshold != 95 {
		t.Errorf("expected default threshold 95, got %d", config.Matcher.HighConfidenceThreshold)
	}
	if config.Suggester.WindowDays != 7 {
		t.Errorf("expected default window 7, got %d", config.Suggester.WindowDays)
	}
	if config.Allocator.BundlePrices["6600"] != 3 {
		t.Errorf("expected default bundle table, got %v", config.Allocator.BundlePrices)
	}
}

func TestBuildServiceConfigOverrides(t *testing.T) {
	resetViper(t)

	viper.Set("match-threshold", 90)
	viper.Set("suggest-window", 14)
	viper.Set("suggest-cap", 5)
	viper.Set("default-lesson-cost", "2500")
	viper.Set("bundles", map[string]string{"9000": "4"})

	config, err := BuildServiceConfig()
	if err != nil {
		t.Fatalf("BuildServiceConfig failed: %v", err)
	}

	if config.Matcher.HighConfidenceThreshold != 90 {
		t.Errorf("expected threshold 90, got %d", config.Matcher.HighConfidenceThreshold)
	}
	if config.Suggester.WindowDays != 14 || config.Suggester.MaxSuggestions != 5 {
		t.Errorf("unexpected suggester config: %+v", config.Suggester)
	}
	if config.Allocator.DefaultLessonCost.String() != "2500" {
		t.Errorf("expected default cost 2500, got %s", config.Allocator.DefaultLessonCost.String())
	}
	if len(config.Allocator.BundlePrices) != 1 || config.Allocator.BundlePrices["9000"] != 4 {
		t.Errorf("unexpected bundle table: %v", config.Allocator.BundlePrices)
	}
}

func TestBuildServiceConfigRejectsBadValues(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value interface{}
	}{
		{"bad cost", "default-lesson-cost", "free"},
		{"bad bundle size", "bundles", map[string]string{"6600": "zero"}},
		{"negative bundle size", "bundles", map[string]string{"6600": "-1"}},
		{"threshold out of range", "match-threshold", 150},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resetViper(t)
			viper.Set(tt.key, tt.value)

			if _, err := BuildServiceConfig(); err == nil {
				t.Errorf("expected error for %s=%v", tt.key, tt.value)
			}
		})
	}
}

func TestBuildCSVConfig(t *testing.T) {
	resetViper(t)

	config := BuildCSVConfig()
	if config.Delimiter != ',' || !config.HasHeader {
		t.Errorf("unexpected defaults: %+v", config)
	}

	viper.Set("csv-delimiter", ";")
	viper.Set("csv-header", false)

	config = BuildCSVConfig()
	if config.Delimiter != ';' {
		t.Errorf("expected semicolon delimiter, got %q", config.Delimiter)
	}
	if config.HasHeader {
		t.Error("expected header disabled")
	}
}

func TestBuildReportConfig(t *testing.T) {
	resetViper(t)

	tests := []struct {
		format  string
		wantErr bool
		want    reporter.OutputFormat
	}{
		{"console", false, reporter.FormatConsole},
		{"json", false, reporter.FormatJSON},
		{"csv", false, reporter.FormatCSV},
		{"xml", true, ""},
	}

	for _, tt := range tests {
		config, err := BuildReportConfig(tt.format)
		if tt.wantErr {
			if err == nil {
				t.Errorf("expected error for format %q", tt.format)
			}
			continue
		}
		if err != nil {
			t.Errorf("BuildReportConfig(%q) failed: %v", tt.format, err)
			continue
		}
		if config.Format != tt.want {
			t.Errorf("expected format %s, got %s", tt.want, config.Format)
		}
	}
}

func TestDefaultLessonCost(t *testing.T) {
	resetViper(t)

	cost, err := DefaultLessonCost()
	if err != nil {
		t.Fatalf("DefaultLessonCost failed: %v", err)
	}
	if cost.String() != "2000" {
		t.Errorf("expected 2000, got %s", cost.String())
	}

	viper.Set("default-lesson-cost", "1800")
	cost, err = DefaultLessonCost()
	if err != nil {
		t.Fatalf("DefaultLessonCost failed: %v", err)
	}
	if cost.String() != "1800" {
		t.Errorf("expected 1800, got %s", cost.String())
	}
}
