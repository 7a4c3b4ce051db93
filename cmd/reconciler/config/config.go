// Package config translates viper-backed settings into the engine
// configurations the service layers expect. Every builder starts from
// the package defaults and applies only the keys the user actually set,
// so a config file can override one knob without restating the rest.
package config

import (
	"fmt"
	"strconv"

	"lesson-reconciliation-service/internal/ingest"
	"lesson-reconciliation-service/internal/reconciler"
	"lesson-reconciliation-service/internal/reporter"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// BuildServiceConfig assembles the reconciliation service configuration
// from viper settings layered over the defaults.
func BuildServiceConfig() (*reconciler.Config, error) {
	config := reconciler.DefaultConfig()

	if viper.IsSet("match-threshold") {
		config.Matcher.HighConfidenceThreshold = viper.GetInt("match-threshold")
	}
	if viper.IsSet("match-floor") {
		config.Matcher.LowConfidenceThreshold = viper.GetInt("match-floor")
	}
	if viper.IsSet("suggest-window") {
		config.Suggester.WindowDays = viper.GetInt("suggest-window")
	}
	if viper.IsSet("suggest-cap") {
		config.Suggester.MaxSuggestions = viper.GetInt("suggest-cap")
	}
	if viper.IsSet("candidate-window") {
		config.Allocator.CandidateWindowDays = viper.GetInt("candidate-window")
	}
	if viper.IsSet("default-lesson-cost") {
		cost, err := decimal.NewFromString(viper.GetString("default-lesson-cost"))
		if err != nil {
			return nil, fmt.Errorf("invalid default-lesson-cost: %w", err)
		}
		config.Allocator.DefaultLessonCost = cost
	}
	if viper.IsSet("bundles") {
		bundles := map[string]int{}
		for price, raw := range viper.GetStringMapString("bundles") {
			n, err := strconv.Atoi(raw)
			if err != nil || n <= 0 {
				return nil, fmt.Errorf("invalid bundle size for price %s: %q", price, raw)
			}
			bundles[price] = n
		}
		config.Allocator.BundlePrices = bundles
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid service configuration: %w", err)
	}
	return config, nil
}

// BuildCSVConfig assembles the CSV reader configuration for ingestion.
func BuildCSVConfig() *ingest.CSVConfig {
	config := ingest.DefaultCSVConfig()

	if viper.IsSet("csv-delimiter") {
		if d := viper.GetString("csv-delimiter"); d != "" {
			config.Delimiter = rune(d[0])
		}
	}
	if viper.IsSet("csv-header") {
		config.HasHeader = viper.GetBool("csv-header")
	}
	return config
}

// BuildReportConfig creates a report configuration for the requested
// output format.
func BuildReportConfig(format string) (*reporter.ReportConfig, error) {
	config := reporter.DefaultReportConfig()
	config.Format = reporter.OutputFormat(format)

	switch config.Format {
	case reporter.FormatConsole:
		config.IncludeUnpaidLessons = true
		config.IncludeSuggestions = true
	case reporter.FormatJSON:
		config.IncludeUnpaidLessons = true
		config.IncludeSuggestions = true
	case reporter.FormatCSV:
		config.CSVHeaders = true
		config.CSVDelimiter = ','
	default:
		return nil, fmt.Errorf("invalid output format '%s'. Valid formats: console, json, csv", format)
	}

	if viper.IsSet("csv-delimiter") {
		if d := viper.GetString("csv-delimiter"); d != "" {
			config.CSVDelimiter = rune(d[0])
		}
	}

	return config, nil
}

// DefaultLessonCost resolves the cost assigned to calendar rows without
// an explicit price.
func DefaultLessonCost() (decimal.Decimal, error) {
	if !viper.IsSet("default-lesson-cost") {
		return decimal.NewFromInt(2000), nil
	}
	cost, err := decimal.NewFromString(viper.GetString("default-lesson-cost"))
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid default-lesson-cost: %w", err)
	}
	return cost, nil
}
