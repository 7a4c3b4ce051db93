// Package matcher scores payer names against student rosters.
//
// Payer names arrive from bank notifications in Cyrillic, while the
// lesson calendar mostly carries Latin spellings. The engine scores a
// payer/student pair 0..100 as the maximum of three ratios computed on
// canonical name forms:
//   - full edit-distance ratio
//   - partial ratio (best window of the shorter name inside the longer)
//   - token-sort ratio (tokens sorted before comparison)
//
// Scores at or above the high-confidence threshold can be auto-linked;
// everything else goes through manual review.
//
// Example usage:
//
//	engine := matcher.NewEngine(matcher.DefaultConfig())
//	candidates := engine.RankCandidates("Дарья М.", roster)
//	if len(candidates) > 0 && engine.Classify(candidates[0].Score) == matcher.MatchHighConfidence {
//		// auto-link
//	}
package matcher

import (
	"fmt"
)

// MatchType represents the confidence classification of a name match.
type MatchType int

const (
	// MatchExact is a perfect score: canonical forms are identical
	// or one name is wholly contained in the other.
	MatchExact MatchType = iota

	// MatchHighConfidence meets the auto-link threshold.
	MatchHighConfidence

	// MatchLowConfidence is a plausible match requiring manual review.
	MatchLowConfidence

	// MatchNone indicates the pair should not be proposed at all.
	MatchNone
)

// String returns the string representation of MatchType
func (mt MatchType) String() string {
	switch mt {
	case MatchExact:
		return "Exact"
	case MatchHighConfidence:
		return "HighConfidence"
	case MatchLowConfidence:
		return "LowConfidence"
	case MatchNone:
		return "None"
	default:
		return "Unknown"
	}
}

// Config holds the thresholds and limits of the matching engine.
//
// Use the provided factory functions for common scenarios:
//   - DefaultConfig(): balanced thresholds for the review workflow
//   - StrictConfig(): exact-leaning, for unattended auto-linking
//   - RelaxedConfig(): wide net, for exploratory candidate listing
type Config struct {
	// HighConfidenceThreshold is the minimum score for auto-linking (0..100).
	HighConfidenceThreshold int `json:"high_confidence_threshold"`

	// LowConfidenceThreshold is the minimum score to surface a pair
	// as a review candidate at all (0..100).
	LowConfidenceThreshold int `json:"low_confidence_threshold"`

	// MaxCandidates limits how many ranked candidates are returned.
	MaxCandidates int `json:"max_candidates"`

	// EnablePartialRatio includes the windowed substring ratio.
	EnablePartialRatio bool `json:"enable_partial_ratio"`

	// EnableTokenSortRatio includes the token-sort ratio.
	EnableTokenSortRatio bool `json:"enable_token_sort_ratio"`
}

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		HighConfidenceThreshold: 95,
		LowConfidenceThreshold:  60,
		MaxCandidates:           10,
		EnablePartialRatio:      true,
		EnableTokenSortRatio:    true,
	}
}

// StrictConfig returns a configuration for unattended matching
func StrictConfig() *Config {
	return &Config{
		HighConfidenceThreshold: 98,
		LowConfidenceThreshold:  80,
		MaxCandidates:           5,
		EnablePartialRatio:      false,
		EnableTokenSortRatio:    true,
	}
}

// RelaxedConfig returns a configuration for exploratory candidate listing
func RelaxedConfig() *Config {
	return &Config{
		HighConfidenceThreshold: 95,
		LowConfidenceThreshold:  40,
		MaxCandidates:           25,
		EnablePartialRatio:      true,
		EnableTokenSortRatio:    true,
	}
}

// Validate checks the configuration for consistency
func (c *Config) Validate() error {
	if c.HighConfidenceThreshold < 0 || c.HighConfidenceThreshold > 100 {
		return fmt.Errorf("high confidence threshold must be in [0,100], got %d", c.HighConfidenceThreshold)
	}
	if c.LowConfidenceThreshold < 0 || c.LowConfidenceThreshold > 100 {
		return fmt.Errorf("low confidence threshold must be in [0,100], got %d", c.LowConfidenceThreshold)
	}
	if c.LowConfidenceThreshold > c.HighConfidenceThreshold {
		return fmt.Errorf("low confidence threshold %d exceeds high confidence threshold %d",
			c.LowConfidenceThreshold, c.HighConfidenceThreshold)
	}
	if c.MaxCandidates <= 0 {
		return fmt.Errorf("max candidates must be positive, got %d", c.MaxCandidates)
	}
	return nil
}

// Clone returns a deep copy of the configuration
func (c *Config) Clone() *Config {
	clone := *c
	return &clone
}
