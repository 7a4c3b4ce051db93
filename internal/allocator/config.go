// Package allocator carves payment amounts into per-lesson quotas while
// enforcing the payment-side hard invariant: the sum of a payment's
// quotas never exceeds its amount.
package allocator

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Config holds the allocation engine's tunables.
type Config struct {
	// BundlePrices maps a payment residual (as a decimal string) to the
	// number of lessons the bundle buys. Detection runs on the residual,
	// not the original amount, so a partially spent payment can still
	// close out as a smaller bundle.
	BundlePrices map[string]int `json:"bundle_prices"`

	// DefaultLessonCost is assigned to ingested lessons without a price.
	DefaultLessonCost decimal.Decimal `json:"default_lesson_cost"`

	// CandidateWindowDays bounds the lesson candidate query around a
	// payment's day.
	CandidateWindowDays int `json:"candidate_window_days"`
}

// DefaultConfig returns the production price table and windows.
func DefaultConfig() *Config {
	return &Config{
		BundlePrices: map[string]int{
			"6600":  3,
			"10500": 5,
			"20000": 10,
		},
		DefaultLessonCost:   decimal.NewFromInt(2000),
		CandidateWindowDays: 3,
	}
}

// Validate checks the configuration for consistency
func (c *Config) Validate() error {
	for price, count := range c.BundlePrices {
		d, err := decimal.NewFromString(price)
		if err != nil {
			return fmt.Errorf("invalid bundle price '%s': %w", price, err)
		}
		if !d.IsPositive() {
			return fmt.Errorf("bundle price must be positive, got %s", price)
		}
		if count <= 0 {
			return fmt.Errorf("bundle lesson count must be positive, got %d for price %s", count, price)
		}
	}

	if c.DefaultLessonCost.IsNegative() {
		return fmt.Errorf("default lesson cost cannot be negative, got %s", c.DefaultLessonCost.String())
	}

	if c.CandidateWindowDays < 0 {
		return fmt.Errorf("candidate window days cannot be negative, got %d", c.CandidateWindowDays)
	}

	return nil
}

// Clone returns a deep copy of the configuration
func (c *Config) Clone() *Config {
	clone := *c
	clone.BundlePrices = make(map[string]int, len(c.BundlePrices))
	for price, count := range c.BundlePrices {
		clone.BundlePrices[price] = count
	}
	return &clone
}

// DetectBundle reports how many lessons a residual buys, when the
// residual exactly matches a configured bundle price.
func (c *Config) DetectBundle(residual decimal.Decimal) (int, bool) {
	for price, count := range c.BundlePrices {
		d, err := decimal.NewFromString(price)
		if err != nil {
			continue
		}
		if residual.Equal(d) {
			return count, true
		}
	}
	return 0, false
}
