// Package suggester proposes payment↔lesson pairings for human review.
// It only joins through confirmed identity associations; unresolved
// payers stay in the manual matching workflow.
package suggester

import (
	"fmt"
	"sort"
	"time"

	"lesson-reconciliation-service/internal/allocator"
	"lesson-reconciliation-service/internal/matcher"
	"lesson-reconciliation-service/internal/models"
	"lesson-reconciliation-service/internal/store"
	apperrors "lesson-reconciliation-service/pkg/errors"
	"lesson-reconciliation-service/pkg/logger"

	"github.com/shopspring/decimal"
)

// Config holds the generator's tunables.
type Config struct {
	// WindowDays bounds the absolute day distance between a lesson and
	// a payment for the pair to be proposed.
	WindowDays int `json:"window_days"`

	// MaxSuggestions caps the review queue per generation pass.
	MaxSuggestions int `json:"max_suggestions"`
}

// DefaultConfig returns the production window and cap.
func DefaultConfig() *Config {
	return &Config{
		WindowDays:     7,
		MaxSuggestions: 20,
	}
}

// Validate checks the configuration for consistency
func (c *Config) Validate() error {
	if c.WindowDays < 0 {
		return fmt.Errorf("window days cannot be negative, got %d", c.WindowDays)
	}
	if c.MaxSuggestions <= 0 {
		return fmt.Errorf("max suggestions must be positive, got %d", c.MaxSuggestions)
	}
	return nil
}

// Generator scans the store for allocation opportunities.
type Generator struct {
	Config *Config

	store     *store.Store
	allocator *allocator.Engine
	matcher   *matcher.Engine
	logger    logger.Logger
}

// NewGenerator creates a suggestion generator. A nil config falls back
// to DefaultConfig.
func NewGenerator(s *store.Store, alloc *allocator.Engine, match *matcher.Engine, config *Config) *Generator {
	if config == nil {
		config = DefaultConfig()
	}
	if match == nil {
		match = matcher.NewEngine(nil)
	}

	return &Generator{
		Config:    config,
		store:     s,
		allocator: alloc,
		matcher:   match,
		logger:    logger.WithComponent("suggester"),
	}
}

// entry carries the lesson day alongside the suggestion for ordering.
type entry struct {
	suggestion *models.Suggestion
	lessonDay  string
}

// Generate proposes payment↔lesson pairs. A pair is proposed when an
// identity association links the payment's payer to the lesson's
// student, both sides have a positive balance (lesson outstanding,
// payment residual), the pair is within the day window and has not been
// rejected. Closest-in-time pairs come first, capped at MaxSuggestions.
func (g *Generator) Generate() ([]*models.Suggestion, error) {
	associations, err := g.store.Associations.List()
	if err != nil {
		return nil, err
	}
	if len(associations) == 0 {
		return nil, nil
	}

	studentsByPayer := make(map[string]map[string]bool)
	for _, a := range associations {
		if studentsByPayer[a.PayerName] == nil {
			studentsByPayer[a.PayerName] = make(map[string]bool)
		}
		studentsByPayer[a.PayerName][a.StudentName] = true
	}

	payments, err := g.openPayments()
	if err != nil {
		return nil, err
	}

	var entries []entry
	for _, payment := range payments {
		students := studentsByPayer[payment.PayerName]
		if len(students) == 0 {
			continue
		}

		residual, err := g.store.Payments.Residual(payment.ID)
		if err != nil {
			return nil, err
		}
		if !residual.IsPositive() {
			continue
		}

		rejected, err := g.store.Rejections.ListByPayment(payment.ID)
		if err != nil {
			return nil, err
		}

		fromDay, toDay, err := dayWindow(payment.Day, g.Config.WindowDays)
		if err != nil {
			return nil, err
		}

		lessons, err := g.store.Lessons.ListWithPaidBetween(fromDay, toDay)
		if err != nil {
			return nil, err
		}

		for _, lesson := range lessons {
			if !students[lesson.StudentName] || rejected[lesson.ID] {
				continue
			}

			outstanding := lesson.OutstandingAfter(lesson.Paid)
			if !outstanding.IsPositive() {
				continue
			}

			distance, err := models.DayDistance(payment.Day, lesson.Day)
			if err != nil {
				continue
			}

			entries = append(entries, entry{
				suggestion: &models.Suggestion{
					PaymentID:   payment.ID,
					LessonID:    lesson.ID,
					PayerName:   payment.PayerName,
					StudentName: lesson.StudentName,
					Quota:       models.MinDecimal(outstanding, residual),
					Score:       g.matcher.Similarity(payment.PayerName, lesson.StudentName),
					DayDistance: distance,
				},
				lessonDay: lesson.Day,
			})
		}
	}

	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].suggestion.DayDistance != entries[j].suggestion.DayDistance {
			return entries[i].suggestion.DayDistance < entries[j].suggestion.DayDistance
		}
		return entries[i].lessonDay > entries[j].lessonDay
	})

	if len(entries) > g.Config.MaxSuggestions {
		entries = entries[:g.Config.MaxSuggestions]
	}

	suggestions := make([]*models.Suggestion, len(entries))
	for i, e := range entries {
		suggestions[i] = e.suggestion
	}

	g.logger.WithField("count", len(suggestions)).Debug("Generated suggestions")
	return suggestions, nil
}

// Accept applies a suggestion through the allocation engine's
// single-lesson path.
func (g *Generator) Accept(lessonID, paymentID int64, quota decimal.Decimal) (*models.Allocation, error) {
	return g.allocator.Allocate(paymentID, lessonID, quota)
}

// Reject remembers a dismissed pair so later passes skip it. Rejecting
// an already-rejected pair is a no-op.
func (g *Generator) Reject(lessonID, paymentID int64) error {
	return g.store.Rejections.Reject(lessonID, paymentID)
}

// Unreject forgets a rejection so the pair can surface again.
func (g *Generator) Unreject(lessonID, paymentID int64) error {
	return g.store.Rejections.Unreject(lessonID, paymentID)
}

// openPayments returns the payments still eligible for suggestions:
// everything short of fully spent, archived included (an archived
// payment keeps its residual and can still be matched), minus deferred
// ones.
func (g *Generator) openPayments() ([]*models.Payment, error) {
	var payments []*models.Payment
	for _, status := range []models.PaymentStatus{
		models.StatusPending, models.StatusAssociated, models.StatusArchived,
	} {
		batch, err := g.store.Payments.ListByStatus(status)
		if err != nil {
			return nil, err
		}
		for _, p := range batch {
			if p.Skipped {
				continue
			}
			payments = append(payments, p)
		}
	}
	return payments, nil
}

func dayWindow(day string, windowDays int) (string, string, error) {
	t, err := time.Parse(models.DayFormat, day)
	if err != nil {
		return "", "", apperrors.ValidationError(apperrors.CodeInvalidDate, "day", day, err)
	}
	return t.AddDate(0, 0, -windowDays).Format(models.DayFormat),
		t.AddDate(0, 0, windowDays).Format(models.DayFormat), nil
}
