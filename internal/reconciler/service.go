// Package reconciler wires the store, matcher, allocation engine and
// suggestion generator into the one service the CLI and bots talk to.
// Every exported method is a discrete, idempotent operation; callers
// never reach around the service into the engines directly.
package reconciler

import (
	"fmt"
	"time"

	"lesson-reconciliation-service/internal/allocator"
	"lesson-reconciliation-service/internal/matcher"
	"lesson-reconciliation-service/internal/models"
	"lesson-reconciliation-service/internal/store"
	"lesson-reconciliation-service/internal/suggester"
	apperrors "lesson-reconciliation-service/pkg/errors"
	"lesson-reconciliation-service/pkg/logger"

	"github.com/shopspring/decimal"
)

// Config aggregates the tunables of the underlying engines.
type Config struct {
	Allocator *allocator.Config `json:"allocator"`
	Matcher   *matcher.Config   `json:"matcher"`
	Suggester *suggester.Config `json:"suggester"`
}

// DefaultConfig returns the production configuration.
func DefaultConfig() *Config {
	return &Config{
		Allocator: allocator.DefaultConfig(),
		Matcher:   matcher.DefaultConfig(),
		Suggester: suggester.DefaultConfig(),
	}
}

// Validate checks all engine configurations.
func (c *Config) Validate() error {
	if err := c.Allocator.Validate(); err != nil {
		return fmt.Errorf("allocator config: %w", err)
	}
	if err := c.Matcher.Validate(); err != nil {
		return fmt.Errorf("matcher config: %w", err)
	}
	if err := c.Suggester.Validate(); err != nil {
		return fmt.Errorf("suggester config: %w", err)
	}
	return nil
}

// Service exposes the reconciliation operations.
type Service struct {
	Config *Config

	store     *store.Store
	matcher   *matcher.Engine
	allocator *allocator.Engine
	suggester *suggester.Generator
	logger    logger.Logger
}

// NewService creates a reconciliation service over an open store. A nil
// config falls back to DefaultConfig.
func NewService(s *store.Store, config *Config) (*Service, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	matchEngine := matcher.NewEngine(config.Matcher)
	allocEngine := allocator.NewEngine(s, config.Allocator)

	return &Service{
		Config:    config,
		store:     s,
		matcher:   matchEngine,
		allocator: allocEngine,
		suggester: suggester.NewGenerator(s, allocEngine, matchEngine, config.Suggester),
		logger:    logger.WithComponent("reconciler"),
	}, nil
}

// Store exposes the underlying store for ingestion collaborators.
func (s *Service) Store() *store.Store {
	return s.store
}

// Allocate applies quota from a payment to a lesson.
func (s *Service) Allocate(paymentID, lessonID int64, quota decimal.Decimal) (*models.Allocation, error) {
	return s.allocator.Allocate(paymentID, lessonID, quota)
}

// AllocateBundle splits a payment's residual evenly across the lessons
// of a recognized bundle.
func (s *Service) AllocateBundle(paymentID int64, lessonIDs []int64) ([]*models.Allocation, error) {
	return s.allocator.AllocateBundle(paymentID, lessonIDs)
}

// Deallocate removes the allocation for a pair and restores the
// payment's state.
func (s *Service) Deallocate(paymentID, lessonID int64) error {
	return s.allocator.Deallocate(paymentID, lessonID)
}

// MarkSkipped defers a payment without losing its pending state.
func (s *Service) MarkSkipped(paymentID int64) error {
	return s.allocator.MarkSkipped(paymentID)
}

// ReopenSkipped returns a deferred payment to the review queue.
func (s *Service) ReopenSkipped(paymentID int64) error {
	return s.allocator.ReopenSkipped(paymentID)
}

// MarkArchived takes a payment out of the automatic flow.
func (s *Service) MarkArchived(paymentID int64) error {
	return s.allocator.MarkArchived(paymentID)
}

// Unarchive returns an archived payment to the lifecycle state its
// allocations imply.
func (s *Service) Unarchive(paymentID int64) error {
	return s.allocator.Unarchive(paymentID)
}

// ReviewQueue returns the pending, unskipped payments awaiting review.
func (s *Service) ReviewQueue() ([]*models.Payment, error) {
	return s.store.Payments.ListReviewable()
}

// CandidateLessons returns the lessons to show when reviewing a
// payment: within the candidate window, narrowed by the identity cache
// when it resolves the payer.
func (s *Service) CandidateLessons(paymentID int64) ([]*models.Lesson, error) {
	return s.allocator.CandidateLessons(paymentID)
}

// LookupIdentity resolves a payer name through the identity cache.
// Exact lookup only; fuzzy matching is the explicit fallback.
func (s *Service) LookupIdentity(payerName string) (*models.Association, error) {
	return s.store.Associations.GetByPayer(payerName)
}

// UpsertIdentity records a payer→student association, superseding any
// previous payer for the student.
func (s *Service) UpsertIdentity(studentName, payerName, note string) (*models.Association, error) {
	assoc := models.NewAssociation(studentName, payerName, note,
		time.Now().UTC().Format(models.DayFormat))
	if err := s.store.Associations.Upsert(assoc); err != nil {
		return nil, err
	}

	s.logger.WithFields(logger.Fields{
		"student": studentName,
		"payer":   payerName,
	}).Info("Identity recorded")

	return assoc, nil
}

// DeleteIdentity forgets a student's association.
func (s *Service) DeleteIdentity(studentName string) error {
	return s.store.Associations.Delete(studentName)
}

// FuzzyCandidates ranks the known student roster against a payer name.
func (s *Service) FuzzyCandidates(payerName string) ([]matcher.Candidate, error) {
	students, err := s.store.Lessons.StudentNames()
	if err != nil {
		return nil, err
	}

	roster := matcher.NewRoster(students)
	return s.matcher.RankAgainstRoster(payerName, roster), nil
}

// ResolvePayer runs the full resolution ladder for a payer name: the
// identity cache first, fuzzy matching as the fallback. The boolean
// reports whether the resolution is trustworthy without human review.
func (s *Service) ResolvePayer(payerName string) (string, bool, error) {
	assoc, err := s.LookupIdentity(payerName)
	if err == nil {
		return assoc.StudentName, true, nil
	}
	if !apperrors.IsNotFound(err) {
		return "", false, err
	}

	candidates, err := s.FuzzyCandidates(payerName)
	if err != nil {
		return "", false, err
	}
	if len(candidates) == 0 {
		return "", false, nil
	}

	best := candidates[0]
	confident := best.Type == matcher.MatchExact || best.Type == matcher.MatchHighConfidence
	return best.Name, confident, nil
}

// GenerateSuggestions scans for allocation opportunities.
func (s *Service) GenerateSuggestions() ([]*models.Suggestion, error) {
	return s.suggester.Generate()
}

// AcceptSuggestion applies a proposed pairing.
func (s *Service) AcceptSuggestion(lessonID, paymentID int64, quota decimal.Decimal) (*models.Allocation, error) {
	return s.suggester.Accept(lessonID, paymentID, quota)
}

// RejectSuggestion dismisses a pairing; repeated rejections are no-ops.
func (s *Service) RejectSuggestion(lessonID, paymentID int64) error {
	return s.suggester.Reject(lessonID, paymentID)
}

// UnrejectSuggestion forgets a dismissal.
func (s *Service) UnrejectSuggestion(lessonID, paymentID int64) error {
	return s.suggester.Unreject(lessonID, paymentID)
}

// SetLessonCost overrides a lesson's cost after human review.
func (s *Service) SetLessonCost(lessonID int64, cost decimal.Decimal) error {
	return s.store.Lessons.SetCost(lessonID, cost)
}

// SetLessonFree toggles a lesson's free flag.
func (s *Service) SetLessonFree(lessonID int64, free bool) error {
	return s.store.Lessons.SetFree(lessonID, free)
}
