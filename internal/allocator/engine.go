package allocator

import (
	"sync"
	"time"

	"lesson-reconciliation-service/internal/models"
	"lesson-reconciliation-service/internal/store"
	apperrors "lesson-reconciliation-service/pkg/errors"
	"lesson-reconciliation-service/pkg/logger"

	"github.com/shopspring/decimal"
)

// Engine performs allocations, deallocations and payment lifecycle
// transitions. Mutations run one at a time under an internal mutex and
// each one inside a single store transaction, so two concurrent
// allocations can never both read the same residual.
type Engine struct {
	Config *Config

	store  *store.Store
	logger logger.Logger
	mu     sync.Mutex
}

// NewEngine creates an allocation engine. A nil config falls back to
// DefaultConfig.
func NewEngine(s *store.Store, config *Config) *Engine {
	if config == nil {
		config = DefaultConfig()
	}

	return &Engine{
		Config: config,
		store:  s,
		logger: logger.WithComponent("allocator"),
	}
}

// Allocate carves quota from a payment for one lesson. Repeated calls on
// the same pair accumulate quota; the residual check runs against the
// payment's live residual inside the transaction, so the accumulated
// total can never exceed the payment amount.
func (e *Engine) Allocate(paymentID, lessonID int64, quota decimal.Decimal) (*models.Allocation, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !quota.IsPositive() {
		return nil, apperrors.InvalidQuotaError(quota.String())
	}

	var allocation *models.Allocation
	err := e.store.WithTx(func(tx *store.Tx) error {
		payment, err := tx.Payments.GetByID(paymentID)
		if err != nil {
			return err
		}
		if payment.Status == models.StatusArchived {
			return apperrors.InvalidStateError(paymentID, payment.Status.String(), "allocated")
		}

		lesson, err := tx.Lessons.GetByID(lessonID)
		if err != nil {
			return err
		}
		if !lesson.Payable() {
			return apperrors.ValidationError(apperrors.CodeInvalidAmount,
				"lesson", lesson.String(), nil).
				WithSuggestion("free or zero-cost lessons cannot receive allocations")
		}

		allocated, err := tx.Payments.AllocatedTotal(paymentID)
		if err != nil {
			return err
		}

		residual := payment.ResidualAfter(allocated)
		if quota.GreaterThan(residual) {
			return apperrors.InsufficientResidualError(paymentID, quota.String(), residual.String())
		}

		allocation, err = tx.Allocations.Upsert(paymentID, lessonID, quota)
		if err != nil {
			return err
		}

		if err := confirmIdentity(tx, payment, lesson); err != nil {
			return err
		}

		return e.recomputeStatus(tx, payment, allocated.Add(quota))
	})
	if err != nil {
		return nil, err
	}

	e.logger.WithFields(logger.Fields{
		"payment_id": paymentID,
		"lesson_id":  lessonID,
		"quota":      quota.String(),
	}).Info("Allocated quota")

	return allocation, nil
}

// AllocateBundle spends a payment's entire residual evenly across the
// given lessons. The residual must match a configured bundle price for
// exactly that many lessons. Rounding remainders land on the last lesson
// so the quotas sum to the residual exactly.
func (e *Engine) AllocateBundle(paymentID int64, lessonIDs []int64) ([]*models.Allocation, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if len(lessonIDs) == 0 {
		return nil, apperrors.ValidationError(apperrors.CodeMissingField, "lesson_ids", nil, nil)
	}

	var allocations []*models.Allocation
	err := e.store.WithTx(func(tx *store.Tx) error {
		payment, err := tx.Payments.GetByID(paymentID)
		if err != nil {
			return err
		}
		if payment.Status == models.StatusArchived {
			return apperrors.InvalidStateError(paymentID, payment.Status.String(), "allocated")
		}

		allocated, err := tx.Payments.AllocatedTotal(paymentID)
		if err != nil {
			return err
		}
		residual := payment.ResidualAfter(allocated)

		count, ok := e.Config.DetectBundle(residual)
		if !ok {
			return apperrors.BundleMismatchError(residual.String())
		}
		if count != len(lessonIDs) {
			return apperrors.BundleMismatchError(residual.String()).
				WithContext("expected_lessons", count).
				WithContext("given_lessons", len(lessonIDs))
		}

		n := decimal.NewFromInt(int64(count))
		share := residual.DivRound(n, 2)
		spent := decimal.Zero

		allocations = make([]*models.Allocation, 0, count)
		for i, lessonID := range lessonIDs {
			lesson, err := tx.Lessons.GetByID(lessonID)
			if err != nil {
				return err
			}
			if !lesson.Payable() {
				return apperrors.ValidationError(apperrors.CodeInvalidAmount,
					"lesson", lesson.String(), nil).
					WithSuggestion("free or zero-cost lessons cannot receive allocations")
			}

			quota := share
			if i == count-1 {
				quota = residual.Sub(spent)
			}
			spent = spent.Add(quota)

			allocation, err := tx.Allocations.Upsert(paymentID, lessonID, quota)
			if err != nil {
				return err
			}
			allocations = append(allocations, allocation)

			if err := confirmIdentity(tx, payment, lesson); err != nil {
				return err
			}
		}

		return e.recomputeStatus(tx, payment, payment.Amount)
	})
	if err != nil {
		return nil, err
	}

	e.logger.WithFields(logger.Fields{
		"payment_id": paymentID,
		"lessons":    len(lessonIDs),
	}).Info("Allocated bundle")

	return allocations, nil
}

// Deallocate removes the allocation for a pair and restores the
// payment's lifecycle state from its remaining allocations, reopening
// used payments.
func (e *Engine) Deallocate(paymentID, lessonID int64) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	err := e.store.WithTx(func(tx *store.Tx) error {
		payment, err := tx.Payments.GetByID(paymentID)
		if err != nil {
			return err
		}

		quota, err := tx.Allocations.Delete(paymentID, lessonID)
		if err != nil {
			return err
		}

		allocated, err := tx.Payments.AllocatedTotal(paymentID)
		if err != nil {
			return err
		}

		e.logger.WithFields(logger.Fields{
			"payment_id": paymentID,
			"lesson_id":  lessonID,
			"quota":      quota.String(),
		}).Info("Deallocated quota")

		return e.recomputeStatus(tx, payment, allocated)
	})
	return err
}

// DeallocateLesson removes every allocation touching a lesson (used when
// a lesson is cancelled) and restores each affected payment's state.
func (e *Engine) DeallocateLesson(lessonID int64) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.store.WithTx(func(tx *store.Tx) error {
		paymentIDs, err := tx.Allocations.DeleteByLesson(lessonID)
		if err != nil {
			return err
		}

		for _, paymentID := range paymentIDs {
			payment, err := tx.Payments.GetByID(paymentID)
			if err != nil {
				return err
			}
			allocated, err := tx.Payments.AllocatedTotal(paymentID)
			if err != nil {
				return err
			}
			if err := e.recomputeStatus(tx, payment, allocated); err != nil {
				return err
			}
		}

		return nil
	})
}

// MarkSkipped sets the reversible skip flag, hiding the payment from the
// review workflow without touching its allocations.
func (e *Engine) MarkSkipped(paymentID int64) error {
	return e.store.Payments.SetSkipped(paymentID, true)
}

// ReopenSkipped clears the skip flag.
func (e *Engine) ReopenSkipped(paymentID int64) error {
	return e.store.Payments.SetSkipped(paymentID, false)
}

// MarkArchived moves a payment to the archived branch. Allocations are
// kept; the payment just leaves the active workflow.
func (e *Engine) MarkArchived(paymentID int64) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.store.Payments.UpdateStatus(paymentID, models.StatusArchived)
}

// Unarchive returns an archived payment to the lifecycle state its
// allocations imply.
func (e *Engine) Unarchive(paymentID int64) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.store.WithTx(func(tx *store.Tx) error {
		payment, err := tx.Payments.GetByID(paymentID)
		if err != nil {
			return err
		}
		if payment.Status != models.StatusArchived {
			return apperrors.InvalidStateError(paymentID, payment.Status.String(), "unarchived")
		}

		allocated, err := tx.Payments.AllocatedTotal(paymentID)
		if err != nil {
			return err
		}

		// The stored status is archived, so the derived state always
		// needs a write, even when it comes out pending.
		return tx.Payments.UpdateStatus(paymentID, statusFor(payment.Amount, allocated))
	})
}

// CandidateLessons returns the lessons an operator should see when
// reviewing a payment: within the configured day window, narrowed to the
// associated student when the identity cache resolves the payer.
func (e *Engine) CandidateLessons(paymentID int64) ([]*models.Lesson, error) {
	payment, err := e.store.Payments.GetByID(paymentID)
	if err != nil {
		return nil, err
	}

	fromDay, toDay, err := dayWindow(payment.Day, e.Config.CandidateWindowDays)
	if err != nil {
		return nil, err
	}

	studentName := ""
	if assoc, err := e.store.Associations.GetByPayer(payment.PayerName); err == nil {
		studentName = assoc.StudentName
	} else if !apperrors.IsNotFound(err) {
		return nil, err
	}

	return e.store.Lessons.ListBetweenDays(fromDay, toDay, studentName)
}

// recomputeStatus derives the lifecycle state from the allocated total.
// Archived payments keep their state; the skip flag is independent.
func (e *Engine) recomputeStatus(tx *store.Tx, payment *models.Payment, allocated decimal.Decimal) error {
	if payment.Status == models.StatusArchived {
		return nil
	}

	next := statusFor(payment.Amount, allocated)
	if next == payment.Status {
		return nil
	}
	return tx.Payments.UpdateStatus(payment.ID, next)
}

// statusFor maps an allocated total to the lifecycle state it implies.
func statusFor(amount, allocated decimal.Decimal) models.PaymentStatus {
	switch {
	case allocated.IsZero():
		return models.StatusPending
	case allocated.GreaterThanOrEqual(amount):
		return models.StatusUsed
	default:
		return models.StatusAssociated
	}
}

// confirmIdentity upserts the payer→student association after a
// successful allocation. A human approved the pairing, so it supersedes
// whatever the identity cache held for the student.
func confirmIdentity(tx *store.Tx, payment *models.Payment, lesson *models.Lesson) error {
	if payment.PayerName == "" || lesson.StudentName == "" {
		return nil
	}

	assoc := models.NewAssociation(lesson.StudentName, payment.PayerName,
		"confirmed by allocation", time.Now().UTC().Format(models.DayFormat))
	return tx.Associations.Upsert(assoc)
}

func dayWindow(day string, windowDays int) (string, string, error) {
	from, err := shiftDay(day, -windowDays)
	if err != nil {
		return "", "", err
	}
	to, err := shiftDay(day, windowDays)
	if err != nil {
		return "", "", err
	}
	return from, to, nil
}

func shiftDay(day string, days int) (string, error) {
	t, err := time.Parse(models.DayFormat, day)
	if err != nil {
		return "", apperrors.ValidationError(apperrors.CodeInvalidDate, "day", day, err)
	}
	return t.AddDate(0, 0, days).Format(models.DayFormat), nil
}
