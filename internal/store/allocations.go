package store

import (
	"database/sql"
	"time"

	"lesson-reconciliation-service/internal/models"
	apperrors "lesson-reconciliation-service/pkg/errors"

	"github.com/shopspring/decimal"
)

// AllocationRepo persists the payment→lesson quota bridge rows.
type AllocationRepo struct {
	ext Ext
}

// NewAllocationRepo binds an allocation repository to a db handle or transaction.
func NewAllocationRepo(ext Ext) *AllocationRepo {
	return &AllocationRepo{ext: ext}
}

// Upsert adds quota to the (payment, lesson) pair, creating the row on
// first contact and accumulating on repeats. Residual enforcement is the
// caller's job, inside the same transaction.
func (r *AllocationRepo) Upsert(paymentID, lessonID int64, quota decimal.Decimal) (*models.Allocation, error) {
	if !quota.IsPositive() {
		return nil, apperrors.InvalidQuotaError(quota.String())
	}

	a := &models.Allocation{
		PaymentID: paymentID,
		LessonID:  lessonID,
		Quota:     quota,
		CreatedAt: time.Now().UTC(),
	}

	query := r.ext.Rebind(`
		INSERT INTO allocations (payment_id, lesson_id, quota, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(payment_id, lesson_id) DO UPDATE SET
			quota = allocations.quota + excluded.quota
		RETURNING id, quota`)

	err := r.ext.QueryRowx(query, a.PaymentID, a.LessonID, a.Quota, a.CreatedAt).
		Scan(&a.ID, &a.Quota)
	if err != nil {
		return nil, apperrors.StorageError(apperrors.CodeQueryFailed, "upsert allocation", err)
	}

	return a, nil
}

// GetByPair fetches the allocation row for a (payment, lesson) pair.
func (r *AllocationRepo) GetByPair(paymentID, lessonID int64) (*models.Allocation, error) {
	var a models.Allocation
	query := r.ext.Rebind(`SELECT * FROM allocations WHERE payment_id = ? AND lesson_id = ?`)
	if err := r.ext.Get(&a, query, paymentID, lessonID); err != nil {
		if err == sql.ErrNoRows {
			return nil, apperrors.NotFoundError("allocation", [2]int64{paymentID, lessonID})
		}
		return nil, apperrors.StorageError(apperrors.CodeQueryFailed, "get allocation", err)
	}
	return &a, nil
}

// ListByPayment returns a payment's allocations, oldest first.
func (r *AllocationRepo) ListByPayment(paymentID int64) ([]*models.Allocation, error) {
	var allocations []*models.Allocation
	query := r.ext.Rebind(`SELECT * FROM allocations WHERE payment_id = ? ORDER BY created_at, id`)
	if err := r.ext.Select(&allocations, query, paymentID); err != nil {
		return nil, apperrors.StorageError(apperrors.CodeQueryFailed, "list allocations by payment", err)
	}
	return allocations, nil
}

// ListByLesson returns a lesson's allocations, oldest first.
func (r *AllocationRepo) ListByLesson(lessonID int64) ([]*models.Allocation, error) {
	var allocations []*models.Allocation
	query := r.ext.Rebind(`SELECT * FROM allocations WHERE lesson_id = ? ORDER BY created_at, id`)
	if err := r.ext.Select(&allocations, query, lessonID); err != nil {
		return nil, apperrors.StorageError(apperrors.CodeQueryFailed, "list allocations by lesson", err)
	}
	return allocations, nil
}

// Delete removes the allocation row for a pair and returns the quota it
// carried, so callers can restore payment state.
func (r *AllocationRepo) Delete(paymentID, lessonID int64) (decimal.Decimal, error) {
	a, err := r.GetByPair(paymentID, lessonID)
	if err != nil {
		return decimal.Zero, err
	}

	query := r.ext.Rebind(`DELETE FROM allocations WHERE payment_id = ? AND lesson_id = ?`)
	if _, err := r.ext.Exec(query, paymentID, lessonID); err != nil {
		return decimal.Zero, apperrors.StorageError(apperrors.CodeQueryFailed, "delete allocation", err)
	}

	return a.Quota, nil
}

// DeleteByLesson removes every allocation touching a lesson and returns
// the payment ids that lost quota.
func (r *AllocationRepo) DeleteByLesson(lessonID int64) ([]int64, error) {
	allocations, err := r.ListByLesson(lessonID)
	if err != nil {
		return nil, err
	}

	query := r.ext.Rebind(`DELETE FROM allocations WHERE lesson_id = ?`)
	if _, err := r.ext.Exec(query, lessonID); err != nil {
		return nil, apperrors.StorageError(apperrors.CodeQueryFailed, "delete allocations by lesson", err)
	}

	paymentIDs := make([]int64, 0, len(allocations))
	for _, a := range allocations {
		paymentIDs = append(paymentIDs, a.PaymentID)
	}
	return paymentIDs, nil
}
