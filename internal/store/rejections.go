package store

import (
	"time"

	"lesson-reconciliation-service/internal/models"
	apperrors "lesson-reconciliation-service/pkg/errors"
)

// RejectionRepo persists dismissed (lesson, payment) suggestion pairs.
type RejectionRepo struct {
	ext Ext
}

// NewRejectionRepo binds a rejection repository to a db handle or transaction.
func NewRejectionRepo(ext Ext) *RejectionRepo {
	return &RejectionRepo{ext: ext}
}

// Reject records a dismissed pair. Idempotent: repeating a rejection is
// a no-op.
func (r *RejectionRepo) Reject(lessonID, paymentID int64) error {
	query := r.ext.Rebind(`
		INSERT INTO rejected_suggestions (lesson_id, payment_id, rejected_at)
		VALUES (?, ?, ?)
		ON CONFLICT(lesson_id, payment_id) DO NOTHING`)

	if _, err := r.ext.Exec(query, lessonID, paymentID, time.Now().UTC()); err != nil {
		return apperrors.StorageError(apperrors.CodeQueryFailed, "reject suggestion", err)
	}

	return nil
}

// Unreject lifts a rejection so the pair can be suggested again.
func (r *RejectionRepo) Unreject(lessonID, paymentID int64) error {
	query := r.ext.Rebind(`DELETE FROM rejected_suggestions WHERE lesson_id = ? AND payment_id = ?`)
	result, err := r.ext.Exec(query, lessonID, paymentID)
	if err != nil {
		return apperrors.StorageError(apperrors.CodeQueryFailed, "unreject suggestion", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return apperrors.StorageError(apperrors.CodeQueryFailed, "unreject suggestion", err)
	}
	if affected == 0 {
		return apperrors.NotFoundError("rejected suggestion", [2]int64{lessonID, paymentID})
	}

	return nil
}

// IsRejected reports whether a pair has been dismissed.
func (r *RejectionRepo) IsRejected(lessonID, paymentID int64) (bool, error) {
	var count int
	query := r.ext.Rebind(`SELECT COUNT(*) FROM rejected_suggestions WHERE lesson_id = ? AND payment_id = ?`)
	if err := r.ext.Get(&count, query, lessonID, paymentID); err != nil {
		return false, apperrors.StorageError(apperrors.CodeQueryFailed, "check rejection", err)
	}
	return count > 0, nil
}

// ListByPayment returns the lesson ids already dismissed for a payment.
func (r *RejectionRepo) ListByPayment(paymentID int64) (map[int64]bool, error) {
	var lessonIDs []int64
	query := r.ext.Rebind(`SELECT lesson_id FROM rejected_suggestions WHERE payment_id = ?`)
	if err := r.ext.Select(&lessonIDs, query, paymentID); err != nil {
		return nil, apperrors.StorageError(apperrors.CodeQueryFailed, "list rejections", err)
	}

	rejected := make(map[int64]bool, len(lessonIDs))
	for _, id := range lessonIDs {
		rejected[id] = true
	}
	return rejected, nil
}

// List returns every rejection, newest first.
func (r *RejectionRepo) List() ([]*models.RejectedSuggestion, error) {
	var rejections []*models.RejectedSuggestion
	query := `SELECT * FROM rejected_suggestions ORDER BY rejected_at DESC, id DESC`
	if err := r.ext.Select(&rejections, query); err != nil {
		return nil, apperrors.StorageError(apperrors.CodeQueryFailed, "list rejections", err)
	}
	return rejections, nil
}
