package store

import (
	"database/sql"
	"time"

	"lesson-reconciliation-service/internal/models"
	apperrors "lesson-reconciliation-service/pkg/errors"

	"github.com/shopspring/decimal"
)

// PaymentRepo persists payments and answers residual queries.
type PaymentRepo struct {
	ext Ext
}

// NewPaymentRepo binds a payment repository to a db handle or transaction.
func NewPaymentRepo(ext Ext) *PaymentRepo {
	return &PaymentRepo{ext: ext}
}

// Create inserts a payment. A source-id collision is reported as a
// duplicate-ingestion error so callers can treat it as a no-op.
func (r *PaymentRepo) Create(p *models.Payment) error {
	if err := p.Validate(); err != nil {
		return apperrors.ValidationError(apperrors.CodeMissingField, "payment", p.String(), err)
	}

	now := time.Now().UTC()
	p.CreatedAt = now
	p.UpdatedAt = now

	query := r.ext.Rebind(`
		INSERT INTO payments (payer_name, day, time_of_day, amount, currency, status, skipped, source_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id`)

	err := r.ext.QueryRowx(query,
		p.PayerName, p.Day, p.TimeOfDay, p.Amount, p.Currency,
		p.Status, p.Skipped, p.SourceID, p.CreatedAt, p.UpdatedAt,
	).Scan(&p.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return apperrors.DuplicateIngestionError(p.SourceID.String)
		}
		return apperrors.StorageError(apperrors.CodeQueryFailed, "create payment", err)
	}

	return nil
}

// GetByID fetches one payment.
func (r *PaymentRepo) GetByID(id int64) (*models.Payment, error) {
	var p models.Payment
	query := r.ext.Rebind(`SELECT * FROM payments WHERE id = ?`)
	if err := r.ext.Get(&p, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, apperrors.NotFoundError("payment", id)
		}
		return nil, apperrors.StorageError(apperrors.CodeQueryFailed, "get payment", err)
	}
	return &p, nil
}

// GetBySourceID fetches a payment by its ingestion idempotency key.
func (r *PaymentRepo) GetBySourceID(sourceID string) (*models.Payment, error) {
	var p models.Payment
	query := r.ext.Rebind(`SELECT * FROM payments WHERE source_id = ?`)
	if err := r.ext.Get(&p, query, sourceID); err != nil {
		if err == sql.ErrNoRows {
			return nil, apperrors.NotFoundError("payment", sourceID)
		}
		return nil, apperrors.StorageError(apperrors.CodeQueryFailed, "get payment by source", err)
	}
	return &p, nil
}

// ListByStatus returns payments in a given lifecycle state, oldest first.
func (r *PaymentRepo) ListByStatus(status models.PaymentStatus) ([]*models.Payment, error) {
	var payments []*models.Payment
	query := r.ext.Rebind(`SELECT * FROM payments WHERE status = ? ORDER BY day, time_of_day, id`)
	if err := r.ext.Select(&payments, query, status); err != nil {
		return nil, apperrors.StorageError(apperrors.CodeQueryFailed, "list payments", err)
	}
	return payments, nil
}

// ListReviewable returns pending, unskipped payments, oldest first.
func (r *PaymentRepo) ListReviewable() ([]*models.Payment, error) {
	var payments []*models.Payment
	query := r.ext.Rebind(`
		SELECT * FROM payments
		WHERE status = ? AND skipped = ?
		ORDER BY day, time_of_day, id`)
	if err := r.ext.Select(&payments, query, models.StatusPending, false); err != nil {
		return nil, apperrors.StorageError(apperrors.CodeQueryFailed, "list reviewable payments", err)
	}
	return payments, nil
}

// UpdateStatus moves a payment to a new lifecycle state.
func (r *PaymentRepo) UpdateStatus(id int64, status models.PaymentStatus) error {
	if !status.IsValid() {
		return apperrors.InvalidStateError(id, "?", status.String())
	}

	query := r.ext.Rebind(`UPDATE payments SET status = ?, updated_at = ? WHERE id = ?`)
	result, err := r.ext.Exec(query, status, time.Now().UTC(), id)
	if err != nil {
		return apperrors.StorageError(apperrors.CodeQueryFailed, "update payment status", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return apperrors.StorageError(apperrors.CodeQueryFailed, "update payment status", err)
	}
	if affected == 0 {
		return apperrors.NotFoundError("payment", id)
	}

	return nil
}

// SetSkipped flips the reversible skip flag.
func (r *PaymentRepo) SetSkipped(id int64, skipped bool) error {
	query := r.ext.Rebind(`UPDATE payments SET skipped = ?, updated_at = ? WHERE id = ?`)
	result, err := r.ext.Exec(query, skipped, time.Now().UTC(), id)
	if err != nil {
		return apperrors.StorageError(apperrors.CodeQueryFailed, "set payment skipped", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return apperrors.StorageError(apperrors.CodeQueryFailed, "set payment skipped", err)
	}
	if affected == 0 {
		return apperrors.NotFoundError("payment", id)
	}

	return nil
}

// AllocatedTotal sums the quotas already carved out of a payment.
func (r *PaymentRepo) AllocatedTotal(id int64) (decimal.Decimal, error) {
	var total decimal.Decimal
	query := r.ext.Rebind(`SELECT COALESCE(SUM(quota), 0) FROM allocations WHERE payment_id = ?`)
	if err := r.ext.Get(&total, query, id); err != nil {
		return decimal.Zero, apperrors.StorageError(apperrors.CodeQueryFailed, "sum payment allocations", err)
	}
	return total, nil
}

// Residual returns the unallocated remainder of a payment.
func (r *PaymentRepo) Residual(id int64) (decimal.Decimal, error) {
	p, err := r.GetByID(id)
	if err != nil {
		return decimal.Zero, err
	}

	allocated, err := r.AllocatedTotal(id)
	if err != nil {
		return decimal.Zero, err
	}

	return p.ResidualAfter(allocated), nil
}
