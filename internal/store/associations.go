package store

import (
	"database/sql"
	"time"

	"lesson-reconciliation-service/internal/models"
	apperrors "lesson-reconciliation-service/pkg/errors"
)

// AssociationRepo persists the payer→student identity cache.
type AssociationRepo struct {
	ext Ext
}

// NewAssociationRepo binds an association repository to a db handle or transaction.
func NewAssociationRepo(ext Ext) *AssociationRepo {
	return &AssociationRepo{ext: ext}
}

// Upsert records an identity. A student can have at most one active
// association; re-upserting replaces payer, note and validity date.
func (r *AssociationRepo) Upsert(a *models.Association) error {
	if err := a.Validate(); err != nil {
		return apperrors.ValidationError(apperrors.CodeMissingField, "association", a.String(), err)
	}

	now := time.Now().UTC()
	a.CreatedAt = now
	a.UpdatedAt = now

	query := r.ext.Rebind(`
		INSERT INTO associations (student_name, payer_name, note, valid_from, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(student_name) DO UPDATE SET
			payer_name = excluded.payer_name,
			note       = excluded.note,
			valid_from = excluded.valid_from,
			updated_at = excluded.updated_at
		RETURNING id`)

	err := r.ext.QueryRowx(query,
		a.StudentName, a.PayerName, a.Note, a.ValidFrom, a.CreatedAt, a.UpdatedAt,
	).Scan(&a.ID)
	if err != nil {
		return apperrors.StorageError(apperrors.CodeQueryFailed, "upsert association", err)
	}

	return nil
}

// GetByPayer resolves a payer name to its most recently confirmed
// association. One payer may fund several students; the latest
// confirmation wins for the review shortcut.
func (r *AssociationRepo) GetByPayer(payerName string) (*models.Association, error) {
	var a models.Association
	query := r.ext.Rebind(`
		SELECT * FROM associations
		WHERE payer_name = ?
		ORDER BY updated_at DESC, id DESC
		LIMIT 1`)
	if err := r.ext.Get(&a, query, payerName); err != nil {
		if err == sql.ErrNoRows {
			return nil, apperrors.NotFoundError("association", payerName)
		}
		return nil, apperrors.StorageError(apperrors.CodeQueryFailed, "get association by payer", err)
	}
	return &a, nil
}

// GetByStudent fetches the active association for a student.
func (r *AssociationRepo) GetByStudent(studentName string) (*models.Association, error) {
	var a models.Association
	query := r.ext.Rebind(`SELECT * FROM associations WHERE student_name = ?`)
	if err := r.ext.Get(&a, query, studentName); err != nil {
		if err == sql.ErrNoRows {
			return nil, apperrors.NotFoundError("association", studentName)
		}
		return nil, apperrors.StorageError(apperrors.CodeQueryFailed, "get association by student", err)
	}
	return &a, nil
}

// List returns every association, alphabetical by student.
func (r *AssociationRepo) List() ([]*models.Association, error) {
	var associations []*models.Association
	query := `SELECT * FROM associations ORDER BY student_name`
	if err := r.ext.Select(&associations, query); err != nil {
		return nil, apperrors.StorageError(apperrors.CodeQueryFailed, "list associations", err)
	}
	return associations, nil
}

// Delete removes a student's association.
func (r *AssociationRepo) Delete(studentName string) error {
	query := r.ext.Rebind(`DELETE FROM associations WHERE student_name = ?`)
	result, err := r.ext.Exec(query, studentName)
	if err != nil {
		return apperrors.StorageError(apperrors.CodeQueryFailed, "delete association", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return apperrors.StorageError(apperrors.CodeQueryFailed, "delete association", err)
	}
	if affected == 0 {
		return apperrors.NotFoundError("association", studentName)
	}

	return nil
}
