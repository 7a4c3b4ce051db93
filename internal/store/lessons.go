package store

import (
	"database/sql"
	"time"

	"lesson-reconciliation-service/internal/models"
	apperrors "lesson-reconciliation-service/pkg/errors"

	"github.com/shopspring/decimal"
)

// LessonRepo persists lessons and answers paid-total queries.
type LessonRepo struct {
	ext Ext
}

// NewLessonRepo binds a lesson repository to a db handle or transaction.
func NewLessonRepo(ext Ext) *LessonRepo {
	return &LessonRepo{ext: ext}
}

// LessonWithPaid carries a lesson together with its allocated total.
type LessonWithPaid struct {
	models.Lesson
	Paid decimal.Decimal `db:"paid"`
}

// Create inserts a lesson. A source-id collision is reported as a
// duplicate-ingestion error.
func (r *LessonRepo) Create(l *models.Lesson) error {
	if err := l.Validate(); err != nil {
		return apperrors.ValidationError(apperrors.CodeMissingField, "lesson", l.String(), err)
	}

	now := time.Now().UTC()
	l.CreatedAt = now
	l.UpdatedAt = now

	query := r.ext.Rebind(`
		INSERT INTO lessons (student_name, day, time_of_day, cost, free, source_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id`)

	err := r.ext.QueryRowx(query,
		l.StudentName, l.Day, l.TimeOfDay, l.Cost, l.Free, l.SourceID,
		l.CreatedAt, l.UpdatedAt,
	).Scan(&l.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return apperrors.DuplicateIngestionError(l.SourceID.String)
		}
		return apperrors.StorageError(apperrors.CodeQueryFailed, "create lesson", err)
	}

	return nil
}

// UpsertBySourceID inserts a lesson or, when its calendar source id is
// already known, refreshes the mutable fields (student, day, time).
// Cost and free flag are operator-managed and survive re-ingestion.
func (r *LessonRepo) UpsertBySourceID(l *models.Lesson) error {
	if !l.SourceID.Valid || l.SourceID.String == "" {
		return apperrors.ValidationError(apperrors.CodeMissingField, "lesson.source_id", "", nil)
	}
	if err := l.Validate(); err != nil {
		return apperrors.ValidationError(apperrors.CodeMissingField, "lesson", l.String(), err)
	}

	now := time.Now().UTC()
	l.CreatedAt = now
	l.UpdatedAt = now

	query := r.ext.Rebind(`
		INSERT INTO lessons (student_name, day, time_of_day, cost, free, source_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(source_id) DO UPDATE SET
			student_name = excluded.student_name,
			day          = excluded.day,
			time_of_day  = excluded.time_of_day,
			updated_at   = excluded.updated_at
		RETURNING id`)

	err := r.ext.QueryRowx(query,
		l.StudentName, l.Day, l.TimeOfDay, l.Cost, l.Free, l.SourceID,
		l.CreatedAt, l.UpdatedAt,
	).Scan(&l.ID)
	if err != nil {
		return apperrors.StorageError(apperrors.CodeQueryFailed, "upsert lesson", err)
	}

	return nil
}

// GetBySourceID fetches a lesson by its calendar idempotency key.
func (r *LessonRepo) GetBySourceID(sourceID string) (*models.Lesson, error) {
	var l models.Lesson
	query := r.ext.Rebind(`SELECT * FROM lessons WHERE source_id = ?`)
	if err := r.ext.Get(&l, query, sourceID); err != nil {
		if err == sql.ErrNoRows {
			return nil, apperrors.NotFoundError("lesson", sourceID)
		}
		return nil, apperrors.StorageError(apperrors.CodeQueryFailed, "get lesson by source id", err)
	}
	return &l, nil
}

// GetByID fetches one lesson.
func (r *LessonRepo) GetByID(id int64) (*models.Lesson, error) {
	var l models.Lesson
	query := r.ext.Rebind(`SELECT * FROM lessons WHERE id = ?`)
	if err := r.ext.Get(&l, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, apperrors.NotFoundError("lesson", id)
		}
		return nil, apperrors.StorageError(apperrors.CodeQueryFailed, "get lesson", err)
	}
	return &l, nil
}

// SetCost updates a lesson's cost.
func (r *LessonRepo) SetCost(id int64, cost decimal.Decimal) error {
	if cost.IsNegative() {
		return apperrors.ValidationError(apperrors.CodeInvalidAmount, "lesson.cost", cost.String(), nil)
	}

	query := r.ext.Rebind(`UPDATE lessons SET cost = ?, updated_at = ? WHERE id = ?`)
	result, err := r.ext.Exec(query, cost, time.Now().UTC(), id)
	if err != nil {
		return apperrors.StorageError(apperrors.CodeQueryFailed, "set lesson cost", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return apperrors.StorageError(apperrors.CodeQueryFailed, "set lesson cost", err)
	}
	if affected == 0 {
		return apperrors.NotFoundError("lesson", id)
	}

	return nil
}

// SetFree flags a lesson as free (or paid again).
func (r *LessonRepo) SetFree(id int64, free bool) error {
	query := r.ext.Rebind(`UPDATE lessons SET free = ?, updated_at = ? WHERE id = ?`)
	result, err := r.ext.Exec(query, free, time.Now().UTC(), id)
	if err != nil {
		return apperrors.StorageError(apperrors.CodeQueryFailed, "set lesson free", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return apperrors.StorageError(apperrors.CodeQueryFailed, "set lesson free", err)
	}
	if affected == 0 {
		return apperrors.NotFoundError("lesson", id)
	}

	return nil
}

// ListBetweenDays returns lessons inside a day window, optionally
// narrowed to one student. Ordered by day then time.
func (r *LessonRepo) ListBetweenDays(fromDay, toDay, studentName string) ([]*models.Lesson, error) {
	var lessons []*models.Lesson
	var err error

	if studentName != "" {
		query := r.ext.Rebind(`
			SELECT * FROM lessons
			WHERE day BETWEEN ? AND ? AND student_name = ?
			ORDER BY day, time_of_day, id`)
		err = r.ext.Select(&lessons, query, fromDay, toDay, studentName)
	} else {
		query := r.ext.Rebind(`
			SELECT * FROM lessons
			WHERE day BETWEEN ? AND ?
			ORDER BY day, time_of_day, id`)
		err = r.ext.Select(&lessons, query, fromDay, toDay)
	}

	if err != nil {
		return nil, apperrors.StorageError(apperrors.CodeQueryFailed, "list lessons", err)
	}
	return lessons, nil
}

// ListWithPaidBetween returns non-free lessons inside a day window with
// their allocated totals, most recent day first.
func (r *LessonRepo) ListWithPaidBetween(fromDay, toDay string) ([]*LessonWithPaid, error) {
	var lessons []*LessonWithPaid
	query := r.ext.Rebind(`
		SELECT l.*, COALESCE(SUM(a.quota), 0) AS paid
		FROM lessons l
		LEFT JOIN allocations a ON a.lesson_id = l.id
		WHERE l.day BETWEEN ? AND ? AND l.free = ?
		GROUP BY l.id
		ORDER BY l.day DESC, l.time_of_day DESC, l.id DESC`)
	if err := r.ext.Select(&lessons, query, fromDay, toDay, false); err != nil {
		return nil, apperrors.StorageError(apperrors.CodeQueryFailed, "list lessons with paid", err)
	}
	return lessons, nil
}

// PaidTotal sums the quotas allocated to a lesson.
func (r *LessonRepo) PaidTotal(id int64) (decimal.Decimal, error) {
	var total decimal.Decimal
	query := r.ext.Rebind(`SELECT COALESCE(SUM(quota), 0) FROM allocations WHERE lesson_id = ?`)
	if err := r.ext.Get(&total, query, id); err != nil {
		return decimal.Zero, apperrors.StorageError(apperrors.CodeQueryFailed, "sum lesson allocations", err)
	}
	return total, nil
}

// StudentNames returns the distinct student roster, alphabetical.
func (r *LessonRepo) StudentNames() ([]string, error) {
	var students []string
	query := `SELECT DISTINCT student_name FROM lessons ORDER BY student_name`
	if err := r.ext.Select(&students, query); err != nil {
		return nil, apperrors.StorageError(apperrors.CodeQueryFailed, "list students", err)
	}
	return students, nil
}
