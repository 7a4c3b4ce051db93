package reconciler

import (
	"time"

	"lesson-reconciliation-service/internal/models"

	"github.com/shopspring/decimal"
)

// StatusBreakdown aggregates payments sharing a lifecycle state.
type StatusBreakdown struct {
	Status    models.PaymentStatus `json:"status"`
	Count     int                  `json:"count"`
	Total     decimal.Decimal      `json:"total"`
	Allocated decimal.Decimal      `json:"allocated"`
	Residual  decimal.Decimal      `json:"residual"`
}

// UnpaidLesson is a lesson with money still outstanding.
type UnpaidLesson struct {
	LessonID    int64           `json:"lesson_id"`
	StudentName string          `json:"student_name"`
	Day         string          `json:"day"`
	TimeOfDay   string          `json:"time_of_day"`
	Cost        decimal.Decimal `json:"cost"`
	Paid        decimal.Decimal `json:"paid"`
	Outstanding decimal.Decimal `json:"outstanding"`
}

// ReviewReport is the operator's picture of the books: payments by
// state, lessons awaiting money and the current suggestion queue.
type ReviewReport struct {
	GeneratedAt time.Time `json:"generated_at"`
	FromDay     string    `json:"from_day"`
	ToDay       string    `json:"to_day"`

	Payments     []*StatusBreakdown   `json:"payments"`
	OpenResidual decimal.Decimal      `json:"open_residual"`
	Unpaid       []*UnpaidLesson      `json:"unpaid_lessons"`
	Suggestions  []*models.Suggestion `json:"suggestions"`
}

// reportStatusOrder fixes the breakdown ordering for stable output.
var reportStatusOrder = []models.PaymentStatus{
	models.StatusPending,
	models.StatusAssociated,
	models.StatusUsed,
	models.StatusArchived,
}

// BuildReport assembles a review report for the lesson day window.
func (s *Service) BuildReport(fromDay, toDay string) (*ReviewReport, error) {
	report := &ReviewReport{
		GeneratedAt:  time.Now().UTC(),
		FromDay:      fromDay,
		ToDay:        toDay,
		OpenResidual: decimal.Zero,
	}

	for _, status := range reportStatusOrder {
		payments, err := s.store.Payments.ListByStatus(status)
		if err != nil {
			return nil, err
		}

		breakdown := &StatusBreakdown{
			Status:    status,
			Count:     len(payments),
			Total:     decimal.Zero,
			Allocated: decimal.Zero,
			Residual:  decimal.Zero,
		}

		for _, p := range payments {
			allocated, err := s.store.Payments.AllocatedTotal(p.ID)
			if err != nil {
				return nil, err
			}
			breakdown.Total = breakdown.Total.Add(p.Amount)
			breakdown.Allocated = breakdown.Allocated.Add(allocated)
			breakdown.Residual = breakdown.Residual.Add(p.ResidualAfter(allocated))
		}

		if !status.IsTerminal() {
			report.OpenResidual = report.OpenResidual.Add(breakdown.Residual)
		}
		report.Payments = append(report.Payments, breakdown)
	}

	lessons, err := s.store.Lessons.ListWithPaidBetween(fromDay, toDay)
	if err != nil {
		return nil, err
	}
	for _, l := range lessons {
		outstanding := l.OutstandingAfter(l.Paid)
		if !outstanding.IsPositive() {
			continue
		}
		report.Unpaid = append(report.Unpaid, &UnpaidLesson{
			LessonID:    l.ID,
			StudentName: l.StudentName,
			Day:         l.Day,
			TimeOfDay:   l.TimeOfDay,
			Cost:        l.Cost,
			Paid:        l.Paid,
			Outstanding: outstanding,
		})
	}

	report.Suggestions, err = s.GenerateSuggestions()
	if err != nil {
		return nil, err
	}

	return report, nil
}
