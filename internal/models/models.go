package models

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// DayFormat is the canonical calendar-day layout used across the system.
const DayFormat = "2006-01-02"

// TimeOfDayFormat is the canonical time-of-day layout.
const TimeOfDayFormat = "15:04:05"

// DefaultCurrency is the currency assigned to ingested payments.
const DefaultCurrency = "RUB"

// PaymentStatus represents the lifecycle state of a payment
type PaymentStatus string

const (
	// StatusPending marks a payment awaiting review, residual > 0
	StatusPending PaymentStatus = "pending"
	// StatusAssociated marks a payment linked to lessons with residual zero
	StatusAssociated PaymentStatus = "associated"
	// StatusUsed marks a fully spent payment, terminal
	StatusUsed PaymentStatus = "used"
	// StatusArchived marks a payment excluded from active workflows
	StatusArchived PaymentStatus = "archived"
)

// String returns the string representation of PaymentStatus
func (s PaymentStatus) String() string {
	return string(s)
}

// IsValid checks if the payment status is valid
func (s PaymentStatus) IsValid() bool {
	switch s {
	case StatusPending, StatusAssociated, StatusUsed, StatusArchived:
		return true
	}
	return false
}

// IsTerminal reports whether the status ends the active lifecycle.
func (s PaymentStatus) IsTerminal() bool {
	return s == StatusUsed || s == StatusArchived
}

// ParsePaymentStatus parses and validates a payment status from string
func ParsePaymentStatus(s string) (PaymentStatus, error) {
	status := PaymentStatus(strings.ToLower(strings.TrimSpace(s)))
	if !status.IsValid() {
		return "", fmt.Errorf("invalid payment status '%s'", s)
	}
	return status, nil
}

// Payment represents an incoming money transfer from a payer.
type Payment struct {
	ID        int64           `json:"id" db:"id"`
	PayerName string          `json:"payer_name" db:"payer_name"`
	Day       string          `json:"day" db:"day"`
	TimeOfDay string          `json:"time_of_day" db:"time_of_day"`
	Amount    decimal.Decimal `json:"amount" db:"amount"`
	Currency  string          `json:"currency" db:"currency"`
	Status    PaymentStatus   `json:"status" db:"status"`
	Skipped   bool            `json:"skipped" db:"skipped"`
	SourceID  sql.NullString  `json:"source_id" db:"source_id"`
	CreatedAt time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt time.Time       `json:"updated_at" db:"updated_at"`
}

// NewPayment creates a new Payment in the pending state.
func NewPayment(payerName, day, timeOfDay string, amount decimal.Decimal) *Payment {
	return &Payment{
		PayerName: payerName,
		Day:       day,
		TimeOfDay: timeOfDay,
		Amount:    amount,
		Currency:  DefaultCurrency,
		Status:    StatusPending,
	}
}

// Validate performs basic validation on the Payment
func (p *Payment) Validate() error {
	if strings.TrimSpace(p.PayerName) == "" {
		return fmt.Errorf("payer name cannot be empty")
	}

	if _, err := time.Parse(DayFormat, p.Day); err != nil {
		return fmt.Errorf("invalid payment day '%s': %w", p.Day, err)
	}

	if !p.Amount.IsPositive() {
		return fmt.Errorf("payment amount must be positive, got %s", p.Amount.String())
	}

	if !p.Status.IsValid() {
		return fmt.Errorf("invalid payment status: %s", p.Status)
	}

	return nil
}

// Reviewable reports whether the payment participates in the active
// review workflow (suggestions, candidate queries).
func (p *Payment) Reviewable() bool {
	return p.Status == StatusPending && !p.Skipped
}

// ResidualAfter returns the residual given the allocated total.
func (p *Payment) ResidualAfter(allocated decimal.Decimal) decimal.Decimal {
	return p.Amount.Sub(allocated)
}

// String returns a string representation of the Payment
func (p *Payment) String() string {
	return fmt.Sprintf("Payment{ID: %d, Payer: %s, Amount: %s %s, Day: %s, Status: %s}",
		p.ID, p.PayerName, p.Amount.String(), p.Currency, p.Day, p.Status)
}

// MarshalJSON implements custom JSON marshaling for Payment
func (p *Payment) MarshalJSON() ([]byte, error) {
	type Alias Payment
	var sourceID *string
	if p.SourceID.Valid {
		sourceID = &p.SourceID.String
	}
	return json.Marshal(&struct {
		Amount   string  `json:"amount"`
		SourceID *string `json:"source_id"`
		*Alias
	}{
		Amount:   p.Amount.String(),
		SourceID: sourceID,
		Alias:    (*Alias)(p),
	})
}

// Lesson represents a scheduled tutoring lesson for a student.
type Lesson struct {
	ID          int64           `json:"id" db:"id"`
	StudentName string          `json:"student_name" db:"student_name"`
	Day         string          `json:"day" db:"day"`
	TimeOfDay   string          `json:"time_of_day" db:"time_of_day"`
	Cost        decimal.Decimal `json:"cost" db:"cost"`
	Free        bool            `json:"free" db:"free"`
	SourceID    sql.NullString  `json:"source_id" db:"source_id"`
	CreatedAt   time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at" db:"updated_at"`
}

// NewLesson creates a new Lesson instance
func NewLesson(studentName, day, timeOfDay string, cost decimal.Decimal) *Lesson {
	return &Lesson{
		StudentName: studentName,
		Day:         day,
		TimeOfDay:   timeOfDay,
		Cost:        cost,
	}
}

// Validate performs basic validation on the Lesson
func (l *Lesson) Validate() error {
	if strings.TrimSpace(l.StudentName) == "" {
		return fmt.Errorf("student name cannot be empty")
	}

	if _, err := time.Parse(DayFormat, l.Day); err != nil {
		return fmt.Errorf("invalid lesson day '%s': %w", l.Day, err)
	}

	if l.Cost.IsNegative() {
		return fmt.Errorf("lesson cost cannot be negative, got %s", l.Cost.String())
	}

	return nil
}

// Payable reports whether the lesson can receive allocations.
func (l *Lesson) Payable() bool {
	return !l.Free && l.Cost.IsPositive()
}

// OutstandingAfter returns the unpaid remainder given the paid total.
// Never negative: overpaid lessons report zero outstanding.
func (l *Lesson) OutstandingAfter(paid decimal.Decimal) decimal.Decimal {
	outstanding := l.Cost.Sub(paid)
	if outstanding.IsNegative() {
		return decimal.Zero
	}
	return outstanding
}

// String returns a string representation of the Lesson
func (l *Lesson) String() string {
	return fmt.Sprintf("Lesson{ID: %d, Student: %s, Day: %s %s, Cost: %s}",
		l.ID, l.StudentName, l.Day, l.TimeOfDay, l.Cost.String())
}

// MarshalJSON implements custom JSON marshaling for Lesson
func (l *Lesson) MarshalJSON() ([]byte, error) {
	type Alias Lesson
	var sourceID *string
	if l.SourceID.Valid {
		sourceID = &l.SourceID.String
	}
	return json.Marshal(&struct {
		Cost     string  `json:"cost"`
		SourceID *string `json:"source_id"`
		*Alias
	}{
		Cost:     l.Cost.String(),
		SourceID: sourceID,
		Alias:    (*Alias)(l),
	})
}

// Allocation links a slice of a payment's amount to a lesson.
// One row per (payment, lesson) pair; repeated allocations accumulate
// into the same row's quota.
type Allocation struct {
	ID        int64           `json:"id" db:"id"`
	PaymentID int64           `json:"payment_id" db:"payment_id"`
	LessonID  int64           `json:"lesson_id" db:"lesson_id"`
	Quota     decimal.Decimal `json:"quota" db:"quota"`
	CreatedAt time.Time       `json:"created_at" db:"created_at"`
}

// Validate performs basic validation on the Allocation
func (a *Allocation) Validate() error {
	if a.PaymentID <= 0 {
		return fmt.Errorf("allocation payment id must be positive")
	}
	if a.LessonID <= 0 {
		return fmt.Errorf("allocation lesson id must be positive")
	}
	if !a.Quota.IsPositive() {
		return fmt.Errorf("allocation quota must be strictly positive, got %s", a.Quota.String())
	}
	return nil
}

// String returns a string representation of the Allocation
func (a *Allocation) String() string {
	return fmt.Sprintf("Allocation{Payment: %d, Lesson: %d, Quota: %s}",
		a.PaymentID, a.LessonID, a.Quota.String())
}

// Association records a confirmed payer-name → student-name identity.
// At most one active association per student; upserts supersede.
type Association struct {
	ID          int64     `json:"id" db:"id"`
	StudentName string    `json:"student_name" db:"student_name"`
	PayerName   string    `json:"payer_name" db:"payer_name"`
	Note        string    `json:"note" db:"note"`
	ValidFrom   string    `json:"valid_from" db:"valid_from"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}

// NewAssociation creates a new Association valid from the given day.
func NewAssociation(studentName, payerName, note, validFrom string) *Association {
	return &Association{
		StudentName: studentName,
		PayerName:   payerName,
		Note:        note,
		ValidFrom:   validFrom,
	}
}

// Validate performs basic validation on the Association
func (a *Association) Validate() error {
	if strings.TrimSpace(a.StudentName) == "" {
		return fmt.Errorf("association student name cannot be empty")
	}
	if strings.TrimSpace(a.PayerName) == "" {
		return fmt.Errorf("association payer name cannot be empty")
	}
	if a.ValidFrom != "" {
		if _, err := time.Parse(DayFormat, a.ValidFrom); err != nil {
			return fmt.Errorf("invalid association valid-from day '%s': %w", a.ValidFrom, err)
		}
	}
	return nil
}

// String returns a string representation of the Association
func (a *Association) String() string {
	return fmt.Sprintf("Association{Student: %s, Payer: %s}", a.StudentName, a.PayerName)
}

// RejectedSuggestion records a (lesson, payment) pairing dismissed by the
// operator so it is never proposed again.
type RejectedSuggestion struct {
	ID         int64     `json:"id" db:"id"`
	LessonID   int64     `json:"lesson_id" db:"lesson_id"`
	PaymentID  int64     `json:"payment_id" db:"payment_id"`
	RejectedAt time.Time `json:"rejected_at" db:"rejected_at"`
}

// Suggestion is a proposed payment→lesson pairing produced by the
// suggestion generator. Not persisted; accepting one creates an Allocation.
type Suggestion struct {
	PaymentID   int64           `json:"payment_id"`
	LessonID    int64           `json:"lesson_id"`
	PayerName   string          `json:"payer_name"`
	StudentName string          `json:"student_name"`
	Quota       decimal.Decimal `json:"quota"`
	Score       int             `json:"score"`
	DayDistance int             `json:"day_distance"`
}

// String returns a string representation of the Suggestion
func (s *Suggestion) String() string {
	return fmt.Sprintf("Suggestion{Payment: %d (%s), Lesson: %d (%s), Quota: %s, Score: %d}",
		s.PaymentID, s.PayerName, s.LessonID, s.StudentName, s.Quota.String(), s.Score)
}

// Utility functions for type conversion and validation

// ParseDecimalFromString parses a decimal amount from string with validation.
// Handles the embedded thousands spaces and currency marks that bank
// notifications carry ("10 000р" → 10000).
func ParseDecimalFromString(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, fmt.Errorf("amount string cannot be empty")
	}

	// Strip spaces (incl. non-breaking), currency marks and thousand separators
	replacer := strings.NewReplacer(
		" ", "",
		" ", "",
		"р", "",
		"₽", "",
		",", ".",
	)
	s = replacer.Replace(s)

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid decimal format '%s': %w", s, err)
	}

	return d, nil
}

// ParseDay parses a calendar day from string using common formats.
func ParseDay(s string) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", fmt.Errorf("day string cannot be empty")
	}

	formats := []string{
		DayFormat,
		"2006-01-02 15:04:05",
		time.RFC3339,
		"02.01.2006",
		"02/01/2006",
	}

	var lastErr error
	for _, format := range formats {
		if t, err := time.Parse(format, s); err == nil {
			return t.Format(DayFormat), nil
		} else {
			lastErr = err
		}
	}

	return "", fmt.Errorf("unable to parse day '%s': %w", s, lastErr)
}

// DayDistance returns the absolute distance in whole days between two
// canonical day strings.
func DayDistance(a, b string) (int, error) {
	ta, err := time.Parse(DayFormat, a)
	if err != nil {
		return 0, fmt.Errorf("invalid day '%s': %w", a, err)
	}
	tb, err := time.Parse(DayFormat, b)
	if err != nil {
		return 0, fmt.Errorf("invalid day '%s': %w", b, err)
	}

	diff := ta.Sub(tb)
	if diff < 0 {
		diff = -diff
	}
	return int(diff.Hours() / 24), nil
}

// WithinDays reports whether two days are at most toleranceDays apart.
func WithinDays(a, b string, toleranceDays int) bool {
	distance, err := DayDistance(a, b)
	if err != nil {
		return false
	}
	return distance <= toleranceDays
}

// NullString wraps a non-empty string for nullable columns.
func NullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// MinDecimal returns the smaller of two decimals.
func MinDecimal(a, b decimal.Decimal) decimal.Decimal {
	if a.LessThan(b) {
		return a
	}
	return b
}
