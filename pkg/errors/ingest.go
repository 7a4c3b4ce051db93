package errors

import (
	"fmt"
	"sort"
	"strings"
)

// MessageContext locates an ingestion error in its source channel.
type MessageContext struct {
	Channel   int64  `json:"channel"`
	MessageID int64  `json:"message_id"`
	Snippet   string `json:"snippet,omitempty"`
}

// IngestError extends the base error with message-level context. Parse
// failures during a batch run are collected rather than aborting the run.
type IngestError struct {
	*ReconcilerError
	Context     *MessageContext `json:"context"`
	Recoverable bool            `json:"recoverable"`
}

// Error implements the error interface with message location appended.
func (e *IngestError) Error() string {
	if e.Context != nil {
		return fmt.Sprintf("%s (channel %d, message %d)",
			e.ReconcilerError.Error(), e.Context.Channel, e.Context.MessageID)
	}
	return e.ReconcilerError.Error()
}

// NewIngestError creates a message-level ingestion error.
func NewIngestError(code ErrorCode, context *MessageContext, message string, cause error) *IngestError {
	var base *ReconcilerError
	if cause != nil {
		base = Wrap(cause, CategoryIngestion, code, message)
	} else {
		base = New(CategoryIngestion, code, message)
	}

	if context != nil {
		base.WithContext("channel", context.Channel).
			WithContext("message_id", context.MessageID)
	}

	return &IngestError{
		ReconcilerError: base,
		Context:         context,
		Recoverable:     true,
	}
}

// WithRecoverable marks whether processing may continue past this error.
func (e *IngestError) WithRecoverable(recoverable bool) *IngestError {
	e.Recoverable = recoverable
	return e
}

// IngestErrorCollector accumulates per-message errors during a batch run.
type IngestErrorCollector struct {
	errors    []*IngestError
	maxErrors int
}

// NewIngestErrorCollector creates a collector that stops the run once
// maxErrors errors have accumulated.
func NewIngestErrorCollector(maxErrors int) *IngestErrorCollector {
	return &IngestErrorCollector{
		errors:    make([]*IngestError, 0),
		maxErrors: maxErrors,
	}
}

// Add records an error and reports whether processing should continue.
func (c *IngestErrorCollector) Add(err *IngestError) bool {
	if err == nil {
		return true
	}

	c.errors = append(c.errors, err)

	if len(c.errors) >= c.maxErrors {
		return false
	}

	return err.Recoverable
}

// HasErrors returns true if any errors have been collected
func (c *IngestErrorCollector) HasErrors() bool {
	return len(c.errors) > 0
}

// GetErrors returns all collected errors
func (c *IngestErrorCollector) GetErrors() []*IngestError {
	return c.errors
}

// GetReconcilerErrors converts all errors to base ReconcilerError type
func (c *IngestErrorCollector) GetReconcilerErrors() []*ReconcilerError {
	result := make([]*ReconcilerError, len(c.errors))
	for i, err := range c.errors {
		result[i] = err.ReconcilerError
	}
	return result
}

// GetSummary returns an error summary for all collected errors
func (c *IngestErrorCollector) GetSummary() *ErrorSummary {
	return NewErrorSummary(c.GetReconcilerErrors())
}

// Clear clears all collected errors
func (c *IngestErrorCollector) Clear() {
	c.errors = c.errors[:0]
}

// ErrorSummary aggregates multiple errors for reporting
type ErrorSummary struct {
	Total      int                   `json:"total"`
	ByCategory map[ErrorCategory]int `json:"by_category"`
	ByCode     map[ErrorCode]int     `json:"by_code"`
	Errors     []*ReconcilerError    `json:"errors"`
}

// NewErrorSummary creates a summary from a list of errors
func NewErrorSummary(errors []*ReconcilerError) *ErrorSummary {
	summary := &ErrorSummary{
		Total:      len(errors),
		ByCategory: make(map[ErrorCategory]int),
		ByCode:     make(map[ErrorCode]int),
		Errors:     errors,
	}

	for _, err := range errors {
		summary.ByCategory[err.Category]++
		summary.ByCode[err.Code]++
	}

	return summary
}

// Error implements the error interface for the summary
func (s *ErrorSummary) Error() string {
	if s.Total == 0 {
		return "no errors"
	}

	if s.Total == 1 {
		return s.Errors[0].Message
	}

	var categories []string
	for category := range s.ByCategory {
		categories = append(categories, string(category))
	}
	sort.Strings(categories)

	var parts []string
	for _, category := range categories {
		parts = append(parts, fmt.Sprintf("%d %s", s.ByCategory[ErrorCategory(category)], category))
	}

	return fmt.Sprintf("%d errors (%s)", s.Total, strings.Join(parts, ", "))
}

// HasCategory checks if the summary contains errors of a specific category
func (s *ErrorSummary) HasCategory(category ErrorCategory) bool {
	return s.ByCategory[category] > 0
}

// GetExitCode returns the highest-severity exit code among the errors.
func (s *ErrorSummary) GetExitCode() int {
	if s.Total == 0 {
		return 0
	}

	maxCode := 0
	for _, err := range s.Errors {
		if code := err.GetExitCode(); code > maxCode {
			maxCode = code
		}
	}
	return maxCode
}
