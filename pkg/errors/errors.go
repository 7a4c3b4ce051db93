package errors

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// ErrorCategory represents different categories of errors
type ErrorCategory string

const (
	CategoryValidation    ErrorCategory = "validation"
	CategoryAllocation    ErrorCategory = "allocation"
	CategoryMatching      ErrorCategory = "matching"
	CategoryIngestion     ErrorCategory = "ingestion"
	CategoryStorage       ErrorCategory = "storage"
	CategoryConfiguration ErrorCategory = "configuration"
	CategoryInternal      ErrorCategory = "internal"
)

// ErrorCode represents specific error codes within categories
type ErrorCode string

const (
	// Validation errors
	CodeNotFound      ErrorCode = "not_found"
	CodeInvalidAmount ErrorCode = "invalid_amount"
	CodeInvalidDate   ErrorCode = "invalid_date"
	CodeMissingField  ErrorCode = "missing_field"

	// Allocation errors
	CodeInsufficientResidual ErrorCode = "insufficient_residual"
	CodeInvalidQuota         ErrorCode = "invalid_quota"
	CodeInvalidState         ErrorCode = "invalid_state"
	CodeBundleMismatch       ErrorCode = "bundle_mismatch"

	// Matching errors
	CodeMatchNotFound ErrorCode = "match_not_found"

	// Ingestion errors
	CodeDuplicateIngestion ErrorCode = "duplicate_ingestion"
	CodeUnparsableMessage  ErrorCode = "unparsable_message"
	CodeSourceUnreadable   ErrorCode = "source_unreadable"
	CodeMissingColumn      ErrorCode = "missing_column"

	// Storage errors
	CodeTransactionFailed ErrorCode = "transaction_failed"
	CodeQueryFailed       ErrorCode = "query_failed"
	CodeConnectionFailed  ErrorCode = "connection_failed"

	// Configuration errors
	CodeInvalidConfig ErrorCode = "invalid_config"
	CodeMissingConfig ErrorCode = "missing_config"

	// Internal errors
	CodeUnexpectedError ErrorCode = "unexpected_error"
)

// ReconcilerError is the base error type for all application errors
type ReconcilerError struct {
	Category   ErrorCategory     `json:"category"`
	Code       ErrorCode         `json:"code"`
	Message    string            `json:"message"`
	Suggestion string            `json:"suggestion,omitempty"`
	Context    Context           `json:"context,omitempty"`
	Cause      error             `json:"-"`
	StackTrace errors.StackTrace `json:"-"`
}

// Context provides additional information about the error
type Context map[string]interface{}

// Error implements the error interface
func (e *ReconcilerError) Error() string {
	if e.Suggestion != "" {
		return fmt.Sprintf("%s (suggestion: %s)", e.Message, e.Suggestion)
	}
	return e.Message
}

// Unwrap returns the underlying cause error
func (e *ReconcilerError) Unwrap() error {
	return e.Cause
}

// GetExitCode returns an appropriate exit code for the error
func (e *ReconcilerError) GetExitCode() int {
	switch e.Category {
	case CategoryValidation, CategoryAllocation:
		return 2
	case CategoryMatching, CategoryIngestion:
		return 3
	case CategoryConfiguration:
		return 4
	case CategoryStorage, CategoryInternal:
		return 5
	default:
		return 1
	}
}

// WithContext adds context information to the error
func (e *ReconcilerError) WithContext(key string, value interface{}) *ReconcilerError {
	if e.Context == nil {
		e.Context = make(Context)
	}
	e.Context[key] = value
	return e
}

// WithSuggestion adds a suggestion for fixing the error
func (e *ReconcilerError) WithSuggestion(suggestion string) *ReconcilerError {
	e.Suggestion = suggestion
	return e
}

// New creates a new ReconcilerError
func New(category ErrorCategory, code ErrorCode, message string) *ReconcilerError {
	return &ReconcilerError{
		Category:   category,
		Code:       code,
		Message:    message,
		StackTrace: errors.New("").(stackTracer).StackTrace(),
	}
}

// Wrap wraps an existing error with ReconcilerError context
func Wrap(err error, category ErrorCategory, code ErrorCode, message string) *ReconcilerError {
	if err == nil {
		return nil
	}

	return &ReconcilerError{
		Category:   category,
		Code:       code,
		Message:    message,
		Cause:      err,
		StackTrace: errors.WithStack(err).(stackTracer).StackTrace(),
	}
}

// stackTracer interface for extracting stack traces
type stackTracer interface {
	StackTrace() errors.StackTrace
}

// Specific error constructors

// NotFoundError reports a missing payment, lesson or association.
func NotFoundError(entity string, id interface{}) *ReconcilerError {
	return New(CategoryValidation, CodeNotFound,
		fmt.Sprintf("%s not found: %v", entity, id)).
		WithSuggestion("verify the id and re-query before retrying").
		WithContext("entity", entity).
		WithContext("id", id)
}

// InsufficientResidualError reports a quota request exceeding a payment's residual.
func InsufficientResidualError(paymentID int64, requested, residual string) *ReconcilerError {
	return New(CategoryAllocation, CodeInsufficientResidual,
		fmt.Sprintf("requested quota %s exceeds payment residual %s", requested, residual)).
		WithSuggestion("re-query the payment's current residual before retrying").
		WithContext("payment_id", paymentID).
		WithContext("requested", requested).
		WithContext("residual", residual)
}

// InvalidQuotaError reports a non-positive or malformed quota.
func InvalidQuotaError(quota string) *ReconcilerError {
	return New(CategoryAllocation, CodeInvalidQuota,
		fmt.Sprintf("allocation quota must be strictly positive, got %s", quota)).
		WithContext("quota", quota)
}

// InvalidStateError reports a lifecycle transition the payment state machine forbids.
func InvalidStateError(paymentID int64, from, to string) *ReconcilerError {
	return New(CategoryAllocation, CodeInvalidState,
		fmt.Sprintf("payment %d cannot move from %s to %s", paymentID, from, to)).
		WithContext("payment_id", paymentID).
		WithContext("from", from).
		WithContext("to", to)
}

// BundleMismatchError reports a residual that matches no known bundle price.
func BundleMismatchError(residual string) *ReconcilerError {
	return New(CategoryAllocation, CodeBundleMismatch,
		fmt.Sprintf("residual %s does not match any configured bundle price", residual)).
		WithSuggestion("check the bundle price table or allocate lessons individually").
		WithContext("residual", residual)
}

// DuplicateIngestionError reports an idempotency-key collision on insert.
// Callers at the ingestion boundary treat it as a no-op.
func DuplicateIngestionError(sourceID string) *ReconcilerError {
	return New(CategoryIngestion, CodeDuplicateIngestion,
		fmt.Sprintf("record with source id %s already ingested", sourceID)).
		WithContext("source_id", sourceID)
}

// SourceError reports an ingestion source that cannot be opened or read.
func SourceError(source string, err error) *ReconcilerError {
	return Wrap(err, CategoryIngestion, CodeSourceUnreadable,
		fmt.Sprintf("cannot read ingestion source %s", source)).
		WithSuggestion("check the path and file permissions").
		WithContext("source", source)
}

// MissingColumnError reports required CSV columns absent from a source.
func MissingColumnError(source string, columns []string) *ReconcilerError {
	return New(CategoryIngestion, CodeMissingColumn,
		fmt.Sprintf("source %s is missing required columns: %s", source, strings.Join(columns, ", "))).
		WithSuggestion("check the file header row").
		WithContext("source", source).
		WithContext("columns", columns)
}

// UnparsableMessageError reports a message that does not match the payment grammar.
func UnparsableMessageError(reason string) *ReconcilerError {
	return New(CategoryIngestion, CodeUnparsableMessage,
		fmt.Sprintf("message does not match payment notification grammar: %s", reason))
}

// ValidationError creates a field-level validation error.
func ValidationError(code ErrorCode, field string, value interface{}, err error) *ReconcilerError {
	var message string
	var suggestion string

	switch code {
	case CodeInvalidAmount:
		message = fmt.Sprintf("invalid amount in field '%s': %v", field, value)
		suggestion = "amounts must be valid decimal numbers"
	case CodeInvalidDate:
		message = fmt.Sprintf("invalid date in field '%s': %v", field, value)
		suggestion = "dates must use the YYYY-MM-DD format"
	case CodeMissingField:
		message = fmt.Sprintf("missing required field: %s", field)
		suggestion = "ensure all required fields are present"
	default:
		message = fmt.Sprintf("validation failed for field '%s': %v", field, value)
		suggestion = "check the field value and try again"
	}

	var result *ReconcilerError
	if err != nil {
		result = Wrap(err, CategoryValidation, code, message)
	} else {
		result = New(CategoryValidation, code, message)
	}

	return result.
		WithSuggestion(suggestion).
		WithContext("field", field).
		WithContext("value", value)
}

// StorageError wraps a database failure.
func StorageError(code ErrorCode, operation string, err error) *ReconcilerError {
	var message string
	var suggestion string

	switch code {
	case CodeTransactionFailed:
		message = fmt.Sprintf("transaction failed during %s", operation)
		suggestion = "nothing was committed; retry the whole operation"
	case CodeQueryFailed:
		message = fmt.Sprintf("query failed during %s", operation)
		suggestion = "check the storage schema and connectivity"
	case CodeConnectionFailed:
		message = fmt.Sprintf("storage connection failed during %s", operation)
		suggestion = "check the data source name and that the store is reachable"
	default:
		message = fmt.Sprintf("storage error during %s", operation)
		suggestion = "check the storage backend and try again"
	}

	var result *ReconcilerError
	if err != nil {
		result = Wrap(err, CategoryStorage, code, message)
	} else {
		result = New(CategoryStorage, code, message)
	}

	return result.
		WithSuggestion(suggestion).
		WithContext("operation", operation)
}

// ConfigurationError creates a configuration-related error
func ConfigurationError(code ErrorCode, setting string, value interface{}, err error) *ReconcilerError {
	var message string
	var suggestion string

	switch code {
	case CodeInvalidConfig:
		message = fmt.Sprintf("invalid configuration for '%s': %v", setting, value)
		suggestion = "check the configuration documentation for valid values"
	case CodeMissingConfig:
		message = fmt.Sprintf("missing required configuration: %s", setting)
		suggestion = "provide this configuration setting or use a config file"
	default:
		message = fmt.Sprintf("configuration error: %s", setting)
		suggestion = "check your configuration and try again"
	}

	var result *ReconcilerError
	if err != nil {
		result = Wrap(err, CategoryConfiguration, code, message)
	} else {
		result = New(CategoryConfiguration, code, message)
	}

	return result.
		WithSuggestion(suggestion).
		WithContext("setting", setting).
		WithContext("value", value)
}

// InternalError creates an internal error
func InternalError(operation string, err error) *ReconcilerError {
	message := fmt.Sprintf("unexpected error during %s", operation)

	var result *ReconcilerError
	if err != nil {
		result = Wrap(err, CategoryInternal, CodeUnexpectedError, message)
	} else {
		result = New(CategoryInternal, CodeUnexpectedError, message)
	}

	return result.
		WithSuggestion("this is likely a bug - please report it with the error details").
		WithContext("operation", operation)
}

// Utility functions

// IsReconcilerError checks if an error is a ReconcilerError
func IsReconcilerError(err error) bool {
	_, ok := err.(*ReconcilerError)
	return ok
}

// AsReconcilerError extracts a ReconcilerError from an error chain
func AsReconcilerError(err error) (*ReconcilerError, bool) {
	var reconcilerErr *ReconcilerError
	if errors.As(err, &reconcilerErr) {
		return reconcilerErr, true
	}
	return nil, false
}

// HasCode reports whether err carries the given error code.
func HasCode(err error, code ErrorCode) bool {
	if reconcilerErr, ok := AsReconcilerError(err); ok {
		return reconcilerErr.Code == code
	}
	return false
}

// IsNotFound reports whether err is a not-found error.
func IsNotFound(err error) bool {
	return HasCode(err, CodeNotFound)
}

// IsInsufficientResidual reports whether err is an insufficient-residual rejection.
func IsInsufficientResidual(err error) bool {
	return HasCode(err, CodeInsufficientResidual)
}

// IsDuplicateIngestion reports whether err is an idempotency-key collision.
func IsDuplicateIngestion(err error) bool {
	return HasCode(err, CodeDuplicateIngestion)
}

// WrapIfNeeded wraps an error if it's not already a ReconcilerError
func WrapIfNeeded(err error, category ErrorCategory, code ErrorCode, message string) *ReconcilerError {
	if err == nil {
		return nil
	}

	if reconcilerErr, ok := AsReconcilerError(err); ok {
		return reconcilerErr
	}

	return Wrap(err, category, code, message)
}

// GetErrorSummary returns a user-friendly summary of the error
func GetErrorSummary(err error) string {
	if reconcilerErr, ok := AsReconcilerError(err); ok {
		var parts []string

		parts = append(parts, fmt.Sprintf("Error [%s/%s]: %s",
			reconcilerErr.Category, reconcilerErr.Code, reconcilerErr.Message))

		if reconcilerErr.Suggestion != "" {
			parts = append(parts, fmt.Sprintf("Suggestion: %s", reconcilerErr.Suggestion))
		}

		if len(reconcilerErr.Context) > 0 {
			var contextParts []string
			for key, value := range reconcilerErr.Context {
				contextParts = append(contextParts, fmt.Sprintf("%s=%v", key, value))
			}
			parts = append(parts, fmt.Sprintf("Context: %s", strings.Join(contextParts, ", ")))
		}

		return strings.Join(parts, "\n")
	}

	return fmt.Sprintf("Error: %v", err)
}
