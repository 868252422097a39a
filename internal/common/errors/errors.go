// internal/common/errors/errors.go
package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

type ErrorCode string

const (
	// validation
	ErrCodeInvalidCodeFormat  ErrorCode = "INVALID_CODE_FORMAT"
	ErrCodeInvalidPhoneFormat ErrorCode = "INVALID_PHONE_FORMAT"
	ErrCodeAmountMismatch     ErrorCode = "AMOUNT_MISMATCH"
	ErrCodeValidationFailed   ErrorCode = "VALIDATION_FAILED"
	ErrCodeInvalidDocument    ErrorCode = "INVALID_DOCUMENT"

	// conflict
	ErrCodeDuplicateApplication     ErrorCode = "DUPLICATE_APPLICATION"
	ErrCodeDuplicateTransactionCode ErrorCode = "DUPLICATE_TRANSACTION_CODE"
	ErrCodeDuplicatePaymentCode     ErrorCode = "DUPLICATE_PAYMENT_CODE"

	// state
	ErrCodeApplicationLocked       ErrorCode = "APPLICATION_LOCKED"
	ErrCodeOpportunityClosed       ErrorCode = "OPPORTUNITY_CLOSED"
	ErrCodePaymentAlreadyProcessed ErrorCode = "PAYMENT_ALREADY_PROCESSED"
	ErrCodeInvalidTransition       ErrorCode = "INVALID_STATUS_TRANSITION"

	// authorization
	ErrCodeUnauthorized ErrorCode = "UNAUTHORIZED"
	ErrCodeForbidden    ErrorCode = "FORBIDDEN"
	ErrCodeRateLimited  ErrorCode = "RATE_LIMITED"

	ErrCodeNotFound ErrorCode = "NOT_FOUND"

	// infrastructure
	ErrCodeDatabaseConnectionFailed      ErrorCode = "DATABASE_CONNECTION_FAILED"
	ErrCodeQueryExecutionFailed          ErrorCode = "QUERY_EXECUTION_FAILED"
	ErrCodeQueryTimeout                  ErrorCode = "QUERY_TIMEOUT"
	ErrCodeDatabaseInsertFailed          ErrorCode = "DATABASE_INSERT_FAILED"
	ErrCodeElasticsearchConnectionFailed ErrorCode = "ELASTICSEARCH_CONNECTION_FAILED"
	ErrCodeSearchQueryFailed             ErrorCode = "SEARCH_QUERY_FAILED"
	ErrCodeIndexFailed                   ErrorCode = "INDEX_FAILED"
	ErrCodeNotificationSendFailed        ErrorCode = "NOTIFICATION_SEND_FAILED"
	ErrCodeExternalService               ErrorCode = "EXTERNAL_SERVICE_ERROR"
	ErrCodeTimeout                       ErrorCode = "TIMEOUT_ERROR"
	ErrCodeInternal                      ErrorCode = "INTERNAL_ERROR"
)

// Kind groups error codes by how a caller should react to them.
type Kind string

const (
	KindValidation     Kind = "validation"
	KindConflict       Kind = "conflict"
	KindState          Kind = "state"
	KindAuthorization  Kind = "authorization"
	KindNotFound       Kind = "not_found"
	KindInfrastructure Kind = "infrastructure"
)

type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	cause     error
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

func (e *StandardError) Unwrap() error { return e.cause }

// Is matches any StandardError carrying the same code, so sentinel-style
// comparisons work: errors.Is(err, &StandardError{Code: ErrCodeNotFound}).
func (e *StandardError) Is(target error) bool {
	t, ok := target.(*StandardError)
	return ok && t.Code == e.Code
}

// Kind classifies the error code.
func (e *StandardError) Kind() Kind {
	return KindOf(e.Code)
}

// HTTPStatus maps the error to the status code returned by the API.
func (e *StandardError) HTTPStatus() int {
	if e.Code == ErrCodeRateLimited {
		return http.StatusTooManyRequests
	}
	if e.Code == ErrCodeUnauthorized {
		return http.StatusUnauthorized
	}
	switch e.Kind() {
	case KindValidation:
		return http.StatusBadRequest
	case KindConflict, KindState:
		return http.StatusConflict
	case KindAuthorization:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	default:
		if e.Code == ErrCodeTimeout || e.Code == ErrCodeQueryTimeout {
			return http.StatusGatewayTimeout
		}
		return http.StatusInternalServerError
	}
}

// WithMetadata sets a metadata key and returns the receiver.
func (e *StandardError) WithMetadata(key string, value interface{}) *StandardError {
	if e.Metadata == nil {
		e.Metadata = map[string]interface{}{}
	}
	e.Metadata[key] = value
	return e
}

func KindOf(code ErrorCode) Kind {
	switch code {
	case ErrCodeInvalidCodeFormat, ErrCodeInvalidPhoneFormat, ErrCodeAmountMismatch,
		ErrCodeValidationFailed, ErrCodeInvalidDocument:
		return KindValidation
	case ErrCodeDuplicateApplication, ErrCodeDuplicateTransactionCode, ErrCodeDuplicatePaymentCode:
		return KindConflict
	case ErrCodeApplicationLocked, ErrCodeOpportunityClosed, ErrCodePaymentAlreadyProcessed,
		ErrCodeInvalidTransition:
		return KindState
	case ErrCodeUnauthorized, ErrCodeForbidden, ErrCodeRateLimited:
		return KindAuthorization
	case ErrCodeNotFound:
		return KindNotFound
	default:
		return KindInfrastructure
	}
}

// As extracts a *StandardError from an error chain.
func As(err error) (*StandardError, bool) {
	var stdErr *StandardError
	if stderrors.As(err, &stdErr) {
		return stdErr, true
	}
	return nil, false
}

// HasCode reports whether err carries the given code anywhere in its chain.
func HasCode(err error, code ErrorCode) bool {
	stdErr, ok := As(err)
	return ok && stdErr.Code == code
}

// Normalize returns err as a *StandardError, wrapping unknown errors as internal.
func Normalize(err error) *StandardError {
	if stdErr, ok := As(err); ok {
		return stdErr
	}
	return &StandardError{
		Code:      ErrCodeInternal,
		Message:   "Unexpected error",
		Details:   err.Error(),
		Retryable: false,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

type BPMNError struct {
	Code           string                 `json:"code"`
	Message        string                 `json:"message"`
	Details        string                 `json:"details,omitempty"`
	Retryable      bool                   `json:"retryable"`
	Retries        int                    `json:"retries"`
	ErrorVariables map[string]interface{} `json:"errorVariables,omitempty"`
}

func (e *BPMNError) Error() string {
	return fmt.Sprintf("BPMNError[%s]: %s", e.Code, e.Message)
}

func (e *BPMNError) ToErrorVariables() map[string]interface{} {
	vars := map[string]interface{}{
		"errorCode":    e.Code,
		"errorMessage": e.Message,
		"errorDetails": e.Details,
		"retryable":    e.Retryable,
	}
	for k, v := range e.ErrorVariables {
		vars[k] = v
	}
	return vars
}

func newError(code ErrorCode, message, details string, retryable bool) *StandardError {
	return &StandardError{
		Code:      code,
		Message:   message,
		Details:   details,
		Retryable: retryable,
		Timestamp: time.Now().UTC(),
	}
}

func NewInvalidCodeFormatError(input string) *StandardError {
	return newError(ErrCodeInvalidCodeFormat,
		"Transaction code must be exactly 10 letters or digits",
		fmt.Sprintf("received %q", input), false)
}

func NewInvalidPhoneFormatError(input string) *StandardError {
	return newError(ErrCodeInvalidPhoneFormat,
		"Phone number must be a Kenyan mobile number (254XXXXXXXXX, 07XXXXXXXX or 7XXXXXXXX)",
		fmt.Sprintf("received %q", input), false)
}

// NewAmountMismatchError reports the absolute difference from the expected fee.
func NewAmountMismatchError(expected, received, tolerance int64) *StandardError {
	discrepancy := received - expected
	if discrepancy < 0 {
		discrepancy = -discrepancy
	}
	e := newError(ErrCodeAmountMismatch,
		fmt.Sprintf("Amount must be KES %d", expected),
		fmt.Sprintf("received %d, off by %d (tolerance %d)", received, discrepancy, tolerance), false)
	e.Metadata = map[string]interface{}{
		"expected":    expected,
		"received":    received,
		"discrepancy": discrepancy,
		"tolerance":   tolerance,
	}
	return e
}

func NewValidationFailedError(details string, fields map[string]string) *StandardError {
	e := newError(ErrCodeValidationFailed, "Request validation failed", details, false)
	if len(fields) > 0 {
		e.Metadata = map[string]interface{}{"fields": fields}
	}
	return e
}

func NewInvalidDocumentError(field, details string) *StandardError {
	return newError(ErrCodeInvalidDocument, fmt.Sprintf("Invalid %s document", field), details, false).
		WithMetadata("field", field)
}

func NewDuplicateApplicationError(applicantID, opportunityID string) *StandardError {
	return newError(ErrCodeDuplicateApplication, "Application already exists for this opportunity",
		fmt.Sprintf("applicantId: %s, opportunityId: %s", applicantID, opportunityID), false)
}

func NewDuplicateTransactionCodeError(code, existingStatus string) *StandardError {
	return newError(ErrCodeDuplicateTransactionCode, "Transaction code has already been submitted",
		fmt.Sprintf("code: %s", code), false).
		WithMetadata("existingStatus", existingStatus)
}

func NewDuplicatePaymentCodeError(receipt string) *StandardError {
	return newError(ErrCodeDuplicatePaymentCode, "M-Pesa receipt is already attached to another application",
		fmt.Sprintf("receipt: %s", receipt), false)
}

func NewApplicationLockedError(status string) *StandardError {
	return newError(ErrCodeApplicationLocked, "Application can no longer be edited",
		fmt.Sprintf("status: %s", status), false).
		WithMetadata("currentStatus", status)
}

func NewOpportunityClosedError(opportunityID string) *StandardError {
	return newError(ErrCodeOpportunityClosed, "Opportunity is closed",
		fmt.Sprintf("opportunityId: %s", opportunityID), false)
}

func NewPaymentAlreadyProcessedError(paymentID, status string) *StandardError {
	return newError(ErrCodePaymentAlreadyProcessed, "Payment has already been processed",
		fmt.Sprintf("paymentId: %s, status: %s", paymentID, status), false).
		WithMetadata("currentStatus", status)
}

func NewInvalidTransitionError(from, to string) *StandardError {
	return newError(ErrCodeInvalidTransition, "Status transition not allowed",
		fmt.Sprintf("%s -> %s", from, to), false).
		WithMetadata("currentStatus", from).
		WithMetadata("requestedStatus", to)
}

func NewUnauthorizedError(details string) *StandardError {
	return newError(ErrCodeUnauthorized, "Authentication required", details, false)
}

func NewForbiddenError(details string) *StandardError {
	return newError(ErrCodeForbidden, "Insufficient permissions", details, false)
}

func NewRateLimitedError(limit int) *StandardError {
	return newError(ErrCodeRateLimited, "Too many requests",
		fmt.Sprintf("limit: %d per minute", limit), true)
}

func NewNotFoundError(resource, id string) *StandardError {
	return newError(ErrCodeNotFound, fmt.Sprintf("%s not found", resource),
		fmt.Sprintf("id: %s", id), false)
}

func NewQueryExecutionFailedError(operation string, err error) *StandardError {
	e := newError(ErrCodeQueryExecutionFailed, "Database query execution error",
		fmt.Sprintf("operation: %s, error: %s", operation, err.Error()), true)
	e.cause = err
	return e
}

func NewQueryTimeoutError(operation string) *StandardError {
	return newError(ErrCodeQueryTimeout, "Database query timeout",
		fmt.Sprintf("operation: %s", operation), true)
}

func NewDatabaseInsertFailedError(err error) *StandardError {
	e := newError(ErrCodeDatabaseInsertFailed, "Database insert operation failed", err.Error(), true)
	e.cause = err
	return e
}

func NewElasticsearchConnectionFailedError(err error) *StandardError {
	e := newError(ErrCodeElasticsearchConnectionFailed, "Elasticsearch connection error", err.Error(), true)
	e.cause = err
	return e
}

func NewSearchQueryFailedError(index string, err error) *StandardError {
	e := newError(ErrCodeSearchQueryFailed, "Elasticsearch query error",
		fmt.Sprintf("index: %s, error: %s", index, err.Error()), true)
	e.cause = err
	return e
}

func NewIndexFailedError(index string, err error) *StandardError {
	e := newError(ErrCodeIndexFailed, "Elasticsearch indexing error",
		fmt.Sprintf("index: %s, error: %s", index, err.Error()), true)
	e.cause = err
	return e
}

func NewNotificationSendFailedError(channel string, err error) *StandardError {
	e := newError(ErrCodeNotificationSendFailed, "Notification delivery failed",
		fmt.Sprintf("channel: %s, error: %s", channel, err.Error()), true)
	e.cause = err
	return e
}

func NewExternalServiceError(service string, err error) *StandardError {
	e := newError(ErrCodeExternalService, fmt.Sprintf("External service '%s' error", service), err.Error(), true)
	e.cause = err
	return e
}

func NewTimeoutError(service string, err error) *StandardError {
	e := newError(ErrCodeTimeout, fmt.Sprintf("Service '%s' timeout", service), err.Error(), true)
	e.cause = err
	return e
}

func NewInternalError(err error) *StandardError {
	e := newError(ErrCodeInternal, "Internal error", err.Error(), false)
	e.cause = err
	return e
}

var BPMNErrorMapping = map[ErrorCode]string{
	ErrCodeNotificationSendFailed:        "NOTIFICATION_SEND_FAILED",
	ErrCodeIndexFailed:                   "INDEX_FAILED",
	ErrCodeElasticsearchConnectionFailed: "ELASTICSEARCH_CONNECTION_FAILED",
	ErrCodeDatabaseConnectionFailed:      "DATABASE_CONNECTION_FAILED",
	ErrCodeQueryExecutionFailed:          "QUERY_EXECUTION_FAILED",
	ErrCodeNotFound:                      "RECIPIENT_NOT_FOUND",
	ErrCodeValidationFailed:              "INVALID_JOB_VARIABLES",
}

func GetRetryCount(code ErrorCode) int {
	switch code {
	case ErrCodeDatabaseConnectionFailed,
		ErrCodeQueryExecutionFailed,
		ErrCodeDatabaseInsertFailed,
		ErrCodeElasticsearchConnectionFailed,
		ErrCodeSearchQueryFailed,
		ErrCodeIndexFailed,
		ErrCodeNotificationSendFailed,
		ErrCodeExternalService:
		return 3
	case ErrCodeQueryTimeout, ErrCodeTimeout:
		return 2
	default:
		return 0
	}
}

func ConvertToBPMNError(stdErr *StandardError) *BPMNError {
	bpmnCode, exists := BPMNErrorMapping[stdErr.Code]
	if !exists {
		bpmnCode = string(stdErr.Code)
	}

	retries := GetRetryCount(stdErr.Code)
	if !stdErr.Retryable {
		retries = 0
	}

	return &BPMNError{
		Code:      bpmnCode,
		Message:   stdErr.Message,
		Details:   stdErr.Details,
		Retryable: stdErr.Retryable,
		Retries:   retries,
		ErrorVariables: map[string]interface{}{
			"originalErrorCode": string(stdErr.Code),
			"timestamp":         stdErr.Timestamp.Format(time.RFC3339),
		},
	}
}

func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case strings.Contains(codeStr, "DATABASE") || strings.Contains(codeStr, "QUERY"):
		return "DATABASE"
	case strings.Contains(codeStr, "ELASTICSEARCH") || strings.Contains(codeStr, "SEARCH") || strings.Contains(codeStr, "INDEX"):
		return "SEARCH"
	case strings.Contains(codeStr, "NOTIFICATION"):
		return "NOTIFICATION"
	case strings.Contains(codeStr, "PAYMENT") || strings.Contains(codeStr, "TRANSACTION") || strings.Contains(codeStr, "AMOUNT"):
		return "PAYMENT"
	default:
		return strings.ToUpper(string(KindOf(code)))
	}
}
