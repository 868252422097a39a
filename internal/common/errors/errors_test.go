// internal/common/errors/errors_test.go
package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKindAndHTTPStatus(t *testing.T) {
	tests := []struct {
		name   string
		err    *StandardError
		kind   Kind
		status int
	}{
		{"bad code", NewInvalidCodeFormatError("abc"), KindValidation, http.StatusBadRequest},
		{"bad phone", NewInvalidPhoneFormatError("123"), KindValidation, http.StatusBadRequest},
		{"amount", NewAmountMismatchError(500, 450, 10), KindValidation, http.StatusBadRequest},
		{"duplicate code", NewDuplicateTransactionCodeError("QWE1234567", "pending"), KindConflict, http.StatusConflict},
		{"duplicate application", NewDuplicateApplicationError("u1", "o1"), KindConflict, http.StatusConflict},
		{"locked", NewApplicationLockedError("submitted"), KindState, http.StatusConflict},
		{"processed", NewPaymentAlreadyProcessedError("p1", "verified"), KindState, http.StatusConflict},
		{"forbidden", NewForbiddenError("admin only"), KindAuthorization, http.StatusForbidden},
		{"unauthorized", NewUnauthorizedError("missing token"), KindAuthorization, http.StatusUnauthorized},
		{"rate limited", NewRateLimitedError(5), KindAuthorization, http.StatusTooManyRequests},
		{"not found", NewNotFoundError("application", "a1"), KindNotFound, http.StatusNotFound},
		{"db", NewQueryExecutionFailedError("insert", fmt.Errorf("boom")), KindInfrastructure, http.StatusInternalServerError},
		{"timeout", NewQueryTimeoutError("select"), KindInfrastructure, http.StatusGatewayTimeout},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.kind, tt.err.Kind())
			assert.Equal(t, tt.status, tt.err.HTTPStatus())
		})
	}
}

func TestAmountMismatchReportsDiscrepancy(t *testing.T) {
	err := NewAmountMismatchError(500, 450, 10)
	assert.Equal(t, int64(50), err.Metadata["discrepancy"])

	err = NewAmountMismatchError(500, 530, 10)
	assert.Equal(t, int64(30), err.Metadata["discrepancy"])
}

func TestStateErrorsCarryCurrentStatus(t *testing.T) {
	assert.Equal(t, "verified", NewPaymentAlreadyProcessedError("p1", "verified").Metadata["currentStatus"])
	assert.Equal(t, "under-review", NewApplicationLockedError("under-review").Metadata["currentStatus"])
}

func TestAsAndIsThroughWrapping(t *testing.T) {
	base := NewNotFoundError("payment", "p1")
	wrapped := fmt.Errorf("loading payment: %w", base)

	got, ok := As(wrapped)
	require.True(t, ok)
	assert.Equal(t, ErrCodeNotFound, got.Code)
	assert.True(t, HasCode(wrapped, ErrCodeNotFound))
	assert.True(t, stderrors.Is(wrapped, &StandardError{Code: ErrCodeNotFound}))
	assert.False(t, stderrors.Is(wrapped, &StandardError{Code: ErrCodeForbidden}))
}

func TestNormalizeWrapsUnknownErrors(t *testing.T) {
	cause := fmt.Errorf("plain failure")
	got := Normalize(cause)
	assert.Equal(t, ErrCodeInternal, got.Code)
	assert.ErrorIs(t, got, cause)

	known := NewForbiddenError("x")
	assert.Same(t, known, Normalize(known))
}

func TestConvertToBPMNError(t *testing.T) {
	stdErr := NewNotificationSendFailedError("email", fmt.Errorf("ses down"))
	bpmn := ConvertToBPMNError(stdErr)

	assert.Equal(t, "NOTIFICATION_SEND_FAILED", bpmn.Code)
	assert.Equal(t, 3, bpmn.Retries)
	vars := bpmn.ToErrorVariables()
	assert.Equal(t, "NOTIFICATION_SEND_FAILED", vars["originalErrorCode"])
	assert.Equal(t, true, vars["retryable"])

	nonRetryable := ConvertToBPMNError(NewValidationFailedError("bad vars", nil))
	assert.Equal(t, "INVALID_JOB_VARIABLES", nonRetryable.Code)
	assert.Zero(t, nonRetryable.Retries)
}

func TestGetErrorCategory(t *testing.T) {
	assert.Equal(t, "DATABASE", GetErrorCategory(ErrCodeQueryExecutionFailed))
	assert.Equal(t, "SEARCH", GetErrorCategory(ErrCodeIndexFailed))
	assert.Equal(t, "PAYMENT", GetErrorCategory(ErrCodeDuplicateTransactionCode))
	assert.Equal(t, "NOTIFICATION", GetErrorCategory(ErrCodeNotificationSendFailed))
	assert.Equal(t, "STATE", GetErrorCategory(ErrCodeApplicationLocked))
}

func TestRetryBackoffDoubles(t *testing.T) {
	h := &ErrorHandler{baseBackoff: time.Second}
	assert.Equal(t, time.Second, h.RetryBackoff(4, 4))
	assert.Equal(t, 2*time.Second, h.RetryBackoff(4, 3))
	assert.Equal(t, 4*time.Second, h.RetryBackoff(4, 2))
}
