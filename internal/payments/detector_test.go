// internal/payments/detector_test.go
package payments

import (
	"context"
	"fmt"
	"testing"
	"time"

	apperrors "internship-portal/internal/common/errors"
	"internship-portal/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockLookup struct {
	mock.Mock
}

func (m *mockLookup) FindByCode(ctx context.Context, code string) (*models.Payment, bool, error) {
	args := m.Called(ctx, code)
	p, _ := args.Get(0).(*models.Payment)
	return p, args.Bool(1), args.Error(2)
}

func (m *mockLookup) FindRecentByPhoneAmount(ctx context.Context, phone string, amount int64, since time.Time) ([]models.Payment, error) {
	args := m.Called(ctx, phone, amount, since)
	ps, _ := args.Get(0).([]models.Payment)
	return ps, args.Error(1)
}

func fixedDetector(window time.Duration, now time.Time) *Detector {
	d := NewDetector(window)
	d.now = func() time.Time { return now }
	return d
}

var submission = Normalized{TransactionCode: "ABC1234567", Phone: "254712345678", Amount: 500}

func TestDetector_ExactDuplicate(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store := new(mockLookup)
	existing := &models.Payment{ID: "pay-1", ApplicationID: "app-1", Status: models.PaymentRecordRejected}
	store.On("FindByCode", mock.Anything, "ABC1234567").Return(existing, true, nil)

	finding, err := fixedDetector(time.Hour, now).Check(context.Background(), store, "app-2", submission)

	require.Error(t, err)
	stdErr, ok := apperrors.As(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.ErrCodeDuplicateTransactionCode, stdErr.Code)
	assert.Equal(t, "rejected", stdErr.Metadata["existingStatus"])
	assert.Equal(t, "pay-1", stdErr.Metadata["existingPaymentId"])
	assert.Same(t, existing, finding.Existing)
	store.AssertNotCalled(t, "FindRecentByPhoneAmount", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestDetector_RecentActivityWarns(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store := new(mockLookup)
	store.On("FindByCode", mock.Anything, "ABC1234567").Return(nil, false, nil)
	store.On("FindRecentByPhoneAmount", mock.Anything, "254712345678", int64(500), now.Add(-time.Hour)).
		Return([]models.Payment{
			{ID: "p1", ApplicationID: "app-9"},
			{ID: "p2", ApplicationID: "app-2"},
			{ID: "p3", ApplicationID: "app-9"},
			{ID: "p4", ApplicationID: "app-5"},
		}, nil)

	finding, err := fixedDetector(time.Hour, now).Check(context.Background(), store, "app-2", submission)

	require.NoError(t, err)
	assert.Nil(t, finding.Existing)
	require.Len(t, finding.Warnings, 1)
	assert.Contains(t, finding.Warnings[0], "2 other application(s)")
	assert.Contains(t, finding.Warnings[0], "app-5, app-9")
	store.AssertExpectations(t)
}

func TestDetector_OwnResubmissionIsNotSuspicious(t *testing.T) {
	now := time.Now()
	store := new(mockLookup)
	store.On("FindByCode", mock.Anything, mock.Anything).Return(nil, false, nil)
	store.On("FindRecentByPhoneAmount", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return([]models.Payment{{ID: "p1", ApplicationID: "app-2", Status: models.PaymentRecordRejected}}, nil)

	finding, err := fixedDetector(time.Hour, now).Check(context.Background(), store, "app-2", submission)

	require.NoError(t, err)
	assert.Empty(t, finding.Warnings)
}

func TestDetector_StoreErrorsPropagate(t *testing.T) {
	store := new(mockLookup)
	dbErr := apperrors.NewQueryExecutionFailedError("find_payment_by_code", fmt.Errorf("conn reset"))
	store.On("FindByCode", mock.Anything, mock.Anything).Return(nil, false, dbErr)

	_, err := NewDetector(time.Hour).Check(context.Background(), store, "app-1", submission)

	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeQueryExecutionFailed))
}

func TestDetector_ZeroWindowDisablesHeuristic(t *testing.T) {
	store := new(mockLookup)
	store.On("FindByCode", mock.Anything, mock.Anything).Return(nil, false, nil)

	finding, err := NewDetector(0).Check(context.Background(), store, "app-1", submission)

	require.NoError(t, err)
	assert.Empty(t, finding.Warnings)
	store.AssertNotCalled(t, "FindRecentByPhoneAmount", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}
