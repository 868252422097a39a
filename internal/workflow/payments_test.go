// internal/workflow/payments_test.go
package workflow

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	apperrors "internship-portal/internal/common/errors"
	"internship-portal/internal/common/logger"
	"internship-portal/internal/models"
	"internship-portal/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func submit(f *fixture, caller models.Principal, appID, code string) (*PaymentResult, error) {
	return f.payments.Submit(context.Background(), caller, SubmitPaymentInput{
		ApplicationID:   appID,
		TransactionCode: code,
		PhoneNumber:     "254712345678",
		Amount:          500,
	})
}

func requireCode(t *testing.T, err error, code apperrors.ErrorCode) *apperrors.StandardError {
	t.Helper()
	se, ok := apperrors.As(err)
	require.True(t, ok, "expected StandardError, got %v", err)
	require.Equal(t, code, se.Code)
	return se
}

func TestSubmitThenVerify_HappyPath(t *testing.T) {
	f := newFixture(t)
	f.seedApplication("app-1", student, models.ApplicationPending)

	res, err := submit(f, student, "app-1", "QHG31YRWPF")
	require.NoError(t, err)
	assert.Equal(t, models.PaymentRecordPending, res.Payment.Status)
	assert.Equal(t, models.ApplicationPaymentSubmitted, res.Application.Status)

	app := f.application(t, "app-1")
	assert.Equal(t, models.ApplicationPaymentSubmitted, app.Status)
	assert.Equal(t, models.PaymentPending, app.Payment.Status)
	require.NotNil(t, app.Payment.SubmittedAt)
	require.NotNil(t, app.SubmittedAt, "pending to payment-submitted records submittedAt")
	assert.Equal(t, *app.Payment.SubmittedAt, *app.SubmittedAt)
	firstSubmitted := *app.SubmittedAt

	verified, err := f.payments.Verify(context.Background(), admin, res.Payment.ID, DecisionInput{Notes: "matched statement"})
	require.NoError(t, err)
	assert.Equal(t, models.PaymentRecordVerified, verified.Payment.Status)
	assert.Equal(t, "admin-1", *verified.Payment.VerifiedBy)

	app = f.application(t, "app-1")
	assert.Equal(t, models.ApplicationPaymentVerified, app.Status)
	assert.Equal(t, models.PaymentVerified, app.Payment.Status)
	require.NotNil(t, app.Payment.MpesaReceiptNumber)
	assert.Equal(t, "QHG31YRWPF", *app.Payment.MpesaReceiptNumber)
	require.NotNil(t, app.SubmittedAt)
	assert.Equal(t, firstSubmitted, *app.SubmittedAt)

	entries := f.timeline(t, "app-1")
	require.Len(t, entries, 2)
	assert.Equal(t, models.ApplicationPaymentSubmitted, entries[0].Status)
	assert.Equal(t, models.ApplicationPaymentVerified, entries[1].Status)
	assert.Equal(t, "admin-1", entries[1].ActorID)

	require.Len(t, f.eventsOf(models.EventPaymentSubmitted), 1)
	verifiedEvents := f.eventsOf(models.EventPaymentVerified)
	require.Len(t, verifiedEvents, 1)
	assert.Equal(t, "Backend Engineering Intern", verifiedEvents[0].OpportunityTitle)
	assert.Equal(t, "wanjiru@example.com", verifiedEvents[0].RecipientEmail)
}

func TestSubmit_NormalizesInput(t *testing.T) {
	f := newFixture(t)
	f.seedApplication("app-1", student, models.ApplicationPending)

	res, err := f.payments.Submit(context.Background(), student, SubmitPaymentInput{
		ApplicationID:   "app-1",
		TransactionCode: " qhg31yrwpf ",
		PhoneNumber:     "+254 712-345-678",
		Amount:          495,
	})

	require.NoError(t, err)
	assert.Equal(t, "QHG31YRWPF", res.Payment.TransactionCode)
	assert.Equal(t, "254712345678", res.Payment.PhoneNumber)
	assert.Equal(t, int64(495), res.Payment.Amount)
}

func TestSubmit_BadCodeFormatCreatesNothing(t *testing.T) {
	f := newFixture(t)
	f.seedApplication("app-1", student, models.ApplicationPending)

	_, err := submit(f, student, "app-1", "abc123456")

	requireCode(t, err, apperrors.ErrCodeInvalidCodeFormat)
	stats, err := f.payments.Stats(context.Background())
	require.NoError(t, err)
	assert.Empty(t, stats)
	assert.Equal(t, models.ApplicationPending, f.application(t, "app-1").Status)
	assert.Empty(t, f.st.Events())
}

func TestSubmit_AmountMismatchReportsDiscrepancy(t *testing.T) {
	f := newFixture(t)
	f.seedApplication("app-1", student, models.ApplicationPending)

	_, err := f.payments.Submit(context.Background(), student, SubmitPaymentInput{
		ApplicationID:   "app-1",
		TransactionCode: "QHG31YRWPF",
		PhoneNumber:     "254712345678",
		Amount:          450,
	})

	se := requireCode(t, err, apperrors.ErrCodeAmountMismatch)
	assert.Equal(t, int64(50), se.Metadata["discrepancy"])
	assert.Equal(t, int64(500), se.Metadata["expected"])
}

func TestSubmit_DuplicateCodeAcrossApplications(t *testing.T) {
	f := newFixture(t)
	f.seedApplication("app-1", student, models.ApplicationPending)
	f.seedApplication("app-2", other, models.ApplicationPending)

	first, err := submit(f, student, "app-1", "ABC1234567")
	require.NoError(t, err)
	assert.Equal(t, models.PaymentRecordPending, first.Payment.Status)

	_, err = submit(f, other, "app-2", "ABC1234567")

	se := requireCode(t, err, apperrors.ErrCodeDuplicateTransactionCode)
	assert.Equal(t, "pending", se.Metadata["existingStatus"])
	app := f.application(t, "app-2")
	assert.Equal(t, models.ApplicationPending, app.Status)
	assert.Equal(t, models.PaymentUnpaid, app.Payment.Status)
	assert.Empty(t, f.timeline(t, "app-2"))
}

func TestSubmit_ReusingVerifiedCodeRejectsApplication(t *testing.T) {
	f := newFixture(t)
	f.seedApplication("app-1", student, models.ApplicationPending)
	f.seedApplication("app-2", other, models.ApplicationPending)

	first, err := submit(f, student, "app-1", "ABC1234567")
	require.NoError(t, err)
	_, err = f.payments.Verify(context.Background(), admin, first.Payment.ID, DecisionInput{})
	require.NoError(t, err)

	_, err = submit(f, other, "app-2", "ABC1234567")

	se := requireCode(t, err, apperrors.ErrCodeDuplicateTransactionCode)
	assert.Equal(t, "verified", se.Metadata["existingStatus"])

	app := f.application(t, "app-2")
	assert.Equal(t, models.ApplicationRejected, app.Status)
	require.NotNil(t, app.RejectionReason)
	assert.Contains(t, *app.RejectionReason, "ABC1234567")

	entries := f.timeline(t, "app-2")
	require.Len(t, entries, 1)
	assert.Equal(t, models.ApplicationRejected, entries[0].Status)
	assert.Equal(t, systemActor, entries[0].ActorID)

	fraud := f.eventsOf(models.EventPaymentFraud)
	require.Len(t, fraud, 1)
	assert.True(t, fraud[0].AlertAdmins)
	assert.Equal(t, "app-2", fraud[0].ApplicationID)
}

// staleLookupStore hides existing codes from the first FindByCode call, so
// the insert is the first to see a committed duplicate.
type staleLookupStore struct {
	store.Store
	mu      sync.Mutex
	misses  int
	lookups int
	inserts int
	insErr  []error
}

func (s *staleLookupStore) RunInTx(ctx context.Context, fn func(tx store.Tx) error) error {
	return s.Store.RunInTx(ctx, func(tx store.Tx) error {
		return fn(staleLookupTx{Tx: tx, s: s})
	})
}

type staleLookupTx struct {
	store.Tx
	s *staleLookupStore
}

func (t staleLookupTx) Payments() store.PaymentStore {
	return staleLookupPayments{PaymentStore: t.Tx.Payments(), s: t.s}
}

type staleLookupPayments struct {
	store.PaymentStore
	s *staleLookupStore
}

func (p staleLookupPayments) FindByCode(ctx context.Context, code string) (*models.Payment, bool, error) {
	p.s.mu.Lock()
	p.s.lookups++
	miss := p.s.misses > 0
	if miss {
		p.s.misses--
	}
	p.s.mu.Unlock()
	if miss {
		return nil, false, nil
	}
	return p.PaymentStore.FindByCode(ctx, code)
}

func (p staleLookupPayments) Insert(ctx context.Context, pay *models.Payment) error {
	err := p.PaymentStore.Insert(ctx, pay)
	p.s.mu.Lock()
	p.s.inserts++
	p.s.insErr = append(p.s.insErr, err)
	p.s.mu.Unlock()
	return err
}

func TestSubmit_InsertConflictRetriesOntoDuplicatePath(t *testing.T) {
	f := newFixture(t)
	f.seedApplication("app-1", student, models.ApplicationPending)
	other := models.Principal{UserID: "student-2", Roles: []models.Role{models.RoleStudent}}
	f.seedApplication("app-2", other, models.ApplicationPaymentSubmitted)
	f.st.PutPayment(models.Payment{
		ID:              "pay-winner",
		ApplicationID:   "app-2",
		UserID:          other.UserID,
		Amount:          500,
		TransactionCode: "QHG31YRWPF",
		PhoneNumber:     "254798765432",
		Status:          models.PaymentRecordPending,
		Source:          models.SourceManual,
		CreatedAt:       time.Now().UTC(),
	})

	racy := &staleLookupStore{Store: f.st, misses: 1}
	svc := NewPaymentService(racy, PaymentConfig{Fee: 500, Tolerance: 10, RecencyWindow: time.Hour}, nil, logger.NewTestLogger(t))
	before := f.application(t, "app-1")

	_, err := svc.Submit(context.Background(), student, SubmitPaymentInput{
		ApplicationID:   "app-1",
		TransactionCode: "QHG31YRWPF",
		PhoneNumber:     "254712345678",
		Amount:          500,
	})

	se := requireCode(t, err, apperrors.ErrCodeDuplicateTransactionCode)
	assert.Equal(t, string(models.PaymentRecordPending), se.Metadata["existingStatus"])
	assert.Equal(t, 2, racy.lookups, "one retry after the lost insert")
	require.Equal(t, 1, racy.inserts)
	assert.True(t, apperrors.HasCode(racy.insErr[0], apperrors.ErrCodeDuplicateTransactionCode))

	after := f.application(t, "app-1")
	assert.Equal(t, before.Status, after.Status)
	assert.Equal(t, models.PaymentUnpaid, after.Payment.Status)
	assert.Nil(t, after.SubmittedAt)
	assert.Empty(t, f.timeline(t, "app-1"))
	assert.Empty(t, f.eventsOf(models.EventPaymentSubmitted))

	attempts, err := f.st.Payments().FindByApplication(context.Background(), "app-1")
	require.NoError(t, err)
	assert.Empty(t, attempts)
}

func TestSubmit_ConcurrentSameCodeOneWinner(t *testing.T) {
	f := newFixture(t)
	const n = 8
	callers := make([]models.Principal, n)
	for i := range callers {
		callers[i] = models.Principal{UserID: fmt.Sprintf("student-%d", i), Roles: []models.Role{models.RoleStudent}}
		f.seedApplication(fmt.Sprintf("app-%d", i), callers[i], models.ApplicationPending)
	}

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		dupes     int
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := submit(f, callers[i], fmt.Sprintf("app-%d", i), "QHG31YRWPF")
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case apperrors.HasCode(err, apperrors.ErrCodeDuplicateTransactionCode):
				dupes++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, successes)
	assert.Equal(t, n-1, dupes)
	page, err := f.payments.Queue(context.Background(), models.PaymentRecordPending, 1, 50)
	require.NoError(t, err)
	assert.Equal(t, int64(1), page.Total)
}

func TestSubmit_RecentActivityWarnsAdmins(t *testing.T) {
	f := newFixture(t)
	f.seedApplication("app-1", student, models.ApplicationPending)
	f.seedApplication("app-2", other, models.ApplicationPending)

	_, err := submit(f, student, "app-1", "AAA1111111")
	require.NoError(t, err)
	res, err := submit(f, other, "app-2", "BBB2222222")

	require.NoError(t, err)
	require.Len(t, res.Warnings, 1)
	assert.Contains(t, res.Warnings[0], "app-1")
	assert.Equal(t, res.Warnings, res.Payment.Warnings)

	submitted := f.eventsOf(models.EventPaymentSubmitted)
	require.Len(t, submitted, 2)
	assert.False(t, submitted[0].AlertAdmins)
	assert.True(t, submitted[1].AlertAdmins)
}

func TestSubmit_Preconditions(t *testing.T) {
	f := newFixture(t)
	f.seedApplication("app-draft", student, models.ApplicationDraft)
	f.seedApplication("app-1", student, models.ApplicationPending)

	_, err := submit(f, other, "app-1", "QHG31YRWPF")
	requireCode(t, err, apperrors.ErrCodeNotFound)

	_, err = submit(f, student, "missing", "QHG31YRWPF")
	requireCode(t, err, apperrors.ErrCodeNotFound)

	_, err = submit(f, student, "app-draft", "QHG31YRWPF")
	requireCode(t, err, apperrors.ErrCodeInvalidTransition)

	_, err = submit(f, student, "app-1", "QHG31YRWPF")
	require.NoError(t, err)
	_, err = submit(f, student, "app-1", "ZZZ9999999")
	se := requireCode(t, err, apperrors.ErrCodeInvalidTransition)
	assert.Equal(t, "payment-submitted", se.Metadata["currentStatus"])
}

func TestSubmit_FailedCommitLeavesNoTrace(t *testing.T) {
	f := newFixture(t)
	f.seedApplication("app-1", student, models.ApplicationPending)
	f.st.FailNextCommit = fmt.Errorf("connection reset by peer")

	_, err := submit(f, student, "app-1", "QHG31YRWPF")

	require.Error(t, err)
	assert.Equal(t, models.ApplicationPending, f.application(t, "app-1").Status)
	_, found, _ := f.st.Payments().FindByCode(context.Background(), "QHG31YRWPF")
	assert.False(t, found)
	assert.Empty(t, f.st.Events())

	_, err = submit(f, student, "app-1", "QHG31YRWPF")
	assert.NoError(t, err, "retry after a lost commit succeeds")
}

func TestRejectThenResubmit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedApplication("app-1", student, models.ApplicationPending)

	first, err := submit(f, student, "app-1", "QHG31YRWPF")
	require.NoError(t, err)

	rejected, err := f.payments.Reject(ctx, admin, first.Payment.ID, DecisionInput{Reason: "wrong code"})
	require.NoError(t, err)
	assert.Equal(t, models.PaymentRecordRejected, rejected.Payment.Status)
	assert.Equal(t, "wrong code", *rejected.Payment.RejectionReason)

	app := f.application(t, "app-1")
	assert.Equal(t, models.ApplicationRejected, app.Status)
	assert.Equal(t, models.PaymentRejected, app.Payment.Status)
	assert.Equal(t, "wrong code", *app.RejectionReason)

	second, err := submit(f, student, "app-1", "RKT7ABCD12")
	require.NoError(t, err)
	assert.NotEqual(t, first.Payment.ID, second.Payment.ID)
	assert.Equal(t, models.PaymentRecordPending, second.Payment.Status)

	app = f.application(t, "app-1")
	assert.Equal(t, models.ApplicationPaymentSubmitted, app.Status)
	assert.Nil(t, app.RejectionReason)

	view, err := f.payments.Status(ctx, student, "app-1")
	require.NoError(t, err)
	require.Len(t, view.Attempts, 2)
	statuses := []models.PaymentRecordStatus{view.Attempts[0].Status, view.Attempts[1].Status}
	assert.ElementsMatch(t, []models.PaymentRecordStatus{models.PaymentRecordPending, models.PaymentRecordRejected}, statuses)
}

func TestReject_RequiresReasonAndAdmin(t *testing.T) {
	f := newFixture(t)
	f.seedApplication("app-1", student, models.ApplicationPending)
	res, err := submit(f, student, "app-1", "QHG31YRWPF")
	require.NoError(t, err)

	_, err = f.payments.Reject(context.Background(), admin, res.Payment.ID, DecisionInput{})
	requireCode(t, err, apperrors.ErrCodeValidationFailed)

	_, err = f.payments.Reject(context.Background(), admin, res.Payment.ID, DecisionInput{Reason: " \t\n "})
	requireCode(t, err, apperrors.ErrCodeValidationFailed)

	_, err = f.payments.Reject(context.Background(), student, res.Payment.ID, DecisionInput{Reason: "x"})
	requireCode(t, err, apperrors.ErrCodeForbidden)

	assert.Equal(t, models.PaymentRecordPending, mustPayment(t, f, res.Payment.ID).Status)
	assert.Equal(t, models.ApplicationPaymentSubmitted, f.application(t, "app-1").Status)

	rejected, err := f.payments.Reject(context.Background(), admin, res.Payment.ID, DecisionInput{Reason: "  code not on statement  "})
	require.NoError(t, err)
	require.NotNil(t, rejected.Application.RejectionReason)
	assert.Equal(t, "code not on statement", *rejected.Application.RejectionReason)
}

func TestVerify_TerminalStatesAreMonotonic(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedApplication("app-1", student, models.ApplicationPending)
	res, err := submit(f, student, "app-1", "QHG31YRWPF")
	require.NoError(t, err)

	_, err = f.payments.Verify(ctx, admin, res.Payment.ID, DecisionInput{})
	require.NoError(t, err)

	again, err := f.payments.Verify(ctx, admin, res.Payment.ID, DecisionInput{})
	require.NoError(t, err, "re-verifying is a no-op")
	assert.Equal(t, models.ApplicationPaymentVerified, again.Application.Status)
	assert.Len(t, f.timeline(t, "app-1"), 2)
	assert.Len(t, f.eventsOf(models.EventPaymentVerified), 1)

	_, err = f.payments.Reject(ctx, admin, res.Payment.ID, DecisionInput{Reason: "late"})
	se := requireCode(t, err, apperrors.ErrCodePaymentAlreadyProcessed)
	assert.Equal(t, "verified", se.Metadata["currentStatus"])

	_, err = f.payments.FlagDuplicate(ctx, admin, res.Payment.ID, DecisionInput{})
	requireCode(t, err, apperrors.ErrCodePaymentAlreadyProcessed)

	assert.Equal(t, models.PaymentRecordVerified, mustPayment(t, f, res.Payment.ID).Status)
}

func TestVerify_RejectedPaymentCannotBeVerified(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedApplication("app-1", student, models.ApplicationPending)
	res, err := submit(f, student, "app-1", "QHG31YRWPF")
	require.NoError(t, err)
	_, err = f.payments.Reject(ctx, admin, res.Payment.ID, DecisionInput{Reason: "no such transaction"})
	require.NoError(t, err)

	_, err = f.payments.Verify(ctx, admin, res.Payment.ID, DecisionInput{})

	se := requireCode(t, err, apperrors.ErrCodePaymentAlreadyProcessed)
	assert.Equal(t, "rejected", se.Metadata["currentStatus"])
}

func TestVerify_RepairsApplicationLeftInPaymentSubmitted(t *testing.T) {
	f := newFixture(t)
	paymentID := "pay-1"
	f.st.PutApplication(models.Application{
		ID:            "app-1",
		ApplicantID:   student.UserID,
		OpportunityID: "opp-1",
		Status:        models.ApplicationPaymentSubmitted,
		Payment:       models.PaymentInfo{Status: models.PaymentPending, PaymentID: &paymentID},
	})
	f.st.PutPayment(models.Payment{
		ID:              paymentID,
		ApplicationID:   "app-1",
		UserID:          student.UserID,
		Amount:          500,
		TransactionCode: "QHG31YRWPF",
		PhoneNumber:     "254712345678",
		Status:          models.PaymentRecordVerified,
	})

	res, err := f.payments.Verify(context.Background(), admin, paymentID, DecisionInput{})

	require.NoError(t, err)
	assert.Equal(t, models.ApplicationPaymentVerified, res.Application.Status)
	assert.Equal(t, models.PaymentVerified, f.application(t, "app-1").Payment.Status)
}

func TestVerify_ReceiptCollisionRejectsApplication(t *testing.T) {
	f := newFixture(t)
	receipt := "QHG31YRWPF"
	pendingID := "pay-2"
	f.st.PutApplication(models.Application{
		ID: "app-holder", ApplicantID: other.UserID, OpportunityID: "opp-1",
		Status:  models.ApplicationAccepted,
		Payment: models.PaymentInfo{Status: models.PaymentVerified, MpesaReceiptNumber: &receipt},
	})
	f.st.PutApplication(models.Application{
		ID: "app-1", ApplicantID: student.UserID, OpportunityID: "opp-1",
		Status:  models.ApplicationPaymentSubmitted,
		Payment: models.PaymentInfo{Status: models.PaymentPending, PaymentID: &pendingID},
	})
	f.st.PutPayment(models.Payment{
		ID: pendingID, ApplicationID: "app-1", UserID: student.UserID, Amount: 500,
		TransactionCode: receipt, PhoneNumber: "254712345678", Status: models.PaymentRecordPending,
	})

	_, err := f.payments.Verify(context.Background(), admin, pendingID, DecisionInput{})

	requireCode(t, err, apperrors.ErrCodeDuplicatePaymentCode)
	assert.Equal(t, models.PaymentRecordDuplicate, mustPayment(t, f, pendingID).Status)
	app := f.application(t, "app-1")
	assert.Equal(t, models.ApplicationRejected, app.Status)
	assert.Equal(t, models.PaymentFailed, app.Payment.Status)
	assert.Nil(t, app.Payment.MpesaReceiptNumber)
	require.NotNil(t, app.RejectionReason)
	assert.Contains(t, *app.RejectionReason, "app-holder")
	require.Len(t, f.eventsOf(models.EventPaymentDuplicate), 1)
}

func TestFlagDuplicate_FailsPaymentKeepsStatus(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedApplication("app-1", student, models.ApplicationPending)
	res, err := submit(f, student, "app-1", "QHG31YRWPF")
	require.NoError(t, err)

	flagged, err := f.payments.FlagDuplicate(ctx, admin, res.Payment.ID, DecisionInput{Reason: "same receipt as screenshot 4"})
	require.NoError(t, err)
	assert.Equal(t, models.PaymentRecordDuplicate, flagged.Payment.Status)

	app := f.application(t, "app-1")
	assert.Equal(t, models.ApplicationPaymentSubmitted, app.Status)
	assert.Equal(t, models.PaymentFailed, app.Payment.Status)

	_, err = submit(f, student, "app-1", "RKT7ABCD12")
	assert.NoError(t, err, "a failed payment can be replaced")
}

func TestStatus_Visibility(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedApplication("app-1", student, models.ApplicationPending)

	view, err := f.payments.Status(ctx, student, "app-1")
	require.NoError(t, err)
	assert.Equal(t, models.PaymentUnpaid, view.Payment.Status)
	assert.NotNil(t, view.Attempts)

	_, err = f.payments.Status(ctx, admin, "app-1")
	assert.NoError(t, err)

	_, err = f.payments.Status(ctx, other, "app-1")
	requireCode(t, err, apperrors.ErrCodeNotFound)
}

func TestQueue(t *testing.T) {
	f := newFixture(t)
	f.seedApplication("app-1", student, models.ApplicationPending)
	_, err := submit(f, student, "app-1", "QHG31YRWPF")
	require.NoError(t, err)

	page, err := f.payments.Queue(context.Background(), "", 0, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, page.Page)
	assert.Equal(t, 20, page.Limit)
	require.Len(t, page.Items, 1)

	_, err = f.payments.Queue(context.Background(), "approved", 1, 10)
	requireCode(t, err, apperrors.ErrCodeValidationFailed)
}

func mustPayment(t *testing.T, f *fixture, id string) *models.Payment {
	t.Helper()
	p, err := f.st.Payments().Get(context.Background(), id)
	require.NoError(t, err)
	return p
}
