// internal/workflow/payments.go
package workflow

import (
	"context"
	"fmt"
	"strings"
	"time"

	"internship-portal/internal/applications"
	apperrors "internship-portal/internal/common/errors"
	"internship-portal/internal/common/logger"
	"internship-portal/internal/common/metrics"
	"internship-portal/internal/common/observability"
	"internship-portal/internal/models"
	"internship-portal/internal/payments"
	"internship-portal/internal/store"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
)

type PaymentConfig struct {
	Fee           int64
	Tolerance     int64
	RecencyWindow time.Duration
}

// PaymentService drives manual M-Pesa payments through the ledger and the
// owning application's state machine. Every method commits the payment row,
// the application row, the timeline entry and the outbox event together.
type PaymentService struct {
	store    store.Store
	rules    payments.AmountRule
	detector *payments.Detector
	obs      *observability.Observability
	logger   logger.Logger
	now      func() time.Time
}

func NewPaymentService(st store.Store, cfg PaymentConfig, obs *observability.Observability, log logger.Logger) *PaymentService {
	return &PaymentService{
		store:    st,
		rules:    payments.AmountRule{Fee: cfg.Fee, Tolerance: cfg.Tolerance},
		detector: payments.NewDetector(cfg.RecencyWindow),
		obs:      obs,
		logger:   log.WithFields(map[string]interface{}{"component": "payment-service"}),
		now:      time.Now,
	}
}

type SubmitPaymentInput struct {
	ApplicationID   string `json:"-"`
	TransactionCode string `json:"transactionCode"`
	PhoneNumber     string `json:"phoneNumber"`
	Amount          int64  `json:"amount"`
}

type PaymentResult struct {
	Payment     *models.Payment     `json:"payment"`
	Application *models.Application `json:"application"`
	Warnings    []string            `json:"warnings,omitempty"`
}

// Submit records a new pending attempt for the caller's application and
// moves it to payment-submitted.
//
// A code that already exists is refused with DuplicateTransactionCode and
// leaves the application unchanged, unless the existing attempt is verified:
// then the application is rejected as a fraud attempt and that rejection is
// committed before the error is returned.
func (s *PaymentService) Submit(ctx context.Context, caller models.Principal, in SubmitPaymentInput) (*PaymentResult, error) {
	ctx, span := s.obs.StartSpan(ctx, "payment.submit", attribute.String("application.id", in.ApplicationID))
	defer span.End()
	start := time.Now()

	n, verr := s.rules.ValidateSubmission(payments.Submission{
		TransactionCode: in.TransactionCode,
		Phone:           in.PhoneNumber,
		Amount:          in.Amount,
	})
	if verr != nil {
		s.recordSubmit(ctx, string(verr.Code), start)
		return nil, verr
	}

	var (
		res submitOutcome
		err error
	)
	// The pre-check runs inside the transaction, so a lost insert race can
	// only come from a concurrent commit. One retry then takes the
	// duplicate path with the winner's status.
	for attempt := 0; attempt < 2; attempt++ {
		res, err = s.submitOnce(ctx, caller, in.ApplicationID, n)
		if !res.raced {
			break
		}
		s.logger.Debug("Transaction code insert raced, retrying", map[string]interface{}{
			"applicationId": in.ApplicationID,
			"attempt":       attempt + 1,
		})
	}

	switch {
	case err != nil:
		s.recordSubmit(ctx, outcome(err), start)
		return nil, err
	case res.fraud != nil:
		s.logger.Warn("Verified transaction code reused, application rejected", map[string]interface{}{
			"applicationId":   in.ApplicationID,
			"userId":          caller.UserID,
			"transactionCode": n.TransactionCode,
		})
		s.recordSubmit(ctx, "fraud_attempt", start)
		return nil, res.fraud
	}

	s.logger.Info("Payment submitted", map[string]interface{}{
		"applicationId": in.ApplicationID,
		"paymentId":     res.result.Payment.ID,
		"warnings":      len(res.result.Warnings),
	})
	s.recordSubmit(ctx, "accepted", start)
	return res.result, nil
}

type submitOutcome struct {
	result *PaymentResult
	// fraud is the duplicate error returned after a committed fraud rejection.
	fraud error
	raced bool
}

func (s *PaymentService) submitOnce(ctx context.Context, caller models.Principal, applicationID string, n payments.Normalized) (submitOutcome, error) {
	var out submitOutcome
	err := s.store.RunInTx(ctx, func(tx store.Tx) error {
		now := s.now().UTC()
		app, err := tx.Applications().GetForUpdate(ctx, applicationID)
		if err != nil {
			return err
		}
		if app.ApplicantID != caller.UserID {
			return apperrors.NewNotFoundError("application", applicationID)
		}
		if !applications.CanResubmitPayment(app) {
			return apperrors.NewInvalidTransitionError(string(app.Status), string(models.ApplicationPaymentSubmitted)).
				WithMetadata("paymentStatus", string(app.Payment.Status))
		}

		finding, err := s.detector.Check(ctx, tx.Payments(), app.ID, n)
		if err != nil {
			if finding.Existing != nil && finding.Existing.Status == models.PaymentRecordVerified {
				out.fraud = err
				return s.rejectFraud(ctx, tx, app, caller, finding.Existing, n, now)
			}
			return err
		}

		p := &models.Payment{
			ID:              uuid.NewString(),
			ApplicationID:   app.ID,
			UserID:          caller.UserID,
			Amount:          n.Amount,
			TransactionCode: n.TransactionCode,
			PhoneNumber:     n.Phone,
			Source:          models.SourceManual,
			Warnings:        finding.Warnings,
			CreatedAt:       now,
		}
		if err := tx.Payments().Insert(ctx, p); err != nil {
			if apperrors.HasCode(err, apperrors.ErrCodeDuplicateTransactionCode) {
				out.raced = true
			}
			return err
		}

		from := app.Status
		if err := applications.ValidateTransition(applications.TriggerPaymentSubmitted, from, models.ApplicationPaymentSubmitted); err != nil {
			return err
		}
		app.Status = models.ApplicationPaymentSubmitted
		app.Payment = models.PaymentInfo{
			Status:      models.PaymentPending,
			PaymentID:   strRef(p.ID),
			Amount:      &p.Amount,
			Phone:       strRef(p.PhoneNumber),
			SubmittedAt: timeRef(now),
		}
		if app.SubmittedAt == nil {
			app.SubmittedAt = timeRef(now)
		}
		app.RejectionReason = nil
		app.UpdatedAt = now
		if err := tx.Applications().SaveState(ctx, app); err != nil {
			return err
		}
		if err := appendTimeline(ctx, tx, app, caller.UserID, "Payment submitted: "+p.TransactionCode, now); err != nil {
			return err
		}
		if err := enqueue(ctx, tx, models.EventPaymentSubmitted, app, p, now, func(np *models.NotificationPayload) {
			np.Warnings = p.Warnings
			np.AlertAdmins = len(p.Warnings) > 0
		}); err != nil {
			return err
		}

		metrics.ApplicationTransitions.WithLabelValues(string(from), string(app.Status)).Inc()
		out.result = &PaymentResult{Payment: p, Application: app, Warnings: p.Warnings}
		return nil
	})
	if err != nil {
		out.fraud = nil
	}
	return out, err
}

// rejectFraud records a reuse of an already verified code on app.
func (s *PaymentService) rejectFraud(ctx context.Context, tx store.Tx, app *models.Application, caller models.Principal, existing *models.Payment, n payments.Normalized, now time.Time) error {
	from := app.Status
	if err := applications.ValidateTransition(applications.TriggerFraudDetected, from, models.ApplicationRejected); err != nil {
		return err
	}
	reason := fmt.Sprintf("Transaction code %s was already verified for another payment", n.TransactionCode)
	app.Status = models.ApplicationRejected
	app.RejectionReason = strRef(reason)
	app.UpdatedAt = now
	if err := tx.Applications().SaveState(ctx, app); err != nil {
		return err
	}
	if err := appendTimeline(ctx, tx, app, systemActor, reason, now); err != nil {
		return err
	}
	attempt := &models.Payment{TransactionCode: n.TransactionCode, Amount: n.Amount, PhoneNumber: n.Phone}
	if err := enqueue(ctx, tx, models.EventPaymentFraud, app, attempt, now, func(np *models.NotificationPayload) {
		np.Reason = reason
		np.AlertAdmins = true
		np.Warnings = []string{fmt.Sprintf("code previously verified as payment %s on application %s by user %s",
			existing.ID, existing.ApplicationID, caller.UserID)}
	}); err != nil {
		return err
	}
	metrics.ApplicationTransitions.WithLabelValues(string(from), string(app.Status)).Inc()
	return nil
}

type DecisionInput struct {
	Notes  string `json:"notes,omitempty"`
	Reason string `json:"reason,omitempty"`
}

// Verify marks a pending payment verified and advances its application to
// payment-verified. Verifying an already verified payment is a no-op that
// also repairs an application left behind in payment-submitted.
func (s *PaymentService) Verify(ctx context.Context, admin models.Principal, paymentID string, in DecisionInput) (*PaymentResult, error) {
	if !admin.IsAdmin() {
		return nil, apperrors.NewForbiddenError("admin role required")
	}
	ctx, span := s.obs.StartSpan(ctx, "payment.verify", attribute.String("payment.id", paymentID))
	defer span.End()
	start := time.Now()

	var (
		result     *PaymentResult
		collision  error
		collidedOn *models.Payment
	)
	err := s.store.RunInTx(ctx, func(tx store.Tx) error {
		now := s.now().UTC()
		p, err := tx.Payments().GetForUpdate(ctx, paymentID)
		if err != nil {
			return err
		}
		app, err := tx.Applications().GetForUpdate(ctx, p.ApplicationID)
		if err != nil {
			return err
		}

		switch p.Status {
		case models.PaymentRecordPending:
			p, err = tx.Payments().Transition(ctx, p.ID, models.PaymentRecordVerified, models.PaymentDecision{
				ActorID: admin.UserID, Notes: in.Notes, At: now,
			})
			if err != nil {
				return err
			}
		case models.PaymentRecordVerified:
			if app.Status != models.ApplicationPaymentSubmitted || !linked(app, p) {
				result = &PaymentResult{Payment: p, Application: app}
				return nil
			}
		default:
			return apperrors.NewPaymentAlreadyProcessedError(p.ID, string(p.Status))
		}

		from := app.Status
		if err := applications.ValidateTransition(applications.TriggerPaymentVerified, from, models.ApplicationPaymentVerified); err != nil {
			return err
		}
		app.Status = models.ApplicationPaymentVerified
		app.Payment.Status = models.PaymentVerified
		app.Payment.PaymentID = strRef(p.ID)
		app.Payment.MpesaReceiptNumber = strRef(p.TransactionCode)
		app.Payment.VerifiedAt = timeRef(now)
		if p.VerifiedAt != nil {
			app.Payment.VerifiedAt = timeRef(*p.VerifiedAt)
		}
		app.RejectionReason = nil
		app.UpdatedAt = now
		if err := tx.Applications().SaveState(ctx, app); err != nil {
			if apperrors.HasCode(err, apperrors.ErrCodeDuplicatePaymentCode) {
				collision, collidedOn = err, p
			}
			return err
		}
		if err := appendTimeline(ctx, tx, app, admin.UserID, "Payment verified", now); err != nil {
			return err
		}
		if err := enqueue(ctx, tx, models.EventPaymentVerified, app, p, now, nil); err != nil {
			return err
		}
		metrics.ApplicationTransitions.WithLabelValues(string(from), string(app.Status)).Inc()
		result = &PaymentResult{Payment: p, Application: app}
		return nil
	})

	if collision != nil {
		if ferr := s.forceDuplicate(ctx, admin, collidedOn.ID); ferr != nil {
			s.logger.Error("Failed to reject application after receipt collision", map[string]interface{}{
				"paymentId": paymentID,
				"error":     ferr,
			})
		}
		s.recordDecision(ctx, "payment.verify", outcome(collision), start)
		return nil, collision
	}
	if err != nil {
		s.recordDecision(ctx, "payment.verify", outcome(err), start)
		return nil, err
	}

	metrics.PaymentDecisions.WithLabelValues(string(models.PaymentRecordVerified)).Inc()
	s.recordDecision(ctx, "payment.verify", "ok", start)
	s.logger.Info("Payment verified", map[string]interface{}{
		"paymentId":     paymentID,
		"applicationId": result.Application.ID,
		"adminId":       admin.UserID,
	})
	return result, nil
}

// forceDuplicate runs after a verify was rolled back because the receipt
// is already attached elsewhere. The attempt is marked duplicate and the
// application rejected.
func (s *PaymentService) forceDuplicate(ctx context.Context, admin models.Principal, paymentID string) error {
	return s.store.RunInTx(ctx, func(tx store.Tx) error {
		now := s.now().UTC()
		p, err := tx.Payments().GetForUpdate(ctx, paymentID)
		if err != nil {
			return err
		}
		if p.Status != models.PaymentRecordPending {
			return nil
		}
		app, err := tx.Applications().GetForUpdate(ctx, p.ApplicationID)
		if err != nil {
			return err
		}
		holder, _, err := tx.Applications().ReceiptHolder(ctx, p.TransactionCode)
		if err != nil {
			return err
		}
		reason := fmt.Sprintf("M-Pesa receipt %s is already attached to application %s", p.TransactionCode, holder)

		p, err = tx.Payments().Transition(ctx, p.ID, models.PaymentRecordDuplicate, models.PaymentDecision{
			ActorID: admin.UserID, Reason: reason, At: now,
		})
		if err != nil {
			return err
		}
		from := app.Status
		if err := applications.ValidateTransition(applications.TriggerFraudDetected, from, models.ApplicationRejected); err != nil {
			return err
		}
		app.Status = models.ApplicationRejected
		app.Payment.Status = models.PaymentFailed
		app.RejectionReason = strRef(reason)
		app.UpdatedAt = now
		if err := tx.Applications().SaveState(ctx, app); err != nil {
			return err
		}
		if err := appendTimeline(ctx, tx, app, systemActor, reason, now); err != nil {
			return err
		}
		metrics.PaymentDecisions.WithLabelValues(string(models.PaymentRecordDuplicate)).Inc()
		metrics.ApplicationTransitions.WithLabelValues(string(from), string(app.Status)).Inc()
		return enqueue(ctx, tx, models.EventPaymentDuplicate, app, p, now, func(np *models.NotificationPayload) {
			np.Reason = reason
			np.AlertAdmins = true
		})
	})
}

// Reject marks a pending payment rejected with a mandatory reason and
// rejects the application. The applicant may then submit a new attempt.
func (s *PaymentService) Reject(ctx context.Context, admin models.Principal, paymentID string, in DecisionInput) (*PaymentResult, error) {
	if !admin.IsAdmin() {
		return nil, apperrors.NewForbiddenError("admin role required")
	}
	in.Reason = strings.TrimSpace(in.Reason)
	if in.Reason == "" {
		return nil, apperrors.NewValidationFailedError("rejection reason is required", map[string]string{"reason": "required"})
	}
	ctx, span := s.obs.StartSpan(ctx, "payment.reject", attribute.String("payment.id", paymentID))
	defer span.End()
	start := time.Now()

	var result *PaymentResult
	err := s.store.RunInTx(ctx, func(tx store.Tx) error {
		now := s.now().UTC()
		p, app, err := s.loadPending(ctx, tx, paymentID)
		if err != nil {
			return err
		}
		from := app.Status
		if err := applications.ValidateTransition(applications.TriggerPaymentRejected, from, models.ApplicationRejected); err != nil {
			return err
		}
		p, err = tx.Payments().Transition(ctx, p.ID, models.PaymentRecordRejected, models.PaymentDecision{
			ActorID: admin.UserID, Reason: in.Reason, At: now,
		})
		if err != nil {
			return err
		}

		app.Status = models.ApplicationRejected
		app.Payment.Status = models.PaymentRejected
		app.RejectionReason = strRef(in.Reason)
		app.UpdatedAt = now
		if err := tx.Applications().SaveState(ctx, app); err != nil {
			return err
		}
		if err := appendTimeline(ctx, tx, app, admin.UserID, "Payment rejected: "+in.Reason, now); err != nil {
			return err
		}
		if err := enqueue(ctx, tx, models.EventPaymentRejected, app, p, now, func(np *models.NotificationPayload) {
			np.Reason = in.Reason
		}); err != nil {
			return err
		}
		metrics.ApplicationTransitions.WithLabelValues(string(from), string(app.Status)).Inc()
		result = &PaymentResult{Payment: p, Application: app}
		return nil
	})
	if err != nil {
		s.recordDecision(ctx, "payment.reject", outcome(err), start)
		return nil, err
	}

	metrics.PaymentDecisions.WithLabelValues(string(models.PaymentRecordRejected)).Inc()
	s.recordDecision(ctx, "payment.reject", "ok", start)
	s.logger.Info("Payment rejected", map[string]interface{}{
		"paymentId": paymentID,
		"adminId":   admin.UserID,
		"reason":    in.Reason,
	})
	return result, nil
}

// FlagDuplicate marks a pending payment as a duplicate. The application's
// payment summary becomes failed and its status is left alone, so the
// applicant can submit a different code.
func (s *PaymentService) FlagDuplicate(ctx context.Context, admin models.Principal, paymentID string, in DecisionInput) (*PaymentResult, error) {
	if !admin.IsAdmin() {
		return nil, apperrors.NewForbiddenError("admin role required")
	}
	ctx, span := s.obs.StartSpan(ctx, "payment.flag_duplicate", attribute.String("payment.id", paymentID))
	defer span.End()
	start := time.Now()

	reason := strings.TrimSpace(in.Reason)
	if reason == "" {
		reason = "Flagged as duplicate by reviewer"
	}

	var result *PaymentResult
	err := s.store.RunInTx(ctx, func(tx store.Tx) error {
		now := s.now().UTC()
		p, app, err := s.loadPending(ctx, tx, paymentID)
		if err != nil {
			return err
		}
		p, err = tx.Payments().Transition(ctx, p.ID, models.PaymentRecordDuplicate, models.PaymentDecision{
			ActorID: admin.UserID, Reason: reason, At: now,
		})
		if err != nil {
			return err
		}
		if linked(app, p) {
			app.Payment.Status = models.PaymentFailed
			app.UpdatedAt = now
			if err := tx.Applications().SaveState(ctx, app); err != nil {
				return err
			}
		}
		if err := appendTimeline(ctx, tx, app, admin.UserID, "Payment flagged as duplicate: "+reason, now); err != nil {
			return err
		}
		if err := enqueue(ctx, tx, models.EventPaymentDuplicate, app, p, now, func(np *models.NotificationPayload) {
			np.Reason = reason
		}); err != nil {
			return err
		}
		result = &PaymentResult{Payment: p, Application: app}
		return nil
	})
	if err != nil {
		s.recordDecision(ctx, "payment.flag_duplicate", outcome(err), start)
		return nil, err
	}

	metrics.PaymentDecisions.WithLabelValues(string(models.PaymentRecordDuplicate)).Inc()
	s.recordDecision(ctx, "payment.flag_duplicate", "ok", start)
	return result, nil
}

func (s *PaymentService) loadPending(ctx context.Context, tx store.Tx, paymentID string) (*models.Payment, *models.Application, error) {
	p, err := tx.Payments().GetForUpdate(ctx, paymentID)
	if err != nil {
		return nil, nil, err
	}
	if p.Status != models.PaymentRecordPending {
		return nil, nil, apperrors.NewPaymentAlreadyProcessedError(p.ID, string(p.Status))
	}
	app, err := tx.Applications().GetForUpdate(ctx, p.ApplicationID)
	if err != nil {
		return nil, nil, err
	}
	return p, app, nil
}

// Status returns the payment snapshot of an application. Callers other
// than the owner or an admin get NotFound.
func (s *PaymentService) Status(ctx context.Context, caller models.Principal, applicationID string) (*models.PaymentStatusView, error) {
	app, err := s.store.Applications().Get(ctx, applicationID)
	if err != nil {
		return nil, err
	}
	if app.ApplicantID != caller.UserID && !caller.IsAdmin() {
		return nil, apperrors.NewNotFoundError("application", applicationID)
	}
	attempts, err := s.store.Payments().FindByApplication(ctx, applicationID)
	if err != nil {
		return nil, err
	}
	if attempts == nil {
		attempts = []models.Payment{}
	}
	return &models.PaymentStatusView{
		ApplicationID:     app.ID,
		ApplicationStatus: app.Status,
		Payment:           app.Payment,
		Attempts:          attempts,
	}, nil
}

// Queue lists payments in status for the admin review queue.
func (s *PaymentService) Queue(ctx context.Context, status models.PaymentRecordStatus, page, limit int) (*models.PaymentPage, error) {
	switch status {
	case "":
		status = models.PaymentRecordPending
	case models.PaymentRecordPending, models.PaymentRecordVerified, models.PaymentRecordRejected, models.PaymentRecordDuplicate:
	default:
		return nil, apperrors.NewValidationFailedError("unknown payment status", map[string]string{"status": string(status)})
	}
	return s.store.Payments().ListByStatus(ctx, status, page, limit)
}

// Stats aggregates the ledger by status.
func (s *PaymentService) Stats(ctx context.Context) ([]models.PaymentStats, error) {
	return s.store.Payments().Stats(ctx)
}

func (s *PaymentService) recordSubmit(ctx context.Context, result string, start time.Time) {
	metrics.PaymentSubmissions.WithLabelValues(result).Inc()
	s.obs.RecordOperation(ctx, "payment.submit", result, time.Since(start))
}

func (s *PaymentService) recordDecision(ctx context.Context, op, result string, start time.Time) {
	s.obs.RecordOperation(ctx, op, result, time.Since(start))
}

// linked reports whether p is the attempt currently summarized on app.
func linked(app *models.Application, p *models.Payment) bool {
	return app.Payment.PaymentID != nil && *app.Payment.PaymentID == p.ID
}

func outcome(err error) string {
	if se, ok := apperrors.As(err); ok {
		return string(se.Code)
	}
	return string(apperrors.ErrCodeInternal)
}
