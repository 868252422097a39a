// internal/applications/statemachine.go
package applications

import (
	apperrors "internship-portal/internal/common/errors"
	"internship-portal/internal/models"
)

// Trigger names who or what is moving an application.
type Trigger string

const (
	TriggerApplicant        Trigger = "applicant"
	TriggerPaymentSubmitted Trigger = "payment_submitted"
	TriggerPaymentVerified  Trigger = "payment_verified"
	TriggerPaymentRejected  Trigger = "payment_rejected"
	TriggerFraudDetected    Trigger = "fraud_detected"
	TriggerReview           Trigger = "review"
)

type status = models.ApplicationStatus

var (
	draft            = models.ApplicationDraft
	pending          = models.ApplicationPending
	submitted        = models.ApplicationSubmitted
	paymentSubmitted = models.ApplicationPaymentSubmitted
	paymentVerified  = models.ApplicationPaymentVerified
	underReview      = models.ApplicationUnderReview
	shortlisted      = models.ApplicationShortlisted
	accepted         = models.ApplicationAccepted
	rejected         = models.ApplicationRejected
)

var reviewTargets = []status{underReview, shortlisted, accepted, rejected}

// AllowedTransitions lists, per trigger, the valid target states of each
// current state. Accepted has no outgoing edge under any trigger.
var AllowedTransitions = map[Trigger]map[status][]status{
	TriggerApplicant: {
		draft:   {draft, pending},
		pending: {pending, submitted},
	},
	TriggerPaymentSubmitted: {
		pending:          {paymentSubmitted},
		submitted:        {paymentSubmitted},
		paymentSubmitted: {paymentSubmitted}, // resubmission after a failed attempt
		rejected:         {paymentSubmitted}, // resubmission after a rejected payment
	},
	TriggerPaymentVerified: {
		paymentSubmitted: {paymentVerified},
	},
	TriggerPaymentRejected: {
		paymentSubmitted: {rejected},
	},
	TriggerFraudDetected: {
		pending:          {rejected},
		submitted:        {rejected},
		paymentSubmitted: {rejected},
		rejected:         {rejected},
	},
	TriggerReview: {
		paymentVerified: reviewTargets,
		underReview:     {shortlisted, accepted, rejected},
		shortlisted:     {underReview, accepted, rejected},
	},
}

// CanTransition reports whether trigger may move an application from one state to another.
func CanTransition(trigger Trigger, from, to status) bool {
	for _, s := range AllowedTransitions[trigger][from] {
		if s == to {
			return true
		}
	}
	return false
}

// ValidateTransition returns InvalidTransition carrying the current state.
func ValidateTransition(trigger Trigger, from, to status) error {
	if !CanTransition(trigger, from, to) {
		return apperrors.NewInvalidTransitionError(string(from), string(to))
	}
	return nil
}

// CanResubmitPayment reports whether a new payment attempt may be linked.
// Leaving rejected or re-entering payment-submitted requires the previous
// attempt to have failed on the payment edge.
func CanResubmitPayment(app *models.Application) bool {
	switch app.Status {
	case pending, submitted:
		return app.Payment.Status != models.PaymentPending && app.Payment.Status != models.PaymentVerified
	case paymentSubmitted, rejected:
		return app.Payment.Status == models.PaymentRejected || app.Payment.Status == models.PaymentFailed
	}
	return false
}
