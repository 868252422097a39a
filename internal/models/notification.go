// internal/models/notification.go
package models

import (
	"encoding/json"
	"time"
)

type EventType string

const (
	EventApplicationCreated EventType = "application.created"
	EventApplicationStatus  EventType = "application.status_changed"
	EventPaymentSubmitted   EventType = "payment.submitted"
	EventPaymentVerified    EventType = "payment.verified"
	EventPaymentRejected    EventType = "payment.rejected"
	EventPaymentDuplicate   EventType = "payment.duplicate"
	EventPaymentFraud       EventType = "payment.fraud_attempt"
)

// OutboxEvent is written in the same transaction as the state change it describes.
type OutboxEvent struct {
	ID            string          `json:"id"`
	AggregateType string          `json:"aggregateType"`
	AggregateID   string          `json:"aggregateId"`
	EventType     EventType       `json:"eventType"`
	Payload       json.RawMessage `json:"payload"`
	Attempts      int             `json:"attempts"`
	NextAttemptAt time.Time       `json:"nextAttemptAt"`
	LastError     *string         `json:"lastError,omitempty"`
	PublishedAt   *time.Time      `json:"publishedAt,omitempty"`
	CreatedAt     time.Time       `json:"createdAt"`
}

// NotificationPayload is the body of every notification-bearing event and
// the variable set handed to the send-notification job.
type NotificationPayload struct {
	EventType         EventType `json:"eventType"`
	ApplicationID     string    `json:"applicationId"`
	ApplicantID       string    `json:"applicantId"`
	RecipientName     string    `json:"recipientName,omitempty"`
	RecipientEmail    string    `json:"recipientEmail,omitempty"`
	RecipientPhone    string    `json:"recipientPhone,omitempty"`
	OpportunityTitle  string    `json:"opportunityTitle,omitempty"`
	ApplicationStatus string    `json:"applicationStatus,omitempty"`
	PaymentID         string    `json:"paymentId,omitempty"`
	TransactionCode   string    `json:"transactionCode,omitempty"`
	Amount            int64     `json:"amount,omitempty"`
	Reason            string    `json:"reason,omitempty"`
	Warnings          []string  `json:"warnings,omitempty"`
	AlertAdmins       bool      `json:"alertAdmins,omitempty"`
	OccurredAt        time.Time `json:"occurredAt"`
}

type NotificationStatus string

const (
	NotificationSent     NotificationStatus = "sent"
	NotificationFailed   NotificationStatus = "failed"
	NotificationDisabled NotificationStatus = "disabled"
	NotificationSkipped  NotificationStatus = "skipped"
)
