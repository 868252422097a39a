// internal/models/payment.go
package models

import "time"

type PaymentRecordStatus string

const (
	PaymentRecordPending   PaymentRecordStatus = "pending"
	PaymentRecordVerified  PaymentRecordStatus = "verified"
	PaymentRecordRejected  PaymentRecordStatus = "rejected"
	PaymentRecordDuplicate PaymentRecordStatus = "duplicate"
)

// Terminal reports whether the record can no longer change.
func (s PaymentRecordStatus) Terminal() bool {
	return s != PaymentRecordPending
}

type PaymentSource string

const (
	SourceManual   PaymentSource = "manual"
	SourceCallback PaymentSource = "callback"
)

// Payment is one submission attempt of an M-Pesa transaction code.
type Payment struct {
	ID                string              `json:"id"`
	ApplicationID     string              `json:"applicationId"`
	UserID            string              `json:"userId"`
	Amount            int64               `json:"amount"`
	TransactionCode   string              `json:"transactionCode"`
	PhoneNumber       string              `json:"phoneNumber"`
	Status            PaymentRecordStatus `json:"status"`
	Source            PaymentSource       `json:"source"`
	Warnings          []string            `json:"warnings,omitempty"`
	VerifiedBy        *string             `json:"verifiedBy,omitempty"`
	VerifiedAt        *time.Time          `json:"verifiedAt,omitempty"`
	VerificationNotes *string             `json:"verificationNotes,omitempty"`
	RejectionReason   *string             `json:"rejectionReason,omitempty"`
	RejectedBy        *string             `json:"rejectedBy,omitempty"`
	RejectedAt        *time.Time          `json:"rejectedAt,omitempty"`
	CreatedAt         time.Time           `json:"createdAt"`
	UpdatedAt         time.Time           `json:"updatedAt"`
}

// PaymentDecision carries the admin metadata for a terminal transition.
type PaymentDecision struct {
	ActorID string
	Notes   string
	Reason  string
	At      time.Time
}

type PaymentStats struct {
	Status      PaymentRecordStatus `json:"status"`
	Count       int64               `json:"count"`
	TotalAmount int64               `json:"totalAmount"`
}

type PaymentPage struct {
	Items []Payment `json:"items"`
	Total int64     `json:"total"`
	Page  int       `json:"page"`
	Limit int       `json:"limit"`
}

// PaymentStatusView is what an applicant or admin sees for an application.
type PaymentStatusView struct {
	ApplicationID     string            `json:"applicationId"`
	ApplicationStatus ApplicationStatus `json:"applicationStatus"`
	Payment           PaymentInfo       `json:"payment"`
	Attempts          []Payment         `json:"attempts"`
}
