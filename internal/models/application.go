// internal/models/application.go
package models

import "time"

type ApplicationStatus string

const (
	ApplicationDraft            ApplicationStatus = "draft"
	ApplicationPending          ApplicationStatus = "pending"
	ApplicationSubmitted        ApplicationStatus = "submitted"
	ApplicationPaymentSubmitted ApplicationStatus = "payment-submitted"
	ApplicationPaymentVerified  ApplicationStatus = "payment-verified"
	ApplicationUnderReview      ApplicationStatus = "under-review"
	ApplicationShortlisted      ApplicationStatus = "shortlisted"
	ApplicationAccepted         ApplicationStatus = "accepted"
	ApplicationRejected         ApplicationStatus = "rejected"
)

// Editable reports whether the applicant may still change the form.
func (s ApplicationStatus) Editable() bool {
	return s == ApplicationDraft || s == ApplicationPending
}

// ApplicationPaymentStatus is the payment summary kept on the application.
type ApplicationPaymentStatus string

const (
	PaymentUnpaid   ApplicationPaymentStatus = "unpaid"
	PaymentPending  ApplicationPaymentStatus = "pending"
	PaymentVerified ApplicationPaymentStatus = "verified"
	PaymentRejected ApplicationPaymentStatus = "rejected"
	PaymentFailed   ApplicationPaymentStatus = "failed"
)

type Document struct {
	URL       string `json:"url"`
	PublicID  string `json:"publicId"`
	MimeType  string `json:"mimeType"`
	SizeBytes int64  `json:"sizeBytes"`
}

type Documents struct {
	Resume               *Document `json:"resume,omitempty"`
	RecommendationLetter *Document `json:"recommendationLetter,omitempty"`
}

type PaymentInfo struct {
	Status             ApplicationPaymentStatus `json:"status"`
	PaymentID          *string                  `json:"paymentId,omitempty"`
	MpesaReceiptNumber *string                  `json:"mpesaReceiptNumber,omitempty"`
	Amount             *int64                   `json:"amount,omitempty"`
	Phone              *string                  `json:"phone,omitempty"`
	SubmittedAt        *time.Time               `json:"submittedAt,omitempty"`
	VerifiedAt         *time.Time               `json:"verifiedAt,omitempty"`
}

type TimelineEntry struct {
	ID            int64             `json:"id"`
	ApplicationID string            `json:"applicationId"`
	Status        ApplicationStatus `json:"status"`
	ActorID       string            `json:"actorId,omitempty"`
	Note          string            `json:"note,omitempty"`
	At            time.Time         `json:"at"`
}

type Application struct {
	ID              string            `json:"id"`
	ApplicantID     string            `json:"applicantId"`
	OpportunityID   string            `json:"opportunityId"`
	FullName        string            `json:"fullName"`
	Email           string            `json:"email"`
	Phone           string            `json:"phone"`
	Institution     string            `json:"institution"`
	Course          string            `json:"course"`
	YearOfStudy     string            `json:"yearOfStudy"`
	CoverLetter     string            `json:"coverLetter,omitempty"`
	Documents       Documents         `json:"documents"`
	Status          ApplicationStatus `json:"status"`
	Payment         PaymentInfo       `json:"payment"`
	RejectionReason *string           `json:"rejectionReason,omitempty"`
	ReviewedBy      *string           `json:"reviewedBy,omitempty"`
	ReviewedAt      *time.Time        `json:"reviewedAt,omitempty"`
	SubmittedAt     *time.Time        `json:"submittedAt,omitempty"`
	CreatedAt       time.Time         `json:"createdAt"`
	UpdatedAt       time.Time         `json:"updatedAt"`
	Timeline        []TimelineEntry   `json:"timeline,omitempty"`
}

// ApplicationForm is the applicant-editable part of an application.
type ApplicationForm struct {
	FullName    string    `json:"fullName"`
	Email       string    `json:"email"`
	Phone       string    `json:"phone"`
	Institution string    `json:"institution"`
	Course      string    `json:"course"`
	YearOfStudy string    `json:"yearOfStudy"`
	CoverLetter string    `json:"coverLetter,omitempty"`
	Documents   Documents `json:"documents"`
}
