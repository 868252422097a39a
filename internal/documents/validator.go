// internal/documents/validator.go
package documents

import (
	"fmt"
	"net/url"
	"strings"

	apperrors "internship-portal/internal/common/errors"
	"internship-portal/internal/models"
)

const (
	MimePDF  = "application/pdf"
	MimeDOCX = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
)

// Validator checks document references produced by the upload service.
// The bytes themselves never reach this process.
type Validator struct {
	maxBytes int64
	allowed  map[string]struct{}
}

func NewValidator(maxBytes int64, allowedTypes []string) *Validator {
	if maxBytes <= 0 {
		maxBytes = 2 << 20
	}
	if len(allowedTypes) == 0 {
		allowedTypes = []string{MimePDF, MimeDOCX}
	}
	allowed := make(map[string]struct{}, len(allowedTypes))
	for _, t := range allowedTypes {
		allowed[strings.ToLower(t)] = struct{}{}
	}
	return &Validator{maxBytes: maxBytes, allowed: allowed}
}

// Validate checks one reference. field names it in the error.
func (v *Validator) Validate(field string, d *models.Document) error {
	if d == nil {
		return apperrors.NewInvalidDocumentError(field, "document is required")
	}
	u, err := url.Parse(d.URL)
	if err != nil || u.Scheme != "https" || u.Host == "" {
		return apperrors.NewInvalidDocumentError(field, "url must be an absolute https URL")
	}
	if strings.TrimSpace(d.PublicID) == "" {
		return apperrors.NewInvalidDocumentError(field, "publicId is required")
	}
	if _, ok := v.allowed[strings.ToLower(d.MimeType)]; !ok {
		return apperrors.NewInvalidDocumentError(field, fmt.Sprintf("unsupported type %q", d.MimeType)).
			WithMetadata("mimeType", d.MimeType)
	}
	if d.SizeBytes <= 0 || d.SizeBytes > v.maxBytes {
		return apperrors.NewInvalidDocumentError(field, fmt.Sprintf("size must be between 1 and %d bytes", v.maxBytes)).
			WithMetadata("sizeBytes", d.SizeBytes)
	}
	return nil
}

// ValidateAll checks every present document. The resume is mandatory when
// requireResume is set.
func (v *Validator) ValidateAll(docs models.Documents, requireResume bool) error {
	if docs.Resume != nil || requireResume {
		if err := v.Validate("resume", docs.Resume); err != nil {
			return err
		}
	}
	if docs.RecommendationLetter != nil {
		if err := v.Validate("recommendationLetter", docs.RecommendationLetter); err != nil {
			return err
		}
	}
	return nil
}
