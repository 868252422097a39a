// internal/workflow/workflow_test.go
package workflow

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"internship-portal/internal/common/logger"
	"internship-portal/internal/documents"
	"internship-portal/internal/models"
	"internship-portal/internal/store/memstore"

	"github.com/stretchr/testify/require"
)

var (
	student = models.Principal{UserID: "student-1", Roles: []models.Role{models.RoleStudent}}
	other   = models.Principal{UserID: "student-2", Roles: []models.Role{models.RoleStudent}}
	admin   = models.Principal{UserID: "admin-1", Roles: []models.Role{models.RoleAdmin}}
	company = models.Principal{UserID: "company-1", Roles: []models.Role{models.RoleCompany}}
)

type fixture struct {
	st       *memstore.Store
	payments *PaymentService
	apps     *ApplicationService
	opps     *OpportunityService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	st := memstore.New()
	log := logger.NewTestLogger(t)
	f := &fixture{
		st:       st,
		payments: NewPaymentService(st, PaymentConfig{Fee: 500, Tolerance: 10, RecencyWindow: time.Hour}, nil, log),
		apps:     NewApplicationService(st, documents.NewValidator(2<<20, nil), log),
		opps:     NewOpportunityService(st, log),
	}
	st.PutOpportunity(models.Opportunity{
		ID:             "opp-1",
		OwnerID:        company.UserID,
		Title:          "Backend Engineering Intern",
		Organization:   "Acme",
		Deadline:       time.Now().Add(72 * time.Hour),
		Slots:          2,
		SlotsAvailable: 2,
		Status:         models.OpportunityOpen,
		CreatedAt:      time.Now(),
	})
	return f
}

// seedApplication stores an application for owner in status.
func (f *fixture) seedApplication(id string, owner models.Principal, status models.ApplicationStatus) {
	f.st.PutApplication(models.Application{
		ID:            id,
		ApplicantID:   owner.UserID,
		OpportunityID: "opp-1",
		FullName:      "Wanjiru Kamau",
		Email:         "wanjiru@example.com",
		Phone:         "254712345678",
		Institution:   "University of Nairobi",
		Course:        "Computer Science",
		YearOfStudy:   "3",
		Status:        status,
		Payment:       models.PaymentInfo{Status: models.PaymentUnpaid},
		CreatedAt:     time.Now(),
	})
}

func (f *fixture) application(t *testing.T, id string) *models.Application {
	t.Helper()
	app, err := f.st.Applications().Get(context.Background(), id)
	require.NoError(t, err)
	return app
}

func (f *fixture) timeline(t *testing.T, id string) []models.TimelineEntry {
	t.Helper()
	entries, err := f.st.Applications().Timeline(context.Background(), id)
	require.NoError(t, err)
	return entries
}

func (f *fixture) eventsOf(eventType models.EventType) []models.NotificationPayload {
	var out []models.NotificationPayload
	for _, e := range f.st.Events() {
		if e.EventType != eventType {
			continue
		}
		var p models.NotificationPayload
		if err := json.Unmarshal(e.Payload, &p); err == nil {
			out = append(out, p)
		}
	}
	return out
}

func validForm() models.ApplicationForm {
	return models.ApplicationForm{
		FullName:    "Wanjiru Kamau",
		Email:       "wanjiru@example.com",
		Phone:       "0712 345 678",
		Institution: "University of Nairobi",
		Course:      "Computer Science",
		YearOfStudy: "3",
		Documents: models.Documents{Resume: &models.Document{
			URL:       "https://files.example.com/resume.pdf",
			PublicID:  "resumes/wanjiru",
			MimeType:  documents.MimePDF,
			SizeBytes: 250_000,
		}},
	}
}
