// internal/workflow/applications.go
package workflow

import (
	"context"
	"strings"
	"time"

	"internship-portal/internal/applications"
	apperrors "internship-portal/internal/common/errors"
	"internship-portal/internal/common/logger"
	"internship-portal/internal/common/metrics"
	"internship-portal/internal/documents"
	"internship-portal/internal/models"
	"internship-portal/internal/payments"
	"internship-portal/internal/store"

	"github.com/google/uuid"
)

// ApplicationService owns the applicant-driven part of the lifecycle and
// the admin review edges after payment verification.
type ApplicationService struct {
	store     store.Store
	documents *documents.Validator
	logger    logger.Logger
	now       func() time.Time
}

func NewApplicationService(st store.Store, docs *documents.Validator, log logger.Logger) *ApplicationService {
	return &ApplicationService{
		store:     st,
		documents: docs,
		logger:    log.WithFields(map[string]interface{}{"component": "application-service"}),
		now:       time.Now,
	}
}

// Create files a draft for the caller. The opportunity row is share-locked
// so a concurrent close either waits for this commit or is seen here.
func (s *ApplicationService) Create(ctx context.Context, caller models.Principal, opportunityID string, form models.ApplicationForm) (*models.Application, error) {
	if !caller.HasRole(models.RoleStudent) {
		return nil, apperrors.NewForbiddenError("student role required")
	}
	if err := s.validateForm(form, false); err != nil {
		return nil, err
	}

	var app *models.Application
	err := s.store.RunInTx(ctx, func(tx store.Tx) error {
		now := s.now().UTC()
		opp, err := tx.Opportunities().GetForShare(ctx, opportunityID)
		if err != nil {
			return err
		}
		if !opp.AcceptsApplications(now) {
			return apperrors.NewOpportunityClosedError(opp.ID)
		}
		exists, err := tx.Applications().ExistsForPair(ctx, caller.UserID, opp.ID)
		if err != nil {
			return err
		}
		if exists {
			return apperrors.NewDuplicateApplicationError(caller.UserID, opp.ID)
		}

		app = &models.Application{
			ID:            uuid.NewString(),
			ApplicantID:   caller.UserID,
			OpportunityID: opp.ID,
			Status:        models.ApplicationDraft,
			Payment:       models.PaymentInfo{Status: models.PaymentUnpaid},
			CreatedAt:     now,
		}
		applyForm(app, form)
		if err := tx.Applications().Create(ctx, app); err != nil {
			return err
		}
		if err := appendTimeline(ctx, tx, app, caller.UserID, "Application created", now); err != nil {
			return err
		}
		return enqueue(ctx, tx, models.EventApplicationCreated, app, nil, now, func(np *models.NotificationPayload) {
			np.OpportunityTitle = opp.Title
		})
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Application created", map[string]interface{}{
		"applicationId": app.ID,
		"opportunityId": opportunityID,
		"applicantId":   caller.UserID,
	})
	return app, nil
}

type UpdateInput struct {
	Form models.ApplicationForm `json:"form"`
	// Advance moves draft to pending, or pending to submitted.
	Advance bool `json:"advance"`
}

// Update edits the form while the application is draft or pending.
func (s *ApplicationService) Update(ctx context.Context, caller models.Principal, id string, in UpdateInput) (*models.Application, error) {
	if err := s.validateForm(in.Form, in.Advance); err != nil {
		return nil, err
	}

	var app *models.Application
	err := s.store.RunInTx(ctx, func(tx store.Tx) error {
		now := s.now().UTC()
		var err error
		app, err = tx.Applications().GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if app.ApplicantID != caller.UserID {
			return apperrors.NewNotFoundError("application", id)
		}
		if !app.Status.Editable() {
			return apperrors.NewApplicationLockedError(string(app.Status))
		}

		from, to := app.Status, app.Status
		if in.Advance {
			to = models.ApplicationPending
			if from == models.ApplicationPending {
				to = models.ApplicationSubmitted
			}
		}
		if err := applications.ValidateTransition(applications.TriggerApplicant, from, to); err != nil {
			return err
		}

		applyForm(app, in.Form)
		app.Status = to
		app.UpdatedAt = now
		if to == models.ApplicationSubmitted && app.SubmittedAt == nil {
			app.SubmittedAt = timeRef(now)
		}
		if err := tx.Applications().UpdateForm(ctx, app); err != nil {
			return err
		}
		if from == to {
			return nil
		}
		if err := appendTimeline(ctx, tx, app, caller.UserID, "Application "+string(to), now); err != nil {
			return err
		}
		metrics.ApplicationTransitions.WithLabelValues(string(from), string(to)).Inc()
		return enqueue(ctx, tx, models.EventApplicationStatus, app, nil, now, nil)
	})
	if err != nil {
		return nil, err
	}
	return app, nil
}

// Get returns the application with its timeline. Only the owner and admins
// can see it.
func (s *ApplicationService) Get(ctx context.Context, caller models.Principal, id string) (*models.Application, error) {
	app, err := s.store.Applications().Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if app.ApplicantID != caller.UserID && !caller.IsAdmin() {
		return nil, apperrors.NewNotFoundError("application", id)
	}
	app.Timeline, err = s.store.Applications().Timeline(ctx, id)
	if err != nil {
		return nil, err
	}
	return app, nil
}

func (s *ApplicationService) List(ctx context.Context, caller models.Principal) ([]models.Application, error) {
	apps, err := s.store.Applications().ListByApplicant(ctx, caller.UserID)
	if err != nil {
		return nil, err
	}
	if apps == nil {
		apps = []models.Application{}
	}
	return apps, nil
}

func (s *ApplicationService) Timeline(ctx context.Context, caller models.Principal, id string) ([]models.TimelineEntry, error) {
	app, err := s.Get(ctx, caller, id)
	if err != nil {
		return nil, err
	}
	if app.Timeline == nil {
		return []models.TimelineEntry{}, nil
	}
	return app.Timeline, nil
}

type ReviewInput struct {
	Status models.ApplicationStatus `json:"status"`
	Note   string                   `json:"note,omitempty"`
}

// Review applies an admin decision after payment verification. Accepting
// takes one slot of the opportunity; rejecting needs a note.
func (s *ApplicationService) Review(ctx context.Context, admin models.Principal, id string, in ReviewInput) (*models.Application, error) {
	if !admin.IsAdmin() {
		return nil, apperrors.NewForbiddenError("admin role required")
	}
	if in.Status == models.ApplicationRejected && strings.TrimSpace(in.Note) == "" {
		return nil, apperrors.NewValidationFailedError("rejection reason is required", map[string]string{"note": "required"})
	}

	var app *models.Application
	err := s.store.RunInTx(ctx, func(tx store.Tx) error {
		now := s.now().UTC()
		var err error
		app, err = tx.Applications().GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		from := app.Status
		if err := applications.ValidateTransition(applications.TriggerReview, from, in.Status); err != nil {
			return err
		}
		if in.Status == models.ApplicationAccepted {
			if err := tx.Opportunities().ConsumeSlot(ctx, app.OpportunityID, now); err != nil {
				return err
			}
		}

		app.Status = in.Status
		app.ReviewedBy = strRef(admin.UserID)
		app.ReviewedAt = timeRef(now)
		app.UpdatedAt = now
		if in.Status == models.ApplicationRejected {
			app.RejectionReason = strRef(in.Note)
		}
		if err := tx.Applications().SaveState(ctx, app); err != nil {
			return err
		}
		if err := appendTimeline(ctx, tx, app, admin.UserID, in.Note, now); err != nil {
			return err
		}
		metrics.ApplicationTransitions.WithLabelValues(string(from), string(in.Status)).Inc()
		return enqueue(ctx, tx, models.EventApplicationStatus, app, nil, now, func(np *models.NotificationPayload) {
			np.Reason = in.Note
		})
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Application reviewed", map[string]interface{}{
		"applicationId": id,
		"status":        in.Status,
		"adminId":       admin.UserID,
	})
	return app, nil
}

// validateForm checks required fields. Incomplete drafts are allowed until
// the applicant advances.
func (s *ApplicationService) validateForm(form models.ApplicationForm, complete bool) error {
	fields := map[string]string{}
	if complete {
		required := map[string]string{
			"fullName":    form.FullName,
			"email":       form.Email,
			"phone":       form.Phone,
			"institution": form.Institution,
			"course":      form.Course,
			"yearOfStudy": form.YearOfStudy,
		}
		for name, v := range required {
			if strings.TrimSpace(v) == "" {
				fields[name] = "required"
			}
		}
	}
	if form.Email != "" && !strings.Contains(form.Email, "@") {
		fields["email"] = "invalid email"
	}
	if form.Phone != "" && !payments.NormalizePhone(form.Phone).Valid {
		fields["phone"] = "invalid phone number"
	}
	if len(fields) > 0 {
		return apperrors.NewValidationFailedError("application form is incomplete", fields)
	}
	if s.documents != nil {
		return s.documents.ValidateAll(form.Documents, complete)
	}
	return nil
}

func applyForm(app *models.Application, f models.ApplicationForm) {
	app.FullName = strings.TrimSpace(f.FullName)
	app.Email = strings.TrimSpace(f.Email)
	app.Phone = f.Phone
	if r := payments.NormalizePhone(f.Phone); r.Valid {
		app.Phone = r.Normalized
	}
	app.Institution = strings.TrimSpace(f.Institution)
	app.Course = strings.TrimSpace(f.Course)
	app.YearOfStudy = strings.TrimSpace(f.YearOfStudy)
	app.CoverLetter = f.CoverLetter
	app.Documents = f.Documents
}
