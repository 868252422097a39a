// internal/workflow/opportunities.go
package workflow

import (
	"context"
	"strings"
	"time"

	apperrors "internship-portal/internal/common/errors"
	"internship-portal/internal/common/logger"
	"internship-portal/internal/models"
	"internship-portal/internal/store"

	"github.com/google/uuid"
)

type OpportunityService struct {
	store  store.Store
	logger logger.Logger
	now    func() time.Time
}

func NewOpportunityService(st store.Store, log logger.Logger) *OpportunityService {
	return &OpportunityService{
		store:  st,
		logger: log.WithFields(map[string]interface{}{"component": "opportunity-service"}),
		now:    time.Now,
	}
}

type OpportunityInput struct {
	Title        string    `json:"title"`
	Organization string    `json:"organization"`
	Description  string    `json:"description"`
	Location     string    `json:"location,omitempty"`
	Deadline     time.Time `json:"deadline"`
	Slots        int       `json:"slots"`
}

// Create posts an opening owned by a company or admin.
func (s *OpportunityService) Create(ctx context.Context, caller models.Principal, in OpportunityInput) (*models.Opportunity, error) {
	if !caller.HasRole(models.RoleCompany) && !caller.IsAdmin() {
		return nil, apperrors.NewForbiddenError("company or admin role required")
	}

	now := s.now().UTC()
	fields := map[string]string{}
	if strings.TrimSpace(in.Title) == "" {
		fields["title"] = "required"
	}
	if strings.TrimSpace(in.Organization) == "" {
		fields["organization"] = "required"
	}
	if !in.Deadline.After(now) {
		fields["deadline"] = "must be in the future"
	}
	if in.Slots < 1 {
		fields["slots"] = "must be at least 1"
	}
	if len(fields) > 0 {
		return nil, apperrors.NewValidationFailedError("invalid opportunity", fields)
	}

	o := &models.Opportunity{
		ID:             uuid.NewString(),
		OwnerID:        caller.UserID,
		Title:          strings.TrimSpace(in.Title),
		Organization:   strings.TrimSpace(in.Organization),
		Description:    in.Description,
		Location:       in.Location,
		Deadline:       in.Deadline.UTC(),
		Slots:          in.Slots,
		SlotsAvailable: in.Slots,
		Status:         models.OpportunityOpen,
		CreatedAt:      now,
	}
	if err := s.store.Opportunities().Create(ctx, o); err != nil {
		return nil, err
	}
	s.logger.Info("Opportunity created", map[string]interface{}{"opportunityId": o.ID, "ownerId": caller.UserID})
	return o, nil
}

func (s *OpportunityService) Get(ctx context.Context, id string) (*models.Opportunity, error) {
	return s.store.Opportunities().Get(ctx, id)
}

func (s *OpportunityService) List(ctx context.Context, openOnly bool) ([]models.Opportunity, error) {
	out, err := s.store.Opportunities().List(ctx, openOnly)
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []models.Opportunity{}
	}
	return out, nil
}
