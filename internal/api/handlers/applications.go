// internal/api/handlers/applications.go
package handlers

import (
	"context"
	"net/http"

	"internship-portal/internal/api/response"
	"internship-portal/internal/common/validation"
	"internship-portal/internal/models"
	"internship-portal/internal/workflow"
)

type ApplicationWorkflow interface {
	Create(ctx context.Context, caller models.Principal, opportunityID string, form models.ApplicationForm) (*models.Application, error)
	Update(ctx context.Context, caller models.Principal, id string, in workflow.UpdateInput) (*models.Application, error)
	Get(ctx context.Context, caller models.Principal, id string) (*models.Application, error)
	List(ctx context.Context, caller models.Principal) ([]models.Application, error)
	Timeline(ctx context.Context, caller models.Principal, id string) ([]models.TimelineEntry, error)
	Review(ctx context.Context, admin models.Principal, id string, in workflow.ReviewInput) (*models.Application, error)
}

type ApplicationHandler struct {
	applications ApplicationWorkflow
	validator    *validation.Validator
}

func NewApplicationHandler(applications ApplicationWorkflow, v *validation.Validator) *ApplicationHandler {
	return &ApplicationHandler{applications: applications, validator: v}
}

type createApplicationRequest struct {
	OpportunityID string                 `json:"opportunityId"`
	Form          models.ApplicationForm `json:"form"`
}

func (h *ApplicationHandler) Create(w http.ResponseWriter, r *http.Request) {
	caller, err := principal(r)
	if err != nil {
		response.Error(w, err)
		return
	}
	var req createApplicationRequest
	if err := decodeJSON(r, h.validator, validation.ApplicationForm, &req); err != nil {
		response.Error(w, err)
		return
	}
	app, err := h.applications.Create(r.Context(), caller, req.OpportunityID, req.Form)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.JSON(w, http.StatusCreated, app)
}

func (h *ApplicationHandler) Update(w http.ResponseWriter, r *http.Request) {
	caller, err := principal(r)
	if err != nil {
		response.Error(w, err)
		return
	}
	id, err := idFromPath(r, 2)
	if err != nil {
		response.Error(w, err)
		return
	}
	var req workflow.UpdateInput
	if err := decodeJSON(r, h.validator, validation.ApplicationForm, &req); err != nil {
		response.Error(w, err)
		return
	}
	app, err := h.applications.Update(r.Context(), caller, id, req)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.JSON(w, http.StatusOK, app)
}

func (h *ApplicationHandler) Get(w http.ResponseWriter, r *http.Request) {
	caller, err := principal(r)
	if err != nil {
		response.Error(w, err)
		return
	}
	id, err := idFromPath(r, 2)
	if err != nil {
		response.Error(w, err)
		return
	}
	app, err := h.applications.Get(r.Context(), caller, id)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.JSON(w, http.StatusOK, app)
}

func (h *ApplicationHandler) List(w http.ResponseWriter, r *http.Request) {
	caller, err := principal(r)
	if err != nil {
		response.Error(w, err)
		return
	}
	items, err := h.applications.List(r.Context(), caller)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.JSON(w, http.StatusOK, items)
}

func (h *ApplicationHandler) Timeline(w http.ResponseWriter, r *http.Request) {
	caller, err := principal(r)
	if err != nil {
		response.Error(w, err)
		return
	}
	id, err := idFromPath(r, 2)
	if err != nil {
		response.Error(w, err)
		return
	}
	entries, err := h.applications.Timeline(r.Context(), caller, id)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.JSON(w, http.StatusOK, entries)
}

// Review handles POST /api/admin/applications/{id}/status.
func (h *ApplicationHandler) Review(w http.ResponseWriter, r *http.Request) {
	admin, err := principal(r)
	if err != nil {
		response.Error(w, err)
		return
	}
	id, err := idFromPath(r, 3)
	if err != nil {
		response.Error(w, err)
		return
	}
	var req workflow.ReviewInput
	if err := decodeJSON(r, h.validator, validation.ReviewApplication, &req); err != nil {
		response.Error(w, err)
		return
	}
	app, err := h.applications.Review(r.Context(), admin, id, req)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.JSON(w, http.StatusOK, app)
}
