// internal/api/handlers/opportunities.go
package handlers

import (
	"context"
	"net/http"

	"internship-portal/internal/api/response"
	"internship-portal/internal/common/validation"
	"internship-portal/internal/models"
	"internship-portal/internal/workflow"
)

type OpportunityWorkflow interface {
	Create(ctx context.Context, caller models.Principal, in workflow.OpportunityInput) (*models.Opportunity, error)
	Get(ctx context.Context, id string) (*models.Opportunity, error)
	List(ctx context.Context, openOnly bool) ([]models.Opportunity, error)
}

type OpportunityHandler struct {
	opportunities OpportunityWorkflow
	validator     *validation.Validator
}

func NewOpportunityHandler(opportunities OpportunityWorkflow, v *validation.Validator) *OpportunityHandler {
	return &OpportunityHandler{opportunities: opportunities, validator: v}
}

func (h *OpportunityHandler) Create(w http.ResponseWriter, r *http.Request) {
	caller, err := principal(r)
	if err != nil {
		response.Error(w, err)
		return
	}
	var req workflow.OpportunityInput
	if err := decodeJSON(r, h.validator, validation.CreateOpportunity, &req); err != nil {
		response.Error(w, err)
		return
	}
	created, err := h.opportunities.Create(r.Context(), caller, req)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.JSON(w, http.StatusCreated, created)
}

// List returns open opportunities unless ?all=true.
func (h *OpportunityHandler) List(w http.ResponseWriter, r *http.Request) {
	openOnly := r.URL.Query().Get("all") != "true"
	items, err := h.opportunities.List(r.Context(), openOnly)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.JSON(w, http.StatusOK, items)
}

func (h *OpportunityHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := idFromPath(r, 2)
	if err != nil {
		response.Error(w, err)
		return
	}
	o, err := h.opportunities.Get(r.Context(), id)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.JSON(w, http.StatusOK, o)
}
