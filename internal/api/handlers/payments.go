// internal/api/handlers/payments.go
package handlers

import (
	"context"
	"net/http"

	"internship-portal/internal/api/response"
	"internship-portal/internal/common/validation"
	"internship-portal/internal/models"
	"internship-portal/internal/workflow"
)

type PaymentWorkflow interface {
	Submit(ctx context.Context, caller models.Principal, in workflow.SubmitPaymentInput) (*workflow.PaymentResult, error)
	Verify(ctx context.Context, admin models.Principal, paymentID string, in workflow.DecisionInput) (*workflow.PaymentResult, error)
	Reject(ctx context.Context, admin models.Principal, paymentID string, in workflow.DecisionInput) (*workflow.PaymentResult, error)
	FlagDuplicate(ctx context.Context, admin models.Principal, paymentID string, in workflow.DecisionInput) (*workflow.PaymentResult, error)
	Status(ctx context.Context, caller models.Principal, applicationID string) (*models.PaymentStatusView, error)
	Queue(ctx context.Context, status models.PaymentRecordStatus, page, limit int) (*models.PaymentPage, error)
}

type PaymentHandler struct {
	payments  PaymentWorkflow
	validator *validation.Validator
}

func NewPaymentHandler(payments PaymentWorkflow, v *validation.Validator) *PaymentHandler {
	return &PaymentHandler{payments: payments, validator: v}
}

// Submit handles POST /api/applications/{id}/payments.
func (h *PaymentHandler) Submit(w http.ResponseWriter, r *http.Request) {
	caller, err := principal(r)
	if err != nil {
		response.Error(w, err)
		return
	}
	applicationID, err := idFromPath(r, 2)
	if err != nil {
		response.Error(w, err)
		return
	}
	var req workflow.SubmitPaymentInput
	if err := decodeJSON(r, h.validator, validation.SubmitPayment, &req); err != nil {
		response.Error(w, err)
		return
	}
	req.ApplicationID = applicationID

	result, err := h.payments.Submit(r.Context(), caller, req)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.JSON(w, http.StatusCreated, result)
}

func (h *PaymentHandler) Verify(w http.ResponseWriter, r *http.Request) {
	h.decide(w, r, validation.VerifyPayment, h.payments.Verify)
}

func (h *PaymentHandler) Reject(w http.ResponseWriter, r *http.Request) {
	h.decide(w, r, validation.RejectPayment, h.payments.Reject)
}

func (h *PaymentHandler) FlagDuplicate(w http.ResponseWriter, r *http.Request) {
	h.decide(w, r, validation.FlagDuplicate, h.payments.FlagDuplicate)
}

type decisionFunc func(ctx context.Context, admin models.Principal, paymentID string, in workflow.DecisionInput) (*workflow.PaymentResult, error)

// decide serves POST /api/admin/payments/{id}/{verify,reject,flag-duplicate}.
func (h *PaymentHandler) decide(w http.ResponseWriter, r *http.Request, schema string, fn decisionFunc) {
	admin, err := principal(r)
	if err != nil {
		response.Error(w, err)
		return
	}
	paymentID, err := idFromPath(r, 3)
	if err != nil {
		response.Error(w, err)
		return
	}
	var req workflow.DecisionInput
	if err := decodeJSON(r, h.validator, schema, &req); err != nil {
		response.Error(w, err)
		return
	}
	result, err := fn(r.Context(), admin, paymentID, req)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.JSON(w, http.StatusOK, result)
}

// Status handles GET /api/applications/{id}/payment-status.
func (h *PaymentHandler) Status(w http.ResponseWriter, r *http.Request) {
	caller, err := principal(r)
	if err != nil {
		response.Error(w, err)
		return
	}
	applicationID, err := idFromPath(r, 2)
	if err != nil {
		response.Error(w, err)
		return
	}
	view, err := h.payments.Status(r.Context(), caller, applicationID)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.JSON(w, http.StatusOK, view)
}

// Queue handles GET /api/admin/payments.
func (h *PaymentHandler) Queue(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, err := h.payments.Queue(r.Context(), models.PaymentRecordStatus(q.Get("status")), queryInt(r, "page", 1), queryInt(r, "limit", 20))
	if err != nil {
		response.Error(w, err)
		return
	}
	response.JSON(w, http.StatusOK, page)
}
