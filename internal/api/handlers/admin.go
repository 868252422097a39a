// internal/api/handlers/admin.go
package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"internship-portal/internal/api/response"
	apperrors "internship-portal/internal/common/errors"
	"internship-portal/internal/dashboard"
	"internship-portal/internal/models"
	"internship-portal/internal/search"
)

type StatsProvider interface {
	Summary(ctx context.Context) (*dashboard.Summary, error)
}

type PaymentSearcher interface {
	Search(ctx context.Context, q search.PaymentQuery) (*search.PaymentSearchResult, error)
}

type AdminHandler struct {
	stats    StatsProvider
	searcher PaymentSearcher
}

// NewAdminHandler builds the dashboard handlers. searcher may be nil when
// Elasticsearch is disabled.
func NewAdminHandler(stats StatsProvider, searcher PaymentSearcher) *AdminHandler {
	return &AdminHandler{stats: stats, searcher: searcher}
}

// Stats handles GET /api/admin/payments/stats.
func (h *AdminHandler) Stats(w http.ResponseWriter, r *http.Request) {
	summary, err := h.stats.Summary(r.Context())
	if err != nil {
		response.Error(w, err)
		return
	}
	response.JSON(w, http.StatusOK, summary)
}

// Search handles GET /api/admin/payments/search?q=&status=&from=&size=.
func (h *AdminHandler) Search(w http.ResponseWriter, r *http.Request) {
	if h.searcher == nil {
		response.Error(w, apperrors.NewExternalServiceError("elasticsearch", errors.New("payment search is disabled")))
		return
	}
	q := r.URL.Query()
	status := models.PaymentRecordStatus(strings.TrimSpace(q.Get("status")))
	switch status {
	case "", models.PaymentRecordPending, models.PaymentRecordVerified, models.PaymentRecordRejected, models.PaymentRecordDuplicate:
	default:
		response.Error(w, apperrors.NewValidationFailedError("unknown payment status", map[string]string{"status": string(status)}))
		return
	}
	result, err := h.searcher.Search(r.Context(), search.PaymentQuery{
		Text:   strings.TrimSpace(q.Get("q")),
		Status: status,
		From:   queryInt(r, "from", 0),
		Size:   queryInt(r, "size", 20),
	})
	if err != nil {
		response.Error(w, err)
		return
	}
	response.JSON(w, http.StatusOK, result)
}
