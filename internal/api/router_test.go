// internal/api/router_test.go
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"internship-portal/internal/api/handlers"
	httpmw "internship-portal/internal/api/middleware"
	apperrors "internship-portal/internal/common/errors"
	"internship-portal/internal/common/logger"
	"internship-portal/internal/common/validation"
	"internship-portal/internal/dashboard"
	"internship-portal/internal/documents"
	"internship-portal/internal/models"
	"internship-portal/internal/realtime"
	"internship-portal/internal/search"
	"internship-portal/internal/store/memstore"
	"internship-portal/internal/workflow"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var principals = map[string]models.Principal{
	"student-token": {UserID: "student-1", Roles: []models.Role{models.RoleStudent}},
	"other-token":   {UserID: "student-2", Roles: []models.Role{models.RoleStudent}},
	"admin-token":   {UserID: "admin-1", Roles: []models.Role{models.RoleAdmin}},
	"company-token": {UserID: "company-1", Roles: []models.Role{models.RoleCompany}},
}

type staticAuth struct{}

func (staticAuth) Authenticate(_ context.Context, token string) (models.Principal, error) {
	p, ok := principals[token]
	if !ok {
		return models.Principal{}, apperrors.NewUnauthorizedError("token is not active")
	}
	return p, nil
}

type denyAll struct{ calls int }

func (d *denyAll) Allow(context.Context, string, int, time.Duration) bool {
	d.calls++
	return false
}

type fakeSearcher struct{ last search.PaymentQuery }

func (f *fakeSearcher) Search(_ context.Context, q search.PaymentQuery) (*search.PaymentSearchResult, error) {
	f.last = q
	return &search.PaymentSearchResult{Total: 1, Hits: []search.PaymentDocument{{ID: "pay-1", TransactionCode: "QHG31YRWPF"}}}, nil
}

type testAPI struct {
	handler  http.Handler
	store    *memstore.Store
	searcher *fakeSearcher
}

func newTestAPI(t *testing.T, limiter httpmw.Limiter) *testAPI {
	t.Helper()
	log := logger.NewTestLogger(t)
	st := memstore.New()
	st.PutOpportunity(models.Opportunity{
		ID: "opp-1", OwnerID: "company-1", Title: "Backend Engineering Intern", Organization: "Acme",
		Deadline: time.Now().Add(72 * time.Hour), Slots: 2, SlotsAvailable: 2,
		Status: models.OpportunityOpen, CreatedAt: time.Now(),
	})

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	payments := workflow.NewPaymentService(st, workflow.PaymentConfig{Fee: 500, Tolerance: 10, RecencyWindow: time.Hour}, nil, log)
	v := validation.MustNewValidator()
	searcher := &fakeSearcher{}

	h := NewRouter(RouterDependencies{
		PaymentHandler:     handlers.NewPaymentHandler(payments, v),
		ApplicationHandler: handlers.NewApplicationHandler(workflow.NewApplicationService(st, documents.NewValidator(2<<20, nil), log), v),
		OpportunityHandler: handlers.NewOpportunityHandler(workflow.NewOpportunityService(st, log), v),
		AdminHandler:       handlers.NewAdminHandler(dashboard.NewService(payments, rdb, time.Minute, log), searcher),
		SystemHandler: handlers.NewSystemHandler("test", map[string]handlers.ReadinessCheck{
			"redis": func(ctx context.Context) error { return rdb.Ping(ctx).Err() },
		}),
		RealtimeHandler: handlers.NewRealtimeHandler(realtime.NewHub(log, nil)),
		AuthMiddleware:  httpmw.NewAuthMiddleware(staticAuth{}),
		Limiter:         limiter,
		SubmitLimit:     5,
		RequestTimeout:  5 * time.Second,
		Logger:          log,
	})
	return &testAPI{handler: h, store: st, searcher: searcher}
}

func (a *testAPI) do(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	a.handler.ServeHTTP(rec, req)
	return rec
}

func (a *testAPI) seedApplication(id, owner string, status models.ApplicationStatus) {
	a.store.PutApplication(models.Application{
		ID: id, ApplicantID: owner, OpportunityID: "opp-1",
		FullName: "Wanjiru Kamau", Email: "wanjiru@example.com", Phone: "254712345678",
		Institution: "University of Nairobi", Course: "Computer Science", YearOfStudy: "3",
		Status: status, Payment: models.PaymentInfo{Status: models.PaymentUnpaid}, CreatedAt: time.Now(),
	})
}

type errorEnvelope struct {
	Error struct {
		Code     string                 `json:"code"`
		Metadata map[string]interface{} `json:"metadata"`
	} `json:"error"`
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorEnvelope {
	t.Helper()
	var env errorEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	return env
}

func TestRouter_SystemRoutes(t *testing.T) {
	a := newTestAPI(t, nil)

	rec := a.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get(httpmw.RequestIDHeader))

	rec = a.do(t, http.MethodGet, "/ready", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"redis":"ok"`)

	rec = a.do(t, http.MethodGet, "/nope", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = a.do(t, http.MethodGet, "/api/opportunities", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Backend Engineering Intern")

	rec = a.do(t, http.MethodGet, "/api/opportunities/opp-1", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRouter_Authentication(t *testing.T) {
	a := newTestAPI(t, nil)

	tests := []struct {
		name   string
		method string
		path   string
		token  string
		status int
		code   apperrors.ErrorCode
	}{
		{"no token", http.MethodGet, "/api/applications", "", http.StatusUnauthorized, apperrors.ErrCodeUnauthorized},
		{"unknown token", http.MethodGet, "/api/applications", "bogus", http.StatusUnauthorized, apperrors.ErrCodeUnauthorized},
		{"student on admin route", http.MethodGet, "/api/admin/payments", "student-token", http.StatusForbidden, apperrors.ErrCodeForbidden},
		{"company cannot apply", http.MethodPost, "/api/applications", "company-token", http.StatusForbidden, apperrors.ErrCodeForbidden},
		{"admin cannot submit payment", http.MethodPost, "/api/applications/app-1/payments", "admin-token", http.StatusForbidden, apperrors.ErrCodeForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := a.do(t, tt.method, tt.path, tt.token, map[string]string{})
			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, string(tt.code), decodeError(t, rec).Error.Code)
		})
	}
}

func TestRouter_PaymentLifecycle(t *testing.T) {
	a := newTestAPI(t, nil)
	a.seedApplication("app-1", "student-1", models.ApplicationPending)

	rec := a.do(t, http.MethodPost, "/api/applications/app-1/payments", "student-token", map[string]interface{}{
		"transactionCode": "qhg31yrwpf", "phoneNumber": "0712 345 678", "amount": 500,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var submitted workflow.PaymentResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &submitted))
	assert.Equal(t, "QHG31YRWPF", submitted.Payment.TransactionCode)
	assert.Equal(t, models.ApplicationPaymentSubmitted, submitted.Application.Status)

	rec = a.do(t, http.MethodGet, "/api/admin/payments?status=pending", "admin-token", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var queue models.PaymentPage
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &queue))
	require.Len(t, queue.Items, 1)

	rec = a.do(t, http.MethodPost, "/api/admin/payments/"+submitted.Payment.ID+"/verify", "admin-token", map[string]string{"notes": "matches statement"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = a.do(t, http.MethodGet, "/api/applications/app-1/payment-status", "student-token", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var view models.PaymentStatusView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
	assert.Equal(t, models.ApplicationPaymentVerified, view.ApplicationStatus)
	assert.Equal(t, models.PaymentVerified, view.Payment.Status)

	rec = a.do(t, http.MethodGet, "/api/applications/app-1/payment-status", "other-token", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = a.do(t, http.MethodGet, "/api/admin/payments/stats", "admin-token", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"verifiedTotal":500`)

	rec = a.do(t, http.MethodPost, "/api/applications/app-1/payments", "student-token", map[string]interface{}{
		"transactionCode": "QHG31YRWPF", "phoneNumber": "0712345678", "amount": 500,
	})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestRouter_RejectRequiresReason(t *testing.T) {
	a := newTestAPI(t, nil)

	rec := a.do(t, http.MethodPost, "/api/admin/payments/pay-1/reject", "admin-token", map[string]string{})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	env := decodeError(t, rec)
	assert.Equal(t, string(apperrors.ErrCodeValidationFailed), env.Error.Code)
	assert.Contains(t, env.Error.Metadata["fields"], "reason")
}

func TestRouter_SubmitRateLimited(t *testing.T) {
	limiter := &denyAll{}
	a := newTestAPI(t, limiter)
	a.seedApplication("app-1", "student-1", models.ApplicationPending)

	rec := a.do(t, http.MethodPost, "/api/applications/app-1/payments", "student-token", map[string]interface{}{
		"transactionCode": "QHG31YRWPF", "phoneNumber": "0712345678", "amount": 500,
	})

	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, 1, limiter.calls)
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))
}

func TestRouter_ApplicationRoutes(t *testing.T) {
	a := newTestAPI(t, nil)

	rec := a.do(t, http.MethodPost, "/api/applications", "student-token", map[string]interface{}{
		"opportunityId": "opp-1",
		"form":          map[string]string{"fullName": "Wanjiru Kamau"},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var app models.Application
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &app))
	assert.Equal(t, models.ApplicationDraft, app.Status)

	rec = a.do(t, http.MethodPatch, "/api/applications/"+app.ID, "student-token", map[string]interface{}{
		"form": map[string]string{"fullName": "Wanjiru W. Kamau"},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = a.do(t, http.MethodGet, "/api/applications", "student-token", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), app.ID)

	rec = a.do(t, http.MethodGet, "/api/applications/"+app.ID+"/timeline", "student-token", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = a.do(t, http.MethodGet, "/api/applications/"+app.ID, "other-token", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = a.do(t, http.MethodPost, "/api/admin/applications/"+app.ID+"/status", "admin-token", map[string]string{"status": "under-review"})
	assert.Equal(t, http.StatusConflict, rec.Code, "payment has not been verified")
}

func TestRouter_CreateOpportunity(t *testing.T) {
	a := newTestAPI(t, nil)
	body := map[string]interface{}{
		"title": "Data Intern", "organization": "Acme", "slots": 3,
		"deadline": time.Now().Add(48 * time.Hour).UTC().Format(time.RFC3339),
	}

	rec := a.do(t, http.MethodPost, "/api/opportunities", "company-token", body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = a.do(t, http.MethodPost, "/api/opportunities", "student-token", body)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	body["deadline"] = "next week"
	rec = a.do(t, http.MethodPost, "/api/opportunities", "company-token", body)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRouter_Search(t *testing.T) {
	a := newTestAPI(t, nil)

	rec := a.do(t, http.MethodGet, "/api/admin/payments/search?q=qhg31&status=pending&size=5", "admin-token", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, search.PaymentQuery{Text: "qhg31", Status: models.PaymentRecordPending, Size: 5}, a.searcher.last)

	rec = a.do(t, http.MethodGet, "/api/admin/payments/search?status=lost", "admin-token", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRouter_Recover(t *testing.T) {
	log := logger.NewTestLogger(t)
	h := httpmw.Chain(http.HandlerFunc(func(http.ResponseWriter, *http.Request) { panic("boom") }),
		httpmw.RequestID(log), httpmw.Logging(log), httpmw.Recover(log))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/x", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.False(t, strings.Contains(rec.Body.String(), "boom"), "panic details stay in the log")
}

func TestRoute(t *testing.T) {
	assert.Equal(t, "/api/applications/{id}/payments", httpmw.Route("/api/applications/9b1deb4d-3b7d-4bad-9bdd-2b0d7b3dcb6d/payments"))
	assert.Equal(t, "/api/admin/payments/stats", httpmw.Route("/api/admin/payments/stats"))
	assert.Equal(t, "/api/opportunities/{id}", httpmw.Route("/api/opportunities/opp-1"))
}
