// internal/api/router.go
package api

import (
	"net/http"
	"strings"
	"time"

	"internship-portal/internal/api/handlers"
	httpmw "internship-portal/internal/api/middleware"
	"internship-portal/internal/common/logger"
	"internship-portal/internal/models"
)

type RouterDependencies struct {
	PaymentHandler     *handlers.PaymentHandler
	ApplicationHandler *handlers.ApplicationHandler
	OpportunityHandler *handlers.OpportunityHandler
	AdminHandler       *handlers.AdminHandler
	SystemHandler      *handlers.SystemHandler
	RealtimeHandler    *handlers.RealtimeHandler
	MetricsHandler     http.Handler
	AuthMiddleware     *httpmw.AuthMiddleware
	Limiter            httpmw.Limiter
	SubmitLimit        int
	RequestTimeout     time.Duration
	Logger             logger.Logger
}

type Router struct {
	deps    RouterDependencies
	handler http.Handler
	submit  http.Handler
}

const maxBodyBytes = 1 << 20

func NewRouter(deps RouterDependencies) http.Handler {
	r := &Router{deps: deps}
	r.submit = httpmw.Chain(http.HandlerFunc(deps.PaymentHandler.Submit),
		httpmw.RateLimit(deps.Limiter, httpmw.PrincipalKey("submit-payment"), deps.SubmitLimit, time.Minute))
	r.handler = httpmw.Chain(r.baseHandler(),
		httpmw.RequestID(deps.Logger),
		httpmw.Logging(deps.Logger),
		httpmw.BodyLimit(maxBodyBytes),
		httpmw.Recover(deps.Logger),
		httpmw.Timeout(deps.RequestTimeout),
	)
	return r
}

func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.handler.ServeHTTP(w, req)
}

func (r *Router) baseHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		path := req.URL.Path

		switch {
		case req.Method == http.MethodGet && path == "/health":
			r.deps.SystemHandler.Health(w, req)
			return
		case req.Method == http.MethodGet && path == "/ready":
			r.deps.SystemHandler.Ready(w, req)
			return
		case req.Method == http.MethodGet && path == "/metrics" && r.deps.MetricsHandler != nil:
			r.deps.MetricsHandler.ServeHTTP(w, req)
			return
		case req.Method == http.MethodGet && path == "/api/opportunities":
			r.deps.OpportunityHandler.List(w, req)
			return
		case req.Method == http.MethodGet && segments(path) == 3 && strings.HasPrefix(path, "/api/opportunities/"):
			r.deps.OpportunityHandler.Get(w, req)
			return
		}

		if path == "/ws" || strings.HasPrefix(path, "/api/") {
			r.deps.AuthMiddleware.Authenticate(http.HandlerFunc(r.handleProtected)).ServeHTTP(w, req)
			return
		}

		http.NotFound(w, req)
	})
}

func (r *Router) handleProtected(w http.ResponseWriter, req *http.Request) {
	path := req.URL.Path
	admin := httpmw.RequireRole(models.RoleAdmin)

	switch {
	case req.Method == http.MethodGet && path == "/ws":
		r.deps.RealtimeHandler.Connect(w, req)
		return
	case req.Method == http.MethodPost && path == "/api/opportunities":
		httpmw.RequireRole(models.RoleCompany, models.RoleAdmin)(http.HandlerFunc(r.deps.OpportunityHandler.Create)).ServeHTTP(w, req)
		return
	case req.Method == http.MethodPost && path == "/api/applications":
		httpmw.RequireRole(models.RoleStudent)(http.HandlerFunc(r.deps.ApplicationHandler.Create)).ServeHTTP(w, req)
		return
	case req.Method == http.MethodGet && path == "/api/applications":
		r.deps.ApplicationHandler.List(w, req)
		return
	case req.Method == http.MethodPost && matches(path, "/api/applications/", "/payments"):
		httpmw.RequireRole(models.RoleStudent)(r.submit).ServeHTTP(w, req)
		return
	case req.Method == http.MethodGet && matches(path, "/api/applications/", "/payment-status"):
		r.deps.PaymentHandler.Status(w, req)
		return
	case req.Method == http.MethodGet && matches(path, "/api/applications/", "/timeline"):
		r.deps.ApplicationHandler.Timeline(w, req)
		return
	case req.Method == http.MethodGet && matches(path, "/api/applications/", ""):
		r.deps.ApplicationHandler.Get(w, req)
		return
	case req.Method == http.MethodPatch && matches(path, "/api/applications/", ""):
		r.deps.ApplicationHandler.Update(w, req)
		return
	}

	if strings.HasPrefix(path, "/api/admin/") {
		r.handleAdmin(w, req, admin)
		return
	}

	http.NotFound(w, req)
}

func (r *Router) handleAdmin(w http.ResponseWriter, req *http.Request, admin func(http.Handler) http.Handler) {
	path := req.URL.Path
	var h http.HandlerFunc

	switch {
	case req.Method == http.MethodGet && path == "/api/admin/payments":
		h = r.deps.PaymentHandler.Queue
	case req.Method == http.MethodGet && path == "/api/admin/payments/stats":
		h = r.deps.AdminHandler.Stats
	case req.Method == http.MethodGet && path == "/api/admin/payments/search":
		h = r.deps.AdminHandler.Search
	case req.Method == http.MethodPost && matches(path, "/api/admin/payments/", "/verify"):
		h = r.deps.PaymentHandler.Verify
	case req.Method == http.MethodPost && matches(path, "/api/admin/payments/", "/reject"):
		h = r.deps.PaymentHandler.Reject
	case req.Method == http.MethodPost && matches(path, "/api/admin/payments/", "/flag-duplicate"):
		h = r.deps.PaymentHandler.FlagDuplicate
	case req.Method == http.MethodPost && matches(path, "/api/admin/applications/", "/status"):
		h = r.deps.ApplicationHandler.Review
	default:
		http.NotFound(w, req)
		return
	}
	admin(h).ServeHTTP(w, req)
}

// matches reports whether path is prefix + one id segment + suffix.
func matches(path, prefix, suffix string) bool {
	if !strings.HasPrefix(path, prefix) || !strings.HasSuffix(path, suffix) {
		return false
	}
	id := strings.TrimSuffix(strings.TrimPrefix(path, prefix), suffix)
	return id != "" && !strings.Contains(id, "/")
}

func segments(path string) int {
	return len(strings.Split(strings.Trim(path, "/"), "/"))
}
