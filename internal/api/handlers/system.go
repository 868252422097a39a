// internal/api/handlers/system.go
package handlers

import (
	"context"
	"net/http"
	"sort"
	"time"

	"internship-portal/internal/api/response"
	apperrors "internship-portal/internal/common/errors"
)

// ReadinessCheck reports whether a dependency can serve traffic.
type ReadinessCheck func(ctx context.Context) error

type SystemHandler struct {
	checks  map[string]ReadinessCheck
	version string
}

func NewSystemHandler(version string, checks map[string]ReadinessCheck) *SystemHandler {
	return &SystemHandler{checks: checks, version: version}
}

func (h *SystemHandler) Health(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, http.StatusOK, map[string]string{"status": "ok", "version": h.version})
}

// Ready runs every check with a short deadline and answers 503 when any of
// them fails.
func (h *SystemHandler) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	results := make(map[string]string, len(names))
	ready := true
	for _, name := range names {
		if err := h.checks[name](ctx); err != nil {
			results[name] = apperrors.Normalize(err).Error()
			ready = false
			continue
		}
		results[name] = "ok"
	}

	status := http.StatusOK
	if !ready {
		status = http.StatusServiceUnavailable
	}
	response.JSON(w, status, map[string]interface{}{"ready": ready, "checks": results})
}

// Realtime upgrades the connection onto the push channel.
type RealtimeServer interface {
	ServeWS(w http.ResponseWriter, r *http.Request, userID string)
}

type RealtimeHandler struct {
	hub RealtimeServer
}

func NewRealtimeHandler(hub RealtimeServer) *RealtimeHandler {
	return &RealtimeHandler{hub: hub}
}

func (h *RealtimeHandler) Connect(w http.ResponseWriter, r *http.Request) {
	caller, err := principal(r)
	if err != nil {
		response.Error(w, err)
		return
	}
	h.hub.ServeWS(w, r, caller.UserID)
}
