package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/ivankudzin/nikah/backend/internal/transport/http/dto"
	httperrors "github.com/ivankudzin/nikah/backend/internal/transport/http/errors"
)

const healthCheckTimeout = 2 * time.Second

// Pinger reports whether a backing store is reachable.
type Pinger func(ctx context.Context) error

type HealthHandler struct {
	checks map[string]Pinger
}

func NewHealthHandler(checks map[string]Pinger) *HealthHandler {
	return &HealthHandler{checks: checks}
}

func (h *HealthHandler) Handle(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	resp := dto.HealthResponse{Status: "ok", Checks: make(map[string]string, len(h.checks))}
	status := http.StatusOK
	for name, ping := range h.checks {
		if ping == nil {
			resp.Checks[name] = "disabled"
			continue
		}
		if err := ping(ctx); err != nil {
			resp.Checks[name] = "down"
			resp.Status = "degraded"
			status = http.StatusServiceUnavailable
			continue
		}
		resp.Checks[name] = "up"
	}

	httperrors.Write(w, status, resp)
}
