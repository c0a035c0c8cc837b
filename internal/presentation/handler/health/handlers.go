package health

import (
	"context"
	"net/http"
	"time"

	"github.com/hilthontt/rendezvous/internal/infrastructure/json"
	"github.com/hilthontt/rendezvous/internal/infrastructure/ws"
)

const checkTimeout = 2 * time.Second

// Check probes one dependency, e.g. a Redis or MongoDB ping.
type Check struct {
	Name  string
	Probe func(ctx context.Context) error
}

type Handler struct {
	core      *ws.Core
	checks    []Check
	startTime time.Time
}

func NewHandler(core *ws.Core, checks ...Check) *Handler {
	return &Handler{
		core:      core,
		checks:    checks,
		startTime: time.Now(),
	}
}

func (h *Handler) GetHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{
		Status:    "ok",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Uptime:    time.Since(h.startTime).Round(time.Second).String(),
		Rooms:     h.core.Registry().Len(),
	}

	status := http.StatusOK
	if len(h.checks) > 0 {
		ctx, cancel := context.WithTimeout(r.Context(), checkTimeout)
		defer cancel()

		resp.Checks = make(map[string]string, len(h.checks))
		for _, c := range h.checks {
			if err := c.Probe(ctx); err != nil {
				resp.Checks[c.Name] = err.Error()
				resp.Status = "unhealthy"
				status = http.StatusServiceUnavailable
				continue
			}
			resp.Checks[c.Name] = "ok"
		}
	}

	json.Write(w, status, resp)
}
