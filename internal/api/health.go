package api

import (
	"context"
	"net/http"
	"time"
)

const Version = "1.0.0"

// Pinger is a dependency whose reachability is reported by the health check.
type Pinger interface {
	Ping(ctx context.Context) error
}

type HealthResponse struct {
	Status       string            `json:"status"`
	Version      string            `json:"version"`
	Dependencies map[string]string `json:"dependencies,omitempty"`
}

// HealthHandler answers 200 when every dependency responds and 503 otherwise.
func HealthHandler(deps map[string]Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := HealthResponse{Status: "healthy", Version: Version}
		status := http.StatusOK

		if len(deps) > 0 {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()

			resp.Dependencies = make(map[string]string, len(deps))
			for name, dep := range deps {
				if err := dep.Ping(ctx); err != nil {
					resp.Dependencies[name] = "unreachable: " + err.Error()
					resp.Status = "degraded"
					status = http.StatusServiceUnavailable
					continue
				}
				resp.Dependencies[name] = "ok"
			}
		}

		writeJSON(w, status, resp)
	}
}
