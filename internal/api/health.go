package api

import (
	"log/slog"
	"net/http"
)

type healthResponse struct {
	Status string `json:"status"`
}

// healthzHandler answers liveness probes.
func healthzHandler(logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, healthResponse{Status: "ok"}, logger)
	})
}

// readyzHandler answers readiness probes. The ready func reports
// whether the coordinator's dependencies are wired; nil means always
// ready.
func readyzHandler(ready func() bool, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ready != nil && !ready() {
			writeJSON(w, http.StatusServiceUnavailable, healthResponse{Status: "starting"}, logger)
			return
		}
		writeJSON(w, http.StatusOK, healthResponse{Status: "ok"}, logger)
	})
}
