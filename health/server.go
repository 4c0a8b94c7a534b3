// SPDX-License-Identifier: LGPL-3.0-or-later

package health

import (
	"encoding/json"
	"net/http"
)

// Handler returns an http.Handler serving GetSystemHealth as JSON, with the
// response status code reflecting overall health: 503 when any registered
// check is unhealthy, 200 otherwise (including degraded, which is still
// reported in the body rather than the status line).
func (h *HealthChecker) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		system := h.GetSystemHealth(r.Context())

		w.Header().Set("Content-Type", "application/json")
		if system.Status == StatusUnhealthy {
			w.WriteHeader(http.StatusServiceUnavailable)
		} else {
			w.WriteHeader(http.StatusOK)
		}
		_ = json.NewEncoder(w).Encode(system)
	})
}

// StartServer runs a standalone health check HTTP server on path, blocking
// until the listener fails.
func StartServer(addr, path string, checker *HealthChecker) error {
	mux := http.NewServeMux()
	mux.Handle(path, checker.Handler())
	return http.ListenAndServe(addr, mux)
}
