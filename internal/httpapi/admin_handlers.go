package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/zynqcloud/securevault/internal/httpx"
)

// handleMetrics implements GET /api/admin/metrics: a flat JSON snapshot of
// the engine's process-lifetime counters. Adapted from the teacher's
// internal/handler/metrics.go atomic-counter endpoint, repointed at
// upload/download/quota/share counters and gated behind the admin role
// since spec's endpoint list carries no public metrics route.
func (d *Deps) handleMetrics(w http.ResponseWriter, _ *http.Request) {
	httpx.OK(w, d.Vault.Metrics.Snapshot())
}

// handleHealth implements GET /health: liveness plus a bounded Mongo ping,
// generalized from the teacher's disk-space syscall check (store/
// diskstats_*.go) to the dependency that actually gates this service's
// availability once metadata lives in a document store.
func (d *Deps) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := d.Users.Ping(ctx); err != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		json.NewEncoder(w).Encode(map[string]string{"status": "unavailable"}) //nolint:errcheck
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"}) //nolint:errcheck
}
