// internal/web/nav.go
//
// Public endpoints: the navigation payload and the health probes.
package web

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/yanizio/waypost/internal/nav"
)

// handleNav implements GET /api/nav.  The payload is served from the
// redis cache when possible; the builder closes over the database.
func handleNav(d Deps) http.HandlerFunc {
	build := func(ctx context.Context) ([]byte, error) {
		p, err := nav.Build(ctx, d.DB)
		if err != nil {
			return nil, err
		}
		return json.Marshal(p)
	}

	return func(w http.ResponseWriter, r *http.Request) {
		b, err := d.Nav.Payload(r.Context(), build)
		if err != nil {
			writeMessage(w, http.StatusInternalServerError, "failed to build navigation")
			return
		}
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		_, _ = w.Write(b)
	}
}

// handleHealthz is the liveness probe.
func handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeMessage(w, http.StatusOK, "ok")
}

// handleReadyz reports readiness: the database must answer a ping.
func handleReadyz(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := d.DB.PingContext(r.Context()); err != nil {
			writeMessage(w, http.StatusServiceUnavailable, "database unreachable")
			return
		}
		writeMessage(w, http.StatusOK, "ready")
	}
}
