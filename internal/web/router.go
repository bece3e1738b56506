// internal/web/router.go
//
// Route table.
//
// Context
// -------
// One chi router serves three surfaces:
//
//   • public     – /api/nav, /healthz, /readyz, /metrics
//   • webhooks   – /api/webhook/deploy (HMAC), /api/webhook/port-remap
//                  (bearer); each carries its own secret, no session
//   • admin      – /api/auth/*, /api/admin/* behind the session guard
//
// Per-request timeout applies to everything *except* the webhook group:
// the remap engine walks every eligible record synchronously and must not
// be cut off mid-batch.
//
// Notes
// -----
// • Oxford commas, two spaces after periods.
package web

import (
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/yanizio/waypost/internal/deploy"
	"github.com/yanizio/waypost/internal/middleware"
	"github.com/yanizio/waypost/internal/remap"
)

// Router assembles the full handler tree.  Deps with a nil NewSequence get
// the production factory.
func Router(d Deps) chi.Router {
	if d.NewSequence == nil {
		dd := d
		d.NewSequence = func() *deploy.Sequence { return defaultSequence(&dd) }
	}

	engine := remap.New(d.DB, d.Sink)

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(middleware.Security)

	// Public surface.
	r.Group(func(r chi.Router) {
		r.Use(chimw.Timeout(10 * time.Second))
		r.Get("/healthz", handleHealthz)
		r.Get("/readyz", handleReadyz(d))
		r.Get("/api/nav", handleNav(d))
		r.Handle("/metrics", promhttp.Handler())
	})

	// Webhooks: no session, no per-request timeout.
	r.Route("/api/webhook", func(r chi.Router) {
		r.Post("/deploy", handleDeployWebhook(d))
		r.Post("/port-remap", handleRemapWebhook(d, engine))
	})

	// Admin console.
	r.Group(func(r chi.Router) {
		r.Use(chimw.Timeout(10 * time.Second))
		r.Post("/api/auth/login", handleLogin(d))
		r.Post("/api/auth/logout", handleLogout(d))

		r.Route("/api/admin", func(r chi.Router) {
			r.Use(requireSession(d))

			r.Get("/categories", handleCategoryList(d))
			r.Post("/categories", handleCategoryCreate(d))
			r.Put("/categories/{id}", handleCategoryUpdate(d))
			r.Delete("/categories/{id}", handleCategoryDelete(d))

			r.Get("/sites", handleSiteList(d))
			r.Post("/sites", handleSiteCreate(d))
			r.Put("/sites/{id}", handleSiteUpdate(d))
			r.Delete("/sites/{id}", handleSiteDelete(d))

			r.Get("/users", handleUserList(d))
			r.Post("/users", handleUserCreate(d))
			r.Put("/users/{id}/password", handleUserPassword(d))
			r.Delete("/users/{id}", handleUserDelete(d))

			r.Get("/settings", handleSettingsGet(d))
			r.Put("/settings", handleSettingsPut(d))

			r.Get("/logs", handleLogList(d))
		})
	})

	return r
}
