// internal/web/deps.go
//
// Dependency bundle for the HTTP layer.  Handlers are constructed as
// closures over Deps, so tests can assemble a Deps with sqlmock, a stub
// panel endpoint, or an overridden sequence factory without touching
// package-level state.
package web

import (
	"github.com/jmoiron/sqlx"

	"github.com/yanizio/waypost/internal/config"
	"github.com/yanizio/waypost/internal/deploy"
	"github.com/yanizio/waypost/internal/navcache"
	"github.com/yanizio/waypost/internal/panel"
	"github.com/yanizio/waypost/internal/session"
	"github.com/yanizio/waypost/internal/weblog"
)

// Deps carries everything the handlers need.
type Deps struct {
	DB       *sqlx.DB
	Cfg      *config.Config
	Sink     *weblog.Sink
	Sessions *session.Store
	Nav      *navcache.Cache

	// NewSequence builds the background deploy sequence for one triggering
	// event.  Production wiring uses defaultSequence; tests substitute a
	// factory with a Done hook and a no-op Sleep.
	NewSequence func() *deploy.Sequence
}

// defaultSequence is the production factory: live panel client, real
// sleeps, no completion hook.
func defaultSequence(d *Deps) *deploy.Sequence {
	pc := panel.NewClient(d.Cfg.Panel.APIURL, d.Cfg.Panel.APIKey)
	return deploy.NewSequence(pc, d.Cfg.Panel, d.Sink)
}
