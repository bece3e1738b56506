// internal/web/webhook.go
//
// The two webhook endpoints: GitHub-signed deploy triggers and the
// bearer-authenticated bulk port remap.
//
// Context
// -------
// The deploy handler answers the sender before the slow panel sequence
// runs; GitHub retries on timeout, so the response must not wait tens of
// seconds for a restart.  The remap endpoint is synchronous end-to-end:
// its caller needs the per-record outcome.
//
// Notes
// -----
// • Oxford commas, two spaces after periods.
package web

import (
	"crypto/hmac"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/yanizio/waypost/internal/deploy"
	"github.com/yanizio/waypost/internal/metrics"
	"github.com/yanizio/waypost/internal/remap"
	"github.com/yanizio/waypost/internal/requestinfo"
	"github.com/yanizio/waypost/internal/weblog"
)

// GitHub webhook headers.
const (
	headerSignature = "X-Hub-Signature-256"
	headerEvent     = "X-GitHub-Event"
	headerDelivery  = "X-GitHub-Delivery"
)

// maxWebhookBody caps inbound payloads at 1 MiB; push events are far
// smaller.
const maxWebhookBody = 1 << 20

// handleDeployWebhook implements POST /api/webhook/deploy.
func handleDeployWebhook(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		info := requestinfo.FromRequest(r)

		body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
		if err != nil {
			writeMessage(w, http.StatusInternalServerError, "failed to read request body")
			return
		}

		secret := d.Cfg.Webhook.DeploySecret
		sig := r.Header.Get(headerSignature)
		if !deploy.Authenticate(body, sig, secret) {
			metrics.DeployEventsTotal.WithLabelValues("unauthorized").Inc()
			d.Sink.Write(ctx, weblog.Entry{
				Source:  "deploy",
				Level:   weblog.LevelWarn,
				Message: "webhook signature rejected",
				Status:  http.StatusUnauthorized,
				IP:      info.IP,
			})
			writeMessage(w, http.StatusUnauthorized, "invalid signature")
			return
		}
		if secret == "" {
			// Trust-all mode: accepted without verification.  Loud on
			// purpose; see config.Webhook.
			d.Sink.Write(ctx, weblog.Entry{
				Source:  "deploy",
				Level:   weblog.LevelWarn,
				Message: "webhook accepted without signature check (no secret configured)",
				IP:      info.IP,
			})
		} else {
			d.Sink.Write(ctx, weblog.Entry{
				Source:  "deploy",
				Level:   weblog.LevelInfo,
				Message: "webhook signature verified",
				IP:      info.IP,
			})
		}

		event := r.Header.Get(headerEvent)
		delivery := r.Header.Get(headerDelivery)

		// Best-effort ref extraction; ping events carry no ref and simply
		// fall through the trigger gate.
		var payload struct {
			Ref string `json:"ref"`
		}
		_ = json.Unmarshal(body, &payload)

		if !deploy.ShouldTrigger(event, payload.Ref) {
			metrics.DeployEventsTotal.WithLabelValues("skipped").Inc()
			d.Sink.Write(ctx, weblog.Entry{
				Source:  "deploy",
				Level:   weblog.LevelInfo,
				Message: fmt.Sprintf("event ignored: %s on %q", event, payload.Ref),
				Meta:    map[string]any{"delivery": delivery, "bot": info.IsBot},
				IP:      info.IP,
			})
			writeJSON(w, http.StatusOK, map[string]string{
				"message":  "event received, deployment not triggered",
				"event":    event,
				"delivery": delivery,
			})
			return
		}

		// Triggering event: required panel config must be present before
		// any network call.
		p := d.Cfg.Panel
		if p.APIURL == "" || p.APIKey == "" || p.WebsiteID == 0 {
			d.Sink.Write(ctx, weblog.Entry{
				Source:  "deploy",
				Level:   weblog.LevelError,
				Message: "deploy aborted: panel api_url, api_key, or website_id missing",
				Status:  http.StatusInternalServerError,
				IP:      info.IP,
			})
			writeMessage(w, http.StatusInternalServerError, "panel configuration incomplete")
			return
		}

		metrics.DeployEventsTotal.WithLabelValues("triggered").Inc()
		d.Sink.Write(ctx, weblog.Entry{
			Source:  "deploy",
			Level:   weblog.LevelInfo,
			Message: "push to main, deployment sequence started",
			Meta:    map[string]any{"delivery": delivery},
			IP:      info.IP,
		})

		// Fire and forget: the only record of the sequence is the log sink.
		go d.NewSequence().Run()

		writeJSON(w, http.StatusOK, map[string]string{
			"message":  "deployment triggered",
			"event":    event,
			"delivery": delivery,
		})
	}
}

// handleRemapWebhook implements POST /api/webhook/port-remap.
func handleRemapWebhook(d Deps, engine *remap.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		info := requestinfo.FromRequest(r)

		if !remapAuthorized(r, d.Cfg.Webhook.RemapToken) {
			d.Sink.Write(ctx, weblog.Entry{
				Source:  "remap",
				Level:   weblog.LevelWarn,
				Message: "remap request rejected: bad bearer token",
				Status:  http.StatusUnauthorized,
				IP:      info.IP,
			})
			writeMessage(w, http.StatusUnauthorized, "unauthorized")
			return
		}

		var req remap.Request
		if err := json.NewDecoder(io.LimitReader(r.Body, maxWebhookBody)).Decode(&req); err != nil {
			writeCoded(w, http.StatusBadRequest, 1, "malformed request body: "+err.Error())
			return
		}

		report, err := engine.Run(ctx, req)
		if err != nil {
			var verr *remap.ValidationError
			switch {
			case errors.As(err, &verr):
				writeCoded(w, http.StatusBadRequest, 1, verr.Reason)
			case errors.Is(err, remap.ErrNoEligibleSites):
				writeCoded(w, http.StatusNotFound, 1, "no eligible sites")
			default:
				writeCoded(w, http.StatusInternalServerError, 1, "remap failed: "+err.Error())
			}
			return
		}

		// Partial failure keeps the counts but reports a failure-class
		// status.
		status := http.StatusOK
		if report.FailedCount > 0 {
			status = http.StatusInternalServerError
		}
		writeJSON(w, status, report)
	}
}

// remapAuthorized checks the bearer token in constant time.
func remapAuthorized(r *http.Request, token string) bool {
	if token == "" {
		return false // unlike the deploy secret, this one is mandatory
	}
	h := r.Header.Get("Authorization")
	got, ok := strings.CutPrefix(h, "Bearer ")
	if !ok {
		return false
	}
	return hmac.Equal([]byte(got), []byte(token))
}
