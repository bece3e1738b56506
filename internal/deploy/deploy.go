// internal/deploy/deploy.go
//
// Deployment trigger pipeline.
//
// Context
// -------
// A GitHub push webhook lands on the deploy endpoint, which authenticates
// the payload, checks the branch gate, answers the sender immediately, and
// hands off to Sequence.Run in a detached goroutine.  The sequence drives
// the operator panel: optionally trigger the pull cronjob, wait for it,
// then run each configured operation against the website.
//
// Failure semantics
// -----------------
// Everything past the HTTP response is fire-and-forget.  Per-call failures
// are written to the log sink and the sequence keeps going; nothing here
// returns an error to a caller because by design there is no caller left.
// Missing panel configuration is the handler's problem and is rejected
// synchronously before Run is ever spawned.
//
// Notes
// -----
// • Oxford commas, two spaces after periods.
package deploy

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/yanizio/waypost/internal/config"
	"github.com/yanizio/waypost/internal/metrics"
	"github.com/yanizio/waypost/internal/panel"
	"github.com/yanizio/waypost/internal/weblog"
)

const (
	// SignaturePrefix is the scheme tag GitHub puts in front of the hex
	// digest in X-Hub-Signature-256.
	SignaturePrefix = "sha256="

	// EventPush and MainRef gate the pipeline: only a push to the primary
	// branch triggers a deployment.
	EventPush = "push"
	MainRef   = "refs/heads/main"
)

// Signature returns the `sha256=<hex>` HMAC for a payload, as GitHub
// computes it.  Exported for the webhook tests.
func Signature(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return SignaturePrefix + hex.EncodeToString(mac.Sum(nil))
}

// Authenticate verifies the signature header against the raw body.
//
// An empty secret means trust-all: every payload passes.  That is a
// deliberate dev-mode convenience—the handler logs a warning each time it
// happens so the gap is visible in production logs.  With a secret set, a
// missing header or any mismatch (length included) fails; the comparison
// is constant-time.
func Authenticate(body []byte, sigHeader, secret string) bool {
	if secret == "" {
		return true
	}
	if sigHeader == "" {
		return false
	}
	want := Signature(secret, body)
	return hmac.Equal([]byte(sigHeader), []byte(want))
}

// ShouldTrigger reports whether an event starts the deploy sequence: true
// exactly for a push to the primary branch.
func ShouldTrigger(eventType, branchRef string) bool {
	return eventType == EventPush && branchRef == MainRef
}

// Sequence holds everything one background deployment needs.  Construct
// with NewSequence; the test seams (Sleep, Done) default to production
// no-ops.
type Sequence struct {
	Panel *panel.Client
	Cfg   config.Panel
	Sink  *weblog.Sink

	// Sleep is called between the pull step and the operations.  Tests
	// replace it to avoid the multi-second production delay.
	Sleep func(time.Duration)

	// Done, when non-nil, is invoked after the last operation so tests can
	// await the otherwise un-awaited goroutine.
	Done func()
}

// NewSequence wires a sequence against the live panel client.
func NewSequence(pc *panel.Client, cfg config.Panel, sink *weblog.Sink) *Sequence {
	return &Sequence{Panel: pc, Cfg: cfg, Sink: sink, Sleep: time.Sleep}
}

// Run executes the pull-delay-operate sequence.  It never panics past its
// boundary and never returns an error: every intermediate failure becomes
// a log entry.  Callers spawn it with `go seq.Run()` after the webhook
// response is written.
func (s *Sequence) Run() {
	defer func() {
		if r := recover(); r != nil {
			zap.S().Errorw("deploy sequence panic", "panic", r)
		}
		if s.Done != nil {
			s.Done()
		}
	}()

	// No deadline: the sender already has its response, and a slow panel
	// is allowed to take as long as it takes.
	ctx := context.Background()

	if s.Cfg.PullCronjobID > 0 {
		body, status, err := s.Panel.ExecuteCronjob(ctx, s.Cfg.PullCronjobID)
		s.logStep(ctx, "pull", body, status, err,
			map[string]any{"cronjob_id": s.Cfg.PullCronjobID})

		// Give the pull job time to finish before restarting under it.
		s.Sleep(time.Duration(s.Cfg.RestartDelay) * time.Millisecond)
	}

	for _, op := range s.Cfg.Operations {
		body, status, err := s.Panel.OperateWebsite(ctx, op, s.Cfg.WebsiteID)
		s.logStep(ctx, op, body, status, err,
			map[string]any{"website_id": s.Cfg.WebsiteID})
	}
}

// logStep records one panel call.  A transport error or non-2xx status is
// logged at error level and counted, but never stops the sequence.
func (s *Sequence) logStep(ctx context.Context, step, body string, status int, err error, meta map[string]any) {
	meta["response"] = body

	level := weblog.LevelInfo
	msg := fmt.Sprintf("panel %s ok", step)
	if err != nil {
		level = weblog.LevelError
		msg = fmt.Sprintf("panel %s failed: %v", step, err)
		metrics.DeployCallFailuresTotal.Inc()
	} else if status < 200 || status > 299 {
		level = weblog.LevelError
		msg = fmt.Sprintf("panel %s returned HTTP %d", step, status)
		metrics.DeployCallFailuresTotal.Inc()
	}

	s.Sink.Write(ctx, weblog.Entry{
		Source:  "deploy",
		Level:   level,
		Message: msg,
		Meta:    meta,
		Status:  status,
	})
}
