// internal/web/webhook_test.go
//
// Handler-level tests for the two webhook endpoints.
//
// Context
// -------
// Each test assembles a Deps over sqlmock, fires an httptest request at
// the full router, and asserts status plus body shape.  The deploy tests
// substitute a NewSequence factory so a triggered event is observable
// without any panel traffic.
//
// Run: go test ./internal/web -v

package web

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"

	"github.com/yanizio/waypost/internal/config"
	"github.com/yanizio/waypost/internal/deploy"
	"github.com/yanizio/waypost/internal/navcache"
	"github.com/yanizio/waypost/internal/session"
	"github.com/yanizio/waypost/internal/weblog"
)

// newDeps builds a Deps over a fresh sqlmock.  The sink shares the mock;
// its best-effort inserts swallow the unexpected-call errors.
func newDeps(t *testing.T, cfg *config.Config) (Deps, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	sdb := sqlx.NewDb(db, "sqlmock")

	return Deps{
		DB:       sdb,
		Cfg:      cfg,
		Sink:     weblog.NewSink(sdb),
		Sessions: session.NewStore(time.Minute),
		Nav:      navcache.New(nil),
	}, mock
}

func baseConfig() *config.Config {
	return &config.Config{
		Webhook: config.Webhook{
			DeploySecret: "hook-secret",
			RemapToken:   "remap-token",
		},
		Panel: config.Panel{
			APIURL:     "http://panel.local",
			APIKey:     "key",
			WebsiteID:  12,
			Operations: []string{"restart"},
		},
	}
}

func postDeploy(t *testing.T, h http.Handler, body []byte, sign bool, event string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/webhook/deploy", bytes.NewReader(body))
	req.Header.Set("X-GitHub-Event", event)
	req.Header.Set("X-GitHub-Delivery", "d-123")
	if sign {
		req.Header.Set("X-Hub-Signature-256", deploy.Signature("hook-secret", body))
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestDeployWebhookNonMainBranchAcknowledged(t *testing.T) {
	d, _ := newDeps(t, baseConfig())

	called := false
	d.NewSequence = func() *deploy.Sequence {
		called = true
		return deploy.NewSequence(nil, config.Panel{}, d.Sink)
	}
	h := Router(d)

	body := []byte(`{"ref":"refs/heads/develop"}`)
	rr := postDeploy(t, h, body, true, "push")

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
	if called {
		t.Fatal("sequence must not start for a non-main push")
	}

	var resp map[string]string
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("bad response JSON: %v", err)
	}
	if resp["event"] != "push" || resp["delivery"] != "d-123" {
		t.Fatalf("response must echo event and delivery: %v", resp)
	}
}

func TestDeployWebhookMissingSignatureRejected(t *testing.T) {
	d, _ := newDeps(t, baseConfig())

	called := false
	d.NewSequence = func() *deploy.Sequence {
		called = true
		return deploy.NewSequence(nil, config.Panel{}, d.Sink)
	}
	h := Router(d)

	rr := postDeploy(t, h, []byte(`{"ref":"refs/heads/main"}`), false, "push")

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rr.Code)
	}
	if called {
		t.Fatal("sequence must not start on auth failure")
	}
}

func TestDeployWebhookMainPushTriggersSequence(t *testing.T) {
	d, _ := newDeps(t, baseConfig())

	done := make(chan struct{})
	d.NewSequence = func() *deploy.Sequence {
		seq := deploy.NewSequence(nil, config.Panel{}, d.Sink)
		seq.Done = func() { close(done) }
		return seq
	}
	h := Router(d)

	body := []byte(`{"ref":"refs/heads/main"}`)
	rr := postDeploy(t, h, body, true, "push")

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("sequence was not spawned")
	}
}

func TestDeployWebhookMissingPanelConfig(t *testing.T) {
	cfg := baseConfig()
	cfg.Panel.APIKey = "" // required for a triggering event
	d, _ := newDeps(t, cfg)
	h := Router(d)

	body := []byte(`{"ref":"refs/heads/main"}`)
	rr := postDeploy(t, h, body, true, "push")

	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500 for missing panel config", rr.Code)
	}
}

/*──────────────────────────── port remap ──────────────────────────────────*/

func postRemap(t *testing.T, h http.Handler, token, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/webhook/port-remap", strings.NewReader(body))
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestRemapWebhookBadToken(t *testing.T) {
	d, _ := newDeps(t, baseConfig())
	h := Router(d)

	rr := postRemap(t, h, "wrong", `{"port":9090,"domains":["example.com"]}`)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rr.Code)
	}
}

func TestRemapWebhookInvalidPort(t *testing.T) {
	d, _ := newDeps(t, baseConfig())
	h := Router(d)

	rr := postRemap(t, h, "remap-token", `{"port":70000,"domains":["example.com"]}`)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rr.Code)
	}

	var resp struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("bad response JSON: %v", err)
	}
	if resp.Code != 1 || !strings.Contains(resp.Message, "70000") {
		t.Fatalf("response must carry code 1 and name the port: %+v", resp)
	}
}

func TestRemapWebhookNoEligibleSites(t *testing.T) {
	d, mock := newDeps(t, baseConfig())
	h := Router(d)

	mock.ExpectQuery(`port_update_eligible = TRUE`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	rr := postRemap(t, h, "remap-token", `{"port":9090,"domains":["example.com"]}`)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rr.Code)
	}
}

func TestRemapWebhookSingleDomainString(t *testing.T) {
	d, mock := newDeps(t, baseConfig())
	h := Router(d)

	// `domains` as a bare string must parse, and an unmatched domain is a
	// code-0 zero-match outcome.
	mock.ExpectQuery(`port_update_eligible = TRUE`).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "category_id", "title", "description", "url", "backup_url",
			"internal_url", "logo", "sort_order", "visible",
			"port_update_eligible", "created_at", "updated_at",
		}).AddRow(int64(1), int64(1), "A", "", "https://a.example.com/",
			nil, nil, nil, 0, true, true, time.Now(), time.Now()))

	rr := postRemap(t, h, "remap-token", `{"port":null,"domains":"nomatch.test"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200, body %s", rr.Code, rr.Body.String())
	}
	var rep struct {
		Code         int `json:"code"`
		MatchedCount int `json:"matched_count"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &rep); err != nil {
		t.Fatalf("bad response JSON: %v", err)
	}
	if rep.Code != 0 || rep.MatchedCount != 0 {
		t.Fatalf("unexpected report: %+v", rep)
	}
}
