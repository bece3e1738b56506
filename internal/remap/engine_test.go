// internal/remap/engine_test.go
//
// Unit-tests for the port remapping engine.
//
// Context
// -------
// The pure helpers (DomainMatch, RewritePort, Validate) are table-tested
// directly.  The end-to-end Run cases use sqlmock: one mock DB serves the
// eligible-site select and the per-record UPDATE; the weblog sink shares
// the same mock, and its best-effort inserts simply swallow the
// "unexpected call" errors sqlmock hands back.
//
// Run: go test ./internal/remap -v

package remap

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"

	"github.com/yanizio/waypost/internal/weblog"
)

func intp(v int) *int { return &v }

func TestDomainMatch(t *testing.T) {
	cases := []struct {
		url      string
		patterns []string
		want     bool
	}{
		{"https://a.example.com", []string{"example.com"}, true},
		{"https://example.com", []string{"example.com"}, true},
		{"https://deep.a.example.com:8080/x", []string{"example.com"}, true},
		{"https://notexample.com", []string{"example.com"}, false}, // dot boundary, not substring
		{"https://example.com.evil.net", []string{"example.com"}, false},
		{"https://EXAMPLE.com", []string{"example.com"}, true},
		{"https://a.example.com", []string{"other.net", "example.com"}, true},
		{"://not-a-url", []string{"example.com"}, false},
		{"https://a.example.com", nil, false},
	}
	for _, c := range cases {
		if got := DomainMatch(c.url, c.patterns); got != c.want {
			t.Errorf("DomainMatch(%q, %v) = %v, want %v", c.url, c.patterns, got, c.want)
		}
	}
}

func TestRewritePort(t *testing.T) {
	cases := []struct {
		in   string
		port *int
		want string
	}{
		{"https://svc.example.com:8080/", intp(9090), "https://svc.example.com:9090/"},
		{"https://svc.example.com/", intp(9090), "https://svc.example.com:9090/"},
		{"https://svc.example.com:8080/path?q=1", nil, "https://svc.example.com/path?q=1"},
		{"https://svc.example.com/", nil, "https://svc.example.com/"},
		{"http://[::1]:8080/", intp(9090), "http://[::1]:9090/"},
		{"not a url at all", intp(9090), "not a url at all"}, // unchanged, silent no-op
	}
	for _, c := range cases {
		if got := RewritePort(c.in, c.port); got != c.want {
			t.Errorf("RewritePort(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

// Removing a port is idempotent regardless of prior rewrites.
func TestRewritePortRemovalIdempotent(t *testing.T) {
	const in = "https://svc.example.com:8080/x"
	viaRewrite := RewritePort(RewritePort(in, intp(9090)), nil)
	direct := RewritePort(in, nil)
	if viaRewrite != direct {
		t.Fatalf("removal not idempotent: %q vs %q", viaRewrite, direct)
	}
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name    string
		req     Request
		wantErr string // substring, empty means valid
	}{
		{"ok domains", Request{Port: intp(80), Domains: StringList{"example.com"}}, ""},
		{"ok ids only", Request{IDs: []int64{3}}, ""},
		{"ok strip port", Request{Domains: StringList{"example.com"}}, ""},
		{"port too big", Request{Port: intp(70000), Domains: StringList{"example.com"}}, "70000"},
		{"port negative", Request{Port: intp(-1), Domains: StringList{"example.com"}}, "-1"},
		{"empty scope", Request{}, "at least one"},
		{"bad hostname", Request{Domains: StringList{"exa mple.com"}}, "exa mple.com"},
		{"leading hyphen", Request{Domains: StringList{"-bad.com"}}, "-bad.com"},
		{"bad id", Request{IDs: []int64{0}}, "0"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			req := c.req
			req.Normalize()
			err := req.Validate()
			if c.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("expected error naming %q, got nil", c.wantErr)
			}
			if !regexp.MustCompile(regexp.QuoteMeta(c.wantErr)).MatchString(err.Error()) {
				t.Fatalf("error %q does not name %q", err.Error(), c.wantErr)
			}
		})
	}
}

func TestStringListUnmarshal(t *testing.T) {
	var s StringList
	if err := s.UnmarshalJSON([]byte(`"example.com"`)); err != nil || len(s) != 1 || s[0] != "example.com" {
		t.Fatalf("single string form: %v, err %v", s, err)
	}
	if err := s.UnmarshalJSON([]byte(`["a.com","b.com"]`)); err != nil || len(s) != 2 {
		t.Fatalf("array form: %v, err %v", s, err)
	}
}

/*──────────────────────── end-to-end Run cases ────────────────────────────*/

const siteCols = "id, category_id, title, description, url, backup_url, " +
	"internal_url, logo, sort_order, visible, port_update_eligible, " +
	"created_at, updated_at"

func eligibleRow(mock sqlmock.Sqlmock, rows *sqlmock.Rows) {
	mock.ExpectQuery(`port_update_eligible = TRUE`).WillReturnRows(rows)
}

func siteRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "category_id", "title", "description", "url", "backup_url",
		"internal_url", "logo", "sort_order", "visible",
		"port_update_eligible", "created_at", "updated_at",
	})
}

func newEngine(t *testing.T) (*Engine, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	sdb := sqlx.NewDb(db, "sqlmock")
	return New(sdb, weblog.NewSink(sdb)), mock
}

func TestRunRewritesMatchingRecord(t *testing.T) {
	e, mock := newEngine(t)
	now := time.Now()

	rows := siteRows().AddRow(
		int64(7), int64(2), "Svc", "", "https://svc.example.com:8080/",
		nil, nil, nil, 0, true, true, now, now)
	eligibleRow(mock, rows)

	mock.ExpectExec(regexp.QuoteMeta(`UPDATE site SET url = ? WHERE id = ?`)).
		WithArgs("https://svc.example.com:9090/", int64(7)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	rep, err := e.Run(context.Background(), Request{Port: intp(9090), Domains: StringList{"example.com"}})
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if rep.Code != 0 || rep.MatchedCount != 1 || rep.UpdatedCount != 1 || rep.FailedCount != 0 {
		t.Fatalf("unexpected report: %+v", rep)
	}
	if len(rep.CategoryIDs) != 1 || rep.CategoryIDs[0] != 2 {
		t.Fatalf("expected touched category 2, got %v", rep.CategoryIDs)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet SQL expectations: %v", err)
	}
}

func TestRunNoMatches(t *testing.T) {
	e, mock := newEngine(t)
	now := time.Now()

	rows := siteRows().AddRow(
		int64(7), int64(2), "Svc", "", "https://svc.example.com:8080/",
		nil, nil, nil, 0, true, true, now, now)
	eligibleRow(mock, rows)

	rep, err := e.Run(context.Background(), Request{Domains: StringList{"nomatch.test"}})
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if rep.Code != 0 || rep.MatchedCount != 0 || rep.UpdatedCount != 0 {
		t.Fatalf("unexpected report: %+v", rep)
	}
	if !regexp.MustCompile(`no matching sites found`).MatchString(rep.Message) {
		t.Fatalf("message %q should state no matching sites found", rep.Message)
	}
}

func TestRunMatchedButAlreadyDesired(t *testing.T) {
	e, mock := newEngine(t)
	now := time.Now()

	// Already on 9090: matched, nothing to change, still code 0.
	rows := siteRows().AddRow(
		int64(7), int64(2), "Svc", "", "https://svc.example.com:9090/",
		nil, nil, nil, 0, true, true, now, now)
	eligibleRow(mock, rows)

	rep, err := e.Run(context.Background(), Request{Port: intp(9090), Domains: StringList{"example.com"}})
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if rep.Code != 0 || rep.MatchedCount != 1 || rep.ChangedCount != 0 || rep.UpdatedCount != 0 {
		t.Fatalf("unexpected report: %+v", rep)
	}
}

func TestRunNoEligibleSites(t *testing.T) {
	e, mock := newEngine(t)
	eligibleRow(mock, siteRows())

	_, err := e.Run(context.Background(), Request{Domains: StringList{"example.com"}})
	if err != ErrNoEligibleSites {
		t.Fatalf("expected ErrNoEligibleSites, got %v", err)
	}
}

func TestRunPartialFailure(t *testing.T) {
	e, mock := newEngine(t)
	now := time.Now()

	rows := siteRows().
		AddRow(int64(1), int64(2), "A", "", "https://a.example.com:8080/",
			nil, nil, nil, 0, true, true, now, now).
		AddRow(int64(2), int64(3), "B", "", "https://b.example.com:8080/",
			nil, nil, nil, 0, true, true, now, now)
	eligibleRow(mock, rows)

	mock.ExpectExec(regexp.QuoteMeta(`UPDATE site SET url = ? WHERE id = ?`)).
		WithArgs("https://a.example.com:9090/", int64(1)).
		WillReturnError(sqlmock.ErrCancelled)
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE site SET url = ? WHERE id = ?`)).
		WithArgs("https://b.example.com:9090/", int64(2)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	rep, err := e.Run(context.Background(), Request{Port: intp(9090), Domains: StringList{"example.com"}})
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}
	// Record 1 fails, record 2 must still be attempted and succeed.
	if rep.Code != 1 || rep.MatchedCount != 2 || rep.UpdatedCount != 1 || rep.FailedCount != 1 {
		t.Fatalf("unexpected report: %+v", rep)
	}
	if len(rep.Failures) != 1 || rep.Failures[0].ID != 1 {
		t.Fatalf("expected failure for id 1, got %+v", rep.Failures)
	}
}

func TestRunIDOnlyScopeStagesNothing(t *testing.T) {
	e, mock := newEngine(t)
	now := time.Now()

	// The domain gate applies per column even without patterns: an id-only
	// request counts its records as matched but must not rewrite anything.
	rows := siteRows().AddRow(
		int64(7), int64(2), "Svc", "", "https://svc.example.com:8080/",
		nil, nil, nil, 0, true, true, now, now)
	eligibleRow(mock, rows)

	rep, err := e.Run(context.Background(), Request{Port: intp(9090), IDs: []int64{7}})
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if rep.Code != 0 || rep.MatchedCount != 1 || rep.ChangedCount != 0 || rep.UpdatedCount != 0 {
		t.Fatalf("unexpected report: %+v", rep)
	}
	// No UPDATE may reach the store; only the select was expected.
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet SQL expectations: %v", err)
	}
}

func TestRunIDAndDomainAreANDed(t *testing.T) {
	e, mock := newEngine(t)
	now := time.Now()

	// Record 1 matches the domain but not the id list; record 9 matches the
	// id list but not the domain.  Neither is in scope.
	rows := siteRows().
		AddRow(int64(1), int64(2), "A", "", "https://a.example.com:8080/",
			nil, nil, nil, 0, true, true, now, now).
		AddRow(int64(9), int64(2), "B", "", "https://b.other.net:8080/",
			nil, nil, nil, 0, true, true, now, now)
	eligibleRow(mock, rows)

	rep, err := e.Run(context.Background(), Request{
		Port:    intp(9090),
		Domains: StringList{"example.com"},
		IDs:     []int64{9},
	})
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if rep.MatchedCount != 0 || rep.UpdatedCount != 0 {
		t.Fatalf("AND semantics violated: %+v", rep)
	}
}
