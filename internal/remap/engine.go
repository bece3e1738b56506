// internal/remap/engine.go
//
// Port remapping engine.
//
// Context
// -------
// Rewrites the port component of URL-bearing columns across every eligible
// site record matching a domain/id scope.  Each record persists in one
// UPDATE; records fail independently, and the report distinguishes matched,
// changed, updated, and failed counts.
//
// Per-invocation flow: validate → select eligible candidates → filter by
// scope → per-record stage-and-persist → summarize.  The engine runs
// synchronously end-to-end, so partial failures surface in the HTTP
// response, unlike the fire-and-forget deploy sequence.
//
// Notes
// -----
// • Two concurrent remaps over overlapping records race at the store with
//   last-write-wins; the engine takes no locks.
// • Oxford commas, two spaces after periods.
package remap

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/yanizio/waypost/internal/metrics"
	"github.com/yanizio/waypost/internal/site"
	"github.com/yanizio/waypost/internal/weblog"
)

// ErrNoEligibleSites is returned when no record carries the eligibility
// flag; the handler maps it to 404.
var ErrNoEligibleSites = errors.New("no port-update eligible sites")

// Failure records one record that could not be persisted.
type Failure struct {
	ID    int64  `json:"id"`
	Error string `json:"error"`
}

// Report is the aggregate outcome of one invocation.  Code mirrors the
// HTTP-level result: 0 for full success (even with zero changes), 1 when
// any record failed.
type Report struct {
	Code         int       `json:"code"`
	MatchedCount int       `json:"matched_count"`
	ChangedCount int       `json:"changed_count"`
	UpdatedCount int       `json:"updated_count"`
	FailedCount  int       `json:"failed_count"`
	Failures     []Failure `json:"failures,omitempty"`
	CategoryIDs  []int64   `json:"category_ids,omitempty"`
	Message      string    `json:"message"`
}

// Engine runs remap invocations against one database.
type Engine struct {
	db   *sqlx.DB
	sink *weblog.Sink
}

// New returns a ready engine.
func New(db *sqlx.DB, sink *weblog.Sink) *Engine {
	return &Engine{db: db, sink: sink}
}

// Run executes one invocation.  Errors are either *ValidationError or
// ErrNoEligibleSites; everything past those early exits is reported through
// the Report, including partial failures.
func (e *Engine) Run(ctx context.Context, req Request) (*Report, error) {
	req.Normalize()
	if err := req.Validate(); err != nil {
		metrics.RemapRequestsTotal.WithLabelValues("rejected").Inc()
		return nil, err
	}

	candidates, err := site.AllEligible(ctx, e.db)
	if err != nil {
		return nil, fmt.Errorf("select eligible sites: %w", err)
	}
	if len(candidates) == 0 {
		metrics.RemapRequestsTotal.WithLabelValues("rejected").Inc()
		return nil, ErrNoEligibleSites
	}

	scope := filterScope(candidates, req.IDs, req.Domains)

	report := &Report{MatchedCount: len(scope)}
	touched := map[int64]struct{}{}

	for i := range scope {
		rec := &scope[i]
		changes := stageRecord(rec, req.Domains, req.Port)
		if len(changes) == 0 {
			continue // matched but already in the desired state
		}
		report.ChangedCount++

		if err := site.UpdateURLs(ctx, e.db, rec.ID, changes); err != nil {
			// Fail-independent: record it and keep going.
			report.FailedCount++
			report.Failures = append(report.Failures, Failure{ID: rec.ID, Error: err.Error()})
			e.sink.Write(ctx, weblog.Entry{
				Source:  "remap",
				Level:   weblog.LevelError,
				Message: fmt.Sprintf("site %d update failed: %v", rec.ID, err),
			})
			continue
		}
		report.UpdatedCount++
		touched[rec.CategoryID] = struct{}{}
	}

	for id := range touched {
		report.CategoryIDs = append(report.CategoryIDs, id)
	}

	e.summarize(ctx, &req, report)
	return report, nil
}

// summarize fills Code and Message and writes the closing log entry.
func (e *Engine) summarize(ctx context.Context, req *Request, rep *Report) {
	switch {
	case rep.FailedCount > 0:
		rep.Code = 1
		rep.Message = fmt.Sprintf(
			"port %s for %s: matched %d, updated %d, failed %d",
			req.portLabel(), req.criteria(),
			rep.MatchedCount, rep.UpdatedCount, rep.FailedCount)
		metrics.RemapRequestsTotal.WithLabelValues("partial_failure").Inc()
	case rep.MatchedCount == 0:
		rep.Message = fmt.Sprintf("no matching sites found for %s", req.criteria())
		metrics.RemapRequestsTotal.WithLabelValues("ok").Inc()
	default:
		rep.Message = fmt.Sprintf(
			"port %s for %s: matched %d, updated %d, failed 0",
			req.portLabel(), req.criteria(),
			rep.MatchedCount, rep.UpdatedCount)
		metrics.RemapRequestsTotal.WithLabelValues("ok").Inc()
	}
	metrics.RemapSitesUpdatedTotal.Add(float64(rep.UpdatedCount))

	level := weblog.LevelInfo
	if rep.FailedCount > 0 {
		level = weblog.LevelWarn
	}
	e.sink.Write(ctx, weblog.Entry{
		Source:  "remap",
		Level:   level,
		Message: rep.Message,
		Meta: map[string]any{
			"matched": rep.MatchedCount,
			"changed": rep.ChangedCount,
			"updated": rep.UpdatedCount,
			"failed":  rep.FailedCount,
		},
	})
}

// filterScope selects the candidates inside the request scope.  When both
// ids and patterns are supplied the conditions combine with AND, not OR:
// the id must be listed and at least one URL column must match a pattern.
func filterScope(candidates []site.Record, ids []int64, patterns []string) []site.Record {
	idSet := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		idSet[id] = struct{}{}
	}

	scope := make([]site.Record, 0, len(candidates))
	for _, rec := range candidates {
		if len(ids) > 0 {
			if _, ok := idSet[rec.ID]; !ok {
				continue
			}
		}
		if len(patterns) > 0 && !recordMatches(&rec, patterns) {
			continue
		}
		scope = append(scope, rec)
	}
	return scope
}

// recordMatches reports whether any URL column matches any pattern.
func recordMatches(rec *site.Record, patterns []string) bool {
	for _, f := range site.URLFields {
		if v, ok := rec.FieldValue(f); ok && DomainMatch(v, patterns) {
			return true
		}
	}
	return false
}

// stageRecord builds the change set for one in-scope record: every non-NULL
// URL column whose hostname matches the patterns, and whose rewritten form
// differs from the stored value.  The domain gate applies per column even
// when the record was selected by id, so an id-only request counts its
// records as matched but stages nothing.
func stageRecord(rec *site.Record, patterns []string, port *int) []site.URLChange {
	var changes []site.URLChange
	for _, f := range site.URLFields {
		v, ok := rec.FieldValue(f)
		if !ok || !DomainMatch(v, patterns) {
			continue
		}
		if next := RewritePort(v, port); next != v {
			changes = append(changes, site.URLChange{Field: f, Value: next})
		}
	}
	return changes
}

// DomainMatch reports whether rawURL's hostname equals any pattern or is a
// subdomain of it.  The suffix rule is anchored and dot-bounded, so
// "notexample.com" never matches the pattern "example.com".  Unparseable
// URLs never match.
func DomainMatch(rawURL string, patterns []string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	host := strings.ToLower(u.Hostname())
	if host == "" {
		return false
	}

	for _, p := range patterns {
		re := regexp.MustCompile(`^(.*\.)?` + regexp.QuoteMeta(strings.ToLower(p)) + `$`)
		if re.MatchString(host) {
			return true
		}
	}
	return false
}

// RewritePort returns rawURL with its port component set to port, or with
// the explicit port stripped when port is nil.  Unparseable input comes
// back unchanged; callers treat an identical result as "no rewrite
// occurred", not as success.
func RewritePort(rawURL string, port *int) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	host := u.Hostname()
	if host == "" {
		return rawURL
	}

	if port == nil {
		if strings.Contains(host, ":") { // bare IPv6 needs its brackets back
			host = "[" + host + "]"
		}
		u.Host = host
	} else {
		u.Host = joinHostPort(host, *port)
	}
	return u.String()
}

func joinHostPort(host string, port int) string {
	if strings.Contains(host, ":") {
		return "[" + host + "]:" + strconv.Itoa(port)
	}
	return host + ":" + strconv.Itoa(port)
}
