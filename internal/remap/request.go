// internal/remap/request.go
//
// Remap request shape and validation.
//
// Context
// -------
// The port-remap webhook accepts `{port, domains, ids}`.  Checks run in a
// fixed order and fail fast with a message naming the offending value, so
// an operator can fix the request without digging through logs:
//
//	1. port, when present, must fit [0, 65535]
//	2. at least one of {domains, ids} must be non-empty after trimming
//	3. each domain must satisfy a conservative hostname grammar
//	4. each id must be positive
//
// Notes
// -----
// • Oxford commas, two spaces after periods.
package remap

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// StringList accepts either a JSON string or an array of strings, since
// callers commonly send `"domains": "example.com"` for a single pattern.
type StringList []string

func (s *StringList) UnmarshalJSON(b []byte) error {
	if len(b) > 0 && b[0] == '"' {
		var one string
		if err := json.Unmarshal(b, &one); err != nil {
			return err
		}
		*s = StringList{one}
		return nil
	}
	var many []string
	if err := json.Unmarshal(b, &many); err != nil {
		return err
	}
	*s = many
	return nil
}

// Request is one remap invocation.  A nil Port means "strip the explicit
// port", reverting matched URLs to their scheme default.
type Request struct {
	Port    *int       `json:"port"`
	Domains StringList `json:"domains"`
	IDs     []int64    `json:"ids"`
}

// ValidationError carries an operator-readable rejection reason.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return e.Reason }

// hostnameRe is the conservative grammar for a domain pattern: dot-separated
// labels of alphanumerics and hyphens, no label starting or ending with a
// hyphen.
var hostnameRe = regexp.MustCompile(
	`^[A-Za-z0-9](?:[A-Za-z0-9-]*[A-Za-z0-9])?` +
		`(?:\.[A-Za-z0-9](?:[A-Za-z0-9-]*[A-Za-z0-9])?)*$`)

// Normalize trims domain patterns and drops empties in place.  Call before
// Validate.
func (r *Request) Normalize() {
	kept := r.Domains[:0]
	for _, d := range r.Domains {
		if d = strings.TrimSpace(d); d != "" {
			kept = append(kept, strings.ToLower(d))
		}
	}
	r.Domains = kept
}

// Validate applies the ordered rules above.  The returned error is always a
// *ValidationError.
func (r *Request) Validate() error {
	if r.Port != nil {
		if p := *r.Port; p < 0 || p > 65535 {
			return &ValidationError{Reason: fmt.Sprintf("port %d is outside 0-65535", p)}
		}
	}
	if len(r.Domains) == 0 && len(r.IDs) == 0 {
		return &ValidationError{Reason: "at least one domain pattern or site id is required"}
	}
	for _, d := range r.Domains {
		if !hostnameRe.MatchString(d) {
			return &ValidationError{Reason: fmt.Sprintf("domain pattern %q is not a valid hostname", d)}
		}
	}
	for _, id := range r.IDs {
		if id <= 0 {
			return &ValidationError{Reason: fmt.Sprintf("site id %d is not a positive integer", id)}
		}
	}
	return nil
}

// portLabel describes the target in human-readable report messages.
func (r *Request) portLabel() string {
	if r.Port == nil {
		return "removed"
	}
	return fmt.Sprintf("set to %d", *r.Port)
}

// criteria describes the match scope for report messages.
func (r *Request) criteria() string {
	parts := make([]string, 0, 2)
	if len(r.Domains) > 0 {
		parts = append(parts, "domains "+strings.Join(r.Domains, ", "))
	}
	if len(r.IDs) > 0 {
		ids := make([]string, len(r.IDs))
		for i, id := range r.IDs {
			ids[i] = fmt.Sprintf("%d", id)
		}
		parts = append(parts, "ids "+strings.Join(ids, ", "))
	}
	return strings.Join(parts, " and ")
}
