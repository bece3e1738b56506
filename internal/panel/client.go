// internal/panel/client.go
//
// Client for the external operator panel (1Panel-compatible API).
//
// Context
// -------
// The deploy pipeline drives two panel endpoints: a cronjob trigger that
// pulls the latest code, and a website-operate call that restarts the
// runtime.  Both authenticate with a timestamp-bound token:
//
//	token = hex(md5("1panel" + apiKey + unixSeconds))
//
// sent as `1Panel-Token` alongside `1Panel-Timestamp`.  The panel checks
// timestamp freshness server-side, so the credential is recomputed for
// every call and never cached.
//
// Calls return the raw response body regardless of HTTP status; the caller
// decides what a non-2xx means.  There is deliberately no client-side
// retry or timeout beyond http.Client defaults—the pipeline is
// fire-and-forget and logs whatever happens.
//
// Notes
// -----
// • Oxford commas, two spaces after periods.
package panel

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// tokenPrefix is the fixed literal the panel prepends before hashing.
const tokenPrefix = "1panel"

const (
	cronjobPath = "/api/v1/cronjobs/handle"
	websitePath = "/api/v1/websites/operate"
)

// ComputeCredential returns the lowercase-hex MD5 token for one timestamp.
// Deterministic for a fixed (apiKey, ts) pair.
func ComputeCredential(apiKey string, ts int64) string {
	sum := md5.Sum([]byte(tokenPrefix + apiKey + strconv.FormatInt(ts, 10)))
	return hex.EncodeToString(sum[:])
}

// Client talks to one panel instance.  Zero value is unusable; construct
// with NewClient.
type Client struct {
	baseURL string
	apiKey  string
	httpc   *http.Client
	now     func() time.Time // injectable for tests
}

// NewClient builds a client for the panel at baseURL.
func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		httpc:   http.DefaultClient,
		now:     time.Now,
	}
}

// ExecuteCronjob triggers the scheduled job with the given id and returns
// the response body.  err is non-nil only for transport-level failures;
// a non-2xx status is reported via status with the body still populated.
func (c *Client) ExecuteCronjob(ctx context.Context, id int64) (body string, status int, err error) {
	return c.post(ctx, cronjobPath, map[string]any{"id": id})
}

// OperateWebsite runs one operation ("restart", "stop", …) against the
// website with the given id.
func (c *Client) OperateWebsite(ctx context.Context, operate string, id int64) (body string, status int, err error) {
	// The panel expects the uppercase ID key on this endpoint.
	return c.post(ctx, websitePath, map[string]any{"operate": operate, "ID": id})
}

func (c *Client) post(ctx context.Context, path string, payload map[string]any) (string, int, error) {
	buf, err := json.Marshal(payload)
	if err != nil {
		return "", 0, fmt.Errorf("panel payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(buf))
	if err != nil {
		return "", 0, fmt.Errorf("panel request: %w", err)
	}

	ts := c.now().Unix()
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("1Panel-Token", ComputeCredential(c.apiKey, ts))
	req.Header.Set("1Panel-Timestamp", strconv.FormatInt(ts, 10))

	resp, err := c.httpc.Do(req)
	if err != nil {
		return "", 0, fmt.Errorf("panel %s: %w", path, err)
	}
	defer resp.Body.Close()

	// Read the full body regardless of status; the pipeline logs it as-is.
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", resp.StatusCode, fmt.Errorf("panel %s read body: %w", path, err)
	}
	return string(b), resp.StatusCode, nil
}
