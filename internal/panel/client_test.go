// internal/panel/client_test.go
//
// Unit-tests for the operator panel client: credential derivation and the
// two call shapes, against an httptest server.
//
// Run: go test ./internal/panel -v

package panel

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"
)

func TestComputeCredential(t *testing.T) {
	const key = "api-key"
	const ts = int64(1_700_000_000)

	sum := md5.Sum([]byte("1panel" + key + strconv.FormatInt(ts, 10)))
	want := hex.EncodeToString(sum[:])

	if got := ComputeCredential(key, ts); got != want {
		t.Fatalf("ComputeCredential = %q, want %q", got, want)
	}
	// Deterministic for fixed inputs.
	if ComputeCredential(key, ts) != ComputeCredential(key, ts) {
		t.Fatal("credential not deterministic")
	}
	// Any input change must change the token.
	if ComputeCredential(key, ts+1) == want {
		t.Fatal("timestamp change did not change credential")
	}
	if ComputeCredential("other", ts) == want {
		t.Fatal("key change did not change credential")
	}
}

func TestOperateWebsiteSendsCredentialHeaders(t *testing.T) {
	var gotToken, gotTS string
	var gotBody map[string]any

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotToken = r.Header.Get("1Panel-Token")
		gotTS = r.Header.Get("1Panel-Timestamp")
		b, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(b, &gotBody)
		_, _ = w.Write([]byte(`{"message":"ok"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "key")
	fixed := time.Unix(1_700_000_000, 0)
	c.now = func() time.Time { return fixed }

	body, status, err := c.OperateWebsite(context.Background(), "restart", 12)
	if err != nil {
		t.Fatalf("OperateWebsite error: %v", err)
	}
	if status != http.StatusOK || body != `{"message":"ok"}` {
		t.Fatalf("unexpected response: %d %q", status, body)
	}
	if gotTS != "1700000000" {
		t.Fatalf("timestamp header = %q", gotTS)
	}
	if gotToken != ComputeCredential("key", fixed.Unix()) {
		t.Fatalf("token header does not match credential for the sent timestamp")
	}
	if gotBody["operate"] != "restart" || gotBody["ID"] != float64(12) {
		t.Fatalf("unexpected payload: %v", gotBody)
	}
}

func TestExecuteCronjobReturnsBodyOnNon2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("upstream busy"))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "key")
	body, status, err := c.ExecuteCronjob(context.Background(), 4)
	if err != nil {
		t.Fatalf("transport error on non-2xx: %v", err)
	}
	if status != http.StatusBadGateway || body != "upstream busy" {
		t.Fatalf("body must be read regardless of status, got %d %q", status, body)
	}
}
