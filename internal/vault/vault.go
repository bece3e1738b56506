// internal/vault/vault.go
//
// Vault client wrapper for Waypost.
//
// Context
// -------
//   - Wraps the HashiCorp Vault Go SDK behind a small, concurrency-safe
//     client used by the config loader to resolve secret references.
//   - Config values may carry the form `vault:<mount>/<path>#<key>`; the
//     loader calls Resolve() on each such value before the rest of the app
//     ever sees it, so secrets never live in YAML or env files.
//   - A background loop keeps the auth token renewed for long-running
//     processes.
//
// Public workflow
// ---------------
//  1. cli, err := vault.New(ctx, zap.S().Infof)        // during boot.
//  2. val, err := cli.Resolve(ctx, "vault:kv/waypost#panel_api_key")
//
// Notes
// -----
// • Oxford commas, two spaces after periods.
package vault

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	vault "github.com/hashicorp/vault/api"
)

// RefPrefix marks a config value as a Vault reference.
const RefPrefix = "vault:"

// defaultTTL is how long resolved values stay in the in-process cache.
const defaultTTL = 5 * time.Minute

// IsRef reports whether a config value should be resolved through Vault.
func IsRef(v string) bool { return strings.HasPrefix(v, RefPrefix) }

// Client is safe for concurrent use.  Create once at startup.  The zero
// value is invalid.
type Client struct {
	api   *vault.Client
	logFn func(string, ...any)

	mu    sync.RWMutex
	cache map[string]cachedVal // "<path>#<key>" → value + expiry
}

type cachedVal struct {
	val string
	exp time.Time
}

// New constructs a Vault client and starts a background token-renewal loop.
// It reads VAULT_ADDR and VAULT_TOKEN from the environment, like the CLI.
func New(ctx context.Context, logFn func(string, ...any)) (*Client, error) {
	if logFn == nil {
		logFn = func(string, ...any) {}
	}

	cfg := vault.DefaultConfig()
	if err := cfg.ReadEnvironment(); err != nil {
		return nil, fmt.Errorf("vault env cfg: %w", err)
	}

	apiCli, err := vault.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("vault api: %w", err)
	}
	if tok := os.Getenv("VAULT_TOKEN"); tok != "" {
		apiCli.SetToken(tok)
	}

	c := &Client{
		api:   apiCli,
		logFn: logFn,
		cache: make(map[string]cachedVal),
	}
	go c.renewLoop(ctx)
	return c, nil
}

// Resolve turns a `vault:<mount>/<path>#<key>` reference into its secret
// value.  Non-reference inputs are returned unchanged so callers can pass
// every config value through without branching.
func (c *Client) Resolve(ctx context.Context, ref string) (string, error) {
	if !IsRef(ref) {
		return ref, nil
	}
	spec := strings.TrimPrefix(ref, RefPrefix)
	path, key, ok := strings.Cut(spec, "#")
	if !ok || path == "" || key == "" {
		return "", fmt.Errorf("malformed vault reference %q", ref)
	}
	return c.getKV(ctx, path, key, defaultTTL)
}

// getKV fetches a single key from a KV-v2 secret, caching the result for
// ttl when ttl > 0.
func (c *Client) getKV(ctx context.Context, secretPath, key string, ttl time.Duration) (string, error) {
	if secretPath == "" || key == "" {
		return "", errors.New("secret path and key must be non-empty")
	}
	canonical := secretPath + "#" + key

	if ttl > 0 {
		c.mu.RLock()
		if cv, ok := c.cache[canonical]; ok && time.Now().Before(cv.exp) {
			c.mu.RUnlock()
			return cv.val, nil
		}
		c.mu.RUnlock()
	}

	mount, rel := splitMount(secretPath)
	sec, err := c.api.KVv2(mount).Get(ctx, rel)
	if err != nil {
		return "", fmt.Errorf("vault get %s: %w", secretPath, err)
	}

	raw, ok := sec.Data[key]
	if !ok {
		return "", fmt.Errorf("key %q not found in secret %q", key, secretPath)
	}
	sval, ok := raw.(string)
	if !ok {
		return "", fmt.Errorf("value at %s is not a string", canonical)
	}

	if ttl > 0 {
		c.mu.Lock()
		c.cache[canonical] = cachedVal{val: sval, exp: time.Now().Add(ttl)}
		c.mu.Unlock()
	}
	return sval, nil
}

// renewLoop keeps the token fresh.  Non-renewable tokens are re-probed on a
// long interval instead of erroring out, so dev-mode root tokens work too.
func (c *Client) renewLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		sec, err := c.api.Auth().Token().RenewSelf(0)
		if err != nil {
			c.logFn("vault: token renew self failed: %v", err)
			sleepCtx(ctx, 30*time.Second)
			continue
		}
		if sec == nil || sec.Auth == nil || !sec.Auth.Renewable {
			c.logFn("vault: token is not renewable, sleeping 1h")
			sleepCtx(ctx, time.Hour)
			continue
		}

		watcher, err := c.api.NewLifetimeWatcher(&vault.LifetimeWatcherInput{
			Secret: sec,
		})
		if err != nil {
			c.logFn("vault: lifetime watcher init: %v", err)
			sleepCtx(ctx, 30*time.Second)
			continue
		}
		go watcher.Start()

		running := true
		for running {
			select {
			case <-ctx.Done():
				watcher.Stop()
				return
			case err := <-watcher.DoneCh():
				watcher.Stop()
				if err != nil {
					c.logFn("vault: token renewal stopped: %v", err)
				}
				sleepCtx(ctx, 15*time.Second)
				running = false
			case ev := <-watcher.RenewCh():
				if ev != nil && ev.Secret != nil && ev.Secret.Auth != nil {
					c.logFn("vault: token renewed, ttl=%ds", ev.Secret.Auth.LeaseDuration)
				}
			}
		}
	}
}

func splitMount(p string) (mount, rel string) {
	mount, rel, _ = strings.Cut(p, "/")
	return
}

func sleepCtx(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
