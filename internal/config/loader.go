// internal/config/loader.go
//
// Configuration loader.
//
/*
Context
--------
`Load()` builds one immutable `Config` struct from three layers (highest
precedence last):

  1. Optional `conf/.env` dotenv file.
  2. `conf/global.yaml`.
  3. Environment variables prefixed `WAYPOST_`, where `__` maps to “.”
     (e.g., `WAYPOST_HTTP__LISTEN_ADDR → http.listen_addr`).

After merging, the tree is unmarshalled into strongly-typed structs,
secret references are resolved through Vault, defaults are applied for
the panel block, the whole thing is validated, enriched with the runtime
root path, and cached in an `atomic.Pointer` for lock-free reads.
`Reload()` simply calls `Load()` again and swaps the pointer.

Instrumentation
---------------
  • DEBUG spans — root discovery, YAML read, env overlay.
  • ERROR spans — YAML parse, env overlay, unmarshal, validation failures.
  • INFO  span  — final “config loaded” with key highlights.
  • Logs use the global *sugared* logger (`zap.S()`) so early boot issues
    surface even before the file logger is installed (bootstrap console).

Notes
-----
  • `rootDir()` climbs the cwd tree until it finds `conf/global.yaml`;
    this lets `go run ./cmd/web` work from any sub-directory.
  • Oxford commas, two spaces after periods.
*/
package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	koanf "github.com/knadh/koanf/v2"
	"go.uber.org/zap"

	"github.com/yanizio/waypost/internal/vault"
)

var current atomic.Pointer[Config]

// Defaults for the deploy sequence when the YAML omits them.
const (
	defaultRestartDelayMS = 30_000
	defaultOperation      = "restart"
)

/*──────────────────────────── root discovery ───────────────────────────────*/

// rootDir resolves WAYPOST_ROOT or climbs directories until conf/global.yaml
// is found.  Falls back to executable heuristic for production layout.
func rootDir() string {
	if r := os.Getenv("WAYPOST_ROOT"); r != "" {
		return r
	}

	wd, _ := os.Getwd()
	dir := wd
	for {
		if _, err := os.Stat(filepath.Join(dir, "conf", "global.yaml")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir { // reached filesystem root
			break
		}
		dir = parent
	}

	exe, _ := os.Executable()
	if filepath.Base(filepath.Dir(exe)) == "bin" {
		return filepath.Dir(filepath.Dir(exe))
	}
	return wd
}

/*─────────────────────────────── loader ───────────────────────────────────*/

// Load reads .env, YAML, env overrides, resolves secrets, validates, and
// caches Config.  The Vault client may be nil when no config value carries
// a `vault:` reference.
func Load(ctx context.Context, vc *vault.Client) (*Config, error) {
	root := rootDir()
	zap.S().Debugw("config root resolved", "root", root)

	// .env (optional, no error if missing)
	_ = godotenv.Load(filepath.Join(root, "conf", ".env"))

	k := koanf.New(".")

	yamlPath := filepath.Join(root, "conf", "global.yaml")
	if err := k.Load(file.Provider(yamlPath), yaml.Parser()); err != nil {
		zap.S().Errorw("config yaml load failed", "file", yamlPath, "err", err)
		return nil, err
	}
	zap.S().Debugw("config yaml loaded", "file", yamlPath)

	// Env overrides: WAYPOST_HTTP__LISTEN_ADDR → http.listen_addr
	if err := k.Load(env.Provider("WAYPOST_", ".", func(s string) string {
		return strings.ToLower(strings.ReplaceAll(s, "__", "."))
	}), nil); err != nil {
		zap.S().Errorw("config env overlay failed", "err", err)
		return nil, err
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		zap.S().Errorw("config unmarshal failed", "err", err)
		return nil, err
	}

	if err := resolveSecrets(ctx, vc, &cfg); err != nil {
		zap.S().Errorw("config secret resolution failed", "err", err)
		return nil, err
	}

	applyDefaults(&cfg)

	cfg.Paths.Root = root
	if err := validateStruct(&cfg); err != nil {
		zap.S().Errorw("config validation failed", "err", err)
		return nil, err
	}

	current.Store(&cfg)
	zap.S().Infow("config loaded",
		"listen_addr", cfg.HTTP.ListenAddr,
		"redis", cfg.Redis.Addr != "",
		"panel", cfg.Panel.APIURL != "",
		"root", cfg.Paths.Root,
	)
	return &cfg, nil
}

// resolveSecrets rewrites every `vault:`-prefixed value in place.  A nil
// client with a pending reference is a hard error, not a silent pass.
func resolveSecrets(ctx context.Context, vc *vault.Client, cfg *Config) error {
	refs := []*string{
		&cfg.Database.DSN,
		&cfg.Webhook.DeploySecret,
		&cfg.Webhook.RemapToken,
		&cfg.Panel.APIKey,
	}
	for _, p := range refs {
		if !vault.IsRef(*p) {
			continue
		}
		if vc == nil {
			return fmt.Errorf("config value %q needs Vault, but no client is configured", *p)
		}
		v, err := vc.Resolve(ctx, *p)
		if err != nil {
			return err
		}
		*p = v
	}
	return nil
}

func applyDefaults(cfg *Config) {
	if cfg.Panel.RestartDelay == 0 {
		cfg.Panel.RestartDelay = defaultRestartDelayMS
	}
	if len(cfg.Panel.Operations) == 0 {
		cfg.Panel.Operations = []string{defaultOperation}
	}
}

/*──────────────────────────── helpers ─────────────────────────────────────*/

func Get() *Config { return current.Load() }
