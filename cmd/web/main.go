// cmd/web/main.go
//
// Waypost – HTTP entry point.
//
// Boot sequence
// -------------
//
//  1. Load env vars (jail-wide file → .env fallback).
//
//  2. Optional Vault client when VAULT_ADDR is set, so config values may
//     reference secrets.
//
//  3. Load layered config (conf/.env → conf/global.yaml → WAYPOST_*).
//
//  4. Start daily rotating logger (tees to console when running in a TTY).
//
//  5. Open the MySQL pool and log directory counts as an early sanity
//     check.
//
//  6. Optional GeoIP database and redis nav cache.
//
//  7. Build the chi router (public nav, webhooks, admin API, /metrics)
//     and serve until SIGINT/SIGTERM, then drain gracefully.
//
// Large comment blocks are framed by blank “//” lines; inline comments use
// a single “//”.
package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/yanizio/waypost/internal/config"
	"github.com/yanizio/waypost/internal/database"
	"github.com/yanizio/waypost/internal/logger"
	"github.com/yanizio/waypost/internal/navcache"
	"github.com/yanizio/waypost/internal/requestinfo"
	"github.com/yanizio/waypost/internal/server"
	"github.com/yanizio/waypost/internal/session"
	"github.com/yanizio/waypost/internal/vault"
	"github.com/yanizio/waypost/internal/web"
	"github.com/yanizio/waypost/internal/weblog"
)

const serverEnvPath = "/usr/local/etc/waypost/global.env"

// loadEnv prefers the jail-wide env file; on dev it falls back to .env.
func loadEnv() {
	if _, err := os.Stat(serverEnvPath); err == nil {
		_ = godotenv.Load(serverEnvPath)
		return
	}
	_ = godotenv.Load()
}

// runningInTTY returns true when stdout is a character device.
func runningInTTY() bool {
	fi, err := os.Stdout.Stat()
	if err != nil {
		return false
	}
	return fi.Mode()&os.ModeCharDevice != 0
}

func init() { loadEnv() }

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	//
	// ── 1.  Vault (optional) and config ────────────────────────────────
	//
	var vc *vault.Client
	if os.Getenv("VAULT_ADDR") != "" {
		var err error
		vc, err = vault.New(ctx, zap.S().Infof)
		if err != nil {
			log.Fatalf("vault client: %v", err)
		}
	}

	cfg, err := config.Load(ctx, vc)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logOut, err := logger.New(cfg.Paths.Root, runningInTTY())
	if err != nil {
		log.Fatalf("start logger: %v", err)
	}
	defer func() { _ = logOut.Sync() }()

	//
	// ── 2.  MySQL connect ──────────────────────────────────────────────
	//
	logOut.Info("connecting to database …")
	db, err := database.Open(cfg.Database.DSN)
	if err != nil {
		logOut.Fatalf("connect database: %v", err)
	}
	defer db.Close()
	logOut.Info("database online")

	// Log directory size as an early sanity check.
	var sites, cats int
	_ = db.Get(&sites, `SELECT COUNT(*) FROM site`)
	_ = db.Get(&cats, `SELECT COUNT(*) FROM category`)
	logOut.Infof("%d site(s) in %d categor(ies) found", sites, cats)

	//
	// ── 3.  Optional collaborators: GeoIP and redis ────────────────────
	//
	if cfg.Geo.DBPath != "" {
		if err := requestinfo.InitGeo(cfg.Geo.DBPath); err != nil {
			logOut.Warnf("geoip disabled: %v", err)
		}
	}

	var rdb *redis.Client
	if cfg.Redis.Addr != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			logOut.Warnf("redis unreachable, nav cache disabled: %v", err)
			rdb = nil
		}
	}

	//
	// ── 4.  Router and server ──────────────────────────────────────────
	//
	deps := web.Deps{
		DB:       db,
		Cfg:      cfg,
		Sink:     weblog.NewSink(db),
		Sessions: session.NewStore(session.DefaultTTL),
		Nav:      navcache.New(rdb),
	}

	srv := server.New(cfg.HTTP.ListenAddr, web.Router(deps))

	go func() {
		logOut.Infof("listening on %s", cfg.HTTP.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logOut.Fatalf("http server: %v", err)
		}
	}()

	<-ctx.Done()
	logOut.Info("shutting down …")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logOut.Errorf("shutdown: %v", err)
	}
}
