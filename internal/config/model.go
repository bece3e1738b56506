// internal/config/model.go
//
// Typed configuration model for Waypost.
//
// Context
// -------
// These structs define the shape of the configuration tree that
// `internal/config/loader.go` builds from three overlay layers:
//
//   • optional `conf/.env`                      – dotenv values,
//   • `conf/global.yaml`                        – primary static file,
//   • `WAYPOST_`-prefixed environment overrides – highest precedence.
//
// Any value whose string begins with the prefix `vault:` is resolved
// through the Vault client *after* unmarshalling, so the running app only
// ever sees plain strings.
//
// Validation happens immediately after unmarshal; the app fails fast if
// required fields are missing.  The Panel block is deliberately *not*
// required here: a dashboard without the deploy pipeline is a valid
// install, and the webhook handler reports missing panel config as a 500
// at request time instead.
//
// Notes
// -----
//   • Struct tags use `koanf:"…"`, not `yaml:"…"`—Koanf ignores `yaml` tags
//     unless configured otherwise.
//   • The `Paths` block is filled at runtime; YAML must not try to set it.
//   • Oxford commas, two spaces after periods.  No em-dash.

package config

//
// HTTP section
//

// HTTP holds web-server tunables.
type HTTP struct {
	ListenAddr string `koanf:"listen_addr" validate:"required,hostname_port"`
}

//
// Database section
//

// Database holds the MySQL DSN.  The DSN may be a `vault:` reference so the
// password never sits in a flat file.
type Database struct {
	DSN string `koanf:"dsn" validate:"required"`
}

//
// Redis section (optional)
//

// Redis configures the navigation-payload cache.  An empty Addr disables
// caching; every nav request then rebuilds from MySQL.
type Redis struct {
	Addr     string `koanf:"addr"`
	Password string `koanf:"password"`
	DB       int    `koanf:"db"`
}

//
// Webhook section
//

// Webhook holds the two inbound shared secrets.  They are independent:
// DeploySecret signs GitHub push payloads (HMAC-SHA256), RemapToken is a
// bearer token for the port-remap endpoint.
//
// An empty DeploySecret switches the deploy webhook to trust-all mode.
// That is a deliberate dev convenience; the handler logs a warning on
// every unsigned event it accepts.
type Webhook struct {
	DeploySecret string `koanf:"deploy_secret"`
	RemapToken   string `koanf:"remap_token" validate:"required"`
}

//
// Panel section
//

// Panel describes the external operator API that pulls code and restarts
// the deployed service.  All fields may stay empty on installs that never
// use the deploy webhook.
type Panel struct {
	APIURL        string   `koanf:"api_url" validate:"omitempty,url"`
	APIKey        string   `koanf:"api_key"`
	WebsiteID     int64    `koanf:"website_id"`
	PullCronjobID int64    `koanf:"pull_cronjob_id"` // 0 skips the pull step
	RestartDelay  int      `koanf:"restart_delay_ms"`
	Operations    []string `koanf:"operations"`
}

//
// Geo section (optional)
//

// Geo points at a MaxMind GeoLite2-City database used to tag log-entry IPs
// with a country code.  Empty path disables the lookup.
type Geo struct {
	DBPath string `koanf:"db_path"`
}

//
// Paths section (runtime only)
//

// Paths is resolved at runtime—never set in YAML or env.  The loader
// discovers `Root` (repo root or WAYPOST_ROOT override) so later code can
// build absolute file paths.
type Paths struct {
	Root string // WAYPOST_ROOT or discovered parent
}

//
// Root aggregate
//

// Config is the immutable aggregate returned by Load() and cached in an
// atomic.Pointer for lock-free reads throughout the app lifetime.
type Config struct {
	HTTP     HTTP     `koanf:"http"`
	Database Database `koanf:"database"`
	Redis    Redis    `koanf:"redis"`
	Webhook  Webhook  `koanf:"webhook"`
	Panel    Panel    `koanf:"panel"`
	Geo      Geo      `koanf:"geo"`
	Paths    Paths    `koanf:"-"` // not loaded from config files
}
