//
//  internal/requestinfo/requestinfo.go
//
//  Per-request metadata for log entries: client IP (proxy-aware), a
//  user-agent classification, and a best-effort GeoIP country code.
//  The structs are inert—no handles, no large buffers—so they are safe
//  to attach to weblog entries or JSON-encode.
//
//  Dependencies
//  • github.com/avct/uasurfer          (UA parsing)
//  • github.com/oschwald/geoip2-golang (MaxMind lookup)
//

package requestinfo

import (
	"net"
	"net/http"
	"strings"

	"github.com/avct/uasurfer"
	"github.com/oschwald/geoip2-golang"
)

// Info summarises one inbound request for the log sink.
type Info struct {
	IP         string // client address, X-Forwarded-For aware
	Browser    string // "Chrome", "Firefox", or "" when unparseable
	OS         string // "Linux", "macOS", …
	IsBot      bool   // true for crawler and hook-sender signatures
	CountryISO string // "US", "FR", … when GeoIP is configured
}

// geoReader is a package-wide MaxMind handle.  Safe for concurrent reads,
// which is all we perform.  Nil when GeoIP is not configured.
var geoReader *geoip2.Reader

// InitGeo opens the GeoLite2 database.  Call once from main when
// cfg.Geo.DBPath is set; skipping it just leaves CountryISO empty.
func InitGeo(dbPath string) error {
	r, err := geoip2.Open(dbPath)
	if err != nil {
		return err
	}
	geoReader = r
	return nil
}

// FromRequest builds an Info from the request headers.
func FromRequest(r *http.Request) Info {
	info := Info{IP: ClientIP(r)}

	if ua := r.UserAgent(); ua != "" {
		u := uasurfer.Parse(ua)
		info.Browser = strings.TrimPrefix(u.Browser.Name.String(), "Browser")
		osName := strings.TrimPrefix(u.OS.Name.String(), "OS")
		if osName == "MacOSX" {
			osName = "macOS"
		}
		info.OS = osName
		info.IsBot = u.IsBot()
	}

	if geoReader != nil {
		if ip := net.ParseIP(info.IP); ip != nil {
			if c, err := geoReader.Country(ip); err == nil {
				info.CountryISO = c.Country.IsoCode
			}
		}
	}
	return info
}

// ClientIP returns the originating address: the first X-Forwarded-For hop
// when present (Waypost runs behind a TLS-terminating proxy), otherwise
// RemoteAddr without its port.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
