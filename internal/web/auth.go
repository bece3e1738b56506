// internal/web/auth.go
//
// Admin login, logout, and the session-guard middleware.
package web

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/yanizio/waypost/internal/requestinfo"
	"github.com/yanizio/waypost/internal/session"
	"github.com/yanizio/waypost/internal/user"
	"github.com/yanizio/waypost/internal/weblog"
)

// handleLogin implements POST /api/auth/login.  On success it returns the
// bearer token in the body and also sets the HttpOnly cookie for browser
// clients.
func handleLogin(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		info := requestinfo.FromRequest(r)

		var body struct {
			Username string `json:"username"`
			Password string `json:"password"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil ||
			body.Username == "" || body.Password == "" {
			writeMessage(w, http.StatusBadRequest, "username and password required")
			return
		}

		rec, err := user.ByUsername(ctx, d.DB, body.Username)
		if err != nil && !errors.Is(err, user.ErrNotFound) {
			writeMessage(w, http.StatusInternalServerError, "login failed")
			return
		}
		if rec == nil || !rec.CheckPassword(body.Password) {
			d.Sink.Write(ctx, weblog.Entry{
				Source:  "admin",
				Level:   weblog.LevelWarn,
				Message: "login failed for " + body.Username,
				Status:  http.StatusUnauthorized,
				IP:      info.IP,
				Meta:    map[string]any{"browser": info.Browser, "os": info.OS},
			})
			writeMessage(w, http.StatusUnauthorized, "incorrect username or password")
			return
		}

		tok := d.Sessions.Issue(rec.Username)
		session.SetCookie(w, r, tok, session.DefaultTTL)

		d.Sink.Write(ctx, weblog.Entry{
			Source:  "admin",
			Level:   weblog.LevelInfo,
			Message: rec.Username + " logged in",
			IP:      info.IP,
			Meta:    map[string]any{"browser": info.Browser, "os": info.OS, "country": info.CountryISO},
		})
		writeJSON(w, http.StatusOK, map[string]string{
			"message": "logged in",
			"token":   tok,
		})
	}
}

// handleLogout implements POST /api/auth/logout.
func handleLogout(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		d.Sessions.Revoke(session.TokenFromRequest(r))
		session.ClearCookie(w)
		writeMessage(w, http.StatusOK, "logged out")
	}
}

// requireSession guards the admin API.  It accepts the token from either
// transport and rejects with 401 otherwise.
func requireSession(d Deps) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := d.Sessions.Verify(session.TokenFromRequest(r)); !ok {
				writeMessage(w, http.StatusUnauthorized, "authentication required")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
