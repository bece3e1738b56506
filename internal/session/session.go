// internal/session/session.go
//
// Admin-console sessions.
//
// Context
//   Login issues an opaque random token that travels either as an
//   `Authorization: Bearer` header (API clients) or as an HttpOnly cookie
//   (the console UI).  Tokens live in a mutex-guarded in-process map with a
//   sliding expiry; a restart logs everyone out, which is acceptable for a
//   single-binary self-hosted dashboard.
//
//   This store guards the admin surface only.  The two webhook endpoints
//   authenticate with their own shared secrets and never touch it.
//
//------------------------------------------------------------------------------

package session

import (
	"crypto/rand"
	"encoding/hex"
	"net/http"
	"strings"
	"sync"
	"time"
)

const (
	cookieName = "waypost_session"

	// DefaultTTL is the sliding session lifetime.
	DefaultTTL = 14 * 24 * time.Hour
)

type entry struct {
	username string
	expires  time.Time
}

// Store holds live tokens.  Safe for concurrent use.
type Store struct {
	mu     sync.Mutex
	tokens map[string]entry
	ttl    time.Duration
}

// NewStore returns a store with the given token lifetime.
func NewStore(ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Store{tokens: make(map[string]entry), ttl: ttl}
}

// Issue mints a token for username.
func (s *Store) Issue(username string) string {
	buf := make([]byte, 32)
	_, _ = rand.Read(buf) // crypto/rand.Read never fails on supported platforms
	tok := hex.EncodeToString(buf)

	s.mu.Lock()
	s.tokens[tok] = entry{username: username, expires: time.Now().Add(s.ttl)}
	s.mu.Unlock()
	return tok
}

// Verify resolves a token to its username, sliding the expiry on success.
func (s *Store) Verify(token string) (string, bool) {
	if token == "" {
		return "", false
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.tokens[token]
	if !ok {
		return "", false
	}
	if time.Now().After(e.expires) {
		delete(s.tokens, token)
		return "", false
	}
	e.expires = time.Now().Add(s.ttl)
	s.tokens[token] = e
	return e.username, true
}

// Revoke drops a token (logout).  Unknown tokens are a no-op.
func (s *Store) Revoke(token string) {
	s.mu.Lock()
	delete(s.tokens, token)
	s.mu.Unlock()
}

// TokenFromRequest extracts the session token: Authorization bearer first,
// cookie second.
func TokenFromRequest(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		if tok, ok := strings.CutPrefix(h, "Bearer "); ok {
			return tok
		}
	}
	if c, err := r.Cookie(cookieName); err == nil {
		return c.Value
	}
	return ""
}

// SetCookie attaches the token for browser clients.
func SetCookie(w http.ResponseWriter, r *http.Request, token string, ttl time.Duration) {
	http.SetCookie(w, &http.Cookie{
		Name:     cookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
		Expires:  time.Now().Add(ttl),
	})
}

// ClearCookie removes the session cookie.
func ClearCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     cookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
	})
}
