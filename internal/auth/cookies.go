package auth

import (
	"crypto/rand"
	"encoding/base64"
	"net/http"
	"time"
)

const (
	// AccessCookie carries the access JWT, HTTP-only, sent with every call.
	AccessCookie = "access_token"
	// RefreshCookie carries the refresh JWT, HTTP-only, scoped to the auth
	// endpoints so it never travels with regular API traffic.
	RefreshCookie = "refresh_token"
	// CSRFCookie is readable by scripts; its value must be echoed in the
	// X-CSRF-Token header on mutating requests.
	CSRFCookie = "csrf_token"

	refreshPath = "/v1/auth"
)

// CookieManager writes and clears the session cookie triplet.
type CookieManager struct {
	secure     bool
	accessTTL  time.Duration
	refreshTTL time.Duration
}

func NewCookieManager(secure bool, accessTTL, refreshTTL time.Duration) *CookieManager {
	return &CookieManager{secure: secure, accessTTL: accessTTL, refreshTTL: refreshTTL}
}

// SetSession writes the three session cookies for a freshly issued pair.
func (m *CookieManager) SetSession(w http.ResponseWriter, pair TokenPair, csrfToken string) {
	http.SetCookie(w, &http.Cookie{
		Name:     AccessCookie,
		Value:    pair.AccessToken,
		Path:     "/",
		MaxAge:   int(m.accessTTL.Seconds()),
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	})
	http.SetCookie(w, &http.Cookie{
		Name:     RefreshCookie,
		Value:    pair.RefreshToken,
		Path:     refreshPath,
		MaxAge:   int(m.refreshTTL.Seconds()),
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	})
	http.SetCookie(w, &http.Cookie{
		Name:     CSRFCookie,
		Value:    csrfToken,
		Path:     "/",
		MaxAge:   int(m.refreshTTL.Seconds()),
		HttpOnly: false,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// Clear expires all session cookies.
func (m *CookieManager) Clear(w http.ResponseWriter) {
	for _, c := range []struct {
		name, path string
	}{
		{AccessCookie, "/"},
		{RefreshCookie, refreshPath},
		{CSRFCookie, "/"},
	} {
		http.SetCookie(w, &http.Cookie{
			Name:     c.name,
			Value:    "",
			Path:     c.path,
			Expires:  time.Unix(0, 0),
			MaxAge:   -1,
			HttpOnly: c.name != CSRFCookie,
			Secure:   m.secure,
			SameSite: http.SameSiteLaxMode,
		})
	}
}

// NewCSRFToken generates a random double-submit token.
func NewCSRFToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
