package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"

	"github.com/plabarre/agenda/internal/config"
	"github.com/plabarre/agenda/internal/store"
)

const stateCookie = "oidc_state"

// OIDCFlow implements the optional single sign-on login against an OpenID
// Connect provider. Accounts are matched or created by email; the cookie
// session issued afterwards is identical to a password login.
type OIDCFlow struct {
	cfg      *config.Config
	users    store.UserRepository
	issuer   *TokenIssuer
	cookies  *CookieManager
	provider *oidc.Provider
	oauth    oauth2.Config
	verifier *oidc.IDTokenVerifier
}

// NewOIDCFlow discovers the provider. Returns nil when SSO is not configured.
func NewOIDCFlow(ctx context.Context, cfg *config.Config, users store.UserRepository, issuer *TokenIssuer, cookies *CookieManager) (*OIDCFlow, error) {
	if !cfg.OIDC.Enabled {
		return nil, nil
	}
	provider, err := oidc.NewProvider(ctx, cfg.OIDC.IssuerURL)
	if err != nil {
		return nil, fmt.Errorf("oidc discovery: %w", err)
	}
	redirect := strings.TrimSuffix(cfg.BaseURL, "/") + cfg.OIDC.RedirectPath
	return &OIDCFlow{
		cfg:     cfg,
		users:   users,
		issuer:  issuer,
		cookies: cookies,
		oauth: oauth2.Config{
			ClientID:     cfg.OIDC.ClientID,
			ClientSecret: cfg.OIDC.ClientSecret,
			Endpoint:     provider.Endpoint(),
			RedirectURL:  redirect,
			Scopes:       []string{oidc.ScopeOpenID, "profile", "email"},
		},
		provider: provider,
		verifier: provider.Verifier(&oidc.Config{ClientID: cfg.OIDC.ClientID}),
	}, nil
}

// Begin redirects the browser to the provider's authorization endpoint.
func (f *OIDCFlow) Begin(w http.ResponseWriter, r *http.Request) {
	state, err := NewCSRFToken()
	if err != nil {
		http.Error(w, "failed to start sso flow", http.StatusInternalServerError)
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     stateCookie,
		Value:    state,
		Path:     "/",
		MaxAge:   300,
		HttpOnly: true,
		Secure:   f.cfg.Secure(),
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, f.oauth.AuthCodeURL(state), http.StatusFound)
}

// Callback validates state, exchanges the code and logs the user in.
func (f *OIDCFlow) Callback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	state, err := r.Cookie(stateCookie)
	if err != nil || state.Value == "" || r.URL.Query().Get("state") != state.Value {
		http.Error(w, "invalid sso state", http.StatusBadRequest)
		return
	}
	http.SetCookie(w, &http.Cookie{Name: stateCookie, Value: "", Path: "/", MaxAge: -1})

	user, err := f.exchange(ctx, r.URL.Query().Get("code"))
	if err != nil {
		http.Error(w, "sso login failed", http.StatusUnauthorized)
		return
	}
	pair, err := f.issuer.Pair(user.ID)
	if err != nil {
		http.Error(w, "sso login failed", http.StatusInternalServerError)
		return
	}
	csrf, err := NewCSRFToken()
	if err != nil {
		http.Error(w, "sso login failed", http.StatusInternalServerError)
		return
	}
	f.cookies.SetSession(w, pair, csrf)
	http.Redirect(w, r, "/", http.StatusFound)
}

func (f *OIDCFlow) exchange(ctx context.Context, code string) (*store.User, error) {
	if code == "" {
		return nil, errors.New("missing authorization code")
	}
	token, err := f.oauth.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("code exchange: %w", err)
	}
	rawID, ok := token.Extra("id_token").(string)
	if !ok {
		return nil, errors.New("token response carries no id_token")
	}
	idToken, err := f.verifier.Verify(ctx, rawID)
	if err != nil {
		return nil, fmt.Errorf("verify id token: %w", err)
	}

	var claims struct {
		Email string `json:"email"`
		Name  string `json:"name"`
	}
	if err := idToken.Claims(&claims); err != nil {
		return nil, fmt.Errorf("decode claims: %w", err)
	}
	if claims.Email == "" {
		return nil, errors.New("provider returned no email claim")
	}
	if claims.Name == "" {
		claims.Name = claims.Email[:strings.IndexByte(claims.Email+"@", '@')]
	}

	user, err := f.users.UpsertOAuthUser(ctx, idToken.Subject, claims.Email, claims.Name)
	if err != nil {
		return nil, fmt.Errorf("upsert sso user: %w", err)
	}
	if user.IsBanned {
		return nil, errors.New("account banned")
	}
	return user, nil
}

// RedirectPath returns the path component the router must mount Callback on.
func (f *OIDCFlow) RedirectPath() string {
	if u, err := url.Parse(f.oauth.RedirectURL); err == nil {
		return u.Path
	}
	return f.cfg.OIDC.RedirectPath
}
