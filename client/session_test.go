package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func sessionJSON(access, refresh string, expiry time.Time) map[string]any {
	return map[string]any{
		"user":              map[string]any{"id": "u1", "email": "a@example.org", "name": "A"},
		"access_token":      access,
		"access_expires_at": expiry.Format(time.RFC3339),
		"refresh_token":     refresh,
		"csrf_token":        "csrf",
	}
}

func TestLoginInstallsSession(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/auth/login" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		_ = json.NewEncoder(w).Encode(sessionJSON("acc1", "ref1", time.Now().Add(15*time.Minute)))
	}))
	defer srv.Close()

	c := New(srv.URL)
	user, err := c.Session().Login(context.Background(), "a@example.org", "pw")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if user.Email != "a@example.org" {
		t.Errorf("user email = %q", user.Email)
	}
	if got := c.Session().State(); got != StateAuthenticated {
		t.Errorf("state = %v, want authenticated", got)
	}
	if got := c.Session().AccessToken(); got != "acc1" {
		t.Errorf("access token = %q", got)
	}
}

func TestLoginFailureStaysAnonymous(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "invalid credentials"})
	}))
	defer srv.Close()

	c := New(srv.URL)
	if _, err := c.Session().Login(context.Background(), "a@example.org", "bad"); err == nil {
		t.Fatal("Login succeeded with bad password")
	}
	if got := c.Session().State(); got != StateAnonymous {
		t.Errorf("state = %v, want anonymous", got)
	}
}

// Three concurrent requests hitting 401 must trigger exactly one refresh, and
// all three must succeed on retry.
func TestConcurrentUnauthorizedSingleRefresh(t *testing.T) {
	var refreshCalls atomic.Int32
	var token atomic.Value
	token.Store("expired")

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v1/auth/refresh":
			refreshCalls.Add(1)
			time.Sleep(50 * time.Millisecond)
			token.Store("fresh")
			_ = json.NewEncoder(w).Encode(sessionJSON("fresh", "ref2", time.Now().Add(15*time.Minute)))
		case "/v1/calendars":
			if r.Header.Get("Authorization") != "Bearer "+token.Load().(string) {
				w.WriteHeader(http.StatusUnauthorized)
				_ = json.NewEncoder(w).Encode(map[string]string{"error": "unauthorized"})
				return
			}
			_ = json.NewEncoder(w).Encode([]Calendar{})
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))
	defer srv.Close()

	c := New(srv.URL)
	c.Session().install(sessionResponse{
		AccessToken:     "stale",
		AccessExpiresAt: time.Now().Add(15 * time.Minute),
		RefreshToken:    "ref1",
	})

	var wg sync.WaitGroup
	errs := make([]error, 5)
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = c.Calendars(context.Background())
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Errorf("request %d: %v", i, err)
		}
	}
	if got := refreshCalls.Load(); got != 1 {
		t.Errorf("refresh calls = %d, want 1", got)
	}
}

func TestRefreshRejectionTerminatesSession(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "invalid credentials"})
	}))
	defer srv.Close()

	c := New(srv.URL)
	c.Session().install(sessionResponse{
		AccessToken:     "acc",
		AccessExpiresAt: time.Now().Add(time.Minute),
		RefreshToken:    "ref",
	})
	if err := c.Session().Refresh(context.Background()); err != ErrLoggedOut {
		t.Fatalf("Refresh = %v, want ErrLoggedOut", err)
	}
	if got := c.Session().State(); got != StateAnonymous {
		t.Errorf("state = %v, want anonymous", got)
	}
	if err := c.Session().Refresh(context.Background()); err != ErrLoggedOut {
		t.Errorf("second Refresh = %v, want ErrLoggedOut", err)
	}
}

func TestRefreshTransportErrorKeepsSession(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // every request now fails at the transport

	c := New(srv.URL)
	c.Session().install(sessionResponse{
		AccessToken:     "acc",
		AccessExpiresAt: time.Now().Add(time.Minute),
		RefreshToken:    "ref",
	})
	if err := c.Session().Refresh(context.Background()); err == nil {
		t.Fatal("Refresh succeeded against a dead server")
	}
	if got := c.Session().State(); got != StateAuthenticated {
		t.Errorf("state = %v, want authenticated", got)
	}
	if got := c.Session().AccessToken(); got != "acc" {
		t.Errorf("access token = %q, want retained", got)
	}
}

// A refresh that exceeds its bounded window counts as a refresh failure and
// ends the session, unlike an ordinary transport error.
func TestRefreshTimeoutTerminatesSession(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(500 * time.Millisecond)
		_ = json.NewEncoder(w).Encode(sessionJSON("late", "ref2", time.Now().Add(15*time.Minute)))
	}))
	defer srv.Close()

	c := New(srv.URL)
	sess := c.Session()
	sess.refreshTimeout = 50 * time.Millisecond
	sess.install(sessionResponse{
		AccessToken:     "acc",
		AccessExpiresAt: time.Now().Add(time.Minute),
		RefreshToken:    "ref",
	})

	err := sess.Refresh(context.Background())
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Refresh = %v, want deadline exceeded", err)
	}
	if got := sess.State(); got != StateAnonymous {
		t.Errorf("state after refresh timeout = %v, want anonymous", got)
	}
	if err := sess.Refresh(context.Background()); err != ErrLoggedOut {
		t.Errorf("second Refresh = %v, want ErrLoggedOut", err)
	}
}

func TestWakeRefreshesNearExpiry(t *testing.T) {
	var refreshCalls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/v1/auth/refresh" {
			refreshCalls.Add(1)
			_ = json.NewEncoder(w).Encode(sessionJSON("acc2", "ref2", time.Now().Add(15*time.Minute)))
		}
	}))
	defer srv.Close()

	c := New(srv.URL)
	sess := c.Session()
	sess.install(sessionResponse{
		AccessToken:     "acc1",
		AccessExpiresAt: time.Now().Add(30 * time.Second),
		RefreshToken:    "ref1",
	})
	if err := sess.Wake(context.Background()); err != nil {
		t.Fatalf("Wake: %v", err)
	}
	if got := refreshCalls.Load(); got != 1 {
		t.Errorf("refresh calls = %d, want 1", got)
	}
	if got := sess.AccessToken(); got != "acc2" {
		t.Errorf("access token = %q, want rotated", got)
	}

	// Far from expiry Wake is a no-op.
	if err := sess.Wake(context.Background()); err != nil {
		t.Fatalf("Wake: %v", err)
	}
	if got := refreshCalls.Load(); got != 1 {
		t.Errorf("refresh calls after no-op Wake = %d, want 1", got)
	}
}

func TestAuthEndpointsSkip401Retry(t *testing.T) {
	var loginCalls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/v1/auth/login" {
			loginCalls.Add(1)
		}
		w.WriteHeader(http.StatusUnauthorized)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "invalid credentials"})
	}))
	defer srv.Close()

	c := New(srv.URL)
	c.Session().install(sessionResponse{
		AccessToken:     "acc",
		AccessExpiresAt: time.Now().Add(time.Minute),
		RefreshToken:    "ref",
	})
	if _, err := c.Session().Login(context.Background(), "a@example.org", "bad"); err == nil {
		t.Fatal("Login succeeded")
	}
	if got := loginCalls.Load(); got != 1 {
		t.Errorf("login attempts = %d, want 1 (no refresh retry)", got)
	}
}
