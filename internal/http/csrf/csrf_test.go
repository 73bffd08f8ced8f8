package csrf

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func newRequest(method, path string) *http.Request {
	return httptest.NewRequest(method, path, nil)
}

func serve(r *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})).ServeHTTP(rec, r)
	return rec
}

func TestReadsPassWithoutToken(t *testing.T) {
	r := newRequest(http.MethodGet, "/v1/calendars/abc")
	r.AddCookie(&http.Cookie{Name: "access_token", Value: "jwt"})
	if rec := serve(r); rec.Code != http.StatusNoContent {
		t.Fatalf("status %d, want 204", rec.Code)
	}
}

func TestBearerRequestsPass(t *testing.T) {
	r := newRequest(http.MethodPost, "/v1/calendars")
	r.Header.Set("Authorization", "Bearer jwt")
	if rec := serve(r); rec.Code != http.StatusNoContent {
		t.Fatalf("status %d, want 204", rec.Code)
	}
}

func TestCookieSessionRequiresMatchingHeader(t *testing.T) {
	r := newRequest(http.MethodPost, "/v1/calendars")
	r.AddCookie(&http.Cookie{Name: "access_token", Value: "jwt"})
	r.AddCookie(&http.Cookie{Name: cookieName, Value: "tok"})

	if rec := serve(r); rec.Code != http.StatusForbidden {
		t.Fatalf("missing header: status %d, want 403", rec.Code)
	}

	r = newRequest(http.MethodPost, "/v1/calendars")
	r.AddCookie(&http.Cookie{Name: "access_token", Value: "jwt"})
	r.AddCookie(&http.Cookie{Name: cookieName, Value: "tok"})
	r.Header.Set(headerName, "wrong")
	if rec := serve(r); rec.Code != http.StatusForbidden {
		t.Fatalf("wrong header: status %d, want 403", rec.Code)
	}

	r = newRequest(http.MethodPost, "/v1/calendars")
	r.AddCookie(&http.Cookie{Name: "access_token", Value: "jwt"})
	r.AddCookie(&http.Cookie{Name: cookieName, Value: "tok"})
	r.Header.Set(headerName, "tok")
	if rec := serve(r); rec.Code != http.StatusNoContent {
		t.Fatalf("matching header: status %d, want 204", rec.Code)
	}
}

func TestAuthEntryPointsExempt(t *testing.T) {
	for _, path := range []string{"/v1/auth/login", "/v1/auth/register", "/v1/auth/refresh"} {
		r := newRequest(http.MethodPost, path)
		r.AddCookie(&http.Cookie{Name: "access_token", Value: "stale"})
		if rec := serve(r); rec.Code != http.StatusNoContent {
			t.Fatalf("%s: status %d, want 204", path, rec.Code)
		}
	}
}
