package translate

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

	"github.com/plabarre/agenda/internal/store"
)

func newTestServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv
}

func TestTranslate(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/translate" {
			t.Errorf("path = %s, want /translate", r.URL.Path)
		}
		var req translateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.Source != "fr" || req.Target != "en" || req.Format != "text" {
			t.Errorf("unexpected request %+v", req)
		}
		json.NewEncoder(w).Encode(translateResponse{TranslatedText: "Team meeting"})
	})

	got, err := NewClient(srv.URL, "").Translate(context.Background(), "Réunion d'équipe", "fr", "en")
	if err != nil {
		t.Fatalf("Translate: %v", err)
	}
	if got != "Team meeting" {
		t.Fatalf("got %q, want %q", got, "Team meeting")
	}
}

func TestTranslateIdentity(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("identity translation must not call the provider")
	})

	got, err := NewClient(srv.URL, "").Translate(context.Background(), "Réunion", "fr", "fr")
	if err != nil {
		t.Fatalf("Translate: %v", err)
	}
	if got != "Réunion" {
		t.Fatalf("got %q, want original", got)
	}
}

func TestTranslateUnsupportedLanguage(t *testing.T) {
	_, err := NewClient("http://unused", "").Translate(context.Background(), "hello", "en", "eo")
	if !errors.Is(err, ErrUnsupportedLanguage) {
		t.Fatalf("got %v, want ErrUnsupportedLanguage", err)
	}
}

func TestTranslateProviderError(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "too many requests", http.StatusTooManyRequests)
	})

	_, err := NewClient(srv.URL, "").Translate(context.Background(), "Réunion", "fr", "en")
	if !errors.Is(err, ErrProvider) {
		t.Fatalf("got %v, want ErrProvider", err)
	}
}

func TestTranslateCollapsesConcurrentRequests(t *testing.T) {
	var calls atomic.Int32
	release := make(chan struct{})
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		<-release
		json.NewEncoder(w).Encode(translateResponse{TranslatedText: "Meeting"})
	})

	c := NewClient(srv.URL, "")
	var wg sync.WaitGroup
	results := make([]string, 5)
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			got, err := c.Translate(context.Background(), "Réunion", "fr", "en")
			if err != nil {
				t.Errorf("Translate %d: %v", i, err)
			}
			results[i] = got
		}(i)
	}

	// Let all five goroutines queue behind the single upstream call.
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	if n := calls.Load(); n != 1 {
		t.Fatalf("provider called %d times, want 1", n)
	}
	for i, got := range results {
		if got != "Meeting" {
			t.Fatalf("result %d = %q, want %q", i, got, "Meeting")
		}
	}
}

func TestOverlay(t *testing.T) {
	tests := []struct {
		name     string
		original string
		source   string
		target   string
		cached   string
		want     string
	}{
		{"same language", "Réunion", "fr", "fr", "Meeting", "Réunion"},
		{"cached translation", "Réunion", "fr", "en", "Meeting", "Meeting"},
		{"no cache falls back", "Réunion", "fr", "en", "", "Réunion"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Overlay(tt.original, tt.source, tt.target, tt.cached); got != tt.want {
				t.Fatalf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestEventText(t *testing.T) {
	notes := "Apportez vos notes"
	ev := &store.Event{
		Title: "Réunion",
		Notes: &notes,
		Translations: store.Translations{
			"en": {Title: "Meeting", Notes: "Bring your notes"},
		},
	}

	title, gotNotes := EventText(ev, "fr", "en")
	if title != "Meeting" || gotNotes != "Bring your notes" {
		t.Fatalf("got %q/%q, want translated pair", title, gotNotes)
	}

	// A language with no cached entry falls back to the original, never to
	// another cached language.
	title, gotNotes = EventText(ev, "fr", "de")
	if title != "Réunion" || gotNotes != notes {
		t.Fatalf("got %q/%q, want originals", title, gotNotes)
	}
}
