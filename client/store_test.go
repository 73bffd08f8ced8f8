package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func strPtr(s string) *string { return &s }

func testEvents() []Event {
	return []Event{
		{ID: "e1", SubCalendarID: "sc1", Title: "one", TagIDs: []string{"t1"}},
		{ID: "e2", SubCalendarID: "sc1", Title: "two", TagIDs: []string{"t2"}},
		{ID: "e3", SubCalendarID: "sc2", Title: "three", TagIDs: []string{"t1", "t2"}},
		{ID: "e4", SubCalendarID: "sc2", Title: "four"},
	}
}

func eventIDs(events []Event) []string {
	ids := make([]string, len(events))
	for i, ev := range events {
		ids[i] = ev.ID
	}
	return ids
}

func TestVisibleEvents(t *testing.T) {
	tests := []struct {
		name   string
		hidden []string
		tags   []string
		want   []string
	}{
		{name: "no filters", want: []string{"e1", "e2", "e3", "e4"}},
		{name: "hide sub-calendar", hidden: []string{"sc1"}, want: []string{"e3", "e4"}},
		{name: "tag filter or within tags", tags: []string{"t1", "t2"}, want: []string{"e1", "e2", "e3"}},
		{name: "tag filter single", tags: []string{"t1"}, want: []string{"e1", "e3"}},
		{name: "visibility and tags", hidden: []string{"sc2"}, tags: []string{"t1"}, want: []string{"e1"}},
		{name: "untagged excluded by filter", tags: []string{"t2"}, want: []string{"e2", "e3"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewCalendarStore("cal1")
			for _, id := range tt.hidden {
				s.SetSubCalendarVisible(id, false)
			}
			s.SetTagFilter(tt.tags)
			got := eventIDs(s.VisibleEvents(testEvents()))
			if len(got) != len(tt.want) {
				t.Fatalf("got %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Fatalf("got %v, want %v", got, tt.want)
				}
			}
		})
	}
}

// Toggling sub-calendar visibility is display state only; the recorded
// permission never moves.
func TestVisibilityDoesNotChangePermission(t *testing.T) {
	s := NewCalendarStore("cal1")
	s.SetEffective(Effective{Permission: Modify})
	s.SetSubCalendarVisible("sc1", false)
	s.SetSubCalendarVisible("sc1", true)
	s.SetTagFilter([]string{"t1"})
	if got := s.Effective().Permission; got != Modify {
		t.Errorf("permission = %q, want modify", got)
	}
}

func TestPermCacheFreshAndStale(t *testing.T) {
	var calls atomic.Int32
	responses := []Effective{
		{Permission: Modify},
		{Permission: ReadOnly},
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := calls.Add(1)
		idx := int(n) - 1
		if idx >= len(responses) {
			idx = len(responses) - 1
		}
		_ = json.NewEncoder(w).Encode(responses[idx])
	}))
	defer srv.Close()

	c := New(srv.URL)
	p := NewPermCache(c)
	base := time.Now()
	now := base
	p.now = func() time.Time { return now }

	eff, err := p.Get(context.Background(), "cal1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if eff.Permission != Modify {
		t.Fatalf("permission = %q, want modify", eff.Permission)
	}

	// Fresh window: served from cache, no second call.
	now = base.Add(5 * time.Second)
	if _, err := p.Get(context.Background(), "cal1"); err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got := calls.Load(); got != 1 {
		t.Fatalf("calls = %d, want 1", got)
	}

	// Stale window: old value served immediately, corrected in background.
	now = base.Add(30 * time.Second)
	eff, err = p.Get(context.Background(), "cal1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if eff.Permission != Modify {
		t.Errorf("stale read = %q, want modify", eff.Permission)
	}

	deadline := time.Now().Add(2 * time.Second)
	for calls.Load() < 2 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if got := calls.Load(); got != 2 {
		t.Fatalf("calls = %d, want 2 after revalidation", got)
	}

	// The correction is now the cached value.
	eff, err = p.Get(context.Background(), "cal1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if eff.Permission != ReadOnly {
		t.Errorf("corrected read = %q, want read_only", eff.Permission)
	}
}

func TestPermCacheInvalidate(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		_ = json.NewEncoder(w).Encode(Effective{Permission: ReadOnly})
	}))
	defer srv.Close()

	p := NewPermCache(New(srv.URL))
	if _, err := p.Get(context.Background(), "cal1"); err != nil {
		t.Fatalf("Get: %v", err)
	}
	p.Invalidate("cal1")
	if _, err := p.Get(context.Background(), "cal1"); err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got := calls.Load(); got != 2 {
		t.Errorf("calls = %d, want 2", got)
	}
}

func TestDisplayText(t *testing.T) {
	tests := []struct {
		name       string
		original   string
		source     string
		target     string
		translated string
		want       string
	}{
		{"same language", "Réunion", "fr", "fr", "Meeting", "Réunion"},
		{"translated", "Réunion", "fr", "en", "Meeting", "Meeting"},
		{"no translation falls back", "Réunion", "fr", "en", "", "Réunion"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DisplayText(tt.original, tt.source, tt.target, tt.translated)
			if got != tt.want {
				t.Errorf("DisplayText = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDisplayEvent(t *testing.T) {
	ev := &Event{Title: "Fête", Notes: strPtr("Apporter un gâteau")}
	tr := &Translation{Language: "en", Title: "Party", Notes: "Bring a cake"}

	title, notes := DisplayEvent(ev, "fr", "en", tr)
	if title != "Party" || notes != "Bring a cake" {
		t.Errorf("got %q/%q, want translated pair", title, notes)
	}

	// A translation for another language never leaks through.
	title, notes = DisplayEvent(ev, "fr", "de", tr)
	if title != "Fête" || notes != "Apporter un gâteau" {
		t.Errorf("got %q/%q, want originals", title, notes)
	}
}
