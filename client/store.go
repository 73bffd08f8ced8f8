package client

import (
	"sync"
	"time"
)

// CalendarStore holds client-side view state for one calendar: the caller's
// server-resolved standing, which sub-calendars are displayed, and the tag
// filter. Visibility is display state only; it never changes what the caller
// may do.
type CalendarStore struct {
	mu sync.RWMutex

	calendarID string
	linkToken  string

	permission Permission
	isOwner    bool

	hiddenSubCalendars map[string]bool
	tagFilter          map[string]bool

	view string
	date time.Time
}

func NewCalendarStore(calendarID string) *CalendarStore {
	return &CalendarStore{
		calendarID:         calendarID,
		permission:         NoAccess,
		hiddenSubCalendars: map[string]bool{},
		tagFilter:          map[string]bool{},
		view:               "month",
		date:               time.Now(),
	}
}

// SetEffective records a resolver result. It is the only way the store's
// permission and owner flag change.
func (s *CalendarStore) SetEffective(eff Effective) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.permission = eff.Permission
	s.isOwner = eff.IsOwner
}

// Effective returns the last recorded standing.
func (s *CalendarStore) Effective() Effective {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Effective{Permission: s.permission, IsOwner: s.isOwner}
}

// SetLinkToken retains a share-link token for this calendar.
func (s *CalendarStore) SetLinkToken(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.linkToken = token
}

func (s *CalendarStore) LinkToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.linkToken
}

// SetSubCalendarVisible toggles display of one sub-calendar.
func (s *CalendarStore) SetSubCalendarVisible(id string, visible bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if visible {
		delete(s.hiddenSubCalendars, id)
	} else {
		s.hiddenSubCalendars[id] = true
	}
}

func (s *CalendarStore) SubCalendarVisible(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return !s.hiddenSubCalendars[id]
}

// SetTagFilter replaces the tag filter. An empty set means no filtering.
func (s *CalendarStore) SetTagFilter(tagIDs []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tagFilter = map[string]bool{}
	for _, id := range tagIDs {
		s.tagFilter[id] = true
	}
}

// SetView records the current view and anchor date.
func (s *CalendarStore) SetView(view string, date time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.view = view
	s.date = date
}

func (s *CalendarStore) View() (string, time.Time) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.view, s.date
}

// VisibleEvents filters events by sub-calendar visibility and the tag filter.
// Tags are OR within the filter set and AND with visibility: an event passes
// when its sub-calendar is displayed and, if a filter is set, it carries at
// least one selected tag.
func (s *CalendarStore) VisibleEvents(events []Event) []Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Event, 0, len(events))
	for _, ev := range events {
		if s.hiddenSubCalendars[ev.SubCalendarID] {
			continue
		}
		if len(s.tagFilter) > 0 && !anyTag(ev.TagIDs, s.tagFilter) {
			continue
		}
		out = append(out, ev)
	}
	return out
}

func anyTag(ids []string, filter map[string]bool) bool {
	for _, id := range ids {
		if filter[id] {
			return true
		}
	}
	return false
}
