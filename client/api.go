package client

import (
	"context"
	"net/http"
	"net/url"
	"time"
)

// Me returns the authenticated account.
func (c *Client) Me(ctx context.Context) (*User, error) {
	var u User
	if err := c.do(ctx, http.MethodGet, "/v1/auth/me", nil, nil, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// Calendars lists the calendars the caller can see.
func (c *Client) Calendars(ctx context.Context) ([]Calendar, error) {
	var out []Calendar
	if err := c.do(ctx, http.MethodGet, "/v1/calendars", nil, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// CalendarBySlug resolves a calendar by its public slug.
func (c *Client) CalendarBySlug(ctx context.Context, slug string) (*Calendar, error) {
	var cal Calendar
	if err := c.do(ctx, http.MethodGet, "/v1/calendars/by-slug/"+url.PathEscape(slug), nil, nil, &cal); err != nil {
		return nil, err
	}
	return &cal, nil
}

// MyPermission asks the server for the caller's effective standing.
func (c *Client) MyPermission(ctx context.Context, calendarID string) (*Effective, error) {
	var eff Effective
	if err := c.do(ctx, http.MethodGet, "/v1/calendars/"+calendarID+"/permission", nil, nil, &eff); err != nil {
		return nil, err
	}
	return &eff, nil
}

// ClaimLink presents a claimable share-link token. claimed is false when the
// token is invalid; existing access is unaffected either way.
func (c *Client) ClaimLink(ctx context.Context, calendarID, token string) (claimed bool, err error) {
	var out struct {
		Claimed bool `json:"claimed"`
	}
	err = c.do(ctx, http.MethodPost, "/v1/calendars/"+calendarID+"/claim", nil,
		map[string]string{"token": token}, &out)
	return out.Claimed, err
}

// SubCalendars lists a calendar's sub-calendars.
func (c *Client) SubCalendars(ctx context.Context, calendarID string) ([]SubCalendar, error) {
	var out []SubCalendar
	if err := c.do(ctx, http.MethodGet, "/v1/calendars/"+calendarID+"/sub-calendars", nil, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Tags lists a calendar's tags.
func (c *Client) Tags(ctx context.Context, calendarID string) ([]Tag, error) {
	var out []Tag
	if err := c.do(ctx, http.MethodGet, "/v1/calendars/"+calendarID+"/tags", nil, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// EventQuery bounds an event listing.
type EventQuery struct {
	Start  time.Time
	End    time.Time
	Lang   string
	Expand bool
}

func (q EventQuery) values() url.Values {
	v := url.Values{}
	if !q.Start.IsZero() {
		v.Set("start", q.Start.Format(time.RFC3339))
	}
	if !q.End.IsZero() {
		v.Set("end", q.End.Format(time.RFC3339))
	}
	if q.Lang != "" {
		v.Set("lang", q.Lang)
	}
	if q.Expand {
		v.Set("expand", "true")
	}
	return v
}

// Events lists a calendar's events within the query window.
func (c *Client) Events(ctx context.Context, calendarID string, q EventQuery) ([]Event, error) {
	var out []Event
	if err := c.do(ctx, http.MethodGet, "/v1/calendars/"+calendarID+"/events", q.values(), nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Occurrences expands one recurring event inside a window.
func (c *Client) Occurrences(ctx context.Context, calendarID, eventID string, start, end time.Time) ([]Occurrence, error) {
	q := EventQuery{Start: start, End: end}
	var out []Occurrence
	path := "/v1/calendars/" + calendarID + "/events/" + eventID + "/occurrences"
	if err := c.do(ctx, http.MethodGet, path, q.values(), nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// TranslateEvent fetches the event text in lang, translating and caching
// server-side when needed.
func (c *Client) TranslateEvent(ctx context.Context, calendarID, eventID, lang string) (*Translation, error) {
	v := url.Values{}
	v.Set("lang", lang)
	var out Translation
	path := "/v1/calendars/" + calendarID + "/events/" + eventID + "/translation"
	if err := c.do(ctx, http.MethodGet, path, v, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
