package client

import "time"

// Permission mirrors the server's ordered permission levels.
type Permission string

const (
	NoAccess          Permission = "no_access"
	ReadOnlyNoDetails Permission = "read_only_no_details"
	ReadOnly          Permission = "read_only"
	AddOnly           Permission = "add_only"
	ModifyOwn         Permission = "modify_own"
	Modify            Permission = "modify"
	Administrator     Permission = "administrator"
)

// User is the authenticated account.
type User struct {
	ID      string `json:"id"`
	Email   string `json:"email"`
	Name    string `json:"name"`
	IsAdmin bool   `json:"is_admin"`
}

// Effective is the caller's resolved standing on a calendar, as reported by
// the server. It is the only source the SDK trusts for permissions.
type Effective struct {
	Permission Permission `json:"permission"`
	IsOwner    bool       `json:"is_owner"`
}

// Calendar is the shared container with its display settings.
type Calendar struct {
	ID          string     `json:"id"`
	Slug        string     `json:"slug"`
	Title       string     `json:"title"`
	Timezone    string     `json:"timezone"`
	Language    string     `json:"language"`
	DefaultView string     `json:"default_view"`
	WeekStart   int        `json:"week_start"`
	Permission  Permission `json:"permission,omitempty"`
	IsOwner     bool       `json:"is_owner,omitempty"`
}

// SubCalendar is one partition of a calendar.
type SubCalendar struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Color    string `json:"color"`
	Active   bool   `json:"active"`
	Position int    `json:"position"`
}

// Tag is a colored label on events.
type Tag struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Color string `json:"color"`
}

// Event is one calendar entry, possibly a recurring series.
type Event struct {
	ID            string    `json:"id"`
	SubCalendarID string    `json:"sub_calendar_id"`
	Title         string    `json:"title"`
	StartAt       time.Time `json:"start_at"`
	EndAt         time.Time `json:"end_at"`
	AllDay        bool      `json:"all_day"`
	Location      *string   `json:"location,omitempty"`
	Notes         *string   `json:"notes,omitempty"`
	Who           *string   `json:"who,omitempty"`
	RRule         *string   `json:"rrule,omitempty"`
	TagIDs        []string  `json:"tag_ids,omitempty"`
	CanEdit       bool      `json:"can_edit"`
}

// Occurrence is one concrete instance of a recurring event.
type Occurrence struct {
	EventID string    `json:"event_id"`
	Start   time.Time `json:"start"`
	End     time.Time `json:"end"`
	AllDay  bool      `json:"all_day"`
}

// Translation is a server-resolved translation of one record.
type Translation struct {
	Language string `json:"language"`
	Title    string `json:"title,omitempty"`
	Notes    string `json:"notes,omitempty"`
	Body     string `json:"body,omitempty"`
}
