package store

import (
	"time"

	"github.com/google/uuid"

	"github.com/plabarre/agenda/internal/permission"
)

// User is an account holder. Passwords are bcrypt hashed; OAuthSubject is set
// for accounts created through the optional SSO flow.
type User struct {
	ID             uuid.UUID
	Email          string
	Name           string
	HashedPassword string
	OAuthSubject   *string
	IsVerified     bool
	IsAdmin        bool
	IsBanned       bool
	BanReason      *string
	BanUntil       *time.Time
	CreatedAt      time.Time
}

// Calendar is the top-level shared container. Exactly one owner.
type Calendar struct {
	ID                   uuid.UUID
	Slug                 string
	Title                string
	OwnerID              uuid.UUID
	Timezone             string
	Language             string
	WeekStart            int
	DateFormat           string
	DefaultView          string
	VisibleTimeStart     string
	VisibleTimeEnd       string
	DefaultEventDuration int
	ShowWeekends         bool
	EmailNotifications   bool
	CreatedAt            time.Time
}

// SubCalendar partitions a calendar's events and doubles as a grant scope.
type SubCalendar struct {
	ID         uuid.UUID
	CalendarID uuid.UUID
	Name       string
	Color      string
	Active     bool
	Position   int
	CreatedAt  time.Time
}

// Group is a named set of users within one calendar.
type Group struct {
	ID         uuid.UUID
	CalendarID uuid.UUID
	Name       string
	CreatedAt  time.Time
}

// AccessLink is a revocable tokenized share. A link with a GroupID is
// claimable: presenting its token while authenticated joins the group.
type AccessLink struct {
	ID         uuid.UUID
	CalendarID uuid.UUID
	Token      string
	Label      *string
	Active     bool
	GroupID    *uuid.UUID
	CreatedAt  time.Time
}

// AccessGrant binds one principal to a permission, optionally scoped to one
// sub-calendar. Exactly one of UserID, GroupID and LinkID is set.
type AccessGrant struct {
	ID            uuid.UUID
	CalendarID    uuid.UUID
	SubCalendarID *uuid.UUID
	UserID        *uuid.UUID
	GroupID       *uuid.UUID
	LinkID        *uuid.UUID
	Permission    permission.Permission
}

// PendingInvitation is an invite addressed to an email with no account yet.
// It converts into a grant (and optional group membership) on registration.
type PendingInvitation struct {
	ID            uuid.UUID
	CalendarID    uuid.UUID
	Email         string
	Permission    permission.Permission
	SubCalendarID *uuid.UUID
	GroupID       *uuid.UUID
	InvitedBy     uuid.UUID
	CreatedAt     time.Time
}

// TranslatedText is one cached machine translation of a record's text fields.
type TranslatedText struct {
	Title   string `json:"title,omitempty"`
	Notes   string `json:"notes,omitempty"`
	Content string `json:"content,omitempty"`
}

// Translations caches machine translations keyed by language code.
type Translations map[string]TranslatedText

// Event belongs to one sub-calendar. RRule, when set, is an RFC 5545 RRULE
// string; the stored row is the whole series.
type Event struct {
	ID            uuid.UUID
	SubCalendarID uuid.UUID
	Title         string
	StartAt       time.Time
	EndAt         time.Time
	AllDay        bool
	Location      *string
	Latitude      *float64
	Longitude     *float64
	Notes         *string
	Who           *string
	SignupEnabled bool
	SignupMax     *int
	RRule         *string
	Translations  Translations
	CreatorUserID *uuid.UUID
	TagIDs        []uuid.UUID
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// EventSignup is a public attendance registration on a signup-enabled event.
type EventSignup struct {
	ID        uuid.UUID
	EventID   uuid.UUID
	Name      string
	Email     string
	Note      *string
	CreatedAt time.Time
}

// Tag is a colored label; events carry any number of them.
type Tag struct {
	ID         uuid.UUID
	CalendarID uuid.UUID
	Name       string
	Color      string
	Position   int
	CreatedAt  time.Time
}

// Comment is a threaded message on an event, with its own translation cache.
type Comment struct {
	ID           uuid.UUID
	EventID      uuid.UUID
	UserID       uuid.UUID
	UserName     string
	Content      string
	Translations Translations
	CreatedAt    time.Time
}

// Attachment records file metadata; the blob lives in external storage.
type Attachment struct {
	ID               uuid.UUID
	EventID          uuid.UUID
	UserID           uuid.UUID
	OriginalFilename string
	StoredFilename   string
	MimeType         string
	FileSize         int64
	CreatedAt        time.Time
}
