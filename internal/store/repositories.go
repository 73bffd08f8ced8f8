package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/plabarre/agenda/internal/permission"
)

// UserRepository defines persistence operations for users.
type UserRepository interface {
	Create(ctx context.Context, user User) (*User, error)
	GetByID(ctx context.Context, id uuid.UUID) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	UpsertOAuthUser(ctx context.Context, subject, email, name string) (*User, error)
	SetAdmin(ctx context.Context, id uuid.UUID, admin bool) error
	SetBan(ctx context.Context, id uuid.UUID, banned bool, reason *string, until *time.Time) error
	List(ctx context.Context) ([]User, error)
}

// CalendarRepository handles the calendars lifecycle.
type CalendarRepository interface {
	Create(ctx context.Context, cal Calendar) (*Calendar, error)
	GetByID(ctx context.Context, id uuid.UUID) (*Calendar, error)
	GetBySlug(ctx context.Context, slug string) (*Calendar, error)
	SlugExists(ctx context.Context, slug string) (bool, error)
	ListOwned(ctx context.Context, ownerID uuid.UUID) ([]Calendar, error)
	ListAccessible(ctx context.Context, userID uuid.UUID) ([]Calendar, error)
	ListAll(ctx context.Context) ([]Calendar, error)
	Update(ctx context.Context, cal Calendar) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// SubCalendarRepository manages sub-calendars.
type SubCalendarRepository interface {
	Create(ctx context.Context, sc SubCalendar) (*SubCalendar, error)
	GetByID(ctx context.Context, id uuid.UUID) (*SubCalendar, error)
	ListByCalendar(ctx context.Context, calendarID uuid.UUID) ([]SubCalendar, error)
	Update(ctx context.Context, sc SubCalendar) error
	Delete(ctx context.Context, calendarID, id uuid.UUID) error
}

// AccessRepository stores grants, links and group memberships. It is the data
// source behind permission resolution, so reads here sit on every request
// path.
type AccessRepository interface {
	// GrantsForUser returns grants addressed to the user directly or to any
	// group the user belongs to on this calendar.
	GrantsForUser(ctx context.Context, calendarID, userID uuid.UUID) ([]AccessGrant, error)
	// GrantsForLink returns grants bound to the active link carrying token.
	// An inactive or unknown token yields an empty slice, not an error.
	GrantsForLink(ctx context.Context, calendarID uuid.UUID, token string) ([]AccessGrant, error)

	CreateGrant(ctx context.Context, grant AccessGrant) (*AccessGrant, error)
	GetGrant(ctx context.Context, id uuid.UUID) (*AccessGrant, error)
	UpdateGrantPermission(ctx context.Context, id uuid.UUID, p permission.Permission) error
	DeleteGrant(ctx context.Context, id uuid.UUID) error
	ListGrants(ctx context.Context, calendarID uuid.UUID) ([]AccessGrant, error)
	ListGrantsByGroup(ctx context.Context, calendarID, groupID uuid.UUID) ([]AccessGrant, error)
	FindGrant(ctx context.Context, calendarID uuid.UUID, userID, groupID *uuid.UUID, subCalendarID *uuid.UUID) (*AccessGrant, error)

	CreateLink(ctx context.Context, link AccessLink) (*AccessLink, error)
	GetLink(ctx context.Context, id uuid.UUID) (*AccessLink, error)
	GetLinkByToken(ctx context.Context, calendarID uuid.UUID, token string) (*AccessLink, error)
	ListLinks(ctx context.Context, calendarID uuid.UUID) ([]AccessLink, error)
	UpdateLink(ctx context.Context, link AccessLink) error
	DeleteLink(ctx context.Context, id uuid.UUID) error
	GrantForLinkID(ctx context.Context, linkID uuid.UUID) (*AccessGrant, error)
}

// GroupRepository manages groups and their memberships.
type GroupRepository interface {
	Create(ctx context.Context, group Group) (*Group, error)
	GetByID(ctx context.Context, id uuid.UUID) (*Group, error)
	ListByCalendar(ctx context.Context, calendarID uuid.UUID) ([]Group, error)
	Delete(ctx context.Context, id uuid.UUID) error

	// AddMember is idempotent: adding an existing member is a no-op.
	AddMember(ctx context.Context, groupID, userID uuid.UUID) error
	RemoveMember(ctx context.Context, groupID, userID uuid.UUID) error
	IsMember(ctx context.Context, groupID, userID uuid.UUID) (bool, error)
	ListMembers(ctx context.Context, groupID uuid.UUID) ([]User, error)
	// MembershipsByCalendar maps user id to the groups they belong to across
	// all of the calendar's groups.
	MembershipsByCalendar(ctx context.Context, calendarID uuid.UUID) (map[uuid.UUID][]Group, error)
}

// InvitationRepository stores email invites awaiting registration.
type InvitationRepository interface {
	Create(ctx context.Context, inv PendingInvitation) (*PendingInvitation, error)
	GetByID(ctx context.Context, id uuid.UUID) (*PendingInvitation, error)
	ListByCalendar(ctx context.Context, calendarID uuid.UUID) ([]PendingInvitation, error)
	ListByEmail(ctx context.Context, email string) ([]PendingInvitation, error)
	ExistsForEmail(ctx context.Context, calendarID uuid.UUID, email string) (bool, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// EventWindow bounds an event query. Zero values leave the bound open.
type EventWindow struct {
	Start time.Time
	End   time.Time
}

// EventRepository handles event storage.
type EventRepository interface {
	Create(ctx context.Context, event Event) (*Event, error)
	GetByID(ctx context.Context, id uuid.UUID) (*Event, error)
	// ListForCalendar returns events intersecting the window, restricted to
	// the given sub-calendars when the slice is non-nil. Recurring events
	// starting before the window end are always included so they can be
	// expanded client- or server-side.
	ListForCalendar(ctx context.Context, calendarID uuid.UUID, window EventWindow, subCalendarIDs []uuid.UUID) ([]Event, error)
	Search(ctx context.Context, calendarID uuid.UUID, query string) ([]Event, error)
	Update(ctx context.Context, event Event) error
	SetTags(ctx context.Context, eventID uuid.UUID, tagIDs []uuid.UUID) error
	SetTranslations(ctx context.Context, eventID uuid.UUID, tr Translations) error
	Delete(ctx context.Context, id uuid.UUID) error

	CreateSignup(ctx context.Context, signup EventSignup) (*EventSignup, error)
	ListSignups(ctx context.Context, eventID uuid.UUID) ([]EventSignup, error)
	CountSignups(ctx context.Context, eventID uuid.UUID) (int, error)
	SignupExists(ctx context.Context, eventID uuid.UUID, email string) (bool, error)
	DeleteSignup(ctx context.Context, id uuid.UUID) error
}

// TagRepository manages tags.
type TagRepository interface {
	Create(ctx context.Context, tag Tag) (*Tag, error)
	GetByID(ctx context.Context, calendarID, id uuid.UUID) (*Tag, error)
	ListByCalendar(ctx context.Context, calendarID uuid.UUID) ([]Tag, error)
	ValidIDs(ctx context.Context, calendarID uuid.UUID, ids []uuid.UUID) ([]uuid.UUID, error)
	Update(ctx context.Context, tag Tag) error
	Delete(ctx context.Context, calendarID, id uuid.UUID) error
}

// CommentRepository handles event comments.
type CommentRepository interface {
	Create(ctx context.Context, comment Comment) (*Comment, error)
	GetByID(ctx context.Context, id uuid.UUID) (*Comment, error)
	ListByEvent(ctx context.Context, eventID uuid.UUID) ([]Comment, error)
	SetTranslations(ctx context.Context, commentID uuid.UUID, tr Translations) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// AttachmentRepository stores attachment metadata.
type AttachmentRepository interface {
	Create(ctx context.Context, att Attachment) (*Attachment, error)
	GetByID(ctx context.Context, id uuid.UUID) (*Attachment, error)
	ListByEvent(ctx context.Context, eventID uuid.UUID) ([]Attachment, error)
	Delete(ctx context.Context, id uuid.UUID) error
}
