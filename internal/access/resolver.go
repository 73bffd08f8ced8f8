// Package access resolves a caller's effective permission on a calendar.
//
// Resolution combines every grant addressed to the caller, whether directly,
// through a group membership, or through a share link token, and keeps the
// strongest one. Owners bypass grants entirely.
package access

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/plabarre/agenda/internal/permission"
	"github.com/plabarre/agenda/internal/store"
)

// ErrLinkInvalid reports a claim attempt against an unknown, inactive or
// non-claimable link token.
var ErrLinkInvalid = errors.New("access: link token is invalid")

// Caller identifies who is asking. Both fields are optional: an anonymous
// visitor following a share link has only a token, a logged-in user may carry
// both.
type Caller struct {
	UserID    *uuid.UUID
	LinkToken string
}

// Effective is the outcome of resolution. IsOwner is true only for the
// calendar owner, who always resolves to administrator.
type Effective struct {
	Permission permission.Permission
	IsOwner    bool
}

// CalendarSource is the subset of the calendar repository resolution needs.
type CalendarSource interface {
	GetByID(ctx context.Context, id uuid.UUID) (*store.Calendar, error)
}

// GrantSource supplies the grants and links resolution reads.
type GrantSource interface {
	GrantsForUser(ctx context.Context, calendarID, userID uuid.UUID) ([]store.AccessGrant, error)
	GrantsForLink(ctx context.Context, calendarID uuid.UUID, token string) ([]store.AccessGrant, error)
	GetLinkByToken(ctx context.Context, calendarID uuid.UUID, token string) (*store.AccessLink, error)
}

// GroupJoiner adds users to groups when links are claimed.
type GroupJoiner interface {
	AddMember(ctx context.Context, groupID, userID uuid.UUID) error
}

// Resolver computes effective permissions from stored grants.
type Resolver struct {
	calendars CalendarSource
	access    GrantSource
	groups    GroupJoiner
	cache     *permCache
}

// NewResolver builds a resolver over the given repositories. Results are
// cached per caller with a short stale-while-revalidate window; mutations to
// grants, groups or links must go through Invalidate.
func NewResolver(calendars CalendarSource, access GrantSource, groups GroupJoiner) *Resolver {
	return &Resolver{
		calendars: calendars,
		access:    access,
		groups:    groups,
		cache:     newPermCache(defaultFreshFor, defaultStaleFor),
	}
}

// Resolve returns the caller's effective permission on the calendar at
// calendar level. Sub-calendar scoped grants still count here: a caller whose
// only grant is scoped can open the calendar, scope is enforced per
// operation through ResolveScoped.
func (r *Resolver) Resolve(ctx context.Context, calendarID uuid.UUID, caller Caller) (Effective, error) {
	return r.resolve(ctx, calendarID, caller, nil)
}

// ResolveScoped resolves for an operation targeting one sub-calendar. Only
// unscoped grants and grants scoped to that sub-calendar contribute, so a
// grant limited to another sub-calendar never leaks permission here.
func (r *Resolver) ResolveScoped(ctx context.Context, calendarID uuid.UUID, caller Caller, subCalendarID uuid.UUID) (Effective, error) {
	return r.resolve(ctx, calendarID, caller, &subCalendarID)
}

func (r *Resolver) resolve(ctx context.Context, calendarID uuid.UUID, caller Caller, scope *uuid.UUID) (Effective, error) {
	key := cacheKey(calendarID, caller, scope)
	// Revalidation may outlive the request that triggered it.
	bgCtx := context.WithoutCancel(ctx)
	if eff, ok := r.cache.get(key, func() (Effective, error) {
		return r.compute(bgCtx, calendarID, caller, scope)
	}); ok {
		return eff, nil
	}
	eff, err := r.compute(ctx, calendarID, caller, scope)
	if err != nil {
		return Effective{}, err
	}
	r.cache.put(key, calendarID, eff)
	return eff, nil
}

func (r *Resolver) compute(ctx context.Context, calendarID uuid.UUID, caller Caller, scope *uuid.UUID) (Effective, error) {
	cal, err := r.calendars.GetByID(ctx, calendarID)
	if err != nil {
		return Effective{}, fmt.Errorf("resolve access: %w", err)
	}

	if caller.UserID != nil && *caller.UserID == cal.OwnerID {
		return Effective{Permission: permission.Administrator, IsOwner: true}, nil
	}

	var grants []store.AccessGrant
	if caller.UserID != nil {
		userGrants, err := r.access.GrantsForUser(ctx, calendarID, *caller.UserID)
		if err != nil {
			return Effective{}, fmt.Errorf("resolve access: %w", err)
		}
		grants = append(grants, userGrants...)
	}
	if caller.LinkToken != "" {
		// An inactive or unknown token contributes nothing; it is not an
		// error, the caller simply has no grant from that direction.
		linkGrants, err := r.access.GrantsForLink(ctx, calendarID, caller.LinkToken)
		if err != nil {
			return Effective{}, fmt.Errorf("resolve access: %w", err)
		}
		grants = append(grants, linkGrants...)
	}

	eff := permission.NoAccess
	for _, g := range grants {
		if scope != nil && g.SubCalendarID != nil && *g.SubCalendarID != *scope {
			continue
		}
		eff = permission.Max(eff, g.Permission)
	}
	return Effective{Permission: eff}, nil
}

// ClaimLink joins the authenticated user to the group behind a claimable
// link. Claiming twice is a no-op. Links without a group claim successfully
// without any effect.
func (r *Resolver) ClaimLink(ctx context.Context, calendarID, userID uuid.UUID, token string) error {
	link, err := r.access.GetLinkByToken(ctx, calendarID, token)
	if errors.Is(err, store.ErrNotFound) {
		return ErrLinkInvalid
	}
	if err != nil {
		return fmt.Errorf("claim link: %w", err)
	}
	if !link.Active {
		return ErrLinkInvalid
	}
	if link.GroupID == nil {
		return nil
	}
	if err := r.groups.AddMember(ctx, *link.GroupID, userID); err != nil {
		return fmt.Errorf("claim link: %w", err)
	}
	r.Invalidate(calendarID)
	return nil
}

// Invalidate drops every cached resolution for the calendar. Call it after
// any grant, link, group or membership change.
func (r *Resolver) Invalidate(calendarID uuid.UUID) {
	r.cache.invalidate(calendarID)
}
