package api

import (
	"errors"
	"net/http"

	"github.com/google/uuid"

	"github.com/plabarre/agenda/internal/access"
	"github.com/plabarre/agenda/internal/auth"
	httperr "github.com/plabarre/agenda/internal/http/errors"
	"github.com/plabarre/agenda/internal/notify"
	"github.com/plabarre/agenda/internal/permission"
	"github.com/plabarre/agenda/internal/store"
)

type effectiveView struct {
	Permission string `json:"permission"`
	IsOwner    bool   `json:"is_owner"`
}

// myPermission tells the caller what they can do on this calendar. It
// answers even for no_access callers; only unknown calendars 404.
func (h *Handler) myPermission(w http.ResponseWriter, r *http.Request) {
	_, eff, ok := h.resolveCalendar(w, r)
	if !ok {
		return
	}
	respond(w, http.StatusOK, effectiveView{Permission: string(eff.Permission), IsOwner: eff.IsOwner})
}

// claimLink joins the caller to the group behind a claimable link. Failures
// are soft: the caller keeps whatever access they already had, so an invalid
// token answers 200 with claimed=false instead of an error.
func (h *Handler) claimLink(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.UserFromContext(r.Context())
	calendarID, err := uuidParam(r, "calendarID")
	if err != nil {
		httperr.BadRequest(w, r, err, "invalid calendar id")
		return
	}
	var req struct {
		Token string `json:"token" validate:"required"`
	}
	if err := h.decode(r, &req); err != nil {
		httperr.BadRequest(w, r, err, "invalid claim payload")
		return
	}

	err = h.resolver.ClaimLink(r.Context(), calendarID, user.ID, req.Token)
	if errors.Is(err, access.ErrLinkInvalid) {
		respond(w, http.StatusOK, map[string]bool{"claimed": false})
		return
	}
	if err != nil {
		httperr.InternalError(w, r, err, "claim link")
		return
	}
	respond(w, http.StatusOK, map[string]bool{"claimed": true})
}

// groupMemberships lists the calendar groups the caller belongs to.
func (h *Handler) groupMemberships(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.UserFromContext(r.Context())
	cal, _, ok := h.requireCalendar(w, r, permission.CanReadLimited)
	if !ok {
		return
	}
	memberships, err := h.store.Groups.MembershipsByCalendar(r.Context(), cal.ID)
	if err != nil {
		httperr.InternalError(w, r, err, "list memberships")
		return
	}
	views := make([]groupView, 0)
	for _, g := range memberships[user.ID] {
		views = append(views, viewGroup(&g))
	}
	respond(w, http.StatusOK, views)
}

type grantRequest struct {
	Permission    string  `json:"permission" validate:"required"`
	SubCalendarID *string `json:"sub_calendar_id"`
}

type inviteRequest struct {
	Email         string  `json:"email" validate:"required,email"`
	Permission    string  `json:"permission" validate:"required"`
	SubCalendarID *string `json:"sub_calendar_id"`
	GroupID       *string `json:"group_id"`
}

type grantView struct {
	ID            string  `json:"id"`
	Permission    string  `json:"permission"`
	SubCalendarID *string `json:"sub_calendar_id,omitempty"`
	UserID        *string `json:"user_id,omitempty"`
	GroupID       *string `json:"group_id,omitempty"`
	LinkID        *string `json:"link_id,omitempty"`
}

func viewGrant(g *store.AccessGrant) grantView {
	v := grantView{ID: g.ID.String(), Permission: string(g.Permission)}
	if g.SubCalendarID != nil {
		s := g.SubCalendarID.String()
		v.SubCalendarID = &s
	}
	if g.UserID != nil {
		s := g.UserID.String()
		v.UserID = &s
	}
	if g.GroupID != nil {
		s := g.GroupID.String()
		v.GroupID = &s
	}
	if g.LinkID != nil {
		s := g.LinkID.String()
		v.LinkID = &s
	}
	return v
}

func parsePermission(w http.ResponseWriter, raw string) (permission.Permission, bool) {
	p, err := permission.Parse(raw)
	if err != nil {
		httperr.JSON(w, http.StatusBadRequest, "unknown permission level")
		return "", false
	}
	return p, true
}

func parseOptionalUUID(w http.ResponseWriter, raw *string, what string) (*uuid.UUID, bool) {
	if raw == nil || *raw == "" {
		return nil, true
	}
	id, err := uuid.Parse(*raw)
	if err != nil {
		httperr.JSON(w, http.StatusBadRequest, "invalid "+what)
		return nil, false
	}
	return &id, true
}

func (h *Handler) listGrants(w http.ResponseWriter, r *http.Request) {
	cal, _, ok := h.requireAdmin(w, r)
	if !ok {
		return
	}
	grants, err := h.store.Access.ListGrants(r.Context(), cal.ID)
	if err != nil {
		httperr.InternalError(w, r, err, "list grants")
		return
	}
	views := make([]grantView, 0, len(grants))
	for i := range grants {
		views = append(views, viewGrant(&grants[i]))
	}
	respond(w, http.StatusOK, views)
}

// invite grants access to an email address. Existing accounts get a direct
// grant immediately; unknown emails get a pending invitation resolved at
// registration.
func (h *Handler) invite(w http.ResponseWriter, r *http.Request) {
	cal, _, ok := h.requireAdmin(w, r)
	if !ok {
		return
	}
	// Invitations record who sent them, so link-token admins cannot invite.
	inviter, ok := auth.UserFromContext(r.Context())
	if !ok {
		httperr.JSON(w, http.StatusUnauthorized, "authentication required")
		return
	}

	var req inviteRequest
	if err := h.decode(r, &req); err != nil {
		httperr.BadRequest(w, r, err, "invalid invite payload")
		return
	}
	perm, ok := parsePermission(w, req.Permission)
	if !ok {
		return
	}
	subID, ok := parseOptionalUUID(w, req.SubCalendarID, "sub-calendar id")
	if !ok {
		return
	}
	groupID, ok := parseOptionalUUID(w, req.GroupID, "group id")
	if !ok {
		return
	}

	target, err := h.store.Users.GetByEmail(r.Context(), req.Email)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		httperr.InternalError(w, r, err, "look up invitee")
		return
	}

	if target != nil {
		grant, err := h.store.Access.CreateGrant(r.Context(), store.AccessGrant{
			CalendarID:    cal.ID,
			SubCalendarID: subID,
			UserID:        &target.ID,
			Permission:    perm,
		})
		if err != nil {
			httperr.InternalError(w, r, err, "create grant")
			return
		}
		if groupID != nil {
			if err := h.store.Groups.AddMember(r.Context(), *groupID, target.ID); err != nil {
				httperr.InternalError(w, r, err, "add group member")
				return
			}
		}
		h.resolver.Invalidate(cal.ID)
		respond(w, http.StatusCreated, viewGrant(grant))
		return
	}

	exists, err := h.store.Invitations.ExistsForEmail(r.Context(), cal.ID, req.Email)
	if err != nil {
		httperr.InternalError(w, r, err, "check invitation")
		return
	}
	if exists {
		httperr.JSON(w, http.StatusConflict, "invitation already pending for this email")
		return
	}
	inv, err := h.store.Invitations.Create(r.Context(), store.PendingInvitation{
		CalendarID:    cal.ID,
		Email:         req.Email,
		Permission:    perm,
		SubCalendarID: subID,
		GroupID:       groupID,
		InvitedBy:     inviter.ID,
	})
	if err != nil {
		httperr.InternalError(w, r, err, "create invitation")
		return
	}
	if err := h.notifier.InvitationCreated(r.Context(), notify.Invitation{
		Email:         inv.Email,
		CalendarTitle: cal.Title,
		InviterName:   inviter.Name,
	}); err != nil {
		httperr.LogError(r, "notify invitee", err)
	}
	respond(w, http.StatusAccepted, map[string]string{"invitation_id": inv.ID.String(), "email": inv.Email})
}

func (h *Handler) updateGrant(w http.ResponseWriter, r *http.Request) {
	cal, _, ok := h.requireAdmin(w, r)
	if !ok {
		return
	}
	grantID, err := uuidParam(r, "grantID")
	if err != nil {
		httperr.BadRequest(w, r, err, "invalid grant id")
		return
	}
	var req grantRequest
	if err := h.decode(r, &req); err != nil {
		httperr.BadRequest(w, r, err, "invalid grant payload")
		return
	}
	perm, ok := parsePermission(w, req.Permission)
	if !ok {
		return
	}

	grant, err := h.store.Access.GetGrant(r.Context(), grantID)
	if errors.Is(err, store.ErrNotFound) || (err == nil && grant.CalendarID != cal.ID) {
		httperr.JSON(w, http.StatusNotFound, "grant not found")
		return
	}
	if err != nil {
		httperr.InternalError(w, r, err, "load grant")
		return
	}
	if err := h.store.Access.UpdateGrantPermission(r.Context(), grantID, perm); err != nil {
		httperr.InternalError(w, r, err, "update grant")
		return
	}
	h.resolver.Invalidate(cal.ID)
	grant.Permission = perm
	respond(w, http.StatusOK, viewGrant(grant))
}

func (h *Handler) deleteGrant(w http.ResponseWriter, r *http.Request) {
	cal, _, ok := h.requireAdmin(w, r)
	if !ok {
		return
	}
	grantID, err := uuidParam(r, "grantID")
	if err != nil {
		httperr.BadRequest(w, r, err, "invalid grant id")
		return
	}
	grant, err := h.store.Access.GetGrant(r.Context(), grantID)
	if errors.Is(err, store.ErrNotFound) || (err == nil && grant.CalendarID != cal.ID) {
		httperr.JSON(w, http.StatusNotFound, "grant not found")
		return
	}
	if err != nil {
		httperr.InternalError(w, r, err, "load grant")
		return
	}
	if err := h.store.Access.DeleteGrant(r.Context(), grantID); err != nil {
		httperr.InternalError(w, r, err, "delete grant")
		return
	}
	h.resolver.Invalidate(cal.ID)
	respond(w, http.StatusNoContent, nil)
}

func (h *Handler) listInvitations(w http.ResponseWriter, r *http.Request) {
	cal, _, ok := h.requireAdmin(w, r)
	if !ok {
		return
	}
	invs, err := h.store.Invitations.ListByCalendar(r.Context(), cal.ID)
	if err != nil {
		httperr.InternalError(w, r, err, "list invitations")
		return
	}
	type invView struct {
		ID         string `json:"id"`
		Email      string `json:"email"`
		Permission string `json:"permission"`
	}
	views := make([]invView, 0, len(invs))
	for _, inv := range invs {
		views = append(views, invView{ID: inv.ID.String(), Email: inv.Email, Permission: string(inv.Permission)})
	}
	respond(w, http.StatusOK, views)
}

func (h *Handler) deleteInvitation(w http.ResponseWriter, r *http.Request) {
	cal, _, ok := h.requireAdmin(w, r)
	if !ok {
		return
	}
	invID, err := uuidParam(r, "invitationID")
	if err != nil {
		httperr.BadRequest(w, r, err, "invalid invitation id")
		return
	}
	inv, err := h.store.Invitations.GetByID(r.Context(), invID)
	if errors.Is(err, store.ErrNotFound) || (err == nil && inv.CalendarID != cal.ID) {
		httperr.JSON(w, http.StatusNotFound, "invitation not found")
		return
	}
	if err != nil {
		httperr.InternalError(w, r, err, "load invitation")
		return
	}
	if err := h.store.Invitations.Delete(r.Context(), invID); err != nil {
		httperr.InternalError(w, r, err, "delete invitation")
		return
	}
	respond(w, http.StatusNoContent, nil)
}
