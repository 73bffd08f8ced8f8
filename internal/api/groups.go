package api

import (
	"errors"
	"net/http"

	httperr "github.com/plabarre/agenda/internal/http/errors"
	"github.com/plabarre/agenda/internal/store"
)

type groupRequest struct {
	Name string `json:"name" validate:"required,max=120"`
}

type groupView struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

func viewGroup(g *store.Group) groupView {
	return groupView{ID: g.ID.String(), Name: g.Name}
}

func (h *Handler) listGroups(w http.ResponseWriter, r *http.Request) {
	cal, _, ok := h.requireAdmin(w, r)
	if !ok {
		return
	}
	groups, err := h.store.Groups.ListByCalendar(r.Context(), cal.ID)
	if err != nil {
		httperr.InternalError(w, r, err, "list groups")
		return
	}
	views := make([]groupView, 0, len(groups))
	for i := range groups {
		views = append(views, viewGroup(&groups[i]))
	}
	respond(w, http.StatusOK, views)
}

func (h *Handler) createGroup(w http.ResponseWriter, r *http.Request) {
	cal, _, ok := h.requireAdmin(w, r)
	if !ok {
		return
	}
	var req groupRequest
	if err := h.decode(r, &req); err != nil {
		httperr.BadRequest(w, r, err, "invalid group payload")
		return
	}
	created, err := h.store.Groups.Create(r.Context(), store.Group{CalendarID: cal.ID, Name: req.Name})
	if err != nil {
		httperr.InternalError(w, r, err, "create group")
		return
	}
	respond(w, http.StatusCreated, viewGroup(created))
}

// loadGroup fetches the group and checks it belongs to the calendar.
func (h *Handler) loadGroup(w http.ResponseWriter, r *http.Request, cal *store.Calendar) (*store.Group, bool) {
	groupID, err := uuidParam(r, "groupID")
	if err != nil {
		httperr.BadRequest(w, r, err, "invalid group id")
		return nil, false
	}
	group, err := h.store.Groups.GetByID(r.Context(), groupID)
	if errors.Is(err, store.ErrNotFound) || (err == nil && group.CalendarID != cal.ID) {
		httperr.JSON(w, http.StatusNotFound, "group not found")
		return nil, false
	}
	if err != nil {
		httperr.InternalError(w, r, err, "load group")
		return nil, false
	}
	return group, true
}

func (h *Handler) deleteGroup(w http.ResponseWriter, r *http.Request) {
	cal, _, ok := h.requireAdmin(w, r)
	if !ok {
		return
	}
	group, ok := h.loadGroup(w, r, cal)
	if !ok {
		return
	}
	if err := h.store.Groups.Delete(r.Context(), group.ID); err != nil {
		httperr.InternalError(w, r, err, "delete group")
		return
	}
	h.resolver.Invalidate(cal.ID)
	respond(w, http.StatusNoContent, nil)
}

func (h *Handler) listGroupMembers(w http.ResponseWriter, r *http.Request) {
	cal, _, ok := h.requireAdmin(w, r)
	if !ok {
		return
	}
	group, ok := h.loadGroup(w, r, cal)
	if !ok {
		return
	}
	members, err := h.store.Groups.ListMembers(r.Context(), group.ID)
	if err != nil {
		httperr.InternalError(w, r, err, "list group members")
		return
	}
	views := make([]userView, 0, len(members))
	for i := range members {
		views = append(views, viewUser(&members[i]))
	}
	respond(w, http.StatusOK, views)
}

func (h *Handler) addGroupMember(w http.ResponseWriter, r *http.Request) {
	cal, _, ok := h.requireAdmin(w, r)
	if !ok {
		return
	}
	group, ok := h.loadGroup(w, r, cal)
	if !ok {
		return
	}
	var req struct {
		UserID string `json:"user_id" validate:"required,uuid"`
	}
	if err := h.decode(r, &req); err != nil {
		httperr.BadRequest(w, r, err, "invalid member payload")
		return
	}
	userID, ok := parseOptionalUUID(w, &req.UserID, "user id")
	if !ok {
		return
	}
	if _, err := h.store.Users.GetByID(r.Context(), *userID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			httperr.JSON(w, http.StatusNotFound, "user not found")
			return
		}
		httperr.InternalError(w, r, err, "load user")
		return
	}
	if err := h.store.Groups.AddMember(r.Context(), group.ID, *userID); err != nil {
		httperr.InternalError(w, r, err, "add group member")
		return
	}
	h.resolver.Invalidate(cal.ID)
	respond(w, http.StatusNoContent, nil)
}

func (h *Handler) removeGroupMember(w http.ResponseWriter, r *http.Request) {
	cal, _, ok := h.requireAdmin(w, r)
	if !ok {
		return
	}
	group, ok := h.loadGroup(w, r, cal)
	if !ok {
		return
	}
	userID, err := uuidParam(r, "userID")
	if err != nil {
		httperr.BadRequest(w, r, err, "invalid user id")
		return
	}
	if err := h.store.Groups.RemoveMember(r.Context(), group.ID, userID); err != nil {
		httperr.InternalError(w, r, err, "remove group member")
		return
	}
	h.resolver.Invalidate(cal.ID)
	respond(w, http.StatusNoContent, nil)
}

// createGroupGrant attaches a permission grant to a group.
func (h *Handler) createGroupGrant(w http.ResponseWriter, r *http.Request) {
	cal, _, ok := h.requireAdmin(w, r)
	if !ok {
		return
	}
	group, ok := h.loadGroup(w, r, cal)
	if !ok {
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
	subID, ok := parseOptionalUUID(w, req.SubCalendarID, "sub-calendar id")
	if !ok {
		return
	}

	// One grant per (group, scope): update in place when it already exists.
	existing, err := h.store.Access.FindGrant(r.Context(), cal.ID, nil, &group.ID, subID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		httperr.InternalError(w, r, err, "find grant")
		return
	}
	if existing != nil {
		if err := h.store.Access.UpdateGrantPermission(r.Context(), existing.ID, perm); err != nil {
			httperr.InternalError(w, r, err, "update grant")
			return
		}
		h.resolver.Invalidate(cal.ID)
		existing.Permission = perm
		respond(w, http.StatusOK, viewGrant(existing))
		return
	}

	grant, err := h.store.Access.CreateGrant(r.Context(), store.AccessGrant{
		CalendarID:    cal.ID,
		SubCalendarID: subID,
		GroupID:       &group.ID,
		Permission:    perm,
	})
	if err != nil {
		httperr.InternalError(w, r, err, "create grant")
		return
	}
	h.resolver.Invalidate(cal.ID)
	respond(w, http.StatusCreated, viewGrant(grant))
}

func (h *Handler) listGroupGrants(w http.ResponseWriter, r *http.Request) {
	cal, _, ok := h.requireAdmin(w, r)
	if !ok {
		return
	}
	group, ok := h.loadGroup(w, r, cal)
	if !ok {
		return
	}
	grants, err := h.store.Access.ListGrantsByGroup(r.Context(), cal.ID, group.ID)
	if err != nil {
		httperr.InternalError(w, r, err, "list group grants")
		return
	}
	views := make([]grantView, 0, len(grants))
	for i := range grants {
		views = append(views, viewGrant(&grants[i]))
	}
	respond(w, http.StatusOK, views)
}
