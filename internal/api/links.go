package api

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"net/http"

	httperr "github.com/plabarre/agenda/internal/http/errors"
	"github.com/plabarre/agenda/internal/store"
)

type linkRequest struct {
	Label      *string `json:"label"`
	Permission string  `json:"permission" validate:"required"`
	GroupID    *string `json:"group_id"`
}

type linkUpdateRequest struct {
	Label  *string `json:"label"`
	Active *bool   `json:"active"`
}

type linkView struct {
	ID         string  `json:"id"`
	Token      string  `json:"token"`
	Label      *string `json:"label,omitempty"`
	Active     bool    `json:"active"`
	GroupID    *string `json:"group_id,omitempty"`
	Permission string  `json:"permission,omitempty"`
}

func viewLink(l *store.AccessLink, perm string) linkView {
	v := linkView{ID: l.ID.String(), Token: l.Token, Label: l.Label, Active: l.Active, Permission: perm}
	if l.GroupID != nil {
		s := l.GroupID.String()
		v.GroupID = &s
	}
	return v
}

func newLinkToken() (string, error) {
	buf := make([]byte, 24)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

func (h *Handler) listLinks(w http.ResponseWriter, r *http.Request) {
	cal, _, ok := h.requireAdmin(w, r)
	if !ok {
		return
	}
	links, err := h.store.Access.ListLinks(r.Context(), cal.ID)
	if err != nil {
		httperr.InternalError(w, r, err, "list links")
		return
	}
	views := make([]linkView, 0, len(links))
	for i := range links {
		perm := ""
		if grant, err := h.store.Access.GrantForLinkID(r.Context(), links[i].ID); err == nil {
			perm = string(grant.Permission)
		}
		views = append(views, viewLink(&links[i], perm))
	}
	respond(w, http.StatusOK, views)
}

// createLink creates the link and its backing grant in one step.
func (h *Handler) createLink(w http.ResponseWriter, r *http.Request) {
	cal, _, ok := h.requireAdmin(w, r)
	if !ok {
		return
	}
	var req linkRequest
	if err := h.decode(r, &req); err != nil {
		httperr.BadRequest(w, r, err, "invalid link payload")
		return
	}
	perm, ok := parsePermission(w, req.Permission)
	if !ok {
		return
	}
	groupID, ok := parseOptionalUUID(w, req.GroupID, "group id")
	if !ok {
		return
	}

	token, err := newLinkToken()
	if err != nil {
		httperr.InternalError(w, r, err, "generate link token")
		return
	}
	link, err := h.store.Access.CreateLink(r.Context(), store.AccessLink{
		CalendarID: cal.ID,
		Token:      token,
		Label:      req.Label,
		Active:     true,
		GroupID:    groupID,
	})
	if err != nil {
		httperr.InternalError(w, r, err, "create link")
		return
	}
	if _, err := h.store.Access.CreateGrant(r.Context(), store.AccessGrant{
		CalendarID: cal.ID,
		LinkID:     &link.ID,
		Permission: perm,
	}); err != nil {
		httperr.InternalError(w, r, err, "create link grant")
		return
	}
	h.resolver.Invalidate(cal.ID)
	respond(w, http.StatusCreated, viewLink(link, string(perm)))
}

func (h *Handler) updateLink(w http.ResponseWriter, r *http.Request) {
	cal, _, ok := h.requireAdmin(w, r)
	if !ok {
		return
	}
	linkID, err := uuidParam(r, "linkID")
	if err != nil {
		httperr.BadRequest(w, r, err, "invalid link id")
		return
	}
	var req linkUpdateRequest
	if err := h.decode(r, &req); err != nil {
		httperr.BadRequest(w, r, err, "invalid link payload")
		return
	}

	link, err := h.store.Access.GetLink(r.Context(), linkID)
	if errors.Is(err, store.ErrNotFound) || (err == nil && link.CalendarID != cal.ID) {
		httperr.JSON(w, http.StatusNotFound, "link not found")
		return
	}
	if err != nil {
		httperr.InternalError(w, r, err, "load link")
		return
	}

	if req.Label != nil {
		link.Label = req.Label
	}
	if req.Active != nil {
		link.Active = *req.Active
	}
	if err := h.store.Access.UpdateLink(r.Context(), *link); err != nil {
		httperr.InternalError(w, r, err, "update link")
		return
	}
	h.resolver.Invalidate(cal.ID)

	perm := ""
	if grant, err := h.store.Access.GrantForLinkID(r.Context(), link.ID); err == nil {
		perm = string(grant.Permission)
	}
	respond(w, http.StatusOK, viewLink(link, perm))
}

func (h *Handler) deleteLink(w http.ResponseWriter, r *http.Request) {
	cal, _, ok := h.requireAdmin(w, r)
	if !ok {
		return
	}
	linkID, err := uuidParam(r, "linkID")
	if err != nil {
		httperr.BadRequest(w, r, err, "invalid link id")
		return
	}
	link, err := h.store.Access.GetLink(r.Context(), linkID)
	if errors.Is(err, store.ErrNotFound) || (err == nil && link.CalendarID != cal.ID) {
		httperr.JSON(w, http.StatusNotFound, "link not found")
		return
	}
	if err != nil {
		httperr.InternalError(w, r, err, "load link")
		return
	}
	if err := h.store.Access.DeleteLink(r.Context(), linkID); err != nil {
		httperr.InternalError(w, r, err, "delete link")
		return
	}
	h.resolver.Invalidate(cal.ID)
	respond(w, http.StatusNoContent, nil)
}
