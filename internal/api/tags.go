package api

import (
	"errors"
	"net/http"

	httperr "github.com/plabarre/agenda/internal/http/errors"
	"github.com/plabarre/agenda/internal/permission"
	"github.com/plabarre/agenda/internal/store"
)

type tagRequest struct {
	Name     string `json:"name" validate:"required,max=80"`
	Color    string `json:"color" validate:"omitempty,hexcolor"`
	Position int    `json:"position" validate:"min=0"`
}

type tagView struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Color    string `json:"color"`
	Position int    `json:"position"`
}

func viewTag(t *store.Tag) tagView {
	return tagView{ID: t.ID.String(), Name: t.Name, Color: t.Color, Position: t.Position}
}

func (h *Handler) listTags(w http.ResponseWriter, r *http.Request) {
	cal, _, ok := h.requireCalendar(w, r, permission.CanReadLimited)
	if !ok {
		return
	}
	tags, err := h.store.Tags.ListByCalendar(r.Context(), cal.ID)
	if err != nil {
		httperr.InternalError(w, r, err, "list tags")
		return
	}
	views := make([]tagView, 0, len(tags))
	for i := range tags {
		views = append(views, viewTag(&tags[i]))
	}
	respond(w, http.StatusOK, views)
}

func (h *Handler) createTag(w http.ResponseWriter, r *http.Request) {
	cal, _, ok := h.requireAdmin(w, r)
	if !ok {
		return
	}
	var req tagRequest
	if err := h.decode(r, &req); err != nil {
		httperr.BadRequest(w, r, err, "invalid tag payload")
		return
	}
	tag := store.Tag{CalendarID: cal.ID, Name: req.Name, Color: req.Color, Position: req.Position}
	if tag.Color == "" {
		tag.Color = "#3788d8"
	}
	created, err := h.store.Tags.Create(r.Context(), tag)
	if err != nil {
		httperr.InternalError(w, r, err, "create tag")
		return
	}
	respond(w, http.StatusCreated, viewTag(created))
}

func (h *Handler) updateTag(w http.ResponseWriter, r *http.Request) {
	cal, _, ok := h.requireAdmin(w, r)
	if !ok {
		return
	}
	id, err := uuidParam(r, "tagID")
	if err != nil {
		httperr.BadRequest(w, r, err, "invalid tag id")
		return
	}
	var req tagRequest
	if err := h.decode(r, &req); err != nil {
		httperr.BadRequest(w, r, err, "invalid tag payload")
		return
	}
	tag, err := h.store.Tags.GetByID(r.Context(), cal.ID, id)
	if errors.Is(err, store.ErrNotFound) {
		httperr.JSON(w, http.StatusNotFound, "tag not found")
		return
	}
	if err != nil {
		httperr.InternalError(w, r, err, "load tag")
		return
	}
	tag.Name = req.Name
	if req.Color != "" {
		tag.Color = req.Color
	}
	tag.Position = req.Position
	if err := h.store.Tags.Update(r.Context(), *tag); err != nil {
		httperr.InternalError(w, r, err, "update tag")
		return
	}
	respond(w, http.StatusOK, viewTag(tag))
}

func (h *Handler) deleteTag(w http.ResponseWriter, r *http.Request) {
	cal, _, ok := h.requireAdmin(w, r)
	if !ok {
		return
	}
	id, err := uuidParam(r, "tagID")
	if err != nil {
		httperr.BadRequest(w, r, err, "invalid tag id")
		return
	}
	if err := h.store.Tags.Delete(r.Context(), cal.ID, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			httperr.JSON(w, http.StatusNotFound, "tag not found")
			return
		}
		httperr.InternalError(w, r, err, "delete tag")
		return
	}
	respond(w, http.StatusNoContent, nil)
}
