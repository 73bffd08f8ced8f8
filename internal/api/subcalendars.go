package api

import (
	"errors"
	"net/http"

	httperr "github.com/plabarre/agenda/internal/http/errors"
	"github.com/plabarre/agenda/internal/permission"
	"github.com/plabarre/agenda/internal/store"
)

type subCalendarRequest struct {
	Name     string `json:"name" validate:"required,max=120"`
	Color    string `json:"color" validate:"omitempty,hexcolor"`
	Active   *bool  `json:"active"`
	Position int    `json:"position" validate:"min=0"`
}

type subCalendarView struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Color    string `json:"color"`
	Active   bool   `json:"active"`
	Position int    `json:"position"`
}

func viewSubCalendar(sc *store.SubCalendar) subCalendarView {
	return subCalendarView{
		ID:       sc.ID.String(),
		Name:     sc.Name,
		Color:    sc.Color,
		Active:   sc.Active,
		Position: sc.Position,
	}
}

func (h *Handler) listSubCalendars(w http.ResponseWriter, r *http.Request) {
	cal, _, ok := h.requireCalendar(w, r, permission.CanReadLimited)
	if !ok {
		return
	}
	subs, err := h.store.SubCalendars.ListByCalendar(r.Context(), cal.ID)
	if err != nil {
		httperr.InternalError(w, r, err, "list sub-calendars")
		return
	}
	views := make([]subCalendarView, 0, len(subs))
	for i := range subs {
		views = append(views, viewSubCalendar(&subs[i]))
	}
	respond(w, http.StatusOK, views)
}

func (h *Handler) createSubCalendar(w http.ResponseWriter, r *http.Request) {
	cal, _, ok := h.requireAdmin(w, r)
	if !ok {
		return
	}
	var req subCalendarRequest
	if err := h.decode(r, &req); err != nil {
		httperr.BadRequest(w, r, err, "invalid sub-calendar payload")
		return
	}
	sc := store.SubCalendar{
		CalendarID: cal.ID,
		Name:       req.Name,
		Color:      req.Color,
		Active:     true,
		Position:   req.Position,
	}
	if sc.Color == "" {
		sc.Color = "#3788d8"
	}
	if req.Active != nil {
		sc.Active = *req.Active
	}
	created, err := h.store.SubCalendars.Create(r.Context(), sc)
	if err != nil {
		httperr.InternalError(w, r, err, "create sub-calendar")
		return
	}
	respond(w, http.StatusCreated, viewSubCalendar(created))
}

func (h *Handler) updateSubCalendar(w http.ResponseWriter, r *http.Request) {
	cal, _, ok := h.requireAdmin(w, r)
	if !ok {
		return
	}
	id, err := uuidParam(r, "subCalendarID")
	if err != nil {
		httperr.BadRequest(w, r, err, "invalid sub-calendar id")
		return
	}
	var req subCalendarRequest
	if err := h.decode(r, &req); err != nil {
		httperr.BadRequest(w, r, err, "invalid sub-calendar payload")
		return
	}
	sc, err := h.store.SubCalendars.GetByID(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) || (err == nil && sc.CalendarID != cal.ID) {
		httperr.JSON(w, http.StatusNotFound, "sub-calendar not found")
		return
	}
	if err != nil {
		httperr.InternalError(w, r, err, "load sub-calendar")
		return
	}

	sc.Name = req.Name
	if req.Color != "" {
		sc.Color = req.Color
	}
	if req.Active != nil {
		sc.Active = *req.Active
	}
	sc.Position = req.Position
	if err := h.store.SubCalendars.Update(r.Context(), *sc); err != nil {
		httperr.InternalError(w, r, err, "update sub-calendar")
		return
	}
	respond(w, http.StatusOK, viewSubCalendar(sc))
}

func (h *Handler) deleteSubCalendar(w http.ResponseWriter, r *http.Request) {
	cal, _, ok := h.requireAdmin(w, r)
	if !ok {
		return
	}
	id, err := uuidParam(r, "subCalendarID")
	if err != nil {
		httperr.BadRequest(w, r, err, "invalid sub-calendar id")
		return
	}
	if err := h.store.SubCalendars.Delete(r.Context(), cal.ID, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			httperr.JSON(w, http.StatusNotFound, "sub-calendar not found")
			return
		}
		httperr.InternalError(w, r, err, "delete sub-calendar")
		return
	}
	h.resolver.Invalidate(cal.ID)
	respond(w, http.StatusNoContent, nil)
}
