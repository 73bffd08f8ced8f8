package api

import (
	"errors"
	"net/http"
	"regexp"

	"github.com/go-chi/chi/v5"

	"github.com/plabarre/agenda/internal/auth"
	httperr "github.com/plabarre/agenda/internal/http/errors"
	"github.com/plabarre/agenda/internal/permission"
	"github.com/plabarre/agenda/internal/store"
)

var slugPattern = regexp.MustCompile(`^[a-z0-9](?:[a-z0-9-]{1,62}[a-z0-9])?$`)

type createCalendarRequest struct {
	Slug     string `json:"slug" validate:"required,min=2,max=64"`
	Title    string `json:"title" validate:"required,max=200"`
	Timezone string `json:"timezone"`
	Language string `json:"language" validate:"omitempty,oneof=fr en nl de"`
}

type updateCalendarRequest struct {
	Title                string `json:"title" validate:"required,max=200"`
	Timezone             string `json:"timezone" validate:"required"`
	Language             string `json:"language" validate:"required,oneof=fr en nl de"`
	WeekStart            int    `json:"week_start" validate:"min=0,max=6"`
	DateFormat           string `json:"date_format" validate:"required"`
	DefaultView          string `json:"default_view" validate:"required,oneof=month week day list"`
	VisibleTimeStart     string `json:"visible_time_start" validate:"required"`
	VisibleTimeEnd       string `json:"visible_time_end" validate:"required"`
	DefaultEventDuration int    `json:"default_event_duration" validate:"min=5,max=1440"`
	ShowWeekends         bool   `json:"show_weekends"`
	EmailNotifications   bool   `json:"email_notifications"`
}

type calendarView struct {
	ID                   string `json:"id"`
	Slug                 string `json:"slug"`
	Title                string `json:"title"`
	Timezone             string `json:"timezone"`
	Language             string `json:"language"`
	WeekStart            int    `json:"week_start"`
	DateFormat           string `json:"date_format"`
	DefaultView          string `json:"default_view"`
	VisibleTimeStart     string `json:"visible_time_start"`
	VisibleTimeEnd       string `json:"visible_time_end"`
	DefaultEventDuration int    `json:"default_event_duration"`
	ShowWeekends         bool   `json:"show_weekends"`
	EmailNotifications   bool   `json:"email_notifications"`
	IsOwner              bool   `json:"is_owner"`
	Permission           string `json:"permission,omitempty"`
}

func viewCalendar(cal *store.Calendar, isOwner bool, perm permission.Permission) calendarView {
	v := calendarView{
		ID:                   cal.ID.String(),
		Slug:                 cal.Slug,
		Title:                cal.Title,
		Timezone:             cal.Timezone,
		Language:             cal.Language,
		WeekStart:            cal.WeekStart,
		DateFormat:           cal.DateFormat,
		DefaultView:          cal.DefaultView,
		VisibleTimeStart:     cal.VisibleTimeStart,
		VisibleTimeEnd:       cal.VisibleTimeEnd,
		DefaultEventDuration: cal.DefaultEventDuration,
		ShowWeekends:         cal.ShowWeekends,
		EmailNotifications:   cal.EmailNotifications,
		IsOwner:              isOwner,
	}
	if perm != "" {
		v.Permission = string(perm)
	}
	return v
}

// createCalendar is restricted to application admins; regular accounts get
// calendars provisioned for them.
func (h *Handler) createCalendar(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.UserFromContext(r.Context())

	var req createCalendarRequest
	if err := h.decode(r, &req); err != nil {
		httperr.BadRequest(w, r, err, "invalid calendar payload")
		return
	}
	if !slugPattern.MatchString(req.Slug) {
		httperr.JSON(w, http.StatusBadRequest, "slug must be lowercase letters, digits and hyphens")
		return
	}

	taken, err := h.store.Calendars.SlugExists(r.Context(), req.Slug)
	if err != nil {
		httperr.InternalError(w, r, err, "check slug")
		return
	}
	if taken {
		httperr.JSON(w, http.StatusConflict, "slug already in use")
		return
	}

	cal := store.Calendar{
		Slug:                 req.Slug,
		Title:                req.Title,
		OwnerID:              user.ID,
		Timezone:             req.Timezone,
		Language:             req.Language,
		WeekStart:            1,
		DateFormat:           "DD/MM/YYYY",
		DefaultView:          "month",
		VisibleTimeStart:     "00:00",
		VisibleTimeEnd:       "24:00",
		DefaultEventDuration: 60,
		ShowWeekends:         true,
		EmailNotifications:   true,
	}
	if cal.Timezone == "" {
		cal.Timezone = "Europe/Paris"
	}
	if cal.Language == "" {
		cal.Language = "fr"
	}

	created, err := h.store.Calendars.Create(r.Context(), cal)
	if err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			httperr.JSON(w, http.StatusConflict, "slug already in use")
			return
		}
		httperr.InternalError(w, r, err, "create calendar")
		return
	}

	// Every calendar starts with one sub-calendar so events have a home.
	if _, err := h.store.SubCalendars.Create(r.Context(), store.SubCalendar{
		CalendarID: created.ID,
		Name:       created.Title,
		Color:      "#3788d8",
		Active:     true,
	}); err != nil {
		httperr.InternalError(w, r, err, "create default sub-calendar")
		return
	}

	respond(w, http.StatusCreated, viewCalendar(created, true, permission.Administrator))
}

func (h *Handler) myCalendars(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.UserFromContext(r.Context())
	cals, err := h.store.Calendars.ListOwned(r.Context(), user.ID)
	if err != nil {
		httperr.InternalError(w, r, err, "list owned calendars")
		return
	}
	views := make([]calendarView, 0, len(cals))
	for i := range cals {
		views = append(views, viewCalendar(&cals[i], true, permission.Administrator))
	}
	respond(w, http.StatusOK, views)
}

func (h *Handler) accessibleCalendars(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.UserFromContext(r.Context())
	cals, err := h.store.Calendars.ListAccessible(r.Context(), user.ID)
	if err != nil {
		httperr.InternalError(w, r, err, "list accessible calendars")
		return
	}
	views := make([]calendarView, 0, len(cals))
	for i := range cals {
		eff, err := h.resolver.Resolve(r.Context(), cals[i].ID, caller(r))
		if err != nil {
			httperr.InternalError(w, r, err, "resolve access")
			return
		}
		views = append(views, viewCalendar(&cals[i], eff.IsOwner, eff.Permission))
	}
	respond(w, http.StatusOK, views)
}

func (h *Handler) calendarBySlug(w http.ResponseWriter, r *http.Request) {
	cal, err := h.store.Calendars.GetBySlug(r.Context(), chi.URLParam(r, "slug"))
	if errors.Is(err, store.ErrNotFound) {
		httperr.JSON(w, http.StatusNotFound, "calendar not found")
		return
	}
	if err != nil {
		httperr.InternalError(w, r, err, "load calendar")
		return
	}
	eff, err := h.resolver.Resolve(r.Context(), cal.ID, caller(r))
	if err != nil {
		httperr.InternalError(w, r, err, "resolve access")
		return
	}
	if !permission.CanReadLimited(eff.Permission) {
		httperr.JSON(w, http.StatusNotFound, "calendar not found")
		return
	}
	respond(w, http.StatusOK, viewCalendar(cal, eff.IsOwner, eff.Permission))
}

func (h *Handler) getCalendar(w http.ResponseWriter, r *http.Request) {
	cal, eff, ok := h.requireCalendar(w, r, permission.CanReadLimited)
	if !ok {
		return
	}
	respond(w, http.StatusOK, viewCalendar(cal, eff.IsOwner, eff.Permission))
}

func (h *Handler) updateCalendar(w http.ResponseWriter, r *http.Request) {
	cal, _, ok := h.requireAdmin(w, r)
	if !ok {
		return
	}
	var req updateCalendarRequest
	if err := h.decode(r, &req); err != nil {
		httperr.BadRequest(w, r, err, "invalid calendar payload")
		return
	}

	cal.Title = req.Title
	cal.Timezone = req.Timezone
	cal.Language = req.Language
	cal.WeekStart = req.WeekStart
	cal.DateFormat = req.DateFormat
	cal.DefaultView = req.DefaultView
	cal.VisibleTimeStart = req.VisibleTimeStart
	cal.VisibleTimeEnd = req.VisibleTimeEnd
	cal.DefaultEventDuration = req.DefaultEventDuration
	cal.ShowWeekends = req.ShowWeekends
	cal.EmailNotifications = req.EmailNotifications

	if err := h.store.Calendars.Update(r.Context(), *cal); err != nil {
		httperr.InternalError(w, r, err, "update calendar")
		return
	}
	respond(w, http.StatusOK, viewCalendar(cal, true, permission.Administrator))
}

func (h *Handler) deleteCalendar(w http.ResponseWriter, r *http.Request) {
	cal, ok := h.requireOwner(w, r)
	if !ok {
		return
	}
	if err := h.store.Calendars.Delete(r.Context(), cal.ID); err != nil {
		httperr.InternalError(w, r, err, "delete calendar")
		return
	}
	h.resolver.Invalidate(cal.ID)
	respond(w, http.StatusNoContent, nil)
}
