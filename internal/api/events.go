package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/plabarre/agenda/internal/access"
	"github.com/plabarre/agenda/internal/auth"
	httperr "github.com/plabarre/agenda/internal/http/errors"
	"github.com/plabarre/agenda/internal/ical"
	"github.com/plabarre/agenda/internal/permission"
	"github.com/plabarre/agenda/internal/recurrence"
	"github.com/plabarre/agenda/internal/store"
	"github.com/plabarre/agenda/internal/translate"
)

// maskedTitle replaces the real title for callers who may only see busy/free
// information.
const maskedTitle = "Occupé"

type eventRequest struct {
	SubCalendarID string     `json:"sub_calendar_id" validate:"required,uuid"`
	Title         string     `json:"title" validate:"required,max=300"`
	StartAt       time.Time  `json:"start_at" validate:"required"`
	EndAt         time.Time  `json:"end_at" validate:"required"`
	AllDay        bool       `json:"all_day"`
	Location      *string    `json:"location"`
	Latitude      *float64   `json:"latitude" validate:"omitempty,latitude"`
	Longitude     *float64   `json:"longitude" validate:"omitempty,longitude"`
	Notes         *string    `json:"notes"`
	Who           *string    `json:"who"`
	SignupEnabled bool       `json:"signup_enabled"`
	SignupMax     *int       `json:"signup_max" validate:"omitempty,min=1"`
	RRule         *string    `json:"rrule"`
	TagIDs        []string   `json:"tag_ids" validate:"omitempty,dive,uuid"`
}

type eventView struct {
	ID            string    `json:"id"`
	SubCalendarID string    `json:"sub_calendar_id"`
	Title         string    `json:"title"`
	StartAt       time.Time `json:"start_at"`
	EndAt         time.Time `json:"end_at"`
	AllDay        bool      `json:"all_day"`
	Location      *string   `json:"location,omitempty"`
	Latitude      *float64  `json:"latitude,omitempty"`
	Longitude     *float64  `json:"longitude,omitempty"`
	Notes         *string   `json:"notes,omitempty"`
	Who           *string   `json:"who,omitempty"`
	SignupEnabled bool      `json:"signup_enabled"`
	SignupMax     *int      `json:"signup_max,omitempty"`
	RRule         *string   `json:"rrule,omitempty"`
	TagIDs        []string  `json:"tag_ids,omitempty"`
	CreatorUserID *string   `json:"creator_user_id,omitempty"`
	CanEdit       bool      `json:"can_edit"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// viewEvent renders an event for the caller: translation overlay first, then
// detail masking for read_only_no_details.
func (h *Handler) viewEvent(ev *store.Event, cal *store.Calendar, eff access.Effective, user *store.User, lang string) eventView {
	v := eventView{
		ID:            ev.ID.String(),
		SubCalendarID: ev.SubCalendarID.String(),
		Title:         ev.Title,
		StartAt:       ev.StartAt,
		EndAt:         ev.EndAt,
		AllDay:        ev.AllDay,
		Location:      ev.Location,
		Latitude:      ev.Latitude,
		Longitude:     ev.Longitude,
		Notes:         ev.Notes,
		Who:           ev.Who,
		SignupEnabled: ev.SignupEnabled,
		SignupMax:     ev.SignupMax,
		RRule:         ev.RRule,
		UpdatedAt:     ev.UpdatedAt,
	}
	for _, id := range ev.TagIDs {
		v.TagIDs = append(v.TagIDs, id.String())
	}
	if ev.CreatorUserID != nil {
		s := ev.CreatorUserID.String()
		v.CreatorUserID = &s
	}
	v.CanEdit = canEditEvent(ev, eff, user)

	if lang != "" && translate.SupportedLanguages[lang] {
		title, notes := translate.EventText(ev, cal.Language, lang)
		v.Title = title
		if notes != "" {
			v.Notes = &notes
		}
	}

	if !permission.CanRead(eff.Permission) {
		v.Title = maskedTitle
		v.Location = nil
		v.Latitude = nil
		v.Longitude = nil
		v.Notes = nil
		v.Who = nil
		v.RRule = nil
		v.TagIDs = nil
		v.CreatorUserID = nil
	}
	return v
}

func canEditEvent(ev *store.Event, eff access.Effective, user *store.User) bool {
	if permission.CanModify(eff.Permission) {
		return true
	}
	if permission.CanModifyOwn(eff.Permission) && user != nil &&
		ev.CreatorUserID != nil && *ev.CreatorUserID == user.ID {
		return true
	}
	return false
}

func parseWindow(r *http.Request) (store.EventWindow, error) {
	var window store.EventWindow
	if raw := r.URL.Query().Get("start"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return window, err
		}
		window.Start = t
	}
	if raw := r.URL.Query().Get("end"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return window, err
		}
		window.End = t
	}
	return window, nil
}

func (h *Handler) listEvents(w http.ResponseWriter, r *http.Request) {
	cal, eff, ok := h.requireCalendar(w, r, permission.CanReadLimited)
	if !ok {
		return
	}
	window, err := parseWindow(r)
	if err != nil {
		httperr.BadRequest(w, r, err, "invalid time window")
		return
	}

	events, err := h.store.Events.ListForCalendar(r.Context(), cal.ID, window, nil)
	if err != nil {
		httperr.InternalError(w, r, err, "list events")
		return
	}

	user, _ := auth.UserFromContext(r.Context())
	lang := r.URL.Query().Get("lang")

	if r.URL.Query().Get("expand") == "true" && !window.Start.IsZero() && !window.End.IsZero() {
		type occurrenceView struct {
			Event eventView `json:"event"`
			recurrence.Occurrence
		}
		out := make([]occurrenceView, 0, len(events))
		for i := range events {
			occs, err := recurrence.Expand(&events[i], window.Start, window.End)
			if err != nil {
				httperr.LogError(r, "expand event", err)
				continue
			}
			view := h.viewEvent(&events[i], cal, eff, user, lang)
			for _, occ := range occs {
				out = append(out, occurrenceView{Event: view, Occurrence: occ})
			}
		}
		respond(w, http.StatusOK, out)
		return
	}

	views := make([]eventView, 0, len(events))
	for i := range events {
		views = append(views, h.viewEvent(&events[i], cal, eff, user, lang))
	}
	respond(w, http.StatusOK, views)
}

func (h *Handler) searchEvents(w http.ResponseWriter, r *http.Request) {
	// Search exposes titles and notes, so limited readers are excluded.
	cal, eff, ok := h.requireCalendar(w, r, permission.CanRead)
	if !ok {
		return
	}
	query := r.URL.Query().Get("q")
	if query == "" {
		httperr.JSON(w, http.StatusBadRequest, "missing query")
		return
	}
	events, err := h.store.Events.Search(r.Context(), cal.ID, query)
	if err != nil {
		httperr.InternalError(w, r, err, "search events")
		return
	}
	user, _ := auth.UserFromContext(r.Context())
	lang := r.URL.Query().Get("lang")
	views := make([]eventView, 0, len(events))
	for i := range events {
		views = append(views, h.viewEvent(&events[i], cal, eff, user, lang))
	}
	respond(w, http.StatusOK, views)
}

// loadEvent fetches the event and checks it belongs to the calendar.
func (h *Handler) loadEvent(w http.ResponseWriter, r *http.Request, cal *store.Calendar) (*store.Event, bool) {
	eventID, err := uuidParam(r, "eventID")
	if err != nil {
		httperr.BadRequest(w, r, err, "invalid event id")
		return nil, false
	}
	ev, err := h.store.Events.GetByID(r.Context(), eventID)
	if errors.Is(err, store.ErrNotFound) {
		httperr.JSON(w, http.StatusNotFound, "event not found")
		return nil, false
	}
	if err != nil {
		httperr.InternalError(w, r, err, "load event")
		return nil, false
	}
	sc, err := h.store.SubCalendars.GetByID(r.Context(), ev.SubCalendarID)
	if err != nil || sc.CalendarID != cal.ID {
		httperr.JSON(w, http.StatusNotFound, "event not found")
		return nil, false
	}
	return ev, true
}

func (h *Handler) getEvent(w http.ResponseWriter, r *http.Request) {
	cal, eff, ok := h.requireCalendar(w, r, permission.CanReadLimited)
	if !ok {
		return
	}
	ev, ok := h.loadEvent(w, r, cal)
	if !ok {
		return
	}
	user, _ := auth.UserFromContext(r.Context())
	respond(w, http.StatusOK, h.viewEvent(ev, cal, eff, user, r.URL.Query().Get("lang")))
}

func (h *Handler) createEvent(w http.ResponseWriter, r *http.Request) {
	cal, _, ok := h.resolveOnly(w, r)
	if !ok {
		return
	}
	var req eventRequest
	if err := h.decode(r, &req); err != nil {
		httperr.BadRequest(w, r, err, "invalid event payload")
		return
	}
	subID, err := uuid.Parse(req.SubCalendarID)
	if err != nil {
		httperr.JSON(w, http.StatusBadRequest, "invalid sub-calendar id")
		return
	}
	sc, err := h.store.SubCalendars.GetByID(r.Context(), subID)
	if err != nil || sc.CalendarID != cal.ID {
		httperr.JSON(w, http.StatusNotFound, "sub-calendar not found")
		return
	}

	// The add check is scoped to the target sub-calendar, so a grant limited
	// to another sub-calendar gives no write access here.
	eff, err := h.resolver.ResolveScoped(r.Context(), cal.ID, caller(r), subID)
	if err != nil {
		httperr.InternalError(w, r, err, "resolve access")
		return
	}
	if !permission.CanAdd(eff.Permission) {
		httperr.JSON(w, http.StatusForbidden, "insufficient permission")
		return
	}
	if !req.EndAt.After(req.StartAt) {
		httperr.JSON(w, http.StatusBadRequest, "event end must be after start")
		return
	}
	rr, err := normalizeRRule(req.RRule)
	if err != nil {
		httperr.JSON(w, http.StatusBadRequest, "invalid recurrence rule")
		return
	}

	ev := store.Event{
		SubCalendarID: subID,
		Title:         req.Title,
		StartAt:       req.StartAt,
		EndAt:         req.EndAt,
		AllDay:        req.AllDay,
		Location:      req.Location,
		Latitude:      req.Latitude,
		Longitude:     req.Longitude,
		Notes:         req.Notes,
		Who:           req.Who,
		SignupEnabled: req.SignupEnabled,
		SignupMax:     req.SignupMax,
		RRule:         rr,
	}
	user, _ := auth.UserFromContext(r.Context())
	if user != nil {
		ev.CreatorUserID = &user.ID
	}

	tagIDs, ok := h.validTagIDs(w, r, cal.ID, req.TagIDs)
	if !ok {
		return
	}
	ev.TagIDs = tagIDs

	created, err := h.store.Events.Create(r.Context(), ev)
	if err != nil {
		httperr.InternalError(w, r, err, "create event")
		return
	}
	respond(w, http.StatusCreated, h.viewEvent(created, cal, eff, user, ""))
}

func (h *Handler) updateEvent(w http.ResponseWriter, r *http.Request) {
	cal, _, ok := h.resolveOnly(w, r)
	if !ok {
		return
	}
	ev, ok := h.loadEvent(w, r, cal)
	if !ok {
		return
	}
	user, _ := auth.UserFromContext(r.Context())

	eff, err := h.resolver.ResolveScoped(r.Context(), cal.ID, caller(r), ev.SubCalendarID)
	if err != nil {
		httperr.InternalError(w, r, err, "resolve access")
		return
	}
	if !canEditEvent(ev, eff, user) {
		httperr.JSON(w, http.StatusForbidden, "insufficient permission")
		return
	}

	var req eventRequest
	if err := h.decode(r, &req); err != nil {
		httperr.BadRequest(w, r, err, "invalid event payload")
		return
	}
	subID, err := uuid.Parse(req.SubCalendarID)
	if err != nil {
		httperr.JSON(w, http.StatusBadRequest, "invalid sub-calendar id")
		return
	}
	if subID != ev.SubCalendarID {
		sc, err := h.store.SubCalendars.GetByID(r.Context(), subID)
		if err != nil || sc.CalendarID != cal.ID {
			httperr.JSON(w, http.StatusNotFound, "sub-calendar not found")
			return
		}
		// Moving the event needs write access on the destination too.
		destEff, err := h.resolver.ResolveScoped(r.Context(), cal.ID, caller(r), subID)
		if err != nil {
			httperr.InternalError(w, r, err, "resolve access")
			return
		}
		if !canEditEvent(ev, destEff, user) {
			httperr.JSON(w, http.StatusForbidden, "insufficient permission")
			return
		}
	}
	if !req.EndAt.After(req.StartAt) {
		httperr.JSON(w, http.StatusBadRequest, "event end must be after start")
		return
	}
	rr, err := normalizeRRule(req.RRule)
	if err != nil {
		httperr.JSON(w, http.StatusBadRequest, "invalid recurrence rule")
		return
	}

	// Cached translations describe the old text; drop them when it changes.
	textChanged := req.Title != ev.Title || !equalStrPtr(req.Notes, ev.Notes)

	ev.SubCalendarID = subID
	ev.Title = req.Title
	ev.StartAt = req.StartAt
	ev.EndAt = req.EndAt
	ev.AllDay = req.AllDay
	ev.Location = req.Location
	ev.Latitude = req.Latitude
	ev.Longitude = req.Longitude
	ev.Notes = req.Notes
	ev.Who = req.Who
	ev.SignupEnabled = req.SignupEnabled
	ev.SignupMax = req.SignupMax
	ev.RRule = rr
	if textChanged {
		ev.Translations = store.Translations{}
	}

	if err := h.store.Events.Update(r.Context(), *ev); err != nil {
		httperr.InternalError(w, r, err, "update event")
		return
	}

	tagIDs, ok := h.validTagIDs(w, r, cal.ID, req.TagIDs)
	if !ok {
		return
	}
	if err := h.store.Events.SetTags(r.Context(), ev.ID, tagIDs); err != nil {
		httperr.InternalError(w, r, err, "update event tags")
		return
	}
	ev.TagIDs = tagIDs

	respond(w, http.StatusOK, h.viewEvent(ev, cal, eff, user, ""))
}

func (h *Handler) deleteEvent(w http.ResponseWriter, r *http.Request) {
	cal, _, ok := h.resolveOnly(w, r)
	if !ok {
		return
	}
	ev, ok := h.loadEvent(w, r, cal)
	if !ok {
		return
	}
	user, _ := auth.UserFromContext(r.Context())

	eff, err := h.resolver.ResolveScoped(r.Context(), cal.ID, caller(r), ev.SubCalendarID)
	if err != nil {
		httperr.InternalError(w, r, err, "resolve access")
		return
	}
	if !canEditEvent(ev, eff, user) {
		httperr.JSON(w, http.StatusForbidden, "insufficient permission")
		return
	}
	if err := h.store.Events.Delete(r.Context(), ev.ID); err != nil {
		httperr.InternalError(w, r, err, "delete event")
		return
	}
	respond(w, http.StatusNoContent, nil)
}

func (h *Handler) eventOccurrences(w http.ResponseWriter, r *http.Request) {
	cal, _, ok := h.requireCalendar(w, r, permission.CanReadLimited)
	if !ok {
		return
	}
	ev, ok := h.loadEvent(w, r, cal)
	if !ok {
		return
	}
	window, err := parseWindow(r)
	if err != nil || window.Start.IsZero() || window.End.IsZero() {
		httperr.JSON(w, http.StatusBadRequest, "start and end are required")
		return
	}
	occs, err := recurrence.Expand(ev, window.Start, window.End)
	if err != nil {
		if errors.Is(err, recurrence.ErrInvalidWindow) {
			httperr.JSON(w, http.StatusBadRequest, "invalid time window")
			return
		}
		httperr.InternalError(w, r, err, "expand event")
		return
	}
	respond(w, http.StatusOK, occs)
}

// translateEvent returns the event text in the requested language, caching
// the result on the event row.
func (h *Handler) translateEvent(w http.ResponseWriter, r *http.Request) {
	cal, _, ok := h.requireCalendar(w, r, permission.CanRead)
	if !ok {
		return
	}
	ev, ok := h.loadEvent(w, r, cal)
	if !ok {
		return
	}
	lang := r.URL.Query().Get("lang")
	if !translate.SupportedLanguages[lang] {
		httperr.JSON(w, http.StatusBadRequest, "unsupported language")
		return
	}

	type translationView struct {
		Language string `json:"language"`
		Title    string `json:"title"`
		Notes    string `json:"notes,omitempty"`
	}

	if lang == cal.Language {
		title, notes := translate.EventText(ev, cal.Language, lang)
		respond(w, http.StatusOK, translationView{Language: lang, Title: title, Notes: notes})
		return
	}
	if cached, ok := ev.Translations[lang]; ok && cached.Title != "" {
		respond(w, http.StatusOK, translationView{Language: lang, Title: cached.Title, Notes: cached.Notes})
		return
	}

	title, err := h.translator.Translate(r.Context(), ev.Title, cal.Language, lang)
	if err != nil {
		httperr.LogError(r, "translate title", err)
		httperr.JSON(w, http.StatusBadGateway, "translation service unavailable")
		return
	}
	var notes string
	if ev.Notes != nil && *ev.Notes != "" {
		notes, err = h.translator.Translate(r.Context(), *ev.Notes, cal.Language, lang)
		if err != nil {
			httperr.LogError(r, "translate notes", err)
			httperr.JSON(w, http.StatusBadGateway, "translation service unavailable")
			return
		}
	}

	if ev.Translations == nil {
		ev.Translations = store.Translations{}
	}
	ev.Translations[lang] = store.TranslatedText{Title: title, Notes: notes}
	if err := h.store.Events.SetTranslations(r.Context(), ev.ID, ev.Translations); err != nil {
		httperr.LogError(r, "cache translation", err)
	}
	respond(w, http.StatusOK, translationView{Language: lang, Title: title, Notes: notes})
}

func (h *Handler) exportCalendarICS(w http.ResponseWriter, r *http.Request) {
	cal, _, ok := h.requireCalendar(w, r, permission.CanRead)
	if !ok {
		return
	}
	events, err := h.store.Events.ListForCalendar(r.Context(), cal.ID, store.EventWindow{}, nil)
	if err != nil {
		httperr.InternalError(w, r, err, "list events")
		return
	}
	w.Header().Set("Content-Type", ical.ContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+ical.Filename(cal.Slug, time.Now())+`"`)
	_, _ = w.Write([]byte(ical.ExportCalendar(cal, events)))
}

func (h *Handler) exportEventICS(w http.ResponseWriter, r *http.Request) {
	cal, _, ok := h.requireCalendar(w, r, permission.CanRead)
	if !ok {
		return
	}
	ev, ok := h.loadEvent(w, r, cal)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", ical.ContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+ical.Filename(cal.Slug+"-event", time.Now())+`"`)
	_, _ = w.Write([]byte(ical.ExportEvent(cal, ev)))
}

// resolveOnly loads calendar and calendar-level permission but leaves the
// permission decision to the caller, for endpoints with scoped checks.
func (h *Handler) resolveOnly(w http.ResponseWriter, r *http.Request) (*store.Calendar, access.Effective, bool) {
	cal, eff, ok := h.resolveCalendar(w, r)
	if !ok {
		return nil, access.Effective{}, false
	}
	if eff.Permission == permission.NoAccess {
		httperr.JSON(w, http.StatusNotFound, "calendar not found")
		return nil, access.Effective{}, false
	}
	return cal, eff, true
}

func (h *Handler) validTagIDs(w http.ResponseWriter, r *http.Request, calendarID uuid.UUID, raw []string) ([]uuid.UUID, bool) {
	if len(raw) == 0 {
		return nil, true
	}
	ids := make([]uuid.UUID, 0, len(raw))
	for _, s := range raw {
		id, err := uuid.Parse(s)
		if err != nil {
			httperr.JSON(w, http.StatusBadRequest, "invalid tag id")
			return nil, false
		}
		ids = append(ids, id)
	}
	valid, err := h.store.Tags.ValidIDs(r.Context(), calendarID, ids)
	if err != nil {
		httperr.InternalError(w, r, err, "validate tags")
		return nil, false
	}
	return valid, true
}

// normalizeRRule maps an empty rule to nil and rejects one that does not
// parse, so a bad rule is caught at the write boundary instead of at
// expansion time.
func normalizeRRule(rule *string) (*string, error) {
	if rule == nil || *rule == "" {
		return nil, nil
	}
	if err := recurrence.ValidateRule(*rule); err != nil {
		return nil, err
	}
	return rule, nil
}

func equalStrPtr(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
