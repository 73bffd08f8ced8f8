package api

import (
	"errors"
	"net/http"
	"time"

	httperr "github.com/plabarre/agenda/internal/http/errors"
	"github.com/plabarre/agenda/internal/permission"
	"github.com/plabarre/agenda/internal/store"
)

type signupRequest struct {
	Name  string  `json:"name" validate:"required,max=200"`
	Email string  `json:"email" validate:"required,email"`
	Note  *string `json:"note" validate:"omitempty,max=1000"`
}

type signupView struct {
	ID        string    `json:"id"`
	EventID   string    `json:"event_id"`
	Name      string    `json:"name"`
	Email     string    `json:"email,omitempty"`
	Note      *string   `json:"note,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

func viewSignup(s *store.EventSignup, includeEmail bool) signupView {
	v := signupView{
		ID:        s.ID.String(),
		EventID:   s.EventID.String(),
		Name:      s.Name,
		CreatedAt: s.CreatedAt,
	}
	if includeEmail {
		v.Email = s.Email
		v.Note = s.Note
	}
	return v
}

// listSignups shows attendee names to any reader; emails and notes only to
// callers with modify access.
func (h *Handler) listSignups(w http.ResponseWriter, r *http.Request) {
	cal, eff, ok := h.requireCalendar(w, r, permission.CanRead)
	if !ok {
		return
	}
	ev, ok := h.loadEvent(w, r, cal)
	if !ok {
		return
	}
	signups, err := h.store.Events.ListSignups(r.Context(), ev.ID)
	if err != nil {
		httperr.InternalError(w, r, err, "list signups")
		return
	}
	includeEmail := permission.CanModify(eff.Permission)
	views := make([]signupView, 0, len(signups))
	for i := range signups {
		views = append(views, viewSignup(&signups[i], includeEmail))
	}
	respond(w, http.StatusOK, views)
}

// createSignup registers attendance. Any caller able to read the event may
// sign up, including link-token callers without an account.
func (h *Handler) createSignup(w http.ResponseWriter, r *http.Request) {
	cal, _, ok := h.requireCalendar(w, r, permission.CanRead)
	if !ok {
		return
	}
	ev, ok := h.loadEvent(w, r, cal)
	if !ok {
		return
	}
	if !ev.SignupEnabled {
		httperr.JSON(w, http.StatusConflict, "signups are not enabled for this event")
		return
	}
	var req signupRequest
	if err := h.decode(r, &req); err != nil {
		httperr.BadRequest(w, r, err, "invalid signup payload")
		return
	}

	exists, err := h.store.Events.SignupExists(r.Context(), ev.ID, req.Email)
	if err != nil {
		httperr.InternalError(w, r, err, "check signup")
		return
	}
	if exists {
		httperr.JSON(w, http.StatusConflict, "already signed up")
		return
	}
	if ev.SignupMax != nil {
		count, err := h.store.Events.CountSignups(r.Context(), ev.ID)
		if err != nil {
			httperr.InternalError(w, r, err, "count signups")
			return
		}
		if count >= *ev.SignupMax {
			httperr.JSON(w, http.StatusConflict, "event is full")
			return
		}
	}

	created, err := h.store.Events.CreateSignup(r.Context(), store.EventSignup{
		EventID: ev.ID,
		Name:    req.Name,
		Email:   req.Email,
		Note:    req.Note,
	})
	if err != nil {
		httperr.InternalError(w, r, err, "create signup")
		return
	}
	respond(w, http.StatusCreated, viewSignup(created, true))
}

func (h *Handler) deleteSignup(w http.ResponseWriter, r *http.Request) {
	cal, _, ok := h.requireCalendar(w, r, permission.CanModify)
	if !ok {
		return
	}
	ev, ok := h.loadEvent(w, r, cal)
	if !ok {
		return
	}
	signupID, err := uuidParam(r, "signupID")
	if err != nil {
		httperr.BadRequest(w, r, err, "invalid signup id")
		return
	}
	signups, err := h.store.Events.ListSignups(r.Context(), ev.ID)
	if err != nil {
		httperr.InternalError(w, r, err, "list signups")
		return
	}
	found := false
	for i := range signups {
		if signups[i].ID == signupID {
			found = true
			break
		}
	}
	if !found {
		httperr.JSON(w, http.StatusNotFound, "signup not found")
		return
	}
	if err := h.store.Events.DeleteSignup(r.Context(), signupID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			httperr.JSON(w, http.StatusNotFound, "signup not found")
			return
		}
		httperr.InternalError(w, r, err, "delete signup")
		return
	}
	respond(w, http.StatusNoContent, nil)
}
