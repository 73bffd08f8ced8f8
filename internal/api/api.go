// Package api implements the /v1 HTTP API.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/plabarre/agenda/internal/access"
	"github.com/plabarre/agenda/internal/auth"
	"github.com/plabarre/agenda/internal/config"
	httperr "github.com/plabarre/agenda/internal/http/errors"
	"github.com/plabarre/agenda/internal/notify"
	"github.com/plabarre/agenda/internal/permission"
	"github.com/plabarre/agenda/internal/store"
	"github.com/plabarre/agenda/internal/translate"
)

// Handler carries the dependencies shared by all endpoint groups.
type Handler struct {
	cfg        *config.Config
	store      *store.Store
	resolver   *access.Resolver
	authSvc    *auth.Service
	authMW     *auth.Middleware
	cookies    *auth.CookieManager
	translator *translate.Client
	notifier   notify.Notifier
	validate   *validator.Validate
}

func NewHandler(cfg *config.Config, st *store.Store, resolver *access.Resolver, authSvc *auth.Service, authMW *auth.Middleware, cookies *auth.CookieManager, translator *translate.Client, notifier notify.Notifier) *Handler {
	if notifier == nil {
		notifier = notify.Nop{}
	}
	return &Handler{
		cfg:        cfg,
		store:      st,
		resolver:   resolver,
		authSvc:    authSvc,
		authMW:     authMW,
		cookies:    cookies,
		translator: translator,
		notifier:   notifier,
		validate:   validator.New(validator.WithRequiredStructEnabled()),
	}
}

func respond(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

// decode parses and validates a JSON request body.
func (h *Handler) decode(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid json: %w", err)
	}
	if err := h.validate.Struct(v); err != nil {
		return fmt.Errorf("validation: %w", err)
	}
	return nil
}

// decodeLoose parses a JSON body without validation, tolerating an empty
// body.
func decodeLoose(r *http.Request, v any) error {
	return json.NewDecoder(r.Body).Decode(v)
}

func uuidParam(r *http.Request, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid %s: %w", name, err)
	}
	return id, nil
}

// caller builds the access caller from the request context.
func caller(r *http.Request) access.Caller {
	var c access.Caller
	if user, ok := auth.UserFromContext(r.Context()); ok {
		c.UserID = &user.ID
	}
	c.LinkToken = auth.LinkTokenFromContext(r.Context())
	return c
}

// resolveCalendar loads the calendar and the caller's calendar-level
// effective permission. Writes the error response itself on failure.
func (h *Handler) resolveCalendar(w http.ResponseWriter, r *http.Request) (*store.Calendar, access.Effective, bool) {
	calendarID, err := uuidParam(r, "calendarID")
	if err != nil {
		httperr.BadRequest(w, r, err, "invalid calendar id")
		return nil, access.Effective{}, false
	}
	cal, err := h.store.Calendars.GetByID(r.Context(), calendarID)
	if errors.Is(err, store.ErrNotFound) {
		httperr.JSON(w, http.StatusNotFound, "calendar not found")
		return nil, access.Effective{}, false
	}
	if err != nil {
		httperr.InternalError(w, r, err, "load calendar")
		return nil, access.Effective{}, false
	}
	eff, err := h.resolver.Resolve(r.Context(), cal.ID, caller(r))
	if err != nil {
		httperr.InternalError(w, r, err, "resolve access")
		return nil, access.Effective{}, false
	}
	return cal, eff, true
}

// requireCalendar resolves the calendar and enforces pred on the effective
// permission. no_access callers get 404 so the calendar's existence leaks
// nothing; callers with some access but below the threshold get 403.
func (h *Handler) requireCalendar(w http.ResponseWriter, r *http.Request, pred func(permission.Permission) bool) (*store.Calendar, access.Effective, bool) {
	cal, eff, ok := h.resolveCalendar(w, r)
	if !ok {
		return nil, access.Effective{}, false
	}
	if eff.Permission == permission.NoAccess {
		httperr.JSON(w, http.StatusNotFound, "calendar not found")
		return nil, access.Effective{}, false
	}
	if !pred(eff.Permission) {
		httperr.JSON(w, http.StatusForbidden, "insufficient permission")
		return nil, access.Effective{}, false
	}
	return cal, eff, true
}

// requireAdmin is the common gate for settings and sharing management.
func (h *Handler) requireAdmin(w http.ResponseWriter, r *http.Request) (*store.Calendar, access.Effective, bool) {
	return h.requireCalendar(w, r, permission.IsAdmin)
}

// requireOwner restricts an endpoint to the calendar owner.
func (h *Handler) requireOwner(w http.ResponseWriter, r *http.Request) (*store.Calendar, bool) {
	cal, eff, ok := h.resolveCalendar(w, r)
	if !ok {
		return nil, false
	}
	if !eff.IsOwner {
		if eff.Permission == permission.NoAccess {
			httperr.JSON(w, http.StatusNotFound, "calendar not found")
		} else {
			httperr.JSON(w, http.StatusForbidden, "owner access required")
		}
		return nil, false
	}
	return cal, true
}
