package api

import (
	"net/http"
	"time"

	httperr "github.com/plabarre/agenda/internal/http/errors"
	"github.com/plabarre/agenda/internal/store"
)

// Platform administration endpoints. The router guards this whole group with
// the admin middleware, so handlers here only do the work.

type adminUserView struct {
	ID        string     `json:"id"`
	Email     string     `json:"email"`
	Name      string     `json:"name"`
	IsAdmin   bool       `json:"is_admin"`
	IsBanned  bool       `json:"is_banned"`
	BanReason *string    `json:"ban_reason,omitempty"`
	BanUntil  *time.Time `json:"ban_until,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

func viewAdminUser(u *store.User) adminUserView {
	return adminUserView{
		ID:        u.ID.String(),
		Email:     u.Email,
		Name:      u.Name,
		IsAdmin:   u.IsAdmin,
		IsBanned:  u.IsBanned,
		BanReason: u.BanReason,
		BanUntil:  u.BanUntil,
		CreatedAt: u.CreatedAt,
	}
}

func (h *Handler) adminListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.store.Users.List(r.Context())
	if err != nil {
		httperr.InternalError(w, r, err, "list users")
		return
	}
	views := make([]adminUserView, 0, len(users))
	for i := range users {
		views = append(views, viewAdminUser(&users[i]))
	}
	respond(w, http.StatusOK, views)
}

type adminRoleRequest struct {
	IsAdmin bool `json:"is_admin"`
}

func (h *Handler) adminSetRole(w http.ResponseWriter, r *http.Request) {
	userID, err := uuidParam(r, "userID")
	if err != nil {
		httperr.BadRequest(w, r, err, "invalid user id")
		return
	}
	var req adminRoleRequest
	if err := decodeLoose(r, &req); err != nil {
		httperr.BadRequest(w, r, err, "invalid payload")
		return
	}
	if err := h.store.Users.SetAdmin(r.Context(), userID, req.IsAdmin); err != nil {
		httperr.InternalError(w, r, err, "set admin role")
		return
	}
	respond(w, http.StatusNoContent, nil)
}

type adminBanRequest struct {
	Banned bool       `json:"banned"`
	Reason *string    `json:"reason"`
	Until  *time.Time `json:"until"`
}

func (h *Handler) adminSetBan(w http.ResponseWriter, r *http.Request) {
	userID, err := uuidParam(r, "userID")
	if err != nil {
		httperr.BadRequest(w, r, err, "invalid user id")
		return
	}
	var req adminBanRequest
	if err := decodeLoose(r, &req); err != nil {
		httperr.BadRequest(w, r, err, "invalid payload")
		return
	}
	if !req.Banned {
		req.Reason = nil
		req.Until = nil
	}
	if err := h.store.Users.SetBan(r.Context(), userID, req.Banned, req.Reason, req.Until); err != nil {
		httperr.InternalError(w, r, err, "set ban")
		return
	}
	respond(w, http.StatusNoContent, nil)
}

func (h *Handler) adminListCalendars(w http.ResponseWriter, r *http.Request) {
	calendars, err := h.store.Calendars.ListAll(r.Context())
	if err != nil {
		httperr.InternalError(w, r, err, "list calendars")
		return
	}
	type calView struct {
		ID        string    `json:"id"`
		Slug      string    `json:"slug"`
		Title     string    `json:"title"`
		OwnerID   string    `json:"owner_id"`
		CreatedAt time.Time `json:"created_at"`
	}
	views := make([]calView, 0, len(calendars))
	for _, c := range calendars {
		views = append(views, calView{
			ID:        c.ID.String(),
			Slug:      c.Slug,
			Title:     c.Title,
			OwnerID:   c.OwnerID.String(),
			CreatedAt: c.CreatedAt,
		})
	}
	respond(w, http.StatusOK, views)
}
