package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/plabarre/agenda/internal/auth"
	httperr "github.com/plabarre/agenda/internal/http/errors"
	"github.com/plabarre/agenda/internal/store"
)

type registerRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Name     string `json:"name" validate:"required,max=120"`
	Password string `json:"password" validate:"required,min=8,max=128"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type userView struct {
	ID         string `json:"id"`
	Email      string `json:"email"`
	Name       string `json:"name"`
	IsVerified bool   `json:"is_verified"`
	IsAdmin    bool   `json:"is_admin"`
}

type sessionResponse struct {
	User            userView  `json:"user"`
	AccessToken     string    `json:"access_token"`
	AccessExpiresAt time.Time `json:"access_expires_at"`
	RefreshToken    string    `json:"refresh_token"`
	CSRFToken       string    `json:"csrf_token"`
}

func viewUser(u *store.User) userView {
	return userView{
		ID:         u.ID.String(),
		Email:      u.Email,
		Name:       u.Name,
		IsVerified: u.IsVerified,
		IsAdmin:    u.IsAdmin,
	}
}

func (h *Handler) register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := h.decode(r, &req); err != nil {
		httperr.BadRequest(w, r, err, "invalid registration payload")
		return
	}

	user, err := h.authSvc.Register(r.Context(), req.Email, req.Name, req.Password)
	if errors.Is(err, auth.ErrEmailTaken) {
		httperr.JSON(w, http.StatusConflict, "email already registered")
		return
	}
	if err != nil {
		httperr.InternalError(w, r, err, "register user")
		return
	}

	respond(w, http.StatusCreated, viewUser(user))
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := h.decode(r, &req); err != nil {
		httperr.BadRequest(w, r, err, "invalid login payload")
		return
	}

	user, pair, err := h.authSvc.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		h.writeAuthError(w, r, err)
		return
	}
	h.writeSession(w, r, user, pair)
}

func (h *Handler) refresh(w http.ResponseWriter, r *http.Request) {
	token := refreshTokenFromRequest(r)
	if token == "" {
		httperr.JSON(w, http.StatusUnauthorized, "missing refresh token")
		return
	}

	user, pair, err := h.authSvc.Refresh(r.Context(), token)
	if err != nil {
		h.writeAuthError(w, r, err)
		return
	}
	h.writeSession(w, r, user, pair)
}

func (h *Handler) logout(w http.ResponseWriter, r *http.Request) {
	h.cookies.Clear(w)
	respond(w, http.StatusNoContent, nil)
}

func (h *Handler) me(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		httperr.JSON(w, http.StatusUnauthorized, "authentication required")
		return
	}
	respond(w, http.StatusOK, viewUser(user))
}

func (h *Handler) writeSession(w http.ResponseWriter, r *http.Request, user *store.User, pair auth.TokenPair) {
	csrfToken, err := auth.NewCSRFToken()
	if err != nil {
		httperr.InternalError(w, r, err, "issue csrf token")
		return
	}
	h.cookies.SetSession(w, pair, csrfToken)
	respond(w, http.StatusOK, sessionResponse{
		User:            viewUser(user),
		AccessToken:     pair.AccessToken,
		AccessExpiresAt: pair.AccessExpiresAt,
		RefreshToken:    pair.RefreshToken,
		CSRFToken:       csrfToken,
	})
}

func (h *Handler) writeAuthError(w http.ResponseWriter, r *http.Request, err error) {
	var banned *auth.BannedError
	switch {
	case errors.As(err, &banned):
		httperr.JSON(w, http.StatusForbidden, banned.Error())
	case errors.Is(err, auth.ErrBadCredentials), errors.Is(err, auth.ErrInvalidToken):
		httperr.JSON(w, http.StatusUnauthorized, "invalid credentials")
	default:
		httperr.InternalError(w, r, err, "authentication")
	}
}

// refreshTokenFromRequest prefers the scoped cookie and falls back to a JSON
// body for bearer-mode clients.
func refreshTokenFromRequest(r *http.Request) string {
	if c, err := r.Cookie(auth.RefreshCookie); err == nil && c.Value != "" {
		return c.Value
	}
	var body struct {
		RefreshToken string `json:"refresh_token"`
	}
	if r.Body != nil {
		_ = decodeLoose(r, &body)
	}
	return body.RefreshToken
}
