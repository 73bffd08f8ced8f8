package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/plabarre/agenda/internal/auth"
	httperr "github.com/plabarre/agenda/internal/http/errors"
	"github.com/plabarre/agenda/internal/permission"
	"github.com/plabarre/agenda/internal/store"
	"github.com/plabarre/agenda/internal/translate"
)

type commentRequest struct {
	Body string `json:"body" validate:"required,max=5000"`
}

type commentView struct {
	ID        string    `json:"id"`
	EventID   string    `json:"event_id"`
	UserID    string    `json:"user_id"`
	UserName  string    `json:"user_name"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
}

func viewComment(c *store.Comment, cal *store.Calendar, lang string) commentView {
	body := c.Content
	if lang != "" && translate.SupportedLanguages[lang] {
		body = translate.CommentText(c, cal.Language, lang)
	}
	return commentView{
		ID:        c.ID.String(),
		EventID:   c.EventID.String(),
		UserID:    c.UserID.String(),
		UserName:  c.UserName,
		Body:      body,
		CreatedAt: c.CreatedAt,
	}
}

func (h *Handler) listComments(w http.ResponseWriter, r *http.Request) {
	cal, _, ok := h.requireCalendar(w, r, permission.CanRead)
	if !ok {
		return
	}
	ev, ok := h.loadEvent(w, r, cal)
	if !ok {
		return
	}
	comments, err := h.store.Comments.ListByEvent(r.Context(), ev.ID)
	if err != nil {
		httperr.InternalError(w, r, err, "list comments")
		return
	}
	lang := r.URL.Query().Get("lang")
	views := make([]commentView, 0, len(comments))
	for i := range comments {
		views = append(views, viewComment(&comments[i], cal, lang))
	}
	respond(w, http.StatusOK, views)
}

func (h *Handler) createComment(w http.ResponseWriter, r *http.Request) {
	cal, _, ok := h.requireCalendar(w, r, permission.CanRead)
	if !ok {
		return
	}
	user, okUser := auth.UserFromContext(r.Context())
	if !okUser {
		httperr.JSON(w, http.StatusUnauthorized, "authentication required")
		return
	}
	ev, ok := h.loadEvent(w, r, cal)
	if !ok {
		return
	}
	var req commentRequest
	if err := h.decode(r, &req); err != nil {
		httperr.BadRequest(w, r, err, "invalid comment payload")
		return
	}
	created, err := h.store.Comments.Create(r.Context(), store.Comment{
		EventID: ev.ID,
		UserID:  user.ID,
		Content: req.Body,
	})
	if err != nil {
		httperr.InternalError(w, r, err, "create comment")
		return
	}
	respond(w, http.StatusCreated, viewComment(created, cal, ""))
}

func (h *Handler) deleteComment(w http.ResponseWriter, r *http.Request) {
	cal, eff, ok := h.requireCalendar(w, r, permission.CanRead)
	if !ok {
		return
	}
	ev, ok := h.loadEvent(w, r, cal)
	if !ok {
		return
	}
	commentID, err := uuidParam(r, "commentID")
	if err != nil {
		httperr.BadRequest(w, r, err, "invalid comment id")
		return
	}
	comment, err := h.store.Comments.GetByID(r.Context(), commentID)
	if errors.Is(err, store.ErrNotFound) {
		httperr.JSON(w, http.StatusNotFound, "comment not found")
		return
	}
	if err != nil {
		httperr.InternalError(w, r, err, "load comment")
		return
	}
	if comment.EventID != ev.ID {
		httperr.JSON(w, http.StatusNotFound, "comment not found")
		return
	}

	// The author may always delete their own comment; otherwise modify
	// access on the calendar is required.
	user, okUser := auth.UserFromContext(r.Context())
	isAuthor := okUser && comment.UserID == user.ID
	if !isAuthor && !permission.CanModify(eff.Permission) {
		httperr.JSON(w, http.StatusForbidden, "insufficient permission")
		return
	}
	if err := h.store.Comments.Delete(r.Context(), commentID); err != nil {
		httperr.InternalError(w, r, err, "delete comment")
		return
	}
	respond(w, http.StatusNoContent, nil)
}

// translateComment mirrors translateEvent with the same cached overlay.
func (h *Handler) translateComment(w http.ResponseWriter, r *http.Request) {
	cal, _, ok := h.requireCalendar(w, r, permission.CanRead)
	if !ok {
		return
	}
	ev, ok := h.loadEvent(w, r, cal)
	if !ok {
		return
	}
	commentID, err := uuidParam(r, "commentID")
	if err != nil {
		httperr.BadRequest(w, r, err, "invalid comment id")
		return
	}
	comment, err := h.store.Comments.GetByID(r.Context(), commentID)
	if err != nil || comment.EventID != ev.ID {
		httperr.JSON(w, http.StatusNotFound, "comment not found")
		return
	}
	lang := r.URL.Query().Get("lang")
	if !translate.SupportedLanguages[lang] {
		httperr.JSON(w, http.StatusBadRequest, "unsupported language")
		return
	}

	type translationView struct {
		Language string `json:"language"`
		Body     string `json:"body"`
	}

	if lang == cal.Language {
		respond(w, http.StatusOK, translationView{Language: lang, Body: comment.Content})
		return
	}
	if cached, ok := comment.Translations[lang]; ok && cached.Content != "" {
		respond(w, http.StatusOK, translationView{Language: lang, Body: cached.Content})
		return
	}

	body, err := h.translator.Translate(r.Context(), comment.Content, cal.Language, lang)
	if err != nil {
		httperr.LogError(r, "translate comment", err)
		httperr.JSON(w, http.StatusBadGateway, "translation service unavailable")
		return
	}
	if comment.Translations == nil {
		comment.Translations = store.Translations{}
	}
	comment.Translations[lang] = store.TranslatedText{Content: body}
	if err := h.store.Comments.SetTranslations(r.Context(), commentID, comment.Translations); err != nil {
		httperr.LogError(r, "cache translation", err)
	}
	respond(w, http.StatusOK, translationView{Language: lang, Body: body})
}
