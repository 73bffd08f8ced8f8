package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/plabarre/agenda/internal/auth"
	httperr "github.com/plabarre/agenda/internal/http/errors"
	"github.com/plabarre/agenda/internal/permission"
	"github.com/plabarre/agenda/internal/store"
)

// maxAttachmentSize caps declared attachment sizes at 25 MiB.
const maxAttachmentSize = 25 << 20

type attachmentRequest struct {
	OriginalFilename string `json:"original_filename" validate:"required,max=255"`
	StoredFilename   string `json:"stored_filename" validate:"required,max=255"`
	MimeType         string `json:"mime_type" validate:"required,max=127"`
	FileSize         int64  `json:"file_size" validate:"required,min=1"`
}

type attachmentView struct {
	ID               string    `json:"id"`
	EventID          string    `json:"event_id"`
	UserID           string    `json:"user_id"`
	OriginalFilename string    `json:"original_filename"`
	MimeType         string    `json:"mime_type"`
	FileSize         int64     `json:"file_size"`
	CreatedAt        time.Time `json:"created_at"`
}

func viewAttachment(a *store.Attachment) attachmentView {
	return attachmentView{
		ID:               a.ID.String(),
		EventID:          a.EventID.String(),
		UserID:           a.UserID.String(),
		OriginalFilename: a.OriginalFilename,
		MimeType:         a.MimeType,
		FileSize:         a.FileSize,
		CreatedAt:        a.CreatedAt,
	}
}

func (h *Handler) listAttachments(w http.ResponseWriter, r *http.Request) {
	cal, _, ok := h.requireCalendar(w, r, permission.CanRead)
	if !ok {
		return
	}
	ev, ok := h.loadEvent(w, r, cal)
	if !ok {
		return
	}
	attachments, err := h.store.Attachments.ListByEvent(r.Context(), ev.ID)
	if err != nil {
		httperr.InternalError(w, r, err, "list attachments")
		return
	}
	views := make([]attachmentView, 0, len(attachments))
	for i := range attachments {
		views = append(views, viewAttachment(&attachments[i]))
	}
	respond(w, http.StatusOK, views)
}

func (h *Handler) createAttachment(w http.ResponseWriter, r *http.Request) {
	cal, _, ok := h.resolveOnly(w, r)
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
	eff, err := h.resolver.ResolveScoped(r.Context(), cal.ID, caller(r), ev.SubCalendarID)
	if err != nil {
		httperr.InternalError(w, r, err, "resolve access")
		return
	}
	if !canEditEvent(ev, eff, user) {
		httperr.JSON(w, http.StatusForbidden, "insufficient permission")
		return
	}
	var req attachmentRequest
	if err := h.decode(r, &req); err != nil {
		httperr.BadRequest(w, r, err, "invalid attachment payload")
		return
	}
	if req.FileSize > maxAttachmentSize {
		httperr.JSON(w, http.StatusRequestEntityTooLarge, "attachment too large")
		return
	}
	created, err := h.store.Attachments.Create(r.Context(), store.Attachment{
		EventID:          ev.ID,
		UserID:           user.ID,
		OriginalFilename: req.OriginalFilename,
		StoredFilename:   req.StoredFilename,
		MimeType:         req.MimeType,
		FileSize:         req.FileSize,
	})
	if err != nil {
		httperr.InternalError(w, r, err, "create attachment")
		return
	}
	respond(w, http.StatusCreated, viewAttachment(created))
}

func (h *Handler) deleteAttachment(w http.ResponseWriter, r *http.Request) {
	cal, _, ok := h.resolveOnly(w, r)
	if !ok {
		return
	}
	ev, ok := h.loadEvent(w, r, cal)
	if !ok {
		return
	}
	attachmentID, err := uuidParam(r, "attachmentID")
	if err != nil {
		httperr.BadRequest(w, r, err, "invalid attachment id")
		return
	}
	att, err := h.store.Attachments.GetByID(r.Context(), attachmentID)
	if errors.Is(err, store.ErrNotFound) {
		httperr.JSON(w, http.StatusNotFound, "attachment not found")
		return
	}
	if err != nil {
		httperr.InternalError(w, r, err, "load attachment")
		return
	}
	if att.EventID != ev.ID {
		httperr.JSON(w, http.StatusNotFound, "attachment not found")
		return
	}

	// The uploader may remove their own attachment; otherwise the caller
	// needs edit access on the event.
	user, okUser := auth.UserFromContext(r.Context())
	isUploader := okUser && att.UserID == user.ID
	if !isUploader {
		eff, err := h.resolver.ResolveScoped(r.Context(), cal.ID, caller(r), ev.SubCalendarID)
		if err != nil {
			httperr.InternalError(w, r, err, "resolve access")
			return
		}
		if !canEditEvent(ev, eff, user) {
			httperr.JSON(w, http.StatusForbidden, "insufficient permission")
			return
		}
	}
	if err := h.store.Attachments.Delete(r.Context(), attachmentID); err != nil {
		httperr.InternalError(w, r, err, "delete attachment")
		return
	}
	respond(w, http.StatusNoContent, nil)
}
