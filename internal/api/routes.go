package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/plabarre/agenda/internal/auth"
	"github.com/plabarre/agenda/internal/http/csrf"
)

// Routes builds the /v1 route tree. authLimit is applied to the credential
// endpoints only; oidc is nil when SSO is not configured.
func (h *Handler) Routes(authLimit func(http.Handler) http.Handler, oidc *auth.OIDCFlow) chi.Router {
	r := chi.NewRouter()
	r.Use(csrf.Middleware)

	r.Route("/auth", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(authLimit)
			r.Post("/register", h.register)
			r.Post("/login", h.login)
			r.Post("/refresh", h.refresh)
		})
		r.Post("/logout", h.logout)
		r.With(h.authMW.RequireUser).Get("/me", h.me)
		if oidc != nil {
			r.Get("/oidc/begin", oidc.Begin)
			r.Get("/oidc/callback", oidc.Callback)
		}
	})

	r.Group(func(r chi.Router) {
		r.Use(h.authMW.RequireUser)
		r.Get("/calendars", h.accessibleCalendars)
		r.With(h.authMW.RequireAdmin).Post("/calendars", h.createCalendar)
		r.Get("/calendars/mine", h.myCalendars)
	})
	r.Get("/calendars/by-slug/{slug}", h.calendarBySlug)

	r.Route("/calendars/{calendarID}", func(r chi.Router) {
		r.Get("/", h.getCalendar)
		r.Put("/", h.updateCalendar)
		r.Delete("/", h.deleteCalendar)
		r.Get("/export.ics", h.exportCalendarICS)

		r.Get("/permission", h.myPermission)
		r.With(h.authMW.RequireUser).Post("/claim", h.claimLink)
		r.With(h.authMW.RequireUser).Get("/my-groups", h.groupMemberships)

		r.Route("/sub-calendars", func(r chi.Router) {
			r.Get("/", h.listSubCalendars)
			r.Post("/", h.createSubCalendar)
			r.Put("/{subCalendarID}", h.updateSubCalendar)
			r.Delete("/{subCalendarID}", h.deleteSubCalendar)
		})

		r.Route("/tags", func(r chi.Router) {
			r.Get("/", h.listTags)
			r.Post("/", h.createTag)
			r.Put("/{tagID}", h.updateTag)
			r.Delete("/{tagID}", h.deleteTag)
		})

		r.Route("/grants", func(r chi.Router) {
			r.Get("/", h.listGrants)
			r.Put("/{grantID}", h.updateGrant)
			r.Delete("/{grantID}", h.deleteGrant)
		})

		r.Route("/invitations", func(r chi.Router) {
			r.Get("/", h.listInvitations)
			r.Post("/", h.invite)
			r.Delete("/{invitationID}", h.deleteInvitation)
		})

		r.Route("/links", func(r chi.Router) {
			r.Get("/", h.listLinks)
			r.Post("/", h.createLink)
			r.Put("/{linkID}", h.updateLink)
			r.Delete("/{linkID}", h.deleteLink)
		})

		r.Route("/groups", func(r chi.Router) {
			r.Get("/", h.listGroups)
			r.Post("/", h.createGroup)
			r.Route("/{groupID}", func(r chi.Router) {
				r.Delete("/", h.deleteGroup)
				r.Get("/members", h.listGroupMembers)
				r.Post("/members", h.addGroupMember)
				r.Delete("/members/{userID}", h.removeGroupMember)
				r.Get("/grants", h.listGroupGrants)
				r.Post("/grants", h.createGroupGrant)
			})
		})

		r.Route("/events", func(r chi.Router) {
			r.Get("/", h.listEvents)
			r.Post("/", h.createEvent)
			r.Get("/search", h.searchEvents)

			r.Route("/{eventID}", func(r chi.Router) {
				r.Get("/", h.getEvent)
				r.Put("/", h.updateEvent)
				r.Delete("/", h.deleteEvent)
				r.Get("/occurrences", h.eventOccurrences)
				r.Get("/translation", h.translateEvent)
				r.Get("/export.ics", h.exportEventICS)

				r.Route("/comments", func(r chi.Router) {
					r.Get("/", h.listComments)
					r.Post("/", h.createComment)
					r.Delete("/{commentID}", h.deleteComment)
					r.Get("/{commentID}/translation", h.translateComment)
				})

				r.Route("/attachments", func(r chi.Router) {
					r.Get("/", h.listAttachments)
					r.Post("/", h.createAttachment)
					r.Delete("/{attachmentID}", h.deleteAttachment)
				})

				r.Route("/signups", func(r chi.Router) {
					r.Get("/", h.listSignups)
					r.Post("/", h.createSignup)
					r.Delete("/{signupID}", h.deleteSignup)
				})
			})
		})
	})

	r.Route("/admin", func(r chi.Router) {
		r.Use(h.authMW.RequireUser)
		r.Use(h.authMW.RequireAdmin)
		r.Get("/users", h.adminListUsers)
		r.Put("/users/{userID}/role", h.adminSetRole)
		r.Put("/users/{userID}/ban", h.adminSetBan)
		r.Get("/calendars", h.adminListCalendars)
	})

	return r
}
