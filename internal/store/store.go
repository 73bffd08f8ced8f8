package store

import (
	"context"
)

// Store aggregates repositories backed by PostgreSQL.
type Store struct {
	pool PgxPool

	Users        UserRepository
	Calendars    CalendarRepository
	SubCalendars SubCalendarRepository
	Access       AccessRepository
	Groups       GroupRepository
	Invitations  InvitationRepository
	Events       EventRepository
	Tags         TagRepository
	Comments     CommentRepository
	Attachments  AttachmentRepository
}

// New wires concrete repository implementations with a shared connection pool.
func New(pool PgxPool) *Store {
	return &Store{
		pool:         pool,
		Users:        &userRepo{pool: pool},
		Calendars:    &calendarRepo{pool: pool},
		SubCalendars: &subCalendarRepo{pool: pool},
		Access:       &accessRepo{pool: pool},
		Groups:       &groupRepo{pool: pool},
		Invitations:  &invitationRepo{pool: pool},
		Events:       &eventRepo{pool: pool},
		Tags:         &tagRepo{pool: pool},
		Comments:     &commentRepo{pool: pool},
		Attachments:  &attachmentRepo{pool: pool},
	}
}

// HealthCheck verifies that the underlying database is reachable.
func (s *Store) HealthCheck(ctx context.Context) error {
	defer observeDB(ctx, "db.healthcheck")()
	var one int
	return s.pool.QueryRow(ctx, "SELECT 1").Scan(&one)
}
