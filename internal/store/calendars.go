package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type calendarRepo struct {
	pool PgxPool
}

const calendarColumns = `id, slug, title, owner_id, timezone, language, week_start, date_format,
default_view, visible_time_start, visible_time_end, default_event_duration,
show_weekends, enable_email_notifications, created_at`

func scanCalendar(row pgx.Row) (*Calendar, error) {
	var c Calendar
	err := row.Scan(&c.ID, &c.Slug, &c.Title, &c.OwnerID, &c.Timezone, &c.Language,
		&c.WeekStart, &c.DateFormat, &c.DefaultView, &c.VisibleTimeStart, &c.VisibleTimeEnd,
		&c.DefaultEventDuration, &c.ShowWeekends, &c.EmailNotifications, &c.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan calendar: %w", err)
	}
	return &c, nil
}

func collectCalendars(rows pgx.Rows) ([]Calendar, error) {
	defer rows.Close()
	var cals []Calendar
	for rows.Next() {
		c, err := scanCalendar(rows)
		if err != nil {
			return nil, err
		}
		cals = append(cals, *c)
	}
	return cals, rows.Err()
}

func (r *calendarRepo) Create(ctx context.Context, cal Calendar) (*Calendar, error) {
	defer observeDB(ctx, "calendars.create")()
	const q = `INSERT INTO calendars
(slug, title, owner_id, timezone, language, week_start, date_format, default_view,
 visible_time_start, visible_time_end, default_event_duration, show_weekends, enable_email_notifications)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
RETURNING ` + calendarColumns
	return scanCalendar(r.pool.QueryRow(ctx, q,
		cal.Slug, cal.Title, cal.OwnerID, cal.Timezone, cal.Language, cal.WeekStart,
		cal.DateFormat, cal.DefaultView, cal.VisibleTimeStart, cal.VisibleTimeEnd,
		cal.DefaultEventDuration, cal.ShowWeekends, cal.EmailNotifications))
}

func (r *calendarRepo) GetByID(ctx context.Context, id uuid.UUID) (*Calendar, error) {
	defer observeDB(ctx, "calendars.get_by_id")()
	const q = `SELECT ` + calendarColumns + ` FROM calendars WHERE id=$1`
	return scanCalendar(r.pool.QueryRow(ctx, q, id))
}

func (r *calendarRepo) GetBySlug(ctx context.Context, slug string) (*Calendar, error) {
	defer observeDB(ctx, "calendars.get_by_slug")()
	const q = `SELECT ` + calendarColumns + ` FROM calendars WHERE slug=$1`
	return scanCalendar(r.pool.QueryRow(ctx, q, slug))
}

func (r *calendarRepo) SlugExists(ctx context.Context, slug string) (bool, error) {
	defer observeDB(ctx, "calendars.slug_exists")()
	var exists bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM calendars WHERE slug=$1)`, slug).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check slug: %w", err)
	}
	return exists, nil
}

func (r *calendarRepo) ListOwned(ctx context.Context, ownerID uuid.UUID) ([]Calendar, error) {
	defer observeDB(ctx, "calendars.list_owned")()
	const q = `SELECT ` + calendarColumns + ` FROM calendars WHERE owner_id=$1 ORDER BY created_at`
	rows, err := r.pool.Query(ctx, q, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list owned calendars: %w", err)
	}
	return collectCalendars(rows)
}

// ListAccessible returns calendars the user owns plus calendars shared with
// the user directly or through group membership, excluding no_access grants.
func (r *calendarRepo) ListAccessible(ctx context.Context, userID uuid.UUID) ([]Calendar, error) {
	defer observeDB(ctx, "calendars.list_accessible")()
	const q = `SELECT ` + calendarColumns + ` FROM calendars
WHERE owner_id = $1
   OR id IN (
        SELECT ca.calendar_id FROM calendar_access ca
        WHERE ca.permission <> 'no_access'
          AND (ca.user_id = $1
               OR ca.group_id IN (SELECT gm.group_id FROM group_members gm WHERE gm.user_id = $1))
   )
ORDER BY created_at`
	rows, err := r.pool.Query(ctx, q, userID)
	if err != nil {
		return nil, fmt.Errorf("list accessible calendars: %w", err)
	}
	return collectCalendars(rows)
}

func (r *calendarRepo) ListAll(ctx context.Context) ([]Calendar, error) {
	defer observeDB(ctx, "calendars.list_all")()
	rows, err := r.pool.Query(ctx, `SELECT `+calendarColumns+` FROM calendars ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("list calendars: %w", err)
	}
	return collectCalendars(rows)
}

func (r *calendarRepo) Update(ctx context.Context, cal Calendar) error {
	defer observeDB(ctx, "calendars.update")()
	const q = `UPDATE calendars SET
title=$2, timezone=$3, language=$4, week_start=$5, date_format=$6, default_view=$7,
visible_time_start=$8, visible_time_end=$9, default_event_duration=$10,
show_weekends=$11, enable_email_notifications=$12
WHERE id=$1`
	tag, err := r.pool.Exec(ctx, q, cal.ID, cal.Title, cal.Timezone, cal.Language,
		cal.WeekStart, cal.DateFormat, cal.DefaultView, cal.VisibleTimeStart,
		cal.VisibleTimeEnd, cal.DefaultEventDuration, cal.ShowWeekends, cal.EmailNotifications)
	if err != nil {
		return fmt.Errorf("update calendar: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *calendarRepo) Delete(ctx context.Context, id uuid.UUID) error {
	defer observeDB(ctx, "calendars.delete")()
	tag, err := r.pool.Exec(ctx, `DELETE FROM calendars WHERE id=$1`, id)
	if err != nil {
		return fmt.Errorf("delete calendar: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
