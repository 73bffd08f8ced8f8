package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type eventRepo struct {
	pool PgxPool
}

const eventColumns = `id, sub_calendar_id, title, start_at, end_at, all_day,
location, latitude, longitude, notes, who, signup_enabled, signup_max,
rrule, translations, creator_user_id, created_at, updated_at`

func scanEvent(row pgx.Row) (*Event, error) {
	var e Event
	err := row.Scan(&e.ID, &e.SubCalendarID, &e.Title, &e.StartAt, &e.EndAt, &e.AllDay,
		&e.Location, &e.Latitude, &e.Longitude, &e.Notes, &e.Who, &e.SignupEnabled, &e.SignupMax,
		&e.RRule, &e.Translations, &e.CreatorUserID, &e.CreatedAt, &e.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan event: %w", err)
	}
	return &e, nil
}

func (r *eventRepo) collectEvents(ctx context.Context, rows pgx.Rows) ([]Event, error) {
	defer rows.Close()
	var events []Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return events, r.loadTags(ctx, events)
}

// loadTags fills TagIDs for every event in the slice with one query.
func (r *eventRepo) loadTags(ctx context.Context, events []Event) error {
	if len(events) == 0 {
		return nil
	}
	ids := make([]uuid.UUID, len(events))
	index := make(map[uuid.UUID]int, len(events))
	for i, e := range events {
		ids[i] = e.ID
		index[e.ID] = i
	}
	rows, err := r.pool.Query(ctx,
		`SELECT event_id, tag_id FROM event_tags WHERE event_id = ANY($1) ORDER BY tag_id`, ids)
	if err != nil {
		return fmt.Errorf("load event tags: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var eventID, tagID uuid.UUID
		if err := rows.Scan(&eventID, &tagID); err != nil {
			return fmt.Errorf("scan event tag: %w", err)
		}
		i := index[eventID]
		events[i].TagIDs = append(events[i].TagIDs, tagID)
	}
	return rows.Err()
}

func (r *eventRepo) Create(ctx context.Context, event Event) (*Event, error) {
	defer observeDB(ctx, "events.create")()
	if event.Translations == nil {
		event.Translations = Translations{}
	}
	const q = `INSERT INTO events (sub_calendar_id, title, start_at, end_at, all_day,
location, latitude, longitude, notes, who, signup_enabled, signup_max, rrule, translations, creator_user_id)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
RETURNING ` + eventColumns
	created, err := scanEvent(r.pool.QueryRow(ctx, q,
		event.SubCalendarID, event.Title, event.StartAt, event.EndAt, event.AllDay,
		event.Location, event.Latitude, event.Longitude, event.Notes, event.Who,
		event.SignupEnabled, event.SignupMax, event.RRule, event.Translations, event.CreatorUserID))
	if err != nil {
		return nil, err
	}
	if len(event.TagIDs) > 0 {
		if err := r.SetTags(ctx, created.ID, event.TagIDs); err != nil {
			return nil, err
		}
		created.TagIDs = event.TagIDs
	}
	return created, nil
}

func (r *eventRepo) GetByID(ctx context.Context, id uuid.UUID) (*Event, error) {
	defer observeDB(ctx, "events.get_by_id")()
	const q = `SELECT ` + eventColumns + ` FROM events WHERE id=$1`
	e, err := scanEvent(r.pool.QueryRow(ctx, q, id))
	if err != nil {
		return nil, err
	}
	events := []Event{*e}
	if err := r.loadTags(ctx, events); err != nil {
		return nil, err
	}
	return &events[0], nil
}

func (r *eventRepo) ListForCalendar(ctx context.Context, calendarID uuid.UUID, window EventWindow, subCalendarIDs []uuid.UUID) ([]Event, error) {
	defer observeDB(ctx, "events.list_for_calendar")()
	q := `SELECT ` + eventColumns + ` FROM events e
WHERE e.sub_calendar_id IN (SELECT id FROM sub_calendars WHERE calendar_id = $1)`
	args := []any{calendarID}
	if subCalendarIDs != nil {
		args = append(args, subCalendarIDs)
		q += fmt.Sprintf(` AND e.sub_calendar_id = ANY($%d)`, len(args))
	}
	// A recurring series starting before the window end may produce
	// occurrences inside it regardless of the stored end_at, so only the
	// start bound applies to recurring rows.
	if !window.End.IsZero() {
		args = append(args, window.End)
		q += fmt.Sprintf(` AND e.start_at < $%d`, len(args))
	}
	if !window.Start.IsZero() {
		args = append(args, window.Start)
		q += fmt.Sprintf(` AND (e.rrule IS NOT NULL OR e.end_at > $%d)`, len(args))
	}
	q += ` ORDER BY e.start_at`
	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	return r.collectEvents(ctx, rows)
}

func (r *eventRepo) Search(ctx context.Context, calendarID uuid.UUID, query string) ([]Event, error) {
	defer observeDB(ctx, "events.search")()
	const q = `SELECT ` + eventColumns + ` FROM events e
WHERE e.sub_calendar_id IN (SELECT id FROM sub_calendars WHERE calendar_id = $1)
AND (e.title ILIKE '%' || $2 || '%'
  OR e.notes ILIKE '%' || $2 || '%'
  OR e.location ILIKE '%' || $2 || '%'
  OR e.who ILIKE '%' || $2 || '%')
ORDER BY e.start_at DESC
LIMIT 100`
	rows, err := r.pool.Query(ctx, q, calendarID, query)
	if err != nil {
		return nil, fmt.Errorf("search events: %w", err)
	}
	return r.collectEvents(ctx, rows)
}

func (r *eventRepo) Update(ctx context.Context, event Event) error {
	defer observeDB(ctx, "events.update")()
	if event.Translations == nil {
		event.Translations = Translations{}
	}
	const q = `UPDATE events SET sub_calendar_id=$2, title=$3, start_at=$4, end_at=$5, all_day=$6,
location=$7, latitude=$8, longitude=$9, notes=$10, who=$11, signup_enabled=$12, signup_max=$13,
rrule=$14, translations=$15, updated_at=NOW()
WHERE id=$1`
	tag, err := r.pool.Exec(ctx, q,
		event.ID, event.SubCalendarID, event.Title, event.StartAt, event.EndAt, event.AllDay,
		event.Location, event.Latitude, event.Longitude, event.Notes, event.Who,
		event.SignupEnabled, event.SignupMax, event.RRule, event.Translations)
	if err != nil {
		return fmt.Errorf("update event: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *eventRepo) SetTags(ctx context.Context, eventID uuid.UUID, tagIDs []uuid.UUID) error {
	defer observeDB(ctx, "events.set_tags")()
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("set tags: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM event_tags WHERE event_id=$1`, eventID); err != nil {
		return fmt.Errorf("clear event tags: %w", err)
	}
	for _, tagID := range tagIDs {
		if _, err := tx.Exec(ctx,
			`INSERT INTO event_tags (event_id, tag_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
			eventID, tagID); err != nil {
			return fmt.Errorf("insert event tag: %w", err)
		}
	}
	return tx.Commit(ctx)
}

func (r *eventRepo) SetTranslations(ctx context.Context, eventID uuid.UUID, tr Translations) error {
	defer observeDB(ctx, "events.set_translations")()
	if tr == nil {
		tr = Translations{}
	}
	tag, err := r.pool.Exec(ctx, `UPDATE events SET translations=$2 WHERE id=$1`, eventID, tr)
	if err != nil {
		return fmt.Errorf("set event translations: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *eventRepo) Delete(ctx context.Context, id uuid.UUID) error {
	defer observeDB(ctx, "events.delete")()
	tag, err := r.pool.Exec(ctx, `DELETE FROM events WHERE id=$1`, id)
	if err != nil {
		return fmt.Errorf("delete event: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

const signupColumns = `id, event_id, name, email, note, created_at`

func scanSignup(row pgx.Row) (*EventSignup, error) {
	var s EventSignup
	err := row.Scan(&s.ID, &s.EventID, &s.Name, &s.Email, &s.Note, &s.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan signup: %w", err)
	}
	return &s, nil
}

func (r *eventRepo) CreateSignup(ctx context.Context, signup EventSignup) (*EventSignup, error) {
	defer observeDB(ctx, "events.create_signup")()
	const q = `INSERT INTO event_signups (event_id, name, email, note)
VALUES ($1, $2, $3, $4) RETURNING ` + signupColumns
	return scanSignup(r.pool.QueryRow(ctx, q, signup.EventID, signup.Name, signup.Email, signup.Note))
}

func (r *eventRepo) ListSignups(ctx context.Context, eventID uuid.UUID) ([]EventSignup, error) {
	defer observeDB(ctx, "events.list_signups")()
	const q = `SELECT ` + signupColumns + ` FROM event_signups WHERE event_id=$1 ORDER BY created_at`
	rows, err := r.pool.Query(ctx, q, eventID)
	if err != nil {
		return nil, fmt.Errorf("list signups: %w", err)
	}
	defer rows.Close()

	var signups []EventSignup
	for rows.Next() {
		s, err := scanSignup(rows)
		if err != nil {
			return nil, err
		}
		signups = append(signups, *s)
	}
	return signups, rows.Err()
}

func (r *eventRepo) CountSignups(ctx context.Context, eventID uuid.UUID) (int, error) {
	defer observeDB(ctx, "events.count_signups")()
	var n int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM event_signups WHERE event_id=$1`, eventID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count signups: %w", err)
	}
	return n, nil
}

func (r *eventRepo) SignupExists(ctx context.Context, eventID uuid.UUID, email string) (bool, error) {
	defer observeDB(ctx, "events.signup_exists")()
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM event_signups WHERE event_id=$1 AND email=$2)`,
		eventID, email).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check signup: %w", err)
	}
	return exists, nil
}

func (r *eventRepo) DeleteSignup(ctx context.Context, id uuid.UUID) error {
	defer observeDB(ctx, "events.delete_signup")()
	tag, err := r.pool.Exec(ctx, `DELETE FROM event_signups WHERE id=$1`, id)
	if err != nil {
		return fmt.Errorf("delete signup: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
