package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type subCalendarRepo struct {
	pool PgxPool
}

const subCalendarColumns = `id, calendar_id, name, color, active, position, created_at`

func scanSubCalendar(row pgx.Row) (*SubCalendar, error) {
	var sc SubCalendar
	err := row.Scan(&sc.ID, &sc.CalendarID, &sc.Name, &sc.Color, &sc.Active, &sc.Position, &sc.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan sub-calendar: %w", err)
	}
	return &sc, nil
}

func (r *subCalendarRepo) Create(ctx context.Context, sc SubCalendar) (*SubCalendar, error) {
	defer observeDB(ctx, "sub_calendars.create")()
	const q = `INSERT INTO sub_calendars (calendar_id, name, color, active, position)
VALUES ($1, $2, $3, $4, $5)
RETURNING ` + subCalendarColumns
	return scanSubCalendar(r.pool.QueryRow(ctx, q, sc.CalendarID, sc.Name, sc.Color, sc.Active, sc.Position))
}

func (r *subCalendarRepo) GetByID(ctx context.Context, id uuid.UUID) (*SubCalendar, error) {
	defer observeDB(ctx, "sub_calendars.get_by_id")()
	const q = `SELECT ` + subCalendarColumns + ` FROM sub_calendars WHERE id=$1`
	return scanSubCalendar(r.pool.QueryRow(ctx, q, id))
}

func (r *subCalendarRepo) ListByCalendar(ctx context.Context, calendarID uuid.UUID) ([]SubCalendar, error) {
	defer observeDB(ctx, "sub_calendars.list")()
	const q = `SELECT ` + subCalendarColumns + ` FROM sub_calendars WHERE calendar_id=$1 ORDER BY position`
	rows, err := r.pool.Query(ctx, q, calendarID)
	if err != nil {
		return nil, fmt.Errorf("list sub-calendars: %w", err)
	}
	defer rows.Close()

	var subs []SubCalendar
	for rows.Next() {
		sc, err := scanSubCalendar(rows)
		if err != nil {
			return nil, err
		}
		subs = append(subs, *sc)
	}
	return subs, rows.Err()
}

func (r *subCalendarRepo) Update(ctx context.Context, sc SubCalendar) error {
	defer observeDB(ctx, "sub_calendars.update")()
	const q = `UPDATE sub_calendars SET name=$3, color=$4, active=$5, position=$6
WHERE id=$1 AND calendar_id=$2`
	tag, err := r.pool.Exec(ctx, q, sc.ID, sc.CalendarID, sc.Name, sc.Color, sc.Active, sc.Position)
	if err != nil {
		return fmt.Errorf("update sub-calendar: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *subCalendarRepo) Delete(ctx context.Context, calendarID, id uuid.UUID) error {
	defer observeDB(ctx, "sub_calendars.delete")()
	tag, err := r.pool.Exec(ctx, `DELETE FROM sub_calendars WHERE id=$1 AND calendar_id=$2`, id, calendarID)
	if err != nil {
		return fmt.Errorf("delete sub-calendar: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
