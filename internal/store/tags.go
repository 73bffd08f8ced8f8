package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type tagRepo struct {
	pool PgxPool
}

const tagColumns = `id, calendar_id, name, color, position, created_at`

func scanTag(row pgx.Row) (*Tag, error) {
	var t Tag
	err := row.Scan(&t.ID, &t.CalendarID, &t.Name, &t.Color, &t.Position, &t.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan tag: %w", err)
	}
	return &t, nil
}

func (r *tagRepo) Create(ctx context.Context, tag Tag) (*Tag, error) {
	defer observeDB(ctx, "tags.create")()
	const q = `INSERT INTO tags (calendar_id, name, color, position)
VALUES ($1, $2, $3, $4) RETURNING ` + tagColumns
	return scanTag(r.pool.QueryRow(ctx, q, tag.CalendarID, tag.Name, tag.Color, tag.Position))
}

func (r *tagRepo) GetByID(ctx context.Context, calendarID, id uuid.UUID) (*Tag, error) {
	defer observeDB(ctx, "tags.get_by_id")()
	const q = `SELECT ` + tagColumns + ` FROM tags WHERE calendar_id=$1 AND id=$2`
	return scanTag(r.pool.QueryRow(ctx, q, calendarID, id))
}

func (r *tagRepo) ListByCalendar(ctx context.Context, calendarID uuid.UUID) ([]Tag, error) {
	defer observeDB(ctx, "tags.list")()
	const q = `SELECT ` + tagColumns + ` FROM tags WHERE calendar_id=$1 ORDER BY position, created_at`
	rows, err := r.pool.Query(ctx, q, calendarID)
	if err != nil {
		return nil, fmt.Errorf("list tags: %w", err)
	}
	defer rows.Close()

	var tags []Tag
	for rows.Next() {
		t, err := scanTag(rows)
		if err != nil {
			return nil, err
		}
		tags = append(tags, *t)
	}
	return tags, rows.Err()
}

// ValidIDs filters ids down to tags that exist on this calendar. Unknown ids
// are silently dropped rather than rejected.
func (r *tagRepo) ValidIDs(ctx context.Context, calendarID uuid.UUID, ids []uuid.UUID) ([]uuid.UUID, error) {
	defer observeDB(ctx, "tags.valid_ids")()
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := r.pool.Query(ctx,
		`SELECT id FROM tags WHERE calendar_id=$1 AND id = ANY($2)`, calendarID, ids)
	if err != nil {
		return nil, fmt.Errorf("validate tag ids: %w", err)
	}
	defer rows.Close()

	var valid []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan tag id: %w", err)
		}
		valid = append(valid, id)
	}
	return valid, rows.Err()
}

func (r *tagRepo) Update(ctx context.Context, tag Tag) error {
	defer observeDB(ctx, "tags.update")()
	t, err := r.pool.Exec(ctx,
		`UPDATE tags SET name=$3, color=$4, position=$5 WHERE calendar_id=$1 AND id=$2`,
		tag.CalendarID, tag.ID, tag.Name, tag.Color, tag.Position)
	if err != nil {
		return fmt.Errorf("update tag: %w", err)
	}
	if t.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *tagRepo) Delete(ctx context.Context, calendarID, id uuid.UUID) error {
	defer observeDB(ctx, "tags.delete")()
	t, err := r.pool.Exec(ctx, `DELETE FROM tags WHERE calendar_id=$1 AND id=$2`, calendarID, id)
	if err != nil {
		return fmt.Errorf("delete tag: %w", err)
	}
	if t.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
