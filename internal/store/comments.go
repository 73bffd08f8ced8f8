package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type commentRepo struct {
	pool PgxPool
}

const commentColumns = `c.id, c.event_id, c.user_id, u.name, c.content, c.translations, c.created_at`

func scanComment(row pgx.Row) (*Comment, error) {
	var c Comment
	err := row.Scan(&c.ID, &c.EventID, &c.UserID, &c.UserName, &c.Content, &c.Translations, &c.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan comment: %w", err)
	}
	return &c, nil
}

func (r *commentRepo) Create(ctx context.Context, comment Comment) (*Comment, error) {
	defer observeDB(ctx, "comments.create")()
	if comment.Translations == nil {
		comment.Translations = Translations{}
	}
	const q = `WITH inserted AS (
    INSERT INTO event_comments (event_id, user_id, content, translations)
    VALUES ($1, $2, $3, $4)
    RETURNING id, event_id, user_id, content, translations, created_at
)
SELECT c.id, c.event_id, c.user_id, u.name, c.content, c.translations, c.created_at
FROM inserted c JOIN users u ON u.id = c.user_id`
	return scanComment(r.pool.QueryRow(ctx, q,
		comment.EventID, comment.UserID, comment.Content, comment.Translations))
}

func (r *commentRepo) GetByID(ctx context.Context, id uuid.UUID) (*Comment, error) {
	defer observeDB(ctx, "comments.get_by_id")()
	const q = `SELECT ` + commentColumns + ` FROM event_comments c
JOIN users u ON u.id = c.user_id WHERE c.id=$1`
	return scanComment(r.pool.QueryRow(ctx, q, id))
}

func (r *commentRepo) ListByEvent(ctx context.Context, eventID uuid.UUID) ([]Comment, error) {
	defer observeDB(ctx, "comments.list_by_event")()
	const q = `SELECT ` + commentColumns + ` FROM event_comments c
JOIN users u ON u.id = c.user_id
WHERE c.event_id=$1 ORDER BY c.created_at`
	rows, err := r.pool.Query(ctx, q, eventID)
	if err != nil {
		return nil, fmt.Errorf("list comments: %w", err)
	}
	defer rows.Close()

	var comments []Comment
	for rows.Next() {
		c, err := scanComment(rows)
		if err != nil {
			return nil, err
		}
		comments = append(comments, *c)
	}
	return comments, rows.Err()
}

func (r *commentRepo) SetTranslations(ctx context.Context, commentID uuid.UUID, tr Translations) error {
	defer observeDB(ctx, "comments.set_translations")()
	if tr == nil {
		tr = Translations{}
	}
	tag, err := r.pool.Exec(ctx, `UPDATE event_comments SET translations=$2 WHERE id=$1`, commentID, tr)
	if err != nil {
		return fmt.Errorf("set comment translations: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *commentRepo) Delete(ctx context.Context, id uuid.UUID) error {
	defer observeDB(ctx, "comments.delete")()
	tag, err := r.pool.Exec(ctx, `DELETE FROM event_comments WHERE id=$1`, id)
	if err != nil {
		return fmt.Errorf("delete comment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
