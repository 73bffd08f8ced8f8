package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type attachmentRepo struct {
	pool PgxPool
}

const attachmentColumns = `id, event_id, user_id, original_filename, stored_filename, mime_type, file_size, created_at`

func scanAttachment(row pgx.Row) (*Attachment, error) {
	var a Attachment
	err := row.Scan(&a.ID, &a.EventID, &a.UserID, &a.OriginalFilename, &a.StoredFilename,
		&a.MimeType, &a.FileSize, &a.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan attachment: %w", err)
	}
	return &a, nil
}

func (r *attachmentRepo) Create(ctx context.Context, att Attachment) (*Attachment, error) {
	defer observeDB(ctx, "attachments.create")()
	const q = `INSERT INTO event_attachments (event_id, user_id, original_filename, stored_filename, mime_type, file_size)
VALUES ($1, $2, $3, $4, $5, $6) RETURNING ` + attachmentColumns
	return scanAttachment(r.pool.QueryRow(ctx, q,
		att.EventID, att.UserID, att.OriginalFilename, att.StoredFilename, att.MimeType, att.FileSize))
}

func (r *attachmentRepo) GetByID(ctx context.Context, id uuid.UUID) (*Attachment, error) {
	defer observeDB(ctx, "attachments.get_by_id")()
	const q = `SELECT ` + attachmentColumns + ` FROM event_attachments WHERE id=$1`
	return scanAttachment(r.pool.QueryRow(ctx, q, id))
}

func (r *attachmentRepo) ListByEvent(ctx context.Context, eventID uuid.UUID) ([]Attachment, error) {
	defer observeDB(ctx, "attachments.list_by_event")()
	const q = `SELECT ` + attachmentColumns + ` FROM event_attachments WHERE event_id=$1 ORDER BY created_at`
	rows, err := r.pool.Query(ctx, q, eventID)
	if err != nil {
		return nil, fmt.Errorf("list attachments: %w", err)
	}
	defer rows.Close()

	var atts []Attachment
	for rows.Next() {
		a, err := scanAttachment(rows)
		if err != nil {
			return nil, err
		}
		atts = append(atts, *a)
	}
	return atts, rows.Err()
}

func (r *attachmentRepo) Delete(ctx context.Context, id uuid.UUID) error {
	defer observeDB(ctx, "attachments.delete")()
	tag, err := r.pool.Exec(ctx, `DELETE FROM event_attachments WHERE id=$1`, id)
	if err != nil {
		return fmt.Errorf("delete attachment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
