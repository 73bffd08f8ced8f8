package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/plabarre/agenda/internal/permission"
)

type invitationRepo struct {
	pool PgxPool
}

const invitationColumns = `id, calendar_id, email, permission, sub_calendar_id, group_id, invited_by, created_at`

func scanInvitation(row pgx.Row) (*PendingInvitation, error) {
	var inv PendingInvitation
	var perm string
	err := row.Scan(&inv.ID, &inv.CalendarID, &inv.Email, &perm,
		&inv.SubCalendarID, &inv.GroupID, &inv.InvitedBy, &inv.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan invitation: %w", err)
	}
	p, err := permission.Parse(perm)
	if err != nil {
		return nil, fmt.Errorf("invitation %s: %w", inv.ID, err)
	}
	inv.Permission = p
	return &inv, nil
}

func collectInvitations(rows pgx.Rows) ([]PendingInvitation, error) {
	defer rows.Close()
	var invs []PendingInvitation
	for rows.Next() {
		inv, err := scanInvitation(rows)
		if err != nil {
			return nil, err
		}
		invs = append(invs, *inv)
	}
	return invs, rows.Err()
}

func (r *invitationRepo) Create(ctx context.Context, inv PendingInvitation) (*PendingInvitation, error) {
	defer observeDB(ctx, "invitations.create")()
	const q = `INSERT INTO pending_invitations (calendar_id, email, permission, sub_calendar_id, group_id, invited_by)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING ` + invitationColumns
	return scanInvitation(r.pool.QueryRow(ctx, q,
		inv.CalendarID, inv.Email, string(inv.Permission), inv.SubCalendarID, inv.GroupID, inv.InvitedBy))
}

func (r *invitationRepo) GetByID(ctx context.Context, id uuid.UUID) (*PendingInvitation, error) {
	defer observeDB(ctx, "invitations.get_by_id")()
	const q = `SELECT ` + invitationColumns + ` FROM pending_invitations WHERE id=$1`
	return scanInvitation(r.pool.QueryRow(ctx, q, id))
}

func (r *invitationRepo) ListByCalendar(ctx context.Context, calendarID uuid.UUID) ([]PendingInvitation, error) {
	defer observeDB(ctx, "invitations.list_by_calendar")()
	const q = `SELECT ` + invitationColumns + ` FROM pending_invitations WHERE calendar_id=$1 ORDER BY created_at`
	rows, err := r.pool.Query(ctx, q, calendarID)
	if err != nil {
		return nil, fmt.Errorf("list invitations: %w", err)
	}
	return collectInvitations(rows)
}

func (r *invitationRepo) ListByEmail(ctx context.Context, email string) ([]PendingInvitation, error) {
	defer observeDB(ctx, "invitations.list_by_email")()
	const q = `SELECT ` + invitationColumns + ` FROM pending_invitations WHERE email=$1`
	rows, err := r.pool.Query(ctx, q, email)
	if err != nil {
		return nil, fmt.Errorf("list invitations by email: %w", err)
	}
	return collectInvitations(rows)
}

func (r *invitationRepo) ExistsForEmail(ctx context.Context, calendarID uuid.UUID, email string) (bool, error) {
	defer observeDB(ctx, "invitations.exists")()
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM pending_invitations WHERE calendar_id=$1 AND email=$2)`,
		calendarID, email).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check invitation: %w", err)
	}
	return exists, nil
}

func (r *invitationRepo) Delete(ctx context.Context, id uuid.UUID) error {
	defer observeDB(ctx, "invitations.delete")()
	tag, err := r.pool.Exec(ctx, `DELETE FROM pending_invitations WHERE id=$1`, id)
	if err != nil {
		return fmt.Errorf("delete invitation: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
