package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type groupRepo struct {
	pool PgxPool
}

const groupColumns = `id, calendar_id, name, created_at`

func scanGroup(row pgx.Row) (*Group, error) {
	var g Group
	err := row.Scan(&g.ID, &g.CalendarID, &g.Name, &g.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan group: %w", err)
	}
	return &g, nil
}

func (r *groupRepo) Create(ctx context.Context, group Group) (*Group, error) {
	defer observeDB(ctx, "groups.create")()
	const q = `INSERT INTO groups (calendar_id, name) VALUES ($1, $2) RETURNING ` + groupColumns
	return scanGroup(r.pool.QueryRow(ctx, q, group.CalendarID, group.Name))
}

func (r *groupRepo) GetByID(ctx context.Context, id uuid.UUID) (*Group, error) {
	defer observeDB(ctx, "groups.get_by_id")()
	const q = `SELECT ` + groupColumns + ` FROM groups WHERE id=$1`
	return scanGroup(r.pool.QueryRow(ctx, q, id))
}

func (r *groupRepo) ListByCalendar(ctx context.Context, calendarID uuid.UUID) ([]Group, error) {
	defer observeDB(ctx, "groups.list")()
	const q = `SELECT ` + groupColumns + ` FROM groups WHERE calendar_id=$1 ORDER BY created_at`
	rows, err := r.pool.Query(ctx, q, calendarID)
	if err != nil {
		return nil, fmt.Errorf("list groups: %w", err)
	}
	defer rows.Close()

	var groups []Group
	for rows.Next() {
		g, err := scanGroup(rows)
		if err != nil {
			return nil, err
		}
		groups = append(groups, *g)
	}
	return groups, rows.Err()
}

func (r *groupRepo) Delete(ctx context.Context, id uuid.UUID) error {
	defer observeDB(ctx, "groups.delete")()
	tag, err := r.pool.Exec(ctx, `DELETE FROM groups WHERE id=$1`, id)
	if err != nil {
		return fmt.Errorf("delete group: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// AddMember inserts a membership row; duplicates are swallowed so claiming a
// link twice stays a no-op.
func (r *groupRepo) AddMember(ctx context.Context, groupID, userID uuid.UUID) error {
	defer observeDB(ctx, "groups.add_member")()
	const q = `INSERT INTO group_members (group_id, user_id) VALUES ($1, $2)
ON CONFLICT (group_id, user_id) DO NOTHING`
	if _, err := r.pool.Exec(ctx, q, groupID, userID); err != nil {
		return fmt.Errorf("add group member: %w", err)
	}
	return nil
}

func (r *groupRepo) RemoveMember(ctx context.Context, groupID, userID uuid.UUID) error {
	defer observeDB(ctx, "groups.remove_member")()
	if _, err := r.pool.Exec(ctx,
		`DELETE FROM group_members WHERE group_id=$1 AND user_id=$2`, groupID, userID); err != nil {
		return fmt.Errorf("remove group member: %w", err)
	}
	return nil
}

func (r *groupRepo) IsMember(ctx context.Context, groupID, userID uuid.UUID) (bool, error) {
	defer observeDB(ctx, "groups.is_member")()
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM group_members WHERE group_id=$1 AND user_id=$2)`,
		groupID, userID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check membership: %w", err)
	}
	return exists, nil
}

func (r *groupRepo) ListMembers(ctx context.Context, groupID uuid.UUID) ([]User, error) {
	defer observeDB(ctx, "groups.list_members")()
	const q = `SELECT ` + userColumns + ` FROM users u
JOIN group_members gm ON gm.user_id = u.id
WHERE gm.group_id = $1
ORDER BY u.name`
	rows, err := r.pool.Query(ctx, q, groupID)
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	defer rows.Close()

	var users []User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, *u)
	}
	return users, rows.Err()
}

func (r *groupRepo) MembershipsByCalendar(ctx context.Context, calendarID uuid.UUID) (map[uuid.UUID][]Group, error) {
	defer observeDB(ctx, "groups.memberships_by_calendar")()
	const q = `SELECT gm.user_id, g.id, g.calendar_id, g.name, g.created_at
FROM group_members gm
JOIN groups g ON g.id = gm.group_id
WHERE g.calendar_id = $1`
	rows, err := r.pool.Query(ctx, q, calendarID)
	if err != nil {
		return nil, fmt.Errorf("list memberships: %w", err)
	}
	defer rows.Close()

	memberships := make(map[uuid.UUID][]Group)
	for rows.Next() {
		var userID uuid.UUID
		var g Group
		if err := rows.Scan(&userID, &g.ID, &g.CalendarID, &g.Name, &g.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan membership: %w", err)
		}
		memberships[userID] = append(memberships[userID], g)
	}
	return memberships, rows.Err()
}
