package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/plabarre/agenda/internal/permission"
)

type accessRepo struct {
	pool PgxPool
}

const grantColumns = `id, calendar_id, sub_calendar_id, user_id, group_id, link_id, permission`

func scanGrant(row pgx.Row) (*AccessGrant, error) {
	var g AccessGrant
	var perm string
	err := row.Scan(&g.ID, &g.CalendarID, &g.SubCalendarID, &g.UserID, &g.GroupID, &g.LinkID, &perm)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan grant: %w", err)
	}
	p, err := permission.Parse(perm)
	if err != nil {
		return nil, fmt.Errorf("grant %s: %w", g.ID, err)
	}
	g.Permission = p
	return &g, nil
}

func collectGrants(rows pgx.Rows) ([]AccessGrant, error) {
	defer rows.Close()
	var grants []AccessGrant
	for rows.Next() {
		g, err := scanGrant(rows)
		if err != nil {
			return nil, err
		}
		grants = append(grants, *g)
	}
	return grants, rows.Err()
}

// GrantsForUser collects direct grants and grants addressed to any group the
// user belongs to, in a single query, mirroring how the resolver consumes
// them as one candidate set.
func (r *accessRepo) GrantsForUser(ctx context.Context, calendarID, userID uuid.UUID) ([]AccessGrant, error) {
	defer observeDB(ctx, "access.grants_for_user")()
	const q = `SELECT ` + grantColumns + ` FROM calendar_access
WHERE calendar_id = $1
  AND (user_id = $2
       OR group_id IN (SELECT gm.group_id FROM group_members gm WHERE gm.user_id = $2))`
	rows, err := r.pool.Query(ctx, q, calendarID, userID)
	if err != nil {
		return nil, fmt.Errorf("grants for user: %w", err)
	}
	return collectGrants(rows)
}

// GrantsForLink resolves the token to an active link on this calendar and
// returns its grants. Inactive or unknown tokens yield an empty set.
func (r *accessRepo) GrantsForLink(ctx context.Context, calendarID uuid.UUID, token string) ([]AccessGrant, error) {
	defer observeDB(ctx, "access.grants_for_link")()
	const q = `SELECT ` + grantColumns + ` FROM calendar_access
WHERE link_id = (
    SELECT id FROM access_links
    WHERE calendar_id = $1 AND token = $2 AND active
)`
	rows, err := r.pool.Query(ctx, q, calendarID, token)
	if err != nil {
		return nil, fmt.Errorf("grants for link: %w", err)
	}
	return collectGrants(rows)
}

func (r *accessRepo) CreateGrant(ctx context.Context, grant AccessGrant) (*AccessGrant, error) {
	defer observeDB(ctx, "access.create_grant")()
	const q = `INSERT INTO calendar_access (calendar_id, sub_calendar_id, user_id, group_id, link_id, permission)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING ` + grantColumns
	return scanGrant(r.pool.QueryRow(ctx, q,
		grant.CalendarID, grant.SubCalendarID, grant.UserID, grant.GroupID, grant.LinkID, string(grant.Permission)))
}

func (r *accessRepo) GetGrant(ctx context.Context, id uuid.UUID) (*AccessGrant, error) {
	defer observeDB(ctx, "access.get_grant")()
	const q = `SELECT ` + grantColumns + ` FROM calendar_access WHERE id=$1`
	return scanGrant(r.pool.QueryRow(ctx, q, id))
}

func (r *accessRepo) UpdateGrantPermission(ctx context.Context, id uuid.UUID, p permission.Permission) error {
	defer observeDB(ctx, "access.update_grant")()
	tag, err := r.pool.Exec(ctx, `UPDATE calendar_access SET permission=$2 WHERE id=$1`, id, string(p))
	if err != nil {
		return fmt.Errorf("update grant: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *accessRepo) DeleteGrant(ctx context.Context, id uuid.UUID) error {
	defer observeDB(ctx, "access.delete_grant")()
	tag, err := r.pool.Exec(ctx, `DELETE FROM calendar_access WHERE id=$1`, id)
	if err != nil {
		return fmt.Errorf("delete grant: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ListGrants returns the calendar's user and group grants. Link grants are
// listed through their links instead.
func (r *accessRepo) ListGrants(ctx context.Context, calendarID uuid.UUID) ([]AccessGrant, error) {
	defer observeDB(ctx, "access.list_grants")()
	const q = `SELECT ` + grantColumns + ` FROM calendar_access
WHERE calendar_id=$1 AND link_id IS NULL`
	rows, err := r.pool.Query(ctx, q, calendarID)
	if err != nil {
		return nil, fmt.Errorf("list grants: %w", err)
	}
	return collectGrants(rows)
}

func (r *accessRepo) ListGrantsByGroup(ctx context.Context, calendarID, groupID uuid.UUID) ([]AccessGrant, error) {
	defer observeDB(ctx, "access.list_grants_by_group")()
	const q = `SELECT ` + grantColumns + ` FROM calendar_access
WHERE calendar_id=$1 AND group_id=$2`
	rows, err := r.pool.Query(ctx, q, calendarID, groupID)
	if err != nil {
		return nil, fmt.Errorf("list group grants: %w", err)
	}
	return collectGrants(rows)
}

// FindGrant locates an existing grant for the given principal and scope,
// treating NULL sub_calendar_id as a distinct scope.
func (r *accessRepo) FindGrant(ctx context.Context, calendarID uuid.UUID, userID, groupID *uuid.UUID, subCalendarID *uuid.UUID) (*AccessGrant, error) {
	defer observeDB(ctx, "access.find_grant")()
	const q = `SELECT ` + grantColumns + ` FROM calendar_access
WHERE calendar_id=$1
  AND user_id IS NOT DISTINCT FROM $2
  AND group_id IS NOT DISTINCT FROM $3
  AND sub_calendar_id IS NOT DISTINCT FROM $4
  AND link_id IS NULL
LIMIT 1`
	return scanGrant(r.pool.QueryRow(ctx, q, calendarID, userID, groupID, subCalendarID))
}

const linkColumns = `id, calendar_id, token, label, active, group_id, created_at`

func scanLink(row pgx.Row) (*AccessLink, error) {
	var l AccessLink
	err := row.Scan(&l.ID, &l.CalendarID, &l.Token, &l.Label, &l.Active, &l.GroupID, &l.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan link: %w", err)
	}
	return &l, nil
}

func (r *accessRepo) CreateLink(ctx context.Context, link AccessLink) (*AccessLink, error) {
	defer observeDB(ctx, "access.create_link")()
	const q = `INSERT INTO access_links (calendar_id, token, label, active, group_id)
VALUES ($1, $2, $3, $4, $5)
RETURNING ` + linkColumns
	return scanLink(r.pool.QueryRow(ctx, q, link.CalendarID, link.Token, link.Label, link.Active, link.GroupID))
}

func (r *accessRepo) GetLink(ctx context.Context, id uuid.UUID) (*AccessLink, error) {
	defer observeDB(ctx, "access.get_link")()
	const q = `SELECT ` + linkColumns + ` FROM access_links WHERE id=$1`
	return scanLink(r.pool.QueryRow(ctx, q, id))
}

func (r *accessRepo) GetLinkByToken(ctx context.Context, calendarID uuid.UUID, token string) (*AccessLink, error) {
	defer observeDB(ctx, "access.get_link_by_token")()
	const q = `SELECT ` + linkColumns + ` FROM access_links WHERE calendar_id=$1 AND token=$2`
	return scanLink(r.pool.QueryRow(ctx, q, calendarID, token))
}

func (r *accessRepo) ListLinks(ctx context.Context, calendarID uuid.UUID) ([]AccessLink, error) {
	defer observeDB(ctx, "access.list_links")()
	const q = `SELECT ` + linkColumns + ` FROM access_links WHERE calendar_id=$1 ORDER BY created_at`
	rows, err := r.pool.Query(ctx, q, calendarID)
	if err != nil {
		return nil, fmt.Errorf("list links: %w", err)
	}
	defer rows.Close()

	var links []AccessLink
	for rows.Next() {
		l, err := scanLink(rows)
		if err != nil {
			return nil, err
		}
		links = append(links, *l)
	}
	return links, rows.Err()
}

func (r *accessRepo) UpdateLink(ctx context.Context, link AccessLink) error {
	defer observeDB(ctx, "access.update_link")()
	const q = `UPDATE access_links SET label=$2, active=$3, group_id=$4 WHERE id=$1`
	tag, err := r.pool.Exec(ctx, q, link.ID, link.Label, link.Active, link.GroupID)
	if err != nil {
		return fmt.Errorf("update link: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *accessRepo) DeleteLink(ctx context.Context, id uuid.UUID) error {
	defer observeDB(ctx, "access.delete_link")()
	tag, err := r.pool.Exec(ctx, `DELETE FROM access_links WHERE id=$1`, id)
	if err != nil {
		return fmt.Errorf("delete link: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *accessRepo) GrantForLinkID(ctx context.Context, linkID uuid.UUID) (*AccessGrant, error) {
	defer observeDB(ctx, "access.grant_for_link")()
	const q = `SELECT ` + grantColumns + ` FROM calendar_access WHERE link_id=$1 LIMIT 1`
	return scanGrant(r.pool.QueryRow(ctx, q, linkID))
}
