package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type userRepo struct {
	pool PgxPool
}

const userColumns = `id, email, name, hashed_password, oauth_subject, is_verified, is_admin, is_banned, ban_reason, ban_until, created_at`

func scanUser(row pgx.Row) (*User, error) {
	var u User
	err := row.Scan(&u.ID, &u.Email, &u.Name, &u.HashedPassword, &u.OAuthSubject,
		&u.IsVerified, &u.IsAdmin, &u.IsBanned, &u.BanReason, &u.BanUntil, &u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan user: %w", err)
	}
	return &u, nil
}

func (r *userRepo) Create(ctx context.Context, user User) (*User, error) {
	defer observeDB(ctx, "users.create")()
	const q = `INSERT INTO users (email, name, hashed_password, is_verified)
VALUES ($1, $2, $3, $4)
RETURNING ` + userColumns
	return scanUser(r.pool.QueryRow(ctx, q, user.Email, user.Name, user.HashedPassword, user.IsVerified))
}

func (r *userRepo) GetByID(ctx context.Context, id uuid.UUID) (*User, error) {
	defer observeDB(ctx, "users.get_by_id")()
	const q = `SELECT ` + userColumns + ` FROM users WHERE id=$1`
	return scanUser(r.pool.QueryRow(ctx, q, id))
}

func (r *userRepo) GetByEmail(ctx context.Context, email string) (*User, error) {
	defer observeDB(ctx, "users.get_by_email")()
	const q = `SELECT ` + userColumns + ` FROM users WHERE email=$1`
	return scanUser(r.pool.QueryRow(ctx, q, email))
}

func (r *userRepo) UpsertOAuthUser(ctx context.Context, subject, email, name string) (*User, error) {
	defer observeDB(ctx, "users.upsert_oauth")()
	const q = `INSERT INTO users (email, name, oauth_subject, is_verified)
VALUES ($1, $2, $3, TRUE)
ON CONFLICT (email) DO UPDATE SET oauth_subject = EXCLUDED.oauth_subject
RETURNING ` + userColumns
	return scanUser(r.pool.QueryRow(ctx, q, email, name, subject))
}

func (r *userRepo) SetAdmin(ctx context.Context, id uuid.UUID, admin bool) error {
	defer observeDB(ctx, "users.set_admin")()
	tag, err := r.pool.Exec(ctx, `UPDATE users SET is_admin=$2 WHERE id=$1`, id, admin)
	if err != nil {
		return fmt.Errorf("set admin: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *userRepo) SetBan(ctx context.Context, id uuid.UUID, banned bool, reason *string, until *time.Time) error {
	defer observeDB(ctx, "users.set_ban")()
	tag, err := r.pool.Exec(ctx,
		`UPDATE users SET is_banned=$2, ban_reason=$3, ban_until=$4 WHERE id=$1`,
		id, banned, reason, until)
	if err != nil {
		return fmt.Errorf("set ban: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *userRepo) List(ctx context.Context) ([]User, error) {
	defer observeDB(ctx, "users.list")()
	const q = `SELECT ` + userColumns + ` FROM users ORDER BY created_at`
	rows, err := r.pool.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
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
