package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/tidewater/bmc/internal/canvas"
)

// ErrUserNotFound is returned when no user exists for a token.
var ErrUserNotFound = errors.New("business user not found")

// ErrDuplicateUser is returned when a token collides on create.
var ErrDuplicateUser = errors.New("business user already exists")

// CreateUser inserts a new business user.
func (s *Store) CreateUser(ctx context.Context, u *canvas.BusinessUser) error {
	u.Normalize()
	insights, err := json.Marshal(u.KeyInsights)
	if err != nil {
		return fmt.Errorf("marshal insights: %w", err)
	}
	now := time.Now()
	_, err = s.db.Exec(ctx, `
		INSERT INTO business_users (token, role, owner_name, business_name, sector, challenges, goals, key_insights, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $9)`,
		u.Token, u.Role, u.OwnerName, u.BusinessName, u.Sector,
		u.Challenges, u.Goals, insights, now,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return fmt.Errorf("create user %s: %w", u.Token, ErrDuplicateUser)
		}
		return fmt.Errorf("create user %s: %w", u.Token, err)
	}
	return nil
}

// GetUser retrieves a business user by token.
func (s *Store) GetUser(ctx context.Context, token string) (*canvas.BusinessUser, error) {
	row := s.db.QueryRow(ctx, `
		SELECT token, role, owner_name, business_name, sector, challenges, goals, key_insights
		FROM business_users WHERE token = $1`, token)
	return scanUser(row, token)
}

// ListUsers returns all business users ordered by creation time.
func (s *Store) ListUsers(ctx context.Context) ([]*canvas.BusinessUser, error) {
	rows, err := s.db.Query(ctx, `
		SELECT token, role, owner_name, business_name, sector, challenges, goals, key_insights
		FROM business_users ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var users []*canvas.BusinessUser
	for rows.Next() {
		u, err := scanUser(rows, "")
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, nil
}

// ReplaceUser overwrites the full user document. Memory persistence is
// last-write-wins on the whole row.
func (s *Store) ReplaceUser(ctx context.Context, u *canvas.BusinessUser) error {
	insights, err := json.Marshal(u.KeyInsights)
	if err != nil {
		return fmt.Errorf("marshal insights: %w", err)
	}
	tag, err := s.db.Exec(ctx, `
		UPDATE business_users
		SET role = $2, owner_name = $3, business_name = $4, sector = $5,
		    challenges = $6, goals = $7, key_insights = $8, updated_at = NOW()
		WHERE token = $1`,
		u.Token, u.Role, u.OwnerName, u.BusinessName, u.Sector,
		u.Challenges, u.Goals, insights,
	)
	if err != nil {
		return fmt.Errorf("replace user %s: %w", u.Token, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("replace user %s: %w", u.Token, ErrUserNotFound)
	}
	return nil
}

// DeleteUser removes a business user.
func (s *Store) DeleteUser(ctx context.Context, token string) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM business_users WHERE token = $1`, token)
	if err != nil {
		return fmt.Errorf("delete user %s: %w", token, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("delete user %s: %w", token, ErrUserNotFound)
	}
	return nil
}

// ResetInsights replaces the user's memory with an empty document. The
// profile fields stay as they are.
func (s *Store) ResetInsights(ctx context.Context, token string) error {
	empty, err := json.Marshal(canvas.NewInsights())
	if err != nil {
		return fmt.Errorf("marshal insights: %w", err)
	}
	tag, err := s.db.Exec(ctx, `
		UPDATE business_users SET key_insights = $2, updated_at = NOW() WHERE token = $1`,
		token, empty,
	)
	if err != nil {
		return fmt.Errorf("reset insights %s: %w", token, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("reset insights %s: %w", token, ErrUserNotFound)
	}
	return nil
}

// CountUsers returns the number of business users.
func (s *Store) CountUsers(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRow(ctx, `SELECT COUNT(*) FROM business_users`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count users: %w", err)
	}
	return n, nil
}

func scanUser(row pgx.Row, token string) (*canvas.BusinessUser, error) {
	var u canvas.BusinessUser
	var insights []byte
	err := row.Scan(
		&u.Token, &u.Role, &u.OwnerName, &u.BusinessName, &u.Sector,
		&u.Challenges, &u.Goals, &insights,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("get user %s: %w", token, ErrUserNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("scan user: %w", err)
	}
	if err := json.Unmarshal(insights, &u.KeyInsights); err != nil {
		return nil, fmt.Errorf("decode insights for %s: %w", u.Token, err)
	}
	u.Normalize()
	return &u, nil
}
