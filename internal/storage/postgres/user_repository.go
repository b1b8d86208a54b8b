package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// UserRepository holds the per-user session and ban records.
type UserRepository struct {
	q querier
}

func NewUserRepository(pool *pgxpool.Pool) *UserRepository {
	return &UserRepository{q: querier{pool: pool}}
}

func (r *UserRepository) AddSession(ctx context.Context, userID, sessionID string, now time.Time) error {
	_, err := r.q.exec(ctx, `
INSERT INTO sessions (user_id, session_id, created_at)
VALUES ($1, $2, $3)
ON CONFLICT (user_id, session_id) DO NOTHING`,
		userID, sessionID, now,
	)
	if err != nil {
		return fmt.Errorf("add session: %w", err)
	}
	return nil
}

func (r *UserRepository) HasSession(ctx context.Context, userID, sessionID string) (bool, error) {
	var exists bool
	err := r.q.queryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM sessions WHERE user_id = $1 AND session_id = $2)`,
		userID, sessionID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("look up session: %w", err)
	}
	return exists, nil
}

func (r *UserRepository) IsBanned(ctx context.Context, userID string) (bool, error) {
	var reason string
	err := r.q.queryRow(ctx, `SELECT reason FROM bans WHERE user_id = $1`, userID).Scan(&reason)
	if err != nil {
		if err == pgx.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("look up ban: %w", err)
	}
	return true, nil
}

func (r *UserRepository) Ban(ctx context.Context, userID, reason string, now time.Time) error {
	_, err := r.q.exec(ctx, `
INSERT INTO bans (user_id, reason, created_at)
VALUES ($1, $2, $3)
ON CONFLICT (user_id) DO NOTHING`,
		userID, reason, now,
	)
	if err != nil {
		return fmt.Errorf("ban user: %w", err)
	}
	return nil
}
