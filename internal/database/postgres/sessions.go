package postgres

import (
	"context"
	"database/sql"
	"errors"

	"faceid/internal/database"
	"faceid/internal/errs"
)

// SessionRepository provides PostgreSQL-backed session storage so
// logins survive restarts.
type SessionRepository struct {
	pool *Pool
}

// NewSessionRepository creates a new PostgreSQL session repository.
func NewSessionRepository(pool *Pool) *SessionRepository {
	return &SessionRepository{pool: pool}
}

// Save upserts a session.
func (r *SessionRepository) Save(ctx context.Context, s database.StoredSession) error {
	query := `
		INSERT INTO sessions (id, user_id, username, is_admin, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			user_id = EXCLUDED.user_id,
			username = EXCLUDED.username,
			is_admin = EXCLUDED.is_admin,
			created_at = EXCLUDED.created_at,
			expires_at = EXCLUDED.expires_at
	`

	if _, err := r.pool.Exec(ctx, query, s.ID, s.UserID, s.Username, s.IsAdmin, s.CreatedAt, s.ExpiresAt); err != nil {
		return errs.Storage(err, "failed to save session")
	}
	return nil
}

// Get retrieves a session by ID, nil if not found or expired.
func (r *SessionRepository) Get(ctx context.Context, id string) (*database.StoredSession, error) {
	query := `
		SELECT id, user_id, username, is_admin, created_at, expires_at
		FROM sessions
		WHERE id = $1 AND expires_at > NOW()
	`

	var s database.StoredSession
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&s.ID, &s.UserID, &s.Username, &s.IsAdmin, &s.CreatedAt, &s.ExpiresAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, errs.Storage(err, "failed to query session")
	}
	return &s, nil
}

// Delete removes a session.
func (r *SessionRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.pool.Exec(ctx, "DELETE FROM sessions WHERE id = $1", id); err != nil {
		return errs.Storage(err, "failed to delete session")
	}
	return nil
}

// DeleteExpired removes sessions past their expiry and returns the
// number removed.
func (r *SessionRepository) DeleteExpired(ctx context.Context) (int64, error) {
	result, err := r.pool.Exec(ctx, "DELETE FROM sessions WHERE expires_at <= NOW()")
	if err != nil {
		return 0, errs.Storage(err, "failed to delete expired sessions")
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, errs.Storage(err, "failed to count deleted sessions")
	}
	return affected, nil
}

var _ database.SessionStore = (*SessionRepository)(nil)
