package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/lib/pq"

	"faceid/internal/database"
	"faceid/internal/errs"
)

// uniqueViolation is the PostgreSQL error code for unique constraint
// violations.
const uniqueViolation = "23505"

// UserRepository provides PostgreSQL-backed user account storage.
type UserRepository struct {
	pool *Pool
}

// NewUserRepository creates a new PostgreSQL user repository.
func NewUserRepository(pool *Pool) *UserRepository {
	return &UserRepository{pool: pool}
}

// Create inserts a user account. A duplicate username is a validation
// error.
func (r *UserRepository) Create(ctx context.Context, username, passwordHash string, isAdmin, isActive bool) (*database.User, error) {
	query := `
		INSERT INTO users (username, password_hash, is_admin, is_active)
		VALUES ($1, $2, $3, $4)
		RETURNING id, username, password_hash, is_admin, is_active, created_at
	`

	var u database.User
	err := r.pool.QueryRow(ctx, query, username, passwordHash, isAdmin, isActive).Scan(
		&u.ID, &u.Username, &u.PasswordHash, &u.IsAdmin, &u.IsActive, &u.CreatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return nil, errs.Validation("username %q already taken", username)
		}
		return nil, errs.Storage(err, "failed to create user")
	}
	return &u, nil
}

// Get retrieves a user by ID, nil if not found.
func (r *UserRepository) Get(ctx context.Context, id int64) (*database.User, error) {
	return r.getBy(ctx, "id = $1", id)
}

// GetByUsername retrieves a user by username, nil if not found.
func (r *UserRepository) GetByUsername(ctx context.Context, username string) (*database.User, error) {
	return r.getBy(ctx, "username = $1", username)
}

func (r *UserRepository) getBy(ctx context.Context, where string, arg any) (*database.User, error) {
	query := `
		SELECT id, username, password_hash, is_admin, is_active, created_at
		FROM users
		WHERE ` + where

	var u database.User
	err := r.pool.QueryRow(ctx, query, arg).Scan(
		&u.ID, &u.Username, &u.PasswordHash, &u.IsAdmin, &u.IsActive, &u.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, errs.Storage(err, "failed to query user")
	}
	return &u, nil
}

// List returns all user accounts, oldest first.
func (r *UserRepository) List(ctx context.Context) ([]database.User, error) {
	query := `
		SELECT id, username, password_hash, is_admin, is_active, created_at
		FROM users
		ORDER BY id
	`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, errs.Storage(err, "failed to list users")
	}
	defer rows.Close()

	var users []database.User
	for rows.Next() {
		var u database.User
		if err := rows.Scan(&u.ID, &u.Username, &u.PasswordHash, &u.IsAdmin, &u.IsActive, &u.CreatedAt); err != nil {
			return nil, errs.Storage(err, "failed to scan user")
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, errs.Storage(err, "failed to iterate users")
	}
	return users, nil
}

// Count returns the number of user accounts.
func (r *UserRepository) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM users").Scan(&count); err != nil {
		return 0, errs.Storage(err, "failed to count users")
	}
	return count, nil
}

// Approve activates a user account.
func (r *UserRepository) Approve(ctx context.Context, id int64) error {
	result, err := r.pool.Exec(ctx, "UPDATE users SET is_active = TRUE WHERE id = $1", id)
	if err != nil {
		return errs.Storage(err, "failed to approve user")
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return errs.Storage(err, "failed to check approval result")
	}
	if affected == 0 {
		return errs.NotFound("user %d not found", id)
	}
	return nil
}

// Delete removes a user account and its sessions.
func (r *UserRepository) Delete(ctx context.Context, id int64) error {
	result, err := r.pool.Exec(ctx, "DELETE FROM users WHERE id = $1", id)
	if err != nil {
		return errs.Storage(err, "failed to delete user")
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return errs.Storage(err, "failed to check deletion result")
	}
	if affected == 0 {
		return errs.NotFound("user %d not found", id)
	}
	return nil
}

var _ database.UserStore = (*UserRepository)(nil)
