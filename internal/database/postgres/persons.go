package postgres

import (
	"context"
	"database/sql"
	"errors"

	"go.uber.org/zap"

	"faceid/internal/database"
	"faceid/internal/errs"
)

// PersonRepository provides PostgreSQL-backed person storage.
type PersonRepository struct {
	pool *Pool
	log  *zap.SugaredLogger
}

// NewPersonRepository creates a new PostgreSQL person repository.
func NewPersonRepository(pool *Pool, log *zap.SugaredLogger) *PersonRepository {
	return &PersonRepository{pool: pool, log: log}
}

// Create inserts a person.
func (r *PersonRepository) Create(ctx context.Context, name string) (*database.Person, error) {
	query := `
		INSERT INTO persons (name)
		VALUES ($1)
		RETURNING id, name, created_at, updated_at
	`

	var p database.Person
	err := r.pool.QueryRow(ctx, query, name).Scan(&p.ID, &p.Name, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, errs.Storage(err, "failed to create person")
	}
	return &p, nil
}

// Get retrieves a person by ID, returns nil if not found.
func (r *PersonRepository) Get(ctx context.Context, id int64) (*database.Person, error) {
	query := `
		SELECT id, name, created_at, updated_at
		FROM persons
		WHERE id = $1
	`

	var p database.Person
	err := r.pool.QueryRow(ctx, query, id).Scan(&p.ID, &p.Name, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, errs.Storage(err, "failed to query person")
	}
	return &p, nil
}

// List returns persons newest first. The optional name filter matches
// case- and diacritics-insensitively via unaccent.
func (r *PersonRepository) List(ctx context.Context, q database.ListPersonsQuery) ([]database.Person, error) {
	query := `
		SELECT id, name, created_at, updated_at
		FROM persons
		WHERE $3 = '' OR unaccent(lower(name)) LIKE '%' || unaccent(lower($3)) || '%'
		ORDER BY created_at DESC, id DESC
		LIMIT $1 OFFSET $2
	`

	rows, err := r.pool.Query(ctx, query, q.Limit, q.Offset, q.Name)
	if err != nil {
		return nil, errs.Storage(err, "failed to list persons")
	}
	defer rows.Close()

	var persons []database.Person
	for rows.Next() {
		var p database.Person
		if err := rows.Scan(&p.ID, &p.Name, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, errs.Storage(err, "failed to scan person")
		}
		persons = append(persons, p)
	}
	if err := rows.Err(); err != nil {
		return nil, errs.Storage(err, "failed to iterate persons")
	}
	return persons, nil
}

// Rename updates a person's name.
func (r *PersonRepository) Rename(ctx context.Context, id int64, name string) (*database.Person, error) {
	query := `
		UPDATE persons
		SET name = $2, updated_at = NOW()
		WHERE id = $1
		RETURNING id, name, created_at, updated_at
	`

	var p database.Person
	err := r.pool.QueryRow(ctx, query, id, name).Scan(&p.ID, &p.Name, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errs.NotFound("person %d not found", id)
	}
	if err != nil {
		return nil, errs.Storage(err, "failed to rename person")
	}
	return &p, nil
}

// DeleteCascade removes the person and all owned photo rows in one
// transaction. removeFiles runs on the owned photo paths before the
// commit; a file removal failure rolls every row change back.
func (r *PersonRepository) DeleteCascade(ctx context.Context, id int64, removeFiles func(paths []string) error) error {
	tx, err := r.pool.BeginTx(ctx, nil)
	if err != nil {
		return errs.Storage(err, "failed to begin transaction")
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx, "SELECT file_path FROM photos WHERE person_id = $1", id)
	if err != nil {
		return errs.Storage(err, "failed to collect photo paths")
	}
	var paths []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			rows.Close()
			return errs.Storage(err, "failed to scan photo path")
		}
		paths = append(paths, p)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return errs.Storage(err, "failed to iterate photo paths")
	}
	rows.Close()

	if _, err := tx.ExecContext(ctx, "DELETE FROM photos WHERE person_id = $1", id); err != nil {
		return errs.Storage(err, "failed to delete photos")
	}

	result, err := tx.ExecContext(ctx, "DELETE FROM persons WHERE id = $1", id)
	if err != nil {
		return errs.Storage(err, "failed to delete person")
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return errs.Storage(err, "failed to check deletion result")
	}
	if affected == 0 {
		return errs.NotFound("person %d not found", id)
	}

	if removeFiles != nil {
		if err := removeFiles(paths); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		// The files are already gone; the rolled-back rows now point at
		// nothing that can be restored.
		r.log.Errorw("person deletion commit failed after file removal",
			"person_id", id,
			"unrecoverable_paths", paths,
			"error", err)
		return errs.Storage(err, "failed to commit person deletion")
	}
	return nil
}

var _ database.PersonStore = (*PersonRepository)(nil)
