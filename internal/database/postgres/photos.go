package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/pgvector/pgvector-go"
	"go.uber.org/zap"

	"faceid/internal/database"
	"faceid/internal/errs"
)

// PhotoRepository provides PostgreSQL-backed photo and embedding storage.
type PhotoRepository struct {
	pool *Pool
	log  *zap.SugaredLogger
}

// NewPhotoRepository creates a new PostgreSQL photo repository.
func NewPhotoRepository(pool *Pool, log *zap.SugaredLogger) *PhotoRepository {
	return &PhotoRepository{pool: pool, log: log}
}

// Add inserts a photo. The embedding dimension is checked before any
// database write and the confidence is clamped into [0, 1].
func (r *PhotoRepository) Add(ctx context.Context, photo *database.Photo) (*database.Photo, error) {
	if len(photo.Embedding) != database.EmbeddingDim {
		return nil, errs.ErrInvalidEmbedding
	}

	confidence := photo.Confidence
	if confidence < 0 {
		confidence = 0
	}
	if confidence > 1 {
		confidence = 1
	}

	query := `
		INSERT INTO photos (person_id, filename, file_path, embedding, confidence, is_active)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at, updated_at
	`

	stored := *photo
	stored.Confidence = confidence
	err := r.pool.QueryRow(ctx, query,
		photo.PersonID,
		photo.Filename,
		photo.FilePath,
		pgvector.NewVector(photo.Embedding),
		confidence,
		photo.IsActive,
	).Scan(&stored.ID, &stored.CreatedAt, &stored.UpdatedAt)
	if err != nil {
		return nil, errs.Storage(err, "failed to insert photo")
	}
	return &stored, nil
}

// Get retrieves a photo by ID including its embedding, nil if not found.
func (r *PhotoRepository) Get(ctx context.Context, id int64) (*database.Photo, error) {
	query := `
		SELECT id, person_id, filename, file_path, embedding, confidence, is_active, created_at, updated_at
		FROM photos
		WHERE id = $1
	`

	var p database.Photo
	var vec pgvector.Vector
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&p.ID, &p.PersonID, &p.Filename, &p.FilePath,
		&vec, &p.Confidence, &p.IsActive, &p.CreatedAt, &p.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, errs.Storage(err, "failed to query photo")
	}
	p.Embedding = vec.Slice()
	return &p, nil
}

// ListByPerson returns a person's photos newest first.
func (r *PhotoRepository) ListByPerson(ctx context.Context, personID int64, activeOnly bool) ([]database.Photo, error) {
	query := `
		SELECT id, person_id, filename, file_path, embedding, confidence, is_active, created_at, updated_at
		FROM photos
		WHERE person_id = $1 AND ($2 = FALSE OR is_active)
		ORDER BY created_at DESC, id DESC
	`

	rows, err := r.pool.Query(ctx, query, personID, activeOnly)
	if err != nil {
		return nil, errs.Storage(err, "failed to list photos")
	}
	defer rows.Close()

	var photos []database.Photo
	for rows.Next() {
		var p database.Photo
		var vec pgvector.Vector
		if err := rows.Scan(
			&p.ID, &p.PersonID, &p.Filename, &p.FilePath,
			&vec, &p.Confidence, &p.IsActive, &p.CreatedAt, &p.UpdatedAt,
		); err != nil {
			return nil, errs.Storage(err, "failed to scan photo")
		}
		p.Embedding = vec.Slice()
		photos = append(photos, p)
	}
	if err := rows.Err(); err != nil {
		return nil, errs.Storage(err, "failed to iterate photos")
	}
	return photos, nil
}

// ListActiveCandidates returns every active photo with a stored
// embedding, newest first. Rows whose embedding does not have the
// expected dimension are logged and skipped.
func (r *PhotoRepository) ListActiveCandidates(ctx context.Context) ([]database.Candidate, error) {
	query := `
		SELECT p.id, p.person_id, pe.name, p.embedding, p.confidence
		FROM photos p
		JOIN persons pe ON pe.id = p.person_id
		WHERE p.is_active AND p.embedding IS NOT NULL
		ORDER BY p.created_at DESC, p.id DESC
	`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, errs.Storage(err, "failed to list candidates")
	}
	defer rows.Close()

	var candidates []database.Candidate
	for rows.Next() {
		var c database.Candidate
		var vec pgvector.Vector
		if err := rows.Scan(&c.PhotoID, &c.PersonID, &c.PersonName, &vec, &c.Confidence); err != nil {
			return nil, errs.Storage(err, "failed to scan candidate")
		}
		c.Embedding = vec.Slice()
		if len(c.Embedding) != database.EmbeddingDim {
			r.log.Warnw("skipping candidate with malformed embedding",
				"photo_id", c.PhotoID,
				"dim", len(c.Embedding))
			continue
		}
		candidates = append(candidates, c)
	}
	if err := rows.Err(); err != nil {
		return nil, errs.Storage(err, "failed to iterate candidates")
	}
	return candidates, nil
}

// Deactivate soft-deletes a photo. Deactivating an already inactive
// photo succeeds.
func (r *PhotoRepository) Deactivate(ctx context.Context, id int64) error {
	result, err := r.pool.Exec(ctx, "UPDATE photos SET is_active = FALSE, updated_at = NOW() WHERE id = $1", id)
	if err != nil {
		return errs.Storage(err, "failed to deactivate photo")
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return errs.Storage(err, "failed to check deactivation result")
	}
	if affected == 0 {
		return errs.NotFound("photo %d not found", id)
	}
	return nil
}

// Delete hard-deletes a photo row and returns its stored relative path.
func (r *PhotoRepository) Delete(ctx context.Context, id int64) (string, error) {
	var path string
	err := r.pool.QueryRow(ctx, "DELETE FROM photos WHERE id = $1 RETURNING file_path", id).Scan(&path)
	if errors.Is(err, sql.ErrNoRows) {
		return "", errs.NotFound("photo %d not found", id)
	}
	if err != nil {
		return "", errs.Storage(err, "failed to delete photo")
	}
	return path, nil
}

var _ database.PhotoStore = (*PhotoRepository)(nil)
