package database

import (
	"context"
)

// ListPersonsQuery bounds and filters a person listing.
type ListPersonsQuery struct {
	Limit  int
	Offset int
	Name   string // optional, diacritics-insensitive substring filter
}

// PersonStore provides access to person records.
type PersonStore interface {
	// Create inserts a person. Name validation is the caller's job.
	Create(ctx context.Context, name string) (*Person, error)
	// Get retrieves a person by ID, nil if not found.
	Get(ctx context.Context, id int64) (*Person, error)
	// List returns persons ordered by creation time, newest first.
	List(ctx context.Context, q ListPersonsQuery) ([]Person, error)
	// Rename updates the person's name. Returns a not-found error if absent.
	Rename(ctx context.Context, id int64, name string) (*Person, error)
	// DeleteCascade removes the person and all owned photo rows in one
	// transaction. removeFiles is invoked with the relative paths of all
	// owned photos before the transaction commits; if it fails, every row
	// change is rolled back.
	DeleteCascade(ctx context.Context, id int64, removeFiles func(paths []string) error) error
}

// PhotoStore provides access to photo records and their embeddings.
type PhotoStore interface {
	// Add inserts a photo. Fails with ErrInvalidEmbedding before any
	// database write when the embedding is not exactly EmbeddingDim long.
	// Confidence is clamped into [0, 1].
	Add(ctx context.Context, photo *Photo) (*Photo, error)
	// Get retrieves a photo by ID, nil if not found. The embedding is
	// included.
	Get(ctx context.Context, id int64) (*Photo, error)
	// ListByPerson returns a person's photos, newest first.
	ListByPerson(ctx context.Context, personID int64, activeOnly bool) ([]Photo, error)
	// ListActiveCandidates returns all active photos with a present,
	// well-formed embedding, newest first. Malformed embeddings are
	// logged and skipped, never surfaced.
	ListActiveCandidates(ctx context.Context) ([]Candidate, error)
	// Deactivate soft-deletes a photo. Idempotent; not-found error if
	// the photo does not exist.
	Deactivate(ctx context.Context, id int64) error
	// Delete hard-deletes the photo row and returns the stored relative
	// path. The caller owns removal of the backing file.
	Delete(ctx context.Context, id int64) (string, error)
}

// StatsStore provides store-wide counters.
type StatsStore interface {
	SystemStats(ctx context.Context) (*SystemStats, error)
}

// UserStore provides access to user accounts.
type UserStore interface {
	Create(ctx context.Context, username, passwordHash string, isAdmin, isActive bool) (*User, error)
	Get(ctx context.Context, id int64) (*User, error)
	GetByUsername(ctx context.Context, username string) (*User, error)
	List(ctx context.Context) ([]User, error)
	Count(ctx context.Context) (int, error)
	Approve(ctx context.Context, id int64) error
	Delete(ctx context.Context, id int64) error
}

// SessionStore persists login sessions across restarts.
type SessionStore interface {
	Save(ctx context.Context, s StoredSession) error
	Get(ctx context.Context, id string) (*StoredSession, error)
	Delete(ctx context.Context, id string) error
	DeleteExpired(ctx context.Context) (int64, error)
}
