package database

import (
	"time"
)

// EmbeddingDim is the dimensionality of face embeddings produced by the
// extraction service. Any stored vector with a different length is
// corrupt and must never reach the matcher.
const EmbeddingDim = 512

// Person represents a known identity.
type Person struct {
	ID        int64
	Name      string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Photo represents one stored face image belonging to a person.
// An inactive photo stays in the database but is excluded from
// identification candidates and statistics.
type Photo struct {
	ID         int64
	PersonID   int64
	Filename   string
	FilePath   string // relative to the upload root
	Embedding  []float32
	Confidence float64
	IsActive   bool
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Candidate is one active, well-formed embedding eligible for comparison
// during identification.
type Candidate struct {
	PhotoID    int64
	PersonID   int64
	PersonName string
	Embedding  []float32
	Confidence float64
}

// PersonStats aggregates photo statistics for a single person.
// Averages and dates cover active photos only; the total covers all.
type PersonStats struct {
	TotalPhotos   int        `json:"total_photos"`
	ActivePhotos  int        `json:"active_photos"`
	AvgConfidence float64    `json:"avg_confidence"`
	LastPhotoDate *time.Time `json:"last_photo_date"`
	PreviewPhoto  string     `json:"preview_photo,omitempty"`
}

// SystemStats aggregates counters across the whole store.
type SystemStats struct {
	TotalPersons   int     `json:"total_persons"`
	ActivePhotos   int     `json:"active_photos"`
	InactivePhotos int     `json:"inactive_photos"`
	AvgConfidence  float64 `json:"avg_confidence"`
}

// User is an account allowed to use the web interface. New accounts stay
// inactive until approved by an admin; the first registered account is
// activated as admin automatically.
type User struct {
	ID           int64
	Username     string
	PasswordHash string
	IsAdmin      bool
	IsActive     bool
	CreatedAt    time.Time
}

// StoredSession is a persisted login session.
type StoredSession struct {
	ID        string
	UserID    int64
	Username  string
	IsAdmin   bool
	CreatedAt time.Time
	ExpiresAt time.Time
}
