// Package mock provides in-memory implementations of the database
// interfaces for testing.
package mock

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"faceid/internal/database"
	"faceid/internal/errs"
	"faceid/internal/textnorm"
)

// MockStore holds persons and photos in one in-memory store so cascade
// deletion behaves like the real database. The Persons, Photos and
// Stats views implement the corresponding database interfaces.
type MockStore struct {
	mu            sync.RWMutex
	persons       map[int64]*database.Person
	photos        map[int64]*database.Photo
	personCounter int64
	photoCounter  int64

	// Error injection
	CreatePersonError   error
	GetPersonError      error
	ListPersonsError    error
	RenameError         error
	DeleteCascadeError  error
	AddPhotoError       error
	GetPhotoError       error
	ListByPersonError   error
	ListCandidatesError error
	DeactivateError     error
	DeletePhotoError    error
	SystemStatsError    error
}

// NewMockStore creates an empty mock store.
func NewMockStore() *MockStore {
	return &MockStore{
		persons: make(map[int64]*database.Person),
		photos:  make(map[int64]*database.Photo),
	}
}

// MockPersonStore is the database.PersonStore view of a MockStore.
type MockPersonStore struct{ *MockStore }

// MockPhotoStore is the database.PhotoStore view of a MockStore.
type MockPhotoStore struct{ *MockStore }

// Persons returns the person store view.
func (m *MockStore) Persons() *MockPersonStore { return &MockPersonStore{m} }

// Photos returns the photo store view.
func (m *MockStore) Photos() *MockPhotoStore { return &MockPhotoStore{m} }

// AddPerson inserts a person directly, bypassing error injection.
func (m *MockStore) AddPerson(p database.Person) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p.ID > m.personCounter {
		m.personCounter = p.ID
	}
	m.persons[p.ID] = &p
}

// InsertPhoto inserts a photo directly, bypassing validation and error
// injection. Useful for seeding corrupt rows.
func (m *MockStore) InsertPhoto(p database.Photo) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p.ID > m.photoCounter {
		m.photoCounter = p.ID
	}
	m.photos[p.ID] = &p
}

// Create inserts a person.
func (m *MockPersonStore) Create(ctx context.Context, name string) (*database.Person, error) {
	if m.CreatePersonError != nil {
		return nil, m.CreatePersonError
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	m.personCounter++
	now := time.Now()
	p := &database.Person{
		ID:        m.personCounter,
		Name:      name,
		CreatedAt: now,
		UpdatedAt: now,
	}
	m.persons[p.ID] = p
	clone := *p
	return &clone, nil
}

// Get retrieves a person by ID, nil if not found.
func (m *MockPersonStore) Get(ctx context.Context, id int64) (*database.Person, error) {
	if m.GetPersonError != nil {
		return nil, m.GetPersonError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.persons[id]
	if !ok {
		return nil, nil
	}
	clone := *p
	return &clone, nil
}

// List returns persons newest first, filtered and paged.
func (m *MockPersonStore) List(ctx context.Context, q database.ListPersonsQuery) ([]database.Person, error) {
	if m.ListPersonsError != nil {
		return nil, m.ListPersonsError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	filter := textnorm.Normalize(q.Name)
	var all []database.Person
	for _, p := range m.persons {
		if filter != "" && !strings.Contains(textnorm.Normalize(p.Name), filter) {
			continue
		}
		all = append(all, *p)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID > all[j].ID })

	if q.Offset >= len(all) {
		return nil, nil
	}
	all = all[q.Offset:]
	if q.Limit > 0 && len(all) > q.Limit {
		all = all[:q.Limit]
	}
	return all, nil
}

// Rename updates a person's name.
func (m *MockPersonStore) Rename(ctx context.Context, id int64, name string) (*database.Person, error) {
	if m.RenameError != nil {
		return nil, m.RenameError
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.persons[id]
	if !ok {
		return nil, errs.NotFound("person %d not found", id)
	}
	p.Name = name
	p.UpdatedAt = time.Now()
	clone := *p
	return &clone, nil
}

// DeleteCascade removes the person and all owned photos. removeFiles
// runs before any row is deleted; if it fails, nothing changes.
func (m *MockPersonStore) DeleteCascade(ctx context.Context, id int64, removeFiles func(paths []string) error) error {
	if m.DeleteCascadeError != nil {
		return m.DeleteCascadeError
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.persons[id]; !ok {
		return errs.NotFound("person %d not found", id)
	}

	var paths []string
	var photoIDs []int64
	for pid, photo := range m.photos {
		if photo.PersonID == id {
			paths = append(paths, photo.FilePath)
			photoIDs = append(photoIDs, pid)
		}
	}
	if removeFiles != nil {
		if err := removeFiles(paths); err != nil {
			return err
		}
	}
	for _, pid := range photoIDs {
		delete(m.photos, pid)
	}
	delete(m.persons, id)
	return nil
}

// Add inserts a photo after checking the embedding dimension.
func (m *MockPhotoStore) Add(ctx context.Context, photo *database.Photo) (*database.Photo, error) {
	if m.AddPhotoError != nil {
		return nil, m.AddPhotoError
	}
	if len(photo.Embedding) != database.EmbeddingDim {
		return nil, errs.ErrInvalidEmbedding
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	m.photoCounter++
	now := time.Now()
	stored := *photo
	stored.ID = m.photoCounter
	stored.Confidence = clampUnit(photo.Confidence)
	stored.CreatedAt = now
	stored.UpdatedAt = now
	m.photos[stored.ID] = &stored
	clone := stored
	return &clone, nil
}

// Get retrieves a photo by ID, nil if not found.
func (m *MockPhotoStore) Get(ctx context.Context, id int64) (*database.Photo, error) {
	if m.GetPhotoError != nil {
		return nil, m.GetPhotoError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.photos[id]
	if !ok {
		return nil, nil
	}
	clone := *p
	return &clone, nil
}

// ListByPerson returns a person's photos newest first.
func (m *MockPhotoStore) ListByPerson(ctx context.Context, personID int64, activeOnly bool) ([]database.Photo, error) {
	if m.ListByPersonError != nil {
		return nil, m.ListByPersonError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []database.Photo
	for _, p := range m.photos {
		if p.PersonID != personID {
			continue
		}
		if activeOnly && !p.IsActive {
			continue
		}
		result = append(result, *p)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID > result[j].ID })
	return result, nil
}

// ListActiveCandidates returns active photos with well-formed
// embeddings, newest first. Rows with a wrong embedding length are
// silently skipped.
func (m *MockPhotoStore) ListActiveCandidates(ctx context.Context) ([]database.Candidate, error) {
	if m.ListCandidatesError != nil {
		return nil, m.ListCandidatesError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []database.Candidate
	for _, p := range m.photos {
		if !p.IsActive || len(p.Embedding) != database.EmbeddingDim {
			continue
		}
		name := ""
		if person, ok := m.persons[p.PersonID]; ok {
			name = person.Name
		}
		result = append(result, database.Candidate{
			PhotoID:    p.ID,
			PersonID:   p.PersonID,
			PersonName: name,
			Embedding:  p.Embedding,
			Confidence: p.Confidence,
		})
	}
	sort.Slice(result, func(i, j int) bool { return result[i].PhotoID > result[j].PhotoID })
	return result, nil
}

// Deactivate soft-deletes a photo. Idempotent.
func (m *MockPhotoStore) Deactivate(ctx context.Context, id int64) error {
	if m.DeactivateError != nil {
		return m.DeactivateError
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.photos[id]
	if !ok {
		return errs.NotFound("photo %d not found", id)
	}
	p.IsActive = false
	p.UpdatedAt = time.Now()
	return nil
}

// Delete hard-deletes a photo row and returns its stored path.
func (m *MockPhotoStore) Delete(ctx context.Context, id int64) (string, error) {
	if m.DeletePhotoError != nil {
		return "", m.DeletePhotoError
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.photos[id]
	if !ok {
		return "", errs.NotFound("photo %d not found", id)
	}
	delete(m.photos, id)
	return p.FilePath, nil
}

// SystemStats aggregates counters across the store.
func (m *MockStore) SystemStats(ctx context.Context) (*database.SystemStats, error) {
	if m.SystemStatsError != nil {
		return nil, m.SystemStatsError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	stats := &database.SystemStats{TotalPersons: len(m.persons)}
	var sum float64
	for _, p := range m.photos {
		if p.IsActive {
			stats.ActivePhotos++
			sum += p.Confidence
		} else {
			stats.InactivePhotos++
		}
	}
	if stats.ActivePhotos > 0 {
		stats.AvgConfidence = sum / float64(stats.ActivePhotos)
	}
	return stats, nil
}

func clampUnit(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// MockUserStore is an in-memory implementation of database.UserStore.
type MockUserStore struct {
	mu      sync.RWMutex
	users   map[int64]*database.User
	counter int64

	// Error injection
	CreateError  error
	GetError     error
	ListError    error
	CountError   error
	ApproveError error
	DeleteError  error
}

// NewMockUserStore creates an empty mock user store.
func NewMockUserStore() *MockUserStore {
	return &MockUserStore{users: make(map[int64]*database.User)}
}

// Create inserts a user. Duplicate usernames are rejected.
func (m *MockUserStore) Create(ctx context.Context, username, passwordHash string, isAdmin, isActive bool) (*database.User, error) {
	if m.CreateError != nil {
		return nil, m.CreateError
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, u := range m.users {
		if u.Username == username {
			return nil, errs.Validation("username %q already taken", username)
		}
	}
	m.counter++
	u := &database.User{
		ID:           m.counter,
		Username:     username,
		PasswordHash: passwordHash,
		IsAdmin:      isAdmin,
		IsActive:     isActive,
		CreatedAt:    time.Now(),
	}
	m.users[u.ID] = u
	clone := *u
	return &clone, nil
}

// Get retrieves a user by ID, nil if not found.
func (m *MockUserStore) Get(ctx context.Context, id int64) (*database.User, error) {
	if m.GetError != nil {
		return nil, m.GetError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[id]
	if !ok {
		return nil, nil
	}
	clone := *u
	return &clone, nil
}

// GetByUsername retrieves a user by username, nil if not found.
func (m *MockUserStore) GetByUsername(ctx context.Context, username string) (*database.User, error) {
	if m.GetError != nil {
		return nil, m.GetError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, u := range m.users {
		if u.Username == username {
			clone := *u
			return &clone, nil
		}
	}
	return nil, nil
}

// List returns all users ordered by ID.
func (m *MockUserStore) List(ctx context.Context) ([]database.User, error) {
	if m.ListError != nil {
		return nil, m.ListError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []database.User
	for _, u := range m.users {
		result = append(result, *u)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

// Count returns the number of users.
func (m *MockUserStore) Count(ctx context.Context) (int, error) {
	if m.CountError != nil {
		return 0, m.CountError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.users), nil
}

// Approve activates a user account.
func (m *MockUserStore) Approve(ctx context.Context, id int64) error {
	if m.ApproveError != nil {
		return m.ApproveError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return errs.NotFound("user %d not found", id)
	}
	u.IsActive = true
	return nil
}

// Delete removes a user account.
func (m *MockUserStore) Delete(ctx context.Context, id int64) error {
	if m.DeleteError != nil {
		return m.DeleteError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[id]; !ok {
		return errs.NotFound("user %d not found", id)
	}
	delete(m.users, id)
	return nil
}

// MockSessionStore is an in-memory implementation of
// database.SessionStore.
type MockSessionStore struct {
	mu       sync.RWMutex
	sessions map[string]database.StoredSession

	// Error injection
	SaveError   error
	GetError    error
	DeleteError error
}

// NewMockSessionStore creates an empty mock session store.
func NewMockSessionStore() *MockSessionStore {
	return &MockSessionStore{sessions: make(map[string]database.StoredSession)}
}

// Save upserts a session.
func (m *MockSessionStore) Save(ctx context.Context, s database.StoredSession) error {
	if m.SaveError != nil {
		return m.SaveError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.ID] = s
	return nil
}

// Get retrieves a session by ID, nil if not found.
func (m *MockSessionStore) Get(ctx context.Context, id string) (*database.StoredSession, error) {
	if m.GetError != nil {
		return nil, m.GetError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, nil
	}
	return &s, nil
}

// Delete removes a session.
func (m *MockSessionStore) Delete(ctx context.Context, id string) error {
	if m.DeleteError != nil {
		return m.DeleteError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
	return nil
}

// DeleteExpired removes sessions past their expiry.
func (m *MockSessionStore) DeleteExpired(ctx context.Context) (int64, error) {
	if m.DeleteError != nil {
		return 0, m.DeleteError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	var removed int64
	for id, s := range m.sessions {
		if s.ExpiresAt.Before(now) {
			delete(m.sessions, id)
			removed++
		}
	}
	return removed, nil
}

// Verify interface compliance
var _ database.PersonStore = (*MockPersonStore)(nil)
var _ database.PhotoStore = (*MockPhotoStore)(nil)
var _ database.StatsStore = (*MockStore)(nil)
var _ database.UserStore = (*MockUserStore)(nil)
var _ database.SessionStore = (*MockSessionStore)(nil)
