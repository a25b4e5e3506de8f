//go:build integration

package postgres

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"faceid/internal/config"
	"faceid/internal/database"
	"faceid/internal/errs"
	"faceid/internal/logging"
)

func setupTestContainer(t *testing.T) (*Pool, func()) {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "pgvector/pgvector:pg16",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "test",
			"POSTGRES_PASSWORD": "test",
			"POSTGRES_DB":       "testdb",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Skipf("Docker not available or container failed to start, skipping integration test: %v", err)
		return nil, func() {}
	}
	if container == nil {
		t.Skip("Docker not available, skipping integration test")
		return nil, func() {}
	}

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get container host: %v", err)
	}

	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		t.Fatalf("Failed to get container port: %v", err)
	}

	dbURL := fmt.Sprintf("postgres://test:test@%s:%s/testdb?sslmode=disable", host, port.Port())

	pool, err := NewPool(&config.DatabaseConfig{
		URL:          dbURL,
		MaxOpenConns: 5,
		MaxIdleConns: 2,
	})
	if err != nil {
		container.Terminate(ctx)
		t.Fatalf("Failed to create pool: %v", err)
	}

	if _, err := pool.Migrate(ctx); err != nil {
		pool.Close()
		container.Terminate(ctx)
		t.Fatalf("Failed to run migrations: %v", err)
	}

	cleanup := func() {
		pool.Close()
		container.Terminate(ctx)
	}

	return pool, cleanup
}

func testEmbedding(hot int) []float32 {
	v := make([]float32, database.EmbeddingDim)
	v[hot] = 1
	return v
}

func TestPersonRepository(t *testing.T) {
	pool, cleanup := setupTestContainer(t)
	if pool == nil {
		return
	}
	defer cleanup()

	ctx := context.Background()
	persons := NewPersonRepository(pool, logging.NewNop())
	photos := NewPhotoRepository(pool, logging.NewNop())

	t.Run("CreateAndGet", func(t *testing.T) {
		p, err := persons.Create(ctx, "Jan Novák")
		if err != nil {
			t.Fatalf("Failed to create person: %v", err)
		}
		if p.ID == 0 {
			t.Error("Expected a generated ID")
		}

		got, err := persons.Get(ctx, p.ID)
		if err != nil {
			t.Fatalf("Failed to get person: %v", err)
		}
		if got == nil || got.Name != "Jan Novák" {
			t.Errorf("Expected Jan Novák, got %v", got)
		}
	})

	t.Run("GetMissingReturnsNil", func(t *testing.T) {
		got, err := persons.Get(ctx, 99999)
		if err != nil {
			t.Fatalf("Failed to get person: %v", err)
		}
		if got != nil {
			t.Errorf("Expected nil, got %v", got)
		}
	})

	t.Run("ListWithDiacriticsFilter", func(t *testing.T) {
		list, err := persons.List(ctx, database.ListPersonsQuery{Limit: 10, Name: "novak"})
		if err != nil {
			t.Fatalf("Failed to list persons: %v", err)
		}
		if len(list) != 1 || list[0].Name != "Jan Novák" {
			t.Errorf("Expected Jan Novák via unaccent filter, got %v", list)
		}
	})

	t.Run("Rename", func(t *testing.T) {
		p, _ := persons.Create(ctx, "Temp Name")
		renamed, err := persons.Rename(ctx, p.ID, "Final Name")
		if err != nil {
			t.Fatalf("Failed to rename person: %v", err)
		}
		if renamed.Name != "Final Name" {
			t.Errorf("Expected Final Name, got %s", renamed.Name)
		}

		_, err = persons.Rename(ctx, 99999, "Anyone")
		if !errs.IsKind(err, errs.KindNotFound) {
			t.Errorf("Expected not-found error, got %v", err)
		}
	})

	t.Run("DeleteCascade", func(t *testing.T) {
		p, _ := persons.Create(ctx, "Cascade Target")
		photo, err := photos.Add(ctx, &database.Photo{
			PersonID:   p.ID,
			Filename:   "a.jpg",
			FilePath:   "persons/a.jpg",
			Embedding:  testEmbedding(0),
			Confidence: 0.9,
			IsActive:   true,
		})
		if err != nil {
			t.Fatalf("Failed to add photo: %v", err)
		}

		var seen []string
		err = persons.DeleteCascade(ctx, p.ID, func(paths []string) error {
			seen = paths
			return nil
		})
		if err != nil {
			t.Fatalf("Failed to cascade delete: %v", err)
		}
		if len(seen) != 1 || seen[0] != "persons/a.jpg" {
			t.Errorf("Expected the photo path in the callback, got %v", seen)
		}

		got, _ := persons.Get(ctx, p.ID)
		if got != nil {
			t.Error("Person row should be gone")
		}
		gone, _ := photos.Get(ctx, photo.ID)
		if gone != nil {
			t.Error("Photo row should be gone")
		}
	})

	t.Run("DeleteCascadeLogsUnrecoverablePathsOnCommitFailure", func(t *testing.T) {
		p, _ := persons.Create(ctx, "Commit Failure Target")
		_, err := photos.Add(ctx, &database.Photo{
			PersonID:  p.ID,
			Filename:  "c.jpg",
			FilePath:  "persons/c.jpg",
			Embedding: testEmbedding(0),
			IsActive:  true,
		})
		if err != nil {
			t.Fatalf("Failed to add photo: %v", err)
		}

		core, logs := observer.New(zap.ErrorLevel)
		observed := NewPersonRepository(pool, zap.New(core).Sugar())

		// Cancelling the context inside the callback makes the commit
		// fail after the files are already gone.
		cancelCtx, cancel := context.WithCancel(ctx)
		err = observed.DeleteCascade(cancelCtx, p.ID, func(paths []string) error {
			cancel()
			return nil
		})
		if err == nil {
			t.Fatal("Expected the failed commit to surface")
		}

		entries := logs.FilterMessage("person deletion commit failed after file removal").All()
		if len(entries) != 1 {
			t.Fatalf("Expected one unrecoverable-paths log entry, got %d", len(entries))
		}
		paths, _ := entries[0].ContextMap()["unrecoverable_paths"].([]string)
		if len(paths) != 1 || paths[0] != "persons/c.jpg" {
			t.Errorf("Expected the removed path in the log entry, got %v", paths)
		}
	})

	t.Run("DeleteCascadeRollsBackOnFileFailure", func(t *testing.T) {
		p, _ := persons.Create(ctx, "Rollback Target")
		_, err := photos.Add(ctx, &database.Photo{
			PersonID:  p.ID,
			Filename:  "b.jpg",
			FilePath:  "persons/b.jpg",
			Embedding: testEmbedding(0),
			IsActive:  true,
		})
		if err != nil {
			t.Fatalf("Failed to add photo: %v", err)
		}

		err = persons.DeleteCascade(ctx, p.ID, func(paths []string) error {
			return errors.New("disk failure")
		})
		if err == nil {
			t.Fatal("Expected the file failure to surface")
		}

		got, _ := persons.Get(ctx, p.ID)
		if got == nil {
			t.Error("Person row should survive a rolled-back deletion")
		}
	})
}

func TestPhotoRepository(t *testing.T) {
	pool, cleanup := setupTestContainer(t)
	if pool == nil {
		return
	}
	defer cleanup()

	ctx := context.Background()
	persons := NewPersonRepository(pool, logging.NewNop())
	photos := NewPhotoRepository(pool, logging.NewNop())

	person, err := persons.Create(ctx, "Anna")
	if err != nil {
		t.Fatalf("Failed to create person: %v", err)
	}

	t.Run("AddAndGet", func(t *testing.T) {
		photo, err := photos.Add(ctx, &database.Photo{
			PersonID:   person.ID,
			Filename:   "a.jpg",
			FilePath:   "persons/a.jpg",
			Embedding:  testEmbedding(0),
			Confidence: 1.4, // clamped on insert
			IsActive:   true,
		})
		if err != nil {
			t.Fatalf("Failed to add photo: %v", err)
		}
		if photo.Confidence != 1.0 {
			t.Errorf("Expected confidence clamped to 1.0, got %f", photo.Confidence)
		}

		got, err := photos.Get(ctx, photo.ID)
		if err != nil {
			t.Fatalf("Failed to get photo: %v", err)
		}
		if got == nil {
			t.Fatal("Expected photo, got nil")
		}
		if len(got.Embedding) != database.EmbeddingDim {
			t.Errorf("Expected %d dimensions, got %d", database.EmbeddingDim, len(got.Embedding))
		}
	})

	t.Run("AddRejectsWrongDimension", func(t *testing.T) {
		_, err := photos.Add(ctx, &database.Photo{
			PersonID:  person.ID,
			Embedding: make([]float32, 100),
		})
		if !errors.Is(err, errs.ErrInvalidEmbedding) {
			t.Errorf("Expected ErrInvalidEmbedding, got %v", err)
		}
	})

	t.Run("ListActiveCandidates", func(t *testing.T) {
		inactive, err := photos.Add(ctx, &database.Photo{
			PersonID:  person.ID,
			Filename:  "b.jpg",
			FilePath:  "persons/b.jpg",
			Embedding: testEmbedding(1),
			IsActive:  true,
		})
		if err != nil {
			t.Fatalf("Failed to add photo: %v", err)
		}
		if err := photos.Deactivate(ctx, inactive.ID); err != nil {
			t.Fatalf("Failed to deactivate photo: %v", err)
		}

		candidates, err := photos.ListActiveCandidates(ctx)
		if err != nil {
			t.Fatalf("Failed to list candidates: %v", err)
		}
		for _, c := range candidates {
			if c.PhotoID == inactive.ID {
				t.Error("Deactivated photo must not be a candidate")
			}
			if c.PersonName != "Anna" {
				t.Errorf("Expected person name Anna, got %s", c.PersonName)
			}
		}
	})

	t.Run("DeactivateMissing", func(t *testing.T) {
		err := photos.Deactivate(ctx, 99999)
		if !errs.IsKind(err, errs.KindNotFound) {
			t.Errorf("Expected not-found error, got %v", err)
		}
	})

	t.Run("DeleteReturnsPath", func(t *testing.T) {
		photo, err := photos.Add(ctx, &database.Photo{
			PersonID:  person.ID,
			Filename:  "c.jpg",
			FilePath:  "persons/c.jpg",
			Embedding: testEmbedding(2),
			IsActive:  true,
		})
		if err != nil {
			t.Fatalf("Failed to add photo: %v", err)
		}

		path, err := photos.Delete(ctx, photo.ID)
		if err != nil {
			t.Fatalf("Failed to delete photo: %v", err)
		}
		if path != "persons/c.jpg" {
			t.Errorf("Expected persons/c.jpg, got %s", path)
		}

		_, err = photos.Delete(ctx, photo.ID)
		if !errs.IsKind(err, errs.KindNotFound) {
			t.Errorf("Expected not-found error, got %v", err)
		}
	})
}

func TestUserAndSessionRepositories(t *testing.T) {
	pool, cleanup := setupTestContainer(t)
	if pool == nil {
		return
	}
	defer cleanup()

	ctx := context.Background()
	users := NewUserRepository(pool)
	sessions := NewSessionRepository(pool)

	t.Run("CreateAndLookup", func(t *testing.T) {
		u, err := users.Create(ctx, "alice", "hash1", true, true)
		if err != nil {
			t.Fatalf("Failed to create user: %v", err)
		}
		if !u.IsAdmin || !u.IsActive {
			t.Error("Expected an active admin")
		}

		got, err := users.GetByUsername(ctx, "alice")
		if err != nil {
			t.Fatalf("Failed to get user: %v", err)
		}
		if got == nil || got.ID != u.ID {
			t.Errorf("Expected user %d, got %v", u.ID, got)
		}
	})

	t.Run("DuplicateUsername", func(t *testing.T) {
		_, err := users.Create(ctx, "alice", "hash2", false, false)
		if !errs.IsKind(err, errs.KindValidation) {
			t.Errorf("Expected validation error for duplicate username, got %v", err)
		}
	})

	t.Run("ApproveAndDelete", func(t *testing.T) {
		u, _ := users.Create(ctx, "bob", "hash3", false, false)
		if err := users.Approve(ctx, u.ID); err != nil {
			t.Fatalf("Failed to approve user: %v", err)
		}
		got, _ := users.Get(ctx, u.ID)
		if got == nil || !got.IsActive {
			t.Error("User should be active after approval")
		}

		if err := users.Delete(ctx, u.ID); err != nil {
			t.Fatalf("Failed to delete user: %v", err)
		}
		if err := users.Delete(ctx, u.ID); !errs.IsKind(err, errs.KindNotFound) {
			t.Errorf("Expected not-found error, got %v", err)
		}
	})

	t.Run("SessionLifecycle", func(t *testing.T) {
		u, _ := users.GetByUsername(ctx, "alice")
		now := time.Now().UTC()

		err := sessions.Save(ctx, database.StoredSession{
			ID:        "sess-1",
			UserID:    u.ID,
			Username:  u.Username,
			IsAdmin:   true,
			CreatedAt: now,
			ExpiresAt: now.Add(time.Hour),
		})
		if err != nil {
			t.Fatalf("Failed to save session: %v", err)
		}

		got, err := sessions.Get(ctx, "sess-1")
		if err != nil {
			t.Fatalf("Failed to get session: %v", err)
		}
		if got == nil || got.Username != "alice" {
			t.Errorf("Expected session for alice, got %v", got)
		}

		// Expired sessions are invisible and removable.
		_ = sessions.Save(ctx, database.StoredSession{
			ID:        "sess-2",
			UserID:    u.ID,
			Username:  u.Username,
			CreatedAt: now.Add(-2 * time.Hour),
			ExpiresAt: now.Add(-time.Hour),
		})
		gone, _ := sessions.Get(ctx, "sess-2")
		if gone != nil {
			t.Error("Expired session should not be returned")
		}
		removed, err := sessions.DeleteExpired(ctx)
		if err != nil {
			t.Fatalf("Failed to delete expired sessions: %v", err)
		}
		if removed != 1 {
			t.Errorf("Expected 1 removed session, got %d", removed)
		}
	})
}

func TestStatsRepository(t *testing.T) {
	pool, cleanup := setupTestContainer(t)
	if pool == nil {
		return
	}
	defer cleanup()

	ctx := context.Background()
	persons := NewPersonRepository(pool, logging.NewNop())
	photos := NewPhotoRepository(pool, logging.NewNop())
	stats := NewStatsRepository(pool)

	empty, err := stats.SystemStats(ctx)
	if err != nil {
		t.Fatalf("Failed to query stats: %v", err)
	}
	if empty.TotalPersons != 0 || empty.ActivePhotos != 0 {
		t.Errorf("Expected empty stats, got %+v", empty)
	}

	p, _ := persons.Create(ctx, "Anna")
	if _, err := photos.Add(ctx, &database.Photo{
		PersonID: p.ID, Filename: "a.jpg", FilePath: "a.jpg",
		Embedding: testEmbedding(0), Confidence: 0.8, IsActive: true,
	}); err != nil {
		t.Fatalf("Failed to add photo: %v", err)
	}
	hidden, _ := photos.Add(ctx, &database.Photo{
		PersonID: p.ID, Filename: "b.jpg", FilePath: "b.jpg",
		Embedding: testEmbedding(1), Confidence: 0.4, IsActive: true,
	})
	if err := photos.Deactivate(ctx, hidden.ID); err != nil {
		t.Fatalf("Failed to deactivate photo: %v", err)
	}

	got, err := stats.SystemStats(ctx)
	if err != nil {
		t.Fatalf("Failed to query stats: %v", err)
	}
	if got.TotalPersons != 1 {
		t.Errorf("Expected 1 person, got %d", got.TotalPersons)
	}
	if got.ActivePhotos != 1 || got.InactivePhotos != 1 {
		t.Errorf("Expected 1 active and 1 inactive photo, got %+v", got)
	}
	if got.AvgConfidence != 0.8 {
		t.Errorf("Expected average over active photos only (0.8), got %f", got.AvgConfidence)
	}
}
