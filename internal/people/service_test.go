package people

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"math"
	"os"
	"testing"
	"time"

	"faceid/internal/config"
	"faceid/internal/database"
	"faceid/internal/database/mock"
	"faceid/internal/errs"
	"faceid/internal/files"
	"faceid/internal/logging"
	"faceid/internal/recognition"
)

type stubExtractor struct {
	extraction *recognition.Extraction
	err        error
}

func (s *stubExtractor) Extract(ctx context.Context, imagePath string) (*recognition.Extraction, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.extraction, nil
}

func testEmbedding() []float32 {
	v := make([]float32, database.EmbeddingDim)
	v[0] = 1
	return v
}

func pngBytes(t *testing.T, width, height int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.White)
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("failed to encode png: %v", err)
	}
	return buf.Bytes()
}

func newTestService(t *testing.T) (*Service, *mock.MockStore, *files.Store) {
	t.Helper()
	store := mock.NewMockStore()
	fileStore, err := files.NewStore(config.UploadConfig{
		Path:              t.TempDir(),
		MaxSizeBytes:      10 << 20,
		AllowedExtensions: []string{"jpg", "jpeg", "png"},
		MinImageEdge:      50,
		MaxImageEdge:      4000,
	}, logging.NewNop())
	if err != nil {
		t.Fatalf("failed to create file store: %v", err)
	}

	extractor := &stubExtractor{
		extraction: &recognition.Extraction{Embedding: testEmbedding(), Confidence: 0.9, FacesFound: 1},
	}
	svc := NewService(store.Persons(), store.Photos(), fileStore, extractor, logging.NewNop())
	return svc, store, fileStore
}

func TestCreatePerson(t *testing.T) {
	svc, _, _ := newTestService(t)

	person, err := svc.CreatePerson(context.Background(), "  Jan Novák  ")
	if err != nil {
		t.Fatalf("CreatePerson failed: %v", err)
	}
	if person.Name != "Jan Novák" {
		t.Errorf("name = %q; want trimmed %q", person.Name, "Jan Novák")
	}
	if person.ID == 0 {
		t.Error("person should get an ID")
	}
}

func TestCreatePersonInvalidName(t *testing.T) {
	svc, _, _ := newTestService(t)

	_, err := svc.CreatePerson(context.Background(), "<script>")
	if !errs.IsKind(err, errs.KindValidation) {
		t.Errorf("expected validation error, got %v", err)
	}
}

func TestGetPersonNotFound(t *testing.T) {
	svc, _, _ := newTestService(t)

	_, err := svc.GetPerson(context.Background(), 99)
	if !errs.IsKind(err, errs.KindNotFound) {
		t.Errorf("expected not-found error, got %v", err)
	}
}

func TestGetPersonWithPhotos(t *testing.T) {
	svc, store, _ := newTestService(t)
	store.AddPerson(database.Person{ID: 1, Name: "Anna"})
	store.InsertPhoto(database.Photo{ID: 10, PersonID: 1, Embedding: testEmbedding(), IsActive: true})
	store.InsertPhoto(database.Photo{ID: 11, PersonID: 1, Embedding: testEmbedding(), IsActive: false})

	result, err := svc.GetPersonWithPhotos(context.Background(), 1)
	if err != nil {
		t.Fatalf("GetPersonWithPhotos failed: %v", err)
	}
	if result.Name != "Anna" {
		t.Errorf("name = %q; want Anna", result.Name)
	}
	if len(result.Photos) != 1 {
		t.Errorf("photo count = %d; want 1 active photo", len(result.Photos))
	}
}

func TestListPersonsFilter(t *testing.T) {
	svc, store, _ := newTestService(t)
	store.AddPerson(database.Person{ID: 1, Name: "Jan Novák"})
	store.AddPerson(database.Person{ID: 2, Name: "Anna"})

	persons, err := svc.ListPersons(context.Background(), 10, 0, "novak")
	if err != nil {
		t.Fatalf("ListPersons failed: %v", err)
	}
	if len(persons) != 1 || persons[0].ID != 1 {
		t.Errorf("diacritics-insensitive filter should find Jan Novák, got %v", persons)
	}
}

func TestListPersonsClampsLimit(t *testing.T) {
	svc, store, _ := newTestService(t)
	for i := int64(1); i <= 5; i++ {
		store.AddPerson(database.Person{ID: i, Name: "Person"})
	}

	persons, err := svc.ListPersons(context.Background(), 0, 0, "")
	if err != nil {
		t.Fatalf("ListPersons failed: %v", err)
	}
	if len(persons) != 1 {
		t.Errorf("limit 0 should clamp to 1, got %d persons", len(persons))
	}

	persons, err = svc.ListPersons(context.Background(), 2, 0, "")
	if err != nil {
		t.Fatalf("ListPersons failed: %v", err)
	}
	// Newest first means highest IDs first.
	if len(persons) != 2 || persons[0].ID != 5 || persons[1].ID != 4 {
		t.Errorf("expected persons 5 and 4, got %v", persons)
	}
}

func TestRenamePerson(t *testing.T) {
	svc, store, _ := newTestService(t)
	store.AddPerson(database.Person{ID: 1, Name: "Unknown 20260829-120000"})

	person, err := svc.RenamePerson(context.Background(), 1, "Petr Svoboda")
	if err != nil {
		t.Fatalf("RenamePerson failed: %v", err)
	}
	if person.Name != "Petr Svoboda" {
		t.Errorf("name = %q; want Petr Svoboda", person.Name)
	}

	if _, err := svc.RenamePerson(context.Background(), 1, "!"); !errs.IsKind(err, errs.KindValidation) {
		t.Errorf("expected validation error, got %v", err)
	}
	if _, err := svc.RenamePerson(context.Background(), 99, "Valid Name"); !errs.IsKind(err, errs.KindNotFound) {
		t.Errorf("expected not-found error, got %v", err)
	}
}

func TestDeletePersonCascade(t *testing.T) {
	svc, store, fileStore := newTestService(t)
	store.AddPerson(database.Person{ID: 1, Name: "Anna"})

	rel, _, err := fileStore.SavePersonPhoto(pngBytes(t, 60, 60), "a.png", 1)
	if err != nil {
		t.Fatalf("SavePersonPhoto failed: %v", err)
	}
	store.InsertPhoto(database.Photo{ID: 10, PersonID: 1, FilePath: rel, Embedding: testEmbedding(), IsActive: true})

	if err := svc.DeletePerson(context.Background(), 1); err != nil {
		t.Fatalf("DeletePerson failed: %v", err)
	}

	person, _ := store.Persons().Get(context.Background(), 1)
	if person != nil {
		t.Error("person row should be gone")
	}
	photo, _ := store.Photos().Get(context.Background(), 10)
	if photo != nil {
		t.Error("photo row should be gone")
	}
	if _, err := os.Stat(fileStore.AbsPath(rel)); !os.IsNotExist(err) {
		t.Error("photo file should be gone")
	}
}

func TestDeletePersonNotFound(t *testing.T) {
	svc, _, _ := newTestService(t)

	if err := svc.DeletePerson(context.Background(), 99); !errs.IsKind(err, errs.KindNotFound) {
		t.Errorf("expected not-found error, got %v", err)
	}
}

func TestAddPhoto(t *testing.T) {
	svc, store, fileStore := newTestService(t)
	store.AddPerson(database.Person{ID: 1, Name: "Anna"})

	photo, err := svc.AddPhoto(context.Background(), 1, "portrait.png", pngBytes(t, 60, 60))
	if err != nil {
		t.Fatalf("AddPhoto failed: %v", err)
	}
	if photo.PersonID != 1 {
		t.Errorf("person ID = %d; want 1", photo.PersonID)
	}
	if !photo.IsActive {
		t.Error("a new photo should be active")
	}
	if len(photo.Embedding) != database.EmbeddingDim {
		t.Errorf("embedding length = %d; want %d", len(photo.Embedding), database.EmbeddingDim)
	}
	if _, err := os.Stat(fileStore.AbsPath(photo.FilePath)); err != nil {
		t.Errorf("photo file should exist: %v", err)
	}
}

func TestAddPhotoExtractionFailureRemovesFile(t *testing.T) {
	store := mock.NewMockStore()
	store.AddPerson(database.Person{ID: 1, Name: "Anna"})
	fileStore, err := files.NewStore(config.UploadConfig{
		Path:              t.TempDir(),
		MaxSizeBytes:      10 << 20,
		AllowedExtensions: []string{"png"},
		MinImageEdge:      50,
		MaxImageEdge:      4000,
	}, logging.NewNop())
	if err != nil {
		t.Fatalf("failed to create file store: %v", err)
	}

	extractor := &stubExtractor{err: errs.Detection("no face found in image")}
	svc := NewService(store.Persons(), store.Photos(), fileStore, extractor, logging.NewNop())

	_, err = svc.AddPhoto(context.Background(), 1, "portrait.png", pngBytes(t, 60, 60))
	if !errs.IsKind(err, errs.KindDetection) {
		t.Fatalf("expected detection error, got %v", err)
	}

	entries, readErr := os.ReadDir(fileStore.AbsPath("persons/1"))
	if readErr == nil && len(entries) != 0 {
		t.Errorf("person directory should be empty after failed extraction, found %d entries", len(entries))
	}
}

func TestAddPhotoUnknownPerson(t *testing.T) {
	svc, _, _ := newTestService(t)

	_, err := svc.AddPhoto(context.Background(), 42, "portrait.png", pngBytes(t, 60, 60))
	if !errs.IsKind(err, errs.KindNotFound) {
		t.Errorf("expected not-found error, got %v", err)
	}
}

func TestDeletePhoto(t *testing.T) {
	svc, store, fileStore := newTestService(t)
	store.AddPerson(database.Person{ID: 1, Name: "Anna"})

	rel, _, err := fileStore.SavePersonPhoto(pngBytes(t, 60, 60), "a.png", 1)
	if err != nil {
		t.Fatalf("SavePersonPhoto failed: %v", err)
	}
	store.InsertPhoto(database.Photo{ID: 10, PersonID: 1, FilePath: rel, Embedding: testEmbedding(), IsActive: true})

	if err := svc.DeletePhoto(context.Background(), 10); err != nil {
		t.Fatalf("DeletePhoto failed: %v", err)
	}
	photo, _ := store.Photos().Get(context.Background(), 10)
	if photo != nil {
		t.Error("photo row should be gone")
	}
	if _, err := os.Stat(fileStore.AbsPath(rel)); !os.IsNotExist(err) {
		t.Error("photo file should be gone")
	}

	if err := svc.DeletePhoto(context.Background(), 10); !errs.IsKind(err, errs.KindNotFound) {
		t.Errorf("expected not-found error for the second delete, got %v", err)
	}
}

func TestDeactivatePhoto(t *testing.T) {
	svc, store, _ := newTestService(t)
	store.AddPerson(database.Person{ID: 1, Name: "Anna"})
	store.InsertPhoto(database.Photo{ID: 10, PersonID: 1, Embedding: testEmbedding(), IsActive: true})

	if err := svc.DeactivatePhoto(context.Background(), 10); err != nil {
		t.Fatalf("DeactivatePhoto failed: %v", err)
	}
	candidates, _ := store.Photos().ListActiveCandidates(context.Background())
	if len(candidates) != 0 {
		t.Error("a deactivated photo must not appear among candidates")
	}

	// Deactivating again is a no-op.
	if err := svc.DeactivatePhoto(context.Background(), 10); err != nil {
		t.Errorf("second deactivation should succeed: %v", err)
	}

	if err := svc.DeactivatePhoto(context.Background(), 99); !errs.IsKind(err, errs.KindNotFound) {
		t.Errorf("expected not-found error, got %v", err)
	}
}

func TestStats(t *testing.T) {
	svc, store, _ := newTestService(t)
	store.AddPerson(database.Person{ID: 1, Name: "Anna"})

	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	store.InsertPhoto(database.Photo{
		ID: 10, PersonID: 1, FilePath: "persons/1/first.png",
		Embedding: testEmbedding(), Confidence: 0.8, IsActive: true,
		CreatedAt: base,
	})
	store.InsertPhoto(database.Photo{
		ID: 11, PersonID: 1, FilePath: "persons/1/second.png",
		Embedding: testEmbedding(), Confidence: 0.6, IsActive: true,
		CreatedAt: base.Add(24 * time.Hour),
	})
	store.InsertPhoto(database.Photo{
		ID: 12, PersonID: 1, FilePath: "persons/1/hidden.png",
		Embedding: testEmbedding(), Confidence: 0.1, IsActive: false,
		CreatedAt: base.Add(48 * time.Hour),
	})

	stats, err := svc.Stats(context.Background(), 1)
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if stats.TotalPhotos != 3 {
		t.Errorf("total photos = %d; want 3", stats.TotalPhotos)
	}
	if stats.ActivePhotos != 2 {
		t.Errorf("active photos = %d; want 2", stats.ActivePhotos)
	}
	if math.Abs(stats.AvgConfidence-0.7) > 1e-9 {
		t.Errorf("avg confidence = %f; want 0.7 over active photos only", stats.AvgConfidence)
	}
	if stats.LastPhotoDate == nil || !stats.LastPhotoDate.Equal(base.Add(24*time.Hour)) {
		t.Errorf("last photo date = %v; want the newest active photo", stats.LastPhotoDate)
	}
	if stats.PreviewPhoto != "persons/1/first.png" {
		t.Errorf("preview = %q; want the earliest active photo", stats.PreviewPhoto)
	}
}

func TestStatsNoActivePhotos(t *testing.T) {
	svc, store, _ := newTestService(t)
	store.AddPerson(database.Person{ID: 1, Name: "Anna"})
	store.InsertPhoto(database.Photo{ID: 10, PersonID: 1, Embedding: testEmbedding(), Confidence: 0.9, IsActive: false})

	stats, err := svc.Stats(context.Background(), 1)
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if stats.TotalPhotos != 1 || stats.ActivePhotos != 0 {
		t.Errorf("counts = %d/%d; want 1 total, 0 active", stats.TotalPhotos, stats.ActivePhotos)
	}
	if stats.AvgConfidence != 0 {
		t.Errorf("avg confidence = %f; want 0 with no active photos", stats.AvgConfidence)
	}
	if stats.LastPhotoDate != nil {
		t.Error("last photo date should be nil with no active photos")
	}
	if stats.PreviewPhoto != "" {
		t.Error("preview should be empty with no active photos")
	}
}
