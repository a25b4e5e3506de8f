// Package people manages the person and photo lifecycle: validated
// creation and renaming, atomic cascade deletion, soft deactivation, and
// per-person statistics.
package people

import (
	"context"

	"go.uber.org/zap"

	"faceid/internal/database"
	"faceid/internal/errs"
	"faceid/internal/files"
	"faceid/internal/recognition"
)

// PersonWithPhotos is a person together with their active photos.
type PersonWithPhotos struct {
	database.Person
	Photos []database.Photo
}

// Service coordinates person and photo mutations across the database and
// the file store.
type Service struct {
	persons   database.PersonStore
	photos    database.PhotoStore
	files     *files.Store
	extractor recognition.Extractor
	log       *zap.SugaredLogger
}

// NewService wires a lifecycle service.
func NewService(
	persons database.PersonStore,
	photos database.PhotoStore,
	fileStore *files.Store,
	extractor recognition.Extractor,
	log *zap.SugaredLogger,
) *Service {
	return &Service{
		persons:   persons,
		photos:    photos,
		files:     fileStore,
		extractor: extractor,
		log:       log,
	}
}

// CreatePerson validates the name and inserts a new person.
func (s *Service) CreatePerson(ctx context.Context, name string) (*database.Person, error) {
	name, err := ValidateName(name)
	if err != nil {
		return nil, err
	}

	person, err := s.persons.Create(ctx, name)
	if err != nil {
		return nil, err
	}
	s.log.Infow("person created", "person_id", person.ID, "name", name)
	return person, nil
}

// GetPerson returns a person or a not-found error.
func (s *Service) GetPerson(ctx context.Context, id int64) (*database.Person, error) {
	person, err := s.persons.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if person == nil {
		return nil, errs.NotFound("person %d not found", id)
	}
	return person, nil
}

// GetPersonWithPhotos returns a person and their active photos.
func (s *Service) GetPersonWithPhotos(ctx context.Context, id int64) (*PersonWithPhotos, error) {
	person, err := s.GetPerson(ctx, id)
	if err != nil {
		return nil, err
	}

	photos, err := s.photos.ListByPerson(ctx, id, true)
	if err != nil {
		return nil, err
	}
	return &PersonWithPhotos{Person: *person, Photos: photos}, nil
}

// ListPersons lists persons newest first. Limit is clamped into 1..100;
// the name filter is diacritics-insensitive.
func (s *Service) ListPersons(ctx context.Context, limit, offset int, name string) ([]database.Person, error) {
	if limit < 1 {
		limit = 1
	}
	if limit > 100 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	return s.persons.List(ctx, database.ListPersonsQuery{Limit: limit, Offset: offset, Name: name})
}

// RenamePerson validates and applies a new name.
func (s *Service) RenamePerson(ctx context.Context, id int64, name string) (*database.Person, error) {
	name, err := ValidateName(name)
	if err != nil {
		return nil, err
	}

	person, err := s.persons.Rename(ctx, id, name)
	if err != nil {
		return nil, err
	}
	s.log.Infow("person renamed", "person_id", id, "new_name", name)
	return person, nil
}

// DeletePerson removes the person, all owned photo rows, and their
// backing files in one atomic operation. If any file removal fails, no
// database row is removed; files already unlinked before the failure are
// logged as unrecoverable by the file store.
func (s *Service) DeletePerson(ctx context.Context, id int64) error {
	err := s.persons.DeleteCascade(ctx, id, s.files.RemoveBatch)
	if err != nil {
		return err
	}

	s.files.RemovePersonDir(id)
	s.log.Infow("person deleted", "person_id", id)
	return nil
}

// AddPhoto saves the uploaded image for a person, extracts its embedding
// and persists the photo row. The saved file is removed again when
// extraction or persistence fails.
func (s *Service) AddPhoto(ctx context.Context, personID int64, originalName string, data []byte) (*database.Photo, error) {
	if _, err := s.GetPerson(ctx, personID); err != nil {
		return nil, err
	}

	rel, filename, err := s.files.SavePersonPhoto(data, originalName, personID)
	if err != nil {
		return nil, err
	}

	extraction, err := s.extractor.Extract(ctx, s.files.AbsPath(rel))
	if err != nil {
		s.files.Delete(rel)
		return nil, err
	}

	photo, err := s.photos.Add(ctx, &database.Photo{
		PersonID:   personID,
		Filename:   filename,
		FilePath:   rel,
		Embedding:  extraction.Embedding,
		Confidence: extraction.Confidence,
		IsActive:   true,
	})
	if err != nil {
		s.files.Delete(rel)
		return nil, err
	}

	s.log.Infow("photo added",
		"person_id", personID,
		"photo_id", photo.ID,
		"confidence", photo.Confidence)
	return photo, nil
}

// DeletePhoto hard-deletes a photo row and its backing file. The file
// removal is idempotent; a missing file is not an error.
func (s *Service) DeletePhoto(ctx context.Context, id int64) error {
	path, err := s.photos.Delete(ctx, id)
	if err != nil {
		return err
	}

	s.files.Delete(path)
	s.log.Infow("photo deleted", "photo_id", id)
	return nil
}

// DeactivatePhoto soft-deletes a photo: it stays stored but no longer
// participates in identification or statistics.
func (s *Service) DeactivatePhoto(ctx context.Context, id int64) error {
	if err := s.photos.Deactivate(ctx, id); err != nil {
		return err
	}
	s.log.Infow("photo deactivated", "photo_id", id)
	return nil
}

// Stats aggregates photo statistics for a person. Totals cover all
// photos; confidence, last date and preview cover active photos only.
func (s *Service) Stats(ctx context.Context, personID int64) (*database.PersonStats, error) {
	if _, err := s.GetPerson(ctx, personID); err != nil {
		return nil, err
	}

	photos, err := s.photos.ListByPerson(ctx, personID, false)
	if err != nil {
		return nil, err
	}

	stats := &database.PersonStats{TotalPhotos: len(photos)}
	var confidenceSum float64
	var earliest *database.Photo
	for i := range photos {
		p := &photos[i]
		if !p.IsActive {
			continue
		}

		stats.ActivePhotos++
		confidenceSum += p.Confidence
		if stats.LastPhotoDate == nil || p.CreatedAt.After(*stats.LastPhotoDate) {
			created := p.CreatedAt
			stats.LastPhotoDate = &created
		}
		if earliest == nil || p.CreatedAt.Before(earliest.CreatedAt) {
			earliest = p
		}
	}

	if stats.ActivePhotos > 0 {
		stats.AvgConfidence = confidenceSum / float64(stats.ActivePhotos)
	}
	// Earliest active photo serves as the preview.
	if earliest != nil {
		stats.PreviewPhoto = earliest.FilePath
	}
	return stats, nil
}
