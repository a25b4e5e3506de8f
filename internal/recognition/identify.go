package recognition

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"faceid/internal/database"
	"faceid/internal/errs"
	"faceid/internal/files"
)

// Result is what an identification hands back to the caller. Confidence
// and similarity are clamped into [0, 1]; person fields are set only when
// IsMatch is true.
type Result struct {
	PersonID   *int64  `json:"person_id,omitempty"`
	PersonName string  `json:"person_name,omitempty"`
	Confidence float64 `json:"confidence"`
	Similarity float64 `json:"similarity"`
	IsMatch    bool    `json:"is_match"`
	PhotoID    *int64  `json:"photo_id,omitempty"`
}

// Options tune a single identification request.
type Options struct {
	// Threshold overrides the configured similarity threshold.
	Threshold *float64
	// PersonID attaches the photo to an existing person when no match is
	// found, without claiming a match.
	PersonID *int64
	// CreateIfMissing creates a new person when no match is found and no
	// PersonID is given.
	CreateIfMissing bool
}

// duplicateSimilarity is the gate above which a matched photo counts as
// an exact duplicate of the stored one. Cosine similarity of a vector
// with itself rounds to just under 1.0 for most dense embeddings, so the
// gate leaves room for that rounding.
const duplicateSimilarity = 1.0 - 1e-9

// Identifier runs the identification workflow: extract an embedding from
// the submitted image, scan the active candidates for the best match, and
// decide whether and where to persist the new photo.
type Identifier struct {
	persons   database.PersonStore
	photos    database.PhotoStore
	files     *files.Store
	extractor Extractor
	threshold float64
	log       *zap.SugaredLogger
}

// NewIdentifier wires the identification workflow.
func NewIdentifier(
	persons database.PersonStore,
	photos database.PhotoStore,
	fileStore *files.Store,
	extractor Extractor,
	threshold float64,
	log *zap.SugaredLogger,
) *Identifier {
	return &Identifier{
		persons:   persons,
		photos:    photos,
		files:     fileStore,
		extractor: extractor,
		threshold: threshold,
		log:       log,
	}
}

// Identify processes one identification request. tempRel is the relative
// path of the uploaded image in the temp area; it is removed on every
// exit path (a persisted image is moved out of the temp area first).
//
// When persistence fails after a successful match, both the result and
// the error are returned so the caller sees the identification outcome
// alongside the storage failure.
func (s *Identifier) Identify(ctx context.Context, tempRel string, opts Options) (*Result, error) {
	defer s.files.Delete(tempRel)

	threshold := s.threshold
	if opts.Threshold != nil {
		threshold = *opts.Threshold
	}

	extraction, err := s.extractor.Extract(ctx, s.files.AbsPath(tempRel))
	if err != nil {
		return nil, err
	}
	s.log.Infow("face embedding extracted",
		"confidence", extraction.Confidence,
		"embedding_size", len(extraction.Embedding))

	candidates, err := s.photos.ListActiveCandidates(ctx)
	if err != nil {
		return nil, err
	}

	var match *Match
	var matched *database.Candidate
	if len(candidates) == 0 {
		s.log.Infow("no active embeddings stored, skipping match")
	} else {
		match = FindBestMatch(extraction.Embedding, candidates, threshold, s.log)
		if match != nil {
			for i := range candidates {
				if candidates[i].PhotoID == match.PhotoID {
					matched = &candidates[i]
					break
				}
			}
		}
	}

	result := &Result{
		Confidence: ClampUnit(extraction.Confidence),
		Similarity: 0,
		IsMatch:    false,
	}

	var targetPerson int64
	switch {
	case matched != nil:
		result.PersonID = &matched.PersonID
		result.PersonName = matched.PersonName
		result.Similarity = ClampUnit(match.Similarity)
		result.IsMatch = true
		photoID := matched.PhotoID
		result.PhotoID = &photoID
		targetPerson = matched.PersonID
		s.log.Infow("person identified",
			"person_id", matched.PersonID,
			"person_name", matched.PersonName,
			"photo_id", matched.PhotoID,
			"similarity", match.Similarity,
			"threshold", threshold)

	case opts.PersonID != nil:
		person, err := s.persons.Get(ctx, *opts.PersonID)
		if err != nil {
			return nil, err
		}
		if person == nil {
			return nil, errs.NotFound("person %d not found", *opts.PersonID)
		}
		targetPerson = person.ID

	case opts.CreateIfMissing:
		person, err := s.persons.Create(ctx, placeholderName())
		if err != nil {
			return nil, err
		}
		targetPerson = person.ID
		// A freshly created identity is reported as a confident match
		// against itself.
		result.PersonID = &person.ID
		result.PersonName = person.Name
		result.Similarity = 1.0
		result.IsMatch = true
		s.log.Infow("created new person for unmatched face", "person_id", person.ID)

	default:
		s.log.Infow("no match found above threshold", "threshold", threshold)
		return result, nil
	}

	// An exact duplicate of an already matched photo is not stored again.
	if matched != nil && match.Similarity >= duplicateSimilarity {
		s.log.Infow("exact duplicate of stored photo, skipping persistence",
			"photo_id", matched.PhotoID)
		return result, nil
	}

	newRel, filename, err := s.files.Promote(tempRel, targetPerson)
	if err != nil {
		return result, err
	}

	photo, err := s.photos.Add(ctx, &database.Photo{
		PersonID:   targetPerson,
		Filename:   filename,
		FilePath:   newRel,
		Embedding:  extraction.Embedding,
		Confidence: extraction.Confidence,
		IsActive:   true,
	})
	if err != nil {
		s.files.Delete(newRel)
		return result, err
	}

	if result.PhotoID == nil {
		photoID := photo.ID
		result.PhotoID = &photoID
	}
	s.log.Infow("photo persisted", "photo_id", photo.ID, "person_id", targetPerson)
	return result, nil
}

// placeholderName names a person created during identification. The name
// passes person-name validation so the record can be renamed normally.
func placeholderName() string {
	return fmt.Sprintf("Unknown %s", time.Now().Format("20060102-150405"))
}
