package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"faceid/internal/database"
	"faceid/internal/people"
)

// PersonsHandler handles person CRUD and photo management endpoints.
type PersonsHandler struct {
	service       *people.Service
	maxUploadSize int64
	log           *zap.SugaredLogger
}

// NewPersonsHandler creates a new persons handler.
func NewPersonsHandler(service *people.Service, maxUploadSize int64, log *zap.SugaredLogger) *PersonsHandler {
	return &PersonsHandler{
		service:       service,
		maxUploadSize: maxUploadSize,
		log:           log,
	}
}

// personView is the API representation of a person.
type personView struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

// photoView is the API representation of a photo. Embeddings never leave
// the server.
type photoView struct {
	ID         int64   `json:"id"`
	PersonID   int64   `json:"person_id"`
	Filename   string  `json:"filename"`
	FilePath   string  `json:"file_path"`
	Confidence float64 `json:"confidence"`
	IsActive   bool    `json:"is_active"`
	CreatedAt  string  `json:"created_at"`
}

const timeLayout = "2006-01-02T15:04:05Z"

func toPersonView(p *database.Person) personView {
	return personView{
		ID:        p.ID,
		Name:      p.Name,
		CreatedAt: p.CreatedAt.UTC().Format(timeLayout),
		UpdatedAt: p.UpdatedAt.UTC().Format(timeLayout),
	}
}

func toPhotoView(p *database.Photo) photoView {
	return photoView{
		ID:         p.ID,
		PersonID:   p.PersonID,
		Filename:   p.Filename,
		FilePath:   p.FilePath,
		Confidence: p.Confidence,
		IsActive:   p.IsActive,
		CreatedAt:  p.CreatedAt.UTC().Format(timeLayout),
	}
}

type personNameRequest struct {
	Name string `json:"name"`
}

// List returns persons, newest first. Supports limit, offset and name
// query parameters; the name filter is diacritics-insensitive.
func (h *PersonsHandler) List(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit == 0 {
		limit = 50
	}
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	name := r.URL.Query().Get("name")

	persons, err := h.service.ListPersons(r.Context(), limit, offset, name)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	views := make([]personView, 0, len(persons))
	for i := range persons {
		views = append(views, toPersonView(&persons[i]))
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"persons": views,
		"count":   len(views),
	})
}

// Create adds a new person.
func (h *PersonsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req personNameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}

	person, err := h.service.CreatePerson(r.Context(), req.Name)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, toPersonView(person))
}

// Get returns a person together with their active photos.
func (h *PersonsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		respondDomainError(w, err)
		return
	}

	person, err := h.service.GetPersonWithPhotos(r.Context(), id)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	photos := make([]photoView, 0, len(person.Photos))
	for i := range person.Photos {
		photos = append(photos, toPhotoView(&person.Photos[i]))
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"person": toPersonView(&person.Person),
		"photos": photos,
	})
}

// Update renames a person.
func (h *PersonsHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		respondDomainError(w, err)
		return
	}

	var req personNameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}

	person, err := h.service.RenamePerson(r.Context(), id, req.Name)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, toPersonView(person))
}

// Delete removes a person with all their photos and files.
func (h *PersonsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		respondDomainError(w, err)
		return
	}
	if err := h.service.DeletePerson(r.Context(), id); err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// Stats returns photo statistics for a person.
func (h *PersonsHandler) Stats(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		respondDomainError(w, err)
		return
	}

	stats, err := h.service.Stats(r.Context(), id)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, stats)
}

// UploadPhoto attaches an uploaded image to a person.
func (h *PersonsHandler) UploadPhoto(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		respondDomainError(w, err)
		return
	}

	data, filename, err := readUpload(r, "file", h.maxUploadSize)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	photo, err := h.service.AddPhoto(r.Context(), id, filename, data)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, toPhotoView(photo))
}

// DeactivatePhoto soft-deletes a photo.
func (h *PersonsHandler) DeactivatePhoto(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		respondDomainError(w, err)
		return
	}
	if err := h.service.DeactivatePhoto(r.Context(), id); err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// DeletePhoto hard-deletes a photo row and its backing file.
func (h *PersonsHandler) DeletePhoto(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		respondDomainError(w, err)
		return
	}
	if err := h.service.DeletePhoto(r.Context(), id); err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]bool{"success": true})
}
