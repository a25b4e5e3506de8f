// Package handlers implements the JSON API endpoints.
package handlers

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"faceid/internal/errs"
)

// errInvalidRequestBody is a shared error message for invalid JSON request bodies.
const errInvalidRequestBody = "invalid request body"

// sanitizeForLog removes newlines and carriage returns to prevent log injection.
func sanitizeForLog(s string) string {
	return strings.NewReplacer("\n", "", "\r", "").Replace(s)
}

// respondJSON sends a JSON response.
func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// respondError sends a plain error response with the kind implied by the
// status, so the envelope's kind and status stay consistent.
func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{
		"error":      message,
		"error_type": string(kindForStatus(status)),
	})
}

func kindForStatus(status int) errs.Kind {
	switch {
	case status == http.StatusNotFound:
		return errs.KindNotFound
	case status == http.StatusUnprocessableEntity:
		return errs.KindDetection
	case status >= http.StatusInternalServerError:
		return errs.KindStorage
	default:
		return errs.KindValidation
	}
}

// respondDomainError maps an error kind to an HTTP status and sends the
// shared error body.
func respondDomainError(w http.ResponseWriter, err error) {
	kind := errs.KindOf(err)
	respondJSON(w, statusForKind(kind), map[string]string{
		"error":      err.Error(),
		"error_type": string(kind),
	})
}

func statusForKind(kind errs.Kind) int {
	switch kind {
	case errs.KindValidation:
		return http.StatusBadRequest
	case errs.KindNotFound:
		return http.StatusNotFound
	case errs.KindDetection:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// idParam parses a positive int64 URL parameter.
func idParam(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		return 0, errs.Validation("invalid %s", name)
	}
	return id, nil
}

// readUpload extracts the uploaded file bytes from a multipart form.
func readUpload(r *http.Request, field string, maxSize int64) ([]byte, string, error) {
	if err := r.ParseMultipartForm(maxSize); err != nil {
		return nil, "", errs.Validation("invalid multipart form")
	}
	file, header, err := r.FormFile(field)
	if err != nil {
		return nil, "", errs.Validation("missing %q file field", field)
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, "", errs.Storage(err, "failed to read upload")
	}
	return data, header.Filename, nil
}

// HealthCheck handles the health check endpoint.
func HealthCheck(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
	})
}
