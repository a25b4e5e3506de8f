package handlers

import (
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"faceid/internal/errs"
	"faceid/internal/files"
	"faceid/internal/recognition"
)

// IdentifyHandler handles the face identification endpoint.
type IdentifyHandler struct {
	identifier    *recognition.Identifier
	files         *files.Store
	maxUploadSize int64
	log           *zap.SugaredLogger
}

// NewIdentifyHandler creates a new identify handler.
func NewIdentifyHandler(identifier *recognition.Identifier, fileStore *files.Store, maxUploadSize int64, log *zap.SugaredLogger) *IdentifyHandler {
	return &IdentifyHandler{
		identifier:    identifier,
		files:         fileStore,
		maxUploadSize: maxUploadSize,
		log:           log,
	}
}

// parseOptions reads the optional identification form fields. They arrive
// in the same multipart form as the image.
func parseOptions(r *http.Request) (recognition.Options, error) {
	var opts recognition.Options

	if v := r.FormValue("threshold"); v != "" {
		t, err := strconv.ParseFloat(v, 64)
		if err != nil || t < 0 || t > 1 {
			return opts, errs.Validation("threshold must be a number between 0 and 1")
		}
		opts.Threshold = &t
	}
	if v := r.FormValue("person_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil || id <= 0 {
			return opts, errs.Validation("invalid person_id")
		}
		opts.PersonID = &id
	}
	if v := r.FormValue("create_if_missing"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return opts, errs.Validation("invalid create_if_missing")
		}
		opts.CreateIfMissing = b
	}
	return opts, nil
}

// Identify runs face identification on an uploaded image. The image is
// staged in the temp area; the identification workflow owns its cleanup.
func (h *IdentifyHandler) Identify(w http.ResponseWriter, r *http.Request) {
	data, filename, err := readUpload(r, "file", h.maxUploadSize)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	opts, err := parseOptions(r)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	tempRel, err := h.files.SaveTemp(data, filename)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	result, err := h.identifier.Identify(r.Context(), tempRel, opts)
	if err != nil {
		// A failure after a successful match still carries the
		// identification outcome; report both.
		if result != nil {
			h.log.Errorw("identification persisted partially", "error", err)
			respondJSON(w, http.StatusInternalServerError, map[string]any{
				"result":     result,
				"error":      err.Error(),
				"error_type": string(errs.KindOf(err)),
			})
			return
		}
		respondDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, result)
}
