package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"faceid/internal/config"
	"faceid/internal/database"
	"faceid/internal/files"
	"faceid/internal/logging"
	"faceid/internal/recognition"
)

// stubExtractor returns canned extraction results.
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

// testEmbedding returns a unit vector along the given axis.
func testEmbedding(axis int) []float32 {
	v := make([]float32, database.EmbeddingDim)
	v[axis] = 1
	return v
}

// pngBytes encodes a small valid PNG image.
func pngBytes(t *testing.T, width, height int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for x := 0; x < width; x++ {
		for y := 0; y < height; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x % 256), G: uint8(y % 256), B: 128, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("failed to encode test image: %v", err)
	}
	return buf.Bytes()
}

// newTestFileStore creates a file store over a temp directory.
func newTestFileStore(t *testing.T) *files.Store {
	t.Helper()
	store, err := files.NewStore(config.UploadConfig{
		Path:              t.TempDir(),
		MaxSizeBytes:      10 * 1024 * 1024,
		AllowedExtensions: []string{"jpg", "jpeg", "png"},
		MinImageEdge:      50,
		MaxImageEdge:      8192,
	}, logging.NewNop())
	if err != nil {
		t.Fatalf("failed to create file store: %v", err)
	}
	return store
}

// requestWithChiParams builds a request carrying chi URL parameters.
func requestWithChiParams(r *http.Request, params map[string]string) *http.Request {
	rctx := chi.NewRouteContext()
	for k, v := range params {
		rctx.URLParams.Add(k, v)
	}
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// multipartUpload builds a multipart body with one file field and
// optional extra form fields.
func multipartUpload(t *testing.T, field, filename string, data []byte, extra map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile(field, filename)
	if err != nil {
		t.Fatalf("failed to create form file: %v", err)
	}
	if _, err := part.Write(data); err != nil {
		t.Fatalf("failed to write form file: %v", err)
	}
	for k, v := range extra {
		if err := writer.WriteField(k, v); err != nil {
			t.Fatalf("failed to write form field: %v", err)
		}
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("failed to close multipart writer: %v", err)
	}
	return &buf, writer.FormDataContentType()
}

// decodeJSON unmarshals a recorded response body into a generic map.
func decodeJSON(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("response is not valid JSON: %v\nbody: %s", err, w.Body.String())
	}
	return body
}

func jsonRequest(t *testing.T, method, target string, payload any) *http.Request {
	t.Helper()
	data, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("failed to marshal request body: %v", err)
	}
	r := httptest.NewRequest(method, target, bytes.NewReader(data))
	r.Header.Set("Content-Type", "application/json")
	return r
}
