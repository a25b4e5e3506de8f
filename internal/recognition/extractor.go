package recognition

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"os"
	"strings"

	"go.uber.org/zap"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"

	"faceid/internal/errs"
)

const (
	defaultExtractorURL = "http://localhost:8000"

	// minImageEdge is the smallest usable image dimension; the detection
	// model cannot find faces below this.
	minImageEdge = 50
)

// Extraction is the outcome of running face detection on one image.
type Extraction struct {
	Embedding  []float32
	Confidence float64
	FacesFound int
}

// Extractor produces a face embedding from an image on disk.
type Extractor interface {
	Extract(ctx context.Context, imagePath string) (*Extraction, error)
}

// HTTPExtractor calls the external face detection sidecar over HTTP.
type HTTPExtractor struct {
	baseURL string
	client  *http.Client
	log     *zap.SugaredLogger
}

// NewHTTPExtractor creates an extractor client for the given base URL.
func NewHTTPExtractor(baseURL string, log *zap.SugaredLogger) *HTTPExtractor {
	if baseURL == "" {
		baseURL = defaultExtractorURL
	}
	return &HTTPExtractor{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client:  &http.Client{},
		log:     log,
	}
}

// faceDetection is one detected face in the sidecar response.
type faceDetection struct {
	FaceIndex int       `json:"face_index"`
	Dim       int       `json:"dim"`
	Embedding []float32 `json:"embedding"`
	DetScore  float64   `json:"det_score"`
}

// faceResponse is the sidecar response for a face extraction request.
type faceResponse struct {
	FacesCount int             `json:"faces_count"`
	Faces      []faceDetection `json:"faces"`
	Model      string          `json:"model"`
}

// Extract reads the image, validates it is large enough for detection,
// and asks the sidecar for face embeddings. A multi-face image proceeds
// with the first detected face and logs a warning.
func (e *HTTPExtractor) Extract(ctx context.Context, imagePath string) (*Extraction, error) {
	data, err := os.ReadFile(imagePath)
	if err != nil {
		return nil, errs.Detection("image file not found or unreadable")
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, errs.Detection("cannot decode image")
	}
	if cfg.Width < minImageEdge || cfg.Height < minImageEdge {
		return nil, errs.Detection("image too small, minimum %dx%d pixels", minImageEdge, minImageEdge)
	}

	body, err := e.postMultipartImage(ctx, "/faces", data)
	if err != nil {
		return nil, err
	}

	var resp faceResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, errs.Storage(err, "invalid extractor response")
	}

	if len(resp.Faces) == 0 {
		return nil, errs.Detection("no face found in image")
	}
	if len(resp.Faces) > 1 {
		e.log.Warnw("multiple faces detected, using the first one",
			"image_path", imagePath,
			"faces_count", len(resp.Faces))
	}

	// First detected face, not the highest-scoring one.
	face := resp.Faces[0]
	if len(face.Embedding) == 0 {
		return nil, errs.Detection("extractor returned an empty embedding")
	}

	return &Extraction{
		Embedding:  face.Embedding,
		Confidence: ClampUnit(face.DetScore),
		FacesFound: len(resp.Faces),
	}, nil
}

// postMultipartImage posts the image as a multipart form to the given
// endpoint with an explicit Content-Type based on magic byte detection.
func (e *HTTPExtractor) postMultipartImage(ctx context.Context, endpoint string, imageData []byte) ([]byte, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="file"; filename="image.jpg"`)
	h.Set("Content-Type", detectMIMEType(imageData))
	part, err := writer.CreatePart(h)
	if err != nil {
		return nil, errs.Storage(err, "failed to create form file")
	}

	if _, err := part.Write(imageData); err != nil {
		return nil, errs.Storage(err, "failed to write image data")
	}
	if err := writer.Close(); err != nil {
		return nil, errs.Storage(err, "failed to close multipart writer")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+endpoint, &buf)
	if err != nil {
		return nil, errs.Storage(err, "failed to create request")
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, errs.Storage(err, "extractor request failed")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errs.Storage(err, "failed to read extractor response")
	}

	if resp.StatusCode != http.StatusOK {
		if resp.StatusCode >= 400 && resp.StatusCode < 500 {
			return nil, errs.Detection("face detection rejected the image (status %d)", resp.StatusCode)
		}
		return nil, errs.Storage(fmt.Errorf("status %d: %s", resp.StatusCode, string(body)), "extractor error")
	}

	return body, nil
}

// detectMIMEType detects the MIME type from image data.
func detectMIMEType(data []byte) string {
	if len(data) < 8 {
		return "application/octet-stream"
	}
	// JPEG: FF D8 FF
	if data[0] == 0xFF && data[1] == 0xD8 && data[2] == 0xFF {
		return "image/jpeg"
	}
	// PNG: 89 50 4E 47
	if data[0] == 0x89 && data[1] == 0x50 && data[2] == 0x4E && data[3] == 0x47 {
		return "image/png"
	}
	// WebP: RIFF....WEBP
	if len(data) >= 12 && data[0] == 0x52 && data[1] == 0x49 && data[2] == 0x46 && data[3] == 0x46 &&
		data[8] == 0x57 && data[9] == 0x45 && data[10] == 0x42 && data[11] == 0x50 {
		return "image/webp"
	}
	return "application/octet-stream"
}
