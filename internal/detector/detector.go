// Package detector consumes the external face embedding service. The
// service detects faces in an image and returns one fixed-length embedding
// plus a bounding box per face; this package never reimplements detection.
package detector

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
)

const (
	defaultServiceURL = "http://localhost:8000"

	// maxImageSize is the longest edge sent to the service; larger inputs
	// are downscaled client-side before upload.
	maxImageSize = 1920
)

// Face is one detected face: its embedding and bounding box in source
// image pixel coordinates, ordered (top, right, bottom, left).
type Face struct {
	Embedding   []float64
	BoundingBox []float64
	Score       float64
}

// Provider detects faces in an image. Implementations return an empty
// slice (not an error) when the image contains no face, and a
// DetectionError when the image is unreadable or the provider fails.
type Provider interface {
	DetectFaces(ctx context.Context, imageData []byte) ([]Face, error)
}

// DetectionError reports an unreadable image or a provider failure.
// Unreadable marks an input image that could not be decoded, as opposed
// to the embedding service itself failing; callers translate the two
// into different responses.
type DetectionError struct {
	Reason     string
	Unreadable bool
	Err        error
}

func (e *DetectionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("face detection failed: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("face detection failed: %s", e.Reason)
}

func (e *DetectionError) Unwrap() error { return e.Err }

// Client talks to the face embedding service over HTTP.
type Client struct {
	baseURL string
	dim     int
	client  *http.Client
}

// NewClient creates a detector client for the service at baseURL. When
// dim is positive, embeddings of any other length are rejected before
// they reach the index.
func NewClient(baseURL string, dim int) *Client {
	if baseURL == "" {
		baseURL = defaultServiceURL
	}
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		dim:     dim,
		client:  &http.Client{},
	}
}

// faceDetection mirrors one face in the service response. The service
// reports bbox as [x1, y1, x2, y2].
type faceDetection struct {
	FaceIndex int       `json:"face_index"`
	Dim       int       `json:"dim"`
	Embedding []float64 `json:"embedding"`
	BBox      []float64 `json:"bbox"`
	DetScore  float64   `json:"det_score"`
}

// faceResponse is the service response for a face detection request.
type faceResponse struct {
	FacesCount int             `json:"faces_count"`
	Faces      []faceDetection `json:"faces"`
	Model      string          `json:"model"`
}

// DetectFaces posts the image to the service and returns the detected
// faces in the order the service reports them. Face ordinals derived from
// that order are only as stable as the service's ordering.
func (c *Client) DetectFaces(ctx context.Context, imageData []byte) ([]Face, error) {
	resized, err := ResizeImage(imageData, maxImageSize)
	if err != nil {
		return nil, &DetectionError{Reason: "unreadable image", Unreadable: true, Err: err}
	}

	body, err := c.postMultipartImage(ctx, "/embed/face", resized)
	if err != nil {
		return nil, &DetectionError{Reason: "embedding service request", Err: err}
	}

	var resp faceResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, &DetectionError{Reason: "parsing service response", Err: err}
	}

	faces := make([]Face, 0, len(resp.Faces))
	for _, f := range resp.Faces {
		if len(f.BBox) != 4 {
			return nil, &DetectionError{Reason: fmt.Sprintf("face %d has malformed bbox", f.FaceIndex)}
		}
		if c.dim > 0 && len(f.Embedding) != c.dim {
			return nil, &DetectionError{
				Reason: fmt.Sprintf("face %d has %d-dim embedding, want %d", f.FaceIndex, len(f.Embedding), c.dim),
			}
		}
		faces = append(faces, Face{
			Embedding:   f.Embedding,
			BoundingBox: cornersToEdges(f.BBox),
			Score:       f.DetScore,
		})
	}
	return faces, nil
}

// cornersToEdges converts a [x1, y1, x2, y2] corner bbox to the
// (top, right, bottom, left) edge order used by the index.
func cornersToEdges(bbox []float64) []float64 {
	return []float64{bbox[1], bbox[2], bbox[3], bbox[0]}
}

// postMultipartImage posts the image as a multipart form to the given
// endpoint with an explicit Content-Type from magic byte detection.
func (c *Client) postMultipartImage(ctx context.Context, endpoint string, imageData []byte) ([]byte, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="file"; filename="image.jpg"`)
	h.Set("Content-Type", detectMIMEType(imageData))
	part, err := writer.CreatePart(h)
	if err != nil {
		return nil, fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := part.Write(imageData); err != nil {
		return nil, fmt.Errorf("failed to write image data: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, &buf)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(body))
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
	// PNG: 89 50 4E 47 0D 0A 1A 0A
	if data[0] == 0x89 && data[1] == 0x50 && data[2] == 0x4E && data[3] == 0x47 {
		return "image/png"
	}
	// GIF: 47 49 46 38
	if data[0] == 0x47 && data[1] == 0x49 && data[2] == 0x46 && data[3] == 0x38 {
		return "image/gif"
	}
	// WebP: 52 49 46 46 ... 57 45 42 50
	if len(data) >= 12 && data[0] == 0x52 && data[1] == 0x49 && data[2] == 0x46 && data[3] == 0x46 &&
		data[8] == 0x57 && data[9] == 0x45 && data[10] == 0x42 && data[11] == 0x50 {
		return "image/webp"
	}
	return "application/octet-stream"
}
