package handlers

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/kozaktomas/photo-indexer/internal/config"
	"github.com/kozaktomas/photo-indexer/internal/detector"
	"github.com/kozaktomas/photo-indexer/internal/faceindex"
	"github.com/kozaktomas/photo-indexer/internal/store"
)

type fakeLoader struct {
	idx faceindex.Index
	err error
}

func (f *fakeLoader) Load() (faceindex.Index, error) { return f.idx, f.err }

type fakeProvider struct {
	faces []detector.Face
	err   error
}

func (f *fakeProvider) DetectFaces(_ context.Context, _ []byte) ([]detector.Face, error) {
	return f.faces, f.err
}

type fakeResolver struct{}

func (fakeResolver) ResolveURL(_ context.Context, key string) string {
	return "http://minio:9000/photos/" + key
}

func testConfig() *config.Config {
	cfg := config.Load()
	return cfg
}

func testLoader() *fakeLoader {
	return &fakeLoader{idx: faceindex.Index{
		{PhotoID: "a.jpg", FaceID: "a.jpg_face0", Embedding: []float64{1, 0, 0}, BoundingBox: []float64{10, 90, 80, 20}},
		{PhotoID: "b.jpg", FaceID: "b.jpg_face0", Embedding: []float64{0, 1, 0}, BoundingBox: []float64{5, 60, 50, 15}},
	}}
}

func postMatches(t *testing.T, h *MatchesHandler, body any) *httptest.ResponseRecorder {
	t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshaling request: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, "/api/v1/matches", bytes.NewReader(data))
	rec := httptest.NewRecorder()
	h.Find(rec, req)
	return rec
}

func TestFindWithEmbedding(t *testing.T) {
	h := NewMatchesHandler(testConfig(), testLoader(), &fakeProvider{}, fakeResolver{})

	rec := postMatches(t, h, map[string]any{"embedding": []float64{1, 0, 0}})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	var resp matchesResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if len(resp.Matches) != 1 {
		t.Fatalf("expected 1 match, got %d", len(resp.Matches))
	}
	m := resp.Matches[0]
	if m.FaceID != "a.jpg_face0" {
		t.Errorf("matched %q, want a.jpg_face0", m.FaceID)
	}
	if m.Confidence != 1.0 {
		t.Errorf("confidence = %v, want 1.0", m.Confidence)
	}
	if m.PhotoURL != "http://minio:9000/photos/a.jpg" {
		t.Errorf("photoUrl = %q", m.PhotoURL)
	}
	if resp.Summary.TotalMatches != 1 || resp.Summary.FacesConsidered != 2 {
		t.Errorf("summary = %+v", resp.Summary)
	}
	if resp.Summary.HighConfidenceMatches != 1 {
		t.Errorf("highConfidenceMatches = %d, want 1", resp.Summary.HighConfidenceMatches)
	}
	if resp.Summary.Threshold != 0.5 {
		t.Errorf("threshold = %v, want API default 0.5", resp.Summary.Threshold)
	}
}

func TestFindWithImage(t *testing.T) {
	provider := &fakeProvider{faces: []detector.Face{
		{Embedding: []float64{0, 1, 0}, BoundingBox: []float64{1, 2, 3, 4}},
	}}
	h := NewMatchesHandler(testConfig(), testLoader(), provider, fakeResolver{})

	image := base64.StdEncoding.EncodeToString([]byte("selfie bytes"))
	rec := postMatches(t, h, map[string]any{"image": image})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	var resp matchesResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if len(resp.Matches) != 1 || resp.Matches[0].FaceID != "b.jpg_face0" {
		t.Errorf("matches = %+v, want b.jpg_face0", resp.Matches)
	}
}

func TestFindThresholdOverride(t *testing.T) {
	h := NewMatchesHandler(testConfig(), testLoader(), &fakeProvider{}, fakeResolver{})

	// Zero threshold only keeps exact matches.
	rec := postMatches(t, h, map[string]any{"embedding": []float64{1, 0, 0}, "threshold": 0.0})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp matchesResponse
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if len(resp.Matches) != 1 || resp.Summary.Threshold != 0 {
		t.Errorf("matches = %d, threshold = %v", len(resp.Matches), resp.Summary.Threshold)
	}
}

func TestFindNegativeThreshold(t *testing.T) {
	h := NewMatchesHandler(testConfig(), testLoader(), &fakeProvider{}, fakeResolver{})

	rec := postMatches(t, h, map[string]any{"embedding": []float64{1, 0, 0}, "threshold": -1.0})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestFindDimensionMismatch(t *testing.T) {
	h := NewMatchesHandler(testConfig(), testLoader(), &fakeProvider{}, fakeResolver{})

	rec := postMatches(t, h, map[string]any{"embedding": []float64{1, 0}})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestFindInvalidBase64(t *testing.T) {
	h := NewMatchesHandler(testConfig(), testLoader(), &fakeProvider{}, fakeResolver{})

	rec := postMatches(t, h, map[string]any{"image": "%%% not base64 %%%"})
	if rec.Code != http.StatusUnsupportedMediaType {
		t.Errorf("status = %d, want 415", rec.Code)
	}
}

func TestFindNoFaceInImage(t *testing.T) {
	h := NewMatchesHandler(testConfig(), testLoader(), &fakeProvider{faces: []detector.Face{}}, fakeResolver{})

	image := base64.StdEncoding.EncodeToString([]byte("no faces here"))
	rec := postMatches(t, h, map[string]any{"image": image})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestFindUnreadableImage(t *testing.T) {
	provider := &fakeProvider{err: &detector.DetectionError{Reason: "unreadable image", Unreadable: true}}
	h := NewMatchesHandler(testConfig(), testLoader(), provider, fakeResolver{})

	image := base64.StdEncoding.EncodeToString([]byte("garbage"))
	rec := postMatches(t, h, map[string]any{"image": image})
	if rec.Code != http.StatusUnsupportedMediaType {
		t.Errorf("status = %d, want 415", rec.Code)
	}
}

func TestFindProviderFailure(t *testing.T) {
	provider := &fakeProvider{err: &detector.DetectionError{Reason: "embedding service request"}}
	h := NewMatchesHandler(testConfig(), testLoader(), provider, fakeResolver{})

	image := base64.StdEncoding.EncodeToString([]byte("selfie bytes"))
	rec := postMatches(t, h, map[string]any{"image": image})
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
}

func TestFindCorruptIndex(t *testing.T) {
	loader := &fakeLoader{err: &store.CorruptError{Path: "indexed_data.json"}}
	h := NewMatchesHandler(testConfig(), loader, &fakeProvider{}, fakeResolver{})

	rec := postMatches(t, h, map[string]any{"embedding": []float64{1, 0, 0}})
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
}

func TestFindMissingImageAndEmbedding(t *testing.T) {
	h := NewMatchesHandler(testConfig(), testLoader(), &fakeProvider{}, fakeResolver{})

	rec := postMatches(t, h, map[string]any{})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestHealthCheck(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	rec := httptest.NewRecorder()
	HealthCheck(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if body["status"] != "ok" {
		t.Errorf("status field = %q, want ok", body["status"])
	}
}
