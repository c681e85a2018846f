package handlers

import (
	"context"
	"encoding/base64"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/kozaktomas/photo-indexer/internal/config"
	"github.com/kozaktomas/photo-indexer/internal/detector"
	"github.com/kozaktomas/photo-indexer/internal/faceindex"
	"github.com/kozaktomas/photo-indexer/internal/store"
)

// IndexLoader provides a fresh snapshot of the persisted index.
// store.Store satisfies it.
type IndexLoader interface {
	Load() (faceindex.Index, error)
}

// URLResolver turns a photo ID into a dereferenceable URL.
// blob.Store satisfies it.
type URLResolver interface {
	ResolveURL(ctx context.Context, key string) string
}

// MatchesHandler answers similarity queries against the face index.
type MatchesHandler struct {
	cfg      *config.Config
	index    IndexLoader
	detector detector.Provider
	resolver URLResolver
}

// NewMatchesHandler creates a matches handler.
func NewMatchesHandler(cfg *config.Config, index IndexLoader, provider detector.Provider, resolver URLResolver) *MatchesHandler {
	return &MatchesHandler{cfg: cfg, index: index, detector: provider, resolver: resolver}
}

// matchesRequest carries either a base64 reference image or a raw query
// embedding, plus an optional threshold override.
type matchesRequest struct {
	Image     string    `json:"image,omitempty"`
	Embedding []float64 `json:"embedding,omitempty"`
	Threshold *float64  `json:"threshold,omitempty"`
}

type matchResult struct {
	PhotoURL    string    `json:"photoUrl"`
	Photo       string    `json:"photo"`
	FaceID      string    `json:"faceId"`
	BoundingBox []float64 `json:"boundingBox"`
	Distance    float64   `json:"distance"`
	Confidence  float64   `json:"confidence"`
}

type matchesSummary struct {
	TotalMatches          int     `json:"totalMatches"`
	HighConfidenceMatches int     `json:"highConfidenceMatches"`
	FacesConsidered       int     `json:"facesConsidered"`
	Threshold             float64 `json:"threshold"`
	ProcessingMs          int64   `json:"processingMs"`
}

type matchesResponse struct {
	Matches []matchResult  `json:"matches"`
	Summary matchesSummary `json:"summary"`
}

// Find handles POST /api/v1/matches. The query is matched against a
// freshly loaded index snapshot so concurrent reindexing is picked up.
func (h *MatchesHandler) Find(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var req matchesRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}

	threshold := h.cfg.Thresholds.API
	if req.Threshold != nil {
		if *req.Threshold < 0 {
			respondError(w, http.StatusBadRequest, "threshold must be non-negative")
			return
		}
		threshold = *req.Threshold
	}

	query, status, errMsg := h.queryEmbedding(r.Context(), &req)
	if errMsg != "" {
		respondError(w, status, errMsg)
		return
	}

	idx, err := h.index.Load()
	if err != nil {
		var corrupt *store.CorruptError
		if errors.As(err, &corrupt) {
			log.Printf("refusing to serve matches from corrupt index: %v", corrupt)
			respondError(w, http.StatusInternalServerError, "face index is corrupt, reindex required")
			return
		}
		respondError(w, http.StatusInternalServerError, "failed to load face index")
		return
	}

	matches, err := faceindex.FindMatches(query, idx, threshold)
	if err != nil {
		var mismatch *faceindex.DimensionMismatchError
		if errors.As(err, &mismatch) {
			respondError(w, http.StatusBadRequest, mismatch.Error())
			return
		}
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	results := make([]matchResult, 0, len(matches))
	highConfidence := 0
	for _, m := range matches {
		if m.Confidence >= h.cfg.Thresholds.HighConfidence {
			highConfidence++
		}
		results = append(results, matchResult{
			PhotoURL:    h.resolver.ResolveURL(r.Context(), m.Record.PhotoID),
			Photo:       m.Record.PhotoID,
			FaceID:      m.Record.FaceID,
			BoundingBox: m.Record.BoundingBox,
			Distance:    m.Distance,
			Confidence:  m.Confidence,
		})
	}

	respondJSON(w, http.StatusOK, matchesResponse{
		Matches: results,
		Summary: matchesSummary{
			TotalMatches:          len(results),
			HighConfidenceMatches: highConfidence,
			FacesConsidered:       len(idx),
			Threshold:             threshold,
			ProcessingMs:          time.Since(start).Milliseconds(),
		},
	})
}

// queryEmbedding resolves the query embedding from the request: either
// the raw embedding, or the first face detected in the base64 image.
// Returns (embedding, 0, "") on success or (nil, status, message) on error.
func (h *MatchesHandler) queryEmbedding(ctx context.Context, req *matchesRequest) ([]float64, int, string) {
	if len(req.Embedding) > 0 {
		return req.Embedding, 0, ""
	}
	if req.Image == "" {
		return nil, http.StatusBadRequest, "request must carry an image or an embedding"
	}

	imageData, err := decodeBase64Image(req.Image)
	if err != nil {
		return nil, http.StatusUnsupportedMediaType, "invalid image encoding"
	}

	faces, err := h.detector.DetectFaces(ctx, imageData)
	if err != nil {
		var detErr *detector.DetectionError
		if errors.As(err, &detErr) && detErr.Unreadable {
			return nil, http.StatusUnsupportedMediaType, detErr.Error()
		}
		log.Printf("face detection failed: %v", err)
		return nil, http.StatusInternalServerError, "face detection failed"
	}
	if len(faces) == 0 {
		return nil, http.StatusBadRequest, "no face detected in the reference image"
	}
	// Multiple faces: the first (most prominent) one is the query.
	return faces[0].Embedding, 0, ""
}

// decodeBase64Image decodes a base64 image, tolerating a data URL prefix.
func decodeBase64Image(s string) ([]byte, error) {
	if strings.HasPrefix(s, "data:image") {
		if _, rest, ok := strings.Cut(s, ","); ok {
			s = rest
		}
	}
	return base64.StdEncoding.DecodeString(s)
}
