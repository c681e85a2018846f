package handlers

import (
	"log"
	"net/http"

	"github.com/kozaktomas/photo-indexer/internal/pipeline"
)

// ReindexHandler triggers a batch reindex of the configured photo
// directory. The shared pipeline serializes index writes, so concurrent
// requests queue up instead of clobbering each other.
type ReindexHandler struct {
	pipeline *pipeline.Pipeline
	photoDir string
}

// NewReindexHandler creates a reindex handler.
func NewReindexHandler(p *pipeline.Pipeline, photoDir string) *ReindexHandler {
	return &ReindexHandler{pipeline: p, photoDir: photoDir}
}

// Start handles POST /api/v1/index and runs the batch synchronously,
// returning the completion report.
func (h *ReindexHandler) Start(w http.ResponseWriter, r *http.Request) {
	files, err := pipeline.ListImages(h.photoDir)
	if err != nil {
		log.Printf("reindex: %v", err)
		respondError(w, http.StatusInternalServerError, "failed to read photo directory")
		return
	}

	report, err := h.pipeline.Run(r.Context(), files)
	if err != nil {
		log.Printf("reindex failed: %v", err)
		respondError(w, http.StatusInternalServerError, "reindexing failed")
		return
	}

	log.Printf("reindex batch %s: %d photos, %d faces, %d skipped",
		report.BatchID, report.PhotosProcessed, report.FacesFound, len(report.Skipped))
	respondJSON(w, http.StatusOK, report)
}
