// Package faceindex implements the face embedding index and the similarity
// matcher. The index is a flat, ordered list of face records; lookups are
// exhaustive scans by design, so the matching contract (ordering, threshold
// inclusivity, confidence mapping) stays trivial to reason about.
package faceindex

import "fmt"

// FaceRecord is one detected face in an indexed photo. The JSON field names
// match the persisted index document format.
type FaceRecord struct {
	PhotoID     string    `json:"photo"`
	FaceID      string    `json:"face_id"`
	Embedding   []float64 `json:"embedding"`
	BoundingBox []float64 `json:"bounding_box"` // [top, right, bottom, left] in source pixels
}

// Index is an ordered sequence of face records. Insertion order is
// preserved across save/load so backups stay reproducible.
type Index []FaceRecord

// FaceID derives the face identifier for the nth detected face of a photo.
// Ordinals follow the detection order reported by the embedding provider.
func FaceID(photoID string, ordinal int) string {
	return fmt.Sprintf("%s_face%d", photoID, ordinal)
}

// PhotoIDs returns the distinct photo IDs in index order.
func (idx Index) PhotoIDs() []string {
	seen := make(map[string]struct{}, len(idx))
	var ids []string
	for _, rec := range idx {
		if _, ok := seen[rec.PhotoID]; ok {
			continue
		}
		seen[rec.PhotoID] = struct{}{}
		ids = append(ids, rec.PhotoID)
	}
	return ids
}

// Merge combines the index with freshly indexed records. Photos present in
// records replace their previous entries wholesale, so re-indexing an
// unchanged photo is idempotent and never duplicates face IDs. Records for
// photos not being re-indexed keep their original order.
func (idx Index) Merge(records []FaceRecord) Index {
	reindexed := make(map[string]struct{})
	for _, rec := range records {
		reindexed[rec.PhotoID] = struct{}{}
	}

	merged := make(Index, 0, len(idx)+len(records))
	for _, rec := range idx {
		if _, ok := reindexed[rec.PhotoID]; ok {
			continue
		}
		merged = append(merged, rec)
	}
	return append(merged, records...)
}
