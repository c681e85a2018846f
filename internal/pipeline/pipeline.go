// Package pipeline orchestrates batch photo indexing: upload to the blob
// store, face detection, and merging the detected faces into the
// persisted index. Detection itself lives behind detector.Provider.
package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/kozaktomas/photo-indexer/internal/blob"
	"github.com/kozaktomas/photo-indexer/internal/detector"
	"github.com/kozaktomas/photo-indexer/internal/faceindex"
)

const defaultWorkers = 4

// Uploader stores a photo and returns its stable photo ID.
// blob.Store satisfies it.
type Uploader interface {
	Upload(ctx context.Context, key string, data []byte) (string, error)
}

// IndexStore loads and saves the persisted index. store.Store satisfies it.
type IndexStore interface {
	Load() (faceindex.Index, error)
	Save(faceindex.Index) error
}

// Skip records one image that was left out of the batch and why.
type Skip struct {
	File   string `json:"file"`
	Reason string `json:"reason"`
	Err    error  `json:"-"`
}

// Report summarizes a completed batch.
type Report struct {
	BatchID         string        `json:"batchId"`
	PhotosProcessed int           `json:"photosProcessed"`
	FacesFound      int           `json:"facesFound"`
	Skipped         []Skip        `json:"skipped"`
	IndexedTotal    int           `json:"indexedTotal"`
	Duration        time.Duration `json:"-"`
}

// Pipeline indexes batches of photos. Per-image work runs on a bounded
// worker pool; the index itself is written once, after the pool drains.
// A single Pipeline serializes its saves, so the CLI and the web reindex
// endpoint can share one instance.
type Pipeline struct {
	Detector detector.Provider
	Uploader Uploader
	Store    IndexStore

	// Workers bounds per-image concurrency; 0 means defaultWorkers.
	Workers int

	// Rebuild discards the existing index instead of merging into it.
	Rebuild bool

	// OnImage, when set, is called after each image finishes (in any
	// order). Used by the CLI for progress reporting.
	OnImage func(file string, faces int, err error)

	saveMu sync.Mutex
}

// imageResult holds one image's outcome, keyed by batch position so the
// final index order is the input order regardless of worker scheduling.
type imageResult struct {
	records []faceindex.FaceRecord
	skip    *Skip
}

// Run indexes the given image files and persists the merged index.
// A single image's failure is recorded in the report, never aborts the
// batch. The returned error covers batch-level failures only (index load
// or save).
func (p *Pipeline) Run(ctx context.Context, files []string) (*Report, error) {
	start := time.Now()

	existing := faceindex.Index{}
	if !p.Rebuild {
		idx, err := p.Store.Load()
		if err != nil {
			return nil, fmt.Errorf("loading existing index: %w", err)
		}
		existing = idx
	}

	workers := p.Workers
	if workers <= 0 {
		workers = defaultWorkers
	}

	results := make([]imageResult, len(files))
	jobs := make(chan int)
	var wg sync.WaitGroup

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				results[i] = p.processImage(ctx, files[i])
			}
		}()
	}

	for i := range files {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	report := &Report{
		BatchID: uuid.NewString(),
		Skipped: []Skip{},
	}
	var records []faceindex.FaceRecord
	for _, res := range results {
		if res.skip != nil {
			report.Skipped = append(report.Skipped, *res.skip)
			continue
		}
		report.PhotosProcessed++
		report.FacesFound += len(res.records)
		records = append(records, res.records...)
	}

	merged := existing.Merge(records)
	p.saveMu.Lock()
	err := p.Store.Save(merged)
	p.saveMu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("saving index: %w", err)
	}

	report.IndexedTotal = len(merged)
	report.Duration = time.Since(start)
	return report, nil
}

// processImage uploads one photo and detects its faces. Every failure
// path returns a skip record instead of an error.
func (p *Pipeline) processImage(ctx context.Context, file string) imageResult {
	skip := func(reason string, err error) imageResult {
		if p.OnImage != nil {
			p.OnImage(file, 0, err)
		}
		return imageResult{skip: &Skip{File: file, Reason: reason, Err: err}}
	}

	if err := ctx.Err(); err != nil {
		return skip("canceled", err)
	}

	data, err := os.ReadFile(file)
	if err != nil {
		return skip("read", err)
	}

	key := blob.ObjectKey(filepath.Base(file))
	photoID, err := p.Uploader.Upload(ctx, key, data)
	if err != nil {
		return skip("upload", err)
	}

	faces, err := p.Detector.DetectFaces(ctx, data)
	if err != nil {
		return skip("detection", err)
	}

	records := make([]faceindex.FaceRecord, 0, len(faces))
	for i, face := range faces {
		records = append(records, faceindex.FaceRecord{
			PhotoID:     photoID,
			FaceID:      faceindex.FaceID(photoID, i),
			Embedding:   face.Embedding,
			BoundingBox: face.BoundingBox,
		})
	}

	if p.OnImage != nil {
		p.OnImage(file, len(records), nil)
	}
	return imageResult{records: records}
}

// ListImages returns the supported image files in dir, sorted by name.
func ListImages(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading photo directory %s: %w", dir, err)
	}

	var files []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(entry.Name())) {
		case ".jpg", ".jpeg", ".png":
			files = append(files, filepath.Join(dir, entry.Name()))
		}
	}
	return files, nil
}
