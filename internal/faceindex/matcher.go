package faceindex

import (
	"fmt"
	"sort"
)

// Match is a single query result: the matched record, its distance to the
// query embedding and the derived confidence score.
type Match struct {
	Record     FaceRecord
	Distance   float64
	Confidence float64
}

// Confidence maps a distance to a score in [0, 1]: 1 at distance zero,
// 0 at the threshold boundary. The result is clamped so floating-point
// noise can never push it outside the range.
func Confidence(distance, threshold float64) float64 {
	if threshold <= 0 {
		if distance == 0 {
			return 1
		}
		return 0
	}
	c := 1 - distance/threshold
	if c < 0 {
		return 0
	}
	if c > 1 {
		return 1
	}
	return c
}

// FindMatches scans the index for records within threshold distance of the
// query embedding. The threshold boundary is inclusive. Results are sorted
// by ascending distance; ties keep index insertion order so output is
// deterministic. An empty result is a valid "no match" answer.
//
// The matcher carries no default threshold; choosing one is caller policy.
func FindMatches(query []float64, idx Index, threshold float64) ([]Match, error) {
	if threshold < 0 {
		return nil, fmt.Errorf("match threshold must be non-negative, got %v", threshold)
	}

	matches := make([]Match, 0)
	for _, rec := range idx {
		d, err := Distance(query, rec.Embedding)
		if err != nil {
			return nil, err
		}
		if d > threshold {
			continue
		}
		matches = append(matches, Match{
			Record:     rec,
			Distance:   d,
			Confidence: Confidence(d, threshold),
		})
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Distance < matches[j].Distance
	})
	return matches, nil
}
