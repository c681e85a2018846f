package faceindex

import (
	"errors"
	"math"
	"testing"
)

// embed128 builds a 128-dim embedding with the given leading values,
// zero-padded like real face encodings in tests.
func embed128(leading ...float64) []float64 {
	e := make([]float64, 128)
	copy(e, leading)
	return e
}

func testIndex() Index {
	return Index{
		{PhotoID: "a.jpg", FaceID: "a.jpg_face0", Embedding: embed128(1), BoundingBox: []float64{10, 90, 80, 20}},
		{PhotoID: "b.jpg", FaceID: "b.jpg_face0", Embedding: embed128(0, 1), BoundingBox: []float64{5, 60, 50, 15}},
	}
}

func TestFindMatchesExactMatch(t *testing.T) {
	matches, err := FindMatches(embed128(1), testIndex(), 0.6)
	if err != nil {
		t.Fatalf("FindMatches returned error: %v", err)
	}

	if len(matches) != 1 {
		t.Fatalf("expected exactly 1 match, got %d", len(matches))
	}
	if matches[0].Record.FaceID != "a.jpg_face0" {
		t.Errorf("matched %q, want a.jpg_face0", matches[0].Record.FaceID)
	}
	if matches[0].Distance != 0 {
		t.Errorf("distance = %v, want 0", matches[0].Distance)
	}
	if matches[0].Confidence != 1.0 {
		t.Errorf("confidence = %v, want 1.0", matches[0].Confidence)
	}
}

func TestFindMatchesThresholdBoundaryInclusive(t *testing.T) {
	idx := Index{
		{PhotoID: "a.jpg", FaceID: "a.jpg_face0", Embedding: []float64{0, 0}},
	}
	// Query at distance exactly 0.5.
	matches, err := FindMatches([]float64{0.5, 0}, idx, 0.5)
	if err != nil {
		t.Fatalf("FindMatches returned error: %v", err)
	}

	if len(matches) != 1 {
		t.Fatalf("boundary distance must be included, got %d matches", len(matches))
	}
	if matches[0].Confidence != 0 {
		t.Errorf("confidence at threshold = %v, want 0", matches[0].Confidence)
	}
}

func TestFindMatchesNoMatch(t *testing.T) {
	matches, err := FindMatches(embed128(0, 0, 5), testIndex(), 0.6)
	if err != nil {
		t.Fatalf("FindMatches returned error: %v", err)
	}
	if len(matches) != 0 {
		t.Errorf("expected empty result, got %d matches", len(matches))
	}
}

func TestFindMatchesOrdering(t *testing.T) {
	idx := Index{
		{PhotoID: "far.jpg", FaceID: "far.jpg_face0", Embedding: []float64{0.4, 0}},
		{PhotoID: "near.jpg", FaceID: "near.jpg_face0", Embedding: []float64{0.1, 0}},
		{PhotoID: "mid.jpg", FaceID: "mid.jpg_face0", Embedding: []float64{0.2, 0}},
	}

	matches, err := FindMatches([]float64{0, 0}, idx, 1.0)
	if err != nil {
		t.Fatalf("FindMatches returned error: %v", err)
	}
	if len(matches) != 3 {
		t.Fatalf("expected 3 matches, got %d", len(matches))
	}

	wantOrder := []string{"near.jpg_face0", "mid.jpg_face0", "far.jpg_face0"}
	for i, want := range wantOrder {
		if matches[i].Record.FaceID != want {
			t.Errorf("matches[%d] = %q, want %q", i, matches[i].Record.FaceID, want)
		}
	}

	for i := 1; i < len(matches); i++ {
		if matches[i].Distance < matches[i-1].Distance {
			t.Errorf("distances not non-decreasing at %d: %v < %v", i, matches[i].Distance, matches[i-1].Distance)
		}
		if matches[i].Confidence > matches[i-1].Confidence {
			t.Errorf("confidence not non-increasing at %d", i)
		}
	}
}

func TestFindMatchesStableTieBreak(t *testing.T) {
	// Two records at identical distance; insertion order must win.
	idx := Index{
		{PhotoID: "first.jpg", FaceID: "first.jpg_face0", Embedding: []float64{0.3, 0}},
		{PhotoID: "second.jpg", FaceID: "second.jpg_face0", Embedding: []float64{-0.3, 0}},
	}

	matches, err := FindMatches([]float64{0, 0}, idx, 1.0)
	if err != nil {
		t.Fatalf("FindMatches returned error: %v", err)
	}
	if len(matches) != 2 {
		t.Fatalf("expected 2 matches, got %d", len(matches))
	}
	if matches[0].Record.FaceID != "first.jpg_face0" || matches[1].Record.FaceID != "second.jpg_face0" {
		t.Errorf("tie not broken by insertion order: %q, %q",
			matches[0].Record.FaceID, matches[1].Record.FaceID)
	}
}

func TestFindMatchesNeverExceedsThreshold(t *testing.T) {
	idx := Index{
		{PhotoID: "a.jpg", FaceID: "a.jpg_face0", Embedding: []float64{0.1, 0}},
		{PhotoID: "b.jpg", FaceID: "b.jpg_face0", Embedding: []float64{0.5, 0}},
		{PhotoID: "c.jpg", FaceID: "c.jpg_face0", Embedding: []float64{0.9, 0}},
		{PhotoID: "d.jpg", FaceID: "d.jpg_face0", Embedding: []float64{2.5, 0}},
	}

	for _, threshold := range []float64{0, 0.1, 0.4, 0.6, 1.0, 3.0} {
		matches, err := FindMatches([]float64{0, 0}, idx, threshold)
		if err != nil {
			t.Fatalf("FindMatches(threshold=%v) returned error: %v", threshold, err)
		}
		for _, m := range matches {
			if m.Distance > threshold {
				t.Errorf("threshold %v returned distance %v", threshold, m.Distance)
			}
			if m.Confidence < 0 || m.Confidence > 1 {
				t.Errorf("confidence %v outside [0,1]", m.Confidence)
			}
		}
	}
}

func TestFindMatchesDimensionMismatch(t *testing.T) {
	_, err := FindMatches([]float64{1, 0}, testIndex(), 0.6)
	if err == nil {
		t.Fatal("expected error for mismatched query dimensionality")
	}
	var mismatch *DimensionMismatchError
	if !errors.As(err, &mismatch) {
		t.Fatalf("expected DimensionMismatchError, got %T: %v", err, err)
	}
}

func TestFindMatchesNegativeThreshold(t *testing.T) {
	if _, err := FindMatches(embed128(1), testIndex(), -0.1); err == nil {
		t.Fatal("expected error for negative threshold")
	}
}

func TestConfidenceClamped(t *testing.T) {
	tests := []struct {
		name      string
		distance  float64
		threshold float64
		expected  float64
	}{
		{"zero distance", 0, 0.6, 1.0},
		{"at threshold", 0.6, 0.6, 0.0},
		{"half threshold", 0.3, 0.6, 0.5},
		{"beyond threshold clamps to zero", 0.9, 0.6, 0.0},
		{"zero threshold zero distance", 0, 0, 1.0},
		{"zero threshold nonzero distance", 0.1, 0, 0.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Confidence(tt.distance, tt.threshold)
			if math.Abs(got-tt.expected) > 1e-9 {
				t.Errorf("Confidence(%v, %v) = %v, want %v", tt.distance, tt.threshold, got, tt.expected)
			}
		})
	}
}
