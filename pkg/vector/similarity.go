package vector

import (
	"fmt"
	"math"
	"sort"
)

// CosineSimilarity returns the cosine of the angle between a and b. It is 0
// when either vector has zero magnitude or the lengths differ.
func CosineSimilarity(a, b []float32) float32 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(na) * math.Sqrt(nb)))
}

// SortResults orders results by descending score, then ascending ID.
func SortResults(results []QueryResult) {
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].ID < results[j].ID
	})
}

// CheckDimensions verifies every point's vector has length dim.
func CheckDimensions(points []Point, dim uint) error {
	for _, p := range points {
		if uint(len(p.Vector)) != dim {
			return fmt.Errorf("%w: point %d has %d dimensions, collection has %d",
				ErrDimensionMismatch, p.ID, len(p.Vector), dim)
		}
	}
	return nil
}

// CheckQuery verifies a query vector has length dim.
func CheckQuery(vec []float32, dim uint) error {
	if uint(len(vec)) != dim {
		return fmt.Errorf("%w: query has %d dimensions, collection has %d",
			ErrDimensionMismatch, len(vec), dim)
	}
	return nil
}

// Limit normalizes a requested result count.
func Limit(k int) int {
	if k <= 0 {
		return DefaultTopK
	}
	return k
}
