package storage

import "math"

// CosineSimilarity returns the cosine similarity of two vectors in [-1, 1].
// Returns 0 when the vectors differ in length or either has zero magnitude,
// so brute-force drivers can rank without special-casing bad pairs.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
