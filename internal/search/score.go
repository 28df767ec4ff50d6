package search

import "github.com/54b3r/ragstore-go/internal/storage"

// NormalizeScore maps a backend-specific raw vector score onto the common
// similarity scale [0, 1] so hits from drivers with different distance
// metrics can be merged and ranked together:
//
//	cosine distance   d in [0, 2]   -> 1 - d/2
//	cosine similarity s in [-1, 1]  -> (s + 1) / 2
//	L2 distance       d in [0, inf) -> 1 / (1 + d)
//	inner product     p in [-1, 1]  -> (p + 1) / 2
//	unknown           d             -> 1 - d
//
// All results are clamped into [0, 1].
func NormalizeScore(metric storage.Metric, raw float64) float64 {
	var sim float64
	switch metric {
	case storage.MetricCosineDistance:
		sim = 1 - raw/2
	case storage.MetricCosineSimilarity, storage.MetricInnerProduct:
		sim = (raw + 1) / 2
	case storage.MetricL2Distance:
		if raw < 0 {
			raw = 0
		}
		sim = 1 / (1 + raw)
	default:
		sim = 1 - raw
	}
	return clamp01(sim)
}

// clamp01 bounds v into [0, 1].
func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
